// Package verification scores a freshly integrated period against the
// period before it. The report is advisory; only a record count mismatch
// is fatal.
package verification
