// Package approval persists the pending/approved document that gates
// integration, plus the review summary written on submission.
package approval
