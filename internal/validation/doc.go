// Package validation checks records, approval documents and the files the
// pipeline commands depend on.
package validation
