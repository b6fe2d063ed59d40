// Package http serves the historical store read-only over JSON. Errors
// are rendered as RFC 7807 problem documents, and every request is traced
// and counted by route.
package http
