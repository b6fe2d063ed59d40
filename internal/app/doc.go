// Package app assembles the components every command shares: configuration,
// the logger, telemetry, the historical store, the approval document and
// the verifier. Commands build one Application, add the steps they run and
// call Close before exiting so the metrics textfile is flushed.
package app
