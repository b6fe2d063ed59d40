// Package operations runs the pipeline steps in order, one span and one
// set of stage metrics per step. A failed step stops the run and is
// reported as an *OperationError.
package operations
