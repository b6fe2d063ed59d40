package operations

import (
	"context"
	"errors"
	"fmt"

	apperrors "sieforeagent/internal/errors"
	"sieforeagent/pkg/contracts/domain"
)

// ErrorType classifies why a run stopped.
type ErrorType string

const (
	ErrorTypeValidation   ErrorType = "validation"
	ErrorTypeExecution    ErrorType = "execution"
	ErrorTypeCancellation ErrorType = "cancellation"
	ErrorTypeRetryable    ErrorType = "retryable"
	ErrorTypeFatal        ErrorType = "fatal"
	ErrorTypeInvalidState ErrorType = "invalid_state"
)

// OperationError names the step and target period of a failed run so the
// run can be repeated for the same period.
type OperationError struct {
	Type      ErrorType     `json:"type"`
	Step      string        `json:"step,omitempty"`
	Period    domain.Period `json:"period"`
	Message   string        `json:"message"`
	Retryable bool          `json:"retryable"`
	Cause     error         `json:"-"`
}

func (e *OperationError) Error() string {
	if e == nil {
		return "unknown operation error"
	}
	where := string(e.Type)
	if e.Step != "" {
		where += " in " + e.Step
	}
	if !e.Period.IsZero() {
		where += " for " + e.Period.String()
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", where, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", where, e.Message, e.Cause)
}

func (e *OperationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// NewValidationError reports input a step refused before doing any work.
func NewValidationError(step, message string) *OperationError {
	return &OperationError{Type: ErrorTypeValidation, Step: step, Message: message}
}

// NewCancellationError reports a run stopped by its context.
func NewCancellationError(step string, cause error) *OperationError {
	return &OperationError{Type: ErrorTypeCancellation, Step: step, Message: "run cancelled", Cause: cause}
}

// IsRetryable reports whether err came from a transient external failure.
func IsRetryable(err error) bool {
	var opErr *OperationError
	return errors.As(err, &opErr) && opErr.Retryable
}

// GetErrorType returns the ErrorType of err; errors that were never
// attributed to a step count as execution failures.
func GetErrorType(err error) ErrorType {
	if err == nil {
		return ""
	}
	var opErr *OperationError
	if errors.As(err, &opErr) {
		return opErr.Type
	}
	return ErrorTypeExecution
}

type classification struct {
	kind      ErrorType
	message   string
	retryable bool
}

var classifications = map[apperrors.ErrorType]classification{
	apperrors.ErrTypeValidation:   {ErrorTypeValidation, "invalid input", false},
	apperrors.ErrTypeConfig:       {ErrorTypeValidation, "invalid input", false},
	apperrors.ErrTypePrecondition: {ErrorTypeInvalidState, "precondition not met", false},
	apperrors.ErrTypeNetwork:      {ErrorTypeRetryable, "external call failed", true},
	apperrors.ErrTypeVerification: {ErrorTypeFatal, "verification failed", false},
}

// WrapError attributes err to step. An *OperationError already in the
// chain is reused; only network failures are retryable.
func WrapError(err error, step string) *OperationError {
	if err == nil {
		return nil
	}

	var opErr *OperationError
	if errors.As(err, &opErr) {
		if opErr.Step == "" {
			opErr.Step = step
		}
		return opErr
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return NewCancellationError(step, err)
	}

	c, ok := classifications[apperrors.TypeOf(err)]
	if !ok {
		c = classification{ErrorTypeExecution, "step failed", false}
	}
	return &OperationError{Type: c.kind, Step: step, Message: c.message, Retryable: c.retryable, Cause: err}
}
