package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType represents the type of error
type ErrorType string

const (
	ErrTypeParsing       ErrorType = "PARSING"
	ErrTypeUnitMismatch  ErrorType = "UNIT_MISMATCH"
	ErrTypeFXUnavailable ErrorType = "FX_UNAVAILABLE"
	ErrTypePrecondition  ErrorType = "PRECONDITION"
	ErrTypeVerification  ErrorType = "VERIFICATION"
	ErrTypeStorage       ErrorType = "STORAGE"
	ErrTypeNetwork       ErrorType = "NETWORK"
	ErrTypeValidation    ErrorType = "VALIDATION"
	ErrTypeNotFound      ErrorType = "NOT_FOUND"
	ErrTypeConfig        ErrorType = "CONFIG"
)

// Kinds of structural failure. AppErrors carry one of these as Cause (or
// wrap it) so callers can match with errors.Is.
var (
	ErrPeriodNotFound         = stderrors.New("target period not found in period header")
	ErrPeriodHeaderNotFound   = stderrors.New("period header row not found")
	ErrUnitAnnotationNotFound = stderrors.New("unit annotation not found")
	ErrSubfundUnrecognized    = stderrors.New("sub-fund label not recognized")
	ErrConceptUnrecognized    = stderrors.New("concept label not recognized")
	ErrUnitMismatch           = stderrors.New("unit scale differs from expected default")
	ErrFXUnavailable          = stderrors.New("no conversion rate observation for target month")
	ErrApprovalMissing        = stderrors.New("approval document not found")
	ErrApprovalNotPending     = stderrors.New("approval document is not pending")
	ErrApprovalNotApproved    = stderrors.New("approval document is not approved")
	ErrNoPriorPeriod          = stderrors.New("no prior period in store")
	ErrMixedPeriods           = stderrors.New("records span more than one period")
)

// AppError represents an application-specific error
type AppError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap allows errors.Is and errors.As to work with AppError
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewAppError creates a new application error
func NewAppError(errType ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// NewParsingError creates an extraction error for one export.
func NewParsingError(message string, cause error) *AppError {
	return NewAppError(ErrTypeParsing, message, cause)
}

// NewUnitMismatchError reports a non-default unit scale. It is surfaced, not fatal.
func NewUnitMismatchError(detected, expected string) *AppError {
	return NewAppError(ErrTypeUnitMismatch,
		fmt.Sprintf("detected unit scale %q, expected %q", detected, expected),
		ErrUnitMismatch).
		WithContext("detected", detected).
		WithContext("expected", expected)
}

// NewFXUnavailableError reports a missing conversion rate for a period.
func NewFXUnavailableError(period string) *AppError {
	return NewAppError(ErrTypeFXUnavailable, "conversion rate unavailable", ErrFXUnavailable).
		WithContext("period", period)
}

// NewPreconditionError refuses an integration whose approval state is wrong.
func NewPreconditionError(message string, cause error) *AppError {
	return NewAppError(ErrTypePrecondition, message, cause)
}

// NewVerificationError reports that a consistency check could not run.
func NewVerificationError(message string, cause error) *AppError {
	return NewAppError(ErrTypeVerification, message, cause)
}

// NewStorageError creates a storage-related error
func NewStorageError(message string, cause error) *AppError {
	return NewAppError(ErrTypeStorage, message, cause)
}

// NewNetworkError creates a network-related error
func NewNetworkError(message string, cause error) *AppError {
	return NewAppError(ErrTypeNetwork, message, cause)
}

// NewAppValidationError creates a validation error for AppError type
func NewAppValidationError(message string, cause error) *AppError {
	return NewAppError(ErrTypeValidation, message, cause)
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string) *AppError {
	return NewAppError(ErrTypeNotFound, fmt.Sprintf("%s not found", resource), nil)
}

// NewConfigError creates a configuration error
func NewConfigError(message string, cause error) *AppError {
	return NewAppError(ErrTypeConfig, message, cause)
}

// TypeOf returns the ErrorType of the first AppError in err's chain, or "".
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Type
	}
	return ""
}

// IsType reports whether err's chain holds an AppError of the given type.
func IsType(err error, errType ErrorType) bool {
	return TypeOf(err) == errType
}

// Is, As and Join re-export the standard helpers so callers need one import.
var (
	Is   = stderrors.Is
	As   = stderrors.As
	Join = stderrors.Join
	New  = stderrors.New
)
