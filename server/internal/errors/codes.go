// Package errors defines the caller-visible error taxonomy for review
// operations. Every engine failure maps to one of these codes; the router
// translates codes to HTTP status.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode classifies a review operation failure.
type ErrorCode string

const (
	// ErrCodeNotFound indicates a lookup by name or number matched nothing
	// within the owner scope.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeConflict indicates a duplicate name, a duplicate same-day
	// action, an ambiguous number lookup, or a stale version.
	ErrCodeConflict ErrorCode = "CONFLICT"
	// ErrCodeInvalidArgument indicates malformed input, rejected before any
	// state mutation.
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
	// ErrCodeUnauthenticated indicates missing or bad credentials.
	ErrCodeUnauthenticated ErrorCode = "UNAUTHENTICATED"
	// ErrCodeInternal indicates an unexpected storage or system failure.
	ErrCodeInternal ErrorCode = "INTERNAL"
)

// StatusError is a structured error carrying a taxonomy code.
type StatusError struct {
	Code    ErrorCode
	Message string
	Cause   error
	// Retryable marks conflicts that are safe to retry after re-reading
	// (stale version); other conflicts need new input.
	Retryable bool
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *StatusError) Unwrap() error {
	return e.Cause
}

// NotFound creates a not-found error.
func NotFound(msg string) *StatusError {
	return &StatusError{Code: ErrCodeNotFound, Message: msg}
}

// Conflict creates a conflict error.
func Conflict(msg string) *StatusError {
	return &StatusError{Code: ErrCodeConflict, Message: msg}
}

// RetryableConflict creates a conflict error the caller may retry after
// re-reading current state.
func RetryableConflict(msg string) *StatusError {
	return &StatusError{Code: ErrCodeConflict, Message: msg, Retryable: true}
}

// InvalidArgument creates an invalid argument error.
func InvalidArgument(msg string) *StatusError {
	return &StatusError{Code: ErrCodeInvalidArgument, Message: msg}
}

// Unauthenticated creates a credentials error.
func Unauthenticated(msg string) *StatusError {
	return &StatusError{Code: ErrCodeUnauthenticated, Message: msg}
}

// Internal wraps an unexpected failure.
func Internal(msg string, cause error) *StatusError {
	return &StatusError{Code: ErrCodeInternal, Message: msg, Cause: cause}
}

// Wrap wraps an existing error with a code and message.
func Wrap(cause error, code ErrorCode, msg string) *StatusError {
	return &StatusError{Code: code, Message: msg, Cause: cause}
}

// IsCode checks if an error carries a specific code.
func IsCode(err error, code ErrorCode) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}

// GetCodeFromError extracts the code from any error.
// Returns the provided default code if the error is not a StatusError.
func GetCodeFromError(err error, defaultCode ErrorCode) ErrorCode {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return defaultCode
}
