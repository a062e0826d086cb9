package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unified error code across the module.
type ErrorCode string

// Orchestration error codes
const (
	ErrConfigurationMissing   ErrorCode = "CONFIGURATION_MISSING"
	ErrToolInvocationFailure  ErrorCode = "TOOL_INVOCATION_FAILURE"
	ErrModelInvocationFailure ErrorCode = "MODEL_INVOCATION_FAILURE"
	ErrQueueFull              ErrorCode = "QUEUE_FULL"
	ErrQueueClosed            ErrorCode = "QUEUE_CLOSED"
	ErrUnknownTool            ErrorCode = "UNKNOWN_TOOL"
)

// Lookup error codes
const (
	ErrNotFound  ErrorCode = "NOT_FOUND"
	ErrAmbiguous ErrorCode = "AMBIGUOUS"
)

// Generic error codes
const (
	ErrInvalidRequest ErrorCode = "INVALID_REQUEST"
	ErrUnauthorized   ErrorCode = "UNAUTHORIZED"
	ErrRateLimited    ErrorCode = "RATE_LIMITED"
	ErrTimeout        ErrorCode = "TIMEOUT"
	ErrInternalError  ErrorCode = "INTERNAL_ERROR"
)

// NoProject is the project bucket used when an entry is not tied to a project.
const NoProject = "no-project"

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Retryable  bool      `json:"retryable"`
	Cause      error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Errorf creates a new Error with a formatted message.
func Errorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithHTTPStatus sets the HTTP status code.
func (e *Error) WithHTTPStatus(status int) *Error {
	e.HTTPStatus = status
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// AsError extracts a *Error from the chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsErrorCode reports whether any *Error in the chain carries code.
func IsErrorCode(err error, code ErrorCode) bool {
	e, ok := AsError(err)
	return ok && e.Code == code
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if e, ok := AsError(err); ok {
		return e.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	if e, ok := AsError(err); ok {
		return e.Code
	}
	return ""
}
