package types

import "fmt"

// ErrorCode represents a unified error code across the coordination core.
type ErrorCode string

const (
	// ErrNotFound indicates an unknown agent, task, or DAG id.
	ErrNotFound ErrorCode = "NOT_FOUND"
	// ErrValidation indicates a malformed task graph or bad filter.
	ErrValidation ErrorCode = "VALIDATION_ERROR"
	// ErrCyclicDependency indicates the task graph failed the acyclicity
	// check. Always reported before any execution.
	ErrCyclicDependency ErrorCode = "CYCLIC_DEPENDENCY"
	// ErrNoAgentsAvailable indicates assignment found zero eligible agents.
	ErrNoAgentsAvailable ErrorCode = "NO_AGENTS_AVAILABLE"
	// ErrExecutionFailure indicates a task in a running batch failed.
	ErrExecutionFailure ErrorCode = "EXECUTION_FAILURE"
	// ErrIntegrationUnavailable indicates an adapter was not connected
	// when coordination was attempted.
	ErrIntegrationUnavailable ErrorCode = "INTEGRATION_UNAVAILABLE"
	// ErrCancelled indicates an execution was cancelled before completion.
	ErrCancelled ErrorCode = "CANCELLED"
	// ErrInternal indicates an unexpected internal failure.
	ErrInternal ErrorCode = "INTERNAL_ERROR"
)

// Error represents a structured error with code, message, and cause.
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Cause   error     `json:"-"`
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
func NewError(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return ""
}

// IsCode checks whether err carries the given error code.
func IsCode(err error, code ErrorCode) bool {
	return GetErrorCode(err) == code
}
