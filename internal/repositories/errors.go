package repositories

import "fmt"

// ErrorCode classifies persistence failures for service-level mapping.
type ErrorCode string

const (
	// ErrorCodeUnknown represents an unspecified failure.
	ErrorCodeUnknown ErrorCode = "unknown"
	// ErrorCodeNotFound indicates the requested row does not exist.
	ErrorCodeNotFound ErrorCode = "not_found"
	// ErrorCodeConflict indicates a uniqueness or concurrency conflict.
	ErrorCodeConflict ErrorCode = "conflict"
	// ErrorCodeUnavailable indicates the store could not be reached.
	ErrorCodeUnavailable ErrorCode = "unavailable"
)

// Error wraps low-level persistence failures with categorisation used by services.
type Error struct {
	Op      string
	Code    ErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap exposes the underlying error, if any.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsNotFound reports whether the error represents a missing row.
func (e *Error) IsNotFound() bool { return e != nil && e.Code == ErrorCodeNotFound }

// IsConflict reports whether the error represents a uniqueness conflict.
func (e *Error) IsConflict() bool { return e != nil && e.Code == ErrorCodeConflict }

// IsUnavailable reports whether the error represents a transport/store failure.
func (e *Error) IsUnavailable() bool { return e != nil && e.Code == ErrorCodeUnavailable }

// NewError constructs a typed repository error.
func NewError(op string, code ErrorCode, message string, err error) *Error {
	if message == "" {
		message = string(code)
	}
	return &Error{Op: op, Code: code, Message: message, Err: err}
}
