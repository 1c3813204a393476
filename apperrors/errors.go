// Package apperrors defines the error taxonomy returned by the game services.
package apperrors

import (
	"errors"
	"net/http"
)

// Code is a machine-readable error code.
type Code string

const (
	CodeNotFound     Code = "NOT_FOUND"
	CodeForbidden    Code = "FORBIDDEN"
	CodeInvalidState Code = "INVALID_STATE"
	CodeConflict     Code = "CONFLICT"
	CodeInvalidInput Code = "INVALID_INPUT"
	CodeUnauthorized Code = "UNAUTHORIZED"
	CodeInternal     Code = "INTERNAL"
)

// Error is a domain error carrying a code and a user-facing message.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

// Sentinels for errors.Is checks. Matching is by code only.
var (
	ErrNotFound     = &Error{Code: CodeNotFound}
	ErrForbidden    = &Error{Code: CodeForbidden}
	ErrInvalidState = &Error{Code: CodeInvalidState}
	ErrConflict     = &Error{Code: CodeConflict}
	ErrInvalidInput = &Error{Code: CodeInvalidInput}
	ErrUnauthorized = &Error{Code: CodeUnauthorized}
	ErrInternal     = &Error{Code: CodeInternal}
)

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return string(e.Code)
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

func NotFound(message string) *Error     { return New(CodeNotFound, message) }
func Forbidden(message string) *Error    { return New(CodeForbidden, message) }
func InvalidState(message string) *Error { return New(CodeInvalidState, message) }
func Conflict(message string) *Error     { return New(CodeConflict, message) }
func InvalidInput(message string) *Error { return New(CodeInvalidInput, message) }
func Unauthorized(message string) *Error { return New(CodeUnauthorized, message) }

// Internal wraps a store or transport failure. The cause is kept for logs
// but never shown to clients.
func Internal(cause error) *Error {
	return Wrap(CodeInternal, "internal server error", cause)
}

// CodeOf returns the code of the first *Error in err's chain, or CodeInternal.
func CodeOf(err error) Code {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// HTTPStatus maps an error to the status code handlers respond with.
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeForbidden:
		return http.StatusForbidden
	case CodeInvalidState, CodeConflict:
		return http.StatusConflict
	case CodeInvalidInput:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the message that is safe to send to a client.
func PublicMessage(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Code != CodeInternal {
		return appErr.Error()
	}
	return "internal server error"
}
