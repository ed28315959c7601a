// Package apierr defines the error taxonomy surfaced by the privacy API.
//
// Services return *apierr.Error values (or wrap them); the HTTP layer maps
// them onto the uniform response envelope. Anything that is not an
// *apierr.Error is reported as INTERNAL without leaking its message.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is a canonical, transport-independent error code.
type Code string

// Canonical error codes surfaced in the response envelope.
const (
	CodeUnauthenticated    Code = "UNAUTHENTICATED"
	CodePermissionDenied   Code = "PERMISSION_DENIED"
	CodeInvalidArgument    Code = "INVALID_ARGUMENT"
	CodeNotFound           Code = "NOT_FOUND"
	CodeAlreadyExists      Code = "ALREADY_EXISTS"
	CodeFailedPrecondition Code = "FAILED_PRECONDITION"
	CodeResourceExhausted  Code = "RESOURCE_EXHAUSTED"
	CodeUnavailable        Code = "UNAVAILABLE"
	CodeInternal           Code = "INTERNAL"
)

// Error is a classified error carrying the canonical code, a human-readable
// message, and optional structured details for the envelope.
type Error struct {
	Code    Code
	Message string
	Details map[string]any

	cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is/As chains.
func (e *Error) Unwrap() error {
	return e.cause
}

// WithDetails attaches structured details and returns the error.
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

// WithCause records the underlying cause and returns the error.
func (e *Error) WithCause(err error) *Error {
	e.cause = err
	return e
}

// New creates an error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates an error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Unauthenticated indicates a missing or unusable credential.
func Unauthenticated(message string) *Error {
	return New(CodeUnauthenticated, message)
}

// PermissionDenied indicates the caller is authenticated but not the owner.
func PermissionDenied(message string) *Error {
	return New(CodePermissionDenied, message)
}

// InvalidArgument indicates a request that fails validation.
func InvalidArgument(message string) *Error {
	return New(CodeInvalidArgument, message)
}

// NotFound indicates the referenced entity does not exist.
func NotFound(message string) *Error {
	return New(CodeNotFound, message)
}

// AlreadyExists indicates a uniqueness conflict (duplicate active request).
func AlreadyExists(message string) *Error {
	return New(CodeAlreadyExists, message)
}

// FailedPrecondition indicates the entity is in a state that forbids the
// requested transition.
func FailedPrecondition(message string) *Error {
	return New(CodeFailedPrecondition, message)
}

// Unavailable indicates a downstream dependency is temporarily unusable.
func Unavailable(message string) *Error {
	return New(CodeUnavailable, message)
}

// Internal indicates an unclassified failure. The given cause is kept for
// logs; the envelope only carries the generic message.
func Internal(cause error) *Error {
	return &Error{Code: CodeInternal, Message: "an unexpected error occurred", cause: cause}
}

// From classifies an arbitrary error. *apierr.Error values pass through;
// everything else becomes INTERNAL.
func From(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal(err)
}

// CodeOf returns the canonical code of err, or CodeInternal for
// unclassified errors.
func CodeOf(err error) Code {
	return From(err).Code
}

// HTTPStatus maps a canonical code onto an HTTP status for the envelope.
func HTTPStatus(code Code) int {
	switch code {
	case CodeUnauthenticated:
		return http.StatusUnauthorized
	case CodePermissionDenied:
		return http.StatusForbidden
	case CodeInvalidArgument:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeAlreadyExists:
		return http.StatusConflict
	case CodeFailedPrecondition:
		return http.StatusPreconditionFailed
	case CodeResourceExhausted:
		return http.StatusTooManyRequests
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
