// Package apperrors provides typed errors that carry an HTTP status mapping.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Type is the category of an error, used for status mapping and response bodies.
type Type string

const (
	// TypeValidation indicates malformed or out-of-range input (HTTP 400)
	TypeValidation Type = "validation"
	// TypeUnauthorized indicates a missing or invalid identity (HTTP 401)
	TypeUnauthorized Type = "unauthorized"
	// TypeForbidden indicates an identity without permission (HTTP 403)
	TypeForbidden Type = "forbidden"
	// TypeNotFound indicates a missing resource (HTTP 404)
	TypeNotFound Type = "not_found"
	// TypeConflict indicates a write conflict (HTTP 409)
	TypeConflict Type = "conflict"
	// TypeUnavailable indicates a transient failure the client may retry (HTTP 503)
	TypeUnavailable Type = "unavailable"
	// TypeInternal indicates a server-side error (HTTP 500)
	TypeInternal Type = "internal"
)

// Error is a structured error with a type, a client-safe message and an optional cause.
type Error struct {
	Type    Type
	Message string
	Cause   error
	// Fields holds per-field validation messages, keyed by input name.
	Fields map[string]string
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// HTTPStatus returns the status code for this error type.
func (e *Error) HTTPStatus() int {
	switch e.Type {
	case TypeValidation:
		return http.StatusBadRequest
	case TypeUnauthorized:
		return http.StatusUnauthorized
	case TypeForbidden:
		return http.StatusForbidden
	case TypeNotFound:
		return http.StatusNotFound
	case TypeConflict:
		return http.StatusConflict
	case TypeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func Validation(message string) *Error {
	return &Error{Type: TypeValidation, Message: message}
}

// InvalidFields is a validation error that reports which inputs were rejected.
func InvalidFields(message string, fields map[string]string) *Error {
	return &Error{Type: TypeValidation, Message: message, Fields: fields}
}

func Unauthorized(message string) *Error {
	return &Error{Type: TypeUnauthorized, Message: message}
}

func Forbidden(message string) *Error {
	return &Error{Type: TypeForbidden, Message: message}
}

func NotFound(message string) *Error {
	return &Error{Type: TypeNotFound, Message: message}
}

func Conflict(message string) *Error {
	return &Error{Type: TypeConflict, Message: message}
}

func Unavailable(message string, cause error) *Error {
	return &Error{Type: TypeUnavailable, Message: message, Cause: cause}
}

func Internal(message string, cause error) *Error {
	return &Error{Type: TypeInternal, Message: message, Cause: cause}
}

// Response is the JSON body sent to clients.
type Response struct {
	Error  string            `json:"error"`
	Type   Type              `json:"type"`
	Fields map[string]string `json:"fields,omitempty"`
}

// ToResponse converts the error to its client representation.
func (e *Error) ToResponse() Response {
	return Response{Error: e.Message, Type: e.Type, Fields: e.Fields}
}

// As returns the outermost *Error in err's chain, or wraps err as an
// internal error when there is none. It returns nil for a nil error.
func As(err error) *Error {
	if err == nil {
		return nil
	}

	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}

	return Internal("internal server error", err)
}
