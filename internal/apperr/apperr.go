// Package apperr defines the service error taxonomy and its HTTP mapping.
package apperr

import (
	"errors"
	"net/http"
)

// Kind classifies a service failure.
type Kind int

// Error kinds, each mapped to a stable HTTP status.
const (
	KindNotFound Kind = iota + 1
	KindValidation
	KindUnauthorized
	KindForbidden
	KindBusiness
)

// Error is a kind-tagged service error with a stable machine-readable code.
type Error struct {
	Kind    Kind           // Failure classification.
	Code    string         // Stable machine-readable code.
	Message string         // Human-readable message.
	Details map[string]any // Optional structured payload.
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return e.Code + ": " + e.Message
}

// HTTPStatus maps the error kind to its HTTP status code.
func (e *Error) HTTPStatus() int {
	if e == nil {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation, KindBusiness:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// WithDetails attaches a structured payload and returns the error.
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

// NotFound builds a not-found error.
func NotFound(code, message string) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: message}
}

// Validation builds a bad-input error.
func Validation(code, message string) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: message}
}

// Unauthorized builds an authentication error.
func Unauthorized(code, message string) *Error {
	return &Error{Kind: KindUnauthorized, Code: code, Message: message}
}

// Forbidden builds an access-denied error.
func Forbidden(code, message string) *Error {
	return &Error{Kind: KindForbidden, Code: code, Message: message}
}

// Business builds a business-rule error.
func Business(code, message string) *Error {
	return &Error{Kind: KindBusiness, Code: code, Message: message}
}

// As extracts an *Error from an error chain.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
