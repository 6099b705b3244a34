// Package apperr defines the error categories services return and their
// translation to HTTP responses.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Category string

const (
	CategoryNotFound          Category = "not_found"
	CategoryConflict          Category = "conflict"
	CategoryInvalidState      Category = "invalid_state"
	CategoryInvalidTransition Category = "invalid_transition"
	CategoryUnauthorized      Category = "unauthorized"
	CategoryForbidden         Category = "forbidden"
	CategoryValidation        Category = "validation"
	CategoryUpstreamTimeout   Category = "upstream_timeout"
	CategoryInternal          Category = "internal"
)

// Error carries a stable category next to a human-readable message.
// Clients branch on Category, never on Message.
type Error struct {
	Category Category
	Message  string
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func New(cat Category, format string, args ...any) *Error {
	return &Error{Category: cat, Message: fmt.Sprintf(format, args...)}
}

// Wrap keeps err as the cause while exposing only msg to clients.
func Wrap(cat Category, err error, msg string) *Error {
	return &Error{Category: cat, Message: msg, Err: err}
}

func NotFound(format string, args ...any) *Error {
	return New(CategoryNotFound, format, args...)
}

func Conflict(format string, args ...any) *Error {
	return New(CategoryConflict, format, args...)
}

func InvalidState(format string, args ...any) *Error {
	return New(CategoryInvalidState, format, args...)
}

func InvalidTransition(format string, args ...any) *Error {
	return New(CategoryInvalidTransition, format, args...)
}

func Unauthorized(format string, args ...any) *Error {
	return New(CategoryUnauthorized, format, args...)
}

func Forbidden(format string, args ...any) *Error {
	return New(CategoryForbidden, format, args...)
}

func Validation(format string, args ...any) *Error {
	return New(CategoryValidation, format, args...)
}

func UpstreamTimeout(format string, args ...any) *Error {
	return New(CategoryUpstreamTimeout, format, args...)
}

// CategoryOf returns the category of the first *Error in err's chain,
// or CategoryInternal.
func CategoryOf(err error) Category {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Category
	}
	return CategoryInternal
}

func Is(err error, cat Category) bool {
	return err != nil && CategoryOf(err) == cat
}

// Status maps a category to its HTTP status code.
func (c Category) Status() int {
	switch c {
	case CategoryNotFound:
		return http.StatusNotFound
	case CategoryConflict, CategoryInvalidState, CategoryInvalidTransition:
		return http.StatusConflict
	case CategoryUnauthorized:
		return http.StatusUnauthorized
	case CategoryForbidden:
		return http.StatusForbidden
	case CategoryValidation:
		return http.StatusBadRequest
	case CategoryUpstreamTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// CategoryForStatus is the inverse used for errors raised directly as HTTP
// statuses by handlers and framework middleware.
func CategoryForStatus(status int) Category {
	switch status {
	case http.StatusNotFound:
		return CategoryNotFound
	case http.StatusConflict:
		return CategoryConflict
	case http.StatusUnauthorized:
		return CategoryUnauthorized
	case http.StatusForbidden:
		return CategoryForbidden
	case http.StatusGatewayTimeout, http.StatusServiceUnavailable:
		return CategoryUpstreamTimeout
	}
	if status >= 400 && status < 500 {
		return CategoryValidation
	}
	return CategoryInternal
}
