// Package apierr defines the single typed error that handlers return. Each error
// carries the HTTP status and the client-facing message; the wrapped cause is kept
// for logging and never rendered.
package apierr

import (
	"errors"
	"net/http"
)

// Error is an API failure with a status code and a client-safe message.
type Error struct {
	Status  int
	Message string
	Errors  []string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New constructs an Error with the given status and message.
func New(status int, message string, details ...string) *Error {
	return &Error{Status: status, Message: message, Errors: details}
}

// Wrap attaches an underlying cause to a new Error.
func Wrap(status int, message string, err error) *Error {
	return &Error{Status: status, Message: message, Err: err}
}

// Validation reports missing or malformed input.
func Validation(message string, details ...string) *Error {
	return New(http.StatusBadRequest, message, details...)
}

// Unauthorized reports a missing, invalid, expired or reused credential.
func Unauthorized(message string) *Error {
	return New(http.StatusUnauthorized, message)
}

// Forbidden reports an authenticated caller acting on someone else's resource.
func Forbidden(message string) *Error {
	return New(http.StatusForbidden, message)
}

// NotFound reports an absent identity, channel or content item.
func NotFound(message string) *Error {
	return New(http.StatusNotFound, message)
}

// Conflict reports a uniqueness violation.
func Conflict(message string) *Error {
	return New(http.StatusConflict, message)
}

// TooManyRequests reports a rate-limited caller.
func TooManyRequests(message string) *Error {
	return New(http.StatusTooManyRequests, message)
}

// Upstream reports a failed store write or media upload.
func Upstream(message string, err error) *Error {
	return Wrap(http.StatusInternalServerError, message, err)
}

// From converts any error into an *Error. Unknown errors become a generic 500.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return Wrap(http.StatusInternalServerError, "Internal server error", err)
}
