// Package apperror defines the error vocabulary shared by every layer of the portal.
//
// ERROR TAXONOMY:
// Only the gateway (remote API calls) and the session resolver ever look at
// raw HTTP status codes. Everything above them receives one of the sentinel
// errors below, wrapped in an *AppError that carries a human-readable message.
//
//	ErrValidation   → bad form input, bad credentials        → 400
//	ErrUnauthorized → the remote API no longer accepts us     → 401 + redirect home
//	ErrForbidden    → the remote API refused this caller      → 403
//	ErrNotFound     → the thing does not exist                → 404
//	ErrConflict     → duplicate / state clash                 → 409
//	ErrRateLimited  → too many attempts                       → 429
//	ErrUnavailable  → network down, timeout, 5xx upstream     → 502 with a generic "try again"
//
// Handlers use errors.Is() against these sentinels to pick a status code.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("Validation Error")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
	ErrRateLimited  = errors.New("rate limited")
	ErrUnavailable  = errors.New("upstream unavailable")
)

// AppError is a domain error with a message that is safe to show to the end user.
//
// Err is the sentinel used for errors.Is() matching. Cause, when set, keeps
// the underlying transport error for logging; it is never rendered.
type AppError struct {
	Err     error  // sentinel
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
	Cause   error  // Optional: lower-level error, logged but never shown
}

func (e *AppError) Error() string {
	return e.Message
}

// Unwrap exposes both the sentinel and the cause, so errors.Is() matches
// either of them.
func (e *AppError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Unauthorized signals that the remote API rejected the caller's credentials.
// By the time a handler sees it, the local session has already been expired.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// RateLimited is returned when a caller exceeded an attempt budget.
func RateLimited(message string) *AppError {
	return &AppError{
		Err:     ErrRateLimited,
		Message: message,
	}
}

// Unavailable wraps a transport or upstream fault. The message is generic on
// purpose; the cause goes to the logs only.
func Unavailable(cause error) *AppError {
	return &AppError{
		Err:     ErrUnavailable,
		Message: "Something went wrong. Please try again.",
		Cause:   cause,
	}
}
