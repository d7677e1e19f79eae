package apperror

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation error")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
	ErrRateLimited  = errors.New("rate limited")
)

// Machine-readable reason codes carried by unauthorized errors. The client
// branches on these (e.g. token_expired prompts a silent re-login) so they
// are part of the API contract.
const (
	ReasonNoToken            = "no_token"
	ReasonInvalidToken       = "invalid_token"
	ReasonTokenExpired       = "token_expired"
	ReasonUserNotFound       = "user_not_found"
	ReasonUserInactive       = "user_inactive"
	ReasonInvalidCredentials = "invalid_credentials"
)

type AppError struct {
	Err        error         // sentinel category (ErrNotFound, ErrValidation, ...)
	Message    string        // human-readable error message
	Field      string        // optional: field causing the error
	Reason     string        // optional: machine code (auth errors only)
	RetryAfter time.Duration // optional: back-off hint (rate limiting only)
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

// NotFoundMsg is NotFound with a caller-supplied message, for lookups that
// aren't keyed by an ID (e.g. wall slugs).
func NotFoundMsg(message string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: message,
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

// Unauthorized returns an AppError with a machine reason code.
// HTTP handlers map this to 401 and clear the auth cookie.
func Unauthorized(reason, message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
		Reason:  reason,
	}
}

// RateLimited returns an AppError carrying a Retry-After hint.
// HTTP handlers map this to 429.
func RateLimited(retryAfter time.Duration) *AppError {
	return &AppError{
		Err:        ErrRateLimited,
		Message:    "too many requests, slow down",
		RetryAfter: retryAfter,
	}
}
