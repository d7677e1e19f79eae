package handler

// RESPONSE HELPERS:
// Every handler sends JSON through these two functions so the API has one
// consistent error shape:
//
//	{"error": "validation_error", "message": "...", "field": "slug"}
//
// and, for 401s only, a machine-readable reason the frontend branches on:
//
//	{"error": "unauthorized", "reason": "token_expired", "message": "..."}

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/sakif/spillr/internal/apperror"
	"github.com/sakif/spillr/internal/auth"
)

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`             // machine-readable category (e.g. "not_found")
	Message string `json:"message"`           // human-readable description
	Field   string `json:"field,omitempty"`   // validation errors: the offending field
	Reason  string `json:"reason,omitempty"`  // 401 only: no_token, token_expired, ...
}

// writeJSON sends a JSON response with the given status code. Headers and
// status must go out before the body — Encode's first Write flushes them.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to the appropriate HTTP status and sends it.
//
// The service layer returns apperror sentinels; this is the single place
// they become HTTP. Two categories carry side effects:
//   - ErrUnauthorized clears the auth cookie (stale tokens must not linger)
//   - ErrRateLimited sets a Retry-After header from the error's hint
//
// Unknown errors become a generic 500 — raw error strings can leak SQL or
// file paths and never reach the client.
func writeError(w http.ResponseWriter, cookies auth.Cookies, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "An internal error occurred",
		})
		return
	}

	status := http.StatusInternalServerError
	errorType := "internal_error"

	switch {
	case errors.Is(err, apperror.ErrValidation):
		status = http.StatusBadRequest
		errorType = "validation_error"
	case errors.Is(err, apperror.ErrUnauthorized):
		status = http.StatusUnauthorized
		errorType = "unauthorized"
		cookies.Clear(w)
	case errors.Is(err, apperror.ErrForbidden):
		status = http.StatusForbidden
		errorType = "forbidden"
	case errors.Is(err, apperror.ErrNotFound):
		status = http.StatusNotFound
		errorType = "not_found"
	case errors.Is(err, apperror.ErrConflict):
		status = http.StatusConflict
		errorType = "conflict"
	case errors.Is(err, apperror.ErrRateLimited):
		status = http.StatusTooManyRequests
		errorType = "rate_limited"
		if appErr.RetryAfter > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(appErr.RetryAfter.Seconds())+1))
		}
	}

	writeJSON(w, status, ErrorResponse{
		Error:   errorType,
		Message: appErr.Message,
		Field:   appErr.Field,
		Reason:  appErr.Reason,
	})
}
