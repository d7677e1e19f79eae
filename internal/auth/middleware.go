package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sakif/spillr/internal/apperror"
	"github.com/sakif/spillr/internal/model"
	"github.com/sakif/spillr/internal/repository"
)

// contextKey is an unexported type used for context keys in this package.
// A package-private key type prevents other packages from reading or
// shadowing the value.
type contextKey string

const userKey contextKey = "user"

// Gate is the authentication middleware for protected routes.
//
// It establishes request identity from either the HttpOnly "token" cookie
// or an "Authorization: Bearer" header, validates the JWT, and loads the
// matching active user from the database. Every failure responds 401 with
// a machine reason code AND clears the cookie — stale or tampered cookies
// would otherwise wedge the client in a 401 loop.
type Gate struct {
	tokens  *TokenService
	users   repository.UserRepository
	cookies Cookies
}

// NewGate creates the auth middleware with its dependencies.
func NewGate(tokens *TokenService, users repository.UserRepository, cookies Cookies) *Gate {
	return &Gate{tokens: tokens, users: users, cookies: cookies}
}

// Require wraps a handler, rejecting unauthenticated requests.
//
// On success the resolved user (with its secret fields never serialized —
// see the json:"-" tags on model.User) is stored in the request context for
// handlers to read via UserFromContext.
//
// Only genuine authentication failures respond 401 and clear the cookie.
// A transient database error while loading the user is a 500: the token
// may be perfectly valid, and clearing the cookie would log the user out
// over a hiccup that has nothing to do with them.
func (g *Gate) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := g.resolve(r)
		if err != nil {
			var appErr *apperror.AppError
			if errors.As(err, &appErr) && errors.Is(err, apperror.ErrUnauthorized) {
				g.cookies.Clear(w)
				writeAuthError(w, appErr)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `{"error":"internal_error","message":"An internal error occurred"}`)
			return
		}

		ctx := context.WithValue(r.Context(), userKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UserFromContext retrieves the authenticated user from the request context.
// Returns (nil, false) on routes not behind Require.
func UserFromContext(ctx context.Context) (*model.User, bool) {
	user, ok := ctx.Value(userKey).(*model.User)
	return user, ok && user != nil
}

// resolve extracts the token from the request and turns it into a loaded,
// active user. Authentication failures are *apperror.AppError values
// carrying one of the reason codes from the apperror package; anything
// else is an infrastructure error.
func (g *Gate) resolve(r *http.Request) (*model.User, error) {
	tokenStr := extractToken(r)
	if tokenStr == "" {
		return nil, apperror.Unauthorized(apperror.ReasonNoToken, "authentication required")
	}

	claims, err := g.tokens.Validate(tokenStr)
	if err != nil {
		if errors.Is(err, ErrTokenExpired) {
			return nil, apperror.Unauthorized(apperror.ReasonTokenExpired, "session expired, please log in again")
		}
		return nil, apperror.Unauthorized(apperror.ReasonInvalidToken, "invalid authentication token")
	}

	user, err := g.users.GetByID(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthorized(apperror.ReasonUserNotFound, "account no longer exists")
		}
		return nil, fmt.Errorf("loading user %s: %w", claims.UserID, err)
	}
	if !user.IsActive {
		return nil, apperror.Unauthorized(apperror.ReasonUserInactive, "account is deactivated")
	}

	return user, nil
}

// extractToken reads the JWT from the "token" cookie, falling back to a
// Bearer authorization header for non-browser clients.
func extractToken(r *http.Request) string {
	if cookie, err := r.Cookie(CookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	header := r.Header.Get("Authorization")
	if after, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(after)
	}
	return ""
}

// writeAuthError emits the standard auth failure body. The auth package
// can't use the handler package's helpers (it would create an import
// cycle), so the small amount of JSON is written directly.
func writeAuthError(w http.ResponseWriter, authErr *apperror.AppError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	fmt.Fprintf(w, `{"error":"unauthorized","reason":%q,"message":%q}`, authErr.Reason, authErr.Message)
}
