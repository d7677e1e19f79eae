package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/rs/xid"
	"github.com/sakif/spillr/internal/auth"
	"github.com/sakif/spillr/internal/service"
)

// AuthHandler manages registration, password login, the Google OAuth flow
// and session management.
//
// HANDLER RESPONSIBILITIES:
//   - HandleRegister       → create an account, issue the session cookie
//   - HandleLogin          → verify credentials, issue the session cookie
//   - HandleGoogleLogin    → redirect the browser to Google's consent page
//   - HandleGoogleCallback → exchange the code, upsert the user, redirect to the app
//   - HandleLogout         → clear the session cookie
//   - HandleMe             → return the logged-in user's profile
type AuthHandler struct {
	service     *service.AuthService
	google      *auth.GoogleProvider
	cookies     auth.Cookies
	frontendURL string
	logger      *slog.Logger
}

func NewAuthHandler(
	svc *service.AuthService,
	google *auth.GoogleProvider,
	cookies auth.Cookies,
	frontendURL string,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		service:     svc,
		google:      google,
		cookies:     cookies,
		frontendURL: frontendURL,
		logger:      logger,
	}
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// authResponse is what register and login return. The token rides in the
// cookie AND the body — browser clients use the cookie, API clients the
// Authorization header.
type authResponse struct {
	User  interface{} `json:"user"`
	Token string      `json:"token"`
}

// HandleRegister creates a password-based account.
//
// HTTP: POST /api/auth/register
// REQUEST BODY: {"email": "...", "password": "...", "name": "..."}
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("invalid register JSON", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "invalid JSON body",
		})
		return
	}

	result, err := h.service.Register(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		writeError(w, h.cookies, err)
		return
	}

	h.cookies.Set(w, result.Token)
	writeJSON(w, http.StatusCreated, authResponse{User: result.User, Token: result.Token})
}

// HandleLogin authenticates with email and password.
//
// HTTP: POST /api/auth/login
//
// The route sits behind a failures-only rate limiter: only 4xx/5xx
// responses consume the caller's budget, so a user typing their password
// correctly is never throttled.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("invalid login JSON", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "invalid JSON body",
		})
		return
	}

	result, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, h.cookies, err)
		return
	}

	h.cookies.Set(w, result.Token)
	writeJSON(w, http.StatusOK, authResponse{User: result.User, Token: result.Token})
}

// HandleGoogleLogin redirects the user to Google's consent page.
//
// HTTP: GET /api/auth/google
//
// CSRF PROTECTION VIA STATE:
// A random state value goes into a short-lived cookie; the callback
// verifies Google echoed the same value back. That proves the flow was
// started by this server, not forged cross-site.
func (h *AuthHandler) HandleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()

	http.SetCookie(w, &http.Cookie{
		Name:     "oauth_state",
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10 minutes
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.google.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGoogleCallback completes the OAuth flow.
//
// HTTP: GET /api/auth/google/callback?code=xxx&state=yyy
//
// FLOW:
//  1. Validate the state parameter (CSRF check)
//  2. Exchange the code for a Google profile
//  3. Upsert the account and issue a JWT
//  4. Set the session cookie and redirect to the frontend with ?token=
//     (the query token covers SPAs on origins where the cookie won't stick)
func (h *AuthHandler) HandleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	stateCookie, err := r.Cookie("oauth_state")
	if err != nil || stateCookie.Value == "" || r.URL.Query().Get("state") != stateCookie.Value {
		h.logger.Warn("oauth callback: state mismatch or missing")
		h.redirectWithError(w, r, "invalid_state")
		return
	}

	// Single-use: clear the state cookie immediately
	http.SetCookie(w, &http.Cookie{Name: "oauth_state", Value: "", Path: "/", MaxAge: -1})

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("oauth callback: user denied authorization", slog.String("error", errParam))
		h.redirectWithError(w, r, "access_denied")
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		h.redirectWithError(w, r, "missing_code")
		return
	}

	gUser, err := h.google.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("oauth exchange failed", slog.String("error", err.Error()))
		h.redirectWithError(w, r, "exchange_failed")
		return
	}

	result, err := h.service.LoginOrRegisterGoogle(r.Context(), gUser)
	if err != nil {
		h.logger.Error("oauth login failed", slog.String("error", err.Error()))
		h.redirectWithError(w, r, "login_failed")
		return
	}

	h.cookies.Set(w, result.Token)

	redirect := h.frontendURL + "/auth/callback?token=" + url.QueryEscape(result.Token)
	http.Redirect(w, r, redirect, http.StatusTemporaryRedirect)
}

func (h *AuthHandler) redirectWithError(w http.ResponseWriter, r *http.Request, code string) {
	http.Redirect(w, r, h.frontendURL+"/login?error="+url.QueryEscape(code), http.StatusTemporaryRedirect)
}

// HandleLogout clears the session cookie. Stateless JWTs can't be revoked
// server-side; dropping the cookie is the whole operation.
//
// HTTP: POST /api/auth/logout
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	h.cookies.Clear(w)
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// HandleMe returns the authenticated user's own profile.
//
// HTTP: GET /api/auth/me (behind the auth gate)
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		// The gate guarantees this never happens on a wired route.
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{
			Error:   "unauthorized",
			Message: "not logged in",
		})
		return
	}
	writeJSON(w, http.StatusOK, user)
}
