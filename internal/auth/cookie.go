package auth

import (
	"net/http"
	"time"
)

// CookieName is the HttpOnly cookie carrying the access token.
const CookieName = "token"

// Cookies builds the Set-Cookie values used for issuing and clearing the
// auth cookie. One struct so both operations always use the same attribute
// set — a cleared cookie with mismatched Path/SameSite would not actually
// be removed by the browser.
//
// SameSite rules:
//   - Production (HTTPS, SPA on a different origin): Secure + SameSite=None,
//     otherwise the browser drops the cookie on cross-site API calls.
//   - Development (plain HTTP, same host): SameSite=Lax.
type Cookies struct {
	Production bool
}

func (c Cookies) attrs(cookie *http.Cookie) *http.Cookie {
	cookie.Path = "/"
	cookie.HttpOnly = true
	if c.Production {
		cookie.Secure = true
		cookie.SameSite = http.SameSiteNoneMode
	} else {
		cookie.SameSite = http.SameSiteLaxMode
	}
	return cookie
}

// Set writes the token cookie with a Max-Age matching the token TTL.
func (c Cookies) Set(w http.ResponseWriter, token string) {
	http.SetCookie(w, c.attrs(&http.Cookie{
		Name:   CookieName,
		Value:  token,
		MaxAge: int(TokenTTL / time.Second),
	}))
}

// Clear deletes the token cookie. Idempotent — clearing an absent cookie
// is harmless, so every 401 path calls this unconditionally.
func (c Cookies) Clear(w http.ResponseWriter) {
	http.SetCookie(w, c.attrs(&http.Cookie{
		Name:   CookieName,
		Value:  "",
		MaxAge: -1,
	}))
}
