// Package auth provides JWT token generation and validation for the Spillr API.
//
// AUTHENTICATION FLOW OVERVIEW:
// 1. User registers or logs in (email/password), or completes Google OAuth
// 2. Server issues a JWT access token, stores it in an HttpOnly cookie and
//    returns it in the response body for Bearer-header clients
// 3. On subsequent API calls, middleware reads the cookie (or Authorization
//    header), validates the JWT, loads the user, and puts it in the request
//    context
//
// WHY JWT?
// JWT (JSON Web Token) is stateless — the server doesn't need to store
// session data. All the information needed (userID, email, expiry) is inside
// the signed token. The signature ensures nobody can tamper with it without
// the secret key.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenTTL is the access-token lifetime. Seven days matches the cookie
// Max-Age set at login, so the cookie and the token inside it expire
// together.
const TokenTTL = 7 * 24 * time.Hour

const issuer = "spillr"

// Sentinel errors so the middleware can distinguish an expired token (the
// client should silently re-authenticate) from a tampered or malformed one.
var (
	ErrTokenExpired = errors.New("auth: token expired")
	ErrTokenInvalid = errors.New("auth: invalid token")
)

// Claims is the validated content of an access token.
type Claims struct {
	UserID string
	Email  string
}

// tokenClaims is the JWT payload. It embeds jwt.RegisteredClaims (Subject,
// ExpiresAt, IssuedAt, Issuer) and adds the account email so the client can
// render it without an extra round trip.
type tokenClaims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// TokenService handles JWT creation and validation.
//
// It holds the HMAC secret key used to sign and verify tokens. The same
// secret must be used for both operations — keep it safe, rotate it
// periodically in production.
type TokenService struct {
	secret []byte
}

// NewTokenService creates a TokenService with the given secret.
// The secret should be at least 32 bytes of random data in production.
// Example: JWT_SECRET=$(openssl rand -hex 32)
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < 20 {
		return nil, errors.New("auth: JWT secret must be at least 20 characters")
	}
	return &TokenService{secret: []byte(secret)}, nil
}

// Generate creates and signs a new JWT access token for the given user.
//
// Signing algorithm: HS256 (HMAC-SHA256) — symmetric, fast, and sufficient
// for a single-server deployment where the same process signs and verifies.
func (s *TokenService) Generate(userID, email string) (string, error) {
	return s.GenerateWithDuration(userID, email, TokenTTL)
}

// GenerateWithDuration creates a token with a custom expiry duration.
// Used in tests to mint already-expired tokens.
func (s *TokenService) GenerateWithDuration(userID, email string, d time.Duration) (string, error) {
	now := time.Now()

	c := tokenClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

// Validate parses and verifies a JWT string, returning its claims.
//
// VALIDATION CHECKS (performed by the jwt library):
//   - Signature is valid (wasn't tampered with)
//   - Token is not expired (ExpiresAt is in the future)
//   - Issuer matches "spillr" (prevents tokens from other apps)
//   - Algorithm is HS256 (prevents algorithm confusion attacks)
func (s *TokenService) Validate(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&tokenClaims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	c, ok := token.Claims.(*tokenClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	if c.Subject == "" {
		return nil, fmt.Errorf("%w: token has no subject", ErrTokenInvalid)
	}

	return &Claims{UserID: c.Subject, Email: c.Email}, nil
}
