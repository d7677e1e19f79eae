// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, enforces rules, orchestrates
//	Repository (Data layer)  → reads/writes to the database
//
// Services take repository interfaces, not concrete types, so tests can
// inject in-memory mocks and the HTTP layer never touches SQL.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/sakif/spillr/internal/apperror"
	"github.com/sakif/spillr/internal/auth"
	"github.com/sakif/spillr/internal/model"
	"github.com/sakif/spillr/internal/repository"
)

// AuthService handles registration, login, and the Google OAuth upsert.
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger
}

// NewAuthService creates an AuthService with all required dependencies.
func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		logger:    logger,
	}
}

// AuthResult bundles the user record and the issued JWT so the handler can
// set the cookie and respond in one step.
type AuthResult struct {
	User  *model.User
	Token string
}

// Register creates a password-based account and logs it in.
//
// Emails are stored lowercase so GetByEmail is an exact indexed match. The
// registration password policy is the weaker of the two (see
// auth.PasswordService) — tightening happens on change, not signup.
func (s *AuthService) Register(ctx context.Context, email, password, name string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	name = strings.TrimSpace(name)

	if email == "" {
		return nil, apperror.ValidationFailed("email", "email is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperror.ValidationFailed("email", "email is not a valid address")
	}
	if name == "" {
		return nil, apperror.ValidationFailed("name", "name is required")
	}
	if err := s.passwords.ValidateNewPassword(password); err != nil {
		return nil, err
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("service/auth: hashing password: %w", err)
	}

	user := &model.User{
		Email:        email,
		PasswordHash: hash,
		Name:         name,
		// Default username from the email local part; the user can change
		// it later in settings.
		Username: email[:strings.Index(email, "@")],
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, apperror.ValidationFailed("email", "an account with that email already exists")
		}
		return nil, fmt.Errorf("service/auth: creating user: %w", err)
	}

	s.logger.Info("user registered",
		slog.String("userID", user.ID),
		slog.String("email", user.Email),
	)

	return s.issue(user)
}

// Login authenticates a password-based account.
//
// All credential failures collapse to the same invalid_credentials error —
// revealing whether the email exists would let attackers enumerate
// accounts.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthorized(apperror.ReasonInvalidCredentials, "invalid email or password")
		}
		return nil, fmt.Errorf("service/auth: looking up user: %w", err)
	}

	// OAuth accounts have no password to check.
	if user.PasswordHash == "" {
		return nil, apperror.Unauthorized(apperror.ReasonInvalidCredentials, "invalid email or password")
	}
	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		return nil, apperror.Unauthorized(apperror.ReasonInvalidCredentials, "invalid email or password")
	}
	if !user.IsActive {
		return nil, apperror.Unauthorized(apperror.ReasonUserInactive, "account is deactivated")
	}

	if err := s.users.TouchLastLogin(ctx, user.ID); err != nil {
		// Not worth failing the login over.
		s.logger.Warn("failed to update last_login",
			slog.String("userID", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.Info("user logged in", slog.String("userID", user.ID))

	return s.issue(user)
}

// LoginOrRegisterGoogle handles the Google OAuth callback: upsert the
// account keyed by Google ID (create on first login, refresh name/picture
// after), then issue a token.
func (s *AuthService) LoginOrRegisterGoogle(ctx context.Context, gUser *auth.GoogleUser) (*AuthResult, error) {
	if gUser == nil {
		return nil, fmt.Errorf("service/auth: Google user must not be nil")
	}

	username := ""
	if at := strings.Index(gUser.Email, "@"); at > 0 {
		username = strings.ToLower(gUser.Email[:at])
	}

	user := &model.User{
		GoogleID:       gUser.ID,
		Email:          strings.ToLower(gUser.Email),
		Name:           gUser.Name,
		Username:       username,
		ProfilePicture: gUser.Picture,
	}

	if err := s.users.UpsertGoogle(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: upserting google user: %w", err)
	}
	if !user.IsActive {
		// UpsertGoogle on an existing row doesn't reload flags; fetch the
		// canonical record to check.
		full, err := s.users.GetByID(ctx, user.ID)
		if err == nil {
			user = full
		}
		if !user.IsActive {
			return nil, apperror.Unauthorized(apperror.ReasonUserInactive, "account is deactivated")
		}
	}

	if err := s.users.TouchLastLogin(ctx, user.ID); err != nil {
		s.logger.Warn("failed to update last_login",
			slog.String("userID", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.Info("user authenticated via Google", slog.String("userID", user.ID))

	return s.issue(user)
}

// GetUserByID returns the user for the given internal ID.
func (s *AuthService) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, fmt.Errorf("service/auth: user ID must not be empty")
	}
	return s.users.GetByID(ctx, id)
}

func (s *AuthService) issue(user *model.User) (*AuthResult, error) {
	token, err := s.tokens.Generate(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}
	return &AuthResult{User: user, Token: token}, nil
}
