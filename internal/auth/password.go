// Package auth — password hashing and strength policies.
//
// WHY BCRYPT?
// bcrypt is a password hashing function specifically designed to be slow.
// That slowness is a security feature: it makes brute-force attacks
// expensive. It generates and embeds a random salt automatically, so two
// users with the same password get different hashes.
package auth

import (
	"errors"
	"fmt"
	"unicode"

	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/spillr/internal/apperror"
)

// defaultCost is the bcrypt work factor. Cost 12 takes roughly ~250ms on a
// modern server — negligible for login, brutal for attackers.
const defaultCost = 12

// Password strength requirements.
//
// Registration and password *change* deliberately differ: a new account
// needs 8+ characters with three of the four character classes, while
// changing an existing password requires 12+ characters and all four.
const (
	RegisterMinLength = 8
	RegisterMinClass  = 3
	ChangeMinLength   = 12
	ChangeMinClass    = 4
)

// PasswordService provides bcrypt hashing, verification, and strength
// validation.
//
// It's a struct (not free functions) so that the cost can be injected in
// tests — using a lower cost (e.g. 4) makes tests run much faster without
// compromising the logic being tested.
type PasswordService struct {
	cost int
}

// NewPasswordService creates a PasswordService with the default cost (12).
func NewPasswordService() *PasswordService {
	return &PasswordService{cost: defaultCost}
}

// NewPasswordServiceForTest creates a PasswordService with a caller-chosen
// bcrypt cost. Use bcrypt.MinCost (4) in tests to avoid the ~250ms overhead
// of cost 12 per hashing operation. Do NOT use in production.
func NewPasswordServiceForTest(cost int) *PasswordService {
	return &PasswordService{cost: cost}
}

// Hash hashes the given plaintext password with bcrypt.
//
// The output is a self-contained string including the salt and cost —
// store it directly; bcrypt.CompareHashAndPassword knows how to decode it.
//
// Returns an error if the plaintext is too long (>72 bytes — a bcrypt limit
// where longer input would be silently truncated).
func (p *PasswordService) Hash(plaintext string) (string, error) {
	if len(plaintext) > 72 {
		return "", fmt.Errorf("auth: password must be 72 bytes or fewer")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}

	return string(hashed), nil
}

// Verify checks whether a plaintext password matches a stored bcrypt hash.
// Returns nil if they match. bcrypt's comparison is constant-time, so this
// is safe against timing attacks.
func (p *PasswordService) Verify(hash, plaintext string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return fmt.Errorf("auth: invalid password")
		}
		return fmt.Errorf("auth: comparing password hash: %w", err)
	}
	return nil
}

// ValidateNewPassword enforces the registration policy: 8+ characters and
// at least three of {lower, upper, digit, symbol}.
func (p *PasswordService) ValidateNewPassword(plaintext string) error {
	return checkStrength(plaintext, RegisterMinLength, RegisterMinClass)
}

// ValidateChangedPassword enforces the stricter change-password policy:
// 12+ characters and all four character classes.
func (p *PasswordService) ValidateChangedPassword(plaintext string) error {
	return checkStrength(plaintext, ChangeMinLength, ChangeMinClass)
}

// checkStrength counts character classes in the password and compares
// against the given thresholds. Returns a validation AppError naming the
// "password" field so forms can render it inline.
func checkStrength(plaintext string, minLen, minClasses int) error {
	if len(plaintext) < minLen {
		return apperror.ValidationFailed("password",
			fmt.Sprintf("password must be at least %d characters", minLen))
	}

	var lower, upper, digit, symbol bool
	for _, r := range plaintext {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		default:
			symbol = true
		}
	}

	classes := 0
	for _, present := range []bool{lower, upper, digit, symbol} {
		if present {
			classes++
		}
	}
	if classes < minClasses {
		return apperror.ValidationFailed("password",
			fmt.Sprintf("password must mix at least %d of: lowercase, uppercase, digits, symbols", minClasses))
	}

	return nil
}
