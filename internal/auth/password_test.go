package auth

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/spillr/internal/apperror"
)

// bcrypt.MinCost keeps the hash under a millisecond; the logic under test
// is identical at any cost.
func newTestPasswordService() *PasswordService {
	return NewPasswordServiceForTest(bcrypt.MinCost)
}

// =========================================================================
// HASH + VERIFY TESTS
// =========================================================================

func TestHashAndVerify(t *testing.T) {
	ps := newTestPasswordService()

	hash, err := ps.Hash("Correct-Horse-1")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if hash == "Correct-Horse-1" {
		t.Fatal("Hash() returned the plaintext")
	}

	if err := ps.Verify(hash, "Correct-Horse-1"); err != nil {
		t.Errorf("Verify() with correct password: %v", err)
	}
	if err := ps.Verify(hash, "wrong-password"); err == nil {
		t.Error("Verify() accepted the wrong password")
	}
}

func TestHash_SaltsAreRandom(t *testing.T) {
	ps := newTestPasswordService()

	h1, err := ps.Hash("same-Password-1")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	h2, err := ps.Hash("same-Password-1")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if h1 == h2 {
		t.Error("two hashes of the same password are identical — salt missing?")
	}
}

func TestHash_RejectsOverlongPassword(t *testing.T) {
	ps := newTestPasswordService()

	// bcrypt silently truncates beyond 72 bytes; we reject instead
	if _, err := ps.Hash(strings.Repeat("a", 73)); err == nil {
		t.Error("Hash() accepted a 73-byte password")
	}
}

// =========================================================================
// STRENGTH POLICY TESTS
// =========================================================================

func TestValidateNewPassword(t *testing.T) {
	ps := newTestPasswordService()

	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{"three classes, 8 chars", "Abcdef12", false},
		{"lower+digit+symbol", "abcdef1!", false},
		{"too short", "Abc1!", true},
		{"only two classes", "abcdefg1", true},
		{"only one class", "abcdefgh", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ps.ValidateNewPassword(tt.password)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateNewPassword(%q) error = %v, wantErr %v", tt.password, err, tt.wantErr)
			}
		})
	}
}

func TestValidateChangedPassword(t *testing.T) {
	ps := newTestPasswordService()

	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{"all four classes, 12 chars", "Abcdefgh12!x", false},
		{"valid at registration but too short for change", "Abcdef12", true},
		{"long but only three classes", "Abcdefghij12", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ps.ValidateChangedPassword(tt.password)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateChangedPassword(%q) error = %v, wantErr %v", tt.password, err, tt.wantErr)
			}
		})
	}
}

func TestStrengthErrors_AreValidationErrors(t *testing.T) {
	ps := newTestPasswordService()

	err := ps.ValidateNewPassword("short")
	if !errors.Is(err, apperror.ErrValidation) {
		t.Fatalf("error = %v, want ErrValidation", err)
	}

	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		t.Fatal("error is not an *AppError")
	}
	if appErr.Field != "password" {
		t.Errorf("Field = %q, want %q", appErr.Field, "password")
	}
}
