package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/spillr/internal/apperror"
	"github.com/sakif/spillr/internal/auth"
	"github.com/sakif/spillr/internal/model"
	"github.com/sakif/spillr/internal/storage"
)

// =========================================================================
// FAKES AND HELPERS
// =========================================================================

// fakeUploadStore records every call so tests can assert on stored keys
// and cleanup behaviour.
type fakeUploadStore struct {
	saved           map[string]string // key → content type
	deleted         []string
	deletedPrefixes []string
}

var _ storage.UploadStore = (*fakeUploadStore)(nil)

func newFakeUploadStore() *fakeUploadStore {
	return &fakeUploadStore{saved: make(map[string]string)}
}

func (f *fakeUploadStore) Save(ctx context.Context, key, contentType string, r io.Reader) (string, error) {
	f.saved[key] = contentType
	return "/uploads/" + key, nil
}

func (f *fakeUploadStore) Delete(ctx context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	return nil
}

func (f *fakeUploadStore) DeletePrefix(ctx context.Context, prefix string) error {
	f.deletedPrefixes = append(f.deletedPrefixes, prefix)
	return nil
}

type settingsFixture struct {
	svc     *SettingsService
	users   *fakeUserRepo
	uploads *fakeUploadStore
	mailer  *fakeMailer
	user    *model.User
}

func newSettingsFixture(t *testing.T) *settingsFixture {
	t.Helper()

	users := newFakeUserRepo()
	passwords := auth.NewPasswordServiceForTest(bcrypt.MinCost)

	hash, err := passwords.Hash("Current-pass-1!")
	if err != nil {
		t.Fatal(err)
	}
	user := &model.User{
		Email:        "me@b.com",
		Name:         "Me",
		Username:     "me",
		PasswordHash: hash,
	}
	if err := users.Create(context.Background(), user); err != nil {
		t.Fatal(err)
	}

	uploads := newFakeUploadStore()
	mailer := &fakeMailer{}

	return &settingsFixture{
		svc:     NewSettingsService(users, uploads, mailer, passwords, testLogger()),
		users:   users,
		uploads: uploads,
		mailer:  mailer,
		user:    user,
	}
}

// =========================================================================
// PROFILE TESTS
// =========================================================================

func TestUpdateProfile_PatchSemantics(t *testing.T) {
	fx := newSettingsFixture(t)

	// Only bio is patched; everything else stays
	updated, err := fx.svc.UpdateProfile(context.Background(), fx.user, ProfilePatch{
		Bio: strPtr("hello there"),
	})
	if err != nil {
		t.Fatalf("UpdateProfile() error = %v", err)
	}
	if updated.Bio != "hello there" {
		t.Errorf("Bio = %q, want %q", updated.Bio, "hello there")
	}
	if updated.Name != "Me" {
		t.Errorf("Name = %q, want it untouched", updated.Name)
	}
}

func TestUpdateProfile_Validation(t *testing.T) {
	fx := newSettingsFixture(t)

	tests := []struct {
		name  string
		patch ProfilePatch
	}{
		{"empty name", ProfilePatch{Name: strPtr("   ")}},
		{"overlong bio", ProfilePatch{Bio: strPtr(strings.Repeat("x", MaxBioLength+1))}},
		{"non-http link", ProfilePatch{SocialLinks: &model.SocialLinks{Website: "ftp://files.example.com"}}},
		{"link without host", ProfilePatch{SocialLinks: &model.SocialLinks{Twitter: "https://"}}},
		{"unknown visibility", ProfilePatch{Visibility: strPtr("everyone")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := fx.svc.UpdateProfile(context.Background(), fx.user, tt.patch)
			if !errors.Is(err, apperror.ErrValidation) {
				t.Errorf("UpdateProfile() error = %v, want ErrValidation", err)
			}
		})
	}
}

func TestUpdateProfile_SocialLinksAndVisibility(t *testing.T) {
	fx := newSettingsFixture(t)

	updated, err := fx.svc.UpdateProfile(context.Background(), fx.user, ProfilePatch{
		SocialLinks: &model.SocialLinks{Website: "https://example.com"},
		Visibility:  strPtr(model.VisibilityPrivate),
	})
	if err != nil {
		t.Fatalf("UpdateProfile() error = %v", err)
	}
	if updated.SocialLinks.Website != "https://example.com" {
		t.Errorf("Website = %q", updated.SocialLinks.Website)
	}
	if updated.ProfileVisibility != model.VisibilityPrivate {
		t.Errorf("ProfileVisibility = %q, want private", updated.ProfileVisibility)
	}
}

// =========================================================================
// PROFILE PICTURE TESTS
// =========================================================================

// pngBytes is a minimal buffer that http.DetectContentType sniffs as
// image/png.
func pngBytes() []byte {
	return append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 64)...)
}

func TestUpdateProfilePicture(t *testing.T) {
	fx := newSettingsFixture(t)

	updated, err := fx.svc.UpdateProfilePicture(context.Background(), fx.user, bytes.NewReader(pngBytes()))
	if err != nil {
		t.Fatalf("UpdateProfilePicture() error = %v", err)
	}
	if updated.ProfilePicture == "" {
		t.Fatal("ProfilePicture not set")
	}

	if len(fx.uploads.saved) != 1 {
		t.Fatalf("saved %d files, want 1", len(fx.uploads.saved))
	}
	for key, contentType := range fx.uploads.saved {
		// Keys carry the owner's ID so DeletePrefix can sweep them on
		// account deletion
		if !strings.HasPrefix(key, fx.user.ID+"-") {
			t.Errorf("upload key = %q, want %q prefix", key, fx.user.ID+"-")
		}
		if !strings.HasSuffix(key, ".png") {
			t.Errorf("upload key = %q, want .png extension", key)
		}
		if contentType != "image/png" {
			t.Errorf("content type = %q, want image/png", contentType)
		}
	}
}

func TestUpdateProfilePicture_ReplacesOldPicture(t *testing.T) {
	fx := newSettingsFixture(t)

	first, err := fx.svc.UpdateProfilePicture(context.Background(), fx.user, bytes.NewReader(pngBytes()))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fx.svc.UpdateProfilePicture(context.Background(), first, bytes.NewReader(pngBytes())); err != nil {
		t.Fatal(err)
	}

	if len(fx.uploads.deleted) != 1 {
		t.Fatalf("deleted %d files, want 1 (the replaced picture)", len(fx.uploads.deleted))
	}
	if !strings.HasPrefix(fx.uploads.deleted[0], fx.user.ID+"-") {
		t.Errorf("deleted key = %q, want the old upload", fx.uploads.deleted[0])
	}
}

func TestUpdateProfilePicture_RejectsNonImage(t *testing.T) {
	fx := newSettingsFixture(t)

	_, err := fx.svc.UpdateProfilePicture(context.Background(), fx.user,
		strings.NewReader("#!/bin/sh\nrm -rf /\n"))
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("UpdateProfilePicture() error = %v, want ErrValidation", err)
	}
	if len(fx.uploads.saved) != 0 {
		t.Error("rejected upload was still saved")
	}
}

func TestUpdateProfilePicture_RejectsEmptyAndOversize(t *testing.T) {
	fx := newSettingsFixture(t)

	if _, err := fx.svc.UpdateProfilePicture(context.Background(), fx.user, strings.NewReader("")); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("empty upload error = %v, want ErrValidation", err)
	}

	big := append(pngBytes(), make([]byte, MaxUploadBytes)...)
	if _, err := fx.svc.UpdateProfilePicture(context.Background(), fx.user, bytes.NewReader(big)); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("oversize upload error = %v, want ErrValidation", err)
	}
}

// =========================================================================
// PASSWORD TESTS
// =========================================================================

func TestChangePassword(t *testing.T) {
	fx := newSettingsFixture(t)

	err := fx.svc.ChangePassword(context.Background(), fx.user, "Current-pass-1!", "Brand-new-pass-2!")
	if err != nil {
		t.Fatalf("ChangePassword() error = %v", err)
	}

	stored, err := fx.users.GetByID(context.Background(), fx.user.ID)
	if err != nil {
		t.Fatal(err)
	}
	passwords := auth.NewPasswordServiceForTest(bcrypt.MinCost)
	if err := passwords.Verify(stored.PasswordHash, "Brand-new-pass-2!"); err != nil {
		t.Errorf("new password does not verify against stored hash: %v", err)
	}
}

func TestChangePassword_WrongCurrent(t *testing.T) {
	fx := newSettingsFixture(t)

	err := fx.svc.ChangePassword(context.Background(), fx.user, "not-my-password", "Brand-new-pass-2!")
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("ChangePassword() error = %v, want ErrValidation", err)
	}
}

func TestChangePassword_WeakNewPassword(t *testing.T) {
	fx := newSettingsFixture(t)

	// Meets the registration policy but not the stricter change policy
	err := fx.svc.ChangePassword(context.Background(), fx.user, "Current-pass-1!", "Abcdef12")
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("ChangePassword() error = %v, want ErrValidation", err)
	}
}

func TestChangePassword_OAuthAccount(t *testing.T) {
	fx := newSettingsFixture(t)

	google := &model.User{Email: "g@b.com", Name: "G", Username: "g", GoogleID: "google-123"}
	if err := fx.users.Create(context.Background(), google); err != nil {
		t.Fatal(err)
	}

	err := fx.svc.ChangePassword(context.Background(), google, "whatever", "Brand-new-pass-2!")
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("ChangePassword() on OAuth account error = %v, want ErrValidation", err)
	}
}

// =========================================================================
// MODERATION TESTS
// =========================================================================

func TestBlockUser(t *testing.T) {
	fx := newSettingsFixture(t)

	other := &model.User{Email: "other@b.com", Name: "Other", Username: "other"}
	if err := fx.users.Create(context.Background(), other); err != nil {
		t.Fatal(err)
	}

	if err := fx.svc.BlockUser(context.Background(), fx.user, other.ID); err != nil {
		t.Fatalf("BlockUser() error = %v", err)
	}

	stored, err := fx.users.GetByID(context.Background(), fx.user.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !stored.HasBlockedUser(other.ID) {
		t.Error("blocked user not recorded")
	}

	if err := fx.svc.UnblockUser(context.Background(), fx.user, other.ID); err != nil {
		t.Fatalf("UnblockUser() error = %v", err)
	}
	stored, _ = fx.users.GetByID(context.Background(), fx.user.ID)
	if stored.HasBlockedUser(other.ID) {
		t.Error("user still blocked after unblock")
	}
}

func TestBlockUser_Self(t *testing.T) {
	fx := newSettingsFixture(t)

	err := fx.svc.BlockUser(context.Background(), fx.user, fx.user.ID)
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("BlockUser(self) error = %v, want ErrValidation", err)
	}
}

func TestBlockUser_UnknownTarget(t *testing.T) {
	fx := newSettingsFixture(t)

	err := fx.svc.BlockUser(context.Background(), fx.user, "no-such-user")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("BlockUser() error = %v, want ErrNotFound", err)
	}
}

func TestBlockIP(t *testing.T) {
	fx := newSettingsFixture(t)

	if err := fx.svc.BlockIP(context.Background(), fx.user, "203.0.113.5"); err != nil {
		t.Fatalf("BlockIP() error = %v", err)
	}
	stored, _ := fx.users.GetByID(context.Background(), fx.user.ID)
	if !stored.HasBlockedIP("203.0.113.5") {
		t.Error("blocked IP not recorded")
	}

	if err := fx.svc.UnblockIP(context.Background(), fx.user, "203.0.113.5"); err != nil {
		t.Fatalf("UnblockIP() error = %v", err)
	}
	stored, _ = fx.users.GetByID(context.Background(), fx.user.ID)
	if stored.HasBlockedIP("203.0.113.5") {
		t.Error("IP still blocked after unblock")
	}
}

// =========================================================================
// ACCOUNT DELETION TESTS
// =========================================================================

func TestRequestAccountDeletion(t *testing.T) {
	fx := newSettingsFixture(t)

	err := fx.svc.RequestAccountDeletion(context.Background(), fx.user, "https://app.example.com/delete-account/confirm")
	if err != nil {
		t.Fatalf("RequestAccountDeletion() error = %v", err)
	}

	token, expiry, err := fx.users.GetDeletionToken(context.Background(), fx.user.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(token) != 64 {
		t.Errorf("token length = %d, want 64 hex chars", len(token))
	}
	until := time.Until(expiry)
	if until < 23*time.Hour || until > 25*time.Hour {
		t.Errorf("token expiry %v from now, want about 24h", until)
	}

	// Confirmation email is async; poll briefly
	deadline := time.Now().Add(time.Second)
	for fx.mailer.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if fx.mailer.count() != 1 {
		t.Errorf("sent %d emails, want 1", fx.mailer.count())
	}
}

func TestConfirmAccountDeletion(t *testing.T) {
	fx := newSettingsFixture(t)

	if err := fx.svc.RequestAccountDeletion(context.Background(), fx.user, "https://app.example.com/confirm"); err != nil {
		t.Fatal(err)
	}
	token, _, err := fx.users.GetDeletionToken(context.Background(), fx.user.ID)
	if err != nil {
		t.Fatal(err)
	}

	if err := fx.svc.ConfirmAccountDeletion(context.Background(), fx.user.ID, token); err != nil {
		t.Fatalf("ConfirmAccountDeletion() error = %v", err)
	}

	if _, err := fx.users.GetByID(context.Background(), fx.user.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetByID() after deletion error = %v, want ErrNotFound", err)
	}
	// Uploads swept by owner-ID prefix
	if len(fx.uploads.deletedPrefixes) != 1 || fx.uploads.deletedPrefixes[0] != fx.user.ID+"-" {
		t.Errorf("deletedPrefixes = %v, want [%q]", fx.uploads.deletedPrefixes, fx.user.ID+"-")
	}
}

func TestConfirmAccountDeletion_WrongToken(t *testing.T) {
	fx := newSettingsFixture(t)

	if err := fx.svc.RequestAccountDeletion(context.Background(), fx.user, "https://app.example.com/confirm"); err != nil {
		t.Fatal(err)
	}

	err := fx.svc.ConfirmAccountDeletion(context.Background(), fx.user.ID, "0000000000000000000000000000000000000000000000000000000000000000")
	if !errors.Is(err, apperror.ErrForbidden) {
		t.Errorf("ConfirmAccountDeletion() error = %v, want ErrForbidden", err)
	}
	if _, err := fx.users.GetByID(context.Background(), fx.user.ID); err != nil {
		t.Error("user deleted despite wrong token")
	}
}

func TestConfirmAccountDeletion_NoPendingRequest(t *testing.T) {
	fx := newSettingsFixture(t)

	err := fx.svc.ConfirmAccountDeletion(context.Background(), fx.user.ID, "some-token")
	if !errors.Is(err, apperror.ErrForbidden) {
		t.Errorf("ConfirmAccountDeletion() error = %v, want ErrForbidden", err)
	}
}

func TestConfirmAccountDeletion_ExpiredToken(t *testing.T) {
	fx := newSettingsFixture(t)

	if err := fx.users.SetDeletionToken(context.Background(), fx.user.ID, "expired-token",
		time.Now().Add(-time.Minute)); err != nil {
		t.Fatal(err)
	}

	err := fx.svc.ConfirmAccountDeletion(context.Background(), fx.user.ID, "expired-token")
	if !errors.Is(err, apperror.ErrForbidden) {
		t.Errorf("ConfirmAccountDeletion() error = %v, want ErrForbidden", err)
	}
}
