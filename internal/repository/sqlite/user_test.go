package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sakif/spillr/internal/apperror"
	"github.com/sakif/spillr/internal/model"
)

// newTestDB opens a fresh in-memory database. Fast, isolated, destroyed
// when the connection closes.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func createTestUser(t *testing.T, db *DB, email string) *model.User {
	t.Helper()
	user := &model.User{
		Email:        email,
		PasswordHash: "$2a$04$fakehash",
		Name:         "Test User",
		Username:     "testuser",
	}
	if err := db.Users().Create(context.Background(), user); err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// =========================================================================
// CREATE TESTS
// =========================================================================

func TestUserCreate(t *testing.T) {
	db := newTestDB(t)

	user := &model.User{
		Email:        "a@b.com",
		PasswordHash: "hash",
		Name:         "Alice",
		Username:     "a",
	}
	if err := db.Users().Create(context.Background(), user); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if user.ID == "" {
		t.Error("Create() did not set user.ID")
	}
	if user.CreatedAt.IsZero() {
		t.Error("Create() did not set user.CreatedAt")
	}
	if !user.IsActive {
		t.Error("Create() did not mark the user active")
	}
	if user.ProfileVisibility != model.VisibilityPublic {
		t.Errorf("ProfileVisibility = %q, want default %q", user.ProfileVisibility, model.VisibilityPublic)
	}
}

func TestUserCreate_DuplicateEmail(t *testing.T) {
	db := newTestDB(t)
	createTestUser(t, db, "a@b.com")

	dup := &model.User{Email: "a@b.com", PasswordHash: "hash", Name: "Dup", Username: "dup"}
	err := db.Users().Create(context.Background(), dup)
	if !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("Create() duplicate email error = %v, want ErrConflict", err)
	}
}

// =========================================================================
// GET TESTS
// =========================================================================

func TestUserGetByID(t *testing.T) {
	db := newTestDB(t)
	original := createTestUser(t, db, "a@b.com")

	found, err := db.Users().GetByID(context.Background(), original.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if found.Email != "a@b.com" {
		t.Errorf("Email = %q, want %q", found.Email, "a@b.com")
	}
	if found.PasswordHash != original.PasswordHash {
		t.Error("PasswordHash was not persisted")
	}
}

func TestUserGetByID_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.Users().GetByID(context.Background(), "nope")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetByID() error = %v, want ErrNotFound", err)
	}
}

func TestUserGetByEmail(t *testing.T) {
	db := newTestDB(t)
	original := createTestUser(t, db, "a@b.com")

	found, err := db.Users().GetByEmail(context.Background(), "a@b.com")
	if err != nil {
		t.Fatalf("GetByEmail() error = %v", err)
	}
	if found.ID != original.ID {
		t.Errorf("ID = %q, want %q", found.ID, original.ID)
	}
}

// =========================================================================
// GOOGLE UPSERT TESTS
// =========================================================================

func TestUpsertGoogle_InsertThenRefresh(t *testing.T) {
	db := newTestDB(t)

	first := &model.User{
		Email:    "g@gmail.com",
		GoogleID: "google-42",
		Name:     "Original Name",
		Username: "g",
	}
	if err := db.Users().UpsertGoogle(context.Background(), first); err != nil {
		t.Fatalf("UpsertGoogle() insert error = %v", err)
	}
	if first.ID == "" {
		t.Fatal("UpsertGoogle() did not assign an ID on insert")
	}

	// Second login with a changed display name keeps the same row
	second := &model.User{
		Email:    "g@gmail.com",
		GoogleID: "google-42",
		Name:     "Renamed On Google",
		Username: "g",
	}
	if err := db.Users().UpsertGoogle(context.Background(), second); err != nil {
		t.Fatalf("UpsertGoogle() update error = %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("update assigned new ID %q, want %q", second.ID, first.ID)
	}

	found, err := db.Users().GetByID(context.Background(), first.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if found.Name != "Renamed On Google" {
		t.Errorf("Name = %q, want refreshed name", found.Name)
	}
}

// =========================================================================
// UPDATE TESTS
// =========================================================================

func TestUpdateProfile(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "a@b.com")

	user.Bio = "a short bio"
	user.SocialLinks.Twitter = "https://twitter.com/alice"
	user.ProfileVisibility = model.VisibilityPrivate
	if err := db.Users().UpdateProfile(context.Background(), user); err != nil {
		t.Fatalf("UpdateProfile() error = %v", err)
	}

	found, err := db.Users().GetByID(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if found.Bio != "a short bio" {
		t.Errorf("Bio = %q, want %q", found.Bio, "a short bio")
	}
	if found.SocialLinks.Twitter != "https://twitter.com/alice" {
		t.Errorf("Twitter = %q, not persisted", found.SocialLinks.Twitter)
	}
	if found.ProfileVisibility != model.VisibilityPrivate {
		t.Errorf("ProfileVisibility = %q, want private", found.ProfileVisibility)
	}
}

func TestUpdateProfile_MissingUser(t *testing.T) {
	db := newTestDB(t)

	ghost := &model.User{ID: "nope", Name: "Ghost"}
	err := db.Users().UpdateProfile(context.Background(), ghost)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("UpdateProfile() error = %v, want ErrNotFound", err)
	}
}

func TestUpdateNotifications(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "a@b.com")

	err := db.Users().UpdateNotifications(context.Background(), user.ID,
		model.NotificationPrefs{NewFeedback: true})
	if err != nil {
		t.Fatalf("UpdateNotifications() error = %v", err)
	}

	found, _ := db.Users().GetByID(context.Background(), user.ID)
	if !found.Notifications.NewFeedback {
		t.Error("NewFeedback preference was not persisted")
	}
}

func TestTouchLastLogin(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "a@b.com")

	if err := db.Users().TouchLastLogin(context.Background(), user.ID); err != nil {
		t.Fatalf("TouchLastLogin() error = %v", err)
	}

	found, _ := db.Users().GetByID(context.Background(), user.ID)
	if found.LastLogin.IsZero() {
		t.Error("LastLogin is still zero after TouchLastLogin")
	}
}

// =========================================================================
// MODERATION TESTS
// =========================================================================

func TestBlockAndUnblockUser(t *testing.T) {
	db := newTestDB(t)
	owner := createTestUser(t, db, "owner@b.com")
	other := createTestUser(t, db, "other@b.com")

	if err := db.Users().BlockUser(context.Background(), owner.ID, other.ID); err != nil {
		t.Fatalf("BlockUser() error = %v", err)
	}
	// Re-blocking is a no-op, not an error
	if err := db.Users().BlockUser(context.Background(), owner.ID, other.ID); err != nil {
		t.Fatalf("BlockUser() repeat error = %v", err)
	}

	found, _ := db.Users().GetByID(context.Background(), owner.ID)
	if !found.HasBlockedUser(other.ID) {
		t.Fatal("blocked user does not appear in the loaded block list")
	}

	if err := db.Users().UnblockUser(context.Background(), owner.ID, other.ID); err != nil {
		t.Fatalf("UnblockUser() error = %v", err)
	}
	found, _ = db.Users().GetByID(context.Background(), owner.ID)
	if found.HasBlockedUser(other.ID) {
		t.Error("user still blocked after UnblockUser")
	}
}

func TestBlockAndUnblockIP(t *testing.T) {
	db := newTestDB(t)
	owner := createTestUser(t, db, "owner@b.com")

	if err := db.Users().BlockIP(context.Background(), owner.ID, "203.0.113.9"); err != nil {
		t.Fatalf("BlockIP() error = %v", err)
	}

	found, _ := db.Users().GetByID(context.Background(), owner.ID)
	if !found.HasBlockedIP("203.0.113.9") {
		t.Fatal("blocked IP does not appear in the loaded list")
	}

	if err := db.Users().UnblockIP(context.Background(), owner.ID, "203.0.113.9"); err != nil {
		t.Fatalf("UnblockIP() error = %v", err)
	}
	found, _ = db.Users().GetByID(context.Background(), owner.ID)
	if found.HasBlockedIP("203.0.113.9") {
		t.Error("IP still blocked after UnblockIP")
	}
}

// =========================================================================
// DELETION TOKEN + DELETE TESTS
// =========================================================================

func TestDeletionTokenRoundTrip(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "a@b.com")

	expiry := time.Now().Add(24 * time.Hour)
	if err := db.Users().SetDeletionToken(context.Background(), user.ID, "tok-123", expiry); err != nil {
		t.Fatalf("SetDeletionToken() error = %v", err)
	}

	token, gotExpiry, err := db.Users().GetDeletionToken(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("GetDeletionToken() error = %v", err)
	}
	if token != "tok-123" {
		t.Errorf("token = %q, want %q", token, "tok-123")
	}
	if gotExpiry.Unix() != expiry.Unix() {
		t.Errorf("expiry = %v, want %v", gotExpiry, expiry)
	}
}

func TestDelete_CascadesToWallsAndFeedback(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "a@b.com")

	wall := &model.Wall{Slug: "cascade-wall", OwnerID: user.ID}
	if err := db.Walls().Create(context.Background(), wall); err != nil {
		t.Fatalf("wall Create() error = %v", err)
	}
	fb := &model.Feedback{WallID: wall.ID, Question: "gone with the wall?"}
	if err := db.Feedback().Create(context.Background(), fb); err != nil {
		t.Fatalf("feedback Create() error = %v", err)
	}

	if err := db.Users().Delete(context.Background(), user.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	if _, err := db.Users().GetByID(context.Background(), user.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("user still present after Delete: %v", err)
	}
	if _, err := db.Walls().GetByID(context.Background(), wall.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("wall survived owner deletion: %v", err)
	}
	if _, err := db.Feedback().GetByID(context.Background(), fb.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("feedback survived owner deletion: %v", err)
	}
}
