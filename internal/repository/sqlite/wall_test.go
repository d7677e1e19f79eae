package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/sakif/spillr/internal/apperror"
	"github.com/sakif/spillr/internal/model"
)

func createTestWall(t *testing.T, db *DB, ownerID, slug string) *model.Wall {
	t.Helper()
	wall := &model.Wall{OwnerID: ownerID, Username: "testuser", Slug: slug}
	if err := db.Walls().Create(context.Background(), wall); err != nil {
		t.Fatalf("failed to create test wall: %v", err)
	}
	return wall
}

// =========================================================================
// CREATE TESTS
// =========================================================================

func TestWallCreate(t *testing.T) {
	db := newTestDB(t)
	owner := createTestUser(t, db, "a@b.com")

	wall := &model.Wall{OwnerID: owner.ID, Username: owner.Username, Slug: "my-wall"}
	if err := db.Walls().Create(context.Background(), wall); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if wall.ID == "" {
		t.Error("Create() did not set wall.ID")
	}
	if wall.Theme != model.ThemeDefault {
		t.Errorf("Theme = %q, want default theme", wall.Theme)
	}
}

func TestWallCreate_DuplicateSlug(t *testing.T) {
	db := newTestDB(t)
	owner := createTestUser(t, db, "a@b.com")
	createTestWall(t, db, owner.ID, "taken")

	dup := &model.Wall{OwnerID: owner.ID, Slug: "taken"}
	err := db.Walls().Create(context.Background(), dup)
	if !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("Create() duplicate slug error = %v, want ErrConflict", err)
	}
}

// =========================================================================
// LOOKUP TESTS
// =========================================================================

func TestWallGetBySlug_CaseInsensitive(t *testing.T) {
	db := newTestDB(t)
	owner := createTestUser(t, db, "a@b.com")
	original := createTestWall(t, db, owner.ID, "my-wall")

	for _, lookup := range []string{"my-wall", "MY-WALL", "My-Wall"} {
		found, err := db.Walls().GetBySlug(context.Background(), lookup)
		if err != nil {
			t.Fatalf("GetBySlug(%q) error = %v", lookup, err)
		}
		if found.ID != original.ID {
			t.Errorf("GetBySlug(%q) ID = %q, want %q", lookup, found.ID, original.ID)
		}
	}
}

func TestWallGetBySlug_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.Walls().GetBySlug(context.Background(), "nope")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetBySlug() error = %v, want ErrNotFound", err)
	}
}

// =========================================================================
// THEME TESTS
// =========================================================================

func TestWallUpdateTheme(t *testing.T) {
	db := newTestDB(t)
	owner := createTestUser(t, db, "a@b.com")
	wall := createTestWall(t, db, owner.ID, "my-wall")

	wall.Theme = model.ThemeMidnight
	wall.CustomColors = model.CustomColors{Primary: "#ff0000", Accent: "#00ff00"}
	if err := db.Walls().UpdateTheme(context.Background(), wall); err != nil {
		t.Fatalf("UpdateTheme() error = %v", err)
	}

	found, err := db.Walls().GetByID(context.Background(), wall.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if found.Theme != model.ThemeMidnight {
		t.Errorf("Theme = %q, want midnight", found.Theme)
	}
	if found.CustomColors.Primary != "#ff0000" {
		t.Errorf("Primary = %q, not persisted", found.CustomColors.Primary)
	}
	if found.CustomColors.Background != "" {
		t.Errorf("Background = %q, want empty", found.CustomColors.Background)
	}
}

func TestWallUpdateTheme_MissingWall(t *testing.T) {
	db := newTestDB(t)

	ghost := &model.Wall{ID: "nope", Theme: model.ThemeDark}
	err := db.Walls().UpdateTheme(context.Background(), ghost)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("UpdateTheme() error = %v, want ErrNotFound", err)
	}
}
