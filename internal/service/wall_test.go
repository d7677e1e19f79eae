package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/sakif/spillr/internal/apperror"
	"github.com/sakif/spillr/internal/model"
	"github.com/sakif/spillr/internal/repository"
)

// =========================================================================
// FAKES AND HELPERS
// =========================================================================

// fakeWallRepo is an in-memory repository.WallRepository.
type fakeWallRepo struct {
	walls  map[string]*model.Wall // keyed by ID
	nextID int
}

var _ repository.WallRepository = (*fakeWallRepo)(nil)

func newFakeWallRepo() *fakeWallRepo {
	return &fakeWallRepo{walls: make(map[string]*model.Wall), nextID: 1}
}

func (f *fakeWallRepo) Create(ctx context.Context, wall *model.Wall) error {
	for _, w := range f.walls {
		if w.Slug == wall.Slug {
			return apperror.Conflict("wall", wall.Slug)
		}
	}
	wall.ID = fmt.Sprintf("wall-%d", f.nextID)
	f.nextID++
	wall.CreatedAt = time.Now()
	wall.UpdatedAt = time.Now()
	copied := *wall
	f.walls[wall.ID] = &copied
	return nil
}

func (f *fakeWallRepo) GetByID(ctx context.Context, id string) (*model.Wall, error) {
	w, ok := f.walls[id]
	if !ok {
		return nil, apperror.NotFound("wall", id)
	}
	copied := *w
	return &copied, nil
}

func (f *fakeWallRepo) GetBySlug(ctx context.Context, slug string) (*model.Wall, error) {
	slug = strings.ToLower(slug)
	for _, w := range f.walls {
		if w.Slug == slug {
			copied := *w
			return &copied, nil
		}
	}
	return nil, apperror.NotFoundMsg("no wall with that slug")
}

func (f *fakeWallRepo) UpdateTheme(ctx context.Context, wall *model.Wall) error {
	stored, ok := f.walls[wall.ID]
	if !ok {
		return apperror.NotFound("wall", wall.ID)
	}
	stored.Theme = wall.Theme
	stored.CustomColors = wall.CustomColors
	stored.UpdatedAt = time.Now()
	return nil
}

func newTestWallService(repo *fakeWallRepo) *WallService {
	return NewWallService(repo, testLogger())
}

func testOwner(id string) *model.User {
	return &model.User{ID: id, Username: "owner"}
}

func strPtr(s string) *string { return &s }

// =========================================================================
// CREATE TESTS
// =========================================================================

func TestWallCreate_NormalizesSlug(t *testing.T) {
	repo := newFakeWallRepo()
	svc := newTestWallService(repo)

	wall, err := svc.Create(context.Background(), testOwner("u1"), "  My-Wall  ")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if wall.Slug != "my-wall" {
		t.Errorf("Slug = %q, want normalized %q", wall.Slug, "my-wall")
	}
	if wall.Theme != model.ThemeDefault {
		t.Errorf("Theme = %q, want default", wall.Theme)
	}
	if wall.Username != "owner" {
		t.Errorf("Username = %q, want denormalized owner username", wall.Username)
	}
}

func TestWallCreate_SlugValidation(t *testing.T) {
	repo := newFakeWallRepo()
	svc := newTestWallService(repo)
	owner := testOwner("u1")

	tests := []struct {
		name string
		slug string
	}{
		{"too short", "a"},
		{"too long", strings.Repeat("a", 51)},
		{"spaces inside", "my wall"},
		{"illegal characters", "my_wall!"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), owner, tt.slug)
			if !errors.Is(err, apperror.ErrValidation) {
				t.Errorf("Create(%q) error = %v, want ErrValidation", tt.slug, err)
			}
		})
	}
}

func TestWallCreate_SlugTaken(t *testing.T) {
	repo := newFakeWallRepo()
	svc := newTestWallService(repo)

	if _, err := svc.Create(context.Background(), testOwner("u1"), "taken"); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// Same slug in different case still collides
	_, err := svc.Create(context.Background(), testOwner("u2"), "TAKEN")
	if !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("Create() error = %v, want ErrConflict", err)
	}
}

// =========================================================================
// THEME TESTS
// =========================================================================

func TestUpdateTheme(t *testing.T) {
	repo := newFakeWallRepo()
	svc := newTestWallService(repo)
	owner := testOwner("u1")

	if _, err := svc.Create(context.Background(), owner, "my-wall"); err != nil {
		t.Fatal(err)
	}

	wall, err := svc.UpdateTheme(context.Background(), owner, "my-wall", model.ThemeDark, ColorPatch{
		Primary: strPtr("#ff0000"),
	})
	if err != nil {
		t.Fatalf("UpdateTheme() error = %v", err)
	}
	if wall.Theme != model.ThemeDark {
		t.Errorf("Theme = %q, want dark", wall.Theme)
	}
	if wall.CustomColors.Primary != "#ff0000" {
		t.Errorf("Primary = %q, want #ff0000", wall.CustomColors.Primary)
	}
}

func TestUpdateTheme_PartialColorPatch(t *testing.T) {
	repo := newFakeWallRepo()
	svc := newTestWallService(repo)
	owner := testOwner("u1")

	if _, err := svc.Create(context.Background(), owner, "my-wall"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.UpdateTheme(context.Background(), owner, "my-wall", "", ColorPatch{
		Primary:    strPtr("#111111"),
		Background: strPtr("#222222"),
	}); err != nil {
		t.Fatal(err)
	}

	// Nil field keeps the current value; empty string clears it
	wall, err := svc.UpdateTheme(context.Background(), owner, "my-wall", "", ColorPatch{
		Background: strPtr(""),
	})
	if err != nil {
		t.Fatalf("UpdateTheme() error = %v", err)
	}
	if wall.CustomColors.Primary != "#111111" {
		t.Errorf("Primary = %q, want untouched #111111", wall.CustomColors.Primary)
	}
	if wall.CustomColors.Background != "" {
		t.Errorf("Background = %q, want cleared", wall.CustomColors.Background)
	}
}

func TestUpdateTheme_Validation(t *testing.T) {
	repo := newFakeWallRepo()
	svc := newTestWallService(repo)
	owner := testOwner("u1")

	if _, err := svc.Create(context.Background(), owner, "my-wall"); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.UpdateTheme(context.Background(), owner, "my-wall", "rainbow", ColorPatch{}); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("unknown theme error = %v, want ErrValidation", err)
	}
	if _, err := svc.UpdateTheme(context.Background(), owner, "my-wall", "", ColorPatch{
		Accent: strPtr("red"),
	}); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("non-hex colour error = %v, want ErrValidation", err)
	}
}

func TestUpdateTheme_NotOwner(t *testing.T) {
	repo := newFakeWallRepo()
	svc := newTestWallService(repo)

	if _, err := svc.Create(context.Background(), testOwner("u1"), "my-wall"); err != nil {
		t.Fatal(err)
	}

	_, err := svc.UpdateTheme(context.Background(), testOwner("u2"), "my-wall", model.ThemeDark, ColorPatch{})
	if !errors.Is(err, apperror.ErrForbidden) {
		t.Errorf("UpdateTheme() by non-owner error = %v, want ErrForbidden", err)
	}
}
