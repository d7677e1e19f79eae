package service

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/sakif/spillr/internal/apperror"
	"github.com/sakif/spillr/internal/model"
	"github.com/sakif/spillr/internal/repository"
)

// Slug constraints. Slugs are normalized to lowercase before validation,
// so the pattern only needs the lowercase alphabet.
const (
	MinSlugLength = 2
	MaxSlugLength = 50
)

var (
	slugPattern = regexp.MustCompile(`^[a-z0-9-]+$`)
	hexPattern  = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)
)

// ColorPatch is a partial custom-colour update. Nil fields are left
// untouched; empty strings clear the override back to the theme colour.
type ColorPatch struct {
	Primary    *string `json:"primary"`
	Background *string `json:"background"`
	Accent     *string `json:"accent"`
}

// WallService manages wall creation and display configuration.
type WallService struct {
	walls  repository.WallRepository
	logger *slog.Logger
}

func NewWallService(walls repository.WallRepository, logger *slog.Logger) *WallService {
	return &WallService{walls: walls, logger: logger}
}

// Create registers a new wall for owner under the given slug.
//
// The owner's username is denormalized onto the wall here and never
// re-synced — the wall keeps the branding it was created with even if the
// owner renames later.
func (s *WallService) Create(ctx context.Context, owner *model.User, slug string) (*model.Wall, error) {
	slug = strings.ToLower(strings.TrimSpace(slug))

	if len(slug) < MinSlugLength || len(slug) > MaxSlugLength {
		return nil, apperror.ValidationFailed("slug",
			fmt.Sprintf("slug must be between %d and %d characters", MinSlugLength, MaxSlugLength))
	}
	if !slugPattern.MatchString(slug) {
		return nil, apperror.ValidationFailed("slug",
			"slug may only contain lowercase letters, digits, and hyphens")
	}

	wall := &model.Wall{
		OwnerID:  owner.ID,
		Username: owner.Username,
		Slug:     slug,
		Theme:    model.ThemeDefault,
	}

	if err := s.walls.Create(ctx, wall); err != nil {
		// Conflict (slug taken) propagates as-is for the handler's 409.
		return nil, err
	}

	s.logger.Info("wall created",
		slog.String("wallID", wall.ID),
		slog.String("slug", wall.Slug),
		slog.String("ownerID", owner.ID),
	)

	return wall, nil
}

// GetBySlug resolves a wall for public display. Case-insensitive.
func (s *WallService) GetBySlug(ctx context.Context, slug string) (*model.Wall, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, apperror.ValidationFailed("slug", "wall slug is required")
	}
	return s.walls.GetBySlug(ctx, slug)
}

// UpdateTheme changes a wall's theme and/or custom colours. Owner-gated.
//
// theme == "" means "keep the current theme". Colours are merged
// field-wise: only the fields present in the patch change.
func (s *WallService) UpdateTheme(ctx context.Context, owner *model.User, slug, theme string, colors ColorPatch) (*model.Wall, error) {
	wall, err := s.walls.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if wall.OwnerID != owner.ID {
		return nil, apperror.Forbidden("you do not own this wall")
	}

	if theme != "" {
		if !model.ValidTheme(theme) {
			return nil, apperror.ValidationFailed("theme", fmt.Sprintf("unknown theme %q", theme))
		}
		wall.Theme = theme
	}

	if err := applyColor(&wall.CustomColors.Primary, colors.Primary, "primary"); err != nil {
		return nil, err
	}
	if err := applyColor(&wall.CustomColors.Background, colors.Background, "background"); err != nil {
		return nil, err
	}
	if err := applyColor(&wall.CustomColors.Accent, colors.Accent, "accent"); err != nil {
		return nil, err
	}

	if err := s.walls.UpdateTheme(ctx, wall); err != nil {
		return nil, fmt.Errorf("updating wall theme: %w", err)
	}

	s.logger.Info("wall theme updated",
		slog.String("wallID", wall.ID),
		slog.String("theme", wall.Theme),
	)

	return wall, nil
}

// applyColor validates and merges one colour field from the patch.
func applyColor(dst *string, src *string, field string) error {
	if src == nil {
		return nil
	}
	if *src != "" && !hexPattern.MatchString(*src) {
		return apperror.ValidationFailed(field,
			fmt.Sprintf("%s must be a 3- or 6-digit hex colour like #1a2b3c", field))
	}
	*dst = *src
	return nil
}
