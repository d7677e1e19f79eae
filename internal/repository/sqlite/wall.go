package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/spillr/internal/apperror"
	"github.com/sakif/spillr/internal/model"
	"github.com/sakif/spillr/internal/repository"
)

// WallDB implements repository.WallRepository over the shared pool.
type WallDB struct {
	conn *sql.DB
}

// Compile-time interface check.
var _ repository.WallRepository = (*WallDB)(nil)

const wallColumns = `id, owner_id, username, slug, theme,
	color_primary, color_background, color_accent, created_at, updated_at`

func scanWall(row *sql.Row) (*model.Wall, error) {
	var w model.Wall
	err := row.Scan(
		&w.ID, &w.OwnerID, &w.Username, &w.Slug, &w.Theme,
		&w.CustomColors.Primary, &w.CustomColors.Background,
		&w.CustomColors.Accent, &w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// Create inserts a new wall. Slugs are stored lowercase (the service
// normalizes them), so the UNIQUE constraint doubles as the
// case-insensitive collision check — a duplicate maps to Conflict.
func (db *WallDB) Create(ctx context.Context, wall *model.Wall) error {
	wall.ID = xid.New().String()
	now := time.Now()
	wall.CreatedAt = now
	wall.UpdatedAt = now
	if wall.Theme == "" {
		wall.Theme = model.ThemeDefault
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO walls (id, owner_id, username, slug, theme,
			color_primary, color_background, color_accent, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		wall.ID, wall.OwnerID, wall.Username, wall.Slug, wall.Theme,
		wall.CustomColors.Primary, wall.CustomColors.Background,
		wall.CustomColors.Accent, wall.CreatedAt, wall.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("wall", wall.Slug)
		}
		return fmt.Errorf("sqlite: inserting wall: %w", err)
	}

	return nil
}

func (db *WallDB) GetByID(ctx context.Context, id string) (*model.Wall, error) {
	wall, err := scanWall(db.conn.QueryRowContext(ctx,
		`SELECT `+wallColumns+` FROM walls WHERE id = ?`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("wall", id)
		}
		return nil, fmt.Errorf("sqlite: getting wall %s: %w", id, err)
	}
	return wall, nil
}

// GetBySlug resolves a slug case-insensitively. Stored slugs are
// already lowercase, so lowering the input gives an exact indexed match.
func (db *WallDB) GetBySlug(ctx context.Context, slug string) (*model.Wall, error) {
	wall, err := scanWall(db.conn.QueryRowContext(ctx,
		`SELECT `+wallColumns+` FROM walls WHERE slug = ?`,
		strings.ToLower(slug)))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFoundMsg(fmt.Sprintf("no wall with slug %q", slug))
		}
		return nil, fmt.Errorf("sqlite: getting wall by slug %q: %w", slug, err)
	}
	return wall, nil
}

// UpdateTheme persists the theme and custom colours. The service layer
// has already merged partial colour updates into the loaded wall, so this
// is a plain write of the final values.
func (db *WallDB) UpdateTheme(ctx context.Context, wall *model.Wall) error {
	wall.UpdatedAt = time.Now()

	result, err := db.conn.ExecContext(ctx,
		`UPDATE walls SET theme = ?, color_primary = ?, color_background = ?,
			color_accent = ?, updated_at = ?
		 WHERE id = ?`,
		wall.Theme, wall.CustomColors.Primary, wall.CustomColors.Background,
		wall.CustomColors.Accent, wall.UpdatedAt, wall.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating wall theme %s: %w", wall.ID, err)
	}
	return requireRow(result, "wall", wall.ID)
}
