// Package repository defines the storage interfaces the service layer
// programs against. The concrete SQLite implementation lives in the
// sqlite subpackage; tests substitute in-memory mocks.
package repository

import (
	"context"
	"time"

	"github.com/sakif/spillr/internal/model"
)

// FeedbackListOptions selects one owner-dashboard view of a wall's feedback.
//
// Sort chooses the state filter ("active", "answered", "archived"), not a
// column — active items order by created_at DESC (newest unanswered first),
// the other two by updated_at DESC (most recently acted-on first).
type FeedbackListOptions struct {
	Sort  string
	Page  int // 1-based
	Limit int
}

// Offset converts the 1-based page into a row offset.
func (o FeedbackListOptions) Offset() int {
	return (o.Page - 1) * o.Limit
}

// UserRepository persists accounts, their settings, and moderation lists.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)

	// UpsertGoogle creates or refreshes an account keyed by its Google ID.
	// On return user.ID is the canonical internal ID.
	UpsertGoogle(ctx context.Context, user *model.User) error

	UpdateProfile(ctx context.Context, user *model.User) error
	UpdateProfilePicture(ctx context.Context, id, url string) error
	UpdateNotifications(ctx context.Context, id string, prefs model.NotificationPrefs) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	TouchLastLogin(ctx context.Context, id string) error

	BlockUser(ctx context.Context, ownerID, blockedID string) error
	UnblockUser(ctx context.Context, ownerID, blockedID string) error
	BlockIP(ctx context.Context, ownerID, ip string) error
	UnblockIP(ctx context.Context, ownerID, ip string) error

	// Deletion tokens are write-only from the user's perspective: stored by
	// SetDeletionToken, read back only by the confirm endpoint.
	SetDeletionToken(ctx context.Context, id, token string, expiry time.Time) error
	GetDeletionToken(ctx context.Context, id string) (token string, expiry time.Time, err error)

	// Delete hard-deletes the account and, via foreign keys, its walls and
	// their feedback.
	Delete(ctx context.Context, id string) error
}

// WallRepository persists walls. Slugs are globally unique and matched
// case-insensitively on lookup.
type WallRepository interface {
	Create(ctx context.Context, wall *model.Wall) error
	GetByID(ctx context.Context, id string) (*model.Wall, error)
	GetBySlug(ctx context.Context, slug string) (*model.Wall, error)
	UpdateTheme(ctx context.Context, wall *model.Wall) error
}

// FeedbackRepository persists feedback items and their reaction counters.
type FeedbackRepository interface {
	Create(ctx context.Context, fb *model.Feedback) error
	GetByID(ctx context.Context, id string) (*model.Feedback, error)

	// ListForWall returns one page of the chosen view plus the total number
	// of items matching the same filter, from a separate count query.
	ListForWall(ctx context.Context, wallID string, opts FeedbackListOptions) (items []model.Feedback, total int, err error)

	SetAnswer(ctx context.Context, id, answer string) error
	SetArchived(ctx context.Context, id string, archived bool) error

	// AddReaction atomically increments the counter for emoji, creating it
	// at 1 if absent, and returns the new count.
	AddReaction(ctx context.Context, id, emoji string) (int, error)

	// PublicForWall returns answered, unarchived items, most recently
	// updated first, capped at limit.
	PublicForWall(ctx context.Context, wallID string, limit int) ([]model.Feedback, error)
}
