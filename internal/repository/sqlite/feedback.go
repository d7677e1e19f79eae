package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/spillr/internal/apperror"
	"github.com/sakif/spillr/internal/model"
	"github.com/sakif/spillr/internal/repository"
)

// FeedbackDB implements repository.FeedbackRepository over the shared pool.
type FeedbackDB struct {
	conn *sql.DB
}

// Compile-time interface check.
var _ repository.FeedbackRepository = (*FeedbackDB)(nil)

const feedbackColumns = `id, wall_id, question, answer, is_answered, is_archived,
	created_at, updated_at`

// Create inserts a new feedback item in its initial state: unanswered,
// unarchived, no reactions.
func (db *FeedbackDB) Create(ctx context.Context, fb *model.Feedback) error {
	fb.ID = xid.New().String()
	now := time.Now()
	fb.CreatedAt = now
	fb.UpdatedAt = now
	fb.IsAnswered = false
	fb.IsArchived = false
	if fb.Reactions == nil {
		fb.Reactions = map[string]int{}
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO feedback (id, wall_id, question, answer, is_answered,
			is_archived, created_at, updated_at)
		 VALUES (?, ?, ?, '', 0, 0, ?, ?)`,
		fb.ID, fb.WallID, fb.Question, fb.CreatedAt, fb.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting feedback: %w", err)
	}

	return nil
}

// GetByID retrieves one feedback item with its reaction counts.
func (db *FeedbackDB) GetByID(ctx context.Context, id string) (*model.Feedback, error) {
	var fb model.Feedback
	err := db.conn.QueryRowContext(ctx,
		`SELECT `+feedbackColumns+` FROM feedback WHERE id = ?`, id,
	).Scan(
		&fb.ID, &fb.WallID, &fb.Question, &fb.Answer,
		&fb.IsAnswered, &fb.IsArchived, &fb.CreatedAt, &fb.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("feedback", id)
		}
		return nil, fmt.Errorf("sqlite: getting feedback %s: %w", id, err)
	}

	if err := db.loadReactions(ctx, []*model.Feedback{&fb}); err != nil {
		return nil, err
	}
	return &fb, nil
}

// viewFilter maps a sort mode to its WHERE clause and ordering column.
//
// Archived overrides answered: an answered item that was later archived
// shows up only in the archived view, matching what the owner dashboard
// renders.
func viewFilter(sort string) (where, orderBy string) {
	switch sort {
	case model.SortAnswered:
		return "is_answered = 1 AND is_archived = 0", "updated_at DESC"
	case model.SortArchived:
		return "is_archived = 1", "updated_at DESC"
	default: // active
		return "is_answered = 0 AND is_archived = 0", "created_at DESC"
	}
}

// ListForWall returns one page of the chosen view plus the total count over
// the same filter. The count is a separate query; the two can in principle
// race with a concurrent insert, which only skews the page metadata by one.
func (db *FeedbackDB) ListForWall(ctx context.Context, wallID string, opts repository.FeedbackListOptions) ([]model.Feedback, int, error) {
	where, orderBy := viewFilter(opts.Sort)

	var total int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM feedback WHERE wall_id = ? AND `+where, wallID,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("sqlite: counting feedback: %w", err)
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+feedbackColumns+` FROM feedback
		 WHERE wall_id = ? AND `+where+`
		 ORDER BY `+orderBy+`
		 LIMIT ? OFFSET ?`,
		wallID, opts.Limit, opts.Offset(),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("sqlite: listing feedback: %w", err)
	}
	defer rows.Close()

	items, err := scanFeedbackRows(rows, opts.Limit)
	if err != nil {
		return nil, 0, err
	}

	if err := db.loadReactionsFor(ctx, items); err != nil {
		return nil, 0, err
	}

	return items, total, nil
}

// SetAnswer records the owner's answer and marks the item answered.
// Re-answering overwrites the previous answer — last write wins, no error.
func (db *FeedbackDB) SetAnswer(ctx context.Context, id, answer string) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE feedback SET answer = ?, is_answered = 1, updated_at = ?
		 WHERE id = ?`,
		answer, time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: answering feedback %s: %w", id, err)
	}
	return requireRow(result, "feedback", id)
}

// SetArchived flips the archive flag. Independent of the answered state.
func (db *FeedbackDB) SetArchived(ctx context.Context, id string, archived bool) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE feedback SET is_archived = ?, updated_at = ? WHERE id = ?`,
		archived, time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: archiving feedback %s: %w", id, err)
	}
	return requireRow(result, "feedback", id)
}

// AddReaction atomically bumps the counter for emoji.
//
// The UPSERT makes the increment a single statement executed inside SQLite,
// so two simultaneous reactions serialize in the storage engine and neither
// increment is lost — there is no read-modify-write window in Go.
func (db *FeedbackDB) AddReaction(ctx context.Context, id, emoji string) (int, error) {
	// Validate the feedback exists first so a bad ID maps to 404 rather
	// than silently inserting an orphan (the FK would reject it anyway,
	// but with an opaque constraint error).
	var exists int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM feedback WHERE id = ?`, id,
	).Scan(&exists)
	if err != nil {
		return 0, fmt.Errorf("sqlite: checking feedback %s: %w", id, err)
	}
	if exists == 0 {
		return 0, apperror.NotFound("feedback", id)
	}

	var count int
	err = db.conn.QueryRowContext(ctx,
		`INSERT INTO feedback_reactions (feedback_id, emoji, count)
		 VALUES (?, ?, 1)
		 ON CONFLICT (feedback_id, emoji) DO UPDATE SET count = count + 1
		 RETURNING count`,
		id, emoji,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("sqlite: adding reaction to %s: %w", id, err)
	}

	return count, nil
}

// PublicForWall returns the publicly visible feed: answered, unarchived,
// most recently updated first, capped at limit.
func (db *FeedbackDB) PublicForWall(ctx context.Context, wallID string, limit int) ([]model.Feedback, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+feedbackColumns+` FROM feedback
		 WHERE wall_id = ? AND is_answered = 1 AND is_archived = 0
		 ORDER BY updated_at DESC
		 LIMIT ?`,
		wallID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing public feedback: %w", err)
	}
	defer rows.Close()

	items, err := scanFeedbackRows(rows, limit)
	if err != nil {
		return nil, err
	}

	if err := db.loadReactionsFor(ctx, items); err != nil {
		return nil, err
	}
	return items, nil
}

func scanFeedbackRows(rows *sql.Rows, capacity int) ([]model.Feedback, error) {
	items := make([]model.Feedback, 0, capacity)
	for rows.Next() {
		var fb model.Feedback
		if err := rows.Scan(
			&fb.ID, &fb.WallID, &fb.Question, &fb.Answer,
			&fb.IsAnswered, &fb.IsArchived, &fb.CreatedAt, &fb.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning feedback row: %w", err)
		}
		fb.Reactions = map[string]int{}
		items = append(items, fb)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating feedback: %w", err)
	}
	return items, nil
}

// loadReactionsFor fills reaction maps for a page of feedback items.
func (db *FeedbackDB) loadReactionsFor(ctx context.Context, items []model.Feedback) error {
	ptrs := make([]*model.Feedback, len(items))
	for i := range items {
		ptrs[i] = &items[i]
	}
	return db.loadReactions(ctx, ptrs)
}

// loadReactions fetches reaction rows for the given items in one query.
func (db *FeedbackDB) loadReactions(ctx context.Context, items []*model.Feedback) error {
	if len(items) == 0 {
		return nil
	}

	byID := make(map[string]*model.Feedback, len(items))
	placeholders := ""
	args := make([]any, 0, len(items))
	for i, fb := range items {
		if fb.Reactions == nil {
			fb.Reactions = map[string]int{}
		}
		byID[fb.ID] = fb
		if i > 0 {
			placeholders += ", "
		}
		placeholders += "?"
		args = append(args, fb.ID)
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT feedback_id, emoji, count FROM feedback_reactions
		 WHERE feedback_id IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("sqlite: loading reactions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var feedbackID, emoji string
		var count int
		if err := rows.Scan(&feedbackID, &emoji, &count); err != nil {
			return fmt.Errorf("sqlite: scanning reaction row: %w", err)
		}
		if fb, ok := byID[feedbackID]; ok {
			fb.Reactions[emoji] = count
		}
	}
	return rows.Err()
}
