package model

import "time"

// Feedback sort views for the owner's dashboard. "active" is the default:
// unanswered, unarchived items, newest first.
const (
	SortActive   = "active"
	SortAnswered = "answered"
	SortArchived = "archived"
)

// Feedback is one anonymous question posted to a wall, with the owner's
// optional answer.
//
// LIFECYCLE FLAGS:
// IsAnswered and IsArchived are independent booleans, so all four
// combinations are reachable. Archiving removes an item from the owner's
// active/answered working views but never deletes it; there is no delete
// operation at all.
//
// Reactions maps an emoji to its accumulated count. Counts only ever go up
// — there is no "unreact". The map is assembled from a side table by the
// repository, so a concurrent reaction can never lose an increment.
type Feedback struct {
	ID         string         `json:"id"         db:"id"`
	WallID     string         `json:"wallId"     db:"wall_id"`
	Question   string         `json:"question"   db:"question"`
	Answer     string         `json:"answer"     db:"answer"`
	IsAnswered bool           `json:"isAnswered" db:"is_answered"`
	IsArchived bool           `json:"isArchived" db:"is_archived"`
	Reactions  map[string]int `json:"reactions"  db:"-"`
	CreatedAt  time.Time      `json:"createdAt"  db:"created_at"`
	UpdatedAt  time.Time      `json:"updatedAt"  db:"updated_at"`
}

// PublicFeedback is the projection served to anonymous wall visitors:
// just what is needed to render an answered card, no internal flags.
type PublicFeedback struct {
	ID        string         `json:"id"`
	Question  string         `json:"question"`
	Answer    string         `json:"answer"`
	Reactions map[string]int `json:"reactions"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// Public converts a Feedback into its anonymous projection.
func (f *Feedback) Public() PublicFeedback {
	return PublicFeedback{
		ID:        f.ID,
		Question:  f.Question,
		Answer:    f.Answer,
		Reactions: f.Reactions,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
	}
}

// ValidSort reports whether s is one of the owner-view sort modes.
func ValidSort(s string) bool {
	return s == SortActive || s == SortAnswered || s == SortArchived
}
