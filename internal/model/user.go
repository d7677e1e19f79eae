// Package model defines the data structures used throughout the application.
package model

import "time"

// Profile visibility levels. Stored as plain strings so the values show up
// readably in the database and over the wire.
const (
	VisibilityPublic  = "public"
	VisibilityPrivate = "private"
	VisibilityFriends = "friends"
)

// SocialLinks holds the optional profile links a user can attach to their
// account. Each is validated as a URL before it is stored; the empty string
// means "not set".
type SocialLinks struct {
	Twitter   string `json:"twitter"   db:"social_twitter"`
	LinkedIn  string `json:"linkedin"  db:"social_linkedin"`
	Website   string `json:"website"   db:"social_website"`
	Instagram string `json:"instagram" db:"social_instagram"`
}

// NotificationPrefs holds the user's email notification toggles.
type NotificationPrefs struct {
	NewFeedback bool `json:"newFeedback" db:"notify_new_feedback"`
}

// User represents a registered account.
//
// TWO AUTHENTICATION METHODS:
// An account is either password-based (PasswordHash set, GoogleID empty) or
// a Google OAuth account (GoogleID set, PasswordHash empty). Exactly one of
// the two must be populated — the service layer enforces this at creation
// time and the repository never clears either field on update.
//
// WHY Email string (not *string)?
// Google sometimes withholds the email, and we treat the empty string as
// "not provided" rather than juggling nullable pointers.
//
// PasswordHash, GoogleID, DeletionToken and DeletionTokenExpiry are json:"-"
// — they must never leave the server, regardless of which handler
// serializes the user.
type User struct {
	ID             string `json:"id"             db:"id"`
	Email          string `json:"email"          db:"email"`
	PasswordHash   string `json:"-"              db:"password_hash"`
	GoogleID       string `json:"-"              db:"google_id"`
	Name           string `json:"name"           db:"name"`
	Username       string `json:"username"       db:"username"`
	Bio            string `json:"bio"            db:"bio"`
	ProfilePicture string `json:"profilePicture" db:"profile_picture"`

	SocialLinks       SocialLinks       `json:"socialLinks"`
	ProfileVisibility string            `json:"profileVisibility" db:"profile_visibility"`
	Notifications     NotificationPrefs `json:"emailNotifications"`

	// Moderation lists: IDs of blocked accounts and literal IP strings
	// blocked from submitting to this user's walls.
	BlockedUsers []string `json:"blockedUsers" db:"-"`
	BlockedIPs   []string `json:"blockedIps"   db:"-"`

	// Account-deletion workflow (two-step: request emails a token, confirm
	// presents it back). Write-only.
	DeletionToken       string    `json:"-" db:"deletion_token"`
	DeletionTokenExpiry time.Time `json:"-" db:"deletion_token_expiry"`

	IsActive  bool      `json:"isActive"  db:"is_active"`
	LastLogin time.Time `json:"lastLogin" db:"last_login"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// IsOAuth reports whether this account authenticates through Google rather
// than a password.
func (u *User) IsOAuth() bool {
	return u.GoogleID != ""
}

// HasBlockedIP reports whether ip appears in the user's blocked-IP list.
func (u *User) HasBlockedIP(ip string) bool {
	for _, blocked := range u.BlockedIPs {
		if blocked == ip {
			return true
		}
	}
	return false
}

// HasBlockedUser reports whether userID appears in the user's blocked list.
func (u *User) HasBlockedUser(userID string) bool {
	for _, blocked := range u.BlockedUsers {
		if blocked == userID {
			return true
		}
	}
	return false
}
