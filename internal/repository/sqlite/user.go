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

// UserDB implements repository.UserRepository over the shared pool.
type UserDB struct {
	conn *sql.DB
}

// Compile-time interface check.
var _ repository.UserRepository = (*UserDB)(nil)

// userColumns is the SELECT list every user query shares. Keeping it in one
// place means scanUser can't drift out of column order.
const userColumns = `id, email, password_hash, google_id, name, username, bio,
	profile_picture, social_twitter, social_linkedin, social_website,
	social_instagram, profile_visibility, notify_new_feedback,
	is_active, last_login, created_at, updated_at`

// scanUser reads one row of userColumns into a model.User. last_login is
// nullable (never logged in), so it goes through sql.NullTime.
func scanUser(row *sql.Row) (*model.User, error) {
	var u model.User
	var lastLogin sql.NullTime

	err := row.Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.GoogleID, &u.Name, &u.Username,
		&u.Bio, &u.ProfilePicture,
		&u.SocialLinks.Twitter, &u.SocialLinks.LinkedIn,
		&u.SocialLinks.Website, &u.SocialLinks.Instagram,
		&u.ProfileVisibility, &u.Notifications.NewFeedback,
		&u.IsActive, &lastLogin, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if lastLogin.Valid {
		u.LastLogin = lastLogin.Time
	}
	return &u, nil
}

// Create inserts a new user. The repository generates the ID and
// timestamps, mutating the caller's struct in place.
func (db *UserDB) Create(ctx context.Context, user *model.User) error {
	user.ID = xid.New().String()
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	user.IsActive = true

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, google_id, name, username,
			bio, profile_picture, social_twitter, social_linkedin, social_website,
			social_instagram, profile_visibility, notify_new_feedback,
			is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.Email, user.PasswordHash, user.GoogleID, user.Name,
		user.Username, user.Bio, user.ProfilePicture,
		user.SocialLinks.Twitter, user.SocialLinks.LinkedIn,
		user.SocialLinks.Website, user.SocialLinks.Instagram,
		defaultVisibility(user.ProfileVisibility), user.Notifications.NewFeedback,
		user.IsActive, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("user", user.Email)
		}
		return fmt.Errorf("sqlite: inserting user: %w", err)
	}
	if user.ProfileVisibility == "" {
		user.ProfileVisibility = model.VisibilityPublic
	}

	return nil
}

// GetByID retrieves a user with their moderation lists loaded.
func (db *UserDB) GetByID(ctx context.Context, id string) (*model.User, error) {
	user, err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}

	if err := db.loadModeration(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// GetByEmail retrieves a user by email (exact match; emails are stored
// lowercase by the service layer).
func (db *UserDB) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	user, err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFoundMsg("no account with that email")
		}
		return nil, fmt.Errorf("sqlite: getting user by email: %w", err)
	}

	if err := db.loadModeration(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// UpsertGoogle creates or refreshes an account keyed by google_id.
//
// On first login a new row is INSERTed; on subsequent logins the name and
// picture are refreshed in case they changed on Google, but the internal
// ID is kept — walls and feedback stay attached.
func (db *UserDB) UpsertGoogle(ctx context.Context, user *model.User) error {
	var existingID string
	err := db.conn.QueryRowContext(ctx,
		`SELECT id FROM users WHERE google_id = ?`, user.GoogleID,
	).Scan(&existingID)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("sqlite: looking up user by google_id: %w", err)
	}

	if existingID != "" {
		user.ID = existingID
		user.UpdatedAt = time.Now()
		_, err = db.conn.ExecContext(ctx,
			`UPDATE users SET name = ?, profile_picture = ?, updated_at = ?
			 WHERE id = ?`,
			user.Name, user.ProfilePicture, user.UpdatedAt, user.ID,
		)
		if err != nil {
			return fmt.Errorf("sqlite: refreshing google user %s: %w", user.ID, err)
		}
		return nil
	}

	return db.Create(ctx, user)
}

// UpdateProfile persists the editable profile fields: name, username, bio,
// social links, and visibility.
func (db *UserDB) UpdateProfile(ctx context.Context, user *model.User) error {
	user.UpdatedAt = time.Now()

	result, err := db.conn.ExecContext(ctx,
		`UPDATE users SET name = ?, username = ?, bio = ?,
			social_twitter = ?, social_linkedin = ?, social_website = ?,
			social_instagram = ?, profile_visibility = ?, updated_at = ?
		 WHERE id = ?`,
		user.Name, user.Username, user.Bio,
		user.SocialLinks.Twitter, user.SocialLinks.LinkedIn,
		user.SocialLinks.Website, user.SocialLinks.Instagram,
		user.ProfileVisibility, user.UpdatedAt, user.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating profile %s: %w", user.ID, err)
	}
	return requireRow(result, "user", user.ID)
}

func (db *UserDB) UpdateProfilePicture(ctx context.Context, id, url string) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE users SET profile_picture = ?, updated_at = ? WHERE id = ?`,
		url, time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating profile picture %s: %w", id, err)
	}
	return requireRow(result, "user", id)
}

func (db *UserDB) UpdateNotifications(ctx context.Context, id string, prefs model.NotificationPrefs) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE users SET notify_new_feedback = ?, updated_at = ? WHERE id = ?`,
		prefs.NewFeedback, time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating notifications %s: %w", id, err)
	}
	return requireRow(result, "user", id)
}

func (db *UserDB) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		passwordHash, time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating password %s: %w", id, err)
	}
	return requireRow(result, "user", id)
}

func (db *UserDB) TouchLastLogin(ctx context.Context, id string) error {
	_, err := db.conn.ExecContext(ctx,
		`UPDATE users SET last_login = ? WHERE id = ?`, time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: touching last_login %s: %w", id, err)
	}
	return nil
}

// BlockUser adds blockedID to ownerID's block list. INSERT OR IGNORE makes
// re-blocking a no-op rather than an error.
func (db *UserDB) BlockUser(ctx context.Context, ownerID, blockedID string) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT OR IGNORE INTO blocked_users (owner_id, blocked_id) VALUES (?, ?)`,
		ownerID, blockedID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: blocking user: %w", err)
	}
	return nil
}

func (db *UserDB) UnblockUser(ctx context.Context, ownerID, blockedID string) error {
	_, err := db.conn.ExecContext(ctx,
		`DELETE FROM blocked_users WHERE owner_id = ? AND blocked_id = ?`,
		ownerID, blockedID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: unblocking user: %w", err)
	}
	return nil
}

func (db *UserDB) BlockIP(ctx context.Context, ownerID, ip string) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT OR IGNORE INTO blocked_ips (owner_id, ip) VALUES (?, ?)`,
		ownerID, ip,
	)
	if err != nil {
		return fmt.Errorf("sqlite: blocking ip: %w", err)
	}
	return nil
}

func (db *UserDB) UnblockIP(ctx context.Context, ownerID, ip string) error {
	_, err := db.conn.ExecContext(ctx,
		`DELETE FROM blocked_ips WHERE owner_id = ? AND ip = ?`,
		ownerID, ip,
	)
	if err != nil {
		return fmt.Errorf("sqlite: unblocking ip: %w", err)
	}
	return nil
}

func (db *UserDB) SetDeletionToken(ctx context.Context, id, token string, expiry time.Time) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE users SET deletion_token = ?, deletion_token_expiry = ? WHERE id = ?`,
		token, expiry, id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: setting deletion token %s: %w", id, err)
	}
	return requireRow(result, "user", id)
}

func (db *UserDB) GetDeletionToken(ctx context.Context, id string) (string, time.Time, error) {
	var token string
	var expiry sql.NullTime

	err := db.conn.QueryRowContext(ctx,
		`SELECT deletion_token, deletion_token_expiry FROM users WHERE id = ?`, id,
	).Scan(&token, &expiry)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", time.Time{}, apperror.NotFound("user", id)
		}
		return "", time.Time{}, fmt.Errorf("sqlite: getting deletion token %s: %w", id, err)
	}
	return token, expiry.Time, nil
}

// Delete hard-deletes the user. Walls, their feedback, reactions, and
// moderation rows all go with it via ON DELETE CASCADE.
func (db *UserDB) Delete(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting user %s: %w", id, err)
	}
	return requireRow(result, "user", id)
}

// loadModeration fills the user's blocked-user and blocked-IP lists.
func (db *UserDB) loadModeration(ctx context.Context, user *model.User) error {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT blocked_id FROM blocked_users WHERE owner_id = ?`, user.ID)
	if err != nil {
		return fmt.Errorf("sqlite: loading blocked users: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("sqlite: scanning blocked user: %w", err)
		}
		user.BlockedUsers = append(user.BlockedUsers, id)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("sqlite: iterating blocked users: %w", err)
	}

	ipRows, err := db.conn.QueryContext(ctx,
		`SELECT ip FROM blocked_ips WHERE owner_id = ?`, user.ID)
	if err != nil {
		return fmt.Errorf("sqlite: loading blocked ips: %w", err)
	}
	defer ipRows.Close()
	for ipRows.Next() {
		var ip string
		if err := ipRows.Scan(&ip); err != nil {
			return fmt.Errorf("sqlite: scanning blocked ip: %w", err)
		}
		user.BlockedIPs = append(user.BlockedIPs, ip)
	}
	return ipRows.Err()
}

// requireRow converts a zero-rows-affected result into NotFound.
func requireRow(result sql.Result, resource, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound(resource, id)
	}
	return nil
}

func defaultVisibility(v string) string {
	if v == "" {
		return model.VisibilityPublic
	}
	return v
}
