// Package sqlite implements the repository interfaces using SQLite as the
// storage backend.
//
// WHY modernc.org/sqlite INSTEAD OF github.com/mattn/go-sqlite3?
// mattn/go-sqlite3 uses CGo, which means you need a C compiler installed
// and cross-compilation becomes painful. modernc.org/sqlite is a pure Go
// translation of the SQLite C code — works everywhere Go works.
package sqlite

import (
	"database/sql"
	"fmt"
	"strings"

	// Side-effect import: registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// isUniqueViolation reports whether err is a UNIQUE constraint failure.
// The pure-Go driver doesn't export a typed error for this, so we match on
// the SQLite error text, which is stable across versions.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// DB owns the sql.DB connection pool, the schema migrations, and the
// connection lifecycle. The per-aggregate repositories (Users, Walls,
// Feedback) share its pool: one file on disk, three typed views.
type DB struct {
	conn *sql.DB
}

// Users returns the UserRepository backed by this database.
func (db *DB) Users() *UserDB { return &UserDB{conn: db.conn} }

// Walls returns the WallRepository backed by this database.
func (db *DB) Walls() *WallDB { return &WallDB{conn: db.conn} }

// Feedback returns the FeedbackRepository backed by this database.
func (db *DB) Feedback() *FeedbackDB { return &FeedbackDB{conn: db.conn} }

// New opens (or creates) the database at dbPath and runs migrations.
// Use ":memory:" in tests for a throwaway database.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Every pooled connection to ":memory:" would open its own empty
	// database; pin the pool to one connection so tests see one schema.
	if dbPath == ":memory:" {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL mode allows concurrent reads while a write is in progress —
	// essential for a web server where requests overlap.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	// Foreign keys are OFF by default in SQLite. We rely on ON DELETE
	// CASCADE for account deletion (users → walls → feedback), so they
	// must be on.
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates the schema. CREATE ... IF NOT EXISTS keeps it idempotent,
// so it is safe to run on every startup.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id                    TEXT PRIMARY KEY,
			email                 TEXT NOT NULL DEFAULT '',
			password_hash         TEXT NOT NULL DEFAULT '',
			google_id             TEXT NOT NULL DEFAULT '',
			name                  TEXT NOT NULL DEFAULT '',
			username              TEXT NOT NULL DEFAULT '',
			bio                   TEXT NOT NULL DEFAULT '',
			profile_picture       TEXT NOT NULL DEFAULT '',
			social_twitter        TEXT NOT NULL DEFAULT '',
			social_linkedin       TEXT NOT NULL DEFAULT '',
			social_website        TEXT NOT NULL DEFAULT '',
			social_instagram      TEXT NOT NULL DEFAULT '',
			profile_visibility    TEXT NOT NULL DEFAULT 'public',
			notify_new_feedback   INTEGER NOT NULL DEFAULT 1,
			deletion_token        TEXT NOT NULL DEFAULT '',
			deletion_token_expiry DATETIME,
			is_active             INTEGER NOT NULL DEFAULT 1,
			last_login            DATETIME,
			created_at            DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at            DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		-- Partial unique indexes: an OAuth account has no email requirement
		-- and a password account has no google_id, so uniqueness only
		-- applies to non-empty values.
		CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email
			ON users(email) WHERE email != '';
		CREATE UNIQUE INDEX IF NOT EXISTS idx_users_google_id
			ON users(google_id) WHERE google_id != '';
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS blocked_users (
			owner_id   TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			blocked_id TEXT NOT NULL,
			PRIMARY KEY (owner_id, blocked_id)
		);

		CREATE TABLE IF NOT EXISTS blocked_ips (
			owner_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			ip       TEXT NOT NULL,
			PRIMARY KEY (owner_id, ip)
		);
	`)
	if err != nil {
		return fmt.Errorf("creating moderation tables: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS walls (
			id               TEXT PRIMARY KEY,
			owner_id         TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			username         TEXT NOT NULL DEFAULT '',
			slug             TEXT NOT NULL UNIQUE,
			theme            TEXT NOT NULL DEFAULT 'default',
			color_primary    TEXT NOT NULL DEFAULT '',
			color_background TEXT NOT NULL DEFAULT '',
			color_accent     TEXT NOT NULL DEFAULT '',
			created_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE INDEX IF NOT EXISTS idx_walls_owner_id ON walls(owner_id);
	`)
	if err != nil {
		return fmt.Errorf("creating walls table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS feedback (
			id          TEXT PRIMARY KEY,
			wall_id     TEXT NOT NULL REFERENCES walls(id) ON DELETE CASCADE,
			question    TEXT NOT NULL,
			answer      TEXT NOT NULL DEFAULT '',
			is_answered INTEGER NOT NULL DEFAULT 0,
			is_archived INTEGER NOT NULL DEFAULT 0,
			created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE INDEX IF NOT EXISTS idx_feedback_wall_id ON feedback(wall_id);
		CREATE INDEX IF NOT EXISTS idx_feedback_is_answered ON feedback(is_answered);
		CREATE INDEX IF NOT EXISTS idx_feedback_is_archived ON feedback(is_archived);
	`)
	if err != nil {
		return fmt.Errorf("creating feedback table: %w", err)
	}

	// Reaction counters live in their own table so increments can be a
	// single atomic UPSERT instead of read-modify-write on a JSON blob.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS feedback_reactions (
			feedback_id TEXT NOT NULL REFERENCES feedback(id) ON DELETE CASCADE,
			emoji       TEXT NOT NULL,
			count       INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (feedback_id, emoji)
		);
	`)
	if err != nil {
		return fmt.Errorf("creating feedback_reactions table: %w", err)
	}

	return nil
}
