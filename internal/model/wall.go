package model

import "time"

// Wall themes. "default" is applied when a wall is created without an
// explicit theme.
const (
	ThemeDefault  = "default"
	ThemeDark     = "dark"
	ThemeLight    = "light"
	ThemePastel   = "pastel"
	ThemeMidnight = "midnight"
)

// CustomColors are per-wall display colour overrides. Each value is a 3- or
// 6-digit hex string (with leading #) or empty for "use the theme colour".
// Updates are merged field-wise — sending only a primary colour leaves the
// background and accent untouched.
type CustomColors struct {
	Primary    string `json:"primary"    db:"color_primary"`
	Background string `json:"background" db:"color_background"`
	Accent     string `json:"accent"     db:"color_accent"`
}

// Wall is a named, publicly addressable feedback collection owned by one
// user. The slug is globally unique and never changes after creation; one
// owner may have any number of walls.
//
// Username is denormalized from the owner at creation time and is NOT
// re-synced if the owner later renames — the wall keeps the name it was
// branded with.
type Wall struct {
	ID           string       `json:"id"           db:"id"`
	OwnerID      string       `json:"ownerId"      db:"owner_id"`
	Username     string       `json:"username"     db:"username"`
	Slug         string       `json:"slug"         db:"slug"`
	Theme        string       `json:"theme"        db:"theme"`
	CustomColors CustomColors `json:"customColors"`
	CreatedAt    time.Time    `json:"createdAt"    db:"created_at"`
	UpdatedAt    time.Time    `json:"updatedAt"    db:"updated_at"`
}

// ValidTheme reports whether name is one of the known themes.
func ValidTheme(name string) bool {
	switch name {
	case ThemeDefault, ThemeDark, ThemeLight, ThemePastel, ThemeMidnight:
		return true
	}
	return false
}
