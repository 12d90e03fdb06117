// Package models - user_settings.go defines per-user reader preferences.
package models

import "time"

// Theme values and font size bounds for UserSettings
const (
	ThemeLight  = "light"
	ThemeDark   = "dark"
	ThemeSystem = "system"

	DefaultFontSize = 16
	MinFontSize     = 10
	MaxFontSize     = 32
)

// UserSettings holds reader preferences
type UserSettings struct {
	UserID    string    `db:"user_id" json:"user_id"`
	Theme     string    `db:"theme" json:"theme"`
	FontSize  int       `db:"font_size" json:"font_size"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// DefaultUserSettings returns the settings used when a user has never saved any.
func DefaultUserSettings(userID string) *UserSettings {
	return &UserSettings{UserID: userID, Theme: ThemeLight, FontSize: DefaultFontSize}
}

// ValidTheme reports whether t is a known theme.
func ValidTheme(t string) bool {
	switch t {
	case ThemeLight, ThemeDark, ThemeSystem:
		return true
	}
	return false
}
