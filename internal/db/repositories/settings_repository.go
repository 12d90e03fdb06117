// settings_repository.go implements SettingsRepository for the user_settings table.
package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sharebook/sharebook/internal/db/models"
)

// SettingsRepository handles user settings database operations
type SettingsRepository struct {
	db *sqlx.DB
}

// NewSettingsRepository creates a new SettingsRepository
func NewSettingsRepository(db *sqlx.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get returns the user's settings, or nil when they have never saved any
func (r *SettingsRepository) Get(ctx context.Context, userID string) (*models.UserSettings, error) {
	var s models.UserSettings
	err := r.db.GetContext(ctx, &s,
		`SELECT user_id, theme, font_size, created_at, updated_at FROM user_settings WHERE user_id = $1`, userID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user settings: %w", err)
	}
	return &s, nil
}

// Upsert writes theme and font size, creating the row if needed
func (r *SettingsRepository) Upsert(ctx context.Context, s *models.UserSettings) error {
	now := time.Now()
	query := `
		INSERT INTO user_settings (user_id, theme, font_size, created_at, updated_at)
		VALUES (:user_id, :theme, :font_size, :updated_at, :updated_at)
		ON CONFLICT (user_id) DO UPDATE SET
			theme = EXCLUDED.theme,
			font_size = EXCLUDED.font_size,
			updated_at = EXCLUDED.updated_at`

	s.UpdatedAt = now
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	if _, err := r.db.NamedExecContext(ctx, query, s); err != nil {
		return fmt.Errorf("failed to save user settings: %w", err)
	}
	return nil
}
