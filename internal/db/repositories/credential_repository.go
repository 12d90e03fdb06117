// credential_repository.go implements CredentialRepository over ai_provider_settings.
// Rows are keyed by (user_id, provider); the api_key column holds ciphertext only.
package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sharebook/sharebook/internal/db/models"
)

// CredentialRepository handles AI provider credential database operations
type CredentialRepository struct {
	db *sqlx.DB
}

// NewCredentialRepository creates a new CredentialRepository
func NewCredentialRepository(db *sqlx.DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

// Upsert inserts or replaces the (user, provider) row and returns the stored record
func (r *CredentialRepository) Upsert(ctx context.Context, userID, provider, apiKeyCiphertext string, model *string) (*models.ProviderCredential, error) {
	now := time.Now()
	query := `
		INSERT INTO ai_provider_settings (id, user_id, provider, api_key, model, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (user_id, provider) DO UPDATE SET
			api_key = EXCLUDED.api_key,
			model = EXCLUDED.model,
			updated_at = EXCLUDED.updated_at
		RETURNING id, user_id, provider, api_key, model, created_at, updated_at`

	var cred models.ProviderCredential
	err := r.db.GetContext(ctx, &cred, query, uuid.New().String(), userID, provider, apiKeyCiphertext, model, now)
	if err != nil {
		return nil, fmt.Errorf("failed to save provider credential: %w", err)
	}
	return &cred, nil
}

// Get returns the credential for (userID, provider), or nil when none exists
func (r *CredentialRepository) Get(ctx context.Context, userID, provider string) (*models.ProviderCredential, error) {
	query := `
		SELECT id, user_id, provider, api_key, model, created_at, updated_at
		FROM ai_provider_settings
		WHERE user_id = $1 AND provider = $2`

	var cred models.ProviderCredential
	err := r.db.GetContext(ctx, &cred, query, userID, provider)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get provider credential: %w", err)
	}
	return &cred, nil
}

// List returns all of a user's credentials ordered by provider
func (r *CredentialRepository) List(ctx context.Context, userID string) ([]*models.ProviderCredential, error) {
	query := `
		SELECT id, user_id, provider, api_key, model, created_at, updated_at
		FROM ai_provider_settings
		WHERE user_id = $1
		ORDER BY provider`

	creds := make([]*models.ProviderCredential, 0)
	if err := r.db.SelectContext(ctx, &creds, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list provider credentials: %w", err)
	}
	return creds, nil
}

// Delete removes the (userID, provider) row. A missing row is not an error.
func (r *CredentialRepository) Delete(ctx context.Context, userID, provider string) error {
	query := `DELETE FROM ai_provider_settings WHERE user_id = $1 AND provider = $2`
	if _, err := r.db.ExecContext(ctx, query, userID, provider); err != nil {
		return fmt.Errorf("failed to delete provider credential: %w", err)
	}
	return nil
}
