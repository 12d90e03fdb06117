// Package models - provider_credential.go defines the per-user AI provider
// credential stored in ai_provider_settings. APIKey holds ciphertext and is never
// serialized.
package models

import "time"

// ProviderCredential is a user's API key and preferred model for one AI provider
type ProviderCredential struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Provider  string    `db:"provider" json:"provider"`
	APIKey    *string   `db:"api_key" json:"-"` // hex ciphertext
	Model     *string   `db:"model" json:"model,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// HasKey reports whether a ciphertext is stored.
func (c *ProviderCredential) HasKey() bool {
	return c.APIKey != nil && *c.APIKey != ""
}

// ModelOr returns the stored model, or def when none is set.
func (c *ProviderCredential) ModelOr(def string) string {
	if c == nil || c.Model == nil || *c.Model == "" {
		return def
	}
	return *c.Model
}
