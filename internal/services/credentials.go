package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sharebook/sharebook/internal/crypto"
	"github.com/sharebook/sharebook/internal/db/models"
	"github.com/sharebook/sharebook/internal/telemetry"
)

// Cipher is the reversible transform applied to API keys before storage.
type Cipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// CredentialStore keeps one encrypted API key and preferred model per
// (user, provider). Plaintext keys only exist in memory for the duration of a call.
type CredentialStore struct {
	records CredentialRecords
	cipher  Cipher
}

// NewCredentialStore creates a CredentialStore
func NewCredentialStore(records CredentialRecords, cipher Cipher) *CredentialStore {
	return &CredentialStore{records: records, cipher: cipher}
}

// CredentialSummary is the client-facing view of a stored credential
type CredentialSummary struct {
	Provider  string    `json:"provider"`
	Model     *string   `json:"model,omitempty"`
	HasKey    bool      `json:"has_key"`
	MaskedKey string    `json:"masked_key,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NormalizeProvider lowercases and trims a provider name.
func NormalizeProvider(provider string) string {
	return strings.ToLower(strings.TrimSpace(provider))
}

// MaskKey returns a display form of an API key that keeps a short prefix and
// the last four characters.
func MaskKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:3] + "..." + key[len(key)-4:]
}

func configErr(err error) error {
	if errors.Is(err, crypto.ErrNotConfigured) {
		return fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	return err
}

// Save encrypts apiKey and upserts it with model. An empty key is rejected
// before the cipher or the database is touched.
func (s *CredentialStore) Save(ctx context.Context, userID, provider, apiKey, model string) (*models.ProviderCredential, error) {
	provider = NormalizeProvider(provider)
	if provider == "" {
		telemetry.CredentialOperationsTotal.WithLabelValues("save", "invalid").Inc()
		return nil, fmt.Errorf("%w: provider is required", ErrValidation)
	}
	if strings.TrimSpace(apiKey) == "" {
		telemetry.CredentialOperationsTotal.WithLabelValues("save", "invalid").Inc()
		return nil, fmt.Errorf("%w: API key is required", ErrValidation)
	}

	ciphertext, err := s.cipher.Encrypt(apiKey)
	if err != nil {
		telemetry.CredentialOperationsTotal.WithLabelValues("save", "error").Inc()
		return nil, fmt.Errorf("failed to encrypt API key: %w", configErr(err))
	}

	var modelPtr *string
	if m := strings.TrimSpace(model); m != "" {
		modelPtr = &m
	}

	cred, err := s.records.Upsert(ctx, userID, provider, ciphertext, modelPtr)
	if err != nil {
		telemetry.CredentialOperationsTotal.WithLabelValues("save", "error").Inc()
		return nil, err
	}
	telemetry.CredentialOperationsTotal.WithLabelValues("save", "ok").Inc()
	return cred, nil
}

// Get returns the stored record with its ciphertext, or nil when none exists.
func (s *CredentialStore) Get(ctx context.Context, userID, provider string) (*models.ProviderCredential, error) {
	return s.records.Get(ctx, userID, NormalizeProvider(provider))
}

// GetDecrypted returns the plaintext key. Lookup and decryption failures are
// logged and reported as ok=false; they are never returned as errors.
func (s *CredentialStore) GetDecrypted(ctx context.Context, userID, provider string) (key string, ok bool) {
	provider = NormalizeProvider(provider)
	cred, err := s.records.Get(ctx, userID, provider)
	if err != nil {
		slog.Error("failed to load provider credential", "user_id", userID, "provider", provider, "error", err)
		telemetry.CredentialOperationsTotal.WithLabelValues("decrypt", "error").Inc()
		return "", false
	}
	if cred == nil || !cred.HasKey() {
		telemetry.CredentialOperationsTotal.WithLabelValues("decrypt", "missing").Inc()
		return "", false
	}

	plain, err := s.cipher.Decrypt(*cred.APIKey)
	if err != nil {
		slog.Warn("failed to decrypt provider credential", "user_id", userID, "provider", provider, "error", err)
		telemetry.CredentialOperationsTotal.WithLabelValues("decrypt", "error").Inc()
		return "", false
	}
	if plain == "" {
		telemetry.CredentialOperationsTotal.WithLabelValues("decrypt", "missing").Inc()
		return "", false
	}
	telemetry.CredentialOperationsTotal.WithLabelValues("decrypt", "ok").Inc()
	return plain, true
}

// Delete removes the (user, provider) credential. Deleting a missing credential succeeds.
func (s *CredentialStore) Delete(ctx context.Context, userID, provider string) error {
	if err := s.records.Delete(ctx, userID, NormalizeProvider(provider)); err != nil {
		telemetry.CredentialOperationsTotal.WithLabelValues("delete", "error").Inc()
		return err
	}
	telemetry.CredentialOperationsTotal.WithLabelValues("delete", "ok").Inc()
	return nil
}

// Summary builds the masked view of one record. A key that cannot be
// decrypted is reported as present but unmasked.
func (s *CredentialStore) Summary(cred *models.ProviderCredential) CredentialSummary {
	sum := CredentialSummary{
		Provider:  cred.Provider,
		Model:     cred.Model,
		HasKey:    cred.HasKey(),
		UpdatedAt: cred.UpdatedAt,
	}
	if sum.HasKey {
		if plain, err := s.cipher.Decrypt(*cred.APIKey); err == nil {
			sum.MaskedKey = MaskKey(plain)
		}
	}
	return sum
}

// List returns masked summaries of every credential the user has saved.
func (s *CredentialStore) List(ctx context.Context, userID string) ([]CredentialSummary, error) {
	creds, err := s.records.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]CredentialSummary, 0, len(creds))
	for _, c := range creds {
		out = append(out, s.Summary(c))
	}
	return out, nil
}
