package services

import (
	"context"

	"github.com/sharebook/sharebook/internal/db/models"
)

// The interfaces below are satisfied by the repositories package. Services
// depend on them so tests can substitute fakes where sqlmock is awkward.

// ProjectStore persists projects.
type ProjectStore interface {
	Create(ctx context.Context, p *models.Project) error
	GetByID(ctx context.Context, id string) (*models.Project, error)
	ListByUser(ctx context.Context, userID string) ([]*models.Project, error)
	ListPublicByUser(ctx context.Context, userID string, limit int) ([]*models.Project, error)
	SearchPublic(ctx context.Context, search string, limit, offset int) ([]*models.Project, int, error)
	Update(ctx context.Context, p *models.Project) error
	UpdateVisibility(ctx context.Context, id, visibility string) error
	UpdateCover(ctx context.Context, id, coverURL string) error
	Touch(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

// ChapterStore persists chapters.
type ChapterStore interface {
	CountByProject(ctx context.Context, projectID string) (int, error)
	Create(ctx context.Context, c *models.Chapter) error
	GetByID(ctx context.Context, id string) (*models.Chapter, error)
	ListByProject(ctx context.Context, projectID string) ([]*models.Chapter, error)
	Update(ctx context.Context, c *models.Chapter) error
	SetOrderIndex(ctx context.Context, projectID, id string, index int) error
	Delete(ctx context.Context, id string) error
}

// CredentialRecords persists provider credentials.
type CredentialRecords interface {
	Upsert(ctx context.Context, userID, provider, apiKeyCiphertext string, model *string) (*models.ProviderCredential, error)
	Get(ctx context.Context, userID, provider string) (*models.ProviderCredential, error)
	List(ctx context.Context, userID string) ([]*models.ProviderCredential, error)
	Delete(ctx context.Context, userID, provider string) error
}

// SettingsStore persists user settings.
type SettingsStore interface {
	Get(ctx context.Context, userID string) (*models.UserSettings, error)
	Upsert(ctx context.Context, s *models.UserSettings) error
}

// UserStore reads and updates accounts.
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, userID string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateProfile(ctx context.Context, user *models.User) error
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
	GetOrCreateUserFromOIDC(ctx context.Context, oidcSub, email, name string) (*models.User, error)
}

// AuditStore reads back a user's audit trail.
type AuditStore interface {
	ListByUser(ctx context.Context, userID string, limit int) ([]*models.AuditLog, error)
}
