// Package repositories implements the data access layer (repository pattern) for Sharebook.
// Each repository type encapsulates all database queries for a domain entity.
// Services never issue SQL directly; lookups that find nothing return nil, nil
// and the caller decides whether that is an error.
package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sharebook/sharebook/internal/db/models"
)

// UserRepository handles user database operations
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, email, display_name, password_hash, oidc_sub, avatar_url, bio, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.DisplayName,
		&user.PasswordHash,
		&user.OIDCSub,
		&user.AvatarURL,
		&user.Bio,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// CreateUser creates a new user
func (r *UserRepository) CreateUser(ctx context.Context, user *models.User) error {
	user.ID = uuid.New().String()
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt

	query := `
		INSERT INTO users (id, email, display_name, password_hash, oidc_sub, avatar_url, bio, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.ExecContext(ctx, query,
		user.ID,
		user.Email,
		user.DisplayName,
		user.PasswordHash,
		user.OIDCSub,
		user.AvatarURL,
		user.Bio,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUserByID retrieves a user by ID
func (r *UserRepository) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, userID))
}

// GetUserByEmail retrieves a user by email, case-insensitively
func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = LOWER($1)`
	return scanUser(r.db.QueryRowContext(ctx, query, email))
}

// GetUserByOIDCSub retrieves a user by OIDC subject identifier
func (r *UserRepository) GetUserByOIDCSub(ctx context.Context, oidcSub string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE oidc_sub = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, oidcSub))
}

// UpdateProfile updates the user-editable profile fields
func (r *UserRepository) UpdateProfile(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now()

	query := `
		UPDATE users
		SET display_name = $2, avatar_url = $3, bio = $4, updated_at = $5
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query,
		user.ID,
		user.DisplayName,
		user.AvatarURL,
		user.Bio,
		user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update user profile: %w", err)
	}
	return nil
}

// UpdatePassword replaces the stored bcrypt hash
func (r *UserRepository) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	query := `UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, userID, passwordHash, time.Now()); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return nil
}

// LinkOIDCSub attaches an OIDC subject to an existing account
func (r *UserRepository) LinkOIDCSub(ctx context.Context, userID, oidcSub string) error {
	query := `UPDATE users SET oidc_sub = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, userID, oidcSub, time.Now()); err != nil {
		return fmt.Errorf("failed to link oidc subject: %w", err)
	}
	return nil
}

// GetOrCreateUserFromOIDC finds a user by OIDC subject, then by email (linking
// the subject), and creates the account on first login.
func (r *UserRepository) GetOrCreateUserFromOIDC(ctx context.Context, oidcSub, email, name string) (*models.User, error) {
	user, err := r.GetUserByOIDCSub(ctx, oidcSub)
	if err != nil {
		return nil, err
	}
	if user != nil {
		return user, nil
	}

	user, err = r.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user != nil {
		if err := r.LinkOIDCSub(ctx, user.ID, oidcSub); err != nil {
			return nil, err
		}
		user.OIDCSub = &oidcSub
		return user, nil
	}

	newUser := &models.User{
		Email:       email,
		DisplayName: name,
		OIDCSub:     &oidcSub,
	}
	if err := r.CreateUser(ctx, newUser); err != nil {
		return nil, err
	}
	return newUser, nil
}
