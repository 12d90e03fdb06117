package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/sharebook/sharebook/internal/auth"
	"github.com/sharebook/sharebook/internal/auth/oidc"
	"github.com/sharebook/sharebook/internal/db/models"
)

// Session is returned by signup and login.
type Session struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}

// SignupInput carries the signup form.
type SignupInput struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

// AuthService handles email/password accounts and issues session tokens.
type AuthService struct {
	users       UserStore
	tokenTTL    time.Duration
	allowSignup bool
}

// NewAuthService creates a new auth service. A zero tokenTTL uses auth.DefaultTokenTTL.
func NewAuthService(users UserStore, tokenTTL time.Duration, allowSignup bool) *AuthService {
	if tokenTTL <= 0 {
		tokenTTL = auth.DefaultTokenTTL
	}
	return &AuthService{users: users, tokenTTL: tokenTTL, allowSignup: allowSignup}
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("%w: invalid email address", ErrValidation)
	}
	return email, nil
}

// Signup creates an account and returns a session for it.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*Session, error) {
	if !s.allowSignup {
		return nil, fmt.Errorf("%w: signup is disabled", ErrAccessDenied)
	}
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.DisplayName)
	if name == "" {
		name = strings.SplitN(email, "@", 2)[0]
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooShort) || errors.Is(err, auth.ErrPasswordTooLong) {
			return nil, fmt.Errorf("%w: %w", ErrValidation, err)
		}
		return nil, err
	}

	existing, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: email already registered", ErrValidation)
	}

	user := &models.User{Email: email, DisplayName: name, PasswordHash: &hash}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return s.issue(user)
}

// Login checks email and password. Unknown emails, SSO-only accounts and wrong
// passwords all fail with the same ErrUnauthenticated.
func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, ErrUnauthenticated
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.HasPassword() || !auth.CheckPassword(*user.PasswordHash, password) {
		return nil, ErrUnauthenticated
	}
	return s.issue(user)
}

// Me returns the authenticated user.
func (s *AuthService) Me(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, userID)
	}
	return user, nil
}

// ChangePassword sets a new password. Accounts that already have one must
// confirm it; SSO-only accounts may set a first password without it.
func (s *AuthService) ChangePassword(ctx context.Context, userID, current, next string) error {
	user, err := s.Me(ctx, userID)
	if err != nil {
		return err
	}
	if user.HasPassword() && !auth.CheckPassword(*user.PasswordHash, current) {
		return fmt.Errorf("%w: current password is incorrect", ErrAccessDenied)
	}

	hash, err := auth.HashPassword(next)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooShort) || errors.Is(err, auth.ErrPasswordTooLong) {
			return fmt.Errorf("%w: %w", ErrValidation, err)
		}
		return err
	}
	return s.users.UpdatePassword(ctx, user.ID, hash)
}

// LoginOIDC finds the account by subject, then by email, creating it on first
// login, and returns a session.
func (s *AuthService) LoginOIDC(ctx context.Context, id *oidc.Identity) (*Session, error) {
	email, err := normalizeEmail(id.Email)
	if err != nil {
		return nil, err
	}
	user, err := s.users.GetOrCreateUserFromOIDC(ctx, id.Subject, email, id.Name)
	if err != nil {
		return nil, err
	}
	return s.issue(user)
}

func (s *AuthService) issue(user *models.User) (*Session, error) {
	token, err := auth.GenerateJWT(user.ID, user.Email, s.tokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to issue session token: %w", err)
	}
	return &Session{Token: token, ExpiresAt: time.Now().Add(s.tokenTTL), User: user}, nil
}
