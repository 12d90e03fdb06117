package services

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/sharebook/sharebook/internal/db/models"
)

const (
	// ProfileProjectLimit is the number of public projects shown on a profile page.
	ProfileProjectLimit = 10
	// DefaultActivityLimit and MaxActivityLimit bound the activity feed.
	DefaultActivityLimit = 20
	MaxActivityLimit     = 100

	maxDisplayNameLength = 80
	maxBioLength         = 500
)

// SettingsUpdate carries optional settings changes.
type SettingsUpdate struct {
	Theme    *string `json:"theme"`
	FontSize *int    `json:"font_size"`
}

// ProfileUpdate carries optional profile changes. An empty avatar_url or bio
// clears the field.
type ProfileUpdate struct {
	DisplayName *string `json:"display_name"`
	AvatarURL   *string `json:"avatar_url"`
	Bio         *string `json:"bio"`
}

// Profile is a public profile page.
type Profile struct {
	User     models.PublicProfile `json:"user"`
	Projects []*models.Project    `json:"projects"`
}

// AccountService serves reader settings, profiles and the activity feed.
type AccountService struct {
	settings SettingsStore
	users    UserStore
	projects ProjectStore
	audit    AuditStore
}

// NewAccountService creates a new account service
func NewAccountService(settings SettingsStore, users UserStore, projects ProjectStore, audit AuditStore) *AccountService {
	return &AccountService{settings: settings, users: users, projects: projects, audit: audit}
}

// GetSettings returns the stored settings, or the defaults (light, 16) when the
// user never saved any.
func (s *AccountService) GetSettings(ctx context.Context, userID string) (*models.UserSettings, error) {
	st, err := s.settings.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return models.DefaultUserSettings(userID), nil
	}
	return st, nil
}

// UpdateTheme upserts the theme.
func (s *AccountService) UpdateTheme(ctx context.Context, userID, theme string) (*models.UserSettings, error) {
	return s.UpdateSettings(ctx, userID, SettingsUpdate{Theme: &theme})
}

// UpdateFontSize upserts the font size.
func (s *AccountService) UpdateFontSize(ctx context.Context, userID string, size int) (*models.UserSettings, error) {
	return s.UpdateSettings(ctx, userID, SettingsUpdate{FontSize: &size})
}

// UpdateSettings validates every supplied field before writing any of them.
func (s *AccountService) UpdateSettings(ctx context.Context, userID string, upd SettingsUpdate) (*models.UserSettings, error) {
	if upd.Theme != nil {
		t := strings.ToLower(strings.TrimSpace(*upd.Theme))
		if !models.ValidTheme(t) {
			return nil, fmt.Errorf("%w: theme must be light, dark or system", ErrValidation)
		}
		upd.Theme = &t
	}
	if upd.FontSize != nil && (*upd.FontSize < models.MinFontSize || *upd.FontSize > models.MaxFontSize) {
		return nil, fmt.Errorf("%w: font size must be between %d and %d", ErrValidation, models.MinFontSize, models.MaxFontSize)
	}

	st, err := s.GetSettings(ctx, userID)
	if err != nil {
		return nil, err
	}
	if upd.Theme != nil {
		st.Theme = *upd.Theme
	}
	if upd.FontSize != nil {
		st.FontSize = *upd.FontSize
	}
	if err := s.settings.Upsert(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

// PublicProfile returns a user's profile and up to ProfileProjectLimit public projects.
func (s *AccountService) PublicProfile(ctx context.Context, userID string) (*Profile, error) {
	if err := parseID("user", userID); err != nil {
		return nil, err
	}
	u, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, userID)
	}

	projects, err := s.projects.ListPublicByUser(ctx, userID, ProfileProjectLimit)
	if err != nil {
		return nil, err
	}
	if projects == nil {
		projects = []*models.Project{}
	}
	return &Profile{User: u.Public(), Projects: projects}, nil
}

// UpdateProfile validates every supplied field, then saves the profile.
func (s *AccountService) UpdateProfile(ctx context.Context, userID string, upd ProfileUpdate) (*models.User, error) {
	if upd.DisplayName != nil {
		name := strings.TrimSpace(*upd.DisplayName)
		if name == "" {
			return nil, fmt.Errorf("%w: display name cannot be empty", ErrValidation)
		}
		if utf8.RuneCountInString(name) > maxDisplayNameLength {
			return nil, fmt.Errorf("%w: display name must be at most %d characters", ErrValidation, maxDisplayNameLength)
		}
		upd.DisplayName = &name
	}
	if upd.AvatarURL != nil {
		raw := strings.TrimSpace(*upd.AvatarURL)
		if raw != "" {
			u, err := url.Parse(raw)
			if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
				return nil, fmt.Errorf("%w: avatar_url must be an http or https URL", ErrValidation)
			}
		}
		upd.AvatarURL = &raw
	}
	if upd.Bio != nil {
		bio := strings.TrimSpace(*upd.Bio)
		if utf8.RuneCountInString(bio) > maxBioLength {
			return nil, fmt.Errorf("%w: bio must be at most %d characters", ErrValidation, maxBioLength)
		}
		upd.Bio = &bio
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, userID)
	}
	if upd.DisplayName != nil {
		user.DisplayName = *upd.DisplayName
	}
	if upd.AvatarURL != nil {
		user.AvatarURL = nilIfEmpty(*upd.AvatarURL)
	}
	if upd.Bio != nil {
		user.Bio = nilIfEmpty(*upd.Bio)
	}
	if err := s.users.UpdateProfile(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// RecentActivity returns the caller's newest audit entries. A limit outside
// 1..MaxActivityLimit falls back to DefaultActivityLimit or is capped.
func (s *AccountService) RecentActivity(ctx context.Context, userID string, limit int) ([]*models.AuditLog, error) {
	switch {
	case limit <= 0:
		limit = DefaultActivityLimit
	case limit > MaxActivityLimit:
		limit = MaxActivityLimit
	}
	logs, err := s.audit.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	if logs == nil {
		logs = []*models.AuditLog{}
	}
	return logs, nil
}

func nilIfEmpty(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
