// settings.go implements reader settings, profile editing, the activity feed
// and public profile pages.
package account

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/sharebook/sharebook/internal/api/respond"
	"github.com/sharebook/sharebook/internal/db/models"
	"github.com/sharebook/sharebook/internal/middleware"
	"github.com/sharebook/sharebook/internal/services"
)

// Accounts is the settings and profile side of AccountService.
type Accounts interface {
	GetSettings(ctx context.Context, userID string) (*models.UserSettings, error)
	UpdateSettings(ctx context.Context, userID string, upd services.SettingsUpdate) (*models.UserSettings, error)
	PublicProfile(ctx context.Context, userID string) (*services.Profile, error)
	UpdateProfile(ctx context.Context, userID string, upd services.ProfileUpdate) (*models.User, error)
	RecentActivity(ctx context.Context, userID string, limit int) ([]*models.AuditLog, error)
}

// SettingsHandlers serves /api/v1/settings, /api/v1/profile and /api/v1/users/:id
type SettingsHandlers struct {
	accounts Accounts
}

// NewSettingsHandlers creates the settings handlers
func NewSettingsHandlers(accounts Accounts) *SettingsHandlers {
	return &SettingsHandlers{accounts: accounts}
}

// GetSettings returns the caller's settings, defaults included
// GET /api/v1/settings
func (h *SettingsHandlers) GetSettings(c *gin.Context) {
	st, err := h.accounts.GetSettings(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// UpdateSettings changes theme and/or font size
// PUT /api/v1/settings
func (h *SettingsHandlers) UpdateSettings(c *gin.Context) {
	var upd services.SettingsUpdate
	if !respond.BindJSON(c, &upd) {
		return
	}
	if upd.Theme == nil && upd.FontSize == nil {
		respond.BadRequest(c, "theme or font_size is required")
		return
	}
	st, err := h.accounts.UpdateSettings(c.Request.Context(), middleware.CurrentUserID(c), upd)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// Profile returns a user's public profile with their public projects
// GET /api/v1/users/:id
func (h *SettingsHandlers) Profile(c *gin.Context) {
	profile, err := h.accounts.PublicProfile(c.Request.Context(), c.Param("id"))
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// UpdateProfile changes display name, avatar and/or bio
// PUT /api/v1/profile
func (h *SettingsHandlers) UpdateProfile(c *gin.Context) {
	var upd services.ProfileUpdate
	if !respond.BindJSON(c, &upd) {
		return
	}
	if upd.DisplayName == nil && upd.AvatarURL == nil && upd.Bio == nil {
		respond.BadRequest(c, "display_name, avatar_url or bio is required")
		return
	}
	user, err := h.accounts.UpdateProfile(c.Request.Context(), middleware.CurrentUserID(c), upd)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// Activity lists the caller's recent audited actions, newest first
// GET /api/v1/settings/activity?limit=N
func (h *SettingsHandlers) Activity(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			respond.BadRequest(c, "limit must be a positive integer")
			return
		}
		limit = n
	}
	logs, err := h.accounts.RecentActivity(c.Request.Context(), middleware.CurrentUserID(c), limit)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"activity": logs})
}
