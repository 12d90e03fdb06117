// auth.go implements signup, password login, the current-user endpoint and the
// optional OIDC login flow.
package account

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sharebook/sharebook/internal/api/respond"
	"github.com/sharebook/sharebook/internal/auth/oidc"
	"github.com/sharebook/sharebook/internal/db/models"
	"github.com/sharebook/sharebook/internal/middleware"
	"github.com/sharebook/sharebook/internal/services"
)

const (
	// StateCookie carries the OIDC state between login and callback.
	StateCookie = "sharebook_oidc_state"
	// stateTTL is the lifetime of the state cookie in seconds.
	stateTTL = 300
)

// Authenticator is the account side of AuthService.
type Authenticator interface {
	Signup(ctx context.Context, in services.SignupInput) (*services.Session, error)
	Login(ctx context.Context, email, password string) (*services.Session, error)
	Me(ctx context.Context, userID string) (*models.User, error)
	LoginOIDC(ctx context.Context, id *oidc.Identity) (*services.Session, error)
	ChangePassword(ctx context.Context, userID, current, next string) error
}

// IdentityProvider is the OIDC flow used by the login and callback handlers.
type IdentityProvider interface {
	AuthURL(state string) string
	Authenticate(ctx context.Context, code string) (*oidc.Identity, error)
}

// AuthHandlers serves /api/v1/auth
type AuthHandlers struct {
	auth         Authenticator
	oidc         IdentityProvider
	secureCookie bool
}

// NewAuthHandlers creates the auth handlers. A nil provider disables the OIDC routes.
func NewAuthHandlers(auth Authenticator, provider IdentityProvider, secureCookie bool) *AuthHandlers {
	return &AuthHandlers{auth: auth, oidc: provider, secureCookie: secureCookie}
}

// LoginRequest is the password login body
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// @Summary      Sign up
// @Description  Create an account with email and password and return a session token.
// @Tags         Authentication
// @Accept       json
// @Produce      json
// @Success      201  {object}  services.Session
// @Failure      400  {object}  map[string]interface{}  "Invalid email, short password or email taken"
// @Failure      403  {object}  map[string]interface{}  "Signup disabled"
// @Router       /api/v1/auth/signup [post]
func (h *AuthHandlers) Signup(c *gin.Context) {
	var req services.SignupInput
	if !respond.BindJSON(c, &req) {
		return
	}
	session, err := h.auth.Signup(c.Request.Context(), req)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, session)
}

// @Summary      Log in
// @Description  Exchange email and password for a session token.
// @Tags         Authentication
// @Accept       json
// @Produce      json
// @Success      200  {object}  services.Session
// @Failure      401  {object}  map[string]interface{}  "Invalid credentials"
// @Router       /api/v1/auth/login [post]
func (h *AuthHandlers) Login(c *gin.Context) {
	var req LoginRequest
	if !respond.BindJSON(c, &req) {
		return
	}
	session, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// Me returns the authenticated user
// GET /api/v1/auth/me
func (h *AuthHandlers) Me(c *gin.Context) {
	user, err := h.auth.Me(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// ChangePasswordRequest is the password change body. CurrentPassword may be
// empty for SSO-only accounts setting their first password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password" binding:"required"`
}

// @Summary      Change password
// @Description  Replace the caller's password. Accounts with a password must send the current one.
// @Tags         Authentication
// @Accept       json
// @Success      204
// @Failure      400  {object}  map[string]interface{}  "New password too short or too long"
// @Failure      403  {object}  map[string]interface{}  "Current password is incorrect"
// @Router       /api/v1/auth/password [put]
func (h *AuthHandlers) ChangePassword(c *gin.Context) {
	var req ChangePasswordRequest
	if !respond.BindJSON(c, &req) {
		return
	}
	err := h.auth.ChangePassword(c.Request.Context(), middleware.CurrentUserID(c), req.CurrentPassword, req.NewPassword)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// generateState returns a random URL-safe state value
func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// OIDCLogin redirects to the identity provider
// GET /api/v1/auth/oidc/login
func (h *AuthHandlers) OIDCLogin(c *gin.Context) {
	if h.oidc == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "OIDC login is not enabled"})
		return
	}
	state, err := generateState()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate state"})
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(StateCookie, state, stateTTL, "/api/v1/auth/oidc", "", h.secureCookie, true)
	c.Redirect(http.StatusFound, h.oidc.AuthURL(state))
}

// OIDCCallback validates the state cookie, exchanges the code and returns a session
// GET /api/v1/auth/oidc/callback?code=...&state=...
func (h *AuthHandlers) OIDCCallback(c *gin.Context) {
	if h.oidc == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "OIDC login is not enabled"})
		return
	}

	expected, _ := c.Cookie(StateCookie)
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(StateCookie, "", -1, "/api/v1/auth/oidc", "", h.secureCookie, true)

	state := c.Query("state")
	if expected == "" || subtle.ConstantTimeCompare([]byte(expected), []byte(state)) != 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid state parameter. Please try logging in again."})
		return
	}
	if idpErr := c.Query("error"); idpErr != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Identity provider returned an error", "details": idpErr})
		return
	}
	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing authorization code"})
		return
	}

	identity, err := h.oidc.Authenticate(c.Request.Context(), code)
	if err != nil {
		slog.Warn("oidc authentication failed", "error", err)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "OIDC authentication failed"})
		return
	}

	session, err := h.auth.LoginOIDC(c.Request.Context(), identity)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}
