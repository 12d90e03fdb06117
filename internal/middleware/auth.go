// Package middleware provides Gin HTTP middleware for authentication, rate
// limiting, security headers, request ids, metrics and audit logging.
//
// Middleware ordering matters and is enforced in router.go:
//
//	RequestID → Metrics → Logger → CORS → Security → RateLimit → Auth → Audit → Handler
//
// Security headers run before anything can abort so they appear on error
// responses too. Rate limiting runs before auth to block brute-force attempts
// before any DB work. Audit reads the identity that auth stored on the context.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sharebook/sharebook/internal/auth"
	"github.com/sharebook/sharebook/internal/db/models"
)

// Context keys set by the auth middleware.
const (
	ContextUser   = "user"
	ContextUserID = "user_id"
)

// UserLoader loads the account behind a token.
type UserLoader interface {
	GetUserByID(ctx context.Context, userID string) (*models.User, error)
}

// bearerToken extracts the session token. Browsers cannot set headers on a
// websocket handshake, so upgrade requests may pass it as ?access_token=.
func bearerToken(c *gin.Context) (string, string) {
	header := c.GetHeader("Authorization")
	if header == "" {
		if c.IsWebsocket() {
			if t := strings.TrimSpace(c.Query("access_token")); t != "" {
				return t, ""
			}
		}
		return "", "Missing authorization header"
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return "", "Authorization header must start with 'Bearer '"
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		return "", "Authorization token is empty"
	}
	return token, ""
}

// AuthMiddleware requires a valid session token for an existing user.
func AuthMiddleware(users UserLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, problem := bearerToken(c)
		if problem != "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": problem})
			return
		}

		claims, err := auth.ValidateJWT(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		user, err := users.GetUserByID(c.Request.Context(), claims.UserID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to load user"})
			return
		}
		if user == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "User not found"})
			return
		}

		c.Set(ContextUser, user)
		c.Set(ContextUserID, user.ID)
		c.Next()
	}
}

// OptionalAuthMiddleware sets the user when a valid token is present and
// otherwise lets the request through anonymously.
func OptionalAuthMiddleware(users UserLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, problem := bearerToken(c)
		if problem != "" {
			c.Next()
			return
		}

		if claims, err := auth.ValidateJWT(token); err == nil {
			user, err := users.GetUserByID(c.Request.Context(), claims.UserID)
			if err == nil && user != nil {
				c.Set(ContextUser, user)
				c.Set(ContextUserID, user.ID)
			}
		}
		c.Next()
	}
}

// CurrentUserID returns the authenticated user's id, or "" for anonymous requests.
func CurrentUserID(c *gin.Context) string {
	return c.GetString(ContextUserID)
}

// CurrentUser returns the authenticated user, or nil.
func CurrentUser(c *gin.Context) *models.User {
	if v, ok := c.Get(ContextUser); ok {
		if u, ok := v.(*models.User); ok {
			return u
		}
	}
	return nil
}
