// audit.go provides Gin middleware that records authenticated write operations to the
// audit_logs table without delaying the response.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sharebook/sharebook/internal/config"
	"github.com/sharebook/sharebook/internal/db/models"
	"github.com/sharebook/sharebook/internal/safego"
)

// auditWriteTimeout bounds each background audit insert.
const auditWriteTimeout = 5 * time.Second

// AuditStore persists audit entries.
type AuditStore interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// auditResources maps a route segment to a resource type and the route param
// holding its id. Later segments win, so /projects/:id/chapters/:chapterId is a chapter.
var auditResources = []struct {
	segment, resourceType, param string
}{
	{"projects", "project", "id"},
	{"chapters", "chapter", "chapterId"},
	{"cover", "cover", "id"},
	{"assets", "asset", "id"},
	{"export", "export", "id"},
	{"ai-providers", "ai_provider", "provider"},
	{"assistant", "assistant", ""},
	{"settings", "settings", ""},
	{"profile", "profile", ""},
	{"password", "password", ""},
}

// classify returns the resource type and id for the matched route.
func classify(c *gin.Context) (string, string) {
	route := c.FullPath()
	resourceType, resourceID := "", ""
	for _, seg := range strings.Split(route, "/") {
		for _, r := range auditResources {
			if seg != r.segment {
				continue
			}
			resourceType = r.resourceType
			resourceID = ""
			if r.param != "" {
				resourceID = c.Param(r.param)
			}
		}
	}
	return resourceType, resourceID
}

// shouldAudit applies the audit config: OPTIONS and anonymous requests are never
// recorded, reads only with LogReadOperations, failures only with LogFailedRequests.
func shouldAudit(c *gin.Context, cfg config.AuditConfig) bool {
	method := c.Request.Method
	if method == http.MethodOptions || CurrentUserID(c) == "" {
		return false
	}
	if (method == http.MethodGet || method == http.MethodHead) && !cfg.LogReadOperations {
		return false
	}
	if c.Writer.Status() >= 400 && !cfg.LogFailedRequests {
		return false
	}
	return true
}

// AuditMiddleware records authenticated actions after the handler has run.
// Writes happen in the background with a detached context.
func AuditMiddleware(store AuditStore, cfg config.AuditConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if !cfg.Enabled || store == nil || !shouldAudit(c, cfg) {
			return
		}

		userID := CurrentUserID(c)
		ip := c.ClientIP()
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		entry := &models.AuditLog{
			UserID:    &userID,
			Action:    c.Request.Method + " " + route,
			IPAddress: &ip,
			Metadata: map[string]interface{}{
				"status_code": c.Writer.Status(),
			},
		}
		if id := RequestID(c); id != "" {
			entry.Metadata["request_id"] = id
		}
		if resourceType, resourceID := classify(c); resourceType != "" {
			entry.ResourceType = &resourceType
			if resourceID != "" {
				entry.ResourceID = &resourceID
			}
		}

		safego.GoTimeout("audit", auditWriteTimeout, func(ctx context.Context) {
			if err := store.CreateAuditLog(ctx, entry); err != nil {
				slog.Error("failed to write audit log", "action", entry.Action, "user_id", userID, "error", err)
			}
		})
	}
}
