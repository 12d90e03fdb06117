// Package models - audit_log.go defines the AuditLog model for recording account
// and content changes, capturing actor, action, affected resource, client IP and metadata.
package models

import "time"

// AuditLog represents an audit log entry for tracking user actions
type AuditLog struct {
	ID           string                 `json:"id"`
	UserID       *string                `json:"user_id,omitempty"`       // Nullable for anonymous actions
	Action       string                 `json:"action"`                  // "POST /api/v1/projects", "auth.login"
	ResourceType *string                `json:"resource_type,omitempty"` // "project", "chapter", "ai_provider"
	ResourceID   *string                `json:"resource_id,omitempty"`   // ID of affected resource
	Metadata     map[string]interface{} `json:"metadata,omitempty"`      // JSONB: additional context
	IPAddress    *string                `json:"ip_address,omitempty"`    // Client IP
	CreatedAt    time.Time              `json:"created_at"`
}
