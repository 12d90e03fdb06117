// Package models - project.go defines the ebook Project model and its visibility values.
package models

import "time"

// Project visibility values
const (
	VisibilityPublic  = "public"
	VisibilityPrivate = "private"
)

// Project is an ebook owned by one user
type Project struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Title       string    `json:"title"`
	Description *string   `json:"description,omitempty"`
	CoverImage  *string   `json:"cover_image,omitempty"`
	Visibility  string    `json:"visibility"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// IsPublic reports whether anyone may read the project.
func (p *Project) IsPublic() bool {
	return p.Visibility == VisibilityPublic
}

// CanView reports whether viewerID may read the project. An empty viewerID is an anonymous reader.
func (p *Project) CanView(viewerID string) bool {
	return p.IsPublic() || (viewerID != "" && viewerID == p.UserID)
}

// IsOwner reports whether userID owns the project.
func (p *Project) IsOwner(userID string) bool {
	return userID != "" && userID == p.UserID
}

// ValidVisibility reports whether v is a known visibility value.
func ValidVisibility(v string) bool {
	return v == VisibilityPublic || v == VisibilityPrivate
}
