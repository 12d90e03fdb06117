// Package models - chapter.go defines the Chapter model.
package models

import "time"

// Chapter is one ordered section of a project. OrderIndex is assigned from the
// sibling count at creation time and is not guaranteed to be unique or contiguous.
type Chapter struct {
	ID         string    `json:"id"`
	ProjectID  string    `json:"project_id"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	VideoURL   *string   `json:"video_url,omitempty"`
	OrderIndex int       `json:"order_index"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
