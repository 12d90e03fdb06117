package services

import (
	"context"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/sharebook/sharebook/internal/db/models"
	"github.com/sharebook/sharebook/internal/markdown"
)

// Explore paging defaults.
const (
	DefaultExploreLimit = 12
	MaxExploreLimit     = 50
	MaxTitleLength      = 200
)

// ProjectInput is the editable part of a project.
type ProjectInput struct {
	Title       string  `json:"title"`
	Description *string `json:"description"`
	Visibility  string  `json:"visibility"`
}

// normalize trims the title, strips markup from the description and defaults
// visibility to private.
func (in *ProjectInput) normalize() error {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if utf8.RuneCountInString(in.Title) > MaxTitleLength {
		return fmt.Errorf("%w: title exceeds %d characters", ErrValidation, MaxTitleLength)
	}
	if in.Description != nil {
		d := strings.TrimSpace(markdown.StripTags(*in.Description))
		if d == "" {
			in.Description = nil
		} else {
			in.Description = &d
		}
	}
	if in.Visibility == "" {
		in.Visibility = models.VisibilityPrivate
	}
	if !models.ValidVisibility(in.Visibility) {
		return fmt.Errorf("%w: visibility must be public or private", ErrValidation)
	}
	return nil
}

// ExplorePage is one page of public projects.
type ExplorePage struct {
	Projects   []*models.Project `json:"projects"`
	Total      int               `json:"total"`
	Page       int               `json:"page"`
	Limit      int               `json:"limit"`
	TotalPages int               `json:"total_pages"`
}

// ProjectService manages projects and their covers.
type ProjectService struct {
	projects ProjectStore
	assets   *AssetService
}

// NewProjectService creates a new project service
func NewProjectService(projects ProjectStore, assets *AssetService) *ProjectService {
	return &ProjectService{projects: projects, assets: assets}
}

// Create inserts a project owned by userID.
func (s *ProjectService) Create(ctx context.Context, userID string, in ProjectInput) (*models.Project, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: authentication required", ErrAccessDenied)
	}
	if err := in.normalize(); err != nil {
		return nil, err
	}

	p := &models.Project{
		UserID:      userID,
		Title:       in.Title,
		Description: in.Description,
		Visibility:  in.Visibility,
	}
	if err := s.projects.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Get returns a project readable by viewerID (empty for anonymous readers).
func (s *ProjectService) Get(ctx context.Context, viewerID, projectID string) (*models.Project, error) {
	return loadProject(ctx, s.projects, viewerID, projectID)
}

// ListMine returns the user's projects, most recently updated first.
func (s *ProjectService) ListMine(ctx context.Context, userID string) ([]*models.Project, error) {
	projects, err := s.projects.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if projects == nil {
		projects = []*models.Project{}
	}
	return projects, nil
}

// Update saves title and description, and visibility when supplied.
func (s *ProjectService) Update(ctx context.Context, userID, projectID string, in ProjectInput) (*models.Project, error) {
	p, err := loadOwnedProject(ctx, s.projects, userID, projectID)
	if err != nil {
		return nil, err
	}
	keepVisibility := in.Visibility == ""
	if err := in.normalize(); err != nil {
		return nil, err
	}

	p.Title = in.Title
	p.Description = in.Description
	if err := s.projects.Update(ctx, p); err != nil {
		return nil, err
	}
	if !keepVisibility && in.Visibility != p.Visibility {
		if err := s.projects.UpdateVisibility(ctx, p.ID, in.Visibility); err != nil {
			return nil, err
		}
		p.Visibility = in.Visibility
	}
	return p, nil
}

// SetVisibility changes who can read the project.
func (s *ProjectService) SetVisibility(ctx context.Context, userID, projectID, visibility string) (*models.Project, error) {
	if !models.ValidVisibility(visibility) {
		return nil, fmt.Errorf("%w: visibility must be public or private", ErrValidation)
	}
	p, err := loadOwnedProject(ctx, s.projects, userID, projectID)
	if err != nil {
		return nil, err
	}
	if err := s.projects.UpdateVisibility(ctx, p.ID, visibility); err != nil {
		return nil, err
	}
	p.Visibility = visibility
	return p, nil
}

// Delete removes the project, its chapters (by cascade) and its cover.
func (s *ProjectService) Delete(ctx context.Context, userID, projectID string) error {
	p, err := loadOwnedProject(ctx, s.projects, userID, projectID)
	if err != nil {
		return err
	}
	if err := s.projects.Delete(ctx, p.ID); err != nil {
		return err
	}
	if p.CoverImage != nil && s.assets != nil {
		s.assets.deleteQuietly(ctx, userID, *p.CoverImage)
	}
	return nil
}

// UploadCover stores a new cover image, points the project at it and removes
// the previous cover.
func (s *ProjectService) UploadCover(ctx context.Context, userID, projectID, filename string, reader io.Reader, size int64, contentType string) (*models.Project, error) {
	p, err := loadOwnedProject(ctx, s.projects, userID, projectID)
	if err != nil {
		return nil, err
	}

	asset, err := s.assets.Upload(ctx, userID, s.assets.Buckets().Covers, "covers", filename, reader, size, contentType)
	if err != nil {
		return nil, err
	}
	if err := s.projects.UpdateCover(ctx, p.ID, asset.URL); err != nil {
		s.assets.deleteQuietly(ctx, userID, asset.URL)
		return nil, err
	}

	previous := p.CoverImage
	p.CoverImage = &asset.URL
	if previous != nil && *previous != asset.URL {
		s.assets.deleteQuietly(ctx, userID, *previous)
	}
	return p, nil
}

// ExplorePublic searches public projects by title and description. page
// defaults to 1 and limit to DefaultExploreLimit, capped at MaxExploreLimit.
func (s *ProjectService) ExplorePublic(ctx context.Context, search string, page, limit int) (*ExplorePage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultExploreLimit
	}
	if limit > MaxExploreLimit {
		limit = MaxExploreLimit
	}

	projects, total, err := s.projects.SearchPublic(ctx, strings.TrimSpace(search), limit, (page-1)*limit)
	if err != nil {
		return nil, err
	}
	if projects == nil {
		projects = []*models.Project{}
	}
	return &ExplorePage{
		Projects:   projects,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: (total + limit - 1) / limit,
	}, nil
}
