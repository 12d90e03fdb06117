// Package books implements the HTTP handlers for projects, chapters, assets,
// PDF export and the public explore listing.
package books

import (
	"context"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/sharebook/sharebook/internal/api/respond"
	"github.com/sharebook/sharebook/internal/db/models"
	"github.com/sharebook/sharebook/internal/middleware"
	"github.com/sharebook/sharebook/internal/services"
)

// Projects is the part of ProjectService the handlers use.
type Projects interface {
	Create(ctx context.Context, userID string, in services.ProjectInput) (*models.Project, error)
	Get(ctx context.Context, viewerID, projectID string) (*models.Project, error)
	ListMine(ctx context.Context, userID string) ([]*models.Project, error)
	Update(ctx context.Context, userID, projectID string, in services.ProjectInput) (*models.Project, error)
	SetVisibility(ctx context.Context, userID, projectID, visibility string) (*models.Project, error)
	Delete(ctx context.Context, userID, projectID string) error
	UploadCover(ctx context.Context, userID, projectID, filename string, reader io.Reader, size int64, contentType string) (*models.Project, error)
	ExplorePublic(ctx context.Context, search string, page, limit int) (*services.ExplorePage, error)
}

// ProjectHandlers serves /api/v1/projects and /api/v1/explore
type ProjectHandlers struct {
	projects  Projects
	maxUpload int64
}

// NewProjectHandlers creates the project handlers. maxUpload bounds cover uploads in bytes.
func NewProjectHandlers(projects Projects, maxUpload int64) *ProjectHandlers {
	return &ProjectHandlers{projects: projects, maxUpload: maxUpload}
}

// VisibilityRequest is the body of PUT /projects/:id/visibility
type VisibilityRequest struct {
	Visibility string `json:"visibility" binding:"required"`
}

// List returns the caller's projects
// GET /api/v1/projects
func (h *ProjectHandlers) List(c *gin.Context) {
	projects, err := h.projects.ListMine(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"projects": projects})
}

// @Summary      Create project
// @Description  Create an ebook project owned by the caller. Visibility defaults to private.
// @Tags         Projects
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Success      201  {object}  models.Project
// @Failure      400  {object}  map[string]interface{}  "Missing title or bad visibility"
// @Router       /api/v1/projects [post]
func (h *ProjectHandlers) Create(c *gin.Context) {
	var in services.ProjectInput
	if !respond.BindJSON(c, &in) {
		return
	}
	p, err := h.projects.Create(c.Request.Context(), middleware.CurrentUserID(c), in)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

// Get returns a project the caller may read
// GET /api/v1/projects/:id
func (h *ProjectHandlers) Get(c *gin.Context) {
	p, err := h.projects.Get(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id"))
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// Update saves title, description and optionally visibility
// PUT /api/v1/projects/:id
func (h *ProjectHandlers) Update(c *gin.Context) {
	var in services.ProjectInput
	if !respond.BindJSON(c, &in) {
		return
	}
	p, err := h.projects.Update(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id"), in)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// SetVisibility publishes or unpublishes a project
// PUT /api/v1/projects/:id/visibility
func (h *ProjectHandlers) SetVisibility(c *gin.Context) {
	var req VisibilityRequest
	if !respond.BindJSON(c, &req) {
		return
	}
	p, err := h.projects.SetVisibility(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id"), req.Visibility)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// Delete removes a project, its chapters and its cover
// DELETE /api/v1/projects/:id
func (h *ProjectHandlers) Delete(c *gin.Context) {
	if err := h.projects.Delete(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id")); err != nil {
		respond.Error(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// UploadCover replaces the cover image from the multipart field "file"
// POST /api/v1/projects/:id/cover
func (h *ProjectHandlers) UploadCover(c *gin.Context) {
	up, err := respond.ReadUpload(c, "file", h.maxUpload)
	if err != nil {
		respond.Error(c, err)
		return
	}
	defer up.Close()

	p, err := h.projects.UploadCover(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id"),
		up.Filename, up.File, up.Size, up.ContentType)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// Explore lists public projects
// GET /api/v1/explore?search=&page=&limit=
func (h *ProjectHandlers) Explore(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(services.DefaultExploreLimit)))

	result, err := h.projects.ExplorePublic(c.Request.Context(), c.Query("search"), page, limit)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
