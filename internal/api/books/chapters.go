package books

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

// Chapters is the part of ChapterService the handlers use.
type Chapters interface {
	TOC(ctx context.Context, viewerID, projectID string) ([]services.TOCEntry, error)
	Create(ctx context.Context, userID, projectID string, in services.ChapterInput) (*models.Chapter, error)
	View(ctx context.Context, viewerID, projectID, chapterID string, safe bool) (*services.ChapterView, error)
	Update(ctx context.Context, userID, projectID, chapterID string, in services.ChapterInput) (*models.Chapter, error)
	Delete(ctx context.Context, userID, projectID, chapterID string) error
	Reorder(ctx context.Context, userID, projectID string, ids []string) error
}

// ChapterHandlers serves /api/v1/projects/:id/chapters
type ChapterHandlers struct {
	chapters Chapters
}

// NewChapterHandlers creates the chapter handlers
func NewChapterHandlers(chapters Chapters) *ChapterHandlers {
	return &ChapterHandlers{chapters: chapters}
}

// ReorderRequest lists every chapter id of a project in the new order
type ReorderRequest struct {
	ChapterIDs []string `json:"chapter_ids" binding:"required"`
}

// TOC returns the table of contents
// GET /api/v1/projects/:id/chapters
func (h *ChapterHandlers) TOC(c *gin.Context) {
	toc, err := h.chapters.TOC(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id"))
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chapters": toc})
}

// Create appends a chapter
// POST /api/v1/projects/:id/chapters
func (h *ChapterHandlers) Create(c *gin.Context) {
	var in services.ChapterInput
	if !respond.BindJSON(c, &in) {
		return
	}
	ch, err := h.chapters.Create(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id"), in)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, ch)
}

// View returns a rendered chapter with navigation. ?safe=true renders with
// the sanitizing pipeline.
// GET /api/v1/projects/:id/chapters/:chapterId
func (h *ChapterHandlers) View(c *gin.Context) {
	safe, _ := strconv.ParseBool(c.DefaultQuery("safe", "false"))
	view, err := h.chapters.View(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id"), c.Param("chapterId"), safe)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Update saves a chapter
// PUT /api/v1/projects/:id/chapters/:chapterId
func (h *ChapterHandlers) Update(c *gin.Context) {
	var in services.ChapterInput
	if !respond.BindJSON(c, &in) {
		return
	}
	ch, err := h.chapters.Update(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id"), c.Param("chapterId"), in)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, ch)
}

// Delete removes a chapter
// DELETE /api/v1/projects/:id/chapters/:chapterId
func (h *ChapterHandlers) Delete(c *gin.Context) {
	if err := h.chapters.Delete(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id"), c.Param("chapterId")); err != nil {
		respond.Error(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Reorder assigns order_index by position in chapter_ids
// PUT /api/v1/projects/:id/chapters/reorder
func (h *ChapterHandlers) Reorder(c *gin.Context) {
	var req ReorderRequest
	if !respond.BindJSON(c, &req) {
		return
	}
	if err := h.chapters.Reorder(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id"), req.ChapterIDs); err != nil {
		respond.Error(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
