package books

import (
	"context"
	"mime"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/sharebook/sharebook/internal/api/respond"
	"github.com/sharebook/sharebook/internal/middleware"
	"github.com/sharebook/sharebook/internal/services"
)

// Exporter renders projects to PDF.
type Exporter interface {
	Export(ctx context.Context, viewerID, projectID string, upload bool) (*services.ExportResult, error)
}

// ExportHandlers serves PDF exports
type ExportHandlers struct {
	exporter Exporter
}

// NewExportHandlers creates the export handlers
func NewExportHandlers(exporter Exporter) *ExportHandlers {
	return &ExportHandlers{exporter: exporter}
}

// Download streams the rendered PDF as an attachment
// GET /api/v1/projects/:id/export.pdf
func (h *ExportHandlers) Download(c *gin.Context) {
	res, err := h.exporter.Export(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id"), false)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": res.FileName}))
	c.Header("Content-Length", strconv.Itoa(len(res.PDF)))
	c.Data(http.StatusOK, "application/pdf", res.PDF)
}

// Upload renders the PDF into the exports bucket and returns its URL
// POST /api/v1/projects/:id/export
func (h *ExportHandlers) Upload(c *gin.Context) {
	res, err := h.exporter.Export(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id"), true)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}
