package books

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sharebook/sharebook/internal/api/respond"
	"github.com/sharebook/sharebook/internal/middleware"
	"github.com/sharebook/sharebook/internal/services"
	"github.com/sharebook/sharebook/internal/storage"
)

// Assets is the part of AssetService the handlers use.
type Assets interface {
	UploadProjectAsset(ctx context.Context, userID, projectID, filename string, reader io.Reader, size int64, contentType string) (*services.UploadedAsset, error)
	ListProjectAssets(ctx context.Context, userID, projectID string) ([]storage.ObjectInfo, error)
	Delete(ctx context.Context, userID, rawURL string) error
	SignedURL(ctx context.Context, bucket, objectPath string, ttl time.Duration) (string, error)
}

// AssetHandlers serves chapter assets and signed downloads
type AssetHandlers struct {
	assets    Assets
	maxUpload int64
}

// NewAssetHandlers creates the asset handlers. maxUpload bounds uploads in bytes.
func NewAssetHandlers(assets Assets, maxUpload int64) *AssetHandlers {
	return &AssetHandlers{assets: assets, maxUpload: maxUpload}
}

// List returns the project's uploaded assets, newest first
// GET /api/v1/projects/:id/assets
func (h *AssetHandlers) List(c *gin.Context) {
	objs, err := h.assets.ListProjectAssets(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id"))
	if err != nil {
		respond.Error(c, err)
		return
	}
	if objs == nil {
		objs = []storage.ObjectInfo{}
	}
	c.JSON(http.StatusOK, gin.H{"assets": objs})
}

// Upload stores the multipart field "file" in the project's asset folder
// POST /api/v1/projects/:id/assets
func (h *AssetHandlers) Upload(c *gin.Context) {
	up, err := respond.ReadUpload(c, "file", h.maxUpload)
	if err != nil {
		respond.Error(c, err)
		return
	}
	defer up.Close()

	asset, err := h.assets.UploadProjectAsset(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id"),
		up.Filename, up.File, up.Size, up.ContentType)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, asset)
}

// Delete removes an object the caller uploaded, by public URL
// DELETE /api/v1/assets?url=
func (h *AssetHandlers) Delete(c *gin.Context) {
	raw := c.Query("url")
	if raw == "" {
		respond.BadRequest(c, "url is required")
		return
	}
	if err := h.assets.Delete(c.Request.Context(), middleware.CurrentUserID(c), raw); err != nil {
		respond.Error(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Signed returns a temporary download URL
// GET /api/v1/assets/signed?bucket=&path=&expires_in=
func (h *AssetHandlers) Signed(c *gin.Context) {
	var ttl time.Duration
	if v := c.Query("expires_in"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			respond.BadRequest(c, "expires_in must be a duration such as 60s")
			return
		}
		ttl = d
	}
	u, err := h.assets.SignedURL(c.Request.Context(), c.Query("bucket"), c.Query("path"), ttl)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": u})
}
