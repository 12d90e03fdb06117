// Package assistant implements the AI provider credential endpoints and the
// writing assistant (one-shot, SSE and websocket streaming).
package assistant

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sharebook/sharebook/internal/api/respond"
	"github.com/sharebook/sharebook/internal/db/models"
	"github.com/sharebook/sharebook/internal/llm"
	"github.com/sharebook/sharebook/internal/middleware"
	"github.com/sharebook/sharebook/internal/services"
)

// Credentials stores users' provider API keys.
type Credentials interface {
	Save(ctx context.Context, userID, provider, apiKey, model string) (*models.ProviderCredential, error)
	Get(ctx context.Context, userID, provider string) (*models.ProviderCredential, error)
	GetDecrypted(ctx context.Context, userID, provider string) (string, bool)
	Delete(ctx context.Context, userID, provider string) error
	Summary(cred *models.ProviderCredential) services.CredentialSummary
	List(ctx context.Context, userID string) ([]services.CredentialSummary, error)
}

// KeyTester checks a key against its provider.
type KeyTester interface {
	TestKey(ctx context.Context, provider, key, model string) error
}

// ProviderHandlers serves /ai-providers
type ProviderHandlers struct {
	creds  Credentials
	tester KeyTester
}

// NewProviderHandlers creates the provider credential handlers
func NewProviderHandlers(creds Credentials, tester KeyTester) *ProviderHandlers {
	return &ProviderHandlers{creds: creds, tester: tester}
}

// KeyRequest carries a provider key and optional model.
type KeyRequest struct {
	APIKey string `json:"api_key"`
	Model  string `json:"model"`
}

// List returns the caller's saved providers and the providers the server supports
// @Summary      List AI provider credentials
// @Tags         AI Providers
// @Produce      json
// @Security     Bearer
// @Success      200  {object}  map[string]interface{}
// @Router       /api/v1/ai-providers [get]
func (h *ProviderHandlers) List(c *gin.Context) {
	summaries, err := h.creds.List(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"providers": summaries,
		"available": llm.Registered(),
	})
}

// Get returns the masked credential for one provider
// GET /api/v1/ai-providers/:provider
func (h *ProviderHandlers) Get(c *gin.Context) {
	cred, err := h.creds.Get(c.Request.Context(), middleware.CurrentUserID(c), c.Param("provider"))
	if err != nil {
		respond.Error(c, err)
		return
	}
	if cred == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Provider not configured"})
		return
	}
	c.JSON(http.StatusOK, h.creds.Summary(cred))
}

// Put saves (or replaces) the key for a provider
// PUT /api/v1/ai-providers/:provider
func (h *ProviderHandlers) Put(c *gin.Context) {
	var req KeyRequest
	if !respond.BindJSON(c, &req) {
		return
	}
	cred, err := h.creds.Save(c.Request.Context(), middleware.CurrentUserID(c), c.Param("provider"), req.APIKey, req.Model)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, h.creds.Summary(cred))
}

// Delete removes the key for a provider
// DELETE /api/v1/ai-providers/:provider
func (h *ProviderHandlers) Delete(c *gin.Context) {
	if err := h.creds.Delete(c.Request.Context(), middleware.CurrentUserID(c), c.Param("provider")); err != nil {
		respond.Error(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Test checks a key against the provider. Without api_key in the body the
// stored key is tested. A key the provider rejects is reported as
// {"valid": false} rather than as an error status.
// POST /api/v1/ai-providers/:provider/test
func (h *ProviderHandlers) Test(c *gin.Context) {
	var req KeyRequest
	if c.Request.ContentLength != 0 && !respond.BindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()
	provider := c.Param("provider")

	key, model := req.APIKey, req.Model
	if key == "" {
		stored, ok := h.creds.GetDecrypted(ctx, middleware.CurrentUserID(c), provider)
		if !ok {
			respond.BadRequest(c, "api_key is required")
			return
		}
		key = stored
		if model == "" {
			if cred, err := h.creds.Get(ctx, middleware.CurrentUserID(c), provider); err == nil {
				model = cred.ModelOr("")
			}
		}
	}

	err := h.tester.TestKey(ctx, provider, key, model)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"valid": true})
	case errors.Is(err, services.ErrUpstream), errors.Is(err, services.ErrConfiguration):
		c.JSON(http.StatusOK, gin.H{"valid": false, "error": err.Error()})
	default:
		respond.Error(c, err)
	}
}
