// Package api wires together all HTTP routes for the Sharebook backend.
//
// Route grouping:
//   - Reading routes (explore, profiles, public projects, chapters and PDF
//     downloads) use optional authentication: anonymous readers see public
//     projects, owners also see their private ones.
//   - Every write, the AI provider credentials, the assistant and the reader
//     settings require a session token.
//   - Locally stored uploads are served under /files with their own security
//     headers so the reader frontend can embed them from another origin.
package api

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/sharebook/sharebook/internal/api/account"
	"github.com/sharebook/sharebook/internal/api/assistant"
	"github.com/sharebook/sharebook/internal/api/books"
	"github.com/sharebook/sharebook/internal/auth/oidc"
	"github.com/sharebook/sharebook/internal/config"
	"github.com/sharebook/sharebook/internal/crypto"
	"github.com/sharebook/sharebook/internal/db/repositories"
	"github.com/sharebook/sharebook/internal/export"
	"github.com/sharebook/sharebook/internal/middleware"
	"github.com/sharebook/sharebook/internal/services"
	"github.com/sharebook/sharebook/internal/storage"
	"github.com/sharebook/sharebook/internal/storage/local"

	// Import storage backends to register them
	_ "github.com/sharebook/sharebook/internal/storage/azure"
	_ "github.com/sharebook/sharebook/internal/storage/gcs"
	_ "github.com/sharebook/sharebook/internal/storage/s3"

	// Import AI providers to register them via init()
	_ "github.com/sharebook/sharebook/internal/llm/gemini"
	_ "github.com/sharebook/sharebook/internal/llm/openai"
)

// Version is the server version reported by /version. It is overridden at
// build time with -ldflags "-X github.com/sharebook/sharebook/internal/api.Version=...".
var Version = "0.1.0"

// BackgroundServices holds resources that must be released during graceful
// shutdown. The caller (cmd/server) is responsible for calling Shutdown() when
// the process receives a termination signal.
type BackgroundServices struct {
	closers []func()
}

// Shutdown releases the rate limiters. It should be called after the HTTP
// server has been shut down so that in-flight requests are drained first.
func (bg *BackgroundServices) Shutdown() {
	if bg == nil {
		return
	}
	slog.Info("stopping background services")
	for _, closeFn := range bg.closers {
		closeFn()
	}
	slog.Info("all background services stopped")
}

// Pinger probes a dependency for readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewRouter creates and configures the Gin router
func NewRouter(cfg *config.Config, db *sql.DB) (*gin.Engine, *BackgroundServices, error) {
	storageBackend, err := storage.NewStorage(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize storage backend: %w", err)
	}
	slog.Info("initialized storage backend", "backend", cfg.Storage.DefaultBackend)

	// Repositories
	sqlxDB := sqlx.NewDb(db, "postgres")
	userRepo := repositories.NewUserRepository(db)
	projectRepo := repositories.NewProjectRepository(db)
	chapterRepo := repositories.NewChapterRepository(db)
	auditRepo := repositories.NewAuditRepository(db)
	credentialRepo := repositories.NewCredentialRepository(sqlxDB)
	settingsRepo := repositories.NewSettingsRepository(sqlxDB)

	// The credential store keeps working without a key: saving fails with 503
	// and stored keys read as absent.
	cipher, err := crypto.NewStaticCipherFromHex(cfg.Encryption.Key, cfg.Encryption.IV)
	if err != nil {
		slog.Warn("credential encryption is not available; AI provider keys cannot be saved", "error", err)
		cipher = &crypto.StaticCipher{}
	}

	// Services
	assetService := services.NewAssetService(storageBackend, cfg.Storage.Buckets, projectRepo)
	authService := services.NewAuthService(userRepo, cfg.Auth.TokenTTL, cfg.Auth.AllowSignup)
	projectService := services.NewProjectService(projectRepo, assetService)
	chapterService := services.NewChapterService(projectRepo, chapterRepo)
	credentialStore := services.NewCredentialStore(credentialRepo, cipher)
	assistantService := services.NewAssistantService(credentialStore, cfg.Assistant, nil)
	exportService := services.NewExportService(projectRepo, chapterRepo, assetService,
		export.NewCoverFetcher(cfg.Export.CoverFetchTimeout),
		export.Options{PageSize: cfg.Export.PageSize, Margin: cfg.Export.Margin})
	accountService := services.NewAccountService(settingsRepo, userRepo, projectRepo, auditRepo)

	var identityProvider account.IdentityProvider
	if cfg.Auth.OIDC.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		provider, err := oidc.NewProvider(ctx, &cfg.Auth.OIDC)
		cancel()
		if err != nil {
			slog.Error("OIDC login disabled: provider discovery failed", "issuer", cfg.Auth.OIDC.IssuerURL, "error", err)
		} else {
			identityProvider = provider
		}
	}

	bg := &BackgroundServices{}
	var apiLimit, authLimit, assistantLimit gin.HandlerFunc = passThrough, passThrough, passThrough
	if cfg.Security.RateLimiting.Enabled {
		limits := []struct {
			target *gin.HandlerFunc
			cfg    middleware.RateLimitConfig
			prefix string
		}{
			{&apiLimit, middleware.RateLimitConfigFrom(cfg.Security.RateLimiting), "sharebook:rl:api:"},
			{&authLimit, middleware.AuthRateLimitConfig(), "sharebook:rl:auth:"},
			{&assistantLimit, middleware.AssistantRateLimitConfig(), "sharebook:rl:assistant:"},
		}
		for _, l := range limits {
			limiter, closeFn, err := middleware.NewLimiter(cfg.Security.RateLimiting, l.cfg, l.prefix)
			if err != nil {
				bg.Shutdown()
				return nil, nil, err
			}
			bg.closers = append(bg.closers, closeFn)
			*l.target = middleware.RateLimitMiddleware(limiter)
		}
	}

	maxUpload := cfg.Storage.MaxUploadMB << 20
	secureCookie := cfg.Security.TLS.Enabled || strings.HasPrefix(cfg.Server.GetPublicURL(), "https://")

	authHandlers := account.NewAuthHandlers(authService, identityProvider, secureCookie)
	settingsHandlers := account.NewSettingsHandlers(accountService)
	projectHandlers := books.NewProjectHandlers(projectService, maxUpload)
	chapterHandlers := books.NewChapterHandlers(chapterService)
	assetHandlers := books.NewAssetHandlers(assetService, maxUpload)
	exportHandlers := books.NewExportHandlers(exportService)
	providerHandlers := assistant.NewProviderHandlers(credentialStore, assistantService)
	assistantHandlers := assistant.NewHandlers(assistantService, cfg.Security.CORS.AllowedOrigins)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(LoggerMiddleware())
	router.Use(CORSMiddleware(cfg))
	router.Use(middleware.SecurityHeadersMiddleware(middleware.APISecurityHeadersConfig(cfg.Security.TLS.Enabled)))

	router.GET("/health", healthCheckHandler(db))
	router.GET("/ready", readinessHandler(db, assetService))
	router.GET("/version", versionHandler())

	if cfg.Storage.DefaultBackend == "local" {
		files := router.Group(local.FilesRoute,
			middleware.SecurityHeadersMiddleware(middleware.FilesSecurityHeadersConfig(cfg.Security.TLS.Enabled)))
		files.Static("/", cfg.Storage.Local.BasePath)
	}

	requireAuth := middleware.AuthMiddleware(userRepo)
	optionalAuth := middleware.OptionalAuthMiddleware(userRepo)
	audit := middleware.AuditMiddleware(auditRepo, cfg.Audit)

	apiV1 := router.Group("/api/v1", apiLimit)
	{
		authGroup := apiV1.Group("/auth")
		{
			authGroup.POST("/signup", authLimit, authHandlers.Signup)
			authGroup.POST("/login", authLimit, authHandlers.Login)
			authGroup.GET("/me", requireAuth, authHandlers.Me)
			authGroup.PUT("/password", authLimit, requireAuth, audit, authHandlers.ChangePassword)
			authGroup.GET("/oidc/login", authHandlers.OIDCLogin)
			authGroup.GET("/oidc/callback", authLimit, authHandlers.OIDCCallback)
		}

		// Reading routes: public projects for everyone, private ones for their owner
		public := apiV1.Group("", optionalAuth, audit)
		{
			public.GET("/explore", projectHandlers.Explore)
			public.GET("/users/:id", settingsHandlers.Profile)
			public.GET("/projects/:id", projectHandlers.Get)
			public.GET("/projects/:id/chapters", chapterHandlers.TOC)
			public.GET("/projects/:id/chapters/:chapterId", chapterHandlers.View)
			public.GET("/projects/:id/export.pdf", exportHandlers.Download)
		}

		authenticated := apiV1.Group("", requireAuth, audit)
		{
			authenticated.GET("/projects", projectHandlers.List)
			authenticated.POST("/projects", projectHandlers.Create)
			authenticated.PUT("/projects/:id", projectHandlers.Update)
			authenticated.DELETE("/projects/:id", projectHandlers.Delete)
			authenticated.PUT("/projects/:id/visibility", projectHandlers.SetVisibility)
			authenticated.POST("/projects/:id/cover", projectHandlers.UploadCover)
			authenticated.POST("/projects/:id/export", exportHandlers.Upload)

			authenticated.POST("/projects/:id/chapters", chapterHandlers.Create)
			authenticated.PUT("/projects/:id/chapters/reorder", chapterHandlers.Reorder)
			authenticated.PUT("/projects/:id/chapters/:chapterId", chapterHandlers.Update)
			authenticated.DELETE("/projects/:id/chapters/:chapterId", chapterHandlers.Delete)

			authenticated.GET("/projects/:id/assets", assetHandlers.List)
			authenticated.POST("/projects/:id/assets", assetHandlers.Upload)
			authenticated.DELETE("/assets", assetHandlers.Delete)
			authenticated.GET("/assets/signed", assetHandlers.Signed)

			providersGroup := authenticated.Group("/ai-providers")
			{
				providersGroup.GET("", providerHandlers.List)
				providersGroup.GET("/:provider", providerHandlers.Get)
				providersGroup.PUT("/:provider", providerHandlers.Put)
				providersGroup.DELETE("/:provider", providerHandlers.Delete)
				providersGroup.POST("/:provider/test", assistantLimit, providerHandlers.Test)
			}

			assistantGroup := authenticated.Group("/assistant", assistantLimit)
			{
				assistantGroup.POST("/generate", assistantHandlers.Generate)
				assistantGroup.POST("/stream", assistantHandlers.Stream)
				assistantGroup.GET("/ws", assistantHandlers.WebSocket)
				assistantGroup.POST("/chapter-ideas", assistantHandlers.ChapterIdeas)
				assistantGroup.POST("/improve", assistantHandlers.Improve)
			}

			authenticated.GET("/settings", settingsHandlers.GetSettings)
			authenticated.PUT("/settings", settingsHandlers.UpdateSettings)
			authenticated.GET("/settings/activity", settingsHandlers.Activity)
			authenticated.PUT("/profile", settingsHandlers.UpdateProfile)
		}
	}

	return router, bg, nil
}

// passThrough stands in for a disabled rate limiter.
func passThrough(c *gin.Context) {
	c.Next()
}

// @Summary      Health check
// @Description  Returns the health status of the service, including database connectivity.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "status: healthy, time: RFC3339 timestamp"
// @Failure      503  {object}  map[string]interface{}  "status: unhealthy, error: database connection failed"
// @Router       /health [get]
func healthCheckHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "database connection failed",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// readinessHandler reports whether the service can take traffic. Unlike the
// liveness probe (/health) it also probes the storage backend, so uploads and
// exports that would fail keep the instance out of rotation.
// @Summary      Readiness check
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      503  {object}  map[string]interface{}
// @Router       /ready [get]
func readinessHandler(db *sql.DB, store Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		checks := gin.H{}

		if err := db.PingContext(c.Request.Context()); err != nil {
			checks["database"] = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"ready":  false,
				"checks": checks,
				"error":  "database not ready",
			})
			return
		}
		checks["database"] = "healthy"

		if err := store.Ping(c.Request.Context()); err != nil {
			slog.Warn("storage readiness probe failed", "error", err)
			checks["storage"] = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"ready":  false,
				"checks": checks,
				"error":  "storage backend not ready",
			})
			return
		}
		checks["storage"] = "healthy"

		c.JSON(http.StatusOK, gin.H{
			"ready":  true,
			"checks": checks,
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// versionHandler returns the server and API version
func versionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":     Version,
			"api_version": "v1",
		})
	}
}

// LoggerMiddleware logs one structured record per request. The output format
// (JSON or text) follows the slog handler installed by telemetry.SetupLogger.
func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		level := slog.LevelInfo
		switch status := c.Writer.Status(); {
		case status >= 500:
			level = slog.LevelError
		case status >= 400:
			level = slog.LevelWarn
		}

		// Query strings may carry a websocket access_token; log the route instead.
		slog.LogAttrs(
			c.Request.Context(),
			level,
			"http request",
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.String("route", c.FullPath()),
			slog.Int("status", c.Writer.Status()),
			slog.Int("size", c.Writer.Size()),
			slog.Duration("latency", time.Since(start)),
			slog.String("ip", c.ClientIP()),
			slog.String("request_id", middleware.RequestID(c)),
			slog.String("user_id", middleware.CurrentUserID(c)),
			slog.String("user_agent", c.Request.UserAgent()),
		)
	}
}

// CORSMiddleware handles CORS for the configured origins and methods
func CORSMiddleware(cfg *config.Config) gin.HandlerFunc {
	methods := strings.Join(cfg.Security.CORS.AllowedMethods, ", ")
	if methods == "" {
		methods = "GET, POST, PUT, DELETE, OPTIONS"
	}

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		allowed := false
		for _, allowedOrigin := range cfg.Security.CORS.AllowedOrigins {
			if allowedOrigin == "*" || allowedOrigin == origin {
				allowed = true
				break
			}
		}

		if allowed {
			if origin == "" {
				c.Header("Access-Control-Allow-Origin", "*")
			} else {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Vary", "Origin")
			}
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Methods", methods)
			c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID")
			c.Header("Access-Control-Expose-Headers", "Content-Disposition, X-Request-ID, X-RateLimit-Limit, X-RateLimit-Remaining, Retry-After")
			c.Header("Access-Control-Max-Age", "3600")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
