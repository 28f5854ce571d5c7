package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/bookmarks/bookmarks/internal/metrics"
	"github.com/bookmarks/bookmarks/internal/middleware"
)

// RouterConfig collects everything the route table needs.
type RouterConfig struct {
	Logger  *slog.Logger
	Metrics metrics.Recorder

	Root      *Handler
	Health    *HealthHandler
	Bookmarks *BookmarkHandler
	APIKeys   *APIKeyHandler
	// MetricsHandler serves GET /metrics when set.
	MetricsHandler http.Handler

	Auth      middleware.AuthConfig
	RateLimit middleware.RateLimitConfig
	Security  middleware.SecurityConfig
	CORS      middleware.CORSConfig
	// MaxBodySize is applied when positive.
	MaxBodySize int64
}

// NewRouter configures the chi router with all routes and middleware.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(cfg.Logger, cfg.Metrics))
	r.Use(middleware.Recoverer(cfg.Logger))
	r.Use(middleware.Security(cfg.Security))
	r.Use(middleware.CORS(cfg.CORS))
	if cfg.MaxBodySize > 0 {
		r.Use(middleware.MaxBodySize(cfg.MaxBodySize))
	}

	// Health endpoints (no auth required)
	r.Get("/healthz", cfg.Health.Healthz)
	r.Get("/readyz", cfg.Health.Readyz)
	r.Get("/", cfg.Root.Hello)
	if cfg.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimitIP(cfg.RateLimit))
		r.Use(middleware.Auth(cfg.Auth))
		r.Use(middleware.RateLimitPrincipal(cfg.RateLimit))

		// Bookmarks of the authenticated principal
		r.Route("/bookmarks", func(r chi.Router) {
			r.With(middleware.RequireRead()).Get("/", cfg.Bookmarks.List)
			r.With(middleware.RequireWrite()).Post("/", cfg.Bookmarks.Create)
			r.With(middleware.RequireRead()).Get("/{bookmarkId}", cfg.Bookmarks.Get)
		})

		// API key management (requires admin scope for mutations)
		r.Route("/api-keys", func(r chi.Router) {
			r.With(middleware.RequireRead()).Get("/", cfg.APIKeys.ListAPIKeys)
			r.With(middleware.RequireAdmin()).Post("/", cfg.APIKeys.CreateAPIKey)
			r.With(middleware.RequireAdmin()).Delete("/{keyId}", cfg.APIKeys.RevokeAPIKey)
			r.With(middleware.RequireAdmin()).Post("/{keyId}/rotate", cfg.APIKeys.RotateAPIKey)
		})

		// Bookmarks addressed by owner
		r.Route("/{userId}/bookmarks", func(r chi.Router) {
			r.With(middleware.RequireRead()).Get("/", cfg.Bookmarks.ListForUser)
			r.With(middleware.RequireWrite()).Post("/", cfg.Bookmarks.CreateForUser)
			r.With(middleware.RequireRead()).Get("/{bookmarkId}", cfg.Bookmarks.GetForUser)
		})
	})

	r.NotFound(cfg.Root.NotFound)
	r.MethodNotAllowed(cfg.Root.MethodNotAllowed)

	return r
}
