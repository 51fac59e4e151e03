package handler

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/inkpost/inkpost/internal/auth"
	"github.com/inkpost/inkpost/internal/metrics"
	"github.com/inkpost/inkpost/internal/middleware"
	"github.com/inkpost/inkpost/internal/service"
)

// RouterConfig carries everything the HTTP surface depends on.
type RouterConfig struct {
	Logger    *slog.Logger
	Content   *service.ContentService
	Health    *HealthHandler
	Metrics   metrics.Snapshotter
	Recorder  metrics.Recorder
	Providers []auth.Provider

	Security  middleware.SecurityConfig
	CORS      middleware.CORSConfig
	RateLimit middleware.RateLimitConfig
	// MaxBodyBytes caps request bodies. Zero disables the cap.
	MaxBodyBytes int64
}

// NewRouter builds the chi router with global middleware and all routes.
func NewRouter(cfg RouterConfig) *chi.Mux {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	recorder := cfg.Recorder
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	health := cfg.Health
	if health == nil {
		health = NewHealthHandler(nil, nil)
	}

	h := New()
	content := NewContentHandler(cfg.Content, logger)

	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger, recorder))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.Security(cfg.Security))
	r.Use(middleware.CORS(cfg.CORS))
	if cfg.MaxBodyBytes > 0 {
		r.Use(middleware.MaxBodySize(cfg.MaxBodyBytes))
	}

	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)
	r.Get("/metrics", NewMetricsHandler(cfg.Metrics).Metrics)
	r.Get("/", h.Hello)

	rateLimitCfg := cfg.RateLimit
	if rateLimitCfg.Logger == nil {
		rateLimitCfg.Logger = logger
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Identity(middleware.IdentityConfig{
			Logger:    logger,
			Providers: cfg.Providers,
		}))
		r.Use(middleware.RateLimit(rateLimitCfg))

		r.Get("/feed", content.Feed)
		r.Get("/drafts", content.Drafts)

		r.Route("/users", func(r chi.Router) {
			r.Get("/", content.ListUsers)
			r.Post("/", content.Signup)
		})

		r.Route("/posts", func(r chi.Router) {
			r.Get("/", content.SearchPosts)
			r.Post("/", content.CreateDraft)
			r.Get("/{postId}", content.GetPost)
			r.Put("/{postId}/publish", content.Publish)
			r.Delete("/{postId}", content.DeletePost)
		})
	})

	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.MethodNotAllowed)

	return r
}
