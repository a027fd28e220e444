package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pratik-mahalle/infrasec/internal/api/handlers"
	"github.com/pratik-mahalle/infrasec/internal/api/middleware"
	"github.com/pratik-mahalle/infrasec/internal/config"
	"github.com/pratik-mahalle/infrasec/internal/pkg/logger"
	"github.com/pratik-mahalle/infrasec/internal/pkg/metrics"
)

type Handlers struct {
	Health *handlers.HealthHandler
	Rule   *handlers.RuleHandler
	Scan   *handlers.ScanHandler
}

func New(cfg *config.Config, log *logger.Logger, h *Handlers) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(log))
	r.Use(middleware.Recovery(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.DefaultCORS(cfg.Server.FrontendURL))
	r.Use(middleware.RateLimit(100, 200)) // 100 req/sec, burst of 200
	r.Use(metrics.Middleware)

	// Health checks
	r.Get("/health", h.Health.Healthz)
	r.Get("/healthz", h.Health.Healthz)
	r.Get("/readyz", h.Health.Readyz)

	// Prometheus metrics
	r.Handle("/metrics", metrics.Handler())

	// Rules
	r.Route("/api/v1/rules", func(r chi.Router) {
		r.Get("/", h.Rule.List)
		r.Post("/", h.Rule.Create)
		r.Get("/stats", h.Rule.Stats)
		r.Get("/conflicts", h.Rule.Conflicts)
		r.Post("/conflicts/resolve", h.Rule.ResolveConflict)
		r.Get("/{id}", h.Rule.Get)
		r.Delete("/{id}", h.Rule.Delete)
		r.Post("/{id}/approve", h.Rule.Approve)
		r.Post("/{id}/reject", h.Rule.Reject)
		r.Get("/{id}/versions", h.Rule.Versions)
		r.Get("/{id}/metrics", h.Rule.Metrics)
		r.Post("/{id}/feedback", h.Rule.Feedback)
		r.Get("/{id}/conflicts", h.Rule.ConflictsForRule)
	})

	// Scanning
	r.Route("/api/v1/scan", func(r chi.Router) {
		r.Post("/", h.Scan.ScanContent)
		r.Post("/path", h.Scan.ScanPath)
	})

	// Rule catalog
	r.Post("/api/v1/catalog/reload", h.Scan.ReloadCatalog)

	return r
}
