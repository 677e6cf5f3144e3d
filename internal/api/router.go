// Package api provides the HTTP API for the service health sync service.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/stuartshay/pwsh-azure-health-sub000/internal/api/handler"
	"github.com/stuartshay/pwsh-azure-health-sub000/internal/api/middleware"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version               string
	BuildTime             string
	Logger                zerolog.Logger
	Metrics               *middleware.Metrics
	SyncService           handler.SyncService
	DefaultSubscriptionID string
}

// NewRouter creates a chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing())
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)

	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime)
	healthHandler := handler.NewHealthEventsHandler(cfg.SyncService, cfg.DefaultSubscriptionID, cfg.Logger)

	// The sync endpoint triggers upstream queries and cache writes, so it
	// gets the strict limit.
	syncRateLimit := middleware.RateLimitByIP(middleware.SyncRateLimit)

	r.Route("/api", func(r chi.Router) {
		r.With(syncRateLimit).Get("/GetServiceHealth", healthHandler.GetServiceHealth)
		r.With(syncRateLimit).Post("/GetServiceHealth", healthHandler.GetServiceHealth)
	})

	r.Route("/v1/ops", func(r chi.Router) {
		r.Get("/health", opsHandler.HealthCheck)
		r.Get("/ready", opsHandler.ReadinessCheck)
	})

	return r
}
