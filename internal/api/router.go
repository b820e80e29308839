// Package api provides the HTTP API for ecosensor.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/ecosensor/ecosensor/internal/api/handler"
	"github.com/ecosensor/ecosensor/internal/api/middleware"
	"github.com/ecosensor/ecosensor/internal/api/response"
	"github.com/ecosensor/ecosensor/internal/provider/resilience"
)

// AirQualityService is the core the API exposes.
type AirQualityService interface {
	handler.AirQualityService
	handler.LayerCatalog
}

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version    string
	BuildTime  string
	Logger     zerolog.Logger
	Metrics    *middleware.Metrics
	Service    AirQualityService
	Registry   *resilience.Registry
	RequireTLS bool
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware - order matters
	r.Use(middleware.RequestID) // Generate/propagate request ID first
	r.Use(middleware.Tracing()) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))         // Structured logging
	r.Use(middleware.Recovery(cfg.Logger))       // Panic recovery
	r.Use(chimiddleware.RealIP)                  // Real IP extraction
	r.Use(middleware.SecurityHeaders)            // Security headers (HSTS, CSP, etc.)
	r.Use(middleware.RequireTLS(cfg.RequireTLS)) // TLS enforcement
	r.Use(middleware.ContentTypeJSON)            // JSON content type

	r.NotFound(response.NotFound)
	r.MethodNotAllowed(response.MethodNotAllowed)

	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.Registry)
	airQualityHandler := handler.NewAirQualityHandler(cfg.Service, cfg.Logger)
	metadataHandler := handler.NewMetadataHandler(cfg.Service)

	queryRateLimit := middleware.RateLimitByIP(middleware.QueryRateLimit)       // 30 req/min
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit) // 100 req/min

	// Legacy query path, kept for existing clients
	r.With(queryRateLimit).Get("/air-quality/", airQualityHandler.GetAirQuality)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.Get("/status", opsHandler.SystemStatus)
		})

		r.With(queryRateLimit).Get("/air-quality", airQualityHandler.GetAirQuality)

		r.Route("/metadata", func(r chi.Router) {
			r.Use(standardRateLimit)
			r.Get("/layers", metadataHandler.ListLayers)
		})
	})

	return r
}
