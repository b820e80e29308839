// Package main provides the entrypoint for the ecosensor API server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/ecosensor/ecosensor/internal/airquality"
	"github.com/ecosensor/ecosensor/internal/airquality/feed"
	"github.com/ecosensor/ecosensor/internal/api"
	"github.com/ecosensor/ecosensor/internal/api/middleware"
	"github.com/ecosensor/ecosensor/internal/config"
	"github.com/ecosensor/ecosensor/internal/geo"
	"github.com/ecosensor/ecosensor/internal/geocode/nominatim"
	"github.com/ecosensor/ecosensor/internal/provider/resilience"
	"github.com/ecosensor/ecosensor/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := run(); err != nil {
		logger := zerolog.New(os.Stderr)
		logger.Fatal().Err(err).Msg("ecosensor api failed")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := zerolog.New(os.Stdout).
		Level(cfg.LogLevel()).
		With().
		Timestamp().
		Str("service", cfg.Telemetry.ServiceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Str("environment", cfg.Environment).
		Msg("starting ecosensor API")

	ctx := context.Background()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Enabled:        cfg.Telemetry.Enabled,
		Logger:         log,
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()
	if tp.Enabled() {
		log.Info().
			Str("otlp_endpoint", cfg.Telemetry.OTLPEndpoint).
			Msg("OpenTelemetry initialized")
	}

	httpMetrics, err := middleware.NewMetrics()
	if err != nil {
		return err
	}
	providerMetrics, err := resilience.NewMetrics()
	if err != nil {
		return err
	}
	registry := resilience.NewRegistry()

	feedHTTP := resilience.DefaultClientConfig(feed.ProviderName)
	feedHTTP.Timeout = cfg.Feed.Timeout
	feedHTTP.MaxRetries = cfg.Feed.MaxRetries
	feedHTTP.Registry = registry
	feedHTTP.Metrics = providerMetrics
	feedHTTP.Logger = log

	geoHTTP := resilience.DefaultClientConfig(nominatim.ProviderName)
	geoHTTP.Timeout = cfg.Geocoder.Timeout
	geoHTTP.MaxRetries = cfg.Geocoder.MaxRetries
	geoHTTP.Registry = registry
	geoHTTP.Metrics = providerMetrics
	geoHTTP.Logger = log

	filter := airquality.LayerFilter{Field: cfg.Layers.FilterField, Value: cfg.Layers.FilterValue}

	service, err := airquality.NewService(airquality.ServiceConfig{
		Feed: feed.NewClient(feed.ClientConfig{
			BaseURL:    cfg.Feed.BaseURL,
			HTTPClient: resilience.NewClient(feedHTTP),
		}),
		Geocoder: nominatim.NewClient(nominatim.ClientConfig{
			BaseURL:    cfg.Geocoder.BaseURL,
			Language:   cfg.Geocoder.Language,
			UserAgent:  cfg.Geocoder.UserAgent,
			HTTPClient: resilience.NewClient(geoHTTP),
		}),
		Logger:          log,
		LayerFilter:     &filter,
		FeatureCRS:      geo.CRS(cfg.Projection.FeatureCRS),
		RecordCRS:       geo.CRS(cfg.Projection.RecordCRS),
		DisableLocation: !cfg.Query.WithLocation,
		Concurrency:     cfg.Query.Concurrency,
	})
	if err != nil {
		return err
	}
	log.Info().
		Str("feed", cfg.Feed.BaseURL).
		Str("geocoder", cfg.Geocoder.BaseURL).
		Int("providers", registry.ProviderCount()).
		Msg("air quality service initialized")

	router := api.NewRouter(api.RouterConfig{
		Version:    Version,
		BuildTime:  BuildTime,
		Logger:     log,
		Metrics:    httpMetrics,
		Service:    service,
		Registry:   registry,
		RequireTLS: cfg.Server.RequireTLS,
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serverErr:
		return err
	case <-quit:
	}

	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	log.Info().Msg("server stopped")
	return nil
}
