// Package main provides the entrypoint for the service health API server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/stuartshay/pwsh-azure-health-sub000/internal/api"
	"github.com/stuartshay/pwsh-azure-health-sub000/internal/api/middleware"
	"github.com/stuartshay/pwsh-azure-health-sub000/internal/cache"
	"github.com/stuartshay/pwsh-azure-health-sub000/internal/config"
	"github.com/stuartshay/pwsh-azure-health-sub000/internal/health"
	"github.com/stuartshay/pwsh-azure-health-sub000/internal/health/resourcegraph"
	"github.com/stuartshay/pwsh-azure-health-sub000/internal/identity"
	"github.com/stuartshay/pwsh-azure-health-sub000/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "service-health-api"

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting service health API")

	cfg := config.FromEnv()
	ctx := context.Background()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Enabled:        cfg.TelemetryEnabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize metrics")
	}

	credential, err := identity.NewCredential()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build azure credential")
	}

	queryClient, err := resourcegraph.NewClient(resourcegraph.ClientConfig{
		Credential: credential,
		Logger:     log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create resource graph client")
	}

	store, err := cache.NewBlobStore(cache.BlobStoreConfig{
		ServiceURL: cfg.StorageServiceURL,
		Credential: credential,
		Container:  cfg.CacheContainer,
		Logger:     log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create cache store")
	}
	if err := store.EnsureContainer(ctx); err != nil {
		log.Warn().Err(err).Msg("could not ensure cache container, writes may fail")
	}

	syncService, err := health.NewService(health.ServiceConfig{
		Source:    queryClient,
		Store:     store,
		Logger:    log,
		Retention: cfg.Retention(),
		RunBudget: cfg.SyncBudget,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create sync service")
	}
	log.Info().
		Str("container", cfg.CacheContainer).
		Dur("retention", cfg.Retention()).
		Msg("sync service initialized")

	router := api.NewRouter(api.RouterConfig{
		Version:               Version,
		BuildTime:             BuildTime,
		Logger:                log,
		Metrics:               metrics,
		SyncService:           syncService,
		DefaultSubscriptionID: cfg.DefaultSubscriptionID,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.SyncBudget + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("server stopped")
}
