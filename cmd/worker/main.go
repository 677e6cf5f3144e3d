// Package main provides the entrypoint for the background sync worker.
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/stuartshay/pwsh-azure-health-sub000/internal/cache"
	"github.com/stuartshay/pwsh-azure-health-sub000/internal/config"
	"github.com/stuartshay/pwsh-azure-health-sub000/internal/health"
	"github.com/stuartshay/pwsh-azure-health-sub000/internal/health/resourcegraph"
	"github.com/stuartshay/pwsh-azure-health-sub000/internal/identity"
	"github.com/stuartshay/pwsh-azure-health-sub000/internal/telemetry"
	"github.com/stuartshay/pwsh-azure-health-sub000/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "service-health-worker"

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting service health worker")

	cfg := config.FromEnv()
	if len(cfg.Subscriptions) == 0 {
		log.Fatal().Msg("no subscriptions configured, set SUBSCRIPTION_ID or SUBSCRIPTION_IDS")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

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

	job := worker.NewSyncJob(worker.SyncJobConfig{
		Options: worker.SyncJobOptions{
			Subscriptions: cfg.Subscriptions,
			Interval:      cfg.SyncInterval,
		},
		Syncer: syncService,
		Logger: log,
	})

	// Queue trigger is optional, the timer loop runs either way.
	var queueHandler *worker.QueueHandler
	if cfg.ServiceBusNamespace != "" {
		queueHandler, err = worker.NewQueueHandler(worker.QueueConfig{
			Namespace:  cfg.ServiceBusNamespace,
			Queue:      cfg.ServiceBusQueue,
			Credential: credential,
			Job:        job,
			Logger:     log,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create service bus handler")
		}

		go func() {
			if err := queueHandler.Start(ctx); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("service bus handler stopped")
			}
		}()
	}

	healthServer := startHealthServer(cfg.Port, job, log)

	go func() {
		runSyncLoop(ctx, job, cfg.SyncInterval, log)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down worker")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if queueHandler != nil {
		if err := queueHandler.Close(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("failed to close service bus handler")
		}
	}
	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}

// runSyncLoop executes the sync job immediately and then on every interval
// tick until the context is cancelled.
func runSyncLoop(ctx context.Context, job *worker.SyncJob, interval time.Duration, log zerolog.Logger) {
	runOnce := func() {
		summary := job.Run(ctx)
		log.Info().
			Int("successful", summary.Successful).
			Int("failed", summary.Failed).
			Dur("duration", summary.Duration).
			Msg("sync cycle complete")
	}

	runOnce()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("sync loop stopped")
			return
		case <-ticker.C:
			runOnce()
		}
	}
}

// startHealthServer exposes liveness and job metrics for the worker.
func startHealthServer(port string, job *worker.SyncJob, log zerolog.Logger) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status":  "healthy",
			"service": "service-health-worker",
			"version": Version,
		})
	})

	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(job.GetMetrics())
	})

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("worker health server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	return server
}
