// Package config collects service configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds configuration shared by the API server and the worker.
type Config struct {
	// Port is the HTTP listen port.
	Port string

	// Environment names the deployment environment (development, production).
	Environment string

	// DefaultSubscriptionID is used when a request carries no subscription.
	DefaultSubscriptionID string

	// Subscriptions are the subscription ids the worker syncs.
	Subscriptions []string

	// StorageServiceURL is the blob endpoint for the cache store.
	StorageServiceURL string

	// CacheContainer is the blob container for cache documents.
	CacheContainer string

	// RetentionDays is how long Resolved events stay cached.
	RetentionDays int

	// SyncBudget is the soft deadline per sync run.
	SyncBudget time.Duration

	// SyncInterval is the worker's scheduled sync period.
	SyncInterval time.Duration

	// ServiceBusNamespace enables the queue trigger when non-empty, e.g.
	// <namespace>.servicebus.windows.net.
	ServiceBusNamespace string

	// ServiceBusQueue is the queue carrying sync job messages.
	ServiceBusQueue string

	// OTLPEndpoint is the OpenTelemetry collector endpoint.
	OTLPEndpoint string

	// TelemetryEnabled toggles OTLP export.
	TelemetryEnabled bool
}

// FromEnv creates a Config from environment variables.
func FromEnv() Config {
	retentionDays, _ := strconv.Atoi(getEnvOrDefault("RETENTION_DAYS", "7"))
	syncBudget, _ := time.ParseDuration(getEnvOrDefault("SYNC_BUDGET", "10m"))
	syncInterval, _ := time.ParseDuration(getEnvOrDefault("SYNC_INTERVAL", "15m"))

	return Config{
		Port:                  getEnvOrDefault("APP_PORT", "8080"),
		Environment:           getEnvOrDefault("APP_ENV", "development"),
		DefaultSubscriptionID: os.Getenv("SUBSCRIPTION_ID"),
		Subscriptions:         splitList(getEnvOrDefault("SUBSCRIPTION_IDS", os.Getenv("SUBSCRIPTION_ID"))),
		StorageServiceURL:     os.Getenv("STORAGE_SERVICE_URL"),
		CacheContainer:        getEnvOrDefault("CACHE_CONTAINER", "health-cache"),
		RetentionDays:         retentionDays,
		SyncBudget:            syncBudget,
		SyncInterval:          syncInterval,
		ServiceBusNamespace:   os.Getenv("SERVICEBUS_NAMESPACE"),
		ServiceBusQueue:       getEnvOrDefault("SERVICEBUS_QUEUE", "health-sync"),
		OTLPEndpoint:          getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		TelemetryEnabled:      os.Getenv("OTEL_ENABLED") == "true",
	}
}

// Retention returns the retention window as a duration.
func (c Config) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getEnvOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
