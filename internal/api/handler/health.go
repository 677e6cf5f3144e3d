// Package handler implements the HTTP API handlers.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	"github.com/stuartshay/pwsh-azure-health-sub000/internal/api/models"
	"github.com/stuartshay/pwsh-azure-health-sub000/internal/api/response"
	"github.com/stuartshay/pwsh-azure-health-sub000/internal/health"
	"github.com/stuartshay/pwsh-azure-health-sub000/internal/resilience"
)

// SyncService runs a synchronization and returns the merged cache view.
type SyncService interface {
	Sync(ctx context.Context, subscriptionID string) (*health.RunResult, error)
}

// HealthEventsHandler handles the GetServiceHealth endpoint.
type HealthEventsHandler struct {
	service               SyncService
	defaultSubscriptionID string
	logger                zerolog.Logger
}

// NewHealthEventsHandler creates a HealthEventsHandler.
func NewHealthEventsHandler(service SyncService, defaultSubscriptionID string, logger zerolog.Logger) *HealthEventsHandler {
	return &HealthEventsHandler{
		service:               service,
		defaultSubscriptionID: defaultSubscriptionID,
		logger:                logger,
	}
}

// GetServiceHealth handles GET|POST /api/GetServiceHealth. The subscription
// id comes from the query string, the JSON body, or the configured default,
// in that order.
func (h *HealthEventsHandler) GetServiceHealth(w http.ResponseWriter, r *http.Request) {
	subscriptionID := r.URL.Query().Get("SubscriptionId")

	if subscriptionID == "" && r.Method == http.MethodPost && r.Body != nil {
		var input models.SyncRequest
		// A missing or empty body is fine; only use it when it parses.
		if err := json.NewDecoder(r.Body).Decode(&input); err == nil {
			subscriptionID = input.SubscriptionID
		}
	}

	if subscriptionID == "" {
		subscriptionID = h.defaultSubscriptionID
	}
	if subscriptionID == "" {
		response.BadRequest(w, r, "SubscriptionId is required")
		return
	}

	result, err := h.service.Sync(r.Context(), subscriptionID)
	if err != nil {
		h.writeSyncError(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, models.ServiceHealthResponse{
		SubscriptionID: subscriptionID,
		RetrievedAt:    time.Now().UTC(),
		EventCount:     result.EventCount,
		Truncated:      result.Truncated,
		Events:         result.Document.SortedEvents(),
	})
}

// writeSyncError maps a sync failure onto the HTTP error contract. Details
// are sanitized descriptions, never raw upstream errors, which can carry
// tokens in authorization failures.
func (h *HealthEventsHandler) writeSyncError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, health.ErrMissingSubscription):
		response.BadRequest(w, r, "SubscriptionId is required")
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		response.ServiceUnavailable(w, r, "upstream temporarily unavailable")
	case errors.Is(err, health.ErrCacheConflict):
		response.InternalError(w, r, "sync failed", "cache contention, the request is safe to retry")
	case errors.Is(err, context.DeadlineExceeded):
		response.InternalError(w, r, "sync failed", "run exceeded its time budget")
	case resilience.Classify(err) == resilience.ClassPermanent:
		response.InternalError(w, r, "sync failed", "upstream rejected the request (authorization or policy)")
	default:
		response.InternalError(w, r, "sync failed", "upstream unavailable after retries")
	}
}
