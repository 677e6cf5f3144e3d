// Package models defines the HTTP API request and response shapes.
package models

import (
	"time"

	"github.com/stuartshay/pwsh-azure-health-sub000/internal/health"
)

// SyncRequest is the optional JSON body of a GetServiceHealth call.
type SyncRequest struct {
	SubscriptionID string `json:"SubscriptionId"`
}

// ServiceHealthResponse is the successful GetServiceHealth payload: the
// merged cache view after the sync run.
type ServiceHealthResponse struct {
	SubscriptionID string               `json:"subscriptionId"`
	RetrievedAt    time.Time            `json:"retrievedAt"`
	EventCount     int                  `json:"eventCount"`
	Truncated      bool                 `json:"truncated,omitempty"`
	Events         []health.HealthEvent `json:"events"`
}

// ErrorResponse is the error payload for 4xx/5xx responses. Details never
// carries credentials, tokens, or raw upstream payloads.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
