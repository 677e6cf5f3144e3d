// Package health implements incremental synchronization of Azure Service
// Health events into a per-subscription versioned cache.
package health

import (
	"errors"
	"sort"
	"time"
)

// Sync errors.
var (
	// ErrVersionConflict is returned by a CacheStore write when the cache
	// changed since it was read.
	ErrVersionConflict = errors.New("cache version conflict")

	// ErrCacheConflict is returned by a sync run once the merge-and-write
	// loop has exhausted its attempt budget. Retry-safe for the caller.
	ErrCacheConflict = errors.New("cache write conflict: attempts exhausted")

	// ErrMissingSubscription is returned when no subscription id is available
	// for a run.
	ErrMissingSubscription = errors.New("subscription id is required")
)

// EventType categorizes a service health event.
type EventType string

const (
	EventTypeServiceIssue       EventType = "ServiceIssue"
	EventTypePlannedMaintenance EventType = "PlannedMaintenance"
	EventTypeHealthAdvisory     EventType = "HealthAdvisory"
	EventTypeSecurity           EventType = "Security"
)

// EventStatus is the lifecycle state of an event.
type EventStatus string

const (
	StatusActive   EventStatus = "Active"
	StatusResolved EventStatus = "Resolved"
)

// EventLevel is the severity reported by the platform.
type EventLevel string

const (
	LevelCritical      EventLevel = "Critical"
	LevelError         EventLevel = "Error"
	LevelWarning       EventLevel = "Warning"
	LevelInformational EventLevel = "Informational"
)

// ImpactedService is one service/region pair affected by an event.
type ImpactedService struct {
	Service string `json:"service"`
	Region  string `json:"region,omitempty"`
}

// HealthEvent is the canonical record for a single service health event.
// ID is globally unique and stable across re-fetches. Unrecognized enum
// values from upstream are preserved as their raw string form so that new
// event types do not break consumers.
type HealthEvent struct {
	ID               string            `json:"id"`
	TrackingID       string            `json:"trackingId,omitempty"`
	EventType        EventType         `json:"eventType"`
	Status           EventStatus       `json:"status"`
	Title            string            `json:"title,omitempty"`
	Summary          string            `json:"summary,omitempty"`
	Level            EventLevel        `json:"level,omitempty"`
	ImpactedServices []ImpactedService `json:"impactedServices,omitempty"`
	LastUpdateTime   time.Time         `json:"lastUpdateTime"`
}

// IsActive reports whether the event is still open.
func (e *HealthEvent) IsActive() bool {
	return e.Status == StatusActive
}

// CacheDocument is the per-subscription cache of merged events. It is owned
// by the storage backend; each sync run reads a fresh copy, merges, and
// writes it back under a conditional write.
type CacheDocument struct {
	// LastQueryTime is the start of the last window that was both queried
	// and successfully persisted. Nil until the first successful sync.
	LastQueryTime *time.Time `json:"lastQueryTime,omitempty"`

	// Events maps event id to the newest observed record for that id.
	Events map[string]HealthEvent `json:"events"`
}

// NewCacheDocument returns an empty document, as produced by a read miss.
func NewCacheDocument() *CacheDocument {
	return &CacheDocument{Events: make(map[string]HealthEvent)}
}

// Clone returns a deep copy of the document.
func (d *CacheDocument) Clone() *CacheDocument {
	out := &CacheDocument{Events: make(map[string]HealthEvent, len(d.Events))}
	if d.LastQueryTime != nil {
		t := *d.LastQueryTime
		out.LastQueryTime = &t
	}
	for id, e := range d.Events {
		out.Events[id] = e
	}
	return out
}

// SortedEvents returns the cached events ordered by LastUpdateTime
// descending, newest first, with id as a tiebreaker for stable output.
func (d *CacheDocument) SortedEvents() []HealthEvent {
	events := make([]HealthEvent, 0, len(d.Events))
	for _, e := range d.Events {
		events = append(events, e)
	}
	sort.Slice(events, func(i, j int) bool {
		if !events[i].LastUpdateTime.Equal(events[j].LastUpdateTime) {
			return events[i].LastUpdateTime.After(events[j].LastUpdateTime)
		}
		return events[i].ID < events[j].ID
	})
	return events
}

// SubscriptionContext scopes a sync run: it selects both the upstream query
// scope and the cache document's storage key.
type SubscriptionContext struct {
	SubscriptionID string
}
