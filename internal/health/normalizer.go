package health

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// RawEvent is one row from the upstream query source, as decoded JSON.
type RawEvent map[string]any

// Normalizer converts raw query rows into canonical HealthEvent records.
// Malformed rows are rejected individually rather than failing the batch.
type Normalizer struct {
	logger zerolog.Logger
}

// NewNormalizer creates a normalizer.
func NewNormalizer(logger zerolog.Logger) *Normalizer {
	return &Normalizer{logger: logger}
}

// NormalizeBatch maps rows through Normalize, dropping rejected rows. The
// returned count is the number of rejections.
func (n *Normalizer) NormalizeBatch(rows []RawEvent) ([]HealthEvent, int) {
	events := make([]HealthEvent, 0, len(rows))
	rejected := 0
	for i, row := range rows {
		event, err := n.Normalize(row)
		if err != nil {
			rejected++
			n.logger.Warn().
				Err(err).
				Int("row", i).
				Msg("rejected malformed event row")
			continue
		}
		events = append(events, event)
	}
	return events, rejected
}

// Normalize converts a single raw row. A row missing id, eventType, or
// lastUpdateTime is rejected. Enum-typed fields with values we do not
// recognize are preserved as their raw string form.
func (n *Normalizer) Normalize(row RawEvent) (HealthEvent, error) {
	id := stringField(row, "id")
	if id == "" {
		return HealthEvent{}, fmt.Errorf("row missing id")
	}

	eventType := stringField(row, "eventType")
	if eventType == "" {
		return HealthEvent{}, fmt.Errorf("row %s missing eventType", id)
	}

	lastUpdate, err := timeField(row, "lastUpdateTime")
	if err != nil {
		return HealthEvent{}, fmt.Errorf("row %s: %w", id, err)
	}

	return HealthEvent{
		ID:               id,
		TrackingID:       stringField(row, "trackingId"),
		EventType:        EventType(eventType),
		Status:           EventStatus(stringField(row, "status")),
		Title:            stringField(row, "title"),
		Summary:          stringField(row, "summary"),
		Level:            EventLevel(stringField(row, "level")),
		ImpactedServices: impactField(row, "impact"),
		LastUpdateTime:   lastUpdate.UTC(),
	}, nil
}

func stringField(row RawEvent, key string) string {
	if v, ok := row[key].(string); ok {
		return v
	}
	return ""
}

func timeField(row RawEvent, key string) (time.Time, error) {
	switch v := row[key].(type) {
	case time.Time:
		return v, nil
	case string:
		if v == "" {
			return time.Time{}, fmt.Errorf("missing %s", key)
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid %s %q: %w", key, v, err)
		}
		return t, nil
	default:
		return time.Time{}, fmt.Errorf("missing %s", key)
	}
}

// impactField flattens the upstream impact structure into ordered
// service/region pairs. Impact rows the decoder did not shape as expected
// are skipped; impact is informational and never rejects the event.
func impactField(row RawEvent, key string) []ImpactedService {
	entries, ok := row[key].([]any)
	if !ok {
		return nil
	}

	var out []ImpactedService
	for _, entry := range entries {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		service, _ := m["impactedService"].(string)
		if service == "" {
			continue
		}

		regions, _ := m["impactedRegions"].([]any)
		added := false
		for _, region := range regions {
			rm, ok := region.(map[string]any)
			if !ok {
				continue
			}
			if name, _ := rm["impactedRegion"].(string); name != "" {
				out = append(out, ImpactedService{Service: service, Region: name})
				added = true
			}
		}
		if !added {
			out = append(out, ImpactedService{Service: service})
		}
	}
	return out
}
