package health

import (
	"time"

	"github.com/rs/zerolog"
)

// DefaultRetention is how long a Resolved event stays in the cache and in
// query scope.
const DefaultRetention = 7 * 24 * time.Hour

// WindowPlanner computes the start of the next query window from the
// cache's last successful sync time.
type WindowPlanner struct {
	retention time.Duration
	logger    zerolog.Logger
}

// NewWindowPlanner creates a planner. A zero retention falls back to
// DefaultRetention.
func NewWindowPlanner(retention time.Duration, logger zerolog.Logger) *WindowPlanner {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &WindowPlanner{retention: retention, logger: logger}
}

// Retention returns the configured retention window.
func (p *WindowPlanner) Retention() time.Duration {
	return p.retention
}

// QueryStart returns lastQueryTime when present, otherwise now-retention.
// A lastQueryTime in the future (clock skew or corrupted state) is clamped
// to now-retention with a warning instead of failing the run.
func (p *WindowPlanner) QueryStart(lastQueryTime *time.Time, now time.Time) time.Time {
	if lastQueryTime == nil {
		return now.Add(-p.retention)
	}
	if lastQueryTime.After(now) {
		p.logger.Warn().
			Time("last_query_time", *lastQueryTime).
			Time("now", now).
			Msg("lastQueryTime is in the future, clamping to retention window")
		return now.Add(-p.retention)
	}
	return *lastQueryTime
}
