package health_test

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/stuartshay/pwsh-azure-health-sub000/internal/health"
)

func TestWindowPlanner_FirstRunUsesRetentionWindow(t *testing.T) {
	planner := health.NewWindowPlanner(0, zerolog.Nop())
	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)

	start := planner.QueryStart(nil, now)

	assert.True(t, start.Equal(now.Add(-health.DefaultRetention)))
}

func TestWindowPlanner_UsesLastQueryTime(t *testing.T) {
	planner := health.NewWindowPlanner(0, zerolog.Nop())
	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	last := now.Add(-15 * time.Minute)

	start := planner.QueryStart(&last, now)

	assert.True(t, start.Equal(last))
}

func TestWindowPlanner_ClampsFutureLastQueryTime(t *testing.T) {
	planner := health.NewWindowPlanner(0, zerolog.Nop())
	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	future := now.Add(time.Hour)

	start := planner.QueryStart(&future, now)

	assert.True(t, start.Equal(now.Add(-health.DefaultRetention)),
		"future timestamps fall back to the retention window")
}

func TestWindowPlanner_CustomRetention(t *testing.T) {
	planner := health.NewWindowPlanner(48*time.Hour, zerolog.Nop())
	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)

	start := planner.QueryStart(nil, now)

	assert.Equal(t, 48*time.Hour, planner.Retention())
	assert.True(t, start.Equal(now.Add(-48*time.Hour)))
}
