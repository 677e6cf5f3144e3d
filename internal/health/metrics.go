package health

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/stuartshay/pwsh-azure-health-sub000/internal/health"

// syncMetrics holds the OpenTelemetry instruments for sync runs.
type syncMetrics struct {
	runsTotal      metric.Int64Counter
	runDuration    metric.Float64Histogram
	eventsMerged   metric.Int64Counter
	rowsRejected   metric.Int64Counter
	writeConflicts metric.Int64Counter
}

func newSyncMetrics() (*syncMetrics, error) {
	meter := otel.Meter(meterName)

	runsTotal, err := meter.Int64Counter(
		"health.sync.runs",
		metric.WithDescription("Total number of sync runs"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, err
	}

	runDuration, err := meter.Float64Histogram(
		"health.sync.run.duration",
		metric.WithDescription("Duration of sync runs in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	eventsMerged, err := meter.Int64Counter(
		"health.sync.events.merged",
		metric.WithDescription("Events merged into the cache"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, err
	}

	rowsRejected, err := meter.Int64Counter(
		"health.sync.rows.rejected",
		metric.WithDescription("Malformed rows rejected during normalization"),
		metric.WithUnit("{row}"),
	)
	if err != nil {
		return nil, err
	}

	writeConflicts, err := meter.Int64Counter(
		"health.sync.write.conflicts",
		metric.WithDescription("Conditional cache writes lost to a concurrent writer"),
		metric.WithUnit("{conflict}"),
	)
	if err != nil {
		return nil, err
	}

	return &syncMetrics{
		runsTotal:      runsTotal,
		runDuration:    runDuration,
		eventsMerged:   eventsMerged,
		rowsRejected:   rowsRejected,
		writeConflicts: writeConflicts,
	}, nil
}

func (m *syncMetrics) record(ctx context.Context, result *RunResult) {
	attrs := metric.WithAttributes(
		attribute.String("subscription_id", result.SubscriptionID),
		attribute.String("status", string(result.Status)),
	)
	m.runsTotal.Add(ctx, 1, attrs)
	m.runDuration.Record(ctx, result.Duration.Seconds(), attrs)
	m.eventsMerged.Add(ctx, int64(result.EventCount), attrs)
	m.rowsRejected.Add(ctx, int64(result.RejectedRows), attrs)
	m.writeConflicts.Add(ctx, int64(result.WriteConflicts), attrs)
}
