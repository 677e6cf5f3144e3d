package health

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/stuartshay/pwsh-azure-health-sub000/internal/resilience"
)

const tracerName = "github.com/stuartshay/pwsh-azure-health-sub000/internal/health"

// Sync defaults.
const (
	// DefaultRunBudget is the soft deadline for a whole run, derived from
	// the hosting platform's execution timeout.
	DefaultRunBudget = 10 * time.Minute

	// DefaultWriteAttempts bounds the merge-and-write loop.
	DefaultWriteAttempts = 3
)

// QueryResult is one page of raw rows from the upstream source.
type QueryResult struct {
	Rows []RawEvent

	// Truncated signals that the upstream page cap was hit and older
	// in-scope rows may exist beyond it. Non-fatal; recorded on the run.
	Truncated bool
}

// QuerySource issues a time-scoped health-event query for a subscription.
type QuerySource interface {
	Query(ctx context.Context, subscriptionID string, queryStart time.Time) (*QueryResult, error)
}

// RunStatus is the state a sync run ended in.
type RunStatus string

const (
	RunPlanning    RunStatus = "planning"
	RunQuerying    RunStatus = "querying"
	RunNormalizing RunStatus = "normalizing"
	RunWriting     RunStatus = "writing"
	RunDone        RunStatus = "done"
	RunFailed      RunStatus = "failed"
)

// RunResult describes the outcome of one sync run.
type RunResult struct {
	SubscriptionID string
	Status         RunStatus
	QueryStart     time.Time
	StartedAt      time.Time
	Duration       time.Duration

	RowCount       int
	RejectedRows   int
	Truncated      bool
	WriteConflicts int
	EventCount     int

	// Document is the cache document as persisted, nil on failure.
	Document *CacheDocument
}

// ServiceConfig holds configuration for the sync service.
type ServiceConfig struct {
	// Source is the upstream query source (required).
	Source QuerySource

	// Store is the cache backend (required).
	Store CacheStore

	// Logger for sync operations.
	Logger zerolog.Logger

	// Retry is the executor used for remote calls. If nil, one with
	// defaults is created.
	Retry *resilience.Executor

	// Retention is the resolved-event retention window (default: 7 days).
	Retention time.Duration

	// WriteAttempts bounds the merge-and-write loop (default: 3).
	WriteAttempts int

	// RunBudget is the soft deadline for a whole run (default: 10 minutes).
	RunBudget time.Duration

	// Clock overrides time.Now, for tests.
	Clock func() time.Time
}

// Service orchestrates sync runs: it plans the query window, queries the
// upstream source, normalizes rows, and merges them into the cache under
// optimistic concurrency. It holds no per-subscription state between runs;
// the cache document is the single source of truth.
type Service struct {
	source        QuerySource
	store         CacheStore
	logger        zerolog.Logger
	retry         *resilience.Executor
	planner       *WindowPlanner
	normalizer    *Normalizer
	breaker       *gobreaker.CircuitBreaker[*QueryResult]
	writeAttempts int
	runBudget     time.Duration
	clock         func() time.Time
	tracer        trace.Tracer
	metrics       *syncMetrics
}

// NewService creates a sync service.
func NewService(cfg ServiceConfig) (*Service, error) {
	retry := cfg.Retry
	if retry == nil {
		retry = resilience.NewExecutor(resilience.ExecutorConfig{Logger: cfg.Logger})
	}

	writeAttempts := cfg.WriteAttempts
	if writeAttempts <= 0 {
		writeAttempts = DefaultWriteAttempts
	}

	runBudget := cfg.RunBudget
	if runBudget <= 0 {
		runBudget = DefaultRunBudget
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	metrics, err := newSyncMetrics()
	if err != nil {
		return nil, fmt.Errorf("creating sync metrics: %w", err)
	}

	return &Service{
		source:     cfg.Source,
		store:      cfg.Store,
		logger:     cfg.Logger,
		retry:      retry,
		planner:    NewWindowPlanner(cfg.Retention, cfg.Logger),
		normalizer: NewNormalizer(cfg.Logger),
		breaker: resilience.NewBreaker[*QueryResult](resilience.BreakerConfig{
			Name:   "resource-graph",
			Logger: cfg.Logger,
		}),
		writeAttempts: writeAttempts,
		runBudget:     runBudget,
		clock:         clock,
		tracer:        otel.Tracer(tracerName),
		metrics:       metrics,
	}, nil
}

// Sync performs one synchronization run for a subscription. The returned
// RunResult is non-nil even on failure; inspect the error for the cause.
func (s *Service) Sync(ctx context.Context, subscriptionID string) (*RunResult, error) {
	if subscriptionID == "" {
		return &RunResult{Status: RunFailed}, ErrMissingSubscription
	}

	ctx, cancel := context.WithTimeout(ctx, s.runBudget)
	defer cancel()

	ctx, span := s.tracer.Start(ctx, "health.sync",
		trace.WithAttributes(attribute.String("subscription_id", subscriptionID)),
	)
	defer span.End()

	result := &RunResult{
		SubscriptionID: subscriptionID,
		Status:         RunPlanning,
		StartedAt:      s.clock(),
	}
	defer func() {
		result.Duration = s.clock().Sub(result.StartedAt)
		s.metrics.record(ctx, result)
	}()

	logger := s.logger.With().Str("subscription_id", subscriptionID).Logger()

	err := s.run(ctx, logger, result)
	if err != nil {
		result.Status = RunFailed
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error().
			Err(err).
			Dur("duration", s.clock().Sub(result.StartedAt)).
			Msg("sync run failed")
		return result, err
	}

	result.Status = RunDone
	logger.Info().
		Time("query_start", result.QueryStart).
		Int("rows", result.RowCount).
		Int("rejected", result.RejectedRows).
		Int("events", result.EventCount).
		Int("write_conflicts", result.WriteConflicts).
		Bool("truncated", result.Truncated).
		Dur("duration", s.clock().Sub(result.StartedAt)).
		Msg("sync run completed")

	return result, nil
}

func (s *Service) run(ctx context.Context, logger zerolog.Logger, result *RunResult) error {
	// Planning: the last successful query time decides the window.
	doc, err := resilience.Execute(ctx, s.retry, "cache-read", func(ctx context.Context) (*CacheDocument, error) {
		d, _, err := s.store.Read(ctx, result.SubscriptionID)
		return d, err
	})
	if err != nil {
		return fmt.Errorf("reading cache: %w", err)
	}
	result.QueryStart = s.planner.QueryStart(doc.LastQueryTime, s.clock())

	// Querying, behind the breaker and the retry executor.
	result.Status = RunQuerying
	queryResult, err := resilience.Execute(ctx, s.retry, "resource-graph-query", func(ctx context.Context) (*QueryResult, error) {
		return s.breaker.Execute(func() (*QueryResult, error) {
			return s.source.Query(ctx, result.SubscriptionID, result.QueryStart)
		})
	})
	if err != nil {
		return fmt.Errorf("querying health events: %w", err)
	}
	result.RowCount = len(queryResult.Rows)
	result.Truncated = queryResult.Truncated
	if queryResult.Truncated {
		logger.Warn().
			Int("rows", result.RowCount).
			Msg("upstream page cap reached, older in-scope events may be missing")
	}

	// Normalizing: malformed rows are dropped, not fatal.
	result.Status = RunNormalizing
	events, rejected := s.normalizer.NormalizeBatch(queryResult.Rows)
	result.RejectedRows = rejected

	// Merging and writing: re-read fresh on every attempt so a concurrent
	// writer's events survive, and persist lastQueryTime only together with
	// the merge it covers. A failed persist means the next run re-queries
	// the same window instead of skipping events.
	result.Status = RunWriting
	for attempt := 1; attempt <= s.writeAttempts; attempt++ {
		current, version, readErr := s.store.Read(ctx, result.SubscriptionID)
		if readErr != nil {
			return fmt.Errorf("re-reading cache: %w", readErr)
		}

		merged := MergeEvents(current, events, s.clock(), s.planner.Retention())
		queryStart := result.QueryStart
		merged.LastQueryTime = &queryStart

		_, writeErr := s.store.Write(ctx, result.SubscriptionID, merged, version)
		if writeErr == nil {
			result.Document = merged
			result.EventCount = len(merged.Events)
			return nil
		}
		if !errors.Is(writeErr, ErrVersionConflict) {
			return fmt.Errorf("writing cache: %w", writeErr)
		}

		result.WriteConflicts++
		logger.Warn().
			Int("attempt", attempt).
			Msg("cache version conflict, re-reading and re-merging")
	}

	return ErrCacheConflict
}
