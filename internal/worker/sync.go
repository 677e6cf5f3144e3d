package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/stuartshay/pwsh-azure-health-sub000/internal/health"
)

// Syncer runs one synchronization for a subscription.
type Syncer interface {
	Sync(ctx context.Context, subscriptionID string) (*health.RunResult, error)
}

// SyncJob syncs a set of subscriptions, bounded-concurrently.
type SyncJob struct {
	options SyncJobOptions
	syncer  Syncer
	logger  zerolog.Logger
	metrics *SyncMetrics
}

// SyncMetrics tracks sync job statistics across runs.
type SyncMetrics struct {
	mu sync.RWMutex

	TotalRuns       int64
	SuccessfulSyncs int64
	FailedSyncs     int64
	EventsMerged    int64
	RowsRejected    int64
	WriteConflicts  int64

	LastRunAt       time.Time
	LastRunDuration time.Duration
}

// SyncJobConfig holds configuration for creating a SyncJob.
type SyncJobConfig struct {
	Options SyncJobOptions
	Syncer  Syncer
	Logger  zerolog.Logger
}

// NewSyncJob creates a sync job processor.
func NewSyncJob(cfg SyncJobConfig) *SyncJob {
	return &SyncJob{
		options: cfg.Options.withDefaults(),
		syncer:  cfg.Syncer,
		logger:  cfg.Logger,
		metrics: &SyncMetrics{},
	}
}

// SyncSummary contains the result of one job run across subscriptions.
type SyncSummary struct {
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration

	Total      int
	Successful int
	Failed     int

	EventsMerged   int
	RowsRejected   int
	WriteConflicts int

	Errors []SyncError
}

// SyncError records one failed subscription sync.
type SyncError struct {
	SubscriptionID string
	Error          string
}

// Run syncs all configured subscriptions and returns a summary.
func (j *SyncJob) Run(ctx context.Context) *SyncSummary {
	startTime := time.Now()
	summary := &SyncSummary{
		StartTime: startTime,
		Total:     len(j.options.Subscriptions),
	}

	j.logger.Info().
		Int("subscriptions", summary.Total).
		Int("concurrency", j.options.Concurrency).
		Msg("starting health sync job")

	subscriptions := make(chan string, summary.Total)
	results := make(chan subscriptionResult, summary.Total)

	var wg sync.WaitGroup
	for i := 0; i < j.options.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j.syncWorker(ctx, subscriptions, results)
		}()
	}

	for _, id := range j.options.Subscriptions {
		subscriptions <- id
	}
	close(subscriptions)

	go func() {
		wg.Wait()
		close(results)
	}()

	for sr := range results {
		if sr.err != nil {
			summary.Failed++
			summary.Errors = append(summary.Errors, SyncError{
				SubscriptionID: sr.subscriptionID,
				Error:          sr.err.Error(),
			})
			continue
		}
		summary.Successful++
		summary.EventsMerged += sr.result.EventCount
		summary.RowsRejected += sr.result.RejectedRows
		summary.WriteConflicts += sr.result.WriteConflicts
	}

	summary.EndTime = time.Now()
	summary.Duration = summary.EndTime.Sub(startTime)

	j.updateMetrics(summary)

	j.logger.Info().
		Dur("duration", summary.Duration).
		Int("successful", summary.Successful).
		Int("failed", summary.Failed).
		Int("events", summary.EventsMerged).
		Msg("health sync job completed")

	return summary
}

// RunOne syncs a single subscription, outside the configured set.
func (j *SyncJob) RunOne(ctx context.Context, subscriptionID string) (*health.RunResult, error) {
	return j.syncer.Sync(ctx, subscriptionID)
}

type subscriptionResult struct {
	subscriptionID string
	result         *health.RunResult
	err            error
}

func (j *SyncJob) syncWorker(ctx context.Context, subscriptions <-chan string, results chan<- subscriptionResult) {
	for id := range subscriptions {
		select {
		case <-ctx.Done():
			results <- subscriptionResult{subscriptionID: id, err: ctx.Err()}
		default:
			result, err := j.syncer.Sync(ctx, id)
			results <- subscriptionResult{subscriptionID: id, result: result, err: err}
		}
	}
}

func (j *SyncJob) updateMetrics(summary *SyncSummary) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalRuns++
	j.metrics.SuccessfulSyncs += int64(summary.Successful)
	j.metrics.FailedSyncs += int64(summary.Failed)
	j.metrics.EventsMerged += int64(summary.EventsMerged)
	j.metrics.RowsRejected += int64(summary.RowsRejected)
	j.metrics.WriteConflicts += int64(summary.WriteConflicts)
	j.metrics.LastRunAt = summary.EndTime
	j.metrics.LastRunDuration = summary.Duration
}

// GetMetrics returns a copy of the current metrics.
func (j *SyncJob) GetMetrics() SyncMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return SyncMetrics{
		TotalRuns:       j.metrics.TotalRuns,
		SuccessfulSyncs: j.metrics.SuccessfulSyncs,
		FailedSyncs:     j.metrics.FailedSyncs,
		EventsMerged:    j.metrics.EventsMerged,
		RowsRejected:    j.metrics.RowsRejected,
		WriteConflicts:  j.metrics.WriteConflicts,
		LastRunAt:       j.metrics.LastRunAt,
		LastRunDuration: j.metrics.LastRunDuration,
	}
}
