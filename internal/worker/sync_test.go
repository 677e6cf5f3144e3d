package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stuartshay/pwsh-azure-health-sub000/internal/health"
	"github.com/stuartshay/pwsh-azure-health-sub000/internal/worker"
)

// mockSyncer records which subscriptions were synced and fails the ones
// listed in failing.
type mockSyncer struct {
	mu      sync.Mutex
	synced  []string
	failing map[string]error
	result  *health.RunResult
}

func newMockSyncer() *mockSyncer {
	return &mockSyncer{
		failing: make(map[string]error),
		result: &health.RunResult{
			Status:         health.RunDone,
			EventCount:     3,
			RejectedRows:   1,
			WriteConflicts: 0,
		},
	}
}

func (m *mockSyncer) Sync(_ context.Context, subscriptionID string) (*health.RunResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.synced = append(m.synced, subscriptionID)

	if err, ok := m.failing[subscriptionID]; ok {
		return &health.RunResult{SubscriptionID: subscriptionID, Status: health.RunFailed}, err
	}
	r := *m.result
	r.SubscriptionID = subscriptionID
	return &r, nil
}

func (m *mockSyncer) syncedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.synced)
}

func TestSyncJob_Run(t *testing.T) {
	syncer := newMockSyncer()
	job := worker.NewSyncJob(worker.SyncJobConfig{
		Options: worker.SyncJobOptions{
			Subscriptions: []string{"sub-1", "sub-2", "sub-3"},
		},
		Syncer: syncer,
		Logger: zerolog.Nop(),
	})

	summary := job.Run(context.Background())

	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 3, summary.Successful)
	assert.Zero(t, summary.Failed)
	assert.Equal(t, 9, summary.EventsMerged)
	assert.Equal(t, 3, summary.RowsRejected)
	assert.Equal(t, 3, syncer.syncedCount())
}

func TestSyncJob_Run_PartialFailure(t *testing.T) {
	syncer := newMockSyncer()
	syncer.failing["sub-2"] = errors.New("upstream down")

	job := worker.NewSyncJob(worker.SyncJobConfig{
		Options: worker.SyncJobOptions{
			Subscriptions: []string{"sub-1", "sub-2", "sub-3"},
		},
		Syncer: syncer,
		Logger: zerolog.Nop(),
	})

	summary := job.Run(context.Background())

	assert.Equal(t, 2, summary.Successful)
	assert.Equal(t, 1, summary.Failed)
	require.Len(t, summary.Errors, 1)
	assert.Equal(t, "sub-2", summary.Errors[0].SubscriptionID)
	assert.Equal(t, "upstream down", summary.Errors[0].Error)
}

func TestSyncJob_Run_NoSubscriptions(t *testing.T) {
	job := worker.NewSyncJob(worker.SyncJobConfig{
		Syncer: newMockSyncer(),
		Logger: zerolog.Nop(),
	})

	summary := job.Run(context.Background())

	assert.Zero(t, summary.Total)
	assert.Zero(t, summary.Successful)
	assert.Zero(t, summary.Failed)
}

func TestSyncJob_Run_CancelledContext(t *testing.T) {
	syncer := newMockSyncer()
	job := worker.NewSyncJob(worker.SyncJobConfig{
		Options: worker.SyncJobOptions{
			Subscriptions: []string{"sub-1", "sub-2"},
		},
		Syncer: syncer,
		Logger: zerolog.Nop(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary := job.Run(ctx)

	assert.Equal(t, 2, summary.Failed)
	assert.Zero(t, summary.Successful)
}

func TestSyncJob_RunOne(t *testing.T) {
	syncer := newMockSyncer()
	job := worker.NewSyncJob(worker.SyncJobConfig{
		Syncer: syncer,
		Logger: zerolog.Nop(),
	})

	result, err := job.RunOne(context.Background(), "sub-9")
	require.NoError(t, err)

	assert.Equal(t, "sub-9", result.SubscriptionID)
	assert.Equal(t, []string{"sub-9"}, syncer.synced)
}

func TestSyncJob_MetricsAccumulate(t *testing.T) {
	syncer := newMockSyncer()
	syncer.failing["sub-2"] = errors.New("upstream down")

	job := worker.NewSyncJob(worker.SyncJobConfig{
		Options: worker.SyncJobOptions{
			Subscriptions: []string{"sub-1", "sub-2"},
		},
		Syncer: syncer,
		Logger: zerolog.Nop(),
	})

	job.Run(context.Background())
	job.Run(context.Background())

	metrics := job.GetMetrics()
	assert.Equal(t, int64(2), metrics.TotalRuns)
	assert.Equal(t, int64(2), metrics.SuccessfulSyncs)
	assert.Equal(t, int64(2), metrics.FailedSyncs)
	assert.Equal(t, int64(6), metrics.EventsMerged)
	assert.False(t, metrics.LastRunAt.IsZero())
}

func TestSyncJobOptions_Defaults(t *testing.T) {
	job := worker.NewSyncJob(worker.SyncJobConfig{
		Syncer: newMockSyncer(),
		Logger: zerolog.Nop(),
	})

	// A job with no options still runs without panicking.
	summary := job.Run(context.Background())
	assert.NotNil(t, summary)
}
