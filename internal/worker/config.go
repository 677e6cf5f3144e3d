// Package worker provides background sync processing for subscription
// health events.
package worker

import "time"

// SyncJobOptions holds configuration for the background sync job.
type SyncJobOptions struct {
	// Subscriptions are the subscription ids to sync each run.
	Subscriptions []string

	// Concurrency is the number of subscriptions synced in parallel.
	// Default: 2.
	Concurrency int

	// Interval is the scheduled sync period. Default: 15 minutes.
	Interval time.Duration
}

// DefaultSyncJobOptions returns the default job options.
func DefaultSyncJobOptions() SyncJobOptions {
	return SyncJobOptions{
		Concurrency: 2,
		Interval:    15 * time.Minute,
	}
}

func (o SyncJobOptions) withDefaults() SyncJobOptions {
	if o.Concurrency <= 0 {
		o.Concurrency = 2
	}
	if o.Interval <= 0 {
		o.Interval = 15 * time.Minute
	}
	return o
}
