package resilience

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

// Default retry parameters.
const (
	DefaultMaxAttempts  = 5
	DefaultInitialDelay = 2 * time.Second
	DefaultMaxDelay     = 32 * time.Second
)

// ExecutorConfig holds configuration for an Executor.
type ExecutorConfig struct {
	// MaxAttempts is the total number of attempts, including the first.
	// Default: 5.
	MaxAttempts uint64

	// InitialDelay is the backoff before the second attempt; it doubles on
	// each subsequent attempt. Default: 2s.
	InitialDelay time.Duration

	// MaxDelay caps the backoff interval. Default: 32s.
	MaxDelay time.Duration

	// Logger for retry decisions.
	Logger zerolog.Logger
}

// Executor retries operations with exponential backoff. Errors classified
// as permanent short-circuit after exactly one attempt; transient and
// unknown errors are retried until the attempt budget or the context
// deadline runs out, whichever comes first. The last attempt's error is
// returned unchanged.
type Executor struct {
	maxAttempts  uint64
	initialDelay time.Duration
	maxDelay     time.Duration
	logger       zerolog.Logger
}

// NewExecutor creates an Executor, applying defaults for zero fields.
func NewExecutor(cfg ExecutorConfig) *Executor {
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.InitialDelay == 0 {
		cfg.InitialDelay = DefaultInitialDelay
	}
	if cfg.MaxDelay == 0 {
		cfg.MaxDelay = DefaultMaxDelay
	}
	return &Executor{
		maxAttempts:  cfg.MaxAttempts,
		initialDelay: cfg.InitialDelay,
		maxDelay:     cfg.MaxDelay,
		logger:       cfg.Logger,
	}
}

// Execute runs op under the executor's retry policy. The context carries
// the remaining time budget for the whole sequence of attempts: once it
// expires no further attempts are made.
func Execute[T any](ctx context.Context, e *Executor, name string, op func(context.Context) (T, error)) (T, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = e.initialDelay
	bo.MaxInterval = e.maxDelay
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.MaxElapsedTime = 0 // bounded by MaxAttempts and ctx instead

	policy := backoff.WithContext(backoff.WithMaxRetries(bo, e.maxAttempts-1), ctx)

	attempt := 0
	operation := func() (T, error) {
		attempt++
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		if Classify(err) == ClassPermanent {
			e.logger.Error().
				Err(err).
				Str("operation", name).
				Msg("permanent failure, not retrying")
			var zero T
			return zero, backoff.Permanent(err)
		}
		var zero T
		return zero, err
	}

	notify := func(err error, delay time.Duration) {
		event := e.logger.Warn().
			Err(err).
			Str("operation", name).
			Int("attempt", attempt).
			Dur("retry_in", delay)
		if Classify(err) == ClassTransient {
			event.Msg("transient failure, retrying")
		} else {
			event.Msg("operation failed, retrying")
		}
	}

	return backoff.RetryNotifyWithData(operation, policy, notify)
}
