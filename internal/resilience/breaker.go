package resilience

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// BreakerConfig holds configuration for an upstream circuit breaker.
type BreakerConfig struct {
	// Name identifies the breaker in logs.
	Name string

	// MaxRequests allowed through in half-open state. Default: 1.
	MaxRequests uint32

	// Timeout is how long the breaker stays open before probing again.
	// Default: 60s.
	Timeout time.Duration

	// Logger records state transitions.
	Logger zerolog.Logger
}

// NewBreaker creates a circuit breaker for calls returning T. It trips once
// at least five requests have been made and half of them failed, which keeps
// a flapping upstream from burning the retry budget of every sync run.
func NewBreaker[T any](cfg BreakerConfig) *gobreaker.CircuitBreaker[T] {
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = 1
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}

	logger := cfg.Logger
	return gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 5 &&
				float64(counts.TotalFailures)/float64(counts.Requests) >= 0.5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state change")
		},
	})
}
