package resilience_test

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stuartshay/pwsh-azure-health-sub000/internal/resilience"
)

func TestBreaker_PassesThroughSuccess(t *testing.T) {
	cb := resilience.NewBreaker[string](resilience.BreakerConfig{
		Name:   "test",
		Logger: zerolog.Nop(),
	})

	result, err := cb.Execute(func() (string, error) {
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", result)
}

func TestBreaker_OpensAfterRepeatedFailures(t *testing.T) {
	cb := resilience.NewBreaker[int](resilience.BreakerConfig{
		Name:    "test",
		Timeout: time.Minute,
		Logger:  zerolog.Nop(),
	})

	upstreamErr := errors.New("upstream down")
	for i := 0; i < 5; i++ {
		_, err := cb.Execute(func() (int, error) {
			return 0, upstreamErr
		})
		require.Error(t, err)
	}

	assert.Equal(t, gobreaker.StateOpen, cb.State())

	_, err := cb.Execute(func() (int, error) {
		t.Fatal("call must not reach the upstream while open")
		return 0, nil
	})
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
}

func TestBreaker_StaysClosedBelowThreshold(t *testing.T) {
	cb := resilience.NewBreaker[int](resilience.BreakerConfig{
		Name:   "test",
		Logger: zerolog.Nop(),
	})

	// Four failures are under the five-request minimum.
	for i := 0; i < 4; i++ {
		_, _ = cb.Execute(func() (int, error) {
			return 0, errors.New("transient blip")
		})
	}

	assert.Equal(t, gobreaker.StateClosed, cb.State())
}

func TestBreaker_RecoversAfterTimeout(t *testing.T) {
	cb := resilience.NewBreaker[int](resilience.BreakerConfig{
		Name:    "test",
		Timeout: 20 * time.Millisecond,
		Logger:  zerolog.Nop(),
	})

	for i := 0; i < 5; i++ {
		_, _ = cb.Execute(func() (int, error) {
			return 0, errors.New("upstream down")
		})
	}
	require.Equal(t, gobreaker.StateOpen, cb.State())

	time.Sleep(30 * time.Millisecond)

	result, err := cb.Execute(func() (int, error) {
		return 7, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, result)
}
