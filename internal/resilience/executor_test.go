package resilience_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stuartshay/pwsh-azure-health-sub000/internal/resilience"
)

func testExecutor(maxAttempts uint64) *resilience.Executor {
	return resilience.NewExecutor(resilience.ExecutorConfig{
		MaxAttempts:  maxAttempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     4 * time.Millisecond,
		Logger:       zerolog.Nop(),
	})
}

func TestExecute_SuccessFirstAttempt(t *testing.T) {
	e := testExecutor(5)
	attempts := 0

	result, err := resilience.Execute(context.Background(), e, "op", func(context.Context) (string, error) {
		attempts++
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 1, attempts)
}

func TestExecute_RetriesTransientUntilSuccess(t *testing.T) {
	e := testExecutor(5)
	attempts := 0
	transient := &azcore.ResponseError{ErrorCode: "Throttled", StatusCode: http.StatusTooManyRequests}

	result, err := resilience.Execute(context.Background(), e, "op", func(context.Context) (int, error) {
		attempts++
		if attempts < 3 {
			return 0, transient
		}
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, result)
	assert.Equal(t, 3, attempts)
}

func TestExecute_ExhaustsAttemptBudget(t *testing.T) {
	e := testExecutor(4)
	attempts := 0
	transient := &azcore.ResponseError{ErrorCode: "Throttled", StatusCode: http.StatusServiceUnavailable}

	_, err := resilience.Execute(context.Background(), e, "op", func(context.Context) (int, error) {
		attempts++
		return 0, transient
	})

	require.Error(t, err)
	var respErr *azcore.ResponseError
	require.ErrorAs(t, err, &respErr)
	assert.Equal(t, http.StatusServiceUnavailable, respErr.StatusCode)
	assert.Equal(t, 4, attempts)
}

func TestExecute_PermanentFailsImmediately(t *testing.T) {
	e := testExecutor(5)
	attempts := 0
	permanent := &azcore.ResponseError{ErrorCode: "AuthorizationFailed", StatusCode: http.StatusForbidden}

	_, err := resilience.Execute(context.Background(), e, "op", func(context.Context) (int, error) {
		attempts++
		return 0, permanent
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts, "permanent failures must not be retried")

	var respErr *azcore.ResponseError
	require.ErrorAs(t, err, &respErr)
	assert.Equal(t, "AuthorizationFailed", respErr.ErrorCode)
}

func TestExecute_UnknownErrorsAreRetried(t *testing.T) {
	e := testExecutor(3)
	attempts := 0

	_, err := resilience.Execute(context.Background(), e, "op", func(context.Context) (int, error) {
		attempts++
		return 0, errors.New("something odd happened")
	})

	require.Error(t, err)
	assert.Equal(t, 3, attempts)
}

func TestExecute_ContextCancellationStopsRetries(t *testing.T) {
	e := resilience.NewExecutor(resilience.ExecutorConfig{
		MaxAttempts:  10,
		InitialDelay: 50 * time.Millisecond,
		MaxDelay:     50 * time.Millisecond,
		Logger:       zerolog.Nop(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0

	_, err := resilience.Execute(ctx, e, "op", func(context.Context) (int, error) {
		attempts++
		cancel()
		return 0, errors.New("503 service unavailable")
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts, "no retry once the context is cancelled")
}

func TestExecute_DelaysDoubleUpToCap(t *testing.T) {
	e := resilience.NewExecutor(resilience.ExecutorConfig{
		MaxAttempts:  6,
		InitialDelay: 2 * time.Millisecond,
		MaxDelay:     8 * time.Millisecond,
		Logger:       zerolog.Nop(),
	})

	var gaps []time.Duration
	last := time.Now()
	throttled := &azcore.ResponseError{ErrorCode: "Throttled", StatusCode: http.StatusTooManyRequests}

	_, err := resilience.Execute(context.Background(), e, "op", func(context.Context) (int, error) {
		now := time.Now()
		gaps = append(gaps, now.Sub(last))
		last = now
		return 0, throttled
	})
	require.Error(t, err)
	require.Len(t, gaps, 6)

	// Expected waits between attempts: 2, 4, 8, 8, 8 ms. Timers only
	// guarantee a lower bound, so assert the doubling floor and the cap.
	waits := gaps[1:]
	assert.GreaterOrEqual(t, waits[0], 2*time.Millisecond)
	assert.GreaterOrEqual(t, waits[1], 4*time.Millisecond)
	for _, w := range waits[2:] {
		assert.GreaterOrEqual(t, w, 8*time.Millisecond)
		assert.Less(t, w, 100*time.Millisecond, "delay must stay capped")
	}
}

func TestExecute_LastErrorIsReturned(t *testing.T) {
	e := testExecutor(2)
	first := errors.New("503 service unavailable")
	second := errors.New("504 gateway timeout")
	attempts := 0

	_, err := resilience.Execute(context.Background(), e, "op", func(context.Context) (int, error) {
		attempts++
		if attempts == 1 {
			return 0, first
		}
		return 0, second
	})

	assert.ErrorIs(t, err, second)
}
