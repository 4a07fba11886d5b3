package provider

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestCallWithRetry_PermanentErrorStopsImmediately(t *testing.T) {
	var attempts int32
	permanent := errors.New("bad request")

	err := callWithRetry(context.Background(), unlimitedLimiter(), func(ctx context.Context) error {
		atomic.AddInt32(&attempts, 1)
		return permanent
	})

	require.Error(t, err)
	assert.Equal(t, permanent, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
}

func TestCallWithRetry_RetriesRetryableErrorUntilSuccess(t *testing.T) {
	var attempts int32

	err := callWithRetry(context.Background(), unlimitedLimiter(), func(ctx context.Context) error {
		n := atomic.AddInt32(&attempts, 1)
		if n < 3 {
			return retryable(errors.New("upstream hiccup"))
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestCallWithRetry_GivesUpAfterMaxAttempts(t *testing.T) {
	var attempts int32
	underlying := errors.New("still failing")

	err := callWithRetry(context.Background(), unlimitedLimiter(), func(ctx context.Context) error {
		atomic.AddInt32(&attempts, 1)
		return retryable(underlying)
	})

	require.Error(t, err)
	assert.Equal(t, underlying, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestCallWithRetry_AcquiresLimiterOnEveryAttempt(t *testing.T) {
	// Burst 2 with a negligible refill: each acquisition spends one token.
	limiter := rate.NewLimiter(rate.Limit(0.001), 2)

	var attempts int32
	err := callWithRetry(context.Background(), limiter, func(ctx context.Context) error {
		n := atomic.AddInt32(&attempts, 1)
		if n < 2 {
			return retryable(errors.New("transient"))
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&attempts))
	assert.Less(t, limiter.Tokens(), 1.0)
}

func TestCallWithRetry_ContextCancellationIsNotRetried(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var attempts int32
	err := callWithRetry(ctx, unlimitedLimiter(), func(ctx context.Context) error {
		atomic.AddInt32(&attempts, 1)
		return nil
	})

	require.Error(t, err)
	assert.Equal(t, int32(0), atomic.LoadInt32(&attempts))
}
