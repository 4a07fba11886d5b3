package provider

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"
)

// retryableError wraps an upstream failure that should be retried; any
// other error returned from the attempt func is treated as permanent.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

func retryable(err error) error {
	if err == nil {
		return nil
	}
	return &retryableError{err: err}
}

// upstreamStatusError carries the upstream HTTP status so the caller can
// map it to the §7 error taxonomy after retries are exhausted.
type upstreamStatusError struct {
	status  int
	message string
}

func (e *upstreamStatusError) Error() string { return e.message }
func (e *upstreamStatusError) Status() int   { return e.status }

// newStatusError classifies an upstream non-2xx response: retryable codes
// (429, 5xx) are wrapped so the backoff loop retries them; everything else
// is returned as a permanent failure.
func newStatusError(status int, message string) error {
	err := &upstreamStatusError{status: status, message: message}
	if retryableStatus(status) {
		return retryable(err)
	}
	return err
}

// retryPolicy builds the exponential-backoff schedule from §4.4: base 1s,
// cap 30s, jittered, at most maxAttempts-1 retries after the first attempt.
func retryPolicy(maxAttempts uint64) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 1 * time.Second
	b.MaxInterval = 30 * time.Second
	b.Multiplier = 2
	b.RandomizationFactor = 0.5
	return backoff.WithMaxRetries(b, maxAttempts-1)
}

// callWithRetry runs attempt under the §4.4 retry policy. limiter.Wait is
// called on every attempt, including the first, so the rate limit applies
// uniformly and a long backoff never holds a reserved token across
// attempts.
func callWithRetry(ctx context.Context, limiter *rate.Limiter, attempt func(ctx context.Context) error) error {
	op := func() error {
		if err := limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err) // context cancellation/deadline: permanent, not retried further
		}
		err := attempt(ctx)
		var re *retryableError
		if errors.As(err, &re) {
			return err // backoff.Retry only stops on nil or a *backoff.PermanentError
		}
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}

	err := backoff.Retry(op, backoff.WithContext(retryPolicy(3), ctx))
	if err == nil {
		return nil
	}
	var re *retryableError
	if errors.As(err, &re) {
		return re.err
	}
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return perm.Unwrap()
	}
	return err
}
