package flow

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// RetryPolicy defines automatic retry configuration for transient
// failures, used by the engine for terminal-write tools and by model
// adapters for provider calls.
//
// Exponential backoff with jitter is used to avoid synchronized retry
// storms against a recovering service.
type RetryPolicy struct {
	// MaxAttempts is the maximum number of attempts including the
	// initial one. Must be >= 1; a value of 1 means no retries.
	MaxAttempts int

	// BaseDelay is the base delay for exponential backoff. The actual
	// delay is min(BaseDelay * 2^attempt, MaxDelay) + jitter(0, BaseDelay).
	BaseDelay time.Duration

	// MaxDelay caps the exponential component. Must be >= BaseDelay.
	MaxDelay time.Duration

	// Retryable decides whether an error is worth retrying. If nil,
	// all errors are retryable.
	Retryable func(error) bool
}

// Validate checks the policy configuration.
func (p RetryPolicy) Validate() error {
	if p.MaxAttempts < 1 {
		return errors.New("retry policy: MaxAttempts must be >= 1")
	}
	if p.BaseDelay < 0 {
		return errors.New("retry policy: BaseDelay must not be negative")
	}
	if p.MaxDelay < p.BaseDelay {
		return errors.New("retry policy: MaxDelay must be >= BaseDelay")
	}
	return nil
}

// Retry runs fn up to p.MaxAttempts times, sleeping with exponential
// backoff between attempts.
//
// Stops early when:
//   - fn succeeds
//   - p.Retryable reports the error as permanent
//   - ctx is cancelled (the context error is returned)
//
// Returns the last error when all attempts fail.
func Retry[T any](ctx context.Context, p RetryPolicy, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(attempt-1, p.BaseDelay, p.MaxDelay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return zero, ctx.Err()
			}
		}

		out, err := fn(ctx)
		if err == nil {
			return out, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return zero, err
		}
	}
	return zero, lastErr
}

// backoffDelay computes min(base * 2^attempt, maxDelay) + jitter(0, base).
//
// The exponential component doubles with each retry; jitter randomizes
// timing across concurrent callers.
func backoffDelay(attempt int, base, maxDelay time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}

	exponential := base * (1 << attempt)
	if exponential > maxDelay || exponential <= 0 {
		exponential = maxDelay
	}

	// math/rand is fine here; jitter timing is not security-sensitive.
	jitter := time.Duration(rand.Int63n(int64(base))) // #nosec G404
	return exponential + jitter
}
