// internal/provider/retry.go - Bounded retry with backoff shared by adapters
package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"terrain-tiler/internal"
)

// retryAfterBuffer is added on top of a server-provided Retry-After so
// the retry lands safely past the window boundary.
const retryAfterBuffer = 500 * time.Millisecond

// RateLimitedError reports an HTTP 429, optionally carrying the
// server-requested wait from a Retry-After header.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
	}
	return "rate limited"
}

// RetryPolicy describes how an adapter retries transient failures.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	// Linear selects linear backoff (delay * attempt) instead of the
	// default exponential doubling.
	Linear bool
	// Retryable decides whether an error is worth another attempt. A nil
	// predicate retries everything except cancellation.
	Retryable func(error) bool
}

// Do runs fn under the policy. Cancellation short-circuits immediately
// and is returned as-is, never wrapped as a retry exhaustion. A 429
// honoring Retry-After overrides the computed backoff delay.
func Do[T any](ctx context.Context, policy RetryPolicy, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		if internal.IsCanceled(err) {
			return zero, err
		}
		lastErr = err
		if policy.Retryable != nil && !policy.Retryable(err) {
			return zero, err
		}
		if attempt == policy.MaxAttempts {
			break
		}

		wait := policy.BaseDelay
		if policy.Linear {
			wait = policy.BaseDelay * time.Duration(attempt)
		} else {
			wait = policy.BaseDelay << uint(attempt-1)
		}
		var rl *RateLimitedError
		if errors.As(err, &rl) && rl.RetryAfter > 0 {
			wait = rl.RetryAfter + retryAfterBuffer
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(wait):
		}
	}

	return zero, fmt.Errorf("failed after %d attempts: %w", policy.MaxAttempts, lastErr)
}
