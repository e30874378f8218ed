// Package httpretry implements the downstream retry discipline shared by
// the Auth Gateway's forwarder and the Normalizer's sink client (spec
// §4.4): exponential backoff with no jitter, capped, bounded by
// max_attempts. Built on github.com/sethvargo/go-retry, the same backoff
// library the teacher repo wraps for its own retrier.
package httpretry

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"
)

// Config mirrors spec §6's Retries config block.
type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// RetryableError marks an error as eligible for another attempt.
type RetryableError struct{ Err error }

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// Do runs fn up to cfg.MaxAttempts times. fn must return a *RetryableError
// (via Retryable) to request another attempt; any other non-nil error, or
// a nil error, stops retrying immediately. Delay before attempt N (N>1)
// is min(BaseDelay*2^(N-2), MaxDelay), matching spec §4.4 step 4 exactly
// (attempt is 1-indexed there; go-retry's backoff already starts at
// BaseDelay for the first *retry*, i.e. before attempt 2).
func Do(ctx context.Context, cfg Config, fn func(ctx context.Context, attempt int) error) error {
	backoff := retry.NewExponential(cfg.BaseDelay)
	backoff = retry.WithCappedDuration(cfg.MaxDelay, backoff)

	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	var maxRetries uint64
	if maxAttempts > 1 {
		maxRetries = uint64(maxAttempts - 1)
	}
	backoff = retry.WithMaxRetries(maxRetries, backoff)

	attempt := 0
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := fn(ctx, attempt)
		if err == nil {
			return nil
		}
		if re, ok := err.(*RetryableError); ok {
			return retry.RetryableError(re.Err)
		}
		return err
	})
}

// Retryable wraps err so Do treats it as retryable.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}
