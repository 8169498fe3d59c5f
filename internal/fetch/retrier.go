package fetch

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
)

// Retrier runs an operation up to MaxAttempts times, sleeping Backoff(attempt)
// between attempts while Retryable reports the failure as worth retrying.
// Attempts are zero-indexed; there is no sleep after the final attempt.
type Retrier struct {
	MaxAttempts int
	Backoff     func(attempt int) time.Duration
	Retryable   func(error) bool
	Clock       clockwork.Clock

	// OnRetry, when set, is called before each backoff sleep.
	OnRetry func(attempt int, wait time.Duration, err error)
}

// NewRetrier returns a Retrier with exponential backoff from base (base, 2*base, 4*base, ...)
// that retries transient errors only.
func NewRetrier(maxAttempts int, base time.Duration, clock clockwork.Clock) *Retrier {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Retrier{
		MaxAttempts: maxAttempts,
		Backoff:     ExponentialBackoff(base),
		Retryable:   IsTransient,
		Clock:       clock,
	}
}

// ExponentialBackoff returns base * 2^attempt with no jitter.
func ExponentialBackoff(base time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		return base << attempt
	}
}

// Do calls op until it succeeds, returns a non-retryable error, or attempts run out.
func (r *Retrier) Do(ctx context.Context, op func(ctx context.Context) error) error {
	maxAttempts := max(r.MaxAttempts, 1)
	for attempt := 0; ; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if r.Retryable == nil || !r.Retryable(err) {
			return err
		}
		if attempt+1 >= maxAttempts {
			return fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, maxAttempts, err)
		}

		wait := r.Backoff(attempt)
		if r.OnRetry != nil {
			r.OnRetry(attempt, wait, err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.Clock.After(wait):
		}
	}
}
