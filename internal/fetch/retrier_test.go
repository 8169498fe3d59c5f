package fetch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExponentialBackoff(t *testing.T) {
	b := ExponentialBackoff(time.Second)
	assert.Equal(t, time.Second, b(0))
	assert.Equal(t, 2*time.Second, b(1))
	assert.Equal(t, 4*time.Second, b(2))
}

func TestRetrier_NonRetryableReturnsImmediately(t *testing.T) {
	r := NewRetrier(3, time.Second, clockwork.NewFakeClock())
	calls := 0
	want := errors.New("bad request")

	err := r.Do(context.Background(), func(context.Context) error {
		calls++
		return want
	})
	require.ErrorIs(t, err, want)
	assert.Equal(t, 1, calls)
}

func TestRetrier_ExhaustsAttempts(t *testing.T) {
	clock := clockwork.NewFakeClock()
	r := NewRetrier(3, time.Second, clock)
	calls := 0

	done := make(chan error, 1)
	go func() {
		done <- r.Do(context.Background(), func(context.Context) error {
			calls++
			return &TransientError{StatusCode: 503, Err: errors.New("unavailable")}
		})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, wait := range []time.Duration{time.Second, 2 * time.Second} {
		require.NoError(t, clock.BlockUntilContext(ctx, 1))
		clock.Advance(wait)
	}

	err := <-done
	require.ErrorIs(t, err, ErrRetriesExhausted)
	assert.True(t, IsTransient(err))
	assert.Equal(t, 3, calls)
}

func TestRetrier_ContextCancelledDuringBackoff(t *testing.T) {
	clock := clockwork.NewFakeClock()
	r := NewRetrier(3, time.Second, clock)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- r.Do(ctx, func(context.Context) error {
			return &TransientError{Err: errors.New("connection reset")}
		})
	}()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer waitCancel()
	require.NoError(t, clock.BlockUntilContext(waitCtx, 1))
	cancel()

	require.ErrorIs(t, <-done, context.Canceled)
}

func TestRetrier_SingleAttemptFloor(t *testing.T) {
	r := &Retrier{MaxAttempts: 0, Retryable: IsTransient, Backoff: ExponentialBackoff(time.Second), Clock: clockwork.NewFakeClock()}
	calls := 0
	err := r.Do(context.Background(), func(context.Context) error {
		calls++
		return &TransientError{Err: errors.New("timeout")}
	})
	require.ErrorIs(t, err, ErrRetriesExhausted)
	assert.Equal(t, 1, calls)
}
