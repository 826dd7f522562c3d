package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var errRetryable = errors.New("retryable")
var errTerminal = errors.New("terminal")

func TestRetrySucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), "op", RetryConfig{MaxAttempts: 3, Delay: time.Millisecond}, func() error {
		calls++
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, calls)
}

func TestRetryRecoversAfterFailures(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), "op", RetryConfig{MaxAttempts: 3, Delay: time.Millisecond}, func() error {
		calls++
		if calls < 3 {
			return errRetryable
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
}

func TestRetryExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), "op", RetryConfig{MaxAttempts: 3, Delay: time.Millisecond}, func() error {
		calls++
		return errRetryable
	})
	require.ErrorIs(t, err, errRetryable)
	require.Equal(t, 3, calls)
}

func TestRetryStopsOnNonRetryableError(t *testing.T) {
	calls := 0
	cfg := RetryConfig{
		MaxAttempts: 3,
		Delay:       time.Millisecond,
		RetryIf:     func(err error) bool { return errors.Is(err, errRetryable) },
	}
	err := Retry(context.Background(), "op", cfg, func() error {
		calls++
		return errTerminal
	})
	// Terminal errors come back unwrapped so callers can classify them.
	require.Equal(t, errTerminal, err)
	require.Equal(t, 1, calls)
}

func TestRetryAbortsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Retry(ctx, "op", RetryConfig{MaxAttempts: 5, Delay: time.Minute}, func() error {
		calls++
		cancel()
		return errRetryable
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, calls)
}

func TestWithTimeout(t *testing.T) {
	err := WithTimeout(context.Background(), 20*time.Millisecond, "slow op", func(ctx context.Context) error {
		select {
		case <-time.After(time.Second):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)

	err = WithTimeout(context.Background(), time.Second, "fast op", func(ctx context.Context) error {
		return nil
	})
	require.NoError(t, err)
}

func TestWithTimeoutDoesNotWaitForStuckFunction(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	start := time.Now()
	err := WithTimeout(context.Background(), 20*time.Millisecond, "stuck op", func(ctx context.Context) error {
		<-release
		return nil
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Less(t, time.Since(start), time.Second)
}

func TestWithTimeoutReportsParentCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := WithTimeout(ctx, time.Second, "cancelled op", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	require.ErrorIs(t, err, context.Canceled)
	require.NotErrorIs(t, err, context.DeadlineExceeded)
}

func TestWithTimeoutZeroDisablesDeadline(t *testing.T) {
	parent := context.Background()
	err := WithTimeout(parent, 0, "unbounded op", func(ctx context.Context) error {
		require.Equal(t, parent, ctx)
		return nil
	})
	require.NoError(t, err)
}
