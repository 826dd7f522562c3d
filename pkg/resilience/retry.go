// Package resilience provides fault-tolerance primitives: a bounded retry
// loop with a pluggable retry predicate, and a context-based timeout wrapper.
package resilience

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// RetryConfig controls the retry loop. RetryIf decides whether a given error
// is worth another attempt; when nil, every error is retried. Delay is a
// fixed pause between attempts.
type RetryConfig struct {
	MaxAttempts int
	Delay       time.Duration
	RetryIf     func(error) bool
}

func defaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		Delay:       time.Second,
	}
}

// Retry runs fn up to cfg.MaxAttempts times, pausing cfg.Delay between
// attempts. An error rejected by cfg.RetryIf aborts the loop immediately and
// is returned as-is, so callers can treat retryable and terminal failures
// differently.
func Retry(ctx context.Context, name string, cfg RetryConfig, fn func() error) error {
	defaults := defaultRetryConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaults.MaxAttempts
	}
	if cfg.Delay <= 0 {
		cfg.Delay = defaults.Delay
	}
	logger := slog.Default().With("component", "retry", "operation", name)
	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			if attempt > 1 {
				logger.Info("succeeded after retry", "attempt", attempt)
			}
			return nil
		}
		if cfg.RetryIf != nil && !cfg.RetryIf(lastErr) {
			return lastErr
		}
		if attempt == cfg.MaxAttempts {
			break
		}
		if ctx.Err() != nil {
			return fmt.Errorf("retry aborted: %w", ctx.Err())
		}
		logger.Warn("operation failed, retrying",
			"attempt", attempt,
			"max_attempts", cfg.MaxAttempts,
			"error", lastErr,
			"next_delay", cfg.Delay,
		)
		select {
		case <-time.After(cfg.Delay):
		case <-ctx.Done():
			return fmt.Errorf("retry aborted during backoff: %w", ctx.Err())
		}
	}
	return fmt.Errorf("all %d attempts failed for %s: %w", cfg.MaxAttempts, name, lastErr)
}
