package resilience

import (
	"context"
	"fmt"
	"time"
)

// WithTimeout bounds a single run of fn by the given duration. fn receives a
// context derived from ctx that expires after timeout; a well-behaved fn
// returns promptly once that context is done. WithTimeout does not wait for
// a stuck fn: when the deadline passes it returns an error wrapping
// context.DeadlineExceeded so callers can match with errors.Is, and the
// eventual result of fn is drained into a buffered channel and dropped.
// A timeout of zero or less runs fn on ctx unmodified.
func WithTimeout(ctx context.Context, timeout time.Duration, op string, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result := make(chan error, 1)
	go func() {
		result <- fn(runCtx)
	}()

	select {
	case err := <-result:
		return err
	case <-runCtx.Done():
		// Distinguish the caller giving up from fn overrunning its budget;
		// only the latter should look like a timeout to retry predicates.
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s abandoned: %w", op, err)
		}
		return fmt.Errorf("%s exceeded %v: %w", op, timeout, context.DeadlineExceeded)
	}
}
