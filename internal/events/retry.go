package events

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// RetryPolicy retries an operation with exponential backoff.
// MaxAttempts <= 1 runs the operation once.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
}

// Do runs fn until it succeeds, attempts run out or ctx is done.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	for i := 1; ; i++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if i >= attempts {
			if attempts > 1 {
				return fmt.Errorf("gave up after %d attempts: %w", i, err)
			}
			return err
		}

		timer := time.NewTimer(p.Backoff << (i - 1))
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Join(err, ctx.Err())
		case <-timer.C:
		}
	}
}
