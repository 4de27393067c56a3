package sync

import (
	"context"
	"time"
)

// withRetry runs fn up to attempts times with exponential backoff between
// tries. Context cancellation wins over the remaining budget.
func withRetry(ctx context.Context, attempts int, backoff time.Duration, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff << i):
		}
	}
	return err
}
