package wallet

import (
	"context"
	"time"
)

const (
	balanceAttempts    = 3
	balanceBackoffBase = 200 * time.Millisecond
)

// withBackoff runs fn up to attempts times, doubling the delay between
// attempts (base, 2*base, ...). Returns nil on the first success, the last
// error once attempts are exhausted, or the context error if cancelled while
// waiting.
func withBackoff(ctx context.Context, attempts int, base time.Duration, fn func() error) error {
	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt == attempts-1 {
			break
		}

		delay := base << uint(attempt)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}
