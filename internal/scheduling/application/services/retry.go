package services

import (
	"context"
	"time"
)

const (
	storeRetryAttempts = 3
	storeRetryBackoff  = 100 * time.Millisecond
)

// withRetry runs op up to attempts times, sleeping a linearly growing backoff
// between tries. Store and provider calls are wrapped in it so a transient
// hiccup does not abort a planning cycle; the last error is returned when
// every attempt fails.
func withRetry(ctx context.Context, attempts int, backoff time.Duration, op func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt-1) * backoff):
			}
		}
		if err = op(); err == nil {
			return nil
		}
	}
	return err
}
