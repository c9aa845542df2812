package service

import (
	"context"
	"time"
)

// retryPolicy bounds an exponential backoff: attempt n waits baseDelay * 2^(n-1).
type retryPolicy struct {
	attempts  int
	baseDelay time.Duration
}

// retry runs fn until it succeeds, returns a non-retryable error, or the attempts
// run out. The last error is returned.
func retry(ctx context.Context, policy retryPolicy, retryable func(error) bool, fn func(context.Context) error) error {
	attempts := policy.attempts
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if attempt == attempts || (retryable != nil && !retryable(err)) {
			return err
		}
		delay := policy.baseDelay << (attempt - 1)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
	return err
}
