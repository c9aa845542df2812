package service

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetryStopsOnSuccess(t *testing.T) {
	calls := 0
	err := retry(context.Background(), retryPolicy{attempts: 5, baseDelay: time.Millisecond}, nil, func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("flaky")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestRetryIsBounded(t *testing.T) {
	calls := 0
	boom := errors.New("down")
	err := retry(context.Background(), retryPolicy{attempts: 3, baseDelay: time.Millisecond}, nil, func(context.Context) error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestRetrySkipsNonRetryable(t *testing.T) {
	calls := 0
	fatal := errors.New("fatal")
	err := retry(context.Background(), retryPolicy{attempts: 4, baseDelay: time.Millisecond},
		func(err error) bool { return !errors.Is(err, fatal) },
		func(context.Context) error {
			calls++
			return fatal
		})
	if !errors.Is(err, fatal) || calls != 1 {
		t.Fatalf("err = %v, calls = %d", err, calls)
	}
}

func TestRetryHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	_ = retry(ctx, retryPolicy{attempts: 10, baseDelay: time.Hour}, nil, func(context.Context) error {
		calls++
		return errors.New("x")
	})
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}
