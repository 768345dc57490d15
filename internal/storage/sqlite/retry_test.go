package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetryOnDBLockSucceedsAfterRetries(t *testing.T) {
	attempts := 0
	err := RetryOnDBLockWithConfig(context.Background(), RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond, JitterPct: 0}, func() error {
		attempts++
		if attempts < 3 {
			return errors.New("database is locked")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestRetryOnDBLockPassesThroughOtherErrors(t *testing.T) {
	other := errors.New("no such table")
	attempts := 0
	err := RetryOnDBLock(context.Background(), func() error {
		attempts++
		return other
	})
	if !errors.Is(err, other) {
		t.Fatalf("expected passthrough error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected no retries for non-lock error, got %d attempts", attempts)
	}
}

func TestRetryOnDBLockRespectsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := RetryOnDBLock(ctx, func() error {
		return errors.New("database is locked")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
