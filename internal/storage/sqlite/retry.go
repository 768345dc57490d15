package sqlite

import (
	"context"
	"math/rand"
	"strings"
	"time"
)

// RetryConfig controls exponential backoff retry behavior.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	JitterPct  float64 // e.g. 0.25 for 25% jitter
}

// DefaultRetryConfig returns the default retry configuration:
// 7 retries, 50ms base, 25% jitter.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 7,
		BaseDelay:  50 * time.Millisecond,
		JitterPct:  0.25,
	}
}

// RetryOnDBLock retries fn on "database is locked" errors using default
// config, aborting early if ctx is canceled between attempts.
func RetryOnDBLock(ctx context.Context, fn func() error) error {
	return retryOnDBLockInternal(ctx, DefaultRetryConfig(), fn, sleepCtx)
}

// RetryOnDBLockWithConfig retries fn on "database is locked" errors using the given config.
func RetryOnDBLockWithConfig(ctx context.Context, cfg RetryConfig, fn func() error) error {
	return retryOnDBLockInternal(ctx, cfg, fn, sleepCtx)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func retryOnDBLockInternal(ctx context.Context, cfg RetryConfig, fn func() error, sleepFn func(context.Context, time.Duration) error) error {
	err := fn()
	if err == nil {
		return nil
	}
	if !isDBLocked(err) {
		return err
	}

	for attempt := 1; attempt <= cfg.MaxRetries; attempt++ {
		delay := cfg.BaseDelay * (1 << (attempt - 1))
		jitter := time.Duration(float64(delay) * rand.Float64() * cfg.JitterPct)
		if sleepErr := sleepFn(ctx, delay+jitter); sleepErr != nil {
			return sleepErr
		}

		err = fn()
		if err == nil {
			return nil
		}
		if !isDBLocked(err) {
			return err
		}
	}
	return err
}

func isDBLocked(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "database is locked")
}
