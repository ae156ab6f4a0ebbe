package retry

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// Config holds retry configuration
type Config struct {
	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
	JitterFraction    float64

	// OnRetry, when set, is called before each re-attempt with the upcoming
	// attempt number (2-based) and the error that triggered the retry. Callers
	// use it to vary per-attempt request state, e.g. rotating user agents.
	OnRetry func(attempt int, err error)
}

// DefaultConfig returns sensible defaults for retry configuration
func DefaultConfig() Config {
	return Config{
		MaxAttempts:       3,
		InitialBackoff:    100 * time.Millisecond,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
		JitterFraction:    0.1,
	}
}

// IsRetryable is a function that determines if an error should trigger a retry
type IsRetryable func(error) bool

// Do runs fn until it succeeds, returns a non-retryable error, or the attempt
// budget is spent. Backoff between attempts grows exponentially.
func Do(ctx context.Context, cfg Config, fn func() error, isRetryable IsRetryable) error {
	_, err := DoWithResult(ctx, cfg, func() (struct{}, error) {
		return struct{}{}, fn()
	}, isRetryable)
	return err
}

// DoWithResult is Do for functions that produce a value. On failure it returns
// the zero value from the last attempt together with its error.
func DoWithResult[T any](ctx context.Context, cfg Config, fn func() (T, error), isRetryable IsRetryable) (T, error) {
	var (
		result T
		err    error
	)

	for attempt := 1; ; attempt++ {
		result, err = fn()
		if err == nil {
			return result, nil
		}
		if !isRetryable(err) || attempt >= cfg.MaxAttempts {
			return result, err
		}

		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-time.After(Backoff(attempt, cfg)):
		}

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt+1, err)
		}
	}
}

// Backoff calculates the jittered backoff duration for a given attempt
func Backoff(attempt int, cfg Config) time.Duration {
	if attempt <= 0 {
		return 0
	}

	backoff := float64(cfg.InitialBackoff) * math.Pow(cfg.BackoffMultiplier, float64(attempt-1))
	duration := time.Duration(backoff)

	if duration > cfg.MaxBackoff {
		duration = cfg.MaxBackoff
	}

	return calculateBackoff(duration, cfg.JitterFraction)
}

// calculateBackoff spreads the delay by up to +/- jitterFraction of its value
// so concurrent callers do not wake in lockstep
func calculateBackoff(backoff time.Duration, jitterFraction float64) time.Duration {
	if jitterFraction <= 0 {
		return backoff
	}

	spread := float64(backoff) * jitterFraction
	delay := float64(backoff) + (rand.Float64()*2-1)*spread
	if delay < 0 {
		delay = 0
	}

	return time.Duration(delay)
}
