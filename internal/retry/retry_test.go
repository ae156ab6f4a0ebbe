package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTransient = errors.New("transient failure")

func fastConfig() Config {
	return Config{
		MaxAttempts:       3,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        10 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
}

func alwaysRetry(error) bool { return true }
func neverRetry(error) bool  { return false }

func TestDoSucceedsFirstAttempt(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), DefaultConfig(), func() error {
		attempts++
		return nil
	}, alwaysRetry)

	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fastConfig(), func() error {
		attempts++
		if attempts < 3 {
			return errTransient
		}
		return nil
	}, alwaysRetry)

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestDoStopsOnNonRetryableError(t *testing.T) {
	permanent := errors.New("bad credentials")
	attempts := 0
	err := Do(context.Background(), fastConfig(), func() error {
		attempts++
		return permanent
	}, neverRetry)

	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, attempts, "non-retryable errors fail immediately")
}

func TestDoExhaustsAttempts(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fastConfig(), func() error {
		attempts++
		return errTransient
	}, alwaysRetry)

	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 3, attempts)
}

func TestDoHonorsContextCancellation(t *testing.T) {
	cfg := Config{
		MaxAttempts:       5,
		InitialBackoff:    50 * time.Millisecond,
		MaxBackoff:        100 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	attempts := 0
	err := Do(ctx, cfg, func() error {
		attempts++
		return errTransient
	}, alwaysRetry)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, attempts, cfg.MaxAttempts)
}

func TestDoInvokesOnRetryHook(t *testing.T) {
	var hookAttempts []int
	cfg := fastConfig()
	cfg.OnRetry = func(attempt int, err error) {
		hookAttempts = append(hookAttempts, attempt)
		assert.ErrorIs(t, err, errTransient)
	}

	attempts := 0
	err := Do(context.Background(), cfg, func() error {
		attempts++
		return errTransient
	}, alwaysRetry)

	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, []int{2, 3}, hookAttempts,
		"hook fires before each re-attempt with the upcoming attempt number")
}

func TestDoWithResultReturnsValue(t *testing.T) {
	attempts := 0
	result, err := DoWithResult(context.Background(), fastConfig(), func() (int, error) {
		attempts++
		if attempts < 2 {
			return 0, errTransient
		}
		return 42, nil
	}, alwaysRetry)

	require.NoError(t, err)
	assert.Equal(t, 42, result)
	assert.Equal(t, 2, attempts)
}

func TestDoWithResultNonRetryable(t *testing.T) {
	permanent := errors.New("not found")
	result, err := DoWithResult(context.Background(), fastConfig(), func() (string, error) {
		return "", permanent
	}, neverRetry)

	assert.ErrorIs(t, err, permanent)
	assert.Empty(t, result)
}

func TestCalculateBackoffJitterBounds(t *testing.T) {
	backoff := 100 * time.Millisecond

	assert.Equal(t, backoff, calculateBackoff(backoff, 0), "zero jitter returns the base backoff")

	jitter := 0.1
	for i := 0; i < 100; i++ {
		result := calculateBackoff(backoff, jitter)
		assert.GreaterOrEqual(t, result, time.Duration(float64(backoff)*(1-jitter)))
		assert.LessOrEqual(t, result, time.Duration(float64(backoff)*(1+jitter)))
	}
}

func TestBackoffGrowthIsCapped(t *testing.T) {
	cfg := Config{
		InitialBackoff:    100 * time.Millisecond,
		MaxBackoff:        time.Second,
		BackoffMultiplier: 2.0,
	}

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 0},
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{5, time.Second},
		{6, time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, Backoff(tt.attempt, cfg), "attempt %d", tt.attempt)
	}
}
