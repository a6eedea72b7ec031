package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig(attempts int) Config {
	return Config{
		MaxAttempts:  attempts,
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     100 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestRetry_Success(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fastConfig(3), func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("transient error")
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetry_AllAttemptsFail(t *testing.T) {
	cause := errors.New("persistent error")
	attempts := 0
	err := Do(context.Background(), fastConfig(3), func(context.Context) error {
		attempts++
		return cause
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMaxRetriesExceeded)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Equal(t, 3, attempts)
}

func TestRetry_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := Config{
		MaxAttempts:  5,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
	}

	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	attempts := 0
	err := Do(ctx, cfg, func(context.Context) error {
		attempts++
		return errors.New("error")
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Contains(t, err.Error(), "retry cancelled")
	assert.Less(t, attempts, 5)
}

func TestRetry_NonRetryableStopsImmediately(t *testing.T) {
	attempts := 0
	cause := errors.New("bad request")
	err := Do(context.Background(), fastConfig(5), func(context.Context) error {
		attempts++
		return NonRetryable(cause)
	})

	assert.True(t, IsNonRetryable(err))
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrMaxRetriesExceeded)
	assert.Equal(t, 1, attempts)
	assert.Nil(t, NonRetryable(nil))
}

func TestRetry_ZeroAttemptsRunsOnce(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), Config{}, func(context.Context) error {
		attempts++
		return errors.New("nope")
	})

	assert.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestRetry_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"negative initial", Config{InitialDelay: -1}},
		{"negative max", Config{MaxDelay: -1}},
		{"negative multiplier", Config{Multiplier: -1}},
		{"max below initial", Config{InitialDelay: time.Second, MaxDelay: time.Millisecond}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			err := Do(context.Background(), tt.cfg, func(context.Context) error {
				called = true
				return nil
			})
			assert.Error(t, err)
			assert.False(t, called)
		})
	}
}

func TestRetry_NotifyReportsBackoff(t *testing.T) {
	var delays []time.Duration
	var seen []int
	cfg := Config{
		MaxAttempts:  4,
		InitialDelay: 5 * time.Millisecond,
		MaxDelay:     15 * time.Millisecond,
		Multiplier:   2.0,
		Notify: func(attempt int, err error, next time.Duration) {
			seen = append(seen, attempt)
			delays = append(delays, next)
		},
	}

	_ = Do(context.Background(), cfg, func(context.Context) error {
		return errors.New("fail")
	})

	assert.Equal(t, []int{1, 2, 3}, seen)
	assert.Equal(t, []time.Duration{5 * time.Millisecond, 10 * time.Millisecond, 15 * time.Millisecond}, delays)
}

func TestRetry_BackoffTiming(t *testing.T) {
	cfg := Config{
		MaxAttempts:  3,
		InitialDelay: 20 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
	}

	start := time.Now()
	_ = Do(context.Background(), cfg, func(context.Context) error {
		return errors.New("fail")
	})
	elapsed := time.Since(start)

	// 20ms + 40ms of sleeps.
	assert.GreaterOrEqual(t, elapsed, 60*time.Millisecond)
	assert.Less(t, elapsed, 500*time.Millisecond)
}

func TestRetry_JitterBounded(t *testing.T) {
	var delays []time.Duration
	cfg := Config{
		MaxAttempts:  6,
		InitialDelay: 4 * time.Millisecond,
		MaxDelay:     8 * time.Millisecond,
		Multiplier:   2.0,
		Jitter:       true,
		Notify: func(_ int, _ error, next time.Duration) {
			delays = append(delays, next)
		},
	}

	_ = Do(context.Background(), cfg, func(context.Context) error {
		return errors.New("fail")
	})

	require.Len(t, delays, 5)
	for i, d := range delays {
		base := cfg.Backoff(i + 1)
		assert.GreaterOrEqual(t, d, base)
		assert.Less(t, d, base+base/4+time.Nanosecond)
	}
}

func TestRetry_JitterNeverExceedsMaxDelay(t *testing.T) {
	var delays []time.Duration
	cfg := Config{
		MaxAttempts:  8,
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     10 * time.Millisecond,
		Multiplier:   2.0,
		Jitter:       true,
		Notify: func(_ int, _ error, next time.Duration) {
			delays = append(delays, next)
		},
	}

	_ = Do(context.Background(), cfg, func(context.Context) error {
		return errors.New("fail")
	})

	require.Len(t, delays, 7)
	for _, d := range delays {
		assert.LessOrEqual(t, d, cfg.MaxDelay)
		assert.GreaterOrEqual(t, d, cfg.InitialDelay)
	}
}

func TestBackoffCapped(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 500*time.Millisecond, cfg.Backoff(1))
	assert.Equal(t, time.Second, cfg.Backoff(2))
	assert.Equal(t, 2*time.Second, cfg.Backoff(3))
	assert.Equal(t, 8*time.Second, cfg.Backoff(5))
	assert.Equal(t, 8*time.Second, cfg.Backoff(50))
}

func TestDoWithResult(t *testing.T) {
	attempts := 0
	got, err := DoWithResult(context.Background(), fastConfig(3), func(context.Context) (string, error) {
		attempts++
		if attempts == 1 {
			return "", errors.New("first try fails")
		}
		return "reply", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "reply", got)
	assert.Equal(t, 2, attempts)
}
