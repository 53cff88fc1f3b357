package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"wallgrab/pkg/config"
	errs "wallgrab/pkg/errors"
	"wallgrab/pkg/logger"
)

func fastConfig(attempts int) *Config {
	return &Config{
		MaxAttempts: attempts,
		Backoff:     &ConstantBackoff{Delay: time.Millisecond},
		RetryIf:     DefaultRetryIf,
	}
}

func TestExponentialBackoff(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:  100 * time.Millisecond,
		MaxDelay:   1 * time.Second,
		Multiplier: 2.0,
	}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 0},
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{5, time.Second},
		{9, time.Second},
	}

	for _, tt := range tests {
		if got := backoff.NextDelay(tt.attempt); got != tt.want {
			t.Errorf("NextDelay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestExponentialBackoffJitterStaysInBounds(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:    100 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.3,
	}

	for i := 0; i < 50; i++ {
		d := backoff.NextDelay(2)
		assert.GreaterOrEqual(t, d, 140*time.Millisecond)
		assert.LessOrEqual(t, d, 260*time.Millisecond)
	}
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return errs.New(errs.ErrorTypeNetwork, "connection reset")
		}
		return nil
	}, fastConfig(5))

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestDoStopsOnNonRetryable(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), func() error {
		attempts++
		return errs.FromStatus(401, "bad key")
	}, fastConfig(5))

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, errs.ErrorTypeAuth, errs.TypeOf(err))
}

func TestDoExhaustsAttempts(t *testing.T) {
	attempts := 0
	var retried []int
	cfg := fastConfig(3)
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		retried = append(retried, attempt)
	}

	err := Do(context.Background(), func() error {
		attempts++
		return errs.FromStatus(503, "unavailable")
	}, cfg)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "max retry attempts (3) exceeded")
	assert.Equal(t, errs.ErrorTypeServerError, errs.TypeOf(err))
	assert.Equal(t, 3, attempts)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestDoSingleAttemptWhenUnset(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), func() error {
		attempts++
		return errors.New("flaky")
	}, fastConfig(0))

	assert.EqualError(t, err, "flaky")
	assert.Equal(t, 1, attempts)
}

func TestDoHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := &Config{
		MaxAttempts: 5,
		Backoff:     &ConstantBackoff{Delay: time.Hour},
	}

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := Do(ctx, func() error { return errors.New("temporary") }, cfg)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestDefaultRetryIf(t *testing.T) {
	assert.False(t, DefaultRetryIf(nil))
	assert.False(t, DefaultRetryIf(context.Canceled))
	assert.False(t, DefaultRetryIf(errs.Wrap(errs.ErrorTypeNetwork, "get", context.DeadlineExceeded)))
	assert.True(t, DefaultRetryIf(errs.FromStatus(429, "")))
	assert.False(t, DefaultRetryIf(errs.FromStatus(404, "")))
	assert.False(t, DefaultRetryIf(errs.New(errs.ErrorTypeTooSmall, "")))
	assert.True(t, DefaultRetryIf(errors.New("unknown")))
}

func TestRetryAfterStretchesDelay(t *testing.T) {
	cfg := &Config{
		Backoff:       &ConstantBackoff{Delay: time.Second},
		MaxRetryAfter: 10 * time.Second,
	}

	rateLimited := errs.FromStatus(429, "")
	rateLimited.RetryAfter = 5 * time.Second
	assert.Equal(t, 5*time.Second, cfg.delayFor(1, rateLimited))

	rateLimited.RetryAfter = time.Hour
	assert.Equal(t, 10*time.Second, cfg.delayFor(1, rateLimited))

	assert.Equal(t, time.Second, cfg.delayFor(1, errs.FromStatus(500, "")))
}

func TestDoWithResult(t *testing.T) {
	calls := 0
	got, err := DoWithResult(context.Background(), func() (string, error) {
		calls++
		if calls == 1 {
			return "", errs.New(errs.ErrorTypeNetwork, "blip")
		}
		return "ok", nil
	}, fastConfig(2))

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
}

func TestFromSettings(t *testing.T) {
	tl := logger.NewTestLogger()
	cfg := FromSettings(config.RetryConfig{
		MaxAttempts:    4,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		Multiplier:     2,
	}, tl)

	assert.Equal(t, 4, cfg.MaxAttempts)
	eb, ok := cfg.Backoff.(*ExponentialBackoff)
	require.True(t, ok)
	assert.Equal(t, time.Millisecond, eb.BaseDelay)

	attempts := 0
	_ = Do(context.Background(), func() error {
		attempts++
		return errs.New(errs.ErrorTypeNetwork, "down")
	}, cfg)
	assert.Equal(t, 4, attempts)
	assert.Len(t, tl.GetMessagesByLevel("WARN"), 3)
}
