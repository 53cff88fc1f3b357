package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wallgrab/pkg/config"
	errs "wallgrab/pkg/errors"
	"wallgrab/pkg/logger"
)

// Operation is a function that performs an operation that might need retrying
type Operation func() error

// OperationWithResult is a function that returns a result and might need retrying
type OperationWithResult[T any] func() (T, error)

// Config holds retry configuration
type Config struct {
	// MaxAttempts counts the first try; values below 1 mean a single attempt
	MaxAttempts int
	Backoff     BackoffStrategy
	// MaxRetryAfter caps a server-requested wait
	MaxRetryAfter time.Duration
	RetryIf       func(error) bool
	OnRetry       func(attempt int, err error, delay time.Duration)
	Logger        logger.Logger
}

// DefaultConfig returns a retry configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		MaxAttempts:   3,
		Backoff:       DefaultExponentialBackoff(),
		MaxRetryAfter: time.Minute,
		RetryIf:       DefaultRetryIf,
		Logger:        logger.NewNopLogger(),
	}
}

// FromSettings builds a Config from the retry section of the configuration
func FromSettings(s config.RetryConfig, log logger.Logger) *Config {
	cfg := DefaultConfig()
	cfg.MaxAttempts = s.MaxAttempts
	cfg.Backoff = &ExponentialBackoff{
		BaseDelay:    s.InitialBackoff,
		MaxDelay:     s.MaxBackoff,
		Multiplier:   s.Multiplier,
		JitterFactor: 0.1,
	}
	if log != nil {
		cfg.Logger = log
	}
	return cfg
}

// DefaultRetryIf retries typed transient errors and untyped errors, but
// never a cancelled or expired context
func DefaultRetryIf(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr *errs.Error
	if errors.As(err, &apiErr) {
		return errs.IsRetryable(apiErr.Type)
	}
	return true
}

// Do executes op until it succeeds, fails with a non-retryable error, runs
// out of attempts, or ctx is done
func Do(ctx context.Context, op Operation, cfg *Config) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	retryIf := cfg.RetryIf
	if retryIf == nil {
		retryIf = DefaultRetryIf
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; ; attempt++ {
		err := op()
		if err == nil {
			if attempt > 1 {
				log.DebugWithFields("operation succeeded after retry", map[string]interface{}{
					"attempt": attempt,
				})
			}
			return nil
		}
		lastErr = err

		if !retryIf(err) {
			return err
		}
		if attempt >= maxAttempts {
			if maxAttempts == 1 {
				return err
			}
			return fmt.Errorf("max retry attempts (%d) exceeded: %w", maxAttempts, lastErr)
		}

		delay := cfg.delayFor(attempt, err)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, delay)
		}
		log.WarnWithFields("retrying operation", map[string]interface{}{
			"attempt":      attempt,
			"error":        err.Error(),
			"delay_ms":     delay.Milliseconds(),
			"max_attempts": maxAttempts,
		})

		if err := Wait(ctx, delay); err != nil {
			return fmt.Errorf("retry cancelled: %w", err)
		}
	}
}

func (c *Config) delayFor(attempt int, err error) time.Duration {
	var delay time.Duration
	if c.Backoff != nil {
		delay = c.Backoff.NextDelay(attempt)
	}

	var apiErr *errs.Error
	if errors.As(err, &apiErr) && apiErr.Type == errs.ErrorTypeRateLimit && apiErr.RetryAfter > delay {
		delay = apiErr.RetryAfter
		if c.MaxRetryAfter > 0 && delay > c.MaxRetryAfter {
			delay = c.MaxRetryAfter
		}
	}
	return delay
}

// DoWithResult executes an operation that returns a result with retry logic
func DoWithResult[T any](ctx context.Context, op OperationWithResult[T], cfg *Config) (T, error) {
	var result T
	err := Do(ctx, func() error {
		var opErr error
		result, opErr = op()
		return opErr
	}, cfg)
	return result, err
}
