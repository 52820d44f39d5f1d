package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vaidashi/hire-a-tutor/pkg/logger"
)

// RetryableFunc defines a function that can be retried
type RetryableFunc func() error

// RetryConfig holds the configuration for retrying operations
type RetryConfig struct {
	MaxAttempts     int
	BackoffStrategy BackoffStrategy
	Logger          logger.Logger
	// RetryableErrors lists sentinels worth another attempt. Ignored when
	// ShouldRetry is set.
	RetryableErrors []error
	ShouldRetry     func(error) bool
}

// Retry retries the given function according to the provided configuration
func Retry(ctx context.Context, fn RetryableFunc, cfg *RetryConfig) error {
	var lastErr error

	log := cfg.Logger
	if log == nil {
		log = logger.NewNop()
	}

	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			if lastErr != nil {
				return fmt.Errorf("retry cancelled by context: %w", lastErr)
			}
			return fmt.Errorf("retry cancelled by context: %w", ctx.Err())
		default:
		}

		err := fn()

		if err == nil {
			return nil
		}

		lastErr = err

		if !cfg.retryable(err) {
			log.Debug("Non-retryable error encountered, giving up",
				"error", err,
				"attempt", attempt)
			return err
		}

		if attempt == maxAttempts {
			break
		}

		backoff := cfg.BackoffStrategy.NextBackoff(attempt)

		log.Info("Retrying after error",
			"error", err,
			"attempt", attempt,
			"maxAttempts", maxAttempts,
			"backoff", backoff)

		timer := time.NewTimer(backoff)

		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry cancelled by context during backoff: %w", lastErr)
		}
	}

	return fmt.Errorf("all %d retry attempts failed, last error: %w", maxAttempts, lastErr)
}

func (cfg *RetryConfig) retryable(err error) bool {
	if cfg.ShouldRetry != nil {
		return cfg.ShouldRetry(err)
	}

	// With no list every error is retried
	if len(cfg.RetryableErrors) == 0 {
		return true
	}

	for _, retryableErr := range cfg.RetryableErrors {
		if errors.Is(err, retryableErr) {
			return true
		}
	}

	return false
}

// RetryWithDiscard retries a function and applies the discard policy if all retries fail
func RetryWithDiscard(ctx context.Context, fn RetryableFunc, cfg *RetryConfig, discardFn func(error) error) error {
	err := Retry(ctx, fn, cfg)

	if err != nil {
		if cfg.Logger != nil {
			cfg.Logger.Error("All retries failed, applying discard policy",
				"error", err,
				"maxAttempts", cfg.MaxAttempts)
		}
		return discardFn(err)
	}
	return nil
}
