package upstream

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/rs/zerolog"
)

// RetryConfig holds the configuration for retry logic.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including the initial request).
	MaxAttempts int

	// InitialBackoff is the initial backoff duration.
	InitialBackoff time.Duration

	// MaxBackoff is the maximum backoff duration.
	MaxBackoff time.Duration

	// BackoffMultiplier is the multiplier for exponential backoff.
	BackoffMultiplier float64
}

// DefaultRetryConfig returns the default retry configuration. Backoffs are
// short because every attempt shares the single call timeout.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       2,
		InitialBackoff:    100 * time.Millisecond,
		MaxBackoff:        1 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// retryWithBackoff runs fn until it succeeds, returns a non-retryable error,
// or runs out of attempts. A backoff that would outlast ctx's deadline is
// not taken; the last error is returned instead.
func retryWithBackoff(ctx context.Context, cfg RetryConfig, logger zerolog.Logger, fn func() error) error {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}

	var lastErr error
	backoff := cfg.InitialBackoff

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 1 {
				logger.Info().
					Int("attempt", attempt).
					Msg("Upstream request succeeded after retry")
			}
			return nil
		}
		lastErr = err

		var fetchErr *FetchError
		if !errors.As(err, &fetchErr) || !shouldRetry(fetchErr.ErrorClass) {
			return lastErr
		}

		if attempt >= cfg.MaxAttempts {
			break
		}

		// Add jitter (±20% randomness)
		wait := time.Duration(float64(backoff) * (0.8 + rand.Float64()*0.4))
		if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) <= wait {
			logger.Debug().
				Str("error_class", string(fetchErr.ErrorClass)).
				Int("attempt", attempt).
				Msg("Not retrying: backoff exceeds remaining timeout")
			return lastErr
		}

		upstreamRetriesTotal.WithLabelValues(string(fetchErr.ErrorClass)).Inc()
		logger.Debug().
			Str("error_class", string(fetchErr.ErrorClass)).
			Int("attempt", attempt).
			Dur("backoff", wait).
			Msg("Retrying upstream request after backoff")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return lastErr
		case <-timer.C:
		}

		backoff = time.Duration(float64(backoff) * cfg.BackoffMultiplier)
		if backoff > cfg.MaxBackoff {
			backoff = cfg.MaxBackoff
		}
	}

	logger.Warn().
		Int("max_attempts", cfg.MaxAttempts).
		Msg("Upstream retry attempts exhausted")

	return lastErr
}
