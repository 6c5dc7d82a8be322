package resilience

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"

	apperrors "github.com/GriffinCanCode/cliprelay/internal/errors"
)

// Retry configuration constants
const (
	DefaultMaxRetries   = 3
	DefaultBaseDelay    = 500 * time.Millisecond
	DefaultMaxDelay     = 10 * time.Second
	DefaultJitterFactor = 0.2 // 20% jitter

	// Remote speech/LLM APIs rate-limit aggressively
	RemoteMaxRetries = 5
	RemoteBaseDelay  = 1 * time.Second
	RemoteMaxDelay   = 30 * time.Second
)

// RetryConfig holds retry settings.
type RetryConfig struct {
	MaxRetries   int
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	JitterFactor float64
	IsRetryable  func(error) bool
}

// DefaultRetryConfig returns standard retry settings.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   DefaultMaxRetries,
		BaseDelay:    DefaultBaseDelay,
		MaxDelay:     DefaultMaxDelay,
		JitterFactor: DefaultJitterFactor,
		IsRetryable:  apperrors.IsRetryable,
	}
}

// RemoteRetryConfig returns settings for rate-limited remote APIs. The
// caller supplies the classifier for the client's error type.
func RemoteRetryConfig(isRetryable func(error) bool) RetryConfig {
	return RetryConfig{
		MaxRetries:   RemoteMaxRetries,
		BaseDelay:    RemoteBaseDelay,
		MaxDelay:     RemoteMaxDelay,
		JitterFactor: DefaultJitterFactor,
		IsRetryable:  isRetryable,
	}
}

// Retry executes fn with exponential backoff. Returns last error if all retries fail.
// Context errors are never retried.
func Retry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	cfg = cfg.withDefaults()
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		if lastErr = fn(); lastErr == nil {
			return nil
		}

		if ctx.Err() != nil || !cfg.IsRetryable(lastErr) || attempt == cfg.MaxRetries {
			return lastErr
		}

		delay := Backoff(cfg, attempt)
		slog.Debug("retrying after error", "attempt", attempt+1, "max", cfg.MaxRetries, "delay", delay, "error", lastErr)

		if err := Sleep(ctx, delay); err != nil {
			return err
		}
	}
	return lastErr
}

// Backoff returns the delay before retry number attempt (0-based):
// BaseDelay doubled per attempt, capped at MaxDelay, then spread by
// JitterFactor. Zero fields are taken as zero, not defaulted.
func Backoff(cfg RetryConfig, attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	delay := cfg.BaseDelay << min(attempt, 16)
	if delay > cfg.MaxDelay || delay <= 0 {
		delay = cfg.MaxDelay
	}
	jitter := float64(delay) * cfg.JitterFactor * (rand.Float64() - 0.5)
	return time.Duration(float64(delay) + jitter)
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = DefaultBaseDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = DefaultMaxDelay
	}
	if c.JitterFactor <= 0 {
		c.JitterFactor = DefaultJitterFactor
	}
	if c.IsRetryable == nil {
		c.IsRetryable = apperrors.IsRetryable
	}
	return c
}
