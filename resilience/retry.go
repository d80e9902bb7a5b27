package resilience

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrMaxRetriesExceeded is wrapped, together with the last error, into the
// error Retry returns once RetryConfig.MaxAttempts is exhausted.
var ErrMaxRetriesExceeded = errors.New("resilience: max retry attempts exceeded")

// RetryConfig tunes Retry's exponential backoff, same fields and
// defaults as the teacher's resilience/retry.go.
type RetryConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	JitterEnabled bool
}

// DefaultRetryConfig matches the teacher's defaults: 3 attempts, 100ms
// initial delay, 5s cap, factor 2, jitter on.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{MaxAttempts: 3, InitialDelay: 100 * time.Millisecond, MaxDelay: 5 * time.Second, BackoffFactor: 2.0, JitterEnabled: true}
}

// Retry executes fn with exponential backoff, respecting ctx
// cancellation between attempts. Kept as a direct adaptation of the
// teacher's hand-rolled implementation rather than switched to an
// external backoff library: cenkalti/backoff/v5 appears in the
// teacher's go.mod only as an indirect (transitive) dependency — no file
// in the retrieved pack imports it directly — so wiring it here would be
// the same fabrication the VictoriaMetrics/metrics decision in
// SPEC_FULL.md avoids.
func Retry(ctx context.Context, config *RetryConfig, fn func() error) error {
	if config == nil {
		config = DefaultRetryConfig()
	}

	var lastErr error
	delay := config.InitialDelay

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
		}

		if attempt == config.MaxAttempts {
			break
		}

		if attempt > 1 {
			delay = time.Duration(float64(delay) * config.BackoffFactor)
			if delay > config.MaxDelay {
				delay = config.MaxDelay
			}
		}

		if config.JitterEnabled {
			jitter := time.Duration(float64(delay) * 0.1 * math.Sin(float64(attempt)))
			delay += jitter
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return fmt.Errorf("max retry attempts (%d) exceeded for %w: %w", config.MaxAttempts, lastErr, ErrMaxRetriesExceeded)
}

// RetryWithCircuitBreaker combines Retry with a CircuitBreaker: each
// attempt first checks Allow, and records the outcome against cb.
func RetryWithCircuitBreaker(ctx context.Context, config *RetryConfig, cb *CircuitBreaker, fn func() error) error {
	return Retry(ctx, config, func() error {
		return cb.Execute(fn)
	})
}
