package apiclient

import (
	"context"
	"errors"

	"golang.org/x/time/rate"
)

// RateLimitConfig configures optional client-side rate limiting,
// applied before every physical attempt.
type RateLimitConfig struct {
	// RequestsPerSecond is the maximum sustained attempt rate.
	// <= 0 disables the limiter.
	RequestsPerSecond float64

	// Burst is the maximum number of attempts allowed in a burst.
	Burst int

	// WaitOnLimit selects the behavior at the limit: wait for a token
	// (respecting the request context) when true, or fail fast with
	// ErrRateLimited when false.
	WaitOnLimit bool
}

// DefaultRateLimitConfig returns 100 attempts per second with a burst
// of 10, waiting at the limit.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 100,
		Burst:             10,
		WaitOnLimit:       true,
	}
}

func newRateLimiter(cfg RateLimitConfig) *rate.Limiter {
	if cfg.RequestsPerSecond <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst)
}

// acquireRateToken blocks or fails according to the configured mode.
// Context errors pass through unchanged so cancellation is not
// misreported as rate limiting.
func acquireRateToken(ctx context.Context, limiter *rate.Limiter, wait bool) error {
	if limiter == nil {
		return nil
	}
	if wait {
		if err := limiter.Wait(ctx); err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				return err
			}
			return ErrRateLimited
		}
		return nil
	}
	if !limiter.Allow() {
		return ErrRateLimited
	}
	return nil
}
