package apiclient

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Default values for RetryStrategy.
const (
	// DefaultMaxRetries is the default number of retry attempts.
	DefaultMaxRetries = 3

	// DefaultBaseDelay is the default first backoff interval.
	DefaultBaseDelay = 500 * time.Millisecond

	// DefaultJitter is the default randomization factor (±20%).
	DefaultJitter = 0.2
)

// backoffMultiplier doubles the delay on each retry:
// delay(n) = BaseDelay × 2^(n-1), scaled by jitter.
const backoffMultiplier = 2.0

// RetryStrategy governs whether and how long a failed attempt waits
// before retrying. It shapes the backoff curve and restricts automatic
// retry to an explicit method allowlist, because retrying a
// non-idempotent write risks duplicate side effects.
type RetryStrategy struct {
	// MaxRetries is the maximum number of retry attempts after the
	// initial one. 0 disables retries. Must be >= 0.
	MaxRetries int

	// BaseDelay is the delay before the first retry. Subsequent delays
	// double: BaseDelay × 2^attempt. Must be >= 0.
	BaseDelay time.Duration

	// Jitter scales each delay by a factor drawn uniformly from
	// [1-Jitter, 1+Jitter]. Must be in [0, 1]. Default 0.2.
	Jitter float64

	// Methods is the set of HTTP methods eligible for automatic retry.
	// Empty means the default idempotent set (GET, HEAD, PUT, OPTIONS).
	// POST, PATCH and DELETE are excluded unless listed explicitly.
	Methods []string

	// Eligible optionally replaces the default failure classification.
	// When set, it alone decides whether a classified failure may be
	// retried; the method allowlist still applies.
	Eligible func(err error) bool
}

// DefaultRetryStrategy returns the balanced defaults: 3 retries,
// 500ms base delay doubling per attempt, ±20% jitter, idempotent
// methods only.
func DefaultRetryStrategy() RetryStrategy {
	return RetryStrategy{
		MaxRetries: DefaultMaxRetries,
		BaseDelay:  DefaultBaseDelay,
		Jitter:     DefaultJitter,
	}
}

// NoRetryStrategy disables automatic retry entirely.
func NoRetryStrategy() RetryStrategy {
	return RetryStrategy{}
}

// validate checks the strategy parameters; called at client construction.
func (s RetryStrategy) validate() error {
	if s.MaxRetries < 0 {
		return newConfigError("retry: max retries must be >= 0, got %d", s.MaxRetries)
	}
	if s.BaseDelay < 0 {
		return newConfigError("retry: base delay must be >= 0, got %v", s.BaseDelay)
	}
	if s.Jitter < 0 || s.Jitter > 1 {
		return newConfigError("retry: jitter must be in [0, 1], got %v", s.Jitter)
	}
	return nil
}

// methodEligible reports whether the method is in the retry allowlist.
func (s RetryStrategy) methodEligible(method string) bool {
	if len(s.Methods) == 0 {
		switch method {
		case http.MethodGet, http.MethodHead, http.MethodPut, http.MethodOptions:
			return true
		default:
			return false
		}
	}
	for _, m := range s.Methods {
		if m == method {
			return true
		}
	}
	return false
}

// shouldRetry decides whether the failed attempt (0-based) may be
// retried. Eligibility combines the attempt budget, the method
// allowlist and the failure classification.
func (s RetryStrategy) shouldRetry(method string, err error, attempt int) bool {
	if attempt >= s.MaxRetries {
		return false
	}
	if !s.methodEligible(method) {
		return false
	}
	if s.Eligible != nil {
		return s.Eligible(err)
	}
	return isRetryable(err)
}

// newBackOff builds the exponential backoff engine for one logical
// request. Each call to NextBackOff yields
// BaseDelay × 2^attempt × [1-Jitter, 1+Jitter].
func (s RetryStrategy) newBackOff() backoff.BackOff {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     s.BaseDelay,
		RandomizationFactor: s.Jitter,
		Multiplier:          backoffMultiplier,
		MaxInterval:         time.Duration(1<<62 - 1),
	}
	b.Reset()
	return b
}

// isRetryable applies the default failure classification, in order:
//
//  1. Timeouts and explicit cancellations are never retried.
//  2. Local rejections (open breaker, rate limit) are never retried.
//  3. A response with status >= 500 is retried.
//  4. A pure network failure (no response at all) is retried.
//  5. Everything else (4xx, auth, validation, hook failures) is not.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrRateLimited) {
		return false
	}

	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	switch e.Kind {
	case KindTimeout:
		return false
	case KindHTTPStatus:
		return e.StatusCode >= 500
	case KindTransport:
		return true
	default:
		return false
	}
}
