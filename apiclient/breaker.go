package apiclient

import (
	"errors"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
)

// BreakerConfig configures the optional circuit breaker wrapped around
// the network call of every attempt.
//
// States follow the usual model: closed (requests pass), open
// (requests rejected immediately with ErrCircuitOpen), half-open
// (limited probing).
type BreakerConfig struct {
	// MaxRequests is the number of probe requests allowed while
	// half-open. 0 means 1.
	MaxRequests uint32

	// Interval is the cyclic period over which closed-state counts are
	// cleared. 0 keeps counts forever while closed.
	Interval time.Duration

	// Timeout is how long the breaker stays open before probing.
	Timeout time.Duration

	// FailureThreshold is the minimum number of requests before the
	// failure ratio can trip the breaker.
	FailureThreshold uint32

	// FailureRatio trips the breaker once the observed failure ratio
	// reaches this value (0.0 - 1.0).
	FailureRatio float64

	// ConsecutiveFailures trips the breaker after this many failures
	// in a row. 0 disables the rule.
	ConsecutiveFailures uint32
}

// DefaultBreakerConfig returns conservative defaults: trip after 5
// consecutive failures or a 50% failure ratio over at least 20
// requests, stay open for 10s.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:         1,
		Interval:            10 * time.Second,
		Timeout:             10 * time.Second,
		FailureThreshold:    20,
		FailureRatio:        0.5,
		ConsecutiveFailures: 5,
	}
}

// errBreakerSyntheticFailure marks a received response that should
// count against the breaker (server error status) even though the
// transport returned no error. It is unwrapped before the response is
// handed back to the attempt pipeline.
var errBreakerSyntheticFailure = errors.New("apiclient: breaker synthetic failure")

func newBreaker(name string, cfg BreakerConfig) *gobreaker.CircuitBreaker[*http.Response] {
	return gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if cfg.ConsecutiveFailures > 0 && counts.ConsecutiveFailures >= cfg.ConsecutiveFailures {
				return true
			}
			if cfg.FailureThreshold > 0 && counts.Requests < cfg.FailureThreshold {
				return false
			}
			if cfg.FailureRatio <= 0 {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= cfg.FailureRatio
		},
	})
}

// executeThroughBreaker runs the transport call under the breaker.
// Server-error statuses count as failures via a synthetic error that is
// stripped from the result.
func executeThroughBreaker(
	cb *gobreaker.CircuitBreaker[*http.Response],
	call func() (*http.Response, error),
) (*http.Response, error) {
	resp, err := cb.Execute(func() (*http.Response, error) {
		resp, err := call()
		if err != nil {
			return resp, err
		}
		if resp.StatusCode >= 500 {
			return resp, errBreakerSyntheticFailure
		}
		return resp, nil
	})
	if err != nil {
		if errors.Is(err, errBreakerSyntheticFailure) {
			return resp, nil
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, ErrCircuitOpen
		}
		return nil, err
	}
	return resp, nil
}
