package apiclient

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for local rejections that never reach the network.
var (
	// ErrCircuitOpen is returned when the circuit breaker rejects a request.
	ErrCircuitOpen = errors.New("apiclient: circuit open")

	// ErrRateLimited is returned when a request is rejected by the
	// client-side rate limiter in fail-fast mode.
	ErrRateLimited = errors.New("apiclient: rate limit exceeded")
)

// ErrorKind classifies a request failure. Every error surfaced by this
// package is an *Error carrying exactly one kind, so callers can branch
// on the failure class without string matching.
type ErrorKind string

const (
	// KindConfig marks invalid client configuration. Raised at
	// construction or when a request names an unknown base URL key.
	KindConfig ErrorKind = "config"

	// KindAuth marks a failure inside the auth provider (empty token,
	// contradictory API key setup). Never retried.
	KindAuth ErrorKind = "auth"

	// KindTransport marks a network-level failure with no HTTP response.
	// Retry-eligible unless it wraps a context cancellation.
	KindTransport ErrorKind = "transport"

	// KindTimeout marks an attempt that exceeded its deadline.
	// Distinct from KindTransport so callers and the retry policy can
	// special-case it. Never retried.
	KindTimeout ErrorKind = "timeout"

	// KindHTTPStatus marks a response received with a non-2xx status.
	// Retry-eligible only for status >= 500.
	KindHTTPStatus ErrorKind = "http_status"

	// KindValidation marks a request or response that failed schema
	// validation, or a response body that could not be decoded.
	// Never retried.
	KindValidation ErrorKind = "validation"
)

// ValidationIssue describes a single schema violation.
type ValidationIssue struct {
	// Field is the offending field, in struct namespace form (e.g. "User.Name").
	Field string `json:"field"`

	// Rule is the constraint that failed (e.g. "required", "min").
	Rule string `json:"rule"`

	// Message is a human-readable description of the violation.
	Message string `json:"message"`
}

// Error is the single typed failure value surfaced by this package.
// It carries enough structured context (status code, raw body text,
// validation issues) to act on programmatically.
type Error struct {
	// Kind is the failure classification.
	Kind ErrorKind

	// Message describes the failure.
	Message string

	// StatusCode is the HTTP status for KindHTTPStatus errors, 0 otherwise.
	StatusCode int

	// Body is the raw response body text for KindHTTPStatus errors.
	// Best-effort: if the body could not be read, this holds a
	// diagnostic note instead.
	Body string

	// Issues holds the structured validation failures for KindValidation.
	Issues []ValidationIssue

	// RequestID correlates all attempts of one logical request.
	RequestID string

	// Attempt is the 1-based physical attempt that produced the failure.
	Attempt int

	// Cause is the underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	b.WriteString("apiclient: ")
	b.WriteString(string(e.Kind))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.StatusCode > 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if len(e.Issues) > 0 {
		fmt.Fprintf(&b, " (%d validation issue(s))", len(e.Issues))
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is matches two *Error values by kind, so
// errors.Is(err, &Error{Kind: KindTimeout}) works as a class check.
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// IsTimeout reports whether err is an attempt-deadline failure.
func IsTimeout(err error) bool { return hasKind(err, KindTimeout) }

// IsValidation reports whether err is a schema validation failure.
func IsValidation(err error) bool { return hasKind(err, KindValidation) }

// IsHTTPStatus reports whether err is a non-2xx response failure.
// When it is, the status code is returned.
func IsHTTPStatus(err error) (int, bool) {
	var e *Error
	if errors.As(err, &e) && e.Kind == KindHTTPStatus {
		return e.StatusCode, true
	}
	return 0, false
}

func hasKind(err error, kind ErrorKind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

func newConfigError(format string, args ...any) *Error {
	return &Error{Kind: KindConfig, Message: fmt.Sprintf(format, args...)}
}

func newAuthError(message string, cause error) *Error {
	return &Error{Kind: KindAuth, Message: message, Cause: cause}
}
