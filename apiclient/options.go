package apiclient

import (
	"net"
	"net/http"
	"time"
)

// DefaultBaseURLKey is the base URL map entry used when a call does
// not name one.
const DefaultBaseURLKey = "default"

// DefaultTimeout bounds each physical attempt when the caller does not
// configure one explicitly.
const DefaultTimeout = 15 * time.Second

// internalConfig is the assembled, validated client configuration.
// Immutable after construction except for the auth provider, which the
// Client swaps atomically.
type internalConfig struct {
	baseURLs       map[string]string
	defaultHeaders http.Header
	retry          RetryStrategy
	timeout        time.Duration
	hooks          *HookChain
	auth           AuthProvider
	logger         Logger
	metrics        Collector
	userAgent      string

	httpClient *http.Client
	transport  http.RoundTripper

	rateLimit *RateLimitConfig
	breaker   *BreakerConfig
	coalesce  bool

	serviceName string
}

// Option configures the client.
type Option func(*internalConfig)

// WithBaseURL sets the "default" base URL.
func WithBaseURL(u string) Option {
	return func(cfg *internalConfig) {
		cfg.baseURLs[DefaultBaseURLKey] = u
	}
}

// WithBaseURLs sets named base URLs. The map must contain a "default"
// entry by construction time; keys are case-sensitive.
func WithBaseURLs(urls map[string]string) Option {
	return func(cfg *internalConfig) {
		for k, v := range urls {
			cfg.baseURLs[k] = v
		}
	}
}

// WithDefaultHeader sets a header applied to every request. Per-call
// headers override it on key collision.
func WithDefaultHeader(key, value string) Option {
	return func(cfg *internalConfig) {
		cfg.defaultHeaders.Set(key, value)
	}
}

// WithDefaultHeaders sets several default headers at once.
func WithDefaultHeaders(headers map[string]string) Option {
	return func(cfg *internalConfig) {
		for k, v := range headers {
			cfg.defaultHeaders.Set(k, v)
		}
	}
}

// WithRetryStrategy sets the retry policy. Use NoRetryStrategy() to
// disable automatic retry.
func WithRetryStrategy(s RetryStrategy) Option {
	return func(cfg *internalConfig) {
		cfg.retry = s
	}
}

// WithTimeout bounds each physical attempt. The window is re-armed per
// attempt, so every retry gets a fresh budget. 0 disables the
// per-attempt timeout (the request context still applies).
func WithTimeout(d time.Duration) Option {
	return func(cfg *internalConfig) {
		cfg.timeout = d
	}
}

// WithAuth sets the auth provider. Default: NoAuth.
func WithAuth(p AuthProvider) Option {
	return func(cfg *internalConfig) {
		cfg.auth = p
	}
}

// WithLogger sets the logging capability. Default: NopLogger.
func WithLogger(l Logger) Option {
	return func(cfg *internalConfig) {
		cfg.logger = l
	}
}

// WithMetrics sets the metrics capability. Default: NopCollector.
func WithMetrics(c Collector) Option {
	return func(cfg *internalConfig) {
		cfg.metrics = c
	}
}

// WithRequestHook appends a pre-send hook. Hooks run in registration
// order before every attempt.
func WithRequestHook(h RequestHook) Option {
	return func(cfg *internalConfig) {
		cfg.hooks.AddRequestHook(h)
	}
}

// WithResponseHook appends a post-receive hook. Hooks run in
// registration order after every successful decode.
func WithResponseHook(h ResponseHook) Option {
	return func(cfg *internalConfig) {
		cfg.hooks.AddResponseHook(h)
	}
}

// WithHTTPClient supplies the network-call capability directly.
// Takes precedence over WithTransport.
func WithHTTPClient(c *http.Client) Option {
	return func(cfg *internalConfig) {
		cfg.httpClient = c
	}
}

// WithTransport supplies a custom http.RoundTripper for the
// default-constructed client.
func WithTransport(rt http.RoundTripper) Option {
	return func(cfg *internalConfig) {
		cfg.transport = rt
	}
}

// WithUserAgent sets the User-Agent header on every request unless a
// call overrides it.
func WithUserAgent(ua string) Option {
	return func(cfg *internalConfig) {
		cfg.userAgent = ua
	}
}

// WithRateLimit enables client-side rate limiting for all attempts.
func WithRateLimit(rl RateLimitConfig) Option {
	return func(cfg *internalConfig) {
		cfg.rateLimit = &rl
	}
}

// WithBreaker enables a circuit breaker around the network call.
func WithBreaker(b BreakerConfig) Option {
	return func(cfg *internalConfig) {
		cfg.breaker = &b
	}
}

// WithRequestCoalescing shares one in-flight execution among
// concurrent identical GET/HEAD requests to this client. Duplicate
// callers receive a copy of the leader's result and share its request
// ID, attempts and context; a canceled leader cancels for everyone.
// Off by default. Do not enable when auth or hooks produce
// per-caller responses for the same URL.
func WithRequestCoalescing() Option {
	return func(cfg *internalConfig) {
		cfg.coalesce = true
	}
}

// WithServiceName names this client in log entries and the breaker.
func WithServiceName(name string) Option {
	return func(cfg *internalConfig) {
		cfg.serviceName = name
	}
}

// newInternalConfig applies options over defaults.
func newInternalConfig(opts ...Option) *internalConfig {
	cfg := &internalConfig{
		baseURLs:       make(map[string]string),
		defaultHeaders: make(http.Header),
		retry:          DefaultRetryStrategy(),
		timeout:        DefaultTimeout,
		hooks:          NewHookChain(),
		auth:           NoAuth{},
		logger:         NopLogger{},
		metrics:        NopCollector{},
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// validate enforces the construction invariants. Violations fail fast,
// before any request is possible.
func (cfg *internalConfig) validate() error {
	if len(cfg.baseURLs) == 0 {
		return newConfigError("base URL map is empty; set WithBaseURL or WithBaseURLs")
	}
	if _, ok := cfg.baseURLs[DefaultBaseURLKey]; !ok {
		return newConfigError("base URL map is missing the %q entry (have %v)",
			DefaultBaseURLKey, baseURLKeys(cfg.baseURLs))
	}
	if err := cfg.retry.validate(); err != nil {
		return err
	}
	if cfg.timeout < 0 {
		return newConfigError("timeout must be >= 0, got %v", cfg.timeout)
	}
	if cfg.auth == nil {
		return newConfigError("auth provider must not be nil; use NoAuth{}")
	}
	if cfg.logger == nil {
		return newConfigError("logger must not be nil; use NopLogger{}")
	}
	if cfg.metrics == nil {
		return newConfigError("metrics collector must not be nil; use NopCollector{}")
	}
	return nil
}

// buildHTTPClient resolves the network-call capability: an explicitly
// supplied *http.Client wins, then a supplied transport, then a
// default transport. The resulting client carries no client-level
// timeout; the executor arms a fresh per-attempt deadline instead.
func (cfg *internalConfig) buildHTTPClient() *http.Client {
	if cfg.httpClient != nil {
		return cfg.httpClient
	}
	transport := cfg.transport
	if transport == nil {
		transport = defaultTransport()
	}
	return &http.Client{Transport: transport}
}

func defaultTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   20,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

func baseURLKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}
