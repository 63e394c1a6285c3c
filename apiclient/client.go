package apiclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// requestIDHeader carries the stable logical-request ID so server logs
// can correlate the attempts of one retried request.
const requestIDHeader = "X-Request-Id"

// RequestOptions carries the optional per-call settings.
type RequestOptions struct {
	// BaseURLKey selects a named base URL; empty means "default".
	// Keys are case-sensitive.
	BaseURLKey string

	// Headers are merged over the client's default headers; the
	// per-call value wins on key collision.
	Headers map[string]string

	// Query holds the query parameters for this call. Query parameters
	// come only from here; they are never scraped from body fields.
	Query *QueryValues
}

// Client executes outbound HTTP requests with auth injection, bounded
// retry with exponential backoff, per-attempt timeouts, response
// decoding and pluggable observability.
//
// Create a Client with New:
//
//	client, err := apiclient.New(
//	    apiclient.WithBaseURL("https://api.example.com"),
//	    apiclient.WithAuth(apiclient.NewBearerTokenAuth(token)),
//	)
//
// A Client is safe for concurrent use. The auth provider may be
// swapped with SetAuthProvider; perform swaps before concurrent
// traffic begins, not during.
type Client struct {
	cfg        *internalConfig
	httpClient *http.Client
	auth       atomic.Pointer[authHolder]
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker[*http.Response]
	flight     singleflight.Group
}

type authHolder struct {
	provider AuthProvider
}

// New builds a Client from the options, validating the configuration
// eagerly. Construction fails on an empty or default-less base URL
// map, negative retry count or delay, jitter outside [0,1], or a
// negative timeout — no request is possible with an invalid
// configuration.
func New(opts ...Option) (*Client, error) {
	cfg := newInternalConfig(opts...)
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	c := &Client{
		cfg:        cfg,
		httpClient: cfg.buildHTTPClient(),
	}
	c.auth.Store(&authHolder{provider: cfg.auth})

	if cfg.rateLimit != nil {
		c.limiter = newRateLimiter(*cfg.rateLimit)
	}
	if cfg.breaker != nil {
		name := cfg.serviceName
		if name == "" {
			name = "apiclient"
		}
		c.breaker = newBreaker(name, *cfg.breaker)
	}
	return c, nil
}

// SetAuthProvider swaps the auth provider. Only calls issued after the
// swap observe the new provider.
func (c *Client) SetAuthProvider(p AuthProvider) {
	if p == nil {
		p = NoAuth{}
	}
	c.auth.Store(&authHolder{provider: p})
}

// AuthProvider returns the provider currently in effect.
func (c *Client) AuthProvider() AuthProvider {
	return c.auth.Load().provider
}

// HTTP returns the underlying *http.Client for advanced use cases.
func (c *Client) HTTP() *http.Client {
	return c.httpClient
}

// Get executes a GET request.
func (c *Client) Get(ctx context.Context, path string, opts *RequestOptions) (*Response, error) {
	return c.Do(ctx, http.MethodGet, path, nil, opts)
}

// Post executes a POST request with the given body.
func (c *Client) Post(ctx context.Context, path string, body any, opts *RequestOptions) (*Response, error) {
	return c.Do(ctx, http.MethodPost, path, body, opts)
}

// Put executes a PUT request with the given body.
func (c *Client) Put(ctx context.Context, path string, body any, opts *RequestOptions) (*Response, error) {
	return c.Do(ctx, http.MethodPut, path, body, opts)
}

// Patch executes a PATCH request with the given body.
func (c *Client) Patch(ctx context.Context, path string, body any, opts *RequestOptions) (*Response, error) {
	return c.Do(ctx, http.MethodPatch, path, body, opts)
}

// Delete executes a DELETE request.
func (c *Client) Delete(ctx context.Context, path string, opts *RequestOptions) (*Response, error) {
	return c.Do(ctx, http.MethodDelete, path, nil, opts)
}

// Do executes one logical request: resolve the URL, apply auth, run
// pre-send hooks, perform the network call under a per-attempt
// timeout, decode the response, run post-receive hooks, and drive the
// retry policy across attempts. All attempts share one request ID so
// logs and metrics can be correlated.
func (c *Client) Do(ctx context.Context, method, path string, body any, opts *RequestOptions) (*Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts == nil {
		opts = &RequestOptions{}
	}

	base, err := c.resolveBaseURL(opts.BaseURLKey)
	if err != nil {
		return nil, err
	}
	fullURL := base + normalizePath(path) + opts.Query.Encode()

	headers := c.mergeHeaders(opts.Headers)
	bodyBytes, err := serializeBody(method, body, headers)
	if err != nil {
		return nil, err
	}

	if c.cfg.coalesce && coalescibleMethod(method) {
		v, err, _ := c.flight.Do(coalesceKey(method, fullURL, bodyBytes), func() (any, error) {
			return c.execute(ctx, method, path, fullURL, headers, bodyBytes, opts)
		})
		if err != nil {
			return nil, err
		}
		// Each caller gets its own copy; the cached body bytes are
		// shared and read-only.
		resp := *v.(*Response)
		return &resp, nil
	}

	return c.execute(ctx, method, path, fullURL, headers, bodyBytes, opts)
}

// execute drives the retry loop for one logical request.
func (c *Client) execute(
	ctx context.Context,
	method, path, fullURL string,
	headers http.Header,
	bodyBytes []byte,
	opts *RequestOptions,
) (*Response, error) {
	requestID := uuid.NewString()
	bo := c.cfg.retry.newBackOff()

	for attempt := 0; ; attempt++ {
		start := time.Now()
		resp, attemptErr := c.attempt(ctx, method, fullURL, headers, bodyBytes, opts, requestID, attempt)
		c.emit(ctx, method, path, requestID, attempt, resp, attemptErr, time.Since(start))

		if attemptErr == nil {
			return resp, nil
		}
		if !c.cfg.retry.shouldRetry(method, attemptErr, attempt) {
			return nil, attemptErr
		}

		delay := bo.NextBackOff()
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, classifyAttemptError(ctx.Err(), requestID, attempt+1)
		}
	}
}

// attempt performs one physical attempt. The OutgoingRequest state
// (headers, URL) is rebuilt per attempt so auth and hook mutations
// never leak between attempts, and the timeout window is re-armed so
// each retry gets a fresh budget.
func (c *Client) attempt(
	ctx context.Context,
	method, fullURL string,
	baseHeaders http.Header,
	body []byte,
	opts *RequestOptions,
	requestID string,
	attempt int,
) (*Response, error) {
	attemptCtx := ctx
	cancel := func() {}
	if c.cfg.timeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, c.cfg.timeout)
	}
	defer cancel()

	waitOnLimit := c.cfg.rateLimit != nil && c.cfg.rateLimit.WaitOnLimit
	if err := acquireRateToken(attemptCtx, c.limiter, waitOnLimit); err != nil {
		return nil, classifyAttemptError(err, requestID, attempt+1)
	}

	header := baseHeaders.Clone()

	result, err := c.AuthProvider().Apply(attemptCtx, &AuthContext{
		URL:     fullURL,
		Header:  header,
		Options: opts,
	})
	if err != nil {
		return nil, asAuthError(err, requestID, attempt+1)
	}
	sendURL := fullURL
	if rewritten, ok := result.RewrittenURL(); ok {
		sendURL = rewritten
	}

	hookCtx := &RequestHookContext{URL: sendURL, Method: method, Header: header, Body: body}
	if err := c.cfg.hooks.ApplyRequestHooks(attemptCtx, hookCtx); err != nil {
		return nil, err
	}

	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(attemptCtx, method, sendURL, bodyReader)
	if err != nil {
		return nil, newConfigError("building request for %s %s: %v", method, sendURL, err)
	}
	req.Header = header
	req.Header.Set(requestIDHeader, requestID)

	start := time.Now()
	call := func() (*http.Response, error) { return c.httpClient.Do(req) }

	var httpResp *http.Response
	if c.breaker != nil {
		httpResp, err = executeThroughBreaker(c.breaker, call)
	} else {
		httpResp, err = call()
	}
	if err != nil {
		return nil, classifyAttemptError(err, requestID, attempt+1)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, statusError(httpResp, requestID, attempt+1)
	}

	rawBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, classifyAttemptError(err, requestID, attempt+1)
	}

	data, err := decodeAttemptBody(rawBody, httpResp.Header.Get("Content-Type"))
	if err != nil {
		return nil, &Error{
			Kind:      KindValidation,
			Message:   "decoding response body",
			Cause:     err,
			RequestID: requestID,
			Attempt:   attempt + 1,
		}
	}

	resp := &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       rawBody,
		Data:       data,
		Duration:   time.Since(start),
		RequestID:  requestID,
		Attempts:   attempt + 1,
	}

	if err := c.cfg.hooks.ApplyResponseHooks(attemptCtx, &ResponseHookContext{
		URL:      sendURL,
		Method:   method,
		Response: resp,
	}); err != nil {
		return nil, err
	}

	return resp, nil
}

// emit sends one observability event per completed attempt to the
// metrics collector and the logger.
func (c *Client) emit(
	ctx context.Context,
	method, path, requestID string,
	attempt int,
	resp *Response,
	err error,
	duration time.Duration,
) {
	rec := AttemptRecord{
		Method:    method,
		Path:      path,
		Duration:  duration,
		Timestamp: time.Now(),
		Success:   err == nil,
		RequestID: requestID,
		Attempt:   attempt + 1,
	}
	if resp != nil {
		rec.Status = resp.StatusCode
	}
	fields := map[string]any{
		"method":      method,
		"path":        path,
		"request_id":  requestID,
		"attempt":     attempt + 1,
		"duration_ms": duration.Milliseconds(),
	}
	if c.cfg.serviceName != "" {
		fields["client"] = c.cfg.serviceName
	}

	if err != nil {
		rec.Error = err.Error()
		var e *Error
		if errors.As(err, &e) && e.StatusCode > 0 {
			rec.Status = e.StatusCode
		}
		c.cfg.metrics.Record(ctx, rec)
		c.cfg.logger.Log(LevelWarn, "request attempt failed", fields, err)
		return
	}

	fields["status"] = rec.Status
	c.cfg.metrics.Record(ctx, rec)
	c.cfg.logger.Log(LevelDebug, "request attempt succeeded", fields, nil)
}

// resolveBaseURL looks up the named base URL with the trailing slash
// stripped. An unknown key is a configuration error listing the
// available keys.
func (c *Client) resolveBaseURL(key string) (string, error) {
	if key == "" {
		key = DefaultBaseURLKey
	}
	base, ok := c.cfg.baseURLs[key]
	if !ok {
		keys := baseURLKeys(c.cfg.baseURLs)
		sort.Strings(keys)
		return "", newConfigError("unknown base URL key %q (available: %s)",
			key, strings.Join(keys, ", "))
	}
	return strings.TrimSuffix(base, "/"), nil
}

// mergeHeaders layers the per-call headers over the defaults; the
// caller wins on key collision.
func (c *Client) mergeHeaders(overrides map[string]string) http.Header {
	h := c.cfg.defaultHeaders.Clone()
	if h == nil {
		h = make(http.Header)
	}
	if c.cfg.userAgent != "" && h.Get("User-Agent") == "" {
		h.Set("User-Agent", c.cfg.userAgent)
	}
	for k, v := range overrides {
		h.Set(k, v)
	}
	return h
}

// serializeBody turns the caller's body into bytes. GET and HEAD never
// carry a body. Raw forms ([]byte, string, io.Reader) pass through
// unchanged; anything else is JSON-encoded when the effective
// Content-Type indicates JSON (the default when none is set).
func serializeBody(method string, body any, headers http.Header) ([]byte, error) {
	if body == nil || method == http.MethodGet || method == http.MethodHead {
		return nil, nil
	}

	switch b := body.(type) {
	case []byte:
		return b, nil
	case string:
		return []byte(b), nil
	case io.Reader:
		data, err := io.ReadAll(b)
		if err != nil {
			return nil, newConfigError("reading request body: %v", err)
		}
		return data, nil
	}

	contentType := headers.Get("Content-Type")
	if contentType == "" {
		headers.Set("Content-Type", "application/json")
		contentType = "application/json"
	}
	if !isJSONContentType(contentType) {
		return nil, newConfigError(
			"body of type %T requires a JSON content type or a raw body ([]byte, string, io.Reader), got %q",
			body, contentType)
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, newConfigError("encoding request body: %v", err)
	}
	return data, nil
}

// normalizePath ensures the path joins the base URL with exactly one
// slash.
func normalizePath(path string) string {
	if path == "" || strings.HasPrefix(path, "/") {
		return path
	}
	return "/" + path
}

// classifyAttemptError maps a raw attempt failure onto the error
// taxonomy. Deadline expiry becomes the distinctly-named timeout kind
// so callers and the retry policy can special-case it; explicit
// cancellation and local rejections stay transport-kind but are never
// retried.
func classifyAttemptError(err error, requestID string, attempt int) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}

	out := &Error{
		Kind:      KindTransport,
		RequestID: requestID,
		Attempt:   attempt,
		Cause:     err,
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		out.Kind = KindTimeout
		out.Message = "attempt deadline exceeded"
	case errors.Is(err, context.Canceled):
		out.Message = "request canceled"
	case errors.Is(err, ErrCircuitOpen):
		out.Message = "circuit breaker open"
	case errors.Is(err, ErrRateLimited):
		out.Message = "rate limited"
	default:
		out.Message = "network failure"
	}
	return out
}

// asAuthError ensures an auth provider failure surfaces as an
// auth-kind error with attempt context attached.
func asAuthError(err error, requestID string, attempt int) *Error {
	var e *Error
	if errors.As(err, &e) {
		if e.RequestID == "" {
			e.RequestID = requestID
		}
		if e.Attempt == 0 {
			e.Attempt = attempt
		}
		return e
	}
	return &Error{
		Kind:      KindAuth,
		Message:   "applying auth provider",
		Cause:     err,
		RequestID: requestID,
		Attempt:   attempt,
	}
}

// statusError builds the failure for a non-2xx response, reading the
// body as text best-effort for diagnostics.
func statusError(resp *http.Response, requestID string, attempt int) *Error {
	bodyText := ""
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		bodyText = fmt.Sprintf("<failed to read response body: %v>", err)
	} else {
		bodyText = string(raw)
	}
	return &Error{
		Kind:       KindHTTPStatus,
		Message:    http.StatusText(resp.StatusCode),
		StatusCode: resp.StatusCode,
		Body:       bodyText,
		RequestID:  requestID,
		Attempt:    attempt,
	}
}
