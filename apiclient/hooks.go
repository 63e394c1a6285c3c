package apiclient

import (
	"context"
	"net/http"
)

// RequestHookContext is the mutable request view handed to pre-send hooks.
type RequestHookContext struct {
	// URL is the resolved request URL for this attempt, after any auth
	// rewrite.
	URL string

	// Method is the HTTP method.
	Method string

	// Header is the outgoing header set; mutations apply to this
	// attempt only.
	Header http.Header

	// Body is the serialized request body, or nil.
	Body []byte
}

// ResponseHookContext is the view handed to post-receive hooks after a
// successful decode.
type ResponseHookContext struct {
	// URL and Method describe the original request.
	URL    string
	Method string

	// Response is the decoded attempt result.
	Response *Response
}

// RequestHook runs before an attempt is transmitted. Hooks run
// sequentially in registration order; a returned error aborts the
// attempt before send.
type RequestHook func(ctx context.Context, hc *RequestHookContext) error

// ResponseHook runs after a successful decode. Hooks run sequentially
// in registration order; a returned error fails the attempt even
// though a response was technically received. Hook failures are never
// retried: hooks are trusted caller code and the response may already
// have caused side effects.
type ResponseHook func(ctx context.Context, hc *ResponseHookContext) error

// HookChain holds the ordered pre-send and post-receive hook lists.
type HookChain struct {
	pre  []RequestHook
	post []ResponseHook
}

// NewHookChain creates an empty hook chain.
func NewHookChain() *HookChain {
	return &HookChain{}
}

// AddRequestHook appends a pre-send hook.
func (c *HookChain) AddRequestHook(h RequestHook) {
	c.pre = append(c.pre, h)
}

// AddResponseHook appends a post-receive hook.
func (c *HookChain) AddResponseHook(h ResponseHook) {
	c.post = append(c.post, h)
}

// ApplyRequestHooks runs all pre-send hooks in order, stopping at the
// first error.
func (c *HookChain) ApplyRequestHooks(ctx context.Context, hc *RequestHookContext) error {
	for _, h := range c.pre {
		if err := h(ctx, hc); err != nil {
			return err
		}
	}
	return nil
}

// ApplyResponseHooks runs all post-receive hooks in order, stopping at
// the first error.
func (c *HookChain) ApplyResponseHooks(ctx context.Context, hc *ResponseHookContext) error {
	for _, h := range c.post {
		if err := h(ctx, hc); err != nil {
			return err
		}
	}
	return nil
}

// Common hook helpers.

// HeaderHook returns a pre-send hook that sets a fixed header.
func HeaderHook(key, value string) RequestHook {
	return func(_ context.Context, hc *RequestHookContext) error {
		hc.Header.Set(key, value)
		return nil
	}
}

// UserAgentHook returns a pre-send hook that sets the User-Agent header.
func UserAgentHook(userAgent string) RequestHook {
	return func(_ context.Context, hc *RequestHookContext) error {
		hc.Header.Set("User-Agent", userAgent)
		return nil
	}
}
