package apiclient

import (
	"context"
	"net/http"
	"net/url"
)

// AuthContext is the mutable view of an outgoing attempt handed to an
// AuthProvider. Providers mutate Header in place; URL rewrites go
// through the AuthResult return value instead of hidden mutation.
type AuthContext struct {
	// URL is the fully resolved request URL for this attempt.
	URL string

	// Header is the merged outgoing header set. Mutations apply to
	// this attempt only.
	Header http.Header

	// Options are the original per-call options, read-only.
	Options *RequestOptions
}

// AuthResult is the tagged outcome of AuthProvider.Apply: either the
// URL is unchanged, or the provider rewrote it and the executor must
// transmit to the rewritten URL.
type AuthResult struct {
	rewritten string
}

// AuthUnchanged reports that the provider did not touch the URL.
func AuthUnchanged() AuthResult {
	return AuthResult{}
}

// AuthRewriteURL instructs the executor to transmit to u instead of
// the originally resolved URL.
func AuthRewriteURL(u string) AuthResult {
	return AuthResult{rewritten: u}
}

// RewrittenURL returns the replacement URL and whether one was set.
func (r AuthResult) RewrittenURL() (string, bool) {
	return r.rewritten, r.rewritten != ""
}

// AuthProvider injects credentials into an outgoing attempt.
// Apply is called once per physical attempt, so rotating credentials
// are re-read on every retry.
type AuthProvider interface {
	Apply(ctx context.Context, ac *AuthContext) (AuthResult, error)
}

// NoAuth is the no-op provider.
type NoAuth struct{}

// Apply implements AuthProvider.
func (NoAuth) Apply(context.Context, *AuthContext) (AuthResult, error) {
	return AuthUnchanged(), nil
}

// TokenFunc produces a bearer token. It may hit the network (token
// refresh); callers should bound it with the request context.
type TokenFunc func(ctx context.Context) (string, error)

// BearerTokenAuth sets "Authorization: Bearer <token>" on each attempt.
// The token is fetched per attempt, not cached at construction, so
// rotating and refreshable tokens always present their current value.
type BearerTokenAuth struct {
	token TokenFunc
}

// NewBearerTokenAuth creates a provider for a fixed token.
func NewBearerTokenAuth(token string) *BearerTokenAuth {
	return &BearerTokenAuth{token: func(context.Context) (string, error) {
		return token, nil
	}}
}

// NewBearerTokenFuncAuth creates a provider that fetches the token on
// every attempt (useful for refreshable credentials).
func NewBearerTokenFuncAuth(fn TokenFunc) *BearerTokenAuth {
	return &BearerTokenAuth{token: fn}
}

// Apply implements AuthProvider. An empty or missing token fails the
// attempt with an auth error; this is checked per request so a token
// source that goes stale is caught immediately.
func (a *BearerTokenAuth) Apply(ctx context.Context, ac *AuthContext) (AuthResult, error) {
	if a.token == nil {
		return AuthUnchanged(), newAuthError("bearer token function is nil", nil)
	}
	token, err := a.token(ctx)
	if err != nil {
		return AuthUnchanged(), newAuthError("fetching bearer token", err)
	}
	if token == "" {
		return AuthUnchanged(), newAuthError("bearer token is empty", nil)
	}
	ac.Header.Set("Authorization", "Bearer "+token)
	return AuthUnchanged(), nil
}

// APIKeyConfig configures APIKeyAuth. Exactly one of Header or
// QueryParam must be set.
type APIKeyConfig struct {
	// Header is the header name carrying the key, e.g. "X-Api-Key".
	Header string

	// QueryParam is the query parameter name carrying the key.
	QueryParam string

	// Value is the API key itself.
	Value string
}

// APIKeyAuth injects an API key either as a header or as a query
// string parameter. The query variant rewrites the request URL and
// signals the executor through the AuthResult.
type APIKeyAuth struct {
	header     string
	queryParam string
	value      string
}

// NewAPIKeyAuth validates the configuration eagerly: exactly one
// placement (header or query parameter) must be chosen.
func NewAPIKeyAuth(cfg APIKeyConfig) (*APIKeyAuth, error) {
	if cfg.Header == "" && cfg.QueryParam == "" {
		return nil, newAuthError("api key auth requires a header or query parameter name", nil)
	}
	if cfg.Header != "" && cfg.QueryParam != "" {
		return nil, newAuthError("api key auth accepts a header or a query parameter name, not both", nil)
	}
	return &APIKeyAuth{
		header:     cfg.Header,
		queryParam: cfg.QueryParam,
		value:      cfg.Value,
	}, nil
}

// Apply implements AuthProvider.
func (a *APIKeyAuth) Apply(_ context.Context, ac *AuthContext) (AuthResult, error) {
	if a.header != "" {
		ac.Header.Set(a.header, a.value)
		return AuthUnchanged(), nil
	}

	u, err := url.Parse(ac.URL)
	if err != nil {
		return AuthUnchanged(), newAuthError("parsing request URL for api key injection", err)
	}
	q := u.Query()
	q.Set(a.queryParam, a.value)
	u.RawQuery = q.Encode()
	return AuthRewriteURL(u.String()), nil
}
