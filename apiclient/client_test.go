package apiclient

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// roundTripperFunc adapts a function to http.RoundTripper for tests
// that need behavior MockTransport does not model.
type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func fastRetry(maxRetries int) RetryStrategy {
	return RetryStrategy{
		MaxRetries: maxRetries,
		BaseDelay:  time.Millisecond,
		Jitter:     0,
	}
}

func newTestClient(t *testing.T, mock *MockTransport, extra ...Option) *Client {
	t.Helper()
	opts := append([]Option{
		WithBaseURL("https://api.test"),
		WithTransport(mock),
		WithRetryStrategy(fastRetry(3)),
	}, extra...)
	client, err := New(opts...)
	require.NoError(t, err)
	return client
}

func TestClient_Do_Success(t *testing.T) {
	mock := NewMockTransport().StubJSON(http.StatusOK, `{"id": 7, "name": "alpha"}`)
	client := newTestClient(t, mock)

	resp, err := client.Get(context.Background(), "/items/7", nil)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, resp.IsSuccess())
	assert.Equal(t, 1, resp.Attempts)
	assert.NotEmpty(t, resp.RequestID)

	data, ok := resp.Data.(map[string]any)
	require.True(t, ok, "JSON body decodes to a map")
	assert.Equal(t, float64(7), data["id"])
	assert.Equal(t, "alpha", data["name"])

	require.Len(t, mock.Requests(), 1)
	sent := mock.Requests()[0]
	assert.Equal(t, http.MethodGet, sent.Method)
	assert.Equal(t, "https://api.test/items/7", sent.URL.String())
}

func TestClient_Do_BaseURLRouting(t *testing.T) {
	mock := NewMockTransport()
	client, err := New(
		WithBaseURLs(map[string]string{
			"default": "https://api.test/",
			"v2":      "https://v2.api.test",
		}),
		WithTransport(mock),
	)
	require.NoError(t, err)

	t.Run("given no key, then the default base URL is used", func(t *testing.T) {
		_, err := client.Get(context.Background(), "/a", nil)
		require.NoError(t, err)
		assert.Equal(t, "https://api.test/a", lastRequest(t, mock).URL.String())
	})

	t.Run("given a named key, then that base URL is used", func(t *testing.T) {
		_, err := client.Get(context.Background(), "a", &RequestOptions{BaseURLKey: "v2"})
		require.NoError(t, err)
		assert.Equal(t, "https://v2.api.test/a", lastRequest(t, mock).URL.String())
	})

	t.Run("given an unknown key, then the call fails before any attempt", func(t *testing.T) {
		before := mock.CallCount()
		_, err := client.Get(context.Background(), "/a", &RequestOptions{BaseURLKey: "v3"})
		require.Error(t, err)
		assert.True(t, hasKind(err, KindConfig))
		assert.Contains(t, err.Error(), `"v3"`)
		assert.Equal(t, before, mock.CallCount())
	})
}

func TestClient_Do_QueryEncoding(t *testing.T) {
	mock := NewMockTransport()
	client := newTestClient(t, mock)

	q := NewQueryValues().Add("page", 2).Add("tag", "a b")
	_, err := client.Get(context.Background(), "/search", &RequestOptions{Query: q})
	require.NoError(t, err)

	assert.Equal(t, "https://api.test/search?page=2&tag=a+b",
		lastRequest(t, mock).URL.String())
}

func TestClient_Do_StatusErrorNotRetriedBelow500(t *testing.T) {
	mock := NewMockTransport().StubResponse(http.StatusNotFound, "not found")
	client := newTestClient(t, mock)

	resp, err := client.Get(context.Background(), "/missing", nil)
	require.Error(t, err)
	assert.Nil(t, resp)
	assert.Equal(t, 1, mock.CallCount(), "4xx is terminal, no retry")

	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, KindHTTPStatus, e.Kind)
	assert.Equal(t, http.StatusNotFound, e.StatusCode)
	assert.Equal(t, "not found", e.Body)
	assert.Equal(t, 1, e.Attempt)
}

func TestClient_Do_ServerErrorRetriedUntilSuccess(t *testing.T) {
	mock := NewMockTransport().StubSequence(500, 503, 200)
	client := newTestClient(t, mock)

	resp, err := client.Get(context.Background(), "/flaky", nil)
	require.NoError(t, err)
	assert.Equal(t, 3, resp.Attempts)
	assert.Equal(t, 3, mock.CallCount())
}

func TestClient_Do_TransportFailureRetried(t *testing.T) {
	mock := NewMockTransport().StubSequence(-1, 200)
	client := newTestClient(t, mock)

	resp, err := client.Get(context.Background(), "/flaky", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Attempts)
}

func TestClient_Do_RetryBudgetExhausted(t *testing.T) {
	mock := NewMockTransport().StubResponse(http.StatusInternalServerError, "boom")
	client := newTestClient(t, mock, WithRetryStrategy(fastRetry(2)))

	_, err := client.Get(context.Background(), "/down", nil)
	require.Error(t, err)
	assert.Equal(t, 3, mock.CallCount(), "initial attempt plus MaxRetries")

	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, 3, e.Attempt)
	assert.Equal(t, http.StatusInternalServerError, e.StatusCode)
}

func TestClient_Do_PostNotRetriedByDefault(t *testing.T) {
	mock := NewMockTransport().StubResponse(http.StatusInternalServerError, "boom")
	client := newTestClient(t, mock)

	_, err := client.Post(context.Background(), "/orders", map[string]any{"sku": "x"}, nil)
	require.Error(t, err)
	assert.Equal(t, 1, mock.CallCount(), "POST is outside the default allowlist")
}

func TestClient_Do_PostRetriedWhenListed(t *testing.T) {
	mock := NewMockTransport().StubSequence(500, 200)
	client := newTestClient(t, mock, WithRetryStrategy(RetryStrategy{
		MaxRetries: 2,
		BaseDelay:  time.Millisecond,
		Methods:    []string{http.MethodPost},
	}))

	resp, err := client.Post(context.Background(), "/orders", map[string]any{"sku": "x"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Attempts)
}

func TestClient_Do_PerAttemptTimeoutNotRetried(t *testing.T) {
	blocked := roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		<-req.Context().Done()
		return nil, req.Context().Err()
	})
	client, err := New(
		WithBaseURL("https://api.test"),
		WithTransport(blocked),
		WithTimeout(20*time.Millisecond),
		WithRetryStrategy(fastRetry(3)),
	)
	require.NoError(t, err)

	start := time.Now()
	_, err = client.Get(context.Background(), "/slow", nil)
	require.Error(t, err)
	assert.True(t, IsTimeout(err))
	assert.Less(t, time.Since(start), 500*time.Millisecond, "no retry after timeout")
}

func TestClient_Do_CallerCancellationNotRetried(t *testing.T) {
	mock := NewMockTransport().StubResponse(http.StatusOK, "")
	client := newTestClient(t, mock)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Get(ctx, "/a", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, hasKind(err, KindTransport))
	assert.LessOrEqual(t, mock.CallCount(), 1)
}

func TestClient_Do_HeaderMerge(t *testing.T) {
	mock := NewMockTransport()
	client := newTestClient(t, mock,
		WithDefaultHeader("X-Env", "staging"),
		WithDefaultHeader("Accept", "application/json"),
	)

	_, err := client.Get(context.Background(), "/a", &RequestOptions{
		Headers: map[string]string{"X-Env": "prod"},
	})
	require.NoError(t, err)

	sent := lastRequest(t, mock)
	assert.Equal(t, "prod", sent.Header.Get("X-Env"), "per-call header wins")
	assert.Equal(t, "application/json", sent.Header.Get("Accept"))
}

func TestClient_Do_StableRequestIDAcrossAttempts(t *testing.T) {
	mock := NewMockTransport().StubSequence(500, 200)
	client := newTestClient(t, mock)

	resp, err := client.Get(context.Background(), "/flaky", nil)
	require.NoError(t, err)

	reqs := mock.Requests()
	require.Len(t, reqs, 2)
	first := reqs[0].Header.Get("X-Request-Id")
	assert.NotEmpty(t, first)
	assert.Equal(t, first, reqs[1].Header.Get("X-Request-Id"))
	assert.Equal(t, first, resp.RequestID)
}

func TestClient_Do_BearerAuthOnWire(t *testing.T) {
	mock := NewMockTransport()
	client := newTestClient(t, mock, WithAuth(NewBearerTokenAuth("s3cr3t")))

	_, err := client.Get(context.Background(), "/a", nil)
	require.NoError(t, err)
	assert.Equal(t, "Bearer s3cr3t", lastRequest(t, mock).Header.Get("Authorization"))
}

func TestClient_Do_APIKeyQueryRewriteOnWire(t *testing.T) {
	mock := NewMockTransport()
	auth, err := NewAPIKeyAuth(APIKeyConfig{QueryParam: "api_key", Value: "k-123"})
	require.NoError(t, err)
	client := newTestClient(t, mock, WithAuth(auth))

	q := NewQueryValues().Add("page", 1)
	_, err = client.Get(context.Background(), "/list", &RequestOptions{Query: q})
	require.NoError(t, err)

	sent := lastRequest(t, mock)
	assert.Equal(t, "k-123", sent.URL.Query().Get("api_key"))
	assert.Equal(t, "1", sent.URL.Query().Get("page"), "existing params survive the rewrite")
}

func TestClient_Do_AuthFailureNotRetried(t *testing.T) {
	mock := NewMockTransport()
	client := newTestClient(t, mock, WithAuth(NewBearerTokenFuncAuth(
		func(ctx context.Context) (string, error) {
			return "", errors.New("vault unreachable")
		})))

	_, err := client.Get(context.Background(), "/a", nil)
	require.Error(t, err)
	assert.True(t, hasKind(err, KindAuth))
	assert.Equal(t, 0, mock.CallCount(), "auth failure aborts before send")
}

func TestClient_SetAuthProvider(t *testing.T) {
	mock := NewMockTransport()
	client := newTestClient(t, mock)

	_, err := client.Get(context.Background(), "/a", nil)
	require.NoError(t, err)
	assert.Empty(t, lastRequest(t, mock).Header.Get("Authorization"))

	client.SetAuthProvider(NewBearerTokenAuth("tok"))
	_, err = client.Get(context.Background(), "/a", nil)
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok", lastRequest(t, mock).Header.Get("Authorization"))
}

func TestClient_Do_RequestHooks(t *testing.T) {
	t.Run("given a mutating hook, then the mutation reaches the wire", func(t *testing.T) {
		mock := NewMockTransport()
		client := newTestClient(t, mock, WithRequestHook(HeaderHook("X-Trace", "t-1")))

		_, err := client.Get(context.Background(), "/a", nil)
		require.NoError(t, err)
		assert.Equal(t, "t-1", lastRequest(t, mock).Header.Get("X-Trace"))
	})

	t.Run("given a failing hook, then the attempt aborts and is not retried", func(t *testing.T) {
		mock := NewMockTransport()
		client := newTestClient(t, mock, WithRequestHook(
			func(ctx context.Context, hc *RequestHookContext) error {
				return errors.New("hook rejected request")
			}))

		_, err := client.Get(context.Background(), "/a", nil)
		require.Error(t, err)
		assert.Equal(t, 0, mock.CallCount())
	})

	t.Run("given ordered hooks, then they run in registration order", func(t *testing.T) {
		mock := NewMockTransport()
		var order []string
		client := newTestClient(t, mock,
			WithRequestHook(func(ctx context.Context, hc *RequestHookContext) error {
				order = append(order, "first")
				return nil
			}),
			WithRequestHook(func(ctx context.Context, hc *RequestHookContext) error {
				order = append(order, "second")
				return nil
			}),
		)

		_, err := client.Get(context.Background(), "/a", nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"first", "second"}, order)
	})
}

func TestClient_Do_ResponseHooks(t *testing.T) {
	t.Run("given an observing hook, then it sees the decoded response", func(t *testing.T) {
		mock := NewMockTransport().StubJSON(http.StatusOK, `{"ok": true}`)
		var seen *Response
		client := newTestClient(t, mock, WithResponseHook(
			func(ctx context.Context, hc *ResponseHookContext) error {
				seen = hc.Response
				return nil
			}))

		resp, err := client.Get(context.Background(), "/a", nil)
		require.NoError(t, err)
		assert.Same(t, resp, seen)
	})

	t.Run("given a failing hook, then the call fails without retry", func(t *testing.T) {
		mock := NewMockTransport().StubJSON(http.StatusOK, `{}`)
		client := newTestClient(t, mock, WithResponseHook(
			func(ctx context.Context, hc *ResponseHookContext) error {
				return errors.New("payload rejected")
			}))

		_, err := client.Get(context.Background(), "/a", nil)
		require.Error(t, err)
		assert.Equal(t, 1, mock.CallCount())
	})
}

func TestClient_Do_BodySerialization(t *testing.T) {
	t.Run("given a struct body, then it is JSON-encoded with content type", func(t *testing.T) {
		mock := NewMockTransport()
		client := newTestClient(t, mock)

		type order struct {
			SKU   string `json:"sku"`
			Count int    `json:"count"`
		}
		_, err := client.Post(context.Background(), "/orders", order{SKU: "x", Count: 2}, nil)
		require.NoError(t, err)

		assert.JSONEq(t, `{"sku":"x","count":2}`, string(mock.Bodies()[0]))
		assert.Equal(t, "application/json", lastRequest(t, mock).Header.Get("Content-Type"))
	})

	t.Run("given a string body, then it passes through untouched", func(t *testing.T) {
		mock := NewMockTransport()
		client := newTestClient(t, mock)

		_, err := client.Post(context.Background(), "/raw", "plain text", &RequestOptions{
			Headers: map[string]string{"Content-Type": "text/plain"},
		})
		require.NoError(t, err)
		assert.Equal(t, "plain text", string(mock.Bodies()[0]))
	})

	t.Run("given a struct body with a non-JSON content type, then the call fails before send", func(t *testing.T) {
		mock := NewMockTransport()
		client := newTestClient(t, mock)

		_, err := client.Post(context.Background(), "/raw", map[string]any{"a": 1}, &RequestOptions{
			Headers: map[string]string{"Content-Type": "text/plain"},
		})
		require.Error(t, err)
		assert.True(t, hasKind(err, KindConfig))
		assert.Equal(t, 0, mock.CallCount())
	})

	t.Run("given a GET with a body, then no body is transmitted", func(t *testing.T) {
		mock := NewMockTransport()
		client := newTestClient(t, mock)

		_, err := client.Do(context.Background(), http.MethodGet, "/a", map[string]any{"x": 1}, nil)
		require.NoError(t, err)
		assert.Empty(t, mock.Bodies()[0])
	})
}

func TestClient_Do_NonJSONResponseBody(t *testing.T) {
	mock := NewMockTransport().StubResponse(http.StatusOK, "pong")
	client := newTestClient(t, mock)

	resp, err := client.Get(context.Background(), "/ping", nil)
	require.NoError(t, err)
	assert.Equal(t, "pong", resp.Data)
	assert.Equal(t, []byte("pong"), resp.Body)
}

func TestClient_Do_MalformedJSONResponse(t *testing.T) {
	mock := NewMockTransport().StubJSON(http.StatusOK, `{"broken":`)
	client := newTestClient(t, mock)

	_, err := client.Get(context.Background(), "/a", nil)
	require.Error(t, err)
	assert.True(t, IsValidation(err))
	assert.Equal(t, 1, mock.CallCount(), "decode failures are not retried")
}

func TestClient_Do_MetricsPerAttempt(t *testing.T) {
	mock := NewMockTransport().StubSequence(500, 200)
	collector := NewMemoryCollector(16)
	client := newTestClient(t, mock, WithMetrics(collector))

	_, err := client.Get(context.Background(), "/flaky", nil)
	require.NoError(t, err)

	recs := collector.Records()
	require.Len(t, recs, 2, "one record per physical attempt")
	assert.False(t, recs[0].Success)
	assert.Equal(t, 500, recs[0].Status)
	assert.Equal(t, 1, recs[0].Attempt)
	assert.True(t, recs[1].Success)
	assert.Equal(t, 200, recs[1].Status)
	assert.Equal(t, 2, recs[1].Attempt)
	assert.Equal(t, recs[0].RequestID, recs[1].RequestID)
}

func TestClient_Do_RateLimitRejectNotRetried(t *testing.T) {
	mock := NewMockTransport()
	client := newTestClient(t, mock, WithRateLimit(RateLimitConfig{
		RequestsPerSecond: 1,
		Burst:             1,
		WaitOnLimit:       false,
	}))

	_, err := client.Get(context.Background(), "/a", nil)
	require.NoError(t, err)

	_, err = client.Get(context.Background(), "/a", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, 1, mock.CallCount(), "rejected attempt never reaches the wire and is not retried")
}

func TestClient_Do_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	mock := NewMockTransport().StubResponse(http.StatusInternalServerError, "boom")
	client := newTestClient(t, mock,
		WithRetryStrategy(NoRetryStrategy()),
		WithBreaker(BreakerConfig{ConsecutiveFailures: 2}),
	)

	for i := 0; i < 2; i++ {
		_, err := client.Get(context.Background(), "/down", nil)
		require.Error(t, err)
		assert.True(t, hasKind(err, KindHTTPStatus))
	}

	_, err := client.Get(context.Background(), "/down", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 2, mock.CallCount(), "open breaker rejects locally")
}

func lastRequest(t *testing.T, mock *MockTransport) *http.Request {
	t.Helper()
	reqs := mock.Requests()
	require.NotEmpty(t, reqs)
	return reqs[len(reqs)-1]
}
