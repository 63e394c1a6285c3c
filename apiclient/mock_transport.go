package apiclient

import (
	"bytes"
	"io"
	"net/http"
	"sync"
)

// MockTransport is a configurable http.RoundTripper for tests. It
// stubs responses per matcher, can replay a fixed status sequence
// (useful for retry tests), and records every request it receives.
type MockTransport struct {
	mu       sync.Mutex
	stubs    []mockStub
	sequence []mockResult
	seqIndex int
	fallback mockResult
	requests []*http.Request
	bodies   [][]byte
}

type mockStub struct {
	matcher func(*http.Request) bool
	result  mockResult
}

type mockResult struct {
	status int
	body   string
	header http.Header
	err    error
}

// NewMockTransport creates an empty mock. Unstubbed requests get a
// 200 response with an empty body.
func NewMockTransport() *MockTransport {
	return &MockTransport{fallback: mockResult{status: http.StatusOK}}
}

// StubResponse makes every unmatched request return the given status
// and body.
func (m *MockTransport) StubResponse(status int, body string) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = mockResult{status: status, body: body}
	return m
}

// StubJSON makes every unmatched request return the given status and
// body with a JSON content type.
func (m *MockTransport) StubJSON(status int, body string) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := make(http.Header)
	h.Set("Content-Type", "application/json")
	m.fallback = mockResult{status: status, body: body, header: h}
	return m
}

// StubError makes every unmatched request fail with err.
func (m *MockTransport) StubError(err error) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = mockResult{err: err}
	return m
}

// StubSequence queues one result per listed status; the n-th request
// consumes the n-th entry, later requests fall through to the
// fallback. Negative statuses inject a transport error.
func (m *MockTransport) StubSequence(statuses ...int) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range statuses {
		if s < 0 {
			m.sequence = append(m.sequence, mockResult{err: io.ErrUnexpectedEOF})
			continue
		}
		m.sequence = append(m.sequence, mockResult{status: s})
	}
	return m
}

// StubPath stubs requests whose URL path matches exactly.
func (m *MockTransport) StubPath(path string, status int, body string) *MockTransport {
	return m.StubFunc(func(req *http.Request) bool {
		return req.URL.Path == path
	}, status, body)
}

// StubFunc stubs requests matching the predicate.
func (m *MockTransport) StubFunc(matcher func(*http.Request) bool, status int, body string) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stubs = append(m.stubs, mockStub{
		matcher: matcher,
		result:  mockResult{status: status, body: body},
	})
	return m
}

// Requests returns the recorded requests in arrival order.
func (m *MockTransport) Requests() []*http.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*http.Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// Bodies returns the recorded request bodies in arrival order.
func (m *MockTransport) Bodies() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.bodies))
	copy(out, m.bodies)
	return out
}

// CallCount returns how many requests the mock has received.
func (m *MockTransport) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// RoundTrip implements http.RoundTripper.
func (m *MockTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var body []byte
	if req.Body != nil {
		body, _ = io.ReadAll(req.Body)
		req.Body.Close()
	}

	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.bodies = append(m.bodies, body)

	result := m.fallback
	if m.seqIndex < len(m.sequence) {
		result = m.sequence[m.seqIndex]
		m.seqIndex++
	} else {
		for _, s := range m.stubs {
			if s.matcher(req) {
				result = s.result
				break
			}
		}
	}
	m.mu.Unlock()

	if result.err != nil {
		return nil, result.err
	}

	header := result.header
	if header == nil {
		header = make(http.Header)
	}
	return &http.Response{
		StatusCode: result.status,
		Status:     http.StatusText(result.status),
		Header:     header.Clone(),
		Body:       io.NopCloser(bytes.NewBufferString(result.body)),
		Request:    req,
	}, nil
}
