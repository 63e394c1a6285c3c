package apiclient

import (
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

// Response is the decoded result of a successful logical request.
// The body is fully read and cached before the Response is returned,
// so there is no stream to close.
type Response struct {
	// StatusCode is the HTTP status code of the final attempt.
	StatusCode int

	// Header holds the response headers of the final attempt.
	Header http.Header

	// Body is the raw response body.
	Body []byte

	// Data is the decoded body: for JSON responses an `any` value
	// produced by json.Unmarshal, otherwise the body as a string.
	Data any

	// Duration is the wall-clock time of the successful attempt.
	Duration time.Duration

	// RequestID is the stable ID shared by all attempts of this
	// logical request.
	RequestID string

	// Attempts is the number of physical attempts performed, including
	// the successful one.
	Attempts int
}

// IsSuccess reports whether the status code is in the 2xx range.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// DecodeJSON unmarshals the raw body into v.
func (r *Response) DecodeJSON(v any) error {
	return json.Unmarshal(r.Body, v)
}

// isJSONContentType reports whether the content type indicates a JSON
// payload ("application/json" and friends like
// "application/problem+json").
func isJSONContentType(contentType string) bool {
	ct := strings.ToLower(contentType)
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	ct = strings.TrimSpace(ct)
	return ct == "application/json" || strings.HasSuffix(ct, "+json")
}

// decodeAttemptBody turns the raw body into the Data value per the
// content type. An empty body decodes to nil.
func decodeAttemptBody(body []byte, contentType string) (any, error) {
	if len(body) == 0 {
		return nil, nil
	}
	if isJSONContentType(contentType) {
		var data any
		if err := json.Unmarshal(body, &data); err != nil {
			return nil, err
		}
		return data, nil
	}
	return string(body), nil
}
