package apiclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResponse_IsSuccess(t *testing.T) {
	tests := []struct {
		status int
		want   bool
	}{
		{200, true},
		{201, true},
		{204, true},
		{299, true},
		{199, false},
		{300, false},
		{404, false},
		{500, false},
	}
	for _, tt := range tests {
		r := &Response{StatusCode: tt.status}
		assert.Equal(t, tt.want, r.IsSuccess(), "status %d", tt.status)
	}
}

func TestResponse_DecodeJSON(t *testing.T) {
	r := &Response{Body: []byte(`{"name": "alpha", "count": 3}`)}

	var out struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}
	require.NoError(t, r.DecodeJSON(&out))
	assert.Equal(t, "alpha", out.Name)
	assert.Equal(t, 3, out.Count)
}

func TestIsJSONContentType(t *testing.T) {
	tests := []struct {
		contentType string
		want        bool
	}{
		{"application/json", true},
		{"application/json; charset=utf-8", true},
		{"APPLICATION/JSON", true},
		{"application/problem+json", true},
		{"application/vnd.api+json", true},
		{"text/plain", false},
		{"text/html; charset=utf-8", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, isJSONContentType(tt.contentType), "content type %q", tt.contentType)
	}
}

func TestDecodeAttemptBody(t *testing.T) {
	t.Run("given an empty body, then Data is nil", func(t *testing.T) {
		data, err := decodeAttemptBody(nil, "application/json")
		require.NoError(t, err)
		assert.Nil(t, data)
	})

	t.Run("given a JSON body, then Data is the decoded value", func(t *testing.T) {
		data, err := decodeAttemptBody([]byte(`{"ok": true}`), "application/json")
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"ok": true}, data)
	})

	t.Run("given a JSON array body, then Data is a slice", func(t *testing.T) {
		data, err := decodeAttemptBody([]byte(`[1, 2]`), "application/json; charset=utf-8")
		require.NoError(t, err)
		assert.Equal(t, []any{float64(1), float64(2)}, data)
	})

	t.Run("given a non-JSON body, then Data is the raw string", func(t *testing.T) {
		data, err := decodeAttemptBody([]byte("pong"), "text/plain")
		require.NoError(t, err)
		assert.Equal(t, "pong", data)
	})

	t.Run("given malformed JSON, then decoding fails", func(t *testing.T) {
		_, err := decodeAttemptBody([]byte(`{"broken":`), "application/json")
		require.Error(t, err)
	})
}
