package apiclient

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type userParams struct {
	ID string `validate:"required"`
}

type user struct {
	ID   int    `json:"id" validate:"required"`
	Name string `json:"name" validate:"required"`
}

func TestCall_TypedDecode(t *testing.T) {
	mock := NewMockTransport().StubJSON(http.StatusOK, `{"id": 42, "name": "alpha"}`)
	client := newTestClient(t, mock)

	getUser := Endpoint[userParams, user]{
		Method:   http.MethodGet,
		PathFunc: func(p userParams) string { return "/users/" + p.ID },
	}

	got, resp, err := Call(context.Background(), client, getUser, userParams{ID: "42"}, nil)
	require.NoError(t, err)
	assert.Equal(t, user{ID: 42, Name: "alpha"}, got)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "https://api.test/users/42", lastRequest(t, mock).URL.String())
}

func TestCall_TypeMismatchReportsFieldIssue(t *testing.T) {
	mock := NewMockTransport().StubJSON(http.StatusOK, `{"id": "not-a-number", "name": "alpha"}`)
	client := newTestClient(t, mock)

	getUser := Endpoint[userParams, user]{
		Method: http.MethodGet,
		Path:   "/users/1",
	}

	_, resp, err := Call(context.Background(), client, getUser, userParams{ID: "1"}, nil)
	require.Error(t, err)
	assert.NotNil(t, resp, "the raw response is still available")
	assert.True(t, IsValidation(err))

	var e *Error
	require.ErrorAs(t, err, &e)
	require.Len(t, e.Issues, 1)
	assert.Equal(t, "id", e.Issues[0].Field)
	assert.Equal(t, "type", e.Issues[0].Rule)
}

func TestCall_RequestValidationFailsBeforeSend(t *testing.T) {
	mock := NewMockTransport()
	client := newTestClient(t, mock)

	createUser := Endpoint[user, user]{
		Method:  http.MethodPost,
		Path:    "/users",
		Request: NewStructValidator(),
	}

	_, resp, err := Call(context.Background(), client, createUser, user{}, nil)
	require.Error(t, err)
	assert.Nil(t, resp)
	assert.True(t, IsValidation(err))
	assert.Equal(t, 0, mock.CallCount(), "validation failure never reaches the network")

	var e *Error
	require.ErrorAs(t, err, &e)
	require.Len(t, e.Issues, 2)
	assert.Equal(t, "required", e.Issues[0].Rule)
}

func TestCall_ResponseValidation(t *testing.T) {
	mock := NewMockTransport().StubJSON(http.StatusOK, `{"id": 1}`)
	client := newTestClient(t, mock)

	getUser := Endpoint[userParams, user]{
		Method:   http.MethodGet,
		Path:     "/users/1",
		Response: NewStructValidator(),
	}

	_, resp, err := Call(context.Background(), client, getUser, userParams{ID: "1"}, nil)
	require.Error(t, err)
	assert.NotNil(t, resp)
	assert.True(t, IsValidation(err))

	var e *Error
	require.ErrorAs(t, err, &e)
	require.Len(t, e.Issues, 1)
	assert.Contains(t, e.Issues[0].Field, "Name")
	assert.Equal(t, "required", e.Issues[0].Rule)
	assert.Equal(t, resp.RequestID, e.RequestID)
}

func TestCall_BodyCarryingMethodSendsRequestValue(t *testing.T) {
	mock := NewMockTransport().StubJSON(http.StatusOK, `{"id": 1, "name": "alpha"}`)
	client := newTestClient(t, mock)

	createUser := Endpoint[user, user]{
		Method: http.MethodPost,
		Path:   "/users",
	}

	_, _, err := Call(context.Background(), client, createUser, user{ID: 1, Name: "alpha"}, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":1,"name":"alpha"}`, string(mock.Bodies()[0]))
}

func TestCall_GetOmitsBody(t *testing.T) {
	mock := NewMockTransport().StubJSON(http.StatusOK, `{"id": 1, "name": "a"}`)
	client := newTestClient(t, mock)

	getUser := Endpoint[userParams, user]{Method: http.MethodGet, Path: "/users/1"}

	_, _, err := Call(context.Background(), client, getUser, userParams{ID: "1"}, nil)
	require.NoError(t, err)
	assert.Empty(t, mock.Bodies()[0])
}

func TestCall_MissingMethod(t *testing.T) {
	client := newTestClient(t, NewMockTransport())

	ep := Endpoint[userParams, user]{Path: "/users/1"}
	_, _, err := Call(context.Background(), client, ep, userParams{ID: "1"}, nil)
	require.Error(t, err)
	assert.True(t, hasKind(err, KindConfig))
}

func TestCall_TransportErrorPassesThrough(t *testing.T) {
	mock := NewMockTransport().StubResponse(http.StatusNotFound, "gone")
	client := newTestClient(t, mock)

	getUser := Endpoint[userParams, user]{Method: http.MethodGet, Path: "/users/9"}

	_, _, err := Call(context.Background(), client, getUser, userParams{ID: "9"}, nil)
	require.Error(t, err)

	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, KindHTTPStatus, e.Kind)
	assert.Equal(t, http.StatusNotFound, e.StatusCode)
}

func TestStructValidator(t *testing.T) {
	v := NewStructValidator()

	t.Run("given a valid struct, then no issues", func(t *testing.T) {
		assert.Empty(t, v.Validate(user{ID: 1, Name: "a"}))
	})

	t.Run("given missing required fields, then one issue per field", func(t *testing.T) {
		issues := v.Validate(user{})
		require.Len(t, issues, 2)
		assert.Equal(t, "user.ID", issues[0].Field)
		assert.Equal(t, "required", issues[0].Rule)
		assert.NotEmpty(t, issues[0].Message)
	})

	t.Run("given a non-struct value, then a single issue, no panic", func(t *testing.T) {
		issues := v.Validate(42)
		require.Len(t, issues, 1)
	})
}

func TestValidatorFunc(t *testing.T) {
	called := false
	v := ValidatorFunc(func(any) []ValidationIssue {
		called = true
		return []ValidationIssue{{Rule: "custom"}}
	})
	issues := v.Validate("x")
	assert.True(t, called)
	require.Len(t, issues, 1)
	assert.Equal(t, "custom", issues[0].Rule)
}
