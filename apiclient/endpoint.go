package apiclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	json "github.com/goccy/go-json"
)

// Endpoint binds a method, a path and optional validation into a
// typed operation over a Client. It is a plain value; no subclassing
// or registration is involved:
//
//	getUser := apiclient.Endpoint[GetUserParams, User]{
//	    Method:   http.MethodGet,
//	    PathFunc: func(p GetUserParams) string { return "/users/" + p.ID },
//	    Response: apiclient.NewStructValidator(),
//	}
//	user, _, err := apiclient.Call(ctx, client, getUser, params, nil)
type Endpoint[Req, Resp any] struct {
	// Method is the HTTP method.
	Method string

	// Path is the request path. Ignored when PathFunc is set.
	Path string

	// PathFunc derives the path from the request value, for endpoints
	// with path parameters.
	PathFunc func(Req) string

	// Request optionally validates the request value before send.
	// A request-side failure surfaces as-is, without touching the
	// network.
	Request Validator

	// Response optionally validates the decoded response value. A
	// response-side failure is wrapped into a validation-kind error
	// with the structured issues attached.
	Response Validator
}

// Call executes the endpoint: validates the request value, performs
// the HTTP call through the client, decodes the body into Resp, and
// validates the result. The request body is the Req value itself for
// body-carrying methods and omitted for GET/HEAD.
func Call[Req, Resp any](
	ctx context.Context,
	c *Client,
	ep Endpoint[Req, Resp],
	req Req,
	opts *RequestOptions,
) (Resp, *Response, error) {
	var zero Resp

	path := ep.Path
	if ep.PathFunc != nil {
		path = ep.PathFunc(req)
	}
	if ep.Method == "" {
		return zero, nil, newConfigError("endpoint for path %q has no method", path)
	}

	if ep.Request != nil {
		if issues := ep.Request.Validate(req); len(issues) > 0 {
			return zero, nil, &Error{
				Kind:    KindValidation,
				Message: "request validation failed",
				Issues:  issues,
			}
		}
	}

	var body any
	if ep.Method != http.MethodGet && ep.Method != http.MethodHead {
		body = req
	}

	resp, err := c.Do(ctx, ep.Method, path, body, opts)
	if err != nil {
		return zero, nil, err
	}

	var out Resp
	if len(resp.Body) > 0 {
		if err := json.Unmarshal(resp.Body, &out); err != nil {
			return zero, resp, decodeValidationError(err, resp.RequestID)
		}
	}

	if ep.Response != nil {
		if issues := ep.Response.Validate(out); len(issues) > 0 {
			return zero, resp, &Error{
				Kind:      KindValidation,
				Message:   "response validation failed",
				Issues:    issues,
				RequestID: resp.RequestID,
			}
		}
	}

	return out, resp, nil
}

// decodeValidationError converts a typed-decode failure into a
// validation-kind error, preserving the offending field for type
// mismatches.
func decodeValidationError(err error, requestID string) *Error {
	out := &Error{
		Kind:      KindValidation,
		Message:   "decoding response into typed value",
		Cause:     err,
		RequestID: requestID,
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		out.Issues = []ValidationIssue{{
			Field:   typeErr.Field,
			Rule:    "type",
			Message: fmt.Sprintf("cannot decode %s into %s", typeErr.Value, typeErr.Type),
		}}
	}
	return out
}
