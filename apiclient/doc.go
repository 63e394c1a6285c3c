// Package apiclient is a typed request-execution core for outbound
// HTTP calls. It resolves a target URL from a named base-URL map,
// injects credentials through a pluggable auth provider, serializes
// the request body, executes the call with bounded retry and
// exponential backoff, arms a fresh timeout per attempt, decodes the
// response, and reports every attempt through injected logging and
// metrics capabilities.
//
// # Quick start
//
//	client, err := apiclient.New(
//	    apiclient.WithBaseURL("https://api.example.com"),
//	    apiclient.WithAuth(apiclient.NewBearerTokenAuth(token)),
//	)
//	if err != nil {
//	    return err
//	}
//
//	resp, err := client.Get(ctx, "/users", &apiclient.RequestOptions{
//	    Query: apiclient.NewQueryValues().Add("limit", 10),
//	})
//
// # Typed endpoints
//
// Endpoint binds method, path and validation into a single value
// consumed by the generic Call function:
//
//	createUser := apiclient.Endpoint[CreateUserRequest, User]{
//	    Method:   http.MethodPost,
//	    Path:     "/users",
//	    Request:  apiclient.NewStructValidator(),
//	    Response: apiclient.NewStructValidator(),
//	}
//	user, _, err := apiclient.Call(ctx, client, createUser, req, nil)
//
// # Failure model
//
// Every failure is a single *Error value classified by ErrorKind:
// configuration, auth, transport, timeout, HTTP status, or validation.
// Transport failures and server-error statuses are retried up to the
// configured budget for retry-eligible methods; timeouts,
// cancellations, client errors, auth and validation failures are not.
package apiclient
