package feedreader

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultTimeout bounds every request to the service. A request that exceeds
// it surfaces as a network failure, not a server failure.
const DefaultTimeout = 15 * time.Second

// Navigation entry points, mirroring the routes of the web front end so both
// clients share the service's notion of where login and the feed live.
const (
	LoginPath = "/auth/login"
	FeedPath  = "/dashboard/articles"
)

// Navigator receives navigation side effects from the session layer. The
// request pipeline itself never navigates; it emits a session-invalidated
// event and the subscriber decides whether to move.
type Navigator interface {
	// CurrentPath reports where the user currently is.
	CurrentPath() string
	// Navigate moves the user to the given path.
	Navigate(path string)
}

// NopNavigator is a Navigator for headless use, such as the CLI.
type NopNavigator struct{}

func (NopNavigator) CurrentPath() string { return "" }
func (NopNavigator) Navigate(string)     {}

// APIError is a failure reported by the service itself, as opposed to a
// network-level failure where no response arrived at all.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// Unauthorized reports whether the failure was a credential rejection.
func (e *APIError) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized
}

// Client is the single choke point for every call to the feed service. It
// attaches the stored bearer token on the way out and classifies responses on
// the way in; call sites never touch the Authorization header themselves.
//
// A Client is safe for concurrent use once configured: OnUnauthorized and
// SetClientID must be called before the first request is issued.
type Client struct {
	baseURL    string
	httpClient *http.Client
	creds      TokenStore
	clientID   string

	// onUnauthorized fires after a 401 response has cleared the credential
	// store. It may fire once per concurrent in-flight request; subscribers
	// make the reaction idempotent (the store is already empty and the
	// navigator checks its current location).
	onUnauthorized func()
}

// NewClient creates a client for the service at baseURL, reading and clearing
// credentials through the given store. A non-positive timeout selects
// DefaultTimeout.
func NewClient(baseURL string, creds TokenStore, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		creds:      creds,
	}
}

// OnUnauthorized registers the session-invalidated subscriber.
func (c *Client) OnUnauthorized(fn func()) {
	c.onUnauthorized = fn
}

// SetClientID sets the install identifier sent with every request.
func (c *Client) SetClientID(id string) {
	c.clientID = id
}

// Get issues a GET request and decodes a 2xx body into out when out is
// non-nil.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

// Post issues a POST request with an optional JSON body.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

// Put issues a PUT request with an optional JSON body.
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPut, path, body, out)
}

// Delete issues a DELETE request.
func (c *Client) Delete(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// do executes one request against the service. A nil error means the service
// answered 2xx and out, when non-nil, holds the decoded body. A *APIError
// means the service answered with a failure status; any other error means the
// request never completed.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.clientID != "" {
		req.Header.Set("X-Client-ID", c.clientID)
	}

	// Every outbound request carries the current credential, not just the
	// ones a call site remembered to mark as authenticated.
	if token, ok := c.creds.Get(); ok {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		c.invalidate()
		return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(resp)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(resp)}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// invalidate clears the stored credential and notifies the subscriber. Both
// steps are idempotent, so concurrent 401s collapse into one visible
// sign-out.
func (c *Client) invalidate() {
	c.creds.Clear()
	if c.onUnauthorized != nil {
		c.onUnauthorized()
	}
}

// errorMessage extracts a human-readable message from an error response body.
// The service writes {"error": ...}; some deployments use {"message": ...}
// instead, so both keys are accepted.
func errorMessage(resp *http.Response) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&payload); err == nil {
		if payload.Error != "" {
			return payload.Error
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	return fmt.Sprintf("request failed with status %d", resp.StatusCode)
}
