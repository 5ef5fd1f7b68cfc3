// Package upstream wraps the HTTP API that fronts the live document store's
// authoritative dumps, grounded on the teacher's executor.HTTPExecutor
// request/response shape and http.Request's User-Agent handling, adapted to
// the two operations the bridge needs per resource.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// NotFoundError maps a 404 response: terminal for the item.
type NotFoundError struct {
	Resource, ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("upstream: %s/%s: not found", e.Resource, e.ID)
}

// RateLimitedError maps a 429 response: retried without counting toward
// the item's retry budget.
type RateLimitedError struct {
	Resource, ID string
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("upstream: %s/%s: rate limited", e.Resource, e.ID)
}

// RequestFailedError maps any other non-2xx response.
type RequestFailedError struct {
	Resource, ID string
	StatusCode   int
}

func (e *RequestFailedError) Error() string {
	return fmt.Sprintf("upstream: %s/%s: request failed with status %d", e.Resource, e.ID, e.StatusCode)
}

// InvalidResponseError means the response body could not be decoded as the
// expected dump envelope.
type InvalidResponseError struct {
	Resource, ID string
	Cause        error
}

func (e *InvalidResponseError) Error() string {
	return fmt.Sprintf("upstream: %s/%s: invalid response: %v", e.Resource, e.ID, e.Cause)
}

func (e *InvalidResponseError) Unwrap() error { return e.Cause }

// Config configures a Client.
type Config struct {
	BaseURL   string
	Version   string
	APIKey    string
	UserAgent string
	Timeout   time.Duration
}

// Client talks to <api>/<resource>/<id>/dump. One Client is wrapped per
// ClientHandle so each carries its own cookie jar and user-agent.
type Client struct {
	baseURL   string
	version   string
	apiKey    string
	userAgent string
	http      *http.Client
}

// New builds a Client with its own cookie jar, matching the original's
// per-client requests.Session semantics.
func New(cfg Config) (*Client, error) {
	jar, err := newCookieJar()
	if err != nil {
		return nil, fmt.Errorf("upstream: create cookie jar: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		version:   cfg.Version,
		apiKey:    cfg.APIKey,
		userAgent: cfg.UserAgent,
		http: &http.Client{
			Timeout: timeout,
			Jar:     jar,
		},
	}, nil
}

// UserAgent returns this client's stable user-agent string.
func (c *Client) UserAgent() string { return c.userAgent }

// ClearCookies discards every cookie accumulated by this client, used when
// the ClientPool's adaptive backoff crosses drop_threshold_client_cookies.
func (c *Client) ClearCookies() {
	jar, err := newCookieJar()
	if err != nil {
		return
	}
	c.http.Jar = jar
}

type dumpEnvelope struct {
	Data json.RawMessage `json:"data"`
}

// GetResourceDump fetches the authoritative dump for id within resource.
func (c *Client) GetResourceDump(ctx context.Context, resource, id string) (json.RawMessage, error) {
	url := fmt.Sprintf("%s/%s/%s/dump", c.baseURL, resource, id)
	if c.version != "" {
		url += "?version=" + c.version
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("upstream: build dump request: %w", err)
	}
	c.applyHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream: dump request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("upstream: read dump response: %w", err)
	}

	if err := classifyStatus(resp.StatusCode, resource, id); err != nil {
		return nil, err
	}

	var env dumpEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &InvalidResponseError{Resource: resource, ID: id, Cause: err}
	}
	return env.Data, nil
}

// DeleteResourceDump deletes the dump for id within resource.
func (c *Client) DeleteResourceDump(ctx context.Context, resource, id string) error {
	url := fmt.Sprintf("%s/%s/%s/dump", c.baseURL, resource, id)

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return fmt.Errorf("upstream: build delete request: %w", err)
	}
	c.applyHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("upstream: delete request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return classifyStatus(resp.StatusCode, resource, id)
}

func (c *Client) applyHeaders(req *http.Request) {
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

// classifyStatus maps an HTTP status code to the typed errors the worker
// state machine branches on, per spec.md §6's "Upstream protocol": a 404
// maps to not-found, a 429 maps to rate-limited, other non-2xx map to
// request-failed.
func classifyStatus(status int, resource, id string) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusNotFound:
		return &NotFoundError{Resource: resource, ID: id}
	case status == http.StatusTooManyRequests:
		return &RateLimitedError{Resource: resource, ID: id}
	default:
		return &RequestFailedError{Resource: resource, ID: id, StatusCode: status}
	}
}
