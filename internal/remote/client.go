package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"habit-sync/internal/logs"
)

const (
	defaultUserAgent = "habit-sync/0.1"
	requestTimeout   = 10 * time.Second
	maxErrorBody     = 4 << 10
)

// Client talks JSON to the habit-tracking REST backend.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	logger    *logs.Logger
	token     string
	userAgent string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// WithToken sets a bearer token sent on every request.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = strings.TrimSpace(token)
	}
}

// NewClient builds a Client for baseURL.
func NewClient(baseURL string, logger *logs.Logger, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(baseURL)
	if trimmed == "" {
		return nil, fmt.Errorf("remote: base URL is required")
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("remote: parse base URL %q: %w", baseURL, err)
	}
	u.RawQuery = ""
	u.Fragment = ""

	c := &Client{
		baseURL:   u,
		http:      &http.Client{Timeout: requestTimeout},
		logger:    logger.With("remote"),
		userAgent: defaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the resolved backend base URL.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// GetJSON issues a GET and decodes the response body into dest.
func (c *Client) GetJSON(ctx context.Context, path string, dest any) error {
	return c.do(ctx, http.MethodGet, path, nil, dest)
}

// PostJSON sends body as JSON and decodes the response into dest (may be nil).
func (c *Client) PostJSON(ctx context.Context, path string, body, dest any) error {
	return c.do(ctx, http.MethodPost, path, body, dest)
}

// PutJSON sends body as JSON with PUT and decodes the response into dest (may be nil).
func (c *Client) PutJSON(ctx context.Context, path string, body, dest any) error {
	return c.do(ctx, http.MethodPut, path, body, dest)
}

func (c *Client) do(ctx context.Context, method, path string, body, dest any) error {
	rel, err := url.Parse(strings.TrimPrefix(path, "/"))
	if err != nil {
		return fmt.Errorf("parse path %q: %w", path, err)
	}
	base := *c.baseURL
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	reqURL := base.ResolveReference(rel)

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("request " + method + " " + path + " got no response")
		return &NetworkError{Op: method + " " + path, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Warn("unexpected response for " + method + " " + path + ": " + resp.Status)
		return &StatusError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       string(snippet),
		}
	}
	if dest == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
