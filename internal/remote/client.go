// Package remote is the HTTP client for the booking API. It provides a
// generic [Resource] with list/get/create/update/delete for each entity
// collection, the identity endpoints on [Users], and classified [Error]s so
// callers can tell "unreachable" from "rejected" in diagnostics.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// HeaderRequestID carries a per-request identifier for log correlation.
const HeaderRequestID = "X-Request-ID"

// Client talks to one booking API instance. Create one with [New]; it is safe
// for concurrent use.
type Client struct {
	baseURL     *url.URL
	hc          *http.Client
	token       string
	maxAttempts int
	log         *slog.Logger
}

// Option configures a [Client].
type Option func(*Client)

// WithToken sends token as a Bearer credential on every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithTimeout bounds every single HTTP attempt.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.hc.Timeout = d }
}

// WithMaxAttempts sets how often idempotent calls are tried before giving up.
func WithMaxAttempts(n int) Option {
	return func(c *Client) { c.maxAttempts = n }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.hc = hc }
}

// New creates a Client for the API rooted at baseURL (e.g. "http://localhost:8080").
func New(baseURL string, logger *slog.Logger, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing API base URL %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("API base URL %q must be http or https", baseURL)
	}
	c := &Client{
		baseURL:     u,
		hc:          &http.Client{Timeout: 10 * time.Second},
		maxAttempts: defaultMaxAttempts,
		log:         logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the API root the client was created with.
func (c *Client) BaseURL() string { return c.baseURL.String() }

// Ping checks that the API answers. Any HTTP response below 500 counts.
func (c *Client) Ping(ctx context.Context) error {
	err := c.Do(ctx, http.MethodGet, "/api/profesionales", nil, nil, nil)
	if err != nil && !IsRejected(err) {
		return err
	}
	return nil
}

// Do sends one JSON request and decodes the response into out (if non-nil).
// Idempotent methods are retried on [KindUnreachable] failures; POST is sent
// exactly once so a lost response never creates a duplicate.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	attempts := c.maxAttempts
	if method == http.MethodPost {
		attempts = 1
	}
	return Retry(ctx, attempts, func() error {
		return c.do(ctx, method, path, query, in, out)
	})
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	op := method + " " + path

	endpoint := c.baseURL.JoinPath(path)
	if len(query) > 0 {
		endpoint.RawQuery = query.Encode()
	}

	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encoding request body: %w", op, err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), body)
	if err != nil {
		return fmt.Errorf("%s: creating request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	reqID := uuid.NewString()
	req.Header.Set(HeaderRequestID, reqID)

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		c.log.Debug("remote call failed", "op", op, "request_id", reqID, "error", err)
		return &Error{Op: op, Kind: KindUnreachable, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	c.log.Debug("remote call",
		"op", op,
		"status", resp.StatusCode,
		"request_id", reqID,
		"duration", time.Since(start),
	)

	if resp.StatusCode >= 300 {
		return &Error{
			Op:      op,
			Kind:    kindForStatus(resp.StatusCode),
			Status:  resp.StatusCode,
			Message: errorMessage(resp.Body),
		}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return &Error{Op: op, Kind: KindMalformed, Status: resp.StatusCode, Err: err}
	}
	return nil
}

// errorMessage extracts a human-readable message from an error body. The API
// answers {"mensaje": ...}; echo's default handler answers {"message": ...}.
func errorMessage(r io.Reader) string {
	var body struct {
		Mensaje string `json:"mensaje"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(io.LimitReader(r, 64<<10)).Decode(&body); err != nil {
		return ""
	}
	if body.Mensaje != "" {
		return body.Mensaje
	}
	return body.Message
}
