package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/calendai/calendai/internal/google"
	"github.com/calendai/calendai/internal/logging"
	"github.com/calendai/calendai/internal/user"
)

const (
	defaultBaseURL = "https://www.googleapis.com/calendar/v3"
	requestTimeout = 30 * time.Second
)

// RequestOptions carries the optional parts of a Calendar API request.
type RequestOptions struct {
	// Query is appended to the request URL.
	Query url.Values

	// Body is JSON-encoded as the request body when non-nil.
	Body any

	// Headers are set on the request after the defaults, so a caller
	// header overrides the Authorization or Content-Type we add.
	Headers map[string]string
}

// Response is a decoded-enough Calendar API response. The body is fully
// read and the connection released before Request returns.
type Response struct {
	StatusCode int
	Body       []byte
}

// JSON unmarshals the response body into v.
func (r *Response) JSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to decode calendar response: %w", err)
	}
	return nil
}

// Client makes authenticated requests against the Google Calendar REST
// API. It refreshes the user's access token as needed before every request
// and translates 403 responses into PermissionError so callers can route
// the user back through consent.
type Client struct {
	tokens  *google.TokenManager
	http    *http.Client
	baseURL string
	logger  *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBaseURL overrides the Calendar API base URL. Tests point it at a
// local server.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithTransport overrides the underlying HTTP client.
func WithTransport(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.http = hc
	}
}

// NewClient creates a Calendar API client on top of the token manager.
func NewClient(tokens *google.TokenManager, logger *slog.Logger, opts ...ClientOption) *Client {
	c := &Client{
		tokens:  tokens,
		http:    &http.Client{Timeout: requestTimeout},
		baseURL: defaultBaseURL,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Request performs an authenticated Calendar API call for the given user.
// Token refresh failures propagate as *google.TokenRefreshError; 403
// responses return *PermissionError. Other statuses are returned to the
// caller in the Response for per-operation handling.
func (c *Client) Request(ctx context.Context, u *user.User, method, endpoint string, opts RequestOptions) (*Response, error) {
	token, err := c.tokens.EnsureValidToken(ctx, u)
	if err != nil {
		return nil, err
	}

	reqURL := c.baseURL + "/" + strings.TrimLeft(endpoint, "/")
	if len(opts.Query) > 0 {
		reqURL += "?" + opts.Query.Encode()
	}

	var body io.Reader
	if opts.Body != nil {
		data, err := json.Marshal(opts.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build calendar request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calendar request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read calendar response: %w", err)
	}

	if resp.StatusCode == http.StatusForbidden {
		perm := &PermissionError{Message: "ACCESS_TOKEN_SCOPE_INSUFFICIENT"}
		var decoded map[string]any
		if err := json.Unmarshal(data, &decoded); err == nil {
			perm.Body = decoded
		} else {
			perm.Body = string(data)
		}
		c.logger.Debug("Calendar permission error",
			logging.Operation("calendar_request"),
			logging.UserHash(u.ID),
			slog.String("endpoint", endpoint),
			slog.Any("body", perm.Body),
		)
		return nil, perm
	}

	return &Response{StatusCode: resp.StatusCode, Body: data}, nil
}
