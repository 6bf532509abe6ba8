package sportsapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultBaseURL is used when no base URL is configured.
const DefaultBaseURL = "https://api.football-data.io/v1"

const (
	defaultTimeout   = 15 * time.Second
	defaultUserAgent = "bolao-sync/1.0"
	maxBodyBytes     = 8 << 20
)

var (
	ErrMissingCredential = errors.New("sportsapi: api key is not configured")
	ErrUpstreamStatus    = errors.New("sportsapi: unexpected status")
	ErrNetwork           = errors.New("sportsapi: network error")
	ErrInvalidResponse   = errors.New("sportsapi: invalid response")
)

// StatusError is returned for any non-2xx response.
type StatusError struct {
	StatusCode int
	RetryAfter time.Duration
	Body       string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("sportsapi: upstream returned %d", e.StatusCode)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

func (e *StatusError) Unwrap() error {
	return ErrUpstreamStatus
}

// Client calls the sports data provider with a static bearer credential.
// Responses are returned unmodified.
type Client struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	userAgent  string
	logger     *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the provider base URL.
func WithBaseURL(base string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimRight(strings.TrimSpace(base), "/"); trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(agent string) Option {
	return func(c *Client) {
		if agent != "" {
			c.userAgent = agent
		}
	}
}

// NewClient builds a provider client. A nil logger disables logging.
func NewClient(apiKey string, logger *zap.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    DefaultBaseURL,
		userAgent:  defaultUserAgent,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Ready reports whether the client has a credential to call with.
func (c *Client) Ready() error {
	if c == nil || c.apiKey == "" {
		return ErrMissingCredential
	}
	return nil
}

// BaseURL returns the configured provider URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Get performs GET {base}{endpoint}?{params} and returns the JSON body.
func (c *Client) Get(ctx context.Context, endpoint string, params url.Values) (json.RawMessage, error) {
	if err := c.Ready(); err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	target := c.baseURL + "/" + strings.TrimLeft(endpoint, "/")
	if encoded := params.Encode(); encoded != "" {
		target += "?" + encoded
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("sportsapi: creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	c.logger.Debug("Requesting sports data",
		zap.String("url", target),
		zap.String("api_key", redactKey(c.apiKey)))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup on HTTP response body

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", ErrInvalidResponse, err)
	}

	c.logger.Debug("Sports data response received",
		zap.String("endpoint", endpoint),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(body)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{
			StatusCode: resp.StatusCode,
			RetryAfter: retryAfterHeader(resp, time.Now()),
			Body:       snippet(body),
		}
	}

	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: empty response body", ErrInvalidResponse)
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("%w: body is not JSON", ErrInvalidResponse)
	}
	return json.RawMessage(body), nil
}

func retryAfterHeader(resp *http.Response, now time.Time) time.Duration {
	if resp == nil {
		return 0
	}
	value := strings.TrimSpace(resp.Header.Get("Retry-After"))
	if value == "" {
		return 0
	}
	if seconds, err := time.ParseDuration(value + "s"); err == nil {
		return max(seconds, 0)
	}
	if parsed, err := http.ParseTime(value); err == nil && parsed.After(now) {
		return parsed.Sub(now)
	}
	return 0
}

func snippet(body []byte) string {
	text := strings.TrimSpace(string(body))
	if len(text) > 200 {
		text = text[:200] + "..."
	}
	return text
}

func redactKey(key string) string {
	if key == "" {
		return "(empty)"
	}
	if len(key) < 8 {
		return "***"
	}
	return key[:4] + "***" + key[len(key)-3:]
}
