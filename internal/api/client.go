package api

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/rickgao/pairamid-live/internal/version"
)

// retryPolicy bounds how hard the client retries one request.
type retryPolicy struct {
	max     int           // retries after the first attempt
	base    time.Duration // first backoff, doubled per retry
	ceiling time.Duration // cap for the backoff and for Retry-After
}

// Client provides access to the Pairamid REST API.
type Client struct {
	baseURL    string
	token      string
	userAgent  string
	httpClient *http.Client
	logger     *slog.Logger
	retry      retryPolicy
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a client for the Pairamid backend at baseURL. An empty
// token sends no Authorization header.
func NewClient(baseURL, token string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		userAgent:  "pairamid-live/" + version.Version,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     slog.Default(),
		retry: retryPolicy{
			max:     3,
			base:    time.Second,
			ceiling: 30 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "api")

	return c
}

// WithTimeout sets the per-request HTTP timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithRetries sets how many times a failed request is retried and the
// first backoff.
func WithRetries(max int, backoff time.Duration) ClientOption {
	return func(c *Client) {
		c.retry.max = max
		c.retry.base = backoff
	}
}

// WithMaxBackoff caps the backoff between retries.
func WithMaxBackoff(d time.Duration) ClientOption {
	return func(c *Client) {
		c.retry.ceiling = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		c.userAgent = ua
	}
}
