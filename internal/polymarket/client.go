package polymarket

import (
	"log/slog"
	"net/http"
	"time"
)

// Default API endpoints.
const (
	DefaultGammaURL = "https://gamma-api.polymarket.com"
	DefaultClobURL  = "https://clob.polymarket.com"
)

// Client provides access to the Gamma and CLOB REST APIs.
type Client struct {
	gammaURL   string
	clobURL    string
	httpClient *http.Client
	logger     *slog.Logger

	maxRetries   int
	retryBackoff time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a new REST client for the public Polymarket APIs.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		gammaURL: DefaultGammaURL,
		clobURL:  DefaultClobURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:       slog.Default(),
		maxRetries:   3,
		retryBackoff: time.Second,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithGammaURL overrides the Gamma API base URL.
func WithGammaURL(url string) ClientOption {
	return func(c *Client) {
		c.gammaURL = url
	}
}

// WithClobURL overrides the CLOB API base URL.
func WithClobURL(url string) ClientOption {
	return func(c *Client) {
		c.clobURL = url
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithRetries sets the retry configuration.
func WithRetries(max int, backoff time.Duration) ClientOption {
	return func(c *Client) {
		c.maxRetries = max
		c.retryBackoff = backoff
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}
