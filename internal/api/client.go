package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"
)

// Client provides access to a JSON REST API: CoinGecko for market data,
// newsdata.io for news.
type Client struct {
	baseURL      string
	apiKey       string
	apiKeyHeader string
	apiKeyQuery  string
	httpClient   *http.Client
	logger       *slog.Logger

	maxAttempts int
	retryDelay  time.Duration
	limiter     *rate.Limiter

	fetcher *Fetcher
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a new REST API client.
func NewClient(baseURL, apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:      baseURL,
		apiKey:       apiKey,
		apiKeyHeader: "X-CG-API-KEY",
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:      slog.Default(),
		maxAttempts: 3,
		retryDelay:  2 * time.Second,
	}

	for _, opt := range opts {
		opt(c)
	}

	c.fetcher = NewFetcher(
		WithFetcherHTTPClient(c.httpClient),
		WithAttempts(c.maxAttempts, c.retryDelay),
		WithLimiter(c.limiter),
		WithFetcherLogger(c.logger),
	)
	return c
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithRetries sets the attempt budget and fixed delay for rate-limited calls.
func WithRetries(max int, delay time.Duration) ClientOption {
	return func(c *Client) {
		c.maxAttempts = max
		c.retryDelay = delay
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

// WithAPIKeyHeader sets the header carrying the API key.
func WithAPIKeyHeader(name string) ClientOption {
	return func(c *Client) {
		if name != "" {
			c.apiKeyHeader = name
		}
	}
}

// WithAPIKeyQuery sends the API key as the named query parameter instead of
// a header.
func WithAPIKeyQuery(param string) ClientOption {
	return func(c *Client) {
		c.apiKeyQuery = param
	}
}

// WithRateLimit paces requests to rps per second. rps <= 0 disables pacing.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// call describes one REST call made through get.
type call struct {
	endpoint string // metrics label
	what     string // used in fallback error messages
	path     string
	query    url.Values
	attempts int // 0 uses the client default
}

// get performs a GET request and decodes a 2xx body into result.
func (c *Client) get(ctx context.Context, cl call, result any) error {
	query := url.Values{}
	for k, vs := range cl.query {
		query[k] = vs
	}

	header := http.Header{}
	header.Set("Accept", "application/json")
	if c.apiKey != "" {
		if c.apiKeyQuery != "" {
			query.Set(c.apiKeyQuery, c.apiKey)
		} else {
			header.Set(c.apiKeyHeader, c.apiKey)
		}
	}

	fullURL := c.baseURL + cl.path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	resp, err := c.fetcher.Fetch(ctx, Resource{
		Endpoint:    cl.endpoint,
		URL:         fullURL,
		Header:      header,
		MaxAttempts: cl.attempts,
	})
	if err != nil {
		return c.redact(err)
	}

	if !resp.OK() {
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    upstreamMessage(resp, cl.what),
			Body:       resp.Body,
		}
	}

	if err := json.Unmarshal(resp.Body, result); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return nil
}

// redact masks a query-string API key in transport errors.
func (c *Client) redact(err error) error {
	if c.apiKeyQuery == "" || c.apiKey == "" {
		return err
	}
	key := url.QueryEscape(c.apiKey)

	var tErr *TransportError
	if errors.As(err, &tErr) {
		tErr.URL = strings.ReplaceAll(tErr.URL, key, redacted)
	}
	var uErr *url.Error
	if errors.As(err, &uErr) {
		uErr.URL = strings.ReplaceAll(uErr.URL, key, redacted)
	}
	return err
}

const redacted = "xxxxx"

// upstreamMessage extracts the error message from an upstream error body,
// falling back to one built from the status line.
func upstreamMessage(resp *Response, what string) string {
	if gjson.ValidBytes(resp.Body) {
		for _, path := range []string{"error", "status.error_message", "error.message"} {
			if v := gjson.GetBytes(resp.Body, path); v.Type == gjson.String && v.Str != "" {
				return v.Str
			}
		}
	}
	return fmt.Sprintf("failed to fetch %s: %s", what, resp.Status)
}
