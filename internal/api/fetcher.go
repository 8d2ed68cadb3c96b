package api

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/rickgao/theta-pulse/internal/metrics"
)

// Resource describes one GET request.
type Resource struct {
	Endpoint    string // Label for logs and metrics (e.g., "ohlc")
	URL         string
	Header      http.Header
	MaxAttempts int // Overrides the fetcher default when > 0
}

// Response is the final upstream response of a fetch.
type Response struct {
	StatusCode int
	Status     string // e.g. "429 Too Many Requests"
	Header     http.Header
	Body       []byte
	Attempts   int
}

// OK reports whether the status is in the 2xx range.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Fetcher performs GET requests, retrying rate-limited responses.
type Fetcher struct {
	httpClient  *http.Client
	maxAttempts int
	retryDelay  time.Duration
	limiter     *rate.Limiter
	logger      *slog.Logger
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithFetcherHTTPClient sets the HTTP client used for requests.
func WithFetcherHTTPClient(hc *http.Client) FetcherOption {
	return func(f *Fetcher) {
		f.httpClient = hc
	}
}

// WithAttempts sets the total attempt budget and the fixed delay between
// rate-limited attempts.
func WithAttempts(max int, delay time.Duration) FetcherOption {
	return func(f *Fetcher) {
		if max > 0 {
			f.maxAttempts = max
		}
		if delay >= 0 {
			f.retryDelay = delay
		}
	}
}

// WithLimiter paces outgoing requests client side.
func WithLimiter(l *rate.Limiter) FetcherOption {
	return func(f *Fetcher) {
		f.limiter = l
	}
}

// WithFetcherLogger sets the logger.
func WithFetcherLogger(logger *slog.Logger) FetcherOption {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

// NewFetcher creates a Fetcher with 3 attempts and a 2s retry delay.
func NewFetcher(opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		maxAttempts: 3,
		retryDelay:  2 * time.Second,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.logger == nil {
		f.logger = slog.Default()
	}
	return f
}

// Fetch issues the request, waiting and retrying while the upstream answers
// 429, up to the attempt budget. The last response is returned as is, even if
// it is still 429. A request that cannot complete returns *TransportError.
func (f *Fetcher) Fetch(ctx context.Context, res Resource) (*Response, error) {
	attempts := f.maxAttempts
	if res.MaxAttempts > 0 {
		attempts = res.MaxAttempts
	}

	for attempt := 1; ; attempt++ {
		resp, err := f.do(ctx, res)
		if err != nil {
			metrics.RecordFetchAttempt(res.Endpoint, 0)
			return nil, err
		}
		resp.Attempts = attempt
		metrics.RecordFetchAttempt(res.Endpoint, resp.StatusCode)

		if resp.StatusCode != http.StatusTooManyRequests || attempt >= attempts {
			return resp, nil
		}

		f.logger.Debug("rate limited, retrying",
			"endpoint", res.Endpoint,
			"attempt", attempt,
			"delay", f.retryDelay,
		)
		metrics.RecordRateLimitRetry(res.Endpoint)

		if err := sleep(ctx, f.retryDelay); err != nil {
			return nil, &TransportError{Op: "wait", URL: res.URL, Err: err}
		}
	}
}

func (f *Fetcher) do(ctx context.Context, res Resource) (*Response, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, &TransportError{Op: "wait", URL: res.URL, Err: err}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, res.URL, nil)
	if err != nil {
		return nil, &TransportError{Op: "create request", URL: res.URL, Err: err}
	}
	for k, vs := range res.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: "do request", URL: res.URL, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: "read response", URL: res.URL, Err: err}
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Retry calls fn until it succeeds, returns a non-retryable error, or the
// attempt budget is spent, sleeping delay between attempts. It applies the
// Fetcher policy to calls that do not go through a Fetcher.
func Retry(ctx context.Context, attempts int, delay time.Duration, retryable func(error) bool, fn func(ctx context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(ctx); err == nil || !retryable(err) {
			return err
		}
		if attempt == attempts {
			break
		}
		if serr := sleep(ctx, delay); serr != nil {
			return fmt.Errorf("%w (retry aborted: %v)", err, serr)
		}
	}
	return err
}
