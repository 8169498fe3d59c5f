package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/couchcryptid/risk-signal-etl/internal/observability"
	"github.com/jonboulle/clockwork"
	"github.com/sony/gobreaker"
)

const maxErrorBody = 2048

// Options configures a Client.
type Options struct {
	HTTPClient     *http.Client
	MaxAttempts    int
	BaseDelay      time.Duration
	Clock          clockwork.Clock
	CircuitBreaker bool
	Logger         *slog.Logger
	Metrics        *observability.Metrics
}

// Client is the HTTP client every source adapter fetches through. One Client
// serves one source so the breaker and metrics are per source.
type Client struct {
	source  string
	http    *http.Client
	retrier *Retrier
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewClient creates a resilient client for the named source.
func NewClient(source string, opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("source", source)

	c := &Client{
		source:  source,
		http:    hc,
		retrier: NewRetrier(opts.MaxAttempts, opts.BaseDelay, opts.Clock),
		logger:  logger,
		metrics: opts.Metrics,
	}
	c.retrier.OnRetry = func(attempt int, wait time.Duration, err error) {
		c.logger.Warn("request failed, retrying", "attempt", attempt+1, "wait", wait, "error", err)
	}
	if opts.CircuitBreaker {
		c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    source,
			Timeout: time.Minute,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("circuit breaker state change", "from", from.String(), "to", to.String())
			},
		})
	}
	return c
}

// Get fetches url and returns the body of a 2xx response.
func (c *Client) Get(ctx context.Context, url string, header http.Header) ([]byte, error) {
	return c.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		copyHeader(req.Header, header)
		return req, nil
	})
}

// Post sends body as JSON to url and returns the body of a 2xx response.
func (c *Client) Post(ctx context.Context, url string, header http.Header, body []byte) ([]byte, error) {
	return c.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		copyHeader(req.Header, header)
		return req, nil
	})
}

// Do runs the request built by build under the retry policy. build is called
// once per attempt so request bodies are replayable.
func (c *Client) Do(ctx context.Context, build func(ctx context.Context) (*http.Request, error)) ([]byte, error) {
	var body []byte
	err := c.retrier.Do(ctx, func(ctx context.Context) error {
		b, err := c.attempt(ctx, build)
		c.observe(err)
		if err != nil {
			return err
		}
		body = b
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.source, err)
	}
	return body, nil
}

type attemptResult struct {
	body []byte
	err  error
}

func (c *Client) attempt(ctx context.Context, build func(ctx context.Context) (*http.Request, error)) ([]byte, error) {
	if c.breaker == nil {
		return c.roundTrip(ctx, build)
	}
	// Client errors do not count against the breaker, so they travel in the result.
	res, err := c.breaker.Execute(func() (interface{}, error) {
		b, err := c.roundTrip(ctx, build)
		if err != nil && IsTransient(err) {
			return nil, err
		}
		return attemptResult{body: b, err: err}, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", ErrCircuitOpen, err)
	}
	if err != nil {
		return nil, err
	}
	r := res.(attemptResult)
	return r.body, r.err
}

func (c *Client) roundTrip(ctx context.Context, build func(ctx context.Context) (*http.Request, error)) ([]byte, error) {
	req, err := build(ctx)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &TransientError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransientError{Err: fmt.Errorf("read body: %w", err)}
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return body, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, &TransientError{StatusCode: resp.StatusCode, Err: errors.New(truncate(body))}
	default:
		return nil, &ClientError{StatusCode: resp.StatusCode, URL: redactURL(req.URL), Body: truncate(body)}
	}
}

func (c *Client) observe(err error) {
	if c.metrics == nil {
		return
	}
	outcome := "success"
	var ce *ClientError
	switch {
	case err == nil:
	case errors.Is(err, ErrCircuitOpen):
		outcome = "circuit_open"
	case errors.As(err, &ce):
		outcome = "client_error"
	default:
		outcome = "retryable"
	}
	c.metrics.FetchAttempts.WithLabelValues(c.source, outcome).Inc()
}

// redactURL drops the query string, which carries API keys for some sources.
func redactURL(u *url.URL) string {
	c := *u
	c.RawQuery = ""
	c.User = nil
	return c.String()
}

func copyHeader(dst, src http.Header) {
	for k, vs := range src {
		for _, v := range vs {
			dst.Add(k, v)
		}
	}
}

func truncate(b []byte) string {
	if len(b) > maxErrorBody {
		return string(b[:maxErrorBody]) + "..."
	}
	return string(b)
}
