// Package httpclient provides the HTTP client used to download caption
// tracks, with per-host rate limiting and retry on transient failures.
package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"ytarchive/internal/retry"
)

// Client wraps an HTTP client with retry logic and rate limit handling.
type Client struct {
	base        *http.Client
	config      *Config
	rateLimiter *RateLimiter
	breaker     *Breaker
}

// Config holds HTTP client configuration.
type Config struct {
	// Timeout for individual HTTP requests.
	Timeout time.Duration
	// Retry configures attempts on 429, 5xx and network errors.
	Retry retry.Config
	// UserAgent is sent unless the request sets its own.
	UserAgent string
	// RequestsPerSecond limits requests per host. Zero disables limiting.
	RequestsPerSecond float64
	// MaxBodyBytes caps the response body size. Zero means 32 MiB.
	MaxBodyBytes int64
	// BreakerThreshold is how many consecutive transient failures open a
	// host's circuit. Zero disables the breaker.
	BreakerThreshold int
	// BreakerCooldown is how long an open circuit fails fast.
	BreakerCooldown time.Duration
}

// DefaultConfig returns sensible defaults for caption downloads.
func DefaultConfig() *Config {
	return &Config{
		Timeout:           30 * time.Second,
		Retry:             retry.DefaultConfig(),
		UserAgent:         "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36",
		RequestsPerSecond: 2.0,
		MaxBodyBytes:      32 << 20,
		BreakerThreshold:  5,
		BreakerCooldown:   30 * time.Second,
	}
}

// New creates a client. A nil cfg uses DefaultConfig.
func New(cfg *Config) *Client {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return NewWithHTTPClient(cfg, &http.Client{Timeout: cfg.Timeout})
}

// NewWithHTTPClient creates a client around an existing *http.Client.
func NewWithHTTPClient(cfg *Config, base *http.Client) *Client {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Client{
		base:        base,
		config:      cfg,
		rateLimiter: NewRateLimiter(cfg.RequestsPerSecond),
		breaker:     NewBreaker(cfg.BreakerThreshold, cfg.BreakerCooldown),
	}
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Get performs a GET request with rate limiting and retry. Non-2xx
// responses are returned as *HTTPError or *RateLimitError. While the
// host's circuit is open Get fails with ErrCircuitOpen.
func (c *Client) Get(ctx context.Context, url string) (*Response, error) {
	var out *Response
	host := hostOf(url)

	err := retry.Do(ctx, c.config.Retry, isRetryable, func(ctx context.Context) error {
		if err := c.breaker.Allow(host); err != nil {
			return retry.Permanent(fmt.Errorf("%s: %w", host, err))
		}
		err := c.attempt(ctx, url, &out)
		if ctx.Err() == nil {
			c.breaker.Record(host, err)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Breaker returns the client's circuit breaker, nil when disabled.
func (c *Client) Breaker() *Breaker { return c.breaker }

func (c *Client) attempt(ctx context.Context, url string, out **Response) error {
	if err := c.rateLimiter.Wait(ctx, url); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return retry.Permanent(err)
	}
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	resp, err := c.base.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable {
		retryAfter := parseRetryAfter(resp.Header)
		c.rateLimiter.Backoff(url, retryAfter)
		return &RateLimitError{StatusCode: resp.StatusCode, RetryAfter: retryAfter}
	}

	limit := c.config.MaxBodyBytes
	if limit <= 0 {
		limit = 32 << 20
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &HTTPError{StatusCode: resp.StatusCode, Body: body}
	}

	*out = &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}
	return nil
}

// isRetryable retries rate limits, 5xx and transport failures.
func isRetryable(err error) bool {
	if !retry.IsRetryable(err) {
		return false
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode >= 500
	}
	return true
}

// parseRetryAfter extracts the Retry-After header value, or 0.
func parseRetryAfter(header http.Header) time.Duration {
	v := header.Get("Retry-After")
	if v == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(v); err == nil {
		return time.Duration(seconds) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		return time.Until(t)
	}
	return 0
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.base.CloseIdleConnections()
	return nil
}
