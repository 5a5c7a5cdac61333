package httpclient

import (
	"errors"
	"fmt"
	"time"
)

// ErrRequestFailed indicates the request itself failed (network error).
var ErrRequestFailed = errors.New("http request failed")

// RateLimitError indicates the server rate limited the request.
type RateLimitError struct {
	// StatusCode is 429 or 503.
	StatusCode int
	// RetryAfter is the server's requested delay, if any.
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited (status %d): retry after %v", e.StatusCode, e.RetryAfter)
	}
	return fmt.Sprintf("rate limited (status %d)", e.StatusCode)
}

// HTTPError indicates a non-2xx response other than rate limiting.
type HTTPError struct {
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http error: status %d", e.StatusCode)
}
