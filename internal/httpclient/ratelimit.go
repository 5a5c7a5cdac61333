package httpclient

import (
	"context"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter keeps one token bucket per host and an optional backoff
// deadline set after the host rate limited us.
type RateLimiter struct {
	mu       sync.Mutex
	rps      float64
	limiters map[string]*rate.Limiter
	until    map[string]time.Time
}

// NewRateLimiter returns a limiter allowing rps requests per second per
// host. rps <= 0 disables token bucket limiting; backoff still applies.
func NewRateLimiter(rps float64) *RateLimiter {
	return &RateLimiter{
		rps:      rps,
		limiters: make(map[string]*rate.Limiter),
		until:    make(map[string]time.Time),
	}
}

// Wait blocks until a request to rawURL is allowed or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context, rawURL string) error {
	if rl == nil {
		return nil
	}
	host := hostOf(rawURL)

	rl.mu.Lock()
	until := rl.until[host]
	limiter := rl.limiter(host)
	rl.mu.Unlock()

	if d := time.Until(until); d > 0 {
		timer := time.NewTimer(d)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}

	if limiter == nil {
		return nil
	}
	return limiter.Wait(ctx)
}

// Backoff delays further requests to rawURL's host by d.
func (rl *RateLimiter) Backoff(rawURL string, d time.Duration) {
	if rl == nil || d <= 0 {
		return
	}
	host := hostOf(rawURL)
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if t := time.Now().Add(d); t.After(rl.until[host]) {
		rl.until[host] = t
	}
}

// limiter returns the bucket for host. Callers hold rl.mu.
func (rl *RateLimiter) limiter(host string) *rate.Limiter {
	if rl.rps <= 0 {
		return nil
	}
	l, ok := rl.limiters[host]
	if !ok {
		l = rate.NewLimiter(rate.Limit(rl.rps), 1)
		rl.limiters[host] = l
	}
	return l
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return u.Hostname()
}
