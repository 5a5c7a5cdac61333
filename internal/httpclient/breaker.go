package httpclient

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned without contacting a host that failed
// repeatedly and has not cooled down yet.
var ErrCircuitOpen = errors.New("httpclient: circuit open")

// CircuitState is the state of one host's circuit.
type CircuitState int

const (
	// CircuitClosed lets requests through.
	CircuitClosed CircuitState = iota
	// CircuitOpen fails requests fast.
	CircuitOpen
	// CircuitHalfOpen lets a single probe request through.
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

type circuit struct {
	state    CircuitState
	failures int
	openedAt time.Time
	probing  bool
}

// Breaker tracks consecutive transient failures per host. After threshold
// failures the host's circuit opens for cooldown; then one probe is let
// through and its outcome closes or reopens the circuit.
//
// A nil *Breaker allows everything.
type Breaker struct {
	mu        sync.Mutex
	circuits  map[string]*circuit
	threshold int
	cooldown  time.Duration
	now       func() time.Time
}

// NewBreaker returns a breaker, or nil when threshold is not positive.
func NewBreaker(threshold int, cooldown time.Duration) *Breaker {
	if threshold <= 0 {
		return nil
	}
	return &Breaker{
		circuits:  make(map[string]*circuit),
		threshold: threshold,
		cooldown:  cooldown,
		now:       time.Now,
	}
}

// Allow returns ErrCircuitOpen if requests to host should fail fast.
func (b *Breaker) Allow(host string) error {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	c := b.circuit(host)
	switch c.state {
	case CircuitOpen:
		if b.now().Sub(c.openedAt) < b.cooldown {
			return ErrCircuitOpen
		}
		c.state = CircuitHalfOpen
		c.probing = true
		return nil
	case CircuitHalfOpen:
		if c.probing {
			return ErrCircuitOpen
		}
		c.probing = true
	}
	return nil
}

// Record reports the outcome of a request to host. Only transient
// failures count against the circuit; a permanent error such as a 404
// proves the host is answering.
func (b *Breaker) Record(host string, err error) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	c := b.circuit(host)
	if err == nil || !isTransient(err) {
		c.state = CircuitClosed
		c.failures = 0
		c.probing = false
		return
	}

	c.failures++
	if c.state == CircuitHalfOpen || c.failures >= b.threshold {
		c.state = CircuitOpen
		c.openedAt = b.now()
		c.probing = false
	}
}

// State returns the circuit state for host.
func (b *Breaker) State(host string) CircuitState {
	if b == nil {
		return CircuitClosed
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	c, ok := b.circuits[host]
	if !ok {
		return CircuitClosed
	}
	if c.state == CircuitOpen && b.now().Sub(c.openedAt) >= b.cooldown {
		return CircuitHalfOpen
	}
	return c.state
}

func (b *Breaker) circuit(host string) *circuit {
	c, ok := b.circuits[host]
	if !ok {
		c = &circuit{}
		b.circuits[host] = c
	}
	return c
}

// isTransient treats rate limits, 5xx and transport failures as
// transient. Other HTTP statuses are answers, not outages.
func isTransient(err error) bool {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return true
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode >= 500
	}
	return errors.Is(err, ErrRequestFailed)
}
