package services

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

var errCircuitOpen = errors.New("circuit breaker open")

type UpstreamError struct {
	Upstream string
	Status   int
	Body     string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: status %d", e.Upstream, e.Status)
}

type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

// circuitBreaker opens after threshold consecutive failures. Once the
// cooldown has passed it lets a single trial call through: success closes
// it, failure opens it for another cooldown.
type circuitBreaker struct {
	mu        sync.Mutex
	state     breakerState
	failures  int
	threshold int
	openedAt  time.Time
	cooldown  time.Duration
	now       func() time.Time
}

func newCircuitBreaker(threshold int, cooldown time.Duration) *circuitBreaker {
	if threshold <= 0 {
		threshold = 3
	}
	return &circuitBreaker{threshold: threshold, cooldown: cooldown, now: time.Now}
}

func (c *circuitBreaker) allow() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case breakerClosed:
		return true
	case breakerOpen:
		if c.now().Sub(c.openedAt) < c.cooldown {
			return false
		}
		c.state = breakerHalfOpen
		return true
	default:
		// a trial call is already in flight
		return false
	}
}

func (c *circuitBreaker) success() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = breakerClosed
	c.failures = 0
	c.openedAt = time.Time{}
}

func (c *circuitBreaker) fail() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures++
	if c.state == breakerHalfOpen || c.failures >= c.threshold {
		c.state = breakerOpen
		c.openedAt = c.now()
	}
}

// release hands back a trial slot whose call ended without a verdict, such
// as a cancelled request.
func (c *circuitBreaker) release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == breakerHalfOpen {
		c.state = breakerOpen
	}
}

func (c *circuitBreaker) open() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state != breakerClosed
}
