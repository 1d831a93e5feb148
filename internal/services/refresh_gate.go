package services

import (
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RefreshGate admits one manual refresh per cooldown window.
type RefreshGate struct {
	mu       sync.Mutex
	lim      *rate.Limiter
	cooldown time.Duration
	now      func() time.Time
}

func NewRefreshGate(cooldown time.Duration) *RefreshGate {
	if cooldown <= 0 {
		cooldown = time.Minute
	}
	return &RefreshGate{
		lim:      rate.NewLimiter(rate.Every(cooldown), 1),
		cooldown: cooldown,
		now:      time.Now,
	}
}

// Allow consumes the window when open. Otherwise it reports how long the
// caller has to wait.
func (g *RefreshGate) Allow() (bool, time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	if g.lim.AllowN(now, 1) {
		return true, 0
	}
	return false, g.remainingAt(now)
}

func (g *RefreshGate) Remaining() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.remainingAt(g.now())
}

// RemainingSeconds rounds up so a control never shows 0 while still closed.
func (g *RefreshGate) RemainingSeconds() int {
	return int(math.Ceil(g.Remaining().Seconds()))
}

func (g *RefreshGate) Cooldown() time.Duration {
	return g.cooldown
}

func (g *RefreshGate) remainingAt(now time.Time) time.Duration {
	tokens := g.lim.TokensAt(now)
	if tokens >= 1 {
		return 0
	}
	return time.Duration((1 - tokens) * float64(g.cooldown))
}
