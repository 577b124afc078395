package mgmt

import (
	"sync"
	"time"
)

// RateLimiter bounds credential-present/credential-revoke traffic per
// peer with a fixed-window counter behind one mutex.
type RateLimiter struct {
	mu       sync.Mutex
	limit    int
	window   time.Duration
	counters map[string]*windowCounter
	now      func() time.Time
}

type windowCounter struct {
	windowStart time.Time
	count       int
}

// NewRateLimiter constructs a limiter allowing up to limit events per
// peer within window.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		limit:    limit,
		window:   window,
		counters: make(map[string]*windowCounter),
		now:      time.Now,
	}
}

// Allow reports whether peerID may perform another event now. It
// mutates the window counter as a side effect.
func (rl *RateLimiter) Allow(peerID string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := rl.now()
	c, ok := rl.counters[peerID]
	if !ok || now.Sub(c.windowStart) >= rl.window {
		rl.counters[peerID] = &windowCounter{windowStart: now, count: 1}
		return true
	}
	if c.count >= rl.limit {
		return false
	}
	c.count++
	return true
}
