// Package relay implements content-addressed deduplication and
// TTL-bounded epidemic flood relay. The dedup cache wraps
// hashicorp/golang-lru/v2 with a wall-clock TTL, since the v2 Cache
// only bounds by entry count.
package relay

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultInitialTTL and MaxTTL bound how far a message epidemically
// floods: small by default, hard-capped regardless of
// what a sender requests.
const (
	DefaultInitialTTL = 2
	MaxTTL            = 8
	DefaultSeenTTL    = time.Hour
	DefaultSeenSize   = 100000
)

// ClampTTL enforces the hard cap on an incoming/requested TTL.
func ClampTTL(ttl int) int {
	if ttl > MaxTTL {
		return MaxTTL
	}
	if ttl < 0 {
		return 0
	}
	return ttl
}

// Dedup is a bounded, TTL-aging set of seen message IDs.
type Dedup struct {
	mu    sync.Mutex
	cache *lru.Cache[string, time.Time]
	ttl   time.Duration
	now   func() time.Time
}

// New constructs a Dedup with the given capacity and seen-TTL.
func New(size int, ttl time.Duration) *Dedup {
	if size <= 0 {
		size = DefaultSeenSize
	}
	if ttl <= 0 {
		ttl = DefaultSeenTTL
	}
	c, _ := lru.New[string, time.Time](size)
	return &Dedup{cache: c, ttl: ttl, now: time.Now}
}

// SeenOrMark returns true if msgID was already seen within the TTL
// window, in which case the caller must drop the message. Otherwise it
// records msgID and returns false so the caller hands the message to
// its handler.
func (d *Dedup) SeenOrMark(msgID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.now()
	if ts, ok := d.cache.Get(msgID); ok {
		if now.Sub(ts) < d.ttl {
			return true
		}
	}
	d.cache.Add(msgID, now)
	return false
}

// Len reports how many message IDs are currently tracked.
func (d *Dedup) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cache.Len()
}

// GC evicts entries older than the configured TTL. Periodic tasks call
// this on a ticker.
func (d *Dedup) GC() {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.now()
	for _, k := range d.cache.Keys() {
		if ts, ok := d.cache.Peek(k); ok && now.Sub(ts) >= d.ttl {
			d.cache.Remove(k)
		}
	}
}

// Decision is the outcome of evaluating whether to forward a message
// after handling it.
type Decision struct {
	Forward bool
	NewTTL  int
	Targets []string
}

// Forward computes the relay decision: decrement TTL, append the
// local pubkey to path, and compute the set of members eligible to
// receive the relay (excluding the sender, self, and anyone already in
// path). If the decremented TTL would be <= 0, forwarding is
// suppressed.
func Forward(members []string, sender, self string, path []string, ttl int) Decision {
	newTTL := ttl - 1
	if newTTL <= 0 {
		return Decision{Forward: false, NewTTL: newTTL}
	}
	exclude := make(map[string]struct{}, len(path)+2)
	exclude[sender] = struct{}{}
	exclude[self] = struct{}{}
	for _, p := range path {
		exclude[p] = struct{}{}
	}
	targets := make([]string, 0, len(members))
	for _, m := range members {
		if _, skip := exclude[m]; skip {
			continue
		}
		targets = append(targets, m)
	}
	return Decision{Forward: true, NewTTL: newTTL, Targets: targets}
}
