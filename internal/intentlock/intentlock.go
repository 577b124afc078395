// Package intentlock implements scarce-action coordination by intent
// broadcast: it replaces a missing peer-ignore primitive in the
// external fee manager with numerically-smallest-pubkey tie-breaking
// and deadline-bounded backoff over (kind, target) claims.
package intentlock

import (
	"sync"
	"time"
)

// Intent is one broadcast claim on a scarce action.
type Intent struct {
	RequestID string    `json:"request_id"`
	Kind      string    `json:"kind"`
	Target    string    `json:"target"`
	PeerID    string    `json:"peer_id"`
	Deadline  time.Time `json:"deadline"`
}

func lockKey(kind, target string) string { return kind + "|" + target }

// entry tracks the current winner for a (kind, target) pair.
type entry struct {
	winner   Intent
	deadline time.Time
}

// Table arbitrates concurrent intents for the same (kind, target).
type Table struct {
	mu      sync.Mutex
	entries map[string]entry
	self    string
}

// NewTable constructs a Table. self is this node's own pubkey, used to
// report whether the local node currently holds a given lock.
func NewTable(self string) *Table {
	return &Table{entries: make(map[string]entry), self: self}
}

// Offer registers or contests an intent for (kind, target). It returns
// true if i is (or remains) the winner after arbitration — the
// participant with the numerically smallest pubkey wins; the loser
// must back off until the winner's deadline.
func (t *Table) Offer(i Intent, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := lockKey(i.Kind, i.Target)
	cur, ok := t.entries[key]
	if !ok || now.After(cur.deadline) {
		t.entries[key] = entry{winner: i, deadline: i.Deadline}
		return true
	}
	if i.PeerID < cur.winner.PeerID {
		t.entries[key] = entry{winner: i, deadline: i.Deadline}
		return true
	}
	return cur.winner.PeerID == i.PeerID
}

// Holds reports whether the local node currently holds the lock for
// (kind, target), and if so until when it must back off losers.
func (t *Table) Holds(kind, target string, now time.Time) (bool, time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cur, ok := t.entries[lockKey(kind, target)]
	if !ok || now.After(cur.deadline) {
		return false, time.Time{}
	}
	return cur.winner.PeerID == t.self, cur.deadline
}

// BackoffUntil reports the deadline a loser must wait out for (kind,
// target), or the zero time if there is no active contested lock.
func (t *Table) BackoffUntil(kind, target string, now time.Time) time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	cur, ok := t.entries[lockKey(kind, target)]
	if !ok || now.After(cur.deadline) {
		return time.Time{}
	}
	return cur.deadline
}

// GC drops expired entries. Periodic tasks call this on a ticker.
func (t *Table) GC(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for k, e := range t.entries {
		if now.After(e.deadline) {
			delete(t.entries, k)
		}
	}
}
