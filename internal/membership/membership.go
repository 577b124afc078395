// Package membership implements the peer table, liveness tracking,
// and compact state-hash gossip fingerprint. HELLO creates a member,
// liveness updates and credential acceptance mutate it, and only
// explicit eviction destroys it.
package membership

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
	"time"

	"hivecoordinator/internal/canon"
	"hivecoordinator/internal/storage"
)

// Tier is a member's privilege tier, ordered lowest to highest.
type Tier string

const (
	TierNeophyte Tier = "neophyte"
	TierMember   Tier = "member"
	TierAdvanced Tier = "advanced"
	TierAdmin    Tier = "admin"
)

var tierRank = map[Tier]int{
	TierNeophyte: 0,
	TierMember:   1,
	TierAdvanced: 2,
	TierAdmin:    3,
}

// RankOf returns a comparable ordinal for a tier; unknown tiers rank
// below TierNeophyte.
func RankOf(t Tier) int {
	if r, ok := tierRank[t]; ok {
		return r
	}
	return -1
}

// Member is one hive member record.
type Member struct {
	PeerID    string    `json:"peer_id"`
	Tier      Tier      `json:"tier"`
	JoinedAt  time.Time `json:"joined_at"`
	LastSeen  time.Time `json:"last_seen"`
	UptimePct float64   `json:"uptime_pct"`
	Active    bool      `json:"active"`
}

// PeerSnapshot is the per-peer fee/forward best-effort cache. The
// authoritative source for settlement is the persisted
// fee-report stream (internal/settlement reads that directly); this
// snapshot only feeds gossip state-hash and liveness-adjacent UI.
type PeerSnapshot struct {
	PeerID             string    `json:"peer_id"`
	CapacitySats       uint64    `json:"capacity_sats"`
	ForwardCount       uint64    `json:"forward_count"`
	FeesEarnedSats     uint64    `json:"fees_earned_sats"`
	RebalanceCostsSats uint64    `json:"rebalance_costs_sats"`
	LastSnapshotTS     time.Time `json:"last_snapshot_ts"`
}

// Table is the membership/state store.
type Table struct {
	mu                sync.RWMutex
	store             storage.Store
	livenessThreshold time.Duration
}

// NewTable constructs a Table backed by store. livenessThreshold bounds
// how long since last-seen before a member is marked inactive (not
// evicted).
func NewTable(store storage.Store, livenessThreshold time.Duration) *Table {
	if livenessThreshold <= 0 {
		livenessThreshold = 10 * time.Minute
	}
	return &Table{store: store, livenessThreshold: livenessThreshold}
}

func memberKey(peerID string) string { return "member:" + peerID }

// HandleHello creates a member on first contact, or updates LastSeen
// (and reactivates) on a repeat HELLO from a known peer.
func (t *Table) HandleHello(peerID string, now time.Time) (*Member, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok, err := t.store.Get(storage.TableMembers, memberKey(peerID))
	if err != nil {
		return nil, err
	}
	if ok {
		m := v.(*Member)
		m.LastSeen = now
		m.Active = true
		if err := t.store.Upsert(storage.TableMembers, memberKey(peerID), m); err != nil {
			return nil, err
		}
		return m, nil
	}
	m := &Member{
		PeerID:    peerID,
		Tier:      TierNeophyte,
		JoinedAt:  now,
		LastSeen:  now,
		UptimePct: 1.0,
		Active:    true,
	}
	if err := t.store.Upsert(storage.TableMembers, memberKey(peerID), m); err != nil {
		return nil, err
	}
	return m, nil
}

// Touch updates LastSeen for any inbound signed message from peerID,
// feeding the liveness/uptime computation.
func (t *Table) Touch(peerID string, now time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok, err := t.store.Get(storage.TableMembers, memberKey(peerID))
	if err != nil || !ok {
		return err
	}
	m := v.(*Member)
	m.LastSeen = now
	m.Active = true
	return t.store.Upsert(storage.TableMembers, memberKey(peerID), m)
}

// Get returns the member record for peerID, if known.
func (t *Table) Get(peerID string) (*Member, bool, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok, err := t.store.Get(storage.TableMembers, memberKey(peerID))
	if err != nil || !ok {
		return nil, ok, err
	}
	return v.(*Member), true, nil
}

// All returns every member sorted by peer_id — required by settlement
// hashing, which must see a stable member ordering.
func (t *Table) All() ([]*Member, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	vals, err := t.store.Range(storage.TableMembers, "member:")
	if err != nil {
		return nil, err
	}
	out := make([]*Member, 0, len(vals))
	for _, v := range vals {
		out = append(out, v.(*Member))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PeerID < out[j].PeerID })
	return out, nil
}

// SweepLiveness marks members absent past livenessThreshold as inactive
// and recomputes their uptime_pct. It never evicts a member — eviction
// is an explicit administrative action only.
func (t *Table) SweepLiveness(now time.Time) error {
	members, err := t.All()
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, m := range members {
		wasActive := m.Active
		m.Active = now.Sub(m.LastSeen) <= t.livenessThreshold
		if m.Active != wasActive {
			lifespan := now.Sub(m.JoinedAt)
			if lifespan > 0 {
				downtime := now.Sub(m.LastSeen)
				if downtime > lifespan {
					downtime = lifespan
				}
				m.UptimePct = 1 - float64(downtime)/float64(lifespan)
				if m.UptimePct < 0 {
					m.UptimePct = 0
				}
			}
		}
		if err := t.store.Upsert(storage.TableMembers, memberKey(m.PeerID), m); err != nil {
			return err
		}
	}
	return nil
}

// Evict explicitly destroys a member record; no automatic path ever
// removes a member.
func (t *Table) Evict(peerID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.store.Delete(storage.TableMembers, memberKey(peerID))
}

func snapshotKey(peerID string) string { return "snapshot:" + peerID }

// PutSnapshot records a best-effort in-memory peer state snapshot.
func (t *Table) PutSnapshot(s *PeerSnapshot) error {
	return t.store.Upsert(storage.TablePeerSnapshots, snapshotKey(s.PeerID), s)
}

// Snapshots returns all peer snapshots ordered by peer_id.
func (t *Table) Snapshots() ([]*PeerSnapshot, error) {
	vals, err := t.store.Range(storage.TablePeerSnapshots, "snapshot:")
	if err != nil {
		return nil, err
	}
	out := make([]*PeerSnapshot, 0, len(vals))
	for _, v := range vals {
		out = append(out, v.(*PeerSnapshot))
	}
	return out, nil
}

// StateHash computes a compact fingerprint over the local fee/forward
// counters so peers can detect divergence without shipping full
// state. It is independent of, and must not be confused with,
// the settlement data_hash in internal/settlement — this one is a
// cheap liveness/divergence signal, not a consensus-binding hash.
func StateHash(snapshots []*PeerSnapshot) (string, error) {
	sorted := make([]*PeerSnapshot, len(snapshots))
	copy(sorted, snapshots)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].PeerID < sorted[j].PeerID })

	rows := make([]map[string]any, 0, len(sorted))
	for _, s := range sorted {
		rows = append(rows, map[string]any{
			"peer_id":              s.PeerID,
			"capacity_sats":        s.CapacitySats,
			"forward_count":        s.ForwardCount,
			"fees_earned_sats":     s.FeesEarnedSats,
			"rebalance_costs_sats": s.RebalanceCostsSats,
		})
	}
	b, err := canon.JSON(rows)
	if err != nil {
		return "", fmt.Errorf("membership: state hash: %w", err)
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}
