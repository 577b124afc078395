// Package storage defines the storage adapter contract and a safe
// in-memory implementation used by tests and as the default until a
// real transactional KV/row store is wired in: capped, named tables
// plus an idempotency index for reliable message ingestion.
package storage

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"hivecoordinator/internal/hiveerr"
)

// Table names the logical tables the core depends on. A table listed in
// RowCaps has a hard row cap; inserts over cap return a typed capacity
// error without falling back to eviction. Tables not listed there are
// unbounded.
type Table string

const (
	TableMembers               Table = "members"
	TablePeerSnapshots         Table = "peer_snapshots"
	TableCredentials           Table = "credentials"
	TableAggregations          Table = "aggregations"
	TableManagementCredentials Table = "management_credentials"
	TableManagementReceipts    Table = "management_receipts"
	TableSettlementProposals  Table = "settlement_proposals"
	TableSettlementVotes      Table = "settlement_votes"
	TableSettlementExecutions Table = "settlement_executions"
	TableSubPayments          Table = "sub_payments"
	TableIntentLocks          Table = "intent_locks"
	TableIdempotency          Table = "idempotency"
)

// RowCaps are the hard per-table row caps. A cap of 0 means
// unbounded (e.g. members, which are admin-evicted rather than capacity
// capped). TableCredentials' per-subject cap of 100 is enforced by the
// reputation package, which knows the subject key; this table cap is
// the aggregate 50,000 ceiling.
var RowCaps = map[Table]int{
	TableCredentials:           50000,
	TableManagementCredentials: 1000,
	TableManagementReceipts:    100000,
}

// Store is the transactional storage contract the core depends on:
// idempotent upsert keyed on a natural content key, row-cap enforcement,
// count, range queries by prefix, and an idempotency index for reliable
// message ingestion.
type Store interface {
	// Upsert inserts or updates a row keyed by key. If the key does not
	// already exist and the table's row cap (if any) is reached, it
	// returns an hiveerr Capacity error and performs no write.
	Upsert(table Table, key string, value any) error
	Get(table Table, key string) (any, bool, error)
	Delete(table Table, key string) error
	Count(table Table) (int, error)
	// Range returns all values whose key has the given prefix, ordered
	// by key ascending (needed for the deterministic peer_id ordering
	// settlement hashing requires).
	Range(table Table, prefix string) ([]any, error)

	// MarkIfNew records (kind, eventID) in the idempotency index. It
	// returns true the first time a given pair is seen and false (with
	// no error) on every subsequent call — reliable messages are
	// acknowledged with `true` even when already stored.
	MarkIfNew(kind, eventID string) (bool, error)

	// SeenEvent reports whether (kind, eventID) is already in the
	// idempotency index without recording it. Inbound dispatch uses this
	// to acknowledge duplicate reliable messages before re-running their
	// handler; the handler marks the pair only after it succeeds, so a
	// failed first delivery stays retryable.
	SeenEvent(kind, eventID string) (bool, error)
}

// MemStore is an in-memory Store implementation. Safe for concurrent
// use; every method uses a short critical section and never performs
// I/O under its lock.
type MemStore struct {
	mu     sync.Mutex
	tables map[Table]map[string]any
	idemp  map[string]struct{}
}

// New constructs an empty MemStore.
func New() *MemStore {
	return &MemStore{
		tables: make(map[Table]map[string]any),
		idemp:  make(map[string]struct{}),
	}
}

func (s *MemStore) tableLocked(t Table) map[string]any {
	m, ok := s.tables[t]
	if !ok {
		m = make(map[string]any)
		s.tables[t] = m
	}
	return m
}

func (s *MemStore) Upsert(table Table, key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.tableLocked(table)
	if _, exists := m[key]; !exists {
		if cap, ok := RowCaps[table]; ok && cap > 0 && len(m) >= cap {
			return hiveerr.Capacity("storage.upsert", errCapacityf(table, cap))
		}
	}
	m[key] = value
	return nil
}

func (s *MemStore) Get(table Table, key string) (any, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.tables[table]
	if !ok {
		return nil, false, nil
	}
	v, ok := m[key]
	return v, ok, nil
}

func (s *MemStore) Delete(table Table, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.tables[table]; ok {
		delete(m, key)
	}
	return nil
}

func (s *MemStore) Count(table Table) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tables[table]), nil
}

func (s *MemStore) Range(table Table, prefix string) ([]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.tables[table]
	if !ok {
		return nil, nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	out := make([]any, 0, len(keys))
	for _, k := range keys {
		out = append(out, m[k])
	}
	return out, nil
}

func (s *MemStore) MarkIfNew(kind, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := kind + "|" + eventID
	if _, ok := s.idemp[key]; ok {
		return false, nil
	}
	s.idemp[key] = struct{}{}
	return true, nil
}

func (s *MemStore) SeenEvent(kind, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.idemp[kind+"|"+eventID]
	return ok, nil
}

func errCapacityf(table Table, cap int) error {
	return fmt.Errorf("storage: table %s at capacity (%d)", table, cap)
}
