package reputation

import (
	"sort"
	"sync"
	"time"

	"hivecoordinator/internal/storage"
)

// aggCacheTTL bounds how stale a cached aggregate may get.
const aggCacheTTL = time.Hour

// maxCredentialsPerSubject caps stored credentials per subject,
// independent of the store's aggregate TableCredentials ceiling.
const maxCredentialsPerSubject = 100

func credentialKey(subjectID string, credentialID string) string {
	return "cred:" + subjectID + ":" + credentialID
}

func credentialPrefix(subjectID string) string { return "cred:" + subjectID + ":" }

func aggregateKey(subjectID string, domain Domain) string {
	return "agg:" + subjectID + "|" + string(domain)
}

// storedAggregate is the persisted mirror of one cached aggregate. It
// carries the expiry alongside the aggregate so a restarted process
// honors the original TTL instead of trusting a stale row forever.
type storedAggregate struct {
	Agg       Aggregate `json:"aggregate"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Registry persists credentials and maintains the invalidate-on-write
// aggregate cache: one in-process map for the hot path, mirrored into
// the aggregations table so a restarted process serves cached results
// until their TTL lapses. Both mirrors are invalidated together on any
// credential write.
type Registry struct {
	mu       sync.Mutex
	store    storage.Store
	isMember MembershipChecker
	cache    map[string]cacheEntry
}

type cacheEntry struct {
	agg       Aggregate
	expiresAt time.Time
}

// NewRegistry constructs a Registry over store.
func NewRegistry(store storage.Store, isMember MembershipChecker) *Registry {
	return &Registry{store: store, isMember: isMember, cache: make(map[string]cacheEntry)}
}

// Store persists a freshly issued or received credential and
// invalidates both the domain-scoped and all-domains aggregate caches
// for its subject. It enforces the per-subject credential cap
// independently of the key-existence check Upsert performs, since a
// new credential always gets a fresh credential_id.
func (r *Registry) Store(c *Credential) error {
	subjectCreds, err := r.ForSubject(c.SubjectID)
	if err != nil {
		return err
	}
	if len(subjectCreds) >= maxCredentialsPerSubject {
		return hiveerrCapacity("reputation.store", c.SubjectID)
	}
	if err := r.store.Upsert(storage.TableCredentials, credentialKey(c.SubjectID, c.CredentialID), c); err != nil {
		return err
	}
	return r.invalidate(c.SubjectID, c.Domain)
}

// MarkRevoked updates the stored credential's revoked_at and
// invalidates its subject's caches.
func (r *Registry) MarkRevoked(c *Credential) error {
	if err := r.store.Upsert(storage.TableCredentials, credentialKey(c.SubjectID, c.CredentialID), c); err != nil {
		return err
	}
	return r.invalidate(c.SubjectID, c.Domain)
}

// ForSubject returns every stored credential for subjectID, sorted by
// credential_id.
func (r *Registry) ForSubject(subjectID string) ([]*Credential, error) {
	vals, err := r.store.Range(storage.TableCredentials, credentialPrefix(subjectID))
	if err != nil {
		return nil, err
	}
	out := make([]*Credential, 0, len(vals))
	for _, v := range vals {
		out = append(out, v.(*Credential))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CredentialID < out[j].CredentialID })
	return out, nil
}

func (r *Registry) cacheKey(subjectID string, domain Domain) string {
	return subjectID + "|" + string(domain)
}

// Sweep prunes every expired aggregate cache entry, in-process and
// persisted, freeing space held by subjects nobody has queried since
// their TTL lapsed. Intended as a periodic cooperative task rather
// than something callers need to invoke directly.
func (r *Registry) Sweep(now time.Time) error {
	r.mu.Lock()
	for key, entry := range r.cache {
		if !now.Before(entry.expiresAt) {
			delete(r.cache, key)
		}
	}
	r.mu.Unlock()

	rows, err := r.store.Range(storage.TableAggregations, "agg:")
	if err != nil {
		return err
	}
	for _, v := range rows {
		row, ok := v.(*storedAggregate)
		if !ok || now.Before(row.ExpiresAt) {
			continue
		}
		if err := r.store.Delete(storage.TableAggregations, aggregateKey(row.Agg.SubjectID, row.Agg.Domain)); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) invalidate(subjectID string, domain Domain) error {
	r.mu.Lock()
	delete(r.cache, r.cacheKey(subjectID, domain))
	delete(r.cache, r.cacheKey(subjectID, ""))
	r.mu.Unlock()

	if err := r.store.Delete(storage.TableAggregations, aggregateKey(subjectID, domain)); err != nil {
		return err
	}
	return r.store.Delete(storage.TableAggregations, aggregateKey(subjectID, ""))
}

// Aggregate returns the cached aggregate for (subject, domain) if
// fresh, falling back to the persisted mirror and finally recomputing.
// domain == "" aggregates across all domains. A recompute refreshes
// both mirrors.
func (r *Registry) Aggregate(subjectID string, domain Domain, now time.Time) (Aggregate, error) {
	key := r.cacheKey(subjectID, domain)

	r.mu.Lock()
	if entry, ok := r.cache[key]; ok && now.Before(entry.expiresAt) {
		r.mu.Unlock()
		return entry.agg, nil
	}
	r.mu.Unlock()

	if v, found, err := r.store.Get(storage.TableAggregations, aggregateKey(subjectID, domain)); err != nil {
		return Aggregate{}, err
	} else if found {
		if row, ok := v.(*storedAggregate); ok && now.Before(row.ExpiresAt) {
			r.mu.Lock()
			r.cache[key] = cacheEntry{agg: row.Agg, expiresAt: row.ExpiresAt}
			r.mu.Unlock()
			return row.Agg, nil
		}
	}

	creds, err := r.ForSubject(subjectID)
	if err != nil {
		return Aggregate{}, err
	}
	agg := Compute(subjectID, domain, creds, r.isMember, now)
	expiresAt := now.Add(aggCacheTTL)

	if err := r.store.Upsert(storage.TableAggregations, aggregateKey(subjectID, domain), &storedAggregate{Agg: agg, ExpiresAt: expiresAt}); err != nil {
		return Aggregate{}, err
	}
	r.mu.Lock()
	r.cache[key] = cacheEntry{agg: agg, expiresAt: expiresAt}
	r.mu.Unlock()

	return agg, nil
}
