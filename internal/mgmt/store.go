package mgmt

import (
	"sort"
	"time"

	"hivecoordinator/internal/storage"
)

func credentialKey(id string) string { return "mgmtcred:" + id }
func receiptKey(id string) string    { return "mgmtreceipt:" + id }

// Store persists management credentials and receipts and serves the
// CredentialLookup contract BuildReceipt/ValidateIncomingReceipt need.
type Store struct {
	store storage.Store
}

// NewStore constructs a Store over the shared storage backend.
func NewStore(store storage.Store) *Store { return &Store{store: store} }

// PutCredential persists or updates a management credential.
func (s *Store) PutCredential(c *Credential) error {
	return s.store.Upsert(storage.TableManagementCredentials, credentialKey(c.CredentialID), c)
}

// Lookup implements CredentialLookup against the persisted set.
func (s *Store) Lookup(credentialID string) (*Credential, bool) {
	v, ok, err := s.store.Get(storage.TableManagementCredentials, credentialKey(credentialID))
	if err != nil || !ok {
		return nil, false
	}
	return v.(*Credential), true
}

// PutReceipt persists a validated receipt.
func (s *Store) PutReceipt(r *Receipt) error {
	return s.store.Upsert(storage.TableManagementReceipts, receiptKey(r.ReceiptID), r)
}

// ReceiptsFor returns all persisted receipts for a given credential,
// sorted by receipt_id.
func (s *Store) ReceiptsFor(credentialID string) ([]*Receipt, error) {
	vals, err := s.store.Range(storage.TableManagementReceipts, "mgmtreceipt:")
	if err != nil {
		return nil, err
	}
	out := make([]*Receipt, 0, len(vals))
	for _, v := range vals {
		r := v.(*Receipt)
		if r.CredentialID == credentialID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReceiptID < out[j].ReceiptID })
	return out, nil
}

// PruneExpired deletes management credentials whose validity window
// has closed; the periodic credential-expiry task drives it.
// Authorization checks already reject an expired credential on use;
// this keeps the row-capped table (storage.RowCaps) from filling with
// entries nobody can ever authorize with again.
func (s *Store) PruneExpired(now time.Time) (int, error) {
	vals, err := s.store.Range(storage.TableManagementCredentials, "mgmtcred:")
	if err != nil {
		return 0, err
	}
	pruned := 0
	for _, v := range vals {
		c := v.(*Credential)
		if now.After(c.ValidUntil) {
			if err := s.store.Delete(storage.TableManagementCredentials, credentialKey(c.CredentialID)); err != nil {
				return pruned, err
			}
			pruned++
		}
	}
	return pruned, nil
}
