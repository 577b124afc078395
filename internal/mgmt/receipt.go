package mgmt

import (
	"context"
	"time"

	"github.com/google/uuid"

	"hivecoordinator/internal/canon"
	"hivecoordinator/internal/hiveerr"
	"hivecoordinator/internal/identity"
)

// Receipt records one executed management action: always signed,
// and rejected before storage if it references an unknown or revoked
// credential.
type Receipt struct {
	ReceiptID         string         `json:"receipt_id"`
	CredentialID      string         `json:"credential_id"`
	SchemaID          string         `json:"schema_id"`
	Action            string         `json:"action"`
	Params            map[string]any `json:"params,omitempty"`
	DangerScore       int            `json:"danger_score"`
	Result            any            `json:"result,omitempty"`
	StateHashBefore   string         `json:"state_hash_before,omitempty"`
	StateHashAfter    string         `json:"state_hash_after,omitempty"`
	ExecutedAt        time.Time      `json:"executed_at"`
	ExecutorSignature string         `json:"executor_signature"`
}

func receiptSigningPayload(r *Receipt) map[string]any {
	return map[string]any{
		"receipt_id":        r.ReceiptID,
		"credential_id":     r.CredentialID,
		"schema_id":         r.SchemaID,
		"action":            r.Action,
		"params":            r.Params,
		"danger_score":      r.DangerScore,
		"result":            r.Result,
		"state_hash_before": r.StateHashBefore,
		"state_hash_after":  r.StateHashAfter,
		"executed_at":       r.ExecutedAt.UTC().Format(time.RFC3339),
	}
}

// CredentialLookup resolves a credential_id to its current record, for
// orphan/revoked-reference checks at receipt-write time.
type CredentialLookup func(credentialID string) (*Credential, bool)

// BuildReceipt signs and returns a receipt for an already-executed
// action. It rejects before constructing a signable payload if the
// referenced credential is unknown or revoked.
func BuildReceipt(ctx context.Context, signer identity.Signer, lookup CredentialLookup, credentialID, schemaID, action string, params map[string]any, danger DangerScore, result any, stateBefore, stateAfter string, now time.Time) (*Receipt, error) {
	cred, ok := lookup(credentialID)
	if !ok {
		return nil, hiveerr.Validation("mgmt.build_receipt", errOrphanReceipt)
	}
	if cred.RevokedAt != nil {
		return nil, hiveerr.Validation("mgmt.build_receipt", errRevokedReceipt)
	}

	r := &Receipt{
		ReceiptID:       uuid.NewString(),
		CredentialID:    credentialID,
		SchemaID:        schemaID,
		Action:          action,
		Params:          params,
		DangerScore:     danger.Total(),
		Result:          result,
		StateHashBefore: stateBefore,
		StateHashAfter:  stateAfter,
		ExecutedAt:      now,
	}
	payload, err := canon.JSON(receiptSigningPayload(r))
	if err != nil {
		return nil, hiveerr.Fatal("mgmt.build_receipt", err)
	}
	sig, err := signer.Sign(ctx, payload)
	if err != nil {
		return nil, err
	}
	if sig == "" {
		return nil, hiveerr.Signature("mgmt.build_receipt", errEmptySignature)
	}
	r.ExecutorSignature = sig
	return r, nil
}

// ValidateIncomingReceipt rejects receipts referencing unknown or
// revoked credentials before they are persisted.
func ValidateIncomingReceipt(lookup CredentialLookup, r *Receipt) error {
	cred, ok := lookup(r.CredentialID)
	if !ok {
		return hiveerr.Validation("mgmt.validate_incoming_receipt", errOrphanReceipt)
	}
	if cred.RevokedAt != nil {
		return hiveerr.Validation("mgmt.validate_incoming_receipt", errRevokedReceipt)
	}
	return nil
}
