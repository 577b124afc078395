package reputation

import (
	"context"
	"encoding/hex"
	"time"

	"github.com/google/uuid"

	"hivecoordinator/internal/canon"
	"hivecoordinator/internal/hiveerr"
	"hivecoordinator/internal/identity"
)

func canonJSON(v any) ([]byte, error) { return canon.JSON(v) }

// Credential is one signed reputation credential record.
type Credential struct {
	CredentialID   string             `json:"credential_id"`
	IssuerID       string             `json:"issuer_id"`
	SubjectID      string             `json:"subject_id"`
	Domain         Domain             `json:"domain"`
	PeriodStart    time.Time          `json:"period_start"`
	PeriodEnd      time.Time          `json:"period_end"`
	Metrics        map[string]float64 `json:"metrics"`
	Outcome        Outcome            `json:"outcome"`
	Evidence       []string           `json:"evidence,omitempty"`
	Signature      string             `json:"signature"`
	IssuedAt       time.Time          `json:"issued_at"`
	ExpiresAt      *time.Time         `json:"expires_at,omitempty"`
	RevokedAt      *time.Time         `json:"revoked_at,omitempty"`
	ReceivedFrom   string             `json:"received_from,omitempty"`
}

// signingPayload builds the canonical signing payload:
// {issuer_id, subject_id, domain, period_start,
// period_end, metrics, outcome}, sorted keys, compact separators —
// delegated to internal/canon via wire.SigningBytes-equivalent here
// since the field set is reputation-specific.
func signingPayload(c *Credential) map[string]any {
	return map[string]any{
		"issuer_id":    c.IssuerID,
		"subject_id":   c.SubjectID,
		"domain":       c.Domain,
		"period_start": c.PeriodStart.UTC().Format(time.RFC3339),
		"period_end":   c.PeriodEnd.UTC().Format(time.RFC3339),
		"metrics":      c.Metrics,
		"outcome":      c.Outcome,
	}
}

// SigningPayload exposes the canonical payload for callers (e.g. the
// wire layer) that need to compute a content hash over a reputation
// message without duplicating field ordering logic.
func SigningPayload(c *Credential) map[string]any { return signingPayload(c) }

// revokePayload builds the canonical revocation payload:
// {credential_id, action: "revoke", reason}.
func revokePayload(credentialID, reason string) map[string]any {
	return map[string]any{
		"credential_id": credentialID,
		"action":        "revoke",
		"reason":        reason,
	}
}

// IssueParams bundles the arguments to Issue; period/expires default
// when zero.
type IssueParams struct {
	Subject  string
	Domain   Domain
	Metrics  map[string]float64
	Outcome  Outcome
	Evidence []string
	Period   *Period
	Expires  *time.Time
}

// Period is an explicit (start, end) override for Issue.
type Period struct {
	Start, End time.Time
}

// Issue mints and signs a credential. issuerID is the caller's own
// peer_id/pubkey hex; signer produces the credential's signature.
func Issue(ctx context.Context, signer identity.Signer, issuerID string, p IssueParams, now time.Time) (*Credential, error) {
	if p.Subject == issuerID {
		return nil, hiveerr.Validation("reputation.issue", errSelfIssuance)
	}
	if !validDomain(p.Domain) {
		return nil, hiveerr.Validation("reputation.issue", errUnknownDomain(p.Domain))
	}
	if !p.Outcome.valid() {
		return nil, hiveerr.Validation("reputation.issue", errInvalidOutcome)
	}
	if err := validateMetrics(p.Domain, p.Metrics); err != nil {
		return nil, err
	}

	start, end := now, now.AddDate(0, 0, 7)
	if p.Period != nil {
		start, end = p.Period.Start, p.Period.End
	}
	if !end.After(start) {
		return nil, hiveerr.Validation("reputation.issue", errInvalidPeriod)
	}

	c := &Credential{
		CredentialID: uuid.NewString(),
		IssuerID:     issuerID,
		SubjectID:    p.Subject,
		Domain:       p.Domain,
		PeriodStart:  start,
		PeriodEnd:    end,
		Metrics:      p.Metrics,
		Outcome:      p.Outcome,
		Evidence:     p.Evidence,
		IssuedAt:     now,
		ExpiresAt:    p.Expires,
	}

	payload, err := canonJSON(signingPayload(c))
	if err != nil {
		return nil, hiveerr.Fatal("reputation.issue", err)
	}
	sig, err := signer.Sign(ctx, payload)
	if err != nil {
		return nil, err
	}
	if sig == "" {
		return nil, hiveerr.Signature("reputation.issue", errEmptySignature)
	}
	c.Signature = sig
	return c, nil
}

// Verify is the inverse of
// issuance. issuerPubkey is the compressed secp256k1 pubkey bytes
// corresponding to c.IssuerID.
func Verify(signer identity.Signer, c *Credential, issuerPubkey []byte, now time.Time) error {
	if c.IssuerID == c.SubjectID {
		return hiveerr.Validation("reputation.verify", errSelfIssuance)
	}
	if !validDomain(c.Domain) {
		return hiveerr.Validation("reputation.verify", errUnknownDomain(c.Domain))
	}
	if !c.Outcome.valid() {
		return hiveerr.Validation("reputation.verify", errInvalidOutcome)
	}
	if err := validateMetrics(c.Domain, c.Metrics); err != nil {
		return hiveerr.Validation("reputation.verify", errProfileMismatch)
	}
	if c.ExpiresAt != nil && c.ExpiresAt.Before(now) {
		return hiveerr.Validation("reputation.verify", errExpired)
	}
	if c.RevokedAt != nil {
		return hiveerr.Validation("reputation.verify", errRevoked)
	}
	payload, err := canonJSON(signingPayload(c))
	if err != nil {
		return hiveerr.Fatal("reputation.verify", err)
	}
	if !signer.Verify(payload, c.Signature, issuerPubkey) {
		return hiveerr.Signature("reputation.verify", errSignatureInvalid)
	}
	return nil
}

// Revoke marks a credential revoked: only the original issuer
// may revoke, via a signed {credential_id, action:"revoke", reason}
// payload.
func Revoke(ctx context.Context, signer identity.Signer, callerID string, c *Credential, reason string, now time.Time) (string, error) {
	if callerID != c.IssuerID {
		return "", hiveerr.Authorization("reputation.revoke", errNotIssuer)
	}
	payload, err := canonJSON(revokePayload(c.CredentialID, reason))
	if err != nil {
		return "", hiveerr.Fatal("reputation.revoke", err)
	}
	sig, err := signer.Sign(ctx, payload)
	if err != nil {
		return "", err
	}
	c.RevokedAt = &now
	return sig, nil
}

// VerifyRevocation checks an incoming revocation signature against
// the issuer's pubkey, the same check issuance signatures get.
func VerifyRevocation(signer identity.Signer, credentialID, reason, sig string, issuerPubkey []byte) bool {
	payload, err := canonJSON(revokePayload(credentialID, reason))
	if err != nil {
		return false
	}
	return signer.Verify(payload, sig, issuerPubkey)
}

// pubkeyHex is a convenience for identities that store issuer_id as
// hex-encoded compressed pubkeys.
func pubkeyHex(id string) ([]byte, error) {
	return hex.DecodeString(id)
}
