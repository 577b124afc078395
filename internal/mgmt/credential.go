package mgmt

import (
	"context"
	"time"

	"github.com/google/uuid"

	"hivecoordinator/internal/canon"
	"hivecoordinator/internal/hiveerr"
	"hivecoordinator/internal/identity"
)

const maxValidityDays = 730

// Credential is a signed management credential. It is
// frozen after issuance: every exported field is set once by Issue and
// never mutated afterward except RevokedAt.
type Credential struct {
	CredentialID   string             `json:"credential_id"`
	IssuerID       string             `json:"issuer_id"`
	AgentID        string             `json:"agent_id"`
	NodeID         string             `json:"node_id"`
	Tier           Tier    `json:"tier"`
	AllowedSchemas []string           `json:"allowed_schemas"`
	Constraints    map[string]any     `json:"constraints,omitempty"`
	ValidFrom      time.Time          `json:"valid_from"`
	ValidUntil     time.Time          `json:"valid_until"`
	Signature      string             `json:"signature"`
	RevokedAt      *time.Time         `json:"revoked_at,omitempty"`
}

func signingPayload(c *Credential) map[string]any {
	return map[string]any{
		"credential_id":   c.CredentialID,
		"issuer_id":       c.IssuerID,
		"agent_id":        c.AgentID,
		"node_id":         c.NodeID,
		"tier":            c.Tier,
		"allowed_schemas": c.AllowedSchemas,
		"constraints":     c.Constraints,
		"valid_from":      c.ValidFrom.UTC().Format(time.RFC3339),
		"valid_until":     c.ValidUntil.UTC().Format(time.RFC3339),
	}
}

// IssueParams bundles the arguments to Issue.
type IssueParams struct {
	AgentID        string
	NodeID         string
	Tier           Tier
	AllowedSchemas []string
	Constraints    map[string]any
	ValidFrom      time.Time
	ValidUntil     time.Time
}

// Issue mints a management credential, signed by issuerID's signer.
func Issue(ctx context.Context, signer identity.Signer, issuerID string, p IssueParams) (*Credential, error) {
	if !p.ValidUntil.After(p.ValidFrom) {
		return nil, hiveerr.Validation("mgmt.issue", errValidUntilBeforeFrom)
	}
	if p.ValidUntil.Sub(p.ValidFrom) > maxValidityDays*24*time.Hour {
		return nil, hiveerr.Validation("mgmt.issue", errValidityTooLong)
	}

	c := &Credential{
		CredentialID:   uuid.NewString(),
		IssuerID:       issuerID,
		AgentID:        p.AgentID,
		NodeID:         p.NodeID,
		Tier:           p.Tier,
		AllowedSchemas: p.AllowedSchemas,
		Constraints:    p.Constraints,
		ValidFrom:      p.ValidFrom,
		ValidUntil:     p.ValidUntil,
	}

	payload, err := canon.JSON(signingPayload(c))
	if err != nil {
		return nil, hiveerr.Fatal("mgmt.issue", err)
	}
	sig, err := signer.Sign(ctx, payload)
	if err != nil {
		return nil, err
	}
	if sig == "" {
		return nil, hiveerr.Signature("mgmt.issue", errEmptySignature)
	}
	c.Signature = sig
	return c, nil
}

// VerifyIncoming is the fail-closed check on incoming management
// credentials: missing signature,
// unavailable signing adapter, or a recovered pubkey mismatch all
// reject.
func VerifyIncoming(signer identity.Signer, c *Credential, claimedIssuerPubkey []byte) error {
	if c.Signature == "" {
		return hiveerr.Signature("mgmt.verify_incoming", errEmptySignature)
	}
	if signer == nil {
		return hiveerr.Unavailable("mgmt.verify_incoming", errSignatureInvalid)
	}
	payload, err := canon.JSON(signingPayload(c))
	if err != nil {
		return hiveerr.Fatal("mgmt.verify_incoming", err)
	}
	if !signer.Verify(payload, c.Signature, claimedIssuerPubkey) {
		return hiveerr.Signature("mgmt.verify_incoming", errSignatureInvalid)
	}
	return nil
}

// CheckAuthorization decides whether cred may run an action: the
// credential must be unrevoked and within its time window, its tier
// must rank at or above the action's required tier, and schema_id must
// match at least one allowed_schemas pattern.
func CheckAuthorization(c *Credential, schemaID, action string, now time.Time) error {
	if c.RevokedAt != nil {
		return hiveerr.Authorization("mgmt.check_authorization", errCredentialRevoked)
	}
	if now.Before(c.ValidFrom) || now.After(c.ValidUntil) {
		return hiveerr.Authorization("mgmt.check_authorization", errCredentialOutOfWindow)
	}

	a, ok := Lookup(schemaID, action)
	if !ok {
		return hiveerr.Validation("mgmt.check_authorization", errUnknownAction)
	}
	if RankOf(c.Tier) < RankOf(a.RequiredTier) {
		return hiveerr.Authorization("mgmt.check_authorization", errInsufficientTier)
	}

	fullID := FullActionID(schemaID, action)
	for _, pattern := range c.AllowedSchemas {
		if MatchPattern(pattern, fullID) {
			return nil
		}
	}
	return hiveerr.Authorization("mgmt.check_authorization", errSchemaNotAllowed)
}
