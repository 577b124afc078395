// Package wire implements the typed message envelope, the wire
// codec, and the per-message-kind canonical signing-payload builders:
// a typed, versioned Kind enum plus one canonicalization function per
// variant.
package wire

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"hivecoordinator/internal/canon"
)

// Kind enumerates every message kind the hive exchanges.
type Kind string

const (
	KindHello                  Kind = "hello"
	KindGossip                 Kind = "gossip"
	KindStateHash              Kind = "state-hash"
	KindIntent                 Kind = "intent"
	KindIntentAck              Kind = "intent-ack"
	KindFeeReport              Kind = "fee-report"
	KindDIDCredentialPresent   Kind = "did-credential-present"
	KindDIDCredentialRevoke    Kind = "did-credential-revoke"
	KindMgmtCredentialPresent  Kind = "mgmt-credential-present"
	KindMgmtCredentialRevoke   Kind = "mgmt-credential-revoke"
	KindSettlementPropose      Kind = "settlement-propose"
	KindSettlementReady        Kind = "settlement-ready"
	KindSettlementExecute      Kind = "settlement-execute"
	KindPeerReputationSnapshot Kind = "peer-reputation-snapshot"
	KindRelayWrapped           Kind = "relay-wrapped"
)

// ReliableKinds are the message kinds tracked in the idempotency
// index.
var ReliableKinds = map[Kind]bool{
	KindDIDCredentialPresent:  true,
	KindDIDCredentialRevoke:   true,
	KindMgmtCredentialPresent: true,
	KindMgmtCredentialRevoke:  true,
	KindSettlementPropose:     true,
	KindSettlementReady:       true,
	KindSettlementExecute:     true,
}

const CurrentVersion = 1

// RelayMeta is carried alongside an Envelope but excluded from msg_id
// computation.
type RelayMeta struct {
	TTL      int      `json:"ttl"`
	Path     []string `json:"path"`
	Origin   string   `json:"origin"`
	OriginTS int64    `json:"origin_ts"`
}

// Envelope is the typed, signed peer-to-peer message unit.
type Envelope struct {
	Type      Kind           `json:"type"`
	Version   int            `json:"version"`
	Payload   map[string]any `json:"payload"`
	Sender    string         `json:"sender"`
	Signature string         `json:"signature"`
	Relay     RelayMeta      `json:"-"`
}

// canonicalPayload returns the envelope's content-identifying fields
// with all relay metadata stripped.
func (e *Envelope) canonicalPayload() map[string]any {
	return map[string]any{
		"type":      string(e.Type),
		"version":   e.Version,
		"payload":   e.Payload,
		"sender":    e.Sender,
		"signature": e.Signature,
	}
}

// MsgID computes the content-addressed message identity: a stable hash
// over the canonical payload with relay metadata excluded, so the same
// logical message keeps its identity regardless of how many times it is
// relayed.
func (e *Envelope) MsgID() (string, error) {
	b, err := canon.JSON(e.canonicalPayload())
	if err != nil {
		return "", fmt.Errorf("wire: canonicalize envelope: %w", err)
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// SigningBytes returns the canonical bytes a sender signs for message
// kinds without a narrower, kind-specific signing payload (hello,
// gossip, state-hash, fee-report, intent, intent-ack,
// peer-reputation-snapshot). Kinds with their own bit-exact canonical
// payload (DID credentials, management credentials, settlement
// votes/executions) use the builder in their owning package instead —
// see reputation.SigningPayload, the mgmt package's credential signing
// payload, and settlement.VoteSigningPayload / ExecutionSigningPayload.
func SigningBytes(payload map[string]any) ([]byte, error) {
	return canon.JSON(payload)
}

// EventID derives the idempotency-index key for reliable message kinds
// from their content-identifying fields. It
// returns ("", false) for non-reliable kinds or payloads missing the
// expected identifying fields.
func EventID(kind Kind, payload map[string]any) (string, bool) {
	str := func(k string) (string, bool) {
		v, ok := payload[k]
		if !ok {
			return "", false
		}
		s, ok := v.(string)
		return s, ok && s != ""
	}
	switch kind {
	case KindDIDCredentialPresent, KindDIDCredentialRevoke,
		KindMgmtCredentialPresent, KindMgmtCredentialRevoke:
		if id, ok := str("credential_id"); ok {
			return id, true
		}
	case KindSettlementPropose:
		if id, ok := str("proposal_id"); ok {
			return id, true
		}
	case KindSettlementReady:
		pid, ok1 := str("proposal_id")
		voter, ok2 := str("voter_peer_id")
		if ok1 && ok2 {
			return pid + "|" + voter, true
		}
	case KindSettlementExecute:
		pid, ok1 := str("proposal_id")
		executor, ok2 := str("executor_peer_id")
		if ok1 && ok2 {
			return pid + "|" + executor, true
		}
	}
	return "", false
}
