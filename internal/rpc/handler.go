// HandleEnvelope is the single dispatch point every peer-originated
// protocol message passes through: it is reached
// both from a raw inbound packet (InjectRawPacket, via the
// dispatch.Inbound single-writer-per-peer path wired in
// cmd/hived/bootstrap.go) and from this node's own locally-produced
// settlement votes/executions, which loop back through the same
// dispatcher rather than taking a shortcut around it.
package rpc

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"time"

	"hivecoordinator/internal/canon"
	"hivecoordinator/internal/hiveerr"
	"hivecoordinator/internal/intentlock"
	"hivecoordinator/internal/membership"
	"hivecoordinator/internal/mgmt"
	"hivecoordinator/internal/reputation"
	"hivecoordinator/internal/settlement"
	"hivecoordinator/internal/wire"
)

// decodePayload round-trips an envelope's generic payload map into a
// concrete struct via JSON, the same technique membership.PeerSnapshot,
// mgmt.Credential, reputation.Credential, and settlement.FeeReport all
// support since none of them exclude fields from json tags the way
// settlement.Vote/Execution do (those two use the dedicated
// DecodeVotePayload/DecodeExecutionPayload helpers instead).
func decodePayload(payload map[string]any, target any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, target)
}

// HandleEnvelope dispatches a decoded envelope to the typed handler for
// its kind, applying the same per-peer rate limit inbound protocol
// messages obey. Reliable kinds are tracked in the
// idempotency index: a duplicate is acknowledged OK
// without re-running its handler, and the index entry is written only
// after the handler succeeds so a failed first delivery stays
// retryable.
func (n *Node) HandleEnvelope(ctx context.Context, env *wire.Envelope, now time.Time) Result {
	if !n.RateLimiter.Allow(env.Sender) {
		return fail(hiveerr.Unavailable("rpc.handle_envelope", errRateLimited))
	}
	eventID, reliable := "", false
	if wire.ReliableKinds[env.Type] {
		id, derived := wire.EventID(env.Type, env.Payload)
		if !derived {
			return fail(hiveerr.Validation("rpc.handle_envelope", errMalformedPayload))
		}
		eventID, reliable = id, true
		seen, err := n.Store.SeenEvent("wire:"+string(env.Type), eventID)
		if err != nil {
			return fail(hiveerr.Transient("rpc.handle_envelope", err))
		}
		if seen {
			return ok(map[string]any{"acknowledged": true, "duplicate": true})
		}
	}
	res := n.dispatchKind(ctx, env, now)
	if reliable && res.OK {
		if _, err := n.Store.MarkIfNew("wire:"+string(env.Type), eventID); err != nil {
			return fail(hiveerr.Transient("rpc.handle_envelope", err))
		}
	}
	return res
}

func (n *Node) dispatchKind(ctx context.Context, env *wire.Envelope, now time.Time) Result {
	switch env.Type {
	case wire.KindHello:
		return n.handleHello(env, now)
	case wire.KindGossip, wire.KindStateHash:
		return n.handleGossip(env)
	case wire.KindPeerReputationSnapshot:
		return n.handlePeerSnapshot(env)
	case wire.KindDIDCredentialPresent:
		return n.handleDIDPresent(env, now)
	case wire.KindDIDCredentialRevoke:
		return n.handleDIDRevoke(env, now)
	case wire.KindMgmtCredentialPresent, wire.KindMgmtCredentialRevoke:
		return n.handleMgmtCredential(env)
	case wire.KindFeeReport:
		return n.handleFeeReport(env)
	case wire.KindIntent, wire.KindIntentAck:
		return n.handleIntent(env, now)
	case wire.KindRelayWrapped:
		return n.handleRelayWrapped(ctx, env, now)
	case wire.KindSettlementPropose:
		return n.handleSettlementPropose(env)
	case wire.KindSettlementReady:
		return n.handleSettlementReady(env)
	case wire.KindSettlementExecute:
		return n.handleSettlementExecute(env)
	default:
		return fail(hiveerr.Validation("rpc.handle_envelope", errUnknownKind))
	}
}

func (n *Node) handleHello(env *wire.Envelope, now time.Time) Result {
	m, err := n.Members.HandleHello(env.Sender, now)
	if err != nil {
		return fail(err)
	}
	return ok(m)
}

// handleGossip answers a state-hash/gossip probe with the local
// fingerprint so the caller can detect divergence; it
// never mutates state itself, since HandleHello/Touch already cover
// liveness bookkeeping for the sender.
func (n *Node) handleGossip(env *wire.Envelope) Result {
	snapshots, err := n.Members.Snapshots()
	if err != nil {
		return fail(err)
	}
	local, err := membership.StateHash(snapshots)
	if err != nil {
		return fail(err)
	}
	claimed, _ := env.Payload["state_hash"].(string)
	return ok(map[string]any{
		"local_state_hash":   local,
		"claimed_state_hash": claimed,
		"diverged":           claimed != "" && claimed != local,
	})
}

func (n *Node) handlePeerSnapshot(env *wire.Envelope) Result {
	var s membership.PeerSnapshot
	if err := decodePayload(env.Payload, &s); err != nil {
		return fail(hiveerr.Validation("rpc.handle_envelope", err))
	}
	if err := n.Members.PutSnapshot(&s); err != nil {
		return fail(err)
	}
	return ok(&s)
}

func (n *Node) handleDIDPresent(env *wire.Envelope, now time.Time) Result {
	var c reputation.Credential
	if err := decodePayload(env.Payload, &c); err != nil {
		return fail(hiveerr.Validation("rpc.handle_envelope", err))
	}
	issuerPubkey, err := hex.DecodeString(c.IssuerID)
	if err != nil {
		return fail(hiveerr.Validation("rpc.handle_envelope", err))
	}
	if err := reputation.Verify(n.Signer, &c, issuerPubkey, now); err != nil {
		return fail(err)
	}
	c.ReceivedFrom = env.Sender
	if err := n.Reputation.Store(&c); err != nil {
		return fail(err)
	}
	return ok(&c)
}

func (n *Node) handleDIDRevoke(env *wire.Envelope, now time.Time) Result {
	credentialID, _ := env.Payload["credential_id"].(string)
	subjectID, _ := env.Payload["subject_id"].(string)
	reason, _ := env.Payload["reason"].(string)
	sig, _ := env.Payload["signature"].(string)
	if credentialID == "" || subjectID == "" {
		return fail(hiveerr.Validation("rpc.handle_envelope", errMalformedPayload))
	}

	creds, err := n.Reputation.ForSubject(subjectID)
	if err != nil {
		return fail(err)
	}
	var target *reputation.Credential
	for _, c := range creds {
		if c.CredentialID == credentialID {
			target = c
			break
		}
	}
	if target == nil {
		return fail(hiveerr.Validation("rpc.handle_envelope", errCredentialNotFound))
	}

	issuerPubkey, err := hex.DecodeString(target.IssuerID)
	if err != nil {
		return fail(hiveerr.Validation("rpc.handle_envelope", err))
	}
	if !reputation.VerifyRevocation(n.Signer, credentialID, reason, sig, issuerPubkey) {
		return fail(hiveerr.Signature("rpc.handle_envelope", errSignatureInvalid))
	}
	target.RevokedAt = &now
	if err := n.Reputation.MarkRevoked(target); err != nil {
		return fail(err)
	}
	return ok(target)
}

// handleMgmtCredential handles both present and revoke: the credential
// signing payload excludes RevokedAt (mgmt.signingPayload), so the
// original issuance signature verifies identically whichever kind this
// is, and the store simply upserts the (possibly now-revoked) record.
func (n *Node) handleMgmtCredential(env *wire.Envelope) Result {
	var c mgmt.Credential
	if err := decodePayload(env.Payload, &c); err != nil {
		return fail(hiveerr.Validation("rpc.handle_envelope", err))
	}
	issuerPubkey, err := hex.DecodeString(c.IssuerID)
	if err != nil {
		return fail(hiveerr.Validation("rpc.handle_envelope", err))
	}
	if err := mgmt.VerifyIncoming(n.Signer, &c, issuerPubkey); err != nil {
		return fail(err)
	}
	if err := n.MgmtStore.PutCredential(&c); err != nil {
		return fail(err)
	}
	return ok(&c)
}

func (n *Node) handleFeeReport(env *wire.Envelope) Result {
	var fr settlement.FeeReport
	if err := decodePayload(env.Payload, &fr); err != nil {
		return fail(hiveerr.Validation("rpc.handle_envelope", err))
	}
	if err := settlement.PutFeeReport(n.Store, &fr); err != nil {
		return fail(err)
	}
	return ok(&fr)
}

func (n *Node) handleIntent(env *wire.Envelope, now time.Time) Result {
	var i intentlock.Intent
	if err := decodePayload(env.Payload, &i); err != nil {
		return fail(hiveerr.Validation("rpc.handle_envelope", err))
	}
	won := n.Intents.Offer(i, now)
	return ok(map[string]bool{"won": won})
}

// handleRelayWrapped unwraps a relayed envelope and dispatches the
// inner message through the same path, so a wrapped message is handled
// exactly as if it had arrived directly from its origin.
func (n *Node) handleRelayWrapped(ctx context.Context, env *wire.Envelope, now time.Time) Result {
	inner, ok := env.Payload["inner"].(map[string]any)
	if !ok {
		return fail(hiveerr.Validation("rpc.handle_envelope", errMalformedPayload))
	}
	var ie wire.Envelope
	if err := decodePayload(inner, &ie); err != nil {
		return fail(hiveerr.Validation("rpc.handle_envelope", err))
	}
	if ie.Type == wire.KindRelayWrapped {
		return fail(hiveerr.Validation("rpc.handle_envelope", errMalformedPayload))
	}
	return n.HandleEnvelope(ctx, &ie, now)
}

func (n *Node) handleSettlementPropose(env *wire.Envelope) Result {
	var p settlement.Proposal
	if err := decodePayload(env.Payload, &p); err != nil {
		return fail(hiveerr.Validation("rpc.handle_envelope", err))
	}
	_, exists, err := n.Settlement.ExistingProposal(p.Period)
	if err != nil {
		return fail(err)
	}
	if exists {
		return ok(map[string]bool{"already_known": true})
	}
	if err := n.Settlement.StoreProposal(&p); err != nil {
		return fail(err)
	}
	return ok(&p)
}

// handleSettlementReady verifies and registers an incoming
// SETTLEMENT_READY vote against the proposal its payload's period
// names, advancing the proposal to ready once quorum is reached.
func (n *Node) handleSettlementReady(env *wire.Envelope) Result {
	v, err := settlement.DecodeVotePayload(env.Payload)
	if err != nil {
		return fail(hiveerr.Validation("rpc.handle_envelope", err))
	}
	period, _ := env.Payload["period"].(string)
	if period == "" {
		return fail(hiveerr.Validation("rpc.handle_envelope", errMissingPeriod))
	}
	p, found, err := n.Settlement.ExistingProposal(period)
	if err != nil {
		return fail(err)
	}
	if !found {
		return fail(hiveerr.Validation("rpc.handle_envelope", errProposalNotFound))
	}

	issuerPubkey, err := hex.DecodeString(v.VoterPeerID)
	if err != nil {
		return fail(hiveerr.Validation("rpc.handle_envelope", err))
	}
	signed, err := canon.JSON(settlement.VoteSigningPayload(v))
	if err != nil {
		return fail(hiveerr.Fatal("rpc.handle_envelope", err))
	}
	if !n.Signer.Verify(signed, v.Signature, issuerPubkey) {
		return fail(hiveerr.Signature("rpc.handle_envelope", errSignatureInvalid))
	}

	transitioned, err := n.Settlement.RegisterVote(p, v)
	if err != nil {
		return fail(err)
	}
	return ok(map[string]any{"transitioned_to_ready": transitioned, "proposal": p})
}

// handleSettlementExecute verifies and accepts an incoming
// SETTLEMENT_EXECUTE against the proposal its payload's period names,
// completing the proposal once every payer has executed.
func (n *Node) handleSettlementExecute(env *wire.Envelope) Result {
	exec, err := settlement.DecodeExecutionPayload(env.Payload)
	if err != nil {
		return fail(hiveerr.Validation("rpc.handle_envelope", err))
	}
	period, _ := env.Payload["period"].(string)
	if period == "" {
		return fail(hiveerr.Validation("rpc.handle_envelope", errMissingPeriod))
	}
	p, found, err := n.Settlement.ExistingProposal(period)
	if err != nil {
		return fail(err)
	}
	if !found {
		return fail(hiveerr.Validation("rpc.handle_envelope", errProposalNotFound))
	}

	issuerPubkey, err := hex.DecodeString(exec.ExecutorPeerID)
	if err != nil {
		return fail(hiveerr.Validation("rpc.handle_envelope", err))
	}
	signed, err := canon.JSON(settlement.ExecutionSigningPayload(exec))
	if err != nil {
		return fail(hiveerr.Fatal("rpc.handle_envelope", err))
	}
	if !n.Signer.Verify(signed, exec.Signature, issuerPubkey) {
		return fail(hiveerr.Signature("rpc.handle_envelope", errSignatureInvalid))
	}

	completed, err := n.Settlement.AcceptExecution(p, exec)
	if err != nil {
		return fail(err)
	}
	return ok(map[string]any{"completed": completed, "proposal": p})
}
