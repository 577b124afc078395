// Package rpc exposes the node's callable operations:
// register BOLT12 offer, propose settlement, list settlement history,
// issue/revoke credentials, list management schemas, enqueue intent,
// report peer reputation snapshot, inject a raw peer packet, and
// status. Every state-changing command first checks the caller's
// management credential with mgmt.CheckAuthorization; status, list
// management schemas, list settlement history and inject raw packet
// run no credential check, and HandleEnvelope does not check inbound
// envelopes against a management credential. The CLI and any future transport-facing
// command surface both call through a single in-process Node.
package rpc

import (
	"context"
	"time"

	"hivecoordinator/internal/hiveerr"
	"hivecoordinator/internal/identity"
	"hivecoordinator/internal/intentlock"
	"hivecoordinator/internal/lnrpc"
	"hivecoordinator/internal/membership"
	"hivecoordinator/internal/mgmt"
	"hivecoordinator/internal/relay"
	"hivecoordinator/internal/reputation"
	"hivecoordinator/internal/settlement"
	"hivecoordinator/internal/storage"
	"hivecoordinator/internal/transport"
	"hivecoordinator/internal/wire"
)

// Result is the uniform RPC result envelope: {ok, error?, details?}.
type Result struct {
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
	Details any    `json:"details,omitempty"`
}

func ok(details any) Result { return Result{OK: true, Details: details} }
func fail(err error) Result { return Result{OK: false, Error: err.Error()} }

// Node composes every subsystem into the single object the RPC surface
// and the periodic scheduler both act on.
type Node struct {
	SelfID      string
	Signer      identity.Signer
	Store       storage.Store
	Members     *membership.Table
	Reputation  *reputation.Registry
	MgmtStore   *mgmt.Store
	Settlement  *settlement.Engine
	Intents     *intentlock.Table
	Relay       *relay.Dedup
	LN          lnrpc.Client
	RateLimiter *mgmt.RateLimiter
	// Outbound is the bounded transport queue relay forwards are
	// published onto. Nil when no transport is wired (forwarding
	// decisions are still computed and reported).
	Outbound *transport.Queue
}

// authorize runs the management-credential check before a
// state-changing RPC runs. HandleEnvelope does not run this check on
// inbound envelopes.
func (n *Node) authorize(cred *mgmt.Credential, schemaID, action string, now time.Time) error {
	if cred == nil {
		return hiveerr.Authorization("rpc.authorize", errNoCredential)
	}
	return mgmt.CheckAuthorization(cred, schemaID, action, now)
}

// RegisterOffer registers a BOLT12 offer for this node so peers can pay
// it during settlement execution.
func (n *Node) RegisterOffer(ctx context.Context, cred *mgmt.Credential, amountMsat uint64, description string, now time.Time) Result {
	if err := n.authorize(cred, "hive:payment", "send", now); err != nil {
		return fail(err)
	}
	res, err := n.LN.RegisterOffer(ctx, amountMsat, description)
	if err != nil {
		return fail(err)
	}
	return ok(res)
}

// ProposeSettlement proposes a settlement for period using the
// gathered contributions snapshot.
func (n *Node) ProposeSettlement(cred *mgmt.Credential, period string, mode settlement.Mode, reputationOf settlement.ReputationLookup, now time.Time) Result {
	if err := n.authorize(cred, "hive:payment", "send", now); err != nil {
		return fail(err)
	}
	settled, err := n.Settlement.PeriodSettled(period)
	if err != nil {
		return fail(err)
	}
	_, alreadyProposed, err := n.Settlement.ExistingProposal(period)
	if err != nil {
		return fail(err)
	}
	contributions, err := settlement.GatherContributions(n.Store, n.Members, period, reputationOf)
	if err != nil {
		return fail(err)
	}
	p, err := settlement.Propose(period, n.SelfID, contributions, mode, now, settled, alreadyProposed)
	if err != nil {
		return fail(err)
	}
	if err := n.Settlement.StoreProposal(p); err != nil {
		return fail(err)
	}
	return ok(p)
}

// ListSettlementHistory returns the proposal for a period, if any.
func (n *Node) ListSettlementHistory(period string) Result {
	p, found, err := n.Settlement.ExistingProposal(period)
	if err != nil {
		return fail(err)
	}
	if !found {
		return ok(nil)
	}
	return ok(p)
}

// IssueCredential issues a reputation credential for subject.
func (n *Node) IssueCredential(ctx context.Context, cred *mgmt.Credential, params reputation.IssueParams, now time.Time) Result {
	if err := n.authorize(cred, "hive:monitor", "get_status", now); err != nil {
		return fail(err)
	}
	c, err := reputation.Issue(ctx, n.Signer, n.SelfID, params, now)
	if err != nil {
		return fail(err)
	}
	if err := n.Reputation.Store(c); err != nil {
		return fail(err)
	}
	return ok(c)
}

// RevokeCredential revokes a previously issued reputation credential.
func (n *Node) RevokeCredential(ctx context.Context, cred *mgmt.Credential, c *reputation.Credential, reason string, now time.Time) Result {
	if err := n.authorize(cred, "hive:monitor", "get_status", now); err != nil {
		return fail(err)
	}
	sig, err := reputation.Revoke(ctx, n.Signer, n.SelfID, c, reason, now)
	if err != nil {
		return fail(err)
	}
	if err := n.Reputation.MarkRevoked(c); err != nil {
		return fail(err)
	}
	return ok(map[string]string{"signature": sig})
}

// ListManagementSchemas returns the static schema registry.
func (n *Node) ListManagementSchemas() Result {
	return ok(mgmt.Registry)
}

// EnqueueIntent broadcasts (records locally) an intent claim for a
// scarce action.
func (n *Node) EnqueueIntent(cred *mgmt.Credential, i intentlock.Intent, now time.Time) Result {
	if err := n.authorize(cred, "hive:channel-lifecycle", "open", now); err != nil {
		return fail(err)
	}
	won := n.Intents.Offer(i, now)
	return ok(map[string]bool{"won": won})
}

// ReportPeerSnapshot records a best-effort peer state snapshot.
func (n *Node) ReportPeerSnapshot(cred *mgmt.Credential, s *membership.PeerSnapshot, now time.Time) Result {
	if err := n.authorize(cred, "hive:monitor", "get_status", now); err != nil {
		return fail(err)
	}
	if err := n.Members.PutSnapshot(s); err != nil {
		return fail(err)
	}
	return ok(nil)
}

// InjectRawPacket decodes a raw peer packet, deduplicates it by
// content-addressed msg_id, touches the sender's liveness, dispatches
// it through HandleEnvelope, and computes the epidemic-relay forwarding
// decision, publishing the re-encoded envelope onto the outbound queue
// when one is wired. Only meaningful when transport is the
// external adapter: tests, the dispatch.Inbound
// per-peer worker path, and the inject-packet CLI command all funnel
// through here to simulate or replay inbound traffic.
func (n *Node) InjectRawPacket(ctx context.Context, raw []byte, now time.Time) Result {
	env, err := wire.Decode(raw)
	if err != nil {
		return fail(hiveerr.Validation("rpc.inject_raw_packet", err))
	}
	msgID, err := env.MsgID()
	if err != nil {
		return fail(hiveerr.Fatal("rpc.inject_raw_packet", err))
	}
	if n.Relay.SeenOrMark(msgID) {
		return ok(map[string]any{"duplicate": true, "msg_id": msgID})
	}
	if err := n.Members.Touch(env.Sender, now); err != nil {
		return fail(err)
	}

	res := n.HandleEnvelope(ctx, env, now)

	members, err := n.Members.All()
	if err != nil {
		return fail(err)
	}
	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = m.PeerID
	}
	decision := relay.Forward(ids, env.Sender, n.SelfID, env.Relay.Path, env.Relay.TTL)
	forwarded := 0
	if decision.Forward && n.Outbound != nil {
		fwd := *env
		fwd.Relay.TTL = decision.NewTTL
		fwd.Relay.Path = append(append([]string(nil), env.Relay.Path...), n.SelfID)
		raw, encErr := wire.EncodeBinary(&fwd)
		if encErr != nil {
			return fail(hiveerr.Fatal("rpc.inject_raw_packet", encErr))
		}
		for _, target := range decision.Targets {
			if n.Outbound.Publish(target, raw) {
				forwarded++
			}
		}
	}
	res.Details = map[string]any{
		"msg_id":    msgID,
		"result":    res.Details,
		"relay":     decision,
		"forwarded": forwarded,
	}
	return res
}

// VoteSettlement independently recomputes this node's contributions for
// period, votes only if both hashes match the existing proposal, and
// loops the resulting SETTLEMENT_READY vote back through HandleEnvelope
// — the same path a peer's vote would take.
func (n *Node) VoteSettlement(ctx context.Context, cred *mgmt.Credential, period string, mode settlement.Mode, reputationOf settlement.ReputationLookup, now time.Time) Result {
	if err := n.authorize(cred, "hive:payment", "send", now); err != nil {
		return fail(err)
	}
	p, found, err := n.Settlement.ExistingProposal(period)
	if err != nil {
		return fail(err)
	}
	if !found {
		return fail(hiveerr.Validation("rpc.vote_settlement", errProposalNotFound))
	}
	contributions, err := settlement.GatherContributions(n.Store, n.Members, period, reputationOf)
	if err != nil {
		return fail(err)
	}
	v, err := settlement.RecomputeAndVote(ctx, n.Signer, n.SelfID, p, contributions, mode, now)
	if err != nil {
		return fail(err)
	}

	payload := settlement.VoteWirePayload(v)
	payload["period"] = period
	env := &wire.Envelope{
		Type:    wire.KindSettlementReady,
		Version: wire.CurrentVersion,
		Sender:  n.SelfID,
		Payload: payload,
	}
	return n.HandleEnvelope(ctx, env, now)
}

// ExecuteSettlement runs this node's share of period's settlement plan
// (paying every receiver it is designated to pay), then loops the
// resulting SETTLEMENT_EXECUTE back through HandleEnvelope.
func (n *Node) ExecuteSettlement(ctx context.Context, cred *mgmt.Credential, period string, offers settlement.OfferLookup, pay settlement.PayFunc, now time.Time) Result {
	if err := n.authorize(cred, "hive:payment", "send", now); err != nil {
		return fail(err)
	}
	p, found, err := n.Settlement.ExistingProposal(period)
	if err != nil {
		return fail(err)
	}
	if !found {
		return fail(hiveerr.Validation("rpc.execute_settlement", errProposalNotFound))
	}
	if p.Status != settlement.StatusReady && p.Status != settlement.StatusCompleted {
		return fail(hiveerr.Validation("rpc.execute_settlement", errNotReadyForExecution))
	}

	exec, err := n.Settlement.ExecuteOurSettlement(ctx, n.Signer, n.SelfID, p, p.PlanHash, offers, pay, now)
	if err != nil {
		return fail(err)
	}

	payload := settlement.ExecutionWirePayload(exec)
	payload["period"] = period
	env := &wire.Envelope{
		Type:    wire.KindSettlementExecute,
		Version: wire.CurrentVersion,
		Sender:  n.SelfID,
		Payload: payload,
	}
	return n.HandleEnvelope(ctx, env, now)
}

// Status reports a coarse health snapshot.
func (n *Node) Status() Result {
	members, err := n.Members.All()
	if err != nil {
		return fail(err)
	}
	return ok(map[string]any{
		"self_id":      n.SelfID,
		"member_count": len(members),
	})
}
