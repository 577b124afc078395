package settlement

import (
	"context"
	"sort"
	"time"

	"hivecoordinator/internal/canon"
	"hivecoordinator/internal/hiveerr"
	"hivecoordinator/internal/identity"
	"hivecoordinator/internal/storage"
)

func canonJSON(v any) ([]byte, error) { return canon.JSON(v) }

func proposalKey(period string) string { return "proposal:" + period }
func voteKey(proposalID, voterPeerID string) string {
	return "vote:" + proposalID + ":" + voterPeerID
}
func executionKey(proposalID, executorPeerID string) string {
	return "execution:" + proposalID + ":" + executorPeerID
}
func subPaymentKey(proposalID, from, to string) string {
	return "subpayment:" + proposalID + ":" + from + ":" + to
}

// SubPayment tracks one outgoing transfer's execution state, persisted
// before and after the transfer. On a restart a completed sub-payment is
// skipped, so it is never paid twice; one that was started but not
// marked completed is attempted again.
type SubPayment struct {
	ProposalID string    `json:"proposal_id"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	Amount     int64     `json:"amount"`
	Completed  bool      `json:"completed"`
	StartedAt  time.Time `json:"started_at"`
	DoneAt     time.Time `json:"done_at,omitempty"`
}

// OfferLookup resolves a receiver peer_id to its registered BOLT12
// offer, or false if none is registered.
type OfferLookup func(peerID string) (bolt12 string, ok bool)

// PayFunc performs the actual Lightning payment against a receiver's
// registered offer and returns an error on failure.
type PayFunc func(ctx context.Context, bolt12 string, amountSat int64) error

// Engine wires the settlement state machine to durable storage.
type Engine struct {
	store storage.Store
}

// NewEngine constructs an Engine over the shared storage backend.
func NewEngine(store storage.Store) *Engine { return &Engine{store: store} }

// PeriodSettled reports whether period already has a completed
// proposal.
func (e *Engine) PeriodSettled(period string) (bool, error) {
	v, ok, err := e.store.Get(storage.TableSettlementProposals, proposalKey(period))
	if err != nil || !ok {
		return false, err
	}
	return v.(*Proposal).Status == StatusCompleted, nil
}

// ExistingProposal returns the current proposal for period, if any.
func (e *Engine) ExistingProposal(period string) (*Proposal, bool, error) {
	v, ok, err := e.store.Get(storage.TableSettlementProposals, proposalKey(period))
	if err != nil || !ok {
		return nil, false, err
	}
	return v.(*Proposal), true, nil
}

// StoreProposal persists a newly proposed (or re-broadcast pending)
// proposal.
func (e *Engine) StoreProposal(p *Proposal) error {
	return e.store.Upsert(storage.TableSettlementProposals, proposalKey(p.Period), p)
}

// RegisterVote records an incoming vote: duplicate votes
// per voter are rejected idempotently; once matching votes reach
// quorum, the proposal transitions to ready.
func (e *Engine) RegisterVote(p *Proposal, v *Vote) (transitioned bool, err error) {
	isNew, err := e.store.MarkIfNew("settlement-vote", p.ProposalID+"|"+v.VoterPeerID)
	if err != nil {
		return false, err
	}
	if !isNew {
		return false, hiveerr.Validation("settlement.register_vote", errDuplicateVoter)
	}
	if v.DataHash != p.DataHash {
		// Mismatched votes are dropped, not reshaped, and do not count
		// toward quorum — but the idempotency mark above still stands so
		// a replay of the same bad vote doesn't re-trigger this path.
		return false, nil
	}
	if err := e.store.Upsert(storage.TableSettlementVotes, voteKey(p.ProposalID, v.VoterPeerID), v); err != nil {
		return false, err
	}

	matching, err := e.matchingVoteCount(p)
	if err != nil {
		return false, err
	}
	if p.Status == StatusPending && matching >= Quorum(p.MemberCount) {
		p.Status = StatusReady
		if err := e.StoreProposal(p); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}

func (e *Engine) matchingVoteCount(p *Proposal) (int, error) {
	vals, err := e.store.Range(storage.TableSettlementVotes, "vote:"+p.ProposalID+":")
	if err != nil {
		return 0, err
	}
	count := 0
	for _, val := range vals {
		if val.(*Vote).DataHash == p.DataHash {
			count++
		}
	}
	return count, nil
}

// payersFor returns the set of peer_ids the plan designates as payers.
func payersFor(p *Proposal) map[string]int64 {
	out := make(map[string]int64, len(p.Payments))
	for _, pay := range p.Payments {
		out[pay.From] += pay.Amount
	}
	return out
}

// AcceptExecution records an incoming execution: executions with a
// mismatched plan_hash, or whose total_sent_sats differs from what the
// plan has the executor send, are refused; otherwise the execution is
// recorded and completion is re-evaluated. Re-receiving an
// already-accepted execution leaves the proposal unchanged.
func (e *Engine) AcceptExecution(p *Proposal, exec *Execution) (completed bool, err error) {
	if exec.PlanHash != p.PlanHash {
		return false, hiveerr.Validation("settlement.accept_execution", errPlanHashMismatch)
	}
	expected := payersFor(p)[exec.ExecutorPeerID]
	if exec.TotalSentSats != expected {
		return false, hiveerr.Validation("settlement.accept_execution", errf("settlement: execution total_sent_sats does not match the plan"))
	}

	isNew, err := e.store.MarkIfNew("settlement-execution", p.ProposalID+"|"+exec.ExecutorPeerID)
	if err != nil {
		return false, err
	}
	if isNew {
		if err := e.store.Upsert(storage.TableSettlementExecutions, executionKey(p.ProposalID, exec.ExecutorPeerID), exec); err != nil {
			return false, err
		}
	}

	if p.Status == StatusCompleted {
		return true, nil
	}
	allDone, err := e.allPayersExecuted(p)
	if err != nil {
		return false, err
	}
	if allDone && p.Status == StatusReady {
		p.Status = StatusCompleted
		if err := e.StoreProposal(p); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}

func (e *Engine) allPayersExecuted(p *Proposal) (bool, error) {
	payers := payersFor(p)
	if len(payers) == 0 {
		return true, nil
	}
	vals, err := e.store.Range(storage.TableSettlementExecutions, "execution:"+p.ProposalID+":")
	if err != nil {
		return false, err
	}
	seen := make(map[string]int64, len(vals))
	for _, v := range vals {
		ex := v.(*Execution)
		seen[ex.ExecutorPeerID] = ex.TotalSentSats
	}
	for peer, amount := range payers {
		if got, ok := seen[peer]; !ok || got != amount {
			return false, nil
		}
	}
	return true, nil
}

// ExecuteOurSettlement runs this node's outgoing transfers with
// crash-safe idempotent retry: for each outgoing transfer this node's
// plan designates, skip already-completed sub-payments, abort entirely
// if any receiver lacks a registered offer, and sign+return a
// SETTLEMENT_EXECUTE only once every sub-payment for this node
// completes. Executors whose locally-computed plan_hash doesn't match
// the proposal's refuse to execute.
func (e *Engine) ExecuteOurSettlement(ctx context.Context, signer identity.Signer, selfPeerID string, p *Proposal, localPlanHash string, offers OfferLookup, pay PayFunc, now time.Time) (*Execution, error) {
	if localPlanHash != p.PlanHash {
		return nil, hiveerr.Validation("settlement.execute", errPlanHashMismatch)
	}

	var ours []Payment
	for _, pm := range p.Payments {
		if pm.From == selfPeerID {
			ours = append(ours, pm)
		}
	}
	sort.Slice(ours, func(i, j int) bool { return ours[i].To < ours[j].To })

	var totalSent int64
	for _, pm := range ours {
		key := subPaymentKey(p.ProposalID, pm.From, pm.To)
		v, ok, err := e.store.Get(storage.TableSubPayments, key)
		if err != nil {
			return nil, err
		}
		if ok && v.(*SubPayment).Completed {
			totalSent += v.(*SubPayment).Amount
			continue
		}

		bolt12, ok := offers(pm.To)
		if !ok {
			return nil, hiveerr.Unavailable("settlement.execute", errf("settlement: no registered offer for "+pm.To))
		}

		sp := &SubPayment{ProposalID: p.ProposalID, From: pm.From, To: pm.To, Amount: pm.Amount, StartedAt: now}
		if err := e.store.Upsert(storage.TableSubPayments, key, sp); err != nil {
			return nil, err
		}

		if err := pay(ctx, bolt12, pm.Amount); err != nil {
			return nil, hiveerr.Transient("settlement.execute", err)
		}

		sp.Completed = true
		sp.DoneAt = now
		if err := e.store.Upsert(storage.TableSubPayments, key, sp); err != nil {
			return nil, err
		}
		totalSent += pm.Amount
	}

	exec := &Execution{
		ProposalID:     p.ProposalID,
		ExecutorPeerID: selfPeerID,
		PlanHash:       p.PlanHash,
		TotalSentSats:  totalSent,
		Timestamp:      now,
	}
	payload, err := canonJSON(ExecutionSigningPayload(exec))
	if err != nil {
		return nil, hiveerr.Fatal("settlement.execute", err)
	}
	sig, err := signer.Sign(ctx, payload)
	if err != nil {
		return nil, err
	}
	exec.Signature = sig
	return exec, nil
}
