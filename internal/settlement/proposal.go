package settlement

import (
	"context"
	"time"

	"github.com/google/uuid"

	"hivecoordinator/internal/canon"
	"hivecoordinator/internal/hiveerr"
	"hivecoordinator/internal/identity"
)

// Status is a settlement proposal's lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusReady     Status = "ready"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Proposal is one period's settlement proposal record.
type Proposal struct {
	ProposalID      string         `json:"proposal_id"`
	Period          string         `json:"period"`
	ProposerPeerID  string         `json:"proposer_peer_id"`
	DataHash        string         `json:"data_hash"`
	PlanHash        string         `json:"plan_hash"`
	TotalFeesSats   int64          `json:"total_fees_sats"`
	MemberCount     int            `json:"member_count"`
	Contributions   []Contribution `json:"contributions_json"`
	MinPayment      int64          `json:"min_payment_sats"`
	Payments        []Payment      `json:"payments"`
	Status          Status         `json:"status"`
	CreatedAt       time.Time      `json:"created_at"`
}

// Vote is the signed settlement-ready vote payload.
type Vote struct {
	ProposalID  string    `json:"proposal_id"`
	VoterPeerID string    `json:"voter_peer_id"`
	DataHash    string    `json:"data_hash"`
	Timestamp   time.Time `json:"timestamp"`
	Signature   string    `json:"-"`
}

// VoteSigningPayload builds the canonical signing payload for a vote.
func VoteSigningPayload(v *Vote) map[string]any {
	return map[string]any{
		"proposal_id":   v.ProposalID,
		"voter_peer_id": v.VoterPeerID,
		"data_hash":     v.DataHash,
		"timestamp":     v.Timestamp.UTC().Format(time.RFC3339),
	}
}

// Execution is the signed SETTLEMENT_EXECUTE payload.
type Execution struct {
	ProposalID     string    `json:"proposal_id"`
	ExecutorPeerID string    `json:"executor_peer_id"`
	PlanHash       string    `json:"plan_hash"`
	TotalSentSats  int64     `json:"total_sent_sats"`
	Timestamp      time.Time `json:"timestamp"`
	Signature      string    `json:"-"`
}

// ExecutionSigningPayload builds the canonical signing payload for an
// execution message.
func ExecutionSigningPayload(e *Execution) map[string]any {
	return map[string]any{
		"proposal_id":     e.ProposalID,
		"executor_peer_id": e.ExecutorPeerID,
		"plan_hash":       e.PlanHash,
		"total_sent_sats": e.TotalSentSats,
		"timestamp":       e.Timestamp.UTC().Format(time.RFC3339),
	}
}

// VoteWirePayload builds the envelope payload for broadcasting v: the
// same fields a voter signs, plus the signature itself (the struct's
// own `json:"-"` tag on Signature keeps a bare canon.JSON(v) from ever
// silently re-including it in the signing payload, so the wire form is
// assembled explicitly here instead).
func VoteWirePayload(v *Vote) map[string]any {
	p := VoteSigningPayload(v)
	p["signature"] = v.Signature
	return p
}

// DecodeVotePayload parses a received SETTLEMENT_READY payload back
// into a Vote, the inverse of VoteWirePayload.
func DecodeVotePayload(payload map[string]any) (*Vote, error) {
	proposalID, _ := payload["proposal_id"].(string)
	voterPeerID, _ := payload["voter_peer_id"].(string)
	dataHash, _ := payload["data_hash"].(string)
	signature, _ := payload["signature"].(string)
	if proposalID == "" || voterPeerID == "" || dataHash == "" {
		return nil, errf("settlement: malformed vote payload")
	}
	ts, err := parseTimestamp(payload["timestamp"])
	if err != nil {
		return nil, err
	}
	return &Vote{
		ProposalID:  proposalID,
		VoterPeerID: voterPeerID,
		DataHash:    dataHash,
		Timestamp:   ts,
		Signature:   signature,
	}, nil
}

// ExecutionWirePayload builds the envelope payload for broadcasting a
// SETTLEMENT_EXECUTE message, the signed fields plus the signature.
func ExecutionWirePayload(e *Execution) map[string]any {
	p := ExecutionSigningPayload(e)
	p["signature"] = e.Signature
	return p
}

// DecodeExecutionPayload parses a received SETTLEMENT_EXECUTE payload
// back into an Execution, the inverse of ExecutionWirePayload.
func DecodeExecutionPayload(payload map[string]any) (*Execution, error) {
	proposalID, _ := payload["proposal_id"].(string)
	executorPeerID, _ := payload["executor_peer_id"].(string)
	planHash, _ := payload["plan_hash"].(string)
	signature, _ := payload["signature"].(string)
	if proposalID == "" || executorPeerID == "" || planHash == "" {
		return nil, errf("settlement: malformed execution payload")
	}
	total, ok := toInt64(payload["total_sent_sats"])
	if !ok {
		return nil, errf("settlement: malformed execution payload")
	}
	ts, err := parseTimestamp(payload["timestamp"])
	if err != nil {
		return nil, err
	}
	return &Execution{
		ProposalID:     proposalID,
		ExecutorPeerID: executorPeerID,
		PlanHash:       planHash,
		TotalSentSats:  total,
		Timestamp:      ts,
		Signature:      signature,
	}, nil
}

// parseTimestamp accepts the RFC3339 string form a decoded envelope
// payload carries (JSON numbers/strings survive a map[string]any
// round-trip; time.Time does not).
func parseTimestamp(v any) (time.Time, error) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, errf("settlement: missing or malformed timestamp")
	}
	return time.Parse(time.RFC3339, s)
}

// toInt64 accepts either a JSON number (float64, the common case for a
// decoded envelope payload) or an int64 (the common case for a value
// built in-process), since both occur depending on whether the
// Execution travelled over the wire.
func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	}
	return 0, false
}

var (
	errZeroFeePeriod       = errf("settlement: zero-fee period skipped")
	errAlreadySettled      = errf("settlement: period already settled")
	errAlreadyProposed     = errf("settlement: period already has a proposal")
	errDuplicateVoter      = errf("settlement: voter has already voted on this proposal")
	errHashMismatch        = errf("settlement: recomputed hash does not match proposal")
	errNotReady            = errf("settlement: proposal is not in ready state")
	errPlanHashMismatch    = errf("settlement: execution plan_hash does not match proposal")
)

func errf(msg string) error { return &settlementErr{msg} }

type settlementErr struct{ msg string }

func (e *settlementErr) Error() string { return e.msg }

// Propose builds a new proposal for period: compute contributions,
// hashes, and plan; reject if the period is already settled or already
// proposed.
func Propose(period, proposerPeerID string, contributions []Contribution, mode Mode, now time.Time, alreadySettled, alreadyProposed bool) (*Proposal, error) {
	if alreadySettled {
		return nil, hiveerr.Validation("settlement.propose", errAlreadySettled)
	}
	if alreadyProposed {
		return nil, hiveerr.Validation("settlement.propose", errAlreadyProposed)
	}

	var totalFees int64
	for _, c := range contributions {
		totalFees += c.FeesEarned
	}
	if totalFees == 0 {
		return nil, hiveerr.Validation("settlement.propose", errZeroFeePeriod)
	}

	results := FairShare(contributions, mode)
	minPayment := MinPayment(totalFees, len(contributions))
	payments := BuildPlan(results, minPayment)
	dataHash := DataHash(period, contributions)
	planHash, err := PlanHash(period, dataHash, minPayment, payments)
	if err != nil {
		return nil, hiveerr.Fatal("settlement.propose", err)
	}

	sorted := make([]Contribution, len(contributions))
	copy(sorted, contributions)
	sortContributions(sorted)

	return &Proposal{
		ProposalID:     uuid.NewString(),
		Period:         period,
		ProposerPeerID: proposerPeerID,
		DataHash:       dataHash,
		PlanHash:       planHash,
		TotalFeesSats:  totalFees,
		MemberCount:    len(contributions),
		Contributions:  sorted,
		MinPayment:     minPayment,
		Payments:       payments,
		Status:         StatusPending,
		CreatedAt:      now,
	}, nil
}

func sortContributions(c []Contribution) {
	// insertion sort is fine at fleet scale and keeps this file free of
	// an extra sort.Slice import duplicate; contributions are already
	// mostly sorted when they arrive from the member table.
	for i := 1; i < len(c); i++ {
		for j := i; j > 0 && c[j].PeerID < c[j-1].PeerID; j-- {
			c[j], c[j-1] = c[j-1], c[j]
		}
	}
}

// RecomputeAndVote independently recomputes both hashes from this
// node's own contributions for the same period, and votes only if both
// match the proposal's.
func RecomputeAndVote(ctx context.Context, signer identity.Signer, voterPeerID string, p *Proposal, localContributions []Contribution, mode Mode, now time.Time) (*Vote, error) {
	dataHash := DataHash(p.Period, localContributions)
	if dataHash != p.DataHash {
		return nil, hiveerr.Validation("settlement.vote", errHashMismatch)
	}
	results := FairShare(localContributions, mode)
	minPayment := MinPayment(sumFees(localContributions), len(localContributions))
	payments := BuildPlan(results, minPayment)
	planHash, err := PlanHash(p.Period, dataHash, minPayment, payments)
	if err != nil {
		return nil, hiveerr.Fatal("settlement.vote", err)
	}
	if planHash != p.PlanHash {
		return nil, hiveerr.Validation("settlement.vote", errHashMismatch)
	}

	v := &Vote{
		ProposalID:  p.ProposalID,
		VoterPeerID: voterPeerID,
		DataHash:    dataHash,
		Timestamp:   now,
	}
	payload, err := canon.JSON(VoteSigningPayload(v))
	if err != nil {
		return nil, hiveerr.Fatal("settlement.vote", err)
	}
	sig, err := signer.Sign(ctx, payload)
	if err != nil {
		return nil, err
	}
	v.Signature = sig
	return v, nil
}

func sumFees(contributions []Contribution) int64 {
	var total int64
	for _, c := range contributions {
		total += c.FeesEarned
	}
	return total
}

// Quorum is ⌊member_count/2⌋ + 1.
func Quorum(memberCount int) int {
	return memberCount/2 + 1
}
