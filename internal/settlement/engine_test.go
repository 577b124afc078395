package settlement

import (
	"context"
	"testing"
	"time"

	"hivecoordinator/internal/identity"
	"hivecoordinator/internal/storage"
)

type fakeSigner struct{}

func (fakeSigner) Sign(ctx context.Context, msg []byte) (string, error) { return "sig", nil }
func (fakeSigner) Verify(msg []byte, sig string, pubkey []byte) bool    { return true }
func (fakeSigner) Info() identity.Info                                 { return identity.Info{Mode: identity.ModeLocal} }

func fiveMemberProposal(t *testing.T) *Proposal {
	t.Helper()
	contributions := []Contribution{
		{PeerID: "p1", FeesEarned: 100, Capacity: 1, UptimePct: 100, ForwardCount: 1},
		{PeerID: "p2", FeesEarned: 100, Capacity: 1, UptimePct: 100, ForwardCount: 1},
		{PeerID: "p3", FeesEarned: 100, Capacity: 1, UptimePct: 100, ForwardCount: 1},
		{PeerID: "p4", FeesEarned: 100, Capacity: 1, UptimePct: 100, ForwardCount: 1},
		{PeerID: "p5", FeesEarned: 100, Capacity: 1, UptimePct: 100, ForwardCount: 1},
	}
	p, err := Propose("2026-W30", "p1", contributions, ModeStandard, time.Now(), false, false)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

// TestQuorumScenario: 5 members, 3 matching
// votes reach quorum (ready); a 4th mismatching vote is dropped; a 5th
// duplicate vote from an existing voter is rejected idempotently.
func TestQuorumScenario(t *testing.T) {
	s := storage.New()
	e := NewEngine(s)
	p := fiveMemberProposal(t)
	if err := e.StoreProposal(p); err != nil {
		t.Fatal(err)
	}

	if Quorum(5) != 3 {
		t.Fatalf("expected quorum 3, got %d", Quorum(5))
	}

	v1 := &Vote{ProposalID: p.ProposalID, VoterPeerID: "p2", DataHash: p.DataHash, Timestamp: time.Now()}
	v2 := &Vote{ProposalID: p.ProposalID, VoterPeerID: "p3", DataHash: p.DataHash, Timestamp: time.Now()}
	v3 := &Vote{ProposalID: p.ProposalID, VoterPeerID: "p4", DataHash: p.DataHash, Timestamp: time.Now()}

	if _, err := e.RegisterVote(p, v1); err != nil {
		t.Fatal(err)
	}
	if _, err := e.RegisterVote(p, v2); err != nil {
		t.Fatal(err)
	}
	transitioned, err := e.RegisterVote(p, v3)
	if err != nil {
		t.Fatal(err)
	}
	if !transitioned || p.Status != StatusReady {
		t.Fatalf("expected transition to ready at quorum, got status=%s transitioned=%v", p.Status, transitioned)
	}

	// 4th vote with mismatching hash must be dropped, not counted.
	bad := &Vote{ProposalID: p.ProposalID, VoterPeerID: "p5", DataHash: "mismatched", Timestamp: time.Now()}
	if _, err := e.RegisterVote(p, bad); err != nil {
		t.Fatal(err)
	}

	// Duplicate vote from an existing voter is rejected idempotently.
	dup := &Vote{ProposalID: p.ProposalID, VoterPeerID: "p2", DataHash: p.DataHash, Timestamp: time.Now()}
	if _, err := e.RegisterVote(p, dup); err == nil {
		t.Fatal("expected duplicate voter to be rejected")
	}
}

// TestPlanBoundExecutionRejectsMismatch checks that no execution
// message with plan_hash != proposal.plan_hash is accepted.
func TestPlanBoundExecutionRejectsMismatch(t *testing.T) {
	s := storage.New()
	e := NewEngine(s)
	p := fiveMemberProposal(t)
	p.Status = StatusReady
	exec := &Execution{ProposalID: p.ProposalID, ExecutorPeerID: "p1", PlanHash: "wrong-hash", TotalSentSats: 0}
	if _, err := e.AcceptExecution(p, exec); err == nil {
		t.Fatal("expected mismatched plan_hash to be rejected")
	}
}

// TestCompletionIdempotence checks that re-receiving an
// already-accepted execution leaves the proposal unchanged.
func TestCompletionIdempotence(t *testing.T) {
	s := storage.New()
	e := NewEngine(s)

	contributions := []Contribution{
		{PeerID: "A", FeesEarned: 2000, Capacity: 1, UptimePct: 100, ForwardCount: 60},
		{PeerID: "B", FeesEarned: 0, Capacity: 1, UptimePct: 100, ForwardCount: 0},
	}
	p, err := Propose("2026-W31", "A", contributions, ModeStandard, time.Now(), false, false)
	if err != nil {
		t.Fatal(err)
	}
	p.Status = StatusReady
	if err := e.StoreProposal(p); err != nil {
		t.Fatal(err)
	}

	var payerAmount int64
	for _, pay := range p.Payments {
		if pay.From == "A" {
			payerAmount += pay.Amount
		}
	}

	exec := &Execution{ProposalID: p.ProposalID, ExecutorPeerID: "A", PlanHash: p.PlanHash, TotalSentSats: payerAmount, Timestamp: time.Now()}
	completed, err := e.AcceptExecution(p, exec)
	if err != nil {
		t.Fatal(err)
	}
	if !completed {
		t.Fatalf("expected proposal to complete once its sole payer's execution lands, payments=%v", p.Payments)
	}
	statusAfterFirst := p.Status

	// Re-receive the identical execution.
	completed2, err := e.AcceptExecution(p, exec)
	if err != nil {
		t.Fatal(err)
	}
	if !completed2 || p.Status != statusAfterFirst {
		t.Fatalf("expected re-accepting the same execution to leave the proposal unchanged")
	}
}

// TestSubPaymentIdempotence checks that re-running
// execute_our_settlement after a crash never double-spends a completed
// sub-payment.
func TestSubPaymentIdempotence(t *testing.T) {
	s := storage.New()
	e := NewEngine(s)

	contributions := []Contribution{
		{PeerID: "A", FeesEarned: 2000, Capacity: 1, UptimePct: 100, ForwardCount: 60},
		{PeerID: "B", FeesEarned: 0, Capacity: 1, UptimePct: 100, ForwardCount: 0},
	}
	p, err := Propose("2026-W32", "A", contributions, ModeStandard, time.Now(), false, false)
	if err != nil {
		t.Fatal(err)
	}

	offers := func(peer string) (string, bool) { return "bolt12-" + peer, true }
	payCount := 0
	pay := func(ctx context.Context, bolt12 string, amt int64) error { payCount++; return nil }

	signer := fakeSigner{}
	exec1, err := e.ExecuteOurSettlement(context.Background(), signer, "A", p, p.PlanHash, offers, pay, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	firstPayCount := payCount

	// Simulate a crash-restart: re-run execution for the same proposal.
	exec2, err := e.ExecuteOurSettlement(context.Background(), signer, "A", p, p.PlanHash, offers, pay, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if payCount != firstPayCount {
		t.Fatalf("expected no additional payment calls on retry, first=%d second=%d", firstPayCount, payCount)
	}
	if exec1.TotalSentSats != exec2.TotalSentSats {
		t.Fatalf("expected identical total_sent_sats across retries: %d != %d", exec1.TotalSentSats, exec2.TotalSentSats)
	}
}

// TestExecuteAbortsWithoutRegisteredOffer verifies the executor aborts
// (emits no partial execution) when a receiver has no registered
// offer.
func TestExecuteAbortsWithoutRegisteredOffer(t *testing.T) {
	s := storage.New()
	e := NewEngine(s)
	contributions := []Contribution{
		{PeerID: "A", FeesEarned: 2000, Capacity: 1, UptimePct: 100, ForwardCount: 60},
		{PeerID: "B", FeesEarned: 0, Capacity: 1, UptimePct: 100, ForwardCount: 0},
	}
	p, err := Propose("2026-W33", "A", contributions, ModeStandard, time.Now(), false, false)
	if err != nil {
		t.Fatal(err)
	}
	noOffers := func(peer string) (string, bool) { return "", false }
	pay := func(ctx context.Context, bolt12 string, amt int64) error { return nil }
	if _, err := e.ExecuteOurSettlement(context.Background(), fakeSigner{}, "A", p, p.PlanHash, noOffers, pay, time.Now()); err == nil {
		t.Fatal("expected execution to abort when receiver has no registered offer")
	}
}
