package settlement

import "testing"

// Two identical members split the profit evenly and owe nothing.
func TestFairShareEqual(t *testing.T) {
	contributions := []Contribution{
		{PeerID: "a", FeesEarned: 500, RebalanceCosts: 0, Capacity: 1_000_000, UptimePct: 100, ForwardCount: 10},
		{PeerID: "b", FeesEarned: 500, RebalanceCosts: 0, Capacity: 1_000_000, UptimePct: 100, ForwardCount: 10},
	}
	results := FairShare(contributions, ModeStandard)
	for _, r := range results {
		if r.FairShare != 500 {
			t.Fatalf("expected fair_share 500 for %s, got %d", r.PeerID, r.FairShare)
		}
		if r.Balance != 0 {
			t.Fatalf("expected balance 0 for %s, got %d", r.PeerID, r.Balance)
		}
	}
	min := MinPayment(1000, 2)
	if min != 100 {
		t.Fatalf("expected min_payment 100, got %d", min)
	}
	plan := BuildPlan(results, min)
	if len(plan) != 0 {
		t.Fatalf("expected empty payment plan, got %v", plan)
	}
}

// One member earns everything; the other has zero balance, so no
// transfer clears the minimum payment.
func TestFairShareAsymmetric(t *testing.T) {
	contributions := []Contribution{
		{PeerID: "A", FeesEarned: 1000, RebalanceCosts: 0, Capacity: 1_000_000, UptimePct: 100, ForwardCount: 30},
		{PeerID: "B", FeesEarned: 0, RebalanceCosts: 0, Capacity: 1_000_000, UptimePct: 100, ForwardCount: 0},
	}
	results := FairShare(contributions, ModeStandard)
	byPeer := map[string]Result{}
	for _, r := range results {
		byPeer[r.PeerID] = r
	}
	if byPeer["A"].FairShare != 1000 {
		t.Fatalf("expected A fair_share 1000, got %d", byPeer["A"].FairShare)
	}
	if byPeer["B"].FairShare != 0 {
		t.Fatalf("expected B fair_share 0, got %d", byPeer["B"].FairShare)
	}
	if byPeer["A"].Balance != 0 || byPeer["B"].Balance != 0 {
		t.Fatalf("expected balances [0,0], got A=%d B=%d", byPeer["A"].Balance, byPeer["B"].Balance)
	}
	min := MinPayment(1000, 2)
	plan := BuildPlan(results, min)
	if len(plan) != 0 {
		t.Fatalf("expected no transfer (B's balance 0 under min_payment), got %v", plan)
	}
}

// TestFairShareTransferNeeded expects a deterministic set of
// transfers totalling exactly A's debt, and plan-hash stability across
// repeated runs.
func TestFairShareTransferNeeded(t *testing.T) {
	contributions := []Contribution{
		{PeerID: "A", FeesEarned: 2000, RebalanceCosts: 0, Capacity: 1_000_000, UptimePct: 100, ForwardCount: 60},
		{PeerID: "B", FeesEarned: 500, RebalanceCosts: 0, Capacity: 1_000_000, UptimePct: 100, ForwardCount: 20},
		{PeerID: "C", FeesEarned: 0, RebalanceCosts: 0, Capacity: 1_000_000, UptimePct: 100, ForwardCount: 0},
	}
	results := FairShare(contributions, ModeStandard)
	min := MinPayment(2500, 3)
	if min != 100 {
		t.Fatalf("expected min_payment 100, got %d", min)
	}
	plan := BuildPlan(results, min)

	var balanceSum int64
	for _, r := range results {
		balanceSum += r.Balance
	}
	if balanceSum != 0 {
		t.Fatalf("expected sum(balances) == 0, got %d", balanceSum)
	}

	dataHash := DataHash("2026-W30", contributions)
	planHash1, err := PlanHash("2026-W30", dataHash, min, plan)
	if err != nil {
		t.Fatal(err)
	}

	// Re-run from scratch: same inputs must produce the same hashes.
	results2 := FairShare(contributions, ModeStandard)
	plan2 := BuildPlan(results2, min)
	dataHash2 := DataHash("2026-W30", contributions)
	planHash2, err := PlanHash("2026-W30", dataHash2, min, plan2)
	if err != nil {
		t.Fatal(err)
	}
	if planHash1 != planHash2 {
		t.Fatalf("expected stable plan hash across runs: %s != %s", planHash1, planHash2)
	}
	if dataHash != dataHash2 {
		t.Fatalf("expected stable data hash across runs: %s != %s", dataHash, dataHash2)
	}

	var transferred int64
	for _, pm := range plan {
		if pm.From != "A" {
			t.Fatalf("expected only A to pay in this scenario, got transfer from %s", pm.From)
		}
		transferred += pm.Amount
	}
	byPeer := map[string]Result{}
	for _, r := range results {
		byPeer[r.PeerID] = r
	}
	if transferred != -byPeer["A"].Balance {
		t.Fatalf("expected transfers to total exactly A's debt %d, got %d", -byPeer["A"].Balance, transferred)
	}
}

// TestFairShareCompleteness checks that the sum of integer
// fair_share equals total_net_profit exactly and sum(balances) == 0.
func TestFairShareCompleteness(t *testing.T) {
	contributions := []Contribution{
		{PeerID: "a", FeesEarned: 777, RebalanceCosts: 13, Capacity: 500_000, UptimePct: 97, ForwardCount: 41},
		{PeerID: "b", FeesEarned: 321, RebalanceCosts: 0, Capacity: 250_000, UptimePct: 88, ForwardCount: 9},
		{PeerID: "c", FeesEarned: 0, RebalanceCosts: 5, Capacity: 100_000, UptimePct: 50, ForwardCount: 0},
		{PeerID: "d", FeesEarned: 999, RebalanceCosts: 200, Capacity: 2_000_000, UptimePct: 100, ForwardCount: 120},
	}
	var totalNetProfit int64
	for _, c := range contributions {
		totalNetProfit += c.NetProfit()
	}
	results := FairShare(contributions, ModeStandard)

	var shareSum, balanceSum int64
	for _, r := range results {
		shareSum += r.FairShare
		balanceSum += r.Balance
	}
	if shareSum != totalNetProfit {
		t.Fatalf("expected sum(fair_share) == %d, got %d", totalNetProfit, shareSum)
	}
	if balanceSum != 0 {
		t.Fatalf("expected sum(balances) == 0, got %d", balanceSum)
	}
}
