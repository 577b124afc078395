package settlement

import "sort"

// Payment is one sats transfer in a deterministic payment plan.
type Payment struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount int64  `json:"amount"`
}

// MinPayment is max(100, total_fees // (members × 10)).
func MinPayment(totalFees int64, memberCount int) int64 {
	if memberCount == 0 {
		return 100
	}
	floor := totalFees / int64(memberCount*10)
	if floor > 100 {
		return floor
	}
	return 100
}

// BuildPlan runs the deterministic greedy matching:
// payers (balance < -minPayment) sorted by (balance, peer_id)
// ascending, receivers (balance > minPayment) sorted by (-balance,
// peer_id) ascending, greedily matched with a minimum transfer size of
// minPayment; a payer's unassigned residual under minPayment is
// dropped as dust.
func BuildPlan(results []Result, minPayment int64) []Payment {
	type mutable struct {
		peerID  string
		balance int64 // original signed balance, used only for ordering
		amount  int64 // payer: positive debt to settle; receiver: positive credit to receive
	}

	var payers, receivers []mutable
	for _, r := range results {
		switch {
		case r.Balance < -minPayment:
			payers = append(payers, mutable{peerID: r.PeerID, balance: r.Balance, amount: -r.Balance})
		case r.Balance > minPayment:
			receivers = append(receivers, mutable{peerID: r.PeerID, balance: r.Balance, amount: r.Balance})
		}
	}

	// Payers sorted by (balance, peer_id) ascending: most negative (largest
	// debt) first.
	sort.SliceStable(payers, func(i, j int) bool {
		if payers[i].balance != payers[j].balance {
			return payers[i].balance < payers[j].balance
		}
		return payers[i].peerID < payers[j].peerID
	})
	// Receivers sorted by (-balance, peer_id) ascending: largest credit
	// first.
	sort.SliceStable(receivers, func(i, j int) bool {
		if receivers[i].balance != receivers[j].balance {
			return receivers[i].balance > receivers[j].balance
		}
		return receivers[i].peerID < receivers[j].peerID
	})

	var payments []Payment
	pi, ri := 0, 0
	for pi < len(payers) && ri < len(receivers) {
		p := &payers[pi]
		r := &receivers[ri]
		transfer := p.amount
		if r.amount < transfer {
			transfer = r.amount
		}
		if transfer >= minPayment {
			payments = append(payments, Payment{From: p.peerID, To: r.peerID, Amount: transfer})
		}
		p.amount -= transfer
		r.amount -= transfer
		if p.amount < minPayment {
			pi++
		}
		if r.amount < minPayment {
			ri++
		}
	}

	sort.SliceStable(payments, func(i, j int) bool {
		if payments[i].From != payments[j].From {
			return payments[i].From < payments[j].From
		}
		if payments[i].To != payments[j].To {
			return payments[i].To < payments[j].To
		}
		return payments[i].Amount < payments[j].Amount
	})
	return payments
}
