package settlement

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"hivecoordinator/internal/canon"
)

// DataHash computes the bit-exact data_hash canonicalization:
// contributions sorted by peer_id, then
// period + "|" + join("|", "peer_id:fees_earned:rebalance_costs:capacity:uptime_int_pct").
func DataHash(period string, contributions []Contribution) string {
	sorted := make([]Contribution, len(contributions))
	copy(sorted, contributions)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].PeerID < sorted[j].PeerID })

	parts := make([]string, 0, len(sorted))
	for _, c := range sorted {
		parts = append(parts, fmt.Sprintf("%s:%d:%d:%d:%d", c.PeerID, c.FeesEarned, c.RebalanceCosts, c.Capacity, c.UptimePct))
	}
	input := period + "|" + strings.Join(parts, "|")
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}

const planHashVersion = 2

// PlanHash computes the bit-exact plan_hash canonicalization:
// SHA256(canonical_json({v:2, period, data_hash, min_payment_sats, payments_sorted})).
// payments must already be in their final sorted (from, to, amount)
// order — BuildPlan guarantees this. The payload is built as a map
// rather than a struct so canon.JSON's map-key sorting governs field order, not Go struct declaration order.
func PlanHash(period, dataHash string, minPayment int64, payments []Payment) (string, error) {
	paymentRows := make([]map[string]any, 0, len(payments))
	for _, p := range payments {
		paymentRows = append(paymentRows, map[string]any{
			"from":   p.From,
			"to":     p.To,
			"amount": p.Amount,
		})
	}
	payload := map[string]any{
		"v":                planHashVersion,
		"period":           period,
		"data_hash":        dataHash,
		"min_payment_sats": minPayment,
		"payments":         paymentRows,
	}
	b, err := canon.JSON(payload)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}
