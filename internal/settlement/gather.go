package settlement

import (
	"sort"

	"hivecoordinator/internal/membership"
	"hivecoordinator/internal/storage"
)

func feeReportKey(period, peerID string) string { return "feereport:" + period + ":" + peerID }

// FeeReport is a persisted per-peer, per-period contribution record —
// the authoritative source for settlement contributions. It is stored in the members table namespace rather than a
// dedicated table since it shares the members' row-cap exemption and
// is keyed by (period, peer_id) rather than peer_id alone.
type FeeReport struct {
	Period         string `json:"period"`
	PeerID         string `json:"peer_id"`
	FeesEarned     int64  `json:"fees_earned"`
	RebalanceCosts int64  `json:"rebalance_costs"`
	Capacity       int64  `json:"capacity"`
	ForwardCount   int64  `json:"forward_count"`
}

// PutFeeReport persists a fee report for (period, peer_id).
func PutFeeReport(store storage.Store, r *FeeReport) error {
	return store.Upsert(storage.TableMembers, feeReportKey(r.Period, r.PeerID), r)
}

// ReputationLookup resolves a peer_id's current aggregate reputation
// tier name for a contributions snapshot.
type ReputationLookup func(peerID string) string

// GatherContributions builds the canonical contributions snapshot for
// period, preferring persisted fee reports and falling back to the
// membership table's best-effort snapshot and liveness-derived
// uptime_pct. The result is always sorted by peer_id.
func GatherContributions(store storage.Store, members *membership.Table, period string, reputationOf ReputationLookup) ([]Contribution, error) {
	all, err := members.All()
	if err != nil {
		return nil, err
	}
	snapshots, err := members.Snapshots()
	if err != nil {
		return nil, err
	}
	snapByPeer := make(map[string]*membership.PeerSnapshot, len(snapshots))
	for _, s := range snapshots {
		snapByPeer[s.PeerID] = s
	}

	out := make([]Contribution, 0, len(all))
	for _, m := range all {
		c := Contribution{PeerID: m.PeerID, UptimePct: int(m.UptimePct * 100)}
		if fr, ok, err := store.Get(storage.TableMembers, feeReportKey(period, m.PeerID)); err == nil && ok {
			report := fr.(*FeeReport)
			c.FeesEarned = report.FeesEarned
			c.RebalanceCosts = report.RebalanceCosts
			c.Capacity = report.Capacity
			c.ForwardCount = report.ForwardCount
		} else if snap, ok := snapByPeer[m.PeerID]; ok {
			c.FeesEarned = int64(snap.FeesEarnedSats)
			c.RebalanceCosts = int64(snap.RebalanceCostsSats)
			c.Capacity = int64(snap.CapacitySats)
			c.ForwardCount = int64(snap.ForwardCount)
		}
		if reputationOf != nil {
			c.ReputationTier = reputationOf(m.PeerID)
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PeerID < out[j].PeerID })
	return out, nil
}
