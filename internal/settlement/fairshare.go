package settlement

import "sort"

// Mode selects the fair-share weighting scheme.
type Mode string

const (
	ModeStandard         Mode = "standard"
	ModeNetworkOptimized Mode = "network_optimized"
)

type weights struct {
	capacity, forwards, uptime, networkPosition float64
}

func weightsFor(mode Mode) weights {
	if mode == ModeNetworkOptimized {
		return weights{capacity: 0.25, forwards: 0.55, uptime: 0.10, networkPosition: 0.10}
	}
	return weights{capacity: 0.30, forwards: 0.60, uptime: 0.10}
}

// Result bundles the fair-share algorithm's output for one member.
type Result struct {
	PeerID    string
	FairShare int64
	Balance   int64
}

// FairShare computes per-member normalized
// contribution scores against fleet totals, scores renormalized to
// sum to 1, then the fleet's net profit allocated by the
// largest-remainder method. contributions must already be sorted by
// peer_id (callers pass the canonical snapshot).
func FairShare(contributions []Contribution, mode Mode) []Result {
	n := len(contributions)
	if n == 0 {
		return nil
	}
	w := weightsFor(mode)

	var totalCapacity, totalForwards, totalUptime, totalNetworkPos float64
	var totalNetProfit int64
	for _, c := range contributions {
		totalCapacity += float64(c.Capacity)
		totalForwards += float64(c.ForwardCount)
		totalUptime += float64(c.UptimePct)
		totalNetworkPos += c.NetworkPosition
		totalNetProfit += c.NetProfit()
	}

	scores := make([]float64, n)
	var scoreSum float64
	for i, c := range contributions {
		var s float64
		s += w.capacity * safeDiv(float64(c.Capacity), totalCapacity)
		s += w.forwards * safeDiv(float64(c.ForwardCount), totalForwards)
		s += w.uptime * safeDiv(float64(c.UptimePct), totalUptime)
		if mode == ModeNetworkOptimized {
			s += w.networkPosition * safeDiv(c.NetworkPosition, totalNetworkPos)
		}
		scores[i] = s
		scoreSum += s
	}

	normalized := make([]float64, n)
	for i, s := range scores {
		normalized[i] = safeDiv(s, scoreSum)
	}

	shares := largestRemainderAllocate(totalNetProfit, normalized)

	out := make([]Result, n)
	for i, c := range contributions {
		out[i] = Result{
			PeerID:    c.PeerID,
			FairShare: shares[i],
			Balance:   shares[i] - c.NetProfit(),
		}
	}
	return out
}

func safeDiv(num, denom float64) float64 {
	if denom == 0 {
		return 0
	}
	return num / denom
}

// largestRemainderAllocate distributes total integer units across
// weights (which must sum to ~1) using the largest-remainder method:
// floor each share, then assign the remaining units one each to the
// members with the largest fractional remainder, ties broken by
// ascending index (callers pass weights in peer_id order, so this is
// ascending peer_id).
func largestRemainderAllocate(total int64, normalizedWeights []float64) []int64 {
	n := len(normalizedWeights)
	out := make([]int64, n)
	if n == 0 || total == 0 {
		return out
	}

	type frac struct {
		idx  int
		rem  float64
	}
	fracs := make([]frac, n)
	var allocated int64
	for i, w := range normalizedWeights {
		exact := float64(total) * w
		floor := int64(exact)
		out[i] = floor
		allocated += floor
		fracs[i] = frac{idx: i, rem: exact - float64(floor)}
	}

	remaining := total - allocated
	sort.SliceStable(fracs, func(i, j int) bool {
		if fracs[i].rem != fracs[j].rem {
			return fracs[i].rem > fracs[j].rem
		}
		return fracs[i].idx < fracs[j].idx
	})
	for i := int64(0); i < remaining; i++ {
		out[fracs[i].idx]++
	}
	return out
}
