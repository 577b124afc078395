package intentlock

import (
	"testing"
	"time"
)

func TestSmallestPubkeyWins(t *testing.T) {
	tbl := NewTable("zz")
	now := time.Now()
	deadline := now.Add(time.Minute)

	if !tbl.Offer(Intent{RequestID: "r1", Kind: "open_channel", Target: "peerX", PeerID: "bb", Deadline: deadline}, now) {
		t.Fatal("expected first offer to win uncontested")
	}
	if tbl.Offer(Intent{RequestID: "r2", Kind: "open_channel", Target: "peerX", PeerID: "cc", Deadline: deadline}, now) {
		t.Fatal("expected larger pubkey to lose to existing smaller winner")
	}
	if !tbl.Offer(Intent{RequestID: "r3", Kind: "open_channel", Target: "peerX", PeerID: "aa", Deadline: deadline}, now) {
		t.Fatal("expected smaller pubkey to take over as winner")
	}
}

func TestHoldsReflectsLocalWinner(t *testing.T) {
	tbl := NewTable("aa")
	now := time.Now()
	deadline := now.Add(time.Minute)
	tbl.Offer(Intent{Kind: "open_channel", Target: "peerX", PeerID: "aa", Deadline: deadline}, now)

	holds, until := tbl.Holds("open_channel", "peerX", now)
	if !holds || !until.Equal(deadline) {
		t.Fatalf("expected local node to hold the lock until %v, got holds=%v until=%v", deadline, holds, until)
	}
}

func TestExpiredEntryIsReclaimable(t *testing.T) {
	tbl := NewTable("zz")
	now := time.Now()
	tbl.Offer(Intent{Kind: "open_channel", Target: "peerX", PeerID: "aa", Deadline: now.Add(time.Millisecond)}, now)

	later := now.Add(time.Hour)
	if !tbl.Offer(Intent{Kind: "open_channel", Target: "peerX", PeerID: "zz", Deadline: later.Add(time.Minute)}, later) {
		t.Fatal("expected expired entry to be reclaimable by any new offer")
	}
}

func TestGCDropsExpired(t *testing.T) {
	tbl := NewTable("aa")
	now := time.Now()
	tbl.Offer(Intent{Kind: "k", Target: "t", PeerID: "aa", Deadline: now.Add(time.Millisecond)}, now)
	tbl.GC(now.Add(time.Hour))
	if until := tbl.BackoffUntil("k", "t", now.Add(time.Hour)); !until.IsZero() {
		t.Fatal("expected GC to clear expired entry")
	}
}
