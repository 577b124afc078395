package membership

import (
	"testing"
	"time"

	"hivecoordinator/internal/storage"
)

func TestHelloCreatesThenReactivates(t *testing.T) {
	s := storage.New()
	tbl := NewTable(s, time.Minute)
	t0 := time.Now()

	m, err := tbl.HandleHello("peerA", t0)
	if err != nil {
		t.Fatal(err)
	}
	if m.Tier != TierNeophyte || !m.Active {
		t.Fatalf("unexpected new member: %+v", m)
	}

	t1 := t0.Add(30 * time.Second)
	m2, err := tbl.HandleHello("peerA", t1)
	if err != nil {
		t.Fatal(err)
	}
	if !m2.LastSeen.Equal(t1) {
		t.Fatalf("expected last_seen updated to %v, got %v", t1, m2.LastSeen)
	}
}

func TestSweepLivenessMarksInactiveWithoutEviction(t *testing.T) {
	s := storage.New()
	tbl := NewTable(s, time.Minute)
	t0 := time.Now()
	if _, err := tbl.HandleHello("peerA", t0); err != nil {
		t.Fatal(err)
	}

	future := t0.Add(2 * time.Hour)
	if err := tbl.SweepLiveness(future); err != nil {
		t.Fatal(err)
	}
	m, ok, err := tbl.Get("peerA")
	if err != nil || !ok {
		t.Fatalf("member must still exist: %v %v", ok, err)
	}
	if m.Active {
		t.Fatal("expected member marked inactive after liveness threshold elapsed")
	}
	if m.UptimePct >= 1.0 {
		t.Fatalf("expected uptime_pct to drop below 1.0, got %f", m.UptimePct)
	}
}

func TestEvictRemovesMember(t *testing.T) {
	s := storage.New()
	tbl := NewTable(s, time.Minute)
	now := time.Now()
	if _, err := tbl.HandleHello("peerA", now); err != nil {
		t.Fatal(err)
	}
	if err := tbl.Evict("peerA"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := tbl.Get("peerA"); ok {
		t.Fatal("expected member evicted")
	}
}

func TestStateHashStableUnderReorder(t *testing.T) {
	a := []*PeerSnapshot{
		{PeerID: "b", ForwardCount: 2, FeesEarnedSats: 20},
		{PeerID: "a", ForwardCount: 1, FeesEarnedSats: 10},
	}
	b := []*PeerSnapshot{
		{PeerID: "a", ForwardCount: 1, FeesEarnedSats: 10},
		{PeerID: "b", ForwardCount: 2, FeesEarnedSats: 20},
	}
	ha, err := StateHash(a)
	if err != nil {
		t.Fatal(err)
	}
	hb, err := StateHash(b)
	if err != nil {
		t.Fatal(err)
	}
	if ha != hb {
		t.Fatalf("state hash must be order-independent: %s != %s", ha, hb)
	}
}

func TestStateHashChangesWithCounters(t *testing.T) {
	a := []*PeerSnapshot{{PeerID: "a", ForwardCount: 1}}
	b := []*PeerSnapshot{{PeerID: "a", ForwardCount: 2}}
	ha, _ := StateHash(a)
	hb, _ := StateHash(b)
	if ha == hb {
		t.Fatal("expected different state hash for different counters")
	}
}
