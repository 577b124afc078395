package relay

import (
	"testing"
	"time"
)

// TestDedupDispatchedOnce verifies that a message relayed N
// times is dispatched to handlers exactly once per node.
func TestDedupDispatchedOnce(t *testing.T) {
	d := New(10, time.Hour)
	dispatched := 0
	for i := 0; i < 5; i++ {
		if !d.SeenOrMark("msg-1") {
			dispatched++
		}
	}
	if dispatched != 1 {
		t.Fatalf("expected exactly one dispatch, got %d", dispatched)
	}
}

func TestSeenExpiresAfterTTL(t *testing.T) {
	d := New(10, 10*time.Millisecond)
	if d.SeenOrMark("msg-1") {
		t.Fatal("first sighting must not be reported as seen")
	}
	time.Sleep(20 * time.Millisecond)
	if d.SeenOrMark("msg-1") {
		t.Fatal("expired entry should be treated as unseen")
	}
}

func TestForwardExcludesSenderSelfAndPath(t *testing.T) {
	members := []string{"a", "b", "c", "d"}
	dec := Forward(members, "a", "b", []string{"c"}, 2)
	if !dec.Forward {
		t.Fatal("expected forward with ttl 2")
	}
	if dec.NewTTL != 1 {
		t.Fatalf("expected decremented ttl 1, got %d", dec.NewTTL)
	}
	if len(dec.Targets) != 1 || dec.Targets[0] != "d" {
		t.Fatalf("expected only d, got %v", dec.Targets)
	}
}

func TestForwardSuppressedAtZeroTTL(t *testing.T) {
	dec := Forward([]string{"a", "b"}, "a", "self", nil, 1)
	if dec.Forward {
		t.Fatal("expected forwarding suppressed when decremented ttl would be 0")
	}
}

func TestClampTTL(t *testing.T) {
	if ClampTTL(100) != MaxTTL {
		t.Fatalf("expected clamp to %d", MaxTTL)
	}
	if ClampTTL(-5) != 0 {
		t.Fatal("expected negative ttl clamped to 0")
	}
}
