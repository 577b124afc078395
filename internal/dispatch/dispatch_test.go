package dispatch

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestInboundPerPeerOrdering(t *testing.T) {
	var mu sync.Mutex
	var order []int

	in := NewInbound(context.Background(), func(peerID string, msg any) {
		mu.Lock()
		order = append(order, msg.(int))
		mu.Unlock()
	})
	defer in.Stop()

	for i := 0; i < 10; i++ {
		in.Submit("peerA", i)
	}

	deadline := time.Now().Add(time.Second)
	for {
		mu.Lock()
		n := len(order)
		mu.Unlock()
		if n == 10 || time.Now().After(deadline) {
			break
		}
		time.Sleep(time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 10 {
		t.Fatalf("expected 10 messages delivered, got %d", len(order))
	}
	for i, v := range order {
		if v != i {
			t.Fatalf("expected in-order delivery for same sender, got %v", order)
		}
	}
}

func TestStopDrainsWorkers(t *testing.T) {
	in := NewInbound(context.Background(), func(peerID string, msg any) {})
	in.Submit("peerA", 1)
	in.Stop()
}
