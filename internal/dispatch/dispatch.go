// Package dispatch implements the node's concurrency backbone: a
// single-writer-per-peer inbound path and a periodic cooperative task
// scheduler sharing one stop signal.
package dispatch

import (
	"context"
	"sync"
)

// Handler processes one decoded inbound message for a peer. Handlers
// for the same peer are invoked strictly in send order; across peers,
// no order is promised.
type Handler func(peerID string, msg any)

// Inbound serializes message handling per peer while allowing
// different peers to be processed concurrently.
type Inbound struct {
	mu      sync.Mutex
	queues  map[string]chan any
	handler Handler
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewInbound constructs an Inbound dispatcher bound to parent's
// lifetime.
func NewInbound(parent context.Context, handler Handler) *Inbound {
	ctx, cancel := context.WithCancel(parent)
	return &Inbound{queues: make(map[string]chan any), handler: handler, ctx: ctx, cancel: cancel}
}

// Submit enqueues msg for peerID, starting that peer's single-writer
// worker goroutine on first use.
func (in *Inbound) Submit(peerID string, msg any) {
	in.mu.Lock()
	q, ok := in.queues[peerID]
	if !ok {
		q = make(chan any, 256)
		in.queues[peerID] = q
		in.wg.Add(1)
		go in.worker(peerID, q)
	}
	in.mu.Unlock()

	select {
	case q <- msg:
	case <-in.ctx.Done():
	}
}

func (in *Inbound) worker(peerID string, q chan any) {
	defer in.wg.Done()
	for {
		select {
		case msg := <-q:
			in.handler(peerID, msg)
		case <-in.ctx.Done():
			return
		}
	}
}

// Stop cancels all peer workers and waits for them to drain.
func (in *Inbound) Stop() {
	in.cancel()
	in.wg.Wait()
}

// Task is one periodic cooperative job (liveness sweep, aggregation
// refresh, settlement tick, relay GC, credential expiry).
type Task struct {
	Name string
	Run  func(ctx context.Context)
}

// Scheduler runs every registered task on its own goroutine, each
// driven by the tick function passed to Run, honoring a single stop
// signal.
type Scheduler struct {
	tasks  []Task
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler constructs a Scheduler bound to parent's lifetime.
func NewScheduler(parent context.Context, tasks ...Task) *Scheduler {
	ctx, cancel := context.WithCancel(parent)
	return &Scheduler{tasks: tasks, ctx: ctx, cancel: cancel}
}

// Run starts every task on its own goroutine driven by tick. Tasks are
// expected to catch their own failures (handlers never throw to the
// scheduler); Run only guarantees one bad task cannot starve another.
func (s *Scheduler) Run(tick func(ctx context.Context, fn func())) {
	for _, t := range s.tasks {
		s.wg.Add(1)
		task := t
		go func() {
			defer s.wg.Done()
			tick(s.ctx, func() { task.Run(s.ctx) })
		}()
	}
}

// Stop signals every task to observe cancellation and waits for them to
// return.
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}
