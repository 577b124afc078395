// Package breaker implements a per-dependency circuit breaker. Each
// wrapped external collaborator (the remote identity signer, the
// transport send path) gets its own *Breaker value injected into the
// caller that uses it; there is no package-scope mutable singleton.
// Lightning RPC calls are not wrapped.
package breaker

import (
	"sync"
	"time"

	"hivecoordinator/internal/hiveerr"
)

// State is one of closed, open, half-open.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Breaker guards a single external dependency. It is safe for concurrent
// use; no lock held by Breaker ever spans the wrapped call.
type Breaker struct {
	mu sync.Mutex

	failThreshold int
	resetTimeout  time.Duration
	halfOpenNeed  int

	state          State
	consecFails    int
	halfOpenPasses int
	openedAt       time.Time
}

// Option configures a Breaker at construction time.
type Option func(*Breaker)

// WithFailThreshold overrides the default 3-consecutive-failure open
// threshold.
func WithFailThreshold(n int) Option { return func(b *Breaker) { b.failThreshold = n } }

// WithResetTimeout overrides the default ~60s open->half-open timeout.
func WithResetTimeout(d time.Duration) Option { return func(b *Breaker) { b.resetTimeout = d } }

// WithHalfOpenSuccesses overrides how many consecutive half-open
// successes are required to fully close the breaker.
func WithHalfOpenSuccesses(n int) Option { return func(b *Breaker) { b.halfOpenNeed = n } }

// New constructs a closed Breaker with sane defaults: 3 consecutive
// failures to open, a 60s reset timeout, and 2 successive half-open
// successes to close.
func New(opts ...Option) *Breaker {
	b := &Breaker{
		failThreshold: 3,
		resetTimeout:  60 * time.Second,
		halfOpenNeed:  2,
		state:         Closed,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// State returns the current breaker state, transitioning open->half-open
// if the reset timeout has elapsed.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeTransitionToHalfOpenLocked()
	return b.state
}

func (b *Breaker) maybeTransitionToHalfOpenLocked() {
	if b.state == Open && time.Since(b.openedAt) >= b.resetTimeout {
		b.state = HalfOpen
		b.halfOpenPasses = 0
	}
}

// Allow reports whether a call may proceed. When it returns false the
// caller must not touch the dependency; it should surface an
// hiveerr.Unavailable error instead.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeTransitionToHalfOpenLocked()
	return b.state != Open
}

// Success records a successful call.
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consecFails = 0
	switch b.state {
	case HalfOpen:
		b.halfOpenPasses++
		if b.halfOpenPasses >= b.halfOpenNeed {
			b.state = Closed
			b.halfOpenPasses = 0
		}
	case Open:
		// Shouldn't happen since Allow() gates calls, but be defensive.
		b.state = HalfOpen
		b.halfOpenPasses = 1
	}
}

// Failure records a failed call, opening the breaker once the
// consecutive-failure threshold is reached.
func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == HalfOpen {
		b.state = Open
		b.openedAt = time.Now()
		b.consecFails = 0
		b.halfOpenPasses = 0
		return
	}
	b.consecFails++
	if b.consecFails >= b.failThreshold {
		b.state = Open
		b.openedAt = time.Now()
	}
}

// Do executes fn if the breaker allows it, recording success/failure.
// While open, Do returns an hiveerr.Unavailable error without invoking
// fn, so the dependency is never touched.
func (b *Breaker) Do(op string, fn func() error) error {
	if !b.Allow() {
		return hiveerr.Unavailable(op, errBreakerOpen)
	}
	if err := fn(); err != nil {
		b.Failure()
		return err
	}
	b.Success()
	return nil
}

var errBreakerOpen = breakerOpenErr{}

type breakerOpenErr struct{}

func (breakerOpenErr) Error() string { return "circuit breaker open" }
