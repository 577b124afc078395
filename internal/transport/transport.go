// Package transport hosts the outbound side of the peer wire: a bounded
// queue in front of an opaque external send capability.
// Publish never blocks the protocol hot path; when the queue is full the
// message is dropped with a warning and the producer carries on. The
// send capability itself is an injected interface; a real deployment
// wires in whatever adapter fronts its network.
package transport

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"hivecoordinator/internal/breaker"
	"hivecoordinator/internal/hiveerr"
	"hivecoordinator/internal/logsink"
)

// Sender delivers one signed envelope's wire bytes to one peer. A real
// deployment wires in whatever adapter fronts its network; until then
// Unconfigured stands in.
type Sender interface {
	Send(ctx context.Context, peerID string, raw []byte) error
}

// SenderFunc adapts a plain function to Sender.
type SenderFunc func(ctx context.Context, peerID string, raw []byte) error

func (f SenderFunc) Send(ctx context.Context, peerID string, raw []byte) error {
	return f(ctx, peerID, raw)
}

var errNoTransport = errors.New("transport: no adapter configured")

// Unconfigured is the Sender used until a real transport adapter is
// wired in; every Send reports Unavailable.
type Unconfigured struct{}

func (Unconfigured) Send(context.Context, string, []byte) error {
	return hiveerr.Unavailable("transport.send", errNoTransport)
}

type item struct {
	peerID string
	raw    []byte
}

// Queue is the bounded outbound transport queue. A single drain
// goroutine pulls queued messages and pushes them through the circuit
// breaker into the Sender, so producers never wait on network I/O.
type Queue struct {
	sender      Sender
	br          *breaker.Breaker
	sink        *logsink.Sink
	sendTimeout time.Duration

	out     chan item
	stop    chan struct{}
	wg      sync.WaitGroup
	dropped atomic.Uint64
}

// NewQueue constructs a Queue with the given capacity and starts its
// drain goroutine. sink may be nil (drops are then counted but not
// logged).
func NewQueue(sender Sender, br *breaker.Breaker, sink *logsink.Sink, capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1024
	}
	q := &Queue{
		sender:      sender,
		br:          br,
		sink:        sink,
		sendTimeout: 10 * time.Second,
		out:         make(chan item, capacity),
		stop:        make(chan struct{}),
	}
	q.wg.Add(1)
	go q.run()
	return q
}

// Publish enqueues raw for delivery to peerID. It never blocks: when
// the queue is full the message is dropped, the drop counter advances,
// and a warning is logged. Returns false on drop.
func (q *Queue) Publish(peerID string, raw []byte) bool {
	select {
	case q.out <- item{peerID: peerID, raw: raw}:
		return true
	default:
		q.dropped.Add(1)
		q.warn("outbound queue full, message dropped", logrus.Fields{"peer": peerID})
		return false
	}
}

// Dropped reports how many messages Publish has dropped on overflow.
func (q *Queue) Dropped() uint64 { return q.dropped.Load() }

func (q *Queue) run() {
	defer q.wg.Done()
	for {
		select {
		case it := <-q.out:
			q.deliver(it)
		case <-q.stop:
			for {
				select {
				case it := <-q.out:
					q.deliver(it)
				default:
					return
				}
			}
		}
	}
}

func (q *Queue) deliver(it item) {
	err := q.br.Do("transport.send", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), q.sendTimeout)
		defer cancel()
		return q.sender.Send(ctx, it.peerID, it.raw)
	})
	if err != nil {
		q.warn("outbound send failed", logrus.Fields{"peer": it.peerID, "error": err.Error()})
	}
}

func (q *Queue) warn(msg string, fields logrus.Fields) {
	if q.sink != nil {
		q.sink.Log(logrus.WarnLevel, msg, fields)
	}
}

// Stop drains whatever is already queued and stops the drain goroutine.
// Publish calls racing Stop may be dropped.
func (q *Queue) Stop() {
	close(q.stop)
	q.wg.Wait()
}
