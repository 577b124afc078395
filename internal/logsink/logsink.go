// Package logsink provides a batched, off-hot-path logging sink so
// protocol handlers never block on log I/O: producers append under one
// short lock and a background flusher writes to the underlying
// logrus.Logger on a ticker.
package logsink

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Entry is one buffered log line.
type Entry struct {
	Level  logrus.Level
	Msg    string
	Fields logrus.Fields
}

// Sink batches log entries behind a single lock and flushes them to the
// underlying logger on a ticker. Overflow silently drops entries rather
// than blocking the caller — a dropped log line is preferable to a
// stalled protocol handler.
type Sink struct {
	mu       sync.Mutex
	buf      []Entry
	capacity int
	logger   *logrus.Logger
	stop     chan struct{}
	wg       sync.WaitGroup
}

// New constructs a Sink with the given buffer capacity, flushing to
// logger every flushEvery.
func New(logger *logrus.Logger, capacity int, flushEvery time.Duration) *Sink {
	if capacity <= 0 {
		capacity = 1024
	}
	s := &Sink{logger: logger, capacity: capacity, stop: make(chan struct{})}
	s.wg.Add(1)
	go s.run(flushEvery)
	return s
}

// Log buffers an entry. If the buffer is full, the entry is dropped.
func (s *Sink) Log(level logrus.Level, msg string, fields logrus.Fields) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.buf) >= s.capacity {
		return
	}
	s.buf = append(s.buf, Entry{Level: level, Msg: msg, Fields: fields})
}

func (s *Sink) run(flushEvery time.Duration) {
	defer s.wg.Done()
	ticker := time.NewTicker(flushEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.flush()
		case <-s.stop:
			s.flush()
			return
		}
	}
}

func (s *Sink) flush() {
	s.mu.Lock()
	pending := s.buf
	s.buf = nil
	s.mu.Unlock()

	for _, e := range pending {
		entry := s.logger.WithFields(e.Fields)
		entry.Log(e.Level, e.Msg)
	}
}

// Stop flushes any remaining entries and stops the background flusher.
func (s *Sink) Stop() {
	close(s.stop)
	s.wg.Wait()
}
