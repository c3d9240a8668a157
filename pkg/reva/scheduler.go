package reva

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Scheduler receives non-lazy, non-sync watchers whose deps changed.
// The core's contract toward it: deliver Schedule calls, possibly many per
// watcher; the scheduler deduplicates by watcher id per batch and flushes
// in ascending id order.
type Scheduler interface {
	Schedule(w *Watcher)
}

// maxFlushRuns bounds how often one watcher may re-enter a single flush
// before it is dropped as a circular update.
const maxFlushRuns = 100

// BatchScheduler queues watchers and runs each distinct watcher id at most
// once per flush, in ascending id order — parents before children, user
// watchers before the render watchers created after them.
//
// Flushes are explicit: the embedding runtime calls Flush at its batch
// boundary (end of an event tick, end of a test step).
type BatchScheduler struct {
	mu       sync.Mutex
	queue    []*Watcher
	has      map[uint64]bool
	flushing bool
	index    int
	circular map[uint64]int

	reporter ErrorReporter
}

// NewBatchScheduler creates an empty scheduler. A nil reporter falls back
// to slog.
func NewBatchScheduler(reporter ErrorReporter) *BatchScheduler {
	if reporter == nil {
		reporter = NewSlogReporter(nil)
	}
	return &BatchScheduler{
		has:      make(map[uint64]bool),
		circular: make(map[uint64]int),
		reporter: reporter,
	}
}

// Schedule queues a watcher, idempotent per (batch, watcher id). A watcher
// scheduled while a flush is running is spliced into the unflushed tail at
// its id position, so the ascending-id contract holds mid-flush too.
func (s *BatchScheduler) Schedule(w *Watcher) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.has[w.id] {
		return
	}
	s.has[w.id] = true

	if !s.flushing {
		s.queue = append(s.queue, w)
		return
	}

	// s.index already points past the running watcher, so insertion at
	// s.index itself is legal: the new watcher then runs next.
	i := len(s.queue) - 1
	for i >= s.index && s.queue[i].id > w.id {
		i--
	}
	s.queue = append(s.queue[:i+1], append([]*Watcher{w}, s.queue[i+1:]...)...)
}

// Len returns the number of queued watchers.
func (s *BatchScheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Batch runs fn and flushes afterwards. Because queued watchers dedupe by
// id, any number of writes inside fn produce at most one run per affected
// watcher.
func (s *BatchScheduler) Batch(fn func()) {
	fn()
	s.Flush()
}

// Flush runs every queued watcher once, ascending by id. Watchers scheduled
// during the flush (a callback writing a slot another watcher reads) run in
// the same flush; a watcher re-entering more than maxFlushRuns times is
// reported as a circular update and dropped for this flush.
func (s *BatchScheduler) Flush() {
	s.mu.Lock()
	if s.flushing || len(s.queue) == 0 {
		s.mu.Unlock()
		return
	}
	s.flushing = true
	sort.Slice(s.queue, func(i, j int) bool { return s.queue[i].id < s.queue[j].id })
	s.mu.Unlock()

	start := time.Now()
	ran := 0

	for {
		s.mu.Lock()
		if s.index >= len(s.queue) {
			s.mu.Unlock()
			break
		}
		w := s.queue[s.index]
		s.index++
		// Allow re-scheduling of this id while it runs.
		delete(s.has, w.id)

		s.circular[w.id]++
		if s.circular[w.id] > maxFlushRuns {
			s.mu.Unlock()
			s.reporter.Report(
				fmt.Errorf("reva: circular update in watcher %d, dropping for this flush", w.id),
				w.comp, "scheduler flush")
			continue
		}
		s.mu.Unlock()

		w.run()
		ran++
	}

	s.mu.Lock()
	s.queue = s.queue[:0]
	s.index = 0
	clear(s.has)
	clear(s.circular)
	s.flushing = false
	s.mu.Unlock()

	emitSchedulerFlush(ran, time.Since(start))
}
