package reva

import (
	"sync"
	"time"
)

// Hooks receives instrumentation callbacks from the reactive core.
// All fields are optional; nil fields are skipped. Callbacks run
// synchronously on the mutating goroutine and must be cheap.
//
// Consumers register with RegisterHooks; the metrics, tracing, and devtools
// packages are the intended consumers.
type Hooks struct {
	// ObserverInstalled fires when a value graph node gets instrumented.
	// Kind is "object" or "array".
	ObserverInstalled func(kind string)

	// CellWrite fires when a reactive slot accepts a new value.
	CellWrite func(depID uint64, key string)

	// DepNotify fires when a dep delivers a change, with its fanout.
	DepNotify func(depID uint64, fanout int)

	// WatcherCreated and WatcherTorndown track watcher lifecycle.
	WatcherCreated  func(id uint64, lazy bool)
	WatcherTorndown func(id uint64)

	// WatcherRun fires after a watcher evaluation with its duration.
	// Failed is true when the getter panicked and was recovered.
	WatcherRun func(id uint64, d time.Duration, failed bool)

	// SchedulerFlush fires after a batch flush with the number of distinct
	// watchers run.
	SchedulerFlush func(n int, d time.Duration)
}

var (
	hooksMu   sync.RWMutex
	hookList  []*Hooks
	hooksLive bool
)

// RegisterHooks attaches an instrumentation consumer to the core.
// The returned function detaches it again; detaching is idempotent.
func RegisterHooks(h *Hooks) (remove func()) {
	if h == nil {
		return func() {}
	}

	hooksMu.Lock()
	hookList = append(hookList, h)
	hooksLive = true
	hooksMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			hooksMu.Lock()
			defer hooksMu.Unlock()
			for i, existing := range hookList {
				if existing == h {
					hookList = append(hookList[:i], hookList[i+1:]...)
					break
				}
			}
			hooksLive = len(hookList) > 0
		})
	}
}

// hooksEnabled is a fast-path check so the untraced case costs one
// unsynchronized bool read in the common paths.
func hooksEnabled() bool {
	hooksMu.RLock()
	live := hooksLive
	hooksMu.RUnlock()
	return live
}

func snapshotHooks() []*Hooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return hookList
}

func emitObserverInstalled(kind string) {
	if !hooksEnabled() {
		return
	}
	for _, h := range snapshotHooks() {
		if h.ObserverInstalled != nil {
			h.ObserverInstalled(kind)
		}
	}
}

func emitCellWrite(depID uint64, key string) {
	if !hooksEnabled() {
		return
	}
	for _, h := range snapshotHooks() {
		if h.CellWrite != nil {
			h.CellWrite(depID, key)
		}
	}
}

func emitDepNotify(depID uint64, fanout int) {
	if !hooksEnabled() {
		return
	}
	for _, h := range snapshotHooks() {
		if h.DepNotify != nil {
			h.DepNotify(depID, fanout)
		}
	}
}

func emitWatcherCreated(id uint64, lazy bool) {
	if !hooksEnabled() {
		return
	}
	for _, h := range snapshotHooks() {
		if h.WatcherCreated != nil {
			h.WatcherCreated(id, lazy)
		}
	}
}

func emitWatcherTorndown(id uint64) {
	if !hooksEnabled() {
		return
	}
	for _, h := range snapshotHooks() {
		if h.WatcherTorndown != nil {
			h.WatcherTorndown(id)
		}
	}
}

func emitWatcherRun(id uint64, d time.Duration, failed bool) {
	if !hooksEnabled() {
		return
	}
	for _, h := range snapshotHooks() {
		if h.WatcherRun != nil {
			h.WatcherRun(id, d, failed)
		}
	}
}

func emitSchedulerFlush(n int, d time.Duration) {
	if !hooksEnabled() {
		return
	}
	for _, h := range snapshotHooks() {
		if h.SchedulerFlush != nil {
			h.SchedulerFlush(n, d)
		}
	}
}
