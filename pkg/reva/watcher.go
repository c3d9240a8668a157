package reva

import (
	"sync"
	"time"
)

// Callback receives a watcher's new and old values after a re-evaluation
// that produced a change.
type Callback func(newVal, oldVal any)

// Watcher is a subscriber and computation unit. It evaluates a getter,
// records exactly the deps read during that run, and re-runs when any of
// them notifies.
//
// Lazy watchers back computed properties: a notification only marks them
// dirty, and the next read coalesces any number of notifications into a
// single re-evaluation. Sync watchers re-run inside the notification pass.
// All other watchers are handed to the scheduler, whose contract is to flush
// each distinct watcher id at most once per batch, in ascending id order.
type Watcher struct {
	id   uint64
	comp *Component // nil for free watchers

	fn func() any
	cb Callback

	value any

	// deps is the dependency set from the last completed run; newDeps
	// accumulates during the current run and replaces deps afterwards,
	// dropping stale edges. Both deduplicate by dep id.
	depMu     sync.Mutex
	deps      []*Dep
	depIDs    map[uint64]struct{}
	newDeps   []*Dep
	newDepIDs map[uint64]struct{}

	dirty  bool // lazy only: value is stale
	lazy   bool
	sync   bool
	user   bool
	deep   bool
	active bool

	sched    Scheduler
	reporter ErrorReporter
}

// WatcherOption configures a watcher at creation.
type WatcherOption func(*Watcher)

// Lazy makes the watcher a computed-style unit: it is created dirty, never
// evaluates until read, and notifications only mark it stale.
func Lazy() WatcherOption {
	return func(w *Watcher) { w.lazy = true }
}

// Sync makes the watcher re-run inside the notification pass instead of
// being handed to the scheduler.
func Sync() WatcherOption {
	return func(w *Watcher) { w.sync = true }
}

// User marks the watcher as wrapping user-declared callbacks; it exists for
// reporting context only.
func User() WatcherOption {
	return func(w *Watcher) { w.user = true }
}

// Deep makes every evaluation traverse the produced value graph, so the
// watcher also re-runs on mutations nested anywhere below the watched slot.
func Deep() WatcherOption {
	return func(w *Watcher) { w.deep = true }
}

// WithScheduler routes non-lazy, non-sync updates to s.
func WithScheduler(s Scheduler) WatcherOption {
	return func(w *Watcher) { w.sched = s }
}

// WithReporter routes recovered user-code failures to r.
func WithReporter(r ErrorReporter) WatcherOption {
	return func(w *Watcher) { w.reporter = r }
}

// withComponent binds the watcher to its owning instance.
func withComponent(c *Component) WatcherOption {
	return func(w *Watcher) { w.comp = c }
}

// NewWatcher creates a watcher over fn. Non-lazy watchers evaluate
// immediately, establishing their initial dependency set; lazy watchers
// start dirty and unevaluated.
func NewWatcher(fn func() any, cb Callback, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		id:        nextID(),
		fn:        fn,
		cb:        cb,
		depIDs:    make(map[uint64]struct{}),
		newDepIDs: make(map[uint64]struct{}),
		active:    true,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.reporter == nil {
		w.reporter = NewSlogReporter(nil)
	}

	if w.lazy {
		w.dirty = true
	} else {
		if v, ok := w.get(); ok {
			w.value = v
		}
	}

	emitWatcherCreated(w.id, w.lazy)
	return w
}

// ID returns the watcher's creation-order id.
func (w *Watcher) ID() uint64 {
	return w.id
}

// Value returns the last evaluated value without re-evaluating.
func (w *Watcher) Value() any {
	return w.value
}

// get runs the getter with this watcher as the active evaluator and
// reconciles the dependency set afterwards. The evaluator stack is restored
// on every exit path; a panicking getter is reported and leaves the previous
// value in place (ok == false).
func (w *Watcher) get() (any, bool) {
	start := time.Now()

	pushEvaluator(w)
	value, err := w.invokeGetter()
	if err == nil && w.deep {
		// Traverse while this watcher is still the active evaluator so
		// every nested slot registers as a dependency.
		traverse(value)
	}
	popEvaluator()
	w.cleanupDeps()

	emitWatcherRun(w.id, time.Since(start), err != nil)

	if err != nil {
		w.report(err, "watcher getter")
		return nil, false
	}
	return value, true
}

// invokeGetter runs the user getter behind a recover boundary.
func (w *Watcher) invokeGetter() (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = recovered(ErrGetterPanic, r)
		}
	}()
	return w.fn(), nil
}

// addDep records that this run read dep, deduplicated by id both ways:
// the dep appears once in the new set, and the watcher subscribes at most
// once to the dep.
func (w *Watcher) addDep(d *Dep) {
	w.depMu.Lock()
	if _, ok := w.newDepIDs[d.id]; ok {
		w.depMu.Unlock()
		return
	}
	w.newDepIDs[d.id] = struct{}{}
	w.newDeps = append(w.newDeps, d)
	_, known := w.depIDs[d.id]
	w.depMu.Unlock()

	if !known {
		d.subscribe(w)
	}
}

// cleanupDeps reconciles the dependency set after a run: deps no longer read
// are unsubscribed, newly read ones kept. This makes the graph dynamic run
// to run.
func (w *Watcher) cleanupDeps() {
	w.depMu.Lock()
	var stale []*Dep
	for _, d := range w.deps {
		if _, ok := w.newDepIDs[d.id]; !ok {
			stale = append(stale, d)
		}
	}

	w.deps, w.newDeps = w.newDeps, w.deps[:0]
	w.depIDs, w.newDepIDs = w.newDepIDs, w.depIDs
	clear(w.newDepIDs)
	w.depMu.Unlock()

	for _, d := range stale {
		d.unsubscribe(w)
	}
}

// update is invoked by a dep's Notify. Lazy watchers are only marked stale;
// sync watchers re-run immediately; everything else is handed to the
// scheduler (or run inline when no scheduler is configured).
func (w *Watcher) update() {
	switch {
	case w.lazy:
		w.dirty = true
	case w.sync:
		w.run()
	case w.sched != nil:
		w.sched.Schedule(w)
	default:
		w.run()
	}
}

// run re-evaluates and invokes the callback with (new, old) if the value
// changed. Container values and deep watchers always count as changed: the
// mutation happened inside a structure the watcher still holds.
func (w *Watcher) run() {
	if !w.active {
		return
	}

	value, ok := w.get()
	if !ok {
		return
	}

	if !sameValue(value, w.value) || containerObserverOf(value) != nil || w.deep {
		old := w.value
		w.value = value
		w.invokeCallback(value, old)
	}
}

// invokeCallback calls the callback behind a recover boundary so a throwing
// user callback degrades to a report instead of aborting the notification
// pass.
func (w *Watcher) invokeCallback(newVal, oldVal any) {
	if w.cb == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			w.report(recovered(ErrCallbackPanic, r), "watcher callback")
		}
	}()
	w.cb(newVal, oldVal)
}

// Evaluate recomputes a lazy watcher's value and clears the dirty flag.
// Called by the computed-property getter on read-after-stale. A torn-down
// watcher keeps serving its last cached value: re-running the getter here
// would resubscribe it to its deps.
func (w *Watcher) Evaluate() {
	if !w.active {
		w.dirty = false
		return
	}
	if v, ok := w.get(); ok {
		w.value = v
	}
	w.dirty = false
}

// Dirty reports whether a lazy watcher needs re-evaluation before its value
// can be read.
func (w *Watcher) Dirty() bool {
	return w.dirty
}

// Depend propagates this lazy watcher's accumulated deps to the currently
// active evaluation, so an outer watcher reading a computed value
// transitively subscribes to everything the computed read.
func (w *Watcher) Depend() {
	w.depMu.Lock()
	deps := make([]*Dep, len(w.deps))
	copy(deps, w.deps)
	w.depMu.Unlock()

	for _, d := range deps {
		d.Depend()
	}
}

// Teardown unsubscribes from every currently-subscribed dep and marks the
// watcher inactive. It is idempotent and safe to call during an in-flight
// notification pass: the pass iterates a snapshot, and update on an
// inactive watcher is a no-op for every mode that could still observe it.
func (w *Watcher) Teardown() {
	if !w.active {
		return
	}
	w.active = false

	if w.comp != nil {
		w.comp.dropWatcher(w)
	}

	w.depMu.Lock()
	deps := w.deps
	w.deps = nil
	clear(w.depIDs)
	w.depMu.Unlock()

	for _, d := range deps {
		d.unsubscribe(w)
	}

	emitWatcherTorndown(w.id)
}

func (w *Watcher) report(err error, context string) {
	if w.reporter != nil {
		w.reporter.Report(err, w.comp, context)
	}
}
