package reva

import "sync"

// Dep is the subscriber registry for one reactive slot or container.
// Every boxed cell owns one Dep, and every observed Object or Array owns a
// container-level Dep that fires on structural change.
type Dep struct {
	id uint64

	// subs are the watchers subscribed to this dep, in subscription order.
	// A watcher appears at most once; both sides deduplicate by ID.
	subs []*Watcher

	// subMu protects the subs slice.
	subMu sync.RWMutex
}

// newDep allocates a dep with a fresh ID.
func newDep() *Dep {
	return &Dep{id: nextID()}
}

// ID returns the unique identifier for this dep.
func (d *Dep) ID() uint64 {
	return d.id
}

// Depend registers the currently-evaluating watcher as a subscriber and adds
// this dep to that watcher's new dependency set. Reads with no active
// watcher are unobserved no-ops.
func (d *Dep) Depend() {
	if w := activeEvaluator(); w != nil {
		w.addDep(d)
	}
}

// subscribe adds a watcher to this dep's subscribers.
// Deduplicates by watcher ID to prevent double-subscription.
func (d *Dep) subscribe(w *Watcher) {
	if w == nil {
		return
	}

	d.subMu.Lock()
	defer d.subMu.Unlock()

	wid := w.id
	for _, existing := range d.subs {
		if existing.id == wid {
			return
		}
	}

	d.subs = append(d.subs, w)
}

// unsubscribe removes a watcher from this dep's subscribers.
// Removal preserves subscription order so an in-flight Notify snapshot and
// later passes agree on ordering.
func (d *Dep) unsubscribe(w *Watcher) {
	if w == nil {
		return
	}

	d.subMu.Lock()
	defer d.subMu.Unlock()

	wid := w.id
	for i, existing := range d.subs {
		if existing.id == wid {
			d.subs = append(d.subs[:i], d.subs[i+1:]...)
			return
		}
	}
}

// Notify delivers a change to every current subscriber's update method.
// It iterates a stable snapshot taken at call start, so subscribers added or
// torn down mid-pass do not corrupt the pass; a watcher torn down before the
// pass started never appears in the snapshot.
func (d *Dep) Notify() {
	d.subMu.RLock()
	subs := make([]*Watcher, len(d.subs))
	copy(subs, d.subs)
	d.subMu.RUnlock()

	emitDepNotify(d.id, len(subs))

	for _, sub := range subs {
		sub.update()
	}
}

// subscriberCount reports the current number of subscribers. Test hook.
func (d *Dep) subscriberCount() int {
	d.subMu.RLock()
	defer d.subMu.RUnlock()
	return len(d.subs)
}
