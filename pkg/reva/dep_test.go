package reva

import (
	"sync"
	"testing"
)

// recordingReporter captures reported errors for assertions.
type recordingReporter struct {
	mu       sync.Mutex
	errors   []error
	contexts []string
}

func (r *recordingReporter) Report(err error, comp *Component, context string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, err)
	r.contexts = append(r.contexts, context)
}

func (r *recordingReporter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.errors)
}

func TestDepUntrackedReadIsNoOp(t *testing.T) {
	obj := NewObject()
	obj.define("x", 1, false)

	// Read with no active evaluation.
	if got := obj.Get("x"); got != 1 {
		t.Errorf("expected 1, got %v", got)
	}
	if n := obj.cellDep("x").subscriberCount(); n != 0 {
		t.Errorf("untracked read should not subscribe, got %d subscribers", n)
	}
}

func TestDepTrackedReadCreatesEdge(t *testing.T) {
	obj := NewObject()
	obj.define("x", 1, false)

	w := NewWatcher(func() any { return obj.Get("x") }, nil)

	if n := obj.cellDep("x").subscriberCount(); n != 1 {
		t.Errorf("expected 1 subscriber after tracked read, got %d", n)
	}
	if w.Value() != 1 {
		t.Errorf("expected initial value 1, got %v", w.Value())
	}
}

func TestDepSubscribeDeduplicates(t *testing.T) {
	obj := NewObject()
	obj.define("x", 1, false)

	// Getter reads the same slot three times in one run.
	NewWatcher(func() any {
		obj.Get("x")
		obj.Get("x")
		return obj.Get("x")
	}, nil)

	if n := obj.cellDep("x").subscriberCount(); n != 1 {
		t.Errorf("expected 1 subscriber, got %d", n)
	}
}

func TestDepNotifyInvokesEachSubscriberOnce(t *testing.T) {
	obj := NewObject()
	obj.define("x", 1, false)

	runs := 0
	NewWatcher(func() any {
		runs++
		return obj.Get("x")
	}, nil, Sync())

	obj.Set("x", 2)

	if runs != 2 { // initial run + one notification
		t.Errorf("expected 2 runs, got %d", runs)
	}
}

func TestDepNotifySkipsEqualWrites(t *testing.T) {
	obj := NewObject()
	obj.define("x", 1, false)

	runs := 0
	NewWatcher(func() any {
		runs++
		return obj.Get("x")
	}, nil, Sync())

	obj.Set("x", 1)
	if runs != 1 {
		t.Errorf("identical write should not notify, got %d runs", runs)
	}
}

func TestDepNotifyNaNWriteIsNoOp(t *testing.T) {
	nan := func() float64 {
		var z float64
		return z / z
	}

	obj := NewObject()
	obj.define("x", nan(), false)

	runs := 0
	NewWatcher(func() any {
		runs++
		return obj.Get("x")
	}, nil, Sync())

	obj.Set("x", nan())
	if runs != 1 {
		t.Errorf("NaN-to-NaN write should not notify, got %d runs", runs)
	}
}

func TestDepNotifySnapshotToleratesMidPassTeardown(t *testing.T) {
	obj := NewObject()
	obj.define("x", 0, false)

	var second *Watcher
	firstCalls := 0
	secondCalls := 0

	// First subscriber tears down the second during the pass. The pass
	// iterates a stable snapshot, so removal mid-pass does not corrupt it;
	// the torn-down watcher simply no-ops when its turn comes.
	first := NewWatcher(func() any { return obj.Get("x") }, func(newVal, oldVal any) {
		firstCalls++
		second.Teardown()
	}, Sync())
	second = NewWatcher(func() any { return obj.Get("x") }, func(newVal, oldVal any) {
		secondCalls++
	}, Sync())

	obj.Set("x", 1)
	if firstCalls != 1 || secondCalls != 0 {
		t.Errorf("expected 1/0 calls in snapshot pass, got %d/%d", firstCalls, secondCalls)
	}

	obj.Set("x", 2)
	if secondCalls != 0 {
		t.Errorf("torn-down watcher must not be notified again, got %d calls", secondCalls)
	}
	if firstCalls != 2 {
		t.Errorf("surviving watcher should keep firing, got %d calls", firstCalls)
	}

	_ = first
}

func TestDepReentrantWriteDuringNotify(t *testing.T) {
	obj := NewObject()
	obj.define("x", 0, false)
	obj.define("y", 0, false)

	var yValues []any
	NewWatcher(func() any { return obj.Get("y") }, func(newVal, oldVal any) {
		yValues = append(yValues, newVal)
	}, Sync())

	// A setter invoked synchronously from inside a callback.
	NewWatcher(func() any { return obj.Get("x") }, func(newVal, oldVal any) {
		obj.Set("y", newVal)
	}, Sync())

	obj.Set("x", 7)

	if len(yValues) != 1 || yValues[0] != 7 {
		t.Errorf("expected y callback once with 7, got %v", yValues)
	}
}
