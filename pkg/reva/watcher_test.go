package reva

import (
	"errors"
	"testing"
)

func TestLazyWatcherNeverRunsBeforeFirstRead(t *testing.T) {
	obj := NewObject()
	obj.define("x", 1, false)

	evals := 0
	w := NewWatcher(func() any {
		evals++
		return obj.Get("x")
	}, nil, Lazy())

	if evals != 0 {
		t.Errorf("lazy watcher must not evaluate at creation, got %d evals", evals)
	}
	if !w.Dirty() {
		t.Error("lazy watcher must start dirty")
	}
}

func TestLazyWatcherCoalescesNotifications(t *testing.T) {
	obj := NewObject()
	obj.define("x", 1, false)

	evals := 0
	w := NewWatcher(func() any {
		evals++
		return obj.Get("x").(int) * 2
	}, nil, Lazy())

	w.Evaluate()
	if evals != 1 || w.Value() != 2 {
		t.Fatalf("expected 1 eval with value 2, got %d evals, value %v", evals, w.Value())
	}

	// N changes while stale, then one read.
	obj.Set("x", 2)
	obj.Set("x", 3)
	obj.Set("x", 4)
	if !w.Dirty() {
		t.Fatal("watcher should be dirty after notifications")
	}
	if evals != 1 {
		t.Errorf("notifications alone must not evaluate, got %d evals", evals)
	}

	w.Evaluate()
	if evals != 2 || w.Value() != 8 {
		t.Errorf("expected exactly one re-evaluation yielding 8, got %d evals, value %v", evals, w.Value())
	}

	// Clean reads do not re-evaluate.
	if w.Dirty() {
		t.Error("watcher should be clean after evaluate")
	}
}

func TestWatcherDynamicDependencies(t *testing.T) {
	obj := NewObject()
	obj.define("useA", true, false)
	obj.define("a", "va", false)
	obj.define("b", "vb", false)

	w := NewWatcher(func() any {
		if obj.Get("useA").(bool) {
			return obj.Get("a")
		}
		return obj.Get("b")
	}, nil, Lazy())
	w.Evaluate()

	// After a run reading only a, changing b leaves the watcher clean.
	obj.Set("b", "vb2")
	if w.Dirty() {
		t.Error("change to unread slot must not dirty the watcher")
	}

	// Flip the branch; a subsequent run drops the a subscription.
	obj.Set("useA", false)
	if !w.Dirty() {
		t.Fatal("change to read slot must dirty the watcher")
	}
	w.Evaluate()
	if w.Value() != "vb2" {
		t.Errorf("expected vb2, got %v", w.Value())
	}

	if n := obj.cellDep("a").subscriberCount(); n != 0 {
		t.Errorf("stale dependency on a must be dropped, got %d subscribers", n)
	}
	obj.Set("a", "va2")
	if w.Dirty() {
		t.Error("change to dropped dependency must not dirty the watcher")
	}
}

func TestWatcherDependPropagatesToOuterEvaluation(t *testing.T) {
	obj := NewObject()
	obj.define("x", 1, false)

	inner := NewWatcher(func() any { return obj.Get("x").(int) + 1 }, nil, Lazy())

	outerRuns := 0
	NewWatcher(func() any {
		outerRuns++
		if inner.Dirty() {
			inner.Evaluate()
		}
		inner.Depend()
		return inner.Value()
	}, nil, Sync())

	if outerRuns != 1 {
		t.Fatalf("expected initial outer run, got %d", outerRuns)
	}

	// The outer watcher never read x directly; it must still re-run when x
	// changes, through the propagated subscription.
	obj.Set("x", 5)
	if outerRuns != 2 {
		t.Errorf("outer watcher should re-run via transitive subscription, got %d runs", outerRuns)
	}
}

func TestWatcherTeardown(t *testing.T) {
	obj := NewObject()
	obj.define("x", 1, false)

	calls := 0
	w := NewWatcher(func() any { return obj.Get("x") }, func(newVal, oldVal any) {
		calls++
	}, Sync())

	w.Teardown()
	obj.Set("x", 10)

	if calls != 0 {
		t.Errorf("torn-down watcher must never fire, got %d calls", calls)
	}
	if n := obj.cellDep("x").subscriberCount(); n != 0 {
		t.Errorf("teardown must unsubscribe, got %d subscribers", n)
	}

	// Idempotent.
	w.Teardown()
}

func TestWatcherGetterPanicKeepsPreviousValue(t *testing.T) {
	reporter := &recordingReporter{}
	obj := NewObject()
	obj.define("x", 1, false)
	obj.define("boom", false, false)

	w := NewWatcher(func() any {
		if obj.Get("boom").(bool) {
			panic("getter exploded")
		}
		return obj.Get("x")
	}, nil, Sync(), WithReporter(reporter))

	if w.Value() != 1 {
		t.Fatalf("expected initial value 1, got %v", w.Value())
	}

	obj.Set("boom", true)

	if w.Value() != 1 {
		t.Errorf("value must stay at previous state after getter panic, got %v", w.Value())
	}
	if reporter.count() != 1 {
		t.Errorf("expected 1 reported error, got %d", reporter.count())
	}
	if !errors.Is(reporter.errors[0], ErrGetterPanic) {
		t.Errorf("expected ErrGetterPanic, got %v", reporter.errors[0])
	}

	// The evaluator stack stayed balanced: a fresh evaluation still tracks.
	obj.Set("boom", false)
	if w.Value() != 1 {
		t.Errorf("recovered watcher should evaluate again, got %v", w.Value())
	}
	obj.Set("x", 3)
	if w.Value() != 3 {
		t.Errorf("tracking must survive a recovered panic, got %v", w.Value())
	}
}

func TestWatcherCallbackPanicReported(t *testing.T) {
	reporter := &recordingReporter{}
	obj := NewObject()
	obj.define("x", 1, false)

	NewWatcher(func() any { return obj.Get("x") }, func(newVal, oldVal any) {
		panic("callback exploded")
	}, Sync(), WithReporter(reporter))

	obj.Set("x", 2)

	if reporter.count() != 1 {
		t.Fatalf("expected 1 reported error, got %d", reporter.count())
	}
	if !errors.Is(reporter.errors[0], ErrCallbackPanic) {
		t.Errorf("expected ErrCallbackPanic, got %v", reporter.errors[0])
	}
}

func TestWatcherCallbackReceivesNewAndOld(t *testing.T) {
	obj := NewObject()
	obj.define("x", 1, false)

	var gotNew, gotOld any
	NewWatcher(func() any { return obj.Get("x") }, func(newVal, oldVal any) {
		gotNew, gotOld = newVal, oldVal
	}, Sync())

	obj.Set("x", 2)
	if gotNew != 2 || gotOld != 1 {
		t.Errorf("expected (2, 1), got (%v, %v)", gotNew, gotOld)
	}
}

func TestDeepWatcherSeesNestedMutation(t *testing.T) {
	ob := Observe(map[string]any{
		"profile": map[string]any{"name": "ada", "links": []any{"x"}},
	}, false)
	root := ob.Value().(*Object)

	calls := 0
	NewWatcher(func() any { return root.Get("profile") }, func(newVal, oldVal any) {
		calls++
	}, Sync(), Deep())

	root.Get("profile").(*Object).Set("name", "grace")
	if calls != 1 {
		t.Errorf("deep watcher should fire on nested write, got %d calls", calls)
	}

	root.Get("profile").(*Object).Get("links").(*Array).Push("y")
	if calls != 2 {
		t.Errorf("deep watcher should fire on nested array mutation, got %d calls", calls)
	}
}

func TestShallowWatcherIgnoresNestedMutation(t *testing.T) {
	ob := Observe(map[string]any{
		"profile": map[string]any{"name": "ada"},
	}, false)
	root := ob.Value().(*Object)

	calls := 0
	NewWatcher(func() any { return root.Get("profile") }, func(newVal, oldVal any) {
		calls++
	}, Sync())

	root.Get("profile").(*Object).Set("name", "grace")
	if calls != 0 {
		t.Errorf("shallow watcher must not fire on nested write, got %d calls", calls)
	}
}

func TestNestedEvaluationsAttributeCorrectly(t *testing.T) {
	obj := NewObject()
	obj.define("outer", 1, false)
	obj.define("inner", 2, false)

	inner := NewWatcher(func() any { return obj.Get("inner") }, nil, Lazy())

	outer := NewWatcher(func() any {
		v := obj.Get("outer")
		// Nested evaluation: inner's reads attach to inner, then outer
		// attribution resumes.
		inner.Evaluate()
		return v
	}, nil, Lazy())
	outer.Evaluate()

	if n := obj.cellDep("inner").subscriberCount(); n != 1 {
		t.Errorf("inner slot should have only the inner watcher, got %d", n)
	}
	if n := obj.cellDep("outer").subscriberCount(); n != 1 {
		t.Errorf("outer slot should have only the outer watcher, got %d", n)
	}

	obj.Set("inner", 3)
	if outer.Dirty() {
		t.Error("outer watcher must not be dirtied by inner-only dependency")
	}
	if !inner.Dirty() {
		t.Error("inner watcher should be dirty")
	}
}
