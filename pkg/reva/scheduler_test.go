package reva

import (
	"testing"
)

func TestSchedulerDeduplicatesPerBatch(t *testing.T) {
	sched := NewBatchScheduler(nil)
	obj := NewObject()
	obj.define("x", 0, false)

	runs := 0
	NewWatcher(func() any {
		runs++
		return obj.Get("x")
	}, nil, WithScheduler(sched))
	if runs != 1 {
		t.Fatalf("expected initial run, got %d", runs)
	}

	// Three writes, one flush, one run.
	obj.Set("x", 1)
	obj.Set("x", 2)
	obj.Set("x", 3)
	if sched.Len() != 1 {
		t.Errorf("expected 1 queued watcher, got %d", sched.Len())
	}

	sched.Flush()
	if runs != 2 {
		t.Errorf("expected one coalesced run, got %d total", runs)
	}
}

func TestSchedulerFlushAscendingID(t *testing.T) {
	sched := NewBatchScheduler(nil)
	obj := NewObject()
	obj.define("x", 0, false)

	var order []string
	// Subscribe in reverse creation order relative to reads: both watchers
	// read the same slot; flush must run them by ascending id regardless of
	// notification order games.
	a := NewWatcher(func() any { return obj.Get("x") }, func(newVal, oldVal any) {
		order = append(order, "a")
	}, WithScheduler(sched))
	b := NewWatcher(func() any { return obj.Get("x") }, func(newVal, oldVal any) {
		order = append(order, "b")
	}, WithScheduler(sched))

	if a.ID() >= b.ID() {
		t.Fatal("ids must be creation-ordered")
	}

	obj.Set("x", 1)
	sched.Flush()

	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Errorf("expected [a b], got %v", order)
	}
}

func TestSchedulerMidFlushScheduling(t *testing.T) {
	sched := NewBatchScheduler(nil)
	obj := NewObject()
	obj.define("x", 0, false)
	obj.define("y", 0, false)

	var yVals []any
	NewWatcher(func() any { return obj.Get("x") }, func(newVal, oldVal any) {
		// Writing y from inside the flush schedules the y watcher into the
		// same flush.
		obj.Set("y", newVal)
	}, WithScheduler(sched))
	NewWatcher(func() any { return obj.Get("y") }, func(newVal, oldVal any) {
		yVals = append(yVals, newVal)
	}, WithScheduler(sched))

	obj.Set("x", 4)
	sched.Flush()

	if len(yVals) != 1 || yVals[0] != 4 {
		t.Errorf("watcher scheduled mid-flush should run in the same flush, got %v", yVals)
	}
}

func TestSchedulerCircularUpdateDropped(t *testing.T) {
	reporter := &recordingReporter{}
	sched := NewBatchScheduler(reporter)
	obj := NewObject()
	obj.define("x", 0, false)

	runs := 0
	NewWatcher(func() any { return obj.Get("x") }, func(newVal, oldVal any) {
		runs++
		// Self-perpetuating write.
		obj.Set("x", newVal.(int)+1)
	}, WithScheduler(sched))

	obj.Set("x", 1)
	sched.Flush()

	if runs < maxFlushRuns-1 || runs > maxFlushRuns+1 {
		t.Errorf("circular update should run up to the guard, got %d runs", runs)
	}
	if reporter.count() == 0 {
		t.Error("circular update should be reported")
	}

	// The scheduler recovers for the next batch.
	obj.Set("x", 1000)
	sched.Flush()
	if sched.Len() != 0 {
		t.Errorf("queue should be drained, got %d", sched.Len())
	}
}

func TestSchedulerBatchHelper(t *testing.T) {
	sched := NewBatchScheduler(nil)
	obj := NewObject()
	obj.define("a", 0, false)
	obj.define("b", 0, false)

	runs := 0
	var last int
	NewWatcher(func() any {
		runs++
		return obj.Get("a").(int) + obj.Get("b").(int)
	}, func(newVal, oldVal any) {
		last = newVal.(int)
	}, WithScheduler(sched))

	sched.Batch(func() {
		obj.Set("a", 10)
		obj.Set("b", 20)
	})

	if runs != 2 {
		t.Errorf("expected one coalesced re-run, got %d total", runs)
	}
	if last != 30 {
		t.Errorf("expected 30, got %d", last)
	}
}

func TestSchedulerMidFlushInsertBeforeQueuedTail(t *testing.T) {
	sched := NewBatchScheduler(nil)
	obj := NewObject()
	obj.define("x", 0, false)
	obj.define("y", 0, false)

	var order []string
	// a and c watch x; b watches y and sits between them by id. When a's
	// callback writes y mid-flush, b must run before c, not after it.
	NewWatcher(func() any { return obj.Get("x") }, func(newVal, oldVal any) {
		order = append(order, "a")
		obj.Set("y", newVal)
	}, WithScheduler(sched))
	NewWatcher(func() any { return obj.Get("y") }, func(newVal, oldVal any) {
		order = append(order, "b")
	}, WithScheduler(sched))
	NewWatcher(func() any { return obj.Get("x") }, func(newVal, oldVal any) {
		order = append(order, "c")
	}, WithScheduler(sched))

	obj.Set("x", 9)
	sched.Flush()

	if len(order) != 3 || order[0] != "a" || order[1] != "b" || order[2] != "c" {
		t.Errorf("expected [a b c], got %v", order)
	}
}
