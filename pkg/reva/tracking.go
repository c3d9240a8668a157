package reva

import (
	"runtime"
	"sync"
)

// evalContext holds the active-evaluator stack for one goroutine.
// Reading a reactive slot attributes the read to the watcher on top of the
// stack; a nil top (or an empty stack) means reads are unobserved no-ops.
//
// The stack must nest strictly: every push is paired with a pop on every
// exit path, including panics. Callers go through withEvaluator or the
// paired pushEvaluator/popEvaluator helpers, never touch the slice directly.
type evalContext struct {
	stack []*Watcher
}

// evalContexts stores per-goroutine evaluation contexts.
// Using sync.Map for concurrent access from multiple goroutines.
var evalContexts sync.Map

// getGoroutineID returns a unique identifier for the current goroutine.
// This uses the runtime stack to extract the goroutine ID.
// Note: This is an implementation detail and should not be relied upon externally.
func getGoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)

	// The stack starts with "goroutine <id> "
	var id uint64
	for i := 10; i < n; i++ { // Skip "goroutine "
		if buf[i] == ' ' {
			break
		}
		id = id*10 + uint64(buf[i]-'0')
	}
	return id
}

// getEvalContext returns the evaluation context for the current goroutine,
// creating one on first use.
func getEvalContext() *evalContext {
	gid := getGoroutineID()

	if ctx, ok := evalContexts.Load(gid); ok {
		return ctx.(*evalContext)
	}

	ctx := &evalContext{}
	evalContexts.Store(gid, ctx)
	return ctx
}

// activeEvaluator returns the watcher currently attributing reads,
// or nil when no tracked evaluation is running.
func activeEvaluator() *Watcher {
	ctx := getEvalContext()
	if len(ctx.stack) == 0 {
		return nil
	}
	return ctx.stack[len(ctx.stack)-1]
}

// pushEvaluator makes w the current evaluator. Pushing nil opens an
// untracked scope: reads inside it attach to nothing, and the previous
// evaluator resumes after the matching popEvaluator.
func pushEvaluator(w *Watcher) {
	ctx := getEvalContext()
	ctx.stack = append(ctx.stack, w)
}

// popEvaluator restores the previous evaluator. Pop on an empty stack is a
// bug in this package, not in user code; it panics rather than corrupting
// attribution silently.
func popEvaluator() {
	ctx := getEvalContext()
	if len(ctx.stack) == 0 {
		panic("reva: evaluator stack underflow")
	}
	ctx.stack[len(ctx.stack)-1] = nil
	ctx.stack = ctx.stack[:len(ctx.stack)-1]
}

// withEvaluator runs fn with w as the current evaluator, restoring the
// previous evaluator on every exit path including panics.
func withEvaluator(w *Watcher, fn func()) {
	pushEvaluator(w)
	defer popEvaluator()
	fn()
}

// Untracked runs fn without attributing reads to any watcher.
// Useful inside a watch callback when a value is needed without creating
// a dependency edge.
func Untracked(fn func()) {
	withEvaluator(nil, fn)
}
