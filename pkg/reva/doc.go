// Package reva provides the reactive state core for the Reva framework.
//
// Plain data declarations become fine-grained reactive state: reading a slot
// during a tracked evaluation automatically subscribes the evaluating
// watcher, and writing a slot synchronously notifies exactly the watchers
// that read it on their last run. No explicit event wiring is involved.
//
// # Core Types
//
// Object and Array are reactive containers built by Observe from plain
// map[string]any / []any graphs:
//
//	ob := reva.Observe(map[string]any{"count": 0}, false)
//	data := ob.Value().(*reva.Object)
//	data.Get("count") // read (subscribes the active watcher)
//	data.Set("count", 5) // write (notifies subscribers)
//
// Watcher is the computation unit. Lazy watchers back computed properties
// and only re-evaluate on read-after-stale; sync watchers re-run inside the
// notification pass; everything else is handed to a Scheduler that flushes
// each distinct watcher once per batch, ascending by id.
//
// Component wires declared props, methods, data, computed, and watch
// namespaces into this machinery at construction time, with the visibility
// precedence props > methods > data > computed:
//
//	c := reva.New(reva.Options{
//	    Data: map[string]any{"count": 0},
//	    Computed: map[string]any{
//	        "double": reva.ComputedGetter(func(c *reva.Component) any {
//	            return c.Data().GetInt("count") * 2
//	        }),
//	    },
//	})
//	unwatch, _ := c.Watch("count", func(c *reva.Component, n, o any) {
//	    // runs when count changes
//	})
//
// # Failure Model
//
// Nothing in this package aborts the process. Configuration mistakes
// (colliding keys, nil getters, setter-less computed writes) and panicking
// user code (producers, getters, callbacks) are reported through the
// ErrorReporter collaborator and degrade to safe fallbacks; the evaluator
// stack stays balanced on every exit path.
//
// # Thread Safety
//
// Containers and deps are safe for concurrent access. Dependency tracking
// is per-goroutine: an evaluation attributes reads only on the goroutine it
// runs on.
package reva
