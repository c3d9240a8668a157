package reva

import "fmt"

// watchConfig collects $watch options.
type watchConfig struct {
	deep      bool
	immediate bool
	sync      bool
}

// WatchOption configures a Watch call.
type WatchOption func(*watchConfig)

// WatchDeep re-runs the watcher on mutations nested anywhere below the
// watched value, not only on replacement of the value itself.
func WatchDeep() WatchOption {
	return func(c *watchConfig) { c.deep = true }
}

// WatchImmediate invokes the callback once synchronously right after
// creation, with the current value and a nil old value.
func WatchImmediate() WatchOption {
	return func(c *watchConfig) { c.immediate = true }
}

// WatchSync runs the callback inside the notification pass instead of the
// scheduler's next flush.
func WatchSync() WatchOption {
	return func(c *watchConfig) { c.sync = true }
}

// Watch creates a user watcher over a dotted path expression, a
// func(*Component) any getter, or a plain func() any getter. The returned
// function tears the watcher down; after it returns, the callback is never
// invoked again.
func (c *Component) Watch(expr any, handler WatchHandler, opts ...WatchOption) (func(), error) {
	cfg := watchConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	var fn func() any
	switch e := expr.(type) {
	case string:
		getter := parsePath(e)
		if getter == nil {
			err := fmt.Errorf("%w: %q", ErrUnwatchable, e)
			c.report(err, "$watch")
			return nil, err
		}
		fn = func() any { return getter(c) }
	case func(c *Component) any:
		fn = func() any { return e(c) }
	case func() any:
		fn = e
	default:
		err := fmt.Errorf("%w: %T", ErrUnwatchable, expr)
		c.report(err, "$watch")
		return nil, err
	}

	watcherOpts := []WatcherOption{
		User(), withComponent(c), WithReporter(c.reporter), WithScheduler(c.sched),
	}
	if cfg.deep {
		watcherOpts = append(watcherOpts, Deep())
	}
	if cfg.sync {
		watcherOpts = append(watcherOpts, Sync())
	}

	cb := func(newVal, oldVal any) { handler(c, newVal, oldVal) }
	w := NewWatcher(fn, cb, watcherOpts...)
	c.trackWatcher(w)

	if cfg.immediate {
		c.invokeImmediate(w, handler)
	}

	return func() { w.Teardown() }, nil
}

// invokeImmediate fires the initial callback under the same evaluator-stack
// and error-reporting discipline as data initialization: collection
// disabled, panics reported, initialization continues.
func (c *Component) invokeImmediate(w *Watcher, handler WatchHandler) {
	pushEvaluator(nil)
	defer popEvaluator()
	defer func() {
		if r := recover(); r != nil {
			c.report(recovered(ErrCallbackPanic, r), "immediate watch callback")
		}
	}()

	handler(c, w.Value(), nil)
}
