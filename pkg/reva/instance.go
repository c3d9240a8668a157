package reva

import (
	"fmt"
	"sync"
)

// nsKind identifies which namespace a visible instance key routes to.
// Precedence is fixed: props > methods > data > computed. The routing table
// is built once during state initialization; each key maps to exactly one
// namespace.
type nsKind uint8

const (
	nsNone nsKind = iota
	nsProps
	nsMethods
	nsData
	nsComputed
)

func (k nsKind) String() string {
	switch k {
	case nsProps:
		return "props"
	case nsMethods:
		return "methods"
	case nsData:
		return "data"
	case nsComputed:
		return "computed"
	default:
		return "none"
	}
}

// Method is a component method. The receiver is bound at declaration time:
// invocations always get the owning component as first argument.
type Method func(c *Component, args ...any) any

// ComputedGetter computes a derived value. Reads inside it are tracked.
type ComputedGetter func(c *Component) any

// ComputedSetter receives writes to a computed key.
type ComputedSetter func(c *Component, value any)

// ComputedSpec declares a computed property with an explicit setter.
type ComputedSpec struct {
	Get ComputedGetter
	Set ComputedSetter
}

// WatchHandler receives change notifications for a watched expression.
type WatchHandler func(c *Component, newVal, oldVal any)

// WatchSpec declares a watch entry with options. Handler may be a
// WatchHandler, a method name, or a nested list of either.
type WatchSpec struct {
	Handler   any
	Deep      bool
	Immediate bool
}

// DataFunc produces a fresh data map per instance.
type DataFunc func(c *Component) map[string]any

// Options declares a component instance. All declaration maps are optional.
type Options struct {
	Name   string
	Parent *Component

	// Props declares accepted props; PropsData supplies the values passed
	// by the parent.
	Props     map[string]PropSpec
	PropsData map[string]any

	Methods map[string]Method

	// Data is a map[string]any or a DataFunc. Producers are invoked with
	// dependency collection disabled, inside a recoverable boundary.
	Data any

	// Computed entries are ComputedGetter values or ComputedSpec.
	Computed map[string]any

	// Watch entries are WatchHandler values, method-name strings,
	// WatchSpec descriptors, or []any lists of those.
	Watch map[string]any

	// Collaborators. Each is defaulted when nil: slog-backed reporting,
	// permissive prop validation, and a per-instance batch scheduler.
	Reporter  ErrorReporter
	Validator PropValidator
	Scheduler Scheduler
}

// Component is a reactive state instance. Its visible keys proxy into
// disjoint namespaces via a routing table built at construction; reads
// during an active evaluation register dependencies exactly as direct
// container reads do.
type Component struct {
	name   string
	parent *Component

	props *Object
	data  *Object

	methods          map[string]Method
	computedWatchers map[string]*Watcher
	computedSetters  map[string]ComputedSetter

	proxy map[string]nsKind

	watcherMu sync.Mutex
	watchers  []*Watcher

	reporter  ErrorReporter
	validator PropValidator
	sched     Scheduler

	destroyed bool
}

// New constructs a component instance, running state initialization in the
// fixed order props, methods, data, computed, watch. Later phases validate
// against the namespaces built by earlier ones.
func New(opts Options) *Component {
	c := &Component{
		name:             opts.Name,
		parent:           opts.Parent,
		methods:          make(map[string]Method),
		computedWatchers: make(map[string]*Watcher),
		computedSetters:  make(map[string]ComputedSetter),
		proxy:            make(map[string]nsKind),
		reporter:         opts.Reporter,
		validator:        opts.Validator,
		sched:            opts.Scheduler,
	}
	if c.reporter == nil {
		c.reporter = NewSlogReporter(nil)
	}
	if c.validator == nil {
		c.validator = DefaultPropValidator{}
	}
	if c.sched == nil {
		c.sched = NewBatchScheduler(c.reporter)
	}

	c.initState(opts)
	return c
}

// Name returns the component's declared name.
func (c *Component) Name() string {
	return c.name
}

// Get reads a visible instance key through the namespace routing table.
// Reads during an active evaluation create dependency edges; unknown keys
// return nil without tracking.
func (c *Component) Get(key string) any {
	switch c.proxy[key] {
	case nsProps:
		return c.props.Get(key)
	case nsData:
		return c.data.Get(key)
	case nsComputed:
		return c.computedValue(key)
	case nsMethods:
		return c.BoundMethod(key)
	default:
		return nil
	}
}

// Set writes a visible instance key. Data and prop slots follow reactive
// set semantics; computed keys dispatch to their declared setter or report;
// method keys and unknown keys are rejected with a report.
func (c *Component) Set(key string, value any) {
	switch c.proxy[key] {
	case nsData:
		c.data.Set(key, value)
	case nsProps:
		// Props are owned by the parent; direct mutation works but is
		// reported so the overwrite-on-next-render hazard is visible.
		c.report(fmt.Errorf("reva: direct mutation of prop %q", key), "prop write")
		c.props.Set(key, value)
	case nsComputed:
		if setter := c.computedSetters[key]; setter != nil {
			setter(c, value)
			return
		}
		c.report(fmt.Errorf("%w: %q", ErrComputedNoSetter, key), "computed write")
	case nsMethods:
		c.report(fmt.Errorf("%w: cannot assign over method %q", ErrKeyCollision, key), "instance write")
	default:
		c.report(fmt.Errorf("%w: %q", ErrRootAdd, key), "instance write")
	}
}

// computedValue implements the computed accessor: evaluate on
// read-after-stale, propagate deps to any outer evaluation, return the
// cached value.
func (c *Component) computedValue(key string) any {
	w := c.computedWatchers[key]
	if w == nil {
		return nil
	}
	if w.Dirty() {
		w.Evaluate()
	}
	if activeEvaluator() != nil {
		w.Depend()
	}
	return w.Value()
}

// Call invokes a declared method with the component bound as receiver,
// behind a recover boundary.
func (c *Component) Call(name string, args ...any) (result any) {
	m := c.methods[name]
	if m == nil {
		c.report(fmt.Errorf("%w: %q", ErrUnknownMethod, name), "method call")
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			c.report(recovered(ErrCallbackPanic, r), "method "+name)
			result = nil
		}
	}()
	return m(c, args...)
}

// BoundMethod returns a declared method with the receiver bound, or nil.
func (c *Component) BoundMethod(name string) func(args ...any) any {
	if c.methods[name] == nil {
		return nil
	}
	return func(args ...any) any {
		return c.Call(name, args...)
	}
}

// Data exposes the internal data store. Mutate through Set/the store's own
// reactive surface; replacing the store itself is not supported.
func (c *Component) Data() *Object {
	return c.data
}

// Props exposes the internal props store.
func (c *Component) Props() *Object {
	return c.props
}

// Scheduler returns the scheduler this instance hands its watchers to.
func (c *Component) Scheduler() Scheduler {
	return c.sched
}

// trackWatcher registers a watcher for teardown at Destroy.
func (c *Component) trackWatcher(w *Watcher) {
	c.watcherMu.Lock()
	defer c.watcherMu.Unlock()
	c.watchers = append(c.watchers, w)
}

// dropWatcher removes a torn-down watcher from the teardown list.
func (c *Component) dropWatcher(w *Watcher) {
	c.watcherMu.Lock()
	defer c.watcherMu.Unlock()
	for i, existing := range c.watchers {
		if existing == w {
			c.watchers = append(c.watchers[:i], c.watchers[i+1:]...)
			return
		}
	}
}

// Destroy tears down every watcher this instance created, including
// computed watchers, and releases the root-data marker. Idempotent.
func (c *Component) Destroy() {
	if c.destroyed {
		return
	}
	c.destroyed = true

	c.watcherMu.Lock()
	watchers := make([]*Watcher, len(c.watchers))
	copy(watchers, c.watchers)
	c.watcherMu.Unlock()

	for _, w := range watchers {
		w.Teardown()
	}

	if c.data != nil && c.data.obs.rootCount > 0 {
		c.data.obs.rootCount--
	}
}

func (c *Component) report(err error, context string) {
	c.reporter.Report(err, c, context)
}
