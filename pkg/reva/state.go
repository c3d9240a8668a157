package reva

import (
	"fmt"
	"maps"
	"sort"
	"strings"
)

// PropSpec declares one accepted prop.
type PropSpec struct {
	// Default is the value used when the parent supplies none. A func() any
	// default is invoked per instance, so map and slice defaults are not
	// shared across instances.
	Default any

	// Required props missing from the supplied set are reported.
	Required bool

	// Validator, when set, rejects unacceptable supplied values.
	Validator func(value any) error
}

// PropValidator resolves a declared prop to its effective value, applying
// defaults and checks. Implementations report nothing themselves; returned
// errors are reported by the initializer and the value is still installed.
type PropValidator interface {
	Validate(key string, spec PropSpec, supplied map[string]any, c *Component) (any, error)
}

// DefaultPropValidator applies Default / Required / Validator semantics.
type DefaultPropValidator struct{}

func (DefaultPropValidator) Validate(key string, spec PropSpec, supplied map[string]any, c *Component) (any, error) {
	value, ok := supplied[key]
	if !ok {
		if spec.Required {
			return nil, fmt.Errorf("reva: missing required prop %q", key)
		}
		if def, isFunc := spec.Default.(func() any); isFunc {
			return def(), nil
		}
		return spec.Default, nil
	}

	if spec.Validator != nil {
		if err := spec.Validator(value); err != nil {
			return value, fmt.Errorf("reva: invalid prop %q: %w", key, err)
		}
	}
	return value, nil
}

// isReserved reports whether a key collides with the reserved instance
// surface ('$' and '_' prefixes).
func isReserved(key string) bool {
	return strings.HasPrefix(key, "$") || strings.HasPrefix(key, "_")
}

// sortedKeys gives declaration maps a deterministic initialization order.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// initState wires the declared namespaces into the reactive core. The phase
// order is fixed — props, methods, data, computed, watch — because each
// phase validates its keys against the namespaces built before it.
func (c *Component) initState(opts Options) {
	c.initProps(opts)
	c.initMethods(opts)
	c.initData(opts)
	c.initComputed(opts)
	c.initWatch(opts)
}

// initProps resolves each declared prop through the validation collaborator
// and installs it as a reactive slot in the props store. On non-root
// instances the prop's own value is not deep-observed: its deep
// instrumentation belongs to the parent that owns the value.
func (c *Component) initProps(opts Options) {
	c.props = NewObject()
	shallow := c.parent != nil

	for _, key := range sortedKeys(opts.Props) {
		if isReserved(key) {
			c.report(fmt.Errorf("%w: prop %q", ErrReservedKey, key), "props init")
			continue
		}

		value, err := c.validator.Validate(key, opts.Props[key], opts.PropsData, c)
		if err != nil {
			c.report(err, "props init")
		}
		c.props.define(key, value, shallow)

		if _, taken := c.proxy[key]; !taken {
			c.proxy[key] = nsProps
		}
	}
}

// initMethods validates each declared method and assigns it directly —
// plain assignment, no accessor, no notification on replacement.
func (c *Component) initMethods(opts Options) {
	for _, key := range sortedKeys(opts.Methods) {
		m := opts.Methods[key]
		if m == nil {
			c.report(fmt.Errorf("%w: method %q", ErrNotCallable, key), "methods init")
			continue
		}
		if isReserved(key) {
			c.report(fmt.Errorf("%w: method %q", ErrReservedKey, key), "methods init")
			continue
		}
		if c.proxy[key] == nsProps {
			c.report(fmt.Errorf("%w: method %q already declared as a prop", ErrKeyCollision, key), "methods init")
			continue
		}

		c.methods[key] = m
		c.proxy[key] = nsMethods
	}
}

// initData resolves the data source, screens its keys against the
// higher-priority namespaces, observes the result as root data, and proxies
// the surviving keys onto the instance.
func (c *Component) initData(opts Options) {
	raw := c.resolveData(opts.Data)

	for _, key := range sortedKeys(raw) {
		switch c.proxy[key] {
		case nsMethods:
			// Methods win on the instance surface; the slot stays
			// reachable through Data().
			c.report(fmt.Errorf("%w: data key %q already declared as a method", ErrKeyCollision, key), "data init")
		case nsProps:
			// Props win outright; the data shadow is discarded.
			c.report(fmt.Errorf("%w: data key %q already declared as a prop", ErrKeyCollision, key), "data init")
			delete(raw, key)
		}
	}

	ob := Observe(raw, true)
	c.data = ob.Value().(*Object)

	for _, key := range c.data.Keys() {
		if isReserved(key) {
			continue
		}
		if _, taken := c.proxy[key]; !taken {
			c.proxy[key] = nsData
		}
	}
}

// resolveData turns the declared data source into a plain map. Producers
// run with dependency collection disabled and inside a recoverable boundary:
// a panicking producer is reported and the instance falls back to empty
// data.
func (c *Component) resolveData(src any) map[string]any {
	switch data := src.(type) {
	case nil:
		return map[string]any{}
	case map[string]any:
		// Collision screening edits the resolved map, so work on a copy
		// rather than the caller's literal.
		return maps.Clone(data)
	case DataFunc:
		return c.callDataFunc(data)
	case func(c *Component) map[string]any:
		return c.callDataFunc(data)
	case func() map[string]any:
		return c.callDataFunc(func(*Component) map[string]any { return data() })
	default:
		c.report(fmt.Errorf("%w: got %T", ErrBadData, src), "data init")
		return map[string]any{}
	}
}

func (c *Component) callDataFunc(fn DataFunc) (result map[string]any) {
	pushEvaluator(nil)
	defer popEvaluator()
	defer func() {
		if r := recover(); r != nil {
			c.report(recovered(ErrGetterPanic, r), "data producer")
			result = map[string]any{}
		}
	}()

	result = fn(c)
	if result == nil {
		result = map[string]any{}
	}
	return result
}

// initComputed creates one lazy watcher per computed key and routes the key
// through the proxy. Colliding keys are reported and skipped, never
// silently overwritten.
func (c *Component) initComputed(opts Options) {
	for _, key := range sortedKeys(opts.Computed) {
		getter, setter := normalizeComputed(opts.Computed[key])
		if getter == nil {
			c.report(fmt.Errorf("%w: computed %q has no getter", ErrNotCallable, key), "computed init")
			continue
		}
		if kind, taken := c.proxy[key]; taken {
			c.report(fmt.Errorf("%w: computed %q already declared in %s", ErrKeyCollision, key, kind), "computed init")
			continue
		}
		if isReserved(key) {
			c.report(fmt.Errorf("%w: computed %q", ErrReservedKey, key), "computed init")
			continue
		}

		get := getter
		w := NewWatcher(
			func() any { return get(c) },
			nil,
			Lazy(), withComponent(c), WithReporter(c.reporter),
		)
		c.trackWatcher(w)

		c.computedWatchers[key] = w
		if setter != nil {
			c.computedSetters[key] = setter
		}
		c.proxy[key] = nsComputed
	}
}

// normalizeComputed accepts the getter-only and spec forms of a computed
// declaration.
func normalizeComputed(entry any) (ComputedGetter, ComputedSetter) {
	switch decl := entry.(type) {
	case ComputedGetter:
		return decl, nil
	case func(c *Component) any:
		return decl, nil
	case ComputedSpec:
		return decl.Get, decl.Set
	default:
		return nil, nil
	}
}

// initWatch normalizes each declared watch entry into concrete
// (key, handler, options) requests and creates a user watcher for each.
func (c *Component) initWatch(opts Options) {
	for _, key := range sortedKeys(opts.Watch) {
		c.addDeclaredWatch(key, opts.Watch[key], false, false)
	}
}

// addDeclaredWatch recursively unpacks a watch declaration. Descriptor
// options accumulate so a WatchSpec wrapping a handler list applies to every
// handler in the list.
func (c *Component) addDeclaredWatch(key string, entry any, deep, immediate bool) {
	switch decl := entry.(type) {
	case WatchHandler:
		c.createDeclaredWatch(key, decl, deep, immediate)
	case func(c *Component, newVal, oldVal any):
		c.createDeclaredWatch(key, decl, deep, immediate)
	case string:
		m := c.methods[decl]
		if m == nil {
			c.report(fmt.Errorf("%w: %q for watch %q", ErrUnknownMethod, decl, key), "watch init")
			return
		}
		c.createDeclaredWatch(key, func(comp *Component, newVal, oldVal any) {
			m(comp, newVal, oldVal)
		}, deep, immediate)
	case WatchSpec:
		c.addDeclaredWatch(key, decl.Handler, deep || decl.Deep, immediate || decl.Immediate)
	case []any:
		for _, h := range decl {
			c.addDeclaredWatch(key, h, deep, immediate)
		}
	default:
		c.report(fmt.Errorf("%w: watch %q handler is %T", ErrUnwatchable, key, entry), "watch init")
	}
}

func (c *Component) createDeclaredWatch(key string, handler WatchHandler, deep, immediate bool) {
	var watchOpts []WatchOption
	if deep {
		watchOpts = append(watchOpts, WatchDeep())
	}
	if immediate {
		watchOpts = append(watchOpts, WatchImmediate())
	}
	if _, err := c.Watch(key, handler, watchOpts...); err != nil {
		c.report(err, "watch init")
	}
}
