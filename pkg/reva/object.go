package reva

import (
	"math"
	"reflect"
	"sync"
)

// cell is one boxed reactive slot: the stored value plus the dep that
// tracks its readers.
type cell struct {
	dep   *Dep
	value any

	// shallow suppresses deep observation of assigned values. Used for
	// props on non-root instances, where the parent owns the value's deep
	// instrumentation.
	shallow bool
}

// Object is a keyed reactive container. Each key maps to a boxed cell; the
// container itself carries an Observer whose dep fires on structural change
// (key added or removed).
//
// Reads during an active evaluation attach the reading watcher to the cell's
// dep. Writes that change a value notify the cell's dep; writes that add or
// remove keys notify the container dep.
type Object struct {
	obs *Observer

	mu    sync.RWMutex
	cells map[string]*cell
	keys  []string // insertion order, kept stable for deterministic walks
}

// NewObject creates an empty observed Object.
func NewObject() *Object {
	o := &Object{cells: make(map[string]*cell)}
	o.obs = newObserver(o)
	emitObserverInstalled("object")
	return o
}

// Observer returns the container-level observer.
func (o *Object) Observer() *Observer {
	return o.obs
}

// Get returns the value stored under key, attributing the read to the
// current evaluation. Reading a key that holds a nested container also
// registers the container's dep, so structural-change trackers re-run when
// the nested value gains or loses keys.
func (o *Object) Get(key string) any {
	o.mu.RLock()
	c := o.cells[key]
	o.mu.RUnlock()

	if c == nil {
		// Absent keys are not tracked per-slot; depend on the container so
		// a later $set of this key re-runs the reader.
		o.obs.dep.Depend()
		return nil
	}

	value := c.value
	if activeEvaluator() != nil {
		c.dep.Depend()
		if child := containerObserverOf(value); child != nil {
			child.dep.Depend()
			if arr, ok := value.(*Array); ok {
				dependArray(arr)
			}
		}
	}
	return value
}

// Has reports whether key exists, tracked through the container dep.
func (o *Object) Has(key string) bool {
	o.obs.dep.Depend()

	o.mu.RLock()
	defer o.mu.RUnlock()
	_, ok := o.cells[key]
	return ok
}

// Keys returns the keys in insertion order, tracked through the container
// dep so enumerating watchers re-run on structural change.
func (o *Object) Keys() []string {
	o.obs.dep.Depend()

	o.mu.RLock()
	defer o.mu.RUnlock()
	keys := make([]string, len(o.keys))
	copy(keys, o.keys)
	return keys
}

// Len returns the number of keys, tracked through the container dep.
func (o *Object) Len() int {
	o.obs.dep.Depend()

	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.cells)
}

// Set stores value under key. Writing a value identical to the current one
// (strict equality, NaN equal to NaN) is a no-op. Writing a new value to an
// existing key notifies the cell's dep; writing to an absent key installs a
// new cell and notifies the container dep, which is the sanctioned way to
// add keys after observation.
func (o *Object) Set(key string, value any) {
	o.mu.Lock()
	c := o.cells[key]
	if c == nil {
		c = &cell{dep: newDep(), value: observeValue(value)}
		o.cells[key] = c
		o.keys = append(o.keys, key)
		o.mu.Unlock()

		emitCellWrite(c.dep.id, key)
		o.obs.dep.Notify()
		return
	}

	if sameValue(c.value, value) {
		o.mu.Unlock()
		return
	}
	if !c.shallow {
		value = observeValue(value)
	}
	c.value = value
	dep := c.dep
	o.mu.Unlock()

	emitCellWrite(dep.id, key)
	dep.Notify()
}

// Delete removes key and notifies the container dep. Removing an absent key
// is a no-op.
func (o *Object) Delete(key string) {
	o.mu.Lock()
	if _, ok := o.cells[key]; !ok {
		o.mu.Unlock()
		return
	}
	delete(o.cells, key)
	for i, k := range o.keys {
		if k == key {
			o.keys = append(o.keys[:i], o.keys[i+1:]...)
			break
		}
	}
	o.mu.Unlock()

	o.obs.dep.Notify()
}

// define installs a cell without firing notifications. Used at observation
// and state-initialization time, before anyone can have subscribed.
func (o *Object) define(key string, value any, shallow bool) {
	if !shallow {
		value = observeValue(value)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.cells[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.cells[key] = &cell{dep: newDep(), value: value, shallow: shallow}
}

// defineRaw installs a cell with a pre-observed value. Used by the observe
// walk, which resolves nested containers itself to stay cycle-safe.
func (o *Object) defineRaw(key string, value any) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.cells[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.cells[key] = &cell{dep: newDep(), value: value}
}

// cellDep returns the dep for a key's cell, or nil if absent. Test hook.
func (o *Object) cellDep(key string) *Dep {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if c := o.cells[key]; c != nil {
		return c.dep
	}
	return nil
}

// has reports key existence without attributing the read.
func (o *Object) has(key string) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	_, ok := o.cells[key]
	return ok
}

// Peek returns the value under key without attributing the read.
func (o *Object) Peek(key string) any {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if c := o.cells[key]; c != nil {
		return c.value
	}
	return nil
}

// GetString reads key as a string, returning "" for absent or mistyped values.
func (o *Object) GetString(key string) string {
	s, _ := o.Get(key).(string)
	return s
}

// GetInt reads key as an int, returning 0 for absent or mistyped values.
func (o *Object) GetInt(key string) int {
	switch v := o.Get(key).(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

// GetFloat reads key as a float64, returning 0 for absent or mistyped values.
func (o *Object) GetFloat(key string) float64 {
	switch v := o.Get(key).(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return 0
	}
}

// GetBool reads key as a bool, returning false for absent or mistyped values.
func (o *Object) GetBool(key string) bool {
	b, _ := o.Get(key).(bool)
	return b
}

// Unwrap returns a plain map copy of the object, one level deep.
// Nested containers are returned as-is. Untracked.
func (o *Object) Unwrap() map[string]any {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make(map[string]any, len(o.cells))
	for k, c := range o.cells {
		out[k] = c.value
	}
	return out
}

// sameValue reports whether two values are identical for the purpose of
// change suppression: strict equality for comparable types, with NaN
// considered equal to NaN. Uncomparable values always count as changed.
func sameValue(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	if fa, ok := floatValue(a); ok {
		fb, ok := floatValue(b)
		if !ok {
			return false
		}
		if math.IsNaN(fa) && math.IsNaN(fb) {
			return true
		}
		return fa == fb && reflect.TypeOf(a) == reflect.TypeOf(b)
	}

	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() || !va.Comparable() || !vb.Comparable() {
		return false
	}
	return va.Equal(vb)
}

func floatValue(v any) (float64, bool) {
	switch f := v.(type) {
	case float64:
		return f, true
	case float32:
		return float64(f), true
	default:
		return 0, false
	}
}
