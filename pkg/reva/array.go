package reva

import (
	"sort"
	"sync"
)

// Array is an indexed reactive container. Index reads are tracked through
// the container dep rather than per-slot, so any mutation re-runs every
// reader; the seven classic mutators notify the container dep and observe
// newly inserted elements.
type Array struct {
	obs *Observer

	mu    sync.RWMutex
	items []any
}

// NewArray creates an empty observed Array.
func NewArray() *Array {
	a := &Array{}
	a.obs = newObserver(a)
	emitObserverInstalled("array")
	return a
}

// Observer returns the container-level observer.
func (a *Array) Observer() *Observer {
	return a.obs
}

// Len returns the element count, tracked through the container dep.
func (a *Array) Len() int {
	a.obs.dep.Depend()

	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.items)
}

// At returns the element at index i, tracked through the container dep.
// Out-of-range reads return nil.
func (a *Array) At(i int) any {
	a.obs.dep.Depend()

	a.mu.RLock()
	var value any
	if i >= 0 && i < len(a.items) {
		value = a.items[i]
	}
	a.mu.RUnlock()

	if activeEvaluator() != nil {
		if child := containerObserverOf(value); child != nil {
			child.dep.Depend()
			if arr, ok := value.(*Array); ok {
				dependArray(arr)
			}
		}
	}
	return value
}

// Slice returns a copy of the elements, tracked through the container dep.
func (a *Array) Slice() []any {
	a.obs.dep.Depend()

	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]any, len(a.items))
	copy(out, a.items)
	return out
}

// Push appends elements and notifies the container dep.
// Inserted elements become observed.
func (a *Array) Push(values ...any) {
	if len(values) == 0 {
		return
	}
	a.mu.Lock()
	for _, v := range values {
		a.items = append(a.items, observeValue(v))
	}
	a.mu.Unlock()

	a.obs.dep.Notify()
}

// Pop removes and returns the last element.
func (a *Array) Pop() any {
	a.mu.Lock()
	if len(a.items) == 0 {
		a.mu.Unlock()
		return nil
	}
	v := a.items[len(a.items)-1]
	a.items = a.items[:len(a.items)-1]
	a.mu.Unlock()

	a.obs.dep.Notify()
	return v
}

// Shift removes and returns the first element.
func (a *Array) Shift() any {
	a.mu.Lock()
	if len(a.items) == 0 {
		a.mu.Unlock()
		return nil
	}
	v := a.items[0]
	a.items = append(a.items[:0], a.items[1:]...)
	a.mu.Unlock()

	a.obs.dep.Notify()
	return v
}

// Unshift prepends elements and notifies the container dep.
// Inserted elements become observed.
func (a *Array) Unshift(values ...any) {
	if len(values) == 0 {
		return
	}
	a.mu.Lock()
	observed := make([]any, 0, len(values)+len(a.items))
	for _, v := range values {
		observed = append(observed, observeValue(v))
	}
	a.items = append(observed, a.items...)
	a.mu.Unlock()

	a.obs.dep.Notify()
}

// Splice removes deleteCount elements starting at start, inserts values in
// their place, and returns the removed elements. Indices are clamped to the
// valid range. Inserted elements become observed.
func (a *Array) Splice(start, deleteCount int, values ...any) []any {
	a.mu.Lock()
	n := len(a.items)
	if start < 0 {
		start = 0
	}
	if start > n {
		start = n
	}
	if deleteCount < 0 {
		deleteCount = 0
	}
	if start+deleteCount > n {
		deleteCount = n - start
	}

	removed := make([]any, deleteCount)
	copy(removed, a.items[start:start+deleteCount])

	observed := make([]any, 0, len(values))
	for _, v := range values {
		observed = append(observed, observeValue(v))
	}

	tail := make([]any, n-start-deleteCount)
	copy(tail, a.items[start+deleteCount:])
	a.items = append(a.items[:start], append(observed, tail...)...)
	a.mu.Unlock()

	a.obs.dep.Notify()
	return removed
}

// Sort orders the elements by the given comparison and notifies the
// container dep. The sort is stable.
func (a *Array) Sort(less func(x, y any) bool) {
	a.mu.Lock()
	sort.SliceStable(a.items, func(i, j int) bool {
		return less(a.items[i], a.items[j])
	})
	a.mu.Unlock()

	a.obs.dep.Notify()
}

// Reverse reverses the elements in place and notifies the container dep.
func (a *Array) Reverse() {
	a.mu.Lock()
	for i, j := 0, len(a.items)-1; i < j; i, j = i+1, j-1 {
		a.items[i], a.items[j] = a.items[j], a.items[i]
	}
	a.mu.Unlock()

	a.obs.dep.Notify()
}

// SetAt replaces the element at index i, observing the new value and
// notifying the container dep. Out-of-range writes are no-ops; use Push to
// grow the array.
func (a *Array) SetAt(i int, value any) {
	a.mu.Lock()
	if i < 0 || i >= len(a.items) {
		a.mu.Unlock()
		return
	}
	if sameValue(a.items[i], value) {
		a.mu.Unlock()
		return
	}
	a.items[i] = observeValue(value)
	a.mu.Unlock()

	a.obs.dep.Notify()
}

// lenRaw returns the element count without attributing the read.
func (a *Array) lenRaw() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.items)
}

// append installs an element without firing notifications. Used by the
// observe walk before anyone can have subscribed.
func (a *Array) appendRaw(value any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.items = append(a.items, value)
}

// dependArray registers the container dep of every nested array element so
// a watcher that read an array through a slot also re-runs when a nested
// array mutates. Mirrors the per-element walk the slot getter does for the
// top level.
func dependArray(a *Array) {
	a.mu.RLock()
	items := make([]any, len(a.items))
	copy(items, a.items)
	a.mu.RUnlock()

	for _, item := range items {
		if child := containerObserverOf(item); child != nil {
			child.dep.Depend()
		}
		if nested, ok := item.(*Array); ok {
			dependArray(nested)
		}
	}
}
