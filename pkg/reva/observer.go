package reva

import (
	"errors"
	"reflect"
	"sort"
)

// ErrRootAdd is returned when $set would add a new key to an instance's root
// data object. Root keys must be declared up front so the instance proxy can
// route them; nested objects accept new keys freely.
var ErrRootAdd = errors.New("reva: cannot add keys to root data after observation")

// Observer marks a container as instrumented. Each observed Object or Array
// carries exactly one Observer, allocated once; re-observing returns the
// existing one, so no duplicate deps are ever allocated.
type Observer struct {
	dep   *Dep
	value any

	// rootCount counts instances using this container as root data.
	rootCount int
}

func newObserver(value any) *Observer {
	return &Observer{dep: newDep(), value: value}
}

// Dep returns the container-level dep, notified on structural change.
func (ob *Observer) Dep() *Dep {
	return ob.dep
}

// Value returns the observed container (*Object or *Array).
func (ob *Observer) Value() any {
	return ob.value
}

// containerObserverOf returns the observer carried by a reactive container,
// or nil for any other value.
func containerObserverOf(v any) *Observer {
	switch c := v.(type) {
	case *Object:
		return c.obs
	case *Array:
		return c.obs
	default:
		return nil
	}
}

// Observe instruments a value graph and returns its Observer.
//
// Passing an already-observed container is idempotent: the existing Observer
// comes back, with no duplicate dep allocation. Plain map[string]any and
// []any graphs are converted into Object/Array containers; every node
// reachable at observation time becomes reactive. Values added later only
// become reactive through the sanctioned mutation surface (Object.Set,
// array mutators, package Set).
//
// Scalars, funcs, typed structs, and component instances are left untouched
// and return nil.
func Observe(value any, asRootData bool) *Observer {
	ob := containerObserverOf(value)
	if ob == nil {
		converted := observeValue(value)
		ob = containerObserverOf(converted)
	}
	if ob != nil && asRootData {
		ob.rootCount++
	}
	return ob
}

// observeValue converts a plain map or slice into a reactive container,
// returning every other value (including existing containers) unchanged.
func observeValue(v any) any {
	switch v.(type) {
	case *Object, *Array:
		return v
	case map[string]any, []any:
		return convertGraph(v)
	default:
		return v
	}
}

// workItem pairs a freshly allocated container with the plain node whose
// entries still need converting.
type workItem struct {
	container any // *Object or *Array
	source    any // map[string]any or []any
}

// convertGraph walks a plain value graph with an explicit worklist and an
// identity-keyed visited set, so cyclic structures convert deterministically:
// a node appearing twice maps to one container, and a self-referencing map
// terminates.
func convertGraph(root any) any {
	visited := make(map[uintptr]any)
	var work []workItem

	resolve := func(v any) any {
		switch node := v.(type) {
		case map[string]any:
			ptr := reflect.ValueOf(node).Pointer()
			if c, ok := visited[ptr]; ok {
				return c
			}
			obj := NewObject()
			visited[ptr] = obj
			work = append(work, workItem{container: obj, source: node})
			return obj
		case []any:
			if len(node) == 0 {
				return NewArray()
			}
			ptr := reflect.ValueOf(node).Pointer()
			if c, ok := visited[ptr]; ok {
				return c
			}
			arr := NewArray()
			visited[ptr] = arr
			work = append(work, workItem{container: arr, source: node})
			return arr
		default:
			return v
		}
	}

	converted := resolve(root)

	for len(work) > 0 {
		item := work[len(work)-1]
		work = work[:len(work)-1]

		switch src := item.source.(type) {
		case map[string]any:
			obj := item.container.(*Object)
			keys := make([]string, 0, len(src))
			for k := range src {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				obj.defineRaw(k, resolve(src[k]))
			}
		case []any:
			arr := item.container.(*Array)
			for _, e := range src {
				arr.appendRaw(resolve(e))
			}
		}
	}

	return converted
}

// Set performs a sanctioned mutation of a key that may have been absent at
// observation time. Objects accept string keys; arrays accept int indices,
// where an index equal to the length appends.
func Set(target any, key any, value any) error {
	switch t := target.(type) {
	case *Object:
		k, ok := key.(string)
		if !ok {
			return ErrBadTarget
		}
		if t.obs.rootCount > 0 && !t.has(k) {
			return ErrRootAdd
		}
		t.Set(k, value)
		return nil
	case *Array:
		i, ok := key.(int)
		if !ok {
			return ErrBadTarget
		}
		if i == t.lenRaw() {
			t.Push(value)
			return nil
		}
		t.SetAt(i, value)
		return nil
	default:
		return ErrBadTarget
	}
}

// Delete performs a sanctioned removal of a key, notifying structural
// trackers. Deleting an absent key is a no-op.
func Delete(target any, key any) error {
	switch t := target.(type) {
	case *Object:
		k, ok := key.(string)
		if !ok {
			return ErrBadTarget
		}
		t.Delete(k)
		return nil
	case *Array:
		i, ok := key.(int)
		if !ok {
			return ErrBadTarget
		}
		t.Splice(i, 1)
		return nil
	default:
		return ErrBadTarget
	}
}
