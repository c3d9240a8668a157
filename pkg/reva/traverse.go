package reva

// traverse walks a value graph depth-first, reading every nested slot so the
// active evaluator collects each one as a dependency. Containers already
// seen (by container dep id) are skipped, which both handles cyclic
// structures and avoids duplicate edges.
func traverse(value any) {
	seen := make(map[uint64]struct{})
	traverseInto(value, seen)
}

func traverseInto(value any, seen map[uint64]struct{}) {
	ob := containerObserverOf(value)
	if ob == nil {
		return
	}
	if _, ok := seen[ob.dep.id]; ok {
		return
	}
	seen[ob.dep.id] = struct{}{}

	switch c := value.(type) {
	case *Object:
		for _, key := range c.Keys() {
			traverseInto(c.Get(key), seen)
		}
	case *Array:
		for i, n := 0, c.Len(); i < n; i++ {
			traverseInto(c.At(i), seen)
		}
	}
}
