package reva

import "strings"

// parsePath compiles a dotted path expression like "a.b.c" into a getter
// over an instance. Each segment resolves through the instance proxy first,
// then through nested containers, so "profile.name" follows data, props, or
// computed values alike. Returns nil for paths with empty segments.
func parsePath(path string) func(c *Component) any {
	segments := strings.Split(path, ".")
	for _, s := range segments {
		if s == "" {
			return nil
		}
	}

	return func(c *Component) any {
		var current any = c.Get(segments[0])
		for _, seg := range segments[1:] {
			obj, ok := current.(*Object)
			if !ok {
				return nil
			}
			current = obj.Get(seg)
		}
		return current
	}
}
