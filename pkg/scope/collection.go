package scope

import (
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/aretw0/arbor/pkg/value"
)

// Collection is a read-only, indexable view of a list. Non-list values
// behave as empty collections.
type Collection struct {
	state   ports.State
	ref     value.Ref
	dynamic bool
	static  value.Value
}

// StaticCollection wraps a computed value.
func StaticCollection(v value.Value) Collection {
	return Collection{static: v}
}

// Ref returns the State ref of the backing list, if any.
func (c Collection) Ref() (value.Ref, bool) {
	return c.ref, c.dynamic
}

// Len returns the number of elements.
func (c Collection) Len() int {
	if c.dynamic {
		return c.state.Len(c.ref)
	}
	if c.static.Kind() != value.KindList {
		return 0
	}
	return c.static.Len()
}

// At returns the binding for the i-th element. Out of range yields a Null
// static binding.
func (c Collection) At(i int) Binding {
	if c.dynamic {
		if ref, ok := c.state.Item(c.ref, i); ok {
			return Dynamic(ref)
		}
		return Static(value.Null())
	}
	return Static(c.static.Index(i))
}

// Same reports whether both views are backed by the same list: the same
// State ref, or equal static values.
func (c Collection) Same(o Collection) bool {
	if c.dynamic != o.dynamic {
		return false
	}
	if c.dynamic {
		return c.ref == o.ref
	}
	return c.static.Equal(o.static)
}
