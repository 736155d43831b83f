package tree

import "github.com/aretw0/arbor/pkg/arena"

// PathFinder is driven by Find while it descends towards a target path.
//
// Parent is called for every ancestor of the target, outermost first, with
// the remaining child indices below that ancestor. Apply is called once at
// the target with read access to the whole tree. Values handed to either
// callback must not be retained after the callback returns.
type PathFinder[V, O any] interface {
	Parent(value *V, children Path)
	Apply(value *V, path Path, t *Tree[V]) O
}

// Find descends from the root along path, calling f.Parent for each
// ancestor and f.Apply at the target.
func Find[V, O any](t *Tree[V], path Path, f PathFinder[V, O]) (O, error) {
	var zero O
	if len(path) == 0 {
		return zero, &PathError{Path: path.String(), Err: ErrPathNotFound}
	}

	current := arena.Key{}
	for depth, idx := range path {
		list, err := t.children(current)
		if err != nil {
			return zero, &PathError{Path: path.String(), Err: err}
		}
		if int(idx) >= len(*list) {
			return zero, &PathError{Path: path.String(), Err: ErrPathNotFound}
		}
		current = (*list)[idx]
		n := t.node(current)
		if depth == len(path)-1 {
			return f.Apply(&n.value, path, t), nil
		}
		f.Parent(&n.value, path[depth+1:])
	}
	return zero, &PathError{Path: path.String(), Err: ErrPathNotFound}
}

// FinderFuncs adapts a pair of functions to PathFinder.
type FinderFuncs[V, O any] struct {
	OnParent func(value *V, children Path)
	OnApply  func(value *V, path Path, t *Tree[V]) O
}

func (f FinderFuncs[V, O]) Parent(value *V, children Path) {
	if f.OnParent != nil {
		f.OnParent(value, children)
	}
}

func (f FinderFuncs[V, O]) Apply(value *V, path Path, t *Tree[V]) O {
	var zero O
	if f.OnApply == nil {
		return zero
	}
	return f.OnApply(value, path, t)
}

// ByPath returns the value at path.
func ByPath[V any](t *Tree[V], path Path) (V, error) {
	return Find[V, V](t, path, FinderFuncs[V, V]{
		OnApply: func(value *V, _ Path, _ *Tree[V]) V { return *value },
	})
}
