package scope

import (
	"github.com/aretw0/arbor/pkg/dirty"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/aretw0/arbor/pkg/state"
	"github.com/aretw0/arbor/pkg/value"
)

// Resolved is the outcome of resolving a path.
type Resolved struct {
	// Ref is set when the value lives in the State and may change later.
	Ref     value.Ref
	Dynamic bool
	Value   value.Value
}

// Binding converts the result into a scope binding.
func (r Resolved) Binding() Binding {
	if r.Dynamic {
		return Dynamic(r.Ref)
	}
	return Static(r.Value)
}

// Resolver resolves paths through a Scope and records which State refs
// each consuming node read.
type Resolver struct {
	tracker *dirty.Tracker
}

// NewResolver creates a resolver that registers subscriptions in tracker.
// A nil tracker disables subscriptions.
func NewResolver(tracker *dirty.Tracker) *Resolver {
	return &Resolver{tracker: tracker}
}

func (r *Resolver) subscribe(ref value.Ref, sub domain.NodeID) {
	if r.tracker != nil && !sub.IsZero() {
		r.tracker.Subscribe(ref, sub)
	}
}

func stateOf(s *Scope) ports.State {
	if s == nil || s.state == nil {
		return state.Empty{}
	}
	return s.state
}

// cursor is the position reached while walking a path.
type cursor struct {
	ref     value.Ref
	dynamic bool
	static  value.Value
}

// walk resolves path and returns where it ended. The ref reached is
// subscribed for sub. On a miss the container that lacked the entry is
// subscribed instead, so that a later insert re-dirties the consumer.
// Containers passed through on a hit are not: removing or replacing an entry
// notifies the refs below it.
func (r *Resolver) walk(s *Scope, path value.Path, sub domain.NodeID) cursor {
	st := stateOf(s)
	if len(path) == 0 || path[0].IsIndex {
		return cursor{}
	}

	var cur cursor
	if b, ok := s.Lookup(path[0].Name); ok {
		cur = cursor{ref: b.ref, dynamic: b.dynamic, static: b.static}
	} else {
		root := st.Root()
		ref, ok := st.Field(root, path[0].Name)
		if !ok {
			r.subscribe(root, sub)
			return cursor{}
		}
		cur = cursor{ref: ref, dynamic: true}
	}

	for _, seg := range path[1:] {
		if !cur.dynamic {
			if seg.IsIndex {
				cur.static = cur.static.Index(seg.Index)
			} else {
				cur.static = cur.static.Field(seg.Name)
			}
			continue
		}

		var (
			next value.Ref
			ok   bool
		)
		if seg.IsIndex {
			next, ok = st.Item(cur.ref, seg.Index)
		} else {
			next, ok = st.Field(cur.ref, seg.Name)
		}
		if !ok {
			// Null from here on; the remaining segments cannot change that.
			r.subscribe(cur.ref, sub)
			return cursor{}
		}
		cur.ref = next
	}

	if cur.dynamic {
		r.subscribe(cur.ref, sub)
	}
	return cur
}

// Resolve walks path through s. Missing names, fields and indices resolve
// to Null without error. A zero sub resolves without subscribing.
func (r *Resolver) Resolve(s *Scope, path value.Path, sub domain.NodeID) Resolved {
	cur := r.walk(s, path, sub)
	if !cur.dynamic {
		return Resolved{Value: cur.static}
	}
	return Resolved{Ref: cur.ref, Dynamic: true, Value: stateOf(s).Load(cur.ref)}
}

// SubscribeTree subscribes sub to ref and to every value below it, for
// consumers that depend on a whole container.
func (r *Resolver) SubscribeTree(st ports.State, ref value.Ref, sub domain.NodeID) {
	if r.tracker == nil || sub.IsZero() {
		return
	}
	r.subscribe(ref, sub)
	for _, k := range st.Keys(ref) {
		if child, ok := st.Field(ref, k); ok {
			r.SubscribeTree(st, child, sub)
		}
	}
	for i, n := 0, st.Len(ref); i < n; i++ {
		if child, ok := st.Item(ref, i); ok {
			r.SubscribeTree(st, child, sub)
		}
	}
}

// Collection resolves path as a list. The view reads through to the State
// without copying.
func (r *Resolver) Collection(s *Scope, path value.Path, sub domain.NodeID) Collection {
	cur := r.walk(s, path, sub)
	if !cur.dynamic {
		return StaticCollection(cur.static)
	}
	return Collection{state: stateOf(s), ref: cur.ref, dynamic: true}
}
