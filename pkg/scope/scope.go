// Package scope implements the lexical name chain used while evaluating
// templates and the resolver that turns paths into values.
package scope

import (
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/aretw0/arbor/pkg/value"
)

// Binding is what a name in scope refers to: either a ref into the State,
// which can change over time, or a static value computed once.
type Binding struct {
	ref     value.Ref
	static  value.Value
	dynamic bool
}

// Dynamic binds a State ref.
func Dynamic(ref value.Ref) Binding {
	return Binding{ref: ref, dynamic: true}
}

// Static binds a fixed value.
func Static(v value.Value) Binding {
	return Binding{static: v}
}

// Ref returns the bound State ref, if the binding is dynamic.
func (b Binding) Ref() (value.Ref, bool) {
	return b.ref, b.dynamic
}

// Value returns the static value. It is Null for dynamic bindings.
func (b Binding) Value() value.Value {
	return b.static
}

// IsDynamic reports whether the binding follows a State ref.
func (b Binding) IsDynamic() bool { return b.dynamic }

// Same reports whether both bindings refer to the same thing: the same
// ref, or equal static values.
func (b Binding) Same(o Binding) bool {
	if b.dynamic != o.dynamic {
		return false
	}
	if b.dynamic {
		return b.ref == o.ref
	}
	return b.static.Equal(o.static)
}

// Scope is one level of name bindings. Lookups fall back to the parent
// scope; the root scope is backed by the State.
type Scope struct {
	parent *Scope
	names  map[string]Binding
	state  ports.State
}

// New creates a root scope over st.
func New(st ports.State) *Scope {
	return &Scope{state: st}
}

// Child creates a nested scope. Bindings made on the child shadow the
// parent's until the child is dropped.
func (s *Scope) Child() *Scope {
	return &Scope{parent: s, state: s.state}
}

// Parent returns the enclosing scope, nil for the root.
func (s *Scope) Parent() *Scope { return s.parent }

// State returns the State backing the scope chain.
func (s *Scope) State() ports.State { return s.state }

// Bind adds or replaces a local binding.
func (s *Scope) Bind(name string, b Binding) {
	if s.names == nil {
		s.names = make(map[string]Binding)
	}
	s.names[name] = b
}

// Lookup searches the chain from the innermost scope outwards.
func (s *Scope) Lookup(name string) (Binding, bool) {
	for current := s; current != nil; current = current.parent {
		if b, ok := current.names[name]; ok {
			return b, true
		}
	}
	return Binding{}, false
}
