package state

import (
	"fmt"

	"github.com/aretw0/arbor/pkg/value"
)

// Sync replaces the whole document with data, applying it as in-place
// updates so that unchanged values keep their refs and stay quiet.
func (s *Store) Sync(data map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assign(s.root, value.FromAny(data))
}

// Get returns the value at path, or Null when any segment is missing.
func (s *Store) Get(path string) value.Value {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ref := s.root
	for _, seg := range value.ParsePath(path) {
		next, ok := s.child(ref, seg)
		if !ok {
			return value.Null()
		}
		ref = next
	}
	return s.load(ref)
}

// Snapshot returns the document as plain Go values.
func (s *Store) Snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out, _ := s.load(s.root).Any().(map[string]any)
	return out
}

// Set writes v at path. Missing intermediate map entries are created.
// Setting the index equal to a list's length appends.
func (s *Store) Set(path string, v any) error {
	segs := value.ParsePath(path)
	nv := value.FromAny(v)

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(segs) == 0 {
		if nv.Kind() != value.KindMap {
			return fmt.Errorf("set root: %w", ErrNotContainer)
		}
		s.assign(s.root, nv)
		return nil
	}

	parent, err := s.walk(segs[:len(segs)-1], true)
	if err != nil {
		return fmt.Errorf("set %s: %w", path, err)
	}
	if err := s.put(parent, segs[len(segs)-1], nv); err != nil {
		return fmt.Errorf("set %s: %w", path, err)
	}
	return nil
}

// Delete removes the value at path. Deleting a list element shifts the
// following values one position down.
func (s *Store) Delete(path string) error {
	segs := value.ParsePath(path)
	if len(segs) == 0 {
		return fmt.Errorf("delete root: %w", ErrPathNotFound)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	parent, err := s.walk(segs[:len(segs)-1], false)
	if err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	last := segs[len(segs)-1]
	n := s.get(parent)

	if last.IsIndex {
		if n.kind != value.KindList {
			return fmt.Errorf("delete %s: %w", path, ErrNotContainer)
		}
		if last.Index >= len(n.items) {
			return fmt.Errorf("delete %s: %w", path, ErrIndexOutOfRange)
		}
		s.removeAt(parent, last.Index)
		return nil
	}

	if n.kind != value.KindMap {
		return fmt.Errorf("delete %s: %w", path, ErrNotContainer)
	}
	child, ok := n.fields[last.Name]
	if !ok {
		return fmt.Errorf("delete %s: %w", path, ErrPathNotFound)
	}
	delete(n.fields, last.Name)
	s.remove(child)
	s.notify(parent)
	return nil
}

// Push appends v to the list at path, creating the list when missing.
func (s *Store) Push(path string, v any) error {
	segs := value.ParsePath(path)
	nv := value.FromAny(v)

	s.mu.Lock()
	defer s.mu.Unlock()

	ref, err := s.walk(segs, false)
	if err != nil && len(segs) > 0 {
		parent, perr := s.walk(segs[:len(segs)-1], true)
		if perr != nil {
			return fmt.Errorf("push %s: %w", path, perr)
		}
		if err := s.put(parent, segs[len(segs)-1], value.List(nv)); err != nil {
			return fmt.Errorf("push %s: %w", path, err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("push %s: %w", path, err)
	}

	n := s.get(ref)
	if n.kind != value.KindList {
		return fmt.Errorf("push %s: %w", path, ErrNotContainer)
	}
	n.items = append(n.items, s.alloc(nv))
	s.notify(ref)
	return nil
}

// Insert places v at index i of the list at path. Values at and after i are
// observed as changed in place, followed by one appended element.
func (s *Store) Insert(path string, i int, v any) error {
	segs := value.ParsePath(path)
	nv := value.FromAny(v)

	s.mu.Lock()
	defer s.mu.Unlock()

	ref, err := s.walk(segs, false)
	if err != nil {
		return fmt.Errorf("insert %s: %w", path, err)
	}
	current := s.load(ref)
	if current.Kind() != value.KindList {
		return fmt.Errorf("insert %s: %w", path, ErrNotContainer)
	}
	items := current.Items()
	if i < 0 || i > len(items) {
		return fmt.Errorf("insert %s: %w", path, ErrIndexOutOfRange)
	}
	next := make([]value.Value, 0, len(items)+1)
	next = append(next, items[:i]...)
	next = append(next, nv)
	next = append(next, items[i:]...)
	s.assign(ref, value.List(next...))
	return nil
}

// walk follows segs from the root. With create set, missing map entries
// are created as empty maps.
func (s *Store) walk(segs value.Path, create bool) (value.Ref, error) {
	ref := s.root
	for _, seg := range segs {
		next, ok := s.child(ref, seg)
		if ok {
			ref = next
			continue
		}
		n := s.get(ref)
		if !create || seg.IsIndex || n.kind != value.KindMap {
			if n.kind != value.KindMap && n.kind != value.KindList {
				return value.Ref{}, ErrNotContainer
			}
			return value.Ref{}, ErrPathNotFound
		}
		next = s.alloc(value.Map(nil))
		n.fields[seg.Name] = next
		s.notify(ref)
		ref = next
	}
	return ref, nil
}

func (s *Store) child(ref value.Ref, seg value.Segment) (value.Ref, bool) {
	n := s.get(ref)
	if n == nil {
		return value.Ref{}, false
	}
	if seg.IsIndex {
		if n.kind != value.KindList || seg.Index >= len(n.items) {
			return value.Ref{}, false
		}
		return n.items[seg.Index], true
	}
	if n.kind != value.KindMap {
		return value.Ref{}, false
	}
	child, ok := n.fields[seg.Name]
	return child, ok
}

// put writes nv under seg of the container at parent.
func (s *Store) put(parent value.Ref, seg value.Segment, nv value.Value) error {
	n := s.get(parent)
	if seg.IsIndex {
		if n.kind != value.KindList {
			return ErrNotContainer
		}
		switch {
		case seg.Index < len(n.items):
			s.assign(n.items[seg.Index], nv)
		case seg.Index == len(n.items):
			n.items = append(n.items, s.alloc(nv))
			s.notify(parent)
		default:
			return ErrIndexOutOfRange
		}
		return nil
	}

	if n.kind != value.KindMap {
		return ErrNotContainer
	}
	if child, ok := n.fields[seg.Name]; ok {
		s.assign(child, nv)
		return nil
	}
	n.fields[seg.Name] = s.alloc(nv)
	s.notify(parent)
	return nil
}

// alloc stores nv and its children in fresh slots.
func (s *Store) alloc(nv value.Value) value.Ref {
	n := &slot{}
	s.fill(n, nv)
	return s.slots.Insert(n)
}

func (s *Store) fill(n *slot, nv value.Value) {
	n.kind = nv.Kind()
	n.scalar = value.Null()
	n.fields = nil
	n.items = nil
	switch nv.Kind() {
	case value.KindMap:
		n.fields = make(map[string]value.Ref, nv.Len())
		for k, item := range nv.Fields() {
			n.fields[k] = s.alloc(item)
		}
	case value.KindList:
		n.items = make([]value.Ref, 0, nv.Len())
		for _, item := range nv.Items() {
			n.items = append(n.items, s.alloc(item))
		}
	default:
		n.scalar = nv
	}
}

// assign updates the slot under ref in place and notifies every ref whose
// value changed.
func (s *Store) assign(ref value.Ref, nv value.Value) {
	n := s.get(ref)
	if n == nil {
		return
	}

	if n.kind != nv.Kind() {
		s.dropChildren(n)
		s.fill(n, nv)
		s.notify(ref)
		return
	}

	switch nv.Kind() {
	case value.KindMap:
		fields := nv.Fields()
		changed := false
		for k, item := range fields {
			if child, ok := n.fields[k]; ok {
				s.assign(child, item)
				continue
			}
			n.fields[k] = s.alloc(item)
			changed = true
		}
		for k, child := range n.fields {
			if _, ok := fields[k]; !ok {
				delete(n.fields, k)
				s.remove(child)
				changed = true
			}
		}
		if changed {
			s.notify(ref)
		}
	case value.KindList:
		items := nv.Items()
		common := min(len(items), len(n.items))
		for i := 0; i < common; i++ {
			s.assign(n.items[i], items[i])
		}
		if len(items) == len(n.items) {
			return
		}
		for _, item := range items[common:] {
			n.items = append(n.items, s.alloc(item))
		}
		for _, child := range n.items[len(items):] {
			s.remove(child)
		}
		n.items = n.items[:len(items)]
		s.notify(ref)
	default:
		if !n.scalar.Equal(nv) {
			n.scalar = nv
			s.notify(ref)
		}
	}
}

// removeAt drops element i of the list at ref positionally: later values
// move one slot down and the last slot is removed.
func (s *Store) removeAt(ref value.Ref, i int) {
	items := s.load(ref).Items()
	next := make([]value.Value, 0, len(items)-1)
	next = append(next, items[:i]...)
	next = append(next, items[i+1:]...)
	s.assign(ref, value.List(next...))
}

func (s *Store) dropChildren(n *slot) {
	for _, child := range n.fields {
		s.remove(child)
	}
	for _, child := range n.items {
		s.remove(child)
	}
}

// remove frees ref and its descendants. Slots still acquired by a consumer
// stay allocated until their last release.
func (s *Store) remove(ref value.Ref) {
	n := s.get(ref)
	if n == nil {
		return
	}
	s.dropChildren(n)
	// ErrStillReferenced defers the reclaim to the last Release.
	_, _ = s.slots.Remove(ref)
	s.notify(ref)
}
