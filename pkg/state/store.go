// Package state provides the reactive runtime state read by templates.
//
// A Store keeps every scalar, list and map of its document in its own shared
// arena slot. Refs therefore stay stable while values are updated in place,
// and each mutation notifies only the refs whose value actually changed.
package state

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/arbor/pkg/arena"
	"github.com/aretw0/arbor/pkg/dirty"
	"github.com/aretw0/arbor/pkg/value"
)

var (
	// ErrPathNotFound is returned when a mutation targets a missing value.
	ErrPathNotFound = errors.New("state path not found")

	// ErrNotContainer is returned when a path descends into a scalar.
	ErrNotContainer = errors.New("value is not a container")

	// ErrIndexOutOfRange is returned when a list index is past the end.
	ErrIndexOutOfRange = errors.New("index out of range")
)

type slot struct {
	kind   value.Kind
	scalar value.Value
	fields map[string]value.Ref
	items  []value.Ref
}

// Store is a mutable document that implements ports.State.
// It is safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	slots   *arena.Shared[*slot]
	root    value.Ref
	tracker *dirty.Tracker
}

// NewStore creates an empty store whose mutations notify tracker.
// tracker may be nil for a store nobody observes.
func NewStore(tracker *dirty.Tracker) *Store {
	s := &Store{
		slots:   arena.NewShared[*slot](),
		tracker: tracker,
	}
	s.root = s.slots.Insert(&slot{kind: value.KindMap, fields: map[string]value.Ref{}})
	return s
}

// FromMap creates a store holding data.
func FromMap(tracker *dirty.Tracker, data map[string]any) *Store {
	s := NewStore(tracker)
	s.Sync(data)
	return s
}

func (s *Store) get(ref value.Ref) *slot {
	n, ok := s.slots.Get(ref)
	if !ok {
		return nil
	}
	return n
}

func (s *Store) notify(ref value.Ref) {
	if s.tracker != nil {
		s.tracker.Notify(ref)
	}
}

// Root returns the ref of the top-level map.
func (s *Store) Root() value.Ref {
	return s.root
}

// Field returns the ref of the named entry of the map under ref.
func (s *Store) Field(ref value.Ref, name string) (value.Ref, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := s.get(ref)
	if n == nil || n.kind != value.KindMap {
		return value.Ref{}, false
	}
	child, ok := n.fields[name]
	return child, ok
}

// Item returns the ref of the i-th element of the list under ref.
func (s *Store) Item(ref value.Ref, i int) (value.Ref, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := s.get(ref)
	if n == nil || n.kind != value.KindList || i < 0 || i >= len(n.items) {
		return value.Ref{}, false
	}
	return n.items[i], true
}

// Len returns the length of the list under ref.
func (s *Store) Len(ref value.Ref) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := s.get(ref)
	if n == nil || n.kind != value.KindList {
		return 0
	}
	return len(n.items)
}

// Keys returns the sorted entry names of the map under ref.
func (s *Store) Keys(ref value.Ref) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := s.get(ref)
	if n == nil || n.kind != value.KindMap {
		return nil
	}
	keys := make([]string, 0, len(n.fields))
	for k := range n.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Load materialises the value under ref. Stale refs load as Null.
func (s *Store) Load(ref value.Ref) value.Value {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.load(ref)
}

func (s *Store) load(ref value.Ref) value.Value {
	n := s.get(ref)
	if n == nil {
		return value.Null()
	}
	switch n.kind {
	case value.KindMap:
		fields := make(map[string]value.Value, len(n.fields))
		for k, child := range n.fields {
			fields[k] = s.load(child)
		}
		return value.Map(fields)
	case value.KindList:
		items := make([]value.Value, len(n.items))
		for i, child := range n.items {
			items[i] = s.load(child)
		}
		return value.List(items...)
	}
	return n.scalar
}

// Acquire pins ref so that removing it is deferred until Release.
func (s *Store) Acquire(ref value.Ref) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.slots.Acquire(ref); err != nil {
		return fmt.Errorf("acquire %s: %w", ref, err)
	}
	return nil
}

// Release drops a reference taken with Acquire.
func (s *Store) Release(ref value.Ref) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.slots.Release(ref); err != nil {
		return fmt.Errorf("release %s: %w", ref, err)
	}
	return nil
}

// Refs returns the number of outstanding acquires on ref.
func (s *Store) Refs(ref value.Ref) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.slots.Refs(ref)
}

// Slots returns the number of allocated slots, including those waiting for
// their last release.
func (s *Store) Slots() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.slots.Len()
}
