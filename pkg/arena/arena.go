// Package arena provides generational slot storage.
//
// Every value inserted into an Arena is addressed by a Key made of a slot
// index and the slot's generation. Removing a value bumps the generation of
// its slot, so keys issued before the removal stop resolving even after the
// slot is reused.
package arena

import (
	"errors"
	"fmt"
)

var (
	// ErrStaleKey is returned when a key no longer addresses a live slot.
	ErrStaleKey = errors.New("stale arena key")

	// ErrStillReferenced is returned when removing a shared slot that still has
	// outstanding references. The removal is deferred until the last release.
	ErrStillReferenced = errors.New("resource still referenced")

	// ErrNotAcquired is returned when releasing a slot that holds no references.
	ErrNotAcquired = errors.New("release without matching acquire")
)

// Key identifies a slot in an Arena.
// The zero Key is never issued and can be used as "no key".
type Key struct {
	index uint32
	gen   uint32
}

// NewKey builds a key from its raw parts.
func NewKey(index, generation uint32) Key {
	return Key{index: index, gen: generation}
}

// Index returns the slot index of the key.
func (k Key) Index() int { return int(k.index) }

// Generation returns the slot generation the key was issued for.
func (k Key) Generation() uint32 { return k.gen }

// IsZero reports whether the key is the zero key.
func (k Key) IsZero() bool { return k.gen == 0 }

func (k Key) String() string {
	return fmt.Sprintf("%dv%d", k.index, k.gen)
}

type slot[T any] struct {
	value    T
	gen      uint32
	occupied bool
}

// Arena stores values of type T behind generational keys.
// Insert, Get and Remove are O(1). An Arena is not safe for concurrent use.
type Arena[T any] struct {
	slots []slot[T]
	free  []uint32
	count int
}

// New creates an empty arena.
func New[T any]() *Arena[T] {
	return &Arena[T]{}
}

// Insert stores v in a free slot (or a new one) and returns its key.
func (a *Arena[T]) Insert(v T) Key {
	if n := len(a.free); n > 0 {
		idx := a.free[n-1]
		a.free = a.free[:n-1]
		s := &a.slots[idx]
		s.value = v
		s.occupied = true
		a.count++
		return Key{index: idx, gen: s.gen}
	}

	idx := uint32(len(a.slots))
	a.slots = append(a.slots, slot[T]{value: v, gen: 1, occupied: true})
	a.count++
	return Key{index: idx, gen: 1}
}

func (a *Arena[T]) lookup(k Key) *slot[T] {
	if k.gen == 0 || int(k.index) >= len(a.slots) {
		return nil
	}
	s := &a.slots[k.index]
	if !s.occupied || s.gen != k.gen {
		return nil
	}
	return s
}

// Get returns the value stored under k.
// It reports false when the slot is empty or was regenerated since k was issued.
func (a *Arena[T]) Get(k Key) (T, bool) {
	s := a.lookup(k)
	if s == nil {
		var zero T
		return zero, false
	}
	return s.value, true
}

// Contains reports whether k addresses a live slot.
func (a *Arena[T]) Contains(k Key) bool {
	return a.lookup(k) != nil
}

// Replace overwrites the value stored under k.
func (a *Arena[T]) Replace(k Key, v T) bool {
	s := a.lookup(k)
	if s == nil {
		return false
	}
	s.value = v
	return true
}

// Remove frees the slot addressed by k and returns the value it held.
// Removing an already removed key is a no-op that reports false.
func (a *Arena[T]) Remove(k Key) (T, bool) {
	var zero T
	s := a.lookup(k)
	if s == nil {
		return zero, false
	}
	v := s.value
	s.value = zero
	s.occupied = false
	s.gen++
	if s.gen == 0 {
		// Generation wrapped; skip zero so the zero key stays unissued.
		s.gen = 1
	}
	a.free = append(a.free, k.index)
	a.count--
	return v, true
}

// Len returns the number of live values.
func (a *Arena[T]) Len() int { return a.count }

// Each calls fn for every live value in slot order until fn returns false.
func (a *Arena[T]) Each(fn func(Key, T) bool) {
	for i := range a.slots {
		s := &a.slots[i]
		if !s.occupied {
			continue
		}
		if !fn(Key{index: uint32(i), gen: s.gen}, s.value) {
			return
		}
	}
}
