package arena

type sharedEntry[T any] struct {
	value   T
	refs    int
	pending bool
}

// Shared is an Arena whose slots carry an explicit reference count.
//
// A slot that is still acquired cannot be reclaimed: Remove marks it as
// pending and the last Release frees it. Pending slots are no longer
// reachable through Get.
type Shared[T any] struct {
	slots *Arena[*sharedEntry[T]]
}

// NewShared creates an empty shared arena.
func NewShared[T any]() *Shared[T] {
	return &Shared[T]{slots: New[*sharedEntry[T]]()}
}

func (s *Shared[T]) entry(k Key) *sharedEntry[T] {
	e, ok := s.slots.Get(k)
	if !ok {
		return nil
	}
	return e
}

// Insert stores v with a reference count of zero.
func (s *Shared[T]) Insert(v T) Key {
	return s.slots.Insert(&sharedEntry[T]{value: v})
}

// Get returns the value under k unless the slot is stale or pending removal.
func (s *Shared[T]) Get(k Key) (T, bool) {
	e := s.entry(k)
	if e == nil || e.pending {
		var zero T
		return zero, false
	}
	return e.value, true
}

// Set overwrites the value under k.
func (s *Shared[T]) Set(k Key, v T) bool {
	e := s.entry(k)
	if e == nil || e.pending {
		return false
	}
	e.value = v
	return true
}

// Acquire registers one outstanding reference to k.
func (s *Shared[T]) Acquire(k Key) error {
	e := s.entry(k)
	if e == nil || e.pending {
		return ErrStaleKey
	}
	e.refs++
	return nil
}

// Release drops one reference to k.
// It reports true when the release reclaimed a slot that was pending removal.
func (s *Shared[T]) Release(k Key) (bool, error) {
	e := s.entry(k)
	if e == nil {
		return false, ErrStaleKey
	}
	if e.refs == 0 {
		return false, ErrNotAcquired
	}
	e.refs--
	if e.refs == 0 && e.pending {
		s.slots.Remove(k)
		return true, nil
	}
	return false, nil
}

// Remove reclaims the slot under k.
//
// When references remain, the value is returned together with
// ErrStillReferenced and the slot is reclaimed by the last Release instead.
func (s *Shared[T]) Remove(k Key) (T, error) {
	var zero T
	e := s.entry(k)
	if e == nil || e.pending {
		return zero, ErrStaleKey
	}
	if e.refs > 0 {
		e.pending = true
		return e.value, ErrStillReferenced
	}
	s.slots.Remove(k)
	return e.value, nil
}

// Refs returns the number of outstanding references to k.
func (s *Shared[T]) Refs(k Key) int {
	e := s.entry(k)
	if e == nil {
		return 0
	}
	return e.refs
}

// Pending reports whether k is waiting for its last release.
func (s *Shared[T]) Pending(k Key) bool {
	e := s.entry(k)
	return e != nil && e.pending
}

// Len returns the number of occupied slots, pending ones included.
func (s *Shared[T]) Len() int { return s.slots.Len() }
