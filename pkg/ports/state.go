package ports

import (
	"context"

	"github.com/aretw0/arbor/pkg/value"
)

// State is the runtime data templates read from.
//
// Values are addressed by refs. A ref stays valid while the value it
// addresses exists; lookups through a stale ref report a miss and Load
// returns Null. Implementations are expected to notify subscribers through
// the dirty tracker they were built with whenever a ref's value changes.
type State interface {
	// Root returns the ref of the top-level map.
	Root() value.Ref

	// Field returns the ref of the named entry of the map under ref.
	Field(ref value.Ref, name string) (value.Ref, bool)

	// Item returns the ref of the i-th element of the list under ref.
	Item(ref value.Ref, i int) (value.Ref, bool)

	// Len returns the element count of the list under ref, 0 for anything else.
	Len(ref value.Ref) int

	// Keys returns the entry names of the map under ref, nil for anything else.
	Keys(ref value.Ref) []string

	// Load materialises the value under ref.
	Load(ref value.Ref) value.Value

	// Acquire and Release bracket a long-lived reference to ref. A value
	// that is acquired is not reclaimed before its last release.
	Acquire(ref value.Ref) error
	Release(ref value.Ref) error
}

// Source provides a plain data document used to seed and resynchronise the State.
type Source interface {
	// Load returns the current document.
	// It returns domain.ErrSourceNotFound when the backend holds no document.
	Load(ctx context.Context) (map[string]any, error)
}

// Sink is implemented by sources that can persist a document.
type Sink interface {
	Save(ctx context.Context, data map[string]any) error
}

// Updater is implemented by sources that support an atomic
// read-modify-write of their document.
type Updater interface {
	// Update loads the document (empty when none exists), applies fn and
	// saves the result. fn may mutate the map in place.
	Update(ctx context.Context, fn func(doc map[string]any) error) error
}
