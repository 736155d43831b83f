package state

import (
	"github.com/aretw0/arbor/pkg/arena"
	"github.com/aretw0/arbor/pkg/value"
)

// Empty is a State with no data: every lookup misses and every load is Null.
type Empty struct{}

func (Empty) Root() value.Ref                           { return value.Ref{} }
func (Empty) Field(value.Ref, string) (value.Ref, bool) { return value.Ref{}, false }
func (Empty) Item(value.Ref, int) (value.Ref, bool)     { return value.Ref{}, false }
func (Empty) Len(value.Ref) int                         { return 0 }
func (Empty) Keys(value.Ref) []string                   { return nil }
func (Empty) Load(value.Ref) value.Value                { return value.Null() }
func (Empty) Acquire(value.Ref) error                   { return arena.ErrStaleKey }
func (Empty) Release(value.Ref) error                   { return arena.ErrStaleKey }
