package arena_test

import (
	"testing"

	"github.com/aretw0/arbor/pkg/arena"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArena_InsertGetRemove(t *testing.T) {
	a := arena.New[string]()

	k1 := a.Insert("a")
	k2 := a.Insert("b")
	assert.False(t, k1.IsZero())
	assert.NotEqual(t, k1, k2)
	assert.Equal(t, 2, a.Len())

	v, ok := a.Get(k1)
	require.True(t, ok)
	assert.Equal(t, "a", v)

	removed, ok := a.Remove(k1)
	require.True(t, ok)
	assert.Equal(t, "a", removed)
	assert.Equal(t, 1, a.Len())

	_, ok = a.Get(k1)
	assert.False(t, ok, "removed key must not resolve")

	_, ok = a.Remove(k1)
	assert.False(t, ok, "double remove is a no-op")
	assert.Equal(t, 1, a.Len())
}

func TestArena_GenerationSafety(t *testing.T) {
	a := arena.New[int]()
	old := a.Insert(1)
	a.Remove(old)

	reused := a.Insert(2)
	assert.Equal(t, old.Index(), reused.Index(), "slot should be reused")
	assert.NotEqual(t, old.Generation(), reused.Generation())

	_, ok := a.Get(old)
	assert.False(t, ok, "stale key must not see the new value")
	assert.False(t, a.Replace(old, 3))

	v, ok := a.Get(reused)
	require.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestArena_ZeroKey(t *testing.T) {
	a := arena.New[int]()
	a.Insert(1)

	_, ok := a.Get(arena.Key{})
	assert.False(t, ok)
	assert.False(t, a.Contains(arena.Key{}))
}

func TestArena_Each(t *testing.T) {
	a := arena.New[int]()
	keys := []arena.Key{a.Insert(1), a.Insert(2), a.Insert(3)}
	a.Remove(keys[1])

	var seen []int
	a.Each(func(_ arena.Key, v int) bool {
		seen = append(seen, v)
		return true
	})
	assert.Equal(t, []int{1, 3}, seen)
}

func TestShared_DeferredRemoval(t *testing.T) {
	s := arena.NewShared[string]()
	k := s.Insert("list")

	require.NoError(t, s.Acquire(k))
	require.NoError(t, s.Acquire(k))
	assert.Equal(t, 2, s.Refs(k))

	v, err := s.Remove(k)
	assert.ErrorIs(t, err, arena.ErrStillReferenced)
	assert.Equal(t, "list", v)
	assert.True(t, s.Pending(k))
	assert.Equal(t, 1, s.Len(), "slot must not be freed while referenced")

	_, ok := s.Get(k)
	assert.False(t, ok, "pending slot is not addressable")
	assert.ErrorIs(t, s.Acquire(k), arena.ErrStaleKey)

	reclaimed, err := s.Release(k)
	require.NoError(t, err)
	assert.False(t, reclaimed)

	reclaimed, err = s.Release(k)
	require.NoError(t, err)
	assert.True(t, reclaimed, "last release reclaims the slot")
	assert.Equal(t, 0, s.Len())

	_, err = s.Release(k)
	assert.ErrorIs(t, err, arena.ErrStaleKey)
}

func TestShared_RemoveUnreferenced(t *testing.T) {
	s := arena.NewShared[int]()
	k := s.Insert(7)

	v, err := s.Remove(k)
	require.NoError(t, err)
	assert.Equal(t, 7, v)

	_, err = s.Remove(k)
	assert.ErrorIs(t, err, arena.ErrStaleKey)
}

func TestShared_ReleaseWithoutAcquire(t *testing.T) {
	s := arena.NewShared[int]()
	k := s.Insert(1)

	_, err := s.Release(k)
	assert.ErrorIs(t, err, arena.ErrNotAcquired)

	require.True(t, s.Set(k, 2))
	v, ok := s.Get(k)
	require.True(t, ok)
	assert.Equal(t, 2, v)
}
