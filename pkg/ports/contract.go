package ports

import (
	"context"
	"testing"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ContractDocument is the document RunStateContract seeds its State with.
var ContractDocument = map[string]any{
	"title": "hello",
	"count": 3,
	"user": map[string]any{
		"name": "ada",
		"tags": []any{"a", "b"},
	},
}

// RunStateContract runs a suite of tests to verify that a State implementation
// adheres to the defined interface contract. newState must return a State
// holding ContractDocument.
func RunStateContract(t *testing.T, newState func(t *testing.T) State) {
	t.Run("Field and Load", func(t *testing.T) {
		st := newState(t)
		root := st.Root()

		ref, ok := st.Field(root, "title")
		require.True(t, ok, "top-level field should resolve")
		assert.Equal(t, value.String("hello"), st.Load(ref))

		_, ok = st.Field(root, "missing")
		assert.False(t, ok)

		assert.ElementsMatch(t, []string{"title", "count", "user"}, st.Keys(root))
	})

	t.Run("Nested Lists", func(t *testing.T) {
		st := newState(t)
		user, ok := st.Field(st.Root(), "user")
		require.True(t, ok)
		tags, ok := st.Field(user, "tags")
		require.True(t, ok)

		assert.Equal(t, 2, st.Len(tags))
		second, ok := st.Item(tags, 1)
		require.True(t, ok)
		assert.Equal(t, value.String("b"), st.Load(second))

		_, ok = st.Item(tags, 2)
		assert.False(t, ok, "out of range index should miss")
		assert.Equal(t, 0, st.Len(user), "maps have no list length")
	})

	t.Run("Stable Refs", func(t *testing.T) {
		st := newState(t)
		a, _ := st.Field(st.Root(), "count")
		b, _ := st.Field(st.Root(), "count")
		assert.Equal(t, a, b, "the same value must keep its ref")
	})

	t.Run("Acquire and Release", func(t *testing.T) {
		st := newState(t)
		ref, ok := st.Field(st.Root(), "user")
		require.True(t, ok)

		require.NoError(t, st.Acquire(ref))
		require.NoError(t, st.Release(ref))
		assert.Error(t, st.Release(ref), "release without acquire must fail")
	})

	t.Run("Stale Ref Loads Null", func(t *testing.T) {
		st := newState(t)
		stale := value.Ref{}
		assert.True(t, st.Load(stale).IsNull())
		_, ok := st.Field(stale, "title")
		assert.False(t, ok)
	})
}

// RunSourceContract verifies that a Source returns what was seeded into it.
// seed writes data into the backend; it may be nil when src is a Sink.
func RunSourceContract(t *testing.T, src Source, seed func(ctx context.Context, data map[string]any) error) {
	ctx := context.Background()
	if seed == nil {
		sink, ok := src.(Sink)
		require.True(t, ok, "source without a seed function must implement Sink")
		seed = sink.Save
	}

	t.Run("Load Seeded Document", func(t *testing.T) {
		err := seed(ctx, map[string]any{
			"title": "hello",
			"items": []any{"a", "b"},
			"count": 2,
		})
		require.NoError(t, err, "seed should not return error")

		data, err := src.Load(ctx)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, "hello", data["title"])

		// JSON and YAML backends disagree on number types; compare through Value.
		assert.True(t, value.Int(2).Equal(value.FromAny(data["count"])))
		assert.Equal(t, 2, value.FromAny(data["items"]).Len())
	})

	t.Run("Overwrite", func(t *testing.T) {
		require.NoError(t, seed(ctx, map[string]any{"title": "bye"}))

		data, err := src.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, "bye", data["title"])
		assert.NotContains(t, data, "items")
	})
}

// RunEmptySourceContract verifies the error a Source reports before any
// document exists.
func RunEmptySourceContract(t *testing.T, src Source) {
	_, err := src.Load(context.Background())
	assert.ErrorIs(t, err, domain.ErrSourceNotFound)
}
