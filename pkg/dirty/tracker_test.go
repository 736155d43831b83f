package dirty_test

import (
	"sync"
	"testing"

	"github.com/aretw0/arbor/pkg/arena"
	"github.com/aretw0/arbor/pkg/dirty"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func key(i uint32) arena.Key { return arena.NewKey(i, 1) }

func TestTracker_NotifyAndDrain(t *testing.T) {
	tr := dirty.New()
	ref := key(1)
	n1, n2 := key(10), key(11)

	tr.Subscribe(ref, n1)
	tr.Subscribe(ref, n2)
	tr.Subscribe(key(2), n2)

	assert.Equal(t, 2, tr.Notify(ref))
	assert.Equal(t, 0, tr.Notify(ref), "duplicates coalesce")
	assert.Equal(t, 0, tr.Notify(key(2)), "n2 already pending")

	drained := tr.Drain()
	assert.ElementsMatch(t, []domain.NodeID{n1, n2}, drained)
	assert.Empty(t, tr.Drain(), "second drain without mutation is empty")
}

func TestTracker_DrainOrder(t *testing.T) {
	tr := dirty.New()
	tr.Mark(key(3))
	tr.Mark(key(1))
	tr.Mark(key(3))
	tr.Mark(key(2))

	assert.Equal(t, []domain.NodeID{key(3), key(1), key(2)}, tr.Drain())
}

func TestTracker_EnqueueDuringProcessingIsDeferred(t *testing.T) {
	tr := dirty.New()
	ref := key(1)
	tr.Subscribe(ref, key(10))
	tr.Notify(ref)

	batch := tr.Drain()
	require.Len(t, batch, 1)

	// Re-evaluating the batch mutates the same value again.
	tr.Notify(ref)
	assert.Equal(t, 1, tr.Pending())

	next := tr.Drain()
	assert.Equal(t, batch, next, "re-triggered node is handled on the next tick")
	assert.Empty(t, tr.Drain())
}

func TestTracker_Unsubscribe(t *testing.T) {
	tr := dirty.New()
	ref := key(1)
	node := key(10)
	tr.Subscribe(ref, node)
	tr.Subscribe(key(2), node)
	assert.Equal(t, 2, tr.Subscriptions(node))

	tr.Mark(node)
	tr.Unsubscribe(node)

	assert.Equal(t, 0, tr.Subscriptions(node))
	assert.Empty(t, tr.Subscribers(ref))
	assert.Equal(t, 0, tr.Notify(ref))
	assert.Empty(t, tr.Drain(), "pending entry of a removed node is dropped")
}

func TestTracker_ZeroKeysIgnored(t *testing.T) {
	tr := dirty.New()
	tr.Subscribe(arena.Key{}, key(1))
	tr.Subscribe(key(1), arena.Key{})
	assert.Empty(t, tr.Subscribers(arena.Key{}))
	assert.Empty(t, tr.Subscribers(key(1)))
}

func TestTracker_Signal(t *testing.T) {
	tr := dirty.New()
	select {
	case <-tr.Signal():
		t.Fatal("no signal expected before any enqueue")
	default:
	}

	tr.Mark(key(1))
	tr.Mark(key(2))

	select {
	case <-tr.Signal():
	default:
		t.Fatal("expected a wakeup signal")
	}
}

func TestTracker_ConcurrentNotify(t *testing.T) {
	tr := dirty.New()
	for i := uint32(1); i <= 50; i++ {
		tr.Subscribe(key(i), key(1000+i))
	}

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := uint32(1); i <= 50; i++ {
				tr.Notify(key(i))
			}
		}()
	}

	seen := map[domain.NodeID]bool{}
	for round := 0; round < 10; round++ {
		for _, id := range tr.Drain() {
			seen[id] = true
		}
	}
	wg.Wait()
	for _, id := range tr.Drain() {
		seen[id] = true
	}
	assert.Len(t, seen, 50)
}
