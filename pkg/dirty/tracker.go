// Package dirty tracks which nodes observe which state values and collects
// the nodes invalidated by state mutations.
package dirty

import (
	"sync"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/value"
)

// Tracker maps value refs to the nodes observing them and queues the nodes
// whose values changed.
//
// All methods are safe for concurrent use. Mutations of the state may
// enqueue from any goroutine; the generation pass drains once per tick.
// Entries enqueued while a drained batch is being processed land in the
// next batch.
type Tracker struct {
	mu      sync.Mutex
	subs    map[value.Ref]map[domain.NodeID]struct{}
	byNode  map[domain.NodeID]map[value.Ref]struct{}
	pending map[domain.NodeID]struct{}
	order   []domain.NodeID
	signal  chan struct{}
}

// New creates an empty tracker.
func New() *Tracker {
	return &Tracker{
		subs:    make(map[value.Ref]map[domain.NodeID]struct{}),
		byNode:  make(map[domain.NodeID]map[value.Ref]struct{}),
		pending: make(map[domain.NodeID]struct{}),
		signal:  make(chan struct{}, 1),
	}
}

// Subscribe records that node depends on ref.
func (t *Tracker) Subscribe(ref value.Ref, node domain.NodeID) {
	if ref.IsZero() || node.IsZero() {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	nodes, ok := t.subs[ref]
	if !ok {
		nodes = make(map[domain.NodeID]struct{})
		t.subs[ref] = nodes
	}
	nodes[node] = struct{}{}

	refs, ok := t.byNode[node]
	if !ok {
		refs = make(map[value.Ref]struct{})
		t.byNode[node] = refs
	}
	refs[ref] = struct{}{}
}

// Unsubscribe drops every subscription held by node and any pending
// invalidation for it.
func (t *Tracker) Unsubscribe(node domain.NodeID) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for ref := range t.byNode[node] {
		nodes := t.subs[ref]
		delete(nodes, node)
		if len(nodes) == 0 {
			delete(t.subs, ref)
		}
	}
	delete(t.byNode, node)
	// The order slice keeps the id; Drain filters it against pending.
	delete(t.pending, node)
}

// Subscribers returns the nodes currently observing ref.
func (t *Tracker) Subscribers(ref value.Ref) []domain.NodeID {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]domain.NodeID, 0, len(t.subs[ref]))
	for node := range t.subs[ref] {
		out = append(out, node)
	}
	return out
}

// Subscriptions returns the number of refs node observes.
func (t *Tracker) Subscriptions(node domain.NodeID) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.byNode[node])
}

// Notify enqueues every node observing ref and returns how many were newly
// queued.
func (t *Tracker) Notify(ref value.Ref) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	queued := 0
	for node := range t.subs[ref] {
		if t.enqueue(node) {
			queued++
		}
	}
	if queued > 0 {
		t.wake()
	}
	return queued
}

// Mark enqueues node directly.
func (t *Tracker) Mark(node domain.NodeID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.enqueue(node) {
		t.wake()
	}
}

func (t *Tracker) enqueue(node domain.NodeID) bool {
	if _, ok := t.pending[node]; ok {
		return false
	}
	t.pending[node] = struct{}{}
	t.order = append(t.order, node)
	return true
}

func (t *Tracker) wake() {
	select {
	case t.signal <- struct{}{}:
	default:
	}
}

// Drain atomically takes the pending nodes in the order they were first
// queued. It never blocks and returns an empty slice when nothing is pending.
func (t *Tracker) Drain() []domain.NodeID {
	t.mu.Lock()
	pending, order := t.pending, t.order
	t.pending = make(map[domain.NodeID]struct{})
	t.order = nil
	t.mu.Unlock()

	out := make([]domain.NodeID, 0, len(pending))
	for _, node := range order {
		if _, ok := pending[node]; ok {
			out = append(out, node)
			delete(pending, node)
		}
	}
	return out
}

// Pending returns the number of queued nodes.
func (t *Tracker) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// Signal returns a channel that receives a value whenever nodes get queued
// while the channel is empty. Waiting on it is left to the caller.
func (t *Tracker) Signal() <-chan struct{} {
	return t.signal
}
