package runtime

import (
	"context"
	"sort"
	"time"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/scope"
	"github.com/aretw0/arbor/pkg/tree"
	"github.com/aretw0/arbor/pkg/value"
)

// Update drains the dirty tracker and re-evaluates the dirty nodes in tree
// order, parents before children. Nodes removed by an earlier
// re-evaluation in the same pass are skipped.
func (g *Generator) Update(ctx context.Context) (Report, error) {
	if err := ctx.Err(); err != nil {
		return Report{}, err
	}

	start := time.Now()
	g.pass = Report{}

	// 1. Swap out the pending set
	ids := g.tracker.Drain()
	g.pass.Dirty = len(ids)
	if len(ids) == 0 {
		return g.pass, nil
	}

	// 2. Order by position so that ancestors settle first
	type dirtyNode struct {
		id   domain.NodeID
		path tree.Path
	}
	queue := make([]dirtyNode, 0, len(ids))
	for _, id := range ids {
		path, ok := g.tree.PathOf(id)
		if !ok {
			g.pass.Skipped++
			continue
		}
		queue = append(queue, dirtyNode{id: id, path: path})
	}
	sort.SliceStable(queue, func(i, j int) bool {
		return queue[i].path.Compare(queue[j].path) < 0
	})

	// 3. Re-evaluate
	for _, d := range queue {
		if !g.tree.Contains(d.id) {
			g.pass.Skipped++
			continue
		}
		if err := g.reevaluate(d.id); err != nil {
			g.recorder.ObservePass(g.pass, time.Since(start), g.tree.Len())
			return g.pass, err
		}
		g.pass.Reevaluated++
	}

	g.recorder.ObservePass(g.pass, time.Since(start), g.tree.Len())
	g.logger.Debug("tree updated",
		"dirty", g.pass.Dirty,
		"reevaluated", g.pass.Reevaluated,
		"created", g.pass.Created,
		"removed", g.pass.Removed)
	return g.pass, nil
}

func (g *Generator) reevaluate(id domain.NodeID) error {
	n, ok := g.tree.Get(id)
	if !ok {
		return nil
	}
	switch n.Kind {
	case KindElement:
		return g.evalElement(id)
	case KindControlFlow:
		return g.evalControlFlow(id)
	case KindLoop:
		return g.evalLoop(id)
	case KindWith:
		return g.evalWith(id)
	}
	// Blocks and iterations hold no expressions of their own.
	return nil
}

// Each eval function drops the node's previous subscriptions first, so that
// only refs read by the latest evaluation can dirty it again.

func (g *Generator) evalElement(id domain.NodeID) error {
	n, _ := g.tree.Get(id)
	e := n.expr.(*domain.StaticNode)
	g.tracker.Unsubscribe(id)

	text := value.Null()
	if e.Text != nil {
		r, err := g.valueOf(*e.Text, n.scope, id)
		if err != nil {
			return err
		}
		text = r.Value
	}

	var attrs map[string]value.Value
	if len(e.Attributes) > 0 {
		attrs = make(map[string]value.Value, len(e.Attributes))
		for _, a := range e.Attributes {
			key, err := g.str(a.Key, id)
			if err != nil {
				return err
			}
			r, err := g.valueOf(a.Value, n.scope, id)
			if err != nil {
				return err
			}
			attrs[key] = r.Value
		}
	}

	g.tree.Update(id, func(n *Node) {
		n.Text = text
		n.Attributes = attrs
	})
	return nil
}

// evalControlFlow selects the first branch whose condition is truthy. A
// change of branch tears down the old body completely before the new one
// is built, so at most one branch is ever materialised.
func (g *Generator) evalControlFlow(id domain.NodeID) error {
	n, _ := g.tree.Get(id)
	g.tracker.Unsubscribe(id)

	selected := -1
	for i, br := range n.chain {
		if br.cond == nil {
			selected = i
			break
		}
		r, err := g.valueOf(*br.cond, n.scope, id)
		if err != nil {
			return err
		}
		if r.Value.Truthy() {
			selected = i
			break
		}
	}

	if selected == n.active {
		return nil
	}

	g.logger.Debug("branch switched", "node_id", id, "from", n.active, "to", selected)
	g.removeChildren(id)
	g.tree.Update(id, func(n *Node) { n.active = selected })
	if selected < 0 {
		return nil
	}
	return g.build(id, n.scope, n.chain[selected].body)
}

// evalLoop reconciles iterations by position. A collection backed by a
// different list rebuilds every iteration; otherwise surplus iterations are
// dropped from the end, new ones are appended and iterations whose element
// binding changed are rebuilt in place.
func (g *Generator) evalLoop(id domain.NodeID) error {
	n, _ := g.tree.Get(id)
	e := n.expr.(*domain.For)
	g.tracker.Unsubscribe(id)

	coll, err := g.collection(e.Collection, n.scope, id)
	if err != nil {
		return err
	}

	if !n.built || !sameBacking(n.coll, coll) {
		g.removeChildren(id)
		g.release(n.acquired)

		var acquired []value.Ref
		if ref, ok := coll.Ref(); ok {
			if err := g.state.Acquire(ref); err == nil {
				acquired = append(acquired, ref)
			}
		}
		g.tree.Update(id, func(n *Node) {
			n.coll = coll
			n.built = true
			n.acquired = acquired
		})
		for i := 0; i < coll.Len(); i++ {
			if err := g.buildIteration(id, i, coll.At(i)); err != nil {
				return err
			}
		}
		return nil
	}

	g.tree.Update(id, func(n *Node) { n.coll = coll })

	kids := g.tree.Children(id)
	size := coll.Len()

	for i := len(kids) - 1; i >= size; i-- {
		g.remove(kids[i])
	}
	for i := 0; i < min(len(kids), size); i++ {
		b := coll.At(i)
		it, _ := g.tree.Get(kids[i])
		if it.binding.Same(b) {
			continue
		}
		g.remove(kids[i])
		if err := g.buildIteration(id, i, b); err != nil {
			return err
		}
	}
	for i := len(kids); i < size; i++ {
		if err := g.buildIteration(id, i, coll.At(i)); err != nil {
			return err
		}
	}
	return nil
}

// sameBacking reports whether two collections read the same list: the same
// State ref, or both computed.
func sameBacking(a, b scope.Collection) bool {
	ra, da := a.Ref()
	rb, db := b.Ref()
	return da == db && (!da || ra == rb)
}

func (g *Generator) collection(id domain.ValueID, s *scope.Scope, node domain.NodeID) (scope.Collection, error) {
	expr, err := g.tpl.Value(id)
	if err != nil {
		return scope.Collection{}, &InternalError{Op: "lookup", Node: node, Err: err}
	}
	if path, ok := domain.PathOf(expr); ok {
		return g.resolver.Collection(s, path, node), nil
	}
	return scope.StaticCollection(g.compute(expr, s, node)), nil
}

// evalWith rebinds the data expression and rebuilds the body only when the
// binding changed. A dynamic binding that keeps its ref is left alone; the
// body's own subscriptions pick up changes to the value behind it.
func (g *Generator) evalWith(id domain.NodeID) error {
	n, _ := g.tree.Get(id)
	e := n.expr.(*domain.With)
	g.tracker.Unsubscribe(id)

	r, err := g.valueOfShallow(e.Data, n.scope, id)
	if err != nil {
		return err
	}
	b := r.Binding()
	if n.inner != nil && n.binding.Same(b) {
		return nil
	}

	g.removeChildren(id)
	inner := n.scope.Child()
	inner.Bind(n.Ident, b)
	g.tree.Update(id, func(n *Node) {
		n.inner = inner
		n.binding = b
	})
	return g.build(id, inner, e.Body)
}

// valueOfShallow resolves path-shaped values without subscribing to the
// contents of a container.
func (g *Generator) valueOfShallow(id domain.ValueID, s *scope.Scope, node domain.NodeID) (scope.Resolved, error) {
	expr, err := g.tpl.Value(id)
	if err != nil {
		return scope.Resolved{}, &InternalError{Op: "lookup", Node: node, Err: err}
	}
	if path, ok := domain.PathOf(expr); ok {
		return g.resolver.Resolve(s, path, node), nil
	}
	return scope.Resolved{Value: g.compute(expr, s, node)}, nil
}
