package runtime

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/aretw0/arbor/pkg/dirty"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/aretw0/arbor/pkg/registry"
	"github.com/aretw0/arbor/pkg/scope"
	"github.com/aretw0/arbor/pkg/state"
	"github.com/aretw0/arbor/pkg/tree"
	"github.com/aretw0/arbor/pkg/value"
)

// Recorder observes generation passes.
type Recorder interface {
	ObservePass(report Report, elapsed time.Duration, treeSize int)
}

type nopRecorder struct{}

func (nopRecorder) ObservePass(Report, time.Duration, int) {}

// Report summarises one Generate or Update pass.
type Report struct {
	Dirty       int
	Reevaluated int
	Skipped     int
	Created     int
	Removed     int
}

// Generator turns a Template into a tree of nodes and keeps it in sync with
// the State. It is not safe for concurrent use; callers serialise Generate,
// Update and reads of the tree.
type Generator struct {
	tpl      *domain.Template
	state    ports.State
	tracker  *dirty.Tracker
	resolver *scope.Resolver
	tree     *tree.Tree[Node]
	root     *scope.Scope
	funcs    *registry.Registry
	logger   *slog.Logger
	recorder Recorder
	globals  map[string]value.Value

	generated bool
	pass      Report
}

// Option configures a Generator.
type Option func(*Generator)

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Generator) {
		g.logger = logger
	}
}

// WithFunctions sets the registry used for function calls in values.
func WithFunctions(r *registry.Registry) Option {
	return func(g *Generator) {
		g.funcs = r
	}
}

// WithRecorder sets the pass observer.
func WithRecorder(r Recorder) Option {
	return func(g *Generator) {
		g.recorder = r
	}
}

// WithGlobals binds static values in the root scope. They shadow State
// fields of the same name.
func WithGlobals(globals map[string]any) Option {
	return func(g *Generator) {
		for k, v := range globals {
			g.globals[k] = value.FromAny(v)
		}
	}
}

// NewGenerator prepares a generator for tpl reading from st. The tracker
// must be the one st notifies; a nil tracker gets a private one, which only
// makes sense for a State that never changes.
func NewGenerator(tpl *domain.Template, st ports.State, tracker *dirty.Tracker, opts ...Option) *Generator {
	if st == nil {
		st = state.Empty{}
	}
	if tracker == nil {
		tracker = dirty.New()
	}
	g := &Generator{
		tpl:      tpl,
		state:    st,
		tracker:  tracker,
		resolver: scope.NewResolver(tracker),
		tree:     tree.New[Node](),
		funcs:    registry.Default(),
		logger:   slog.New(slog.NewJSONHandler(io.Discard, nil)),
		recorder: nopRecorder{},
		globals:  make(map[string]value.Value),
	}
	for _, opt := range opts {
		opt(g)
	}

	g.root = scope.New(st)
	for k, v := range g.globals {
		g.root.Bind(k, scope.Static(v))
	}
	return g
}

// Tree exposes the generated tree for reading.
func (g *Generator) Tree() *tree.Tree[Node] { return g.tree }

// Tracker returns the dirty tracker subscriptions are registered in.
func (g *Generator) Tracker() *dirty.Tracker { return g.tracker }

// Template returns the template being generated.
func (g *Generator) Template() *domain.Template { return g.tpl }

// Generate builds the whole tree from the template's top-level expressions.
func (g *Generator) Generate(ctx context.Context) (Report, error) {
	if err := ctx.Err(); err != nil {
		return Report{}, err
	}
	if g.generated {
		return Report{}, &InternalError{Op: "generate", Err: ErrAlreadyGenerated}
	}
	g.generated = true

	start := time.Now()
	g.pass = Report{}
	err := g.build(domain.NodeID{}, g.root, g.tpl.Expressions)
	g.recorder.ObservePass(g.pass, time.Since(start), g.tree.Len())

	g.logger.Debug("tree generated",
		"template", g.tpl.Name,
		"nodes", g.tree.Len(),
		"subscriptions", g.subscriptionCount())
	return g.pass, err
}

// Teardown removes every node, dropping subscriptions and releasing refs.
// The generator may be generated again afterwards.
func (g *Generator) Teardown() {
	g.tree.RemoveChildren(domain.NodeID{}, g.teardown)
	g.generated = false
}

func (g *Generator) subscriptionCount() int {
	n := 0
	g.tree.Walk(func(id domain.NodeID, _ tree.Path, _ Node) bool {
		n += g.tracker.Subscriptions(id)
		return true
	})
	return n
}

// build appends one node per expression under parent. Consecutive If and
// Else expressions collapse into a single control-flow node.
func (g *Generator) build(parent domain.NodeID, s *scope.Scope, exprs []domain.Expression) error {
	for i := 0; i < len(exprs); i++ {
		var err error
		switch e := exprs[i].(type) {
		case *domain.StaticNode:
			err = g.buildElement(parent, s, e)
		case *domain.If:
			chain := []branch{{cond: &e.Cond, body: e.Body}}
			// An unconditional Else closes the chain.
			for i+1 < len(exprs) && chain[len(chain)-1].cond != nil {
				el, ok := exprs[i+1].(*domain.Else)
				if !ok {
					break
				}
				chain = append(chain, branch{cond: el.Cond, body: el.Body})
				i++
			}
			err = g.buildControlFlow(parent, s, chain)
		case *domain.Else:
			err = &InternalError{Op: "build", Node: parent, Err: ErrOrphanElse}
		case *domain.For:
			err = g.buildLoop(parent, s, e)
		case *domain.Block:
			err = g.buildBlock(parent, s, e)
		case *domain.With:
			err = g.buildWith(parent, s, e)
		default:
			err = &InternalError{Op: "build", Node: parent, Err: ErrUnknownExpression}
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (g *Generator) append(parent domain.NodeID, n Node) (domain.NodeID, error) {
	id, err := g.tree.Append(parent, n)
	if err != nil {
		return domain.NodeID{}, &InternalError{Op: "append", Node: parent, Err: err}
	}
	g.pass.Created++
	return id, nil
}

func (g *Generator) str(id domain.StringID, node domain.NodeID) (string, error) {
	s, err := g.tpl.String(id)
	if err != nil {
		return "", &InternalError{Op: "lookup", Node: node, Err: err}
	}
	return s, nil
}

func (g *Generator) buildElement(parent domain.NodeID, s *scope.Scope, e *domain.StaticNode) error {
	ident, err := g.str(e.Ident, parent)
	if err != nil {
		return err
	}
	id, err := g.append(parent, Node{Kind: KindElement, Ident: ident, scope: s, expr: e})
	if err != nil {
		return err
	}
	if err := g.evalElement(id); err != nil {
		return err
	}
	return g.build(id, s, e.Children)
}

func (g *Generator) buildControlFlow(parent domain.NodeID, s *scope.Scope, chain []branch) error {
	id, err := g.append(parent, Node{Kind: KindControlFlow, scope: s, chain: chain, active: -1})
	if err != nil {
		return err
	}
	return g.evalControlFlow(id)
}

func (g *Generator) buildLoop(parent domain.NodeID, s *scope.Scope, e *domain.For) error {
	binding, err := g.str(e.Binding, parent)
	if err != nil {
		return err
	}
	id, err := g.append(parent, Node{Kind: KindLoop, Ident: binding, scope: s, expr: e})
	if err != nil {
		return err
	}
	return g.evalLoop(id)
}

// buildIteration inserts the index-th iteration of loop, binding its
// element in a child scope.
func (g *Generator) buildIteration(loop domain.NodeID, index int, b scope.Binding) error {
	ln, ok := g.tree.Get(loop)
	if !ok {
		return &InternalError{Op: "iterate", Node: loop, Err: tree.ErrNodeNotFound}
	}
	inner := ln.scope.Child()
	inner.Bind(ln.Ident, b)

	n := Node{Kind: KindIteration, Ident: ln.Ident, scope: ln.scope, inner: inner, binding: b, index: index}
	if ref, ok := b.Ref(); ok {
		if err := g.state.Acquire(ref); err != nil {
			g.logger.Debug("iteration element not acquired", "ref", ref, "err", err)
		} else {
			n.acquired = append(n.acquired, ref)
		}
	}

	id, err := g.tree.InsertChild(loop, index, n)
	if err != nil {
		g.release(n.acquired)
		return &InternalError{Op: "iterate", Node: loop, Err: err}
	}
	g.pass.Created++
	return g.build(id, inner, ln.expr.(*domain.For).Body)
}

func (g *Generator) buildBlock(parent domain.NodeID, s *scope.Scope, e *domain.Block) error {
	id, err := g.append(parent, Node{Kind: KindBlock, scope: s, expr: e})
	if err != nil {
		return err
	}
	return g.build(id, s, e.Body)
}

func (g *Generator) buildWith(parent domain.NodeID, s *scope.Scope, e *domain.With) error {
	binding, err := g.str(e.Binding, parent)
	if err != nil {
		return err
	}
	id, err := g.append(parent, Node{Kind: KindWith, Ident: binding, scope: s, expr: e})
	if err != nil {
		return err
	}
	return g.evalWith(id)
}

// remove tears down id and its subtree.
func (g *Generator) remove(id domain.NodeID) {
	g.tree.RemoveID(id, g.teardown)
}

func (g *Generator) removeChildren(id domain.NodeID) {
	g.tree.RemoveChildren(id, g.teardown)
}

// teardown runs once per removed node, children first.
func (g *Generator) teardown(id domain.NodeID, n Node) {
	g.tracker.Unsubscribe(id)
	g.release(n.acquired)
	g.pass.Removed++
}

func (g *Generator) release(refs []value.Ref) {
	for _, ref := range refs {
		if err := g.state.Release(ref); err != nil {
			g.logger.Warn("failed to release ref", "ref", ref, "err", err)
		}
	}
}
