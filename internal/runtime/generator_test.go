package runtime_test

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/arbor/internal/runtime"
	"github.com/aretw0/arbor/pkg/dirty"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/dsl"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/aretw0/arbor/pkg/state"
	"github.com/aretw0/arbor/pkg/tree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T, data map[string]any, exprs ...dsl.Expr) (*runtime.Generator, *state.Store) {
	t.Helper()
	tracker := dirty.New()
	st := state.FromMap(tracker, data)
	tpl := dsl.New("test").Add(exprs...).MustBuild()

	g := runtime.NewGenerator(tpl, st, tracker)
	_, err := g.Generate(context.Background())
	require.NoError(t, err)
	return g, st
}

// texts returns the text of every element in tree order.
func texts(g *runtime.Generator) []string {
	var out []string
	g.Tree().Walk(func(_ domain.NodeID, _ tree.Path, n runtime.Node) bool {
		if n.Kind == runtime.KindElement {
			out = append(out, n.Text.String())
		}
		return true
	})
	return out
}

func update(t *testing.T, g *runtime.Generator) runtime.Report {
	t.Helper()
	report, err := g.Update(context.Background())
	require.NoError(t, err)
	return report
}

func TestGenerate_WithArithmetic(t *testing.T) {
	g, _ := setup(t, nil,
		dsl.With("x", "1 + 2 * 3", dsl.Node("text").Text("x")),
	)

	assert.Equal(t, []string{"7"}, texts(g))
	assert.Equal(t, 2, g.Tree().Len(), "the with node and exactly one text node")

	snap := g.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "with", snap[0].Kind)
	require.Len(t, snap[0].Children, 1)
	assert.Equal(t, "text", snap[0].Children[0].Ident)
	assert.Equal(t, "[0.0]", snap[0].Children[0].Path)
}

func TestUpdate_ElementText(t *testing.T) {
	g, st := setup(t, map[string]any{"user": map[string]any{"name": "ada"}},
		dsl.Node("text").Text("user.name").Attr("upper", "to_upper(user.name)"),
	)
	assert.Equal(t, []string{"ada"}, texts(g))

	require.NoError(t, st.Set("user.name", "bob"))
	report := update(t, g)

	assert.Equal(t, 1, report.Dirty)
	assert.Equal(t, 1, report.Reevaluated)
	assert.Equal(t, []string{"bob"}, texts(g))

	n, _ := g.Tree().Get(g.Tree().Children(domain.NodeID{})[0])
	assert.Equal(t, "BOB", n.Attributes["upper"].String())

	report = update(t, g)
	assert.Zero(t, report.Dirty, "nothing changed since the last pass")
}

func TestUpdate_UnrelatedKeysDoNotDirty(t *testing.T) {
	g, st := setup(t, map[string]any{"title": "todo", "user": map[string]any{"name": "ada"}},
		dsl.Node("text").Text("title"),
		dsl.Node("text").Text("user.name"),
	)

	require.NoError(t, st.Set("unrelated", 1))
	report := update(t, g)
	assert.Zero(t, report.Dirty, "a new top-level key")
	assert.Zero(t, report.Reevaluated)

	require.NoError(t, st.Set("user.age", 30))
	report = update(t, g)
	assert.Zero(t, report.Dirty, "a new sibling field")
	assert.Zero(t, report.Reevaluated)

	// Replacing the parent still reaches the reader below it.
	require.NoError(t, st.Set("user", "anonymous"))
	report = update(t, g)
	assert.Equal(t, 1, report.Reevaluated)
	assert.Equal(t, []string{"todo", ""}, texts(g))
}

func TestUpdate_NullPropagation(t *testing.T) {
	g, st := setup(t, map[string]any{"user": map[string]any{}},
		dsl.Node("text").Text("user.profile.bio"),
	)

	n, _ := g.Tree().Get(g.Tree().Children(domain.NodeID{})[0])
	assert.True(t, n.Text.IsNull())

	require.NoError(t, st.Set("user.profile", map[string]any{"bio": "hi"}))
	update(t, g)
	assert.Equal(t, []string{"hi"}, texts(g))
}

func TestControlFlow_Exclusive(t *testing.T) {
	g, st := setup(t, map[string]any{"flag": true, "a": "A", "b": "B"},
		dsl.If("flag", dsl.Node("text").Text("a")),
		dsl.Else(dsl.Node("text").Text("b")),
	)

	root := g.Tree().Children(domain.NodeID{})
	require.Len(t, root, 1, "if and else share one control-flow node")
	cf := root[0]
	assert.Equal(t, []string{"A"}, texts(g))

	thenNode := g.Tree().Children(cf)[0]
	require.NotZero(t, g.Tracker().Subscriptions(thenNode))

	// 1. Switch to the else branch
	require.NoError(t, st.Set("flag", false))
	report := update(t, g)

	assert.Equal(t, []string{"B"}, texts(g))
	assert.Equal(t, 1, g.Tree().ChildCount(cf), "only one branch is materialised")
	assert.Equal(t, 1, report.Removed)
	assert.Equal(t, 1, report.Created)

	// 2. The torn down branch keeps no subscriptions
	assert.False(t, g.Tree().Contains(thenNode))
	assert.Zero(t, g.Tracker().Subscriptions(thenNode))

	require.NoError(t, st.Set("a", "changed"))
	report = update(t, g)
	assert.Zero(t, report.Dirty, "a is only read by the removed branch")

	// 3. Back again
	require.NoError(t, st.Set("flag", true))
	update(t, g)
	assert.Equal(t, []string{"changed"}, texts(g))
}

func TestControlFlow_ElseIfChain(t *testing.T) {
	g, st := setup(t, map[string]any{"n": 1},
		dsl.If("n == 0", dsl.Node("text").Text("'zero'")),
		dsl.ElseIf("n == 1", dsl.Node("text").Text("'one'")),
		dsl.ElseIf("n == 2", dsl.Node("text").Text("'two'")),
	)
	assert.Equal(t, []string{"one"}, texts(g))

	cf := g.Tree().Children(domain.NodeID{})[0]
	n, _ := g.Tree().Get(cf)
	assert.Equal(t, 1, n.Active())

	require.NoError(t, st.Set("n", 5))
	update(t, g)
	assert.Empty(t, texts(g), "no branch matches")
	n, _ = g.Tree().Get(cf)
	assert.Equal(t, -1, n.Active())

	require.NoError(t, st.Set("n", 0))
	update(t, g)
	assert.Equal(t, []string{"zero"}, texts(g))
}

func TestControlFlow_SameBranchKeepsNodes(t *testing.T) {
	g, st := setup(t, map[string]any{"n": 1},
		dsl.If("n > 0", dsl.Node("text").Text("n")),
	)
	cf := g.Tree().Children(domain.NodeID{})[0]
	child := g.Tree().Children(cf)[0]

	require.NoError(t, st.Set("n", 2))
	report := update(t, g)

	assert.Equal(t, []string{"2"}, texts(g))
	assert.True(t, g.Tree().Contains(child), "the branch did not change")
	assert.Zero(t, report.Created)
}

func TestLoop_PositionalReconcile(t *testing.T) {
	g, st := setup(t, map[string]any{"items": []any{"a", "b", "c"}},
		dsl.For("item", "items", dsl.Node("row").Text("item")),
	)
	loop := g.Tree().Children(domain.NodeID{})[0]
	assert.Equal(t, []string{"a", "b", "c"}, texts(g))
	before := g.Tree().Children(loop)

	// 1. Shrink: values move down, the last iteration goes away
	require.NoError(t, st.Delete("items.0"))
	update(t, g)

	after := g.Tree().Children(loop)
	assert.Equal(t, []string{"b", "c"}, texts(g))
	assert.Equal(t, before[:2], after, "leading iterations are kept")
	assert.Zero(t, g.Tracker().Subscriptions(before[2]))

	// 2. Grow
	require.NoError(t, st.Push("items", "d"))
	update(t, g)
	assert.Equal(t, []string{"b", "c", "d"}, texts(g))
	assert.Equal(t, after, g.Tree().Children(loop)[:2])

	it, _ := g.Tree().Get(g.Tree().Children(loop)[2])
	assert.Equal(t, runtime.KindIteration, it.Kind)
	assert.Equal(t, 2, it.Index())
}

func TestLoop_IdentityChangeRebuilds(t *testing.T) {
	g, st := setup(t, map[string]any{"items": []any{"a", "b"}},
		dsl.For("item", "items", dsl.Node("row").Text("item")),
	)
	loop := g.Tree().Children(domain.NodeID{})[0]
	before := g.Tree().Children(loop)

	require.NoError(t, st.Delete("items"))
	require.NoError(t, st.Set("items", []any{"x", "y"}))
	update(t, g)

	after := g.Tree().Children(loop)
	assert.Equal(t, []string{"x", "y"}, texts(g))
	require.Len(t, after, 2)
	assert.NotEqual(t, before[0], after[0])
	assert.False(t, g.Tree().Contains(before[0]))
}

func TestLoop_StaticCollection(t *testing.T) {
	g, st := setup(t, map[string]any{"factor": 10},
		dsl.For("n", "[1, 2, 3]", dsl.Node("text").Text("n * factor")),
	)
	assert.Equal(t, []string{"10", "20", "30"}, texts(g))

	require.NoError(t, st.Set("factor", 2))
	update(t, g)
	assert.Equal(t, []string{"2", "4", "6"}, texts(g))
}

func TestLoop_ElementsReleasedOnTeardown(t *testing.T) {
	g, st := setup(t, map[string]any{"items": []any{"a"}},
		dsl.For("item", "items", dsl.Node("row").Text("item")),
	)
	items, ok := st.Field(st.Root(), "items")
	require.True(t, ok)
	first, ok := st.Item(items, 0)
	require.True(t, ok)

	assert.Equal(t, 1, st.Refs(items), "the loop holds its collection")
	assert.Equal(t, 1, st.Refs(first), "the iteration holds its element")

	g.Teardown()
	assert.Zero(t, g.Tree().Len())
	assert.Zero(t, st.Refs(items))
	assert.Zero(t, st.Refs(first))
}

func TestUpdate_TopDownSkipsRemoved(t *testing.T) {
	g, st := setup(t, map[string]any{"show": true, "items": []any{"a"}},
		dsl.If("show", dsl.For("item", "items", dsl.Node("row").Text("item"))),
	)
	assert.Equal(t, []string{"a"}, texts(g))

	require.NoError(t, st.Set("items.0", "changed"))
	require.NoError(t, st.Set("show", false))
	report := update(t, g)

	assert.Empty(t, texts(g))
	assert.Equal(t, 1, report.Reevaluated, "only the control-flow node runs")
	assert.Equal(t, 1, report.Skipped)
}

func TestWith_RebindsOnlyOnChange(t *testing.T) {
	g, st := setup(t, map[string]any{"user": map[string]any{"name": "ada"}},
		dsl.With("u", "user", dsl.Node("text").Text("u.name")),
	)
	with := g.Tree().Children(domain.NodeID{})[0]
	child := g.Tree().Children(with)[0]

	require.NoError(t, st.Set("user.name", "bob"))
	report := update(t, g)
	assert.Equal(t, 1, report.Reevaluated)
	assert.Equal(t, []string{"bob"}, texts(g))
	assert.True(t, g.Tree().Contains(child))
}

func TestBlock_Groups(t *testing.T) {
	g, _ := setup(t, nil,
		dsl.Block(dsl.Node("text").Text("'a'"), dsl.Node("text").Text("'b'")),
	)
	root := g.Tree().Children(domain.NodeID{})
	require.Len(t, root, 1)
	assert.Equal(t, 2, g.Tree().ChildCount(root[0]))
	assert.Equal(t, []string{"a", "b"}, texts(g))
}

func TestGenerate_Errors(t *testing.T) {
	tpl := dsl.New("bad").Add(dsl.Else(dsl.Node("text"))).MustBuild()
	g := runtime.NewGenerator(tpl, nil, nil)

	_, err := g.Generate(context.Background())
	var internal *runtime.InternalError
	require.ErrorAs(t, err, &internal)
	assert.ErrorIs(t, err, runtime.ErrOrphanElse)

	_, err = g.Generate(context.Background())
	assert.ErrorIs(t, err, runtime.ErrAlreadyGenerated)

	for _, trailing := range []dsl.Expr{dsl.Else(), dsl.ElseIf("true")} {
		closed := dsl.New("closed").Add(
			dsl.If("false", dsl.Node("text").Text("'a'")),
			dsl.Else(dsl.Node("text").Text("'b'")),
			trailing,
		).MustBuild()
		_, err = runtime.NewGenerator(closed, nil, nil).Generate(context.Background())
		assert.ErrorIs(t, err, runtime.ErrOrphanElse)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = runtime.NewGenerator(tpl, nil, nil).Generate(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGenerate_Globals(t *testing.T) {
	tpl := dsl.New("g").Add(dsl.Node("text").Text("app + ' ' + version")).MustBuild()
	g := runtime.NewGenerator(tpl, nil, nil, runtime.WithGlobals(map[string]any{
		"app":     "arbor",
		"version": 1,
	}))
	_, err := g.Generate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"arbor 1"}, texts(g))
}

type recorder struct {
	passes  int
	created int
}

func (r *recorder) ObservePass(report runtime.Report, _ time.Duration, _ int) {
	r.passes++
	r.created += report.Created
}

func TestGenerate_Recorder(t *testing.T) {
	rec := &recorder{}
	tpl := dsl.New("r").Add(dsl.Node("a"), dsl.Node("b")).MustBuild()
	g := runtime.NewGenerator(tpl, nil, nil, runtime.WithRecorder(rec))

	_, err := g.Generate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rec.passes)
	assert.Equal(t, 2, rec.created)
}

// stackLayout stacks children vertically; text takes one line.
type stackLayout struct{}

func (stackLayout) Constrain(_ ports.LayoutNode, c ports.Constraints) ports.Constraints {
	if c.MaxWidth > 2 {
		c.MaxWidth -= 2
	}
	return c
}

func (stackLayout) Measure(node ports.LayoutNode, children []ports.Size, c ports.Constraints) ports.Size {
	var s ports.Size
	if node.Text != "" {
		s = ports.Size{Width: min(len(node.Text), c.MaxWidth), Height: 1}
	}
	for _, child := range children {
		s.Width = max(s.Width, child.Width)
		s.Height += child.Height
	}
	return s
}

func TestMeasure(t *testing.T) {
	g, _ := setup(t, nil,
		dsl.Node("box").Children(
			dsl.Node("text").Text("'hello world'"),
			dsl.Node("text").Text("'hi'"),
		),
	)

	size := g.Measure(stackLayout{}, ports.Constraints{MaxWidth: 80})
	assert.Equal(t, ports.Size{Width: 11, Height: 2}, size)

	// A lone top-level node measures the same as the whole tree.
	size, err := g.MeasureAt(stackLayout{}, tree.Path{0}, ports.Constraints{MaxWidth: 80})
	require.NoError(t, err)
	assert.Equal(t, g.Measure(stackLayout{}, ports.Constraints{MaxWidth: 80}), size)

	// The root and the box each take two columns before the text is measured.
	size, err = g.MeasureAt(stackLayout{}, tree.Path{0, 0}, ports.Constraints{MaxWidth: 9})
	require.NoError(t, err)
	assert.Equal(t, ports.Size{Width: 5, Height: 1}, size)

	_, err = g.MeasureAt(stackLayout{}, tree.Path{3}, ports.Constraints{})
	assert.ErrorIs(t, err, tree.ErrPathNotFound)
}
