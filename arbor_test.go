package arbor_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/internal/adapters/file"
	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/dsl"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/aretw0/arbor/pkg/schema"
	"github.com/aretw0/arbor/pkg/tree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine(t *testing.T, data map[string]any, exprs ...dsl.Expr) (*arbor.Engine, *memory.Source) {
	t.Helper()
	loader, err := dsl.New(arbor.DefaultTemplate).Add(exprs...).Loader()
	require.NoError(t, err)

	src := memory.NewSource(data)
	eng, err := arbor.New("", arbor.WithLoader(loader), arbor.WithSource(src))
	require.NoError(t, err)
	return eng, src
}

func elements(eng *arbor.Engine) []string {
	var out []string
	eng.Walk(func(_ tree.Path, n arbor.Node) bool {
		if n.Kind.String() == "element" {
			out = append(out, n.Text.String())
		}
		return true
	})
	return out
}

func TestEngine_WithArithmetic(t *testing.T) {
	eng, _ := newEngine(t, nil,
		dsl.With("x", "1 + 2 * 3", dsl.Node("text").Text("x")),
	)

	report, err := eng.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Created)

	assert.Equal(t, []string{"7"}, elements(eng))

	node, err := eng.Find(tree.Path{0, 0})
	require.NoError(t, err)
	assert.Equal(t, "text", node.Ident)
	assert.Equal(t, "7", node.Text.String())
}

func TestEngine_SetUpdatesOnlyReaders(t *testing.T) {
	ctx := context.Background()
	eng, _ := newEngine(t, map[string]any{"title": "a", "footer": "z"},
		dsl.Node("title").Text("title"),
		dsl.Node("footer").Text("footer"),
	)
	_, err := eng.Start(ctx)
	require.NoError(t, err)

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	changes, err := eng.Watch(watchCtx)
	require.NoError(t, err)

	report, err := eng.Apply(ctx, "title", "b")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Reevaluated)
	assert.Equal(t, []string{"b", "z"}, elements(eng))

	select {
	case batch := <-changes:
		require.Len(t, batch, 1)
		assert.Equal(t, domain.ChangeUpdated, batch[0].Op)
		assert.Equal(t, "[0]", batch[0].Path)
		assert.Equal(t, []string{"text"}, batch[0].Fields)
	case <-time.After(time.Second):
		t.Fatal("no change delivered")
	}

	assert.Contains(t, eng.Graph(), "class n_0 changed;")

	v, err := eng.Get("title")
	require.NoError(t, err)
	assert.Equal(t, "b", v)
}

func TestEngine_ListMutations(t *testing.T) {
	ctx := context.Background()
	eng, _ := newEngine(t, map[string]any{"items": []any{"a", "b"}},
		dsl.For("item", "items", dsl.Node("item").Text("item")),
	)
	_, err := eng.Start(ctx)
	require.NoError(t, err)

	_, err = eng.Push(ctx, "items", "c")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, elements(eng))

	_, err = eng.Delete(ctx, "items.0")
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, elements(eng))

	snap, err := eng.SnapshotAt(tree.Path{0})
	require.NoError(t, err)
	assert.Len(t, snap.Children, 2)
}

func TestEngine_ReloadSyncsState(t *testing.T) {
	ctx := context.Background()
	eng, src := newEngine(t, map[string]any{"show": true, "msg": "hi"},
		dsl.If("show", dsl.Node("text").Text("msg")),
		dsl.Else(dsl.Node("text").Text("'hidden'")),
	)
	_, err := eng.Start(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"hi"}, elements(eng))

	require.NoError(t, src.Save(ctx, map[string]any{"show": false, "msg": "hi"}))
	_, err = eng.Reload(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"hidden"}, elements(eng))
}

func TestEngine_Persist(t *testing.T) {
	ctx := context.Background()
	eng, src := newEngine(t, map[string]any{"n": "1"}, dsl.Node("text").Text("n"))
	_, err := eng.Start(ctx)
	require.NoError(t, err)

	require.NoError(t, eng.Set(ctx, "n", "2"))
	require.NoError(t, eng.Persist(ctx))

	data, err := src.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2", data["n"])
}

func TestEngine_ReloadTemplate(t *testing.T) {
	ctx := context.Background()
	loader, err := dsl.New("main").Add(dsl.Node("text").Text("'v1'")).Loader()
	require.NoError(t, err)
	eng, err := arbor.New("", arbor.WithLoader(loader))
	require.NoError(t, err)
	_, err = eng.Start(ctx)
	require.NoError(t, err)

	require.NoError(t, loader.Add(dsl.New("main").Add(
		dsl.Node("text").Text("'v2'"),
		dsl.Node("text").Text("'extra'"),
	).MustBuild()))
	_, err = eng.ReloadTemplate(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"v2", "extra"}, elements(eng))

	// A broken template keeps the previous tree.
	require.NoError(t, loader.Add(dsl.New("main").Add(dsl.Else()).MustBuild()))
	_, err = eng.ReloadTemplate(ctx)
	assert.ErrorIs(t, err, domain.ErrMalformedTemplate)
	assert.Equal(t, []string{"v2", "extra"}, elements(eng))
}

func TestEngine_Measure(t *testing.T) {
	eng, _ := newEngine(t, map[string]any{"msg": "hello world"},
		dsl.Block(dsl.Node("text").Text("msg"), dsl.Node("text").Text("'x'")),
	)
	_, err := eng.Start(context.Background())
	require.NoError(t, err)

	size, err := eng.Measure(lineLayout{}, ports.Constraints{})
	require.NoError(t, err)
	assert.Equal(t, ports.Size{Width: 11, Height: 2}, size)

	size, err = eng.MeasureAt(lineLayout{}, tree.Path{0, 1}, ports.Constraints{})
	require.NoError(t, err)
	assert.Equal(t, ports.Size{Width: 1, Height: 1}, size)
}

// lineLayout gives every element one line and stacks everything else.
type lineLayout struct{}

func (lineLayout) Constrain(_ ports.LayoutNode, c ports.Constraints) ports.Constraints { return c }

func (lineLayout) Measure(n ports.LayoutNode, children []ports.Size, _ ports.Constraints) ports.Size {
	var s ports.Size
	if n.Kind == "element" {
		s = ports.Size{Width: len(n.Text), Height: 1}
	}
	for _, c := range children {
		s.Width = max(s.Width, c.Width)
		s.Height += c.Height
	}
	return s
}

func TestEngine_StateSchema(t *testing.T) {
	ctx := context.Background()
	loader, err := dsl.New(arbor.DefaultTemplate).
		Expect("title", "string").
		Expect("tags", "[string]?").
		Add(dsl.Node("text").Text("title")).
		Loader()
	require.NoError(t, err)

	// 1. The initial State must already match
	eng, err := arbor.New("", arbor.WithLoader(loader), arbor.WithSource(memory.NewSource(nil)))
	require.NoError(t, err)
	_, err = eng.Start(ctx)
	require.ErrorIs(t, err, arbor.ErrInvalidState)
	assert.Contains(t, err.Error(), `field "title": required`)
	assert.False(t, eng.Started())

	src := memory.NewSource(map[string]any{"title": "todo"})
	eng, err = arbor.New("", arbor.WithLoader(loader), arbor.WithSource(src))
	require.NoError(t, err)
	_, err = eng.Start(ctx)
	require.NoError(t, err)
	decl, err := eng.Schema().Declarations()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"title": "string", "tags": "[string]?"}, decl)

	// 2. Rejected mutations leave the State untouched
	assert.ErrorIs(t, eng.Set(ctx, "title", 42), arbor.ErrInvalidState)
	_, err = eng.Delete(ctx, "title")
	assert.ErrorIs(t, err, arbor.ErrInvalidState)
	_, err = eng.Push(ctx, "tags", 1)
	var verr *schema.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "tags", verr.Key)

	title, err := eng.Get("title")
	require.NoError(t, err)
	assert.Equal(t, "todo", title)
	tags, err := eng.Get("tags")
	require.NoError(t, err)
	assert.Nil(t, tags)

	// 3. Valid mutations go through
	_, err = eng.Push(ctx, "tags", "home")
	require.NoError(t, err)
	require.NoError(t, eng.Set(ctx, "title", "chores"))
	assert.Equal(t, []string{"chores"}, elements(eng))

	// 4. So does a reload
	require.NoError(t, src.Save(ctx, map[string]any{"title": false}))
	_, err = eng.Reload(ctx)
	assert.ErrorIs(t, err, arbor.ErrInvalidState)
	assert.Equal(t, []string{"chores"}, elements(eng))
}

func TestEngine_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := arbor.New("")
	assert.Error(t, err)

	eng, _ := newEngine(t, nil, dsl.Node("text"))
	_, err = eng.Tick(ctx)
	assert.ErrorIs(t, err, arbor.ErrNotStarted)
	assert.ErrorIs(t, eng.Set(ctx, "a", 1), arbor.ErrNotStarted)
	assert.Nil(t, eng.Snapshot())

	_, err = eng.Start(ctx)
	require.NoError(t, err)
	_, err = eng.Start(ctx)
	assert.ErrorIs(t, err, arbor.ErrAlreadyStarted)

	eng, err = arbor.New("", arbor.WithLoader(mustLoader(t)), arbor.WithTemplate("nope"))
	require.NoError(t, err)
	_, err = eng.Start(ctx)
	assert.ErrorIs(t, err, domain.ErrTemplateNotFound)
}

func mustLoader(t *testing.T) *memory.Loader {
	t.Helper()
	loader, err := dsl.New("main").Loader()
	require.NoError(t, err)
	return loader
}

func TestEngine_FileProject(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.yaml"), []byte(`
body:
  - for: user
    in: users
    body:
      - node: item
        text: user.name
`), 0644))
	statePath := filepath.Join(dir, "state.json")
	require.NoError(t, os.WriteFile(statePath, []byte(`{"users": [{"name": "ada"}]}`), 0644))

	eng, err := arbor.New(dir, arbor.WithSource(file.NewSource(statePath)))
	require.NoError(t, err)
	assert.Equal(t, filepath.Base(dir), eng.Name)

	ctx := context.Background()
	_, err = eng.Start(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"ada"}, elements(eng))

	_, err = eng.Push(ctx, "users", map[string]any{"name": "bob"})
	require.NoError(t, err)
	require.NoError(t, eng.Persist(ctx))

	raw, err := os.ReadFile(statePath)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "bob")
}

// syncBuffer lets the test read output while the runner writes it.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestRunner_Headless(t *testing.T) {
	eng, src := newEngine(t, map[string]any{"msg": "one"}, dsl.Node("text").Text("msg"))

	out := &syncBuffer{}
	runner := arbor.NewRunner(out)
	runner.Headless = true
	runner.Watch = true

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runner.Run(ctx, eng) }()

	require.Eventually(t, func() bool { return strings.Contains(out.String(), `"one"`) }, time.Second, 10*time.Millisecond)

	require.NoError(t, src.Save(context.Background(), map[string]any{"msg": "two"}))
	require.Eventually(t, func() bool { return strings.Contains(out.String(), `"two"`) }, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("runner did not stop")
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.Len(t, lines, 2)
	assert.Contains(t, lines[1], `"op":"updated"`)
}

func TestRunner_Rendered(t *testing.T) {
	eng, _ := newEngine(t, map[string]any{"title": "Hello"},
		dsl.Node("heading").Text("title"),
	)

	_, err := eng.Start(context.Background())
	require.NoError(t, err)

	var out bytes.Buffer
	runner := arbor.NewRunner(&out)
	runner.Renderer = func(s string) (string, error) { return strings.ToUpper(s), nil }

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, runner.Run(ctx, eng))
	assert.Equal(t, "# HELLO\n", out.String())
}

func TestRunner_RenderFailure(t *testing.T) {
	eng, _ := newEngine(t, map[string]any{"title": "Hello"},
		dsl.Node("heading").Text("title"),
	)

	_, err := eng.Start(context.Background())
	require.NoError(t, err)

	var out, logs bytes.Buffer
	runner := arbor.NewRunner(&out)
	runner.Logger = slog.New(slog.NewTextHandler(&logs, nil))
	runner.Renderer = func(string) (string, error) { return "", errors.New("no terminal") }

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, runner.Run(ctx, eng))
	assert.Equal(t, "# Hello\n", out.String())
	assert.Contains(t, logs.String(), "level=WARN")
	assert.Contains(t, logs.String(), "no terminal")
}
