package cli

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/arbor/internal/adapters/file"
	"github.com/aretw0/arbor/internal/adapters/redis"
	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/persistence/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mainTemplate = `
body:
  - node: title
    text: title
  - for: item
    in: items
    body:
      - node: item
        text: item
`

func project(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
	return dir
}

func TestDetermineTemplate(t *testing.T) {
	t.Run("main wins", func(t *testing.T) {
		dir := project(t, map[string]string{"main.yaml": "body: []\n", "index.yaml": "body: []\n"})
		name, err := determineTemplate(file.NewLoader(dir), dir)
		require.NoError(t, err)
		assert.Equal(t, "main", name)
	})

	t.Run("fallback to index", func(t *testing.T) {
		dir := project(t, map[string]string{"index.yaml": "body: []\n", "other.yaml": "body: []\n"})
		name, err := determineTemplate(file.NewLoader(dir), dir)
		require.NoError(t, err)
		assert.Equal(t, "index", name)
	})

	t.Run("fallback to directory name", func(t *testing.T) {
		root := t.TempDir()
		dir := filepath.Join(root, "dashboard")
		require.NoError(t, os.Mkdir(dir, 0755))
		for _, f := range []string{"dashboard.yaml", "other.yaml"} {
			require.NoError(t, os.WriteFile(filepath.Join(dir, f), []byte("body: []\n"), 0644))
		}
		name, err := determineTemplate(file.NewLoader(dir), dir)
		require.NoError(t, err)
		assert.Equal(t, "dashboard", name)
	})

	t.Run("single template", func(t *testing.T) {
		dir := project(t, map[string]string{"only.yaml": "body: []\n"})
		name, err := determineTemplate(file.NewLoader(dir), dir)
		require.NoError(t, err)
		assert.Equal(t, "only", name)
	})
}

func TestRunRender(t *testing.T) {
	dir := project(t, map[string]string{"main.yaml": mainTemplate})
	data := project(t, map[string]string{"state.yaml": "title: Groceries\nitems: [milk, eggs]\n"})
	opts := Options{Dir: dir, State: filepath.Join(data, "state.yaml")}

	var out bytes.Buffer
	require.NoError(t, RunRender(context.Background(), opts, &out))
	assert.Contains(t, out.String(), `"Groceries"`)
	assert.Contains(t, out.String(), `"eggs"`)

	out.Reset()
	opts.Headless = true
	require.NoError(t, RunRender(context.Background(), opts, &out))
	assert.Contains(t, out.String(), `"kind": "loop"`)
}

func TestRunGraph(t *testing.T) {
	dir := project(t, map[string]string{"main.yaml": mainTemplate})

	var out bytes.Buffer
	require.NoError(t, RunGraph(context.Background(), Options{Dir: dir}, &out))
	assert.Contains(t, out.String(), "graph TD")
	assert.Contains(t, out.String(), `n_1[["loop item"]]`)
}

func TestRunSet_File(t *testing.T) {
	dir := project(t, map[string]string{"state.yaml": "title: a\n"})
	opts := Options{Dir: dir, State: filepath.Join(dir, "state.yaml")}
	ctx := context.Background()

	require.NoError(t, RunSet(ctx, opts, "items", ParseValue("[milk]")))
	require.NoError(t, RunSet(ctx, opts, "items.1", ParseValue("eggs")))
	require.NoError(t, RunSet(ctx, opts, "count", ParseValue("3")))

	doc, err := file.NewSource(opts.State).Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", doc["title"])
	assert.Equal(t, []any{"milk", "eggs"}, doc["items"])
	assert.Equal(t, 3, doc["count"])

	assert.Error(t, RunSet(ctx, Options{Dir: dir}, "x", 1))
}

func TestRunSet_Secured(t *testing.T) {
	dir := t.TempDir()
	opts := Options{
		Dir:      dir,
		State:    filepath.Join(dir, "state.yaml"),
		StateKey: strings.Repeat("ab", 32),
		Mask:     []string{"password"},
	}
	ctx := context.Background()

	require.NoError(t, RunSet(ctx, opts, "user", ParseValue("{name: ada, password: hunter2}")))

	raw, err := file.NewSource(opts.State).Load(ctx)
	require.NoError(t, err)
	assert.Len(t, raw, 1)
	assert.Contains(t, raw, middleware.EnvelopeKey)

	src, err := SecureSource(file.NewSource(opts.State), opts)
	require.NoError(t, err)
	doc, err := src.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "ada", "password": middleware.Mask}, doc["user"])

	_, err = SecureSource(file.NewSource(opts.State), Options{StateKey: "zz"})
	assert.Error(t, err)
}

func TestRunSet_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()
	opts := Options{State: "redis://" + mr.Addr() + "/0"}

	require.NoError(t, RunSet(ctx, opts, "user.name", ParseValue("ada")))

	src, err := OpenSource(opts.State, logging.NewNop())
	require.NoError(t, err)
	require.IsType(t, &redis.Source{}, src)

	doc, err := src.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "ada"}, doc["user"])
}

func TestRunValidate(t *testing.T) {
	dir := project(t, map[string]string{"main.yaml": mainTemplate})
	var out bytes.Buffer
	require.NoError(t, RunValidate(Options{Dir: dir}, &out))
	assert.Contains(t, out.String(), "1 templates are valid")

	dir = project(t, map[string]string{
		"main.yaml": mainTemplate,
		"bad.yaml":  "body:\n  - else: true\n",
		"fn.yaml":   "body:\n  - node: t\n    text: nope(1)\n",
	})
	err := RunValidate(Options{Dir: dir}, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "found 2 invalid templates")
	assert.ErrorContains(t, err, domain.ErrMalformedTemplate.Error())
}

func TestParseValue(t *testing.T) {
	assert.Equal(t, 42, ParseValue("42"))
	assert.Equal(t, true, ParseValue("true"))
	assert.Equal(t, "hello world", ParseValue("hello world"))
	assert.Equal(t, "", ParseValue(""))
	assert.Equal(t, []any{"a", "b"}, ParseValue("[a, b]"))
	assert.Equal(t, "{unclosed", ParseValue("{unclosed"))
}

func TestCreateLogger(t *testing.T) {
	logger, err := CreateLogger(Options{Debug: true})
	require.NoError(t, err)
	assert.True(t, logger.Enabled(context.Background(), slog.LevelDebug))

	_, err = CreateLogger(Options{LogLevel: "loud"})
	assert.Error(t, err)

	logger, err = CreateLogger(Options{LogLevel: "warn"})
	require.NoError(t, err)
	assert.True(t, logger.Enabled(context.Background(), slog.LevelWarn))
	assert.False(t, logger.Enabled(context.Background(), slog.LevelInfo))
}
