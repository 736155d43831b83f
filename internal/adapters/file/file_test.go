package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/arbor/internal/adapters/file"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestLoader(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, "main.yaml"), `
body:
  - with: x
    as: 1 + 2 * 3
    body:
      - node: text
        text: x
`)
	write(t, filepath.Join(dir, "other.json"), `{"name": "footer", "body": [{"node": "text", "text": "'bye'"}]}`)
	write(t, filepath.Join(dir, "notes.txt"), "ignored")

	loader := file.NewLoader(dir)

	names, err := loader.ListTemplates()
	require.NoError(t, err)
	assert.Equal(t, []string{"footer", "main"}, names)

	tpl, err := loader.GetTemplate("main")
	require.NoError(t, err)
	assert.Len(t, tpl.Expressions, 1)

	_, err = loader.GetTemplate("missing")
	assert.ErrorIs(t, err, domain.ErrTemplateNotFound)
}

func TestLoader_Errors(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, "a.yaml"), "name: same\nbody: []\n")
	write(t, filepath.Join(dir, "b.yaml"), "name: same\nbody: []\n")

	_, err := file.NewLoader(dir).ListTemplates()
	assert.ErrorIs(t, err, domain.ErrMalformedTemplate)

	dir = t.TempDir()
	write(t, filepath.Join(dir, "bad.yaml"), "body:\n  - node: t\n    text: '1 +'\n")
	_, err = file.NewLoader(dir).GetTemplate("bad")
	assert.ErrorIs(t, err, domain.ErrMalformedTemplate)

	_, err = file.NewLoader(filepath.Join(dir, "nope")).ListTemplates()
	assert.Error(t, err)
}

func TestLoader_WatchInvalidates(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, "main.yaml"), "body: []\n")
	loader := file.NewLoader(dir)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := loader.Watch(ctx)
	require.NoError(t, err)

	tpl, err := loader.GetTemplate("main")
	require.NoError(t, err)
	assert.Empty(t, tpl.Expressions)

	write(t, filepath.Join(dir, "main.yaml"), "body:\n  - node: text\n")
	select {
	case <-ch:
	case <-time.After(3 * time.Second):
		t.Fatal("expected a change signal")
	}

	tpl, err = loader.GetTemplate("main")
	require.NoError(t, err)
	assert.Len(t, tpl.Expressions, 1)
}

func TestSource_Contract(t *testing.T) {
	dir := t.TempDir()
	ports.RunEmptySourceContract(t, file.NewSource(filepath.Join(dir, "missing.yaml")))
	ports.RunSourceContract(t, file.NewSource(filepath.Join(dir, "state.yaml")), nil)
	ports.RunSourceContract(t, file.NewSource(filepath.Join(dir, "nested", "state.json")), nil)
}

func TestSource_Update(t *testing.T) {
	src := file.NewSource(filepath.Join(t.TempDir(), "state.json"))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, src.Update(ctx, func(doc map[string]any) error {
			n, _ := doc["n"].(float64)
			doc["n"] = n + 1
			return nil
		}))
	}

	data, err := src.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3.0, data["n"])
}

func TestSource_Watch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.yaml")
	src := file.NewSource(path)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := src.Watch(ctx)
	require.NoError(t, err)

	require.NoError(t, src.Save(ctx, map[string]any{"a": 1}))
	select {
	case <-ch:
	case <-time.After(3 * time.Second):
		t.Fatal("expected a change signal")
	}
}
