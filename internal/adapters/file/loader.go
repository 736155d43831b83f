package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/arbor/internal/dto"
	"github.com/aretw0/arbor/pkg/domain"
	"gopkg.in/yaml.v3"
)

// Loader implements ports.TemplateLoader over a directory of template
// artifacts (*.yaml, *.yml, *.json). A template is named after its artifact's
// name key, or the file name without extension when the key is absent.
// Compiled templates are cached until the directory changes.
type Loader struct {
	dir      string
	debounce time.Duration

	mu    sync.Mutex
	cache map[string]*domain.Template
	files map[string]string
}

// NewLoader creates a loader reading from dir.
func NewLoader(dir string) *Loader {
	return &Loader{dir: dir, debounce: defaultDebounce}
}

func isArtifact(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml", ".json":
		return !strings.HasPrefix(name, ".")
	}
	return false
}

// scan maps template names to files. Callers hold l.mu.
func (l *Loader) scan() error {
	if l.files != nil {
		return nil
	}
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return fmt.Errorf("failed to read template directory: %w", err)
	}

	l.files = make(map[string]string)
	l.cache = make(map[string]*domain.Template)
	for _, entry := range entries {
		if entry.IsDir() || !isArtifact(entry.Name()) {
			continue
		}
		path := filepath.Join(l.dir, entry.Name())
		tpl, err := compileFile(path)
		if err != nil {
			l.files = nil
			return err
		}
		if other, ok := l.files[tpl.Name]; ok {
			l.files = nil
			return fmt.Errorf("%w: template %q defined in both %s and %s",
				domain.ErrMalformedTemplate, tpl.Name, other, entry.Name())
		}
		l.files[tpl.Name] = path
		l.cache[tpl.Name] = tpl
	}
	return nil
}

// GetTemplate compiles (or returns the cached) template named name.
func (l *Loader) GetTemplate(name string) (*domain.Template, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.scan(); err != nil {
		return nil, err
	}
	tpl, ok := l.cache[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrTemplateNotFound, name)
	}
	return tpl, nil
}

// ListTemplates returns all template names in the directory.
func (l *Loader) ListTemplates() ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.scan(); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(l.files))
	for name := range l.files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Invalidate drops the cache so that the next read rescans the directory.
func (l *Loader) Invalidate() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.files = nil
	l.cache = nil
}

// Watch signals when an artifact in the directory changes. The cache is
// invalidated before each signal.
func (l *Loader) Watch(ctx context.Context) (<-chan struct{}, error) {
	events, err := watchDir(ctx, l.dir, l.debounce, isArtifact)
	if err != nil {
		return nil, err
	}
	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		for range events {
			l.Invalidate()
			select {
			case out <- struct{}{}:
			default:
			}
		}
	}()
	return out, nil
}

// compileFile decodes and compiles one artifact.
func compileFile(path string) (*domain.Template, error) {
	raw, err := readDocument(path)
	if err != nil {
		return nil, err
	}
	artifact, err := dto.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	tpl, err := dto.ToDomain(artifact, stem)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return tpl, nil
}

// readDocument parses a YAML or JSON file into a generic map.
func readDocument(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return decodeDocument(path, data)
}

func decodeDocument(path string, data []byte) (map[string]any, error) {
	var raw map[string]any
	if strings.EqualFold(filepath.Ext(path), ".json") {
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
	} else if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return raw, nil
}
