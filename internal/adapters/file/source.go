package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/arbor/pkg/domain"
	"gopkg.in/yaml.v3"
)

// Source implements ports.Source, ports.Sink, ports.Updater and
// ports.Watchable over a single YAML or JSON document. The format follows
// the file extension.
type Source struct {
	Path     string
	debounce time.Duration
	mu       sync.Mutex
}

// NewSource creates a source backed by path.
func NewSource(path string) *Source {
	return &Source{Path: path, debounce: defaultDebounce}
}

// Load reads and parses the document.
func (s *Source) Load(ctx context.Context) (map[string]any, error) {
	data, err := readDocument(s.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.ErrSourceNotFound
		}
		return nil, fmt.Errorf("failed to load state: %w", err)
	}
	return data, nil
}

// Save persists the document atomically.
// It writes to a temporary file first, syncs via fsync, and then renames it to the destination.
func (s *Source) Save(ctx context.Context, data map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(data)
}

func (s *Source) save(data map[string]any) error {
	var (
		payload []byte
		err     error
	)
	if strings.EqualFold(filepath.Ext(s.Path), ".json") {
		payload, err = json.MarshalIndent(data, "", "  ")
	} else {
		payload, err = yaml.Marshal(data)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to ensure state directory: %w", err)
	}

	// 1. Create Temp File
	// we use the same directory to ensure we are on the same filesystem (required for atomic rename)
	tmpFile, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(s.Path)+"-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath) // Remove if still exists (not renamed)
	}()

	// 2. Write Data
	if _, err := tmpFile.Write(payload); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}

	// 3. Fsync to ensure durability
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}

	// 4. Close File (cannot rename open file on Windows)
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	// 5. Atomic Rename
	if err := os.Rename(tmpPath, s.Path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// Update applies fn to the document while holding the source lock.
// The lock is per process; concurrent writers in other processes are not
// excluded.
func (s *Source) Update(ctx context.Context, fn func(doc map[string]any) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.Load(ctx)
	if errors.Is(err, domain.ErrSourceNotFound) {
		doc, err = map[string]any{}, nil
	}
	if err != nil {
		return err
	}
	if err := fn(doc); err != nil {
		return err
	}
	return s.save(doc)
}

// Watch signals when the document changes on disk.
func (s *Source) Watch(ctx context.Context) (<-chan struct{}, error) {
	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to ensure state directory: %w", err)
	}
	base := filepath.Base(s.Path)
	return watchDir(ctx, dir, s.debounce, func(name string) bool { return name == base })
}
