package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/aretw0/arbor/pkg/domain"
)

// Source implements ports.Source and ports.Sink in memory.
// Safe for concurrent use.
type Source struct {
	mu       sync.RWMutex
	data     map[string]any
	watchers []chan struct{}
}

// NewSource creates a source. A nil document means nothing has been saved yet.
func NewSource(data map[string]any) *Source {
	s := &Source{}
	if data != nil {
		s.data = clone(data)
	}
	return s
}

// Load returns a copy of the current document.
func (s *Source) Load(ctx context.Context) (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.data == nil {
		return nil, domain.ErrSourceNotFound
	}
	return clone(s.data), nil
}

// Save replaces the document and signals watchers.
func (s *Source) Save(ctx context.Context, data map[string]any) error {
	// Deep copy to ensure isolation, similar to serialization
	copied, err := deepCopy(data)
	if err != nil {
		return fmt.Errorf("failed to copy document: %w", err)
	}

	s.mu.Lock()
	s.data = copied
	watchers := append([]chan struct{}(nil), s.watchers...)
	s.mu.Unlock()

	for _, ch := range watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	return nil
}

// Watch signals on every Save until ctx is done.
func (s *Source) Watch(ctx context.Context) (<-chan struct{}, error) {
	ch := make(chan struct{}, 1)
	s.mu.Lock()
	s.watchers = append(s.watchers, ch)
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, w := range s.watchers {
			if w == ch {
				s.watchers = append(s.watchers[:i], s.watchers[i+1:]...)
				break
			}
		}
	}()
	return ch, nil
}

func clone(data map[string]any) map[string]any {
	out, err := deepCopy(data)
	if err != nil {
		// Documents are only ever stored after a successful deepCopy.
		return data
	}
	return out
}

// deepCopy round-trips through JSON so that callers never share nested
// maps or slices with the stored document.
func deepCopy(data map[string]any) (map[string]any, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}
