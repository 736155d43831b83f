package memory

import (
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/arbor/pkg/domain"
)

// Loader implements ports.TemplateLoader using an in-memory map.
// Safe for concurrent use.
type Loader struct {
	mu        sync.RWMutex
	templates map[string]*domain.Template
}

// NewLoader creates a new Loader holding the provided templates.
func NewLoader(templates ...*domain.Template) (*Loader, error) {
	l := &Loader{templates: make(map[string]*domain.Template)}
	for _, tpl := range templates {
		if err := l.Add(tpl); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// Add registers tpl under its name, replacing any previous template with
// the same name.
func (l *Loader) Add(tpl *domain.Template) error {
	if tpl == nil || tpl.Name == "" {
		return fmt.Errorf("template missing name")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.templates[tpl.Name] = tpl
	return nil
}

// GetTemplate retrieves a template by name.
func (l *Loader) GetTemplate(name string) (*domain.Template, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	tpl, ok := l.templates[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrTemplateNotFound, name)
	}
	return tpl, nil
}

// ListTemplates returns all available template names.
func (l *Loader) ListTemplates() ([]string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	names := make([]string, 0, len(l.templates))
	for k := range l.templates {
		names = append(names, k)
	}
	sort.Strings(names) // Deterministic order
	return names, nil
}
