package ports

import (
	"context"

	"github.com/aretw0/arbor/pkg/domain"
)

// TemplateLoader defines how the engine retrieves compiled templates.
// This allows the storage layer (files, memory) to be decoupled.
type TemplateLoader interface {
	// GetTemplate returns the compiled template registered under name.
	// It returns domain.ErrTemplateNotFound when no such template exists.
	GetTemplate(name string) (*domain.Template, error)

	// ListTemplates returns the names of all available templates.
	// This is used for introspection and tooling (e.g. 'arbor validate').
	ListTemplates() ([]string, error)
}

// Watchable defines an interface for loaders and sources that can notify about backend changes.
// This is typically used for hot-reload or dev-mode functionality.
type Watchable interface {
	// Watch returns a channel that is signaled when the underlying data changes.
	// It abstracts away the specific event details, signaling only that a reload is required.
	Watch(ctx context.Context) (<-chan struct{}, error)
}
