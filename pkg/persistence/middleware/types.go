package middleware

import (
	"context"

	"github.com/aretw0/arbor/pkg/ports"
)

// Store is a state source that can also persist its document.
type Store interface {
	ports.Source
	ports.Sink
}

// Middleware allows wrapping a Store to add behavior.
type Middleware func(Store) Store

// Chain wraps s with mws, the first one outermost. When s can be watched,
// so can the result.
func Chain(s Store, mws ...Middleware) Store {
	out := s
	for i := len(mws) - 1; i >= 0; i-- {
		out = mws[i](out)
	}
	if w, ok := s.(ports.Watchable); ok && len(mws) > 0 {
		return &watchable{Store: out, watch: w}
	}
	return out
}

type watchable struct {
	Store
	watch ports.Watchable
}

func (w *watchable) Watch(ctx context.Context) (<-chan struct{}, error) {
	return w.watch.Watch(ctx)
}
