package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/arbor/pkg/value"
)

// ErrUnknownFunction is returned when calling a name that was never registered.
var ErrUnknownFunction = errors.New("unknown function")

// Function defines the signature of a template function.
// It receives the evaluated arguments and returns a value or an error.
type Function func(args []value.Value) (value.Value, error)

// Registry manages the functions templates can call.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]Function
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		funcs: make(map[string]Function),
	}
}

// Default creates a registry holding the builtin functions.
func Default() *Registry {
	r := NewRegistry()
	RegisterBuiltins(r)
	return r
}

// Register adds a function to the registry.
// If a function with the same name exists, it is overwritten.
func (r *Registry) Register(name string, fn Function) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[name] = fn
}

// Call looks up a function by name and executes it.
// Returns an error if the function is not found.
func (r *Registry) Call(name string, args []value.Value) (value.Value, error) {
	r.mu.RLock()
	fn, ok := r.funcs[name]
	r.mu.RUnlock()

	if !ok {
		return value.Null(), fmt.Errorf("%w: %s", ErrUnknownFunction, name)
	}

	return fn(args)
}

// Names returns the registered function names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
