package arbor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"path/filepath"
	"sync"

	"github.com/aretw0/arbor/internal/adapters/file"
	"github.com/aretw0/arbor/internal/presentation/graph"
	"github.com/aretw0/arbor/internal/runtime"
	"github.com/aretw0/arbor/internal/validator"
	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/dirty"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/aretw0/arbor/pkg/registry"
	"github.com/aretw0/arbor/pkg/schema"
	"github.com/aretw0/arbor/pkg/state"
	"github.com/aretw0/arbor/pkg/tree"
)

// DefaultTemplate is the template generated when WithTemplate is not given.
const DefaultTemplate = "main"

var (
	// ErrNotStarted is returned by operations that need a generated tree.
	ErrNotStarted = errors.New("engine not started")
	// ErrAlreadyStarted is returned by a second call to Start.
	ErrAlreadyStarted = errors.New("engine already started")
	// ErrNotSupported is returned when the configured source or loader lacks a capability.
	ErrNotSupported = errors.New("operation not supported")
	// ErrInvalidState is returned when the State does not match the
	// template's declared state types. The State is left unchanged.
	ErrInvalidState = errors.New("invalid state")
)

type (
	// Report summarises one generation or update pass.
	Report = runtime.Report
	// Node is a generated node as stored in the tree.
	Node = runtime.Node
	// Recorder observes generation passes. *observability.Metrics implements it.
	Recorder = runtime.Recorder
)

// Engine is the high-level entry point for the arbor library.
// It owns the State, the dirty tracker and the generator, and serialises
// every mutation and generation pass behind one mutex.
type Engine struct {
	mu sync.Mutex

	loader   ports.TemplateLoader
	source   ports.Source
	logger   *slog.Logger
	recorder Recorder
	funcs    *registry.Registry
	globals  map[string]any
	template string
	Name     string

	tracker  *dirty.Tracker
	store    *state.Store
	schema   schema.Schema
	gen      *runtime.Generator
	last     []domain.NodeSnapshot
	changes  []domain.TreeChange
	watchers map[chan []domain.TreeChange]struct{}
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLoader injects a custom TemplateLoader, bypassing the default directory loader.
func WithLoader(l ports.TemplateLoader) Option {
	return func(e *Engine) {
		e.loader = l
	}
}

// WithSource sets where the initial State is read from. Without it the
// State starts empty.
func WithSource(s ports.Source) Option {
	return func(e *Engine) {
		e.source = s
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithMetrics reports every generation pass to r.
func WithMetrics(r Recorder) Option {
	return func(e *Engine) {
		e.recorder = r
	}
}

// WithFunctions replaces the functions templates may call.
func WithFunctions(r *registry.Registry) Option {
	return func(e *Engine) {
		e.funcs = r
	}
}

// WithTemplate selects the template to generate (default: "main").
func WithTemplate(name string) Option {
	return func(e *Engine) {
		e.template = name
	}
}

// WithGlobals binds constant names visible to every expression.
func WithGlobals(globals map[string]any) Option {
	return func(e *Engine) {
		e.globals = globals
	}
}

// New initializes a new arbor Engine.
// By default, templates are read from the directory dir.
// If WithLoader option is provided, dir can be empty and is only used as a label.
func New(dir string, opts ...Option) (*Engine, error) {
	eng := &Engine{
		template: DefaultTemplate,
		watchers: make(map[chan []domain.TreeChange]struct{}),
	}

	for _, opt := range opts {
		opt(eng)
	}

	if eng.loader == nil {
		if dir == "" {
			return nil, fmt.Errorf("dir is required when no custom loader is provided")
		}
		absPath, err := filepath.Abs(dir)
		if err != nil {
			return nil, fmt.Errorf("invalid path: %w", err)
		}
		eng.Name = filepath.Base(absPath)
		eng.loader = file.NewLoader(absPath)
	} else if dir != "" {
		eng.Name = filepath.Base(dir)
	}

	if eng.source == nil {
		eng.source = memory.NewSource(nil)
	}
	if eng.funcs == nil {
		eng.funcs = registry.Default()
	}
	if eng.logger == nil {
		eng.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if eng.Name != "" {
		eng.logger = eng.logger.With("project", eng.Name)
	}

	eng.tracker = dirty.New()
	return eng, nil
}

// Start loads the template and the initial State and generates the tree.
func (e *Engine) Start(ctx context.Context) (Report, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.gen != nil {
		return Report{}, ErrAlreadyStarted
	}

	// 1. Resolve the template
	tpl, types, err := e.loadTemplate()
	if err != nil {
		return Report{}, err
	}

	// 2. Seed the State
	data, err := e.loadSource(ctx)
	if err != nil {
		return Report{}, err
	}
	store := state.FromMap(e.tracker, data)
	e.tracker.Drain()
	if err := schema.Validate(types, store.Get); err != nil {
		return Report{}, fmt.Errorf("%w: %w", ErrInvalidState, err)
	}
	e.store, e.schema = store, types

	// 3. Generate
	report, err := e.generate(ctx, tpl)
	if err != nil {
		return report, err
	}
	e.logger.Info("engine started", "template", tpl.Name, "nodes", report.Created)
	return report, nil
}

func (e *Engine) loadTemplate() (*domain.Template, schema.Schema, error) {
	tpl, err := e.loader.GetTemplate(e.template)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load template %q: %w", e.template, err)
	}
	if err := validator.ValidateTemplate(tpl, validator.WithRegistry(e.funcs)); err != nil {
		return nil, nil, err
	}
	types, err := schema.ParseTypeMap(tpl.StateSchema)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", domain.ErrMalformedTemplate, err)
	}
	return tpl, types, nil
}

func (e *Engine) loadSource(ctx context.Context) (map[string]any, error) {
	data, err := e.source.Load(ctx)
	if errors.Is(err, domain.ErrSourceNotFound) {
		e.logger.Debug("state source is empty")
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load state: %w", err)
	}
	return data, nil
}

func (e *Engine) generate(ctx context.Context, tpl *domain.Template) (Report, error) {
	opts := []runtime.Option{
		runtime.WithLogger(e.logger),
		runtime.WithFunctions(e.funcs),
		runtime.WithGlobals(e.globals),
	}
	if e.recorder != nil {
		opts = append(opts, runtime.WithRecorder(e.recorder))
	}
	gen := runtime.NewGenerator(tpl, e.store, e.tracker, opts...)
	report, err := gen.Generate(ctx)
	if err != nil {
		gen.Teardown()
		return report, err
	}
	e.gen = gen
	e.publish(gen.Snapshot())
	return report, nil
}

// Started reports whether Start has completed.
func (e *Engine) Started() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.gen != nil
}

// Tick runs one update pass over the nodes dirtied since the last pass and
// notifies watchers of the resulting tree changes.
func (e *Engine) Tick(ctx context.Context) (Report, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tick(ctx)
}

func (e *Engine) tick(ctx context.Context) (Report, error) {
	if e.gen == nil {
		return Report{}, ErrNotStarted
	}
	report, err := e.gen.Update(ctx)
	if err != nil {
		return report, err
	}
	if report.Dirty > 0 {
		e.publish(e.gen.Snapshot())
	}
	return report, nil
}

// publish diffs snap against the previous snapshot and fans the changes
// out to watchers. Slow watchers miss updates rather than block the engine.
func (e *Engine) publish(snap []domain.NodeSnapshot) {
	changes := domain.Diff(e.last, snap)
	e.last = snap
	if len(changes) == 0 {
		return
	}
	e.changes = changes
	for ch := range e.watchers {
		select {
		case ch <- changes:
		default:
			e.logger.Warn("watcher is lagging, dropping update", "changes", len(changes))
		}
	}
}

// mutate applies fn to the State and runs an update pass. With declared
// state types, fn is first tried on a scratch copy and rejected when the
// result does not validate.
func (e *Engine) mutate(ctx context.Context, fn func(*state.Store) error) (Report, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gen == nil {
		return Report{}, ErrNotStarted
	}
	if len(e.schema) > 0 {
		scratch := state.FromMap(dirty.New(), e.store.Snapshot())
		if err := fn(scratch); err != nil {
			return Report{}, err
		}
		if err := schema.Validate(e.schema, scratch.Get); err != nil {
			return Report{}, fmt.Errorf("%w: %w", ErrInvalidState, err)
		}
	}
	if err := fn(e.store); err != nil {
		return Report{}, err
	}
	return e.tick(ctx)
}

// Set assigns v at the dotted path and updates the tree.
func (e *Engine) Set(ctx context.Context, path string, v any) error {
	_, err := e.Apply(ctx, path, v)
	return err
}

// Apply is Set returning the update report.
func (e *Engine) Apply(ctx context.Context, path string, v any) (Report, error) {
	return e.mutate(ctx, func(s *state.Store) error { return s.Set(path, v) })
}

// Delete removes the value at path and updates the tree.
func (e *Engine) Delete(ctx context.Context, path string) (Report, error) {
	return e.mutate(ctx, func(s *state.Store) error { return s.Delete(path) })
}

// Push appends v to the list at path and updates the tree.
func (e *Engine) Push(ctx context.Context, path string, v any) (Report, error) {
	return e.mutate(ctx, func(s *state.Store) error { return s.Push(path, v) })
}

// Get reads the current value at path as plain Go data.
func (e *Engine) Get(path string) (any, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.store == nil {
		return nil, ErrNotStarted
	}
	return e.store.Get(path).Any(), nil
}

// State returns a copy of the whole State document.
func (e *Engine) State() (map[string]any, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.store == nil {
		return nil, ErrNotStarted
	}
	return e.store.Snapshot(), nil
}

// Reload re-reads the source and synchronises the State with it. Only the
// values that differ dirty their readers.
func (e *Engine) Reload(ctx context.Context) (Report, error) {
	data, err := e.loadSource(ctx)
	if err != nil {
		return Report{}, err
	}
	return e.mutate(ctx, func(s *state.Store) error {
		s.Sync(data)
		return nil
	})
}

// ReloadTemplate tears the tree down and generates it again from a freshly
// loaded template. The State is kept.
func (e *Engine) ReloadTemplate(ctx context.Context) (Report, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gen == nil {
		return Report{}, ErrNotStarted
	}

	tpl, types, err := e.loadTemplate()
	if err != nil {
		return Report{}, err
	}
	if err := schema.Validate(types, e.store.Get); err != nil {
		return Report{}, fmt.Errorf("%w: %w", ErrInvalidState, err)
	}

	old := e.gen
	old.Teardown()
	e.gen = nil
	e.tracker.Drain()

	report, err := e.generate(ctx, tpl)
	if err != nil {
		// Keep serving the previous template.
		e.logger.Error("template reload failed", "err", err)
		if _, rerr := old.Generate(ctx); rerr == nil {
			e.gen = old
		}
		return report, err
	}
	e.schema = types
	e.logger.Info("template reloaded", "template", tpl.Name)
	return report, nil
}

// Persist writes the current State back to the source.
func (e *Engine) Persist(ctx context.Context) error {
	sink, ok := e.source.(ports.Sink)
	if !ok {
		return fmt.Errorf("%w: source cannot save", ErrNotSupported)
	}
	data, err := e.State()
	if err != nil {
		return err
	}
	return sink.Save(ctx, data)
}

// Snapshot returns the generated tree as plain data.
func (e *Engine) Snapshot() []domain.NodeSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gen == nil {
		return nil
	}
	return e.gen.Snapshot()
}

// SnapshotAt returns the subtree at path.
func (e *Engine) SnapshotAt(path tree.Path) (domain.NodeSnapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gen == nil {
		return domain.NodeSnapshot{}, ErrNotStarted
	}
	return e.gen.SnapshotAt(path)
}

// Walk visits the generated nodes depth-first, parents before children.
// Returning false skips a node's children.
func (e *Engine) Walk(fn func(path tree.Path, n Node) bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gen == nil {
		return
	}
	e.gen.Tree().Walk(func(_ domain.NodeID, path tree.Path, n Node) bool {
		return fn(path, n)
	})
}

// Find returns the node at path.
func (e *Engine) Find(path tree.Path) (Node, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gen == nil {
		return Node{}, ErrNotStarted
	}
	return tree.ByPath(e.gen.Tree(), path)
}

// Measure sizes the whole tree with l.
func (e *Engine) Measure(l ports.Layout, c ports.Constraints) (ports.Size, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gen == nil {
		return ports.Size{}, ErrNotStarted
	}
	return e.gen.Measure(l, c), nil
}

// MeasureAt sizes the node at path with l.
func (e *Engine) MeasureAt(l ports.Layout, path tree.Path, c ports.Constraints) (ports.Size, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gen == nil {
		return ports.Size{}, ErrNotStarted
	}
	return e.gen.MeasureAt(l, path, c)
}

// Graph renders the tree as a Mermaid flowchart, highlighting the nodes
// touched by the last update.
func (e *Engine) Graph() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gen == nil {
		return graph.GenerateMermaid(nil, nil)
	}
	return graph.GenerateMermaid(e.gen.Snapshot(), graph.OverlayFromChanges(e.changes))
}

// Schema returns the state types declared by the current template, nil
// when it declares none.
func (e *Engine) Schema() schema.Schema {
	e.mu.Lock()
	defer e.mu.Unlock()
	return maps.Clone(e.schema)
}

// Signal is signaled whenever a State change dirties a node. A Tick is due.
func (e *Engine) Signal() <-chan struct{} {
	return e.tracker.Signal()
}

// Watch returns a channel receiving the tree changes of every pass that
// altered the tree. The channel is closed when ctx is done.
func (e *Engine) Watch(ctx context.Context) (<-chan []domain.TreeChange, error) {
	ch := make(chan []domain.TreeChange, 16)

	e.mu.Lock()
	e.watchers[ch] = struct{}{}
	e.mu.Unlock()

	go func() {
		<-ctx.Done()
		e.mu.Lock()
		delete(e.watchers, ch)
		close(ch)
		e.mu.Unlock()
	}()
	return ch, nil
}

// WatchSources merges the change notifications of the template loader and
// the state source, when they support watching. templates fires when the
// template changed, data when the State document changed; either may be
// nil.
func (e *Engine) WatchSources(ctx context.Context) (templates, data <-chan struct{}, err error) {
	if w, ok := e.loader.(ports.Watchable); ok {
		if templates, err = w.Watch(ctx); err != nil {
			return nil, nil, fmt.Errorf("failed to watch templates: %w", err)
		}
	}
	if w, ok := e.source.(ports.Watchable); ok {
		if data, err = w.Watch(ctx); err != nil {
			return nil, nil, fmt.Errorf("failed to watch state: %w", err)
		}
	}
	return templates, data, nil
}

// Loader returns the underlying TemplateLoader used by the engine.
func (e *Engine) Loader() ports.TemplateLoader {
	return e.loader
}

// Source returns the underlying state source.
func (e *Engine) Source() ports.Source {
	return e.source
}

// Functions returns the function registry templates are checked and run against.
func (e *Engine) Functions() *registry.Registry {
	return e.funcs
}
