package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/schema"
	"github.com/aretw0/arbor/pkg/tree"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Engine defines what the inspector reads from and writes to.
type Engine interface {
	Snapshot() []domain.NodeSnapshot
	SnapshotAt(path tree.Path) (domain.NodeSnapshot, error)
	Set(ctx context.Context, path string, v any) error
	Graph() string
	Schema() schema.Schema
	Watch(ctx context.Context) (<-chan []domain.TreeChange, error)
}

// Server serves the tree inspector API.
type Server struct {
	Engine   Engine
	gatherer prometheus.Gatherer
	version  string
	logger   *slog.Logger
}

type Option func(*Server)

// WithGatherer exposes the gatherer's metrics on GET /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithVersion sets the version reported by GET /info.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = v
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// Info is the body of GET /info. State lists the types the template
// declares for State paths.
type Info struct {
	App     string        `json:"app"`
	Version string        `json:"version"`
	State   schema.Schema `json:"state,omitempty"`
}

// StateUpdate is the body of POST /state.
type StateUpdate struct {
	Path  string `json:"path"`
	Value any    `json:"value"`
}

// NewHandler creates a new HTTP handler for the engine.
func NewHandler(engine Engine, opts ...Option) http.Handler {
	s := &Server{
		Engine:  engine,
		version: "dev",
		logger:  slog.New(slog.NewJSONHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", s.Health)
	r.Get("/info", s.Info)
	r.Get("/tree", s.GetTree)
	r.Get("/tree/*", s.GetNode)
	r.Post("/state", s.PostState)
	r.Get("/graph", s.GetGraph)
	r.Get("/events", s.SubscribeEvents)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to encode response", "err", err)
	}
}

// Health handles GET /health.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Info handles GET /info.
func (s *Server) Info(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, Info{
		App:     "arbor-http",
		Version: s.version,
		State:   s.Engine.Schema(),
	})
}

// GetTree handles GET /tree.
func (s *Server) GetTree(w http.ResponseWriter, r *http.Request) {
	nodes := s.Engine.Snapshot()
	if nodes == nil {
		nodes = []domain.NodeSnapshot{}
	}
	s.writeJSON(w, http.StatusOK, nodes)
}

// GetNode handles GET /tree/{path}, where path is slash separated child
// indices such as /tree/0/2.
func (s *Server) GetNode(w http.ResponseWriter, r *http.Request) {
	path, err := tree.ParsePath(chi.URLParam(r, "*"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	node, err := s.Engine.SnapshotAt(path)
	if err != nil {
		if errors.Is(err, tree.ErrPathNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, fmt.Sprintf("Inspect error: %v", err), http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, node)
}

// PostState handles POST /state.
func (s *Server) PostState(w http.ResponseWriter, r *http.Request) {
	var body StateUpdate
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if body.Path == "" {
		http.Error(w, "path is required", http.StatusBadRequest)
		return
	}

	if err := s.Engine.Set(r.Context(), body.Path, body.Value); err != nil {
		http.Error(w, fmt.Sprintf("Set error: %v", err), http.StatusUnprocessableEntity)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetGraph handles GET /graph.
func (s *Server) GetGraph(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, s.Engine.Graph())
}

// SubscribeEvents handles the GET /events request (SSE). Each event
// carries the changes of one update pass.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	events, err := s.Engine.Watch(r.Context())
	if err != nil {
		http.Error(w, fmt.Sprintf("Watch error: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case changes, ok := <-events:
			if !ok {
				return
			}
			payload, err := json.Marshal(changes)
			if err != nil {
				s.logger.Warn("failed to encode changes", "err", err)
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		}
	}
}
