package arbor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/aretw0/arbor/internal/presentation/tui"
	"github.com/aretw0/arbor/pkg/domain"
)

// Runner keeps an Engine current and writes its output after every pass
// that changed the tree.
// This allows for easy testing and integration with different frontends (CLI, TUI, etc).
type Runner struct {
	Output io.Writer

	// Headless writes each batch of tree changes as one JSON line instead
	// of the rendered document.
	Headless bool

	// Renderer transforms the markdown document before it is written.
	Renderer ContentRenderer

	// Watch also follows the template loader and the state source,
	// regenerating or resynchronising when they change.
	Watch bool

	Logger *slog.Logger
}

// ContentRenderer is a function that transforms the content before outputting it.
// This allows for TUI rendering (markdown to ANSI) without coupling the core package.
type ContentRenderer func(string) (string, error)

// NewRunner creates a Runner writing to w.
func NewRunner(w io.Writer) *Runner {
	return &Runner{Output: w}
}

// Run starts the engine if needed, writes the initial output and then
// ticks on every dirty signal until ctx is done. Cancellation is not an
// error.
func (r *Runner) Run(ctx context.Context, engine *Engine) error {
	if r.Output == nil {
		return fmt.Errorf("output writer must be set (use os.Stdout)")
	}
	logger := r.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	// 1. Start Phase
	if !engine.Started() {
		if _, err := engine.Start(ctx); err != nil {
			return fmt.Errorf("start error: %w", err)
		}
	}

	// 2. Source Phase (optional)
	var templates, data <-chan struct{}
	if r.Watch {
		var err error
		templates, data, err = engine.WatchSources(ctx)
		if err != nil {
			return err
		}
	}

	changes, err := engine.Watch(ctx)
	if err != nil {
		return err
	}

	// 3. Initial Render
	if err := r.emit(engine, logger, domain.Diff(nil, engine.Snapshot())); err != nil {
		return err
	}

	// 4. Update Loop
	for {
		select {
		case <-ctx.Done():
			return nil

		case <-engine.Signal():
			if _, err := engine.Tick(ctx); err != nil {
				return r.stopped(ctx, fmt.Errorf("update error: %w", err))
			}

		case _, ok := <-data:
			if !ok {
				data = nil
				continue
			}
			logger.Debug("state source changed")
			if _, err := engine.Reload(ctx); err != nil {
				logger.Error("state reload failed", "err", err)
			}

		case _, ok := <-templates:
			if !ok {
				templates = nil
				continue
			}
			logger.Debug("template changed")
			if _, err := engine.ReloadTemplate(ctx); err != nil {
				// The previous tree stays up; report and keep watching.
				logger.Error("template reload failed", "err", err)
			}

		case batch, ok := <-changes:
			if !ok {
				return nil
			}
			if err := r.emit(engine, logger, batch); err != nil {
				return err
			}
		}
	}
}

func (r *Runner) stopped(ctx context.Context, err error) error {
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func (r *Runner) emit(engine *Engine, logger *slog.Logger, changes []domain.TreeChange) error {
	if r.Headless {
		if len(changes) == 0 {
			return nil
		}
		line, err := json.Marshal(changes)
		if err != nil {
			return fmt.Errorf("encode error: %w", err)
		}
		_, err = fmt.Fprintln(r.Output, string(line))
		return err
	}

	output := tui.Markdown(engine.Snapshot())
	if r.Renderer != nil {
		rendered, err := r.Renderer(output)
		if err != nil {
			logger.Warn("render failed, writing raw markdown", "err", err)
		} else {
			output = rendered
		}
	}
	// Ensure we print a newline after content
	_, err := fmt.Fprintln(r.Output, strings.TrimSpace(output))
	return err
}
