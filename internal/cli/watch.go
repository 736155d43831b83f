package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/internal/presentation/tui"
	"golang.org/x/sync/errgroup"
)

// RunWatch keeps the tree current, following changes to the templates and
// the State source, and prints the document after every change.
func RunWatch(ctx context.Context, opts Options, w io.Writer) error {
	logger, err := CreateLogger(opts)
	if err != nil {
		return err
	}
	if !opts.Headless {
		tui.PrintBanner(w)
	}

	engine, err := CreateEngine(opts, logger)
	if err != nil {
		return err
	}

	logger.Info("Starting Watcher", "path", opts.Dir, "state", opts.State)
	if !opts.Headless {
		printSystemMessage(w, "Watching '%s'.", opts.Dir)
	}

	runner := arbor.NewRunner(w)
	runner.Headless = opts.Headless
	runner.Watch = true
	runner.Logger = logger
	if opts.Markdown {
		runner.Renderer = arbor.ContentRenderer(tui.NewRenderer(tui.TerminalConstraints().MaxWidth))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return runner.Run(gctx, engine)
	})
	if opts.Persist > 0 {
		g.Go(func() error {
			return persistLoop(gctx, engine, opts.Persist)
		})
	}
	return g.Wait()
}

// persistLoop saves the State every interval and once more on exit.
func persistLoop(ctx context.Context, engine *arbor.Engine, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if !engine.Started() {
				return nil
			}
			// The run context is gone; give the final save its own deadline.
			saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return engine.Persist(saveCtx)
		case <-ticker.C:
			if !engine.Started() {
				continue
			}
			if err := engine.Persist(ctx); err != nil {
				return fmt.Errorf("persist error: %w", err)
			}
		}
	}
}
