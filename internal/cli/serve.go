package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aretw0/arbor"
	httpAdapter "github.com/aretw0/arbor/internal/adapters/http"
	"github.com/aretw0/arbor/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

// RunServe starts the engine and serves the inspector API until ctx is done.
func RunServe(ctx context.Context, opts Options, w io.Writer) error {
	logger, err := CreateLogger(opts)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(registry)

	engine, err := CreateEngine(opts, logger, arbor.WithMetrics(metrics))
	if err != nil {
		return err
	}
	if _, err := engine.Start(ctx); err != nil {
		return err
	}

	srv := &http.Server{
		Addr: opts.Addr,
		Handler: httpAdapter.NewHandler(engine,
			httpAdapter.WithGatherer(registry),
			httpAdapter.WithVersion(arbor.Version),
			httpAdapter.WithLogger(logger),
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// The runner keeps the tree in step with the sources; its output is the
	// inspector's business.
	runner := arbor.NewRunner(io.Discard)
	runner.Headless = true
	runner.Watch = true
	runner.Logger = logger

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		printSystemMessage(w, "Starting arbor inspector on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()

		// Give outstanding requests a deadline for completion.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown did not complete", "timeout", shutdownTimeout, "err", err)
			return srv.Close()
		}
		printSystemMessage(w, "arbor inspector stopped gracefully")
		return nil
	})
	g.Go(func() error {
		return runner.Run(gctx, engine)
	})
	return g.Wait()
}
