package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/aretw0/arbor/internal/presentation/tui"
)

// RunRender generates the tree once and writes it to w.
func RunRender(ctx context.Context, opts Options, w io.Writer) error {
	logger, err := CreateLogger(opts)
	if err != nil {
		return err
	}
	engine, err := CreateEngine(opts, logger)
	if err != nil {
		return err
	}
	if _, err := engine.Start(ctx); err != nil {
		return err
	}

	snap := engine.Snapshot()
	constraints := tui.TerminalConstraints()

	switch {
	case opts.Headless:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(snap); err != nil {
			return fmt.Errorf("encode error: %w", err)
		}
	case opts.Markdown:
		out, err := tui.NewRenderer(constraints.MaxWidth)(tui.Markdown(snap))
		if err != nil {
			return fmt.Errorf("render error: %w", err)
		}
		fmt.Fprint(w, out)
	default:
		fmt.Fprint(w, tui.Dump(snap))
	}

	if opts.Measure {
		size, err := engine.Measure(tui.TextLayout{}, constraints)
		if err != nil {
			return err
		}
		printSystemMessage(w, "Measured %dx%d cells (width %d).", size.Width, size.Height, constraints.MaxWidth)
	}
	return nil
}

// RunGraph writes the generated tree as a Mermaid flowchart.
func RunGraph(ctx context.Context, opts Options, w io.Writer) error {
	logger, err := CreateLogger(opts)
	if err != nil {
		return err
	}
	engine, err := CreateEngine(opts, logger)
	if err != nil {
		return err
	}
	if _, err := engine.Start(ctx); err != nil {
		return err
	}
	fmt.Fprint(w, engine.Graph())
	return nil
}
