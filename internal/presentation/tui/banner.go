package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the arbor banner to w.
func PrintBanner(w io.Writer) {
	p := termenv.ColorProfile()
	// Green to teal, top to bottom
	lines := []struct {
		text  string
		color string
	}{
		{"   __ _ _ __| |__   ___  _ __ ", "#4ade80"},
		{"  / _` | '__| '_ \\ / _ \\| '__|", "#34d399"},
		{" | (_| | |  | |_) | (_) | |   ", "#2dd4bf"},
		{"  \\__,_|_|  |_.__/ \\___/|_|   ", "#22d3ee"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w)
}
