package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/muesli/termenv"
)

// Dump writes the snapshot as an indented outline, one node per line.
// Colors follow the terminal's profile and disappear when output is not a
// terminal.
func Dump(nodes []domain.NodeSnapshot) string {
	var sb strings.Builder
	dump(&sb, termenv.ColorProfile(), nodes, 0)
	return sb.String()
}

func dump(sb *strings.Builder, p termenv.Profile, nodes []domain.NodeSnapshot, depth int) {
	for _, n := range nodes {
		sb.WriteString(strings.Repeat("  ", depth))
		sb.WriteString(p.String(n.Path).Faint().String())
		sb.WriteString(" ")
		sb.WriteString(p.String(n.Kind).Foreground(p.Color(kindColor(n.Kind))).String())
		if n.Ident != "" {
			sb.WriteString(" " + p.String(n.Ident).Bold().String())
		}
		if n.Text != "" {
			sb.WriteString(fmt.Sprintf(" %q", n.Text))
		}
		if len(n.Attributes) > 0 {
			keys := make([]string, 0, len(n.Attributes))
			for k := range n.Attributes {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				sb.WriteString(fmt.Sprintf(" %s=%v", k, n.Attributes[k]))
			}
		}
		sb.WriteString("\n")
		dump(sb, p, n.Children, depth+1)
	}
}

func kindColor(kind string) string {
	switch kind {
	case "element":
		return "#4ade80"
	case "control_flow":
		return "#facc15"
	case "loop", "iteration":
		return "#60a5fa"
	case "with":
		return "#c084fc"
	}
	return "#9ca3af"
}
