package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/arbor/pkg/domain"
)

// maxLabelText bounds how much of a node's text is shown in its label.
const maxLabelText = 24

// GraphOverlay contains dynamic data to highlight on the graph.
type GraphOverlay struct {
	// Changed lists node paths touched by the last update.
	Changed []string
	// Selected is the path of a node to emphasise.
	Selected string
}

// OverlayFromChanges builds an overlay highlighting the given changes.
// Removed nodes are no longer in the tree and are skipped.
func OverlayFromChanges(changes []domain.TreeChange) *GraphOverlay {
	o := &GraphOverlay{}
	for _, c := range changes {
		if c.Op != domain.ChangeRemoved {
			o.Changed = append(o.Changed, c.Path)
		}
	}
	return o
}

// GenerateMermaid produces a Mermaid flowchart of a node tree.
// It applies semantic styling:
// - Element: [Rectangle]
// - Control flow: {{Hexagon}}
// - Loop: [[Subroutine]]
// - Iteration: ([Stadium])
// - With: [/Parallelogram/]
// - Block: (Rounded)
// It also applies overlay styles (Changed/Selected) if provided.
func GenerateMermaid(nodes []domain.NodeSnapshot, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")
	sb.WriteString("    root((\"root\"))\n")

	var walk func(parent string, nodes []domain.NodeSnapshot)
	walk = func(parent string, nodes []domain.NodeSnapshot) {
		for _, node := range nodes {
			safeID := sanitizeMermaidID(node.Path)

			opener, closer := "[", "]"
			switch node.Kind {
			case "control_flow":
				opener, closer = "{{", "}}"
			case "loop":
				opener, closer = "[[", "]]"
			case "iteration":
				opener, closer = "([", "])"
			case "with":
				opener, closer = "[/", "/]"
			case "block":
				opener, closer = "(", ")"
			}

			sb.WriteString(fmt.Sprintf("    %s%s\"%s\"%s\n", safeID, opener, label(node), closer))
			sb.WriteString(fmt.Sprintf("    %s --> %s\n", parent, safeID))
			walk(safeID, node.Children)
		}
	}
	walk("root", nodes)

	// Apply Overlay Styles
	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
		sb.WriteString("    classDef changed fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef selected fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		seen := make(map[string]bool)
		for _, p := range overlay.Changed {
			safeID := sanitizeMermaidID(p)
			if !seen[safeID] && p != "" {
				seen[safeID] = true
				sb.WriteString(fmt.Sprintf("    class %s changed;\n", safeID))
			}
		}
		if overlay.Selected != "" {
			sb.WriteString(fmt.Sprintf("    class %s selected;\n", sanitizeMermaidID(overlay.Selected)))
		}
	}

	return sb.String()
}

func label(node domain.NodeSnapshot) string {
	name := node.Kind
	if node.Ident != "" {
		name = node.Ident
		if node.Kind != "element" {
			name = node.Kind + " " + node.Ident
		}
	}
	if node.Text == "" {
		return escape(name)
	}
	text := []rune(node.Text)
	if len(text) > maxLabelText {
		text = append(text[:maxLabelText-1], '…')
	}
	return escape(name) + " <br/> " + escape(string(text))
}

// escape keeps labels inside their double quotes.
func escape(s string) string {
	s = strings.ReplaceAll(s, "\"", "'")
	return strings.ReplaceAll(s, "\n", " ")
}

// sanitizeMermaidID turns a path like "[0.2]" into "n_0_2".
func sanitizeMermaidID(path string) string {
	s := strings.Trim(path, "[]")
	s = strings.ReplaceAll(s, ".", "_")
	s = strings.ReplaceAll(s, "/", "_")
	return "n_" + s
}
