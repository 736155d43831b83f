package tui

import (
	"strings"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/charmbracelet/glamour"
)

// NewRenderer returns a function that renders markdown using glamour.
// A positive width wraps output at that column.
func NewRenderer(width int) func(string) (string, error) {
	opts := []glamour.TermRendererOption{
		glamour.WithAutoStyle(), // Automatically detect light/dark background
	}
	if width > 0 {
		opts = append(opts, glamour.WithWordWrap(width))
	}
	r, err := glamour.NewTermRenderer(opts...)

	return func(markdown string) (string, error) {
		if err != nil {
			return "", err
		}
		return r.Render(markdown)
	}
}

// Markdown flattens the element nodes of a snapshot into a markdown
// document. Control nodes contribute only their children. The element
// ident picks the markdown construct:
//
//	heading  # text (level from the "level" attribute)
//	item     - text
//	code     fenced block
//	quote    > text
//	rule     ---
//
// Any other ident is written as a paragraph.
func Markdown(nodes []domain.NodeSnapshot) string {
	var sb strings.Builder
	writeMarkdown(&sb, nodes)
	return strings.TrimRight(sb.String(), "\n") + "\n"
}

func writeMarkdown(sb *strings.Builder, nodes []domain.NodeSnapshot) {
	for _, n := range nodes {
		if n.Kind != "element" {
			writeMarkdown(sb, n.Children)
			continue
		}

		switch n.Ident {
		case "heading":
			level := 1
			if l, ok := n.Attributes["level"].(int64); ok && l > 0 && l <= 6 {
				level = int(l)
			}
			sb.WriteString(strings.Repeat("#", level) + " " + n.Text + "\n\n")
		case "item":
			sb.WriteString("- " + n.Text + "\n")
		case "code":
			sb.WriteString("```\n" + n.Text + "\n```\n\n")
		case "quote":
			sb.WriteString("> " + n.Text + "\n\n")
		case "rule":
			sb.WriteString("---\n\n")
		default:
			if n.Text != "" {
				sb.WriteString(n.Text + "\n\n")
			}
		}
		writeMarkdown(sb, n.Children)
	}
}
