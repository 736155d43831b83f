package tui

import (
	"os"
	"strings"

	"github.com/aretw0/arbor/pkg/ports"
	"github.com/mattn/go-runewidth"
	"golang.org/x/term"
)

// DefaultWidth is used when the output is not a terminal.
const DefaultWidth = 80

// TextLayout stacks nodes vertically in terminal cells.
//
// Elements wrap their text to the available width and place their children
// below it. Every other node is the vertical stack of its children. Two
// element attributes are understood: "padding" (cells on each side) and
// "border" (a one-cell frame).
type TextLayout struct{}

var _ ports.Layout = TextLayout{}

// Constrain removes the element's padding and border from the width handed
// to its children.
func (TextLayout) Constrain(node ports.LayoutNode, c ports.Constraints) ports.Constraints {
	inset := insets(node)
	if c.MaxWidth > 0 {
		c.MaxWidth = max(c.MaxWidth-2*inset, 1)
	}
	if c.MaxHeight > 0 {
		c.MaxHeight = max(c.MaxHeight-2*inset, 1)
	}
	return c
}

// Measure sizes a node from its own text and its children's sizes.
func (l TextLayout) Measure(node ports.LayoutNode, children []ports.Size, c ports.Constraints) ports.Size {
	var s ports.Size
	inner := l.Constrain(node, c)
	if node.Kind == "element" && node.Text != "" {
		for _, line := range Wrap(node.Text, inner.MaxWidth) {
			s.Width = max(s.Width, runewidth.StringWidth(line))
			s.Height++
		}
	}
	for _, child := range children {
		s.Width = max(s.Width, child.Width)
		s.Height += child.Height
	}

	inset := insets(node)
	if s.Width > 0 || s.Height > 0 || inset > 0 {
		s.Width += 2 * inset
		s.Height += 2 * inset
	}
	if c.MaxWidth > 0 {
		s.Width = min(s.Width, c.MaxWidth)
	}
	if c.MaxHeight > 0 {
		s.Height = min(s.Height, c.MaxHeight)
	}
	return s
}

func insets(node ports.LayoutNode) int {
	if node.Kind != "element" {
		return 0
	}
	n := 0
	if p, ok := node.Attributes["padding"].AsInt(); ok && p > 0 {
		n += int(p)
	}
	if node.Attributes["border"].Truthy() {
		n++
	}
	return n
}

// Wrap breaks text into lines no wider than width cells, splitting on
// spaces where it can. A width of zero or less only splits on newlines.
func Wrap(text string, width int) []string {
	var lines []string
	for _, para := range strings.Split(text, "\n") {
		if width <= 0 {
			lines = append(lines, para)
			continue
		}
		lines = append(lines, wrapLine(para, width)...)
	}
	return lines
}

func wrapLine(s string, width int) []string {
	var lines []string
	var cur strings.Builder
	curWidth := 0
	flush := func() {
		lines = append(lines, cur.String())
		cur.Reset()
		curWidth = 0
	}

	for _, word := range strings.Fields(s) {
		w := runewidth.StringWidth(word)
		if curWidth > 0 && curWidth+1+w > width {
			flush()
		}
		// Words wider than a full line are hard-broken.
		for w > width {
			head := runewidth.Truncate(word, width, "")
			if head == "" {
				break
			}
			if curWidth > 0 {
				flush()
			}
			lines = append(lines, head)
			word = word[len(head):]
			w = runewidth.StringWidth(word)
		}
		if w == 0 {
			continue
		}
		if curWidth > 0 {
			cur.WriteByte(' ')
			curWidth++
		}
		cur.WriteString(word)
		curWidth += w
	}
	if curWidth > 0 || len(lines) == 0 {
		flush()
	}
	return lines
}

// TerminalConstraints reports the size of the terminal on stdout, or
// DefaultWidth with no height bound when stdout is not a terminal.
func TerminalConstraints() ports.Constraints {
	fd := int(os.Stdout.Fd())
	if term.IsTerminal(fd) {
		if w, h, err := term.GetSize(fd); err == nil && w > 0 {
			return ports.Constraints{MaxWidth: w, MaxHeight: h}
		}
	}
	return ports.Constraints{MaxWidth: DefaultWidth}
}
