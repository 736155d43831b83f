package ports

import "github.com/aretw0/arbor/pkg/value"

// Size is a measured width and height in terminal cells.
type Size struct {
	Width  int
	Height int
}

// Constraints bound the space available to a node. Zero means unbounded.
type Constraints struct {
	MaxWidth  int
	MaxHeight int
}

// LayoutNode is the read-only view of a generated node handed to a Layout.
type LayoutNode struct {
	Kind       string
	Ident      string
	Text       string
	Attributes map[string]value.Value
}

// Layout measures nodes. The engine walks the tree and calls Constrain on
// the way down and Measure on the way up; the algorithm itself belongs to
// the implementation.
type Layout interface {
	// Constrain narrows the constraints an ancestor hands to its children.
	Constrain(node LayoutNode, c Constraints) Constraints

	// Measure sizes node given the sizes of its children.
	Measure(node LayoutNode, children []Size, c Constraints) Size
}
