package runtime

import (
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/aretw0/arbor/pkg/scope"
	"github.com/aretw0/arbor/pkg/value"
)

// Kind classifies generated nodes.
type Kind uint8

const (
	KindElement Kind = iota
	KindControlFlow
	KindLoop
	KindIteration
	KindBlock
	KindWith
)

func (k Kind) String() string {
	switch k {
	case KindElement:
		return "element"
	case KindControlFlow:
		return "control_flow"
	case KindLoop:
		return "loop"
	case KindIteration:
		return "iteration"
	case KindBlock:
		return "block"
	case KindWith:
		return "with"
	}
	return "unknown"
}

// branch is one arm of an if/else chain. A nil cond always matches.
type branch struct {
	cond *domain.ValueID
	body []domain.Expression
}

// Node is the value stored for every generated node. Only elements carry
// Text and Attributes; the other kinds are structural.
type Node struct {
	Kind       Kind
	Ident      string
	Text       value.Value
	Attributes map[string]value.Value

	// scope is where the node's own expressions are evaluated.
	scope *scope.Scope
	// inner is the scope handed to children of iterations and withs.
	inner *scope.Scope
	expr  domain.Expression

	chain  []branch
	active int

	coll  scope.Collection
	built bool

	binding scope.Binding
	index   int

	// acquired refs are released when the node is torn down.
	acquired []value.Ref
}

// Active returns the selected branch of a control-flow node, -1 for none.
func (n Node) Active() int { return n.active }

// Index returns the position of an iteration inside its loop.
func (n Node) Index() int { return n.index }

func (n Node) layoutNode() ports.LayoutNode {
	return ports.LayoutNode{
		Kind:       n.Kind.String(),
		Ident:      n.Ident,
		Text:       n.Text.String(),
		Attributes: n.Attributes,
	}
}
