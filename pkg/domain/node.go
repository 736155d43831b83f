package domain

// Expression kinds, as reported by Kind().
const (
	KindStaticNode = "node"
	KindFor        = "for"
	KindIf         = "if"
	KindElse       = "else"
	KindBlock      = "block"
	KindWith       = "with"
)

// Expression is one compiled template instruction.
// The set of variants is closed: StaticNode, For, If, Else, Block and With.
type Expression interface {
	Kind() string
	expression()
}

// Attribute binds an attribute name to a value expression.
type Attribute struct {
	Key   StringID
	Value ValueID
}

// StaticNode produces one element node. Text, when set, is the value the
// node displays.
type StaticNode struct {
	Ident      StringID
	Text       *ValueID
	Attributes []Attribute
	Children   []Expression
}

// For produces one iteration per element of Collection, binding the element
// under Binding.
type For struct {
	Binding    StringID
	Collection ValueID
	Body       []Expression
}

// If starts a conditional chain. Else expressions directly following it
// belong to the same chain.
type If struct {
	Cond ValueID
	Body []Expression
}

// Else continues a conditional chain. A nil Cond makes it the default
// branch.
type Else struct {
	Cond *ValueID
	Body []Expression
}

// Block groups expressions. It is materialised once and never re-evaluated.
type Block struct {
	Body []Expression
}

// With evaluates Data once and binds the result under Binding for Body.
type With struct {
	Binding StringID
	Data    ValueID
	Body    []Expression
}

func (*StaticNode) Kind() string { return KindStaticNode }
func (*For) Kind() string        { return KindFor }
func (*If) Kind() string         { return KindIf }
func (*Else) Kind() string       { return KindElse }
func (*Block) Kind() string      { return KindBlock }
func (*With) Kind() string       { return KindWith }

func (*StaticNode) expression() {}
func (*For) expression()        {}
func (*If) expression()         {}
func (*Else) expression()       {}
func (*Block) expression()      {}
func (*With) expression()       {}

// ValueIDPtr returns a pointer to id, for optional fields.
func ValueIDPtr(id ValueID) *ValueID { return &id }
