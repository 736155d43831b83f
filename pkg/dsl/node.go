package dsl

import "github.com/aretw0/arbor/pkg/domain"

// NodeBuilder provides a fluent API for configuring an element.
type NodeBuilder struct {
	ident    string
	text     *string
	attrs    [][2]string
	children []Expr
}

// Node starts an element with the given identifier.
func Node(ident string) *NodeBuilder {
	return &NodeBuilder{ident: ident}
}

// Text sets the value expression rendered as the element's text.
func (n *NodeBuilder) Text(src string) *NodeBuilder {
	n.text = &src
	return n
}

// Attr adds an attribute whose value is the expression src.
func (n *NodeBuilder) Attr(key, src string) *NodeBuilder {
	n.attrs = append(n.attrs, [2]string{key, src})
	return n
}

// Children appends child expressions.
func (n *NodeBuilder) Children(children ...Expr) *NodeBuilder {
	n.children = append(n.children, children...)
	return n
}

func (n *NodeBuilder) build(b *Builder) domain.Expression {
	node := &domain.StaticNode{Ident: b.asm.String(n.ident)}
	if n.text != nil {
		node.Text = domain.ValueIDPtr(b.value(*n.text))
	}
	for _, kv := range n.attrs {
		node.Attributes = append(node.Attributes, domain.Attribute{
			Key:   b.asm.String(kv[0]),
			Value: b.value(kv[1]),
		})
	}
	node.Children = b.body(n.children)
	return node
}

type forExpr struct {
	binding, collection string
	body                []Expr
}

// For repeats body once per element of collection, binding each element
// to binding.
func For(binding, collection string, body ...Expr) Expr {
	return forExpr{binding: binding, collection: collection, body: body}
}

func (f forExpr) build(b *Builder) domain.Expression {
	return &domain.For{
		Binding:    b.asm.String(f.binding),
		Collection: b.value(f.collection),
		Body:       b.body(f.body),
	}
}

type ifExpr struct {
	cond string
	body []Expr
}

// If renders body while cond is truthy. ElseIf and Else expressions that
// directly follow it form one chain.
func If(cond string, body ...Expr) Expr {
	return ifExpr{cond: cond, body: body}
}

func (i ifExpr) build(b *Builder) domain.Expression {
	return &domain.If{Cond: b.value(i.cond), Body: b.body(i.body)}
}

type elseExpr struct {
	cond *string
	body []Expr
}

// ElseIf is a conditional alternative of the preceding If.
func ElseIf(cond string, body ...Expr) Expr {
	return elseExpr{cond: &cond, body: body}
}

// Else is the unconditional last alternative of the preceding If.
func Else(body ...Expr) Expr {
	return elseExpr{body: body}
}

func (e elseExpr) build(b *Builder) domain.Expression {
	out := &domain.Else{Body: b.body(e.body)}
	if e.cond != nil {
		out.Cond = domain.ValueIDPtr(b.value(*e.cond))
	}
	return out
}

type blockExpr struct {
	body []Expr
}

// Block groups expressions without any behaviour of its own.
func Block(body ...Expr) Expr {
	return blockExpr{body: body}
}

func (bl blockExpr) build(b *Builder) domain.Expression {
	return &domain.Block{Body: b.body(bl.body)}
}

type withExpr struct {
	binding, data string
	body          []Expr
}

// With binds the value of data to binding for body.
func With(binding, data string, body ...Expr) Expr {
	return withExpr{binding: binding, data: data, body: body}
}

func (w withExpr) build(b *Builder) domain.Expression {
	return &domain.With{
		Binding: b.asm.String(w.binding),
		Data:    b.value(w.data),
		Body:    b.body(w.body),
	}
}
