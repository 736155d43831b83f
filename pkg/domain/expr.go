package domain

import (
	"strconv"
	"strings"

	"github.com/aretw0/arbor/pkg/value"
)

// Operators understood by Unary and Binary.
const (
	OpAdd = "+"
	OpSub = "-"
	OpMul = "*"
	OpDiv = "/"
	OpMod = "%"
	OpEq  = "=="
	OpNeq = "!="
	OpLt  = "<"
	OpLte = "<="
	OpGt  = ">"
	OpGte = ">="
	OpAnd = "&&"
	OpOr  = "||"
	OpNot = "!"
)

// ValueExpr is a value expression stored in the template's value table.
type ValueExpr interface {
	String() string
	valueExpr()
}

// Lit is a literal value.
type Lit struct {
	Value value.Value
}

// Ident names a binding in scope or a top-level state field.
type Ident struct {
	Name string
}

// Field selects a named entry of Target.
type Field struct {
	Target ValueExpr
	Name   string
}

// Index selects an element of Target.
type Index struct {
	Target ValueExpr
	Index  ValueExpr
}

// Unary applies "!" or "-" to Operand.
type Unary struct {
	Op      string
	Operand ValueExpr
}

// Binary applies an arithmetic, comparison or logical operator.
type Binary struct {
	Op          string
	Left, Right ValueExpr
}

// ListExpr builds a list from its items.
type ListExpr struct {
	Items []ValueExpr
}

// MapExpr builds a map. Keys and Values are parallel.
type MapExpr struct {
	Keys   []string
	Values []ValueExpr
}

// Call invokes a registered function.
type Call struct {
	Func string
	Args []ValueExpr
}

func (*Lit) valueExpr()      {}
func (*Ident) valueExpr()    {}
func (*Field) valueExpr()    {}
func (*Index) valueExpr()    {}
func (*Unary) valueExpr()    {}
func (*Binary) valueExpr()   {}
func (*ListExpr) valueExpr() {}
func (*MapExpr) valueExpr()  {}
func (*Call) valueExpr()     {}

func (e *Lit) String() string {
	if s, ok := e.Value.AsString(); ok {
		return strconv.Quote(s)
	}
	if e.Value.IsNull() {
		return "null"
	}
	return e.Value.String()
}

func (e *Ident) String() string { return e.Name }
func (e *Field) String() string { return e.Target.String() + "." + e.Name }
func (e *Index) String() string { return e.Target.String() + "[" + e.Index.String() + "]" }
func (e *Unary) String() string { return e.Op + e.Operand.String() }

func (e *Binary) String() string {
	return "(" + e.Left.String() + " " + e.Op + " " + e.Right.String() + ")"
}

func (e *ListExpr) String() string {
	return "[" + joinExprs(e.Items) + "]"
}

func (e *MapExpr) String() string {
	parts := make([]string, len(e.Keys))
	for i, k := range e.Keys {
		parts[i] = k + ": " + e.Values[i].String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func (e *Call) String() string {
	return e.Func + "(" + joinExprs(e.Args) + ")"
}

func joinExprs(exprs []ValueExpr) string {
	parts := make([]string, len(exprs))
	for i, e := range exprs {
		parts[i] = e.String()
	}
	return strings.Join(parts, ", ")
}

// PathOf reports whether e is a plain path (identifiers, field selections
// and literal indices) and returns it.
func PathOf(e ValueExpr) (value.Path, bool) {
	switch e := e.(type) {
	case *Ident:
		return value.Path{value.Key(e.Name)}, true
	case *Field:
		base, ok := PathOf(e.Target)
		if !ok {
			return nil, false
		}
		return base.Append(value.Key(e.Name)), true
	case *Index:
		base, ok := PathOf(e.Target)
		if !ok {
			return nil, false
		}
		lit, ok := e.Index.(*Lit)
		if !ok {
			return nil, false
		}
		if i, ok := lit.Value.AsInt(); ok && i >= 0 {
			return base.Append(value.At(int(i))), true
		}
		if s, ok := lit.Value.AsString(); ok {
			return base.Append(value.Key(s)), true
		}
	}
	return nil, false
}
