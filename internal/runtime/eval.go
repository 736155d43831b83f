package runtime

import (
	"math"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/scope"
	"github.com/aretw0/arbor/pkg/value"
)

// valueOf looks up and evaluates the value expression id for node.
func (g *Generator) valueOf(id domain.ValueID, s *scope.Scope, node domain.NodeID) (scope.Resolved, error) {
	expr, err := g.tpl.Value(id)
	if err != nil {
		return scope.Resolved{}, &InternalError{Op: "lookup", Node: node, Err: err}
	}
	return g.eval(expr, s, node), nil
}

// eval evaluates e in s, subscribing node to every State ref it reads.
// Path-shaped expressions go through the resolver and keep their ref;
// everything else is computed into a static value.
func (g *Generator) eval(e domain.ValueExpr, s *scope.Scope, node domain.NodeID) scope.Resolved {
	if path, ok := domain.PathOf(e); ok {
		r := g.resolver.Resolve(s, path, node)
		if r.Dynamic && r.Value.IsContainer() {
			// The consumer depends on the whole container, not just its shape.
			g.resolver.SubscribeTree(s.State(), r.Ref, node)
		}
		return r
	}
	return scope.Resolved{Value: g.compute(e, s, node)}
}

func (g *Generator) value(e domain.ValueExpr, s *scope.Scope, node domain.NodeID) value.Value {
	return g.eval(e, s, node).Value
}

func (g *Generator) compute(e domain.ValueExpr, s *scope.Scope, node domain.NodeID) value.Value {
	switch e := e.(type) {
	case *domain.Lit:
		return e.Value
	case *domain.Ident:
		return g.value(e, s, node)
	case *domain.Field:
		return g.value(e.Target, s, node).Field(e.Name)
	case *domain.Index:
		target := g.value(e.Target, s, node)
		idx := g.value(e.Index, s, node)
		if i, ok := idx.AsInt(); ok {
			return target.Index(int(i))
		}
		if name, ok := idx.AsString(); ok {
			return target.Field(name)
		}
		return value.Null()
	case *domain.Unary:
		operand := g.value(e.Operand, s, node)
		return unary(e.Op, operand)
	case *domain.Binary:
		switch e.Op {
		case domain.OpAnd:
			if !g.value(e.Left, s, node).Truthy() {
				return value.Bool(false)
			}
			return value.Bool(g.value(e.Right, s, node).Truthy())
		case domain.OpOr:
			if g.value(e.Left, s, node).Truthy() {
				return value.Bool(true)
			}
			return value.Bool(g.value(e.Right, s, node).Truthy())
		}
		return binary(e.Op, g.value(e.Left, s, node), g.value(e.Right, s, node))
	case *domain.ListExpr:
		items := make([]value.Value, len(e.Items))
		for i, item := range e.Items {
			items[i] = g.value(item, s, node)
		}
		return value.List(items...)
	case *domain.MapExpr:
		fields := make(map[string]value.Value, len(e.Keys))
		for i, k := range e.Keys {
			fields[k] = g.value(e.Values[i], s, node)
		}
		return value.Map(fields)
	case *domain.Call:
		args := make([]value.Value, len(e.Args))
		for i, arg := range e.Args {
			args[i] = g.value(arg, s, node)
		}
		out, err := g.funcs.Call(e.Func, args)
		if err != nil {
			g.logger.Debug("function call failed", "func", e.Func, "node_id", node, "err", err)
			return value.Null()
		}
		return out
	}
	return value.Null()
}

func unary(op string, v value.Value) value.Value {
	switch op {
	case domain.OpNot:
		return value.Bool(!v.Truthy())
	case domain.OpSub:
		if i, ok := v.AsInt(); ok {
			return value.Int(-i)
		}
		if f, ok := v.AsFloat(); ok {
			return value.Float(-f)
		}
	}
	return value.Null()
}

// binary applies a non short-circuit operator. Operands of the wrong kind
// produce Null rather than an error.
func binary(op string, l, r value.Value) value.Value {
	switch op {
	case domain.OpEq:
		return value.Bool(l.Equal(r))
	case domain.OpNeq:
		return value.Bool(!l.Equal(r))
	case domain.OpLt, domain.OpLte, domain.OpGt, domain.OpGte:
		return compare(op, l, r)
	case domain.OpAdd:
		if l.Kind() == value.KindString || r.Kind() == value.KindString {
			return value.String(l.String() + r.String())
		}
		if l.Kind() == value.KindList && r.Kind() == value.KindList {
			items := append(append([]value.Value{}, l.Items()...), r.Items()...)
			return value.List(items...)
		}
	}

	li, lInt := l.AsInt()
	ri, rInt := r.AsInt()
	if lInt && rInt {
		switch op {
		case domain.OpAdd:
			return value.Int(li + ri)
		case domain.OpSub:
			return value.Int(li - ri)
		case domain.OpMul:
			return value.Int(li * ri)
		case domain.OpDiv:
			if ri == 0 {
				return value.Null()
			}
			return value.Int(li / ri)
		case domain.OpMod:
			if ri == 0 {
				return value.Null()
			}
			return value.Int(li % ri)
		}
		return value.Null()
	}

	lf, lNum := l.AsFloat()
	rf, rNum := r.AsFloat()
	if !lNum || !rNum {
		return value.Null()
	}
	switch op {
	case domain.OpAdd:
		return value.Float(lf + rf)
	case domain.OpSub:
		return value.Float(lf - rf)
	case domain.OpMul:
		return value.Float(lf * rf)
	case domain.OpDiv:
		if rf == 0 {
			return value.Null()
		}
		return value.Float(lf / rf)
	case domain.OpMod:
		if rf == 0 {
			return value.Null()
		}
		return value.Float(math.Mod(lf, rf))
	}
	return value.Null()
}

func compare(op string, l, r value.Value) value.Value {
	var c int
	if ls, ok := l.AsString(); ok {
		rs, ok := r.AsString()
		if !ok {
			return value.Null()
		}
		switch {
		case ls < rs:
			c = -1
		case ls > rs:
			c = 1
		}
	} else {
		lf, lok := l.AsFloat()
		rf, rok := r.AsFloat()
		if !lok || !rok {
			return value.Null()
		}
		switch {
		case lf < rf:
			c = -1
		case lf > rf:
			c = 1
		}
	}

	switch op {
	case domain.OpLt:
		return value.Bool(c < 0)
	case domain.OpLte:
		return value.Bool(c <= 0)
	case domain.OpGt:
		return value.Bool(c > 0)
	}
	return value.Bool(c >= 0)
}
