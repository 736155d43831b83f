// Package compiler turns value-expression strings found in template
// artifacts into domain.ValueExpr trees and assembles the constant tables of
// a domain.Template.
package compiler

import (
	"fmt"
	"strconv"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/value"
)

// Binding powers, loosest first.
const (
	precLowest = iota
	precOr
	precAnd
	precEquality
	precCompare
	precSum
	precProduct
	precUnary
	precPostfix
)

var infix = map[string]int{
	domain.OpOr:  precOr,
	domain.OpAnd: precAnd,
	domain.OpEq:  precEquality,
	domain.OpNeq: precEquality,
	domain.OpLt:  precCompare,
	domain.OpLte: precCompare,
	domain.OpGt:  precCompare,
	domain.OpGte: precCompare,
	domain.OpAdd: precSum,
	domain.OpSub: precSum,
	domain.OpMul: precProduct,
	domain.OpDiv: precProduct,
	domain.OpMod: precProduct,
	".":          precPostfix,
	"[":          precPostfix,
}

// Parser is responsible for converting value-expression source into a ValueExpr.
type Parser struct {
	src    string
	tokens []token
	pos    int
}

// NewParser creates a new parser instance.
func NewParser() *Parser {
	return &Parser{}
}

// ParseValue parses a single value expression such as `1 + 2 * 3`,
// `user.tags[0]` or `to_upper(name)`.
func ParseValue(src string) (domain.ValueExpr, error) {
	return NewParser().Parse(src)
}

// Parse parses src. The parser can be reused.
func (p *Parser) Parse(src string) (domain.ValueExpr, error) {
	tokens, err := lex(src)
	if err != nil {
		return nil, err
	}
	p.src, p.tokens, p.pos = src, tokens, 0

	if p.peek().kind == tokEOF {
		return nil, p.errorf(p.peek(), "empty expression")
	}
	expr, err := p.expression(precLowest)
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return nil, p.errorf(tok, "unexpected %q", tok.text)
	}
	return expr, nil
}

func (p *Parser) peek() token { return p.tokens[p.pos] }

func (p *Parser) next() token {
	tok := p.tokens[p.pos]
	if tok.kind != tokEOF {
		p.pos++
	}
	return tok
}

func (p *Parser) errorf(tok token, format string, args ...any) error {
	return &SyntaxError{Src: p.src, Pos: tok.pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *Parser) expect(op string) error {
	tok := p.next()
	if tok.kind != tokOp || tok.text != op {
		return p.errorf(tok, "expected %q", op)
	}
	return nil
}

func (p *Parser) expression(minPrec int) (domain.ValueExpr, error) {
	left, err := p.prefix()
	if err != nil {
		return nil, err
	}

	for {
		tok := p.peek()
		if tok.kind != tokOp {
			return left, nil
		}
		prec, ok := infix[tok.text]
		if !ok || prec <= minPrec {
			return left, nil
		}
		p.next()

		switch tok.text {
		case ".":
			name := p.next()
			switch name.kind {
			case tokIdent:
				left = &domain.Field{Target: left, Name: name.text}
			case tokInt:
				n, _ := strconv.ParseInt(name.text, 10, 64)
				left = &domain.Index{Target: left, Index: &domain.Lit{Value: value.Int(n)}}
			default:
				return nil, p.errorf(name, "expected field name after '.'")
			}
		case "[":
			idx, err := p.expression(precLowest)
			if err != nil {
				return nil, err
			}
			if err := p.expect("]"); err != nil {
				return nil, err
			}
			left = &domain.Index{Target: left, Index: idx}
		default:
			right, err := p.expression(prec)
			if err != nil {
				return nil, err
			}
			left = &domain.Binary{Op: tok.text, Left: left, Right: right}
		}
	}
}

func (p *Parser) prefix() (domain.ValueExpr, error) {
	tok := p.next()
	switch tok.kind {
	case tokInt:
		n, err := strconv.ParseInt(tok.text, 10, 64)
		if err != nil {
			return nil, p.errorf(tok, "invalid integer %q", tok.text)
		}
		return &domain.Lit{Value: value.Int(n)}, nil
	case tokFloat:
		f, err := strconv.ParseFloat(tok.text, 64)
		if err != nil {
			return nil, p.errorf(tok, "invalid number %q", tok.text)
		}
		return &domain.Lit{Value: value.Float(f)}, nil
	case tokString:
		return &domain.Lit{Value: value.String(tok.text)}, nil
	case tokIdent:
		switch tok.text {
		case "true":
			return &domain.Lit{Value: value.Bool(true)}, nil
		case "false":
			return &domain.Lit{Value: value.Bool(false)}, nil
		case "null":
			return &domain.Lit{Value: value.Null()}, nil
		}
		if next := p.peek(); next.kind == tokOp && next.text == "(" {
			p.next()
			args, err := p.list(")")
			if err != nil {
				return nil, err
			}
			return &domain.Call{Func: tok.text, Args: args}, nil
		}
		return &domain.Ident{Name: tok.text}, nil
	case tokOp:
		switch tok.text {
		case domain.OpNot, domain.OpSub:
			operand, err := p.expression(precUnary)
			if err != nil {
				return nil, err
			}
			return &domain.Unary{Op: tok.text, Operand: operand}, nil
		case "(":
			inner, err := p.expression(precLowest)
			if err != nil {
				return nil, err
			}
			if err := p.expect(")"); err != nil {
				return nil, err
			}
			return inner, nil
		case "[":
			items, err := p.list("]")
			if err != nil {
				return nil, err
			}
			return &domain.ListExpr{Items: items}, nil
		case "{":
			return p.mapLiteral()
		}
	}
	if tok.kind == tokEOF {
		return nil, p.errorf(tok, "unexpected end of expression")
	}
	return nil, p.errorf(tok, "unexpected %q", tok.text)
}

// list parses comma separated expressions up to the closing operator.
func (p *Parser) list(closing string) ([]domain.ValueExpr, error) {
	var items []domain.ValueExpr
	if tok := p.peek(); tok.kind == tokOp && tok.text == closing {
		p.next()
		return items, nil
	}
	for {
		item, err := p.expression(precLowest)
		if err != nil {
			return nil, err
		}
		items = append(items, item)

		tok := p.next()
		if tok.kind == tokOp && tok.text == closing {
			return items, nil
		}
		if tok.kind != tokOp || tok.text != "," {
			return nil, p.errorf(tok, "expected ',' or %q", closing)
		}
	}
}

func (p *Parser) mapLiteral() (domain.ValueExpr, error) {
	m := &domain.MapExpr{}
	if tok := p.peek(); tok.kind == tokOp && tok.text == "}" {
		p.next()
		return m, nil
	}
	for {
		key := p.next()
		if key.kind != tokIdent && key.kind != tokString {
			return nil, p.errorf(key, "expected map key")
		}
		if err := p.expect(":"); err != nil {
			return nil, err
		}
		val, err := p.expression(precLowest)
		if err != nil {
			return nil, err
		}
		m.Keys = append(m.Keys, key.text)
		m.Values = append(m.Values, val)

		tok := p.next()
		if tok.kind == tokOp && tok.text == "}" {
			return m, nil
		}
		if tok.kind != tokOp || tok.text != "," {
			return nil, p.errorf(tok, "expected ',' or '}'")
		}
	}
}
