package validator

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/registry"
	"github.com/aretw0/arbor/pkg/schema"
)

// Option configures ValidateTemplate.
type Option func(*checker)

// WithRegistry also reports calls to functions missing from r.
func WithRegistry(r *registry.Registry) Option {
	return func(c *checker) {
		c.funcs = make(map[string]bool)
		for _, name := range r.Names() {
			c.funcs[name] = true
		}
	}
}

// ValidateTemplate checks that every constant id resolves, that else
// expressions only follow an if or a conditional else, and that bindings
// and identifiers are named. Declared state types must parse.
func ValidateTemplate(tpl *domain.Template, opts ...Option) error {
	c := &checker{tpl: tpl}
	for _, opt := range opts {
		opt(c)
	}

	// 1. Value table
	for i, v := range tpl.Values {
		c.valueExpr(v, fmt.Sprintf("values[%d]", i))
	}

	// 2. Expression tree
	c.body(tpl.Expressions, "body")

	// 3. State schema
	paths := slices.Sorted(maps.Keys(tpl.StateSchema))
	for _, path := range paths {
		if _, err := schema.ParseType(tpl.StateSchema[path]); err != nil {
			c.errorf("state.%s: %v", path, err)
		}
	}

	if len(c.errors) > 0 {
		return fmt.Errorf("%w: %s: found %d errors:\n- %s",
			domain.ErrMalformedTemplate, tpl.Name, len(c.errors), strings.Join(c.errors, "\n- "))
	}
	return nil
}

type checker struct {
	tpl    *domain.Template
	funcs  map[string]bool
	errors []string
}

func (c *checker) errorf(format string, args ...any) {
	c.errors = append(c.errors, fmt.Sprintf(format, args...))
}

func (c *checker) str(id domain.StringID, at string) string {
	s, err := c.tpl.String(id)
	if err != nil {
		c.errorf("%s: %v", at, err)
	}
	return s
}

func (c *checker) value(id domain.ValueID, at string) {
	if _, err := c.tpl.Value(id); err != nil {
		c.errorf("%s: %v", at, err)
	}
}

func (c *checker) name(id domain.StringID, at string) {
	if c.str(id, at) == "" {
		c.errorf("%s: empty name", at)
	}
}

func (c *checker) body(exprs []domain.Expression, at string) {
	// open is true while an else may follow: after an if or a conditional else.
	open := false
	for i, e := range exprs {
		here := fmt.Sprintf("%s[%d]", at, i)
		switch e := e.(type) {
		case *domain.StaticNode:
			c.name(e.Ident, here+".node")
			if e.Text != nil {
				c.value(*e.Text, here+".text")
			}
			for j, a := range e.Attributes {
				c.name(a.Key, fmt.Sprintf("%s.attributes[%d]", here, j))
				c.value(a.Value, fmt.Sprintf("%s.attributes[%d]", here, j))
			}
			c.body(e.Children, here+".children")
			open = false
		case *domain.For:
			c.name(e.Binding, here+".for")
			c.value(e.Collection, here+".in")
			c.body(e.Body, here+".body")
			open = false
		case *domain.If:
			c.value(e.Cond, here+".if")
			c.body(e.Body, here+".body")
			open = true
		case *domain.Else:
			if !open {
				c.errorf("%s: else without a preceding if", here)
			}
			if e.Cond != nil {
				c.value(*e.Cond, here+".else_if")
			}
			c.body(e.Body, here+".body")
			open = e.Cond != nil
		case *domain.Block:
			c.body(e.Body, here+".body")
			open = false
		case *domain.With:
			c.name(e.Binding, here+".with")
			c.value(e.Data, here+".as")
			c.body(e.Body, here+".body")
			open = false
		default:
			c.errorf("%s: unknown expression %T", here, e)
			open = false
		}
	}
}

func (c *checker) valueExpr(e domain.ValueExpr, at string) {
	switch e := e.(type) {
	case *domain.Field:
		c.valueExpr(e.Target, at)
	case *domain.Index:
		c.valueExpr(e.Target, at)
		c.valueExpr(e.Index, at)
	case *domain.Unary:
		c.valueExpr(e.Operand, at)
	case *domain.Binary:
		c.valueExpr(e.Left, at)
		c.valueExpr(e.Right, at)
	case *domain.ListExpr:
		for _, item := range e.Items {
			c.valueExpr(item, at)
		}
	case *domain.MapExpr:
		for _, v := range e.Values {
			c.valueExpr(v, at)
		}
	case *domain.Call:
		if c.funcs != nil && !c.funcs[e.Func] {
			c.errorf("%s: unknown function %q", at, e.Func)
		}
		for _, arg := range e.Args {
			c.valueExpr(arg, at)
		}
	}
}
