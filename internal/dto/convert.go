package dto

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"sort"

	"github.com/aretw0/arbor/internal/compiler"
	"github.com/aretw0/arbor/pkg/domain"
)

// ToDomain compiles the artifact into a Template. name is used when the
// artifact carries none.
func ToDomain(a *TemplateArtifact, name string) (*domain.Template, error) {
	if a.Name != "" {
		name = a.Name
	}
	c := &converter{asm: compiler.NewAssembler(name)}
	body := c.body(a.Body, "body")
	if len(c.errs) > 0 {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrMalformedTemplate, name, errors.Join(c.errs...))
	}
	c.asm.Add(body...)
	tpl := c.asm.Template()
	if len(a.State) > 0 {
		tpl.StateSchema = maps.Clone(a.State)
	}
	return tpl, nil
}

type converter struct {
	asm  *compiler.Assembler
	errs []error
}

func (c *converter) fail(at string, err error) {
	c.errs = append(c.errs, fmt.Errorf("%s: %w", at, err))
}

// source turns an artifact value into expression source. Strings are
// already expressions; other scalars are written as literals.
func source(v any) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("unsupported value %v: %w", v, err)
	}
	return string(b), nil
}

func (c *converter) value(v any, at string) domain.ValueID {
	src, err := source(v)
	if err != nil {
		c.fail(at, err)
		return 0
	}
	id, err := c.asm.Value(src)
	if err != nil {
		c.fail(at, err)
	}
	return id
}

func (c *converter) body(items []ExpressionArtifact, at string) []domain.Expression {
	out := make([]domain.Expression, 0, len(items))
	for i, item := range items {
		if e := c.expression(item, fmt.Sprintf("%s[%d]", at, i)); e != nil {
			out = append(out, e)
		}
	}
	return out
}

func (c *converter) expression(e ExpressionArtifact, at string) domain.Expression {
	kind, err := e.Kind()
	if err != nil {
		c.fail(at, err)
		return nil
	}

	switch kind {
	case KindNode:
		node := &domain.StaticNode{Ident: c.asm.String(e.Node)}
		if e.Text != nil {
			node.Text = domain.ValueIDPtr(c.value(e.Text, at+".text"))
		}
		keys := make([]string, 0, len(e.Attributes))
		for k := range e.Attributes {
			keys = append(keys, k)
		}
		sort.Strings(keys) // Deterministic constant tables
		for _, k := range keys {
			node.Attributes = append(node.Attributes, domain.Attribute{
				Key:   c.asm.String(k),
				Value: c.value(e.Attributes[k], at+".attributes."+k),
			})
		}
		node.Children = c.body(e.Children, at+".children")
		return node
	case KindFor:
		if e.In == nil {
			c.fail(at, fmt.Errorf("for %q has no collection", e.For))
			return nil
		}
		return &domain.For{
			Binding:    c.asm.String(e.For),
			Collection: c.value(e.In, at+".in"),
			Body:       c.body(e.Body, at+".body"),
		}
	case KindIf:
		return &domain.If{Cond: c.value(e.If, at+".if"), Body: c.body(e.Body, at+".body")}
	case KindElseIf:
		return &domain.Else{
			Cond: domain.ValueIDPtr(c.value(e.ElseIf, at+".else_if")),
			Body: c.body(e.Body, at+".body"),
		}
	case KindElse:
		return &domain.Else{Body: c.body(e.Body, at+".body")}
	case KindBlock:
		return &domain.Block{Body: c.body(e.Body, at+".body")}
	case KindWith:
		if e.As == nil {
			c.fail(at, fmt.Errorf("with %q has no value", e.With))
			return nil
		}
		return &domain.With{
			Binding: c.asm.String(e.With),
			Data:    c.value(e.As, at+".as"),
			Body:    c.body(e.Body, at+".body"),
		}
	}
	return nil
}
