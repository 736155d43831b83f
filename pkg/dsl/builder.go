package dsl

import (
	"errors"
	"fmt"
	"maps"

	"github.com/aretw0/arbor/internal/compiler"
	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/domain"
)

// Expr is anything the builder can turn into a template expression.
type Expr interface {
	build(b *Builder) domain.Expression
}

// Builder manages the template construction.
type Builder struct {
	asm    *compiler.Assembler
	exprs  []domain.Expression
	errs   []error
	schema map[string]string
}

// New creates a new template builder.
func New(name string) *Builder {
	return &Builder{asm: compiler.NewAssembler(name)}
}

// Add appends top-level expressions.
func (b *Builder) Add(exprs ...Expr) *Builder {
	b.exprs = append(b.exprs, b.body(exprs)...)
	return b
}

// Expect declares the type the state must hold at path, e.g. "string",
// "[int]" or "bool?".
func (b *Builder) Expect(path, typ string) *Builder {
	if b.schema == nil {
		b.schema = make(map[string]string)
	}
	b.schema[path] = typ
	return b
}

// Build returns the compiled template, or every value source that failed
// to parse.
func (b *Builder) Build() (*domain.Template, error) {
	if len(b.errs) > 0 {
		return nil, fmt.Errorf("failed to build template: %w", errors.Join(b.errs...))
	}
	b.asm.Add(b.exprs...)
	b.exprs = nil
	tpl := b.asm.Template()
	if len(b.schema) > 0 {
		tpl.StateSchema = maps.Clone(b.schema)
	}
	return tpl, nil
}

// MustBuild is like Build but panics on error.
func (b *Builder) MustBuild() *domain.Template {
	tpl, err := b.Build()
	if err != nil {
		panic(err)
	}
	return tpl
}

// Loader builds the template and wraps it in a memory loader.
func (b *Builder) Loader() (*memory.Loader, error) {
	tpl, err := b.Build()
	if err != nil {
		return nil, err
	}
	return memory.NewLoader(tpl)
}

func (b *Builder) value(src string) domain.ValueID {
	id, err := b.asm.Value(src)
	if err != nil {
		b.errs = append(b.errs, err)
	}
	return id
}

func (b *Builder) body(exprs []Expr) []domain.Expression {
	out := make([]domain.Expression, 0, len(exprs))
	for _, e := range exprs {
		out = append(out, e.build(b))
	}
	return out
}
