package compiler

import (
	"fmt"

	"github.com/aretw0/arbor/pkg/domain"
)

// Assembler builds the constant tables of a Template, interning strings
// and value expressions so that each distinct source is stored once.
type Assembler struct {
	tpl     *domain.Template
	strings map[string]domain.StringID
	values  map[string]domain.ValueID
	parser  *Parser
}

// NewAssembler starts a template named name.
func NewAssembler(name string) *Assembler {
	return &Assembler{
		tpl:     &domain.Template{Name: name},
		strings: make(map[string]domain.StringID),
		values:  make(map[string]domain.ValueID),
		parser:  NewParser(),
	}
}

// String interns s and returns its id.
func (a *Assembler) String(s string) domain.StringID {
	if id, ok := a.strings[s]; ok {
		return id
	}
	id := domain.StringID(len(a.tpl.Strings))
	a.tpl.Strings = append(a.tpl.Strings, s)
	a.strings[s] = id
	return id
}

// Value parses src and returns the id of the resulting expression.
func (a *Assembler) Value(src string) (domain.ValueID, error) {
	if id, ok := a.values[src]; ok {
		return id, nil
	}
	expr, err := a.parser.Parse(src)
	if err != nil {
		return 0, fmt.Errorf("value %q: %w", src, err)
	}
	id := domain.ValueID(len(a.tpl.Values))
	a.tpl.Values = append(a.tpl.Values, expr)
	a.values[src] = id
	return id, nil
}

// Add appends top-level expressions.
func (a *Assembler) Add(exprs ...domain.Expression) {
	a.tpl.Expressions = append(a.tpl.Expressions, exprs...)
}

// Template returns the assembled template.
func (a *Assembler) Template() *domain.Template {
	return a.tpl
}
