package domain

import (
	"fmt"

	"github.com/aretw0/arbor/pkg/arena"
)

// NodeID identifies a node in the generated tree.
type NodeID = arena.Key

// StringID indexes Template.Strings.
type StringID uint16

// ValueID indexes Template.Values.
type ValueID uint16

// Template is a compiled template: constant tables addressed by small
// integer ids and the ordered top-level expressions that reference them.
type Template struct {
	Name        string
	Strings     []string
	Values      []ValueExpr
	Expressions []Expression

	// StateSchema maps dotted State paths to the type names they must hold,
	// e.g. {"user.name": "string", "tags": "[string]?"}. It is enforced by
	// the engine, not the generator.
	StateSchema map[string]string
}

// String returns the string constant stored under id.
func (t *Template) String(id StringID) (string, error) {
	if int(id) >= len(t.Strings) {
		return "", fmt.Errorf("string %d: %w", id, ErrUnknownConstant)
	}
	return t.Strings[id], nil
}

// Value returns the value expression stored under id.
func (t *Template) Value(id ValueID) (ValueExpr, error) {
	if int(id) >= len(t.Values) {
		return nil, fmt.Errorf("value %d: %w", id, ErrUnknownConstant)
	}
	return t.Values[id], nil
}
