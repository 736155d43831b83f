package dto

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// TemplateArtifact is the on-disk form of a template.
// It uses "mapstructure" tags so that YAML and JSON documents decode the same way.
type TemplateArtifact struct {
	Name  string               `json:"name" mapstructure:"name"`
	State map[string]string    `json:"state,omitempty" mapstructure:"state"`
	Body  []ExpressionArtifact `json:"body" mapstructure:"body"`
}

// ExpressionArtifact is one entry of a body. Exactly one of the kind keys
// (node, for, if, else_if, else, block, with) is set.
type ExpressionArtifact struct {
	// Element
	Node       string               `json:"node,omitempty" mapstructure:"node"`
	Text       any                  `json:"text,omitempty" mapstructure:"text"`
	Attributes map[string]any       `json:"attributes,omitempty" mapstructure:"attributes"`
	Children   []ExpressionArtifact `json:"children,omitempty" mapstructure:"children"`

	// Loop
	For string `json:"for,omitempty" mapstructure:"for"`
	In  any    `json:"in,omitempty" mapstructure:"in"`

	// Control flow
	If     any  `json:"if,omitempty" mapstructure:"if"`
	ElseIf any  `json:"else_if,omitempty" mapstructure:"else_if"`
	Else   bool `json:"else,omitempty" mapstructure:"else"`

	Block bool `json:"block,omitempty" mapstructure:"block"`

	// Binding
	With string `json:"with,omitempty" mapstructure:"with"`
	As   any    `json:"as,omitempty" mapstructure:"as"`

	Body []ExpressionArtifact `json:"body,omitempty" mapstructure:"body"`
}

// Expression kinds as reported by Kind.
const (
	KindNode   = "node"
	KindFor    = "for"
	KindIf     = "if"
	KindElseIf = "else_if"
	KindElse   = "else"
	KindBlock  = "block"
	KindWith   = "with"
)

// Kind returns the single kind key set on e.
func (e ExpressionArtifact) Kind() (string, error) {
	var kinds []string
	if e.Node != "" {
		kinds = append(kinds, KindNode)
	}
	if e.For != "" {
		kinds = append(kinds, KindFor)
	}
	if e.If != nil {
		kinds = append(kinds, KindIf)
	}
	if e.ElseIf != nil {
		kinds = append(kinds, KindElseIf)
	}
	if e.Else {
		kinds = append(kinds, KindElse)
	}
	if e.Block {
		kinds = append(kinds, KindBlock)
	}
	if e.With != "" {
		kinds = append(kinds, KindWith)
	}

	switch len(kinds) {
	case 0:
		return "", fmt.Errorf("expression has no kind key")
	case 1:
		return kinds[0], nil
	}
	return "", fmt.Errorf("expression mixes kinds %v", kinds)
}

// Decode converts a generic document (as produced by yaml.v3 or
// encoding/json) into a TemplateArtifact. Unknown keys are rejected.
func Decode(raw map[string]any) (*TemplateArtifact, error) {
	var out TemplateArtifact
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           &out,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("failed to decode template artifact: %w", err)
	}
	return &out, nil
}
