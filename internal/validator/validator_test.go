package validator_test

import (
	"testing"

	"github.com/aretw0/arbor/internal/validator"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/dsl"
	"github.com/aretw0/arbor/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateTemplate(t *testing.T) {
	// 1. Scenario A: Valid Template
	tpl := dsl.New("ok").Add(
		dsl.If("a", dsl.Node("text").Text("to_upper(b)")),
		dsl.ElseIf("c"),
		dsl.Else(),
		dsl.For("item", "items", dsl.With("x", "item.value")),
	).MustBuild()

	require.NoError(t, validator.ValidateTemplate(tpl, validator.WithRegistry(registry.Default())))

	// 2. Scenario B: Broken Chains
	broken := dsl.New("broken").Add(
		dsl.Else(),
		dsl.If("a"),
		dsl.Else(),
		dsl.ElseIf("b"),
		dsl.Node(""),
		dsl.Node("text").Text("shout(x)"),
	).MustBuild()

	err := validator.ValidateTemplate(broken, validator.WithRegistry(registry.Default()))
	require.ErrorIs(t, err, domain.ErrMalformedTemplate)
	assert.Contains(t, err.Error(), "found 4 errors")
	assert.Contains(t, err.Error(), "body[0]: else without a preceding if")
	assert.Contains(t, err.Error(), "body[3]: else without a preceding if")
	assert.Contains(t, err.Error(), "body[4].node: empty name")
	assert.Contains(t, err.Error(), `unknown function "shout"`)

	// Without a registry calls are not checked
	err = validator.ValidateTemplate(broken)
	assert.Contains(t, err.Error(), "found 3 errors")
}

func TestValidateTemplate_Constants(t *testing.T) {
	tpl := &domain.Template{
		Name: "raw",
		Expressions: []domain.Expression{
			&domain.StaticNode{Ident: 4, Text: domain.ValueIDPtr(9)},
		},
	}

	err := validator.ValidateTemplate(tpl)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrMalformedTemplate)
	assert.Contains(t, err.Error(), "body[0].node: string 4")
	assert.Contains(t, err.Error(), "body[0].text: value 9")
}

func TestValidateTemplate_StateSchema(t *testing.T) {
	tpl := dsl.New("typed").
		Expect("title", "string").
		Expect("count", "integer").
		Add(dsl.Node("text").Text("title")).
		MustBuild()

	err := validator.ValidateTemplate(tpl)
	require.ErrorIs(t, err, domain.ErrMalformedTemplate)
	assert.Contains(t, err.Error(), "found 1 errors")
	assert.Contains(t, err.Error(), "state.count:")
}
