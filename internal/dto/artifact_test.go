package dto_test

import (
	"testing"

	"github.com/aretw0/arbor/internal/dto"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const artifact = `
name: main
state:
  title: string
  items: "[map]?"
body:
  - node: header
    text: title
    attributes:
      bold: true
      width: 20
  - for: item
    in: items
    body:
      - node: row
        text: item.name
  - if: show
    body:
      - node: text
        text: "'shown'"
  - else_if: maybe
    body: []
  - else: true
    body:
      - block: true
        body:
          - with: x
            as: 1 + 2 * 3
            body:
              - node: text
                text: x
`

func decode(t *testing.T, src string) map[string]any {
	t.Helper()
	var raw map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(src), &raw))
	return raw
}

func TestDecodeAndConvert(t *testing.T) {
	a, err := dto.Decode(decode(t, artifact))
	require.NoError(t, err)
	assert.Equal(t, "main", a.Name)
	require.Len(t, a.Body, 5)

	kind, err := a.Body[3].Kind()
	require.NoError(t, err)
	assert.Equal(t, dto.KindElseIf, kind)

	tpl, err := dto.ToDomain(a, "fallback")
	require.NoError(t, err)
	assert.Equal(t, "main", tpl.Name)
	assert.Equal(t, map[string]string{"title": "string", "items": "[map]?"}, tpl.StateSchema)
	require.Len(t, tpl.Expressions, 5)

	header := tpl.Expressions[0].(*domain.StaticNode)
	require.Len(t, header.Attributes, 2)
	bold, err := tpl.String(header.Attributes[0].Key)
	require.NoError(t, err)
	assert.Equal(t, "bold", bold)
	v, err := tpl.Value(header.Attributes[0].Value)
	require.NoError(t, err)
	assert.Equal(t, "true", v.String(), "non-string scalars become literals")

	elseExpr := tpl.Expressions[4].(*domain.Else)
	assert.Nil(t, elseExpr.Cond)
	with := elseExpr.Body[0].(*domain.Block).Body[0].(*domain.With)
	data, err := tpl.Value(with.Data)
	require.NoError(t, err)
	assert.Equal(t, "(1 + (2 * 3))", data.String())
}

func TestDecode_Errors(t *testing.T) {
	_, err := dto.Decode(decode(t, "body:\n  - node: a\n    colour: red\n"))
	assert.Error(t, err, "unknown keys are rejected")

	a, err := dto.Decode(decode(t, "body:\n  - node: a\n    for: b\n    in: c\n  - {}\n  - node: t\n    text: '1 +'\n"))
	require.NoError(t, err)

	_, err = dto.ToDomain(a, "broken")
	require.ErrorIs(t, err, domain.ErrMalformedTemplate)
	assert.Contains(t, err.Error(), "body[0]: expression mixes kinds")
	assert.Contains(t, err.Error(), "body[1]: expression has no kind key")
	assert.Contains(t, err.Error(), "body[2].text")
}
