package syntax

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
constants:
  - name: LIMIT
    value: {int: 10}
functions:
  - name: make_foo
    params:
      - name: x
        type: int
    returns: Foo
    body:
      - assign:
          target: {var: f}
          value: {new: {class: Foo, args: [{var: x}]}}
      - if:
          cond: {binary: {op: "===", left: {var: f}, right: {null: ~}}}
          then:
            - return: {null: ~}
      - return: {var: f}
classes:
  - name: Foo
    extends: Base
    implements: [Countable, Stringable]
    templates:
      - {name: T, as: object}
    properties:
      - {name: items, type: "list<T>", visibility: private}
    methods:
      - name: count
        returns: int
        body:
          - return: {call: {function: count, args: [{prop: {object: {var: this}, name: items}}]}}
`

func TestParseSample(t *testing.T) {
	f, err := Parse("a.yaml", []byte(sample))
	require.NoError(t, err)

	require.Len(t, f.Constants, 1)
	lit, ok := f.Constants[0].Value.Expr.(IntLit)
	require.True(t, ok)
	assert.Equal(t, int64(10), lit.Value)

	require.Len(t, f.Functions, 1)
	fn := f.Functions[0]
	assert.Equal(t, "make_foo", fn.Name)
	require.Len(t, fn.Body, 3)
	assign, ok := fn.Body[0].(Assign)
	require.True(t, ok)
	nw, ok := assign.Value.(New)
	require.True(t, ok)
	assert.Equal(t, "Foo", nw.Class)
	assert.Len(t, nw.Args, 1)

	ifs, ok := fn.Body[1].(If)
	require.True(t, ok)
	bin, ok := ifs.Cond.(Binary)
	require.True(t, ok)
	assert.Equal(t, "===", bin.Op)
	ret, ok := ifs.Then[0].(Return)
	require.True(t, ok)
	assert.IsType(t, NullLit{}, ret.Value)

	require.Len(t, f.Classes, 1)
	c := f.Classes[0]
	assert.Equal(t, NameList{"Base"}, c.Extends)
	assert.Equal(t, NameList{"Countable", "Stringable"}, c.Implements)
	assert.Equal(t, "object", c.Templates[0].As)
	assert.Equal(t, 21, int(c.Pos().Line))
	require.NotNil(t, c.Node())
	require.Len(t, c.Methods, 1)
	assert.Equal(t, "count", c.Methods[0].Name)
}

func TestParseEmpty(t *testing.T) {
	f, err := Parse("empty.yaml", nil)
	require.NoError(t, err)
	assert.Empty(t, f.Classes)
}

func TestParseErrors(t *testing.T) {
	cases := []string{
		"- just a list",
		"functions:\n  - params: []\n",
		"functions:\n  - name: f\n    body:\n      - frobnicate: {}\n",
		"functions:\n  - name: f\n    body:\n      - expr: {int: abc}\n",
	}
	for _, src := range cases {
		_, err := Parse("bad.yaml", []byte(src))
		assert.ErrorIs(t, err, ErrInvalidStub, src)
	}
}

func TestBareReturn(t *testing.T) {
	f, err := Parse("r.yaml", []byte("functions:\n  - name: f\n    body:\n      - return:\n"))
	require.NoError(t, err)
	ret, ok := f.Functions[0].Body[0].(Return)
	require.True(t, ok)
	assert.Nil(t, ret.Value)
}
