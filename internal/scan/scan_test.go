package scan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tephra/internal/atom"
	"tephra/internal/codex"
	"tephra/internal/diag"
	"tephra/internal/source"
	"tephra/internal/syntax"
	"tephra/internal/ttype"
)

type scanned struct {
	in  *atom.Interner
	cb  *codex.CodebaseMetadata
	bag *diag.Bag
	sum Summary
}

func scanStubs(t *testing.T, stubs ...string) *scanned {
	t.Helper()
	in := atom.NewInterner()
	s := &scanned{in: in, cb: codex.NewCodebase(in), bag: diag.NewBag(100)}
	fset := source.NewFileSet()
	sc := New(s.cb, diag.BagReporter{Bag: s.bag})
	for i, text := range stubs {
		path := string(rune('a'+i)) + ".yaml"
		file := fset.Get(fset.AddVirtual(path, []byte(text)))
		stub, err := syntax.Parse(path, file.Content)
		require.NoError(t, err)
		sum := sc.File(file, stub)
		s.sum.Classes += sum.Classes
		s.sum.Functions += sum.Functions
		s.sum.Constants += sum.Constants
		s.sum.Skipped += sum.Skipped
	}
	return s
}

func (s *scanned) codes() []diag.Code {
	var out []diag.Code
	for _, d := range s.bag.Items() {
		out = append(out, d.Code)
	}
	return out
}

func (s *scanned) format(u ttype.TUnion) string { return ttype.Format(s.in, u) }

const shapes = `
constants:
  - name: LIMIT
    value: {int: 10}
functions:
  - name: wrap
    templates:
      - {name: T}
    params:
      - {name: value, type: T}
      - {name: label, type: string, default: {null: ~}}
    returns: "list<T>"
classes:
  - name: Box
    templates:
      - {name: T, as: object, variance: covariant}
    type-aliases:
      Pair: "array{0: T, 1: T}"
    constants:
      - {name: SIZES, value: {array: [{int: 1}, {int: 2}]}}
      - name: MAP
        value: {map: [{key: {string: a}, value: {int: 1}}, {key: {int: 5}, value: {bool: true}}]}
    properties:
      - {name: $item, type: T, visibility: protected}
    methods:
      - name: get
        returns: T
      - name: map
        templates:
          - {name: U}
        params:
          - {name: fn, type: "callable"}
        returns: "Box<U>"
  - name: IntBox
    extends: Box
    extends-params:
      Box: [int]
    implements: [Countable]
    uses: Helpers
    trait-aliases:
      Run: go
  - name: Suit
    kind: enum
    enum-backing: string
    cases:
      - {name: Hearts, value: {string: H}}
      - {name: Spades, value: {string: S}}
  - name: Shape
    kind: interface
    extends: [Countable]
    methods:
      - {name: area, returns: float}
`

func TestScanDeclarations(t *testing.T) {
	s := scanStubs(t, shapes)
	assert.Empty(t, s.bag.Items())
	assert.Equal(t, Summary{Classes: 4, Functions: 1, Constants: 1}, s.sum)

	fn := s.cb.Function(s.in.Intern("WRAP"))
	require.NotNil(t, fn)
	require.Len(t, fn.TemplateTypes, 1)
	assert.Equal(t, "fn-wrap", s.in.String(fn.TemplateTypes[0].DefiningEntity))
	assert.Equal(t, "list<T>", s.format(fn.ReturnType))
	require.Len(t, fn.Params, 2)
	assert.Equal(t, "string|null", s.format(fn.Params[1].Type))
	assert.True(t, fn.Params[1].HasDefault)
	assert.Equal(t, 1, fn.RequiredParams())

	box := s.cb.ClassLike(s.in.Intern("box"))
	require.NotNil(t, box)
	assert.Equal(t, codex.KindClass, box.Kind)
	require.Len(t, box.TemplateTypes, 1)
	assert.Equal(t, codex.Covariant, box.TemplateTypes[0].Variance)
	assert.Equal(t, "object", s.format(box.TemplateTypes[0].Constraint))
	assert.Equal(t, "list{1, 2}", s.format(box.Constants[s.in.Intern("SIZES")].Inferred))
	assert.Equal(t, "array{5: true, a: 1}", s.format(box.Constants[s.in.Intern("MAP")].Inferred))

	item := box.Properties[s.in.Intern("item")]
	require.NotNil(t, item)
	assert.Equal(t, codex.Protected, item.Visibility)
	assert.Equal(t, "T", s.format(item.Type))

	mapped := box.Methods[s.in.InternLower("map")]
	require.NotNil(t, mapped)
	assert.Equal(t, "fn-box::map", s.in.String(mapped.TemplateTypes[0].DefiningEntity))
	assert.Equal(t, "Box<U>", s.format(mapped.ReturnType))

	intBox := s.cb.ClassLike(s.in.Intern("IntBox"))
	require.NotNil(t, intBox)
	assert.Equal(t, "Box", s.in.String(intBox.DirectParentClass))
	assert.Equal(t, "int", s.format(intBox.TemplateExtendedOffsets[s.in.InternLower("Box")][0]))
	assert.Equal(t, []atom.Atom{s.in.Intern("Countable")}, intBox.DirectParentInterfaces)
	assert.Equal(t, s.in.InternLower("go"), intBox.TraitAliasMap[s.in.InternLower("Run")])

	suit := s.cb.ClassLike(s.in.Intern("Suit"))
	require.NotNil(t, suit)
	assert.True(t, suit.IsFinal())
	assert.Equal(t, []atom.Atom{s.in.Intern("Hearts"), s.in.Intern("Spades")}, suit.CaseOrder)
	assert.Equal(t, "'H'", s.format(suit.EnumCases[s.in.Intern("Hearts")].Value))

	shape := s.cb.ClassLike(s.in.Intern("Shape"))
	require.NotNil(t, shape)
	assert.Equal(t, []atom.Atom{s.in.Intern("Countable")}, shape.DirectParentInterfaces)
	assert.True(t, shape.Methods[s.in.Intern("area")].IsAbstract())
}

func TestScanReportsProblems(t *testing.T) {
	s := scanStubs(t, `
functions:
  - {name: f, returns: "array<"}
classes:
  - name: A
    properties:
      - {name: x, type: int}
      - {name: $x, type: int}
  - {name: B, kind: struct}
`, `
functions:
  - {name: F}
classes:
  - {name: a}
`)
	assert.ElementsMatch(t, []diag.Code{
		diag.InvalidDocblockType,
		diag.DuplicateSymbol, // $x
		diag.InvalidStub,     // struct
		diag.DuplicateSymbol, // F
		diag.DuplicateSymbol, // a
	}, s.codes())
	assert.Equal(t, 4, s.sum.Skipped)

	f := s.cb.Function(s.in.Intern("f"))
	require.NotNil(t, f)
	assert.True(t, f.ReturnType.IsMixed(), "malformed types are coerced")
	assert.Equal(t, "a.yaml", s.in.String(s.cb.SymbolFiles[s.in.Intern("a")]))
}

func TestValueTypeNeedsConstants(t *testing.T) {
	in := atom.NewInterner()
	_, ok := ValueType(in, syntax.Var{Name: "x"})
	assert.False(t, ok)
	_, ok = ValueType(in, syntax.ArrayLit{Items: []syntax.ArrayItem{{Value: syntax.Call{Function: "f"}}}})
	assert.False(t, ok)

	u, ok := ValueType(in, syntax.ConstFetch{Class: `\Foo`, Name: "BAR"})
	require.True(t, ok)
	assert.Equal(t, "Foo::BAR", ttype.Format(in, u))

	u, ok = ValueType(in, syntax.ArrayLit{Items: []syntax.ArrayItem{
		{Key: syntax.IntLit{Value: 3}, Value: syntax.IntLit{Value: 1}},
		{Value: syntax.IntLit{Value: 2}},
		{Key: syntax.IntLit{Value: 3}, Value: syntax.StringLit{Value: "x"}},
	}})
	require.True(t, ok)
	assert.Equal(t, "array{3: 'x', 4: 2}", ttype.Format(in, u))
}

func TestNames(t *testing.T) {
	in := atom.NewInterner()
	stub, err := syntax.Parse("n.yaml", []byte(shapes))
	require.NoError(t, err)
	got := Names(in, stub)
	var names []string
	for _, a := range got {
		names = append(names, in.String(a))
	}
	assert.Equal(t, []string{"LIMIT", "wrap", "box", "intbox", "suit", "shape"}, names)
}
