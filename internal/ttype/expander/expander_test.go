package expander

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tephra/internal/atom"
	"tephra/internal/codex"
	"tephra/internal/docblock"
	"tephra/internal/ttype"
)

type fixture struct {
	cb            *codex.CodebaseMetadata
	foo, bar, fin atom.Atom
	suit          atom.Atom
}

func newFixture() fixture {
	in := atom.NewInterner()
	cb := codex.NewCodebase(in)
	f := fixture{cb: cb, foo: in.InternLower("Foo"), bar: in.InternLower("Bar"), fin: in.InternLower("Fin"), suit: in.InternLower("Suit")}

	foo := codex.NewClassLike(in.Intern("Foo"), f.foo, codex.KindClass)
	constant := func(name string, value ttype.Atomic) {
		n := in.Intern(name)
		foo.Constants[n] = &codex.ClassConstantMetadata{Name: n, DeclaringClass: f.foo, Inferred: ttype.Single(value)}
	}
	constant("A", ttype.IntLit(1))
	constant("B", ttype.StringLit(in.Intern("b")))
	constant("FLAG_X", ttype.IntLit(1))
	constant("FLAG_Y", ttype.IntLit(2))
	constant("FLAG_Z", ttype.IntLit(4))
	foo.TypeAliases[in.Intern("Point")] = docblock.MustParse(in, "array{x: int, y: int}")
	foo.TypeAliases[in.Intern("Loop")] = ttype.Single(ttype.TAlias{Class: f.foo, Name: in.Intern("Loop")})
	foo.TypeAliases[in.Intern("Me")] = docblock.MustParse(in, "list<self>")
	property := func(name, typ string, static bool) {
		n := in.Intern(name)
		foo.Properties[n] = &codex.PropertyMetadata{Name: n, DeclaringClass: f.foo, Type: docblock.MustParse(in, typ), Static: static}
	}
	property("name", "string", false)
	property("count", "int", false)
	property("cache", "array", true)
	cb.AddClassLike(foo)

	bar := codex.NewClassLike(in.Intern("Bar"), f.bar, codex.KindClass)
	bar.DirectParentClass = f.foo
	bar.ImportedTypeAliases[in.Intern("P")] = codex.ImportedAlias{From: f.foo, Name: in.Intern("Point")}
	cb.AddClassLike(bar)

	fin := codex.NewClassLike(in.Intern("Fin"), f.fin, codex.KindClass)
	fin.Flags |= codex.FlagFinal
	cb.AddClassLike(fin)

	suit := codex.NewClassLike(in.Intern("Suit"), f.suit, codex.KindEnum)
	for _, c := range []struct{ name, value string }{{"Hearts", "H"}, {"Spades", "S"}} {
		n := in.Intern(c.name)
		suit.EnumCases[n] = &codex.EnumCaseMetadata{Name: n, Value: ttype.Single(ttype.StringLit(in.Intern(c.value)))}
		suit.CaseOrder = append(suit.CaseOrder, n)
	}
	cb.AddClassLike(suit)
	return f
}

func (f fixture) expand(t *testing.T, text string, opts *TypeExpansionOptions) string {
	t.Helper()
	u, err := docblock.Parse(f.cb.Interner, text, nil)
	require.NoError(t, err)
	ExpandUnion(f.cb, &u, opts)
	return ttype.Format(f.cb.Interner, u)
}

func TestSelfStaticParent(t *testing.T) {
	f := newFixture()
	opts := &TypeExpansionOptions{SelfClass: f.bar, ParentClass: f.foo}

	assert.Equal(t, "Bar", f.expand(t, "self", opts))
	assert.Equal(t, "Foo", f.expand(t, "parent", opts))
	assert.Equal(t, "Bar&static", f.expand(t, "static", opts))
	assert.Equal(t, "Bar", f.expand(t, "static", &TypeExpansionOptions{SelfClass: f.bar, FunctionIsFinal: true}))
	assert.Equal(t, "Fin", f.expand(t, "static", &TypeExpansionOptions{SelfClass: f.fin}))
	assert.Equal(t, "self", f.expand(t, "self", nil), "without a class self stays as written")

	receiver := ttype.TNamedObject{Name: f.cb.Interner.Intern("Fin")}
	assert.Equal(t, "Fin", f.expand(t, "static", &TypeExpansionOptions{SelfClass: f.foo, StaticClassType: receiver}))
}

func TestNamesNormalized(t *testing.T) {
	f := newFixture()
	assert.Equal(t, "Foo", f.expand(t, "FOO", nil))
	assert.Equal(t, "Suit", f.expand(t, "suit", nil))
	assert.Equal(t, "Foo<Bar>", f.expand(t, "foo<bar>", nil))
	assert.Equal(t, "Unknown", f.expand(t, "Unknown", nil))
}

func TestClassConstants(t *testing.T) {
	f := newFixture()
	eval := &TypeExpansionOptions{EvaluateClassConstants: true, SelfClass: f.foo}

	assert.Equal(t, "1", f.expand(t, "Foo::A", eval))
	assert.Equal(t, "'b'", f.expand(t, "self::B", eval))
	assert.Equal(t, "1|2|4", f.expand(t, "Foo::FLAG_*", eval))
	assert.Equal(t, "Suit::Hearts", f.expand(t, "Suit::Hearts", eval))
	assert.Equal(t, "Suit::Spades", f.expand(t, "Suit::S*", eval))
	assert.Equal(t, "Foo::MISSING", f.expand(t, "Foo::MISSING", eval))
	assert.Equal(t, "Foo::A", f.expand(t, "Foo::A", nil), "constants stay unless evaluated")
}

func TestClassConstantKeys(t *testing.T) {
	f := newFixture()
	assert.Equal(t, "array{1: int, b: string}", f.expand(t, "array{Foo::A: int, Foo::B: string}", nil))
	assert.Equal(t, "array{1: string}", f.expand(t, "array{1: int, Foo::A: string}", nil))
	assert.Equal(t, "non-empty-array<array-key, int>", f.expand(t, "array{Foo::NOPE: int}", nil))
}

func TestAliases(t *testing.T) {
	f := newFixture()
	in := f.cb.Interner
	alias := func(class atom.Atom, name string) ttype.TUnion {
		return ttype.Single(ttype.TAlias{Class: class, Name: in.Intern(name)})
	}
	format := func(u ttype.TUnion) string { return ttype.Format(in, Expanded(f.cb, u, nil)) }

	assert.Equal(t, "array{x: int, y: int}", format(alias(f.foo, "Point")))
	assert.Equal(t, "array{x: int, y: int}", format(alias(f.bar, "P")), "imported aliases follow their source")
	assert.Equal(t, "list<Foo>", format(alias(f.foo, "Me")), "self inside an alias is the declaring class")
	assert.Equal(t, "Loop", format(alias(f.foo, "Loop")), "cyclic aliases stay unresolved")
	assert.Equal(t, "Nope", format(alias(f.foo, "Nope")))
}

func TestGenericParameters(t *testing.T) {
	f := newFixture()
	in := f.cb.Interner
	tpl := ttype.Single(ttype.TGenericParameter{Name: in.Intern("T"), DefiningEntity: f.foo, Constraint: docblock.MustParse(in, "self")})

	kept := Expanded(f.cb, tpl, &TypeExpansionOptions{SelfClass: f.foo})
	require.Len(t, kept.Types, 1)
	gp, ok := kept.Types[0].(ttype.TGenericParameter)
	require.True(t, ok)
	assert.Equal(t, "Foo", ttype.Format(in, gp.Constraint))

	replaced := Expanded(f.cb, tpl, &TypeExpansionOptions{SelfClass: f.foo, ExpandGeneric: true})
	assert.Equal(t, "Foo", ttype.Format(in, replaced))
}

func TestDerived(t *testing.T) {
	f := newFixture()
	opts := &TypeExpansionOptions{ExpandDerived: true, EvaluateClassConstants: true}
	cases := []struct{ in, want string }{
		{"key-of<array{a: int, b: string}>", "'a'|'b'"},
		{"key-of<list<int>>", "non-negative-int"},
		{"key-of<list{int, string}>", "0|1"},
		{"value-of<array{a: int, b: string}>", "int|string"},
		{"value-of<array<string, float>>", "float"},
		{"value-of<Suit>", "'H'|'S'"},
		{"array{a: int, b: string}['b']", "string"},
		{"array{a: int, ...<string, float>}['z']", "float"},
		{"list{int, string}[1]", "string"},
		{"array{a: int, b: string}[string]", "int|string"},
		{"properties-of<Foo>", "array{name: string, count: int}"},
		{"int-mask<1, 2>", "0|1|2|3"},
		{"int-mask-of<Foo::FLAG_*>", "0|1|2|3|4|5|6|7"},
		{"int-mask<1, 2, 4, 8, 16, 32, 64, 128>", "int<0, 255>"},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, f.expand(t, tc.in, opts))
		})
	}
}

func TestDerivedStaysWhenOpaque(t *testing.T) {
	f := newFixture()
	in := f.cb.Interner
	opts := &TypeExpansionOptions{ExpandDerived: true}

	assert.Equal(t, "key-of<Unknown>", f.expand(t, "key-of<Unknown>", opts))
	assert.Equal(t, "array{a: int}['z']", f.expand(t, "array{a: int}['z']", opts), "a missing key is not reduced")
	assert.Equal(t, "key-of<array{a: int}>", f.expand(t, "key-of<array{a: int}>", nil))

	tpl := ttype.TGenericParameter{Name: in.Intern("T"), DefiningEntity: f.foo, Constraint: ttype.Mixed()}
	_, ok := ReduceDerived(f.cb, ttype.TDerived{Op: ttype.DerivedKeyOf, Target: ttype.Single(tpl)})
	assert.False(t, ok)
}
