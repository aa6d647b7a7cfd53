package comparator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tephra/internal/atom"
	"tephra/internal/codex"
	"tephra/internal/docblock"
	"tephra/internal/ttype"
	"tephra/internal/ttype/combiner"
	"tephra/internal/ttype/expander"
)

// Animal <- Dog; Box<T> (covariant); Sink<T> (contravariant); enum Suit
// implements Named.
func newCodebase() *codex.CodebaseMetadata {
	in := atom.NewInterner()
	cb := codex.NewCodebase(in)
	class := func(name string, kind codex.ClassKind) *codex.ClassLikeMetadata {
		meta := codex.NewClassLike(in.Intern(name), in.InternLower(name), kind)
		cb.AddClassLike(meta)
		return meta
	}
	class("Animal", codex.KindClass)
	dog := class("Dog", codex.KindClass)
	dog.DirectParentClass = in.InternLower("Animal")
	dog.AllParentClasses.Add(in.InternLower("Animal"))

	tpl := func(meta *codex.ClassLikeMetadata, v codex.Variance) {
		meta.TemplateTypes = []codex.TemplateType{{Name: in.Intern("T"), DefiningEntity: meta.Key, Constraint: ttype.Mixed(), Variance: v}}
	}
	tpl(class("Box", codex.KindClass), codex.Covariant)
	tpl(class("Sink", codex.KindClass), codex.Contravariant)

	class("Named", codex.KindInterface)
	suit := class("Suit", codex.KindEnum)
	suit.AllParentInterfaces.Add(in.InternLower("Named"))
	for _, name := range []string{"Hearts", "Spades"} {
		c := in.Intern(name)
		suit.EnumCases[c] = &codex.EnumCaseMetadata{Name: c}
		suit.CaseOrder = append(suit.CaseOrder, c)
	}
	return cb
}

func parse(t *testing.T, cb *codex.CodebaseMetadata, text string) ttype.TUnion {
	t.Helper()
	u, err := docblock.Parse(cb.Interner, text, nil)
	require.NoError(t, err)
	return expander.Expanded(cb, u, &expander.TypeExpansionOptions{EvaluateClassConstants: true})
}

func contains(t *testing.T, cb *codex.CodebaseMetadata, input, container string) (bool, ComparisonResult) {
	t.Helper()
	var r ComparisonResult
	ok := UnionIsContainedBy(cb, parse(t, cb, input), parse(t, cb, container), false, false, &r)
	return ok, r
}

func TestContained(t *testing.T) {
	cb := newCodebase()
	cases := [][2]string{
		{"int", "int|string"},
		{"5", "int<0, 10>"},
		{"'a'", "non-empty-string"},
		{"'12'", "numeric"},
		{"numeric-string", "non-empty-string"},
		{"int", "array-key"},
		{"int", "float"},
		{"float|string", "scalar"},
		{"never", "int"},
		{"null", "void"},
		{"int", "nonnull"},
		{"Dog", "truthy-mixed"},
		{"Dog", "Animal"},
		{"Dog", "object"},
		{"Suit::Hearts", "Suit"},
		{"Suit", "Named"},
		{"Suit", "object"},
		{"open-resource", "resource"},
		{"list{int, string}", "array<int, int|string>"},
		{"array{}", "list<int>"},
		{"list<int>", "array<int, int>"},
		{"non-empty-list<int>", "list<int>"},
		{"array{a: int}", "array{a: int, b?: string}"},
		{"array{a: int, b: string}", "array{a: int, ...<string, string>}"},
		{"Box<Dog>", "Box<Animal>"},
		{"Box<Dog>", "Box"},
		{"Sink<Animal>", "Sink<Dog>"},
		{"key-of<array{a: int}>", "string"},
		{"'a'", "key-of<array{a: int, b: int}>"},
		{"key-of<list<int>>", "key-of<array<int, int>>"},
	}
	for _, tc := range cases {
		t.Run(tc[0]+" in "+tc[1], func(t *testing.T) {
			ok, _ := contains(t, cb, tc[0], tc[1])
			assert.True(t, ok)
		})
	}
	assert.True(t, UnionIsContainedBy(cb, parse(t, cb, "int|null"), parse(t, cb, "int"), true, false, nil), "null is ignored on request")
	assert.True(t, UnionIsContainedBy(cb, parse(t, cb, "int|false"), parse(t, cb, "int"), false, true, nil), "false is ignored on request")
}

func TestNotContained(t *testing.T) {
	cb := newCodebase()
	cases := [][2]string{
		{"int|string", "int"},
		{"list{int, string}", "list{int}"},
		{"array{0: 'a'}", "list<string>"},
		{"array{}", "non-empty-list<int>"},
		{"list<int>", "non-empty-list<int>"},
		{"array{a?: int}", "array{a: int}"},
		{"array{a: int}", "array{a: string}"},
		{"array<string, int>", "array{a?: int}"},
		{"null", "nonnull"},
		{"float", "int"},
		{"Box<Animal>", "Box<Dog>"},
		{"Suit::Hearts", "Dog"},
		{"'c'", "key-of<array{a: int, b: int}>"},
		{"closed-resource", "open-resource"},
	}
	for _, tc := range cases {
		t.Run(tc[0]+" in "+tc[1], func(t *testing.T) {
			ok, _ := contains(t, cb, tc[0], tc[1])
			assert.False(t, ok)
		})
	}
}

func TestCoercionFlags(t *testing.T) {
	cb := newCodebase()

	ok, r := contains(t, cb, "int", "5")
	assert.False(t, ok)
	assert.Equal(t, ttype.True, r.TypeCoercedToLiteral)

	ok, r = contains(t, cb, "string", "'a'")
	assert.False(t, ok)
	assert.Equal(t, ttype.True, r.TypeCoercedToLiteral)

	ok, r = contains(t, cb, "Suit", "Suit::Hearts")
	assert.False(t, ok)
	assert.Equal(t, ttype.True, r.TypeCoercedToLiteral)

	ok, r = contains(t, cb, "Animal", "Dog")
	assert.False(t, ok)
	assert.Equal(t, ttype.True, r.TypeCoerced)
	assert.Equal(t, ttype.Unset, r.TypeCoercedToLiteral)

	ok, r = contains(t, cb, "mixed", "int")
	assert.False(t, ok)
	assert.Equal(t, ttype.True, r.TypeCoercedFromAsMixed)
	assert.Equal(t, ttype.Unset, r.TypeCoercedFromNestedMixed)

	ok, r = contains(t, cb, "list<mixed>", "list<int>")
	assert.False(t, ok)
	assert.Equal(t, ttype.True, r.TypeCoercedFromNestedMixed)

	ok, r = contains(t, cb, "Foo::BAR", "int")
	assert.True(t, ok, "unresolved references are accepted")
	assert.Equal(t, ttype.True, r.TypeCoerced)
}

func TestInsideAssertionNarrows(t *testing.T) {
	cb := newCodebase()
	animal := parse(t, cb, "Animal").Types[0]
	dog := parse(t, cb, "Dog").Types[0]

	assert.False(t, IsContainedBy(cb, animal, dog, false, nil))
	var r ComparisonResult
	require.True(t, IsContainedBy(cb, animal, dog, true, &r))
	assert.Equal(t, "Dog", ttype.FormatAtomic(cb.Interner, r.ReplacementAtomic))
}

func TestSplitContainers(t *testing.T) {
	cb := newCodebase()
	// parsed without recombination so the container stays split
	raw := func(s string) ttype.TUnion { return docblock.MustParse(cb.Interner, s) }
	assert.True(t, UnionIsContainedBy(cb, raw("int<0, 5>"), raw("int<0, 2>|int<3, 5>"), false, false, nil))
	assert.True(t, UnionIsContainedBy(cb, raw("non-negative-int"), raw("0|positive-int"), false, false, nil))
	assert.False(t, UnionIsContainedBy(cb, raw("int<0, 5>"), raw("int<0, 2>|int<4, 5>"), false, false, nil))
	assert.True(t, UnionIsContainedBy(cb, raw("bool"), raw("true|false"), false, false, nil))
}

func TestReflexive(t *testing.T) {
	cb := newCodebase()
	types := []string{
		"int", "5", "int<1, 9>", "positive-int", "float", "1.5", "string", "'x'", "non-empty-string",
		"numeric-string", "bool", "true", "array-key", "numeric", "scalar", "null", "void", "never",
		"mixed", "nonnull", "truthy-mixed", "list<int>", "list{int, 1?: string}", "non-empty-list<Dog>",
		"array{a: int, b?: list<string>}", "array<string, int>", "array{}", "Dog", "Box<Dog>", "object",
		"Suit", "Suit::Hearts", "resource", "key-of<array{a: int}>", "Foo::BAR", "int-mask<1, 2>",
	}
	for _, s := range types {
		u := parse(t, cb, s)
		for _, a := range u.Types {
			assert.True(t, IsContainedBy(cb, a, a, false, nil), s)
		}
	}
}

func TestCombinedContainsInputs(t *testing.T) {
	cb := newCodebase()
	var inputs []ttype.Atomic
	for _, s := range []string{
		"1", "2", "int<3, 5>", "'a'", "string", "list{int}", "list<string>", "array{a: int}",
		"Dog", "Animal", "null", "true", "false", "float", "Suit::Hearts", "Suit::Spades",
	} {
		inputs = append(inputs, parse(t, cb, s).Types...)
	}
	combined := ttype.TUnion{Types: combiner.Combine(inputs, cb, false)}
	for _, a := range inputs {
		assert.True(t, UnionIsContainedBy(cb, ttype.Single(a), combined, false, false, nil), ttype.FormatAtomic(cb.Interner, a))
	}
}

func TestAbsorbKeepsFirstFailure(t *testing.T) {
	r := ComparisonResult{TypeCoerced: ttype.True}
	r.Absorb(ComparisonResult{TypeCoerced: ttype.False, TypeCoercedToLiteral: ttype.True})
	assert.Equal(t, ttype.True, r.TypeCoerced)
	assert.Equal(t, ttype.True, r.TypeCoercedToLiteral)

	var empty ComparisonResult
	empty.Absorb(ComparisonResult{TypeCoercedFromAsMixed: ttype.False})
	assert.Equal(t, ttype.False, empty.TypeCoercedFromAsMixed)
	assert.False(t, empty.Coerced())
}
