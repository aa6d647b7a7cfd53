package combiner

import (
	"fmt"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tephra/internal/atom"
	"tephra/internal/codex"
	"tephra/internal/docblock"
	"tephra/internal/ttype"
)

func newCodebase() *codex.CodebaseMetadata {
	in := atom.NewInterner()
	cb := codex.NewCodebase(in)
	suit := codex.NewClassLike(in.Intern("Suit"), in.InternLower("Suit"), codex.KindEnum)
	for _, name := range []string{"Hearts", "Spades"} {
		c := in.Intern(name)
		suit.EnumCases[c] = &codex.EnumCaseMetadata{Name: c}
		suit.CaseOrder = append(suit.CaseOrder, c)
	}
	cb.AddClassLike(suit)
	return cb
}

func atomics(cb *codex.CodebaseMetadata, types ...string) []ttype.Atomic {
	var out []ttype.Atomic
	for _, s := range types {
		out = append(out, docblock.MustParse(cb.Interner, s).Types...)
	}
	return out
}

func combine(cb *codex.CodebaseMetadata, allowMixedUnion bool, types ...string) string {
	return ttype.Format(cb.Interner, ttype.Union(Combine(atomics(cb, types...), cb, allowMixedUnion)...))
}

func TestCombine(t *testing.T) {
	cases := []struct {
		in   []string
		want string
	}{
		{nil, "never"},
		{[]string{"never", "int"}, "int"},
		{[]string{"void"}, "void"},
		{[]string{"void", "int"}, "int|null"},
		{[]string{"null", "int", "null"}, "int|null"},
		{[]string{"int", "5"}, "int"},
		{[]string{"3", "1", "2", "1"}, "1|2|3"},
		{[]string{"1", "2", "int<3, 5>"}, "int<1, 5>"},
		{[]string{"int<0, 10>", "int<5, 20>", "40"}, "int<0, 20>|40"},
		{[]string{"positive-int", "0"}, "non-negative-int"},
		{[]string{"'b'", "'a'", "'b'"}, "'a'|'b'"},
		{[]string{"'a'", "string"}, "string"},
		{[]string{"'a'", "non-empty-string"}, "non-empty-string"},
		{[]string{"''", "non-empty-string"}, "string"},
		{[]string{"'1'", "numeric-string"}, "numeric-string"},
		{[]string{"true", "false"}, "bool"},
		{[]string{"true", "true"}, "true"},
		{[]string{"1.5", "float"}, "float"},
		{[]string{"int", "string", "array-key"}, "array-key"},
		{[]string{"int", "float", "'12'", "numeric"}, "numeric"},
		{[]string{"bool", "string", "scalar"}, "scalar"},
		{[]string{"open-resource", "closed-resource"}, "resource"},
		{[]string{"Foo<int>", "Foo<string>"}, "Foo<int|string>"},
		{[]string{"Foo<int>", "Foo"}, "Foo"},
		{[]string{"Foo", "Bar", "object"}, "object"},
		{[]string{"Bar", "Foo", "Bar"}, "Bar|Foo"},
		{[]string{"list<int>", "list<string>"}, "list<int|string>"},
		{[]string{"list{int}", "list{int, string}"}, "list{int, 1?: string}"},
		{[]string{"list{int}", "list<string>"}, "list{0?: int|string, ...<string>}"},
		{[]string{"array{a: int}", "list{string}"}, "array{0?: string, a?: int}"},
		{[]string{"array{}", "list<int>"}, "list<int>"},
		{[]string{"array{}", "array{}"}, "array{}"},
		{[]string{"array{}", "array{a: int}"}, "array{a?: int}"},
		{[]string{"non-empty-list<int>", "list<int>"}, "list<int>"},
		{[]string{"non-empty-list<int>", "non-empty-list<string>"}, "non-empty-list<int|string>"},
		{[]string{"array<int, string>", "array<string, int>"}, "array<int|string, int|string>"},
		{[]string{"array{a: int, ...<string, string>}", "array{a: string}"}, "array{a: int|string, ...<string, string>}"},
		{[]string{"truthy-mixed", "int"}, "nonnull"},
		{[]string{"truthy-mixed", "Foo"}, "truthy-mixed"},
		{[]string{"truthy-mixed", "null"}, "mixed"},
		{[]string{"falsy-mixed", "null"}, "falsy-mixed"},
		{[]string{"nonnull", "mixed"}, "mixed"},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprint(tc.in), func(t *testing.T) {
			assert.Equal(t, tc.want, combine(newCodebase(), false, tc.in...))
		})
	}
}

func TestEnumCases(t *testing.T) {
	cb := newCodebase()
	in := cb.Interner
	suit, other := in.Intern("Suit"), in.Intern("Other")
	hearts, spades := ttype.TEnum{Name: suit, Case: in.Intern("Hearts")}, ttype.TEnum{Name: suit, Case: in.Intern("Spades")}
	format := func(types ...ttype.Atomic) string { return ttype.Format(in, ttype.Union(Combine(types, cb, false)...)) }

	assert.Equal(t, "Suit", format(spades, hearts, spades))
	assert.Equal(t, "Suit", format(hearts, ttype.TEnum{Name: suit}))
	assert.Equal(t, "Suit::Hearts", format(hearts, hearts))
	unknown := format(ttype.TEnum{Name: other, Case: in.Intern("B")}, ttype.TEnum{Name: other, Case: in.Intern("A")})
	assert.Equal(t, "Other::A|Other::B", unknown, "cases of unknown enums are sorted by name")
}

func TestAllowMixedUnion(t *testing.T) {
	cb := newCodebase()
	assert.Equal(t, "truthy-mixed|int|null", combine(cb, true, "truthy-mixed", "int", "Foo", "null"))
	assert.Equal(t, "mixed", combine(cb, true, "mixed", "int"))
}

func TestIntegerLiteralLimit(t *testing.T) {
	cb := newCodebase()
	var run, gaps []ttype.Atomic
	for i := range IntegerLiteralLimit + 5 {
		run = append(run, ttype.IntLit(int64(i)))
		gaps = append(gaps, ttype.IntLit(int64(i*2)))
	}
	assert.Equal(t, "int<0, 132>", ttype.Format(cb.Interner, ttype.Union(Combine(run, cb, false)...)))
	assert.Equal(t, "int", ttype.Format(cb.Interner, ttype.Union(Combine(gaps, cb, false)...)))
}

func TestStringLiteralLimit(t *testing.T) {
	cb := newCodebase()
	var lits []ttype.Atomic
	for i := range StringLiteralLimit + 1 {
		lits = append(lits, ttype.StringLit(cb.Interner.Intern(fmt.Sprintf("s%d", i))))
	}
	assert.Equal(t, "non-empty-string", ttype.Format(cb.Interner, ttype.Union(Combine(lits, cb, false)...)))
}

func TestArrayKnownLimit(t *testing.T) {
	cb := newCodebase()
	arr := ttype.TKeyedArray{}
	for i := range ArrayKnownLimit + 1 {
		arr.Known = append(arr.Known, ttype.KnownItem{Key: ttype.IntKey(int64(i)), Type: ttype.Int()})
	}
	out := Combine([]ttype.Atomic{arr, ttype.EmptyArray()}, cb, false)
	require.Len(t, out, 1)
	assert.Equal(t, "array<int, int>", ttype.FormatAtomic(cb.Interner, out[0]))
}

func TestOrderIndependentAndIdempotent(t *testing.T) {
	cb := newCodebase()
	inputs := atomics(cb, "null", "Foo<int>", "'x'", "7", "list{int}", "Suit::Hearts", "float", "3", "Foo<string>", "list<string>", "T")
	want := Combine(inputs, cb, false)

	perm := slices.Clone(inputs)
	slices.Reverse(perm)
	assert.Equal(t, ttype.UnionKey(ttype.Union(want...)), ttype.UnionKey(ttype.Union(Combine(perm, cb, false)...)))

	again := Combine(want, cb, false)
	assert.Equal(t, ttype.UnionKey(ttype.Union(want...)), ttype.UnionKey(ttype.Union(again...)))
}

func TestCombineUnionsFlags(t *testing.T) {
	cb := newCodebase()
	a := ttype.Int()
	a.PossiblyUndefined = true
	b := ttype.String()
	b.IgnoreNullableIssues = true
	u := CombineUnions(a, b, cb, false)
	assert.Equal(t, "int|string", ttype.Format(cb.Interner, u))
	assert.True(t, u.PossiblyUndefined)
	assert.True(t, u.IgnoreNullableIssues)
	assert.Equal(t, "never", ttype.Format(cb.Interner, CombineAll(nil, cb)))
}
