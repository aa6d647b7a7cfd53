package ttype

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"tephra/internal/atom"
)

func TestFormat(t *testing.T) {
	in := atom.NewInterner()
	foo := in.Intern("Foo")
	name := in.Intern("name")

	cases := []struct {
		u    TUnion
		want string
	}{
		{Union(IntLit(5), TNull{}), "5|null"},
		{Single(IntRangeOf(1, 10)), "int<1, 10>"},
		{Single(IntFromOf(1)), "positive-int"},
		{Single(IntToOf(3)), "int<min, 3>"},
		{Single(StringLit(name)), "'name'"},
		{Single(TString{NonEmpty: true}), "non-empty-string"},
		{Single(ListOf(Int())), "list<int>"},
		{Single(TList{Known: []ListElement{{Index: 0, Type: Int()}, {Index: 1, Type: String(), Optional: true}}}), "list{int, 1?: string}"},
		{Single(TKeyedArray{Known: []KnownItem{{Key: StringKey(name), Type: String()}}}), "array{name: string}"},
		{Single(ArrayOf(ArrayKeyU(), Mixed())), "array<array-key, mixed>"},
		{Single(EmptyArray()), "array{}"},
		{Single(TNamedObject{Name: foo, TypeParams: []TUnion{Int()}}), "Foo<int>"},
		{Single(TDerived{Op: DerivedKeyOf, Target: Single(NamedObject(foo))}), "key-of<Foo>"},
		{Single(TMixed{Axis: MixedNonNull}), "nonnull"},
		{TUnion{}, "never"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Format(in, tc.u))
	}
}

func TestKeyDistinguishesShapes(t *testing.T) {
	assert.NotEqual(t, Key(IntLit(1)), Key(IntRangeOf(1, 1)))
	assert.NotEqual(t, Key(ListOf(Int())), Key(TList{Element: Int(), NonEmpty: true}))
	assert.Equal(t, Key(ArrayOf(Int(), String())), Key(ArrayOf(Int(), String())))
	assert.True(t, Union(TNull{}, IntLit(1)).Equal(Union(IntLit(1), TNull{})))
}

func TestArrayKeyOrder(t *testing.T) {
	in := atom.NewInterner()
	s := StringKey(in.Intern("a"))
	c := ClassConstantKey(in.Intern("Foo"), in.Intern("BAR"))

	assert.Equal(t, -1, IntKey(100).Compare(s))
	assert.Equal(t, -1, s.Compare(c))
	assert.Equal(t, 1, IntKey(2).Compare(IntKey(1)))
	assert.Equal(t, 0, c.Compare(c))
}

func TestTruthiness(t *testing.T) {
	in := atom.NewInterner()
	zero := in.Intern("0")
	hello := in.Intern("hello")

	assert.True(t, AlwaysTruthy(IntFromOf(1), in))
	assert.False(t, AlwaysTruthy(IntFromOf(0), in))
	assert.True(t, AlwaysFalsy(StringLit(zero), in))
	assert.True(t, AlwaysTruthy(StringLit(hello), in))
	assert.True(t, AlwaysFalsy(EmptyArray(), in))
	assert.True(t, AlwaysTruthy(TNamedObject{Name: hello}, in))
	assert.True(t, IsNumericString("12.5"))
	assert.False(t, IsNumericString("inf"))
}

func TestUnionMsgpackRoundTrip(t *testing.T) {
	in := atom.NewInterner()
	foo := in.Intern("Foo")
	tpl := in.Intern("T")

	u := Union(
		TNamedObject{Name: foo, TypeParams: []TUnion{Single(TGenericParameter{Name: tpl, DefiningEntity: foo, Constraint: Mixed()})}},
		TKeyedArray{
			Known:  []KnownItem{{Key: IntKey(0), Type: Union(IntLit(3), TNull{}), Optional: true}},
			Params: &KeyedParams{Key: ArrayKeyU(), Value: Single(TList{Element: Float(), NonEmpty: true})},
		},
		TNull{},
	)
	u.PossiblyUndefined = true

	data, err := msgpack.Marshal(u)
	require.NoError(t, err)

	var back TUnion
	require.NoError(t, msgpack.Unmarshal(data, &back))
	assert.Equal(t, UnionKey(u), UnionKey(back))
	assert.True(t, back.PossiblyUndefined)
	assert.Equal(t, Format(in, u), Format(in, back))
}
