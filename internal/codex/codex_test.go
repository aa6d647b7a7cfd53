package codex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"tephra/internal/atom"
	"tephra/internal/ttype"
)

func newClass(cb *CodebaseMetadata, name string, kind ClassKind) *ClassLikeMetadata {
	in := cb.Interner
	meta := NewClassLike(in.Intern(name), in.InternLower(name), kind)
	cb.AddClassLike(meta)
	return meta
}

func TestCaseInsensitiveLookups(t *testing.T) {
	in := atom.NewInterner()
	cb := NewCodebase(in)
	foo := newClass(cb, "Foo", KindClass)
	base := newClass(cb, "Base", KindClass)
	iface := newClass(cb, "Countable", KindInterface)
	foo.AllParentClasses.Add(base.Key)
	foo.AllParentInterfaces.Add(iface.Key)

	run := in.InternLower("run")
	base.Methods[run] = &FunctionLikeMetadata{Name: in.Intern("run"), Key: run, DefiningClass: base.Key}
	foo.DeclaringMethodIDs[run] = MethodIdentifier{Class: base.Key, Method: run}

	assert.Same(t, foo, cb.ClassLike(in.Intern("FOO")))
	assert.True(t, cb.IsInstanceOf(in.Intern("foo"), in.Intern("BASE")))
	assert.True(t, cb.IsInstanceOf(foo.Key, in.Intern("countable")))
	assert.False(t, cb.IsInstanceOf(base.Key, foo.Key))
	assert.True(t, cb.ClassExtends(foo.Key, base.Name))
	assert.True(t, cb.ClassImplements(foo.Key, iface.Name))
	assert.Same(t, base.Methods[run], cb.Method(foo.Name, in.Intern("RUN")))
	assert.False(t, cb.AddClassLike(NewClassLike(in.Intern("FOO"), in.InternLower("FOO"), KindClass)))
}

func TestClassConstantType(t *testing.T) {
	in := atom.NewInterner()
	cb := NewCodebase(in)
	suit := newClass(cb, "Suit", KindEnum)
	hearts := in.Intern("Hearts")
	suit.EnumCases[hearts] = &EnumCaseMetadata{Name: hearts}
	limit := in.Intern("LIMIT")
	suit.Constants[limit] = &ClassConstantMetadata{Name: limit, Type: ttype.Int(), Inferred: ttype.Single(ttype.IntLit(3))}

	u, ok := cb.ClassConstantType(suit.Name, hearts)
	require.True(t, ok)
	assert.Equal(t, "Suit::Hearts", ttype.Format(in, u))

	u, ok = cb.ClassConstantType(suit.Name, limit)
	require.True(t, ok)
	assert.Equal(t, "3", ttype.Format(in, u))

	_, ok = cb.ClassConstantType(suit.Name, in.Intern("Nope"))
	assert.False(t, ok)
	assert.True(t, cb.IsEnumOrFinal(suit.Name))

	// lookups fold the class name but not the member name
	assert.True(t, cb.ClassExists(in.Intern("SUIT")))
	assert.False(t, cb.ClassExists(in.Intern("Deck")))
	assert.Same(t, suit.Constants[limit], cb.ClassConstant(in.Intern("suit"), limit))
	assert.Same(t, suit.EnumCases[hearts], cb.EnumCase(suit.Name, hearts))
	assert.Nil(t, cb.EnumCase(suit.Name, limit))
	assert.Nil(t, cb.ClassConstant(suit.Name, in.Intern("limit")))
}

func TestDescendants(t *testing.T) {
	in := atom.NewInterner()
	cb := NewCodebase(in)
	a := newClass(cb, "A", KindClass)
	b := newClass(cb, "B", KindClass)
	c := newClass(cb, "C", KindClass)
	b.DirectParentClass = a.Name
	b.AllParentClasses.Add(a.Key)
	c.DirectParentClass = b.Name
	c.AllParentClasses.AddAll(atom.NewSet(a.Key, b.Key))

	cb.ComputeDescendants()
	assert.Equal(t, []atom.Atom{b.Key}, cb.DirectDescendants[a.Key].Sorted())
	assert.ElementsMatch(t, []atom.Atom{b.Key, c.Key}, cb.AllDescendants[a.Key].Sorted())
}

func keysOf(in *atom.Interner, names ...string) []SymbolKey {
	out := make([]SymbolKey, len(names))
	for i, n := range names {
		out[i] = TopLevel(in.Intern(n))
	}
	return out
}

func TestInvalidSymbolsCascade(t *testing.T) {
	in := atom.NewInterner()
	k := keysOf(in, "a", "b", "c", "d", "e")
	a, b, c, d, e := k[0], k[1], k[2], k[3], k[4]
	m := Member(c.Symbol, in.Intern("run"))

	refs := NewSymbolReferences()
	refs.AddSignatureReference(b, a) // b's signature mentions a
	refs.AddSignatureReference(c, b)
	refs.AddBodyReference(m, c) // c::run's body uses c
	refs.AddBodyReference(d, m) // d's body uses c::run
	refs.AddBodyReference(e, d)

	invalid, partial, ok := refs.InvalidSymbols([]SymbolKey{a}, 0)
	require.True(t, ok)
	assert.True(t, invalid.Contains(a))
	assert.True(t, invalid.Contains(b))
	assert.True(t, invalid.Contains(c))
	assert.True(t, invalid.Contains(m), "body references of invalid symbols are invalid")
	assert.False(t, invalid.Contains(d), "body references cascade one hop only")
	assert.False(t, invalid.Contains(e))
	assert.True(t, partial.Has(c.Symbol))
}

func TestInvalidSymbolsBudget(t *testing.T) {
	in := atom.NewInterner()
	refs := NewSymbolReferences()
	prev := TopLevel(in.Intern("n0"))
	for i := 1; i <= 200; i++ {
		cur := TopLevel(in.Intern("n" + string(rune('a'+i%26)) + string(rune('a'+i/26))))
		refs.AddSignatureReference(cur, prev)
		prev = cur
	}

	_, _, ok := refs.InvalidSymbols([]SymbolKey{TopLevel(in.Intern("n0"))}, 50)
	assert.False(t, ok)

	invalid, _, ok := refs.InvalidSymbols([]SymbolKey{TopLevel(in.Intern("n0"))}, 5000)
	require.True(t, ok)
	assert.Equal(t, 201, invalid.Size())
}

func TestCopySafeReferences(t *testing.T) {
	in := atom.NewInterner()
	k := keysOf(in, "a", "b", "c")
	old := NewSymbolReferences()
	old.AddBodyReference(k[1], k[0])
	old.AddBodyReference(k[2], k[0])

	fresh := NewSymbolReferences()
	n := fresh.CopySafeReferences(old, func(s SymbolKey) bool { return s == k[1] })
	assert.Equal(t, 1, n)
	assert.Equal(t, []SymbolKey{k[1]}, fresh.BodyReferencers(k[0]))
}

func TestReferencesMsgpack(t *testing.T) {
	in := atom.NewInterner()
	k := keysOf(in, "a", "b", "c")
	refs := NewSymbolReferences()
	refs.AddSignatureReference(k[1], k[0])
	refs.AddBodyReference(Member(k[2].Symbol, in.Intern("m")), k[1])

	data, err := msgpack.Marshal(refs)
	require.NoError(t, err)
	back := NewSymbolReferences()
	require.NoError(t, msgpack.Unmarshal(data, back))

	sig, body := back.Len()
	assert.Equal(t, 1, sig)
	assert.Equal(t, 1, body)
	assert.Equal(t, []SymbolKey{k[1]}, back.SignatureReferencers(k[0]))
}
