package template

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
	cb                   *codex.CodebaseMetadata
	box, intBox, pair, x atom.Atom
	fn                   atom.Atom
}

// Box<T>; IntBox extends Box<int>; Pair<K, V> extends Box<V>; X is unrelated.
func newFixture() fixture {
	in := atom.NewInterner()
	cb := codex.NewCodebase(in)
	f := fixture{
		cb:     cb,
		box:    in.InternLower("Box"),
		intBox: in.InternLower("IntBox"),
		pair:   in.InternLower("Pair"),
		x:      in.InternLower("X"),
		fn:     in.InternLower("wrap"),
	}
	tname := in.Intern("T")

	box := codex.NewClassLike(in.Intern("Box"), f.box, codex.KindClass)
	box.TemplateTypes = []codex.TemplateType{{Name: tname, DefiningEntity: f.box, Constraint: ttype.Mixed()}}
	cb.AddClassLike(box)

	intBox := codex.NewClassLike(in.Intern("IntBox"), f.intBox, codex.KindClass)
	intBox.DirectParentClass = f.box
	intBox.AllParentClasses.Add(f.box)
	intBox.TemplateExtendedParameters[f.box] = map[atom.Atom]ttype.TUnion{tname: ttype.Int()}
	cb.AddClassLike(intBox)

	pair := codex.NewClassLike(in.Intern("Pair"), f.pair, codex.KindClass)
	pair.AllParentClasses.Add(f.box)
	k, v := in.Intern("K"), in.Intern("V")
	pair.TemplateTypes = []codex.TemplateType{
		{Name: k, DefiningEntity: f.pair, Constraint: ttype.ArrayKeyU()},
		{Name: v, DefiningEntity: f.pair, Default: ttype.String(), HasDefault: true},
	}
	pair.TemplateExtendedParameters[f.box] = map[atom.Atom]ttype.TUnion{
		tname: ttype.Single(ttype.TGenericParameter{Name: v, DefiningEntity: f.pair, Constraint: ttype.Mixed()}),
	}
	cb.AddClassLike(pair)

	cb.AddClassLike(codex.NewClassLike(in.Intern("X"), f.x, codex.KindClass))
	return f
}

func (f fixture) format(u ttype.TUnion) string { return ttype.Format(f.cb.Interner, u) }

// parse reads text with T bound to the function template.
func (f fixture) parse(t *testing.T, text string) ttype.TUnion {
	t.Helper()
	scope := &docblock.Scope{Templates: []docblock.Template{{Name: "T", DefiningEntity: f.fn, Constraint: ttype.Mixed()}}}
	u, err := docblock.Parse(f.cb.Interner, text, scope)
	require.NoError(t, err)
	return u
}

func TestSpecializedTemplateType(t *testing.T) {
	f := newFixture()
	T := f.cb.Interner.Intern("T")
	meta := f.cb.ClassLike

	got, ok := SpecializedTemplateType(f.cb, T, f.box, meta(f.box), []ttype.TUnion{ttype.String()})
	require.True(t, ok)
	assert.Equal(t, "string", f.format(got))

	got, ok = SpecializedTemplateType(f.cb, T, f.box, meta(f.intBox), nil)
	require.True(t, ok)
	assert.Equal(t, "int", f.format(got))

	got, ok = SpecializedTemplateType(f.cb, T, f.box, meta(f.pair), []ttype.TUnion{ttype.Int(), ttype.Bool()})
	require.True(t, ok)
	assert.Equal(t, "bool", f.format(got))

	got, ok = SpecializedTemplateType(f.cb, T, f.box, meta(f.pair), nil)
	require.True(t, ok)
	assert.Equal(t, "string", f.format(got), "missing arguments use the default")

	got, ok = SpecializedTemplateType(f.cb, T, f.box, meta(f.box), nil)
	require.True(t, ok)
	assert.Equal(t, "mixed", f.format(got))
	assert.True(t, got.FromTemplateDefault)

	_, ok = SpecializedTemplateType(f.cb, T, f.box, meta(f.x), nil)
	assert.False(t, ok)
}

func TestInferAndReplace(t *testing.T) {
	f := newFixture()
	in := f.cb.Interner
	cases := []struct {
		param, arg, want string
	}{
		{"T", "int", "int"},
		{"T|null", "int|null", "int"},
		{"list<T>", "list{1, 'a'}", "1|'a'"},
		{"array<string, T>", "array{a: float, b: int}", "int|float"},
		{"array{x: T}", "array{x: bool}", "bool"},
		{"Box<T>", "IntBox", "int"},
		{"Box<T>", "Box<string>", "string"},
		{"Box<T>", "Pair<int, float>", "float"},
	}
	for _, tc := range cases {
		t.Run(tc.param+" <- "+tc.arg, func(t *testing.T) {
			r := NewResult()
			Infer(f.cb, f.parse(t, tc.param), docblock.MustParse(in, tc.arg), r)
			got, ok := r.Get(in.Intern("T"), f.fn)
			require.True(t, ok)
			assert.Equal(t, tc.want, f.format(got))
		})
	}
}

func TestInferUnrelatedLeavesUnbound(t *testing.T) {
	f := newFixture()
	r := NewResult()
	Infer(f.cb, f.parse(t, "Box<T>"), docblock.MustParse(f.cb.Interner, "X"), r)
	assert.Empty(t, r.Names())
}

func TestInferWidensAcrossArguments(t *testing.T) {
	f := newFixture()
	r := NewResult()
	Infer(f.cb, f.parse(t, "T"), ttype.Int(), r)
	Infer(f.cb, f.parse(t, "T"), ttype.String(), r)
	got, _ := r.Get(f.cb.Interner.Intern("T"), f.fn)
	assert.Equal(t, "int|string", f.format(got))
}

func TestReplace(t *testing.T) {
	f := newFixture()
	r := NewResult()
	r.Add(f.cb, f.cb.Interner.Intern("T"), f.fn, ttype.Int())

	assert.Equal(t, "list<int>", f.format(Replace(f.cb, f.parse(t, "list<T>"), r)))
	assert.Equal(t, "Box<int>|null", f.format(Replace(f.cb, f.parse(t, "Box<T>|null"), r)))
	assert.Equal(t, "array{a: int, ...<string, int>}", f.format(Replace(f.cb, f.parse(t, "array{a: T, ...<string, T>}"), r)))
	assert.Equal(t, "T", f.format(Replace(f.cb, f.parse(t, "T"), NewResult())), "unbound templates stay")
}
