package incremental

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"tephra/internal/atom"
	"tephra/internal/codex"
	"tephra/internal/diag"
	"tephra/internal/scan"
	"tephra/internal/signature"
	"tephra/internal/source"
	"tephra/internal/syntax"
)

// build scans and fingerprints files (path -> stub text) into a fresh codebase.
func build(t *testing.T, in *atom.Interner, files map[string]string) *codex.CodebaseMetadata {
	t.Helper()
	cb := codex.NewCodebase(in)
	fset := source.NewFileSet()
	sc := scan.New(cb, diag.BagReporter{Bag: diag.NewBag(100)})
	for path, text := range files {
		file := fset.Get(fset.AddVirtual(path, []byte(text)))
		stub, err := syntax.Parse(path, file.Content)
		require.NoError(t, err)
		sc.File(file, stub)
		p := in.Intern(path)
		cb.FileSignatures[p] = signature.Build(in, stub, p, file.Content)
	}
	return cb
}

const lib = `
functions:
  - {name: helper, returns: int}
classes:
  - name: Base
    methods:
      - {name: run, returns: int}
`

const app = `
classes:
  - name: Child
    extends: Base
    methods:
      - {name: go, returns: string}
`

func top(in *atom.Interner, name string) codex.SymbolKey {
	return codex.TopLevel(in.InternLower(name))
}

func member(in *atom.Interner, class, m string) codex.SymbolKey {
	return codex.Member(in.InternLower(class), in.InternLower(m))
}

func TestUnchangedRunMarksEverythingSafe(t *testing.T) {
	in := atom.NewInterner()
	files := map[string]string{"lib.yaml": lib, "app.yaml": app}
	old := build(t, in, files)
	cur := build(t, in, files)

	e := &Engine{}
	d := e.ComputeDiffs(context.Background(), old, cur)
	assert.Zero(t, d.Changed.Size())
	assert.Empty(t, d.Shifts)

	require.True(t, e.MarkSafeSymbols(context.Background(), d, codex.NewSymbolReferences(), cur))
	for _, name := range []string{"helper", "base", "child"} {
		assert.True(t, cur.SafeSymbols.Has(in.InternLower(name)), name)
	}
	assert.True(t, cur.SafeSymbolMembers.Contains(member(in, "Base", "run")))
	assert.True(t, cur.SafeSymbolMembers.Contains(member(in, "Child", "go")))
}

func TestChangePropagatesThroughReferences(t *testing.T) {
	in := atom.NewInterner()
	old := build(t, in, map[string]string{"lib.yaml": lib, "app.yaml": app})
	cur := build(t, in, map[string]string{"lib.yaml": `
functions:
  - {name: helper, returns: string}
classes:
  - name: Base
    methods:
      - {name: run, returns: int}
`, "app.yaml": app})

	refs := codex.NewSymbolReferences()
	// Child::go calls helper(); Child extends Base
	refs.AddBodyReference(member(in, "Child", "go"), top(in, "helper"))
	refs.AddSignatureReference(top(in, "child"), top(in, "base"))

	d := ComputeDiffs(old, cur)
	assert.Equal(t, []codex.SymbolKey{top(in, "helper")}, d.ChangedSorted())

	e := &Engine{}
	require.True(t, e.MarkSafeSymbols(context.Background(), d, refs, cur))
	assert.False(t, cur.SafeSymbols.Has(in.InternLower("helper")))
	assert.False(t, cur.SafeSymbolMembers.Contains(member(in, "Child", "go")))
	// a class with an invalid member is re-analyzed as a whole
	assert.False(t, cur.SafeSymbols.Has(in.InternLower("child")))
	assert.True(t, cur.SafeSymbols.Has(in.InternLower("base")))
	assert.True(t, cur.SafeSymbolMembers.Contains(member(in, "Base", "run")))
}

func TestSignatureChangeInvalidatesDependents(t *testing.T) {
	in := atom.NewInterner()
	old := build(t, in, map[string]string{"lib.yaml": lib, "app.yaml": app})
	cur := build(t, in, map[string]string{"lib.yaml": `
functions:
  - {name: helper, returns: int}
classes:
  - name: Base
    final: false
    implements: [Countable]
    methods:
      - {name: run, returns: int}
`, "app.yaml": app})

	refs := codex.NewSymbolReferences()
	refs.AddSignatureReference(top(in, "child"), top(in, "base"))
	refs.AddSignatureReference(member(in, "Child", "go"), top(in, "child"))

	d := ComputeDiffs(old, cur)
	require.True(t, d.Changed.Contains(top(in, "base")))

	e := &Engine{}
	require.True(t, e.MarkSafeSymbols(context.Background(), d, refs, cur))
	assert.False(t, cur.SafeSymbols.Has(in.InternLower("child")))
	assert.False(t, cur.SafeSymbolMembers.Contains(member(in, "Child", "go")))
	assert.True(t, cur.SafeSymbols.Has(in.InternLower("helper")))
}

func TestCascadeOverBudgetMarksNothing(t *testing.T) {
	in := atom.NewInterner()
	old := build(t, in, map[string]string{"lib.yaml": lib, "app.yaml": app})
	cur := build(t, in, map[string]string{"lib.yaml": `
functions:
  - {name: helper, returns: string}
classes:
  - name: Base
    methods:
      - {name: run, returns: int}
`, "app.yaml": app})

	refs := codex.NewSymbolReferences()
	prev := top(in, "helper")
	for i := range 20 {
		next := codex.TopLevel(in.Intern("f" + string(rune('a'+i))))
		refs.AddSignatureReference(next, prev)
		prev = next
	}

	e := &Engine{StepBudget: 5}
	d := ComputeDiffs(old, cur)
	assert.False(t, e.MarkSafeSymbols(context.Background(), d, refs, cur))
	assert.Zero(t, cur.SafeSymbols.Len())
	assert.Zero(t, cur.SafeSymbolMembers.Size())
}

func TestMovedSymbolsShift(t *testing.T) {
	in := atom.NewInterner()
	old := build(t, in, map[string]string{"lib.yaml": lib})
	cur := build(t, in, map[string]string{"lib.yaml": "# header\n# more\n" + lib})

	d := ComputeDiffs(old, cur)
	assert.Zero(t, d.Changed.Size())
	assert.Equal(t, int64(2), d.Shifts[top(in, "helper")])
	assert.Equal(t, int64(2), d.Shifts[member(in, "Base", "run")])
}

func TestRemovedFileIsChanged(t *testing.T) {
	in := atom.NewInterner()
	old := build(t, in, map[string]string{"lib.yaml": lib, "app.yaml": app})
	cur := build(t, in, map[string]string{"lib.yaml": lib})

	d := ComputeDiffs(old, cur)
	assert.True(t, d.Changed.Contains(top(in, "child")))
	assert.True(t, d.Changed.Contains(member(in, "Child", "go")))
	assert.False(t, d.Keep.Contains(top(in, "child")))
	assert.True(t, d.Keep.Contains(top(in, "base")))
}

func TestFirstRunHasNoState(t *testing.T) {
	e := &Engine{Store: NewMemoryStore()}
	_, err := e.LoadPreviousState(context.Background())
	assert.ErrorIs(t, err, ErrNoState)

	in := atom.NewInterner()
	cur := build(t, in, map[string]string{"lib.yaml": lib})
	d := ComputeDiffs(nil, cur)
	assert.Zero(t, d.Keep.Size())
	assert.True(t, d.Changed.Contains(top(in, "helper")))
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	in := atom.NewInterner()
	st := &State{Metadata: build(t, in, map[string]string{"lib.yaml": lib}), References: codex.NewSymbolReferences()}
	require.NoError(t, s.Save(ctx, st))

	e := &Engine{Store: s}
	got, err := e.LoadPreviousState(ctx)
	require.NoError(t, err)
	assert.Same(t, st, got)

	s.Reset()
	_, err = s.Load(ctx)
	assert.ErrorIs(t, err, ErrNoState)
}

func TestDiskStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	in := atom.NewInterner()
	cb := build(t, in, map[string]string{"lib.yaml": lib, "app.yaml": app})
	refs := codex.NewSymbolReferences()
	refs.AddSignatureReference(top(in, "child"), top(in, "base"))
	refs.AddBodyReference(member(in, "Child", "go"), top(in, "helper"))
	issues := map[codex.SymbolKey][]diag.Record{
		member(in, "Child", "go"): {{Severity: diag.SevError, Code: diag.InvalidReturnStatement, Message: "bad", Path: "app.yaml", Line: 6, Col: 9, Len: 3}},
	}

	e := &Engine{Store: NewDiskStore(dir)}
	require.NoError(t, e.SaveState(ctx, &State{Strings: in.Snapshot(), Metadata: cb, References: refs, Issues: issues}))

	st, err := e.LoadPreviousState(ctx)
	require.NoError(t, err)
	rin := st.Metadata.Interner
	require.NotNil(t, rin)
	assert.Equal(t, in.Snapshot(), rin.Snapshot())

	child := st.Metadata.ClassLike(rin.Intern("Child"))
	require.NotNil(t, child)
	assert.Equal(t, "Base", rin.String(child.DirectParentClass))
	assert.Len(t, st.Metadata.FileSignatures, 2)
	assert.Equal(t, []codex.SymbolKey{top(in, "child")}, st.References.SignatureReferencers(top(in, "base")))
	assert.Equal(t, []codex.SymbolKey{member(in, "Child", "go")}, st.References.BodyReferencers(top(in, "helper")))
	assert.Equal(t, issues, st.Issues)

	// an unchanged rebuild against the restored state diffs clean
	cur := build(t, rin, map[string]string{"lib.yaml": lib, "app.yaml": app})
	assert.Zero(t, ComputeDiffs(st.Metadata, cur).Changed.Size())
}

func TestDiskStoreSchemaMismatch(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := NewDiskStore(dir)

	_, err := s.Load(ctx)
	require.ErrorIs(t, err, ErrNoState)

	f, err := os.Create(filepath.Join(dir, StateFile))
	require.NoError(t, err)
	require.NoError(t, msgpack.NewEncoder(f).Encode(diskSchemaVersion+1))
	require.NoError(t, f.Close())
	_, err = s.Load(ctx)
	assert.ErrorIs(t, err, ErrNoState)

	require.NoError(t, os.WriteFile(filepath.Join(dir, StateFile), []byte{0xc1}, 0o644))
	_, err = s.Load(ctx)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNoState))

	require.NoError(t, s.Drop())
	require.NoError(t, s.Drop())
}

func TestDiskStoreRejectsInconsistentStrings(t *testing.T) {
	ctx := context.Background()
	in := atom.NewInterner()
	cb := build(t, in, map[string]string{"lib.yaml": lib})
	refs := codex.NewSymbolReferences()

	write := func(dir string, strings []string) *DiskStore {
		s := NewDiskStore(dir)
		require.NoError(t, s.Save(ctx, &State{Strings: strings, Metadata: cb, References: refs}))
		return s
	}

	_, err := write(t.TempDir(), []string{"bogus"}).Load(ctx)
	require.ErrorIs(t, err, atom.ErrBadSnapshot)
	assert.False(t, errors.Is(err, ErrNoState))

	// the metadata names atoms the truncated table cannot resolve
	_, err = write(t.TempDir(), []string{""}).Load(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outside of 1 stored strings")
	assert.False(t, errors.Is(err, ErrNoState))
}

func TestFlattenIssuesIsOrdered(t *testing.T) {
	issues := map[codex.SymbolKey][]diag.Record{
		{Symbol: 3}:            {{Message: "c"}},
		{Symbol: 1, Member: 2}: {{Message: "b"}},
		{Symbol: 1}:            {{Message: "a"}},
	}
	flat := FlattenIssues(issues)
	require.Len(t, flat, 3)
	assert.Equal(t, "a", flat[0].Records[0].Message)
	assert.Equal(t, "b", flat[1].Records[0].Message)
	assert.Equal(t, "c", flat[2].Records[0].Message)
	assert.Equal(t, issues, unflattenIssues(flat))
}
