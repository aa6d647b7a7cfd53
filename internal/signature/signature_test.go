package signature

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tephra/internal/atom"
	"tephra/internal/syntax"
)

func build(t *testing.T, in *atom.Interner, src string) *FileSignature {
	t.Helper()
	f, err := syntax.Parse("a.yaml", []byte(src))
	require.NoError(t, err)
	return Build(in, f, in.Intern("a.yaml"), []byte(src))
}

const v1 = `
functions:
  - name: helper
    returns: int
    body:
      - return: {int: 1}
classes:
  - name: Foo
    extends: Base
    methods:
      - name: run
        returns: int
      - name: stop
        returns: void
    properties:
      - {name: count, type: int}
`

func keys(in *atom.Interner, ks []Key) []string {
	out := make([]string, 0, len(ks))
	for _, k := range ks {
		s := in.String(k.Symbol)
		if k.Member != atom.Empty {
			s += "::" + in.String(k.Member)
		}
		out = append(out, s)
	}
	slices.Sort(out)
	return out
}

func TestHashIgnoresLayoutAndComments(t *testing.T) {
	in := atom.NewInterner()
	a := build(t, in, v1)
	b := build(t, in, "# header comment\n"+v1+"\n\n")
	require.Len(t, a.Nodes, len(b.Nodes))
	for i := range a.Nodes {
		assert.Equal(t, a.Nodes[i].Hash, b.Nodes[i].Hash)
	}

	d := Compare(a, b)
	assert.Empty(t, d.Changed)
	assert.Equal(t, []string{"foo", "foo::count", "foo::run", "foo::stop", "helper"}, keys(in, d.Keep))
}

func TestMemberChangeKeepsClass(t *testing.T) {
	in := atom.NewInterner()
	a := build(t, in, v1)
	b := build(t, in, `
functions:
  - name: helper
    returns: int
    body:
      - return: {int: 1}
classes:
  - name: Foo
    extends: Base
    methods:
      - name: run
        returns: string
      - name: stop
        returns: void
    properties:
      - {name: count, type: int}
`)
	d := Compare(a, b)
	assert.Equal(t, []string{"foo::run"}, keys(in, d.Changed))
	assert.Contains(t, keys(in, d.Keep), "foo")
	assert.Contains(t, keys(in, d.Keep), "foo::stop")
}

func TestHeaderChangeInvalidatesMembers(t *testing.T) {
	in := atom.NewInterner()
	a := build(t, in, v1)
	b := build(t, in, `
functions:
  - name: helper
    returns: int
    body:
      - return: {int: 1}
classes:
  - name: Foo
    extends: Other
    methods:
      - name: run
        returns: int
      - name: stop
        returns: void
    properties:
      - {name: count, type: int}
`)
	d := Compare(a, b)
	assert.Equal(t, []string{"foo", "foo", "foo::count", "foo::count", "foo::run", "foo::run", "foo::stop", "foo::stop"}, keys(in, d.Changed))
	assert.Equal(t, []string{"helper"}, keys(in, d.Keep))
}

func TestAddedAndRemoved(t *testing.T) {
	in := atom.NewInterner()
	a := build(t, in, "functions:\n  - name: Gone\n")
	b := build(t, in, "functions:\n  - name: fresh\n")

	d := Compare(a, b)
	assert.Equal(t, []string{"fresh", "gone"}, keys(in, d.Changed))
	assert.Empty(t, d.Keep)

	d = Compare(nil, b)
	assert.Equal(t, []string{"fresh"}, keys(in, d.Changed))
	d = Compare(a, nil)
	assert.Equal(t, []string{"gone"}, keys(in, d.Changed))
}

func TestMyersScript(t *testing.T) {
	a := []byte("ABCABBA")
	b := []byte("CBABAC")
	script := myers(len(a), len(b), func(i, j int) bool { return a[i] == b[j] })

	matches, dels, ins := 0, 0, 0
	for _, e := range script {
		switch e.kind {
		case editMatch:
			matches++
			assert.Equal(t, a[e.old], b[e.new])
		case editDelete:
			dels++
		case editInsert:
			ins++
		}
	}
	assert.Equal(t, 4, matches)
	assert.Equal(t, 5, dels+ins)
	assert.Equal(t, len(a), matches+dels)
	assert.Equal(t, len(b), matches+ins)
}
