package incremental

import (
	"cmp"
	"slices"

	"github.com/hashicorp/go-set/v3"

	"tephra/internal/atom"
	"tephra/internal/codex"
	"tephra/internal/signature"
)

// CodebaseDiff aggregates the per-file signature diffs of two codebases.
type CodebaseDiff struct {
	Keep    *set.Set[codex.SymbolKey]
	Changed *set.Set[codex.SymbolKey]
	// Shifts holds the line delta of kept symbols that moved inside their
	// file; reused diagnostics move with them.
	Shifts map[codex.SymbolKey]int64
}

func newDiff() *CodebaseDiff {
	return &CodebaseDiff{
		Keep:    set.New[codex.SymbolKey](0),
		Changed: set.New[codex.SymbolKey](0),
		Shifts:  map[codex.SymbolKey]int64{},
	}
}

func key(k signature.Key) codex.SymbolKey {
	return codex.SymbolKey{Symbol: k.Symbol, Member: k.Member}
}

// ComputeDiffs diffs the file signatures of every path present in either
// codebase. A file that exists on one side only contributes all of its
// symbols to Changed. Both codebases must share one interner.
func ComputeDiffs(old, cur *codex.CodebaseMetadata) *CodebaseDiff {
	d := newDiff()
	paths := atom.NewSet()
	if old != nil {
		for p := range old.FileSignatures {
			paths.Add(p)
		}
	}
	for p := range cur.FileSignatures {
		paths.Add(p)
	}
	for _, p := range paths.Sorted() {
		var before *signature.FileSignature
		if old != nil {
			before = old.FileSignatures[p]
		}
		after := cur.FileSignatures[p]
		fd := signature.Compare(before, after)
		for _, k := range fd.Changed {
			d.Changed.Insert(key(k))
		}
		for _, k := range fd.Keep {
			d.Keep.Insert(key(k))
		}
		if before != nil && after != nil {
			shifts(d.Shifts, fd.Keep, before, after)
		}
	}
	// a key both kept and changed (moved between files, say) is changed
	for k := range d.Changed.Items() {
		d.Keep.Remove(k)
		delete(d.Shifts, k)
	}
	return d
}

func positions(fs *signature.FileSignature) map[signature.Key]uint32 {
	out := make(map[signature.Key]uint32, len(fs.Nodes))
	for _, n := range fs.Nodes {
		out[signature.Key{Symbol: n.Name}] = n.Pos.Line
		for _, c := range n.Children {
			out[signature.Key{Symbol: n.Name, Member: c.Name}] = c.Pos.Line
		}
	}
	return out
}

func shifts(dst map[codex.SymbolKey]int64, keep []signature.Key, before, after *signature.FileSignature) {
	if before.Hash == after.Hash {
		return
	}
	was, is := positions(before), positions(after)
	for _, k := range keep {
		if delta := int64(is[k]) - int64(was[k]); delta != 0 {
			dst[key(k)] = delta
		}
	}
}

// Len reports the sizes of both sets.
func (d *CodebaseDiff) Len() (keep, changed int) {
	return d.Keep.Size(), d.Changed.Size()
}

// ChangedSorted lists Changed in a stable order.
func (d *CodebaseDiff) ChangedSorted() []codex.SymbolKey {
	return sortKeys(d.Changed)
}

func sortKeys(s *set.Set[codex.SymbolKey]) []codex.SymbolKey {
	out := s.Slice()
	slices.SortFunc(out, func(a, b codex.SymbolKey) int {
		if c := cmp.Compare(a.Symbol, b.Symbol); c != 0 {
			return c
		}
		return cmp.Compare(a.Member, b.Member)
	})
	return out
}

// changedFiles counts the paths of cur that are new or whose content hash
// differs from old.
func changedFiles(old, cur *codex.CodebaseMetadata) int {
	n := 0
	for p, fs := range cur.FileSignatures {
		was, ok := old.FileSignatures[p]
		if !ok || was.Hash != fs.Hash {
			n++
		}
	}
	return n
}
