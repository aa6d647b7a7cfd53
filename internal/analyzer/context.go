package analyzer

import (
	"maps"
	"slices"

	"tephra/internal/codex"
	"tephra/internal/ttype"
	"tephra/internal/ttype/combiner"
)

// blockContext is the variable state at one point of a body.
type blockContext struct {
	vars map[string]ttype.TUnion
	// returned is set once every path through the block has returned.
	returned bool
}

func newBlockContext() *blockContext {
	return &blockContext{vars: map[string]ttype.TUnion{}}
}

func (c *blockContext) clone() *blockContext {
	return &blockContext{vars: maps.Clone(c.vars), returned: c.returned}
}

func (c *blockContext) set(name string, u ttype.TUnion) {
	u.PossiblyUndefined = false
	c.vars[name] = u
}

// mergeBranches joins the states at the end of two branches. A variable
// assigned in only one of them is possibly undefined afterwards; a branch
// that returned does not contribute.
func mergeBranches(cb *codex.CodebaseMetadata, a, b *blockContext) *blockContext {
	switch {
	case a.returned && b.returned:
		out := a.clone()
		return out
	case a.returned:
		return b.clone()
	case b.returned:
		return a.clone()
	}
	out := newBlockContext()
	names := slices.Sorted(maps.Keys(a.vars))
	for name := range b.vars {
		if _, ok := a.vars[name]; !ok {
			names = append(names, name)
		}
	}
	for _, name := range names {
		ta, inA := a.vars[name]
		tb, inB := b.vars[name]
		switch {
		case inA && inB:
			out.vars[name] = combiner.CombineUnions(ta, tb, cb, false)
		case inA:
			ta.PossiblyUndefined = true
			out.vars[name] = ta
		default:
			tb.PossiblyUndefined = true
			out.vars[name] = tb
		}
	}
	return out
}

// sameVars reports whether two states type every variable alike.
func sameVars(a, b *blockContext) bool {
	if len(a.vars) != len(b.vars) {
		return false
	}
	for name, ta := range a.vars {
		tb, ok := b.vars[name]
		if !ok || !ta.Equal(tb) {
			return false
		}
	}
	return true
}
