package template

import (
	"slices"

	"tephra/internal/codex"
	"tephra/internal/ttype"
	"tephra/internal/ttype/combiner"
)

// Replace substitutes the bound templates in u and recombines the result.
// Unbound templates stay in place.
func Replace(cb *codex.CodebaseMetadata, u ttype.TUnion, r *Result) ttype.TUnion {
	if len(u.Types) == 0 || !u.HasTemplate() {
		return u
	}
	var out []ttype.Atomic
	for _, a := range u.Types {
		out = append(out, replaceAtomic(cb, a, r)...)
	}
	res := u
	res.Types = combiner.Combine(out, cb, false)
	return res
}

func replaceAtomic(cb *codex.CodebaseMetadata, a ttype.Atomic, r *Result) []ttype.Atomic {
	switch t := a.(type) {
	case ttype.TGenericParameter:
		if bound, ok := r.Get(t.Name, t.DefiningEntity); ok {
			return bound.Types
		}
		return []ttype.Atomic{t}
	case ttype.TList:
		t.Element = Replace(cb, t.Element, r)
		t.Known = slices.Clone(t.Known)
		for i := range t.Known {
			t.Known[i].Type = Replace(cb, t.Known[i].Type, r)
		}
		return []ttype.Atomic{t}
	case ttype.TKeyedArray:
		t.Known = slices.Clone(t.Known)
		for i := range t.Known {
			t.Known[i].Type = Replace(cb, t.Known[i].Type, r)
		}
		if t.Params != nil {
			t.Params = &ttype.KeyedParams{Key: Replace(cb, t.Params.Key, r), Value: Replace(cb, t.Params.Value, r)}
		}
		return []ttype.Atomic{t}
	case ttype.TNamedObject:
		if len(t.TypeParams) > 0 {
			params := make([]ttype.TUnion, len(t.TypeParams))
			for i, p := range t.TypeParams {
				params[i] = Replace(cb, p, r)
			}
			t.TypeParams = params
		}
		return []ttype.Atomic{t}
	case ttype.TDerived:
		t.Target = Replace(cb, t.Target, r)
		t.Index = Replace(cb, t.Index, r)
		return []ttype.Atomic{t}
	}
	return []ttype.Atomic{a}
}
