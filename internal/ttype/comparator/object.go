package comparator

import (
	"tephra/internal/atom"
	"tephra/internal/codex"
	"tephra/internal/ttype"
	"tephra/internal/ttype/template"
)

func (c *comparer) object(input, container ttype.Atomic, r *ComparisonResult) bool {
	switch ct := container.(type) {
	case ttype.TObject:
		return ttype.IsObjectLike(input)
	case ttype.TEnum:
		it, ok := input.(ttype.TEnum)
		if !ok || c.fold(it.Name) != c.fold(ct.Name) {
			return false
		}
		if ct.Case == atom.Empty || it.Case == ct.Case {
			return true
		}
		if it.Case == atom.Empty {
			r.coercedToLiteral()
		}
		return false
	case ttype.TNamedObject:
		switch it := input.(type) {
		case ttype.TNamedObject:
			return c.namedObject(it, ct, r)
		case ttype.TEnum:
			// enums satisfy the interfaces they implement
			return c.cb.IsInstanceOf(it.Name, ct.Name)
		case ttype.TObject:
			r.coerced()
		}
	}
	return false
}

func (c *comparer) fold(name atom.Atom) atom.Atom { return c.cb.Interner.Lower(name) }

func (c *comparer) namedObject(it, ct ttype.TNamedObject, r *ComparisonResult) bool {
	if !c.cb.IsInstanceOf(it.Name, ct.Name) {
		if c.cb.IsInstanceOf(ct.Name, it.Name) {
			// a parent where a child is expected
			if c.insideAssertion {
				r.ReplacementAtomic = ct
				return true
			}
			r.coerced()
		}
		return false
	}
	if ct.IsThis && !it.IsThis && !c.cb.IsEnumOrFinal(it.Name) {
		r.coerced()
		return false
	}
	if len(ct.TypeParams) == 0 {
		return true
	}
	return c.generic(it, ct, r)
}

// generic compares type parameters of an input that is an instance of the
// container class. Input parameters are first translated into the
// container's template positions.
func (c *comparer) generic(it, ct ttype.TNamedObject, r *ComparisonResult) bool {
	cmeta := c.cb.ClassLike(ct.Name)
	imeta := c.cb.ClassLike(it.Name)
	sub := *c
	sub.nested = true

	if cmeta == nil || imeta == nil {
		// unknown class: compare positionally
		ok := true
		for i := range min(len(ct.TypeParams), len(it.TypeParams)) {
			if !sub.union(it.TypeParams[i], ct.TypeParams[i], false, false, r) {
				ok = false
			}
		}
		return ok
	}

	ok := true
	for i, tpl := range cmeta.TemplateTypes {
		if i >= len(ct.TypeParams) {
			break
		}
		want := ct.TypeParams[i]
		got, found := template.SpecializedTemplateType(c.cb, tpl.Name, cmeta.Key, imeta, it.TypeParams)
		if !found || got.FromTemplateDefault {
			// nothing explicit on the input side
			continue
		}
		var attempt ComparisonResult
		if sub.union(got, want, false, false, &attempt) {
			r.Absorb(attempt)
			continue
		}
		if tpl.Variance == codex.Contravariant && sub.union(want, got, false, false, &ComparisonResult{}) {
			continue
		}
		r.Absorb(attempt)
		ok = false
	}
	return ok
}
