// Package comparator decides whether one type is contained by another.
// Containment never fails loudly: a pair it cannot decide is answered false,
// with the reason left in a ComparisonResult.
package comparator

import (
	"tephra/internal/codex"
	"tephra/internal/ttype"
)

type comparer struct {
	cb              *codex.CodebaseMetadata
	insideAssertion bool
	nested          bool // inside array values or type parameters
}

// IsContainedBy reports whether every value of input is a value of container.
func IsContainedBy(cb *codex.CodebaseMetadata, input, container ttype.Atomic, insideAssertion bool, result *ComparisonResult) bool {
	if result == nil {
		result = &ComparisonResult{}
	}
	c := &comparer{cb: cb, insideAssertion: insideAssertion}
	return c.atomic(input, container, result)
}

// UnionIsContainedBy reports whether every atomic of input is contained by
// some atomic of container. ignoreNull and ignoreFalse skip null and false
// input atomics. An empty union on either side is unconstrained.
func UnionIsContainedBy(cb *codex.CodebaseMetadata, input, container ttype.TUnion, ignoreNull, ignoreFalse bool, result *ComparisonResult) bool {
	if result == nil {
		result = &ComparisonResult{}
	}
	c := &comparer{cb: cb}
	return c.union(input, container, ignoreNull, ignoreFalse, result)
}

func (c *comparer) union(input, container ttype.TUnion, ignoreNull, ignoreFalse bool, r *ComparisonResult) bool {
	if len(input.Types) == 0 || len(container.Types) == 0 {
		return true
	}
	ok := true
	for _, a := range input.Types {
		if ignoreNull && ttype.IsNullish(a) {
			continue
		}
		if b, isBool := a.(ttype.TBool); ignoreFalse && isBool && b.Value == ttype.BoolFalse {
			continue
		}
		if !c.anyContains(a, container, r) {
			ok = false
		}
	}
	return ok
}

// anyContains checks a against each container atomic; on failure the
// coercion flags of every attempt are kept.
func (c *comparer) anyContains(a ttype.Atomic, container ttype.TUnion, r *ComparisonResult) bool {
	var failed ComparisonResult
	for _, t := range container.Types {
		var attempt ComparisonResult
		if c.atomic(a, t, &attempt) {
			r.Absorb(attempt)
			return true
		}
		failed.Absorb(attempt)
	}
	if c.coveredBySplit(a, container) {
		return true
	}
	r.Absorb(failed)
	return false
}

func (c *comparer) atomic(input, container ttype.Atomic, r *ComparisonResult) bool {
	if input.Kind() == ttype.KindNever {
		return true
	}
	if ttype.Equal(input, container) {
		return true
	}

	switch t := container.(type) {
	case ttype.TMixed:
		return c.intoMixed(input, t, r)
	case ttype.TAlias, ttype.TMemberReference:
		// unresolved: accept as mixed
		r.coerced()
		return true
	case ttype.TDerived:
		if d, ok := input.(ttype.TDerived); ok {
			return c.derivedPair(d, t, r)
		}
		return c.intoDerived(input, t, r)
	case ttype.TGenericParameter:
		if g, ok := input.(ttype.TGenericParameter); ok && g.Name == t.Name && g.DefiningEntity == t.DefiningEntity {
			return true
		}
	}

	switch t := input.(type) {
	case ttype.TMixed:
		r.coerced()
		if c.nested {
			r.TypeCoercedFromNestedMixed = ttype.True
		} else {
			r.TypeCoercedFromAsMixed = ttype.True
		}
		return false
	case ttype.TAlias, ttype.TMemberReference:
		r.coerced()
		return true
	case ttype.TGenericParameter:
		constraint := t.Constraint
		if len(constraint.Types) == 0 {
			constraint = ttype.Mixed()
		}
		return c.union(constraint, ttype.Single(container), false, false, r)
	case ttype.TDerived:
		return c.fromDerived(t, ttype.Single(container), r)
	case ttype.TVoid:
		return container.Kind() == ttype.KindNull
	case ttype.TNull:
		return container.Kind() == ttype.KindVoid
	}

	switch {
	case ttype.IsScalar(container):
		return c.scalar(input, container, r)
	case ttype.IsArray(container):
		return c.array(input, container, r)
	case ttype.IsObjectLike(container):
		return c.object(input, container, r)
	}
	if ct, ok := container.(ttype.TResource); ok {
		it, ok := input.(ttype.TResource)
		return ok && (ct.State == ttype.ResourceAny || ct.State == it.State)
	}
	return false
}

func (c *comparer) intoMixed(input ttype.Atomic, m ttype.TMixed, r *ComparisonResult) bool {
	in := c.cb.Interner
	if im, ok := input.(ttype.TMixed); ok {
		var contained bool
		switch m.Axis {
		case ttype.MixedAny:
			contained = true
		case ttype.MixedNonNull:
			contained = im.Axis == ttype.MixedNonNull || im.Axis == ttype.MixedTruthy
		default:
			contained = im.Axis == m.Axis
		}
		if !contained {
			r.coerced()
			r.TypeCoercedFromAsMixed = ttype.True
		}
		return contained
	}
	switch m.Axis {
	case ttype.MixedNonNull:
		return !ttype.IsNullish(input)
	case ttype.MixedTruthy:
		return ttype.AlwaysTruthy(input, in)
	case ttype.MixedFalsy:
		return ttype.AlwaysFalsy(input, in)
	}
	return true
}
