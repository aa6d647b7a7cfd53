package comparator

import (
	"tephra/internal/ttype"
	"tephra/internal/ttype/expander"
)

// derivedPair compares two derived types of the same operation through
// their targets; otherwise both are reduced first.
func (c *comparer) derivedPair(input, container ttype.TDerived, r *ComparisonResult) bool {
	if input.Op == container.Op {
		switch input.Op {
		case ttype.DerivedKeyOf, ttype.DerivedValueOf, ttype.DerivedPropertiesOf:
			return c.union(input.Target, container.Target, false, false, r)
		case ttype.DerivedIndexAccess:
			return c.union(input.Target, container.Target, false, false, r) &&
				c.union(input.Index, container.Index, false, false, r)
		}
	}
	reduced, ok := expander.ReduceDerived(c.cb, container)
	if !ok {
		return c.fromDerived(input, ttype.Single(container), r)
	}
	return c.fromDerived(input, reduced, r)
}

// fromDerived reduces input and requires every reduced atomic to be
// contained. An irreducible input falls back to the widest type its
// operation can produce.
func (c *comparer) fromDerived(input ttype.TDerived, target ttype.TUnion, r *ComparisonResult) bool {
	reduced, ok := expander.ReduceDerived(c.cb, input)
	if !ok {
		switch input.Op {
		case ttype.DerivedKeyOf:
			reduced = ttype.ArrayKeyU()
		case ttype.DerivedIntMask, ttype.DerivedIntMaskOf:
			reduced = ttype.Int()
		default:
			reduced = ttype.Mixed()
		}
	}
	ok = true
	for _, a := range reduced.Types {
		if !c.anyContains(a, target, r) {
			ok = false
		}
	}
	return ok
}

// intoDerived reduces the container; an irreducible container accepts nothing
// but never.
func (c *comparer) intoDerived(input ttype.Atomic, container ttype.TDerived, r *ComparisonResult) bool {
	reduced, ok := expander.ReduceDerived(c.cb, container)
	if !ok {
		r.coerced()
		return false
	}
	return c.anyContains(input, reduced, r)
}
