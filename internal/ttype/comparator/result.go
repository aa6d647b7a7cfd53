package comparator

import "tephra/internal/ttype"

// ComparisonResult records why a failed (or lenient) containment check
// happened, so callers can pick a softer diagnostic. Flags are Unset until a
// comparison observes them.
type ComparisonResult struct {
	TypeCoerced                ttype.Tristate
	TypeCoercedFromNestedMixed ttype.Tristate
	TypeCoercedFromAsMixed     ttype.Tristate
	TypeCoercedToLiteral       ttype.Tristate

	// ReplacementAtomic is a narrower input type a caller may substitute,
	// set when an assertion narrows.
	ReplacementAtomic ttype.Atomic
}

// Absorb merges o into r. A flag that is already true stays true; an unset
// flag takes o's observation.
func (r *ComparisonResult) Absorb(o ComparisonResult) {
	r.TypeCoerced = absorb(r.TypeCoerced, o.TypeCoerced)
	r.TypeCoercedFromNestedMixed = absorb(r.TypeCoercedFromNestedMixed, o.TypeCoercedFromNestedMixed)
	r.TypeCoercedFromAsMixed = absorb(r.TypeCoercedFromAsMixed, o.TypeCoercedFromAsMixed)
	r.TypeCoercedToLiteral = absorb(r.TypeCoercedToLiteral, o.TypeCoercedToLiteral)
	if r.ReplacementAtomic == nil {
		r.ReplacementAtomic = o.ReplacementAtomic
	}
}

func absorb(a, b ttype.Tristate) ttype.Tristate {
	if a.IsTrue() || !b.IsSet() {
		return a
	}
	return b
}

// Coerced reports any coercion flag.
func (r *ComparisonResult) Coerced() bool {
	return r.TypeCoerced.IsTrue() || r.TypeCoercedFromNestedMixed.IsTrue() ||
		r.TypeCoercedFromAsMixed.IsTrue() || r.TypeCoercedToLiteral.IsTrue()
}

func (r *ComparisonResult) coerced() { r.TypeCoerced = ttype.True }

func (r *ComparisonResult) coercedToLiteral() {
	r.TypeCoerced = ttype.True
	r.TypeCoercedToLiteral = ttype.True
}
