package comparator

import (
	"math"
	"slices"

	"tephra/internal/ttype"
)

func (c *comparer) scalar(input, container ttype.Atomic, r *ComparisonResult) bool {
	if !ttype.IsScalar(input) {
		return false
	}
	switch ct := container.(type) {
	case ttype.TScalar:
		return true
	case ttype.TArrayKey:
		switch input.(type) {
		case ttype.TInt, ttype.TString:
			return true
		case ttype.TNumeric, ttype.TScalar:
			r.coerced()
		}
		return false
	case ttype.TNumeric:
		switch it := input.(type) {
		case ttype.TInt, ttype.TFloat:
			return true
		case ttype.TString:
			if c.numericString(it) {
				return true
			}
			r.coerced()
		case ttype.TArrayKey, ttype.TScalar:
			r.coerced()
		}
		return false
	case ttype.TInt:
		return intContains(input, ct, r)
	case ttype.TFloat:
		return floatContains(input, ct, r)
	case ttype.TString:
		return c.stringContains(input, ct, r)
	case ttype.TBool:
		it, ok := input.(ttype.TBool)
		if !ok {
			return false
		}
		if ct.Value == ttype.BoolGeneral || ct.Value == it.Value {
			return true
		}
		if it.Value == ttype.BoolGeneral {
			r.coercedToLiteral()
		}
		return false
	}
	return false
}

func intContains(input ttype.Atomic, ct ttype.TInt, r *ComparisonResult) bool {
	switch it := input.(type) {
	case ttype.TInt:
		if ct.ContainsRange(it) {
			return true
		}
		if ct.Overlaps(it) {
			if ct.IsLiteral() {
				r.coercedToLiteral()
			} else {
				r.coerced()
			}
		}
		return false
	case ttype.TArrayKey, ttype.TNumeric, ttype.TScalar:
		r.coerced()
	}
	return false
}

func floatContains(input ttype.Atomic, ct ttype.TFloat, r *ComparisonResult) bool {
	switch it := input.(type) {
	case ttype.TFloat:
		if !ct.Literal {
			return true
		}
		if it.Literal {
			return it.Value == ct.Value
		}
		r.coercedToLiteral()
		return false
	case ttype.TInt:
		// ints are accepted where floats are expected
		return !ct.Literal
	case ttype.TNumeric, ttype.TScalar:
		r.coerced()
	}
	return false
}

func (c *comparer) numericString(s ttype.TString) bool {
	if s.Numeric {
		return true
	}
	return s.Literal && ttype.IsNumericString(c.cb.Interner.String(s.Value))
}

func (c *comparer) stringContains(input ttype.Atomic, ct ttype.TString, r *ComparisonResult) bool {
	it, ok := input.(ttype.TString)
	if !ok {
		switch input.(type) {
		case ttype.TArrayKey, ttype.TScalar:
			r.coerced()
		}
		return false
	}
	switch {
	case ct.Literal:
		if it.Literal {
			return it.Value == ct.Value
		}
		r.coercedToLiteral()
		return false
	case ct.Numeric:
		if c.numericString(it) {
			return true
		}
	case ct.NonEmpty:
		if it.NonEmpty || it.Numeric || (it.Literal && c.cb.Interner.String(it.Value) != "") {
			return true
		}
	default:
		return true
	}
	if !it.Literal {
		r.coerced()
	}
	return false
}

// coveredBySplit handles inputs that no single container atomic holds but
// the container as a whole does: bool against true|false, and an int range
// against adjacent ranges.
func (c *comparer) coveredBySplit(a ttype.Atomic, container ttype.TUnion) bool {
	switch t := a.(type) {
	case ttype.TBool:
		if t.Value != ttype.BoolGeneral {
			return false
		}
		var hasTrue, hasFalse bool
		for _, ct := range container.Types {
			if b, ok := ct.(ttype.TBool); ok {
				hasTrue = hasTrue || b.Value == ttype.BoolTrue
				hasFalse = hasFalse || b.Value == ttype.BoolFalse
			}
		}
		return hasTrue && hasFalse
	case ttype.TInt:
		type span struct{ lo, hi int64 }
		var spans []span
		for _, ct := range container.Types {
			if i, ok := ct.(ttype.TInt); ok {
				lo, hi := i.Bounds()
				spans = append(spans, span{lo, hi})
			}
		}
		if len(spans) < 2 {
			return false
		}
		slices.SortFunc(spans, func(x, y span) int {
			switch {
			case x.lo < y.lo:
				return -1
			case x.lo > y.lo:
				return 1
			}
			return 0
		})
		cur, hi := t.Bounds()
		for _, s := range spans {
			if s.lo > cur {
				return false
			}
			if s.hi >= hi {
				return true
			}
			if s.hi >= cur {
				if s.hi == math.MaxInt64 {
					return true
				}
				cur = s.hi + 1
			}
		}
	}
	return false
}
