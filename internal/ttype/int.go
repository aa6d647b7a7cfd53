package ttype

import "math"

// Bounds returns the closed interval covered by i; unbounded sides report
// math.MinInt64 / math.MaxInt64.
func (i TInt) Bounds() (lo, hi int64) {
	switch i.Shape {
	case IntLiteral:
		return i.Lo, i.Lo
	case IntRange:
		return i.Lo, i.Hi
	case IntFrom:
		return i.Lo, math.MaxInt64
	case IntTo:
		return math.MinInt64, i.Hi
	default:
		return math.MinInt64, math.MaxInt64
	}
}

func (i TInt) IsLiteral() bool { return i.Shape == IntLiteral }

// IntFromBounds builds the most specific TInt covering [lo, hi].
func IntFromBounds(lo, hi int64) TInt {
	switch {
	case lo == math.MinInt64 && hi == math.MaxInt64:
		return TInt{}
	case lo == math.MinInt64:
		return IntToOf(hi)
	case hi == math.MaxInt64:
		return IntFromOf(lo)
	case lo == hi:
		return IntLit(lo)
	default:
		return IntRangeOf(lo, hi)
	}
}

// ContainsInt reports whether v lies in i.
func (i TInt) ContainsInt(v int64) bool {
	lo, hi := i.Bounds()
	return lo <= v && v <= hi
}

// ContainsRange reports whether every value of o lies in i.
func (i TInt) ContainsRange(o TInt) bool {
	lo, hi := i.Bounds()
	olo, ohi := o.Bounds()
	return lo <= olo && ohi <= hi
}

// Overlaps reports whether i and o share a value.
func (i TInt) Overlaps(o TInt) bool {
	lo, hi := i.Bounds()
	olo, ohi := o.Bounds()
	return lo <= ohi && olo <= hi
}
