package ttype

import (
	"strconv"
	"strings"
)

// Key returns a structural identity of a: two atomics with equal keys are the
// same type. Atoms are written numerically, so keys are only comparable within
// one interner.
func Key(a Atomic) string {
	var b strings.Builder
	writeKey(&b, a)
	return b.String()
}

// UnionKey is Key over a union in its current order.
func UnionKey(u TUnion) string {
	var b strings.Builder
	writeUnionKey(&b, u)
	return b.String()
}

func writeUnionKey(b *strings.Builder, u TUnion) {
	b.WriteByte('(')
	for i, t := range u.Types {
		if i > 0 {
			b.WriteByte('|')
		}
		writeKey(b, t)
	}
	if u.PossiblyUndefined {
		b.WriteByte('?')
	}
	b.WriteByte(')')
}

func num(b *strings.Builder, v int64) {
	b.WriteString(strconv.FormatInt(v, 10))
}

func writeKey(b *strings.Builder, a Atomic) {
	b.WriteString(strconv.Itoa(int(a.Kind())))
	b.WriteByte(':')
	switch t := a.(type) {
	case TBool:
		num(b, int64(t.Value))
	case TInt:
		num(b, int64(t.Shape))
		b.WriteByte(',')
		num(b, t.Lo)
		b.WriteByte(',')
		num(b, t.Hi)
	case TFloat:
		if t.Literal {
			b.WriteString(strconv.FormatFloat(t.Value, 'g', -1, 64))
		}
	case TString:
		if t.Literal {
			b.WriteByte('=')
			num(b, int64(t.Value))
		} else {
			b.WriteString(strconv.FormatBool(t.NonEmpty))
			b.WriteString(strconv.FormatBool(t.Numeric))
		}
	case TList:
		writeUnionKey(b, t.Element)
		for _, e := range t.Known {
			num(b, int64(e.Index))
			if e.Optional {
				b.WriteByte('?')
			}
			writeUnionKey(b, e.Type)
		}
		if t.NonEmpty {
			b.WriteByte('+')
		}
	case TKeyedArray:
		for _, it := range t.Known {
			writeArrayKey(b, it.Key)
			if it.Optional {
				b.WriteByte('?')
			}
			writeUnionKey(b, it.Type)
		}
		if t.Params != nil {
			b.WriteByte('<')
			writeUnionKey(b, t.Params.Key)
			writeUnionKey(b, t.Params.Value)
			b.WriteByte('>')
		}
		if t.NonEmpty {
			b.WriteByte('+')
		}
	case TNamedObject:
		num(b, int64(t.Name))
		for _, p := range t.TypeParams {
			writeUnionKey(b, p)
		}
		if t.IsThis {
			b.WriteByte('$')
		}
	case TEnum:
		num(b, int64(t.Name))
		b.WriteByte(',')
		num(b, int64(t.Case))
	case TMixed:
		num(b, int64(t.Axis))
		if t.FromLoopIsset {
			b.WriteByte('i')
		}
	case TGenericParameter:
		num(b, int64(t.Name))
		b.WriteByte(',')
		num(b, int64(t.DefiningEntity))
		writeUnionKey(b, t.Constraint)
	case TDerived:
		num(b, int64(t.Op))
		writeUnionKey(b, t.Target)
		writeUnionKey(b, t.Index)
		for _, v := range t.Values {
			b.WriteByte(',')
			num(b, v)
		}
	case TResource:
		num(b, int64(t.State))
	case TAlias:
		num(b, int64(t.Class))
		b.WriteByte(',')
		num(b, int64(t.Name))
	case TMemberReference:
		num(b, int64(t.Class))
		b.WriteByte(',')
		num(b, int64(t.Member))
	}
	b.WriteByte(';')
}

func writeArrayKey(b *strings.Builder, k ArrayKey) {
	num(b, int64(k.Kind))
	b.WriteByte('/')
	switch k.Kind {
	case KeyInt:
		num(b, k.Int)
	case KeyString:
		num(b, int64(k.Str))
	default:
		num(b, int64(k.Class))
		b.WriteByte(',')
		num(b, int64(k.Constant))
	}
}

// Equal reports structural equality of two atomics.
func Equal(a, b Atomic) bool { return Key(a) == Key(b) }
