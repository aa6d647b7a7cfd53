package ttype

import (
	"math"
	"strconv"
	"strings"

	"tephra/internal/atom"
)

// Format renders u in docblock syntax.
func Format(in *atom.Interner, u TUnion) string {
	if len(u.Types) == 0 {
		return "never"
	}
	var b strings.Builder
	writeUnion(&b, in, u)
	return b.String()
}

// FormatAtomic renders a single atomic.
func FormatAtomic(in *atom.Interner, a Atomic) string {
	var b strings.Builder
	writeAtomic(&b, in, a)
	return b.String()
}

func writeUnion(b *strings.Builder, in *atom.Interner, u TUnion) {
	if len(u.Types) == 0 {
		b.WriteString("never")
		return
	}
	for i, t := range u.Types {
		if i > 0 {
			b.WriteByte('|')
		}
		writeAtomic(b, in, t)
	}
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "\\'") + "'"
}

func writeBound(b *strings.Builder, v int64) {
	switch v {
	case math.MinInt64:
		b.WriteString("min")
	case math.MaxInt64:
		b.WriteString("max")
	default:
		b.WriteString(strconv.FormatInt(v, 10))
	}
}

func writeAtomic(b *strings.Builder, in *atom.Interner, a Atomic) {
	switch t := a.(type) {
	case TBool:
		switch t.Value {
		case BoolTrue:
			b.WriteString("true")
		case BoolFalse:
			b.WriteString("false")
		default:
			b.WriteString("bool")
		}
	case TInt:
		switch t.Shape {
		case IntUnspecified:
			b.WriteString("int")
		case IntLiteral:
			b.WriteString(strconv.FormatInt(t.Lo, 10))
		default:
			lo, hi := t.Bounds()
			switch {
			case t.Shape == IntFrom && lo == 1:
				b.WriteString("positive-int")
			case t.Shape == IntFrom && lo == 0:
				b.WriteString("non-negative-int")
			case t.Shape == IntTo && hi == -1:
				b.WriteString("negative-int")
			default:
				b.WriteString("int<")
				writeBound(b, lo)
				b.WriteString(", ")
				writeBound(b, hi)
				b.WriteByte('>')
			}
		}
	case TFloat:
		if t.Literal {
			s := strconv.FormatFloat(t.Value, 'f', -1, 64)
			if !strings.ContainsAny(s, ".eEnN") {
				s += ".0"
			}
			b.WriteString(s)
		} else {
			b.WriteString("float")
		}
	case TString:
		switch {
		case t.Literal:
			b.WriteString(quote(in.String(t.Value)))
		case t.Numeric:
			b.WriteString("numeric-string")
		case t.NonEmpty:
			b.WriteString("non-empty-string")
		default:
			b.WriteString("string")
		}
	case TArrayKey:
		b.WriteString("array-key")
	case TNumeric:
		b.WriteString("numeric")
	case TScalar:
		b.WriteString("scalar")
	case TList:
		writeList(b, in, t)
	case TKeyedArray:
		writeKeyed(b, in, t)
	case TNamedObject:
		name := in.String(t.Name)
		b.WriteString(name)
		writeParams(b, in, t.TypeParams)
		if t.IsThis && name != "static" {
			b.WriteString("&static")
		}
	case TEnum:
		b.WriteString(in.String(t.Name))
		if t.Case != atom.Empty {
			b.WriteString("::")
			b.WriteString(in.String(t.Case))
		}
	case TObject:
		b.WriteString("object")
	case TNull:
		b.WriteString("null")
	case TVoid:
		b.WriteString("void")
	case TNever:
		b.WriteString("never")
	case TMixed:
		switch t.Axis {
		case MixedTruthy:
			b.WriteString("truthy-mixed")
		case MixedFalsy:
			b.WriteString("falsy-mixed")
		case MixedNonNull:
			b.WriteString("nonnull")
		default:
			b.WriteString("mixed")
		}
	case TGenericParameter:
		b.WriteString(in.String(t.Name))
	case TDerived:
		writeDerived(b, in, t)
	case TResource:
		switch t.State {
		case ResourceOpen:
			b.WriteString("open-resource")
		case ResourceClosed:
			b.WriteString("closed-resource")
		default:
			b.WriteString("resource")
		}
	case TAlias:
		b.WriteString(in.String(t.Name))
	case TMemberReference:
		b.WriteString(in.String(t.Class))
		b.WriteString("::")
		b.WriteString(in.String(t.Member))
	default:
		b.WriteString("?")
	}
}

func writeParams(b *strings.Builder, in *atom.Interner, params []TUnion) {
	if len(params) == 0 {
		return
	}
	b.WriteByte('<')
	for i, p := range params {
		if i > 0 {
			b.WriteString(", ")
		}
		writeUnion(b, in, p)
	}
	b.WriteByte('>')
}

func writeList(b *strings.Builder, in *atom.Interner, t TList) {
	if len(t.Known) == 0 {
		if t.Closed() {
			b.WriteString("list{}")
			return
		}
		if t.NonEmpty {
			b.WriteString("non-empty-list")
		} else {
			b.WriteString("list")
		}
		writeParams(b, in, []TUnion{t.Element})
		return
	}
	b.WriteString("list{")
	for i, e := range t.Known {
		if i > 0 {
			b.WriteString(", ")
		}
		if e.Optional || e.Index != i {
			b.WriteString(strconv.Itoa(e.Index))
			if e.Optional {
				b.WriteByte('?')
			}
			b.WriteString(": ")
		}
		writeUnion(b, in, e.Type)
	}
	if !t.Closed() {
		b.WriteString(", ...<")
		writeUnion(b, in, t.Element)
		b.WriteByte('>')
	}
	b.WriteByte('}')
}

func writeKeyed(b *strings.Builder, in *atom.Interner, t TKeyedArray) {
	if len(t.Known) == 0 {
		if t.Params == nil {
			b.WriteString("array{}")
			return
		}
		if t.NonEmpty {
			b.WriteString("non-empty-array")
		} else {
			b.WriteString("array")
		}
		writeParams(b, in, []TUnion{t.Params.Key, t.Params.Value})
		return
	}
	b.WriteString("array{")
	for i, it := range t.Known {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(it.Key.Format(in))
		if it.Optional {
			b.WriteByte('?')
		}
		b.WriteString(": ")
		writeUnion(b, in, it.Type)
	}
	if t.Params != nil {
		b.WriteString(", ...<")
		writeUnion(b, in, t.Params.Key)
		b.WriteString(", ")
		writeUnion(b, in, t.Params.Value)
		b.WriteByte('>')
	}
	b.WriteByte('}')
}

func writeDerived(b *strings.Builder, in *atom.Interner, t TDerived) {
	switch t.Op {
	case DerivedKeyOf:
		b.WriteString("key-of<")
	case DerivedValueOf:
		b.WriteString("value-of<")
	case DerivedPropertiesOf:
		b.WriteString("properties-of<")
	case DerivedIntMaskOf:
		b.WriteString("int-mask-of<")
	case DerivedIntMask:
		b.WriteString("int-mask<")
		for i, v := range t.Values {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(strconv.FormatInt(v, 10))
		}
		b.WriteByte('>')
		return
	case DerivedIndexAccess:
		writeUnion(b, in, t.Target)
		b.WriteByte('[')
		writeUnion(b, in, t.Index)
		b.WriteByte(']')
		return
	}
	writeUnion(b, in, t.Target)
	b.WriteByte('>')
}
