package expander

import (
	"slices"

	"tephra/internal/atom"
	"tephra/internal/codex"
	"tephra/internal/ttype"
	"tephra/internal/ttype/combiner"
)

// maskBits is the widest int-mask still expanded into literals.
const maskBits = 7

// ReduceDerived computes d when its target is concrete. It reports false for
// targets it cannot see through: generic parameters, unresolved references,
// objects without metadata and missing keys.
func ReduceDerived(cb *codex.CodebaseMetadata, d ttype.TDerived) (ttype.TUnion, bool) {
	if d.Op == ttype.DerivedIntMask {
		return intMask(d.Values), true
	}
	if len(d.Target.Types) == 0 {
		return ttype.TUnion{}, false
	}
	if d.Op == ttype.DerivedIntMaskOf {
		values, ok := maskValues(d.Target)
		if !ok {
			return ttype.TUnion{}, false
		}
		return intMask(values), true
	}

	var out []ttype.Atomic
	for _, a := range d.Target.Types {
		var (
			part []ttype.Atomic
			ok   bool
		)
		switch d.Op {
		case ttype.DerivedKeyOf:
			part, ok = keysOf(a)
		case ttype.DerivedValueOf:
			part, ok = valuesOf(cb, a)
		case ttype.DerivedIndexAccess:
			part, ok = indexOf(a, d.Index)
		case ttype.DerivedPropertiesOf:
			part, ok = propertiesOf(cb, a)
		}
		if !ok {
			return ttype.TUnion{}, false
		}
		out = append(out, part...)
	}
	return ttype.TUnion{Types: combiner.Combine(out, cb, false)}, true
}

func keysOf(a ttype.Atomic) ([]ttype.Atomic, bool) {
	switch t := a.(type) {
	case ttype.TList:
		var out []ttype.Atomic
		for _, e := range t.Known {
			out = append(out, ttype.IntLit(int64(e.Index)))
		}
		if !t.Closed() {
			out = append(out, ttype.IntFromOf(0))
		}
		return out, true
	case ttype.TKeyedArray:
		var out []ttype.Atomic
		for _, it := range t.Known {
			if it.Key.Kind == ttype.KeyClassConstant {
				return nil, false
			}
			out = append(out, it.Key.Atomic())
		}
		if t.Params != nil {
			out = append(out, t.Params.Key.Types...)
		}
		return out, true
	}
	return nil, false
}

func valuesOf(cb *codex.CodebaseMetadata, a ttype.Atomic) ([]ttype.Atomic, bool) {
	switch t := a.(type) {
	case ttype.TList:
		var out []ttype.Atomic
		for _, e := range t.Known {
			out = append(out, e.Type.Types...)
		}
		if !t.Closed() {
			out = append(out, t.Element.Types...)
		}
		return out, true
	case ttype.TKeyedArray:
		var out []ttype.Atomic
		for _, it := range t.Known {
			out = append(out, it.Type.Types...)
		}
		if t.Params != nil {
			out = append(out, t.Params.Value.Types...)
		}
		return out, true
	case ttype.TEnum:
		return caseValues(cb, t)
	case ttype.TNamedObject:
		if meta := cb.ClassLike(t.Name); meta != nil && meta.IsEnum() {
			return caseValues(cb, ttype.TEnum{Name: meta.Name})
		}
	}
	return nil, false
}

// caseValues is the backing values of an enum or of one case.
func caseValues(cb *codex.CodebaseMetadata, t ttype.TEnum) ([]ttype.Atomic, bool) {
	meta := cb.ClassLike(t.Name)
	if meta == nil || !meta.IsEnum() {
		return nil, false
	}
	cases := meta.CaseOrder
	if t.Case != atom.Empty {
		cases = []atom.Atom{t.Case}
	}
	var out []ttype.Atomic
	for _, name := range cases {
		c := cb.EnumCase(meta.Key, name)
		if c == nil || len(c.Value.Types) == 0 {
			return nil, false
		}
		out = append(out, c.Value.Types...)
	}
	return out, true
}

func literalKey(a ttype.Atomic) (ttype.ArrayKey, bool) {
	switch t := a.(type) {
	case ttype.TInt:
		if t.IsLiteral() {
			return ttype.IntKey(t.Lo), true
		}
	case ttype.TString:
		if t.Literal {
			return ttype.StringKey(t.Value), true
		}
	}
	return ttype.ArrayKey{}, false
}

func indexOf(a ttype.Atomic, index ttype.TUnion) ([]ttype.Atomic, bool) {
	if len(index.Types) == 0 {
		return nil, false
	}
	var out []ttype.Atomic
	for _, idx := range index.Types {
		k, literal := literalKey(idx)
		switch t := a.(type) {
		case ttype.TList:
			switch {
			case !literal:
				values, _ := valuesOf(nil, t)
				out = append(out, values...)
			case k.Kind != ttype.KeyInt:
				return nil, false
			default:
				if e, ok := t.ElementAt(int(k.Int)); ok {
					out = append(out, e.Type.Types...)
				} else if !t.Closed() {
					out = append(out, t.Element.Types...)
				} else {
					return nil, false
				}
			}
		case ttype.TKeyedArray:
			if !literal {
				values, _ := valuesOf(nil, t)
				out = append(out, values...)
				continue
			}
			if it, ok := t.Item(k); ok {
				out = append(out, it.Type.Types...)
			} else if t.Params != nil {
				out = append(out, t.Params.Value.Types...)
			} else {
				return nil, false
			}
		default:
			return nil, false
		}
	}
	return out, true
}

// propertiesOf is the sealed shape of an object's instance properties.
func propertiesOf(cb *codex.CodebaseMetadata, a ttype.Atomic) ([]ttype.Atomic, bool) {
	obj, ok := a.(ttype.TNamedObject)
	if !ok {
		return nil, false
	}
	meta := cb.ClassLike(obj.Name)
	if meta == nil {
		return nil, false
	}
	names := atom.NewSet()
	for name := range meta.Properties {
		names.Add(name)
	}
	for name := range meta.AppearingPropertyIDs {
		names.Add(name)
	}
	out := ttype.TKeyedArray{}
	for _, name := range names.Sorted() {
		p := cb.Property(meta.Key, name)
		if p == nil || p.Static {
			continue
		}
		t := p.Type
		if len(t.Types) == 0 {
			t = ttype.Mixed()
		}
		out.Known = append(out.Known, ttype.KnownItem{Key: ttype.StringKey(name), Type: t})
	}
	slices.SortFunc(out.Known, func(a, b ttype.KnownItem) int { return a.Key.Compare(b.Key) })
	return []ttype.Atomic{out}, true
}

// maskValues reads the flags of int-mask-of<T>; every member must be an
// integer literal.
func maskValues(u ttype.TUnion) ([]int64, bool) {
	values := make([]int64, 0, len(u.Types))
	for _, a := range u.Types {
		t, ok := a.(ttype.TInt)
		if !ok || !t.IsLiteral() {
			return nil, false
		}
		values = append(values, t.Lo)
	}
	return values, true
}

// intMask is every bitwise OR of a subset of values.
func intMask(values []int64) ttype.TUnion {
	if slices.ContainsFunc(values, func(v int64) bool { return v < 0 }) {
		return ttype.Int()
	}
	if len(values) > maskBits {
		var all int64
		for _, v := range values {
			all |= v
		}
		return ttype.Single(ttype.IntRangeOf(0, all))
	}
	seen := map[int64]struct{}{0: {}}
	possible := []int64{0}
	for _, v := range values {
		for _, p := range slices.Clone(possible) {
			q := p | v
			if _, ok := seen[q]; !ok {
				seen[q] = struct{}{}
				possible = append(possible, q)
			}
		}
	}
	slices.Sort(possible)
	out := make([]ttype.Atomic, len(possible))
	for i, v := range possible {
		out[i] = ttype.IntLit(v)
	}
	return ttype.TUnion{Types: out}
}
