package analyzer

import (
	"slices"
	"strconv"

	"tephra/internal/atom"
	"tephra/internal/codex"
	"tephra/internal/diag"
	"tephra/internal/syntax"
	"tephra/internal/ttype"
	"tephra/internal/ttype/combiner"
)

// literalKey returns the array key a single literal int or string type
// denotes. Canonical decimal strings become integer keys.
func literalKey(in *atom.Interner, u ttype.TUnion) (ttype.ArrayKey, bool) {
	at, ok := u.Only()
	if !ok {
		return ttype.ArrayKey{}, false
	}
	switch t := at.(type) {
	case ttype.TInt:
		if t.IsLiteral() {
			return ttype.IntKey(t.Lo), true
		}
	case ttype.TString:
		if !t.Literal {
			break
		}
		s := in.String(t.Value)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil && strconv.FormatInt(n, 10) == s {
			return ttype.IntKey(n), true
		}
		return ttype.StringKey(t.Value), true
	}
	return ttype.ArrayKey{}, false
}

// arrayKeyType is the union of keys an array may hold.
func arrayKeyType(at ttype.Atomic) ttype.TUnion {
	var keys []ttype.Atomic
	switch t := at.(type) {
	case ttype.TList:
		if !t.Closed() {
			return ttype.Single(ttype.IntFromOf(0))
		}
		for _, e := range t.Known {
			keys = append(keys, ttype.IntLit(int64(e.Index)))
		}
	case ttype.TKeyedArray:
		for _, it := range t.Known {
			keys = append(keys, it.Key.Atomic())
		}
		if t.Params != nil {
			keys = append(keys, t.Params.Key.Types...)
		}
	}
	if len(keys) == 0 {
		return ttype.Never()
	}
	return ttype.Union(keys...)
}

// arrayValueType is the union of values an array may hold.
func arrayValueType(cb *codex.CodebaseMetadata, at ttype.Atomic) ttype.TUnion {
	var values []ttype.TUnion
	switch t := at.(type) {
	case ttype.TList:
		for _, e := range t.Known {
			values = append(values, e.Type)
		}
		if !t.Closed() {
			values = append(values, t.Element)
		}
	case ttype.TKeyedArray:
		for _, it := range t.Known {
			values = append(values, it.Type)
		}
		if t.Params != nil {
			values = append(values, t.Params.Value)
		}
	}
	return combiner.CombineAll(values, cb)
}

// arrayLit types an array literal: a sealed list when every item is
// positional, a sealed keyed array when every key is a literal, otherwise a
// parameterized array.
func (a *analyzer) arrayLit(ctx *blockContext, x syntax.ArrayLit) ttype.TUnion {
	if len(x.Items) == 0 {
		return ttype.Single(ttype.EmptyArray())
	}
	keys := make([]ttype.TUnion, len(x.Items))
	values := make([]ttype.TUnion, len(x.Items))
	positional := true
	for i, it := range x.Items {
		if it.Key != nil {
			positional = false
			keys[i] = a.expr(ctx, it.Key)
		}
		values[i] = a.expr(ctx, it.Value)
	}
	if positional {
		list := ttype.TList{Element: ttype.Never(), NonEmpty: true}
		for i, v := range values {
			list.Known = append(list.Known, ttype.ListElement{Index: i, Type: v})
		}
		return ttype.Single(list)
	}

	var known []ttype.KnownItem
	next := int64(0)
	for i, v := range values {
		var key ttype.ArrayKey
		if keys[i].Types == nil {
			key = ttype.IntKey(next)
		} else {
			k, ok := literalKey(a.in, keys[i])
			if !ok {
				return a.parameterized(keys, values)
			}
			key = k
		}
		if key.Kind == ttype.KeyInt && key.Int >= next {
			next = key.Int + 1
		}
		known = slices.DeleteFunc(known, func(ki ttype.KnownItem) bool { return ki.Key == key })
		known = append(known, ttype.KnownItem{Key: key, Type: v})
	}
	slices.SortFunc(known, func(p, q ttype.KnownItem) int { return p.Key.Compare(q.Key) })
	return ttype.Single(ttype.TKeyedArray{Known: known, NonEmpty: true})
}

func (a *analyzer) parameterized(keys, values []ttype.TUnion) ttype.TUnion {
	var ks []ttype.TUnion
	for _, k := range keys {
		if k.Types == nil {
			k = ttype.Int()
		}
		ks = append(ks, k)
	}
	arr := ttype.ArrayOf(a.combine(ks...), a.combine(values...))
	arr.NonEmpty = true
	return ttype.Single(arr)
}

// withOffset is the type of cur after cur[key] = value.
func (a *analyzer) withOffset(cur, key, value ttype.TUnion) ttype.TUnion {
	lit, isLit := literalKey(a.in, key)
	var out []ttype.Atomic
	for _, at := range cur.Types {
		switch t := at.(type) {
		case ttype.TList:
			if isLit && lit.Kind == ttype.KeyInt && t.Closed() && lit.Int >= 0 && lit.Int <= int64(len(t.Known)) {
				t.Known = slices.Clone(t.Known)
				if int(lit.Int) == len(t.Known) {
					t.Known = append(t.Known, ttype.ListElement{Index: len(t.Known), Type: value})
				} else {
					t.Known[lit.Int].Type = value
					t.Known[lit.Int].Optional = false
				}
				t.NonEmpty = true
				out = append(out, t)
				continue
			}
			out = append(out, a.widened(at, key, value))
		case ttype.TKeyedArray:
			if isLit && t.IsEmptyArray() && lit == ttype.IntKey(0) {
				out = append(out, ttype.TList{
					Element:  ttype.Never(),
					Known:    []ttype.ListElement{{Index: 0, Type: value}},
					NonEmpty: true,
				})
				continue
			}
			if isLit && t.Sealed() {
				t.Known = slices.DeleteFunc(slices.Clone(t.Known), func(ki ttype.KnownItem) bool { return ki.Key == lit })
				t.Known = append(t.Known, ttype.KnownItem{Key: lit, Type: value})
				slices.SortFunc(t.Known, func(p, q ttype.KnownItem) int { return p.Key.Compare(q.Key) })
				t.NonEmpty = true
				out = append(out, t)
				continue
			}
			out = append(out, a.widened(at, key, value))
		case ttype.TNull, ttype.TVoid, ttype.TNever:
			out = append(out, a.widened(ttype.EmptyArray(), key, value))
		case ttype.TMixed:
			out = append(out, t)
		default:
			// string offsets and ArrayAccess objects keep their type
			out = append(out, at)
		}
	}
	if len(out) == 0 {
		out = append(out, a.widened(ttype.EmptyArray(), key, value))
	}
	return ttype.TUnion{Types: combiner.Combine(out, a.cb, false)}
}

// widened turns arr into a parameterized array that also holds key => value.
func (a *analyzer) widened(arr ttype.Atomic, key, value ttype.TUnion) ttype.Atomic {
	keys := arrayKeyType(arr)
	values := arrayValueType(a.cb, arr)
	var k ttype.TUnion
	if keys.IsNever() {
		k = key
	} else {
		k = a.combine(keys, key)
	}
	var v ttype.TUnion
	if values.IsNever() {
		v = value
	} else {
		v = a.combine(values, value)
	}
	out := ttype.ArrayOf(k, v)
	out.NonEmpty = true
	return out
}

// index types arr[key].
func (a *analyzer) index(ctx *blockContext, x syntax.Index) ttype.TUnion {
	arr := a.expr(ctx, x.Array)
	key := a.expr(ctx, x.Key)
	lit, isLit := literalKey(a.in, key)

	var out []ttype.TUnion
	for _, at := range arr.Types {
		switch t := at.(type) {
		case ttype.TList:
			if isLit && lit.Kind == ttype.KeyInt {
				if e, ok := t.ElementAt(int(lit.Int)); ok {
					out = append(out, e.Type)
					continue
				}
				if t.Closed() {
					a.report(diag.InvalidArrayOffset, x.Pos(), "cannot access offset %d of %s", lit.Int, a.format(ttype.Single(t)))
					continue
				}
			}
			out = append(out, arrayValueType(a.cb, t))
		case ttype.TKeyedArray:
			if isLit {
				if it, ok := t.Item(lit); ok {
					out = append(out, it.Type)
					continue
				}
				if t.Sealed() {
					a.report(diag.InvalidArrayOffset, x.Pos(), "cannot access offset %s of %s", lit.Format(a.in), a.format(ttype.Single(t)))
					continue
				}
			}
			out = append(out, arrayValueType(a.cb, t))
		case ttype.TString:
			out = append(out, ttype.String())
		case ttype.TNull, ttype.TVoid:
			out = append(out, ttype.Null())
		default:
			out = append(out, ttype.Mixed())
		}
	}
	if len(out) == 0 {
		return ttype.Mixed()
	}
	return a.combine(out...)
}
