package scan

import (
	"slices"

	"tephra/internal/atom"
	"tephra/internal/syntax"
	"tephra/internal/ttype"
)

// ValueType returns the literal type of a constant expression: scalars,
// null, arrays of constant expressions and class constant references. It
// reports false for anything that needs inference.
func ValueType(in *atom.Interner, e syntax.Expr) (ttype.TUnion, bool) {
	switch x := e.(type) {
	case nil:
		return ttype.TUnion{}, false
	case syntax.IntLit:
		return ttype.Single(ttype.IntLit(x.Value)), true
	case syntax.FloatLit:
		return ttype.Single(ttype.FloatLit(x.Value)), true
	case syntax.StringLit:
		return ttype.Single(ttype.StringLit(in.Intern(x.Value))), true
	case syntax.BoolLit:
		if x.Value {
			return ttype.Single(ttype.TBool{Value: ttype.BoolTrue}), true
		}
		return ttype.Single(ttype.TBool{Value: ttype.BoolFalse}), true
	case syntax.NullLit:
		return ttype.Null(), true
	case syntax.ConstFetch:
		if x.Class == "" {
			return ttype.TUnion{}, false
		}
		return ttype.Single(ttype.TMemberReference{Class: in.Intern(trimName(x.Class)), Member: in.Intern(x.Name)}), true
	case syntax.ArrayLit:
		return arrayValue(in, x)
	}
	return ttype.TUnion{}, false
}

// arrayValue types an array literal: a list when every item is positional,
// otherwise a sealed keyed array with PHP's implicit integer keys.
func arrayValue(in *atom.Interner, x syntax.ArrayLit) (ttype.TUnion, bool) {
	if len(x.Items) == 0 {
		return ttype.Single(ttype.EmptyArray()), true
	}
	positional := true
	for _, it := range x.Items {
		if it.Key != nil {
			positional = false
			break
		}
	}
	if positional {
		list := ttype.TList{Element: ttype.Never(), NonEmpty: true}
		for i, it := range x.Items {
			u, ok := ValueType(in, it.Value)
			if !ok {
				return ttype.TUnion{}, false
			}
			list.Known = append(list.Known, ttype.ListElement{Index: i, Type: u})
		}
		return ttype.Single(list), true
	}

	var known []ttype.KnownItem
	next := int64(0)
	for _, it := range x.Items {
		u, ok := ValueType(in, it.Value)
		if !ok {
			return ttype.TUnion{}, false
		}
		var key ttype.ArrayKey
		switch k := it.Key.(type) {
		case nil:
			key = ttype.IntKey(next)
		case syntax.IntLit:
			key = ttype.IntKey(k.Value)
		case syntax.StringLit:
			key = ttype.StringKey(in.Intern(k.Value))
		case syntax.ConstFetch:
			if k.Class == "" {
				return ttype.TUnion{}, false
			}
			key = ttype.ClassConstantKey(in.Intern(trimName(k.Class)), in.Intern(k.Name))
		default:
			return ttype.TUnion{}, false
		}
		if key.Kind == ttype.KeyInt && key.Int >= next {
			next = key.Int + 1
		}
		// a repeated key keeps the last value
		known = slices.DeleteFunc(known, func(ki ttype.KnownItem) bool { return ki.Key == key })
		known = append(known, ttype.KnownItem{Key: key, Type: u})
	}
	slices.SortFunc(known, func(a, b ttype.KnownItem) int { return a.Key.Compare(b.Key) })
	return ttype.Single(ttype.TKeyedArray{Known: known, NonEmpty: true}), true
}
