package ttype

import "iter"

// Nested yields every atomic of u and, depth first, every atomic nested in
// array parameters, object type parameters, template constraints and derived
// operands.
func (u TUnion) Nested() iter.Seq[Atomic] {
	return func(yield func(Atomic) bool) {
		walkUnion(u, yield)
	}
}

func walkUnion(u TUnion, yield func(Atomic) bool) bool {
	for _, a := range u.Types {
		if !walkAtomic(a, yield) {
			return false
		}
	}
	return true
}

func walkAtomic(a Atomic, yield func(Atomic) bool) bool {
	if !yield(a) {
		return false
	}
	switch t := a.(type) {
	case TList:
		for _, e := range t.Known {
			if !walkUnion(e.Type, yield) {
				return false
			}
		}
		return walkUnion(t.Element, yield)
	case TKeyedArray:
		for _, it := range t.Known {
			if it.Key.Kind == KeyClassConstant && !yield(it.Key.Atomic()) {
				return false
			}
			if !walkUnion(it.Type, yield) {
				return false
			}
		}
		if t.Params != nil {
			return walkUnion(t.Params.Key, yield) && walkUnion(t.Params.Value, yield)
		}
	case TNamedObject:
		for _, p := range t.TypeParams {
			if !walkUnion(p, yield) {
				return false
			}
		}
	case TGenericParameter:
		return walkUnion(t.Constraint, yield)
	case TDerived:
		return walkUnion(t.Target, yield) && walkUnion(t.Index, yield)
	}
	return true
}
