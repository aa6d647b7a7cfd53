package ttype

import (
	"slices"

	"tephra/internal/atom"
)

// TUnion is a non-empty, combined set of atomics plus auxiliary flags.
// The zero value has no atomics and behaves as never.
type TUnion struct {
	Types []Atomic

	IgnoreFalsableIssues bool
	IgnoreNullableIssues bool
	FromTemplateDefault  bool
	PossiblyUndefined    bool
	ByReference          bool
}

// Single wraps one atomic.
func Single(a Atomic) TUnion { return TUnion{Types: []Atomic{a}} }

// Union wraps atomics as given; callers that need a canonical union combine first.
func Union(types ...Atomic) TUnion { return TUnion{Types: types} }

func Never() TUnion    { return Single(TNever{}) }
func Mixed() TUnion    { return Single(TMixed{}) }
func Null() TUnion     { return Single(TNull{}) }
func Void() TUnion     { return Single(TVoid{}) }
func Bool() TUnion     { return Single(TBool{}) }
func Int() TUnion      { return Single(TInt{}) }
func Float() TUnion    { return Single(TFloat{}) }
func String() TUnion   { return Single(TString{}) }
func ArrayKeyU() TUnion { return Single(TArrayKey{}) }
func Object() TUnion   { return Single(TObject{}) }

func IntLit(v int64) TInt            { return TInt{Shape: IntLiteral, Lo: v, Hi: v} }
func IntRangeOf(lo, hi int64) TInt   { return TInt{Shape: IntRange, Lo: lo, Hi: hi} }
func IntFromOf(lo int64) TInt        { return TInt{Shape: IntFrom, Lo: lo} }
func IntToOf(hi int64) TInt          { return TInt{Shape: IntTo, Hi: hi} }
func StringLit(v atom.Atom) TString  { return TString{Literal: true, Value: v} }
func FloatLit(v float64) TFloat      { return TFloat{Literal: true, Value: v} }
func NamedObject(name atom.Atom) TNamedObject {
	return TNamedObject{Name: name}
}

// ListOf is list<elem>.
func ListOf(elem TUnion) TList { return TList{Element: elem} }

// ArrayOf is array<key, value>.
func ArrayOf(key, value TUnion) TKeyedArray {
	return TKeyedArray{Params: &KeyedParams{Key: key, Value: value}}
}

// EmptyArray is array{}.
func EmptyArray() TKeyedArray { return TKeyedArray{} }

func (u TUnion) Len() int { return len(u.Types) }

func (u TUnion) IsSingle() bool { return len(u.Types) == 1 }

// Only returns the sole atomic of a single-atomic union.
func (u TUnion) Only() (Atomic, bool) {
	if len(u.Types) != 1 {
		return nil, false
	}
	return u.Types[0], true
}

func (u TUnion) IsNever() bool {
	for _, t := range u.Types {
		if t.Kind() != KindNever {
			return false
		}
	}
	return true
}

func (u TUnion) IsMixed() bool {
	for _, t := range u.Types {
		if m, ok := t.(TMixed); ok && m.Axis == MixedAny {
			return true
		}
	}
	return false
}

// HasMixed reports any mixed atomic, whatever its axis.
func (u TUnion) HasMixed() bool { return u.Has(KindMixed) }

func (u TUnion) IsVoid() bool {
	return len(u.Types) == 1 && u.Types[0].Kind() == KindVoid
}

func (u TUnion) IsNullable() bool {
	return u.Has(KindNull) || u.Has(KindVoid)
}

func (u TUnion) IsNull() bool {
	return len(u.Types) > 0 && !slices.ContainsFunc(u.Types, func(a Atomic) bool { return !IsNullish(a) })
}

func (u TUnion) Has(k Kind) bool {
	return slices.ContainsFunc(u.Types, func(a Atomic) bool { return a.Kind() == k })
}

func (u TUnion) HasTemplate() bool {
	for _, t := range u.Types {
		if HasTemplate(t) {
			return true
		}
	}
	return false
}

// WithoutNull drops null and void atomics; an all-null union becomes never.
func (u TUnion) WithoutNull() TUnion {
	out := u
	out.Types = slices.DeleteFunc(slices.Clone(u.Types), IsNullish)
	if len(out.Types) == 0 {
		out.Types = []Atomic{TNever{}}
	}
	return out
}

// Filter keeps atomics satisfying keep; an empty result becomes never.
func (u TUnion) Filter(keep func(Atomic) bool) TUnion {
	out := u
	out.Types = make([]Atomic, 0, len(u.Types))
	for _, t := range u.Types {
		if keep(t) {
			out.Types = append(out.Types, t)
		}
	}
	if len(out.Types) == 0 {
		out.Types = []Atomic{TNever{}}
	}
	return out
}

// Clone copies the atomics slice; atomics themselves are immutable.
func (u TUnion) Clone() TUnion {
	out := u
	out.Types = slices.Clone(u.Types)
	return out
}

// Equal compares atomics as multisets and the flags that matter for typing.
func (u TUnion) Equal(o TUnion) bool {
	if len(u.Types) != len(o.Types) || u.PossiblyUndefined != o.PossiblyUndefined {
		return false
	}
	a := make([]string, len(u.Types))
	b := make([]string, len(o.Types))
	for i := range u.Types {
		a[i] = Key(u.Types[i])
		b[i] = Key(o.Types[i])
	}
	slices.Sort(a)
	slices.Sort(b)
	return slices.Equal(a, b)
}

// IsNullish reports null or void.
func IsNullish(a Atomic) bool {
	k := a.Kind()
	return k == KindNull || k == KindVoid
}

// HasTemplate reports generic parameters anywhere inside a.
func HasTemplate(a Atomic) bool {
	switch t := a.(type) {
	case TGenericParameter:
		return true
	case TList:
		if t.Element.HasTemplate() {
			return true
		}
		for _, e := range t.Known {
			if e.Type.HasTemplate() {
				return true
			}
		}
	case TKeyedArray:
		if t.Params != nil && (t.Params.Key.HasTemplate() || t.Params.Value.HasTemplate()) {
			return true
		}
		for _, it := range t.Known {
			if it.Type.HasTemplate() {
				return true
			}
		}
	case TNamedObject:
		for _, p := range t.TypeParams {
			if p.HasTemplate() {
				return true
			}
		}
	case TDerived:
		return t.Target.HasTemplate() || t.Index.HasTemplate()
	}
	return false
}

// IsScalar reports bool, int, float, string, array-key, numeric and scalar.
func IsScalar(a Atomic) bool {
	switch a.Kind() {
	case KindBool, KindInt, KindFloat, KindString, KindArrayKey, KindNumeric, KindScalar:
		return true
	}
	return false
}

// IsObjectLike reports named objects, enums and object.
func IsObjectLike(a Atomic) bool {
	switch a.Kind() {
	case KindNamedObject, KindEnum, KindObject:
		return true
	}
	return false
}

// IsArray reports lists and keyed arrays.
func IsArray(a Atomic) bool {
	k := a.Kind()
	return k == KindList || k == KindKeyedArray
}
