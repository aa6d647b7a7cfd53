package ttype

import (
	"tephra/internal/atom"
)

// Kind identifies an atomic variant. The numeric order is the canonical order
// of atomics inside a combined union.
type Kind uint8

const (
	KindMixed Kind = iota + 1
	KindBool
	KindInt
	KindFloat
	KindString
	KindArrayKey
	KindNumeric
	KindScalar
	KindList
	KindKeyedArray
	KindObject
	KindNamedObject
	KindEnum
	KindGenericParameter
	KindDerived
	KindResource
	KindAlias
	KindMemberReference
	KindNull
	KindVoid
	KindNever
)

// Atomic is one member of a union. The set of implementations is closed.
type Atomic interface {
	Kind() Kind
	atomic()
}

type BoolValue uint8

const (
	BoolGeneral BoolValue = iota
	BoolTrue
	BoolFalse
)

type TBool struct {
	Value BoolValue
}

type IntShape uint8

const (
	IntUnspecified IntShape = iota
	IntLiteral              // Lo
	IntRange                // Lo..Hi
	IntFrom                 // Lo..+inf
	IntTo                   // -inf..Hi
)

type TInt struct {
	Shape IntShape
	Lo    int64
	Hi    int64
}

type TFloat struct {
	Literal bool
	Value   float64
}

// TString is a string. A literal carries its value as an atom; the flags
// describe general strings and are implied for literals.
type TString struct {
	Literal  bool
	Value    atom.Atom
	NonEmpty bool
	Numeric  bool
}

type TArrayKey struct{}

type TNumeric struct{}

type TScalar struct{}

type ListElement struct {
	Index    int
	Type     TUnion
	Optional bool
}

// TList is a list (keys 0..n-1). It is closed when Element is never; a closed
// list holds exactly its Known elements.
type TList struct {
	Element  TUnion
	Known    []ListElement // sorted by Index
	NonEmpty bool
}

type KnownItem struct {
	Key      ArrayKey
	Type     TUnion
	Optional bool
}

type KeyedParams struct {
	Key   TUnion
	Value TUnion
}

// TKeyedArray is a keyed array. It is sealed when Params is nil.
type TKeyedArray struct {
	Known    []KnownItem // sorted by ArrayKey order
	Params   *KeyedParams
	NonEmpty bool
}

type TNamedObject struct {
	Name       atom.Atom
	TypeParams []TUnion
	IsThis     bool // static / $this
}

// TEnum is an enum or, with Case set, a single enum case.
type TEnum struct {
	Name atom.Atom
	Case atom.Atom
}

// TObject is any object.
type TObject struct{}

type TNull struct{}

type TVoid struct{}

type TNever struct{}

type MixedAxis uint8

const (
	MixedAny MixedAxis = iota
	MixedTruthy
	MixedFalsy
	MixedNonNull
)

type TMixed struct {
	Axis          MixedAxis
	FromLoopIsset bool
}

type TGenericParameter struct {
	Name           atom.Atom
	DefiningEntity atom.Atom
	Constraint     TUnion
}

type DerivedOp uint8

const (
	DerivedKeyOf DerivedOp = iota + 1
	DerivedValueOf
	DerivedIndexAccess
	DerivedPropertiesOf
	DerivedIntMask
	DerivedIntMaskOf
)

// TDerived is a type computed from another: key-of<T>, value-of<T>, T[K],
// properties-of<T>, int-mask<...> and int-mask-of<T>.
type TDerived struct {
	Op     DerivedOp
	Target TUnion
	Index  TUnion  // IndexAccess only
	Values []int64 // IntMask only
}

type ResourceState uint8

const (
	ResourceAny ResourceState = iota
	ResourceOpen
	ResourceClosed
)

type TResource struct {
	State ResourceState
}

// TAlias references a type alias declared on Class.
type TAlias struct {
	Class atom.Atom
	Name  atom.Atom
}

// TMemberReference is Foo::BAR or the wildcard Foo::BAR_*.
type TMemberReference struct {
	Class  atom.Atom
	Member atom.Atom
}

func (TBool) Kind() Kind             { return KindBool }
func (TInt) Kind() Kind              { return KindInt }
func (TFloat) Kind() Kind            { return KindFloat }
func (TString) Kind() Kind           { return KindString }
func (TArrayKey) Kind() Kind         { return KindArrayKey }
func (TNumeric) Kind() Kind          { return KindNumeric }
func (TScalar) Kind() Kind           { return KindScalar }
func (TList) Kind() Kind             { return KindList }
func (TKeyedArray) Kind() Kind       { return KindKeyedArray }
func (TNamedObject) Kind() Kind      { return KindNamedObject }
func (TEnum) Kind() Kind             { return KindEnum }
func (TObject) Kind() Kind           { return KindObject }
func (TNull) Kind() Kind             { return KindNull }
func (TVoid) Kind() Kind             { return KindVoid }
func (TNever) Kind() Kind            { return KindNever }
func (TMixed) Kind() Kind            { return KindMixed }
func (TGenericParameter) Kind() Kind { return KindGenericParameter }
func (TDerived) Kind() Kind          { return KindDerived }
func (TResource) Kind() Kind         { return KindResource }
func (TAlias) Kind() Kind            { return KindAlias }
func (TMemberReference) Kind() Kind  { return KindMemberReference }

func (TBool) atomic()             {}
func (TInt) atomic()              {}
func (TFloat) atomic()            {}
func (TString) atomic()           {}
func (TArrayKey) atomic()         {}
func (TNumeric) atomic()          {}
func (TScalar) atomic()           {}
func (TList) atomic()             {}
func (TKeyedArray) atomic()       {}
func (TNamedObject) atomic()      {}
func (TEnum) atomic()             {}
func (TObject) atomic()           {}
func (TNull) atomic()             {}
func (TVoid) atomic()             {}
func (TNever) atomic()            {}
func (TMixed) atomic()            {}
func (TGenericParameter) atomic() {}
func (TDerived) atomic()          {}
func (TResource) atomic()         {}
func (TAlias) atomic()            {}
func (TMemberReference) atomic()  {}

// Closed reports whether the list holds exactly its known elements.
func (l TList) Closed() bool { return l.Element.IsNever() }

// Sealed reports whether the array holds exactly its known items.
func (k TKeyedArray) Sealed() bool { return k.Params == nil }

// IsEmptyArray reports array{}: sealed, no items.
func (k TKeyedArray) IsEmptyArray() bool { return k.Params == nil && len(k.Known) == 0 }

// ElementAt returns the known element at index.
func (l TList) ElementAt(index int) (ListElement, bool) {
	for _, e := range l.Known {
		if e.Index == index {
			return e, true
		}
	}
	return ListElement{}, false
}

// Item returns the known item under key.
func (k TKeyedArray) Item(key ArrayKey) (KnownItem, bool) {
	for _, it := range k.Known {
		if it.Key == key {
			return it, true
		}
	}
	return KnownItem{}, false
}
