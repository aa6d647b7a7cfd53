package combiner

import (
	"tephra/internal/atom"
	"tephra/internal/ttype"
)

// Limits past which precise shapes widen to general types.
const (
	IntegerLiteralLimit = 128
	StringLiteralLimit  = 128
	ArrayKnownLimit     = 64
)

// CombinationFlags records which kinds of atomics were seen.
type CombinationFlags uint32

const (
	HasMixed CombinationFlags = 1 << iota
	HasObjectTopType
	HasEmptyArray
	HasArrayKey
	HasNumeric
	HasScalar
	HasVoid
	HasNull
	HasGeneralInt
	HasGeneralFloat
	HasGeneralString
	HasGeneralBool
	HasTrue
	HasFalse
)

func (f CombinationFlags) Has(x CombinationFlags) bool { return f&x != 0 }

type enumEntry struct {
	name  atom.Atom
	all   bool
	cases atom.Set
}

type objectEntry struct {
	name    atom.Atom
	params  []ttype.TUnion
	dropped bool // arity mismatch seen
	isThis  bool
}

type genericKey struct {
	name, def atom.Atom
}

type genericEntry struct {
	name       atom.Atom
	def        atom.Atom
	constraint ttype.TUnion
}

// arrayShape is one non-empty array input in keyed form. List indices
// become integer keys; an open list gets non-negative-int key parameters.
type arrayShape struct {
	known    []ttype.KnownItem
	params   *ttype.KeyedParams
	nonEmpty bool
	list     bool
}

// typeCombination accumulates atomics bucket by bucket.
type typeCombination struct {
	flags CombinationFlags

	// Why mixed was introduced. Unset until a mixed input is seen.
	falsyMixed         ttype.Tristate
	truthyMixed        ttype.Tristate
	nonnullMixed       ttype.Tristate
	mixedFromLoopIsset ttype.Tristate

	ints []ttype.TInt

	strings     map[atom.Atom]struct{}
	strNonEmpty ttype.Tristate
	strNumeric  ttype.Tristate

	floats map[float64]struct{}

	enums   map[atom.Atom]*enumEntry
	objects map[atom.Atom]*objectEntry

	arrays []arrayShape

	generics map[genericKey]*genericEntry
	derived  map[string]ttype.Atomic

	resourceAny    bool
	resourceOpen   bool
	resourceClosed bool

	// aliases, member references and anything else kept verbatim
	values map[string]ttype.Atomic
}

func newCombination() *typeCombination {
	return &typeCombination{
		strings:  map[atom.Atom]struct{}{},
		floats:   map[float64]struct{}{},
		enums:    map[atom.Atom]*enumEntry{},
		objects:  map[atom.Atom]*objectEntry{},
		generics: map[genericKey]*genericEntry{},
		derived:  map[string]ttype.Atomic{},
		values:   map[string]ttype.Atomic{},
	}
}
