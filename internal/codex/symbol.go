package codex

import (
	"tephra/internal/atom"
	"tephra/internal/source"
)

// SymbolKey identifies a top-level symbol (Member empty) or a class member.
// Function, class and method names are folded; property and constant names
// are kept as written. A function and a class sharing a folded name share
// the key, which only makes invalidation more conservative.
type SymbolKey struct {
	Symbol atom.Atom
	Member atom.Atom
}

func TopLevel(sym atom.Atom) SymbolKey { return SymbolKey{Symbol: sym} }

func Member(class, member atom.Atom) SymbolKey {
	return SymbolKey{Symbol: class, Member: member}
}

func (k SymbolKey) IsMember() bool { return k.Member != atom.Empty }

// Format renders "class" or "class::member".
func (k SymbolKey) Format(in *atom.Interner) string {
	if !k.IsMember() {
		return in.String(k.Symbol)
	}
	return in.String(k.Symbol) + "::" + in.String(k.Member)
}

// MethodIdentifier names a method by folded class and folded method.
type MethodIdentifier struct {
	Class  atom.Atom `msgpack:"c"`
	Method atom.Atom `msgpack:"m"`
}

func (id MethodIdentifier) Key() SymbolKey { return Member(id.Class, id.Method) }

type ClassKind uint8

const (
	KindClass ClassKind = iota
	KindInterface
	KindTrait
	KindEnum
)

func (k ClassKind) String() string {
	switch k {
	case KindInterface:
		return "interface"
	case KindTrait:
		return "trait"
	case KindEnum:
		return "enum"
	}
	return "class"
}

// ParseClassKind accepts the stub spelling; empty means class.
func ParseClassKind(s string) (ClassKind, bool) {
	switch s {
	case "", "class":
		return KindClass, true
	case "interface":
		return KindInterface, true
	case "trait":
		return KindTrait, true
	case "enum":
		return KindEnum, true
	}
	return KindClass, false
}

type ClassFlags uint8

const (
	FlagAbstract ClassFlags = 1 << iota
	FlagFinal
	FlagReadonly
	FlagConsistentConstructor
	FlagConsistentTemplates
)

func (f ClassFlags) Has(x ClassFlags) bool { return f&x != 0 }

type PopulationState uint8

const (
	Unpopulated PopulationState = iota
	Populating
	Populated
	Invalid
)

func (s PopulationState) String() string {
	switch s {
	case Populating:
		return "populating"
	case Populated:
		return "populated"
	case Invalid:
		return "invalid"
	}
	return "unpopulated"
}

type Visibility uint8

const (
	Public Visibility = iota
	Protected
	Private
)

func ParseVisibility(s string) (Visibility, bool) {
	switch s {
	case "", "public":
		return Public, true
	case "protected":
		return Protected, true
	case "private":
		return Private, true
	}
	return Public, false
}

func (v Visibility) String() string {
	switch v {
	case Protected:
		return "protected"
	case Private:
		return "private"
	}
	return "public"
}

type Variance uint8

const (
	Invariant Variance = iota
	Covariant
	Contravariant
)

func ParseVariance(s string) (Variance, bool) {
	switch s {
	case "", "invariant":
		return Invariant, true
	case "covariant":
		return Covariant, true
	case "contravariant":
		return Contravariant, true
	}
	return Invariant, false
}

// Location is a stable position: file path atom plus line/column. File IDs
// change between runs, paths don't.
type Location struct {
	File atom.Atom      `msgpack:"f"`
	Pos  source.LineCol `msgpack:"p"`
}
