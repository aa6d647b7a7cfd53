package ttype

import (
	"strconv"

	"tephra/internal/atom"
)

type ArrayKeyKind uint8

const (
	KeyInt ArrayKeyKind = iota
	KeyString
	KeyClassConstant // Foo::BAR, resolved by the expander
)

// ArrayKey is the key of a known item. Keys are totally ordered:
// integers < strings < class constants.
type ArrayKey struct {
	Kind     ArrayKeyKind
	Int      int64
	Str      atom.Atom
	Class    atom.Atom
	Constant atom.Atom
}

func IntKey(v int64) ArrayKey        { return ArrayKey{Kind: KeyInt, Int: v} }
func StringKey(s atom.Atom) ArrayKey { return ArrayKey{Kind: KeyString, Str: s} }

func ClassConstantKey(class, constant atom.Atom) ArrayKey {
	return ArrayKey{Kind: KeyClassConstant, Class: class, Constant: constant}
}

// Compare orders keys. String keys compare by atom, which is a stable total
// order within one interner.
func (k ArrayKey) Compare(o ArrayKey) int {
	if k.Kind != o.Kind {
		if k.Kind < o.Kind {
			return -1
		}
		return 1
	}
	switch k.Kind {
	case KeyInt:
		return cmpInt(k.Int, o.Int)
	case KeyString:
		return cmpInt(int64(k.Str), int64(o.Str))
	default:
		if c := cmpInt(int64(k.Class), int64(o.Class)); c != 0 {
			return c
		}
		return cmpInt(int64(k.Constant), int64(o.Constant))
	}
}

func cmpInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Atomic returns the literal type of the key.
func (k ArrayKey) Atomic() Atomic {
	switch k.Kind {
	case KeyInt:
		return IntLit(k.Int)
	case KeyString:
		return StringLit(k.Str)
	default:
		return TMemberReference{Class: k.Class, Member: k.Constant}
	}
}

func (k ArrayKey) Format(in *atom.Interner) string {
	switch k.Kind {
	case KeyInt:
		return strconv.FormatInt(k.Int, 10)
	case KeyString:
		s := in.String(k.Str)
		if isPlainKey(s) {
			return s
		}
		return quote(s)
	default:
		return in.String(k.Class) + "::" + in.String(k.Constant)
	}
}

func isPlainKey(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
