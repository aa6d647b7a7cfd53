package atom

import (
	"iter"
	"slices"

	"github.com/hashicorp/go-set/v3"
	"github.com/vmihailenco/msgpack/v5"
)

// Set is an unordered set of atoms. Use NewSet; the zero Set is empty and
// read-only.
type Set struct {
	items *set.Set[Atom]
}

func NewSet(items ...Atom) Set {
	return Set{items: set.From(items)}
}

func (s Set) Add(a Atom)    { s.items.Insert(a) }
func (s Set) Remove(a Atom) { s.items.Remove(a) }

// IsZero reports whether s was never created by NewSet.
func (s Set) IsZero() bool { return s.items == nil }

func (s Set) Len() int {
	if s.items == nil {
		return 0
	}
	return s.items.Size()
}

func (s Set) Has(a Atom) bool {
	return s.items != nil && s.items.Contains(a)
}

func (s Set) Clone() Set {
	if s.items == nil {
		return NewSet()
	}
	return Set{items: s.items.Copy()}
}

func (s Set) AddAll(other Set) {
	if other.items != nil {
		s.items.InsertSet(other.items)
	}
}

// All iterates the members in no particular order.
func (s Set) All() iter.Seq[Atom] {
	if s.items == nil {
		return func(func(Atom) bool) {}
	}
	return s.items.Items()
}

// Sorted returns the members in ascending atom order.
func (s Set) Sorted() []Atom {
	if s.items == nil {
		return nil
	}
	out := s.items.Slice()
	slices.Sort(out)
	return out
}

var (
	_ msgpack.CustomEncoder = Set{}
	_ msgpack.CustomDecoder = (*Set)(nil)
)

// EncodeMsgpack writes the members as a sorted array so equal sets encode
// to equal bytes.
func (s Set) EncodeMsgpack(enc *msgpack.Encoder) error {
	return enc.Encode(s.Sorted())
}

func (s *Set) DecodeMsgpack(dec *msgpack.Decoder) error {
	var items []Atom
	if err := dec.Decode(&items); err != nil {
		return err
	}
	*s = NewSet(items...)
	return nil
}
