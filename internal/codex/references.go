package codex

import (
	"cmp"
	"fmt"
	"iter"
	"slices"

	"fortio.org/safecast"
	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hashicorp/go-set/v3"
	"github.com/vmihailenco/msgpack/v5"

	"tephra/internal/atom"
)

// edgeSet maps a referenced symbol to its referencers.
type edgeSet map[SymbolKey]*set.Set[SymbolKey]

func (e edgeSet) add(referenced, referencing SymbolKey) bool {
	s, ok := e[referenced]
	if !ok {
		s = set.New[SymbolKey](2)
		e[referenced] = s
	}
	return s.Insert(referencing)
}

// from iterates the referencers of k.
func (e edgeSet) from(k SymbolKey) iter.Seq[SymbolKey] {
	if s, ok := e[k]; ok {
		return s.Items()
	}
	return func(func(SymbolKey) bool) {}
}

// SymbolReferences maps each referenced symbol to the symbols that use it.
// Signature references cascade transitively during invalidation; body
// references only invalidate the referencing body.
type SymbolReferences struct {
	signature edgeSet
	body      edgeSet
}

func NewSymbolReferences() *SymbolReferences {
	return &SymbolReferences{signature: edgeSet{}, body: edgeSet{}}
}

// AddSignatureReference records that referencing's signature mentions referenced.
func (r *SymbolReferences) AddSignatureReference(referencing, referenced SymbolKey) {
	if referencing == referenced {
		return
	}
	r.signature.add(referenced, referencing)
}

// AddBodyReference records that referencing's body uses referenced.
func (r *SymbolReferences) AddBodyReference(referencing, referenced SymbolKey) {
	if referencing == referenced {
		return
	}
	r.body.add(referenced, referencing)
}

// AddReference dispatches on inSignature.
func (r *SymbolReferences) AddReference(referencing, referenced SymbolKey, inSignature bool) {
	if inSignature {
		r.AddSignatureReference(referencing, referenced)
	} else {
		r.AddBodyReference(referencing, referenced)
	}
}

// Merge adds every edge of o.
func (r *SymbolReferences) Merge(o *SymbolReferences) {
	if o == nil {
		return
	}
	for to, froms := range o.signature {
		for from := range froms.Items() {
			r.signature.add(to, from)
		}
	}
	for to, froms := range o.body {
		for from := range froms.Items() {
			r.body.add(to, from)
		}
	}
}

// Len returns the number of signature and body edges.
func (r *SymbolReferences) Len() (sig, body int) {
	for _, s := range r.signature {
		sig += s.Size()
	}
	for _, s := range r.body {
		body += s.Size()
	}
	return sig, body
}

// HighestAtom returns the largest atom named by any edge.
func (r *SymbolReferences) HighestAtom() atom.Atom {
	top := atom.Empty
	for _, e := range []edgeSet{r.signature, r.body} {
		for to, froms := range e {
			top = max(top, to.Symbol, to.Member)
			for from := range froms.Items() {
				top = max(top, from.Symbol, from.Member)
			}
		}
	}
	return top
}

func sortedKeys(keys iter.Seq[SymbolKey]) []SymbolKey {
	return slices.SortedFunc(keys, compareKeys)
}

func compareKeys(a, b SymbolKey) int {
	if c := cmp.Compare(a.Symbol, b.Symbol); c != 0 {
		return c
	}
	return cmp.Compare(a.Member, b.Member)
}

// SignatureReferencers returns who mentions k in a signature.
func (r *SymbolReferences) SignatureReferencers(k SymbolKey) []SymbolKey {
	return sortedKeys(r.signature.from(k))
}

// BodyReferencers returns whose bodies use k.
func (r *SymbolReferences) BodyReferencers(k SymbolKey) []SymbolKey {
	return sortedKeys(r.body.from(k))
}

// InvalidSymbols expands changed into everything that must be re-analyzed:
// signature referencers transitively, then body referencers of the result
// one hop. It gives up, returning ok=false, once more than budget steps
// were taken; a budget <= 0 means unbounded. partial holds the classes
// that have at least one invalid member.
func (r *SymbolReferences) InvalidSymbols(changed []SymbolKey, budget int) (invalid *set.Set[SymbolKey], partial atom.Set, ok bool) {
	index := make(map[SymbolKey]uint32, len(changed)*2)
	id := func(k SymbolKey) uint32 {
		if v, ok := index[k]; ok {
			return v
		}
		v, err := safecast.Conv[uint32](len(index))
		if err != nil {
			panic(fmt.Errorf("symbol index overflow: %w", err))
		}
		index[k] = v
		return v
	}

	visited := roaring.New()
	invalid = set.New[SymbolKey](len(changed))
	queue := make([]SymbolKey, 0, len(changed))
	for _, k := range changed {
		if visited.CheckedAdd(id(k)) {
			invalid.Insert(k)
			queue = append(queue, k)
		}
	}

	steps := 0
	over := func() bool {
		steps++
		return budget > 0 && steps > budget
	}
	for len(queue) > 0 {
		k := queue[0]
		queue = queue[1:]
		if over() {
			return nil, atom.Set{}, false
		}
		for ref := range r.signature.from(k) {
			if visited.CheckedAdd(id(ref)) {
				invalid.Insert(ref)
				queue = append(queue, ref)
			}
		}
	}

	for _, k := range invalid.Slice() {
		for ref := range r.body.from(k) {
			if over() {
				return nil, atom.Set{}, false
			}
			invalid.Insert(ref)
		}
	}

	partial = atom.NewSet()
	for k := range invalid.Items() {
		if k.IsMember() {
			partial.Add(k.Symbol)
		}
	}
	return invalid, partial, true
}

// CopySafeReferences carries over edges of old whose referencing symbol is
// safe: those symbols are not re-analyzed, so their edges are not recorded
// again.
func (r *SymbolReferences) CopySafeReferences(old *SymbolReferences, isSafe func(SymbolKey) bool) int {
	if old == nil {
		return 0
	}
	n := 0
	copyEdges := func(dst, src edgeSet) {
		for to, froms := range src {
			for from := range froms.Items() {
				if isSafe(from) && dst.add(to, from) {
					n++
				}
			}
		}
	}
	copyEdges(r.signature, old.signature)
	copyEdges(r.body, old.body)
	return n
}

var (
	_ msgpack.CustomEncoder = (*SymbolReferences)(nil)
	_ msgpack.CustomDecoder = (*SymbolReferences)(nil)
)

// flatten lists edges as referenced.Symbol, referenced.Member,
// referencing.Symbol, referencing.Member quadruples in sorted order.
func flatten(e edgeSet) []uint32 {
	tos := make([]SymbolKey, 0, len(e))
	for to := range e {
		tos = append(tos, to)
	}
	slices.SortFunc(tos, compareKeys)
	out := make([]uint32, 0, len(e)*8)
	for _, to := range tos {
		for _, from := range sortedKeys(e.from(to)) {
			out = append(out, uint32(to.Symbol), uint32(to.Member), uint32(from.Symbol), uint32(from.Member))
		}
	}
	return out
}

func unflatten(flat []uint32) (edgeSet, error) {
	if len(flat)%4 != 0 {
		return nil, fmt.Errorf("reference table has %d entries, not a multiple of 4", len(flat))
	}
	e := edgeSet{}
	for i := 0; i < len(flat); i += 4 {
		to := SymbolKey{Symbol: atom.Atom(flat[i]), Member: atom.Atom(flat[i+1])}
		from := SymbolKey{Symbol: atom.Atom(flat[i+2]), Member: atom.Atom(flat[i+3])}
		e.add(to, from)
	}
	return e, nil
}

type referenceTable struct {
	Signature []uint32 `msgpack:"sig"`
	Body      []uint32 `msgpack:"body"`
}

func (r *SymbolReferences) EncodeMsgpack(enc *msgpack.Encoder) error {
	return enc.Encode(referenceTable{Signature: flatten(r.signature), Body: flatten(r.body)})
}

func (r *SymbolReferences) DecodeMsgpack(dec *msgpack.Decoder) error {
	var raw referenceTable
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	sig, err := unflatten(raw.Signature)
	if err != nil {
		return err
	}
	body, err := unflatten(raw.Body)
	if err != nil {
		return err
	}
	r.signature, r.body = sig, body
	return nil
}
