package atom

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"fortio.org/safecast"
	"golang.org/x/text/cases"
)

// Atom is an interned string handle. Equality of atoms is equality of strings.
type Atom uint32

// Empty is the atom of "".
const Empty Atom = 0

// Interner maps strings to atoms and back. It is safe for concurrent use;
// atoms are never evicted, so a handle stays valid for the interner lifetime.
type Interner struct {
	mu    sync.RWMutex
	byID  []string      // byID[0] = "" для Empty
	index map[string]Atom
	lower map[Atom]Atom // кэш свёрнутых по регистру атомов
	fold  cases.Caser
}

func NewInterner() *Interner {
	return &Interner{
		byID:  []string{""},
		index: map[string]Atom{"": Empty},
		lower: map[Atom]Atom{Empty: Empty},
		fold:  cases.Fold(),
	}
}

// ErrBadSnapshot is returned for a snapshot whose first string is not "".
var ErrBadSnapshot = errors.New("atom snapshot must start with the empty string")

// NewInternerFromSnapshot restores an interner so that every atom recorded in
// the snapshot keeps its numeric value.
func NewInternerFromSnapshot(snapshot []string) (*Interner, error) {
	in := NewInterner()
	if len(snapshot) == 0 {
		return in, nil
	}
	if snapshot[0] != "" {
		return nil, ErrBadSnapshot
	}
	in.byID = make([]string, 0, len(snapshot))
	in.index = make(map[string]Atom, len(snapshot))
	for i, s := range snapshot {
		in.byID = append(in.byID, s)
		if _, dup := in.index[s]; !dup {
			in.index[s] = toAtom(i)
		}
	}
	return in, nil
}

func toAtom(i int) Atom {
	a, err := safecast.Conv[Atom](i)
	if err != nil {
		panic(fmt.Errorf("atom overflow: %w", err))
	}
	return a
}

// Intern returns the atom for s, adding it if needed.
func (in *Interner) Intern(s string) Atom {
	in.mu.RLock()
	id, ok := in.index[s]
	in.mu.RUnlock()
	if ok {
		return id
	}

	in.mu.Lock()
	defer in.mu.Unlock()
	if id, ok := in.index[s]; ok {
		return id
	}
	// собственная копия, чтобы не держать исходный буфер
	cpy := string([]byte(s))
	id = toAtom(len(in.byID))
	in.byID = append(in.byID, cpy)
	in.index[cpy] = id
	return id
}

// InternBytes interns the string held in b.
func (in *Interner) InternBytes(b []byte) Atom {
	return in.Intern(string(b))
}

// Lookup returns the string of a, or false if a was not produced by this interner.
func (in *Interner) Lookup(a Atom) (string, bool) {
	in.mu.RLock()
	defer in.mu.RUnlock()
	if int(a) >= len(in.byID) {
		return "", false
	}
	return in.byID[a], true
}

// MustLookup is Lookup that panics on foreign atoms.
func (in *Interner) MustLookup(a Atom) string {
	s, ok := in.Lookup(a)
	if !ok {
		panic(fmt.Sprintf("invalid atom %d", a))
	}
	return s
}

// String is MustLookup without the panic: unknown atoms render as "#<id>".
func (in *Interner) String(a Atom) string {
	if s, ok := in.Lookup(a); ok {
		return s
	}
	return fmt.Sprintf("#%d", a)
}

// Has reports whether a is valid for this interner.
func (in *Interner) Has(a Atom) bool {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return int(a) < len(in.byID)
}

// Len returns the number of interned strings, Empty included.
func (in *Interner) Len() int {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return len(in.byID)
}

// Snapshot returns a copy of every interned string in atom order.
func (in *Interner) Snapshot() []string {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return slices.Clone(in.byID)
}

// Lower returns the case-folded atom of a. Class-like, function and method
// names are compared through Lower.
func (in *Interner) Lower(a Atom) Atom {
	in.mu.RLock()
	l, ok := in.lower[a]
	in.mu.RUnlock()
	if ok {
		return l
	}
	s, ok := in.Lookup(a)
	if !ok {
		return a
	}
	in.mu.Lock()
	folded := in.fold.String(s)
	in.mu.Unlock()

	l = in.Intern(folded)

	in.mu.Lock()
	in.lower[a] = l
	in.lower[l] = l
	in.mu.Unlock()
	return l
}

// InternLower interns s and returns its folded atom.
func (in *Interner) InternLower(s string) Atom {
	return in.Lower(in.Intern(s))
}
