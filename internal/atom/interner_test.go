package atom

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/vmihailenco/msgpack/v5"
)

func TestInternerBasic(t *testing.T) {
	in := NewInterner()

	// Empty зарезервирован под пустую строку
	if s, ok := in.Lookup(Empty); !ok || s != "" {
		t.Fatalf("Empty must map to \"\", got %q ok=%v", s, ok)
	}

	a := in.Intern("Foo")
	if a == Empty {
		t.Fatal("non-empty string interned as Empty")
	}
	if b := in.Intern("Foo"); a != b {
		t.Fatalf("same string, different atoms: %d != %d", a, b)
	}
	if c := in.InternBytes([]byte("Foo")); c != a {
		t.Fatalf("InternBytes disagrees with Intern: %d != %d", c, a)
	}
	if in.Intern("Bar") == a {
		t.Fatal("different strings share an atom")
	}
	if in.Len() != 3 {
		t.Fatalf("Len = %d, want 3", in.Len())
	}
	if in.Has(Atom(9999)) {
		t.Fatal("Has accepted a foreign atom")
	}
}

func TestInternerMustLookupPanics(t *testing.T) {
	in := NewInterner()
	defer func() {
		if recover() == nil {
			t.Fatal("MustLookup must panic on a foreign atom")
		}
	}()
	in.MustLookup(Atom(42))
}

func TestInternerLowerFolds(t *testing.T) {
	in := NewInterner()
	upper := in.Intern("App\\Models\\User")
	lower := in.Intern("app\\models\\user")

	if got := in.Lower(upper); got != lower {
		t.Fatalf("Lower(%q) = %q, want %q", in.String(upper), in.String(got), in.String(lower))
	}
	if in.Lower(lower) != lower {
		t.Fatal("Lower must be idempotent")
	}
	if in.InternLower("APP\\MODELS\\USER") != lower {
		t.Fatal("InternLower must fold before lookup")
	}
}

func TestInternerSnapshotRestore(t *testing.T) {
	in := NewInterner()
	foo := in.Intern("foo")
	bar := in.Intern("bar")

	snap := in.Snapshot()
	snap[1] = "mutated"
	if s := in.MustLookup(foo); s != "foo" {
		t.Fatalf("Snapshot must be a copy, interner now reports %q", s)
	}

	restored, err := NewInternerFromSnapshot(in.Snapshot())
	if err != nil {
		t.Fatal(err)
	}
	if restored.MustLookup(foo) != "foo" || restored.MustLookup(bar) != "bar" {
		t.Fatal("restored interner lost atoms")
	}
	if restored.Intern("bar") != bar {
		t.Fatal("restored interner re-assigned an existing string")
	}
	if next := restored.Intern("baz"); next != Atom(3) {
		t.Fatalf("new atom after restore = %d, want 3", next)
	}
}

func TestInternerBadSnapshot(t *testing.T) {
	if _, err := NewInternerFromSnapshot([]string{"bogus"}); !errors.Is(err, ErrBadSnapshot) {
		t.Fatalf("err = %v, want ErrBadSnapshot", err)
	}
	in, err := NewInternerFromSnapshot(nil)
	if err != nil {
		t.Fatal(err)
	}
	if in.Len() != 1 {
		t.Fatalf("empty snapshot restored %d strings, want 1", in.Len())
	}
}

func TestInternerConcurrent(t *testing.T) {
	in := NewInterner()
	const workers = 32
	const perWorker = 200

	var wg sync.WaitGroup
	results := make([][]Atom, workers)
	for w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out := make([]Atom, perWorker)
			for i := range perWorker {
				out[i] = in.Intern(fmt.Sprintf("Sym%d", i))
				in.Lower(out[i])
			}
			results[w] = out
		}()
	}
	wg.Wait()

	for w := 1; w < workers; w++ {
		for i := range perWorker {
			if results[w][i] != results[0][i] {
				t.Fatalf("worker %d got atom %d for Sym%d, worker 0 got %d", w, results[w][i], i, results[0][i])
			}
		}
	}
	// "" + Sym0..Sym199 + sym0..sym199
	if in.Len() != 1+2*perWorker {
		t.Fatalf("Len = %d, want %d", in.Len(), 1+2*perWorker)
	}
}

func TestSetSorted(t *testing.T) {
	s := NewSet(5, 1, 3)
	s.Add(2)
	s.Remove(5)
	got := s.Sorted()
	want := []Atom{1, 2, 3}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("Sorted = %v, want %v", got, want)
	}
	if !s.Has(2) || s.Has(5) {
		t.Fatal("membership mismatch")
	}
}

func TestZeroSetIsEmpty(t *testing.T) {
	var s Set
	if !s.IsZero() || s.Len() != 0 || s.Has(1) || s.Sorted() != nil {
		t.Fatal("zero Set must read as empty")
	}
	for range s.All() {
		t.Fatal("zero Set must not yield members")
	}
	c := s.Clone()
	c.Add(4)
	if !c.Has(4) || c.IsZero() {
		t.Fatal("clone of zero Set must be writable")
	}
}

func TestSetCloneAndAddAll(t *testing.T) {
	a := NewSet(1, 2)
	b := a.Clone()
	b.Add(3)
	if a.Has(3) {
		t.Fatal("clone shares storage with the original")
	}
	a.AddAll(NewSet(7, 8))
	a.AddAll(Set{})
	if fmt.Sprint(a.Sorted()) != "[1 2 7 8]" {
		t.Fatalf("AddAll = %v", a.Sorted())
	}
}

func TestSetMsgpack(t *testing.T) {
	type holder struct {
		Parents Set          `msgpack:"parents"`
		ByName  map[Atom]Set `msgpack:"by_name"`
	}
	in := holder{Parents: NewSet(9, 3, 5), ByName: map[Atom]Set{1: NewSet(2)}}
	raw, err := msgpack.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out holder
	if err := msgpack.Unmarshal(raw, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if fmt.Sprint(out.Parents.Sorted()) != "[3 5 9]" {
		t.Fatalf("Parents = %v", out.Parents.Sorted())
	}
	if !out.ByName[1].Has(2) {
		t.Fatal("map of sets lost its members")
	}
	again, err := msgpack.Marshal(out)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(again) != string(raw) {
		t.Fatal("equal sets must encode to equal bytes")
	}
}
