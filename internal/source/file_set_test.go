package source

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFileSetResolveAndOffset(t *testing.T) {
	fs := NewFileSet()
	id := fs.AddVirtual("a.yaml", []byte("one\ntwo\nthree"))
	f := fs.Get(id)

	cases := []struct {
		pos  LineCol
		want uint32
	}{
		{LineCol{Line: 1, Col: 1}, 0},
		{LineCol{Line: 2, Col: 1}, 4},
		{LineCol{Line: 2, Col: 3}, 6},
		{LineCol{Line: 3, Col: 2}, 9},
		{LineCol{Line: 9, Col: 1}, 13},
	}
	for _, tc := range cases {
		if got := f.Offset(tc.pos); got != tc.want {
			t.Fatalf("Offset(%+v) = %d, want %d", tc.pos, got, tc.want)
		}
	}

	start, end := fs.Resolve(Span{File: id, Start: 4, End: 7})
	if start != (LineCol{Line: 2, Col: 1}) {
		t.Fatalf("start = %+v", start)
	}
	if end != (LineCol{Line: 2, Col: 4}) {
		t.Fatalf("end = %+v", end)
	}
	start, _ = fs.Resolve(Span{File: id, Start: 10, End: 10})
	if start != (LineCol{Line: 3, Col: 3}) {
		t.Fatalf("start on last line = %+v", start)
	}

	if got := f.GetLine(2); got != "two" {
		t.Fatalf("GetLine(2) = %q", got)
	}
	if got := f.GetLine(3); got != "three" {
		t.Fatalf("GetLine(3) = %q", got)
	}
	if got := f.GetLine(4); got != "" {
		t.Fatalf("GetLine(4) = %q", got)
	}
}

func TestFileSetLoadNormalizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stub.yaml")
	if err := os.WriteFile(path, []byte("\xEF\xBB\xBFa: 1\r\nb: 2\r\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	fs := NewFileSet()
	id, err := fs.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	f := fs.Get(id)
	if string(f.Content) != "a: 1\nb: 2\n" {
		t.Fatalf("content = %q", f.Content)
	}
	if f.Flags&FileHadBOM == 0 || f.Flags&FileNormalizedCRLF == 0 {
		t.Fatalf("flags = %b", f.Flags)
	}

	again := fs.Add(path, []byte("c: 3\n"), 0)
	latest, ok := fs.GetByPath(path)
	if !ok || latest.ID != again {
		t.Fatal("GetByPath must return the latest version")
	}
	if len(fs.Latest()) != 1 {
		t.Fatalf("Latest = %d files, want 1", len(fs.Latest()))
	}
	if latest.Hash == f.Hash {
		t.Fatal("different content, same digest")
	}
}

func TestSpanCover(t *testing.T) {
	a := Span{File: 1, Start: 5, End: 8}
	b := Span{File: 1, Start: 2, End: 6}
	if got := a.Cover(b); got != (Span{File: 1, Start: 2, End: 8}) {
		t.Fatalf("Cover = %v", got)
	}
	if got := a.Cover(Span{File: 2, Start: 0, End: 100}); got != a {
		t.Fatalf("Cover across files must be a no-op, got %v", got)
	}
}
