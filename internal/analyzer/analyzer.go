// Package analyzer runs flow-sensitive type inference over function and
// method bodies of a populated codebase and reports what it finds. Every
// function, method and class declaration is an independent unit; units run
// in parallel and never write to the codebase.
package analyzer

import (
	"cmp"
	"context"
	"errors"
	"runtime"
	"slices"
	"strconv"

	"golang.org/x/sync/errgroup"

	"tephra/internal/atom"
	"tephra/internal/codex"
	"tephra/internal/diag"
	"tephra/internal/source"
	"tephra/internal/syntax"
	"tephra/internal/trace"
)

// ErrNotPopulated is returned when a class-like has not been through the
// populator yet.
var ErrNotPopulated = errors.New("codebase is not populated")

// File is one scanned stub together with its decoded declarations.
type File struct {
	Path   atom.Atom
	Source *source.File
	Stub   *syntax.File
}

// Settings configure an analysis run.
type Settings struct {
	Jobs int // <= 0 means GOMAXPROCS
	// Diff skips units the incremental engine marked safe and reuses their
	// previous issues and references.
	Diff bool
	// AllowPossiblyUndefined silences PossiblyUndefinedVariable.
	AllowPossiblyUndefined bool

	// FileSet resolves spans into detached records for the next run.
	FileSet *source.FileSet

	PreviousIssues     map[codex.SymbolKey][]diag.Record
	PreviousReferences *codex.SymbolReferences
	// Shifts moves reused issues of symbols that moved inside their file.
	Shifts map[codex.SymbolKey]int64
}

// Result is what an analysis run produces.
type Result struct {
	Diagnostics []diag.Diagnostic
	// Issues holds the records of every unit, analyzed or reused, keyed by
	// the unit's symbol.
	Issues map[codex.SymbolKey][]diag.Record
	// References holds body references of analyzed units plus the edges
	// carried over from skipped ones.
	References *codex.SymbolReferences

	Analyzed int
	Skipped  int
}

// unit is one analyzable piece of a file.
type unit struct {
	key  codex.SymbolKey
	file *File

	class  *codex.ClassLikeMetadata
	fn     *codex.FunctionLikeMetadata
	body   syntax.Block
	pos    source.LineCol
	isDecl bool
}

type unitResult struct {
	diags []diag.Diagnostic
	refs  *codex.SymbolReferences
}

// Analyze checks every unit of files against cb. cb must be populated; it is
// only read. Cancellation is the only other error.
func Analyze(ctx context.Context, cb *codex.CodebaseMetadata, files []*File, s Settings) (*Result, error) {
	for _, meta := range cb.ClassLikes {
		if meta.State == codex.Unpopulated || meta.State == codex.Populating {
			return nil, ErrNotPopulated
		}
	}
	tracer := trace.FromContext(ctx)
	span := trace.Begin(tracer, trace.ScopePass, "analyze", trace.ParentID(ctx))
	defer span.End("")

	jobs := s.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}

	units := collectUnits(cb, files)
	res := &Result{
		Issues:     map[codex.SymbolKey][]diag.Record{},
		References: codex.NewSymbolReferences(),
	}

	var todo []*unit
	for _, u := range units {
		if s.Diff && cb.IsSafe(u.key) {
			res.Skipped++
			reuseIssues(res, u.key, &s)
			continue
		}
		todo = append(todo, u)
	}
	if s.Diff {
		res.References.CopySafeReferences(s.PreviousReferences, cb.IsSafe)
	}

	out := make([]unitResult, len(todo))
	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(max(1, min(jobs, len(todo))))
	for i, u := range todo {
		eg.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i] = analyzeUnit(cb, u, &s)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		span.End("cancelled")
		return nil, err
	}

	for i, u := range todo {
		r := out[i]
		res.References.Merge(r.refs)
		res.Diagnostics = append(res.Diagnostics, r.diags...)
		if s.FileSet != nil {
			recs := make([]diag.Record, 0, len(r.diags))
			for _, d := range r.diags {
				recs = append(recs, diag.ToRecord(s.FileSet, d))
			}
			if len(recs) > 0 {
				res.Issues[u.key] = recs
			}
		}
	}
	res.Analyzed = len(todo)
	sortDiagnostics(res.Diagnostics)

	span.WithExtra("analyzed", strconv.Itoa(res.Analyzed)).
		WithExtra("skipped", strconv.Itoa(res.Skipped)).
		WithExtra("issues", strconv.Itoa(len(res.Diagnostics)))
	return res, nil
}

// reuseIssues attaches the previous records of a skipped unit to the current
// file set, moved by the unit's line shift.
func reuseIssues(res *Result, key codex.SymbolKey, s *Settings) {
	recs := s.PreviousIssues[key]
	if len(recs) == 0 {
		return
	}
	delta := s.Shifts[key]
	kept := make([]diag.Record, 0, len(recs))
	for _, r := range recs {
		if delta != 0 {
			r = r.Shift(delta)
		}
		kept = append(kept, r)
		if s.FileSet == nil {
			continue
		}
		if d, ok := r.Attach(s.FileSet); ok {
			res.Diagnostics = append(res.Diagnostics, d)
		}
	}
	res.Issues[key] = kept
}

func sortDiagnostics(ds []diag.Diagnostic) {
	slices.SortStableFunc(ds, func(a, b diag.Diagnostic) int {
		if c := cmp.Compare(a.Primary.File, b.Primary.File); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Primary.Start, b.Primary.Start); c != 0 {
			return c
		}
		return cmp.Compare(a.Code, b.Code)
	})
}

// collectUnits lists the units of files in declaration order: a declaration
// unit per class-like, a unit per method or function with a body.
func collectUnits(cb *codex.CodebaseMetadata, files []*File) []*unit {
	in := cb.Interner
	var out []*unit
	for _, f := range files {
		if f == nil || f.Stub == nil {
			continue
		}
		for _, d := range f.Stub.Functions {
			key := in.InternLower(trimName(d.Name))
			fn := cb.Functions[key]
			if fn == nil || fn.Location.File != f.Path || len(d.Body) == 0 {
				continue
			}
			out = append(out, &unit{key: codex.TopLevel(key), file: f, fn: fn, body: d.Body, pos: d.Pos()})
		}
		for _, d := range f.Stub.Classes {
			key := in.InternLower(trimName(d.Name))
			meta := cb.ClassLikes[key]
			if meta == nil || meta.Location.File != f.Path {
				continue
			}
			out = append(out, &unit{key: codex.TopLevel(key), file: f, class: meta, pos: d.Pos(), isDecl: true})
			for _, m := range d.Methods {
				mkey := in.InternLower(m.Name)
				fn := meta.Methods[mkey]
				if fn == nil || len(m.Body) == 0 {
					continue
				}
				out = append(out, &unit{key: codex.Member(key, mkey), file: f, class: meta, fn: fn, body: m.Body, pos: m.Pos()})
			}
		}
	}
	return out
}

func analyzeUnit(cb *codex.CodebaseMetadata, u *unit, s *Settings) unitResult {
	bag := diag.NewBag(0)
	a := &analyzer{
		cb:       cb,
		in:       cb.Interner,
		unit:     u,
		settings: s,
		reporter: diag.BagReporter{Bag: bag},
		refs:     codex.NewSymbolReferences(),
	}
	if u.isDecl {
		a.checkDeclaration()
	} else {
		a.analyzeBody()
	}
	return unitResult{diags: bag.Items(), refs: a.refs}
}
