// Package driver runs the analysis pipeline over a set of stub files: load,
// decode, scan, populate, fingerprint, diff against the previous run,
// analyze and save the state for the next one.
package driver

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"fortio.org/safecast"

	"tephra/internal/analyzer"
	"tephra/internal/atom"
	"tephra/internal/codex"
	"tephra/internal/codex/populator"
	"tephra/internal/diag"
	"tephra/internal/incremental"
	"tephra/internal/observ"
	"tephra/internal/scan"
	"tephra/internal/signature"
	"tephra/internal/source"
	"tephra/internal/syntax"
	"tephra/internal/trace"
)

// sessionPath names the placeholder file that carries diagnostics without a
// stub location.
const sessionPath = "<session>"

// Options configure a Session.
type Options struct {
	Jobs int // <= 0 means GOMAXPROCS
	// Diff reuses the results of the previous run for unchanged symbols.
	Diff bool
	// StepBudget bounds the invalidation cascade; <= 0 means the default.
	StepBudget             int
	AllowPossiblyUndefined bool
	MaxDiagnostics         int // <= 0 is unlimited

	// Store keeps the state between runs; nil disables persistence.
	Store incremental.Store

	Sink    ProgressSink
	OnPhase PhaseObserver
	// TimingDiagnostic appends the phase report to the diagnostics.
	TimingDiagnostic bool
}

// Session runs the pipeline. Runs are serialized; the incremental state of
// one run feeds the next.
type Session struct {
	mu     sync.Mutex
	opts   Options
	engine *incremental.Engine
	in     *atom.Interner
}

func NewSession(opts Options) *Session {
	return &Session{
		opts:   opts,
		engine: &incremental.Engine{Store: opts.Store, StepBudget: opts.StepBudget},
	}
}

// Result is the outcome of one run.
type Result struct {
	FileSet  *source.FileSet
	Bag      *diag.Bag
	Codebase *codex.CodebaseMetadata
	Timer    *observ.Timer

	Files  []string
	Failed int // files that could not be read or decoded

	// Incremental is set when a previous state was diffed against.
	Incremental bool
	// CascadeAborted is set when the invalidation exceeded the step budget
	// and everything was analyzed.
	CascadeAborted bool
	Changed        int
	Analyzed       int
	Skipped        int
	Levels         int
}

// HasErrors reports whether the run produced an error diagnostic.
func (r *Result) HasErrors() bool {
	return r != nil && r.Bag != nil && r.Bag.HasErrors()
}

// Interner returns the interner of the last run, or nil before the first.
func (s *Session) Interner() *atom.Interner {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.in
}

type run struct {
	s      *Session
	ctx    context.Context
	tracer trace.Tracer
	res    *Result
	rep    diag.Reporter
	anchor source.Span
	failed map[string]bool
}

func (r *run) emit(ev Event) {
	if r.s.opts.Sink != nil {
		r.s.opts.Sink.OnEvent(ev)
	}
}

// phase times fn as one stage of the run.
func (r *run) phase(stage Stage, fn func() (string, error)) error {
	name := string(stage)
	if r.s.opts.OnPhase != nil {
		r.s.opts.OnPhase(PhaseEvent{Name: name, Status: PhaseStart})
	}
	r.emit(Event{Stage: stage, Status: StatusWorking})
	idx := r.res.Timer.Begin(name)
	note, err := fn()
	r.res.Timer.End(idx, note)
	elapsed := r.res.Timer.Elapsed(idx)
	if r.s.opts.OnPhase != nil {
		r.s.opts.OnPhase(PhaseEvent{Name: name, Status: PhaseEnd, Elapsed: elapsed})
	}
	status := StatusDone
	if err != nil {
		status = StatusError
	}
	r.emit(Event{Stage: stage, Status: status, Err: err, Elapsed: elapsed})
	return err
}

func (r *run) fail(path string) {
	r.failed[path] = true
	r.res.Failed++
}

func (r *run) report(code diag.Code, span source.Span, format string, args ...any) {
	diag.Report(r.rep, code, span, fmt.Sprintf(format, args...)).Emit()
}

// Run analyzes the stub files under paths. Problems with single files are
// diagnostics; only a bad path or cancellation fail the run.
func (s *Session) Run(ctx context.Context, paths []string) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	files, err := CollectFiles(ctx, paths)
	if err != nil {
		return nil, err
	}
	return s.runFiles(ctx, files)
}

func (s *Session) runFiles(ctx context.Context, files []string) (*Result, error) {
	tracer := trace.FromContext(ctx)
	span := trace.Begin(tracer, trace.ScopeDriver, "run", trace.ParentID(ctx))
	defer span.End("")
	ctx = trace.WithParent(ctx, span)

	fset := source.NewFileSet()
	bag := diag.NewBag(s.opts.MaxDiagnostics)
	r := &run{
		s:      s,
		ctx:    ctx,
		tracer: tracer,
		rep:    diag.BagReporter{Bag: bag},
		res:    &Result{FileSet: fset, Bag: bag, Timer: observ.NewTimer(), Files: files},
		failed: map[string]bool{},
	}
	r.anchor = fset.Get(fset.AddVirtual(sessionPath, nil)).SpanAt(source.LineCol{Line: 1, Col: 1}, 0)
	for _, f := range files {
		r.emit(Event{File: f, Stage: StageLoad, Status: StatusQueued})
	}

	var prev *incremental.State
	if s.opts.Diff {
		prev = r.loadState()
	}
	in := atom.NewInterner()
	if prev != nil {
		in = prev.Metadata.Interner
	}
	s.in = in
	cb := codex.NewCodebase(in)
	r.res.Codebase = cb

	var loaded []*source.File
	_ = r.phase(StageLoad, func() (string, error) {
		loaded = r.load(files)
		return strconv.Itoa(len(loaded)) + " files", nil
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var units []*analyzer.File
	_ = r.phase(StageDecode, func() (string, error) {
		units = r.decode(loaded)
		return "", nil
	})

	_ = r.phase(StageScan, func() (string, error) {
		sc := scan.New(cb, r.rep)
		for _, u := range units {
			sc.File(u.Source, u.Stub)
		}
		return fmt.Sprintf("%d classes, %d functions", len(cb.ClassLikes), len(cb.Functions)), nil
	})

	refs := codex.NewSymbolReferences()
	err := r.phase(StagePopulate, func() (string, error) {
		pres, err := populator.Populate(ctx, cb, refs, populator.Options{
			Jobs: s.opts.Jobs,
			OnLevel: func(level, levels int, _ []atom.Atom) {
				r.emit(Event{Stage: StagePopulate, Status: StatusWorking})
				trace.Point(tracer, trace.ScopeDriver, "populate_progress", fmt.Sprintf("%d/%d", level+1, levels))
			},
		})
		if err != nil {
			return "", err
		}
		r.res.Levels = pres.Levels
		return fmt.Sprintf("%d levels", pres.Levels), nil
	})
	if err != nil {
		return nil, err
	}

	_ = r.phase(StageSignatures, func() (string, error) {
		for _, u := range units {
			cb.FileSignatures[u.Path] = signature.Build(in, u.Stub, u.Path, u.Source.Content)
		}
		return strconv.Itoa(len(cb.FileSignatures)) + " files", nil
	})

	settings := analyzer.Settings{
		Jobs:                   s.opts.Jobs,
		AllowPossiblyUndefined: s.opts.AllowPossiblyUndefined,
		FileSet:                fset,
	}
	if prev != nil {
		_ = r.phase(StageIncremental, func() (string, error) {
			diff := s.engine.ComputeDiffs(ctx, prev.Metadata, cb)
			r.res.Incremental = true
			r.res.Changed = diff.Changed.Size()
			if !s.engine.MarkSafeSymbols(ctx, diff, prev.References, cb) {
				r.res.CascadeAborted = true
				return "cascade aborted", nil
			}
			settings.Diff = true
			settings.PreviousIssues = prev.Issues
			settings.PreviousReferences = prev.References
			settings.Shifts = diff.Shifts
			return fmt.Sprintf("%d changed", r.res.Changed), nil
		})
	}

	var ares *analyzer.Result
	err = r.phase(StageAnalyze, func() (string, error) {
		var err error
		ares, err = analyzer.Analyze(ctx, cb, units, settings)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d analyzed, %d skipped", ares.Analyzed, ares.Skipped), nil
	})
	if err != nil {
		return nil, err
	}
	r.res.Analyzed, r.res.Skipped = ares.Analyzed, ares.Skipped
	for _, d := range ares.Diagnostics {
		bag.Add(d)
	}

	if s.opts.Store != nil {
		_ = r.phase(StageSave, func() (string, error) {
			refs.Merge(ares.References)
			st := &incremental.State{Strings: in.Snapshot(), Metadata: cb, References: refs, Issues: ares.Issues}
			if err := s.engine.SaveState(ctx, st); err != nil {
				r.report(diag.IOStateWriteError, r.anchor, "%v", err)
				return "", err
			}
			return "", nil
		})
	}

	for _, f := range files {
		if !r.failed[f] {
			r.emit(Event{File: f, Stage: StageSave, Status: StatusDone})
		}
	}

	if s.opts.TimingDiagnostic {
		rep := r.res.Timer.Report()
		appendTimingDiagnostic(bag, r.anchor, timingPayload{Files: len(files), TotalMS: rep.TotalMS, Phases: rep.Phases})
	}
	bag.Dedup()
	bag.Sort()

	span.WithExtra("files", strconv.Itoa(len(files))).
		WithExtra("analyzed", strconv.Itoa(r.res.Analyzed)).
		WithExtra("skipped", strconv.Itoa(r.res.Skipped))
	return r.res, nil
}

// loadState returns the previous state, or nil when the run has to start
// from scratch. An unreadable state is reported and ignored.
func (r *run) loadState() *incremental.State {
	st, err := r.s.engine.LoadPreviousState(r.ctx)
	if err == nil && st.Metadata.Interner == nil {
		var in *atom.Interner
		if in, err = atom.NewInternerFromSnapshot(st.Strings); err == nil {
			st.Metadata.EnsureRuntime(in)
		}
	}
	if err != nil {
		if !errors.Is(err, incremental.ErrNoState) {
			r.report(diag.IOStateReadError, r.anchor, "%v; running a full analysis", err)
			trace.Warn(r.tracer, "state_unreadable", err.Error(), nil)
		}
		return nil
	}
	return st
}

func (r *run) load(files []string) []*source.File {
	fset := r.res.FileSet
	out := make([]*source.File, 0, len(files))
	for _, path := range files {
		start := time.Now()
		id, err := fset.Load(path)
		if err != nil {
			r.fail(path)
			f := fset.Get(fset.AddVirtual(path, nil))
			r.report(diag.IOLoadFileError, f.SpanAt(source.LineCol{Line: 1, Col: 1}, 0), "cannot read %s: %v", path, err)
			r.emit(Event{File: path, Stage: StageLoad, Status: StatusError, Err: err, Elapsed: time.Since(start)})
			continue
		}
		out = append(out, fset.Get(id))
		r.emit(Event{File: path, Stage: StageLoad, Status: StatusWorking, Elapsed: time.Since(start)})
	}
	return out
}

// decode parses every loaded file. A file that does not decode is reported
// as InvalidStub and left out of the run.
func (r *run) decode(files []*source.File) []*analyzer.File {
	in := r.res.Codebase.Interner
	out := make([]*analyzer.File, 0, len(files))
	for _, f := range files {
		start := time.Now()
		stub, err := syntax.Parse(f.Path, f.Content)
		if err != nil {
			r.fail(f.Path)
			pos := source.LineCol{Line: 1, Col: 1}
			var serr *syntax.Error
			if errors.As(err, &serr) {
				line, lerr := safecast.Conv[uint32](serr.Line)
				col, cerr := safecast.Conv[uint32](serr.Col)
				if lerr == nil && cerr == nil && line > 0 && col > 0 {
					pos = source.LineCol{Line: line, Col: col}
				}
			}
			r.report(diag.InvalidStub, f.SpanAt(pos, 1), "%v", err)
			r.emit(Event{File: f.Path, Stage: StageDecode, Status: StatusError, Err: err, Elapsed: time.Since(start)})
			continue
		}
		out = append(out, &analyzer.File{Path: in.Intern(f.Path), Source: f, Stub: stub})
		r.emit(Event{File: f.Path, Stage: StageDecode, Status: StatusWorking, Elapsed: time.Since(start)})
	}
	return out
}
