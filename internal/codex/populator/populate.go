// Package populator resolves class hierarchies. Classes are processed level
// by level along a DependencyGraph so that every parent is fully populated
// before any of its children reads it; classes in one level run in parallel.
package populator

import (
	"context"
	"fmt"
	"runtime"
	"strconv"

	"golang.org/x/sync/errgroup"

	"tephra/internal/atom"
	"tephra/internal/codex"
	"tephra/internal/trace"
)

type Options struct {
	Jobs int // <= 0 means GOMAXPROCS
	// OnLevel is called after each level barrier with the level index, the
	// total number of levels and the classes of the level.
	OnLevel func(level, levels int, classes []atom.Atom)
}

type Result struct {
	Levels    int
	Classes   int
	Functions int
	// Cycles lists classes on inheritance cycles; they end up Invalid.
	Cycles []atom.Atom
}

// Populate populates every Unpopulated class-like of cb, then computes
// descendants and expands member signatures. References discovered along the
// way are merged into refs. Only cancellation produces an error.
func Populate(ctx context.Context, cb *codex.CodebaseMetadata, refs *codex.SymbolReferences, opts Options) (*Result, error) {
	tracer := trace.FromContext(ctx)
	span := trace.Begin(tracer, trace.ScopePass, "populate", trace.ParentID(ctx))
	defer span.End("")

	jobs := opts.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}

	pending := atom.NewSet()
	for key, meta := range cb.ClassLikes {
		if meta.State == codex.Unpopulated {
			pending.Add(key)
		}
	}
	g := BuildDependencyGraph(cb, pending)
	cycles := g.Cycles()
	cyclic := atom.NewSet(cycles...)
	if len(cycles) > 0 {
		trace.Point(tracer, trace.ScopePass, "populate_cycles", strconv.Itoa(len(cycles)))
	}

	levels := g.Levels()
	for i, level := range levels {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		lspan := trace.Begin(tracer, trace.ScopePass, fmt.Sprintf("level:%d", i), span.ID())
		// каждый воркер пишет ссылки в свой граф, сливаем после барьера
		local := make([]*codex.SymbolReferences, len(level))

		eg, gctx := errgroup.WithContext(ctx)
		eg.SetLimit(min(jobs, len(level)))
		for j, key := range level {
			eg.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				meta := cb.ClassLikes[key]
				cspan := trace.Begin(tracer, trace.ScopeClass, "class:"+cb.Interner.String(meta.Name), lspan.ID())
				r := codex.NewSymbolReferences()
				populateClass(meta, cb, r, cyclic)
				local[j] = r
				cspan.End(stateNote(meta))
				return nil
			})
		}
		if err := eg.Wait(); err != nil {
			lspan.End("cancelled")
			return nil, err
		}
		for _, r := range local {
			refs.Merge(r)
		}
		lspan.WithExtra("classes", strconv.Itoa(len(level))).End("")
		if opts.OnLevel != nil {
			opts.OnLevel(i, len(levels), level)
		}
	}

	cb.ComputeDescendants()

	functions, err := expandSignatures(ctx, cb, refs, jobs)
	if err != nil {
		return nil, err
	}
	span.WithExtra("levels", strconv.Itoa(len(levels))).WithExtra("classes", strconv.Itoa(g.Len()))
	return &Result{Levels: len(levels), Classes: g.Len(), Functions: functions, Cycles: cycles}, nil
}

func stateNote(meta *codex.ClassLikeMetadata) string {
	if meta.State == codex.Invalid {
		return "invalid"
	}
	if len(meta.InvalidDependencies) > 0 {
		return "partial"
	}
	return ""
}

// populateClass runs every merge for one class. Dependencies that sit on the
// same cycle as meta are skipped: they are not populated yet and may be
// written concurrently.
func populateClass(meta *codex.ClassLikeMetadata, cb *codex.CodebaseMetadata, refs *codex.SymbolReferences, cyclic atom.Set) {
	meta.State = codex.Populating
	registerOwnMembers(meta)

	inCycle := cyclic.Has(meta.Key)
	merge := func(name atom.Atom, fn func(*codex.ClassLikeMetadata, *codex.CodebaseMetadata, atom.Atom, *codex.SymbolReferences)) {
		if name == atom.Empty {
			return
		}
		if key := cb.Interner.Lower(name); inCycle && cyclic.Has(key) {
			refs.AddSignatureReference(codex.TopLevel(meta.Key), codex.TopLevel(key))
			return
		}
		fn(meta, cb, name, refs)
	}

	for _, t := range meta.UsedTraits {
		merge(t, MergeFromTrait)
	}
	merge(meta.DirectParentClass, MergeFromParentClassLike)
	for _, i := range meta.DirectParentInterfaces {
		merge(i, MergeInterfaceFromParentInterface)
	}
	for _, r := range meta.RequireExtends {
		merge(r, MergeFromRequiredClassLike)
	}
	for _, r := range meta.RequireImplements {
		merge(r, MergeFromRequiredClassLike)
	}
	for _, name := range sortedAtoms(meta.ImportedTypeAliases) {
		from := meta.ImportedTypeAliases[name].From
		refs.AddSignatureReference(codex.TopLevel(meta.Key), codex.TopLevel(from))
		if _, ok := cb.ClassLikes[from]; !ok {
			meta.AddInvalidDependency(from)
		}
	}

	if inCycle {
		meta.State = codex.Invalid
		return
	}
	meta.State = codex.Populated
}

// registerOwnMembers makes the class the declaring and appearing home of
// the methods and properties written in its body.
func registerOwnMembers(meta *codex.ClassLikeMetadata) {
	for _, key := range sortedAtoms(meta.Methods) {
		m := meta.Methods[key]
		id := codex.MethodIdentifier{Class: meta.Key, Method: key}
		meta.DeclaringMethodIDs[key] = id
		meta.AppearingMethodIDs[key] = id
		if m.Visibility != codex.Private || meta.IsTrait() {
			meta.InheritableMethodIDs[key] = id
		}
		meta.AddPotentialDeclaringMethod(key, meta.Key)
	}
	for _, name := range sortedAtoms(meta.Properties) {
		p := meta.Properties[name]
		meta.DeclaringPropertyIDs[name] = meta.Key
		meta.AppearingPropertyIDs[name] = meta.Key
		if p.Visibility != codex.Private || meta.IsTrait() {
			meta.InheritablePropertyIDs[name] = meta.Key
		}
	}
}
