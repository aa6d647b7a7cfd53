package incremental

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"tephra/internal/codex"
	"tephra/internal/trace"
)

// DefaultStepBudget bounds the invalidation cascade.
const DefaultStepBudget = 5000

// Engine runs the incremental cycle: load the previous state, diff, mark safe
// symbols, save the new state.
type Engine struct {
	Store Store
	// StepBudget bounds the invalidation cascade; <= 0 means DefaultStepBudget.
	StepBudget int
	Tracer     trace.Tracer
}

func (e *Engine) budget() int {
	if e.StepBudget <= 0 {
		return DefaultStepBudget
	}
	return e.StepBudget
}

func (e *Engine) tracer(ctx context.Context) trace.Tracer {
	if e.Tracer != nil {
		return e.Tracer
	}
	return trace.FromContext(ctx)
}

// LoadPreviousState returns the state of the previous run, or ErrNoState
// when a full run is needed. Read failures other than a missing state are
// returned wrapped so the caller can report them before falling back.
func (e *Engine) LoadPreviousState(ctx context.Context) (*State, error) {
	if e.Store == nil {
		return nil, ErrNoState
	}
	st, err := e.Store.Load(ctx)
	if err != nil {
		if errors.Is(err, ErrNoState) {
			trace.Point(e.tracer(ctx), trace.ScopePass, "incremental_state", "none")
			return nil, ErrNoState
		}
		return nil, fmt.Errorf("load analysis state: %w", err)
	}
	if st == nil || st.Metadata == nil || st.References == nil {
		return nil, ErrNoState
	}
	trace.Point(e.tracer(ctx), trace.ScopePass, "incremental_state", "loaded")
	return st, nil
}

// ComputeDiffs is the package-level ComputeDiffs traced as a pass.
func (e *Engine) ComputeDiffs(ctx context.Context, old, cur *codex.CodebaseMetadata) *CodebaseDiff {
	span := trace.Begin(e.tracer(ctx), trace.ScopePass, "compute_diffs", trace.ParentID(ctx))
	d := ComputeDiffs(old, cur)
	keep, changed := d.Len()
	if old != nil {
		span.WithExtra("files_changed", strconv.Itoa(changedFiles(old, cur)))
	}
	span.WithExtra("keep", strconv.Itoa(keep)).WithExtra("changed", strconv.Itoa(changed)).End("")
	return d
}

// MarkSafeSymbols marks every kept symbol that the cascade from diff.Changed
// through oldRefs does not reach: top-level symbols go to cb.SafeSymbols
// unless one of their members is invalid, members go to
// cb.SafeSymbolMembers. When the cascade exceeds the step budget nothing is
// marked and false is returned; the caller then analyzes everything.
func (e *Engine) MarkSafeSymbols(ctx context.Context, diff *CodebaseDiff, oldRefs *codex.SymbolReferences, cb *codex.CodebaseMetadata) bool {
	tracer := e.tracer(ctx)
	span := trace.Begin(tracer, trace.ScopePass, "mark_safe_symbols", trace.ParentID(ctx))
	if oldRefs == nil {
		oldRefs = codex.NewSymbolReferences()
	}

	invalid, partial, ok := oldRefs.InvalidSymbols(diff.ChangedSorted(), e.budget())
	if !ok {
		trace.Warn(tracer, "cascade_aborted", "invalidation exceeded the step budget, running a full analysis", map[string]string{
			"budget":  strconv.Itoa(e.budget()),
			"changed": strconv.Itoa(diff.Changed.Size()),
		})
		span.End("aborted")
		return false
	}

	safe, members := 0, 0
	for k := range diff.Keep.Items() {
		if invalid.Contains(k) {
			continue
		}
		if k.IsMember() {
			cb.SafeSymbolMembers.Insert(k)
			members++
			continue
		}
		if partial.Has(k.Symbol) {
			continue
		}
		cb.SafeSymbols.Add(k.Symbol)
		safe++
	}
	span.WithExtra("invalid", strconv.Itoa(invalid.Size())).
		WithExtra("safe", strconv.Itoa(safe)).
		WithExtra("safe_members", strconv.Itoa(members)).
		End("")
	return true
}

// SaveState stores st as the previous state of the next run.
func (e *Engine) SaveState(ctx context.Context, st *State) error {
	if e.Store == nil {
		return nil
	}
	span := trace.Begin(e.tracer(ctx), trace.ScopePass, "save_state", trace.ParentID(ctx))
	defer span.End("")
	if err := e.Store.Save(ctx, st); err != nil {
		return fmt.Errorf("save analysis state: %w", err)
	}
	return nil
}
