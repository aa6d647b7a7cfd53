// Package incremental decides which symbols of a run can reuse the results of
// the previous one. A run's file signatures are diffed against the previous
// codebase; the previous reference graph spreads every change to the symbols
// that depend on it; what stays untouched is marked safe and skipped by the
// analyzer.
package incremental

import (
	"cmp"
	"context"
	"errors"
	"maps"
	"slices"

	"tephra/internal/codex"
	"tephra/internal/diag"
)

// ErrNoState means there is nothing to diff against: the first run, a wiped
// cache or a state written by an incompatible version.
var ErrNoState = errors.New("no previous analysis state")

// State is what a run leaves for the next one. Every atom inside Metadata,
// References and Issues is valid for an interner restored from Strings.
type State struct {
	Strings    []string
	Metadata   *codex.CodebaseMetadata
	References *codex.SymbolReferences
	// Issues holds the diagnostics each analyzed symbol produced.
	Issues map[codex.SymbolKey][]diag.Record
}

// Store keeps the previous State between runs.
type Store interface {
	// Load returns ErrNoState when there is nothing usable.
	Load(ctx context.Context) (*State, error)
	Save(ctx context.Context, st *State) error
}

// SymbolIssues is the persisted form of one Issues entry.
type SymbolIssues struct {
	Symbol  codex.SymbolKey `msgpack:"sym"`
	Records []diag.Record   `msgpack:"issues"`
}

// FlattenIssues lists issues in symbol order.
func FlattenIssues(issues map[codex.SymbolKey][]diag.Record) []SymbolIssues {
	keys := slices.SortedFunc(maps.Keys(issues), func(a, b codex.SymbolKey) int {
		if c := cmp.Compare(a.Symbol, b.Symbol); c != 0 {
			return c
		}
		return cmp.Compare(a.Member, b.Member)
	})
	out := make([]SymbolIssues, 0, len(keys))
	for _, k := range keys {
		out = append(out, SymbolIssues{Symbol: k, Records: issues[k]})
	}
	return out
}

func unflattenIssues(list []SymbolIssues) map[codex.SymbolKey][]diag.Record {
	out := make(map[codex.SymbolKey][]diag.Record, len(list))
	for _, si := range list {
		out[si.Symbol] = si.Records
	}
	return out
}
