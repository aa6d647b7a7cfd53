// Package diag defines the diagnostic model shared by the scanner, the
// population engine and the analyzer.
//
// # Data model
//
// Diagnostic is the central record:
//
//   - Severity: Info, Warning or Error.
//   - Code: numeric identifier with a stable ID ("ANA3013") and issue name
//     ("InvalidReturnStatement"). Every code has a default severity.
//   - Message: short, human oriented text.
//   - Primary: the source.Span the issue points at.
//   - Notes: optional secondary spans.
//
// Code ranges: 1000 stubs and docblocks, 2000 class hierarchy, 3000 body
// analysis, 4000 I/O and persisted state, 6000 observability.
//
// # Emitting
//
// Producers hold a Reporter. ReportBuilder adds notes before Emit; BagReporter
// stores into a Bag, which supports Sort, Dedup and Merge.
//
// Record is the persisted form used by the incremental engine: it names the
// file by path so diagnostics of skipped symbols can be re-attached to the
// FileSet of a later run.
//
// Rendering lives in internal/diagfmt; FormatShort is the one-line form used
// by tests.
package diag
