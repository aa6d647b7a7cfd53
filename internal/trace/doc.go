// Package trace is the logging layer of tephra: structured, leveled events
// emitted by the driver, the population engine, the incremental engine and the
// analyzer.
//
// # Levels
//
//   - LevelOff: nothing
//   - LevelError: only Warn events (degraded paths such as an aborted cascade)
//   - LevelPhase: driver and pass boundaries
//   - LevelDetail: population levels, analysis units
//   - LevelDebug: everything
//
// # Usage
//
//	tephra analyze --trace=- --trace-level=phase stubs/
//
// Tracers travel in the context:
//
//	ctx = trace.WithTracer(ctx, tracer)
//	span := trace.Begin(trace.FromContext(ctx), trace.ScopePass, "populate", trace.ParentID(ctx))
//	defer span.End("")
//	ctx = trace.WithParent(ctx, span)
package trace
