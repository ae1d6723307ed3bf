// Package trace records what the FFI runtime does: library loads, function
// binding and individual native calls.
//
// # Usage
//
//	dffi call --trace=- --trace-level=debug libm.so.6 cos 'double (double)' 1.0
//
// # Tracers
//
//   - Nop: no-op tracer used when tracing is off
//   - StreamTracer: writes each event as it happens
//   - RingTracer: keeps the last N events for dumps after a failure
//   - MultiTracer: fans out to several tracers
//
// # Levels and scopes
//
// Each event carries a Scope; the Level decides which scopes are recorded.
//
//   - LevelPhase: runtime setup and library loads (ScopeRuntime, ScopeLoad)
//   - LevelDetail: adds function binding (ScopeBind)
//   - LevelDebug: adds every native call (ScopeCall)
//
// # Context propagation
//
//	ctx = trace.WithTracer(ctx, tracer)
//	ctx, span := trace.Start(ctx, nil, trace.ScopeLoad, "load descriptions")
//	defer span.End("")
//
// Spans opened through Start nest under the span already in ctx.
package trace
