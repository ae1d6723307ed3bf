package trace

import "context"

type tracerKey struct{}

type spanKey struct{}

// WithTracer stores t in ctx. A nil t stores Nop.
func WithTracer(ctx context.Context, t Tracer) context.Context {
	if t == nil {
		t = Nop
	}
	return context.WithValue(ctx, tracerKey{}, t)
}

// FromContext returns the tracer stored in ctx, or Nop.
func FromContext(ctx context.Context) Tracer {
	if ctx != nil {
		if t, ok := ctx.Value(tracerKey{}).(Tracer); ok {
			return t
		}
	}
	return Nop
}

// ParentSpan returns the ID of the span Start last stored in ctx, or 0.
func ParentSpan(ctx context.Context) uint64 {
	if ctx != nil {
		if id, ok := ctx.Value(spanKey{}).(uint64); ok {
			return id
		}
	}
	return 0
}

// Start opens a span nested under the span carried by ctx and returns a
// context carrying the new one. t overrides the tracer stored in ctx.
func Start(ctx context.Context, t Tracer, scope Scope, name string) (context.Context, *Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	if t == nil {
		t = FromContext(ctx)
	}
	s := Begin(t, scope, name, ParentSpan(ctx))
	if s.ID() == 0 {
		return ctx, s
	}
	return context.WithValue(ctx, spanKey{}, s.ID()), s
}
