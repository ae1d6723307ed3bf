package trace

import "time"

// Kind represents the type of trace event.
type Kind uint8

const (
	// KindSpanBegin marks the start of a logical operation.
	KindSpanBegin Kind = iota + 1
	// KindSpanEnd marks the end of a logical operation.
	KindSpanEnd
	// KindPoint represents an instant event.
	KindPoint
	KindHeartbeat // periodic liveness signal
)

// String returns the string representation of Kind.
func (k Kind) String() string {
	switch k {
	case KindSpanBegin:
		return "begin"
	case KindSpanEnd:
		return "end"
	case KindPoint:
		return "point"
	case KindHeartbeat:
		return "heartbeat"
	default:
		return "unknown"
	}
}

// Scope indicates the granularity of the event. Lower values are coarser.
type Scope uint8

const (
	// ScopeRuntime covers runtime construction and teardown.
	ScopeRuntime Scope = iota + 1
	// ScopeLoad covers opening libraries and resolving symbols.
	ScopeLoad
	// ScopeBind covers classifying a signature and preparing its call interface.
	ScopeBind
	// ScopeCall is one native call.
	ScopeCall
)

// String returns the string representation of Scope.
func (s Scope) String() string {
	switch s {
	case ScopeRuntime:
		return "runtime"
	case ScopeLoad:
		return "load"
	case ScopeBind:
		return "bind"
	case ScopeCall:
		return "call"
	default:
		return "unknown"
	}
}

// Event represents a single trace event.
type Event struct {
	Time     time.Time         `msgpack:"time"`
	Seq      uint64            `msgpack:"seq"`
	Kind     Kind              `msgpack:"kind"`
	Scope    Scope             `msgpack:"scope"`
	SpanID   uint64            `msgpack:"span"`
	ParentID uint64            `msgpack:"parent,omitempty"`
	GID      uint64            `msgpack:"gid,omitempty"`
	Name     string            `msgpack:"name"` // e.g. "open libm.so.6", "cos"
	Detail   string            `msgpack:"detail,omitempty"`
	Extra    map[string]string `msgpack:"extra,omitempty"`
}

// Point emits an instant event outside any span.
func Point(t Tracer, scope Scope, name, detail string) {
	if t == nil || !t.Enabled() || !t.Level().ShouldEmit(scope) {
		return
	}
	t.Emit(&Event{
		Time:   time.Now(),
		Seq:    NextSeq(),
		Kind:   KindPoint,
		Scope:  scope,
		GID:    goid(),
		Name:   name,
		Detail: detail,
	})
}
