package trace

import (
	"runtime"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

var (
	seqCounter  atomic.Uint64
	spanCounter atomic.Uint64

	// callsInFlight counts ScopeCall spans that have begun but not ended.
	callsInFlight atomic.Int64
)

// NextSeq returns the next event sequence number.
func NextSeq() uint64 { return seqCounter.Add(1) }

// NextSpanID returns a fresh span ID. IDs start at 1; 0 means no parent.
func NextSpanID() uint64 { return spanCounter.Add(1) }

// InFlightCalls reports how many native calls are currently running.
func InFlightCalls() int64 { return callsInFlight.Load() }

// goid reads the calling goroutine's ID from its stack header
// ("goroutine N [running]:"). Chrome traces use it as the thread lane.
func goid() uint64 {
	var buf [64]byte
	hdr := string(buf[:runtime.Stack(buf[:], false)])
	hdr, ok := strings.CutPrefix(hdr, "goroutine ")
	if !ok {
		return 0
	}
	num, _, _ := strings.Cut(hdr, " ")
	id, err := strconv.ParseUint(num, 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// Span is one open library load, bind or native call. A nil or disabled
// span accepts every method and records nothing. A quiet span emits only an
// end event, and only if Fail recorded an error.
type Span struct {
	tracer  Tracer
	id      uint64
	parent  uint64
	gid     uint64
	scope   Scope
	name    string
	started time.Time
	extra   map[string]string
	ended   bool
	quiet   bool
}

// Begin opens a span under parent (0 for a root span) if t records scope.
func Begin(t Tracer, scope Scope, name string, parent uint64) *Span {
	if t == nil || !t.Enabled() {
		return &Span{tracer: Nop}
	}
	full := t.Level().ShouldEmit(scope)
	if !full && !t.Level().failuresOnly() {
		return &Span{tracer: Nop}
	}
	s := &Span{
		tracer:  t,
		id:      NextSpanID(),
		parent:  parent,
		gid:     goid(),
		scope:   scope,
		name:    name,
		started: time.Now(),
		quiet:   !full,
	}
	if scope == ScopeCall {
		callsInFlight.Add(1)
	}
	if !s.quiet {
		t.Emit(s.event(KindSpanBegin, s.started, ""))
	}
	return s
}

func (s *Span) live() bool {
	return s != nil && s.tracer != nil && s.tracer.Enabled() && s.id != 0
}

func (s *Span) event(kind Kind, at time.Time, detail string) *Event {
	ev := &Event{
		Time:     at,
		Seq:      NextSeq(),
		Kind:     kind,
		Scope:    s.scope,
		SpanID:   s.id,
		ParentID: s.parent,
		GID:      s.gid,
		Name:     s.name,
		Detail:   detail,
	}
	if kind == KindSpanEnd {
		ev.Extra = s.extra
	}
	return ev
}

// End closes the span and returns how long it was open. Only the first End
// emits an event.
func (s *Span) End(detail string) time.Duration {
	if !s.live() || s.ended {
		return 0
	}
	s.ended = true
	now := time.Now()
	if s.scope == ScopeCall {
		callsInFlight.Add(-1)
	}
	if _, failed := s.extra["error"]; !s.quiet || failed {
		s.tracer.Emit(s.event(KindSpanEnd, now, detail))
	}
	return now.Sub(s.started)
}

// WithExtra attaches key=value to the end event.
func (s *Span) WithExtra(key, value string) *Span {
	if !s.live() {
		return s
	}
	if s.extra == nil {
		s.extra = make(map[string]string, 2)
	}
	s.extra[key] = value
	return s
}

// Fail records err on the span and returns it unchanged.
func (s *Span) Fail(err error) error {
	if err != nil {
		s.WithExtra("error", err.Error())
	}
	return err
}

// ID returns the span ID, 0 for a span that records nothing.
func (s *Span) ID() uint64 {
	if s == nil {
		return 0
	}
	return s.id
}
