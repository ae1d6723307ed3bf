package trace

import "errors"

// MultiTracer sends every event to several sinks, typically a stream and a
// ring.
type MultiTracer struct {
	level Level
	sinks []Tracer
}

func NewMultiTracer(level Level, sinks ...Tracer) *MultiTracer {
	return &MultiTracer{level: level, sinks: sinks}
}

// Emit gives each sink its own copy of ev.
func (t *MultiTracer) Emit(ev *Event) {
	for _, s := range t.sinks {
		cp := *ev
		s.Emit(&cp)
	}
}

func (t *MultiTracer) Flush() error { return t.each(Tracer.Flush) }
func (t *MultiTracer) Close() error { return t.each(Tracer.Close) }

func (t *MultiTracer) each(op func(Tracer) error) error {
	errs := make([]error, 0, len(t.sinks))
	for _, s := range t.sinks {
		errs = append(errs, op(s))
	}
	return errors.Join(errs...)
}

func (t *MultiTracer) Level() Level  { return t.level }
func (t *MultiTracer) Enabled() bool { return t.level > LevelOff }

// Ring returns the first ring sink, which the CLI dumps on exit.
func (t *MultiTracer) Ring() (*RingTracer, bool) {
	for _, s := range t.sinks {
		if r, ok := s.(*RingTracer); ok {
			return r, true
		}
	}
	return nil, false
}
