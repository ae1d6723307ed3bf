package trace

import (
	"io"
	"sync"
)

// DefaultRingSize is the ring capacity used when none is given.
const DefaultRingSize = 4096

// RingTracer keeps the most recent events in memory so they can be dumped
// after a failed load or a crashed call.
type RingTracer struct {
	level Level

	mu      sync.RWMutex
	events  []Event
	written uint64 // total events ever stored
}

// NewRingTracer keeps up to capacity events at level.
func NewRingTracer(capacity int, level Level) *RingTracer {
	if capacity <= 0 {
		capacity = DefaultRingSize
	}
	return &RingTracer{events: make([]Event, capacity), level: level}
}

func (t *RingTracer) Emit(ev *Event) {
	if !t.level.accepts(ev) {
		return
	}
	t.mu.Lock()
	t.events[t.written%uint64(len(t.events))] = *ev
	t.written++
	t.mu.Unlock()
}

// Snapshot copies the stored events, oldest first.
func (t *RingTracer) Snapshot() []Event {
	t.mu.RLock()
	defer t.mu.RUnlock()
	size := uint64(len(t.events))
	n := min(t.written, size)
	out := make([]Event, 0, n)
	for i := t.written - n; i < t.written; i++ {
		out = append(out, t.events[i%size])
	}
	return out
}

// Dropped reports how many events were overwritten.
func (t *RingTracer) Dropped() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.written - min(t.written, uint64(len(t.events)))
}

// Dump writes the stored events to w in format.
func (t *RingTracer) Dump(w io.Writer, format Format) error {
	events := t.Snapshot()
	if format == FormatChrome {
		if _, err := io.WriteString(w, chromeHeader); err != nil {
			return err
		}
	}
	for i := range events {
		if format == FormatChrome && i > 0 {
			if _, err := io.WriteString(w, chromeSeparator); err != nil {
				return err
			}
		}
		if _, err := w.Write(FormatEvent(&events[i], format)); err != nil {
			return err
		}
	}
	if format == FormatChrome {
		_, err := io.WriteString(w, chromeTrailer)
		return err
	}
	return nil
}

func (t *RingTracer) Flush() error  { return nil }
func (t *RingTracer) Close() error  { return nil }
func (t *RingTracer) Level() Level  { return t.level }
func (t *RingTracer) Enabled() bool { return t.level > LevelOff }
