package trace

import (
	"io"
	"sync"
)

// Chrome trace files wrap the events in a JSON array.
const (
	chromeHeader    = "{\"traceEvents\":[\n"
	chromeSeparator = ",\n"
	chromeTrailer   = "\n]}\n"
)

// StreamTracer writes each event as it is emitted. Write errors are
// dropped so tracing never fails a load or a call.
type StreamTracer struct {
	level  Level
	format Format

	mu  sync.Mutex
	w   io.Writer
	sep string // written before the next event
}

// NewStreamTracer writes events at level to w. FormatAuto means text.
func NewStreamTracer(w io.Writer, level Level, format Format) *StreamTracer {
	if format == FormatAuto {
		format = FormatText
	}
	if format == FormatChrome {
		_, _ = io.WriteString(w, chromeHeader)
	}
	return &StreamTracer{w: w, level: level, format: format}
}

func (t *StreamTracer) Emit(ev *Event) {
	if !t.level.accepts(ev) {
		return
	}
	data := FormatEvent(ev, t.format)

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sep != "" {
		_, _ = io.WriteString(t.w, t.sep)
	}
	_, _ = t.w.Write(data)
	if t.format == FormatChrome {
		t.sep = chromeSeparator
	}
}

// Flush flushes w if it buffers.
func (t *StreamTracer) Flush() error {
	if f, ok := t.w.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}

// Close completes a chrome file, then flushes and closes w.
func (t *StreamTracer) Close() error {
	t.mu.Lock()
	if t.format == FormatChrome {
		_, _ = io.WriteString(t.w, chromeTrailer)
	}
	t.mu.Unlock()

	if err := t.Flush(); err != nil {
		return err
	}
	if c, ok := t.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (t *StreamTracer) Level() Level  { return t.level }
func (t *StreamTracer) Enabled() bool { return t.level > LevelOff }
