package trace

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// Tracer receives events from the runtime, the binder and native calls.
// Emit must be safe for concurrent use.
type Tracer interface {
	Emit(ev *Event)
	Flush() error
	// Close flushes and releases the output.
	Close() error
	Level() Level
	// Enabled is false only for LevelOff.
	Enabled() bool
}

// StorageMode selects where events go: straight to an output, into a ring
// for later dumps, or both.
type StorageMode uint8

const (
	ModeStream StorageMode = iota + 1
	ModeRing
	ModeBoth
)

var modeNames = map[StorageMode]string{
	ModeStream: "stream",
	ModeRing:   "ring",
	ModeBoth:   "both",
}

func (m StorageMode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return "unknown"
}

func (m StorageMode) streams() bool { return m == ModeStream || m == ModeBoth }
func (m StorageMode) rings() bool   { return m == ModeRing || m == ModeBoth }

// ParseMode accepts stream, ring or both.
func ParseMode(s string) (StorageMode, error) {
	for m, name := range modeNames {
		if strings.EqualFold(s, name) {
			return m, nil
		}
	}
	return ModeRing, fmt.Errorf("invalid storage mode: %q (expected: stream|ring|both)", s)
}

// Config describes the tracer built by New.
type Config struct {
	Level  Level
	Mode   StorageMode
	Format Format // FormatAuto picks the format from OutputPath
	// Output takes precedence over OutputPath ("-" or empty for stderr).
	Output     io.Writer
	OutputPath string
	RingSize   int // DefaultRingSize when zero
}

// New builds the tracer cfg describes. LevelOff yields Nop.
func New(cfg Config) (Tracer, error) {
	if cfg.Level == LevelOff {
		return Nop, nil
	}
	if !cfg.Mode.streams() && !cfg.Mode.rings() {
		return nil, fmt.Errorf("unknown storage mode: %v", cfg.Mode)
	}

	var sinks []Tracer
	if cfg.Mode.streams() {
		w, err := openOutput(cfg)
		if err != nil {
			return nil, err
		}
		format := cfg.Format
		if format == FormatAuto {
			format = FormatFromPath(cfg.OutputPath)
		}
		sinks = append(sinks, NewStreamTracer(w, cfg.Level, format))
	}
	if cfg.Mode.rings() {
		sinks = append(sinks, NewRingTracer(cfg.RingSize, cfg.Level))
	}
	if len(sinks) == 1 {
		return sinks[0], nil
	}
	return NewMultiTracer(cfg.Level, sinks...), nil
}

func openOutput(cfg Config) (io.Writer, error) {
	switch {
	case cfg.Output != nil:
		return cfg.Output, nil
	case cfg.OutputPath == "" || cfg.OutputPath == "-":
		return stderrWriter{}, nil
	}
	f, err := os.Create(cfg.OutputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace output: %w", err)
	}
	return f, nil
}

// stderrWriter keeps Close from closing the process's stderr.
type stderrWriter struct{}

func (stderrWriter) Write(p []byte) (int, error) { return os.Stderr.Write(p) }
