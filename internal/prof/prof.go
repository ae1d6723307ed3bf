// Package prof drives the Go profilers for one command run.
package prof

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
	rtrace "runtime/trace"
	"sync"
)

// Config names the files to write; empty paths disable that profiler.
type Config struct {
	CPUProfile   string
	MemProfile   string
	RuntimeTrace string
}

// Enabled reports whether any profiler is requested.
func (c Config) Enabled() bool {
	return c.CPUProfile != "" || c.MemProfile != "" || c.RuntimeTrace != ""
}

// Session is a set of running profilers. Stop is safe to call more than
// once.
type Session struct {
	cpuFile   *os.File
	traceFile *os.File
	memPath   string

	once sync.Once
	err  error
}

// Start enables the profilers cfg asks for. Nothing is left running when it
// fails.
func Start(cfg Config) (*Session, error) {
	s := &Session{memPath: cfg.MemProfile}
	if cfg.CPUProfile != "" {
		f, err := os.Create(cfg.CPUProfile)
		if err != nil {
			return nil, fmt.Errorf("cpu profile: %w", err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("cpu profile: %w", err)
		}
		s.cpuFile = f
	}
	if cfg.RuntimeTrace != "" {
		f, err := os.Create(cfg.RuntimeTrace)
		if err == nil {
			err = rtrace.Start(f)
			if err != nil {
				_ = f.Close()
			}
		}
		if err != nil {
			s.stopCPU()
			return nil, fmt.Errorf("runtime trace: %w", err)
		}
		s.traceFile = f
	}
	return s, nil
}

func (s *Session) stopCPU() error {
	if s.cpuFile == nil {
		return nil
	}
	pprof.StopCPUProfile()
	err := s.cpuFile.Close()
	s.cpuFile = nil
	return err
}

func (s *Session) stopTrace() error {
	if s.traceFile == nil {
		return nil
	}
	rtrace.Stop()
	err := s.traceFile.Close()
	s.traceFile = nil
	return err
}

func (s *Session) writeMem() error {
	if s.memPath == "" {
		return nil
	}
	f, err := os.Create(s.memPath)
	if err != nil {
		return fmt.Errorf("heap profile: %w", err)
	}
	runtime.GC()
	if err := pprof.WriteHeapProfile(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("heap profile: %w", err)
	}
	return f.Close()
}

// Stop ends the trace and CPU profile and then writes the heap profile.
func (s *Session) Stop() error {
	if s == nil {
		return nil
	}
	s.once.Do(func() {
		s.err = errors.Join(s.stopTrace(), s.stopCPU(), s.writeMem())
	})
	return s.err
}

// Do runs fn with a profiler label naming the native function, so samples
// taken during a call can be attributed in pprof and the runtime trace.
func Do(ctx context.Context, function string, fn func(context.Context)) {
	if ctx == nil {
		ctx = context.Background()
	}
	pprof.Do(ctx, pprof.Labels("native_func", function), func(ctx context.Context) {
		defer rtrace.StartRegion(ctx, "call "+function).End()
		fn(ctx)
	})
}
