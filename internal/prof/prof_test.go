package prof

import (
	"context"
	"os"
	"path/filepath"
	"runtime/pprof"
	"testing"
)

func TestSessionWritesProfiles(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{
		CPUProfile:   filepath.Join(dir, "cpu.pprof"),
		MemProfile:   filepath.Join(dir, "mem.pprof"),
		RuntimeTrace: filepath.Join(dir, "run.trace"),
	}
	if !cfg.Enabled() {
		t.Fatalf("config with paths should be enabled")
	}
	s, err := Start(cfg)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	sum := 0
	Do(context.Background(), "busy", func(context.Context) {
		for i := range 100000 {
			sum += i
		}
	})
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
	for _, p := range []string{cfg.CPUProfile, cfg.MemProfile, cfg.RuntimeTrace} {
		info, err := os.Stat(p)
		if err != nil {
			t.Fatalf("stat %s: %v", p, err)
		}
		if info.Size() == 0 {
			t.Fatalf("%s is empty", p)
		}
	}
	if sum == 0 {
		t.Fatalf("work was not run")
	}
}

func TestStartFailureLeavesNothingRunning(t *testing.T) {
	dir := t.TempDir()
	_, err := Start(Config{
		CPUProfile:   filepath.Join(dir, "cpu.pprof"),
		RuntimeTrace: filepath.Join(dir, "missing", "run.trace"),
	})
	if err == nil {
		t.Fatalf("expected error for unwritable trace path")
	}
	// The CPU profiler must have been stopped again.
	f, err := os.Create(filepath.Join(dir, "again.pprof"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()
	if err := pprof.StartCPUProfile(f); err != nil {
		t.Fatalf("cpu profiler still running: %v", err)
	}
	pprof.StopCPUProfile()
}

func TestDoPassesLabels(t *testing.T) {
	var got string
	Do(context.Background(), "abs", func(ctx context.Context) {
		got, _ = pprof.Label(ctx, "native_func")
	})
	if got != "abs" {
		t.Fatalf("label = %q, want abs", got)
	}
	var nilSession *Session
	if err := nilSession.Stop(); err != nil {
		t.Fatalf("nil Stop: %v", err)
	}
}
