package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"dffi/internal/ffi"
	"dffi/internal/layout"
	"dffi/internal/observ"
	"dffi/internal/prof"
	"dffi/internal/trace"
	"dffi/internal/typedesc"
)

// session is a runtime loaded with one description, shared by every
// subcommand.
type session struct {
	path  string
	rt    *ffi.Runtime
	set   *typedesc.Set
	timer *observ.Timer
	prof  *prof.Session
	span  *trace.Span

	cleanup func()
}

// isDescPath reports whether arg names a description or snapshot rather
// than a function or an argument.
func isDescPath(arg string) bool {
	switch strings.ToLower(filepath.Ext(arg)) {
	case ".toml", ".msgpack", ".mpk", ".json":
		return true
	}
	return false
}

// splitDescArg peels an optional description path off args.
func splitDescArg(args []string) (string, []string) {
	if len(args) > 0 && isDescPath(args[0]) {
		return args[0], args[1:]
	}
	return "", args
}

// resolveDescPath returns path, or the dffi.toml found from the working
// directory upwards.
func resolveDescPath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	found, ok, err := typedesc.Discover(wd)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("no %s found in %s or its parents", typedesc.DefaultFileName, wd)
	}
	return found, nil
}

func targetFromFlags(cmd *cobra.Command) (layout.Target, error) {
	triple, err := cmd.Root().PersistentFlags().GetString("target")
	if err != nil {
		return layout.Target{}, fmt.Errorf("failed to get target flag: %w", err)
	}
	if triple == "" {
		return layout.Host(), nil
	}
	return layout.ParseTriple(triple)
}

// openSession sets up tracing, builds a runtime for --target and loads the
// description at path (discovered when empty).
func openSession(cmd *cobra.Command, path string) (*session, error) {
	tracer, traceCleanup, err := setupTracing(cmd)
	if err != nil {
		return nil, err
	}
	ctx, span := trace.Start(cmd.Context(), tracer, trace.ScopeRuntime, "dffi "+cmd.Name())
	cmd.SetContext(ctx)
	s := &session{timer: observ.NewTimer(), span: span, cleanup: traceCleanup}
	if s.prof, err = setupProfiling(cmd); err != nil {
		s.close(cmd)
		return nil, err
	}
	target, err := targetFromFlags(cmd)
	if err != nil {
		s.close(cmd)
		return nil, err
	}
	s.rt = ffi.New(ffi.WithTarget(target), ffi.WithTracer(tracer))

	if err := s.timer.Measure("discover", func() error {
		s.path, err = resolveDescPath(path)
		return err
	}); err != nil {
		s.close(cmd)
		return nil, err
	}
	if err := s.timer.Measure("load", func() error {
		s.set, err = loadDescription(cmd, s.rt, s.path)
		return err
	}); err != nil {
		s.close(cmd)
		return nil, err
	}
	return s, nil
}

// loadFresh loads the current contents of the description into a new
// runtime for the same target. The session is not touched.
func (s *session) loadFresh(cmd *cobra.Command) (*ffi.Runtime, *typedesc.Set, error) {
	rt := ffi.New(ffi.WithTarget(s.rt.Target()), ffi.WithTracer(s.rt.Tracer()))
	var set *typedesc.Set
	err := s.timer.Measure("reload", func() (err error) {
		set, err = loadDescription(cmd, rt, s.path)
		return err
	})
	if err != nil {
		_ = rt.Close()
		return nil, nil, err
	}
	return rt, set, nil
}

// swap replaces the session runtime, closing the old one.
func (s *session) swap(rt *ffi.Runtime, set *typedesc.Set) {
	_ = s.rt.Close()
	s.rt, s.set = rt, set
}

// reload swaps in a runtime holding the current description. The old
// runtime stays in place on failure.
func (s *session) reload(cmd *cobra.Command) error {
	rt, set, err := s.loadFresh(cmd)
	if err != nil {
		return err
	}
	s.swap(rt, set)
	return nil
}

func loadDescription(cmd *cobra.Command, rt *ffi.Runtime, path string) (*typedesc.Set, error) {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return typedesc.LoadFiles(cmd.Context(), rt, path)
	}
	snap, err := typedesc.LoadSnapshot(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	set, err := typedesc.Import(rt, snap)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return set, nil
}

// close releases the runtime, prints --timings and flushes traces.
func (s *session) close(cmd *cobra.Command) {
	if s.rt != nil {
		if err := s.rt.Close(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "close: %v\n", err)
		}
	}
	if err := s.prof.Stop(); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "profile: %v\n", err)
	}
	if timings, _ := cmd.Root().PersistentFlags().GetBool("timings"); timings {
		fmt.Fprint(cmd.ErrOrStderr(), s.timer.Summary())
	}
	s.span.End("")
	if s.cleanup != nil {
		s.cleanup()
	}
}

func (s *session) function(name string) (typedesc.Function, error) {
	fn, ok := s.set.Function(name)
	if !ok {
		return typedesc.Function{}, fmt.Errorf("%s: no function %q", s.path, name)
	}
	return fn, nil
}

// setupProfiling starts the Go profilers named by the profiling flags. It
// returns nil when none is requested.
func setupProfiling(cmd *cobra.Command) (*prof.Session, error) {
	pf := cmd.Root().PersistentFlags()
	var cfg prof.Config
	var err error
	if cfg.CPUProfile, err = pf.GetString("cpu-profile"); err != nil {
		return nil, fmt.Errorf("failed to get cpu-profile flag: %w", err)
	}
	if cfg.MemProfile, err = pf.GetString("mem-profile"); err != nil {
		return nil, fmt.Errorf("failed to get mem-profile flag: %w", err)
	}
	if cfg.RuntimeTrace, err = pf.GetString("runtime-trace"); err != nil {
		return nil, fmt.Errorf("failed to get runtime-trace flag: %w", err)
	}
	if !cfg.Enabled() {
		return nil, nil
	}
	return prof.Start(cfg)
}
