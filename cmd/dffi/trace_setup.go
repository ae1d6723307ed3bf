package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"dffi/internal/trace"
)

// setupTracing inspects trace-related flags, attaches the tracer to the
// command context and returns it together with its cleanup.
func setupTracing(cmd *cobra.Command) (trace.Tracer, func(), error) {
	root := cmd.Root()

	traceOutput, err := root.PersistentFlags().GetString("trace")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get trace flag: %w", err)
	}
	levelStr, err := root.PersistentFlags().GetString("trace-level")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get trace-level flag: %w", err)
	}
	modeStr, err := root.PersistentFlags().GetString("trace-mode")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get trace-mode flag: %w", err)
	}
	ringSize, err := root.PersistentFlags().GetInt("trace-ring-size")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get trace-ring-size flag: %w", err)
	}
	heartbeatInterval, err := root.PersistentFlags().GetDuration("trace-heartbeat")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get trace-heartbeat flag: %w", err)
	}

	level, err := trace.ParseLevel(levelStr)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid trace level: %w", err)
	}

	// An output without a level means the user wants phases.
	if level == trace.LevelOff {
		if traceOutput == "" {
			cmd.SetContext(trace.WithTracer(cmd.Context(), trace.Nop))
			return trace.Nop, func() {}, nil
		}
		level = trace.LevelPhase
	}
	if traceOutput == "" {
		traceOutput = "-"
	}

	mode, err := trace.ParseMode(modeStr)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid trace mode: %w", err)
	}

	tracer, err := trace.New(trace.Config{
		Level:      level,
		Mode:       mode,
		OutputPath: traceOutput,
		RingSize:   ringSize,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create tracer: %w", err)
	}

	ctx := trace.WithTracer(cmd.Context(), tracer)
	cmd.SetContext(ctx)

	// A native call that never returns shows up as a heartbeat with no
	// matching call end.
	var heartbeat *trace.Heartbeat
	if heartbeatInterval > 0 {
		heartbeat = trace.StartHeartbeat(tracer, heartbeatInterval)
	}

	cleanup := func() {
		if heartbeat != nil {
			heartbeat.Stop()
		}
		if ring, ok := tracer.(*trace.RingTracer); ok {
			if err := dumpRing(ring, traceOutput); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "trace: dump error: %v\n", err)
			}
		}
		if err := tracer.Flush(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "trace: flush error: %v\n", err)
		}
		if err := tracer.Close(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "trace: close error: %v\n", err)
		}
	}
	return tracer, cleanup, nil
}

// dumpRing writes what a ring-only tracer kept once the command is done.
func dumpRing(ring *trace.RingTracer, path string) error {
	if path == "-" {
		return ring.Dump(os.Stderr, trace.FormatText)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := ring.Dump(f, trace.FormatFromPath(path)); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
