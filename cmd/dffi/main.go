package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"dffi/internal/version"
)

var rootCmd = &cobra.Command{
	Use:           "dffi",
	Short:         "Describe C types and call native functions",
	Long:          `dffi loads C type descriptions, prints their layouts and calling plans, and calls functions from shared libraries.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return applyColorFlag(cmd)
	},
}

var errorLabel = color.New(color.FgRed, color.Bold)

func init() {
	rootCmd.AddCommand(layoutCmd)
	rootCmd.AddCommand(abiCmd)
	rootCmd.AddCommand(callCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(versionCmd)

	pf := rootCmd.PersistentFlags()
	pf.String("color", "auto", "colorize output (auto|on|off)")
	pf.Bool("timings", false, "show timing information")
	pf.String("target", "", "target triple, e.g. x86_64-linux-gnu (default: host)")
	pf.String("trace", "", "trace output file (- for stderr)")
	pf.String("trace-level", "off", "trace level (off|error|phase|detail|debug)")
	pf.String("trace-mode", "stream", "trace storage (stream|ring|both)")
	pf.Int("trace-ring-size", 4096, "events kept by the ring tracer")
	pf.Duration("trace-heartbeat", 0, "emit a heartbeat event at this interval (0 disables)")
	pf.String("cpu-profile", "", "write a Go CPU profile to file")
	pf.String("mem-profile", "", "write a Go heap profile to file on exit")
	pf.String("runtime-trace", "", "write a Go runtime trace to file")
}

func main() {
	rootCmd.Version = version.Version
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", errorLabel.Sprint("error:"), err)
		os.Exit(1)
	}
}

// isTerminal reports whether f is attached to a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
