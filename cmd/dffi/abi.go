package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"dffi/internal/abi"
)

var abiCmd = &cobra.Command{
	Use:   "abi [file] FUNC",
	Short: "Show how a described function passes its arguments and result",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, rest := splitDescArg(args)
		if len(rest) != 1 {
			return fmt.Errorf("expected one function name, got %d arguments", len(rest))
		}
		s, err := openSession(cmd, path)
		if err != nil {
			return err
		}
		defer s.close(cmd)

		fn, err := s.function(rest[0])
		if err != nil {
			return err
		}
		var plan *abi.Plan
		if err := s.timer.Measure("classify", func() error {
			plan, err = s.rt.Classify(fn.Type)
			return err
		}); err != nil {
			return fmt.Errorf("%s: %w", fn.Name, err)
		}
		fmt.Fprint(cmd.OutOrStdout(), plan.String())
		return nil
	},
}
