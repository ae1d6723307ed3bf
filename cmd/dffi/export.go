package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"dffi/internal/typedesc"
)

var exportOutput string

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "snapshot file (.json for JSON, msgpack otherwise)")
	_ = exportCmd.MarkFlagRequired("output")
}

var exportCmd = &cobra.Command{
	Use:   "export [file] -o out.msgpack|out.json",
	Short: "Write a snapshot of the laid-out types for the target",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := ""
		if len(args) == 1 {
			path = args[0]
		}
		s, err := openSession(cmd, path)
		if err != nil {
			return err
		}
		defer s.close(cmd)

		snap := typedesc.Export(s.rt, s.set)
		if err := s.timer.Measure("save", func() error { return snap.Save(exportOutput) }); err != nil {
			return fmt.Errorf("export %s: %w", exportOutput, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d structs, %d unions, %d enums, %d functions) for %s\n",
			exportOutput, len(snap.File.Structs), len(snap.File.Unions), len(snap.File.Enums), len(snap.File.Functions), snap.Target)
		return nil
	},
}
