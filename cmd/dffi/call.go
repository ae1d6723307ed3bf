package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"dffi/internal/native"
	"dffi/internal/prof"
	"dffi/internal/types"
	"dffi/internal/value"
)

var resultColor = color.New(color.FgGreen)

// maxStringResult caps how much of a char* result is printed.
const maxStringResult = 4096

var callCmd = &cobra.Command{
	Use:   "call [file] FUNC [ARGS...]",
	Short: "Call a described function from its library",
	Long: `Call binds FUNC from the description's library and calls it.

Arguments are C literals: integers (10, -3, 0x1f), floats (2.5), bools,
enum constant names, addresses for pointers (0x7f00..., NULL) and strings
for char pointers. Variadic arguments are inferred from the literal; a C
cast such as "(unsigned long)5" picks the type explicitly.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, rest := splitDescArg(args)
		if len(rest) == 0 {
			return fmt.Errorf("missing function name")
		}
		if !native.Available {
			return native.ErrBackendUnavailable
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

		var f *native.Func
		if err := s.timer.Measure("bind", func() error {
			lib, err := s.rt.Open(s.set.Library)
			if err != nil {
				return err
			}
			f, err = s.rt.Lookup(lib, fn.Symbol, fn.Type)
			return err
		}); err != nil {
			return fmt.Errorf("%s: %w", fn.Name, err)
		}

		var strs cstrings
		defer strs.free()
		vals, err := parseArgs(s.rt.Context, fn.Type, rest[1:], &strs)
		if err != nil {
			return fmt.Errorf("%s: %w", fn.Name, err)
		}

		var result value.Value
		if err := s.timer.Measure("call", func() error {
			prof.Do(cmd.Context(), fn.Name, func(context.Context) {
				result, err = f.Call(vals...)
			})
			return err
		}); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), formatResult(result))
		return nil
	},
}

// formatResult prints a result, following char pointers to their string.
func formatResult(v value.Value) string {
	s := resultColor.Sprint(v.String())
	pt, ok := types.AsPointer(v.Type())
	if !ok || !isCharPointer(pt) {
		return s
	}
	addr, err := v.Pointer()
	if err != nil || addr == 0 {
		return s
	}
	str, err := native.ReadCString(addr, maxStringResult)
	if err != nil {
		return s + " (" + err.Error() + ")"
	}
	return s + " " + strconv.Quote(str)
}
