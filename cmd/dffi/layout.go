package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"dffi/internal/typedesc"
	"dffi/internal/types"
)

var layoutWatch bool

func init() {
	layoutCmd.Flags().BoolVarP(&layoutWatch, "watch", "w", false, "re-render whenever the description changes")
}

var layoutCmd = &cobra.Command{
	Use:   "layout [file]",
	Short: "Print the size, alignment and field offsets of every described type",
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

		if layoutWatch {
			return watchLayout(cmd, s)
		}
		return renderLayout(cmd.OutOrStdout(), s.rt.Target().Triple, s.set, outputWidth())
	},
}

var (
	recordStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	opaqueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
)

const defaultWidth = 100

// outputWidth is the terminal width, or defaultWidth when stdout is not a
// terminal.
func outputWidth() int {
	if !isTerminal(os.Stdout) {
		return defaultWidth
	}
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		return defaultWidth
	}
	return w
}

// renderLayout writes one block per record and enum of set.
func renderLayout(w io.Writer, triple string, set *typedesc.Set, width int) error {
	var sb strings.Builder
	sb.WriteString(headerStyle.Render("target " + triple))
	sb.WriteString("\n")
	if set.Library != "" {
		sb.WriteString(headerStyle.Render("library " + set.Library))
		sb.WriteString("\n")
	}
	for _, t := range set.Records {
		sb.WriteString("\n")
		writeRecord(&sb, t, width)
	}
	if len(set.Functions) > 0 {
		sb.WriteString("\n")
		sb.WriteString(recordStyle.Render("functions"))
		sb.WriteString("\n")
		for _, fn := range set.Functions {
			line := "  " + runewidth.FillRight(fn.Name, 16) + " " + fn.Type.String()
			sb.WriteString(truncate(line, width))
			sb.WriteString("\n")
		}
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

func writeRecord(sb *strings.Builder, t types.CanOpaqueType, width int) {
	title := t.String()
	if t.IsOpaque() {
		sb.WriteString(recordStyle.Render(title))
		sb.WriteString("  ")
		sb.WriteString(opaqueStyle.Render("opaque"))
		sb.WriteString("\n")
		return
	}
	sb.WriteString(recordStyle.Render(title))
	sb.WriteString("  ")
	sb.WriteString(dimStyle.Render(fmt.Sprintf("size %d  align %d", t.Size(), t.Align())))
	sb.WriteString("\n")

	if et, ok := types.AsEnum(t); ok {
		for _, c := range et.Constants() {
			sb.WriteString(truncate("  "+c.Name+" = "+strconv.FormatInt(c.Value, 10), width))
			sb.WriteString("\n")
		}
		return
	}
	ct, ok := types.AsComposite(t)
	if !ok {
		return
	}
	fields := ct.Fields()
	nameWidth := len("field")
	for i := range fields {
		nameWidth = max(nameWidth, runewidth.StringWidth(fields[i].Name()))
	}
	sb.WriteString(headerStyle.Render(fmt.Sprintf("  %6s %6s  %s  %s", "offset", "size", runewidth.FillRight("field", nameWidth), "type")))
	sb.WriteString("\n")
	typeWidth := width - nameWidth - 20
	for i := range fields {
		f := &fields[i]
		line := fmt.Sprintf("  %6d %6d  %s  %s", f.Offset(), f.Type().Size(), runewidth.FillRight(f.Name(), nameWidth), truncate(f.Type().String(), typeWidth))
		sb.WriteString(line)
		sb.WriteString("\n")
	}
}

func truncate(value string, width int) string {
	if width <= 0 {
		return value
	}
	if runewidth.StringWidth(value) <= width {
		return value
	}
	if width <= 3 {
		return runewidth.Truncate(value, width, "")
	}
	return runewidth.Truncate(value, width, "...")
}
