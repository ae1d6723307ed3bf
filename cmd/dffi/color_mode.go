package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
)

type colorMode string

const (
	colorAuto colorMode = "auto"
	colorOn   colorMode = "on"
	colorOff  colorMode = "off"
)

func readColorMode(value string) (colorMode, error) {
	switch strings.TrimSpace(strings.ToLower(value)) {
	case "", "auto":
		return colorAuto, nil
	case "on", "always":
		return colorOn, nil
	case "off", "never":
		return colorOff, nil
	default:
		return "", fmt.Errorf("invalid --color value %q (expected auto|on|off)", value)
	}
}

func useColor(mode colorMode) bool {
	switch mode {
	case colorOn:
		return true
	case colorOff:
		return false
	default:
		return isTerminal(os.Stdout) && os.Getenv("NO_COLOR") == ""
	}
}

// applyColorFlag sets both renderers from --color.
func applyColorFlag(cmd *cobra.Command) error {
	value, err := cmd.Root().PersistentFlags().GetString("color")
	if err != nil {
		return fmt.Errorf("failed to get color flag: %w", err)
	}
	mode, err := readColorMode(value)
	if err != nil {
		return err
	}
	enabled := useColor(mode)
	color.NoColor = !enabled
	if enabled {
		lipgloss.SetColorProfile(termenv.ANSI256)
	} else {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
	return nil
}
