package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/bamsammich/winstick/internal/config"
)

// Catppuccin Mocha palette, mutable so config can override.
var (
	ColorDone    = lipgloss.Color("#a6e3a1")
	ColorFailed  = lipgloss.Color("#f38ba8")
	ColorSpinner = lipgloss.Color("#89b4fa")
)

type styles struct {
	done    lipgloss.Style
	failed  lipgloss.Style
	spinner lipgloss.Style
}

func newStyles(color bool) styles {
	if !color {
		plain := lipgloss.NewStyle()
		return styles{done: plain, failed: plain, spinner: plain}
	}
	return styles{
		done:    lipgloss.NewStyle().Foreground(ColorDone),
		failed:  lipgloss.NewStyle().Foreground(ColorFailed).Bold(true),
		spinner: lipgloss.NewStyle().Foreground(ColorSpinner),
	}
}

// ApplyTheme overrides palette colors from config. Must be called before
// NewReporter.
func ApplyTheme(t config.ThemeConfig) {
	if t.Done != nil {
		ColorDone = lipgloss.Color(*t.Done)
	}
	if t.Failed != nil {
		ColorFailed = lipgloss.Color(*t.Failed)
	}
	if t.Spinner != nil {
		ColorSpinner = lipgloss.Color(*t.Spinner)
	}
}
