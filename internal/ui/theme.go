package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/scbundle/scb/internal/config"
)

// Theme holds the colors used for styled output.
type Theme struct {
	Green  lipgloss.Color
	Red    lipgloss.Color
	Yellow lipgloss.Color
	Blue   lipgloss.Color
	Muted  lipgloss.Color
	Bright lipgloss.Color
}

// DefaultTheme is the Catppuccin Mocha palette.
func DefaultTheme() Theme {
	return Theme{
		Green:  lipgloss.Color("#a6e3a1"),
		Red:    lipgloss.Color("#f38ba8"),
		Yellow: lipgloss.Color("#f9e2af"),
		Blue:   lipgloss.Color("#89b4fa"),
		Muted:  lipgloss.Color("#5a6278"),
		Bright: lipgloss.Color("#cdd6f4"),
	}
}

// Apply returns t with the colors set in tc replaced.
func (t Theme) Apply(tc config.ThemeConfig) Theme {
	set := func(dst *lipgloss.Color, v *string) {
		if v != nil {
			*dst = lipgloss.Color(*v)
		}
	}
	set(&t.Green, tc.Green)
	set(&t.Red, tc.Red)
	set(&t.Yellow, tc.Yellow)
	set(&t.Blue, tc.Blue)
	set(&t.Muted, tc.Muted)
	set(&t.Bright, tc.Bright)
	return t
}

type styles struct {
	ok     lipgloss.Style
	fail   lipgloss.Style
	warn   lipgloss.Style
	label  lipgloss.Style
	value  lipgloss.Style
	muted  lipgloss.Style
	accent lipgloss.Style
}

func (t Theme) styles() styles {
	return styles{
		ok:     lipgloss.NewStyle().Foreground(t.Green).Bold(true),
		fail:   lipgloss.NewStyle().Foreground(t.Red).Bold(true),
		warn:   lipgloss.NewStyle().Foreground(t.Yellow),
		label:  lipgloss.NewStyle().Foreground(t.Muted),
		value:  lipgloss.NewStyle().Foreground(t.Bright),
		muted:  lipgloss.NewStyle().Foreground(t.Muted),
		accent: lipgloss.NewStyle().Foreground(t.Blue),
	}
}
