// Package theme provides the Catppuccin palettes used by the chat TUI.
package theme

import (
	"github.com/charmbracelet/lipgloss"
)

// Theme defines a color scheme for the TUI.
type Theme struct {
	Mauve  lipgloss.Color // Titles, accents
	Blue   lipgloss.Color // User messages
	Green  lipgloss.Color // Success
	Yellow lipgloss.Color // Elevated severity
	Red    lipgloss.Color // Critical severity, errors
	Peach  lipgloss.Color // Severe severity
	Teal   lipgloss.Color // Assistant messages
	Pink   lipgloss.Color // Highlights

	Text    lipgloss.Color
	Subtext lipgloss.Color

	Surface  lipgloss.Color
	Base     lipgloss.Color
	Mantle   lipgloss.Color
	Overlay0 lipgloss.Color

	Name   string
	IsDark bool
}

// FlavorName represents a Catppuccin flavor.
type FlavorName string

const (
	FlavorMocha FlavorName = "mocha"
	FlavorLatte FlavorName = "latte"
)

// Current holds the active theme.
var Current = Mocha()

// SetTheme sets the current theme by flavor name. Unknown names select Mocha.
func SetTheme(flavor FlavorName) {
	switch flavor {
	case FlavorLatte:
		Current = Latte()
	default:
		Current = Mocha()
	}
}

// Mocha is the dark palette.
func Mocha() *Theme {
	return &Theme{
		Name:   "Catppuccin Mocha",
		IsDark: true,

		Mauve:  lipgloss.Color("#cba6f7"),
		Blue:   lipgloss.Color("#89b4fa"),
		Green:  lipgloss.Color("#a6e3a1"),
		Yellow: lipgloss.Color("#f9e2af"),
		Red:    lipgloss.Color("#f38ba8"),
		Peach:  lipgloss.Color("#fab387"),
		Teal:   lipgloss.Color("#94e2d5"),
		Pink:   lipgloss.Color("#f5c2e7"),

		Text:    lipgloss.Color("#cdd6f4"),
		Subtext: lipgloss.Color("#a6adc8"),

		Surface:  lipgloss.Color("#313244"),
		Base:     lipgloss.Color("#1e1e2e"),
		Mantle:   lipgloss.Color("#181825"),
		Overlay0: lipgloss.Color("#6c7086"),
	}
}

// Latte is the light palette.
func Latte() *Theme {
	return &Theme{
		Name:   "Catppuccin Latte",
		IsDark: false,

		Mauve:  lipgloss.Color("#8839ef"),
		Blue:   lipgloss.Color("#1e66f5"),
		Green:  lipgloss.Color("#40a02b"),
		Yellow: lipgloss.Color("#df8e1d"),
		Red:    lipgloss.Color("#d20f39"),
		Peach:  lipgloss.Color("#fe640b"),
		Teal:   lipgloss.Color("#179299"),
		Pink:   lipgloss.Color("#ea76cb"),

		Text:    lipgloss.Color("#4c4f69"),
		Subtext: lipgloss.Color("#6c6f85"),

		Surface:  lipgloss.Color("#ccd0da"),
		Base:     lipgloss.Color("#eff1f5"),
		Mantle:   lipgloss.Color("#e6e9ef"),
		Overlay0: lipgloss.Color("#9ca0b0"),
	}
}

// SeverityColor returns the color for a distress severity.
func (t *Theme) SeverityColor(severity string) lipgloss.Color {
	switch severity {
	case "critical":
		return t.Red
	case "severe":
		return t.Peach
	case "elevated":
		return t.Yellow
	case "normal":
		return t.Green
	default:
		return t.Text
	}
}

// SeverityIcon returns the marker shown next to a severity.
func SeverityIcon(severity string) string {
	switch severity {
	case "critical":
		return "🔴"
	case "severe":
		return "🟠"
	case "elevated":
		return "🟡"
	case "normal":
		return "🟢"
	default:
		return "⚪"
	}
}
