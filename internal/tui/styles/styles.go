// Package styles provides the lipgloss styles for the chat TUI.
package styles

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/mindfulai/naina/internal/tui/theme"
)

// Styles contains the styled lipgloss renderers.
type Styles struct {
	Title    lipgloss.Style
	Subtitle lipgloss.Style

	Normal lipgloss.Style
	Dimmed lipgloss.Style
	Error  lipgloss.Style

	UserLabel   lipgloss.Style
	BotLabel    lipgloss.Style
	SystemLabel lipgloss.Style

	// CrisisPanel frames replies from the crisis path.
	CrisisPanel lipgloss.Style
	Input       lipgloss.Style
	StatusBar   lipgloss.Style

	badge lipgloss.Style
	theme *theme.Theme
}

// New creates styles from the current theme.
func New() *Styles {
	return FromTheme(theme.Current)
}

// FromTheme creates styles from a specific theme.
func FromTheme(t *theme.Theme) *Styles {
	s := &Styles{theme: t}

	s.Title = lipgloss.NewStyle().Foreground(t.Mauve).Bold(true)
	s.Subtitle = lipgloss.NewStyle().Foreground(t.Subtext).Italic(true)

	s.Normal = lipgloss.NewStyle().Foreground(t.Text)
	s.Dimmed = lipgloss.NewStyle().Foreground(t.Subtext)
	s.Error = lipgloss.NewStyle().Foreground(t.Red).Bold(true)

	s.UserLabel = lipgloss.NewStyle().Foreground(t.Blue).Bold(true)
	s.BotLabel = lipgloss.NewStyle().Foreground(t.Teal).Bold(true)
	s.SystemLabel = lipgloss.NewStyle().Foreground(t.Overlay0).Italic(true)

	s.CrisisPanel = lipgloss.NewStyle().
		Foreground(t.Text).
		Padding(0, 1).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Peach)

	s.Input = lipgloss.NewStyle().
		Foreground(t.Text).
		Padding(0, 1).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Overlay0)

	s.StatusBar = lipgloss.NewStyle().
		Foreground(t.Subtext).
		Background(t.Mantle).
		Padding(0, 1)

	s.badge = lipgloss.NewStyle().Padding(0, 1).Bold(true).Foreground(t.Base)
	return s
}

// SeverityBadge renders a severity as a colored badge.
func (s *Styles) SeverityBadge(severity string) string {
	return s.badge.
		Background(s.theme.SeverityColor(severity)).
		Render(theme.SeverityIcon(severity) + " " + severity)
}
