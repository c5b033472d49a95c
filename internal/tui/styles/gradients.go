package styles

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/mindfulai/naina/internal/tui/theme"
)

// Gradient colors text by rune position.
type Gradient struct {
	Colors []lipgloss.Color
}

// NewGradient creates a gradient from the given colors.
func NewGradient(colors ...lipgloss.Color) *Gradient {
	return &Gradient{Colors: colors}
}

// Render applies the gradient in equal steps across s.
func (g *Gradient) Render(s string) string {
	if len(g.Colors) == 0 || s == "" {
		return s
	}

	runes := []rune(s)
	var b strings.Builder
	for i, r := range runes {
		idx := (i * (len(g.Colors) - 1)) / max(len(runes)-1, 1)
		b.WriteString(lipgloss.NewStyle().Foreground(g.Colors[idx]).Render(string(r)))
	}
	return b.String()
}

// GradientTitle renders a title in the theme's mauve-pink-teal gradient.
func GradientTitle(text string) string {
	t := theme.Current
	return NewGradient(t.Mauve, t.Pink, t.Teal).Render(text)
}
