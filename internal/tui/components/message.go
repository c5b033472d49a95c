// Package components provides renderable pieces of the chat TUI.
package components

import (
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/mindfulai/naina/internal/tui/styles"
	"github.com/mindfulai/naina/internal/utils"
)

// Role identifies who a transcript line belongs to.
type Role int

const (
	RoleUser Role = iota
	RoleBot
	RoleSystem
)

// Message is one line in the on-screen transcript.
type Message struct {
	Role     Role
	Text     string
	Crisis   bool
	Severity string
	At       time.Time
}

// MessageView renders a Message at a width.
type MessageView struct {
	Message  Message
	MaxWidth int
	styles   *styles.Styles
}

// NewMessageView creates a view for msg.
func NewMessageView(msg Message, s *styles.Styles) *MessageView {
	if s == nil {
		s = styles.New()
	}
	return &MessageView{Message: msg, MaxWidth: 80, styles: s}
}

// WithMaxWidth sets the wrap width.
func (v *MessageView) WithMaxWidth(width int) *MessageView {
	v.MaxWidth = width
	return v
}

// Render returns the styled message.
func (v *MessageView) Render() string {
	s := v.styles
	text := utils.SanitizeInput(v.Message.Text)
	width := max(v.MaxWidth-4, 20)

	switch v.Message.Role {
	case RoleUser:
		return s.UserLabel.Render("You") + " " + s.Normal.Width(width).Render(text)
	case RoleSystem:
		return s.SystemLabel.Width(width).Render(text)
	}

	label := s.BotLabel.Render("NAINA")
	if !v.Message.Crisis {
		return label + " " + s.Normal.Width(width).Render(text)
	}
	header := label
	if v.Message.Severity != "" {
		header += " " + s.SeverityBadge(v.Message.Severity)
	}
	body := s.CrisisPanel.Width(width).Render(text)
	return lipgloss.JoinVertical(lipgloss.Left, header, body)
}

// RenderPlain renders without styling, for logs and tests.
func (v *MessageView) RenderPlain() string {
	prefix := "NAINA: "
	switch v.Message.Role {
	case RoleUser:
		prefix = "You: "
	case RoleSystem:
		prefix = "-- "
	}
	return prefix + strings.TrimSpace(utils.SanitizeInput(v.Message.Text))
}
