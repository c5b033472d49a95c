// Package tui implements the Bubble Tea terminal chat for NAINA.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mindfulai/naina/internal/chat"
	"github.com/mindfulai/naina/internal/crisis"
	"github.com/mindfulai/naina/internal/session"
	"github.com/mindfulai/naina/internal/tui/components"
	"github.com/mindfulai/naina/internal/tui/styles"
	"github.com/mindfulai/naina/internal/tui/theme"
)

// Backend runs chat turns and session commands. *chat.Service satisfies it.
type Backend interface {
	Handle(ctx context.Context, in chat.Input) (chat.Reply, error)
	Counters(ctx context.Context, userID string) (session.Counters, error)
	ResetSession(ctx context.Context, userID string) error
}

// Options configures the chat model.
type Options struct {
	UserID string
	Theme  string
	// TurnTimeout bounds one chat turn. Zero means 45s.
	TurnTimeout time.Duration
}

type replyMsg struct {
	reply chat.Reply
	err   error
}

// Model is the chat screen.
type Model struct {
	backend Backend
	options Options
	styles  *styles.Styles

	userID   string
	messages []components.Message
	input    []rune
	waiting  bool
	last     chat.Reply

	ready  bool
	width  int
	height int
}

// New creates a chat model.
func New(backend Backend, opts Options) Model {
	if opts.Theme != "" {
		theme.SetTheme(theme.FlavorName(opts.Theme))
	}
	if opts.TurnTimeout <= 0 {
		opts.TurnTimeout = 45 * time.Second
	}
	m := Model{
		backend: backend,
		options: opts,
		styles:  styles.New(),
		userID:  session.NormalizeUserID(opts.UserID),
	}
	m.system("Hi, I'm NAINA. Type a message, or /help for commands.")
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
	case replyMsg:
		m.waiting = false
		if msg.err != nil {
			m.system("Something went wrong: " + msg.err.Error())
			return m, nil
		}
		m.last = msg.reply
		m.messages = append(m.messages, components.Message{
			Role:     components.RoleBot,
			Text:     msg.reply.Response,
			Crisis:   msg.reply.Type == chat.TypeCrisis,
			Severity: msg.reply.Severity.String(),
			At:       msg.reply.Timestamp,
		})
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		return m, tea.Quit
	case tea.KeyEnter:
		return m.submit()
	case tea.KeyBackspace:
		if len(m.input) > 0 {
			m.input = m.input[:len(m.input)-1]
		}
	case tea.KeyCtrlU:
		m.input = nil
	case tea.KeySpace:
		m.input = append(m.input, ' ')
	case tea.KeyRunes:
		m.input = append(m.input, msg.Runes...)
	}
	return m, nil
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	line := strings.TrimSpace(string(m.input))
	m.input = nil
	if line == "" || m.waiting {
		return m, nil
	}

	cmd, isCmd, err := parseCommand(line)
	if err != nil {
		m.system(err.Error())
		return m, nil
	}
	if isCmd {
		return m.runCommand(cmd)
	}

	m.messages = append(m.messages, components.Message{Role: components.RoleUser, Text: line, At: time.Now()})
	m.waiting = true
	return m, m.send(line)
}

func (m Model) send(text string) tea.Cmd {
	backend, user, timeout := m.backend, m.userID, m.options.TurnTimeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		reply, err := backend.Handle(ctx, chat.Input{UserID: user, Message: text})
		return replyMsg{reply: reply, err: err}
	}
}

func (m Model) runCommand(cmd command) (tea.Model, tea.Cmd) {
	ctx := context.Background()
	switch cmd.Name {
	case "help", "h", "?":
		m.system(helpText)
	case "quit", "exit", "q":
		return m, tea.Quit
	case "clear":
		m.messages = nil
	case "resources":
		var b strings.Builder
		for _, r := range crisis.Resources() {
			fmt.Fprintf(&b, "%s · %s: %s\n", r.Region, r.Name, r.Phone)
		}
		m.system(strings.TrimRight(b.String(), "\n"))
	case "stats":
		c, err := m.backend.Counters(ctx, m.userID)
		if err != nil {
			m.system("Session state unavailable: " + err.Error())
			break
		}
		m.system(fmt.Sprintf("user %s: crisis count %d, negative streak %d", m.userID, c.CrisisCount, c.NegativeEmotionStreak))
	case "reset":
		if err := m.backend.ResetSession(ctx, m.userID); err != nil {
			m.system("Reset failed: " + err.Error())
			break
		}
		m.system("Session counters cleared for " + m.userID)
	case "user":
		if len(cmd.Args) != 1 || strings.TrimSpace(cmd.Args[0]) == "" {
			m.system(`usage: /user "<name>"`)
			break
		}
		m.userID = session.NormalizeUserID(strings.TrimSpace(cmd.Args[0]))
		m.system("Now chatting as " + m.userID)
	default:
		m.system("Unknown command /" + cmd.Name + " (try /help)")
	}
	return m, nil
}

func (m *Model) system(text string) {
	m.messages = append(m.messages, components.Message{Role: components.RoleSystem, Text: text, At: time.Now()})
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	s := m.styles

	header := styles.GradientTitle("NAINA") + "  " + s.Subtitle.Render("a space to talk")

	status := fmt.Sprintf("user %s", m.userID)
	if m.last.Type == chat.TypeCrisis {
		status += fmt.Sprintf(" · crisis count %d", m.last.CrisisCount)
	}
	if m.waiting {
		status += " · thinking…"
	}
	statusBar := s.StatusBar.Width(m.width).Render(status)

	prompt := s.Input.Width(max(m.width-2, 10)).Render("> " + string(m.input) + "▏")

	used := lipgloss.Height(header) + lipgloss.Height(statusBar) + lipgloss.Height(prompt)
	body := m.renderMessages(max(m.height-used, 3))

	return lipgloss.JoinVertical(lipgloss.Left, header, body, prompt, statusBar)
}

// renderMessages renders the newest messages that fit in height lines.
func (m Model) renderMessages(height int) string {
	var blocks []string
	total := 0
	for i := len(m.messages) - 1; i >= 0; i-- {
		block := components.NewMessageView(m.messages[i], m.styles).WithMaxWidth(m.width).Render()
		h := lipgloss.Height(block)
		if total+h > height && len(blocks) > 0 {
			break
		}
		blocks = append([]string{block}, blocks...)
		total += h
	}
	out := strings.Join(blocks, "\n")
	if pad := height - total; pad > 0 {
		out = strings.Repeat("\n", pad) + out
	}
	return out
}

// Run starts the chat TUI.
func Run(backend Backend, opts Options) error {
	p := tea.NewProgram(New(backend, opts), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
