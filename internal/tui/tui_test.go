package tui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mindfulai/naina/internal/chat"
	"github.com/mindfulai/naina/internal/crisis"
	"github.com/mindfulai/naina/internal/session"
	"github.com/mindfulai/naina/internal/tui/components"
)

type fakeBackend struct {
	inputs []chat.Input
	reply  chat.Reply
	err    error
	resets []string
	store  *session.MemoryStore
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		reply: chat.Reply{Response: "I'm here with you.", Type: chat.TypeConversation},
		store: session.NewMemoryStore(),
	}
}

func (f *fakeBackend) Handle(_ context.Context, in chat.Input) (chat.Reply, error) {
	f.inputs = append(f.inputs, in)
	return f.reply, f.err
}

func (f *fakeBackend) Counters(ctx context.Context, userID string) (session.Counters, error) {
	return f.store.Get(ctx, userID)
}

func (f *fakeBackend) ResetSession(ctx context.Context, userID string) error {
	f.resets = append(f.resets, userID)
	return f.store.Evict(ctx, userID)
}

func typeLine(t *testing.T, m Model, line string) (Model, tea.Cmd) {
	t.Helper()
	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(line)})
	updated, cmd := updated.(Model).Update(tea.KeyMsg{Type: tea.KeyEnter})
	return updated.(Model), cmd
}

func sized(m Model) Model {
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	return updated.(Model)
}

func lastMessage(m Model) components.Message {
	return m.messages[len(m.messages)-1]
}

func TestNew_DefaultsUser(t *testing.T) {
	m := New(newFakeBackend(), Options{})
	if m.userID != "default" {
		t.Fatalf("userID=%q want default", m.userID)
	}
	if len(m.messages) != 1 || m.messages[0].Role != components.RoleSystem {
		t.Fatalf("expected greeting, got %#v", m.messages)
	}
}

func TestModelView_BeforeAndAfterSize(t *testing.T) {
	m := New(newFakeBackend(), Options{})
	if m.View() != "Loading..." {
		t.Fatalf("expected loading view")
	}
	m = sized(m)
	if view := m.View(); !strings.Contains(view, "default") {
		t.Fatalf("view should show the user id: %q", view)
	}
}

func TestSendMessage(t *testing.T) {
	backend := newFakeBackend()
	m := sized(New(backend, Options{UserID: "asha"}))

	m, cmd := typeLine(t, m, "I had a long day")
	if cmd == nil {
		t.Fatalf("expected a command for the chat turn")
	}
	if !m.waiting {
		t.Fatalf("expected waiting state")
	}
	if got := lastMessage(m); got.Role != components.RoleUser || got.Text != "I had a long day" {
		t.Fatalf("unexpected last message %#v", got)
	}

	msg := cmd()
	updated, _ := m.Update(msg)
	m = updated.(Model)
	if m.waiting {
		t.Fatalf("waiting should clear after reply")
	}
	if len(backend.inputs) != 1 || backend.inputs[0].UserID != "asha" {
		t.Fatalf("backend inputs: %#v", backend.inputs)
	}
	if got := lastMessage(m); got.Role != components.RoleBot || got.Text != "I'm here with you." {
		t.Fatalf("unexpected reply message %#v", got)
	}
}

func TestCrisisReplyIsMarked(t *testing.T) {
	backend := newFakeBackend()
	backend.reply = chat.Reply{
		Response:    crisis.SupportiveResponse(crisis.TopicSuicide),
		Type:        chat.TypeCrisis,
		Severity:    crisis.SeverityCritical,
		CrisisCount: 1,
	}
	m := sized(New(backend, Options{}))
	m, cmd := typeLine(t, m, "I want to kill myself")
	updated, _ := m.Update(cmd())
	m = updated.(Model)

	got := lastMessage(m)
	if !got.Crisis || got.Severity != "critical" {
		t.Fatalf("crisis reply not marked: %#v", got)
	}
	if !strings.Contains(m.View(), "crisis count 1") {
		t.Fatalf("status bar should show crisis count")
	}
}

func TestBackendError(t *testing.T) {
	backend := newFakeBackend()
	backend.err = errors.New("boom")
	m := sized(New(backend, Options{}))
	m, cmd := typeLine(t, m, "hello")
	updated, _ := m.Update(cmd())
	m = updated.(Model)
	if got := lastMessage(m); got.Role != components.RoleSystem || !strings.Contains(got.Text, "boom") {
		t.Fatalf("expected error notice, got %#v", got)
	}
}

func TestEmptyLineDoesNothing(t *testing.T) {
	backend := newFakeBackend()
	m := sized(New(backend, Options{}))
	before := len(m.messages)
	m, cmd := typeLine(t, m, "   ")
	if cmd != nil || len(m.messages) != before {
		t.Fatalf("blank line should be ignored")
	}
}

func TestSlashCommands(t *testing.T) {
	backend := newFakeBackend()
	m := sized(New(backend, Options{UserID: "u1"}))

	m, _ = typeLine(t, m, "/help")
	if !strings.Contains(lastMessage(m).Text, "/reset") {
		t.Fatalf("help text missing: %q", lastMessage(m).Text)
	}

	if _, err := backend.store.IncrementCrisis(context.Background(), "u1"); err != nil {
		t.Fatal(err)
	}
	m, _ = typeLine(t, m, "/stats")
	if !strings.Contains(lastMessage(m).Text, "crisis count 1") {
		t.Fatalf("stats: %q", lastMessage(m).Text)
	}

	m, _ = typeLine(t, m, "/reset")
	if len(backend.resets) != 1 || backend.resets[0] != "u1" {
		t.Fatalf("resets=%v", backend.resets)
	}

	m, _ = typeLine(t, m, `/user "river song"`)
	if m.userID != "river song" {
		t.Fatalf("userID=%q", m.userID)
	}

	m, _ = typeLine(t, m, "/resources")
	if !strings.Contains(lastMessage(m).Text, "988") {
		t.Fatalf("resources: %q", lastMessage(m).Text)
	}

	m, _ = typeLine(t, m, "/bogus")
	if !strings.Contains(lastMessage(m).Text, "Unknown command") {
		t.Fatalf("unknown: %q", lastMessage(m).Text)
	}

	m, _ = typeLine(t, m, "/clear")
	if len(m.messages) != 0 {
		t.Fatalf("clear left %d messages", len(m.messages))
	}

	_, cmd := typeLine(t, m, "/quit")
	if cmd == nil {
		t.Fatalf("quit should return a command")
	}
	if len(backend.inputs) != 0 {
		t.Fatalf("slash commands must not reach the chat backend")
	}
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line  string
		name  string
		args  []string
		isCmd bool
		err   bool
	}{
		{"hello", "", nil, false, false},
		{"//not a command", "", nil, false, false},
		{"/help", "help", []string{}, true, false},
		{"/USER bob", "user", []string{"bob"}, true, false},
		{`/user "a b"`, "user", []string{"a b"}, true, false},
		{`/user "unterminated`, "", nil, true, true},
		{"/", "", nil, true, true},
	}
	for _, tc := range tests {
		cmd, isCmd, err := parseCommand(tc.line)
		if isCmd != tc.isCmd || (err != nil) != tc.err {
			t.Fatalf("parseCommand(%q) isCmd=%v err=%v", tc.line, isCmd, err)
		}
		if tc.err || !tc.isCmd {
			continue
		}
		if cmd.Name != tc.name || len(cmd.Args) != len(tc.args) {
			t.Fatalf("parseCommand(%q)=%#v", tc.line, cmd)
		}
		for i := range tc.args {
			if cmd.Args[i] != tc.args[i] {
				t.Fatalf("parseCommand(%q) args=%v want %v", tc.line, cmd.Args, tc.args)
			}
		}
	}
}

func TestBackspaceAndClearLine(t *testing.T) {
	m := sized(New(newFakeBackend(), Options{}))
	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("abc")})
	updated, _ = updated.(Model).Update(tea.KeyMsg{Type: tea.KeyBackspace})
	m = updated.(Model)
	if string(m.input) != "ab" {
		t.Fatalf("input=%q want ab", string(m.input))
	}
	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlU})
	if len(updated.(Model).input) != 0 {
		t.Fatalf("ctrl+u should clear input")
	}
}
