package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/mindfulai/naina/internal/emotion"
)

func quietLogger() *log.Logger {
	return log.New(io.Discard)
}

func TestTruncate(t *testing.T) {
	short := "hello"
	if Truncate(short) != short {
		t.Fatalf("short strings should pass through")
	}
	long := strings.Repeat("a", 600)
	got := Truncate(long)
	if len([]rune(got)) != MaxReplyRunes || !strings.HasSuffix(got, "...") {
		t.Fatalf("Truncate length=%d", len([]rune(got)))
	}
	exact := strings.Repeat("é", MaxReplyRunes)
	if Truncate(exact) != exact {
		t.Fatalf("exactly max runes should not be cut")
	}
}

func TestFallback_RotatesByTurn(t *testing.T) {
	f := Fallback{}
	seen := make(map[string]bool)
	for i := 0; i < 3; i++ {
		reply, err := f.Generate(context.Background(), Request{Emotion: emotion.Sadness, TurnIndex: i})
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		seen[reply] = true
	}
	if len(seen) != 3 {
		t.Fatalf("expected 3 distinct replies, got %d", len(seen))
	}

	a, _ := f.Generate(context.Background(), Request{Emotion: emotion.Fear, TurnIndex: 4})
	b, _ := f.Generate(context.Background(), Request{Emotion: emotion.Fear, TurnIndex: 1})
	if a != b {
		t.Fatalf("rotation should be deterministic")
	}
	if !strings.Contains(strings.ToLower(a), "anx") {
		t.Fatalf("fear should map to anxious replies: %q", a)
	}
}

func TestMood(t *testing.T) {
	want := map[emotion.Emotion]string{
		emotion.Sadness: "sad",
		emotion.Fear:    "anxious",
		emotion.Anger:   "angry",
		emotion.Joy:     "happy",
		emotion.Neutral: "neutral",
	}
	for e, mood := range want {
		if Mood(e) != mood {
			t.Fatalf("Mood(%s)=%s want %s", e, Mood(e), mood)
		}
	}
}

func TestWithTimeout(t *testing.T) {
	fallback := GeneratorFunc(func(context.Context, Request) (string, error) { return "fallback", nil })

	tests := []struct {
		name    string
		primary Generator
		want    string
		reason  string
	}{
		{"ok", GeneratorFunc(func(context.Context, Request) (string, error) { return "primary", nil }), "primary", ""},
		{"error", GeneratorFunc(func(context.Context, Request) (string, error) { return "", errors.New("boom") }), "fallback", "error"},
		{"empty", GeneratorFunc(func(context.Context, Request) (string, error) { return "", nil }), "fallback", "empty"},
		{"timeout", GeneratorFunc(func(ctx context.Context, _ Request) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		}), "fallback", "timeout"},
		{"nil primary", nil, "fallback", ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var reason string
			g := WithTimeout(tc.primary, fallback, 20*time.Millisecond, quietLogger())
			g.OnFallback = func(r string) { reason = r }

			got, err := g.Generate(context.Background(), Request{Message: "hi"})
			if err != nil {
				t.Fatalf("Generate: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %q want %q", got, tc.want)
			}
			if reason != tc.reason {
				t.Fatalf("reason=%q want %q", reason, tc.reason)
			}
		})
	}
}

func TestNewOpenAIClient_NoAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	if _, err := NewOpenAIClient(ClientConfig{}); err == nil {
		t.Fatalf("expected error for missing API key")
	}
}

func TestNewOpenAIClient_Defaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "env-key")
	c, err := NewOpenAIClient(ClientConfig{Endpoint: "http://example.test/v1/"})
	if err != nil {
		t.Fatalf("NewOpenAIClient: %v", err)
	}
	if c.apiKey != "env-key" || c.model != defaultModel || c.endpoint != "http://example.test/v1" {
		t.Fatalf("unexpected client %+v", c)
	}
	if c.systemPrompt != DefaultSystemPrompt || c.historyTurns != 6 {
		t.Fatalf("defaults not applied")
	}
}

func TestOpenAIClient_Generate(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path=%s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer k" {
			t.Errorf("auth=%q", r.Header.Get("Authorization"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  ` + strings.Repeat("b", 520) + `  "}}]}`))
	}))
	defer srv.Close()

	c, err := NewOpenAIClient(ClientConfig{APIKey: "k", Endpoint: srv.URL + "/v1", HistoryTurns: 2})
	if err != nil {
		t.Fatalf("NewOpenAIClient: %v", err)
	}

	history := []Turn{
		{Role: "user", Content: "one"},
		{Role: "assistant", Content: "two"},
		{Role: "user", Content: "three"},
	}
	reply, err := c.Generate(context.Background(), Request{Message: "now", History: history})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len([]rune(reply)) != MaxReplyRunes || !strings.HasSuffix(reply, "...") {
		t.Fatalf("reply should be trimmed and truncated, len=%d", len([]rune(reply)))
	}

	if len(got.Messages) != 4 {
		t.Fatalf("messages=%d want system + 2 history + user", len(got.Messages))
	}
	if got.Messages[0].Role != "system" || got.Messages[1].Content != "two" || got.Messages[3].Content != "now" {
		t.Fatalf("unexpected messages %+v", got.Messages)
	}
}

func TestOpenAIClient_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, `{"error":"down"}`},
		{"bad json", http.StatusOK, `not json`},
		{"no choices", http.StatusOK, `{"choices":[]}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			c, _ := NewOpenAIClient(ClientConfig{APIKey: "k", Endpoint: srv.URL})
			if _, err := c.Generate(context.Background(), Request{Message: "hi"}); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}
