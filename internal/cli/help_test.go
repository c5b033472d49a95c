package cli

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
)

func setUnicodeEnv(t *testing.T, unicode bool) {
	t.Helper()
	t.Setenv("LC_ALL", "")
	t.Setenv("LC_CTYPE", "")
	if unicode {
		t.Setenv("TERM", "xterm")
		t.Setenv("LANG", "en_US.UTF-8")
		return
	}
	t.Setenv("TERM", "dumb")
	t.Setenv("LANG", "C")
}

func TestClampWidth(t *testing.T) {
	tests := []struct {
		input    int
		expected int
	}{
		{50, 72},
		{72, 72},
		{80, 80},
		{100, 100},
		{120, 100},
		{200, 100},
	}

	for _, tt := range tests {
		if got := clampWidth(tt.input); got != tt.expected {
			t.Errorf("clampWidth(%d) = %d, want %d", tt.input, got, tt.expected)
		}
	}
}

func TestDetectWidth_Columns(t *testing.T) {
	if isTerminal(os.Stdout) {
		t.Skip("stdout is a terminal; COLUMNS is not consulted")
	}
	tests := []struct {
		columns string
		want    int
	}{
		{"120", 120},
		{"10000", 10000},
		{"0", 80},
		{"-5", 80},
		{"invalid", 80},
		{"", 80},
	}
	for _, tt := range tests {
		t.Setenv("COLUMNS", tt.columns)
		if got := detectWidth(); got != tt.want {
			t.Errorf("detectWidth() with COLUMNS=%q = %d, want %d", tt.columns, got, tt.want)
		}
	}
}

func TestSupportsUnicode(t *testing.T) {
	tests := []struct {
		name   string
		term   string
		lcAll  string
		lang   string
		expect bool
	}{
		{"dumb terminal", "dumb", "en_US.UTF-8", "", false},
		{"utf-8 LC_ALL", "xterm", "en_US.UTF-8", "", true},
		{"utf8 LANG", "xterm", "", "C.utf8", true},
		{"C locale", "xterm", "", "C", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TERM", tt.term)
			t.Setenv("LC_ALL", tt.lcAll)
			t.Setenv("LC_CTYPE", "")
			t.Setenv("LANG", tt.lang)
			if got := supportsUnicode(); got != tt.expect {
				t.Errorf("supportsUnicode() = %v, want %v", got, tt.expect)
			}
		})
	}
}

func TestGradientText(t *testing.T) {
	setUnicodeEnv(t, true)

	if got := gradientText("hello", nil); got != "hello" {
		t.Errorf("expected 'hello' with no colors, got %q", got)
	}
	if got := gradientText("hello", []lipgloss.Color{colorMauve, colorBlue}); got == "" {
		t.Error("expected non-empty result")
	}
	if got := gradientText("hello", []lipgloss.Color{colorMauve}); got == "" {
		t.Error("expected non-empty result with single color")
	}
	// One rune must not divide by zero.
	if got := gradientText("X", []lipgloss.Color{colorMauve, colorBlue}); got == "" {
		t.Error("expected non-empty result with single character")
	}
}

func TestGradientText_NoUnicodeSupport(t *testing.T) {
	setUnicodeEnv(t, false)

	got := gradientText("hello world", []lipgloss.Color{colorMauve, colorBlue})
	if got != "hello world" {
		t.Errorf("expected plain text without unicode support, got %q", got)
	}
}

func TestRenderSection_StripsIconsWithoutUnicode(t *testing.T) {
	got := renderSection(false, "🛡️ SCREENING", []string{"  line 1"})
	if strings.Contains(got, "🛡") {
		t.Errorf("expected icon stripped, got %q", got)
	}
	if !strings.Contains(got, "SCREENING") || !strings.Contains(got, "line 1") {
		t.Errorf("expected title and body, got %q", got)
	}
}

func TestLegends(t *testing.T) {
	for _, unicode := range []bool{true, false} {
		if got := severityLegend(unicode); !strings.Contains(got, "CRITICAL") || !strings.Contains(got, "SEVERE") || !strings.Contains(got, "ELEVATED") {
			t.Errorf("severityLegend(%v) missing a tier: %q", unicode, got)
		}
		if got := flagLegend(unicode); !strings.Contains(got, "--json") {
			t.Errorf("flagLegend(%v) missing --json: %q", unicode, got)
		}
		if got := footerLegend(unicode); !strings.Contains(got, "naina chat") {
			t.Errorf("footerLegend(%v) missing chat hint: %q", unicode, got)
		}
	}
}

func TestShowQuickReference(t *testing.T) {
	for _, unicode := range []bool{true, false} {
		setUnicodeEnv(t, unicode)

		var buf bytes.Buffer
		showQuickReference(&buf)
		out := buf.String()

		for _, want := range []string{"NAINA", "naina serve", "naina check"} {
			if !strings.Contains(out, want) {
				t.Errorf("unicode=%v: expected quick reference to contain %q", unicode, want)
			}
		}
	}
}
