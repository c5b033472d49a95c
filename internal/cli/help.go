package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Catppuccin Mocha color palette
var (
	colorMauve   = lipgloss.Color("#cba6f7") // Title
	colorBlue    = lipgloss.Color("#89b4fa") // Section headers
	colorGreen   = lipgloss.Color("#a6e3a1") // Commands
	colorYellow  = lipgloss.Color("#f9e2af") // Flags, ELEVATED
	colorRed     = lipgloss.Color("#f38ba8") // CRITICAL
	colorPeach   = lipgloss.Color("#fab387") // SEVERE
	colorOverlay = lipgloss.Color("#6c7086") // Muted text
	colorBase    = lipgloss.Color("#1e1e2e") // Background
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorMauve).
			MarginBottom(1)

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorBlue).
			MarginTop(1)

	commandStyle = lipgloss.NewStyle().
			Foreground(colorGreen)

	flagStyle = lipgloss.NewStyle().
			Foreground(colorYellow)

	criticalStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorRed)

	severeStyle = lipgloss.NewStyle().
			Foreground(colorPeach)

	elevatedStyle = lipgloss.NewStyle().
			Foreground(colorYellow)

	mutedStyle = lipgloss.NewStyle().
			Foreground(colorOverlay)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBlue).
			Background(colorBase).
			Padding(1, 2).
			MarginTop(1).
			MarginBottom(1)
)

func showQuickReference(w io.Writer) {
	width := clampWidth(detectWidth())
	useUnicode := supportsUnicode()

	border := lipgloss.RoundedBorder()
	if !useUnicode {
		border = lipgloss.Border{
			Top:         "-",
			Bottom:      "-",
			Left:        "|",
			Right:       "|",
			TopLeft:     "+",
			TopRight:    "+",
			BottomLeft:  "+",
			BottomRight: "+",
		}
	}

	container := boxStyle.Copy().Border(border).Width(width)

	titleText := " NAINA QUICK REFERENCE: Wellness Chat with Crisis Detection "
	titleRendered := gradientText(titleText, []lipgloss.Color{colorMauve, colorBlue})
	if !useUnicode {
		titleRendered = "NAINA QUICK REFERENCE: Wellness Chat with Crisis Detection"
	}
	title := titleStyle.Copy().Width(width - 4).Align(lipgloss.Center).Render(titleRendered)

	run := renderSection(useUnicode, "🔷 RUN", []string{
		bullet("naina serve", "HTTP + WebSocket API on :8000"),
		bullet("naina serve --backend sqlite --llm", "durable counters, model-written replies"),
		bullet("naina chat -u alice", "chat in the terminal"),
	})

	screen := renderSection(useUnicode, "🛡️ SCREENING", []string{
		bullet("naina check \"I feel hopeless\" -j", "classify without recording"),
		bullet("naina check \"...\" --count 2 --response", "show the reply a third crisis turn gets"),
		bullet("naina patterns list --tier critical", "phrases per tier"),
		bullet("naina patterns version", "library hash for change detection"),
	})

	state := renderSection(useUnicode, "🔶 USERS & AUDIT", []string{
		bullet("naina session show <user> --backend sqlite", "crisis count and emotion streak"),
		bullet("naina session gc --ttl 24h", "evict idle users"),
		bullet("naina history export <user> -f txt", "conversation transcript"),
		bullet("naina history delete <user>", "forget a user entirely"),
		bullet("naina events -u <user>", "audited crisis turns"),
	})

	cfg := renderSection(useUnicode, "🔧 CONFIG", []string{
		bullet("naina config set crisis.resource_threshold 2", "reloaded live by serve"),
		bullet("naina config path", "files that are read"),
	})

	content := lipgloss.JoinVertical(lipgloss.Left,
		title,
		run,
		screen,
		state,
		cfg,
		severityLegend(useUnicode),
		flagLegend(useUnicode),
		footerLegend(useUnicode),
	)

	fmt.Fprintln(w, container.Render(content))
}

func clampWidth(w int) int {
	if w < 72 {
		return 72
	}
	if w > 100 {
		return 100
	}
	return w
}

func detectWidth() int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	if cols := os.Getenv("COLUMNS"); cols != "" {
		if v, err := strconv.Atoi(cols); err == nil && v > 0 {
			return v
		}
	}
	return 80
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

func supportsUnicode() bool {
	termEnv := strings.ToLower(os.Getenv("TERM"))
	locale := strings.ToLower(strings.Join([]string{
		os.Getenv("LC_ALL"),
		os.Getenv("LC_CTYPE"),
		os.Getenv("LANG"),
	}, " "))
	if strings.Contains(termEnv, "dumb") {
		return false
	}
	return strings.Contains(locale, "utf-8") || strings.Contains(locale, "utf8")
}

func gradientText(text string, colors []lipgloss.Color) string {
	if len(colors) == 0 || !supportsUnicode() {
		return text
	}
	runes := []rune(text)
	segments := len(colors)
	if segments == 1 || len(runes) <= 1 {
		return lipgloss.NewStyle().Foreground(colors[0]).Render(text)
	}

	var b strings.Builder
	for i, r := range runes {
		idx := i * (segments - 1) / (len(runes) - 1)
		b.WriteString(lipgloss.NewStyle().Foreground(colors[idx]).Render(string(r)))
	}
	return b.String()
}

func bullet(command, desc string) string {
	return commandStyle.Render("  "+command) + mutedStyle.Render("  "+desc)
}

func renderSection(useUnicode bool, title string, lines []string) string {
	if !useUnicode {
		title = strings.TrimLeft(title, "🔷🔶🛡️🔧 ")
	}
	header := sectionStyle.Render(title)
	body := strings.Join(lines, "\n")
	return lipgloss.JoinVertical(lipgloss.Left, header, body)
}

func severityLegend(useUnicode bool) string {
	crit := "CRITICAL (any match)"
	sev := "SEVERE (2+ matches)"
	elev := "ELEVATED (advisory)"
	header := "🎯 SEVERITY"
	if useUnicode {
		crit = "🔴 " + crit
		sev = "🟠 " + sev
		elev = "🟡 " + elev
	} else {
		header = "SEVERITY"
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		sectionStyle.Render(header),
		fmt.Sprintf("  %s   %s   %s", criticalStyle.Render(crit), severeStyle.Render(sev), elevatedStyle.Render(elev)),
		mutedStyle.Render("  supportive reply first; resources from the 3rd crisis turn (crisis.resource_threshold)"),
	)
}

func flagLegend(useUnicode bool) string {
	prefix := "🚩 GLOBAL FLAGS"
	if !useUnicode {
		prefix = "FLAGS"
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		sectionStyle.Render(prefix),
		flagStyle.Render("  -j, --json")+mutedStyle.Render("              structured output"),
		flagStyle.Render("  -o, --output <fmt>")+mutedStyle.Render("      text, json, yaml"),
		flagStyle.Render("  -C, --project <dir>")+mutedStyle.Render("     override project path"),
		flagStyle.Render("  -c, --config <file>")+mutedStyle.Render("     config file"),
		flagStyle.Render("  --data-dir <dir>")+mutedStyle.Render("        transcripts and database"),
	)
}

func footerLegend(useUnicode bool) string {
	talk := "naina chat"
	help := "naina <command> --help"
	if !useUnicode {
		return mutedStyle.Render("TALK: " + talk + "   HELP: " + help)
	}
	return lipgloss.JoinHorizontal(lipgloss.Left,
		mutedStyle.Render("TALK: "), commandStyle.Render(talk),
		mutedStyle.Render("   HELP: "), commandStyle.Render(help),
	)
}
