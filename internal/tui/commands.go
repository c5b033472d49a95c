package tui

import (
	"fmt"
	"strings"

	"github.com/mattn/go-shellwords"
)

// command is a parsed slash command.
type command struct {
	Name string
	Args []string
}

// parseCommand splits a "/name args..." line with shell quoting rules. ok is
// false for lines that are ordinary chat messages.
func parseCommand(line string) (cmd command, ok bool, err error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") || strings.HasPrefix(line, "//") {
		return command{}, false, nil
	}
	words, err := shellwords.Parse(line[1:])
	if err != nil {
		return command{}, true, fmt.Errorf("parse command: %w", err)
	}
	if len(words) == 0 {
		return command{}, true, fmt.Errorf("empty command")
	}
	return command{Name: strings.ToLower(words[0]), Args: words[1:]}, true, nil
}

const helpText = `Commands:
  /help              show this help
  /stats             show your session counters
  /reset             forget your session counters
  /resources         list crisis hotlines
  /user "<name>"     switch user id
  /clear             clear the screen
  /quit              exit`
