// Package llm produces conversational replies for non-crisis turns.
package llm

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"

	"github.com/mindfulai/naina/internal/emotion"
)

// MaxReplyRunes bounds generated replies; longer output is cut and ellipsised.
const MaxReplyRunes = 500

// DefaultTimeout is the deadline given to the primary generator.
const DefaultTimeout = 30 * time.Second

// ErrEmptyReply is returned when a generator produced no text.
var ErrEmptyReply = errors.New("empty reply")

// Turn is one prior message in the conversation.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is everything a generator may use to produce a reply.
type Request struct {
	UserID    string
	Message   string
	Emotion   emotion.Emotion
	History   []Turn
	TurnIndex int
}

// Generator produces a reply for a non-crisis turn.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, req Request) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// Truncate cuts s to MaxReplyRunes, ending in "..." when shortened.
func Truncate(s string) string {
	r := []rune(s)
	if len(r) <= MaxReplyRunes {
		return s
	}
	return string(r[:MaxReplyRunes-3]) + "..."
}

// TimeoutGenerator calls a primary generator under a deadline and falls back
// on timeout, error or empty output.
type TimeoutGenerator struct {
	primary  Generator
	fallback Generator
	timeout  time.Duration
	logger   *log.Logger

	// OnFallback, if set, is called with "timeout", "error" or "empty".
	OnFallback func(reason string)
}

// WithTimeout wraps primary. A nil primary always uses fallback.
func WithTimeout(primary, fallback Generator, d time.Duration, logger *log.Logger) *TimeoutGenerator {
	if d <= 0 {
		d = DefaultTimeout
	}
	if logger == nil {
		logger = log.Default()
	}
	return &TimeoutGenerator{primary: primary, fallback: fallback, timeout: d, logger: logger}
}

func (g *TimeoutGenerator) Generate(ctx context.Context, req Request) (string, error) {
	if g.primary == nil {
		return g.fallback.Generate(ctx, req)
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	reply, err := g.primary.Generate(callCtx, req)
	switch {
	case err != nil && errors.Is(callCtx.Err(), context.DeadlineExceeded):
		g.fallBack("timeout", err)
	case err != nil:
		g.fallBack("error", err)
	case reply == "":
		g.fallBack("empty", ErrEmptyReply)
	default:
		return Truncate(reply), nil
	}
	return g.fallback.Generate(ctx, req)
}

func (g *TimeoutGenerator) fallBack(reason string, err error) {
	g.logger.Warn("reply generation failed, using fallback", "reason", reason, "error", err)
	if g.OnFallback != nil {
		g.OnFallback(reason)
	}
}
