// Package chat runs one conversational turn end to end: classify, escalate or
// converse, record, reply.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/mindfulai/naina/internal/crisis"
	"github.com/mindfulai/naina/internal/db"
	"github.com/mindfulai/naina/internal/emotion"
	"github.com/mindfulai/naina/internal/llm"
	"github.com/mindfulai/naina/internal/metrics"
	"github.com/mindfulai/naina/internal/session"
	"github.com/mindfulai/naina/internal/transcript"
	"github.com/mindfulai/naina/internal/utils"
)

// DefaultMaxMessageRunes caps inbound message length.
const DefaultMaxMessageRunes = 4000

// DefaultHistoryTurns is how many prior exchanges are handed to the generator.
const DefaultHistoryTurns = 3

// ErrEmptyMessage is returned for a message with no text after sanitizing.
var ErrEmptyMessage = errors.New("message is required")

// Reply types.
const (
	TypeCrisis       = "crisis"
	TypeConversation = "conversation"
)

// AuditLog records crisis turns.
type AuditLog interface {
	RecordCrisisEvent(ctx context.Context, e *db.CrisisEvent) error
}

// Deps wires a Service. Classifier, Policy and Counters are required; the
// rest are optional.
type Deps struct {
	Classifier  *crisis.Classifier
	Policy      *crisis.Policy
	Counters    session.Store
	Emotions    *emotion.Classifier
	Generator   llm.Generator
	Transcripts transcript.Store
	Audit       AuditLog
	Metrics     *metrics.Recorder
	Logger      *log.Logger

	HistoryTurns    int
	MaxMessageRunes int
	Now             func() time.Time
}

// Input is one inbound message.
type Input struct {
	UserID  string `json:"user_id"`
	Message string `json:"message"`
}

// Reply is what the user is sent back, with the classification that produced it.
type Reply struct {
	Response     string              `json:"response"`
	Type         string              `json:"type"`
	Kind         crisis.ResponseKind `json:"response_kind"`
	Severity     crisis.Severity     `json:"severity"`
	Emotion      string              `json:"emotion"`
	Confidence   float64             `json:"confidence"`
	CrisisCount  int                 `json:"crisis_count"`
	MessageID    string              `json:"message_id"`
	ResponseTime float64             `json:"response_time"`
	FailSafe     bool                `json:"fail_safe,omitempty"`
	Timestamp    time.Time           `json:"timestamp"`
}

// Service handles chat turns. It is safe for concurrent use.
type Service struct {
	deps   Deps
	logger *log.Logger
}

// NewService validates deps and fills defaults.
func NewService(deps Deps) (*Service, error) {
	if deps.Classifier == nil {
		return nil, fmt.Errorf("chat: classifier is required")
	}
	if deps.Policy == nil {
		return nil, fmt.Errorf("chat: policy is required")
	}
	if deps.Counters == nil {
		return nil, fmt.Errorf("chat: session store is required")
	}
	if deps.Emotions == nil {
		deps.Emotions = emotion.NewClassifier()
	}
	if deps.Generator == nil {
		deps.Generator = llm.Fallback{}
	}
	if deps.HistoryTurns <= 0 {
		deps.HistoryTurns = DefaultHistoryTurns
	}
	if deps.MaxMessageRunes <= 0 {
		deps.MaxMessageRunes = DefaultMaxMessageRunes
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Service{deps: deps, logger: logger}, nil
}

// Handle runs one turn. A crisis turn whose session state cannot be read still
// gets a resource reply; the store failure is logged, not returned.
func (s *Service) Handle(ctx context.Context, in Input) (reply Reply, err error) {
	start := s.deps.Now()
	userID := session.NormalizeUserID(strings.TrimSpace(in.UserID))
	text := strings.TrimSpace(utils.SanitizeMessage(in.Message, s.deps.MaxMessageRunes))
	if text == "" {
		return Reply{}, ErrEmptyMessage
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic handling message, sending resources", "user", userID, "panic", r)
			reply = Reply{
				Response:  crisis.ResourceResponse(crisis.SeverityNormal),
				Type:      TypeCrisis,
				Kind:      crisis.KindResource,
				Emotion:   TypeCrisis,
				FailSafe:  true,
				MessageID: uuid.New().String(),
				Timestamp: s.deps.Now().UTC(),
			}
			err = nil
		}
	}()

	classifyStart := time.Now()
	v := s.deps.Classifier.Classify(text)
	s.deps.Metrics.RecordVerdict(v.Severity.String(), v.IsCrisis, time.Since(classifyStart))

	if v.IsCrisis && v.Severity.Escalates() {
		reply = s.handleCrisis(ctx, userID, v)
	} else {
		if v.Severity != crisis.SeverityNormal {
			s.logger.Debug("distress advisory", "user", userID, "severity", v.Severity, "matched", v.MatchedKeywords, "advisory", v.AdvisoryMessage)
		}
		reply = s.handleConversation(ctx, userID, text, v)
	}

	reply.Timestamp = s.deps.Now().UTC()
	reply.ResponseTime = reply.Timestamp.Sub(start.UTC()).Seconds()
	reply.MessageID = s.record(ctx, userID, text, reply)
	return reply, nil
}

func (s *Service) handleCrisis(ctx context.Context, userID string, v crisis.Verdict) Reply {
	d, err := s.deps.Policy.Escalate(ctx, s.deps.Counters, userID, v)
	if err != nil {
		s.deps.Metrics.RecordStoreError("escalate")
		s.logger.Error("session state unavailable, failing safe", "user", userID, "error", err)
	}
	s.deps.Metrics.RecordEscalation(d.Kind.String())
	s.logger.Warn("crisis detected",
		"user", userID,
		"severity", v.Severity,
		"matched", v.MatchedKeywords,
		"kind", d.Kind,
		"crisis_count", d.CrisisCount,
		"fail_safe", d.FailSafe,
	)

	if s.deps.Audit != nil {
		event := &db.CrisisEvent{
			UserID:      userID,
			Severity:    v.Severity.String(),
			Matched:     v.MatchedKeywords,
			Confidence:  v.Confidence,
			Kind:        d.Kind.String(),
			CrisisCount: d.CrisisCount,
			FailSafe:    d.FailSafe,
		}
		if err := s.deps.Audit.RecordCrisisEvent(ctx, event); err != nil {
			s.logger.Error("failed to record crisis event", "user", userID, "error", err)
		}
	}

	return Reply{
		Response:    d.ResponseText,
		Type:        TypeCrisis,
		Kind:        d.Kind,
		Severity:    v.Severity,
		Emotion:     TypeCrisis,
		Confidence:  v.Confidence,
		CrisisCount: d.CrisisCount,
		FailSafe:    d.FailSafe,
	}
}

func (s *Service) handleConversation(ctx context.Context, userID, text string, v crisis.Verdict) Reply {
	e := s.deps.Emotions.Classify(text)

	var (
		counters session.Counters
		err      error
	)
	if e.Negative() {
		counters, err = s.deps.Counters.IncrementNegative(ctx, userID)
	} else {
		counters, err = s.deps.Counters.DecrementNegative(ctx, userID)
	}
	if err != nil {
		s.deps.Metrics.RecordStoreError("emotion_streak")
		s.logger.Warn("failed to update emotion streak", "user", userID, "error", err)
	}

	history, turnIndex := s.history(ctx, userID)
	req := llm.Request{
		UserID:    userID,
		Message:   text,
		Emotion:   e.Emotion,
		History:   history,
		TurnIndex: turnIndex,
	}
	response, err := s.deps.Generator.Generate(ctx, req)
	if err != nil || response == "" {
		s.deps.Metrics.RecordFallback("error")
		s.logger.Warn("reply generation failed, using fallback", "user", userID, "error", err)
		response, _ = llm.Fallback{}.Generate(ctx, req)
	}

	return Reply{
		Response:    response,
		Type:        TypeConversation,
		Kind:        crisis.KindPassThrough,
		Severity:    v.Severity,
		Emotion:     e.Emotion.String(),
		Confidence:  e.Confidence,
		CrisisCount: counters.CrisisCount,
	}
}

// history returns the last exchanges as generator turns and the number of
// exchanges stored so far.
func (s *Service) history(ctx context.Context, userID string) ([]llm.Turn, int) {
	if s.deps.Transcripts == nil {
		return nil, 0
	}
	msgs, err := s.deps.Transcripts.History(ctx, userID, s.deps.HistoryTurns)
	if err != nil {
		s.logger.Warn("failed to load history", "user", userID, "error", err)
		return nil, 0
	}
	a, err := s.deps.Transcripts.Analytics(ctx, userID)
	if err != nil {
		a.TotalMessages = len(msgs)
	}

	turns := make([]llm.Turn, 0, 2*len(msgs))
	for _, m := range msgs {
		turns = append(turns,
			llm.Turn{Role: "user", Content: m.UserMessage},
			llm.Turn{Role: "assistant", Content: m.AIResponse},
		)
	}
	return turns, a.TotalMessages
}

func (s *Service) record(ctx context.Context, userID, text string, reply Reply) string {
	if s.deps.Transcripts == nil {
		return uuid.New().String()
	}
	m, err := s.deps.Transcripts.Append(ctx, userID, transcript.Message{
		Timestamp:    reply.Timestamp,
		UserMessage:  text,
		AIResponse:   reply.Response,
		Emotion:      reply.Emotion,
		ResponseTime: reply.ResponseTime,
		IsCrisis:     reply.Type == TypeCrisis,
	})
	if err != nil {
		s.logger.Error("failed to save transcript", "user", userID, "error", err)
		return uuid.New().String()
	}
	return m.ID
}

// Counters returns the user's session counters.
func (s *Service) Counters(ctx context.Context, userID string) (session.Counters, error) {
	return s.deps.Counters.Get(ctx, session.NormalizeUserID(userID))
}

// ResetSession forgets the user's session counters.
func (s *Service) ResetSession(ctx context.Context, userID string) error {
	return s.deps.Counters.Evict(ctx, session.NormalizeUserID(userID))
}

// Transcripts returns the transcript store, which may be nil.
func (s *Service) Transcripts() transcript.Store {
	return s.deps.Transcripts
}

// Policy returns the escalation policy.
func (s *Service) Policy() *crisis.Policy {
	return s.deps.Policy
}
