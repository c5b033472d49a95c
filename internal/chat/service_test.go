package chat

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindfulai/naina/internal/crisis"
	"github.com/mindfulai/naina/internal/db"
	"github.com/mindfulai/naina/internal/llm"
	"github.com/mindfulai/naina/internal/metrics"
	"github.com/mindfulai/naina/internal/session"
	"github.com/mindfulai/naina/internal/testutil"
	"github.com/mindfulai/naina/internal/transcript"
)

type recordingAudit struct {
	mu     sync.Mutex
	events []*db.CrisisEvent
}

func (a *recordingAudit) RecordCrisisEvent(_ context.Context, e *db.CrisisEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, e)
	return nil
}

type recordingGenerator struct {
	mu       sync.Mutex
	requests []llm.Request
	reply    string
	err      error
}

func (g *recordingGenerator) Generate(_ context.Context, req llm.Request) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	return g.reply, g.err
}

type fixture struct {
	svc         *Service
	store       *session.MemoryStore
	transcripts *transcript.FileStore
	audit       *recordingAudit
	gen         *recordingGenerator
	metrics     *metrics.Recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	transcripts, err := transcript.NewFileStore(filepath.Join(t.TempDir(), "conversations"))
	require.NoError(t, err)

	f := &fixture{
		store:       session.NewMemoryStore(),
		transcripts: transcripts,
		audit:       &recordingAudit{},
		gen:         &recordingGenerator{reply: "tell me more"},
		metrics:     metrics.New(false),
	}
	f.svc, err = NewService(Deps{
		Classifier:  crisis.NewClassifier(nil),
		Policy:      crisis.NewPolicy(),
		Counters:    f.store,
		Generator:   f.gen,
		Transcripts: transcripts,
		Audit:       f.audit,
		Metrics:     f.metrics,
		Logger:      testutil.TestLogger(t),
	})
	require.NoError(t, err)
	return f
}

func TestNewService_RequiresCore(t *testing.T) {
	_, err := NewService(Deps{})
	assert.Error(t, err)
	_, err = NewService(Deps{Classifier: crisis.NewClassifier(nil)})
	assert.Error(t, err)
	_, err = NewService(Deps{Classifier: crisis.NewClassifier(nil), Policy: crisis.NewPolicy()})
	assert.Error(t, err)
}

func TestHandle_CrisisEscalation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	want := []struct {
		kind  crisis.ResponseKind
		count int
	}{
		{crisis.KindSupportiveFirst, 1},
		{crisis.KindSupportiveFirst, 2},
		{crisis.KindResource, 3},
	}
	for i, w := range want {
		r, err := f.svc.Handle(ctx, Input{UserID: "u1", Message: "I want to kill myself"})
		require.NoError(t, err)
		assert.Equal(t, TypeCrisis, r.Type, "turn %d", i+1)
		assert.Equal(t, w.kind, r.Kind, "turn %d", i+1)
		assert.Equal(t, w.count, r.CrisisCount, "turn %d", i+1)
		assert.Equal(t, crisis.SeverityCritical, r.Severity)
		assert.Equal(t, 1.0, r.Confidence)
		assert.NotEmpty(t, r.MessageID)
	}

	r, err := f.svc.Handle(ctx, Input{UserID: "u1", Message: "I want to kill myself"})
	require.NoError(t, err)
	assert.Contains(t, r.Response, "988")

	assert.Empty(t, f.gen.requests, "crisis turns never reach the generator")
	assert.Len(t, f.audit.events, 4)
	assert.Equal(t, "resource_response", f.audit.events[3].Kind)

	a, err := f.transcripts.Analytics(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 4, a.CrisisCount)
	assert.Equal(t, 4, a.Emotions["crisis"])
}

func TestHandle_FailSafeWhenStoreDown(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.store.Close())

	r, err := f.svc.Handle(ctx, Input{UserID: "u1", Message: "I feel hopeless and I can't take it anymore"})
	require.NoError(t, err)
	assert.Equal(t, crisis.KindResource, r.Kind)
	assert.True(t, r.FailSafe)
	assert.Equal(t, crisis.ResourceResponse(crisis.SeveritySevere), r.Response)
	require.Len(t, f.audit.events, 1)
	assert.True(t, f.audit.events[0].FailSafe)
}

func TestHandle_CrisisIsLogged(t *testing.T) {
	logger, logs := testutil.CaptureLogger(t)
	svc, err := NewService(Deps{
		Classifier: crisis.NewClassifier(nil),
		Policy:     crisis.NewPolicy(),
		Counters:   session.NewMemoryStore(),
		Logger:     logger,
	})
	require.NoError(t, err)

	_, err = svc.Handle(context.Background(), Input{UserID: "u9", Message: "this is the last time you will hear from me"})
	require.NoError(t, err)

	out := logs.String()
	assert.Contains(t, out, "crisis detected")
	assert.Contains(t, out, "user=u9")
	assert.Contains(t, out, "severity=critical")
}

func TestHandle_Conversation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	r, err := f.svc.Handle(ctx, Input{UserID: "u1", Message: "I feel sad and lonely"})
	require.NoError(t, err)
	assert.Equal(t, TypeConversation, r.Type)
	assert.Equal(t, crisis.KindPassThrough, r.Kind)
	assert.Equal(t, "sadness", r.Emotion)
	assert.Equal(t, "tell me more", r.Response)

	c, err := f.svc.Counters(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, c.NegativeEmotionStreak)

	_, err = f.svc.Handle(ctx, Input{UserID: "u1", Message: "today was great news"})
	require.NoError(t, err)
	c, _ = f.svc.Counters(ctx, "u1")
	assert.Equal(t, 0, c.NegativeEmotionStreak)

	require.Len(t, f.gen.requests, 2)
	second := f.gen.requests[1]
	assert.Equal(t, 1, second.TurnIndex)
	require.Len(t, second.History, 2)
	assert.Equal(t, "I feel sad and lonely", second.History[0].Content)
	assert.Equal(t, "assistant", second.History[1].Role)
}

func TestHandle_AdvisoryVerdictsConverse(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	for _, msg := range []string{"I feel hopeless", "I feel extremely depressed"} {
		r, err := f.svc.Handle(ctx, Input{UserID: "u1", Message: msg})
		require.NoError(t, err)
		assert.Equal(t, TypeConversation, r.Type, msg)
		assert.NotEqual(t, crisis.SeverityNormal, r.Severity, msg)
	}
	c, _ := f.svc.Counters(ctx, "u1")
	assert.Equal(t, 0, c.CrisisCount)
	assert.Empty(t, f.audit.events)
}

func TestHandle_GeneratorFailureFallsBack(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.gen.reply, f.gen.err = "", errors.New("upstream down")

	r, err := f.svc.Handle(ctx, Input{UserID: "u1", Message: "I am furious"})
	require.NoError(t, err)
	assert.NotEmpty(t, r.Response)
	assert.Contains(t, strings.ToLower(r.Response), "ang")
}

func TestHandle_EmptyMessage(t *testing.T) {
	f := newFixture(t)
	for _, msg := range []string{"", "   ", "\x00\x1b[31m\x1b[0m"} {
		_, err := f.svc.Handle(context.Background(), Input{UserID: "u1", Message: msg})
		assert.ErrorIs(t, err, ErrEmptyMessage)
	}
}

func TestHandle_DefaultUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.svc.Handle(ctx, Input{Message: "I am suicidal"})
	require.NoError(t, err)
	c, _ := f.store.Get(ctx, "default")
	assert.Equal(t, 1, c.CrisisCount)
}

func TestHandle_PanicSendsResources(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc, err := NewService(Deps{
		Classifier: crisis.NewClassifier(nil),
		Policy:     crisis.NewPolicy(),
		Counters:   f.store,
		Generator: llm.GeneratorFunc(func(context.Context, llm.Request) (string, error) {
			panic("boom")
		}),
		Logger: testutil.TestLogger(t),
	})
	require.NoError(t, err)

	r, err := svc.Handle(ctx, Input{UserID: "u1", Message: "hello"})
	require.NoError(t, err)
	assert.Equal(t, crisis.KindResource, r.Kind)
	assert.True(t, r.FailSafe)
	assert.Contains(t, r.Response, "988")
}

func TestResetSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	for i := 0; i < 3; i++ {
		_, _ = f.svc.Handle(ctx, Input{UserID: "u1", Message: "I am suicidal"})
	}
	require.NoError(t, f.svc.ResetSession(ctx, "u1"))

	r, err := f.svc.Handle(ctx, Input{UserID: "u1", Message: "I am suicidal"})
	require.NoError(t, err)
	assert.Equal(t, crisis.KindSupportiveFirst, r.Kind)
	assert.Equal(t, 1, r.CrisisCount)
}

func TestHandle_ConcurrentUsersAreIsolated(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	var wg sync.WaitGroup
	for _, user := range []string{"a", "b", "c"} {
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func(user string) {
				defer wg.Done()
				_, err := f.svc.Handle(ctx, Input{UserID: user, Message: "I want to end my life"})
				assert.NoError(t, err)
			}(user)
		}
	}
	wg.Wait()

	for _, user := range []string{"a", "b", "c"} {
		c, _ := f.store.Get(ctx, user)
		assert.Equal(t, 4, c.CrisisCount, user)
	}
}
