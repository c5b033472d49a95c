// Package transcript persists per-user conversation history as one JSON
// document per user.
package transcript

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.yaml.in/yaml/v3"
)

// DefaultHistoryLimit is how many messages History returns when limit <= 0.
const DefaultHistoryLimit = 50

// ErrNotFound is returned when a user has no transcript.
var ErrNotFound = errors.New("transcript not found")

// ErrUnsupportedFormat is returned by Export for unknown formats.
var ErrUnsupportedFormat = errors.New("unsupported export format")

// Message is one exchange: the user's message and the reply sent back.
type Message struct {
	ID             string    `json:"id" yaml:"id"`
	Timestamp      time.Time `json:"timestamp" yaml:"timestamp"`
	UserMessage    string    `json:"user_message" yaml:"user_message"`
	AIResponse     string    `json:"ai_response" yaml:"ai_response"`
	Emotion        string    `json:"emotion" yaml:"emotion"`
	ResponseTime   float64   `json:"response_time" yaml:"response_time"`
	IsCrisis       bool      `json:"is_crisis" yaml:"is_crisis"`
	MessageLength  int       `json:"message_length" yaml:"message_length"`
	ResponseLength int       `json:"response_length" yaml:"response_length"`
}

// Metadata is the running summary kept alongside the messages.
type Metadata struct {
	TotalMessages   int            `json:"total_messages" yaml:"total_messages"`
	TotalCrises     int            `json:"total_crises" yaml:"total_crises"`
	Emotions        map[string]int `json:"emotions" yaml:"emotions"`
	AvgResponseTime float64        `json:"avg_response_time" yaml:"avg_response_time"`
}

// Transcript is the full stored document for one user.
type Transcript struct {
	UserID    string    `json:"user_id" yaml:"user_id"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	Messages  []Message `json:"messages" yaml:"messages"`
	Metadata  Metadata  `json:"metadata" yaml:"metadata"`
}

// Analytics summarises a user's transcript.
type Analytics struct {
	TotalMessages      int            `json:"total_messages"`
	TotalConversations int            `json:"total_conversations"`
	CrisisCount        int            `json:"crisis_count"`
	Emotions           map[string]int `json:"emotions"`
	AvgResponseTime    float64        `json:"avg_response_time"`
	CreatedAt          *time.Time     `json:"created_at,omitempty"`
}

// Store keeps transcripts by user id.
type Store interface {
	Append(ctx context.Context, userID string, m Message) (Message, error)
	History(ctx context.Context, userID string, limit int) ([]Message, error)
	Analytics(ctx context.Context, userID string) (Analytics, error)
	Export(ctx context.Context, userID, format string) ([]byte, error)
	Delete(ctx context.Context, userID string) error
	Users(ctx context.Context) ([]string, error)
}

// FileStore keeps each transcript in <dir>/<safe user id>.json.
type FileStore struct {
	dir   string
	locks *keyedMutex
	now   func() time.Time
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates the directory if needed and returns a store rooted there.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("transcript dir is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating transcript dir: %w", err)
	}
	return &FileStore{dir: dir, locks: newKeyedMutex(), now: time.Now}, nil
}

// Dir returns the root directory.
func (s *FileStore) Dir() string {
	return s.dir
}

var safeID = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// FileName maps a user id to a file name that cannot escape the store directory.
func FileName(userID string) string {
	if userID == "" {
		userID = "default"
	}
	if safeID.MatchString(userID) {
		return userID + ".json"
	}
	sum := sha256.Sum256([]byte(userID))
	return "u_" + hex.EncodeToString(sum[:])[:32] + ".json"
}

func (s *FileStore) path(userID string) string {
	return filepath.Join(s.dir, FileName(userID))
}

// Append records m for userID, filling ID, Timestamp and lengths when unset,
// and updates the running metadata.
func (s *FileStore) Append(ctx context.Context, userID string, m Message) (Message, error) {
	if err := ctx.Err(); err != nil {
		return Message{}, err
	}
	if userID == "" {
		userID = "default"
	}

	unlock := s.locks.Lock(FileName(userID))
	defer unlock()

	t, err := s.load(userID)
	if errors.Is(err, ErrNotFound) {
		t = &Transcript{
			UserID:    userID,
			CreatedAt: s.now().UTC(),
			Messages:  []Message{},
			Metadata:  Metadata{Emotions: map[string]int{}},
		}
	} else if err != nil {
		return Message{}, err
	}

	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = s.now().UTC()
	}
	m.MessageLength = len([]rune(m.UserMessage))
	m.ResponseLength = len([]rune(m.AIResponse))

	t.Messages = append(t.Messages, m)
	t.Metadata.TotalMessages = len(t.Messages)
	if m.IsCrisis {
		t.Metadata.TotalCrises++
	}
	if m.Emotion != "" {
		if t.Metadata.Emotions == nil {
			t.Metadata.Emotions = map[string]int{}
		}
		t.Metadata.Emotions[m.Emotion]++
	}
	var total float64
	for _, msg := range t.Messages {
		total += msg.ResponseTime
	}
	t.Metadata.AvgResponseTime = total / float64(len(t.Messages))

	if err := s.save(userID, t); err != nil {
		return Message{}, err
	}
	return m, nil
}

// Get returns the whole transcript for userID.
func (s *FileStore) Get(ctx context.Context, userID string) (*Transcript, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	unlock := s.locks.Lock(FileName(userID))
	defer unlock()
	return s.load(userID)
}

// History returns the last limit messages, oldest first. A user with no
// transcript has an empty history.
func (s *FileStore) History(ctx context.Context, userID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	t, err := s.Get(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return []Message{}, nil
	}
	if err != nil {
		return nil, err
	}
	msgs := t.Messages
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}

// Analytics summarises the transcript. TotalConversations counts distinct
// calendar days (UTC) with at least one message.
func (s *FileStore) Analytics(ctx context.Context, userID string) (Analytics, error) {
	t, err := s.Get(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return Analytics{Emotions: map[string]int{}}, nil
	}
	if err != nil {
		return Analytics{}, err
	}

	days := make(map[string]struct{})
	for _, m := range t.Messages {
		days[m.Timestamp.UTC().Format(time.DateOnly)] = struct{}{}
	}
	emotions := t.Metadata.Emotions
	if emotions == nil {
		emotions = map[string]int{}
	}
	created := t.CreatedAt
	return Analytics{
		TotalMessages:      t.Metadata.TotalMessages,
		TotalConversations: len(days),
		CrisisCount:        t.Metadata.TotalCrises,
		Emotions:           emotions,
		AvgResponseTime:    math.Round(t.Metadata.AvgResponseTime*100) / 100,
		CreatedAt:          &created,
	}, nil
}

// Export renders the transcript as "json", "yaml" or "txt".
func (s *FileStore) Export(ctx context.Context, userID, format string) ([]byte, error) {
	t, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(format) {
	case "", "json":
		return json.MarshalIndent(t, "", "  ")
	case "yaml", "yml":
		return yaml.Marshal(t)
	case "txt", "text":
		return []byte(renderText(t)), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

func renderText(t *Transcript) string {
	var b strings.Builder
	rule := strings.Repeat("=", 80)
	sep := strings.Repeat("-", 80)

	fmt.Fprintf(&b, "NAINA Conversation Export - %s\n", t.UserID)
	fmt.Fprintf(&b, "Created: %s\n", t.CreatedAt.Format(time.RFC3339))
	b.WriteString(rule + "\n\n")
	for _, m := range t.Messages {
		fmt.Fprintf(&b, "[%s]\n", m.Timestamp.Format(time.RFC3339))
		fmt.Fprintf(&b, "You: %s\n", m.UserMessage)
		fmt.Fprintf(&b, "NAINA: %s\n", m.AIResponse)
		fmt.Fprintf(&b, "Emotion: %s | Response Time: %.2fs\n", m.Emotion, m.ResponseTime)
		b.WriteString(sep + "\n")
	}
	return b.String()
}

// Delete removes the user's transcript. Deleting a missing transcript is not an error.
func (s *FileStore) Delete(ctx context.Context, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	unlock := s.locks.Lock(FileName(userID))
	defer unlock()

	if err := os.Remove(s.path(userID)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("deleting transcript: %w", err)
	}
	return nil
}

// Users lists the user ids with a stored transcript, sorted.
func (s *FileStore) Users(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("reading transcript dir: %w", err)
	}

	var users []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, e.Name()))
		if err != nil {
			continue
		}
		var head struct {
			UserID string `json:"user_id"`
		}
		if json.Unmarshal(data, &head) == nil && head.UserID != "" {
			users = append(users, head.UserID)
		}
	}
	sort.Strings(users)
	return users, nil
}

func (s *FileStore) load(userID string) (*Transcript, error) {
	data, err := os.ReadFile(s.path(userID))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading transcript: %w", err)
	}

	var t Transcript
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("decoding transcript: %w", err)
	}
	if t.Messages == nil {
		t.Messages = []Message{}
	}
	return &t, nil
}

// save writes to a temp file in the same directory and renames it into place.
func (s *FileStore) save(userID string, t *Transcript) error {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding transcript: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".transcript-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing transcript: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("syncing transcript: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing transcript: %w", err)
	}
	if err := os.Rename(tmpName, s.path(userID)); err != nil {
		return fmt.Errorf("replacing transcript: %w", err)
	}
	return nil
}

// keyedMutex serializes work per key and forgets keys nobody holds.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refMutex)}
}

func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
