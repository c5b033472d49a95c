package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/mindfulai/naina/internal/chat"
	"github.com/mindfulai/naina/internal/config"
	"github.com/mindfulai/naina/internal/crisis"
	"github.com/mindfulai/naina/internal/db"
	"github.com/mindfulai/naina/internal/emotion"
	"github.com/mindfulai/naina/internal/llm"
	"github.com/mindfulai/naina/internal/metrics"
	"github.com/mindfulai/naina/internal/session"
	"github.com/mindfulai/naina/internal/transcript"
	"github.com/mindfulai/naina/internal/utils"
)

// app is everything a command needs to run chat turns and inspect state.
type app struct {
	cfg     config.Config
	logger  *log.Logger
	library *crisis.Library
	policy  *crisis.Policy
	store   session.Store
	db      *db.DB
	files   *transcript.FileStore
	metrics *metrics.Recorder
	svc     *chat.Service

	closers []io.Closer
}

// appOptions tweaks how much of the stack newApp builds.
type appOptions struct {
	// logOutput replaces stderr for the process logger.
	logOutput io.Writer
	// logFile also writes logs under <data_dir>/logs.
	logFile bool
}

func newLogger(cfg config.Config, out io.Writer) *log.Logger {
	logger := utils.InitLogger(utils.LoggerOptions{
		Level:           cfg.Logging.Level,
		Format:          cfg.Logging.Format,
		Output:          out,
		Prefix:          "naina",
		ReportTimestamp: true,
	})
	utils.SetDefaultLogger(logger)
	return logger
}

func newLibrary(cfg config.Config) *crisis.Library {
	return crisis.NewLibrary(crisis.Extra{
		Critical: cfg.Crisis.ExtraCritical,
		Severe:   cfg.Crisis.ExtraSevere,
		Elevated: cfg.Crisis.ExtraElevated,
	})
}

func newClassifier(cfg config.Config) *crisis.Classifier {
	return crisis.NewClassifier(newLibrary(cfg), crisis.WithSevereThreshold(cfg.Crisis.SevereThreshold))
}

// newApp builds the full chat stack from cfg. Callers must Close it.
func newApp(ctx context.Context, cfg config.Config, opts appOptions) (*app, error) {
	a := &app{cfg: cfg}

	if opts.logFile {
		logger, closer, err := utils.InitServerLogger(cfg.Storage.DataPath(), utils.LoggerOptions{
			Level:  cfg.Logging.Level,
			Format: cfg.Logging.Format,
			Output: opts.logOutput,
			Prefix: "naina",
		})
		if err != nil {
			return nil, err
		}
		utils.SetDefaultLogger(logger)
		a.logger = logger
		a.closers = append(a.closers, closer)
	} else {
		a.logger = newLogger(cfg, opts.logOutput)
	}

	if err := a.openStores(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}

	if cfg.Metrics.Enabled {
		a.metrics = metrics.New(cfg.Metrics.Runtime)
	}

	classifier := newClassifier(cfg)
	a.library = classifier.Library()
	a.policy = crisis.NewPolicy(crisis.WithResourceThreshold(cfg.Crisis.ResourceThreshold))
	for _, dup := range a.library.Duplicates() {
		a.logger.Warn("phrase listed in more than one tier, keeping the highest", "phrase", dup)
	}

	deps := chat.Deps{
		Classifier:      classifier,
		Policy:          a.policy,
		Counters:        a.store,
		Emotions:        emotion.NewClassifier(),
		Generator:       a.generator(),
		Metrics:         a.metrics,
		Logger:          a.logger.WithPrefix("chat"),
		HistoryTurns:    cfg.LLM.HistoryTurns,
		MaxMessageRunes: cfg.Server.MaxMessageChars,
	}
	if a.files != nil {
		deps.Transcripts = a.files
	}
	if a.db != nil && cfg.Storage.AuditEnabled {
		deps.Audit = a.db
	}

	svc, err := chat.NewService(deps)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.svc = svc
	return a, nil
}

// openStores opens the session store, the database and the transcript directory.
func (a *app) openStores(ctx context.Context) error {
	cfg := a.cfg

	if cfg.Storage.AuditEnabled || cfg.Session.Backend == "sqlite" {
		database, err := db.OpenAndMigrate(cfg.Storage.DatabaseFile())
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		a.db = database
		a.closers = append(a.closers, database)
	}

	switch cfg.Session.Backend {
	case "", "memory":
		a.store = session.NewMemoryStore()
	case "sqlite":
		a.store = a.db.Counters()
	case "redis":
		store, err := session.NewRedisStore(ctx, session.RedisConfig{
			Addr:     cfg.Session.RedisAddr,
			Password: cfg.Session.RedisPassword,
			DB:       cfg.Session.RedisDB,
			Prefix:   cfg.Session.RedisPrefix,
			TTL:      a.sessionTTL(),
		})
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		a.store = store
		a.closers = append(a.closers, store)
	default:
		return fmt.Errorf("unknown session backend %q", cfg.Session.Backend)
	}

	if cfg.Storage.TranscriptsEnabled {
		files, err := transcript.NewFileStore(cfg.Storage.TranscriptDir())
		if err != nil {
			return fmt.Errorf("opening transcripts: %w", err)
		}
		a.files = files
	}
	return nil
}

func (a *app) generator() llm.Generator {
	if !a.cfg.LLM.Enabled {
		return llm.Fallback{}
	}
	client, err := llm.NewOpenAIClient(llm.ClientConfig{
		Model:        a.cfg.LLM.Model,
		Endpoint:     a.cfg.LLM.Endpoint,
		SystemPrompt: a.cfg.LLM.SystemPrompt,
		HistoryTurns: 2 * a.cfg.LLM.HistoryTurns,
	})
	if err != nil {
		a.logger.Warn("language model disabled, using built-in replies", "error", err)
		return llm.Fallback{}
	}
	timeout := time.Duration(a.cfg.LLM.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = llm.DefaultTimeout
	}
	return llm.WithTimeout(client, llm.Fallback{}, timeout, a.logger.WithPrefix("llm"))
}

func (a *app) sessionTTL() time.Duration {
	if a.cfg.Session.TTLMins <= 0 {
		return 0
	}
	return time.Duration(a.cfg.Session.TTLMins) * time.Minute
}

func (a *app) janitorInterval() time.Duration {
	if a.cfg.Session.JanitorIntervalSecs <= 0 {
		return session.DefaultJanitorInterval
	}
	return time.Duration(a.cfg.Session.JanitorIntervalSecs) * time.Second
}

// requireFiles reports an error when transcripts are disabled.
func (a *app) requireFiles() (*transcript.FileStore, error) {
	if a.files == nil {
		return nil, errors.New("transcripts are disabled (storage.transcripts_enabled = false)")
	}
	return a.files, nil
}

// requireDB reports an error when the database is not open.
func (a *app) requireDB() (*db.DB, error) {
	if a.db == nil {
		return nil, errors.New("the audit database is disabled (storage.audit_enabled = false)")
	}
	return a.db, nil
}

// Close releases stores in reverse order of opening.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// openApp loads config with overrides and builds the app for a command.
func openApp(ctx context.Context, overrides map[string]any) (*app, error) {
	cfg, err := loadConfig(overrides)
	if err != nil {
		return nil, err
	}
	return newApp(ctx, cfg, appOptions{})
}
