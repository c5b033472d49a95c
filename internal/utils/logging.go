package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// LoggerOptions configures InitLogger.
type LoggerOptions struct {
	Level           string
	Format          string // text, json or logfmt
	Output          io.Writer
	Prefix          string
	ReportTimestamp bool
}

var (
	defaultMu     sync.RWMutex
	defaultLogger = log.New(os.Stderr)
)

// InitLogger builds a structured logger from opts.
func InitLogger(opts LoggerOptions) *log.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	return log.NewWithOptions(out, log.Options{
		Level:           parseLevel(opts.Level),
		Prefix:          opts.Prefix,
		ReportTimestamp: opts.ReportTimestamp,
		TimeFormat:      time.RFC3339,
		Formatter:       parseFormatter(opts.Format),
	})
}

// InitDefaultLogger builds a stderr logger honoring NAINA_LOG_LEVEL and
// NAINA_LOG_FORMAT, and installs it as the package default.
func InitDefaultLogger() *log.Logger {
	level := os.Getenv("NAINA_LOG_LEVEL")
	if level == "" {
		level = "info"
	}
	logger := InitLogger(LoggerOptions{
		Level:           level,
		Format:          os.Getenv("NAINA_LOG_FORMAT"),
		Output:          os.Stderr,
		Prefix:          "naina",
		ReportTimestamp: true,
	})
	SetDefaultLogger(logger)
	return logger
}

// InitServerLogger logs to stderr and to <dataDir>/logs/naina.log.
// The returned closer closes the log file.
func InitServerLogger(dataDir string, opts LoggerOptions) (*log.Logger, io.Closer, error) {
	dir := filepath.Join(dataDir, "logs")
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, nil, fmt.Errorf("creating log dir: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, "naina.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}

	if opts.Output == nil {
		opts.Output = os.Stderr
	}
	opts.Output = io.MultiWriter(opts.Output, f)
	opts.ReportTimestamp = true
	return InitLogger(opts), f, nil
}

func parseLevel(s string) log.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return log.DebugLevel
	case "info":
		return log.InfoLevel
	case "warn", "warning":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	case "fatal":
		return log.FatalLevel
	default:
		return log.InfoLevel
	}
}

func parseFormatter(s string) log.Formatter {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return log.JSONFormatter
	case "logfmt":
		return log.LogfmtFormatter
	default:
		return log.TextFormatter
	}
}

// GetDefaultLogger returns the package default logger.
func GetDefaultLogger() *log.Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

// SetDefaultLogger replaces the package default logger and charmbracelet's
// global default, so packages falling back to log.Default share it.
func SetDefaultLogger(l *log.Logger) {
	if l == nil {
		return
	}
	defaultMu.Lock()
	defaultLogger = l
	defaultMu.Unlock()
	log.SetDefault(l)
}

func Debug(msg any, keyvals ...any) { GetDefaultLogger().Debug(msg, keyvals...) }
func Info(msg any, keyvals ...any)  { GetDefaultLogger().Info(msg, keyvals...) }
func Warn(msg any, keyvals ...any)  { GetDefaultLogger().Warn(msg, keyvals...) }
func Error(msg any, keyvals ...any) { GetDefaultLogger().Error(msg, keyvals...) }

// With returns a child of the default logger with keyvals attached.
func With(keyvals ...any) *log.Logger { return GetDefaultLogger().With(keyvals...) }

// WithPrefix returns a child of the default logger with a prefix.
func WithPrefix(prefix string) *log.Logger { return GetDefaultLogger().WithPrefix(prefix) }
