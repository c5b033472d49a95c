// Package config loads layered NAINA configuration: built-in defaults, the user
// file, the project file, NAINA_* environment variables, then flag overrides.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// DirName is the per-user and per-project configuration directory.
const DirName = ".naina"

// FileName is the configuration file inside DirName.
const FileName = "config.toml"

// Config is the full NAINA configuration.
type Config struct {
	Server  ServerConfig  `toml:"server" mapstructure:"server"`
	Crisis  CrisisConfig  `toml:"crisis" mapstructure:"crisis"`
	Session SessionConfig `toml:"session" mapstructure:"session"`
	Storage StorageConfig `toml:"storage" mapstructure:"storage"`
	LLM     LLMConfig     `toml:"llm" mapstructure:"llm"`
	Logging LoggingConfig `toml:"logging" mapstructure:"logging"`
	Metrics MetricsConfig `toml:"metrics" mapstructure:"metrics"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr             string   `toml:"addr" mapstructure:"addr"`
	ReadTimeoutSecs  int      `toml:"read_timeout_seconds" mapstructure:"read_timeout_seconds"`
	WriteTimeoutSecs int      `toml:"write_timeout_seconds" mapstructure:"write_timeout_seconds"`
	AllowedOrigins   []string `toml:"allowed_origins" mapstructure:"allowed_origins"`
	MaxMessageChars  int      `toml:"max_message_chars" mapstructure:"max_message_chars"`
}

// CrisisConfig tunes detection and escalation.
type CrisisConfig struct {
	// ResourceThreshold is the crisis count at which hotline resources replace
	// supportive replies. Hot-reloadable.
	ResourceThreshold int `toml:"resource_threshold" mapstructure:"resource_threshold"`
	// SevereThreshold is how many SEVERE phrases make a crisis.
	SevereThreshold int      `toml:"severe_threshold" mapstructure:"severe_threshold"`
	ExtraCritical   []string `toml:"extra_critical" mapstructure:"extra_critical"`
	ExtraSevere     []string `toml:"extra_severe" mapstructure:"extra_severe"`
	ExtraElevated   []string `toml:"extra_elevated" mapstructure:"extra_elevated"`
}

// SessionConfig selects and tunes the counter store.
type SessionConfig struct {
	// Backend is memory, sqlite or redis.
	Backend             string `toml:"backend" mapstructure:"backend"`
	TTLMins             int    `toml:"ttl_minutes" mapstructure:"ttl_minutes"`
	JanitorIntervalSecs int    `toml:"janitor_interval_seconds" mapstructure:"janitor_interval_seconds"`
	RedisAddr           string `toml:"redis_addr" mapstructure:"redis_addr"`
	RedisPassword       string `toml:"redis_password" mapstructure:"redis_password"`
	RedisDB             int    `toml:"redis_db" mapstructure:"redis_db"`
	RedisPrefix         string `toml:"redis_prefix" mapstructure:"redis_prefix"`
}

// StorageConfig places transcripts and the SQLite database.
type StorageConfig struct {
	DataDir            string `toml:"data_dir" mapstructure:"data_dir"`
	DatabasePath       string `toml:"database_path" mapstructure:"database_path"`
	TranscriptsEnabled bool   `toml:"transcripts_enabled" mapstructure:"transcripts_enabled"`
	AuditEnabled       bool   `toml:"audit_enabled" mapstructure:"audit_enabled"`
}

// LLMConfig configures conversational reply generation.
type LLMConfig struct {
	Enabled      bool   `toml:"enabled" mapstructure:"enabled"`
	Model        string `toml:"model" mapstructure:"model"`
	Endpoint     string `toml:"endpoint" mapstructure:"endpoint"`
	TimeoutSecs  int    `toml:"timeout_seconds" mapstructure:"timeout_seconds"`
	HistoryTurns int    `toml:"history_turns" mapstructure:"history_turns"`
	SystemPrompt string `toml:"system_prompt" mapstructure:"system_prompt"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level  string `toml:"level" mapstructure:"level"`
	Format string `toml:"format" mapstructure:"format"`
	// ToFile also writes logs under <data_dir>/logs when serving.
	ToFile bool `toml:"to_file" mapstructure:"to_file"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `toml:"enabled" mapstructure:"enabled"`
	Runtime bool `toml:"runtime" mapstructure:"runtime"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Addr:             ":8000",
			ReadTimeoutSecs:  15,
			WriteTimeoutSecs: 60,
			AllowedOrigins:   []string{"*"},
			MaxMessageChars:  4000,
		},
		Crisis: CrisisConfig{
			ResourceThreshold: 3,
			SevereThreshold:   2,
			ExtraCritical:     []string{},
			ExtraSevere:       []string{},
			ExtraElevated:     []string{},
		},
		Session: SessionConfig{
			Backend:             "memory",
			TTLMins:             24 * 60,
			JanitorIntervalSecs: 300,
			RedisAddr:           "localhost:6379",
			RedisPrefix:         "naina:session:",
		},
		Storage: StorageConfig{
			DataDir:            filepath.Join("~", DirName),
			DatabasePath:       "",
			TranscriptsEnabled: true,
			AuditEnabled:       true,
		},
		LLM: LLMConfig{
			Enabled:      false,
			Model:        "gpt-4o-mini",
			Endpoint:     "https://api.openai.com/v1",
			TimeoutSecs:  30,
			HistoryTurns: 3,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Runtime: true,
		},
	}
}

// DataPath returns DataDir with a leading ~ expanded.
func (s StorageConfig) DataPath() string {
	return expandHome(s.DataDir)
}

// DatabaseFile returns the SQLite path, defaulting to <data_dir>/naina.db.
func (s StorageConfig) DatabaseFile() string {
	if s.DatabasePath != "" {
		return expandHome(s.DatabasePath)
	}
	return filepath.Join(s.DataPath(), "naina.db")
}

// TranscriptDir is where per-user transcripts live.
func (s StorageConfig) TranscriptDir() string {
	return filepath.Join(s.DataPath(), "conversations")
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}

// LoadOptions controls Load.
type LoadOptions struct {
	// ProjectDir holds the project .naina directory. Empty means the working directory.
	ProjectDir string
	// ConfigPath replaces the project config file when set.
	ConfigPath string
	// FlagOverrides are applied last, keyed by dotted config key.
	FlagOverrides map[string]any
}

var envBindings = map[string]string{
	"server.addr":                 "NAINA_ADDR",
	"server.allowed_origins":      "NAINA_ALLOWED_ORIGINS",
	"crisis.resource_threshold":   "NAINA_RESOURCE_THRESHOLD",
	"crisis.severe_threshold":     "NAINA_SEVERE_THRESHOLD",
	"crisis.extra_critical":       "NAINA_EXTRA_CRITICAL",
	"crisis.extra_severe":         "NAINA_EXTRA_SEVERE",
	"crisis.extra_elevated":       "NAINA_EXTRA_ELEVATED",
	"session.backend":             "NAINA_SESSION_BACKEND",
	"session.ttl_minutes":         "NAINA_SESSION_TTL_MINUTES",
	"session.redis_addr":          "NAINA_REDIS_ADDR",
	"session.redis_password":      "NAINA_REDIS_PASSWORD",
	"storage.data_dir":            "NAINA_DATA_DIR",
	"storage.database_path":       "NAINA_DATABASE_PATH",
	"storage.transcripts_enabled": "NAINA_TRANSCRIPTS_ENABLED",
	"llm.enabled":                 "NAINA_LLM_ENABLED",
	"llm.model":                   "NAINA_LLM_MODEL",
	"llm.endpoint":                "NAINA_LLM_ENDPOINT",
	"logging.level":               "NAINA_LOG_LEVEL",
	"logging.format":              "NAINA_LOG_FORMAT",
	"metrics.enabled":             "NAINA_METRICS_ENABLED",
}

// Load builds the effective configuration and validates it.
func Load(opts LoadOptions) (Config, error) {
	v := viper.New()
	setDefaults(v)

	userPath, projectPath := ConfigPaths(opts.ProjectDir, opts.ConfigPath)
	if err := mergeConfigFile(v, userPath); err != nil {
		return Config{}, err
	}
	if err := mergeConfigFile(v, projectPath); err != nil {
		return Config{}, err
	}

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return Config{}, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	for key, val := range opts.FlagOverrides {
		v.Set(key, val)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()

	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.read_timeout_seconds", d.Server.ReadTimeoutSecs)
	v.SetDefault("server.write_timeout_seconds", d.Server.WriteTimeoutSecs)
	v.SetDefault("server.allowed_origins", d.Server.AllowedOrigins)
	v.SetDefault("server.max_message_chars", d.Server.MaxMessageChars)

	v.SetDefault("crisis.resource_threshold", d.Crisis.ResourceThreshold)
	v.SetDefault("crisis.severe_threshold", d.Crisis.SevereThreshold)
	v.SetDefault("crisis.extra_critical", d.Crisis.ExtraCritical)
	v.SetDefault("crisis.extra_severe", d.Crisis.ExtraSevere)
	v.SetDefault("crisis.extra_elevated", d.Crisis.ExtraElevated)

	v.SetDefault("session.backend", d.Session.Backend)
	v.SetDefault("session.ttl_minutes", d.Session.TTLMins)
	v.SetDefault("session.janitor_interval_seconds", d.Session.JanitorIntervalSecs)
	v.SetDefault("session.redis_addr", d.Session.RedisAddr)
	v.SetDefault("session.redis_password", d.Session.RedisPassword)
	v.SetDefault("session.redis_db", d.Session.RedisDB)
	v.SetDefault("session.redis_prefix", d.Session.RedisPrefix)

	v.SetDefault("storage.data_dir", d.Storage.DataDir)
	v.SetDefault("storage.database_path", d.Storage.DatabasePath)
	v.SetDefault("storage.transcripts_enabled", d.Storage.TranscriptsEnabled)
	v.SetDefault("storage.audit_enabled", d.Storage.AuditEnabled)

	v.SetDefault("llm.enabled", d.LLM.Enabled)
	v.SetDefault("llm.model", d.LLM.Model)
	v.SetDefault("llm.endpoint", d.LLM.Endpoint)
	v.SetDefault("llm.timeout_seconds", d.LLM.TimeoutSecs)
	v.SetDefault("llm.history_turns", d.LLM.HistoryTurns)
	v.SetDefault("llm.system_prompt", d.LLM.SystemPrompt)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.to_file", d.Logging.ToFile)

	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.runtime", d.Metrics.Runtime)
}

// mergeConfigFile merges a TOML file into v. Empty or missing paths are skipped.
func mergeConfigFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat config %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("config path %s is a directory", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	v.SetConfigType("toml")
	if err := v.MergeConfig(bytes.NewReader(data)); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// ConfigPaths returns the user and project config file paths.
func ConfigPaths(projectDir, override string) (userPath, projectPath string) {
	if home, err := os.UserHomeDir(); err == nil {
		userPath = filepath.Join(home, DirName, FileName)
	}
	return userPath, projectConfigPath(projectDir, override)
}

func projectConfigPath(projectDir, override string) string {
	if override != "" {
		return override
	}
	return filepath.Join(projectDir, DirName, FileName)
}

// Validate reports every invalid field in one error.
func Validate(cfg Config) error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if strings.TrimSpace(cfg.Server.Addr) == "" {
		add("server.addr must not be empty")
	}
	if cfg.Server.ReadTimeoutSecs < 1 {
		add("server.read_timeout_seconds must be >= 1")
	}
	if cfg.Server.WriteTimeoutSecs < 1 {
		add("server.write_timeout_seconds must be >= 1")
	}
	if cfg.Server.MaxMessageChars < 1 {
		add("server.max_message_chars must be >= 1")
	}

	if cfg.Crisis.ResourceThreshold < 1 {
		add("crisis.resource_threshold must be >= 1")
	}
	if cfg.Crisis.SevereThreshold < 1 {
		add("crisis.severe_threshold must be >= 1")
	}

	switch cfg.Session.Backend {
	case "memory", "sqlite":
	case "redis":
		if strings.TrimSpace(cfg.Session.RedisAddr) == "" {
			add("session.redis_addr is required for the redis backend")
		}
	default:
		add("session.backend must be memory, sqlite or redis (got %q)", cfg.Session.Backend)
	}
	if cfg.Session.TTLMins < 0 {
		add("session.ttl_minutes must be >= 0")
	}
	if cfg.Session.JanitorIntervalSecs < 1 {
		add("session.janitor_interval_seconds must be >= 1")
	}
	if cfg.Session.RedisDB < 0 {
		add("session.redis_db must be >= 0")
	}

	if strings.TrimSpace(cfg.Storage.DataDir) == "" {
		add("storage.data_dir must not be empty")
	}

	if cfg.LLM.TimeoutSecs < 1 {
		add("llm.timeout_seconds must be >= 1")
	}
	if cfg.LLM.HistoryTurns < 0 {
		add("llm.history_turns must be >= 0")
	}
	if cfg.LLM.Enabled && strings.TrimSpace(cfg.LLM.Endpoint) == "" {
		add("llm.endpoint is required when llm.enabled is set")
	}

	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		add("logging.level must be debug, info, warn or error (got %q)", cfg.Logging.Level)
	}
	switch strings.ToLower(cfg.Logging.Format) {
	case "text", "json", "logfmt":
	default:
		add("logging.format must be text, json or logfmt (got %q)", cfg.Logging.Format)
	}

	if len(problems) > 0 {
		return fmt.Errorf("config validation failed: %s", strings.Join(problems, "; "))
	}
	return nil
}
