package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

type valueKind int

const (
	kindString valueKind = iota
	kindInt
	kindBool
	kindStringSlice
)

var keyKinds = map[string]valueKind{
	"server.addr":                      kindString,
	"server.read_timeout_seconds":      kindInt,
	"server.write_timeout_seconds":     kindInt,
	"server.allowed_origins":           kindStringSlice,
	"server.max_message_chars":         kindInt,
	"crisis.resource_threshold":        kindInt,
	"crisis.severe_threshold":          kindInt,
	"crisis.extra_critical":            kindStringSlice,
	"crisis.extra_severe":              kindStringSlice,
	"crisis.extra_elevated":            kindStringSlice,
	"session.backend":                  kindString,
	"session.ttl_minutes":              kindInt,
	"session.janitor_interval_seconds": kindInt,
	"session.redis_addr":               kindString,
	"session.redis_password":           kindString,
	"session.redis_db":                 kindInt,
	"session.redis_prefix":             kindString,
	"storage.data_dir":                 kindString,
	"storage.database_path":            kindString,
	"storage.transcripts_enabled":      kindBool,
	"storage.audit_enabled":            kindBool,
	"llm.enabled":                      kindBool,
	"llm.model":                        kindString,
	"llm.endpoint":                     kindString,
	"llm.timeout_seconds":              kindInt,
	"llm.history_turns":                kindInt,
	"llm.system_prompt":                kindString,
	"logging.level":                    kindString,
	"logging.format":                   kindString,
	"logging.to_file":                  kindBool,
	"metrics.enabled":                  kindBool,
	"metrics.runtime":                  kindBool,
}

// Keys returns every settable key in a stable order.
func Keys() []string {
	keys := make([]string, 0, len(keyKinds))
	for k := range keyKinds {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ParseValue converts raw into the type the key expects.
func ParseValue(key, raw string) (any, error) {
	kind, ok := keyKinds[key]
	if !ok {
		return nil, fmt.Errorf("unsupported config key %q", key)
	}
	return parseValueByKind(raw, kind)
}

func parseValueByKind(raw string, kind valueKind) (any, error) {
	raw = strings.TrimSpace(raw)
	switch kind {
	case kindString:
		return raw, nil
	case kindInt:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q", raw)
		}
		return n, nil
	case kindBool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid boolean %q", raw)
		}
		return b, nil
	case kindStringSlice:
		out := []string{}
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported value kind %d", kind)
	}
}

// GetValue looks up a dotted key, or a whole section by name.
func GetValue(cfg Config, key string) (any, bool) {
	section, field, _ := strings.Cut(key, ".")
	switch section {
	case "server":
		s := cfg.Server
		return pick(field, s, map[string]any{
			"addr":                  s.Addr,
			"read_timeout_seconds":  s.ReadTimeoutSecs,
			"write_timeout_seconds": s.WriteTimeoutSecs,
			"allowed_origins":       s.AllowedOrigins,
			"max_message_chars":     s.MaxMessageChars,
		})
	case "crisis":
		c := cfg.Crisis
		return pick(field, c, map[string]any{
			"resource_threshold": c.ResourceThreshold,
			"severe_threshold":   c.SevereThreshold,
			"extra_critical":     c.ExtraCritical,
			"extra_severe":       c.ExtraSevere,
			"extra_elevated":     c.ExtraElevated,
		})
	case "session":
		s := cfg.Session
		return pick(field, s, map[string]any{
			"backend":                  s.Backend,
			"ttl_minutes":              s.TTLMins,
			"janitor_interval_seconds": s.JanitorIntervalSecs,
			"redis_addr":               s.RedisAddr,
			"redis_password":           s.RedisPassword,
			"redis_db":                 s.RedisDB,
			"redis_prefix":             s.RedisPrefix,
		})
	case "storage":
		s := cfg.Storage
		return pick(field, s, map[string]any{
			"data_dir":            s.DataDir,
			"database_path":       s.DatabasePath,
			"transcripts_enabled": s.TranscriptsEnabled,
			"audit_enabled":       s.AuditEnabled,
		})
	case "llm":
		l := cfg.LLM
		return pick(field, l, map[string]any{
			"enabled":         l.Enabled,
			"model":           l.Model,
			"endpoint":        l.Endpoint,
			"timeout_seconds": l.TimeoutSecs,
			"history_turns":   l.HistoryTurns,
			"system_prompt":   l.SystemPrompt,
		})
	case "logging":
		l := cfg.Logging
		return pick(field, l, map[string]any{
			"level":   l.Level,
			"format":  l.Format,
			"to_file": l.ToFile,
		})
	case "metrics":
		m := cfg.Metrics
		return pick(field, m, map[string]any{
			"enabled": m.Enabled,
			"runtime": m.Runtime,
		})
	}
	return nil, false
}

func pick(field string, section any, fields map[string]any) (any, bool) {
	if field == "" {
		return section, true
	}
	v, ok := fields[field]
	return v, ok
}

// WriteValue sets key in the TOML file at path, creating the file and any
// missing tables. Other keys in the file are preserved.
func WriteValue(path, key string, value any) error {
	if path == "" {
		return fmt.Errorf("config path is required")
	}
	parts := strings.Split(key, ".")
	if len(parts) < 2 {
		return fmt.Errorf("config key %q must be section.field", key)
	}

	doc := map[string]any{}
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &doc); err != nil {
			return fmt.Errorf("decode config %s: %w", path, err)
		}
	}

	table := doc
	for _, part := range parts[:len(parts)-1] {
		next, exists := table[part]
		if !exists {
			child := map[string]any{}
			table[part] = child
			table = child
			continue
		}
		child, ok := next.(map[string]any)
		if !ok {
			return fmt.Errorf("config key %q: %s is not a table", key, part)
		}
		table = child
	}
	table[parts[len(parts)-1]] = value

	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".config-*.toml")
	if err != nil {
		return fmt.Errorf("creating temp config: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := toml.NewEncoder(tmp).Encode(doc); err != nil {
		tmp.Close()
		return fmt.Errorf("encode config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace config: %w", err)
	}
	return nil
}
