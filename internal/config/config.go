package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// Environments.
const (
	EnvProduction  = "production"
	EnvDevelopment = "development"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Database  DatabaseConfig  `toml:"database"`
	Feeds     FeedsConfig     `toml:"feeds"`
	Filter    FilterConfig    `toml:"filter"`
	Ingest    IngestConfig    `toml:"ingest"`
	Scheduler SchedulerConfig `toml:"scheduler"`
	Redis     RedisConfig     `toml:"redis"`
}

// ServerConfig holds admin HTTP server settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// DatabaseConfig holds SQLite settings.
type DatabaseConfig struct {
	Path string `toml:"path"`
}

// FeedsConfig holds feed fetching settings.
type FeedsConfig struct {
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
	UserAgent             string `toml:"user_agent"`
	ExtractFullText       bool   `toml:"extract_full_text"`
	DedupWindowHours      int    `toml:"dedup_window_hours"`
}

// FilterConfig points at an optional YAML rule set replacing the built-in
// relevance rules at startup.
type FilterConfig struct {
	RulesPath string `toml:"rules_path"`
}

// IngestConfig holds batch fan-out and retention settings.
type IngestConfig struct {
	Concurrency   int `toml:"concurrency"`
	ChunkDelayMS  int `toml:"chunk_delay_ms"`
	RetentionDays int `toml:"retention_days"`
}

// SchedulerConfig holds task schedules. IngestIntervalMinutes of zero means
// the environment default.
type SchedulerConfig struct {
	Environment           string `toml:"environment"`
	IngestIntervalMinutes int    `toml:"ingest_interval_minutes"`
	CleanupSchedule       string `toml:"cleanup_schedule"`
}

// RedisConfig enables the shared run lock when Addr is set.
type RedisConfig struct {
	Addr           string `toml:"addr"`
	Password       string `toml:"password"`
	DB             int    `toml:"db"`
	LockTTLSeconds int    `toml:"lock_ttl_seconds"`
}

const defaultConfigContent = `[server]
host = "127.0.0.1"
port = 8080

[database]
path = "data/feedsift.db"

[feeds]
request_timeout_seconds = 10
user_agent = ""                   # empty means the built-in identifying agent
extract_full_text = false         # fetch article pages when a feed item has no body
dedup_window_hours = 48

[filter]
rules_path = ""                   # YAML rule set; empty means the built-in rules

[ingest]
concurrency = 3
chunk_delay_ms = 1000
retention_days = 30

[scheduler]
environment = "production"        # "production" or "development" (or set APP_ENV)
ingest_interval_minutes = 0       # 0 means 15 in production, 2 in development
cleanup_schedule = "@daily"

[redis]
addr = ""                         # set (or REDIS_ADDR) to share run locks across processes
password = ""
db = 0
lock_ttl_seconds = 600
`

// Load reads and parses the TOML config from the given path. If the file does
// not exist, it creates a default config file at that path. Environment
// variables override values from the file with highest priority.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if err := createDefault(path); err != nil {
			return nil, fmt.Errorf("creating default config: %w", err)
		}
		slog.Info("created default config file", "path", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		slog.Warn("ignoring unknown config keys", "keys", fmt.Sprint(undecoded))
	}

	// Explicit values are checked before defaults fill the gaps, so that
	// "port = 0" is an error rather than silently becoming 8080.
	if err := validateExplicit(&cfg, md); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	applyDefaults(&cfg, md)
	applyEnvOverrides(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// createDefault writes the default config content to the given path,
// creating any parent directories as needed.
func createDefault(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(defaultConfigContent), 0o644); err != nil {
		return fmt.Errorf("writing default config: %w", err)
	}
	return nil
}

// validateExplicit checks values that were explicitly set in the TOML file
// and that a zero would otherwise hide.
func validateExplicit(cfg *Config, md toml.MetaData) error {
	if md.IsDefined("server", "port") {
		if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
			return fmt.Errorf("invalid server.port %d: must be between 1 and 65535", cfg.Server.Port)
		}
	}
	if md.IsDefined("ingest", "concurrency") && cfg.Ingest.Concurrency < 1 {
		return fmt.Errorf("invalid ingest.concurrency %d: must be >= 1", cfg.Ingest.Concurrency)
	}
	if md.IsDefined("ingest", "retention_days") && cfg.Ingest.RetentionDays < 1 {
		return fmt.Errorf("invalid ingest.retention_days %d: must be >= 1", cfg.Ingest.RetentionDays)
	}
	if md.IsDefined("feeds", "dedup_window_hours") && cfg.Feeds.DedupWindowHours < 1 {
		return fmt.Errorf("invalid feeds.dedup_window_hours %d: must be >= 1", cfg.Feeds.DedupWindowHours)
	}
	if md.IsDefined("feeds", "request_timeout_seconds") && cfg.Feeds.RequestTimeoutSeconds < 1 {
		return fmt.Errorf("invalid feeds.request_timeout_seconds %d: must be >= 1", cfg.Feeds.RequestTimeoutSeconds)
	}
	return nil
}

// applyDefaults sets default values for any zero-valued fields. An explicit
// chunk_delay_ms = 0 is kept.
func applyDefaults(cfg *Config, md toml.MetaData) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = filepath.Join("data", "feedsift.db")
	}
	if cfg.Feeds.RequestTimeoutSeconds == 0 {
		cfg.Feeds.RequestTimeoutSeconds = 10
	}
	if cfg.Feeds.DedupWindowHours == 0 {
		cfg.Feeds.DedupWindowHours = 48
	}
	if cfg.Ingest.Concurrency == 0 {
		cfg.Ingest.Concurrency = 3
	}
	if cfg.Ingest.ChunkDelayMS == 0 && !md.IsDefined("ingest", "chunk_delay_ms") {
		cfg.Ingest.ChunkDelayMS = 1000
	}
	if cfg.Ingest.RetentionDays == 0 {
		cfg.Ingest.RetentionDays = 30
	}
	if cfg.Scheduler.Environment == "" {
		cfg.Scheduler.Environment = EnvProduction
	}
	if cfg.Scheduler.CleanupSchedule == "" {
		cfg.Scheduler.CleanupSchedule = "@daily"
	}
	if cfg.Redis.LockTTLSeconds == 0 {
		cfg.Redis.LockTTLSeconds = 600
	}
}

// applyEnvOverrides applies environment variable overrides. Environment
// variables take highest priority over config file values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("APP_ENV"); v != "" {
		cfg.Scheduler.Environment = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("FEEDSIFT_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("FEEDSIFT_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			slog.Warn("ignoring FEEDSIFT_PORT", "value", v, "error", err)
		} else {
			cfg.Server.Port = port
		}
	}
}

// validate checks that configuration values are within acceptable ranges.
func validate(cfg *Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d: must be between 1 and 65535", cfg.Server.Port)
	}

	switch cfg.Scheduler.Environment {
	case EnvProduction, EnvDevelopment:
	default:
		return fmt.Errorf("invalid scheduler.environment %q: must be %q or %q",
			cfg.Scheduler.Environment, EnvProduction, EnvDevelopment)
	}

	if cfg.Scheduler.IngestIntervalMinutes < 0 {
		return fmt.Errorf("invalid scheduler.ingest_interval_minutes %d: must be >= 0", cfg.Scheduler.IngestIntervalMinutes)
	}
	if cfg.Ingest.ChunkDelayMS < 0 {
		return fmt.Errorf("invalid ingest.chunk_delay_ms %d: must be >= 0", cfg.Ingest.ChunkDelayMS)
	}
	if cfg.Ingest.Concurrency < 1 {
		return fmt.Errorf("invalid ingest.concurrency %d: must be >= 1", cfg.Ingest.Concurrency)
	}
	if cfg.Ingest.RetentionDays < 1 {
		return fmt.Errorf("invalid ingest.retention_days %d: must be >= 1", cfg.Ingest.RetentionDays)
	}
	if cfg.Feeds.DedupWindowHours < 1 {
		return fmt.Errorf("invalid feeds.dedup_window_hours %d: must be >= 1", cfg.Feeds.DedupWindowHours)
	}
	if cfg.Feeds.RequestTimeoutSeconds < 1 {
		return fmt.Errorf("invalid feeds.request_timeout_seconds %d: must be >= 1", cfg.Feeds.RequestTimeoutSeconds)
	}

	return nil
}

// RequestTimeout is the per-feed HTTP timeout.
func (c FeedsConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// DedupWindow is how far back fetched items are compared for duplicates.
func (c FeedsConfig) DedupWindow() time.Duration {
	return time.Duration(c.DedupWindowHours) * time.Hour
}

// ChunkDelay is the pause between chunks of a batch.
func (c IngestConfig) ChunkDelay() time.Duration {
	return time.Duration(c.ChunkDelayMS) * time.Millisecond
}

// Retention is how long content is kept.
func (c IngestConfig) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

// IngestInterval resolves the batch interval, falling back to 15 minutes in
// production and 2 in development.
func (c SchedulerConfig) IngestInterval() time.Duration {
	if c.IngestIntervalMinutes > 0 {
		return time.Duration(c.IngestIntervalMinutes) * time.Minute
	}
	if c.Environment == EnvDevelopment {
		return 2 * time.Minute
	}
	return 15 * time.Minute
}

// LockTTL bounds how long a Redis run lock survives a crashed holder.
func (c RedisConfig) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSeconds) * time.Second
}
