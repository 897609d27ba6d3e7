package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// writeTestConfig writes a TOML config file to a temp directory and returns
// its path.
func writeTestConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing test config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
[server]
host = "0.0.0.0"
port = 9090

[database]
path = "/var/lib/feedsift/app.db"

[feeds]
request_timeout_seconds = 5
user_agent = "custom-agent/2.0"
extract_full_text = true
dedup_window_hours = 24

[filter]
rules_path = "rules.yaml"

[ingest]
concurrency = 5
chunk_delay_ms = 250
retention_days = 7

[scheduler]
environment = "development"
ingest_interval_minutes = 5
cleanup_schedule = "0 3 * * *"

[redis]
addr = "localhost:6379"
lock_ttl_seconds = 120
`
	cfg, err := Load(writeTestConfig(t, content))
	if err != nil {
		t.Fatalf("Load unexpected error: %v", err)
	}

	if cfg.Server.Host != "0.0.0.0" || cfg.Server.Port != 9090 {
		t.Errorf("Server = %+v", cfg.Server)
	}
	if cfg.Database.Path != "/var/lib/feedsift/app.db" {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
	if cfg.Feeds.RequestTimeout() != 5*time.Second || cfg.Feeds.UserAgent != "custom-agent/2.0" || !cfg.Feeds.ExtractFullText {
		t.Errorf("Feeds = %+v", cfg.Feeds)
	}
	if cfg.Feeds.DedupWindow() != 24*time.Hour {
		t.Errorf("DedupWindow = %v", cfg.Feeds.DedupWindow())
	}
	if cfg.Filter.RulesPath != "rules.yaml" {
		t.Errorf("Filter.RulesPath = %q", cfg.Filter.RulesPath)
	}
	if cfg.Ingest.Concurrency != 5 || cfg.Ingest.ChunkDelay() != 250*time.Millisecond || cfg.Ingest.Retention() != 7*24*time.Hour {
		t.Errorf("Ingest = %+v", cfg.Ingest)
	}
	if cfg.Scheduler.IngestInterval() != 5*time.Minute || cfg.Scheduler.CleanupSchedule != "0 3 * * *" {
		t.Errorf("Scheduler = %+v", cfg.Scheduler)
	}
	if cfg.Redis.Addr != "localhost:6379" || cfg.Redis.LockTTL() != 2*time.Minute {
		t.Errorf("Redis = %+v", cfg.Redis)
	}
}

func TestLoad_MissingFile_CreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load(%q) unexpected error: %v", path, err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config file not created at %q: %v", path, err)
	}

	if cfg.Server.Port != 8080 || cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Server = %+v", cfg.Server)
	}
	if cfg.Ingest.Concurrency != 3 || cfg.Ingest.ChunkDelayMS != 1000 || cfg.Ingest.RetentionDays != 30 {
		t.Errorf("Ingest = %+v", cfg.Ingest)
	}
	if cfg.Feeds.RequestTimeoutSeconds != 10 || cfg.Feeds.DedupWindowHours != 48 || cfg.Feeds.ExtractFullText {
		t.Errorf("Feeds = %+v", cfg.Feeds)
	}
	if cfg.Scheduler.Environment != EnvProduction || cfg.Scheduler.IngestInterval() != 15*time.Minute {
		t.Errorf("Scheduler = %+v", cfg.Scheduler)
	}
	if cfg.Scheduler.CleanupSchedule != "@daily" {
		t.Errorf("CleanupSchedule = %q", cfg.Scheduler.CleanupSchedule)
	}
}

func TestLoad_DefaultsApplied(t *testing.T) {
	cfg, err := Load(writeTestConfig(t, "[server]\n[ingest]\n"))
	if err != nil {
		t.Fatalf("Load unexpected error: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want default 8080", cfg.Server.Port)
	}
	if cfg.Database.Path != filepath.Join("data", "feedsift.db") {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
	if cfg.Ingest.ChunkDelayMS != 1000 {
		t.Errorf("ChunkDelayMS = %d, want default 1000", cfg.Ingest.ChunkDelayMS)
	}
	if cfg.Redis.LockTTLSeconds != 600 {
		t.Errorf("LockTTLSeconds = %d, want 600", cfg.Redis.LockTTLSeconds)
	}
}

func TestLoad_ExplicitZeroChunkDelayKept(t *testing.T) {
	cfg, err := Load(writeTestConfig(t, "[ingest]\nchunk_delay_ms = 0\n"))
	if err != nil {
		t.Fatalf("Load unexpected error: %v", err)
	}
	if cfg.Ingest.ChunkDelay() != 0 {
		t.Errorf("ChunkDelay = %v, want 0", cfg.Ingest.ChunkDelay())
	}
}

func TestLoad_DevelopmentInterval(t *testing.T) {
	t.Setenv("APP_ENV", "development")

	cfg, err := Load(writeTestConfig(t, "[scheduler]\nenvironment = \"production\"\n"))
	if err != nil {
		t.Fatalf("Load unexpected error: %v", err)
	}
	if cfg.Scheduler.Environment != EnvDevelopment {
		t.Errorf("Environment = %q, want APP_ENV override", cfg.Scheduler.Environment)
	}
	if cfg.Scheduler.IngestInterval() != 2*time.Minute {
		t.Errorf("IngestInterval = %v, want 2m", cfg.Scheduler.IngestInterval())
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("FEEDSIFT_DB_PATH", "/tmp/override.db")
	t.Setenv("FEEDSIFT_PORT", "9999")

	cfg, err := Load(writeTestConfig(t, "[redis]\naddr = \"file:6379\"\n[server]\nport = 8081\n"))
	if err != nil {
		t.Fatalf("Load unexpected error: %v", err)
	}
	if cfg.Redis.Addr != "redis:6379" {
		t.Errorf("Redis.Addr = %q", cfg.Redis.Addr)
	}
	if cfg.Database.Path != "/tmp/override.db" {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("Server.Port = %d", cfg.Server.Port)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{name: "port zero", content: "[server]\nport = 0\n", wantErr: "server.port"},
		{name: "port too large", content: "[server]\nport = 70000\n", wantErr: "server.port"},
		{name: "concurrency zero", content: "[ingest]\nconcurrency = 0\n", wantErr: "ingest.concurrency"},
		{name: "negative delay", content: "[ingest]\nchunk_delay_ms = -5\n", wantErr: "ingest.chunk_delay_ms"},
		{name: "retention zero", content: "[ingest]\nretention_days = 0\n", wantErr: "ingest.retention_days"},
		{name: "dedup window zero", content: "[feeds]\ndedup_window_hours = 0\n", wantErr: "feeds.dedup_window_hours"},
		{name: "unknown environment", content: "[scheduler]\nenvironment = \"staging\"\n", wantErr: "scheduler.environment"},
		{name: "malformed toml", content: "[server\nport = 1\n", wantErr: "parsing config file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeTestConfig(t, tt.content))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}
