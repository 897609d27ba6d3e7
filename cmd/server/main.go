package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/hoanghai1803/feedsift/internal/api"
	"github.com/hoanghai1803/feedsift/internal/clock"
	"github.com/hoanghai1803/feedsift/internal/config"
	"github.com/hoanghai1803/feedsift/internal/feeds"
	"github.com/hoanghai1803/feedsift/internal/filter"
	"github.com/hoanghai1803/feedsift/internal/ingest"
	"github.com/hoanghai1803/feedsift/internal/scheduler"
	"github.com/hoanghai1803/feedsift/internal/storage"
)

// options are the command-line flags. Everything else lives in the TOML file.
type options struct {
	Config string `long:"config" env:"FEEDSIFT_CONFIG" default:"config.toml" description:"Path to the TOML config file"`
	DB     string `long:"db" description:"SQLite database path (overrides the config file)"`
	Once   bool   `long:"once" description:"Run one ingestion batch, print its summary and exit"`
	Debug  bool   `long:"debug" env:"FEEDSIFT_DEBUG" description:"Enable debug logging"`
}

const shutdownTimeout = 15 * time.Second

func main() {
	_ = godotenv.Load()

	var opts options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(2)
	}

	level := slog.LevelInfo
	if opts.Debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if err := run(opts); err != nil {
		slog.Error("feedsift exited", "error", err)
		os.Exit(1)
	}
}

func run(opts options) error {
	// Load configuration (auto-creates default if missing).
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return err
	}
	if opts.DB != "" {
		cfg.Database.Path = opts.DB
	}

	if dir := filepath.Dir(cfg.Database.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating data directory: %w", err)
		}
	}

	// Open database with WAL mode and pragmas.
	db, err := storage.OpenDatabase(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	version, err := storage.RunMigrations(db)
	if err != nil {
		return err
	}
	slog.Info("database ready", "path", cfg.Database.Path, "schema_version", version)

	store := storage.NewStore(db)
	if err := store.SeedDefaults(context.Background()); err != nil {
		return err
	}

	scorer, err := newScorer(cfg.Filter.RulesPath)
	if err != nil {
		return err
	}

	fetcher := feeds.NewFetcher(feeds.FetcherOptions{
		Timeout:   cfg.Feeds.RequestTimeout(),
		UserAgent: cfg.Feeds.UserAgent,
	})

	deps := ingest.RunnerDeps{
		Sources:     store,
		Contents:    store,
		Fetcher:     fetcher,
		Scorer:      scorer,
		Clock:       clock.Real{},
		DedupWindow: cfg.Feeds.DedupWindow(),
	}
	if cfg.Feeds.ExtractFullText {
		deps.Extractor = fetcher
	}
	runner := ingest.NewRunner(deps)

	locker, closeLocker := newLocker(cfg.Redis)
	defer closeLocker()

	orchestrator := ingest.NewOrchestrator(store, runner, locker, clock.Real{}, ingest.OrchestratorConfig{
		Concurrency: cfg.Ingest.Concurrency,
		ChunkDelay:  cfg.Ingest.ChunkDelay(),
	})

	if opts.Once {
		return runOnce(orchestrator)
	}

	housekeeper := ingest.NewHousekeeper(store, clock.Real{}, cfg.Ingest.Retention())
	sched, err := scheduler.New(orchestrator, housekeeper, scheduler.Config{
		IngestInterval:  cfg.Scheduler.IngestInterval(),
		CleanupSchedule: cfg.Scheduler.CleanupSchedule,
	})
	if err != nil {
		return err
	}

	router := api.NewRouter(api.Deps{
		DB:        db,
		Sources:   store,
		Filter:    scorer,
		Trigger:   sched,
		Scheduler: sched,
	})

	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sched.Start()
	defer sched.Stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting admin server", "addr", "http://"+addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("admin server: %w", err)
		}
	case <-ctx.Done():
		slog.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down admin server: %w", err)
	}
	return nil
}

// newScorer builds the relevance scorer, replacing the built-in rules with
// the YAML file at path when one is given.
func newScorer(path string) (*filter.Scorer, error) {
	if path == "" {
		return filter.NewDefaultScorer(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading filter rules: %w", err)
	}
	rules, err := filter.ParseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("loading filter rules from %s: %w", path, err)
	}
	slog.Info("filter rules loaded", "path", path,
		"include", len(rules.Include), "exclude", len(rules.Exclude))
	return filter.NewScorer(rules)
}

// newLocker returns a Redis-backed run lock when an address is configured
// and reachable, and the in-process lock otherwise.
func newLocker(cfg config.RedisConfig) (ingest.Locker, func()) {
	if cfg.Addr == "" {
		return ingest.NewMemoryLocker(), func() {}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		slog.Warn("redis unreachable, using in-process run lock", "addr", cfg.Addr, "error", err)
		_ = client.Close()
		return ingest.NewMemoryLocker(), func() {}
	}

	slog.Info("using redis run lock", "addr", cfg.Addr)
	return ingest.NewRedisLocker(client, "", cfg.LockTTL()), func() { _ = client.Close() }
}

// runOnce runs a single batch in the foreground and writes its summary to
// stdout as JSON.
func runOnce(o *ingest.Orchestrator) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := o.RunAll(ctx)
	if result != nil {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(result); encErr != nil {
			return fmt.Errorf("writing batch summary: %w", encErr)
		}
	}
	return err
}
