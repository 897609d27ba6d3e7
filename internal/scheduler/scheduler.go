// Package scheduler decides when ingestion and housekeeping run. It holds no
// pipeline logic of its own.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/hoanghai1803/feedsift/internal/models"
)

// Task names.
const (
	TaskIngest  = "ingest"
	TaskCleanup = "cleanup"
)

const (
	DefaultIngestInterval     = 15 * time.Minute
	DevelopmentIngestInterval = 2 * time.Minute
	DefaultCleanupSchedule    = "@daily"
)

// ErrUnknownTask is returned by StopTask for a name that is not a task.
var ErrUnknownTask = errors.New("unknown task")

// BatchRunner runs one ingestion batch.
type BatchRunner interface {
	RunAll(ctx context.Context) (*models.BatchResult, error)
}

// Cleaner prunes expired content.
type Cleaner interface {
	Cleanup(ctx context.Context) (int64, error)
}

// Config holds the task schedules.
type Config struct {
	IngestInterval  time.Duration
	CleanupSchedule string
}

// TaskInfo describes a scheduled task.
type TaskInfo struct {
	Name     string    `json:"name"`
	Schedule string    `json:"schedule"`
	Next     time.Time `json:"next"`
	Prev     time.Time `json:"prev,omitempty"`
}

type task struct {
	schedule string
	run      func(ctx context.Context)
}

// Scheduler triggers batch runs on an interval and cleanup on a cron
// schedule, and exposes a synchronous manual trigger.
type Scheduler struct {
	cron    *cron.Cron
	batch   BatchRunner
	tasks   map[string]task
	mu      sync.Mutex
	entries map[string]cron.EntryID
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// New creates a Scheduler. Schedules are validated up front.
func New(batch BatchRunner, cleaner Cleaner, cfg Config) (*Scheduler, error) {
	if cfg.IngestInterval <= 0 {
		cfg.IngestInterval = DefaultIngestInterval
	}
	if cfg.CleanupSchedule == "" {
		cfg.CleanupSchedule = DefaultCleanupSchedule
	}

	ingestSpec := "@every " + cfg.IngestInterval.String()
	for _, spec := range []string{ingestSpec, cfg.CleanupSchedule} {
		if _, err := cron.ParseStandard(spec); err != nil {
			return nil, fmt.Errorf("parsing schedule %q: %w", spec, err)
		}
	}

	logger := cronLogger{l: slog.Default().With("component", "scheduler")}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		batch:   batch,
		entries: make(map[string]cron.EntryID),
	}
	s.tasks = map[string]task{
		TaskIngest: {schedule: ingestSpec, run: s.runIngest},
	}
	if cleaner != nil {
		s.tasks[TaskCleanup] = task{schedule: cfg.CleanupSchedule, run: func(ctx context.Context) {
			if _, err := cleaner.Cleanup(ctx); err != nil {
				slog.Error("scheduled cleanup failed", "error", err)
			}
		}}
	}
	return s, nil
}

// Start schedules every task that is not already scheduled and starts the
// timers. Calling Start again after StopTask re-adds the stopped task.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx == nil || s.ctx.Err() != nil {
		s.ctx, s.cancel = context.WithCancel(context.Background())
	}
	ctx := s.ctx

	for name, t := range s.tasks {
		if _, ok := s.entries[name]; ok {
			continue
		}
		run := t.run
		id, err := s.cron.AddFunc(t.schedule, func() { run(ctx) })
		if err != nil {
			// Schedules were validated in New.
			slog.Error("scheduling task", "task", name, "error", err)
			continue
		}
		s.entries[name] = id
		slog.Info("task scheduled", "task", name, "schedule", t.schedule)
	}

	if !s.running {
		s.cron.Start()
		s.running = true
	}
}

// Stop removes every task, cancels any job in flight and waits for it to
// return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	for name, id := range s.entries {
		s.cron.Remove(id)
		delete(s.entries, name)
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.running = false
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	slog.Info("scheduler stopped")
}

// StopTask unschedules one task. A job of that task already running is left
// to finish.
func (s *Scheduler) StopTask(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[name]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTask, name)
	}
	if id, ok := s.entries[name]; ok {
		s.cron.Remove(id)
		delete(s.entries, name)
		slog.Info("task stopped", "task", name)
	}
	return nil
}

// RunNow runs one ingestion batch synchronously through the same path the
// timer uses and returns its result.
func (s *Scheduler) RunNow(ctx context.Context) (*models.BatchResult, error) {
	slog.Info("manual ingest triggered")
	return s.batch.RunAll(ctx)
}

// Tasks lists the scheduled tasks ordered by name.
func (s *Scheduler) Tasks() []TaskInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]TaskInfo, 0, len(s.entries))
	for name, id := range s.entries {
		e := s.cron.Entry(id)
		out = append(out, TaskInfo{
			Name:     name,
			Schedule: s.tasks[name].schedule,
			Next:     e.Next,
			Prev:     e.Prev,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *Scheduler) runIngest(ctx context.Context) {
	res, err := s.batch.RunAll(ctx)
	if err != nil {
		slog.Error("scheduled ingest failed", "error", err)
		return
	}
	slog.Info("scheduled ingest finished",
		"run_id", res.RunID,
		"total", res.Total,
		"succeeded", res.SuccessCount,
		"new_items", res.TotalNewItems,
	)
}

// cronLogger routes cron's own logging through slog. cron reports every
// wake-up at info level, so those go to debug.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error(msg, append(keysAndValues, "error", err)...)
}
