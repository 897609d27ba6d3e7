package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/hoanghai1803/feedsift/internal/clock"
	"github.com/hoanghai1803/feedsift/internal/models"
)

const (
	// DefaultConcurrency is how many sources run at once.
	DefaultConcurrency = 3

	// DefaultChunkDelay separates consecutive chunks of sources.
	DefaultChunkDelay = time.Second
)

// SourceRunner runs one source. *Runner implements it.
type SourceRunner interface {
	Run(ctx context.Context, src models.Source) models.RunResult
}

// SourceLister lists the sources a batch should poll.
type SourceLister interface {
	ListActiveSources(ctx context.Context, kind string) ([]models.Source, error)
}

// OrchestratorConfig tunes batch fan-out. ChunkDelay is used as given, so
// zero means no pause between chunks.
type OrchestratorConfig struct {
	Concurrency int
	ChunkDelay  time.Duration
}

// Orchestrator runs every pollable source in fixed-size chunks.
type Orchestrator struct {
	sources     SourceLister
	runner      SourceRunner
	locker      Locker
	clock       clock.Clock
	concurrency int
	chunkDelay  time.Duration
}

// NewOrchestrator creates an Orchestrator. A nil locker means an in-process
// MemoryLocker and a nil clock the real clock.
func NewOrchestrator(sources SourceLister, runner SourceRunner, locker Locker, clk clock.Clock, cfg OrchestratorConfig) *Orchestrator {
	if locker == nil {
		locker = NewMemoryLocker()
	}
	if clk == nil {
		clk = clock.Real{}
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.ChunkDelay < 0 {
		cfg.ChunkDelay = 0
	}
	return &Orchestrator{
		sources:     sources,
		runner:      runner,
		locker:      locker,
		clock:       clk,
		concurrency: cfg.Concurrency,
		chunkDelay:  cfg.ChunkDelay,
	}
}

// outcome is what one slot of a chunk produced.
type outcome struct {
	result  models.RunResult
	skipped bool
}

// RunAll polls every active feed source once and returns the aggregate.
// A failing source never stops the batch. The error is non-nil only when
// the source list cannot be loaded or ctx ends between chunks, in which case
// the partial result is still returned.
func (o *Orchestrator) RunAll(ctx context.Context) (*models.BatchResult, error) {
	batch := &models.BatchResult{
		RunID:     uuid.NewString(),
		StartedAt: o.clock.Now(),
		Errors:    []models.SourceError{},
	}
	log := slog.With("run_id", batch.RunID)

	sources, err := o.sources.ListActiveSources(ctx, models.SourceKindRSS)
	if err != nil {
		return nil, fmt.Errorf("listing active sources: %w", err)
	}
	sources = uniqueSources(sources)
	log.Info("batch run started", "sources", len(sources), "concurrency", o.concurrency)

	for start := 0; start < len(sources); start += o.concurrency {
		if start > 0 {
			if err := o.pause(ctx); err != nil {
				log.Warn("batch run interrupted", "completed", start, "error", err)
				batch.Duration = o.clock.Now().Sub(batch.StartedAt)
				return batch, err
			}
		}

		chunk := sources[start:min(start+o.concurrency, len(sources))]
		outcomes := make([]outcome, len(chunk))

		// Goroutines never return errors, so one source cannot cancel another.
		var g errgroup.Group
		for i, src := range chunk {
			g.Go(func() error {
				outcomes[i] = o.runOne(ctx, src)
				return nil
			})
		}
		_ = g.Wait()

		for _, out := range outcomes {
			batch.Add(out.result, out.skipped)
		}
	}

	batch.Duration = o.clock.Now().Sub(batch.StartedAt)
	log.Info("batch run complete",
		"total", batch.Total,
		"succeeded", batch.SuccessCount,
		"failed", len(batch.Errors),
		"skipped", batch.Skipped,
		"new_items", batch.TotalNewItems,
		"duration", batch.Duration,
	)
	return batch, nil
}

// runOne runs a source under its lock and converts panics into failures.
func (o *Orchestrator) runOne(ctx context.Context, src models.Source) (out outcome) {
	release, ok, err := o.locker.TryLock(ctx, src.ID)
	if err != nil {
		return outcome{result: models.RunResult{SourceID: src.ID, Error: err.Error()}}
	}
	if !ok {
		slog.Info("source already running, skipping", "source_id", src.ID, "source", src.Name)
		return outcome{result: models.RunResult{SourceID: src.ID}, skipped: true}
	}
	defer release()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("source run panicked", "source_id", src.ID, "panic", r)
			out = outcome{result: models.RunResult{SourceID: src.ID, Error: fmt.Sprintf("panic: %v", r)}}
		}
	}()

	return outcome{result: o.runner.Run(ctx, src)}
}

func (o *Orchestrator) pause(ctx context.Context) error {
	if o.chunkDelay == 0 {
		return ctx.Err()
	}
	t := time.NewTimer(o.chunkDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// uniqueSources drops repeated IDs, keeping the first occurrence, so no
// source is scheduled twice in one batch.
func uniqueSources(sources []models.Source) []models.Source {
	seen := make(map[int64]struct{}, len(sources))
	out := sources[:0:0]
	for _, src := range sources {
		if _, dup := seen[src.ID]; dup {
			continue
		}
		seen[src.ID] = struct{}{}
		out = append(out, src)
	}
	return out
}
