package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hoanghai1803/feedsift/internal/clock"
	"github.com/hoanghai1803/feedsift/internal/feeds"
	"github.com/hoanghai1803/feedsift/internal/models"
	"github.com/hoanghai1803/feedsift/internal/storage"
)

// DefaultDedupWindow is how far back already-ingested content is compared
// against newly fetched items.
const DefaultDedupWindow = 48 * time.Hour

// RunnerDeps are the collaborators of a Runner. Extractor is optional; when
// nil, items keep whatever body the feed carried.
type RunnerDeps struct {
	Sources     SourceStore
	Contents    ContentStore
	Fetcher     FeedFetcher
	Extractor   ArticleExtractor
	Scorer      Scorer
	Clock       clock.Clock
	DedupWindow time.Duration
}

// Runner performs one fetch-to-persist cycle for a single source and records
// the outcome on the source's health fields.
type Runner struct {
	sources     SourceStore
	contents    ContentStore
	fetcher     FeedFetcher
	extractor   ArticleExtractor
	scorer      Scorer
	clock       clock.Clock
	dedupWindow time.Duration
}

// NewRunner creates a Runner. A nil Clock means the real clock and a
// non-positive DedupWindow means DefaultDedupWindow.
func NewRunner(deps RunnerDeps) *Runner {
	if deps.Clock == nil {
		deps.Clock = clock.Real{}
	}
	if deps.DedupWindow <= 0 {
		deps.DedupWindow = DefaultDedupWindow
	}
	return &Runner{
		sources:     deps.Sources,
		contents:    deps.Contents,
		fetcher:     deps.Fetcher,
		extractor:   deps.Extractor,
		scorer:      deps.Scorer,
		clock:       deps.Clock,
		dedupWindow: deps.DedupWindow,
	}
}

// Run ingests one source. It never returns an error: every failure is folded
// into the result and written to the source's health record.
func (r *Runner) Run(ctx context.Context, src models.Source) models.RunResult {
	log := slog.With("source_id", src.ID, "source", src.Name)

	// The caller's copy may be stale by the time a chunk reaches it.
	current, err := r.sources.GetSource(ctx, src.ID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		log.Warn("source disappeared before run")
		return models.RunResult{SourceID: src.ID, Error: fmt.Sprintf("source %d not found", src.ID)}
	case err != nil:
		log.Warn("re-reading source failed, using listed copy", "error", err)
	default:
		src = *current
	}

	result := models.RunResult{SourceID: src.ID}

	feed, err := r.fetcher.Fetch(ctx, src.FeedURL)
	if err != nil {
		return r.fail(ctx, src, result, err)
	}
	result.Fetched = len(feed.Items)

	now := r.clock.Now()
	items := feeds.NormalizeAll(feed.Items, src)
	for i := range items {
		items[i].CreatedAt = now
	}

	recent, err := r.contents.FindRecentContent(ctx, src.ID, now.Add(-r.dedupWindow))
	if err != nil {
		return r.fail(ctx, src, result, fmt.Errorf("loading recent content: %w", err))
	}
	fresh := feeds.Dedup(items, recent)
	result.Duplicates = len(items) - len(fresh)

	if len(fresh) == 0 {
		log.Info("no new items", "fetched", result.Fetched, "duplicates", result.Duplicates)
		return r.succeed(ctx, src, result)
	}

	r.enrich(ctx, fresh)

	keep := fresh[:0]
	for _, item := range fresh {
		d := r.scorer.ShouldFilter(item.Title, item.Description, feeds.StripHTML(item.Body))
		if d.ShouldFilter {
			result.Filtered++
			log.Debug("item filtered", "title", item.Title, "reason", d.Reason)
			continue
		}
		keep = append(keep, item)
	}

	result.NewItems = r.persist(ctx, log, keep, &result)

	log.Info("source run complete",
		"fetched", result.Fetched,
		"duplicates", result.Duplicates,
		"filtered", result.Filtered,
		"new_items", result.NewItems,
		"save_failed", result.SaveFailed,
	)
	return r.succeed(ctx, src, result)
}

// persist saves items in one transaction, falling back to one insert per
// item when the bulk write fails. Items the store already holds under the
// same URL count as duplicates. Individual failures are logged and counted,
// never returned.
func (r *Runner) persist(ctx context.Context, log *slog.Logger, items []models.Content, result *models.RunResult) int {
	if len(items) == 0 {
		return 0
	}

	n, err := r.contents.CreateContents(ctx, items)
	if err == nil {
		result.Duplicates += len(items) - n
		return n
	}
	log.Warn("bulk insert failed, saving items one at a time", "items", len(items), "error", err)

	saved := 0
	for i := range items {
		if _, err := r.contents.CreateContent(ctx, &items[i]); err != nil {
			result.SaveFailed++
			log.Warn("skipping item that failed to save", "title", items[i].Title, "url", items[i].URL, "error", err)
			continue
		}
		saved++
	}
	return saved
}

// enrich fills empty bodies from the article page when an extractor is set.
func (r *Runner) enrich(ctx context.Context, items []models.Content) {
	if r.extractor == nil {
		return
	}
	for i := range items {
		if items[i].Body != "" || items[i].URL == "" {
			continue
		}
		text, err := r.extractor.ExtractArticle(ctx, items[i].URL)
		if err != nil {
			slog.Debug("article extraction failed", "url", items[i].URL, "error", err)
			continue
		}
		items[i].Body = text
	}
}

func (r *Runner) fail(ctx context.Context, src models.Source, result models.RunResult, cause error) models.RunResult {
	msg := cause.Error()
	h := src.Health()
	h.Status = models.SourceStatusError
	h.ErrorCount++
	h.LastError = &msg
	r.writeHealth(ctx, src, h)

	slog.Warn("source run failed", "source_id", src.ID, "source", src.Name, "error", msg)
	result.Success = false
	result.Error = msg
	return result
}

func (r *Runner) succeed(ctx context.Context, src models.Source, result models.RunResult) models.RunResult {
	now := r.clock.Now()
	h := src.Health()
	h.Status = models.SourceStatusActive
	h.FetchCount++
	h.LastError = nil
	h.LastFetchAt = &now
	r.writeHealth(ctx, src, h)

	result.Success = true
	return result
}

// writeHealth records h even when ctx has already been cancelled, so a run
// cut short by a deadline still leaves a trace.
func (r *Runner) writeHealth(ctx context.Context, src models.Source, h models.SourceHealth) {
	if err := r.sources.UpdateSourceHealth(context.WithoutCancel(ctx), src.ID, h); err != nil {
		slog.Error("recording source health", "source_id", src.ID, "status", h.Status, "error", err)
	}
}
