// Package ingest runs the feed ingestion pipeline: one source at a time
// through the Runner, and every pollable source through the Orchestrator.
package ingest

import (
	"context"
	"time"

	"github.com/hoanghai1803/feedsift/internal/feeds"
	"github.com/hoanghai1803/feedsift/internal/filter"
	"github.com/hoanghai1803/feedsift/internal/models"
)

// SourceStore reads sources and records their health.
type SourceStore interface {
	ListActiveSources(ctx context.Context, kind string) ([]models.Source, error)
	GetSource(ctx context.Context, id int64) (*models.Source, error)
	UpdateSourceHealth(ctx context.Context, id int64, h models.SourceHealth) error
}

// ContentStore persists normalized content and answers dedup lookups.
type ContentStore interface {
	FindRecentContent(ctx context.Context, sourceID int64, since time.Time) ([]models.ContentRef, error)
	CreateContents(ctx context.Context, items []models.Content) (int, error)
	CreateContent(ctx context.Context, c *models.Content) (int64, error)
}

// FeedFetcher retrieves and parses one feed.
type FeedFetcher interface {
	Fetch(ctx context.Context, feedURL string) (*feeds.Feed, error)
}

// ArticleExtractor fetches the readable text of an article page.
type ArticleExtractor interface {
	ExtractArticle(ctx context.Context, articleURL string) (string, error)
}

// Scorer decides whether an item is relevant enough to keep.
type Scorer interface {
	ShouldFilter(title, description, body string) filter.Decision
}
