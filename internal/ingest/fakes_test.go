package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hoanghai1803/feedsift/internal/feeds"
	"github.com/hoanghai1803/feedsift/internal/filter"
	"github.com/hoanghai1803/feedsift/internal/models"
	"github.com/hoanghai1803/feedsift/internal/storage"
)

type fakeSourceStore struct {
	mu      sync.Mutex
	sources map[int64]models.Source
	order   []int64
}

func newFakeSourceStore(sources ...models.Source) *fakeSourceStore {
	s := &fakeSourceStore{sources: make(map[int64]models.Source)}
	for _, src := range sources {
		if src.Kind == "" {
			src.Kind = models.SourceKindRSS
		}
		if src.Status == "" {
			src.Status = models.SourceStatusActive
		}
		s.sources[src.ID] = src
		s.order = append(s.order, src.ID)
	}
	return s
}

func (s *fakeSourceStore) ListActiveSources(_ context.Context, kind string) ([]models.Source, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Source
	for _, id := range s.order {
		src := s.sources[id]
		if src.Kind == kind && src.Status != models.SourceStatusInactive {
			out = append(out, src)
		}
	}
	return out, nil
}

func (s *fakeSourceStore) GetSource(_ context.Context, id int64) (*models.Source, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	src, ok := s.sources[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &src, nil
}

func (s *fakeSourceStore) UpdateSourceHealth(_ context.Context, id int64, h models.SourceHealth) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	src, ok := s.sources[id]
	if !ok {
		return storage.ErrNotFound
	}
	src.Status = h.Status
	src.FetchCount = h.FetchCount
	src.ErrorCount = h.ErrorCount
	src.LastError = h.LastError
	src.LastFetchAt = h.LastFetchAt
	s.sources[id] = src
	return nil
}

func (s *fakeSourceStore) get(id int64) models.Source {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sources[id]
}

type fakeContentStore struct {
	mu         sync.Mutex
	bulkErr    error
	failTitles map[string]bool
	saved      []models.Content
	bulkCalls  int
}

func (c *fakeContentStore) FindRecentContent(_ context.Context, sourceID int64, since time.Time) ([]models.ContentRef, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var refs []models.ContentRef
	for _, item := range c.saved {
		if item.SourceID == sourceID && !item.CreatedAt.Before(since) {
			refs = append(refs, models.ContentRef{URL: item.URL, Title: item.Title})
		}
	}
	return refs, nil
}

func (c *fakeContentStore) CreateContents(_ context.Context, items []models.Content) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bulkCalls++
	if c.bulkErr != nil {
		return 0, c.bulkErr
	}
	c.saved = append(c.saved, items...)
	return len(items), nil
}

func (c *fakeContentStore) CreateContent(_ context.Context, item *models.Content) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failTitles[item.Title] {
		return 0, errors.New("constraint failed")
	}
	c.saved = append(c.saved, *item)
	return int64(len(c.saved)), nil
}

type fakeFetcher struct {
	feeds map[string]*feeds.Feed
	errs  map[string]error
}

func (f *fakeFetcher) Fetch(_ context.Context, feedURL string) (*feeds.Feed, error) {
	if err, ok := f.errs[feedURL]; ok {
		return nil, &feeds.FetchError{URL: feedURL, Err: err}
	}
	if feed, ok := f.feeds[feedURL]; ok {
		return feed, nil
	}
	return &feeds.Feed{}, nil
}

type keepAll struct{}

func (keepAll) ShouldFilter(string, string, string) filter.Decision {
	return filter.Decision{Reason: "kept"}
}

func feedOf(titles ...string) *feeds.Feed {
	feed := &feeds.Feed{Title: "test"}
	for _, t := range titles {
		feed.Items = append(feed.Items, feeds.RawItem{
			Title: t,
			Link:  "https://example.com/" + t,
		})
	}
	return feed
}

func sourceURL(id int64) string {
	return fmt.Sprintf("https://feed%d.example/rss", id)
}
