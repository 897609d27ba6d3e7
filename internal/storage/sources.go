package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hoanghai1803/feedsift/internal/models"
)

// defaultSources are the feeds seeded into a new database.
var defaultSources = []models.Source{
	{Name: "BBC Business", FeedURL: "https://feeds.bbci.co.uk/news/business/rss.xml"},
	{Name: "CNBC Top News", FeedURL: "https://search.cnbc.com/rs/search/combinedcms/view.xml?partnerId=wrss01&id=100003114"},
	{Name: "MarketWatch Top Stories", FeedURL: "https://feeds.content.dowjones.io/public/rss/mw_topstories"},
	{Name: "Yahoo Finance", FeedURL: "https://finance.yahoo.com/news/rssindex"},
	{Name: "TechCrunch", FeedURL: "https://techcrunch.com/feed/"},
	{Name: "The Guardian Business", FeedURL: "https://www.theguardian.com/uk/business/rss"},
	{Name: "NPR Business", FeedURL: "https://feeds.npr.org/1006/rss.xml"},
	{Name: "Investing.com News", FeedURL: "https://www.investing.com/rss/news.rss"},
}

const sourceColumns = `id, name, kind, feed_url, status, last_fetch_at, fetch_count, error_count, last_error, created_at`

// GetAllSources returns every source regardless of kind or status, ordered
// by name.
func (s *Store) GetAllSources(ctx context.Context) ([]models.Source, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sourceColumns+` FROM sources ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("querying all sources: %w", err)
	}
	defer rows.Close()

	return scanSources(rows)
}

// ListActiveSources returns the pollable sources of the given kind. Sources
// in error or rate_limited state are included so they can recover; only
// inactive sources are skipped.
func (s *Store) ListActiveSources(ctx context.Context, kind string) ([]models.Source, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sourceColumns+`
		 FROM sources WHERE kind = ? AND status <> ? ORDER BY id`,
		kind, string(models.SourceStatusInactive))
	if err != nil {
		return nil, fmt.Errorf("querying active %s sources: %w", kind, err)
	}
	defer rows.Close()

	return scanSources(rows)
}

// GetSource returns the source with the given ID.
// Returns nil, ErrNotFound if no matching row exists.
func (s *Store) GetSource(ctx context.Context, id int64) (*models.Source, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sourceColumns+` FROM sources WHERE id = ?`, id)

	src, err := scanSource(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting source %d: %w", id, err)
	}
	return src, nil
}

// CreateSource inserts a source and returns its ID. Kind defaults to rss and
// status to active.
func (s *Store) CreateSource(ctx context.Context, src *models.Source) (int64, error) {
	kind := src.Kind
	if kind == "" {
		kind = models.SourceKindRSS
	}
	status := src.Status
	if status == "" {
		status = models.SourceStatusActive
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO sources (name, kind, feed_url, status) VALUES (?, ?, ?, ?)`,
		src.Name, kind, src.FeedURL, string(status))
	if err != nil {
		return 0, fmt.Errorf("creating source %q: %w", src.Name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting source id: %w", err)
	}
	return id, nil
}

// UpdateSourceHealth overwrites the health fields of a source. A source set
// to inactive stays inactive; only its counters and timestamps change.
// It returns ErrNotFound if no source matches the given ID.
func (s *Store) UpdateSourceHealth(ctx context.Context, id int64, h models.SourceHealth) error {
	if !h.Status.Valid() {
		return fmt.Errorf("updating source %d: invalid status %q", id, h.Status)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE sources
		 SET status = CASE WHEN status = 'inactive' THEN status ELSE ? END,
		     fetch_count = ?, error_count = ?, last_error = ?, last_fetch_at = ?
		 WHERE id = ?`,
		string(h.Status), h.FetchCount, h.ErrorCount, h.LastError, formatTimePtr(h.LastFetchAt), id)
	if err != nil {
		return fmt.Errorf("updating health of source %d: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected for source %d: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetSourceStatus changes only the status of a source, for example to take
// it out of rotation with inactive. It returns ErrNotFound if no source
// matches the given ID.
func (s *Store) SetSourceStatus(ctx context.Context, id int64, status models.SourceStatus) error {
	if !status.Valid() {
		return fmt.Errorf("setting status of source %d: invalid status %q", id, status)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE sources SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("setting status of source %d: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected for source %d: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SeedDefaults inserts the default sources if the sources table is empty.
// All inserts happen within a single transaction. Calling it on a non-empty
// table is a no-op.
func (s *Store) SeedDefaults(ctx context.Context) error {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sources`).Scan(&count); err != nil {
		return fmt.Errorf("counting sources: %w", err)
	}
	if count > 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning seed transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO sources (name, kind, feed_url, status) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing seed statement: %w", err)
	}
	defer stmt.Close()

	for _, src := range defaultSources {
		if _, err := stmt.ExecContext(ctx, src.Name, models.SourceKindRSS, src.FeedURL, string(models.SourceStatusActive)); err != nil {
			return fmt.Errorf("seeding source %q: %w", src.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing seed transaction: %w", err)
	}

	slog.Info("seeded default sources", "count", len(defaultSources))
	return nil
}

// DefaultSourceCount returns the number of sources SeedDefaults inserts.
func DefaultSourceCount() int {
	return len(defaultSources)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSource(row rowScanner) (*models.Source, error) {
	var (
		src         models.Source
		status      string
		lastFetchAt *string
		createdAt   string
	)
	if err := row.Scan(
		&src.ID, &src.Name, &src.Kind, &src.FeedURL, &status, &lastFetchAt,
		&src.FetchCount, &src.ErrorCount, &src.LastError, &createdAt,
	); err != nil {
		return nil, err
	}
	src.Status = models.SourceStatus(status)
	src.LastFetchAt = parseTimePtr(lastFetchAt)
	src.CreatedAt = parseTime(createdAt)
	return &src, nil
}

// scanSources reads all rows from a sources query into a slice.
func scanSources(rows *sql.Rows) ([]models.Source, error) {
	sources := []models.Source{}
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning source row: %w", err)
		}
		sources = append(sources, *src)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating source rows: %w", err)
	}
	return sources, nil
}
