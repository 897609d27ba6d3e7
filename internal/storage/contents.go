package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hoanghai1803/feedsift/internal/models"
)

const insertContentSQL = `INSERT INTO contents
	(source_id, source_url, title, description, body, url, image_url, category, tags, published_at, metadata, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// FindRecentContent returns the URL and title of every content row for the
// source created at or after since.
func (s *Store) FindRecentContent(ctx context.Context, sourceID int64, since time.Time) ([]models.ContentRef, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT COALESCE(url, ''), title FROM contents
		 WHERE source_id = ? AND created_at >= ?`,
		sourceID, formatTime(since))
	if err != nil {
		return nil, fmt.Errorf("querying recent content for source %d: %w", sourceID, err)
	}
	defer rows.Close()

	var refs []models.ContentRef
	for rows.Next() {
		var ref models.ContentRef
		if err := rows.Scan(&ref.URL, &ref.Title); err != nil {
			return nil, fmt.Errorf("scanning recent content row: %w", err)
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating recent content rows: %w", err)
	}
	return refs, nil
}

// CreateContents inserts all items inside a single transaction and returns
// the number inserted. Items whose URL is already stored are skipped and not
// counted. If any insert fails nothing is written and a *PersistError is
// returned.
func (s *Store) CreateContents(ctx context.Context, items []models.Content) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, &PersistError{Op: "beginning bulk insert", Err: err}
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	stmt, err := tx.PrepareContext(ctx, insertContentSQL+` ON CONFLICT(url) DO NOTHING`)
	if err != nil {
		return 0, &PersistError{Op: "preparing bulk insert", Err: err}
	}
	defer stmt.Close()

	inserted := 0
	for i := range items {
		args, err := contentArgs(&items[i])
		if err != nil {
			return 0, &PersistError{Op: "bulk insert contents", Err: err}
		}
		res, err := stmt.ExecContext(ctx, args...)
		if err != nil {
			return 0, &PersistError{Op: fmt.Sprintf("bulk insert contents (item %d)", i), Err: err}
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, &PersistError{Op: "checking rows inserted", Err: err}
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, &PersistError{Op: "committing bulk insert", Err: err}
	}
	return inserted, nil
}

// CreateContent inserts one item and returns its ID.
func (s *Store) CreateContent(ctx context.Context, c *models.Content) (int64, error) {
	args, err := contentArgs(c)
	if err != nil {
		return 0, &PersistError{Op: "insert content", Err: err}
	}

	res, err := s.db.ExecContext(ctx, insertContentSQL, args...)
	if err != nil {
		return 0, &PersistError{Op: fmt.Sprintf("insert content %q", c.Title), Err: err}
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting content id: %w", err)
	}
	return id, nil
}

// DeleteContentBefore removes content created before cutoff and returns the
// number of rows deleted.
func (s *Store) DeleteContentBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM contents WHERE created_at < ?`, formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("deleting content before %s: %w", formatTime(cutoff), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows deleted: %w", err)
	}
	return n, nil
}

// ListContent returns the newest content of a source, at most limit rows.
func (s *Store) ListContent(ctx context.Context, sourceID int64, limit int) ([]models.Content, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source_id, source_url, title, description, body, url, image_url,
				category, tags, published_at, metadata, created_at
		 FROM contents WHERE source_id = ?
		 ORDER BY created_at DESC, id DESC LIMIT ?`, sourceID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying content for source %d: %w", sourceID, err)
	}
	defer rows.Close()

	items := []models.Content{}
	for rows.Next() {
		c, err := scanContent(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning content row: %w", err)
		}
		items = append(items, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating content rows: %w", err)
	}
	return items, nil
}

func contentArgs(c *models.Content) ([]any, error) {
	tags := c.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return nil, fmt.Errorf("encoding tags: %w", err)
	}

	var metaJSON *string
	if len(c.Metadata) > 0 {
		b, err := json.Marshal(c.Metadata)
		if err != nil {
			return nil, fmt.Errorf("encoding metadata: %w", err)
		}
		v := string(b)
		metaJSON = &v
	}

	createdAt := c.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	category := c.Category
	if category == "" {
		category = models.DefaultCategory
	}

	return []any{
		c.SourceID, c.SourceURL, c.Title,
		nullableString(c.Description), nullableString(c.Body),
		nullableString(c.URL), nullableString(c.ImageURL),
		category, string(tagsJSON), formatTimePtr(c.PublishedAt), metaJSON,
		formatTime(createdAt),
	}, nil
}

func scanContent(rows *sql.Rows) (*models.Content, error) {
	var (
		c                                   models.Content
		description, body, url, image, meta *string
		publishedAt                         *string
		tags, createdAt                     string
	)
	if err := rows.Scan(
		&c.ID, &c.SourceID, &c.SourceURL, &c.Title, &description, &body, &url, &image,
		&c.Category, &tags, &publishedAt, &meta, &createdAt,
	); err != nil {
		return nil, err
	}

	c.Description = deref(description)
	c.Body = deref(body)
	c.URL = deref(url)
	c.ImageURL = deref(image)
	c.PublishedAt = parseTimePtr(publishedAt)
	c.CreatedAt = parseTime(createdAt)

	if err := json.Unmarshal([]byte(tags), &c.Tags); err != nil {
		return nil, fmt.Errorf("decoding tags of content %d: %w", c.ID, err)
	}
	if meta != nil && *meta != "" {
		if err := json.Unmarshal([]byte(*meta), &c.Metadata); err != nil {
			return nil, fmt.Errorf("decoding metadata of content %d: %w", c.ID, err)
		}
	}
	return &c, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
