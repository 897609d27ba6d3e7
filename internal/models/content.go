package models

import "time"

const (
	// UntitledPlaceholder is stored as the title of items that arrive without one.
	UntitledPlaceholder = "Untitled"

	// DefaultCategory is assigned to every ingested item until classification exists.
	DefaultCategory = "general"
)

// Content is a feed item normalized into the platform's content shape.
type Content struct {
	ID          int64          `json:"id"`
	SourceID    int64          `json:"source_id"`
	SourceURL   string         `json:"source_url"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Body        string         `json:"body,omitempty"`
	URL         string         `json:"url,omitempty"`
	ImageURL    string         `json:"image_url,omitempty"`
	Category    string         `json:"category"`
	Tags        []string       `json:"tags"`
	PublishedAt *time.Time     `json:"published_at,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// HasRealTitle reports whether the title came from the feed rather than the
// placeholder.
func (c Content) HasRealTitle() bool {
	return c.Title != "" && c.Title != UntitledPlaceholder
}

// ContentRef identifies recently ingested content for deduplication.
type ContentRef struct {
	URL   string
	Title string
}
