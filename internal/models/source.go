package models

import "time"

// SourceKindRSS is the only source kind the ingestion pipeline polls.
const SourceKindRSS = "rss"

// SourceStatus is the health state of a source as recorded after each run.
type SourceStatus string

const (
	SourceStatusActive      SourceStatus = "active"
	SourceStatusError       SourceStatus = "error"
	SourceStatusRateLimited SourceStatus = "rate_limited"
	SourceStatusInactive    SourceStatus = "inactive"
)

// Valid reports whether s is one of the known statuses.
func (s SourceStatus) Valid() bool {
	switch s {
	case SourceStatusActive, SourceStatusError, SourceStatusRateLimited, SourceStatusInactive:
		return true
	}
	return false
}

// Source represents an external feed we poll on a schedule.
type Source struct {
	ID          int64        `json:"id"`
	Name        string       `json:"name"`
	Kind        string       `json:"kind"`
	FeedURL     string       `json:"feed_url"`
	Status      SourceStatus `json:"status"`
	LastFetchAt *time.Time   `json:"last_fetch_at,omitempty"`
	FetchCount  int          `json:"fetch_count"`
	ErrorCount  int          `json:"error_count"`
	LastError   *string      `json:"last_error,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}

// SourceHealth is the full set of health fields written back after a run.
// LastError nil clears the stored message.
type SourceHealth struct {
	Status      SourceStatus
	FetchCount  int
	ErrorCount  int
	LastError   *string
	LastFetchAt *time.Time
}

// Health returns the current health fields of the source.
func (s Source) Health() SourceHealth {
	return SourceHealth{
		Status:      s.Status,
		FetchCount:  s.FetchCount,
		ErrorCount:  s.ErrorCount,
		LastError:   s.LastError,
		LastFetchAt: s.LastFetchAt,
	}
}
