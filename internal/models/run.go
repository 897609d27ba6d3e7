package models

import "time"

// RunResult is the outcome of one fetch-through-persist cycle for a source.
type RunResult struct {
	SourceID   int64  `json:"source_id"`
	Success    bool   `json:"success"`
	NewItems   int    `json:"new_items"`
	Error      string `json:"error,omitempty"`
	Fetched    int    `json:"fetched"`
	Duplicates int    `json:"duplicates"`
	Filtered   int    `json:"filtered"`
	SaveFailed int    `json:"save_failed"`
}

// SourceError records a failed run inside a batch.
type SourceError struct {
	SourceID int64  `json:"source_id"`
	Error    string `json:"error"`
}

// BatchResult aggregates the runs of one orchestrated batch.
type BatchResult struct {
	RunID         string        `json:"run_id"`
	Total         int           `json:"total"`
	SuccessCount  int           `json:"success_count"`
	TotalNewItems int           `json:"total_new_items"`
	Skipped       int           `json:"skipped"`
	Errors        []SourceError `json:"errors"`
	StartedAt     time.Time     `json:"started_at"`
	Duration      time.Duration `json:"duration"`
}

// Add folds one run into the batch. Skipped runs are counted separately and
// do not contribute to Total.
func (b *BatchResult) Add(r RunResult, skipped bool) {
	if skipped {
		b.Skipped++
		return
	}
	b.Total++
	if r.Success {
		b.SuccessCount++
		b.TotalNewItems += r.NewItems
		return
	}
	msg := r.Error
	if msg == "" {
		msg = "run failed"
	}
	b.Errors = append(b.Errors, SourceError{SourceID: r.SourceID, Error: msg})
}
