package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hoanghai1803/feedsift/internal/clock"
)

// DefaultRetention is how long ingested content is kept.
const DefaultRetention = 30 * 24 * time.Hour

// ContentPruner deletes content older than a cutoff.
type ContentPruner interface {
	DeleteContentBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Housekeeper removes content that has aged out of the retention period.
type Housekeeper struct {
	store     ContentPruner
	clock     clock.Clock
	retention time.Duration
}

// NewHousekeeper creates a Housekeeper. Non-positive retention means
// DefaultRetention.
func NewHousekeeper(store ContentPruner, clk clock.Clock, retention time.Duration) *Housekeeper {
	if clk == nil {
		clk = clock.Real{}
	}
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Housekeeper{store: store, clock: clk, retention: retention}
}

// Cleanup deletes expired content and returns how many rows were removed.
func (h *Housekeeper) Cleanup(ctx context.Context) (int64, error) {
	cutoff := h.clock.Now().Add(-h.retention)
	n, err := h.store.DeleteContentBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("pruning content before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	slog.Info("content cleanup complete", "deleted", n, "cutoff", cutoff)
	return n, nil
}
