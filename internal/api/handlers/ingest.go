package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hoanghai1803/feedsift/internal/models"
)

// Trigger starts an out-of-schedule ingestion batch.
type Trigger interface {
	RunNow(ctx context.Context) (*models.BatchResult, error)
}

// RunIngest handles POST /api/ingest/run. It runs one batch synchronously and
// returns its summary. A batch interrupted partway still reports what ran.
func RunIngest(trigger Trigger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := trigger.RunNow(r.Context())
		if err != nil {
			slog.Error("manual ingest failed", "error", err)
			if result == nil {
				writeError(w, http.StatusInternalServerError, "Ingest failed")
				return
			}
			writeJSON(w, http.StatusServiceUnavailable, result)
			return
		}

		writeJSON(w, http.StatusOK, result)
	}
}
