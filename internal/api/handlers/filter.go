package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hoanghai1803/feedsift/internal/filter"
)

// maxBatchItems bounds a single batch scoring request.
const maxBatchItems = 500

// RelevanceFilter is the scorer surface exposed over HTTP.
type RelevanceFilter interface {
	Config() filter.Config
	Update(cfg filter.Config) error
	ShouldFilter(title, description, body string) filter.Decision
	Batch(items []filter.Input) filter.BatchDecision
}

// GetFilterConfig handles GET /api/filter/config.
func GetFilterConfig(f RelevanceFilter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, f.Config())
	}
}

// UpdateFilterConfig handles PUT /api/filter/config. The whole rule set is
// replaced; on a validation error the previous rules stay in effect.
func UpdateFilterConfig(f RelevanceFilter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var cfg filter.Config
		if err := decodeJSON(w, r, &cfg); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON body")
			return
		}

		if err := f.Update(cfg); err != nil {
			var cfgErr *filter.ConfigError
			if errors.As(err, &cfgErr) {
				writeError(w, http.StatusBadRequest, cfgErr.Error())
				return
			}
			slog.Error("failed to update filter config", "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to update filter config")
			return
		}

		writeJSON(w, http.StatusOK, f.Config())
	}
}

// CheckItem handles POST /api/filter/check. It scores a single item without
// storing anything.
func CheckItem(f RelevanceFilter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in filter.Input
		if err := decodeJSON(w, r, &in); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON body")
			return
		}
		if strings.TrimSpace(in.Title) == "" {
			writeError(w, http.StatusBadRequest, "title is required")
			return
		}

		writeJSON(w, http.StatusOK, f.ShouldFilter(in.Title, in.Description, in.Body))
	}
}

// CheckBatch handles POST /api/filter/check/batch.
func CheckBatch(f RelevanceFilter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Items []filter.Input `json:"items"`
		}
		if err := decodeJSON(w, r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON body")
			return
		}
		if len(body.Items) > maxBatchItems {
			writeError(w, http.StatusBadRequest, "too many items")
			return
		}

		writeJSON(w, http.StatusOK, f.Batch(body.Items))
	}
}
