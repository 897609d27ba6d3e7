package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hoanghai1803/feedsift/internal/models"
	"github.com/hoanghai1803/feedsift/internal/storage"
)

// SourceStore is the slice of storage the source endpoints need.
type SourceStore interface {
	GetAllSources(ctx context.Context) ([]models.Source, error)
	SetSourceStatus(ctx context.Context, id int64, status models.SourceStatus) error
	ListContent(ctx context.Context, sourceID int64, limit int) ([]models.Content, error)
}

// GetSources handles GET /api/sources. It returns every source with its
// current health fields.
func GetSources(store SourceStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sources, err := store.GetAllSources(r.Context())
		if err != nil {
			slog.Error("failed to get sources", "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to get sources")
			return
		}

		writeJSON(w, http.StatusOK, sources)
	}
}

// UpdateSourceStatus handles PUT /api/sources/{id}. Setting the status to
// inactive takes a source out of rotation; active puts it back.
func UpdateSourceStatus(store SourceStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseID(r, "id")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		var body struct {
			Status models.SourceStatus `json:"status"`
		}
		if err := decodeJSON(w, r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON body")
			return
		}
		if !body.Status.Valid() {
			writeError(w, http.StatusBadRequest, "Invalid status")
			return
		}

		if err := store.SetSourceStatus(r.Context(), id, body.Status); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				writeError(w, http.StatusNotFound, "Source not found")
				return
			}
			slog.Error("failed to update source status", "id", id, "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to update source")
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"status": string(body.Status)})
	}
}

// GetSourceContents handles GET /api/sources/{id}/contents. It returns the
// newest stored items of a source, newest first.
func GetSourceContents(store SourceStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseID(r, "id")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		limit, err := parseLimit(r, 50, 500)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		items, err := store.ListContent(r.Context(), id, limit)
		if err != nil {
			slog.Error("failed to list content", "source_id", id, "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to list content")
			return
		}

		writeJSON(w, http.StatusOK, items)
	}
}
