package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hoanghai1803/feedsift/internal/scheduler"
)

// TaskController lists and stops scheduled tasks.
type TaskController interface {
	Tasks() []scheduler.TaskInfo
	StopTask(name string) error
}

// GetTasks handles GET /api/scheduler/tasks.
func GetTasks(tc TaskController) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, tc.Tasks())
	}
}

// StopTask handles DELETE /api/scheduler/tasks/{name}.
func StopTask(tc TaskController) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")

		if err := tc.StopTask(name); err != nil {
			if errors.Is(err, scheduler.ErrUnknownTask) {
				writeError(w, http.StatusNotFound, "Task not found")
				return
			}
			slog.Error("failed to stop task", "task", name, "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to stop task")
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
	}
}
