package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/hoanghai1803/feedsift/internal/api/handlers"
)

// Deps are the services the admin API exposes.
type Deps struct {
	DB        handlers.Pinger
	Sources   handlers.SourceStore
	Filter    handlers.RelevanceFilter
	Trigger   handlers.Trigger
	Scheduler handlers.TaskController
}

// NewRouter creates and configures the HTTP router for the admin API.
func NewRouter(d Deps) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware.
	r.Use(RequestLogger)
	r.Use(Recovery)

	r.Get("/health", handlers.Health(d.DB))

	r.Route("/api", func(api chi.Router) {
		api.Post("/ingest/run", handlers.RunIngest(d.Trigger))

		api.Get("/filter/config", handlers.GetFilterConfig(d.Filter))
		api.Put("/filter/config", handlers.UpdateFilterConfig(d.Filter))
		api.Post("/filter/check", handlers.CheckItem(d.Filter))
		api.Post("/filter/check/batch", handlers.CheckBatch(d.Filter))

		api.Get("/sources", handlers.GetSources(d.Sources))
		api.Put("/sources/{id}", handlers.UpdateSourceStatus(d.Sources))
		api.Get("/sources/{id}/contents", handlers.GetSourceContents(d.Sources))

		api.Get("/scheduler/tasks", handlers.GetTasks(d.Scheduler))
		api.Delete("/scheduler/tasks/{name}", handlers.StopTask(d.Scheduler))
	})

	return r
}
