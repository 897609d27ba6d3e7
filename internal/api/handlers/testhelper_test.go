package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hoanghai1803/feedsift/internal/storage"
)

// newTestStore creates an in-memory SQLite store with migrations applied and
// default sources seeded. It registers a cleanup function to close the database
// when the test completes.
func newTestStore(t *testing.T) *storage.Store {
	t.Helper()

	db, err := storage.OpenDatabase(":memory:")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := storage.RunMigrations(db); err != nil {
		t.Fatalf("running migrations: %v", err)
	}

	store := storage.NewStore(db)
	if err := store.SeedDefaults(context.Background()); err != nil {
		t.Fatalf("seeding defaults: %v", err)
	}

	return store
}

// withURLParam attaches a chi route context carrying one URL parameter.
func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}
