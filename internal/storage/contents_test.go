package storage

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/hoanghai1803/feedsift/internal/models"
)

func testContent(sourceID int64, title, url string, createdAt time.Time) models.Content {
	return models.Content{
		SourceID:  sourceID,
		SourceURL: "https://src.example/feed",
		Title:     title,
		URL:       url,
		Category:  models.DefaultCategory,
		CreatedAt: createdAt,
	}
}

func TestCreateContents_Bulk(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	src := createTestSource(t, store, "Bulk", "https://bulk.example/feed")
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	pub := now.Add(-time.Hour)
	items := []models.Content{
		testContent(src, "One", "https://bulk.example/1", now),
		testContent(src, "Two", "https://bulk.example/2", now),
		testContent(src, "No link", "", now),
	}
	items[0].Tags = []string{"markets", "earnings"}
	items[0].PublishedAt = &pub
	items[0].Metadata = map[string]any{"guid": "urn:1"}

	n, err := store.CreateContents(ctx, items)
	if err != nil {
		t.Fatalf("CreateContents error: %v", err)
	}
	if n != 3 {
		t.Fatalf("CreateContents = %d, want 3", n)
	}

	got, err := store.ListContent(ctx, src, 10)
	if err != nil {
		t.Fatalf("ListContent error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("ListContent returned %d rows, want 3", len(got))
	}

	var one models.Content
	for _, c := range got {
		if c.Title == "One" {
			one = c
		}
	}
	if !reflect.DeepEqual(one.Tags, []string{"markets", "earnings"}) {
		t.Errorf("Tags = %v", one.Tags)
	}
	if one.PublishedAt == nil || !one.PublishedAt.Equal(pub) {
		t.Errorf("PublishedAt = %v, want %v", one.PublishedAt, pub)
	}
	if one.Metadata["guid"] != "urn:1" {
		t.Errorf("Metadata = %v", one.Metadata)
	}
	if !one.CreatedAt.Equal(now) {
		t.Errorf("CreatedAt = %v, want %v", one.CreatedAt, now)
	}
}

func TestCreateContents_RollsBackOnFailure(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	src := createTestSource(t, store, "Rollback", "https://rb.example/feed")
	now := time.Now().UTC()

	items := []models.Content{
		testContent(src, "Fresh", "https://rb.example/fresh", now),
		testContent(src, "", "https://rb.example/blank", now),
	}
	_, err := store.CreateContents(ctx, items)
	var persistErr *PersistError
	if !errors.As(err, &persistErr) {
		t.Fatalf("err = %v, want *PersistError", err)
	}

	got, err := store.ListContent(ctx, src, 10)
	if err != nil {
		t.Fatalf("ListContent error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("got %d rows after failed bulk insert, want 0", len(got))
	}
}

func TestCreateContents_SkipsStoredURLs(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	src := createTestSource(t, store, "Repeat", "https://rep.example/feed")
	now := time.Now().UTC()

	if _, err := store.CreateContent(ctx, ptr(testContent(src, "Existing", "https://rep.example/dup", now))); err != nil {
		t.Fatalf("CreateContent error: %v", err)
	}

	items := []models.Content{
		testContent(src, "Fresh", "https://rep.example/fresh", now),
		testContent(src, "Existing again", "https://rep.example/dup", now),
		testContent(src, "No link", "", now),
	}
	n, err := store.CreateContents(ctx, items)
	if err != nil {
		t.Fatalf("CreateContents error: %v", err)
	}
	if n != 2 {
		t.Errorf("CreateContents = %d, want 2", n)
	}

	got, err := store.ListContent(ctx, src, 10)
	if err != nil {
		t.Fatalf("ListContent error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d rows, want 3", len(got))
	}
	for _, c := range got {
		if c.Title == "Existing again" {
			t.Error("row with a stored URL should not have been inserted")
		}
	}
}

func TestCreateContents_Empty(t *testing.T) {
	n, err := newTestStore(t).CreateContents(context.Background(), nil)
	if err != nil || n != 0 {
		t.Fatalf("CreateContents(nil) = %d, %v", n, err)
	}
}

func TestFindRecentContent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	a := createTestSource(t, store, "A", "https://a.example/feed")
	b := createTestSource(t, store, "B", "https://b.example/feed")
	now := time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC)

	items := []models.Content{
		testContent(a, "Recent", "https://a.example/recent", now.Add(-time.Hour)),
		testContent(a, "Old", "https://a.example/old", now.Add(-72*time.Hour)),
		testContent(a, "Linkless", "", now.Add(-2*time.Hour)),
		testContent(b, "Other source", "https://b.example/x", now),
	}
	if _, err := store.CreateContents(ctx, items); err != nil {
		t.Fatalf("CreateContents error: %v", err)
	}

	refs, err := store.FindRecentContent(ctx, a, now.Add(-48*time.Hour))
	if err != nil {
		t.Fatalf("FindRecentContent error: %v", err)
	}

	got := map[string]string{}
	for _, r := range refs {
		got[r.Title] = r.URL
	}
	want := map[string]string{"Recent": "https://a.example/recent", "Linkless": ""}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("FindRecentContent = %v, want %v", got, want)
	}
}

func TestDeleteContentBefore(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	src := createTestSource(t, store, "Old", "https://old.example/feed")
	now := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)

	items := []models.Content{
		testContent(src, "Ancient", "https://old.example/1", now.AddDate(0, 0, -40)),
		testContent(src, "Stale", "https://old.example/2", now.AddDate(0, 0, -31)),
		testContent(src, "Current", "https://old.example/3", now.AddDate(0, 0, -1)),
	}
	if _, err := store.CreateContents(ctx, items); err != nil {
		t.Fatalf("CreateContents error: %v", err)
	}

	n, err := store.DeleteContentBefore(ctx, now.AddDate(0, 0, -30))
	if err != nil {
		t.Fatalf("DeleteContentBefore error: %v", err)
	}
	if n != 2 {
		t.Fatalf("deleted %d rows, want 2", n)
	}

	left, err := store.ListContent(ctx, src, 10)
	if err != nil {
		t.Fatalf("ListContent error: %v", err)
	}
	if len(left) != 1 || left[0].Title != "Current" {
		t.Fatalf("remaining = %+v", left)
	}
}

func ptr[T any](v T) *T { return &v }
