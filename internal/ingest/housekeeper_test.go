package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hoanghai1803/feedsift/internal/clock"
)

type fakePruner struct {
	cutoff time.Time
	err    error
}

func (p *fakePruner) DeleteContentBefore(_ context.Context, cutoff time.Time) (int64, error) {
	p.cutoff = cutoff
	return 5, p.err
}

func TestHousekeeperCleanup(t *testing.T) {
	p := &fakePruner{}
	h := NewHousekeeper(p, clock.NewManual(testNow), 0)

	n, err := h.Cleanup(context.Background())
	if err != nil || n != 5 {
		t.Fatalf("Cleanup = %d, %v", n, err)
	}
	if want := testNow.Add(-DefaultRetention); !p.cutoff.Equal(want) {
		t.Errorf("cutoff = %v, want %v", p.cutoff, want)
	}
}

func TestHousekeeperCleanupError(t *testing.T) {
	p := &fakePruner{err: errors.New("database is locked")}
	if _, err := NewHousekeeper(p, clock.NewManual(testNow), time.Hour).Cleanup(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
