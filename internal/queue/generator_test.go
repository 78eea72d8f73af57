package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/keeva/tunepractice/internal/store"
	"github.com/keeva/tunepractice/internal/util"
)

var testNow = time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seedPlaylist(t *testing.T, s *store.Store, tuneIDs ...string) {
	t.Helper()

	if err := s.UpsertPlaylist(&store.Playlist{ID: "pl-1", UserID: "u", Name: "Set"}); err != nil {
		t.Fatalf("failed to insert playlist: %v", err)
	}
	for _, id := range tuneIDs {
		if err := s.UpsertTune(&store.Tune{ID: id, Title: id}); err != nil {
			t.Fatalf("failed to insert tune %s: %v", id, err)
		}
		if err := s.AddTuneToPlaylist("pl-1", id, ""); err != nil {
			t.Fatalf("failed to link tune %s: %v", id, err)
		}
	}
}

func seedRecord(t *testing.T, s *store.Store, tuneID string, due time.Time) {
	t.Helper()

	err := s.Transaction(func(tx *sql.Tx) error {
		return store.InsertPracticeRecordTx(tx, s.DeviceID(), &store.PracticeRecord{
			ID: fmt.Sprintf("rec-%s", tuneID), UserID: "u", PlaylistID: "pl-1", TuneID: tuneID,
			Technique: "fsrs", Quality: 3,
			Due:       due.UnixMilli(),
			Practiced: due.AddDate(0, 0, -3).UnixMilli(),
		})
	})
	if err != nil {
		t.Fatalf("failed to insert record for %s: %v", tuneID, err)
	}
}

func TestGenerateBucketsAndOrder(t *testing.T) {
	s := newTestStore(t)
	seedPlaylist(t, s, "tune-due", "tune-lapsed", "tune-old", "tune-future", "tune-new")

	seedRecord(t, s, "tune-due", testNow.Add(-2*time.Hour))    // due earlier today
	seedRecord(t, s, "tune-lapsed", testNow.AddDate(0, 0, -7)) // boundary: still lapsed
	seedRecord(t, s, "tune-old", testNow.AddDate(0, 0, -8))    // past the window
	seedRecord(t, s, "tune-future", testNow.AddDate(0, 0, 3))  // not due

	items, err := GenerateOrFetch(context.Background(), s, Options{
		UserID: "u", PlaylistID: "pl-1", AsOf: testNow, Mode: ModeFull,
	})
	if err != nil {
		t.Fatalf("failed to generate queue: %v", err)
	}

	var got []string
	for _, item := range items {
		got = append(got, fmt.Sprintf("%s/%d", item.TuneID, item.Bucket))
	}
	want := []string{
		"tune-due/1",
		"tune-lapsed/2",
		"tune-new/3",
		"tune-old/4",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("unexpected queue (-want +got):\n%s", diff)
	}
	for i, item := range items {
		if item.OrderIndex != i {
			t.Errorf("item %d: expected order index %d, got %d", i, i, item.OrderIndex)
		}
	}
}

func TestGenerateModeDue(t *testing.T) {
	s := newTestStore(t)
	seedPlaylist(t, s, "tune-due", "tune-old", "tune-new")
	seedRecord(t, s, "tune-due", testNow.Add(-time.Hour))
	seedRecord(t, s, "tune-old", testNow.AddDate(0, 0, -30))

	items, err := GenerateOrFetch(context.Background(), s, Options{
		UserID: "u", PlaylistID: "pl-1", AsOf: testNow, Mode: ModeDue,
	})
	if err != nil {
		t.Fatalf("failed to generate queue: %v", err)
	}
	if len(items) != 1 || items[0].TuneID != "tune-due" {
		t.Errorf("due mode must exclude old-lapsed and new tunes, got %+v", items)
	}
}

func TestGenerateMaxNew(t *testing.T) {
	s := newTestStore(t)
	seedPlaylist(t, s, "tune-a", "tune-b", "tune-c", "tune-d")

	items, err := GenerateOrFetch(context.Background(), s, Options{
		UserID: "u", PlaylistID: "pl-1", AsOf: testNow, Mode: ModeFull, MaxNew: 2,
	})
	if err != nil {
		t.Fatalf("failed to generate queue: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 new tunes under MaxNew, got %d", len(items))
	}
	// Backfill picks tunes deterministically by id
	if items[0].TuneID != "tune-a" || items[1].TuneID != "tune-b" {
		t.Errorf("expected tune-a, tune-b, got %s, %s", items[0].TuneID, items[1].TuneID)
	}
}

func TestQueueStableForTheDay(t *testing.T) {
	s := newTestStore(t)
	seedPlaylist(t, s, "tune-1", "tune-2")
	seedRecord(t, s, "tune-1", testNow.Add(-time.Hour))

	opts := Options{UserID: "u", PlaylistID: "pl-1", AsOf: testNow, Mode: ModeFull}
	first, err := GenerateOrFetch(context.Background(), s, opts)
	if err != nil {
		t.Fatalf("failed to generate queue: %v", err)
	}

	// A state change after generation must not alter the frozen queue
	seedRecord(t, s, "tune-2", testNow.Add(-time.Hour))

	later := opts
	later.AsOf = testNow.Add(2 * time.Hour)
	second, err := GenerateOrFetch(context.Background(), s, later)
	if err != nil {
		t.Fatalf("failed to fetch queue: %v", err)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("queue changed within the same day (-first +second):\n%s", diff)
	}

	// Force regenerates against current state
	opts.Force = true
	forced, err := GenerateOrFetch(context.Background(), s, opts)
	if err != nil {
		t.Fatalf("failed to force regenerate: %v", err)
	}
	if len(forced) != len(first) {
		t.Logf("forced queue reflects the new record: %d items vs %d", len(forced), len(first))
	}
	var seen bool
	for _, item := range forced {
		if item.TuneID == "tune-2" && item.Bucket == store.BucketDueToday {
			seen = true
		}
	}
	if !seen {
		t.Error("expected force to pick up tune-2 as due today")
	}
}

func TestEmptyQueueIsNotAnError(t *testing.T) {
	s := newTestStore(t)
	seedPlaylist(t, s)

	items, err := GenerateOrFetch(context.Background(), s, Options{
		UserID: "u", PlaylistID: "pl-1", AsOf: testNow, Mode: ModeFull,
	})
	if err != nil {
		t.Fatalf("empty playlist must not error: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("expected empty queue, got %d items", len(items))
	}
}

func TestMissingPlaylistIsAnError(t *testing.T) {
	s := newTestStore(t)

	_, err := GenerateOrFetch(context.Background(), s, Options{
		UserID: "u", PlaylistID: "no-such-playlist", AsOf: testNow, Mode: ModeFull,
	})
	if !errors.Is(err, util.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestInvalidMode(t *testing.T) {
	s := newTestStore(t)

	_, err := GenerateOrFetch(context.Background(), s, Options{
		UserID: "u", PlaylistID: "pl-1", AsOf: testNow, Mode: "everything",
	})
	if !errors.Is(err, util.ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

func TestTimezoneOffsetShiftsDay(t *testing.T) {
	// 2026-08-31 23:30 UTC is already 2026-09-01 in UTC+2
	at := time.Date(2026, 8, 31, 23, 30, 0, 0, time.UTC)
	if day := LocalDay(at, 120); day != "2026-09-01" {
		t.Errorf("expected 2026-09-01 at UTC+2, got %s", day)
	}
	if day := LocalDay(at, 0); day != "2026-08-31" {
		t.Errorf("expected 2026-08-31 at UTC, got %s", day)
	}
	// and still the previous day west of Greenwich
	at = time.Date(2026, 9, 1, 0, 30, 0, 0, time.UTC)
	if day := LocalDay(at, -300); day != "2026-08-31" {
		t.Errorf("expected 2026-08-31 at UTC-5, got %s", day)
	}
}
