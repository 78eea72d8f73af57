package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/keeva/tunepractice/internal/util"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(dbPath)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	return s
}

func TestStoreOpenAndMigrate(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(dbPath)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}

	version, err := s.getSchemaVersion()
	if err != nil {
		t.Fatalf("failed to get schema version: %v", err)
	}
	if version != currentSchemaVersion {
		t.Errorf("expected schema version %d, got %d", currentSchemaVersion, version)
	}

	tables := []string{
		"tunes", "playlists", "playlist_tunes", "practice_records",
		"staged_evaluations", "practice_queue", "change_outbox",
		"sync_cursor", "device_identity", "schema_version",
	}
	for _, table := range tables {
		var count int
		err := s.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count)
		if err != nil {
			t.Fatalf("failed to query table %s: %v", table, err)
		}
		if count != 1 {
			t.Errorf("expected table %s to exist", table)
		}
	}

	deviceID := s.DeviceID()
	if deviceID == "" {
		t.Fatal("expected device ID to be assigned on first open")
	}

	// Device identity must survive a reopen
	if err := s.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}
	s2, err := Open(dbPath)
	if err != nil {
		t.Fatalf("failed to reopen store: %v", err)
	}
	defer s2.Close()

	if s2.DeviceID() != deviceID {
		t.Errorf("expected device ID %s after reopen, got %s", deviceID, s2.DeviceID())
	}
}

func TestTuneVersioningAndOutbox(t *testing.T) {
	s := newTestStore(t)

	tune := &Tune{ID: "tune-1", Title: "The Butterfly", Type: "slip jig"}
	if err := s.UpsertTune(tune); err != nil {
		t.Fatalf("failed to insert tune: %v", err)
	}

	got, err := s.GetTune("tune-1")
	if err != nil {
		t.Fatalf("failed to get tune: %v", err)
	}
	if got == nil {
		t.Fatal("expected tune, got nil")
	}
	if got.SyncVersion != 1 {
		t.Errorf("expected sync version 1 on insert, got %d", got.SyncVersion)
	}

	tune.Title = "The Butterfly (Slip Jig)"
	if err := s.UpsertTune(tune); err != nil {
		t.Fatalf("failed to update tune: %v", err)
	}

	got, err = s.GetTune("tune-1")
	if err != nil {
		t.Fatalf("failed to get tune after update: %v", err)
	}
	if got.SyncVersion != 2 {
		t.Errorf("expected sync version 2 after update, got %d", got.SyncVersion)
	}

	if err := s.SoftDeleteTune("tune-1"); err != nil {
		t.Fatalf("failed to soft delete tune: %v", err)
	}

	got, err = s.GetTune("tune-1")
	if err != nil {
		t.Fatalf("failed to get tune after delete: %v", err)
	}
	if got != nil {
		t.Error("expected nil for soft-deleted tune")
	}

	// Outbox must hold insert, update, delete in commit order
	entries, err := s.DrainPending(10)
	if err != nil {
		t.Fatalf("failed to drain outbox: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 outbox entries, got %d", len(entries))
	}
	wantOps := []string{OpInsert, OpUpdate, OpDelete}
	for i, entry := range entries {
		if entry.Op != wantOps[i] {
			t.Errorf("entry %d: expected op %s, got %s", i, wantOps[i], entry.Op)
		}
		if entry.Table != TableTunes {
			t.Errorf("entry %d: expected table %s, got %s", i, TableTunes, entry.Table)
		}
		if entry.RowKey != "tune-1" {
			t.Errorf("entry %d: expected row key tune-1, got %s", i, entry.RowKey)
		}
		if entry.DeviceID != s.DeviceID() {
			t.Errorf("entry %d: expected device ID %s, got %s", i, s.DeviceID(), entry.DeviceID)
		}
	}
	if entries[0].SyncVersion != 1 || entries[1].SyncVersion != 2 || entries[2].SyncVersion != 3 {
		t.Errorf("expected sync versions 1,2,3, got %d,%d,%d",
			entries[0].SyncVersion, entries[1].SyncVersion, entries[2].SyncVersion)
	}

	// Acknowledging the first two leaves only the delete pending
	if err := s.Acknowledge([]int64{entries[0].ID, entries[1].ID}); err != nil {
		t.Fatalf("failed to acknowledge entries: %v", err)
	}
	depth, err := s.OutboxDepth()
	if err != nil {
		t.Fatalf("failed to get outbox depth: %v", err)
	}
	if depth != 1 {
		t.Errorf("expected outbox depth 1 after partial ack, got %d", depth)
	}

	remaining, err := s.DrainPending(10)
	if err != nil {
		t.Fatalf("failed to drain outbox after ack: %v", err)
	}
	if len(remaining) != 1 || remaining[0].Op != OpDelete {
		t.Errorf("expected the delete entry to remain, got %+v", remaining)
	}
}

func TestPlaylistSoftDeleteCascades(t *testing.T) {
	s := newTestStore(t)

	for _, id := range []string{"tune-a", "tune-b"} {
		if err := s.UpsertTune(&Tune{ID: id, Title: id}); err != nil {
			t.Fatalf("failed to insert tune %s: %v", id, err)
		}
	}
	playlist := &Playlist{ID: "pl-1", UserID: "user-1", Name: "Session Set", Instrument: "fiddle"}
	if err := s.UpsertPlaylist(playlist); err != nil {
		t.Fatalf("failed to insert playlist: %v", err)
	}
	for _, id := range []string{"tune-a", "tune-b"} {
		if err := s.AddTuneToPlaylist("pl-1", id, "recall"); err != nil {
			t.Fatalf("failed to add tune %s to playlist: %v", id, err)
		}
	}

	if err := s.SoftDeletePlaylist("pl-1"); err != nil {
		t.Fatalf("failed to soft delete playlist: %v", err)
	}

	got, err := s.GetPlaylist("pl-1")
	if err != nil {
		t.Fatalf("failed to get playlist: %v", err)
	}
	if got != nil {
		t.Error("expected nil for soft-deleted playlist")
	}

	links, err := s.ListPlaylistTunes("pl-1")
	if err != nil {
		t.Fatalf("failed to list playlist tunes: %v", err)
	}
	if len(links) != 0 {
		t.Errorf("expected no live playlist tunes after cascade, got %d", len(links))
	}

	// Cascade must emit its own outbox deletes, one per link plus the playlist
	entries, err := s.DrainPending(50)
	if err != nil {
		t.Fatalf("failed to drain outbox: %v", err)
	}
	var deletes int
	for _, entry := range entries {
		if entry.Op == OpDelete && (entry.Table == TablePlaylists || entry.Table == TablePlaylistTunes) {
			deletes++
		}
	}
	if deletes != 3 {
		t.Errorf("expected 3 delete entries (playlist + 2 links), got %d", deletes)
	}
}

func TestStagedEvaluationStates(t *testing.T) {
	s := newTestStore(t)

	// No row at all
	se, err := s.GetStagedEvaluation("user-1", "pl-1", "tune-1")
	if err != nil {
		t.Fatalf("failed to get staged evaluation: %v", err)
	}
	if se != nil {
		t.Fatal("expected nil when nothing staged")
	}

	// Stage a rating
	err = s.UpsertStagedEvaluation(&StagedEvaluation{
		UserID: "user-1", PlaylistID: "pl-1", TuneID: "tune-1",
		RecallEval: "good", Technique: "fsrs",
	})
	if err != nil {
		t.Fatalf("failed to stage evaluation: %v", err)
	}
	se, err = s.GetStagedEvaluation("user-1", "pl-1", "tune-1")
	if err != nil {
		t.Fatalf("failed to get staged evaluation: %v", err)
	}
	if se == nil || se.RecallEval != "good" {
		t.Fatalf("expected staged eval 'good', got %+v", se)
	}

	// Explicit clear keeps the row with an empty eval
	err = s.UpsertStagedEvaluation(&StagedEvaluation{
		UserID: "user-1", PlaylistID: "pl-1", TuneID: "tune-1",
		RecallEval: "",
	})
	if err != nil {
		t.Fatalf("failed to clear evaluation: %v", err)
	}
	se, err = s.GetStagedEvaluation("user-1", "pl-1", "tune-1")
	if err != nil {
		t.Fatalf("failed to get staged evaluation: %v", err)
	}
	if se == nil {
		t.Fatal("expected cleared row to remain, got nil")
	}
	if se.RecallEval != "" {
		t.Errorf("expected empty eval on cleared row, got %q", se.RecallEval)
	}

	if err := s.DeleteStagedEvaluation("user-1", "pl-1", "tune-1"); err != nil {
		t.Fatalf("failed to delete staged evaluation: %v", err)
	}
	se, err = s.GetStagedEvaluation("user-1", "pl-1", "tune-1")
	if err != nil {
		t.Fatalf("failed to get staged evaluation: %v", err)
	}
	if se != nil {
		t.Error("expected nil after delete")
	}
}

func TestQueueReplaceAndComplete(t *testing.T) {
	s := newTestStore(t)

	items := []*QueueItem{
		{UserID: "u", PlaylistID: "p", QueueDate: "2026-08-31", TuneID: "tune-2", Bucket: BucketLapsed, OrderIndex: 1, GeneratedAt: 1000},
		{UserID: "u", PlaylistID: "p", QueueDate: "2026-08-31", TuneID: "tune-1", Bucket: BucketDueToday, OrderIndex: 0, GeneratedAt: 1000},
	}
	if err := s.ReplaceQueue("u", "p", "2026-08-31", items); err != nil {
		t.Fatalf("failed to replace queue: %v", err)
	}

	got, err := s.GetQueue("u", "p", "2026-08-31")
	if err != nil {
		t.Fatalf("failed to get queue: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 queue items, got %d", len(got))
	}
	if got[0].TuneID != "tune-1" || got[1].TuneID != "tune-2" {
		t.Errorf("expected order tune-1, tune-2, got %s, %s", got[0].TuneID, got[1].TuneID)
	}

	// Replacing discards the prior queue entirely
	if err := s.ReplaceQueue("u", "p", "2026-08-31", items[:1]); err != nil {
		t.Fatalf("failed to replace queue: %v", err)
	}
	got, err = s.GetQueue("u", "p", "2026-08-31")
	if err != nil {
		t.Fatalf("failed to get queue: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 queue item after replace, got %d", len(got))
	}

	err = s.Transaction(func(tx *sql.Tx) error {
		marked, err := MarkQueueCompletedTx(tx, "u", "p", "2026-08-31", "tune-2", 2000)
		if err != nil {
			return err
		}
		if !marked {
			t.Error("expected queue item to be marked completed")
		}
		// Second mark is a no-op, as is an unknown tune
		marked, err = MarkQueueCompletedTx(tx, "u", "p", "2026-08-31", "tune-2", 3000)
		if err != nil {
			return err
		}
		if marked {
			t.Error("expected repeat completion to affect no rows")
		}
		marked, err = MarkQueueCompletedTx(tx, "u", "p", "2026-08-31", "no-such-tune", 2000)
		if err != nil {
			return err
		}
		if marked {
			t.Error("expected unknown tune to affect no rows")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("transaction failed: %v", err)
	}

	got, err = s.GetQueue("u", "p", "2026-08-31")
	if err != nil {
		t.Fatalf("failed to get queue: %v", err)
	}
	if got[0].CompletedAt == nil || *got[0].CompletedAt != 2000 {
		t.Errorf("expected completed_at 2000, got %v", got[0].CompletedAt)
	}
}

func applyChange(t *testing.T, s *Store, change *RemoteChange) bool {
	t.Helper()

	var applied bool
	err := s.Transaction(func(tx *sql.Tx) error {
		var err error
		applied, err = ApplyRemoteChange(tx, change)
		return err
	})
	if err != nil {
		t.Fatalf("failed to apply remote change: %v", err)
	}
	return applied
}

func remoteTuneChange(t *testing.T, tune *Tune, op string, version, modified int64) *RemoteChange {
	t.Helper()

	payload, err := json.Marshal(tune)
	if err != nil {
		t.Fatalf("failed to marshal tune: %v", err)
	}
	return &RemoteChange{
		Table: TableTunes, RowKey: tune.ID, Op: op, Payload: payload,
		SyncVersion: version, LastModifiedAt: modified, DeviceID: "other-device",
	}
}

func TestApplyRemoteChangeLastWriterWins(t *testing.T) {
	s := newTestStore(t)

	// Incoming insert for an unknown row always applies
	incoming := &Tune{ID: "tune-1", Title: "Remote Title"}
	if !applyChange(t, s, remoteTuneChange(t, incoming, OpInsert, 3, 5000)) {
		t.Fatal("expected insert for unknown row to apply")
	}
	got, err := s.GetTune("tune-1")
	if err != nil {
		t.Fatalf("failed to get tune: %v", err)
	}
	if got == nil || got.Title != "Remote Title" {
		t.Fatalf("expected applied remote tune, got %+v", got)
	}
	if got.SyncVersion != 3 {
		t.Errorf("expected remote sync version 3 preserved, got %d", got.SyncVersion)
	}

	// Lower version loses
	stale := &Tune{ID: "tune-1", Title: "Stale Title"}
	if applyChange(t, s, remoteTuneChange(t, stale, OpUpdate, 2, 9000)) {
		t.Error("expected lower-version change to lose")
	}

	// Equal version, earlier timestamp loses
	if applyChange(t, s, remoteTuneChange(t, stale, OpUpdate, 3, 4000)) {
		t.Error("expected equal-version earlier change to lose")
	}

	// Equal version, later timestamp wins
	newer := &Tune{ID: "tune-1", Title: "Newer Title"}
	if !applyChange(t, s, remoteTuneChange(t, newer, OpUpdate, 3, 6000)) {
		t.Error("expected equal-version later change to win")
	}
	got, _ = s.GetTune("tune-1")
	if got.Title != "Newer Title" {
		t.Errorf("expected title 'Newer Title', got %q", got.Title)
	}

	// Tombstones dominate regardless of version
	if !applyChange(t, s, remoteTuneChange(t, &Tune{ID: "tune-1"}, OpDelete, 1, 1)) {
		t.Error("expected tombstone to apply")
	}
	got, _ = s.GetTune("tune-1")
	if got != nil {
		t.Error("expected tune gone after tombstone")
	}

	// Applying remote changes must not echo into the outbox
	depth, err := s.OutboxDepth()
	if err != nil {
		t.Fatalf("failed to get outbox depth: %v", err)
	}
	if depth != 0 {
		t.Errorf("expected empty outbox after pulls, got depth %d", depth)
	}
}

func TestApplyRemoteChangeRejectsCorrupt(t *testing.T) {
	s := newTestStore(t)

	cases := []*RemoteChange{
		{Table: "nonsense", RowKey: "x", Op: OpInsert},
		{Table: TableTunes, RowKey: "x", Op: "upsert"},
		{Table: TableTunes, RowKey: "x", Op: OpInsert, Payload: json.RawMessage(`{not json`)},
		{Table: TablePlaylistTunes, RowKey: "missing-separator", Op: OpDelete},
	}
	for i, change := range cases {
		err := s.Transaction(func(tx *sql.Tx) error {
			_, err := ApplyRemoteChange(tx, change)
			return err
		})
		if !errors.Is(err, util.ErrCorrupt) {
			t.Errorf("case %d: expected ErrCorrupt, got %v", i, err)
		}
	}
}

func TestSyncCursor(t *testing.T) {
	s := newTestStore(t)

	seq, err := s.GetSyncCursor("user-1")
	if err != nil {
		t.Fatalf("failed to get cursor: %v", err)
	}
	if seq != 0 {
		t.Errorf("expected cursor 0 before any pull, got %d", seq)
	}

	if err := s.SetSyncCursor("user-1", 42); err != nil {
		t.Fatalf("failed to set cursor: %v", err)
	}
	if err := s.SetSyncCursor("user-1", 99); err != nil {
		t.Fatalf("failed to advance cursor: %v", err)
	}

	seq, err = s.GetSyncCursor("user-1")
	if err != nil {
		t.Fatalf("failed to get cursor: %v", err)
	}
	if seq != 99 {
		t.Errorf("expected cursor 99, got %d", seq)
	}
}

func TestGetPracticeRows(t *testing.T) {
	s := newTestStore(t)

	if err := s.UpsertTune(&Tune{ID: "tune-1", Title: "Banish Misfortune", Type: "jig"}); err != nil {
		t.Fatalf("failed to insert tune: %v", err)
	}
	if err := s.UpsertPlaylist(&Playlist{ID: "pl-1", UserID: "u", Name: "Set"}); err != nil {
		t.Fatalf("failed to insert playlist: %v", err)
	}
	if err := s.AddTuneToPlaylist("pl-1", "tune-1", "recall"); err != nil {
		t.Fatalf("failed to add tune: %v", err)
	}
	err := s.Transaction(func(tx *sql.Tx) error {
		return InsertPracticeRecordTx(tx, s.DeviceID(), &PracticeRecord{
			ID: "rec-1", UserID: "u", PlaylistID: "pl-1", TuneID: "tune-1",
			Technique: "fsrs", Quality: 3, Stability: 2.5, Difficulty: 5.0,
			Interval: 3, Repetitions: 1, Due: 9000, Practiced: 5000,
		})
	})
	if err != nil {
		t.Fatalf("failed to insert practice record: %v", err)
	}
	err = s.UpsertStagedEvaluation(&StagedEvaluation{
		UserID: "u", PlaylistID: "pl-1", TuneID: "tune-1", RecallEval: "hard", Technique: "fsrs",
	})
	if err != nil {
		t.Fatalf("failed to stage evaluation: %v", err)
	}
	err = s.ReplaceQueue("u", "pl-1", "2026-08-31", []*QueueItem{
		{UserID: "u", PlaylistID: "pl-1", QueueDate: "2026-08-31", TuneID: "tune-1", Bucket: BucketDueToday, OrderIndex: 0, GeneratedAt: 1},
	})
	if err != nil {
		t.Fatalf("failed to replace queue: %v", err)
	}

	got, err := s.GetPracticeRows("u", "pl-1", "2026-08-31")
	if err != nil {
		t.Fatalf("failed to get practice rows: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 practice row, got %d", len(got))
	}
	row := got[0]
	if row.Title != "Banish Misfortune" {
		t.Errorf("expected title from tunes join, got %q", row.Title)
	}
	if row.LatestInterval != 3 || row.LatestQuality != 3 {
		t.Errorf("expected latest record fields, got interval %d quality %d", row.LatestInterval, row.LatestQuality)
	}
	if row.LatestDue == nil || *row.LatestDue != 9000 {
		t.Errorf("expected latest due 9000, got %v", row.LatestDue)
	}
	if !row.StagedPresent || row.StagedRecallEval != "hard" {
		t.Errorf("expected staged eval 'hard', got present=%v eval=%q", row.StagedPresent, row.StagedRecallEval)
	}
	if row.Completed {
		t.Error("expected row not completed")
	}

	// Soft-deleting the tune drops it from the view without touching the queue
	if err := s.SoftDeleteTune("tune-1"); err != nil {
		t.Fatalf("failed to soft delete tune: %v", err)
	}
	got, err = s.GetPracticeRows("u", "pl-1", "2026-08-31")
	if err != nil {
		t.Fatalf("failed to get practice rows: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected deleted tune filtered from view, got %d rows", len(got))
	}
}
