package sync

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/keeva/tunepractice/internal/report"
	"github.com/keeva/tunepractice/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// fakeRemote is an in-memory Remote for engine tests
type fakeRemote struct {
	pushed    [][]*store.OutboxEntry
	ackAll    bool
	ackFirstN int
	pushErr   error

	pages   []*PullPage
	pullErr error
	pullIdx int
}

func (f *fakeRemote) PushChanges(_ context.Context, _ string, entries []*store.OutboxEntry) (*PushResult, error) {
	if f.pushErr != nil {
		return nil, f.pushErr
	}

	copied := make([]*store.OutboxEntry, len(entries))
	copy(copied, entries)
	f.pushed = append(f.pushed, copied)

	result := &PushResult{}
	n := len(entries)
	if !f.ackAll && f.ackFirstN < n {
		n = f.ackFirstN
	}
	for i, entry := range entries {
		if i < n {
			result.AckedIDs = append(result.AckedIDs, entry.ID)
		} else {
			result.RejectedIDs = append(result.RejectedIDs, entry.ID)
		}
	}
	return result, nil
}

func (f *fakeRemote) PullChanges(_ context.Context, _ string, _ int64, _ int) (*PullPage, error) {
	if f.pullErr != nil {
		return nil, f.pullErr
	}
	if f.pullIdx >= len(f.pages) {
		return &PullPage{}, nil
	}
	page := f.pages[f.pullIdx]
	f.pullIdx++
	return page, nil
}

func seedTunes(t *testing.T, s *store.Store, ids ...string) {
	t.Helper()
	for _, id := range ids {
		if err := s.UpsertTune(&store.Tune{ID: id, Title: id}); err != nil {
			t.Fatalf("failed to insert tune %s: %v", id, err)
		}
	}
}

func TestPushDrainsOutboxInOrder(t *testing.T) {
	s := newTestStore(t)
	seedTunes(t, s, "tune-1", "tune-2", "tune-3")

	remote := &fakeRemote{ackAll: true}
	engine := NewEngine(s, remote, report.NullLogger(), "u", 2)

	acked, err := engine.Push(context.Background())
	if err != nil {
		t.Fatalf("push failed: %v", err)
	}
	if acked != 3 {
		t.Errorf("expected 3 acked entries, got %d", acked)
	}

	// Batch size 2 means two requests, FIFO across batches
	if len(remote.pushed) != 2 {
		t.Fatalf("expected 2 push batches, got %d", len(remote.pushed))
	}
	var keys []string
	for _, batch := range remote.pushed {
		for _, entry := range batch {
			keys = append(keys, entry.RowKey)
		}
	}
	want := []string{"tune-1", "tune-2", "tune-3"}
	for i, key := range keys {
		if key != want[i] {
			t.Errorf("entry %d: expected %s, got %s", i, want[i], key)
		}
	}

	depth, err := s.OutboxDepth()
	if err != nil {
		t.Fatalf("failed to get outbox depth: %v", err)
	}
	if depth != 0 {
		t.Errorf("expected empty outbox after full ack, got depth %d", depth)
	}
}

func TestPushPartialAckKeepsRejected(t *testing.T) {
	s := newTestStore(t)
	seedTunes(t, s, "tune-1", "tune-2", "tune-3")

	remote := &fakeRemote{ackFirstN: 1}
	engine := NewEngine(s, remote, report.NullLogger(), "u", 10)

	acked, err := engine.Push(context.Background())
	if err != nil {
		t.Fatalf("push failed: %v", err)
	}
	if acked != 1 {
		t.Errorf("expected 1 acked entry, got %d", acked)
	}

	depth, err := s.OutboxDepth()
	if err != nil {
		t.Fatalf("failed to get outbox depth: %v", err)
	}
	if depth != 2 {
		t.Errorf("expected 2 entries left after partial ack, got %d", depth)
	}
}

func TestPushFailureLeavesOutboxIntact(t *testing.T) {
	s := newTestStore(t)
	seedTunes(t, s, "tune-1")

	remote := &fakeRemote{pushErr: errors.New("remote rejected the batch")}
	engine := NewEngine(s, remote, report.NullLogger(), "u", 10)

	if _, err := engine.Push(context.Background()); err == nil {
		t.Fatal("expected push to fail")
	}

	depth, err := s.OutboxDepth()
	if err != nil {
		t.Fatalf("failed to get outbox depth: %v", err)
	}
	if depth != 1 {
		t.Errorf("expected outbox untouched after failed push, got depth %d", depth)
	}
}

func remoteTune(t *testing.T, id, title, deviceID string, seq, version, modified int64) *store.RemoteChange {
	t.Helper()

	payload, err := json.Marshal(&store.Tune{ID: id, Title: title})
	if err != nil {
		t.Fatalf("failed to marshal tune: %v", err)
	}
	return &store.RemoteChange{
		Seq: seq, Table: store.TableTunes, RowKey: id, Op: store.OpInsert,
		Payload: payload, SyncVersion: version, LastModifiedAt: modified,
		DeviceID: deviceID,
	}
}

func TestPullAppliesPagesAndAdvancesCursor(t *testing.T) {
	s := newTestStore(t)

	remote := &fakeRemote{
		pages: []*PullPage{
			{
				Changes: []*store.RemoteChange{
					remoteTune(t, "tune-1", "First", "other", 1, 1, 100),
					remoteTune(t, "tune-2", "Second", "other", 2, 1, 100),
				},
				NextSeq: 2,
				HasMore: true,
			},
			{
				Changes: []*store.RemoteChange{
					remoteTune(t, "tune-3", "Third", "other", 3, 1, 100),
				},
				NextSeq: 3,
			},
		},
	}
	engine := NewEngine(s, remote, report.NullLogger(), "u", 10)

	applied, err := engine.Pull(context.Background())
	if err != nil {
		t.Fatalf("pull failed: %v", err)
	}
	if applied != 3 {
		t.Errorf("expected 3 applied changes, got %d", applied)
	}

	tunes, err := s.ListTunes()
	if err != nil {
		t.Fatalf("failed to list tunes: %v", err)
	}
	if len(tunes) != 3 {
		t.Errorf("expected 3 tunes after pull, got %d", len(tunes))
	}

	seq, err := s.GetSyncCursor("u")
	if err != nil {
		t.Fatalf("failed to get cursor: %v", err)
	}
	if seq != 3 {
		t.Errorf("expected cursor 3, got %d", seq)
	}

	// Pull must not queue anything for re-push
	depth, err := s.OutboxDepth()
	if err != nil {
		t.Fatalf("failed to get outbox depth: %v", err)
	}
	if depth != 0 {
		t.Errorf("expected empty outbox after pull, got depth %d", depth)
	}
}

func TestPullSkipsOwnDeviceAndCorrupt(t *testing.T) {
	s := newTestStore(t)

	corrupt := &store.RemoteChange{
		Seq: 2, Table: "nonsense", RowKey: "x", Op: store.OpInsert,
		SyncVersion: 1, DeviceID: "other",
	}
	remote := &fakeRemote{
		pages: []*PullPage{
			{
				Changes: []*store.RemoteChange{
					remoteTune(t, "tune-echo", "Echo", s.DeviceID(), 1, 1, 100),
					corrupt,
					remoteTune(t, "tune-ok", "Fine", "other", 3, 1, 100),
				},
				NextSeq: 3,
			},
		},
	}
	engine := NewEngine(s, remote, report.NullLogger(), "u", 10)

	applied, err := engine.Pull(context.Background())
	if err != nil {
		t.Fatalf("pull failed: %v", err)
	}
	if applied != 1 {
		t.Errorf("expected 1 applied change, got %d", applied)
	}

	// The own-device echo must not have been applied as a remote row
	tunes, err := s.ListTunes()
	if err != nil {
		t.Fatalf("failed to list tunes: %v", err)
	}
	if len(tunes) != 1 || tunes[0].ID != "tune-ok" {
		t.Errorf("expected only tune-ok applied, got %+v", tunes)
	}

	// Cursor still advances past skipped entries
	seq, err := s.GetSyncCursor("u")
	if err != nil {
		t.Fatalf("failed to get cursor: %v", err)
	}
	if seq != 3 {
		t.Errorf("expected cursor 3, got %d", seq)
	}
}

func TestPullConflictKeepsNewerLocal(t *testing.T) {
	s := newTestStore(t)

	// Local tune at version 1, then bumped to 2 by an edit
	if err := s.UpsertTune(&store.Tune{ID: "tune-1", Title: "Local v1"}); err != nil {
		t.Fatalf("failed to insert tune: %v", err)
	}
	if err := s.UpsertTune(&store.Tune{ID: "tune-1", Title: "Local v2"}); err != nil {
		t.Fatalf("failed to update tune: %v", err)
	}

	remote := &fakeRemote{
		pages: []*PullPage{
			{
				Changes: []*store.RemoteChange{
					remoteTune(t, "tune-1", "Remote v1", "other", 1, 1, 999999999999999),
				},
				NextSeq: 1,
			},
		},
	}
	engine := NewEngine(s, remote, report.NullLogger(), "u", 10)

	applied, err := engine.Pull(context.Background())
	if err != nil {
		t.Fatalf("pull failed: %v", err)
	}
	if applied != 0 {
		t.Errorf("expected stale remote change dropped, got %d applied", applied)
	}

	got, err := s.GetTune("tune-1")
	if err != nil {
		t.Fatalf("failed to get tune: %v", err)
	}
	if got.Title != "Local v2" {
		t.Errorf("expected local edit to survive, got %q", got.Title)
	}
}

func TestRunFullCycle(t *testing.T) {
	s := newTestStore(t)
	seedTunes(t, s, "tune-local")

	remote := &fakeRemote{
		ackAll: true,
		pages: []*PullPage{
			{
				Changes: []*store.RemoteChange{
					remoteTune(t, "tune-remote", "From Afar", "other", 1, 1, 100),
				},
				NextSeq: 1,
			},
		},
	}
	engine := NewEngine(s, remote, report.NullLogger(), "u", 10)

	if err := engine.Run(context.Background()); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	depth, _ := s.OutboxDepth()
	if depth != 0 {
		t.Errorf("expected outbox drained, got depth %d", depth)
	}
	tunes, err := s.ListTunes()
	if err != nil {
		t.Fatalf("failed to list tunes: %v", err)
	}
	if len(tunes) != 2 {
		t.Errorf("expected local and remote tunes, got %d", len(tunes))
	}
}
