package sync

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/keeva/tunepractice/internal/report"
	"github.com/keeva/tunepractice/internal/store"
	"github.com/keeva/tunepractice/internal/util"
)

const (
	defaultBatchSize = 100
	defaultPullLimit = 200
)

// Engine runs push and pull cycles against a Remote. Push drains the
// outbox in FIFO batches; pull pages the remote feed from the cursor and
// applies each change under last-writer-wins.
type Engine struct {
	store     *store.Store
	remote    Remote
	events    *report.EventLogger
	userID    string
	batchSize int
	pullLimit int
}

// NewEngine creates a sync engine. batchSize <= 0 uses the default.
func NewEngine(s *store.Store, remote Remote, events *report.EventLogger, userID string, batchSize int) *Engine {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Engine{
		store:     s,
		remote:    remote,
		events:    events,
		userID:    userID,
		batchSize: batchSize,
		pullLimit: defaultPullLimit,
	}
}

// Push uploads pending outbox entries in insertion order. Only entries
// the remote confirms are acknowledged; rejected or undelivered entries
// stay queued for the next cycle. Returns the number of acknowledged
// entries.
func (e *Engine) Push(ctx context.Context) (int, error) {
	start := time.Now()
	acked := 0
	rejected := 0

	for {
		entries, err := e.store.DrainPending(e.batchSize)
		if err != nil {
			return acked, fmt.Errorf("%w: %v", util.ErrStoreUnavailable, err)
		}
		if len(entries) == 0 {
			break
		}

		result, err := util.RetryWithBackoff(ctx, util.SyncRetryConfig(), func() (*PushResult, error) {
			return e.remote.PushChanges(ctx, e.userID, entries)
		}, "sync push")
		if err != nil {
			e.events.LogPush(acked, rejected, time.Since(start), err)
			return acked, fmt.Errorf("push failed: %w", err)
		}

		if len(result.AckedIDs) > 0 {
			if err := e.store.Acknowledge(result.AckedIDs); err != nil {
				return acked, fmt.Errorf("%w: %v", util.ErrStoreUnavailable, err)
			}
			acked += len(result.AckedIDs)
		}
		rejected += len(result.RejectedIDs)

		// A partial ack means the remote is refusing something; stop and
		// let the next cycle retry instead of spinning on it.
		if len(result.AckedIDs) < len(entries) {
			break
		}
	}

	e.events.LogPush(acked, rejected, time.Since(start), nil)
	return acked, nil
}

// Pull pages the remote feed from the device's cursor and applies each
// change. A page is applied in a single transaction and the cursor only
// advances after the whole page landed, so an interrupted pull replays
// rather than skips. Own-device echoes and stale changes are dropped;
// corrupt entries are logged and skipped. Returns the number of applied
// changes.
func (e *Engine) Pull(ctx context.Context) (int, error) {
	start := time.Now()

	since, err := e.store.GetSyncCursor(e.userID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", util.ErrStoreUnavailable, err)
	}

	applied := 0
	skipped := 0

	for {
		page, err := util.RetryWithBackoff(ctx, util.SyncRetryConfig(), func() (*PullPage, error) {
			return e.remote.PullChanges(ctx, e.userID, since, e.pullLimit)
		}, "sync pull")
		if err != nil {
			e.events.LogPull(applied, skipped, since, time.Since(start), err)
			return applied, fmt.Errorf("pull failed: %w", err)
		}
		if len(page.Changes) == 0 {
			break
		}

		err = e.store.Transaction(func(tx *sql.Tx) error {
			for _, change := range page.Changes {
				if change.DeviceID == e.store.DeviceID() {
					skipped++
					continue
				}

				ok, err := store.ApplyRemoteChange(tx, change)
				if err != nil {
					if errors.Is(err, util.ErrCorrupt) {
						util.WarnLog("Skipping corrupt change seq %d: %v", change.Seq, err)
						skipped++
						continue
					}
					return err
				}
				if !ok {
					// Local row was newer; record the lost conflict
					e.events.LogConflict(change.Table, change.RowKey, 0, change.SyncVersion)
					skipped++
					continue
				}
				applied++
			}
			return nil
		})
		if err != nil {
			e.events.LogPull(applied, skipped, since, time.Since(start), err)
			return applied, fmt.Errorf("%w: %v", util.ErrStoreUnavailable, err)
		}

		since = page.NextSeq
		if err := e.store.SetSyncCursor(e.userID, since); err != nil {
			return applied, fmt.Errorf("%w: %v", util.ErrStoreUnavailable, err)
		}

		if !page.HasMore {
			break
		}
	}

	e.events.LogPull(applied, skipped, since, time.Since(start), nil)
	return applied, nil
}

// Persist checkpoints the WAL so pulled state survives a crash.
func (e *Engine) Persist() error {
	return e.store.Persist()
}

// Run executes one full cycle: push, pull, persist.
func (e *Engine) Run(ctx context.Context) error {
	if _, err := e.Push(ctx); err != nil {
		return err
	}
	if _, err := e.Pull(ctx); err != nil {
		return err
	}
	return e.Persist()
}
