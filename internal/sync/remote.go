// Package sync moves local changes to the remote store and pulls the
// remote feed back down, reconciling conflicts with last-writer-wins.
// Local reads and writes never wait on a sync cycle.
package sync

import (
	"context"

	"github.com/keeva/tunepractice/internal/store"
)

// PushResult reports which outbox entries the remote accepted. Rejected
// entries stay in the outbox for the next cycle.
type PushResult struct {
	AckedIDs    []int64 `json:"acked_ids"`
	RejectedIDs []int64 `json:"rejected_ids,omitempty"`
}

// PullPage is one page of the remote change feed, ordered by sequence.
type PullPage struct {
	Changes []*store.RemoteChange `json:"changes"`
	NextSeq int64                 `json:"next_seq"`
	HasMore bool                  `json:"has_more"`
}

// Remote is the transport to the remote store. Implementations must be
// safe for use from the sync daemon goroutine.
type Remote interface {
	PushChanges(ctx context.Context, userID string, entries []*store.OutboxEntry) (*PushResult, error)
	PullChanges(ctx context.Context, userID string, since int64, limit int) (*PullPage, error)
}
