package store

import (
	"database/sql"
	"fmt"
)

// Review buckets, in priority order
const (
	BucketDueToday  = 1
	BucketLapsed    = 2
	BucketNew       = 3
	BucketOldLapsed = 4
)

// QueueItem is one row of a frozen per-day practice queue
type QueueItem struct {
	UserID      string
	PlaylistID  string
	QueueDate   string // local calendar day, YYYY-MM-DD
	TZOffsetMin int
	TuneID      string
	Bucket      int
	OrderIndex  int
	CompletedAt *int64
	GeneratedAt int64
}

// GetQueue returns the frozen queue for a (user, playlist, day) ordered by
// order_index, or an empty slice if no queue was generated yet.
func (s *Store) GetQueue(userID, playlistID, queueDate string) ([]*QueueItem, error) {
	rows, err := s.db.Query(`
		SELECT user_id, playlist_id, queue_date, tz_offset_min, tune_id, bucket, order_index, completed_at, generated_at
		FROM practice_queue
		WHERE user_id = ? AND playlist_id = ? AND queue_date = ?
		ORDER BY order_index ASC
	`, userID, playlistID, queueDate)
	if err != nil {
		return nil, fmt.Errorf("failed to query practice queue: %w", err)
	}
	defer rows.Close()

	var items []*QueueItem
	for rows.Next() {
		item := &QueueItem{}
		var completedAt sql.NullInt64
		err := rows.Scan(&item.UserID, &item.PlaylistID, &item.QueueDate, &item.TZOffsetMin,
			&item.TuneID, &item.Bucket, &item.OrderIndex, &completedAt, &item.GeneratedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan queue item: %w", err)
		}
		item.CompletedAt = nullInt64Ptr(completedAt)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating practice queue: %w", err)
	}

	return items, nil
}

// ReplaceQueue persists a freshly generated queue, discarding any prior
// queue for the same (user, playlist, day). The caller decides whether a
// prior queue may be replaced (force semantics live in the generator).
func (s *Store) ReplaceQueue(userID, playlistID, queueDate string, items []*QueueItem) error {
	return s.Transaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			DELETE FROM practice_queue
			WHERE user_id = ? AND playlist_id = ? AND queue_date = ?
		`, userID, playlistID, queueDate)
		if err != nil {
			return fmt.Errorf("failed to clear prior queue: %w", err)
		}

		for _, item := range items {
			_, err := tx.Exec(`
				INSERT INTO practice_queue (user_id, playlist_id, queue_date, tz_offset_min, tune_id, bucket, order_index, completed_at, generated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, item.UserID, item.PlaylistID, item.QueueDate, item.TZOffsetMin,
				item.TuneID, item.Bucket, item.OrderIndex,
				nullableInt64(item.CompletedAt), item.GeneratedAt)
			if err != nil {
				return fmt.Errorf("failed to insert queue item: %w", err)
			}
		}

		return nil
	})
}

// MarkQueueCompletedTx sets completed_at on the matching queue row.
// Returns false when no queue row matched (committing outside a sitting is
// legal; the queue row is simply absent).
func MarkQueueCompletedTx(tx *sql.Tx, userID, playlistID, queueDate, tuneID string, completedAt int64) (bool, error) {
	res, err := tx.Exec(`
		UPDATE practice_queue SET completed_at = ?
		WHERE user_id = ? AND playlist_id = ? AND queue_date = ? AND tune_id = ? AND completed_at IS NULL
	`, completedAt, userID, playlistID, queueDate, tuneID)
	if err != nil {
		return false, fmt.Errorf("failed to mark queue item completed: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}
