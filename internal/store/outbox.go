package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
)

// OutboxEntry is one recorded local write awaiting delivery to the remote store
type OutboxEntry struct {
	ID             int64           `json:"id"`
	Table          string          `json:"table"`
	RowKey         string          `json:"row_key"`
	Op             string          `json:"op"`
	Payload        json.RawMessage `json:"payload"`
	SyncVersion    int64           `json:"sync_version"`
	LastModifiedAt int64           `json:"last_modified_at"`
	DeviceID       string          `json:"device_id"`
	CreatedAt      int64           `json:"created_at"`
}

// recordChange appends an outbox entry in the same transaction as the write
// that caused it. It is never called outside that transaction; outbox and
// table state cannot drift.
func recordChange(tx *sql.Tx, deviceID, table, rowKey, op string, payload interface{}, syncVersion, lastModified int64) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal outbox payload: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO change_outbox (table_name, row_key, op, payload, sync_version, last_modified_at, device_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, table, rowKey, op, string(body), syncVersion, lastModified, deviceID, nowMillis())
	if err != nil {
		return fmt.Errorf("failed to record change: %w", err)
	}

	return nil
}

// DrainPending returns up to limit outbox entries in insertion order (FIFO).
// Entries stay in the outbox until acknowledged.
func (s *Store) DrainPending(limit int) ([]*OutboxEntry, error) {
	query := `
		SELECT id, table_name, row_key, op, payload, sync_version, last_modified_at, device_id, created_at
		FROM change_outbox
		ORDER BY id ASC
	`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to drain outbox: %w", err)
	}
	defer rows.Close()

	var entries []*OutboxEntry
	for rows.Next() {
		var e OutboxEntry
		var payload string
		err := rows.Scan(&e.ID, &e.Table, &e.RowKey, &e.Op, &payload,
			&e.SyncVersion, &e.LastModifiedAt, &e.DeviceID, &e.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan outbox entry: %w", err)
		}
		e.Payload = json.RawMessage(payload)
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating outbox: %w", err)
	}

	return entries, nil
}

// Acknowledge removes outbox entries confirmed by the remote store
func (s *Store) Acknowledge(entryIDs []int64) error {
	if len(entryIDs) == 0 {
		return nil
	}

	placeholders := make([]string, len(entryIDs))
	args := make([]interface{}, len(entryIDs))
	for i, id := range entryIDs {
		placeholders[i] = "?"
		args[i] = id
	}

	query := "DELETE FROM change_outbox WHERE id IN (" + strings.Join(placeholders, ",") + ")"
	if _, err := s.db.Exec(query, args...); err != nil {
		return fmt.Errorf("failed to acknowledge outbox entries: %w", err)
	}

	return nil
}

// OutboxDepth returns the number of unacknowledged outbox entries
func (s *Store) OutboxDepth() (int, error) {
	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM change_outbox").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count outbox: %w", err)
	}
	return count, nil
}
