package store

import (
	"database/sql"
	"fmt"
)

// GetSyncCursor returns the last acknowledged remote sequence for this
// device, or 0 when the device has never pulled.
func (s *Store) GetSyncCursor(userID string) (int64, error) {
	var seq int64
	err := s.db.QueryRow(`
		SELECT last_remote_seq FROM sync_cursor WHERE user_id = ? AND device_id = ?
	`, userID, s.deviceID).Scan(&seq)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read sync cursor: %w", err)
	}
	return seq, nil
}

// SetSyncCursor advances the cursor after a pull page has been fully applied.
func (s *Store) SetSyncCursor(userID string, seq int64) error {
	return s.Transaction(func(tx *sql.Tx) error {
		return setSyncCursorTx(tx, userID, s.deviceID, seq)
	})
}

func setSyncCursorTx(tx *sql.Tx, userID, deviceID string, seq int64) error {
	_, err := tx.Exec(`
		INSERT INTO sync_cursor (user_id, device_id, last_remote_seq, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id, device_id) DO UPDATE SET
			last_remote_seq = excluded.last_remote_seq,
			updated_at = excluded.updated_at
	`, userID, deviceID, seq, nowMillis())
	if err != nil {
		return fmt.Errorf("failed to update sync cursor: %w", err)
	}
	return nil
}
