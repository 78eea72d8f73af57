package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/keeva/tunepractice/internal/util"
)

// Tune is a catalog item. Metadata is immutable-ish; scheduling state lives
// on playlist membership and practice records, not here.
type Tune struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	Type           string `json:"type,omitempty"`
	Mode           string `json:"mode,omitempty"`
	Structure      string `json:"structure,omitempty"`
	Incipit        string `json:"incipit,omitempty"`
	Composer       string `json:"composer,omitempty"`
	Genre          string `json:"genre,omitempty"`
	Deleted        bool   `json:"deleted,omitempty"`
	SyncVersion    int64  `json:"sync_version"`
	LastModifiedAt int64  `json:"last_modified_at"`
}

// UpsertTune inserts or updates a tune, bumping its sync_version and
// recording the change in the outbox.
func (s *Store) UpsertTune(t *Tune) error {
	return s.Transaction(func(tx *sql.Tx) error {
		return UpsertTuneTx(tx, s.deviceID, t)
	})
}

// UpsertTuneTx is the transaction-scoped form of UpsertTune
func UpsertTuneTx(tx *sql.Tx, deviceID string, t *Tune) error {
	if t.ID == "" || t.Title == "" {
		return fmt.Errorf("%w: tune id and title are required", util.ErrValidation)
	}

	op := OpInsert
	next := int64(1)
	var cur int64
	err := tx.QueryRow("SELECT sync_version FROM tunes WHERE id = ?", t.ID).Scan(&cur)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return fmt.Errorf("failed to read tune version: %w", err)
	default:
		op = OpUpdate
		next = cur + 1
	}

	t.SyncVersion = next
	t.LastModifiedAt = nowMillis()

	_, err = tx.Exec(`
		INSERT INTO tunes (id, title, tune_type, mode, structure, incipit, composer, genre, deleted, sync_version, last_modified_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			tune_type = excluded.tune_type,
			mode = excluded.mode,
			structure = excluded.structure,
			incipit = excluded.incipit,
			composer = excluded.composer,
			genre = excluded.genre,
			deleted = excluded.deleted,
			sync_version = excluded.sync_version,
			last_modified_at = excluded.last_modified_at
	`, t.ID, t.Title, t.Type, t.Mode, t.Structure, t.Incipit, t.Composer, t.Genre,
		boolToInt(t.Deleted), t.SyncVersion, t.LastModifiedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert tune: %w", err)
	}

	return recordChange(tx, deviceID, TableTunes, t.ID, op, t, t.SyncVersion, t.LastModifiedAt)
}

// SoftDeleteTune marks a tune deleted. The row is retained for sync
// convergence and excluded from default queries.
func (s *Store) SoftDeleteTune(id string) error {
	return s.Transaction(func(tx *sql.Tx) error {
		t, err := getTuneTx(tx, id)
		if err != nil {
			return err
		}
		if t == nil {
			return fmt.Errorf("%w: tune %s", util.ErrNotFound, id)
		}

		t.Deleted = true
		t.SyncVersion++
		t.LastModifiedAt = nowMillis()

		_, err = tx.Exec(`
			UPDATE tunes SET deleted = 1, sync_version = ?, last_modified_at = ? WHERE id = ?
		`, t.SyncVersion, t.LastModifiedAt, id)
		if err != nil {
			return fmt.Errorf("failed to soft-delete tune: %w", err)
		}

		return recordChange(tx, s.deviceID, TableTunes, id, OpDelete, t, t.SyncVersion, t.LastModifiedAt)
	})
}

// GetTune retrieves a tune by ID. Returns nil, nil when absent or deleted.
func (s *Store) GetTune(id string) (*Tune, error) {
	var t *Tune
	err := s.Transaction(func(tx *sql.Tx) error {
		var err error
		t, err = getTuneTx(tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	if t != nil && t.Deleted {
		return nil, nil
	}
	return t, nil
}

func getTuneTx(tx *sql.Tx, id string) (*Tune, error) {
	t := &Tune{}
	var deleted int
	err := tx.QueryRow(`
		SELECT id, title, tune_type, mode, structure, incipit, composer, genre, deleted, sync_version, last_modified_at
		FROM tunes WHERE id = ?
	`, id).Scan(&t.ID, &t.Title, &t.Type, &t.Mode, &t.Structure, &t.Incipit,
		&t.Composer, &t.Genre, &deleted, &t.SyncVersion, &t.LastModifiedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tune: %w", err)
	}
	t.Deleted = deleted == 1
	return t, nil
}

// ListTunes returns all non-deleted tunes ordered by title
func (s *Store) ListTunes() ([]*Tune, error) {
	rows, err := s.db.Query(`
		SELECT id, title, tune_type, mode, structure, incipit, composer, genre, deleted, sync_version, last_modified_at
		FROM tunes WHERE deleted = 0
		ORDER BY title ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tunes: %w", err)
	}
	defer rows.Close()

	var tunes []*Tune
	for rows.Next() {
		t := &Tune{}
		var deleted int
		err := rows.Scan(&t.ID, &t.Title, &t.Type, &t.Mode, &t.Structure, &t.Incipit,
			&t.Composer, &t.Genre, &deleted, &t.SyncVersion, &t.LastModifiedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tune: %w", err)
		}
		t.Deleted = deleted == 1
		tunes = append(tunes, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tunes: %w", err)
	}

	return tunes, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
