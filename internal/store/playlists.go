package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/keeva/tunepractice/internal/util"
)

// Playlist is a named repertoire collection owned by a user
type Playlist struct {
	ID             string `json:"id"`
	UserID         string `json:"user_id"`
	Name           string `json:"name"`
	Instrument     string `json:"instrument,omitempty"`
	GenreDefault   string `json:"genre_default,omitempty"`
	Deleted        bool   `json:"deleted,omitempty"`
	SyncVersion    int64  `json:"sync_version"`
	LastModifiedAt int64  `json:"last_modified_at"`
}

// UpsertPlaylist inserts or updates a playlist
func (s *Store) UpsertPlaylist(p *Playlist) error {
	return s.Transaction(func(tx *sql.Tx) error {
		return upsertPlaylistTx(tx, s.deviceID, p)
	})
}

func upsertPlaylistTx(tx *sql.Tx, deviceID string, p *Playlist) error {
	if p.ID == "" || p.UserID == "" || p.Name == "" {
		return fmt.Errorf("%w: playlist id, user and name are required", util.ErrValidation)
	}

	op := OpInsert
	next := int64(1)
	var cur int64
	err := tx.QueryRow("SELECT sync_version FROM playlists WHERE id = ?", p.ID).Scan(&cur)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return fmt.Errorf("failed to read playlist version: %w", err)
	default:
		op = OpUpdate
		next = cur + 1
	}

	p.SyncVersion = next
	p.LastModifiedAt = nowMillis()

	_, err = tx.Exec(`
		INSERT INTO playlists (id, user_id, name, instrument, genre_default, deleted, sync_version, last_modified_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			name = excluded.name,
			instrument = excluded.instrument,
			genre_default = excluded.genre_default,
			deleted = excluded.deleted,
			sync_version = excluded.sync_version,
			last_modified_at = excluded.last_modified_at
	`, p.ID, p.UserID, p.Name, p.Instrument, p.GenreDefault,
		boolToInt(p.Deleted), p.SyncVersion, p.LastModifiedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert playlist: %w", err)
	}

	return recordChange(tx, deviceID, TablePlaylists, p.ID, op, p, p.SyncVersion, p.LastModifiedAt)
}

// SoftDeletePlaylist marks a playlist deleted and cascades the soft delete
// to its membership rows. Every affected row gets its own version bump and
// outbox entry so the cascade converges on other devices.
func (s *Store) SoftDeletePlaylist(id string) error {
	return s.Transaction(func(tx *sql.Tx) error {
		p, err := getPlaylistTx(tx, id)
		if err != nil {
			return err
		}
		if p == nil {
			return fmt.Errorf("%w: playlist %s", util.ErrNotFound, id)
		}

		p.Deleted = true
		p.SyncVersion++
		p.LastModifiedAt = nowMillis()

		_, err = tx.Exec(`
			UPDATE playlists SET deleted = 1, sync_version = ?, last_modified_at = ? WHERE id = ?
		`, p.SyncVersion, p.LastModifiedAt, id)
		if err != nil {
			return fmt.Errorf("failed to soft-delete playlist: %w", err)
		}

		if err := recordChange(tx, s.deviceID, TablePlaylists, id, OpDelete, p, p.SyncVersion, p.LastModifiedAt); err != nil {
			return err
		}

		// Cascade to membership rows
		links, err := listPlaylistTunesTx(tx, id, false)
		if err != nil {
			return err
		}
		for _, link := range links {
			if err := softDeletePlaylistTuneTx(tx, s.deviceID, link); err != nil {
				return err
			}
		}

		return nil
	})
}

// GetPlaylist retrieves a playlist by ID. Returns nil, nil when absent or deleted.
func (s *Store) GetPlaylist(id string) (*Playlist, error) {
	var p *Playlist
	err := s.Transaction(func(tx *sql.Tx) error {
		var err error
		p, err = getPlaylistTx(tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	if p != nil && p.Deleted {
		return nil, nil
	}
	return p, nil
}

func getPlaylistTx(tx *sql.Tx, id string) (*Playlist, error) {
	p := &Playlist{}
	var deleted int
	err := tx.QueryRow(`
		SELECT id, user_id, name, instrument, genre_default, deleted, sync_version, last_modified_at
		FROM playlists WHERE id = ?
	`, id).Scan(&p.ID, &p.UserID, &p.Name, &p.Instrument, &p.GenreDefault,
		&deleted, &p.SyncVersion, &p.LastModifiedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get playlist: %w", err)
	}
	p.Deleted = deleted == 1
	return p, nil
}

// ListPlaylists returns all non-deleted playlists for a user
func (s *Store) ListPlaylists(userID string) ([]*Playlist, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, name, instrument, genre_default, deleted, sync_version, last_modified_at
		FROM playlists WHERE user_id = ? AND deleted = 0
		ORDER BY name ASC, id ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list playlists: %w", err)
	}
	defer rows.Close()

	var playlists []*Playlist
	for rows.Next() {
		p := &Playlist{}
		var deleted int
		err := rows.Scan(&p.ID, &p.UserID, &p.Name, &p.Instrument, &p.GenreDefault,
			&deleted, &p.SyncVersion, &p.LastModifiedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan playlist: %w", err)
		}
		p.Deleted = deleted == 1
		playlists = append(playlists, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating playlists: %w", err)
	}

	return playlists, nil
}
