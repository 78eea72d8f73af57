package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/keeva/tunepractice/internal/util"
)

// PlaylistTune links a tune into a playlist with per-item practice fields.
// Soft-deletable independently of the parent playlist.
type PlaylistTune struct {
	PlaylistID     string `json:"playlist_id"`
	TuneID         string `json:"tune_id"`
	Current        bool   `json:"current,omitempty"`
	Learned        *int64 `json:"learned,omitempty"`   // unix ms of first committed practice
	Scheduled      *int64 `json:"scheduled,omitempty"` // unix ms of next due review
	Goal           string `json:"goal,omitempty"`
	Deleted        bool   `json:"deleted,omitempty"`
	SyncVersion    int64  `json:"sync_version"`
	LastModifiedAt int64  `json:"last_modified_at"`
}

// playlistTuneRowKey builds the composite outbox row key for a membership row
func playlistTuneRowKey(playlistID, tuneID string) string {
	return playlistID + "|" + tuneID
}

// AddTuneToPlaylist creates (or revives) a membership link
func (s *Store) AddTuneToPlaylist(playlistID, tuneID, goal string) error {
	return s.Transaction(func(tx *sql.Tx) error {
		link := &PlaylistTune{PlaylistID: playlistID, TuneID: tuneID, Goal: goal}
		return upsertPlaylistTuneTx(tx, s.deviceID, link)
	})
}

func upsertPlaylistTuneTx(tx *sql.Tx, deviceID string, link *PlaylistTune) error {
	if link.PlaylistID == "" || link.TuneID == "" {
		return fmt.Errorf("%w: playlist and tune ids are required", util.ErrValidation)
	}

	op := OpInsert
	next := int64(1)
	var cur int64
	err := tx.QueryRow(`
		SELECT sync_version FROM playlist_tunes WHERE playlist_id = ? AND tune_id = ?
	`, link.PlaylistID, link.TuneID).Scan(&cur)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return fmt.Errorf("failed to read playlist tune version: %w", err)
	default:
		op = OpUpdate
		next = cur + 1
	}

	link.SyncVersion = next
	link.LastModifiedAt = nowMillis()

	_, err = tx.Exec(`
		INSERT INTO playlist_tunes (playlist_id, tune_id, current, learned, scheduled, goal, deleted, sync_version, last_modified_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(playlist_id, tune_id) DO UPDATE SET
			current = excluded.current,
			learned = excluded.learned,
			scheduled = excluded.scheduled,
			goal = excluded.goal,
			deleted = excluded.deleted,
			sync_version = excluded.sync_version,
			last_modified_at = excluded.last_modified_at
	`, link.PlaylistID, link.TuneID, boolToInt(link.Current),
		nullableInt64(link.Learned), nullableInt64(link.Scheduled), link.Goal,
		boolToInt(link.Deleted), link.SyncVersion, link.LastModifiedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert playlist tune: %w", err)
	}

	return recordChange(tx, deviceID, TablePlaylistTunes,
		playlistTuneRowKey(link.PlaylistID, link.TuneID), op, link,
		link.SyncVersion, link.LastModifiedAt)
}

// RemoveTuneFromPlaylist soft-deletes a membership link
func (s *Store) RemoveTuneFromPlaylist(playlistID, tuneID string) error {
	return s.Transaction(func(tx *sql.Tx) error {
		link, err := getPlaylistTuneTx(tx, playlistID, tuneID)
		if err != nil {
			return err
		}
		if link == nil {
			return fmt.Errorf("%w: tune %s in playlist %s", util.ErrNotFound, tuneID, playlistID)
		}
		return softDeletePlaylistTuneTx(tx, s.deviceID, link)
	})
}

func softDeletePlaylistTuneTx(tx *sql.Tx, deviceID string, link *PlaylistTune) error {
	link.Deleted = true
	link.SyncVersion++
	link.LastModifiedAt = nowMillis()

	_, err := tx.Exec(`
		UPDATE playlist_tunes SET deleted = 1, sync_version = ?, last_modified_at = ?
		WHERE playlist_id = ? AND tune_id = ?
	`, link.SyncVersion, link.LastModifiedAt, link.PlaylistID, link.TuneID)
	if err != nil {
		return fmt.Errorf("failed to soft-delete playlist tune: %w", err)
	}

	return recordChange(tx, deviceID, TablePlaylistTunes,
		playlistTuneRowKey(link.PlaylistID, link.TuneID), OpDelete, link,
		link.SyncVersion, link.LastModifiedAt)
}

// UpdatePracticeFieldsTx updates the per-item practice fields after a commit.
// Runs inside the commit transaction.
func UpdatePracticeFieldsTx(tx *sql.Tx, deviceID, playlistID, tuneID string, scheduled int64, practiced int64) error {
	link, err := getPlaylistTuneTx(tx, playlistID, tuneID)
	if err != nil {
		return err
	}
	if link == nil {
		return fmt.Errorf("%w: tune %s in playlist %s", util.ErrNotFound, tuneID, playlistID)
	}

	link.Scheduled = &scheduled
	if link.Learned == nil {
		link.Learned = &practiced
	}
	link.Current = true
	link.SyncVersion++
	link.LastModifiedAt = nowMillis()

	_, err = tx.Exec(`
		UPDATE playlist_tunes SET current = 1, learned = ?, scheduled = ?, sync_version = ?, last_modified_at = ?
		WHERE playlist_id = ? AND tune_id = ?
	`, nullableInt64(link.Learned), nullableInt64(link.Scheduled),
		link.SyncVersion, link.LastModifiedAt, playlistID, tuneID)
	if err != nil {
		return fmt.Errorf("failed to update practice fields: %w", err)
	}

	return recordChange(tx, deviceID, TablePlaylistTunes,
		playlistTuneRowKey(playlistID, tuneID), OpUpdate, link,
		link.SyncVersion, link.LastModifiedAt)
}

func getPlaylistTuneTx(tx *sql.Tx, playlistID, tuneID string) (*PlaylistTune, error) {
	link := &PlaylistTune{}
	var current, deleted int
	var learned, scheduled sql.NullInt64
	err := tx.QueryRow(`
		SELECT playlist_id, tune_id, current, learned, scheduled, goal, deleted, sync_version, last_modified_at
		FROM playlist_tunes WHERE playlist_id = ? AND tune_id = ?
	`, playlistID, tuneID).Scan(&link.PlaylistID, &link.TuneID, &current,
		&learned, &scheduled, &link.Goal, &deleted, &link.SyncVersion, &link.LastModifiedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get playlist tune: %w", err)
	}
	link.Current = current == 1
	link.Deleted = deleted == 1
	link.Learned = nullInt64Ptr(learned)
	link.Scheduled = nullInt64Ptr(scheduled)
	return link, nil
}

// GetPlaylistTune retrieves a membership link. Returns nil, nil when absent or deleted.
func (s *Store) GetPlaylistTune(playlistID, tuneID string) (*PlaylistTune, error) {
	var link *PlaylistTune
	err := s.Transaction(func(tx *sql.Tx) error {
		var err error
		link, err = getPlaylistTuneTx(tx, playlistID, tuneID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if link != nil && link.Deleted {
		return nil, nil
	}
	return link, nil
}

// ListPlaylistTunes returns all non-deleted membership links of a playlist
func (s *Store) ListPlaylistTunes(playlistID string) ([]*PlaylistTune, error) {
	var links []*PlaylistTune
	err := s.Transaction(func(tx *sql.Tx) error {
		var err error
		links, err = listPlaylistTunesTx(tx, playlistID, false)
		return err
	})
	return links, err
}

func listPlaylistTunesTx(tx *sql.Tx, playlistID string, includeDeleted bool) ([]*PlaylistTune, error) {
	query := `
		SELECT playlist_id, tune_id, current, learned, scheduled, goal, deleted, sync_version, last_modified_at
		FROM playlist_tunes WHERE playlist_id = ?
	`
	if !includeDeleted {
		query += " AND deleted = 0"
	}
	query += " ORDER BY tune_id ASC"

	rows, err := tx.Query(query, playlistID)
	if err != nil {
		return nil, fmt.Errorf("failed to list playlist tunes: %w", err)
	}
	defer rows.Close()

	var links []*PlaylistTune
	for rows.Next() {
		link := &PlaylistTune{}
		var current, deleted int
		var learned, scheduled sql.NullInt64
		err := rows.Scan(&link.PlaylistID, &link.TuneID, &current,
			&learned, &scheduled, &link.Goal, &deleted, &link.SyncVersion, &link.LastModifiedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan playlist tune: %w", err)
		}
		link.Current = current == 1
		link.Deleted = deleted == 1
		link.Learned = nullInt64Ptr(learned)
		link.Scheduled = nullInt64Ptr(scheduled)
		links = append(links, link)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating playlist tunes: %w", err)
	}

	return links, nil
}

func nullableInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullInt64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}
