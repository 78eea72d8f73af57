package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/keeva/tunepractice/internal/util"
)

// RemoteChange is one change pulled from the remote feed. Payload carries
// the full row as JSON for insert/update; for delete only the row key and
// version metadata matter.
type RemoteChange struct {
	Seq            int64           `json:"seq"`
	Table          string          `json:"table"`
	RowKey         string          `json:"row_key"`
	Op             string          `json:"op"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	SyncVersion    int64           `json:"sync_version"`
	LastModifiedAt int64           `json:"last_modified_at"`
	DeviceID       string          `json:"device_id"`
}

// ApplyRemoteChange applies one pulled change under last-writer-wins.
// The incoming row wins when its sync_version is higher than the local
// one, or versions are equal and its last_modified_at is later. Delete
// tombstones always win. Applying never writes the outbox: pulled state
// must not echo back on the next push.
//
// Returns true when the change was applied, false when the local row won.
func ApplyRemoteChange(tx *sql.Tx, change *RemoteChange) (bool, error) {
	switch change.Table {
	case TableTunes, TablePlaylists, TablePlaylistTunes, TablePracticeRecords:
	default:
		return false, fmt.Errorf("%w: unknown table %q in remote change", util.ErrCorrupt, change.Table)
	}
	switch change.Op {
	case OpInsert, OpUpdate, OpDelete:
	default:
		return false, fmt.Errorf("%w: unknown op %q in remote change", util.ErrCorrupt, change.Op)
	}

	if change.Op == OpDelete {
		return applyRemoteDelete(tx, change)
	}

	localVersion, localModified, exists, err := localRowVersion(tx, change.Table, change.RowKey)
	if err != nil {
		return false, err
	}
	if exists && !incomingWins(change.SyncVersion, change.LastModifiedAt, localVersion, localModified) {
		return false, nil
	}

	switch change.Table {
	case TableTunes:
		return true, applyRemoteTune(tx, change)
	case TablePlaylists:
		return true, applyRemotePlaylist(tx, change)
	case TablePlaylistTunes:
		return true, applyRemotePlaylistTune(tx, change)
	case TablePracticeRecords:
		return true, applyRemotePracticeRecord(tx, change)
	}
	return false, nil
}

func incomingWins(inVersion, inModified, localVersion, localModified int64) bool {
	if inVersion != localVersion {
		return inVersion > localVersion
	}
	return inModified > localModified
}

func localRowVersion(tx *sql.Tx, table, rowKey string) (version int64, modified int64, exists bool, err error) {
	var row *sql.Row
	switch table {
	case TableTunes:
		row = tx.QueryRow(`SELECT sync_version, last_modified_at FROM tunes WHERE id = ?`, rowKey)
	case TablePlaylists:
		row = tx.QueryRow(`SELECT sync_version, last_modified_at FROM playlists WHERE id = ?`, rowKey)
	case TablePlaylistTunes:
		playlistID, tuneID, splitErr := splitPlaylistTuneKey(rowKey)
		if splitErr != nil {
			return 0, 0, false, splitErr
		}
		row = tx.QueryRow(`SELECT sync_version, last_modified_at FROM playlist_tunes WHERE playlist_id = ? AND tune_id = ?`, playlistID, tuneID)
	case TablePracticeRecords:
		row = tx.QueryRow(`SELECT sync_version, last_modified_at FROM practice_records WHERE id = ?`, rowKey)
	}

	err = row.Scan(&version, &modified)
	if err == sql.ErrNoRows {
		return 0, 0, false, nil
	}
	if err != nil {
		return 0, 0, false, fmt.Errorf("failed to read local row version: %w", err)
	}
	return version, modified, true, nil
}

func splitPlaylistTuneKey(rowKey string) (playlistID, tuneID string, err error) {
	parts := strings.SplitN(rowKey, "|", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: malformed playlist_tunes row key %q", util.ErrCorrupt, rowKey)
	}
	return parts[0], parts[1], nil
}

func applyRemoteDelete(tx *sql.Tx, change *RemoteChange) (bool, error) {
	var err error
	switch change.Table {
	case TableTunes:
		_, err = tx.Exec(`
			INSERT INTO tunes (id, title, tune_type, mode, structure, incipit, composer, genre, deleted, sync_version, last_modified_at)
			VALUES (?, '', '', '', '', '', '', '', 1, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				deleted = 1,
				sync_version = excluded.sync_version,
				last_modified_at = excluded.last_modified_at
		`, change.RowKey, change.SyncVersion, change.LastModifiedAt)
	case TablePlaylists:
		_, err = tx.Exec(`
			INSERT INTO playlists (id, user_id, name, instrument, genre_default, deleted, sync_version, last_modified_at)
			VALUES (?, '', '', '', '', 1, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				deleted = 1,
				sync_version = excluded.sync_version,
				last_modified_at = excluded.last_modified_at
		`, change.RowKey, change.SyncVersion, change.LastModifiedAt)
	case TablePlaylistTunes:
		playlistID, tuneID, splitErr := splitPlaylistTuneKey(change.RowKey)
		if splitErr != nil {
			return false, splitErr
		}
		_, err = tx.Exec(`
			INSERT INTO playlist_tunes (playlist_id, tune_id, current, learned, scheduled, goal, deleted, sync_version, last_modified_at)
			VALUES (?, ?, 0, NULL, NULL, '', 1, ?, ?)
			ON CONFLICT(playlist_id, tune_id) DO UPDATE SET
				deleted = 1,
				sync_version = excluded.sync_version,
				last_modified_at = excluded.last_modified_at
		`, playlistID, tuneID, change.SyncVersion, change.LastModifiedAt)
	case TablePracticeRecords:
		_, err = tx.Exec(`
			INSERT INTO practice_records (id, user_id, playlist_id, tune_id, technique, quality, due, practiced, deleted, sync_version, last_modified_at)
			VALUES (?, '', '', '', '', 0, 0, 0, 1, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				deleted = 1,
				sync_version = excluded.sync_version,
				last_modified_at = excluded.last_modified_at
		`, change.RowKey, change.SyncVersion, change.LastModifiedAt)
	}
	if err != nil {
		return false, fmt.Errorf("failed to apply remote delete for %s/%s: %w", change.Table, change.RowKey, err)
	}
	return true, nil
}

func applyRemoteTune(tx *sql.Tx, change *RemoteChange) error {
	var t Tune
	if err := json.Unmarshal(change.Payload, &t); err != nil {
		return fmt.Errorf("%w: malformed tune payload for %s: %v", util.ErrCorrupt, change.RowKey, err)
	}
	if t.ID == "" {
		t.ID = change.RowKey
	}
	_, err := tx.Exec(`
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
		boolToInt(t.Deleted), change.SyncVersion, change.LastModifiedAt)
	if err != nil {
		return fmt.Errorf("failed to apply remote tune %s: %w", t.ID, err)
	}
	return nil
}

func applyRemotePlaylist(tx *sql.Tx, change *RemoteChange) error {
	var p Playlist
	if err := json.Unmarshal(change.Payload, &p); err != nil {
		return fmt.Errorf("%w: malformed playlist payload for %s: %v", util.ErrCorrupt, change.RowKey, err)
	}
	if p.ID == "" {
		p.ID = change.RowKey
	}
	_, err := tx.Exec(`
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
		boolToInt(p.Deleted), change.SyncVersion, change.LastModifiedAt)
	if err != nil {
		return fmt.Errorf("failed to apply remote playlist %s: %w", p.ID, err)
	}
	return nil
}

func applyRemotePlaylistTune(tx *sql.Tx, change *RemoteChange) error {
	var pt PlaylistTune
	if err := json.Unmarshal(change.Payload, &pt); err != nil {
		return fmt.Errorf("%w: malformed playlist_tunes payload for %s: %v", util.ErrCorrupt, change.RowKey, err)
	}
	if pt.PlaylistID == "" || pt.TuneID == "" {
		playlistID, tuneID, splitErr := splitPlaylistTuneKey(change.RowKey)
		if splitErr != nil {
			return splitErr
		}
		pt.PlaylistID, pt.TuneID = playlistID, tuneID
	}
	_, err := tx.Exec(`
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
	`, pt.PlaylistID, pt.TuneID, boolToInt(pt.Current),
		nullableInt64(pt.Learned), nullableInt64(pt.Scheduled), pt.Goal,
		boolToInt(pt.Deleted), change.SyncVersion, change.LastModifiedAt)
	if err != nil {
		return fmt.Errorf("failed to apply remote playlist tune %s/%s: %w", pt.PlaylistID, pt.TuneID, err)
	}
	return nil
}

func applyRemotePracticeRecord(tx *sql.Tx, change *RemoteChange) error {
	var rec PracticeRecord
	if err := json.Unmarshal(change.Payload, &rec); err != nil {
		return fmt.Errorf("%w: malformed practice record payload for %s: %v", util.ErrCorrupt, change.RowKey, err)
	}
	if rec.ID == "" {
		rec.ID = change.RowKey
	}
	_, err := tx.Exec(`
		INSERT INTO practice_records (id, user_id, playlist_id, tune_id, technique, quality, easiness, difficulty, stability, interval_days, repetitions, due, practiced, deleted, sync_version, last_modified_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			technique = excluded.technique,
			quality = excluded.quality,
			easiness = excluded.easiness,
			difficulty = excluded.difficulty,
			stability = excluded.stability,
			interval_days = excluded.interval_days,
			repetitions = excluded.repetitions,
			due = excluded.due,
			practiced = excluded.practiced,
			deleted = excluded.deleted,
			sync_version = excluded.sync_version,
			last_modified_at = excluded.last_modified_at
	`, rec.ID, rec.UserID, rec.PlaylistID, rec.TuneID, rec.Technique, rec.Quality,
		rec.Easiness, rec.Difficulty, rec.Stability, rec.Interval, rec.Repetitions,
		rec.Due, rec.Practiced, boolToInt(rec.Deleted), change.SyncVersion, change.LastModifiedAt)
	if err != nil {
		return fmt.Errorf("failed to apply remote practice record %s: %w", rec.ID, err)
	}
	return nil
}
