package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/keeva/tunepractice/internal/util"
)

// PracticeRecord is one committed review. The latest row per
// (user, playlist, tune) carries the authoritative scheduling parameters;
// older rows are history.
type PracticeRecord struct {
	ID             string  `json:"id"`
	UserID         string  `json:"user_id"`
	PlaylistID     string  `json:"playlist_id"`
	TuneID         string  `json:"tune_id"`
	Technique      string  `json:"technique"`
	Quality        int     `json:"quality"`
	Easiness       float64 `json:"easiness,omitempty"`
	Difficulty     float64 `json:"difficulty,omitempty"`
	Stability      float64 `json:"stability,omitempty"`
	Interval       int     `json:"interval_days"`
	Repetitions    int     `json:"repetitions"`
	Due            int64   `json:"due"`
	Practiced      int64   `json:"practiced"`
	Deleted        bool    `json:"deleted,omitempty"`
	SyncVersion    int64   `json:"sync_version"`
	LastModifiedAt int64   `json:"last_modified_at"`
}

// InsertPracticeRecordTx appends a committed review inside the commit
// transaction. Practice records are only ever created by a commit.
func InsertPracticeRecordTx(tx *sql.Tx, deviceID string, rec *PracticeRecord) error {
	if rec.ID == "" || rec.UserID == "" || rec.PlaylistID == "" || rec.TuneID == "" {
		return fmt.Errorf("%w: practice record ids are required", util.ErrValidation)
	}
	if rec.Technique == "" {
		return fmt.Errorf("%w: practice record technique is required", util.ErrValidation)
	}
	if rec.Due == 0 || rec.Practiced == 0 {
		return fmt.Errorf("%w: practice record due and practiced are required", util.ErrValidation)
	}

	rec.SyncVersion = 1
	rec.LastModifiedAt = nowMillis()

	_, err := tx.Exec(`
		INSERT INTO practice_records (id, user_id, playlist_id, tune_id, technique, quality,
			easiness, difficulty, stability, interval_days, repetitions, due, practiced,
			deleted, sync_version, last_modified_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)
	`, rec.ID, rec.UserID, rec.PlaylistID, rec.TuneID, rec.Technique, rec.Quality,
		rec.Easiness, rec.Difficulty, rec.Stability, rec.Interval, rec.Repetitions,
		rec.Due, rec.Practiced, rec.SyncVersion, rec.LastModifiedAt)
	if err != nil {
		return fmt.Errorf("failed to insert practice record: %w", err)
	}

	return recordChange(tx, deviceID, TablePracticeRecords, rec.ID, OpInsert, rec,
		rec.SyncVersion, rec.LastModifiedAt)
}

const practiceRecordColumns = `
	id, user_id, playlist_id, tune_id, technique, quality,
	easiness, difficulty, stability, interval_days, repetitions,
	due, practiced, deleted, sync_version, last_modified_at
`

func scanPracticeRecord(row interface{ Scan(...interface{}) error }) (*PracticeRecord, error) {
	rec := &PracticeRecord{}
	var deleted int
	err := row.Scan(&rec.ID, &rec.UserID, &rec.PlaylistID, &rec.TuneID, &rec.Technique,
		&rec.Quality, &rec.Easiness, &rec.Difficulty, &rec.Stability, &rec.Interval,
		&rec.Repetitions, &rec.Due, &rec.Practiced, &deleted, &rec.SyncVersion, &rec.LastModifiedAt)
	if err != nil {
		return nil, err
	}
	rec.Deleted = deleted == 1
	return rec, nil
}

// GetLatestPracticeRecord returns the most recent committed review for a
// (user, playlist, tune), or nil, nil if the tune was never practiced.
func (s *Store) GetLatestPracticeRecord(userID, playlistID, tuneID string) (*PracticeRecord, error) {
	var rec *PracticeRecord
	err := s.Transaction(func(tx *sql.Tx) error {
		var err error
		rec, err = GetLatestPracticeRecordTx(tx, userID, playlistID, tuneID)
		return err
	})
	return rec, err
}

// GetLatestPracticeRecordTx is the transaction-scoped form of GetLatestPracticeRecord
func GetLatestPracticeRecordTx(tx *sql.Tx, userID, playlistID, tuneID string) (*PracticeRecord, error) {
	row := tx.QueryRow(`
		SELECT `+practiceRecordColumns+`
		FROM practice_records
		WHERE user_id = ? AND playlist_id = ? AND tune_id = ? AND deleted = 0
		ORDER BY practiced DESC, last_modified_at DESC
		LIMIT 1
	`, userID, playlistID, tuneID)

	rec, err := scanPracticeRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest practice record: %w", err)
	}
	return rec, nil
}

// LatestPracticeByPlaylist returns the latest committed review per tune for
// all tunes the user has practiced in the playlist.
func (s *Store) LatestPracticeByPlaylist(userID, playlistID string) (map[string]*PracticeRecord, error) {
	rows, err := s.db.Query(`
		SELECT `+practiceRecordColumns+`
		FROM practice_records pr
		WHERE user_id = ? AND playlist_id = ? AND deleted = 0
		  AND practiced = (
			SELECT MAX(practiced) FROM practice_records
			WHERE user_id = pr.user_id AND playlist_id = pr.playlist_id
			  AND tune_id = pr.tune_id AND deleted = 0
		  )
	`, userID, playlistID)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest practice records: %w", err)
	}
	defer rows.Close()

	latest := make(map[string]*PracticeRecord)
	for rows.Next() {
		rec, err := scanPracticeRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan practice record: %w", err)
		}
		latest[rec.TuneID] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating practice records: %w", err)
	}

	return latest, nil
}

// ListPracticeHistory returns the committed history for one tune,
// newest first.
func (s *Store) ListPracticeHistory(userID, playlistID, tuneID string, limit int) ([]*PracticeRecord, error) {
	query := `
		SELECT ` + practiceRecordColumns + `
		FROM practice_records
		WHERE user_id = ? AND playlist_id = ? AND tune_id = ? AND deleted = 0
		ORDER BY practiced DESC
	`
	args := []interface{}{userID, playlistID, tuneID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query practice history: %w", err)
	}
	defer rows.Close()

	var records []*PracticeRecord
	for rows.Next() {
		rec, err := scanPracticeRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan practice record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating practice history: %w", err)
	}

	return records, nil
}
