package store

import (
	"database/sql"
	"fmt"
)

// PracticeRow is the joined per-tune view backing the practice list UI:
// the frozen queue row, tune metadata, the latest committed practice
// record, and any staged evaluation for the sitting.
type PracticeRow struct {
	TuneID     string
	Title      string
	Type       string
	Bucket     int
	OrderIndex int
	Completed  bool

	Goal      string
	Scheduled *int64
	Learned   *int64

	// Latest committed record, zero values when the tune is new
	LatestQuality     int
	LatestTechnique   string
	LatestEasiness    float64
	LatestDifficulty  float64
	LatestStability   float64
	LatestInterval    int
	LatestRepetitions int
	LatestDue         *int64
	LatestPracticed   *int64

	// Staged evaluation: StagedPresent false means unset; present with an
	// empty RecallEval means explicitly cleared
	StagedPresent    bool
	StagedRecallEval string
	StagedGoal       string
	StagedTechnique  string
}

// GetPracticeRows returns the joined view for a frozen queue, ordered the
// way the queue was generated. Tunes soft-deleted since generation are
// filtered out.
func (s *Store) GetPracticeRows(userID, playlistID, queueDate string) ([]*PracticeRow, error) {
	rows, err := s.db.Query(`
		SELECT
			q.tune_id, t.title, t.tune_type, q.bucket, q.order_index, q.completed_at,
			pt.goal, pt.scheduled, pt.learned,
			COALESCE(pr.quality, 0), COALESCE(pr.technique, ''),
			COALESCE(pr.easiness, 0), COALESCE(pr.difficulty, 0), COALESCE(pr.stability, 0),
			COALESCE(pr.interval_days, 0), COALESCE(pr.repetitions, 0),
			pr.due, pr.practiced,
			se.recall_eval, se.goal, se.technique
		FROM practice_queue q
		JOIN tunes t ON t.id = q.tune_id AND t.deleted = 0
		JOIN playlist_tunes pt ON pt.playlist_id = q.playlist_id AND pt.tune_id = q.tune_id AND pt.deleted = 0
		LEFT JOIN practice_records pr ON pr.id = (
			SELECT id FROM practice_records
			WHERE user_id = q.user_id AND playlist_id = q.playlist_id AND tune_id = q.tune_id AND deleted = 0
			ORDER BY practiced DESC, last_modified_at DESC
			LIMIT 1
		)
		LEFT JOIN staged_evaluations se
			ON se.user_id = q.user_id AND se.playlist_id = q.playlist_id AND se.tune_id = q.tune_id
		WHERE q.user_id = ? AND q.playlist_id = ? AND q.queue_date = ?
		ORDER BY q.order_index ASC
	`, userID, playlistID, queueDate)
	if err != nil {
		return nil, fmt.Errorf("failed to query practice rows: %w", err)
	}
	defer rows.Close()

	var result []*PracticeRow
	for rows.Next() {
		r := &PracticeRow{}
		var completedAt, scheduled, learned, latestDue, latestPracticed sql.NullInt64
		var stagedEval, stagedGoal, stagedTechnique sql.NullString
		err := rows.Scan(
			&r.TuneID, &r.Title, &r.Type, &r.Bucket, &r.OrderIndex, &completedAt,
			&r.Goal, &scheduled, &learned,
			&r.LatestQuality, &r.LatestTechnique,
			&r.LatestEasiness, &r.LatestDifficulty, &r.LatestStability,
			&r.LatestInterval, &r.LatestRepetitions,
			&latestDue, &latestPracticed,
			&stagedEval, &stagedGoal, &stagedTechnique,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan practice row: %w", err)
		}
		r.Completed = completedAt.Valid
		r.Scheduled = nullInt64Ptr(scheduled)
		r.Learned = nullInt64Ptr(learned)
		r.LatestDue = nullInt64Ptr(latestDue)
		r.LatestPracticed = nullInt64Ptr(latestPracticed)
		r.StagedPresent = stagedEval.Valid
		r.StagedRecallEval = stagedEval.String
		r.StagedGoal = stagedGoal.String
		r.StagedTechnique = stagedTechnique.String
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating practice rows: %w", err)
	}

	return result, nil
}
