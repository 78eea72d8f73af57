package store

import (
	"database/sql"
	"errors"
	"fmt"
)

// StagedEvaluation holds an in-progress rating before the user commits it.
// A present row with RecallEval == "" is the explicit "cleared" state,
// distinct from no row at all ("never rated"). Device-local, never synced.
type StagedEvaluation struct {
	UserID     string
	PlaylistID string
	TuneID     string
	RecallEval string
	Goal       string
	Technique  string
	UpdatedAt  int64
}

// UpsertStagedEvaluation creates or overwrites the staged evaluation for a
// (user, playlist, tune). Called on every rating change in the UI.
func (s *Store) UpsertStagedEvaluation(se *StagedEvaluation) error {
	return s.Transaction(func(tx *sql.Tx) error {
		return UpsertStagedEvaluationTx(tx, se)
	})
}

// UpsertStagedEvaluationTx is the transaction-scoped form of UpsertStagedEvaluation
func UpsertStagedEvaluationTx(tx *sql.Tx, se *StagedEvaluation) error {
	se.UpdatedAt = nowMillis()
	_, err := tx.Exec(`
		INSERT INTO staged_evaluations (user_id, playlist_id, tune_id, recall_eval, goal, technique, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, playlist_id, tune_id) DO UPDATE SET
			recall_eval = excluded.recall_eval,
			goal = excluded.goal,
			technique = excluded.technique,
			updated_at = excluded.updated_at
	`, se.UserID, se.PlaylistID, se.TuneID, se.RecallEval, se.Goal, se.Technique, se.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert staged evaluation: %w", err)
	}
	return nil
}

// GetStagedEvaluation returns the staged row, or nil, nil when nothing is staged
func (s *Store) GetStagedEvaluation(userID, playlistID, tuneID string) (*StagedEvaluation, error) {
	var se *StagedEvaluation
	err := s.Transaction(func(tx *sql.Tx) error {
		var err error
		se, err = GetStagedEvaluationTx(tx, userID, playlistID, tuneID)
		return err
	})
	return se, err
}

// GetStagedEvaluationTx is the transaction-scoped form of GetStagedEvaluation
func GetStagedEvaluationTx(tx *sql.Tx, userID, playlistID, tuneID string) (*StagedEvaluation, error) {
	se := &StagedEvaluation{}
	err := tx.QueryRow(`
		SELECT user_id, playlist_id, tune_id, recall_eval, goal, technique, updated_at
		FROM staged_evaluations
		WHERE user_id = ? AND playlist_id = ? AND tune_id = ?
	`, userID, playlistID, tuneID).Scan(&se.UserID, &se.PlaylistID, &se.TuneID,
		&se.RecallEval, &se.Goal, &se.Technique, &se.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get staged evaluation: %w", err)
	}
	return se, nil
}

// DeleteStagedEvaluation removes the staged row outright
func (s *Store) DeleteStagedEvaluation(userID, playlistID, tuneID string) error {
	return s.Transaction(func(tx *sql.Tx) error {
		return DeleteStagedEvaluationTx(tx, userID, playlistID, tuneID)
	})
}

// DeleteStagedEvaluationTx is the transaction-scoped form of DeleteStagedEvaluation
func DeleteStagedEvaluationTx(tx *sql.Tx, userID, playlistID, tuneID string) error {
	_, err := tx.Exec(`
		DELETE FROM staged_evaluations
		WHERE user_id = ? AND playlist_id = ? AND tune_id = ?
	`, userID, playlistID, tuneID)
	if err != nil {
		return fmt.Errorf("failed to delete staged evaluation: %w", err)
	}
	return nil
}
