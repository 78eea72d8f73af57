package practice

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/keeva/tunepractice/internal/queue"
	"github.com/keeva/tunepractice/internal/report"
	"github.com/keeva/tunepractice/internal/scheduler"
	"github.com/keeva/tunepractice/internal/store"
	"github.com/keeva/tunepractice/internal/util"
)

// Commit turns the staged evaluation for a tune into permanent scheduling
// state. Everything happens in one transaction: the practice record is
// inserted, the playlist link's scheduled/learned fields advance, the
// day's queue row is marked completed, the staged row is deleted, and the
// outbox entries for the syncable writes land — all or nothing.
//
// Only a Rated staged row commits; Unset and Cleared are rejected with
// ErrValidation.
func Commit(s *store.Store, events *report.EventLogger, userID, playlistID, tuneID string, now time.Time, tzOffsetMin int) (*store.PracticeRecord, error) {
	if userID == "" || playlistID == "" || tuneID == "" {
		return nil, fmt.Errorf("%w: user, playlist and tune are required", util.ErrValidation)
	}

	var rec *store.PracticeRecord
	err := s.Transaction(func(tx *sql.Tx) error {
		se, err := store.GetStagedEvaluationTx(tx, userID, playlistID, tuneID)
		if err != nil {
			return err
		}
		switch StateOf(se) {
		case StateUnset:
			return fmt.Errorf("%w: nothing staged for tune %s", util.ErrValidation, tuneID)
		case StateCleared:
			return fmt.Errorf("%w: evaluation for tune %s was cleared", util.ErrValidation, tuneID)
		}

		technique, err := scheduler.ParseTechnique(se.Technique)
		if err != nil {
			return err
		}

		prevRec, err := store.GetLatestPracticeRecordTx(tx, userID, playlistID, tuneID)
		if err != nil {
			return err
		}

		next, err := PreviewNext(ParamsFromRecord(prevRec), se.RecallEval, technique, now)
		if err != nil {
			return err
		}
		rating, err := scheduler.RatingForEval(technique, se.RecallEval)
		if err != nil {
			return err
		}

		rec = &store.PracticeRecord{
			ID:          uuid.NewString(),
			UserID:      userID,
			PlaylistID:  playlistID,
			TuneID:      tuneID,
			Technique:   string(technique),
			Quality:     rating.Value,
			Easiness:    next.Easiness,
			Difficulty:  next.Difficulty,
			Stability:   next.Stability,
			Interval:    next.Interval,
			Repetitions: next.Repetitions,
			Due:         store.TimeToMillis(next.Due),
			Practiced:   store.TimeToMillis(now),
		}
		if err := store.InsertPracticeRecordTx(tx, s.DeviceID(), rec); err != nil {
			return err
		}

		if err := store.UpdatePracticeFieldsTx(tx, s.DeviceID(), playlistID, tuneID, rec.Due, rec.Practiced); err != nil {
			return err
		}

		// Completing outside a generated sitting is fine; the queue row
		// is simply absent that day.
		queueDate := queue.LocalDay(now, tzOffsetMin)
		if _, err := store.MarkQueueCompletedTx(tx, userID, playlistID, queueDate, tuneID, rec.Practiced); err != nil {
			return err
		}

		return store.DeleteStagedEvaluationTx(tx, userID, playlistID, tuneID)
	})
	if err != nil {
		if errors.Is(err, util.ErrValidation) || errors.Is(err, util.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: commit for tune %s: %w", util.ErrAtomicity, tuneID, err)
	}

	events.LogCommit(userID, playlistID, tuneID, rec.Technique, rec.Interval, rec.Due)
	return rec, nil
}
