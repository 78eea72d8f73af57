// Package practice holds the staging layer between a user's tentative
// recall ratings and committed scheduling state. Staged evaluations can be
// previewed and rewritten freely; nothing touches practice history until
// an explicit commit.
package practice

import (
	"fmt"
	"time"

	"github.com/keeva/tunepractice/internal/report"
	"github.com/keeva/tunepractice/internal/scheduler"
	"github.com/keeva/tunepractice/internal/store"
	"github.com/keeva/tunepractice/internal/util"
)

// EvalState is the three-way state of a staged evaluation. A row that was
// explicitly unset by the user is distinct from one that was never rated,
// so the UI can tell "(Not Set)" apart from "you chose Not Set".
type EvalState int

const (
	StateUnset   EvalState = iota // no staged row
	StateCleared                  // staged row with an empty eval
	StateRated                    // staged row with a rating
)

var validEvals = map[string]bool{
	"":      true,
	"again": true,
	"hard":  true,
	"good":  true,
	"easy":  true,
}

// Stage upserts a staged evaluation. An empty eval records the explicit
// Cleared state; any rating requires a valid technique so the value is
// never detached from its scale.
func Stage(s *store.Store, events *report.EventLogger, userID, playlistID, tuneID, eval, goal, technique string) error {
	if userID == "" || playlistID == "" || tuneID == "" {
		return fmt.Errorf("%w: user, playlist and tune are required", util.ErrValidation)
	}
	if !validEvals[eval] {
		return fmt.Errorf("%w: unknown evaluation %q", util.ErrValidation, eval)
	}
	if eval != "" {
		if _, err := scheduler.ParseTechnique(technique); err != nil {
			return err
		}
	}

	err := s.UpsertStagedEvaluation(&store.StagedEvaluation{
		UserID:     userID,
		PlaylistID: playlistID,
		TuneID:     tuneID,
		RecallEval: eval,
		Goal:       goal,
		Technique:  technique,
	})
	if err != nil {
		return err
	}

	events.LogStage(userID, playlistID, tuneID, eval, technique)
	return nil
}

// Clear removes the staged row outright, returning the tune to Unset.
func Clear(s *store.Store, userID, playlistID, tuneID string) error {
	return s.DeleteStagedEvaluation(userID, playlistID, tuneID)
}

// StateOf classifies a staged row fetched from the store.
func StateOf(se *store.StagedEvaluation) EvalState {
	switch {
	case se == nil:
		return StateUnset
	case se.RecallEval == "":
		return StateCleared
	default:
		return StateRated
	}
}

// PreviewNext computes the scheduling state a commit would produce,
// without writing anything. Commit uses the same computation, so the
// preview always matches the eventual record.
func PreviewNext(prev *scheduler.Params, eval string, technique scheduler.Technique, now time.Time) (scheduler.Params, error) {
	rating, err := scheduler.RatingForEval(technique, eval)
	if err != nil {
		return scheduler.Params{}, err
	}
	return scheduler.ComputeNext(prev, rating, now)
}

// ParamsFromRecord lifts a committed practice record into scheduler input.
// Returns nil for a nil record, meaning a never-practiced tune.
func ParamsFromRecord(rec *store.PracticeRecord) *scheduler.Params {
	if rec == nil {
		return nil
	}
	return &scheduler.Params{
		Easiness:    rec.Easiness,
		Difficulty:  rec.Difficulty,
		Stability:   rec.Stability,
		Interval:    rec.Interval,
		Repetitions: rec.Repetitions,
		Due:         store.MillisToTime(rec.Due),
	}
}
