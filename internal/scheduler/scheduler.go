// Package scheduler computes the next review state for a tune from its
// previous state and a recall rating. Two techniques are supported, each
// with its own rating scale; ratings are tagged with their technique so a
// value can never be interpreted on the wrong scale.
package scheduler

import (
	"fmt"
	"time"

	"github.com/keeva/tunepractice/internal/util"
)

// Technique identifies a spaced-repetition algorithm
type Technique string

const (
	TechniqueSM2  Technique = "sm2"
	TechniqueFSRS Technique = "fsrs"
)

// ParseTechnique validates a technique name from config or the wire.
func ParseTechnique(s string) (Technique, error) {
	switch Technique(s) {
	case TechniqueSM2, TechniqueFSRS:
		return Technique(s), nil
	default:
		return "", fmt.Errorf("%w: unknown technique %q", util.ErrValidation, s)
	}
}

// Rating is a recall grade tagged with the technique whose scale it is on.
// SM2 ratings are 0..5, FSRS ratings are 1..4. The tag keeps the two
// scales from being mixed up downstream.
type Rating struct {
	Technique Technique
	Value     int
}

// RatingForEval maps a staged evaluation label to a rating on the given
// technique's scale. The empty label has no rating and is rejected.
func RatingForEval(technique Technique, eval string) (Rating, error) {
	var value int
	var ok bool
	switch technique {
	case TechniqueSM2:
		value, ok = map[string]int{"again": 2, "hard": 3, "good": 4, "easy": 5}[eval]
	case TechniqueFSRS:
		value, ok = map[string]int{"again": 1, "hard": 2, "good": 3, "easy": 4}[eval]
	default:
		return Rating{}, fmt.Errorf("%w: unknown technique %q", util.ErrValidation, technique)
	}
	if !ok {
		return Rating{}, fmt.Errorf("%w: unknown evaluation %q", util.ErrValidation, eval)
	}
	return Rating{Technique: technique, Value: value}, nil
}

// Params is the scheduling state carried between reviews. Easiness and
// Repetitions belong to SM2; Stability and Difficulty belong to FSRS. The
// unused pair stays zero.
type Params struct {
	Easiness    float64
	Difficulty  float64
	Stability   float64
	Interval    int // days
	Repetitions int
	Due         time.Time
}

// ComputeNext computes the scheduling state after a review. prev is nil
// for a never-practiced tune. The function is pure and deterministic:
// the same inputs always produce the same output. Out-of-domain ratings
// return ErrValidation; values are never clamped into range.
func ComputeNext(prev *Params, rating Rating, now time.Time) (Params, error) {
	switch rating.Technique {
	case TechniqueSM2:
		return computeSM2(prev, rating.Value, now)
	case TechniqueFSRS:
		return computeFSRS(prev, rating.Value, now)
	default:
		return Params{}, fmt.Errorf("%w: unknown technique %q", util.ErrValidation, rating.Technique)
	}
}
