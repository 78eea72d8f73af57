package scheduler

import (
	"fmt"
	"math"
	"time"

	"github.com/keeva/tunepractice/internal/util"
)

// FSRS rating grades
const (
	fsrsAgain = 1
	fsrsHard  = 2
	fsrsGood  = 3
	fsrsEasy  = 4
)

// Default FSRS weights. Fixed here so scheduling stays deterministic
// across devices; per-user weight optimization is out of scope.
var fsrsWeights = [17]float64{
	0.4, 0.6, 2.4, 5.8, 4.93, 0.94, 0.86, 0.01, 1.49, 0.14,
	0.94, 2.18, 0.05, 0.34, 1.26, 0.29, 2.61,
}

const fsrsTargetRetention = 0.9

// computeFSRS implements the FSRS update: stability and difficulty evolve
// with each review, and the next interval is the time at which predicted
// retrievability decays to the target retention.
func computeFSRS(prev *Params, grade int, now time.Time) (Params, error) {
	if grade < fsrsAgain || grade > fsrsEasy {
		return Params{}, fmt.Errorf("%w: fsrs grade %d out of range 1..4", util.ErrValidation, grade)
	}

	w := fsrsWeights

	var stability, difficulty float64
	if prev == nil || prev.Stability == 0 {
		stability = w[grade-1]
		difficulty = clampDifficulty(w[4] - float64(grade-3)*w[5])
	} else {
		elapsed := elapsedDays(prev, now)
		retrievability := math.Pow(1+elapsed/(9*prev.Stability), -1)

		difficulty = prev.Difficulty - w[6]*float64(grade-3)
		difficulty = clampDifficulty(w[7]*initialDifficulty(fsrsGood) + (1-w[7])*difficulty)

		if grade == fsrsAgain {
			stability = w[11] * math.Pow(prev.Difficulty, -w[12]) *
				(math.Pow(prev.Stability+1, w[13]) - 1) *
				math.Exp(w[14]*(1-retrievability))
		} else {
			factor := math.Exp(w[8]) * (11 - prev.Difficulty) *
				math.Pow(prev.Stability, -w[9]) *
				(math.Exp(w[10]*(1-retrievability)) - 1)
			if grade == fsrsHard {
				factor *= w[15]
			}
			if grade == fsrsEasy {
				factor *= w[16]
			}
			stability = prev.Stability * (1 + factor)
		}
	}

	// At the target retention the forgetting curve gives
	// interval = 9 * S * (1/r - 1), which is S for r = 0.9.
	interval := int(math.Round(9 * stability * (1/fsrsTargetRetention - 1)))
	if interval < 1 {
		interval = 1
	}

	return Params{
		Stability:  stability,
		Difficulty: difficulty,
		Interval:   interval,
		Due:        now.AddDate(0, 0, interval),
	}, nil
}

func initialDifficulty(grade int) float64 {
	w := fsrsWeights
	return w[4] - float64(grade-3)*w[5]
}

func clampDifficulty(d float64) float64 {
	return math.Min(10, math.Max(1, d))
}

// elapsedDays estimates days since the previous review from the previous
// due date and interval; never negative.
func elapsedDays(prev *Params, now time.Time) float64 {
	lastPracticed := prev.Due.AddDate(0, 0, -prev.Interval)
	days := now.Sub(lastPracticed).Hours() / 24
	if days < 0 {
		return 0
	}
	return days
}
