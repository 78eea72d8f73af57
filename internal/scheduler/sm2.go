package scheduler

import (
	"fmt"
	"math"
	"time"

	"github.com/keeva/tunepractice/internal/util"
)

const (
	sm2InitialEasiness = 2.5
	sm2MinEasiness     = 1.3
)

// computeSM2 implements the SuperMemo-2 update. Quality 0..2 is a failed
// recall: repetitions reset and the tune comes back tomorrow, though
// easiness still adjusts downward. Quality 3..5 grows the interval
// 1, 6, then round(interval * easiness).
func computeSM2(prev *Params, quality int, now time.Time) (Params, error) {
	if quality < 0 || quality > 5 {
		return Params{}, fmt.Errorf("%w: sm2 quality %d out of range 0..5", util.ErrValidation, quality)
	}

	easiness := sm2InitialEasiness
	repetitions := 0
	if prev != nil {
		easiness = prev.Easiness
		repetitions = prev.Repetitions
	}

	q := float64(quality)
	easiness += 0.1 - (5-q)*(0.08+(5-q)*0.02)
	if easiness < sm2MinEasiness {
		easiness = sm2MinEasiness
	}

	var interval int
	if quality < 3 {
		repetitions = 0
		interval = 1
	} else {
		repetitions++
		switch repetitions {
		case 1:
			interval = 1
		case 2:
			interval = 6
		default:
			interval = int(math.Round(float64(prev.Interval) * easiness))
			if interval < 1 {
				interval = 1
			}
		}
	}

	return Params{
		Easiness:    easiness,
		Interval:    interval,
		Repetitions: repetitions,
		Due:         now.AddDate(0, 0, interval),
	}, nil
}
