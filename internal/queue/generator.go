// Package queue builds the frozen daily practice queue: due and lapsed
// tunes classified into buckets, ordered deterministically, and persisted
// once per local day so the list does not reshuffle mid-sitting.
package queue

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/keeva/tunepractice/internal/store"
	"github.com/keeva/tunepractice/internal/util"
)

// Generation modes
const (
	ModeDue  = "due"  // due and recently lapsed tunes only
	ModeFull = "full" // adds old-lapsed and new tunes up to MaxNew
)

const (
	defaultDelinquencyDays = 7
	defaultMaxNew          = 10
)

// Options selects what to generate a queue for and how.
type Options struct {
	UserID          string
	PlaylistID      string
	AsOf            time.Time
	TZOffsetMinutes int
	Mode            string
	Force           bool // regenerate even when a queue exists for the day

	// Zero means the default
	DelinquencyDays int
	MaxNew          int
}

// GenerateOrFetch returns the practice queue for the local day of AsOf.
// A queue already generated for that day is returned as stored unless
// Force is set; generation is deterministic, so two force-regenerations
// over unchanged state produce identical queues. An empty queue with a
// nil error means genuinely nothing to practice; store failures always
// surface as errors.
func GenerateOrFetch(ctx context.Context, s *store.Store, opts Options) ([]*store.QueueItem, error) {
	if opts.UserID == "" || opts.PlaylistID == "" {
		return nil, fmt.Errorf("%w: user and playlist are required", util.ErrValidation)
	}
	switch opts.Mode {
	case ModeDue, ModeFull:
	default:
		return nil, fmt.Errorf("%w: unknown queue mode %q", util.ErrValidation, opts.Mode)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	queueDate := LocalDay(opts.AsOf, opts.TZOffsetMinutes)

	if !opts.Force {
		existing, err := s.GetQueue(opts.UserID, opts.PlaylistID, queueDate)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", util.ErrStoreUnavailable, err)
		}
		if len(existing) > 0 {
			return existing, nil
		}
	}

	playlist, err := s.GetPlaylist(opts.PlaylistID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrStoreUnavailable, err)
	}
	if playlist == nil {
		return nil, fmt.Errorf("%w: playlist %s", util.ErrNotFound, opts.PlaylistID)
	}

	links, err := s.ListPlaylistTunes(opts.PlaylistID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrStoreUnavailable, err)
	}
	latest, err := s.LatestPracticeByPlaylist(opts.UserID, opts.PlaylistID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrStoreUnavailable, err)
	}

	delinquencyDays := opts.DelinquencyDays
	if delinquencyDays <= 0 {
		delinquencyDays = defaultDelinquencyDays
	}
	maxNew := opts.MaxNew
	if maxNew <= 0 {
		maxNew = defaultMaxNew
	}

	type candidate struct {
		tuneID string
		bucket int
		due    int64
	}
	var candidates []candidate
	var newTunes []string

	for _, link := range links {
		rec, practiced := latest[link.TuneID]
		if !practiced {
			newTunes = append(newTunes, link.TuneID)
			continue
		}

		overdue := daysOverdue(rec.Due, queueDate, opts.TZOffsetMinutes)
		switch {
		case overdue < 0:
			// not due yet
		case overdue == 0:
			candidates = append(candidates, candidate{link.TuneID, store.BucketDueToday, rec.Due})
		case overdue <= delinquencyDays:
			candidates = append(candidates, candidate{link.TuneID, store.BucketLapsed, rec.Due})
		default:
			if opts.Mode == ModeFull {
				candidates = append(candidates, candidate{link.TuneID, store.BucketOldLapsed, rec.Due})
			}
		}
	}

	if opts.Mode == ModeFull {
		sort.Strings(newTunes)
		if len(newTunes) > maxNew {
			newTunes = newTunes[:maxNew]
		}
		for _, tuneID := range newTunes {
			candidates = append(candidates, candidate{tuneID, store.BucketNew, 0})
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.bucket != b.bucket {
			return a.bucket < b.bucket
		}
		if a.due != b.due {
			return a.due < b.due
		}
		return a.tuneID < b.tuneID
	})

	generatedAt := opts.AsOf.UnixMilli()
	items := make([]*store.QueueItem, 0, len(candidates))
	for i, c := range candidates {
		items = append(items, &store.QueueItem{
			UserID:      opts.UserID,
			PlaylistID:  opts.PlaylistID,
			QueueDate:   queueDate,
			TZOffsetMin: opts.TZOffsetMinutes,
			TuneID:      c.tuneID,
			Bucket:      c.bucket,
			OrderIndex:  i,
			GeneratedAt: generatedAt,
		})
	}

	if len(items) > 0 || opts.Force {
		if err := s.ReplaceQueue(opts.UserID, opts.PlaylistID, queueDate, items); err != nil {
			return nil, fmt.Errorf("%w: %v", util.ErrStoreUnavailable, err)
		}
	}

	return items, nil
}

// LocalDay formats the calendar day of t in the user's timezone offset.
func LocalDay(t time.Time, tzOffsetMin int) string {
	return t.UTC().Add(time.Duration(tzOffsetMin) * time.Minute).Format("2006-01-02")
}

// daysOverdue is how many whole local days have passed since the due day.
// 0 means due today, negative means due in the future.
func daysOverdue(dueMillis int64, queueDate string, tzOffsetMin int) int {
	dueDay := LocalDay(time.UnixMilli(dueMillis), tzOffsetMin)
	due, err := time.Parse("2006-01-02", dueDay)
	if err != nil {
		return 0
	}
	today, err := time.Parse("2006-01-02", queueDate)
	if err != nil {
		return 0
	}
	return int(today.Sub(due).Hours() / 24)
}
