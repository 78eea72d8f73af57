package main

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/keeva/tunepractice/internal/queue"
	"github.com/keeva/tunepractice/internal/store"
	"github.com/keeva/tunepractice/internal/util"
)

var practiceCmd = &cobra.Command{
	Use:   "practice <playlist-id>",
	Short: "Show today's practice queue",
	Long: `Show the practice queue for today. The queue is generated once per
local day and then frozen: repeated calls return the same tunes in the
same order, so a sitting never reshuffles underneath you. Use --force to
regenerate against current state.`,
	Args: cobra.ExactArgs(1),
	RunE: runPractice,
}

func init() {
	practiceCmd.Flags().String("mode", queue.ModeFull, "queue mode: due or full")
	practiceCmd.Flags().Bool("force", false, "regenerate the queue even if one exists for today")

	rootCmd.AddCommand(practiceCmd)
}

var bucketLabels = map[int]string{
	store.BucketDueToday:  "due today",
	store.BucketLapsed:    "lapsed",
	store.BucketNew:       "new",
	store.BucketOldLapsed: "old lapsed",
}

func runPractice(cmd *cobra.Command, args []string) error {
	applyLogLevel()

	user, err := requireUser()
	if err != nil {
		return err
	}
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	events, err := newEventLogger()
	if err != nil {
		return err
	}
	defer events.Close()

	mode, _ := cmd.Flags().GetString("mode")
	force, _ := cmd.Flags().GetBool("force")
	now := time.Now()
	tzOffset := localTZOffsetMinutes()

	items, err := queue.GenerateOrFetch(context.Background(), s, queue.Options{
		UserID:          user,
		PlaylistID:      args[0],
		AsOf:            now,
		TZOffsetMinutes: tzOffset,
		Mode:            mode,
		Force:           force,
		DelinquencyDays: GetConfigInt("queue.delinquency_days", 0),
		MaxNew:          GetConfigInt("queue.max_new", 0),
	})
	if err != nil {
		return fmt.Errorf("failed to load practice queue: %w", err)
	}

	queueDate := queue.LocalDay(now, tzOffset)
	events.LogQueue(user, args[0], queueDate, len(items), force)

	if len(items) == 0 {
		util.SuccessLog("All caught up - nothing to practice today")
		return nil
	}

	rows, err := s.GetPracticeRows(user, args[0], queueDate)
	if err != nil {
		return fmt.Errorf("failed to load practice rows: %w", err)
	}

	fmt.Printf("Practice queue for %s (%d tunes):\n\n", queueDate, len(rows))
	for _, row := range rows {
		marker := " "
		if row.Completed {
			marker = "x"
		}

		due := "never practiced"
		if row.LatestDue != nil {
			due = "due " + humanize.Time(store.MillisToTime(*row.LatestDue))
		}

		staged := ""
		switch {
		case row.StagedPresent && row.StagedRecallEval != "":
			staged = fmt.Sprintf("  [staged: %s]", row.StagedRecallEval)
		case row.StagedPresent:
			staged = "  [staged: not set]"
		}

		fmt.Printf("[%s] %-30s %-10s %s%s\n", marker, row.Title, bucketLabels[row.Bucket], due, staged)
	}
	return nil
}
