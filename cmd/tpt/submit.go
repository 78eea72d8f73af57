package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/keeva/tunepractice/internal/practice"
	"github.com/keeva/tunepractice/internal/util"
)

var submitCmd = &cobra.Command{
	Use:   "submit <playlist-id> <tune-id>",
	Short: "Commit the staged rating for a tune",
	Long: `Commit the staged recall rating for a tune. This applies the
scheduling technique to compute the next review date, appends a practice
record, updates the playlist link, marks the tune completed in today's
queue, and clears the staged rating -- all in one transaction.`,
	Args: cobra.ExactArgs(2),
	RunE: runSubmit,
}

func init() {
	rootCmd.AddCommand(submitCmd)
}

func runSubmit(cmd *cobra.Command, args []string) error {
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

	rec, err := practice.Commit(s, events, user, args[0], args[1], time.Now(), localTZOffsetMinutes())
	if err != nil {
		return fmt.Errorf("failed to commit evaluation: %w", err)
	}

	due := time.UnixMilli(rec.Due)
	util.SuccessLog("Committed tune %s: next review %s (%d day(s))",
		args[1], due.Format("2006-01-02"), rec.Interval)
	return nil
}
