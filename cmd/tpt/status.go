package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/keeva/tunepractice/internal/store"
	"github.com/keeva/tunepractice/internal/util"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show sync and database status",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

var historyCmd = &cobra.Command{
	Use:   "history <playlist-id> <tune-id>",
	Short: "Show recent practice history for a tune",
	Args:  cobra.ExactArgs(2),
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().Int("limit", 20, "maximum records to show")
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(historyCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	applyLogLevel()

	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	depth, err := s.OutboxDepth()
	if err != nil {
		return fmt.Errorf("failed to read outbox: %w", err)
	}

	fmt.Printf("Device ID:       %s\n", s.DeviceID())
	fmt.Printf("Pending changes: %d\n", depth)

	if user := GetConfigString("user", ""); user != "" {
		cursor, err := s.GetSyncCursor(user)
		if err != nil {
			return fmt.Errorf("failed to read sync cursor: %w", err)
		}
		fmt.Printf("Pull cursor:     %d (user %s)\n", cursor, user)
	}

	if err := s.CheckIntegrity(); err != nil {
		util.ErrorLog("Database integrity check FAILED: %v", err)
		return err
	}
	fmt.Printf("Integrity:       ok\n")
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
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

	limit, _ := cmd.Flags().GetInt("limit")
	recs, err := s.ListPracticeHistory(user, args[0], args[1], limit)
	if err != nil {
		return fmt.Errorf("failed to load practice history: %w", err)
	}
	if len(recs) == 0 {
		util.InfoLog("No practice history for tune %s", args[1])
		return nil
	}

	for _, rec := range recs {
		practiced := store.MillisToTime(rec.Practiced)
		due := store.MillisToTime(rec.Due)
		fmt.Printf("%s  %s q=%d  interval=%dd  due %s (%s)\n",
			practiced.Format("2006-01-02 15:04"), rec.Technique, rec.Quality,
			rec.Interval, due.Format("2006-01-02"), humanize.Time(due))
	}
	return nil
}
