package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/keeva/tunepractice/internal/practice"
	"github.com/keeva/tunepractice/internal/scheduler"
	"github.com/keeva/tunepractice/internal/util"
)

var stageCmd = &cobra.Command{
	Use:   "stage <playlist-id> <tune-id>",
	Short: "Stage a recall rating for a tune",
	Long: `Stage a recall rating (again/hard/good/easy) for a tune without
committing it. Staged ratings can be changed or cleared freely; nothing
touches practice history until 'tpt submit'. An empty --eval records an
explicit "not set", distinct from never having rated the tune.`,
	Args: cobra.ExactArgs(2),
	RunE: runStage,
}

var unstageCmd = &cobra.Command{
	Use:   "unstage <playlist-id> <tune-id>",
	Short: "Drop the staged rating for a tune entirely",
	Args:  cobra.ExactArgs(2),
	RunE:  runUnstage,
}

var previewCmd = &cobra.Command{
	Use:   "preview <playlist-id> <tune-id>",
	Short: "Preview what committing the staged rating would schedule",
	Args:  cobra.ExactArgs(2),
	RunE:  runPreview,
}

func init() {
	stageCmd.Flags().String("eval", "", "recall rating: again, hard, good, easy, or empty for explicit not-set")
	stageCmd.Flags().String("goal", "", "practice goal")
	stageCmd.Flags().String("technique", "", "scheduling technique: sm2 or fsrs")

	rootCmd.AddCommand(stageCmd)
	rootCmd.AddCommand(unstageCmd)
	rootCmd.AddCommand(previewCmd)
}

func runStage(cmd *cobra.Command, args []string) error {
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

	eval, _ := cmd.Flags().GetString("eval")
	goal, _ := cmd.Flags().GetString("goal")
	technique, _ := cmd.Flags().GetString("technique")
	if eval != "" && technique == "" {
		technique = GetConfigString("technique", string(scheduler.TechniqueFSRS))
	}

	if err := practice.Stage(s, events, user, args[0], args[1], eval, goal, technique); err != nil {
		return fmt.Errorf("failed to stage evaluation: %w", err)
	}

	if eval == "" {
		util.SuccessLog("Marked tune %s as explicitly not set", args[1])
	} else {
		util.SuccessLog("Staged %q for tune %s (%s)", eval, args[1], technique)
	}
	return nil
}

func runUnstage(cmd *cobra.Command, args []string) error {
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

	if err := practice.Clear(s, user, args[0], args[1]); err != nil {
		return fmt.Errorf("failed to clear staged evaluation: %w", err)
	}

	util.SuccessLog("Cleared staged evaluation for tune %s", args[1])
	return nil
}

func runPreview(cmd *cobra.Command, args []string) error {
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

	se, err := s.GetStagedEvaluation(user, args[0], args[1])
	if err != nil {
		return fmt.Errorf("failed to load staged evaluation: %w", err)
	}
	switch practice.StateOf(se) {
	case practice.StateUnset:
		util.InfoLog("Nothing staged for tune %s", args[1])
		return nil
	case practice.StateCleared:
		util.InfoLog("Tune %s is staged as explicitly not set", args[1])
		return nil
	}

	technique, err := scheduler.ParseTechnique(se.Technique)
	if err != nil {
		return err
	}
	prev, err := s.GetLatestPracticeRecord(user, args[0], args[1])
	if err != nil {
		return fmt.Errorf("failed to load practice history: %w", err)
	}

	next, err := practice.PreviewNext(practice.ParamsFromRecord(prev), se.RecallEval, technique, time.Now())
	if err != nil {
		return err
	}

	fmt.Printf("Committing %q (%s) would schedule:\n", se.RecallEval, technique)
	fmt.Printf("  next review: %s (%s, %d day(s))\n",
		next.Due.Format("2006-01-02"), humanize.Time(next.Due), next.Interval)
	switch technique {
	case scheduler.TechniqueSM2:
		fmt.Printf("  easiness: %.2f, repetitions: %d\n", next.Easiness, next.Repetitions)
	case scheduler.TechniqueFSRS:
		fmt.Printf("  stability: %.2f, difficulty: %.2f\n", next.Stability, next.Difficulty)
	}
	return nil
}
