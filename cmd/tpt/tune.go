package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/keeva/tunepractice/internal/store"
	"github.com/keeva/tunepractice/internal/util"
)

var tuneCmd = &cobra.Command{
	Use:   "tune",
	Short: "Manage the tune catalog",
}

var tuneAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Add a tune to the catalog",
	Args:  cobra.ExactArgs(1),
	RunE:  runTuneAdd,
}

var tuneListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all tunes",
	RunE:  runTuneList,
}

var tuneRemoveCmd = &cobra.Command{
	Use:   "remove <tune-id>",
	Short: "Remove a tune (soft delete, propagated on sync)",
	Args:  cobra.ExactArgs(1),
	RunE:  runTuneRemove,
}

func init() {
	tuneAddCmd.Flags().String("type", "", "tune type (reel, jig, hornpipe, ...)")
	tuneAddCmd.Flags().String("mode", "", "mode or key")
	tuneAddCmd.Flags().String("structure", "", "part structure (AABB, ...)")
	tuneAddCmd.Flags().String("incipit", "", "opening notes")
	tuneAddCmd.Flags().String("composer", "", "composer")
	tuneAddCmd.Flags().String("genre", "", "genre")

	tuneCmd.AddCommand(tuneAddCmd)
	tuneCmd.AddCommand(tuneListCmd)
	tuneCmd.AddCommand(tuneRemoveCmd)
	rootCmd.AddCommand(tuneCmd)
}

func runTuneAdd(cmd *cobra.Command, args []string) error {
	applyLogLevel()

	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	tune := &store.Tune{
		ID:    uuid.NewString(),
		Title: args[0],
	}
	tune.Type, _ = cmd.Flags().GetString("type")
	tune.Mode, _ = cmd.Flags().GetString("mode")
	tune.Structure, _ = cmd.Flags().GetString("structure")
	tune.Incipit, _ = cmd.Flags().GetString("incipit")
	tune.Composer, _ = cmd.Flags().GetString("composer")
	tune.Genre, _ = cmd.Flags().GetString("genre")

	if err := s.UpsertTune(tune); err != nil {
		return fmt.Errorf("failed to add tune: %w", err)
	}

	util.SuccessLog("Added tune %s (%s)", tune.Title, tune.ID)
	return nil
}

func runTuneList(cmd *cobra.Command, args []string) error {
	applyLogLevel()

	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	tunes, err := s.ListTunes()
	if err != nil {
		return fmt.Errorf("failed to list tunes: %w", err)
	}

	if len(tunes) == 0 {
		util.InfoLog("No tunes in the catalog")
		return nil
	}

	for _, tune := range tunes {
		line := tune.Title
		if tune.Type != "" {
			line += fmt.Sprintf(" (%s)", tune.Type)
		}
		fmt.Printf("%-36s  %s\n", tune.ID, line)
	}
	return nil
}

func runTuneRemove(cmd *cobra.Command, args []string) error {
	applyLogLevel()

	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.SoftDeleteTune(args[0]); err != nil {
		return fmt.Errorf("failed to remove tune: %w", err)
	}

	util.SuccessLog("Removed tune %s", args[0])
	return nil
}
