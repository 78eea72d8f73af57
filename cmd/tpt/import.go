package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/keeva/tunepractice/internal/importer"
	"github.com/keeva/tunepractice/internal/util"
)

var importCmd = &cobra.Command{
	Use:   "import <directory>",
	Short: "Import tunes from a directory of tagged audio files",
	Long: `Walk a directory of audio files and create or update tunes from
their metadata tags. Tune identity is derived from title and composer,
so re-running an import is a no-op for unchanged files. With --playlist
the imported tunes are also linked into a playlist.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	importCmd.Flags().String("playlist", "", "playlist ID to link imported tunes into")
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	applyLogLevel()

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

	playlistID, _ := cmd.Flags().GetString("playlist")

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	im := importer.New(&importer.Config{Store: s, Logger: events})
	res, err := im.Import(ctx, args[0], playlistID)
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	util.SuccessLog("Imported %d tune(s), %d unchanged, %d non-audio file(s) ignored",
		res.TunesImported, res.TunesSkipped, res.FilesIgnored)
	if len(res.Errors) > 0 {
		util.WarnLog("%d file(s) could not be read:", len(res.Errors))
		for _, e := range res.Errors {
			util.WarnLog("  %v", e)
		}
	}
	return nil
}
