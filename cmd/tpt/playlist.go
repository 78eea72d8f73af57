package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/keeva/tunepractice/internal/store"
	"github.com/keeva/tunepractice/internal/util"
)

var playlistCmd = &cobra.Command{
	Use:   "playlist",
	Short: "Manage practice playlists",
}

var playlistAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Create a playlist",
	Args:  cobra.ExactArgs(1),
	RunE:  runPlaylistAdd,
}

var playlistListCmd = &cobra.Command{
	Use:   "list",
	Short: "List playlists for the configured user",
	RunE:  runPlaylistList,
}

var playlistRemoveCmd = &cobra.Command{
	Use:   "remove <playlist-id>",
	Short: "Remove a playlist and its tune links (soft delete)",
	Args:  cobra.ExactArgs(1),
	RunE:  runPlaylistRemove,
}

var playlistAddTuneCmd = &cobra.Command{
	Use:   "add-tune <playlist-id> <tune-id>",
	Short: "Add a tune to a playlist",
	Args:  cobra.ExactArgs(2),
	RunE:  runPlaylistAddTune,
}

var playlistRemoveTuneCmd = &cobra.Command{
	Use:   "remove-tune <playlist-id> <tune-id>",
	Short: "Remove a tune from a playlist",
	Args:  cobra.ExactArgs(2),
	RunE:  runPlaylistRemoveTune,
}

func init() {
	playlistAddCmd.Flags().String("instrument", "", "instrument this playlist is practiced on")
	playlistAddCmd.Flags().String("genre", "", "default genre for tunes in this playlist")
	playlistAddTuneCmd.Flags().String("goal", "", "practice goal for this tune")

	playlistCmd.AddCommand(playlistAddCmd)
	playlistCmd.AddCommand(playlistListCmd)
	playlistCmd.AddCommand(playlistRemoveCmd)
	playlistCmd.AddCommand(playlistAddTuneCmd)
	playlistCmd.AddCommand(playlistRemoveTuneCmd)
	rootCmd.AddCommand(playlistCmd)
}

func runPlaylistAdd(cmd *cobra.Command, args []string) error {
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

	playlist := &store.Playlist{
		ID:     uuid.NewString(),
		UserID: user,
		Name:   args[0],
	}
	playlist.Instrument, _ = cmd.Flags().GetString("instrument")
	playlist.GenreDefault, _ = cmd.Flags().GetString("genre")

	if err := s.UpsertPlaylist(playlist); err != nil {
		return fmt.Errorf("failed to create playlist: %w", err)
	}

	util.SuccessLog("Created playlist %s (%s)", playlist.Name, playlist.ID)
	return nil
}

func runPlaylistList(cmd *cobra.Command, args []string) error {
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

	playlists, err := s.ListPlaylists(user)
	if err != nil {
		return fmt.Errorf("failed to list playlists: %w", err)
	}

	if len(playlists) == 0 {
		util.InfoLog("No playlists for user %s", user)
		return nil
	}

	for _, playlist := range playlists {
		links, err := s.ListPlaylistTunes(playlist.ID)
		if err != nil {
			return fmt.Errorf("failed to count playlist tunes: %w", err)
		}
		line := playlist.Name
		if playlist.Instrument != "" {
			line += fmt.Sprintf(" [%s]", playlist.Instrument)
		}
		fmt.Printf("%-36s  %s (%d tunes)\n", playlist.ID, line, len(links))
	}
	return nil
}

func runPlaylistRemove(cmd *cobra.Command, args []string) error {
	applyLogLevel()

	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.SoftDeletePlaylist(args[0]); err != nil {
		return fmt.Errorf("failed to remove playlist: %w", err)
	}

	util.SuccessLog("Removed playlist %s", args[0])
	return nil
}

func runPlaylistAddTune(cmd *cobra.Command, args []string) error {
	applyLogLevel()

	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	goal, _ := cmd.Flags().GetString("goal")
	if err := s.AddTuneToPlaylist(args[0], args[1], goal); err != nil {
		return fmt.Errorf("failed to add tune to playlist: %w", err)
	}

	util.SuccessLog("Added tune %s to playlist %s", args[1], args[0])
	return nil
}

func runPlaylistRemoveTune(cmd *cobra.Command, args []string) error {
	applyLogLevel()

	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.RemoveTuneFromPlaylist(args[0], args[1]); err != nil {
		return fmt.Errorf("failed to remove tune from playlist: %w", err)
	}

	util.SuccessLog("Removed tune %s from playlist %s", args[1], args[0])
	return nil
}
