package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/keeva/tunepractice/internal/sync"
	"github.com/keeva/tunepractice/internal/util"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Push local changes and pull remote ones once",
	Long: `Run one sync cycle against the remote service: push everything in
the local outbox, then pull and apply remote changes past the saved
cursor. Safe to interrupt; acknowledged pushes and fully-applied pull
pages are never repeated.`,
	Args: cobra.NoArgs,
	RunE: runSync,
}

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Sync continuously in the background",
	Long: `Run sync cycles on a fixed interval until interrupted. Consecutive
failures back off by skipping ticks, so a dead remote does not hammer
the network.`,
	Args: cobra.NoArgs,
	RunE: runDaemon,
}

func init() {
	syncCmd.Flags().Bool("push-only", false, "push local changes without pulling")
	syncCmd.Flags().Bool("pull-only", false, "pull remote changes without pushing")
	daemonCmd.Flags().Duration("interval", 0, "sync interval (default from config)")
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(daemonCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
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

	engine, err := newSyncEngine(s, events, user)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pushOnly, _ := cmd.Flags().GetBool("push-only")
	pullOnly, _ := cmd.Flags().GetBool("pull-only")
	if pushOnly && pullOnly {
		return fmt.Errorf("%w: --push-only and --pull-only are mutually exclusive", util.ErrValidation)
	}

	switch {
	case pushOnly:
		pushed, err := engine.Push(ctx)
		if err != nil {
			return fmt.Errorf("push failed: %w", err)
		}
		util.SuccessLog("Pushed %d change(s)", pushed)
		if err := engine.Persist(); err != nil {
			util.WarnLog("Checkpoint after push failed: %v", err)
		}
	case pullOnly:
		applied, err := engine.Pull(ctx)
		if err != nil {
			return fmt.Errorf("pull failed: %w", err)
		}
		util.SuccessLog("Applied %d remote change(s)", applied)
		if err := engine.Persist(); err != nil {
			util.WarnLog("Checkpoint after pull failed: %v", err)
		}
	default:
		if err := engine.Run(ctx); err != nil {
			return fmt.Errorf("sync failed: %w", err)
		}
		util.SuccessLog("Sync complete")
	}
	return nil
}

func runDaemon(cmd *cobra.Command, args []string) error {
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

	engine, err := newSyncEngine(s, events, user)
	if err != nil {
		return err
	}

	interval, _ := cmd.Flags().GetDuration("interval")
	if interval <= 0 {
		interval = GetConfigDuration("sync.interval", 5*time.Minute)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d := sync.NewDaemon(engine, interval)
	return d.Start(ctx)
}
