package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lsvault/lsvault/internal/services/sync"
)

var watchCmd = &cobra.Command{
	Use:   "watch [session-id]",
	Short: "Continuously reconcile sessions as files change",
	Long: `Watch runs a full sync, then keeps the session reconciled: local file
changes push up as they settle, and the vault's live event feed applies
remote changes as they arrive.

Without a session ID, every session registered with --auto is watched.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if err := requireAuth(); err != nil {
		return err
	}

	sessionIDs, err := watchTargets(args)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	progress := NewProgressDisplay()
	defer progress.Close()

	var watchers []*sync.WatchService
	defer func() {
		for _, w := range watchers {
			w.Stop()
		}
	}()

	for _, sessionID := range sessionIDs {
		w, err := apiClient.Watch(sessionID, progress.Observe)
		if err != nil {
			return err
		}
		if err := w.Start(ctx); err != nil {
			return fmt.Errorf("watch %s: %w", sessionID, err)
		}
		watchers = append(watchers, w)
		progress.Close()

		session, err := apiClient.Sessions.Get(sessionID)
		if err != nil {
			return err
		}
		printInfo("Watching %s (%s)", sessionID, session.LocalPath)
	}

	if !jsonOutput {
		printInfo("Press Ctrl-C to stop.")
	}

	<-ctx.Done()

	for _, w := range watchers {
		w.Stop()
	}
	watchers = nil

	if !jsonOutput {
		printSuccess("Stopped.")
	}
	return nil
}

// watchTargets resolves which sessions to watch: the named one, or all
// sessions marked auto-sync.
func watchTargets(args []string) ([]string, error) {
	if len(args) == 1 {
		return []string{args[0]}, nil
	}

	sessions, err := apiClient.Sessions.List()
	if err != nil {
		return nil, err
	}

	var ids []string
	for _, s := range sessions {
		if s.AutoSync {
			ids = append(ids, s.ID)
		}
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("no sessions marked --auto; name one explicitly")
	}
	return ids, nil
}
