package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lsvault/lsvault/internal/models"
	"github.com/lsvault/lsvault/internal/services/sync"
)

var pullCmd = &cobra.Command{
	Use:   "pull <session-id>",
	Short: "Download remote changes into the local directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTransfer(cmd, args[0], "pull")
	},
}

var pushCmd = &cobra.Command{
	Use:   "push <session-id>",
	Short: "Upload local changes to the vault",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTransfer(cmd, args[0], "push")
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync <session-id>",
	Short: "Reconcile both directions",
	Long:  `Sync runs a pull pass followed by a push pass, applying the session's conflict policy where both sides changed.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTransfer(cmd, args[0], "sync")
	},
}

var transferDryRun bool

func init() {
	rootCmd.AddCommand(pullCmd)
	rootCmd.AddCommand(pushCmd)
	rootCmd.AddCommand(syncCmd)

	for _, cmd := range []*cobra.Command{pullCmd, pushCmd, syncCmd} {
		cmd.Flags().BoolVar(&transferDryRun, "dry-run", false,
			"Show the plan without transferring anything")
	}
}

func runTransfer(cmd *cobra.Command, sessionID, kind string) error {
	if err := requireAuth(); err != nil {
		return err
	}

	ctx := cmd.Context()
	if transferDryRun {
		return runTransferDryRun(ctx, sessionID, kind)
	}

	progress := NewProgressDisplay()
	defer progress.Close()
	opts := sync.Options{Progress: progress.Observe}

	var (
		result *models.SyncResult
		err    error
	)
	switch kind {
	case "pull":
		result, err = apiClient.Sync.Pull(ctx, sessionID, opts)
	case "push":
		result, err = apiClient.Sync.Push(ctx, sessionID, opts)
	default:
		result, err = apiClient.Sync.Sync(ctx, sessionID, opts)
	}
	progress.Close()

	if err != nil {
		if jsonOutput {
			printJSON(map[string]interface{}{
				"success": false,
				"error":   err.Error(),
			})
		}
		return err
	}

	if jsonOutput {
		printJSON(result)
	} else {
		printResultSummary(result)
	}

	if result.Aborted {
		return fmt.Errorf("%s aborted; the vault stopped accepting writes", kind)
	}
	if result.HasErrors() {
		return fmt.Errorf("%s completed with %d errors", kind, len(result.Errors))
	}
	return nil
}

func runTransferDryRun(ctx context.Context, sessionID, kind string) error {
	report, err := apiClient.Sync.Status(ctx, sessionID)
	if err != nil {
		return err
	}

	if jsonOutput {
		out := map[string]interface{}{"session": report.Session.ID}
		if kind != "push" {
			out["pull"] = report.Pull
		}
		if kind != "pull" {
			out["push"] = report.Push
		}
		printJSON(out)
		return nil
	}

	pending := 0
	if kind != "push" {
		pending += renderDiff("Pull", report.Pull)
	}
	if kind != "pull" {
		pending += renderDiff("Push", report.Push)
	}
	if pending == 0 {
		printSuccess("Nothing to do; %s is in sync.", sessionID)
	}
	return nil
}

func printResultSummary(result *models.SyncResult) {
	fmt.Printf("Uploaded %d, downloaded %d, deleted %d (%s in %s)\n",
		result.FilesUploaded,
		result.FilesDownloaded,
		result.FilesDeleted,
		formatBytes(result.BytesTransferred),
		result.Duration.Round(time.Millisecond),
	)

	for _, te := range result.Errors {
		printWarning("  %s: %s", te.Path, te.Message)
	}

	if result.Aborted {
		printWarning("Run aborted before completion.")
	} else if !result.HasErrors() {
		printSuccess("Done.")
	}
}
