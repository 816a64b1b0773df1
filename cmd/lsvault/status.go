package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lsvault/lsvault/internal/models"
)

var statusCmd = &cobra.Command{
	Use:   "status <session-id>",
	Short: "Show pending changes without transferring",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	if err := requireAuth(); err != nil {
		return err
	}

	report, err := apiClient.Sync.Status(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	if jsonOutput {
		printJSON(report)
		return nil
	}

	fmt.Printf("Session %s: %s <-> vault %s (%s)\n",
		report.Session.ID, report.Session.LocalPath, report.Session.VaultID, report.Session.Mode)
	fmt.Printf("Tracked files: %d local, %d remote\n", report.LocalFiles, report.RemoteFiles)

	pending := renderDiff("Pull", report.Pull)
	pending += renderDiff("Push", report.Push)

	if report.InSync() {
		printSuccess("In sync.")
	} else {
		printInfo("%d operations pending.", pending)
	}
	return nil
}

// renderDiff prints one direction's plan and returns how many
// operations it holds.
func renderDiff(title string, diff *models.SyncDiff) int {
	if diff == nil || diff.IsEmpty() {
		return 0
	}

	fmt.Printf("\n%s (%d files, %s):\n", title, diff.Len(), formatBytes(diff.TotalBytes))
	for _, entry := range diff.Transfers() {
		fmt.Printf("  %-6s %s (%s)\n", entry.Action, entry.Path, formatBytes(entry.SizeBytes))
	}
	for _, entry := range diff.Deletes {
		fmt.Printf("  %-6s %s\n", entry.Action, entry.Path)
	}
	return diff.Len()
}
