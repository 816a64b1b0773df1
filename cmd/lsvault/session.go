package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/lsvault/lsvault/internal/models"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage sync sessions",
	Long:  `A session pairs one local directory with one remote vault, along with its sync mode, conflict policy, and ignore patterns.`,
}

var sessionAddCmd = &cobra.Command{
	Use:   "add <session-id>",
	Short: "Register a new sync session",
	Example: `  lsvault session add team-notes --vault "Team Notes" --path ~/notes/team
  lsvault session add journal --vault vault-7 --path ~/journal --mode pull-only --on-conflict remote`,
	Args: cobra.ExactArgs(1),
	RunE: runSessionAdd,
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered sessions",
	Args:  cobra.NoArgs,
	RunE:  runSessionList,
}

var sessionRemoveCmd = &cobra.Command{
	Use:   "remove <session-id>",
	Short: "Remove a session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionRemove,
}

var (
	sessionVault    string
	sessionPath     string
	sessionMode     string
	sessionConflict string
	sessionIgnore   []string
	sessionAuto     bool
	sessionPurge    bool
)

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionAddCmd)
	sessionCmd.AddCommand(sessionListCmd)
	sessionCmd.AddCommand(sessionRemoveCmd)

	sessionAddCmd.Flags().StringVar(&sessionVault, "vault", "",
		"Vault ID or name (required)")
	sessionAddCmd.Flags().StringVar(&sessionPath, "path", "",
		"Local directory to sync (required)")
	sessionAddCmd.Flags().StringVar(&sessionMode, "mode", "sync",
		"Sync mode: sync, pull-only, or push-only")
	sessionAddCmd.Flags().StringVar(&sessionConflict, "on-conflict", "newer",
		"Conflict policy: newer, local, remote, or manual")
	sessionAddCmd.Flags().StringArrayVar(&sessionIgnore, "ignore", nil,
		"Extra ignore pattern (repeatable)")
	sessionAddCmd.Flags().BoolVar(&sessionAuto, "auto", false,
		"Mark the session for automatic watch on startup")

	_ = sessionAddCmd.MarkFlagRequired("vault")
	_ = sessionAddCmd.MarkFlagRequired("path")

	sessionRemoveCmd.Flags().BoolVar(&sessionPurge, "purge-state", false,
		"Also delete the session's sync state")
}

func runSessionAdd(cmd *cobra.Command, args []string) error {
	sessionID := args[0]

	mode, err := models.ParseSyncMode(sessionMode)
	if err != nil {
		return err
	}
	policy, err := models.ParseConflictPolicy(sessionConflict)
	if err != nil {
		return err
	}

	localPath, err := filepath.Abs(sessionPath)
	if err != nil {
		return fmt.Errorf("resolve local path: %w", err)
	}
	if err := os.MkdirAll(localPath, 0o755); err != nil {
		return fmt.Errorf("create local path: %w", err)
	}

	// Resolve against the live vault list so names work and typos
	// surface now rather than at first sync.
	if err := requireAuth(); err != nil {
		return err
	}
	vault, err := apiClient.Vaults.GetVault(cmd.Context(), sessionVault)
	if err != nil {
		return err
	}

	session := models.SyncSession{
		ID:         sessionID,
		VaultID:    vault.ID,
		LocalPath:  localPath,
		Mode:       mode,
		OnConflict: policy,
		Ignore:     sessionIgnore,
		AutoSync:   sessionAuto,
	}
	if err := apiClient.Sessions.Add(session); err != nil {
		return err
	}

	if jsonOutput {
		printJSON(session)
	} else {
		printSuccess("Session %s: %s <-> vault %s (%s)", sessionID, localPath, vault.Name, mode)
	}
	return nil
}

func runSessionList(cmd *cobra.Command, args []string) error {
	sessions, err := apiClient.Sessions.List()
	if err != nil {
		return err
	}

	if jsonOutput {
		printJSON(sessions)
		return nil
	}

	if len(sessions) == 0 {
		printInfo("No sessions registered. Add one with 'lsvault session add'.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tVAULT\tMODE\tCONFLICT\tPATH\tLAST SYNC")
	for _, s := range sessions {
		lastSync := "never"
		if !s.LastSyncAt.IsZero() {
			lastSync = humanize.Time(s.LastSyncAt)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			s.ID, s.VaultID, s.Mode, s.OnConflict, s.LocalPath, lastSync)
	}
	return w.Flush()
}

func runSessionRemove(cmd *cobra.Command, args []string) error {
	sessionID := args[0]

	if err := apiClient.Sessions.Remove(sessionID); err != nil {
		return err
	}

	if sessionPurge {
		if _, err := apiClient.States.Delete(sessionID); err != nil {
			return fmt.Errorf("purge state: %w", err)
		}
	}

	if jsonOutput {
		printJSON(map[string]interface{}{
			"removed":     sessionID,
			"purge_state": sessionPurge,
		})
	} else {
		printSuccess("Removed session %s", sessionID)
	}
	return nil
}
