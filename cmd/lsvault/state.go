package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/lsvault/lsvault/internal/state"
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Inspect and maintain sync state",
}

var stateListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored sync baselines",
	Args:  cobra.NoArgs,
	RunE:  runStateList,
}

var stateResetCmd = &cobra.Command{
	Use:   "reset <session-id>",
	Short: "Delete a session's baseline so the next run starts fresh",
	Args:  cobra.ExactArgs(1),
	RunE:  runStateReset,
}

var stateMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Copy all baselines to the other storage backend",
	Args:  cobra.NoArgs,
	RunE:  runStateMigrate,
}

var migrateTarget string

func init() {
	rootCmd.AddCommand(stateCmd)
	stateCmd.AddCommand(stateListCmd)
	stateCmd.AddCommand(stateResetCmd)
	stateCmd.AddCommand(stateMigrateCmd)

	stateMigrateCmd.Flags().StringVar(&migrateTarget, "to", "",
		"Target backend: json or sqlite (required)")
	_ = stateMigrateCmd.MarkFlagRequired("to")
}

func runStateList(cmd *cobra.Command, args []string) error {
	syncIDs, err := apiClient.States.List()
	if err != nil {
		return err
	}

	if jsonOutput {
		type row struct {
			SyncID    string `json:"sync_id"`
			Local     int    `json:"local_files"`
			Remote    int    `json:"remote_files"`
			UpdatedAt string `json:"updated_at,omitempty"`
		}
		rows := make([]row, 0, len(syncIDs))
		for _, id := range syncIDs {
			st, err := apiClient.States.Load(id)
			if err != nil {
				return err
			}
			r := row{SyncID: id, Local: len(st.Local), Remote: len(st.Remote)}
			if !st.UpdatedAt.IsZero() {
				r.UpdatedAt = st.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z")
			}
			rows = append(rows, r)
		}
		printJSON(rows)
		return nil
	}

	if len(syncIDs) == 0 {
		printInfo("No sync state stored.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SESSION\tLOCAL\tREMOTE\tUPDATED")
	for _, id := range syncIDs {
		st, err := apiClient.States.Load(id)
		if err != nil {
			return err
		}
		updated := "never"
		if !st.UpdatedAt.IsZero() {
			updated = humanize.Time(st.UpdatedAt)
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", id, len(st.Local), len(st.Remote), updated)
	}
	return w.Flush()
}

func runStateReset(cmd *cobra.Command, args []string) error {
	sessionID := args[0]

	removed, err := apiClient.States.Delete(sessionID)
	if err != nil {
		return err
	}

	if jsonOutput {
		printJSON(map[string]interface{}{
			"session": sessionID,
			"removed": removed,
		})
		return nil
	}

	if removed {
		printSuccess("Reset state for %s; the next run rescans from scratch.", sessionID)
	} else {
		printWarning("No stored state for %s.", sessionID)
	}
	return nil
}

func runStateMigrate(cmd *cobra.Command, args []string) error {
	if migrateTarget != "json" && migrateTarget != "sqlite" {
		return fmt.Errorf("unknown backend %q (want json or sqlite)", migrateTarget)
	}
	if migrateTarget == cfg.Storage.StateBackend {
		return fmt.Errorf("state already uses the %s backend", migrateTarget)
	}

	var (
		target state.Store
		err    error
	)
	switch migrateTarget {
	case "sqlite":
		target, err = state.NewSQLiteStore(filepath.Join(cfg.Storage.StateDir, "state.db"), logger)
	default:
		target, err = state.NewJSONStore(cfg.Storage.StateDir, logger)
	}
	if err != nil {
		return fmt.Errorf("open %s backend: %w", migrateTarget, err)
	}
	defer target.Close()

	if err := apiClient.States.Migrate(target); err != nil {
		return err
	}

	if jsonOutput {
		printJSON(map[string]interface{}{
			"migrated_to": migrateTarget,
		})
	} else {
		printSuccess("Migrated state to the %s backend.", migrateTarget)
		printInfo("Set storage.state_backend to %q in your config to use it.", migrateTarget)
	}
	return nil
}
