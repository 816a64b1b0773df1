package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var vaultsCmd = &cobra.Command{
	Use:   "vaults",
	Short: "List vaults visible to the logged-in account",
	Args:  cobra.NoArgs,
	RunE:  runVaults,
}

func init() {
	rootCmd.AddCommand(vaultsCmd)
}

func runVaults(cmd *cobra.Command, args []string) error {
	if err := requireAuth(); err != nil {
		return err
	}

	vaultList, err := apiClient.Vaults.ListVaults(cmd.Context())
	if err != nil {
		return err
	}

	if jsonOutput {
		printJSON(vaultList)
		return nil
	}

	if len(vaultList) == 0 {
		printInfo("No vaults found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tCREATED")
	for _, v := range vaultList {
		created := "unknown"
		if !v.CreatedAt.IsZero() {
			created = humanize.Time(v.CreatedAt)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", v.ID, v.Name, created)
	}
	return w.Flush()
}
