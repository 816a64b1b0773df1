package main

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/lsvault/lsvault/internal/client"
	"github.com/lsvault/lsvault/internal/config"
	"github.com/lsvault/lsvault/internal/events"
	"github.com/lsvault/lsvault/internal/models"
)

var rootCmd = &cobra.Command{
	Use:   "lsvault",
	Short: "Keep local Markdown directories in sync with remote vaults",
	Long: `lsvault pairs local directories of Markdown notes with remote vaults
and keeps both sides reconciled: one-shot pull/push/sync runs, a
continuous watch mode, and dry-run status inspection.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initClient(cmd)
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if apiClient == nil {
			return nil
		}
		return apiClient.Close()
	},
}

// Shared command state, initialized once per invocation.
var (
	cfgFile    string
	jsonOutput bool
	verbose    bool

	cfg       *config.Config
	logger    *events.Logger
	apiClient *client.Client
)

func init() {
	rootCmd.Version = version

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "Config file (default: ./config.json or ~/.config/lsvault/config.json)")
	pf.BoolVar(&jsonOutput, "json", false, "Emit machine-readable JSON output")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	pf.String("api-url", "", "Vault API base URL")
	pf.String("log-level", "", "Log level (debug, info, warn, error)")
}

func initClient(cmd *cobra.Command) error {
	loader := config.NewLoader(cfgFile)

	flags := cmd.Flags()
	if err := loader.BindFlag("api.base_url", flags.Lookup("api-url")); err != nil {
		return err
	}
	if err := loader.BindFlag("log.level", flags.Lookup("log-level")); err != nil {
		return err
	}

	var err error
	cfg, err = loader.Load()
	if err != nil {
		return err
	}

	if verbose {
		cfg.Log.Level = "debug"
	}
	if !cfg.Log.Color {
		color.NoColor = true
	}

	logger, err = events.NewLogger(&cfg.Log)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	apiClient, err = client.New(cfg, logger)
	return err
}

// requireAuth restores stored credentials before a command talks to the
// vault API.
func requireAuth() error {
	if _, err := apiClient.Restore(); err != nil {
		if errors.Is(err, models.ErrNotAuthenticated) {
			return fmt.Errorf("not logged in; run 'lsvault login' first")
		}
		return err
	}
	return nil
}
