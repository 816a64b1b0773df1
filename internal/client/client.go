// Package client wires configuration, transport, persistence, and the
// services into one entry point for the CLI.
package client

import (
	"fmt"
	"path/filepath"

	"github.com/lsvault/lsvault/internal/config"
	"github.com/lsvault/lsvault/internal/creds"
	"github.com/lsvault/lsvault/internal/events"
	"github.com/lsvault/lsvault/internal/services/auth"
	"github.com/lsvault/lsvault/internal/services/sync"
	"github.com/lsvault/lsvault/internal/services/vaults"
	"github.com/lsvault/lsvault/internal/state"
	"github.com/lsvault/lsvault/internal/transport"
)

// Client provides the high-level API for lsvault operations.
type Client struct {
	Auth     *auth.Service
	Vaults   *vaults.Service
	Sync     *sync.Service
	Sessions *config.SessionStore
	States   state.Store

	config *config.Config
	logger *events.Logger
	api    *transport.Client
}

// New creates a client from loaded configuration.
func New(cfg *config.Config, logger *events.Logger) (*Client, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("prepare data directories: %w", err)
	}

	api := transport.NewClient(&cfg.API, logger)

	states, err := openStateStore(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("open state store: %w", err)
	}

	credStore := creds.NewStore(cfg.Auth.CredentialsFile, logger)
	sessions := config.NewSessionStore(cfg.Storage.SessionsFile)

	authService := auth.NewService(api, credStore, logger)
	vaultsService := vaults.NewService(api, logger)
	syncService := sync.NewService(api, states, sessions, nil, logger)

	return &Client{
		Auth:     authService,
		Vaults:   vaultsService,
		Sync:     syncService,
		Sessions: sessions,
		States:   states,
		config:   cfg,
		logger:   logger,
		api:      api,
	}, nil
}

// openStateStore picks the configured persistence backend.
func openStateStore(cfg *config.Config, logger *events.Logger) (state.Store, error) {
	switch cfg.Storage.StateBackend {
	case "sqlite":
		return state.NewSQLiteStore(filepath.Join(cfg.Storage.StateDir, "state.db"), logger)
	default:
		return state.NewJSONStore(cfg.Storage.StateDir, logger)
	}
}

// Config returns the loaded configuration.
func (c *Client) Config() *config.Config {
	return c.config
}

// Restore arms the transport with stored credentials. Commands that
// talk to the vault API call this before doing anything else; it
// returns models.ErrNotAuthenticated (wrapped) when no login exists.
func (c *Client) Restore() (*creds.Credentials, error) {
	return c.Auth.Restore()
}

// Watch builds the continuous reconciler for one session. The live
// event feed attaches only when the transport holds a token; without
// one the watcher still reacts to local filesystem changes.
func (c *Client) Watch(syncID string, progress sync.ProgressFunc) (*sync.WatchService, error) {
	session, err := c.Sessions.Get(syncID)
	if err != nil {
		return nil, err
	}

	opts := sync.WatchOptions{
		Debounce: c.config.Sync.DebounceDelay,
		Workers:  c.config.Sync.MaxConcurrent,
		Progress: progress,
	}
	if token := c.api.Token(); token != "" {
		opts.Feed = transport.NewEventsClient(c.config.API.BaseURL, session.VaultID, token, c.logger)
	}

	return sync.NewWatchService(c.Sync, syncID, opts), nil
}

// Close releases held resources. Safe to call once at process exit.
func (c *Client) Close() error {
	if err := c.States.Close(); err != nil {
		return fmt.Errorf("close state store: %w", err)
	}
	return nil
}
