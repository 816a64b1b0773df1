package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// API configuration
	API APIConfig `json:"api"`

	// Credential storage
	Auth AuthConfig `json:"auth"`

	// Storage paths
	Storage StorageConfig `json:"storage"`

	// Sync behavior
	Sync SyncConfig `json:"sync"`

	// Logging
	Log LogConfig `json:"log"`
}

// APIConfig for vault server communication.
type APIConfig struct {
	BaseURL    string        `json:"base_url"`
	Timeout    time.Duration `json:"timeout"`
	MaxRetries int           `json:"max_retries"` // Retries after the first attempt
	RetryDelay time.Duration `json:"retry_delay"` // Initial backoff, doubled per retry
	UserAgent  string        `json:"user_agent"`
}

// AuthConfig for credential persistence.
type AuthConfig struct {
	// Encrypted token store path
	CredentialsFile string `json:"credentials_file"`
}

// StorageConfig for local file paths.
type StorageConfig struct {
	DataDir      string `json:"data_dir"`      // Base directory for all data
	StateDir     string `json:"state_dir"`     // Sync state storage
	StateBackend string `json:"state_backend"` // json or sqlite
	TempDir      string `json:"temp_dir"`      // Temporary files
	SessionsFile string `json:"sessions_file"` // Sync session registry
	MaxFileSize  int64  `json:"max_file_size"` // Max document size in bytes
}

// SyncConfig for synchronization behavior.
type SyncConfig struct {
	MaxConcurrent     int           `json:"max_concurrent"`     // Watch-mode transfer workers
	DebounceDelay     time.Duration `json:"debounce_delay"`     // Stability window per changed path
	ValidateChecksums bool          `json:"validate_checksums"` // Verify hashes after download
}

// LogConfig for logging behavior.
type LogConfig struct {
	Level      string `json:"level"`       // debug, info, warn, error
	Format     string `json:"format"`      // text, json
	File       string `json:"file"`        // Log file path (empty = stderr)
	MaxSize    int    `json:"max_size"`    // Max log file size in MB
	MaxBackups int    `json:"max_backups"` // Max number of rotated logs
	MaxAge     int    `json:"max_age"`     // Max age in days
	Color      bool   `json:"color"`       // Enable colored terminal output
}

// DefaultConfig returns config with sensible defaults.
func DefaultConfig() *Config {
	dataDir := ".lsvault"
	if home, err := os.UserHomeDir(); err == nil {
		dataDir = filepath.Join(home, ".lsvault")
	}

	return &Config{
		API: APIConfig{
			BaseURL:    "https://api.lsvault.io",
			Timeout:    30 * time.Second,
			MaxRetries: 3,
			RetryDelay: 500 * time.Millisecond,
			UserAgent:  "lsvault/1.0",
		},
		Auth: AuthConfig{
			CredentialsFile: filepath.Join(dataDir, "credentials.json"),
		},
		Storage: StorageConfig{
			DataDir:      dataDir,
			StateDir:     filepath.Join(dataDir, "state"),
			StateBackend: "json",
			TempDir:      filepath.Join(dataDir, "tmp"),
			SessionsFile: filepath.Join(dataDir, "sessions.json"),
			MaxFileSize:  100 * 1024 * 1024, // 100MB
		},
		Sync: SyncConfig{
			MaxConcurrent:     4,
			DebounceDelay:     2 * time.Second,
			ValidateChecksums: true,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "text",
			File:       "",
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     7,
			Color:      true,
		},
	}
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return errors.New("api.base_url is required")
	}

	if c.API.Timeout <= 0 {
		return errors.New("api.timeout must be positive")
	}

	if c.API.MaxRetries < 0 {
		return errors.New("api.max_retries must not be negative")
	}

	if c.Storage.DataDir == "" {
		return errors.New("storage.data_dir is required")
	}

	if c.Storage.MaxFileSize <= 0 {
		return errors.New("storage.max_file_size must be positive")
	}

	validBackends := map[string]bool{"json": true, "sqlite": true}
	if !validBackends[c.Storage.StateBackend] {
		return fmt.Errorf("invalid state backend: %s", c.Storage.StateBackend)
	}

	if c.Sync.MaxConcurrent <= 0 {
		return errors.New("sync.max_concurrent must be positive")
	}

	if c.Sync.DebounceDelay <= 0 {
		return errors.New("sync.debounce_delay must be positive")
	}

	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[c.Log.Level] {
		return fmt.Errorf("invalid log level: %s", c.Log.Level)
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.Log.Format] {
		return fmt.Errorf("invalid log format: %s", c.Log.Format)
	}

	return nil
}

// EnsureDirectories creates required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Storage.DataDir,
		c.Storage.StateDir,
		c.Storage.TempDir,
	}

	if c.Log.File != "" {
		dirs = append(dirs, filepath.Dir(c.Log.File))
	}

	if c.Storage.SessionsFile != "" {
		dirs = append(dirs, filepath.Dir(c.Storage.SessionsFile))
	}

	if c.Auth.CredentialsFile != "" {
		dirs = append(dirs, filepath.Dir(c.Auth.CredentialsFile))
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	return nil
}
