package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lsvault/lsvault/internal/config"
)

func TestDefaultConfig(t *testing.T) {
	cfg := config.DefaultConfig()

	assert.NotEmpty(t, cfg.API.BaseURL)
	assert.Positive(t, cfg.API.Timeout)
	assert.Equal(t, 3, cfg.API.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, cfg.API.RetryDelay)
	assert.NotEmpty(t, cfg.Storage.DataDir)
	assert.Positive(t, cfg.Sync.DebounceDelay)
	assert.Equal(t, "info", cfg.Log.Level)

	assert.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*config.Config)
		wantErr string
	}{
		{
			name: "valid config",
			modify: func(c *config.Config) {
				// No modifications
			},
			wantErr: "",
		},
		{
			name: "missing base URL",
			modify: func(c *config.Config) {
				c.API.BaseURL = ""
			},
			wantErr: "api.base_url is required",
		},
		{
			name: "invalid log level",
			modify: func(c *config.Config) {
				c.Log.Level = "invalid"
			},
			wantErr: "invalid log level",
		},
		{
			name: "negative timeout",
			modify: func(c *config.Config) {
				c.API.Timeout = -1
			},
			wantErr: "api.timeout must be positive",
		},
		{
			name: "zero debounce",
			modify: func(c *config.Config) {
				c.Sync.DebounceDelay = 0
			},
			wantErr: "sync.debounce_delay must be positive",
		},
		{
			name: "invalid log format",
			modify: func(c *config.Config) {
				c.Log.Format = "xml"
			},
			wantErr: "invalid log format",
		},
		{
			name: "invalid state backend",
			modify: func(c *config.Config) {
				c.Storage.StateBackend = "postgres"
			},
			wantErr: "invalid state backend",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.wantErr != "" {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoaderEnv(t *testing.T) {
	os.Setenv("LSVAULT_API_BASE_URL", "https://test.example.com")
	os.Setenv("LSVAULT_API_TIMEOUT", "45s")
	os.Setenv("LSVAULT_LOG_LEVEL", "debug")
	os.Setenv("LSVAULT_SYNC_MAX_CONCURRENT", "10")
	defer func() {
		os.Unsetenv("LSVAULT_API_BASE_URL")
		os.Unsetenv("LSVAULT_API_TIMEOUT")
		os.Unsetenv("LSVAULT_LOG_LEVEL")
		os.Unsetenv("LSVAULT_SYNC_MAX_CONCURRENT")
	}()

	loader := config.NewLoader("")
	cfg, err := loader.Load()

	require.NoError(t, err)
	assert.Equal(t, "https://test.example.com", cfg.API.BaseURL)
	assert.Equal(t, 45*time.Second, cfg.API.Timeout)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 10, cfg.Sync.MaxConcurrent)
}

func TestLoaderFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test.json")

	configJSON := `{
		"api": {
			"base_url": "https://file.example.com",
			"timeout": "45s"
		},
		"log": {
			"level": "warn",
			"format": "json"
		}
	}`

	err := os.WriteFile(configPath, []byte(configJSON), 0644)
	require.NoError(t, err)

	loader := config.NewLoader(configPath)
	cfg, err := loader.Load()

	require.NoError(t, err)
	assert.Equal(t, "https://file.example.com", cfg.API.BaseURL)
	assert.Equal(t, 45*time.Second, cfg.API.Timeout)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)

	// Untouched sections keep their defaults
	assert.Equal(t, 4, cfg.Sync.MaxConcurrent)
}

func TestLoaderFileMissing(t *testing.T) {
	loader := config.NewLoader(filepath.Join(t.TempDir(), "nope.json"))
	_, err := loader.Load()
	assert.Error(t, err)
}

func TestLoaderDataDirDerivesPaths(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	configJSON := `{"storage": {"data_dir": "/custom/data"}}`
	require.NoError(t, os.WriteFile(configPath, []byte(configJSON), 0644))

	loader := config.NewLoader(configPath)
	cfg, err := loader.Load()

	require.NoError(t, err)
	assert.Equal(t, "/custom/data", cfg.Storage.DataDir)
	assert.Equal(t, filepath.Join("/custom/data", "state"), cfg.Storage.StateDir)
	assert.Equal(t, filepath.Join("/custom/data", "sessions.json"), cfg.Storage.SessionsFile)
	assert.Equal(t, filepath.Join("/custom/data", "credentials.json"), cfg.Auth.CredentialsFile)
}

func TestSaveExampleRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	require.NoError(t, config.SaveExample(path))

	loader := config.NewLoader(path)
	cfg, err := loader.Load()

	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig().API.BaseURL, cfg.API.BaseURL)
}

func TestConfigEnsureDirectories(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Storage.DataDir = filepath.Join(tmpDir, "data")
	cfg.Storage.StateDir = filepath.Join(tmpDir, "data", "state")
	cfg.Storage.TempDir = filepath.Join(tmpDir, "data", "tmp")
	cfg.Storage.SessionsFile = filepath.Join(tmpDir, "data", "sessions.json")
	cfg.Auth.CredentialsFile = filepath.Join(tmpDir, "data", "credentials.json")
	cfg.Log.File = filepath.Join(tmpDir, "logs", "app.log")

	err := cfg.EnsureDirectories()
	require.NoError(t, err)

	assert.DirExists(t, cfg.Storage.DataDir)
	assert.DirExists(t, cfg.Storage.StateDir)
	assert.DirExists(t, cfg.Storage.TempDir)
	assert.DirExists(t, filepath.Dir(cfg.Log.File))
}
