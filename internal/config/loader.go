package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Loader handles configuration loading from file, environment, and flags.
type Loader struct {
	v          *viper.Viper
	configPath string
}

// NewLoader creates a config loader. An empty configPath searches the
// default locations instead.
func NewLoader(configPath string) *Loader {
	v := viper.New()
	v.SetEnvPrefix("LSVAULT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &Loader{
		v:          v,
		configPath: configPath,
	}
}

// BindFlag maps a command-line flag onto a config key so flags take
// precedence over file and environment values.
func (l *Loader) BindFlag(key string, flag *pflag.Flag) error {
	return l.v.BindPFlag(key, flag)
}

// ConfigFileUsed returns the path of the config file that was loaded,
// or empty if none was found.
func (l *Loader) ConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// Load reads configuration from file and environment on top of defaults.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		l.v.SetConfigFile(l.configPath)
	} else {
		l.v.SetConfigName("config")
		l.v.SetConfigType("json")
		l.v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			l.v.AddConfigPath(filepath.Join(home, ".config", "lsvault"))
			l.v.AddConfigPath(filepath.Join(home, ".lsvault"))
		}
	}

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		missingDefault := l.configPath == "" && errors.Is(err, os.ErrNotExist)
		if !errors.As(err, &notFound) && !missingDefault {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	l.apply(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// apply copies explicitly-set values onto cfg, leaving defaults alone.
func (l *Loader) apply(cfg *Config) {
	v := l.v

	if v.IsSet("api.base_url") {
		cfg.API.BaseURL = v.GetString("api.base_url")
	}
	if v.IsSet("api.timeout") {
		cfg.API.Timeout = v.GetDuration("api.timeout")
	}
	if v.IsSet("api.max_retries") {
		cfg.API.MaxRetries = v.GetInt("api.max_retries")
	}
	if v.IsSet("api.retry_delay") {
		cfg.API.RetryDelay = v.GetDuration("api.retry_delay")
	}
	if v.IsSet("api.user_agent") {
		cfg.API.UserAgent = v.GetString("api.user_agent")
	}

	// Paths under the data dir follow it unless individually overridden.
	if v.IsSet("storage.data_dir") {
		dataDir := v.GetString("storage.data_dir")
		cfg.Storage.DataDir = dataDir
		cfg.Storage.StateDir = filepath.Join(dataDir, "state")
		cfg.Storage.TempDir = filepath.Join(dataDir, "tmp")
		cfg.Storage.SessionsFile = filepath.Join(dataDir, "sessions.json")
		cfg.Auth.CredentialsFile = filepath.Join(dataDir, "credentials.json")
	}
	if v.IsSet("storage.state_dir") {
		cfg.Storage.StateDir = v.GetString("storage.state_dir")
	}
	if v.IsSet("storage.state_backend") {
		cfg.Storage.StateBackend = strings.ToLower(v.GetString("storage.state_backend"))
	}
	if v.IsSet("storage.temp_dir") {
		cfg.Storage.TempDir = v.GetString("storage.temp_dir")
	}
	if v.IsSet("storage.sessions_file") {
		cfg.Storage.SessionsFile = v.GetString("storage.sessions_file")
	}
	if v.IsSet("storage.max_file_size") {
		cfg.Storage.MaxFileSize = v.GetInt64("storage.max_file_size")
	}

	if v.IsSet("auth.credentials_file") {
		cfg.Auth.CredentialsFile = v.GetString("auth.credentials_file")
	}

	if v.IsSet("sync.max_concurrent") {
		cfg.Sync.MaxConcurrent = v.GetInt("sync.max_concurrent")
	}
	if v.IsSet("sync.debounce_delay") {
		cfg.Sync.DebounceDelay = v.GetDuration("sync.debounce_delay")
	}
	if v.IsSet("sync.validate_checksums") {
		cfg.Sync.ValidateChecksums = v.GetBool("sync.validate_checksums")
	}

	if v.IsSet("log.level") {
		cfg.Log.Level = strings.ToLower(v.GetString("log.level"))
	}
	if v.IsSet("log.format") {
		cfg.Log.Format = strings.ToLower(v.GetString("log.format"))
	}
	if v.IsSet("log.file") {
		cfg.Log.File = v.GetString("log.file")
	}
	if v.IsSet("log.max_size") {
		cfg.Log.MaxSize = v.GetInt("log.max_size")
	}
	if v.IsSet("log.max_backups") {
		cfg.Log.MaxBackups = v.GetInt("log.max_backups")
	}
	if v.IsSet("log.max_age") {
		cfg.Log.MaxAge = v.GetInt("log.max_age")
	}
	if v.IsSet("log.color") {
		cfg.Log.Color = v.GetBool("log.color")
	}
}

// SaveExample writes a starter config file with default values.
func SaveExample(path string) error {
	cfg := DefaultConfig()

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	if err := os.WriteFile(path, append(data, '\n'), 0600); err != nil {
		return fmt.Errorf("write file: %w", err)
	}

	return nil
}
