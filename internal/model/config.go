package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig holds the backend endpoints.
type ServerConfig struct {
	// BaseURL is the REST API root (e.g., https://api.example.com/api/v1).
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// SocketURL is the websocket endpoint for realtime delivery.
	SocketURL string `mapstructure:"socket_url" yaml:"socket_url"`

	// RequestTimeoutSec bounds every REST call.
	RequestTimeoutSec int `mapstructure:"request_timeout_sec" yaml:"request_timeout_sec"`
}

// RealtimeConfig tunes the socket reconnect loop.
type RealtimeConfig struct {
	InitialBackoffMs    int `mapstructure:"initial_backoff_ms" yaml:"initial_backoff_ms"`
	MaxBackoffMs        int `mapstructure:"max_backoff_ms" yaml:"max_backoff_ms"`
	MaxAttempts         int `mapstructure:"max_attempts" yaml:"max_attempts"`
	HandshakeTimeoutSec int `mapstructure:"handshake_timeout_sec" yaml:"handshake_timeout_sec"`
}

// StorageConfig locates local persistence.
type StorageConfig struct {
	// DBPath is the sqlite file holding non-secret key-value state.
	DBPath string `mapstructure:"db_path" yaml:"db_path"`

	// KeyringService names the OS keyring entry holding tokens.
	KeyringService string `mapstructure:"keyring_service" yaml:"keyring_service"`

	// KeyringDir is used by the encrypted file backend when no OS keyring
	// is available.
	KeyringDir string `mapstructure:"keyring_dir" yaml:"keyring_dir"`
}

// InboxConfig holds list behaviour.
type InboxConfig struct {
	PageSize int `mapstructure:"page_size" yaml:"page_size"`
}

// LogConfig controls the structured logger.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	File  string `mapstructure:"file" yaml:"file"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Realtime RealtimeConfig `mapstructure:"realtime" yaml:"realtime"`
	Storage  StorageConfig  `mapstructure:"storage" yaml:"storage"`
	Inbox    InboxConfig    `mapstructure:"inbox" yaml:"inbox"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
}

// RequestTimeout returns the REST timeout as a duration.
func (c ServerConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSec) * time.Second
}

// InitialBackoff returns the first reconnect delay.
func (c RealtimeConfig) InitialBackoff() time.Duration {
	return time.Duration(c.InitialBackoffMs) * time.Millisecond
}

// MaxBackoff returns the reconnect delay ceiling.
func (c RealtimeConfig) MaxBackoff() time.Duration {
	return time.Duration(c.MaxBackoffMs) * time.Millisecond
}

// HandshakeTimeout bounds dial plus authentication.
func (c RealtimeConfig) HandshakeTimeout() time.Duration {
	return time.Duration(c.HandshakeTimeoutSec) * time.Second
}

// configDir returns ~/.config/notifsync, or the working directory when the
// home directory cannot be resolved.
func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "notifsync")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/notifsync/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	dir := configDir()
	return &AppConfig{
		Server: ServerConfig{
			BaseURL:           "http://localhost:3000/api/v1",
			SocketURL:         "ws://localhost:3000/ws",
			RequestTimeoutSec: 10,
		},
		Realtime: RealtimeConfig{
			InitialBackoffMs:    1000,
			MaxBackoffMs:        30000,
			MaxAttempts:         8,
			HandshakeTimeoutSec: 10,
		},
		Storage: StorageConfig{
			DBPath:         filepath.Join(dir, "state.db"),
			KeyringService: "notifsync",
			KeyringDir:     filepath.Join(dir, "credentials"),
		},
		Inbox: InboxConfig{PageSize: 20},
		Log: LogConfig{
			Level: "info",
			File:  filepath.Join(dir, "notifsync.log"),
		},
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// Values may be overridden with NOTIFSYNC_* environment variables
// (e.g., NOTIFSYNC_SERVER_BASE_URL). If the file does not exist, the
// defaults are returned with environment overrides applied.
func LoadConfig(path string) (*AppConfig, error) {
	def := defaultAppConfig()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("notifsync")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set defaults so missing keys resolve to sensible values.
	v.SetDefault("server.base_url", def.Server.BaseURL)
	v.SetDefault("server.socket_url", def.Server.SocketURL)
	v.SetDefault("server.request_timeout_sec", def.Server.RequestTimeoutSec)
	v.SetDefault("realtime.initial_backoff_ms", def.Realtime.InitialBackoffMs)
	v.SetDefault("realtime.max_backoff_ms", def.Realtime.MaxBackoffMs)
	v.SetDefault("realtime.max_attempts", def.Realtime.MaxAttempts)
	v.SetDefault("realtime.handshake_timeout_sec", def.Realtime.HandshakeTimeoutSec)
	v.SetDefault("storage.db_path", def.Storage.DBPath)
	v.SetDefault("storage.keyring_service", def.Storage.KeyringService)
	v.SetDefault("storage.keyring_dir", def.Storage.KeyringDir)
	v.SetDefault("inbox.page_size", def.Inbox.PageSize)
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.file", def.Log.File)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		var pathErr *os.PathError
		if !errors.As(err, &notFound) && !errors.As(err, &pathErr) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.Server.RequestTimeoutSec <= 0 {
		cfg.Server.RequestTimeoutSec = def.Server.RequestTimeoutSec
	}
	if cfg.Realtime.MaxAttempts <= 0 {
		cfg.Realtime.MaxAttempts = def.Realtime.MaxAttempts
	}
	if cfg.Inbox.PageSize <= 0 {
		cfg.Inbox.PageSize = def.Inbox.PageSize
	}

	return cfg, nil
}

// EnsureConfig loads the configuration at path. On first run, when no
// file exists yet, the defaults are written there so they can be edited.
// Environment overrides are never persisted.
func EnsureConfig(path string) (*AppConfig, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := SaveConfig(path, defaultAppConfig()); err != nil {
			return nil, err
		}
	}
	return LoadConfig(path)
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("server", cfg.Server)
	v.Set("realtime", cfg.Realtime)
	v.Set("storage", cfg.Storage)
	v.Set("inbox", cfg.Inbox)
	v.Set("log", cfg.Log)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
