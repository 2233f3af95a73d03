package model_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/notification-sync/internal/model"
)

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := model.LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 10*time.Second, cfg.Server.RequestTimeout())
	assert.Equal(t, time.Second, cfg.Realtime.InitialBackoff())
	assert.Equal(t, 30*time.Second, cfg.Realtime.MaxBackoff())
	assert.Equal(t, 8, cfg.Realtime.MaxAttempts)
	assert.Equal(t, 20, cfg.Inbox.PageSize)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "notifsync", cfg.Storage.KeyringService)
}

func TestLoadConfigFileOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `server:
  base_url: https://api.example.com/api/v1
  socket_url: wss://api.example.com/ws
realtime:
  max_attempts: 3
inbox:
  page_size: 50
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := model.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "https://api.example.com/api/v1", cfg.Server.BaseURL)
	assert.Equal(t, "wss://api.example.com/ws", cfg.Server.SocketURL)
	assert.Equal(t, 3, cfg.Realtime.MaxAttempts)
	assert.Equal(t, 50, cfg.Inbox.PageSize)
	// Unset keys keep their defaults.
	assert.Equal(t, 30*time.Second, cfg.Realtime.MaxBackoff())
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("NOTIFSYNC_SERVER_BASE_URL", "https://staging.example.com")
	t.Setenv("NOTIFSYNC_LOG_LEVEL", "debug")

	cfg, err := model.LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "https://staging.example.com", cfg.Server.BaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadConfigInvalidValuesFallBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `server:
  request_timeout_sec: 0
inbox:
  page_size: -1
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := model.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Server.RequestTimeoutSec)
	assert.Equal(t, 20, cfg.Inbox.PageSize)
}

func TestLoadConfigMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0o600))

	_, err := model.LoadConfig(path)
	assert.Error(t, err)
}

func TestSaveConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := model.LoadConfig(path)
	require.NoError(t, err)
	cfg.Server.BaseURL = "https://saved.example.com"
	cfg.Inbox.PageSize = 30

	require.NoError(t, model.SaveConfig(path, cfg))

	loaded, err := model.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "https://saved.example.com", loaded.Server.BaseURL)
	assert.Equal(t, 30, loaded.Inbox.PageSize)
}

func TestEnsureConfigWritesDefaultsOnFirstRun(t *testing.T) {
	t.Setenv("NOTIFSYNC_LOG_LEVEL", "debug")
	path := filepath.Join(t.TempDir(), "notifsync", "config.yaml")

	cfg, err := model.EnsureConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "page_size: 20")
	assert.NotContains(t, string(raw), "debug", "env overrides stay out of the file")
}

func TestEnsureConfigKeepsExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("inbox:\n  page_size: 40\n"), 0o600))

	cfg, err := model.EnsureConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 40, cfg.Inbox.PageSize)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "inbox:\n  page_size: 40\n", string(raw))
}

func TestNotificationTypeValid(t *testing.T) {
	assert.True(t, model.NotificationFollow.Valid())
	assert.True(t, model.NotificationSystemAnnouncement.Valid())
	assert.False(t, model.NotificationType("POKE").Valid())
}
