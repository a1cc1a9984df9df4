package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_EXPIRATION", "")
	t.Setenv("SYNC_PULL_LIMIT", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 15*time.Minute, cfg.JWT.Expiration)
	assert.Equal(t, 100, cfg.Sync.PullLimit)
	assert.Equal(t, 500, cfg.Sync.MaxPullLimit)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("SYNC_PULL_LIMIT", "25")
	t.Setenv("WS_PONG_WAIT", "30s")
	t.Setenv("WS_PING_PERIOD", "20s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 25, cfg.Sync.PullLimit)
	assert.Equal(t, 30*time.Second, cfg.WebSocket.PongWait)
	assert.Equal(t, 20*time.Second, cfg.WebSocket.PingPeriod)
}

func TestLoad_Invalid(t *testing.T) {
	t.Run("bad jwt expiration", func(t *testing.T) {
		t.Setenv("JWT_EXPIRATION", "soon")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("ping slower than pong", func(t *testing.T) {
		t.Setenv("WS_PONG_WAIT", "10s")
		t.Setenv("WS_PING_PERIOD", "20s")
		_, err := Load()
		assert.Error(t, err)
	})
}

func TestLoadClientConfig_Defaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("NOTESYNC_DATA_DIR", dir)

	cfg, err := LoadClientConfig("")
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080", cfg.ServerURL)
	assert.Equal(t, dir, cfg.DataDir)
	assert.Equal(t, time.Second, cfg.BackoffBase)
	assert.Equal(t, 5*time.Minute, cfg.BackoffMax)
	assert.Equal(t, 100, cfg.PushBatch)
	assert.Equal(t, filepath.Join(dir, "notesync.db"), cfg.DBPath())
}

func TestLoadClientConfig_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notesync.yaml")
	content := "server_url: https://notes.example.com\nbackoff_base: 2s\npush_batch: 10\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("NOTESYNC_PUSH_BATCH", "25")

	cfg, err := LoadClientConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "https://notes.example.com", cfg.ServerURL)
	assert.Equal(t, 2*time.Second, cfg.BackoffBase)
	assert.Equal(t, 25, cfg.PushBatch, "environment overrides the file")
}

func TestLoadClientConfig_InvalidBackoff(t *testing.T) {
	t.Setenv("NOTESYNC_DATA_DIR", t.TempDir())
	t.Setenv("NOTESYNC_BACKOFF_BASE", "10m")
	t.Setenv("NOTESYNC_BACKOFF_MAX", "1m")

	_, err := LoadClientConfig("")
	assert.Error(t, err)
}

func TestLoadClientConfig_MissingExplicitFile(t *testing.T) {
	_, err := LoadClientConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
