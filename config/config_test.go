package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_AppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database:\n  dsn: \"file::memory:\"\n  driver: sqlite\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 60*time.Second, cfg.Server.CacheTTL)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "./uploads", cfg.Ingest.UploadDir)
	assert.Empty(t, cfg.Ingest.InboxDir)
	assert.Equal(t, time.Minute, cfg.Ingest.PollInterval)
	assert.True(t, cfg.Ingest.DemoEnabled())
	assert.Equal(t, "UNKNOWN", cfg.Ingest.DefaultMachineID)
	assert.Equal(t, 120, cfg.Stats.CriticalThresholdMinutes)
	assert.Equal(t, 50, cfg.Stats.CriticalPageSize)
	assert.Equal(t, 1, cfg.WorkerPool.Size)
	assert.False(t, cfg.Push.Enabled())
}

func TestLoad_DemoFallbackDisabled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("ingest:\n  demo_fallback: false\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.False(t, cfg.Ingest.DemoEnabled())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
