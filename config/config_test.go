package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.HTTPAddress)
	assert.Equal(t, "/vtt", cfg.Server.WSPath)
	assert.Equal(t, 5*time.Second, cfg.Room.SnapshotDelay)
	assert.Equal(t, 30*time.Second, cfg.Room.EvictionGrace)
	assert.Equal(t, 50.0, cfg.Room.Defaults.GridSize)
	assert.True(t, cfg.Room.Defaults.SnapToGrid)
	assert.Equal(t, "gorm", cfg.Database.Driver)
	assert.Empty(t, cfg.NATS.URL)
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := "server:\n  http_address: \":9000\"\nroom:\n  snapshot_delay: 2s\ndatabase:\n  driver: memory\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600))

	t.Setenv("VTT_DATABASE_DRIVER", "sqlite")
	t.Setenv("VTT_ROOM_SEND_BUFFER", "64")

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.HTTPAddress)
	assert.Equal(t, 2*time.Second, cfg.Room.SnapshotDelay)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 64, cfg.Room.SendBuffer)
}

func TestLoadConfigBadFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("server: [\n"), 0o600))

	_, err := LoadConfig(dir)
	assert.Error(t, err)
}
