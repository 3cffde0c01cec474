package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.LoadDefaults()

	assert.NotEmpty(t, cfg.DataDir)
	assert.Equal(t, "http://127.0.0.1:8080", cfg.ServerURL)
	assert.Equal(t, 3*time.Second, cfg.PingInterval)
	assert.Equal(t, 5, cfg.Sync.MaxRetries)
	assert.Equal(t, 30*time.Second, cfg.Sync.DrainInterval)
	assert.Contains(t, cfg.Tiles.URLTemplate, "{z}")
}

func TestLoad_NoConfigFileUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:8080", cfg.ServerURL)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "travellife.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"server_url: https://api.example.org\n"+
			"sync:\n  max_retries: 9\n"+
			"tiles:\n  max_zoom: 16\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.org", cfg.ServerURL)
	assert.Equal(t, 9, cfg.Sync.MaxRetries)
	assert.Equal(t, 16, cfg.Tiles.MaxZoom)
	// untouched keys keep their defaults
	assert.Equal(t, 4, cfg.Sync.Parallelism)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "travellife.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server_url: https://file.example.org\n"), 0o644))
	t.Setenv("TRAVELLIFE_SERVER_URL", "https://env.example.org")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://env.example.org", cfg.ServerURL)
}

func TestLoad_MissingExplicitFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
