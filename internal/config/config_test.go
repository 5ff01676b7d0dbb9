package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFallsBackToDefaultsWhenFileMissing(t *testing.T) {
	cfg := LoadConfig(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	assert.Equal(t, 1, cfg.Link.Port)
	assert.Equal(t, 2, cfg.Link.LifesignInterval)
	assert.True(t, cfg.Link.Reconnect)
}

func TestLoadConfigParsesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bhtlink.yaml")
	require.NoError(t, os.WriteFile(path, []byte("link:\n  address: \"00:11:22:33:44:55\"\n  port: 3\n"), 0o644))

	cfg := LoadConfig(path)
	assert.Equal(t, "00:11:22:33:44:55", cfg.Link.Address)
	assert.Equal(t, 3, cfg.Link.Port)
}

func TestEnvOverrideWinsOverYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bhtlink.yaml")
	require.NoError(t, os.WriteFile(path, []byte("link:\n  port: 3\n"), 0o644))

	t.Setenv("BHT_PORT", "7")
	cfg := LoadConfig(path)
	assert.Equal(t, 7, cfg.Link.Port)
}

func TestLifesignAndTimeoutDurations(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "2s", cfg.Link.LifesignDuration().String())
	assert.Equal(t, "20s", cfg.Facade.TimeoutDuration().String())
}
