package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mlcore/internal/config"
)

func TestLoad_DefaultValues(t *testing.T) {
	dir := t.TempDir()
	cfg, err := config.Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "https://spelunky.fyi", cfg.ServiceRoot)
	assert.Equal(t, 15*time.Second, cfg.LocalScanInterval)
	assert.Equal(t, time.Hour, cfg.APIPollInterval)
	assert.Equal(t, 10*time.Second, cfg.APIStepMaxDelay)
	assert.Equal(t, 15*time.Second, cfg.PingMinInterval)
	assert.Equal(t, 25*time.Second, cfg.PingMaxInterval)
	assert.Equal(t, 10*time.Second, cfg.PongTimeout)
	assert.Equal(t, 20*time.Millisecond, cfg.ReceivingInterval)
	assert.Equal(t, time.Second, cfg.ShutdownTimeout)
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	content := `
install_dir: /home/user/.local/share/mods
api_token: secret-token
service_root: https://mods.example.com
local_scan_interval: 30s
api_poll_interval: 2h
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0644))

	cfg, err := config.Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "/home/user/.local/share/mods", cfg.InstallDir)
	assert.Equal(t, "secret-token", cfg.APIToken)
	assert.Equal(t, "https://mods.example.com", cfg.ServiceRoot)
	assert.Equal(t, 30*time.Second, cfg.LocalScanInterval)
	assert.Equal(t, 2*time.Hour, cfg.APIPollInterval)
	// Fields absent from the file keep their defaults.
	assert.Equal(t, 10*time.Second, cfg.PongTimeout)
}

func TestSaveThenLoad_RoundTrips(t *testing.T) {
	dir := t.TempDir()
	cfg, err := config.Load(dir)
	require.NoError(t, err)
	cfg.InstallDir = "/var/lib/mods"
	cfg.APIToken = "tok-123"

	require.NoError(t, cfg.Save(dir))

	loaded, err := config.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/mods", loaded.InstallDir)
	assert.Equal(t, "tok-123", loaded.APIToken)
	assert.Equal(t, cfg.LocalScanInterval, loaded.LocalScanInterval)
}

func TestLoad_RejectsMalformedDuration(t *testing.T) {
	dir := t.TempDir()
	content := "local_scan_interval: not-a-duration\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0644))

	_, err := config.Load(dir)
	assert.Error(t, err)
}

func TestParseConfigPath_RejectsRelative(t *testing.T) {
	_, err := config.ParseConfigPath("relative/config.yaml")
	assert.Error(t, err)
}

func TestParseConfigPath_RejectsWrongExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	_, err := config.ParseConfigPath(path)
	assert.Error(t, err)
}

func TestParseConfigPath_AcceptsValidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("service_root: https://x\n"), 0644))

	got, err := config.ParseConfigPath(path)
	require.NoError(t, err)
	assert.Equal(t, path, got)
}
