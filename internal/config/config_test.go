package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadFromFileYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
environment: staging
server:
  address: ":9443"
quota:
  backend: redis
  redis_addr: "redis:6379"
  free_daily_limit: 20
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	require.Equal(t, "staging", cfg.Environment)
	require.Equal(t, ":9443", cfg.Server.Address)
	require.Equal(t, "redis", cfg.Quota.Backend)
	require.Equal(t, "redis:6379", cfg.Quota.RedisAddr)
	require.Equal(t, int64(20), cfg.Quota.FreeDailyLimit)
	// defaults still applied to omitted sections
	require.Equal(t, "info", cfg.Logging.Level)
	require.Equal(t, int64(500), cfg.Quota.ElevatedDailyLimit)
}

func TestLoadFromFileJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	content := `{"environment": "production", "server": {"address": ":7000"}}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	require.Equal(t, "production", cfg.Environment)
	require.Equal(t, ":7000", cfg.Server.Address)
}

func TestLoadFromFileMissing(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/path/config.yaml")
	require.Error(t, err)
}

func TestSaveAndReloadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	cfg := &Config{Environment: "test"}
	setDefaults(cfg)
	cfg.Provider.Backends["openai"] = ProviderBackend{BaseURL: "https://api.openai.com/v1", Model: "gpt-4o-mini"}

	require.NoError(t, SaveToFile(cfg, path))

	reloaded, err := LoadFromFile(path)
	require.NoError(t, err)
	require.Equal(t, "test", reloaded.Environment)
	require.Equal(t, "https://api.openai.com/v1", reloaded.Provider.Backends["openai"].BaseURL)
}

func TestSaveToFileJSONExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	cfg := &Config{Environment: "test"}
	setDefaults(cfg)
	require.NoError(t, SaveToFile(cfg, path))

	reloaded, err := LoadFromFile(path)
	require.NoError(t, err)
	require.Equal(t, "test", reloaded.Environment)
}

func TestSetDefaultsFillsEveryOmittedSection(t *testing.T) {
	cfg := &Config{}
	setDefaults(cfg)

	require.Equal(t, "development", cfg.Environment)
	require.Equal(t, ":8443", cfg.Server.Address)
	require.Equal(t, ".echolia/identity.bin", cfg.KeyStore.Path)
	require.Equal(t, "memory", cfg.Quota.Backend)
	require.Equal(t, []string{"openai", "anthropic", "echo"}, cfg.Provider.Preference)
	require.Equal(t, "ECHOLIA_JWT_SECRET", cfg.Identity.JWTSecretEnv)
	require.Equal(t, "json", cfg.Logging.Format)
	require.True(t, cfg.Metrics.Enabled)
}
