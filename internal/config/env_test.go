package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSubstituteEnvVars(t *testing.T) {
	os.Setenv("ECHOLIA_TEST_VAR", "resolved")
	defer os.Unsetenv("ECHOLIA_TEST_VAR")

	require.Equal(t, "resolved", SubstituteEnvVars("${ECHOLIA_TEST_VAR}"))
	require.Equal(t, "fallback", SubstituteEnvVars("${ECHOLIA_MISSING_VAR:fallback}"))
	require.Equal(t, "", SubstituteEnvVars("${ECHOLIA_MISSING_VAR}"))
	require.Equal(t, "plain", SubstituteEnvVars("plain"))
}

func TestSubstituteEnvVarsInConfig(t *testing.T) {
	os.Setenv("ECHOLIA_TEST_DSN", "postgres://example")
	defer os.Unsetenv("ECHOLIA_TEST_DSN")

	cfg := &Config{
		Quota: &QuotaConfig{PostgresDSN: "${ECHOLIA_TEST_DSN}"},
		Provider: &ProviderConfig{
			Backends: map[string]ProviderBackend{
				"openai": {APIKey: "${ECHOLIA_TEST_DSN}"},
			},
		},
	}
	SubstituteEnvVarsInConfig(cfg)

	require.Equal(t, "postgres://example", cfg.Quota.PostgresDSN)
	require.Equal(t, "postgres://example", cfg.Provider.Backends["openai"].APIKey)
}

func TestSubstituteEnvVarsInConfigNilIsNoop(t *testing.T) {
	SubstituteEnvVarsInConfig(nil)
}

func TestGetEnvironment(t *testing.T) {
	os.Unsetenv("ECHOLIA_ENV")
	os.Unsetenv("ENVIRONMENT")
	require.Equal(t, "development", GetEnvironment())

	os.Setenv("ECHOLIA_ENV", "Production")
	defer os.Unsetenv("ECHOLIA_ENV")
	require.Equal(t, "production", GetEnvironment())
}

func TestIsProductionAndIsDevelopment(t *testing.T) {
	os.Setenv("ECHOLIA_ENV", "production")
	defer os.Unsetenv("ECHOLIA_ENV")
	require.True(t, IsProduction())
	require.False(t, IsDevelopment())

	os.Setenv("ECHOLIA_ENV", "local")
	require.False(t, IsProduction())
	require.True(t, IsDevelopment())
}
