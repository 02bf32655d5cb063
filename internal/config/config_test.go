package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultConfig(t *testing.T) *Config {
	t.Helper()

	v := viper.New()
	SetDefaults(v)

	var cfg Config
	require.NoError(t, v.Unmarshal(&cfg))
	return &cfg
}

func TestDefaultsAreValid(t *testing.T) {
	cfg := defaultConfig(t)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 4, cfg.Engine.Concurrency)
	assert.Equal(t, 15*time.Second, cfg.Engine.LookupTimeout)
	assert.Equal(t, "semgrep", cfg.Semgrep.Binary)
	assert.True(t, cfg.Providers.Local.Enabled)
	assert.Empty(t, cfg.Providers.GitLab.Token, "no credential is configured by default")
	assert.Empty(t, cfg.Providers.GitHub.Token)
	assert.Equal(t, "-", cfg.Output.Path)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero concurrency", func(c *Config) { c.Engine.Concurrency = 0 }},
		{"negative lookup timeout", func(c *Config) { c.Engine.LookupTimeout = -time.Second }},
		{"blank semgrep binary", func(c *Config) { c.Semgrep.Binary = "  " }},
		{"zero semgrep timeout", func(c *Config) { c.Semgrep.Timeout = 0 }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := defaultConfig(t)
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoad(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("providers.github.token", "ghp-abc")

	require.NoError(t, Load(v))
	assert.Equal(t, "ghp-abc", Get().Providers.GitHub.Token)

	// Load is once-guarded: a second call must not replace the singleton.
	v2 := viper.New()
	SetDefaults(v2)
	v2.Set("providers.github.token", "ghp-other")

	require.NoError(t, Load(v2))
	assert.Equal(t, "ghp-abc", Get().Providers.GitHub.Token)
}

func TestConfigFromViper(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("providers.gitlab.token", "glpat-xyz")
	v.Set("providers.gitlab.base_url", "https://gitlab.internal.example.com/api/v4")
	v.Set("engine.concurrency", 8)

	var cfg Config
	require.NoError(t, v.Unmarshal(&cfg))
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "glpat-xyz", cfg.Providers.GitLab.Token)
	assert.Equal(t, "https://gitlab.internal.example.com/api/v4", cfg.Providers.GitLab.BaseURL)
	assert.Equal(t, 8, cfg.Engine.Concurrency)
}
