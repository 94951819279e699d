package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Setenv("TEST_ANTHROPIC_KEY", "sk-ant-secret")

	cfg, err := Load(filepath.Join("testdata", "config.yaml"))
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.BindAddr)
	assert.Equal(t, 5*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 10*time.Minute, cfg.Session.TTL)
	assert.Equal(t, time.Hour, cfg.Cache.ResponseTTL)

	assert.Equal(t, "sk-ant-secret", cfg.Providers["anthropic"].APIKey)
	assert.Equal(t, "sk-plaintext", cfg.Providers["openai"].APIKey)

	catalog := cfg.Catalog()
	require.Contains(t, catalog, "claude-sonnet")
	assert.Equal(t, "anthropic", catalog["claude-sonnet"].Vendor)
	assert.ElementsMatch(t, []string{"anthropic", "openai", "mock"}, cfg.Vendors())
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("TEST_ANTHROPIC_KEY", "x")
	t.Setenv("WHALLI_LOGGING__LEVEL", "warn")

	cfg, err := Load(filepath.Join("testdata", "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join("testdata", "nope.yaml"))
	assert.Error(t, err)
}

func TestDefaults(t *testing.T) {
	cfg := &Config{Models: []ModelConfig{{ID: "m", Vendor: "mock"}}}
	cfg.applyDefaults()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ":8080", cfg.Server.BindAddr)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "whalli_chat", cfg.Metrics.Namespace)
	assert.Equal(t, 10*time.Minute, cfg.Session.TTL)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, []string{"free", "basic", "pro", "enterprise"}, cfg.Tiers.Order)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		c := &Config{Models: []ModelConfig{{ID: "m", Vendor: "mock"}}}
		c.applyDefaults()
		return c
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no models", func(c *Config) { c.Models = nil }},
		{"model without vendor", func(c *Config) { c.Models[0].Vendor = "" }},
		{"duplicate model", func(c *Config) { c.Models = append(c.Models, ModelConfig{ID: "m", Vendor: "mock"}) }},
		{"redis without addr", func(c *Config) { c.Cache.Backend = "redis" }},
		{"bogus backend", func(c *Config) { c.Cache.Backend = "memcached" }},
		{"unknown tier", func(c *Config) { c.Tiers.Models = map[string][]string{"platinum": {"m"}} }},
		{"tier lists unknown model", func(c *Config) { c.Tiers.Models = map[string][]string{"free": {"ghost"}} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}
