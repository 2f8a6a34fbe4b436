package shop

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "AED", cfg.Currency)
}

func TestLoadEnvConfig(t *testing.T) {
	t.Setenv("ELEVENLABS_API_KEY", "xi-key")
	t.Setenv("ELEVENLABS_AGENT_ID", "agent_env")
	t.Setenv("SHOPVIEW_PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("SHOPVIEW_AUTO_START", "true")
	t.Setenv("SHOPVIEW_REQUEST_TIMEOUT", "3s")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadEnvConfig())
	assert.Equal(t, "xi-key", cfg.APIKey)
	assert.Equal(t, "agent_env", cfg.AgentID)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.AutoStart)
	assert.Equal(t, 3*time.Second, cfg.RequestTimeout)
	require.NoError(t, cfg.Validate())

	// Flags that moved off the default win over the environment.
	cfg = DefaultConfig()
	cfg.Port = "7070"
	require.NoError(t, cfg.LoadEnvConfig())
	assert.Equal(t, "7070", cfg.Port)

	t.Setenv("SHOPVIEW_REQUEST_TIMEOUT", "later")
	cfg = DefaultConfig()
	err := cfg.LoadEnvConfig()
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "RequestTimeout", cfgErr.Field)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		field  string
	}{
		{"bad port", func(c *Config) { c.Port = "0" }, "Port"},
		{"bad log level", func(c *Config) { c.LogLevel = "chatty" }, "LogLevel"},
		{"bad timeout", func(c *Config) { c.RequestTimeout = 0 }, "RequestTimeout"},
		{"auto start without agent", func(c *Config) { c.AutoStart = true }, "AgentID"},
		{"missing static dir", func(c *Config) { c.StaticDir = "/nonexistent/shopview" }, "StaticDir"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			var cfgErr *ConfigError
			require.ErrorAs(t, cfg.Validate(), &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}

	cfg := DefaultConfig()
	cfg.StaticDir = t.TempDir()
	assert.NoError(t, cfg.Validate())
}
