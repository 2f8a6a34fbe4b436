// Package shop wires the conversation channel, the view state machine and
// the web server into the shopview application.
package shop

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/teslashibe/go-shopview/internal/config"
	"github.com/teslashibe/go-shopview/internal/log"
	"github.com/teslashibe/go-shopview/pkg/shopui"
	"github.com/teslashibe/go-shopview/pkg/storefront"
)

// Default configuration values.
const (
	DefaultPort           = "8080"
	DefaultLogLevel       = "info"
	DefaultRequestTimeout = 15 * time.Second
)

// Config holds all configuration for the shopview application.
// Flag parsing is done in cmd/shopview/main.go; this struct is data only.
type Config struct {
	// Port is the HTTP listen port.
	Port string

	// StaticDir serves the browser renderer when set.
	StaticDir string

	// RoutesFile is an optional YAML tool routing table.
	RoutesFile string

	// LogLevel is one of debug, info, warn, error.
	LogLevel string

	// AutoStart opens the conversation session at startup.
	AutoStart bool

	// RequestTimeout bounds ElevenLabs REST calls and the websocket handshake.
	RequestTimeout time.Duration

	// ElevenLabs credentials (typically from environment variables).
	// APIKey is only needed for private agents.
	APIKey  string
	AgentID string

	// Storefront presentation.
	Currency string
	Brand    string
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Port:           DefaultPort,
		LogLevel:       DefaultLogLevel,
		RequestTimeout: DefaultRequestTimeout,
		Currency:       storefront.DefaultCurrency,
		Brand:          storefront.DefaultBrand,
	}
}

// LoadEnvConfig applies environment variables. Call this after flag parsing;
// settings only replace values still at their default.
func (c *Config) LoadEnvConfig() error {
	c.APIKey = config.String("ELEVENLABS_API_KEY", c.APIKey)
	if c.AgentID == "" {
		c.AgentID = config.String("ELEVENLABS_AGENT_ID", "")
	}

	if c.Port == "" || c.Port == DefaultPort {
		c.Port = config.String("SHOPVIEW_PORT", DefaultPort)
	}
	if c.StaticDir == "" {
		c.StaticDir = config.String("SHOPVIEW_STATIC_DIR", "")
	}
	if c.RoutesFile == "" {
		c.RoutesFile = config.String("SHOPVIEW_ROUTES", "")
	}
	if c.LogLevel == "" || c.LogLevel == DefaultLogLevel {
		c.LogLevel = config.String("LOG_LEVEL", DefaultLogLevel)
	}
	if c.Currency == "" || c.Currency == storefront.DefaultCurrency {
		c.Currency = config.String("SHOPVIEW_CURRENCY", storefront.DefaultCurrency)
	}

	if !c.AutoStart {
		auto, err := config.Bool("SHOPVIEW_AUTO_START", false)
		if err != nil {
			return &ConfigError{Field: "AutoStart", Message: err.Error()}
		}
		c.AutoStart = auto
	}
	if c.RequestTimeout == 0 || c.RequestTimeout == DefaultRequestTimeout {
		d, err := config.Duration("SHOPVIEW_REQUEST_TIMEOUT", DefaultRequestTimeout)
		if err != nil {
			return &ConfigError{Field: "RequestTimeout", Message: err.Error()}
		}
		c.RequestTimeout = d
	}
	return nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	port, err := strconv.Atoi(c.Port)
	if err != nil || port < 1 || port > 65535 {
		return &ConfigError{Field: "Port", Message: fmt.Sprintf("invalid port %q", c.Port)}
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return &ConfigError{Field: "LogLevel", Message: err.Error()}
	}
	if c.RequestTimeout <= 0 {
		return &ConfigError{Field: "RequestTimeout", Message: "request timeout must be positive"}
	}
	if c.AutoStart && c.AgentID == "" {
		return &ConfigError{Field: "AgentID", Message: "ELEVENLABS_AGENT_ID environment variable is required with auto start"}
	}
	if c.StaticDir != "" {
		if info, err := os.Stat(c.StaticDir); err != nil || !info.IsDir() {
			return &ConfigError{Field: "StaticDir", Message: fmt.Sprintf("static dir %q is not a directory", c.StaticDir)}
		}
	}
	return nil
}

// LoadRoutes returns the routing table, read from RoutesFile when set.
func (c *Config) LoadRoutes() (shopui.Routes, error) {
	if c.RoutesFile == "" {
		return shopui.DefaultRoutes(), nil
	}
	data, err := os.ReadFile(c.RoutesFile)
	if err != nil {
		return nil, &ConfigError{Field: "RoutesFile", Message: err.Error()}
	}
	routes, err := shopui.ParseRoutes(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.RoutesFile, err)
	}
	return routes, nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Message
}
