package conversation

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/teslashibe/go-shopview/internal/httpc"
)

// Default endpoints of the ElevenLabs Agents Platform.
const (
	DefaultBaseURL    = "wss://api.elevenlabs.io/v1/convai/conversation"
	DefaultAPIBaseURL = "https://api.elevenlabs.io/v1"
)

// Config holds configuration for conversation channels.
type Config struct {
	// APIKey authenticates against the REST API. Without it only public
	// agents can be reached.
	APIKey string

	// AgentID is the default agent for new sessions.
	AgentID string

	// BaseURL is the websocket endpoint for public agents.
	BaseURL string

	// APIBaseURL is the REST endpoint used to sign private agent URLs.
	APIBaseURL string

	// Timeout bounds the websocket handshake.
	Timeout time.Duration

	// ReadTimeout is the longest the channel waits for any message,
	// pings included.
	ReadTimeout time.Duration

	// WriteTimeout is the timeout for writing messages.
	WriteTimeout time.Duration

	// HTTPClient is used for REST calls.
	HTTPClient *http.Client

	// Logger is the structured logger to use.
	Logger *slog.Logger

	// Tools are client tools registered at construction.
	Tools []Tool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:      DefaultBaseURL,
		APIBaseURL:   DefaultAPIBaseURL,
		Timeout:      30 * time.Second,
		ReadTimeout:  5 * time.Minute,
		WriteTimeout: 10 * time.Second,
		HTTPClient:   httpc.Client,
		Logger:       slog.Default(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// Validate checks the endpoints and timeouts.
func (c *Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
		return fmt.Errorf("conversation: invalid websocket URL %q", c.BaseURL)
	}
	u, err = url.Parse(c.APIBaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("conversation: invalid API URL %q", c.APIBaseURL)
	}
	if c.Timeout <= 0 || c.ReadTimeout <= 0 || c.WriteTimeout <= 0 {
		return fmt.Errorf("conversation: timeouts must be positive")
	}
	return nil
}

// Option is a functional option for configuring channels.
type Option func(*Config)

// WithAPIKey sets the API key.
func WithAPIKey(key string) Option {
	return func(c *Config) {
		c.APIKey = key
	}
}

// WithAgentID sets the default agent ID.
func WithAgentID(id string) Option {
	return func(c *Config) {
		c.AgentID = id
	}
}

// WithBaseURL sets the websocket endpoint.
func WithBaseURL(url string) Option {
	return func(c *Config) {
		c.BaseURL = url
	}
}

// WithAPIBaseURL sets the REST endpoint.
func WithAPIBaseURL(url string) Option {
	return func(c *Config) {
		c.APIBaseURL = url
	}
}

// WithTimeout sets the handshake timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.Timeout = d
	}
}

// WithReadTimeout sets the read timeout.
func WithReadTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.ReadTimeout = d
	}
}

// WithHTTPClient sets the HTTP client used for REST calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Config) {
		c.HTTPClient = hc
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithTools registers client tools.
func WithTools(tools ...Tool) Option {
	return func(c *Config) {
		c.Tools = append(c.Tools, tools...)
	}
}
