package api

import (
	"fmt"
	"os"

	"github.com/FocuswithJustin/LyricScope/core/analysis"
)

// Defaults applied by Config.withDefaults.
const (
	DefaultPort           = 8080
	DefaultMaxBodyBytes   = 1 << 20
	DefaultCacheSize      = 256
	DefaultMaxMessageRate = 10
	DefaultMaxLines       = 5000
)

// Config holds server configuration.
type Config struct {
	Port           int
	Version        string
	AllowedOrigins []string   // CORS and WebSocket origins (empty = allow all)
	Auth           AuthConfig // API key authentication
	TLS            TLSConfig
	Analysis       analysis.Options
	CacheSize      int   // analysis results kept in memory
	MaxBodyBytes   int64 // request body and WebSocket message limit
	MaxLines       int   // longest buffer analyzed per request
	WebSocket      WebSocketConfig
}

// TLSConfig holds TLS/HTTPS configuration.
type TLSConfig struct {
	Enabled  bool
	CertFile string
	KeyFile  string
}

// WebSocketConfig holds limits for live analysis connections.
type WebSocketConfig struct {
	// MaxMessageSize is the largest accepted client message in bytes.
	// Zero follows MaxBodyBytes plus room for the JSON envelope.
	MaxMessageSize int64
	// MaxMessageRate is the sustained number of messages per second per
	// client; bursts of twice that are allowed.
	MaxMessageRate int
}

func (c Config) withDefaults() Config {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.Version == "" {
		c.Version = "dev"
	}
	if c.CacheSize <= 0 {
		c.CacheSize = DefaultCacheSize
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if c.MaxLines <= 0 {
		c.MaxLines = DefaultMaxLines
	}
	if c.WebSocket.MaxMessageSize <= 0 {
		c.WebSocket.MaxMessageSize = c.MaxBodyBytes + 4096
	}
	if c.WebSocket.MaxMessageRate <= 0 {
		c.WebSocket.MaxMessageRate = DefaultMaxMessageRate
	}
	return c
}

// Validate checks the configuration before the server starts.
func (c Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if err := ValidateAuthConfig(c.Auth); err != nil {
		return fmt.Errorf("invalid auth config: %w", err)
	}
	if c.TLS.Enabled {
		if c.TLS.CertFile == "" || c.TLS.KeyFile == "" {
			return fmt.Errorf("TLS enabled but cert or key file not specified")
		}
		if _, err := os.Stat(c.TLS.CertFile); err != nil {
			return fmt.Errorf("TLS cert file not found: %w", err)
		}
		if _, err := os.Stat(c.TLS.KeyFile); err != nil {
			return fmt.Errorf("TLS key file not found: %w", err)
		}
	}
	return nil
}
