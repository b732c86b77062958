// Package config provides configuration loading and validation.
package config

import "time"

// Config holds the server configuration.
type Config struct {
	// ListenAddr is the address to listen on. Example: ":8080".
	ListenAddr string `toml:"listen_addr"`

	Log    LogConfig    `toml:"log"`
	Store  StoreConfig  `toml:"store"`
	Auth   AuthConfig   `toml:"auth"`
	Notify NotifyConfig `toml:"notify"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is one of: debug, info, warn, error.
	Level string `toml:"level"`

	// Format is one of: json, text.
	Format string `toml:"format"`
}

// StoreConfig holds persistence settings.
type StoreConfig struct {
	// Driver selects the registered store driver. Example: "sqlite".
	Driver string `toml:"driver"`

	// DataDir is where file-backed drivers keep their data.
	DataDir string `toml:"data_dir"`
}

// AuthConfig holds identity and token settings.
type AuthConfig struct {
	// JWTSecret signs issued tokens. Required outside dev.
	JWTSecret string `toml:"jwt_secret"`

	// TokenTTLHours is the issued token lifetime.
	TokenTTLHours int `toml:"token_ttl_hours"`
}

// NotifyConfig holds notification transport settings.
type NotifyConfig struct {
	// Transport selects the registered transport. Example: "pusher".
	Transport string `toml:"transport"`

	// QueueSize bounds the in-process dispatch queue.
	QueueSize int `toml:"queue_size"`

	// Transports carries driver-specific settings keyed by transport name.
	Transports map[string]map[string]any `toml:"transports"`
}

// TokenTTL returns the configured token lifetime as a duration.
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.Auth.TokenTTLHours) * time.Hour
}

// TransportSettings returns the settings block for the active transport,
// or an empty map when none is configured.
func (c *Config) TransportSettings() map[string]any {
	if s, ok := c.Notify.Transports[c.Notify.Transport]; ok {
		return s
	}
	return map[string]any{}
}

// DefaultConfig returns a Config with sensible defaults for local development.
func DefaultConfig() *Config {
	return &Config{
		ListenAddr: ":8080",
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Store: StoreConfig{
			Driver:  "sqlite",
			DataDir: "./data",
		},
		Auth: AuthConfig{
			TokenTTLHours: 24,
		},
		Notify: NotifyConfig{
			Transport: "log",
			QueueSize: 256,
		},
	}
}

// Redacted returns a copy safe for logging, with secrets masked.
func (c *Config) Redacted() Config {
	out := *c
	if out.Auth.JWTSecret != "" {
		out.Auth.JWTSecret = "[redacted]"
	}
	if len(c.Notify.Transports) > 0 {
		out.Notify.Transports = make(map[string]map[string]any, len(c.Notify.Transports))
		for name, settings := range c.Notify.Transports {
			masked := make(map[string]any, len(settings))
			for k, v := range settings {
				if k == "secret" || k == "key" {
					masked[k] = "[redacted]"
					continue
				}
				masked[k] = v
			}
			out.Notify.Transports[name] = masked
		}
	}
	return out
}
