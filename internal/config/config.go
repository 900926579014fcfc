// Package config wraps viper to provide typed, nil-safe access to hubgate
// configuration. Values come from an optional YAML file plus HUBGATE_*
// environment overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is a nil-safe wrapper around a viper instance.
type Config struct {
	v *viper.Viper
}

// New wraps an existing viper instance. A nil viper yields a Config that
// returns zero values for every key.
func New(v *viper.Viper) *Config {
	return &Config{v: v}
}

// Load reads configuration from the given file path (optional; a missing
// file is not an error) and the environment, applying defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("HUBGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config %q: %w", path, err)
			}
		}
	}

	return New(v), nil
}

// setDefaults registers the default value for every known key.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8765")
	v.SetDefault("server.rate_limit", 10.0)
	v.SetDefault("server.rate_burst", 20)

	v.SetDefault("hub.url", "http://127.0.0.1:8581")
	v.SetDefault("hub.username", "")
	v.SetDefault("hub.password", "")
	v.SetDefault("hub.timeout", "10s")

	v.SetDefault("gateway.name", "Hubgate")
	v.SetDefault("gateway.api_token", "")

	v.SetDefault("storage.path", "")
	v.SetDefault("storage.secrets_file", "secrets.json")
	v.SetDefault("storage.users_file", "users.json")
	v.SetDefault("storage.token_file", ".hubgate-token")

	v.SetDefault("audit.path", "hubgate-audit.db")
}

// GetString returns the string value for key, or "" if unset.
func (c *Config) GetString(key string) string {
	if c.v == nil {
		return ""
	}
	return c.v.GetString(key)
}

// GetInt returns the int value for key, or 0 if unset.
func (c *Config) GetInt(key string) int {
	if c.v == nil {
		return 0
	}
	return c.v.GetInt(key)
}

// GetFloat64 returns the float value for key, or 0 if unset.
func (c *Config) GetFloat64(key string) float64 {
	if c.v == nil {
		return 0
	}
	return c.v.GetFloat64(key)
}

// GetBool returns the bool value for key, or false if unset.
func (c *Config) GetBool(key string) bool {
	if c.v == nil {
		return false
	}
	return c.v.GetBool(key)
}

// GetDuration returns the duration value for key, or 0 if unset.
func (c *Config) GetDuration(key string) time.Duration {
	if c.v == nil {
		return 0
	}
	return c.v.GetDuration(key)
}

// IsSet reports whether key has a value from any source.
func (c *Config) IsSet(key string) bool {
	if c.v == nil {
		return false
	}
	return c.v.IsSet(key)
}

// Sub returns the subtree under key. Always returns a usable Config, never
// nil, so callers can chain getters without guards.
func (c *Config) Sub(key string) *Config {
	if c.v == nil {
		return New(nil)
	}
	sub := c.v.Sub(key)
	if sub == nil {
		return New(viper.New())
	}
	return New(sub)
}

// Unmarshal decodes the configuration into target using mapstructure tags.
func (c *Config) Unmarshal(target any) error {
	if c.v == nil {
		return nil
	}
	return c.v.Unmarshal(target)
}
