package server

import (
	"fmt"

	apperrors "github.com/kbukum/assetflow/errors"
)

// Config holds dev server configuration.
type Config struct {
	Host string `yaml:"host" mapstructure:"host"`
	Port int    `yaml:"port" mapstructure:"port"`
	// Root is the directory served, usually the build destination.
	Root        string `yaml:"root" mapstructure:"root"`
	ReadTimeout int    `yaml:"read_timeout" mapstructure:"read_timeout"` // seconds
	IdleTimeout int    `yaml:"idle_timeout" mapstructure:"idle_timeout"` // seconds
	NoReload    bool   `yaml:"no_reload" mapstructure:"no_reload"`
}

// ApplyDefaults sets sensible default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 3000
	}
	if c.Root == "" {
		c.Root = "public"
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 15
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 60
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return apperrors.InvalidConfig(fmt.Sprintf("serve.port must be between 0 and 65535 (got: %d)", c.Port))
	}
	if c.Root == "" {
		return apperrors.InvalidConfig("serve.root is required")
	}
	if c.ReadTimeout < 0 {
		return apperrors.InvalidConfig(fmt.Sprintf("serve.read_timeout must be non-negative (got: %d)", c.ReadTimeout))
	}
	if c.IdleTimeout < 0 {
		return apperrors.InvalidConfig(fmt.Sprintf("serve.idle_timeout must be non-negative (got: %d)", c.IdleTimeout))
	}
	return nil
}
