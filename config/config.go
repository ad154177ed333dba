package config

import (
	"fmt"
	"time"

	apperrors "github.com/kbukum/assetflow/errors"
	"github.com/kbukum/assetflow/logger"
	"github.com/kbukum/assetflow/observability"
	"github.com/kbukum/assetflow/server"
	"github.com/kbukum/assetflow/storage"
	"github.com/kbukum/assetflow/validation"
)

// Defaults for unset fields.
const (
	DefaultName     = "assetflow"
	DefaultCacheDir = ".assetflow-cache"
	DefaultDebounce = 200 * time.Millisecond
)

// Config is the complete assetflow configuration.
type Config struct {
	Name        string `yaml:"name" mapstructure:"name" validate:"required"`
	Environment string `yaml:"environment" mapstructure:"environment" validate:"oneof=development ci production"`

	Logging   logger.Config             `yaml:"logging" mapstructure:"logging"`
	Build     BuildConfig               `yaml:"build" mapstructure:"build"`
	Watch     WatchConfig               `yaml:"watch" mapstructure:"watch"`
	Serve     server.Config             `yaml:"serve" mapstructure:"serve"`
	Telemetry observability.Config      `yaml:"telemetry" mapstructure:"telemetry"`
	Storage   map[string]storage.Config `yaml:"storage" mapstructure:"storage"`
}

// BuildConfig controls task execution.
type BuildConfig struct {
	// Taskfile is the taskfile path. Empty means search the working directory.
	Taskfile string `yaml:"taskfile" mapstructure:"taskfile"`
	// Concurrency bounds parallel tasks. 0 means unlimited.
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency" validate:"gte=0"`
	// RecordConcurrency overrides every pipeline's per-record limit when set.
	RecordConcurrency int    `yaml:"record_concurrency" mapstructure:"record_concurrency" validate:"gte=0"`
	CacheEnabled      bool   `yaml:"cache_enabled" mapstructure:"cache_enabled"`
	CacheDir          string `yaml:"cache_dir" mapstructure:"cache_dir"`
	// Debounce is the quiet window of watch mode.
	Debounce time.Duration `yaml:"debounce" mapstructure:"debounce" validate:"gte=0"`
	Targets  []string      `yaml:"targets" mapstructure:"targets"`
	BumpType string        `yaml:"bump_type" mapstructure:"bump_type" validate:"omitempty,oneof=major minor patch"`
}

// WatchConfig controls watch mode.
type WatchConfig struct {
	// Root is the watched directory. Defaults to the taskfile directory.
	Root    string `yaml:"root" mapstructure:"root"`
	Cascade bool   `yaml:"cascade" mapstructure:"cascade"`
}

// ApplyDefaults fills zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = DefaultName
	}
	if c.Environment == "" {
		c.Environment = "development"
	}
	c.Logging.ApplyDefaults()
	if c.Build.CacheDir == "" {
		c.Build.CacheDir = DefaultCacheDir
	}
	if c.Build.Debounce == 0 {
		c.Build.Debounce = DefaultDebounce
	}
	c.Serve.ApplyDefaults()
	c.Telemetry.ApplyDefaults()
	for name, sc := range c.Storage {
		sc.ApplyDefaults()
		c.Storage[name] = sc
	}
}

// Validate checks every section and returns an INVALID_CONFIG error.
func (c *Config) Validate() error {
	if err := validation.Validate(c); err != nil {
		return apperrors.InvalidConfig(err.Error()).WithCause(err)
	}
	if err := c.Logging.Validate(); err != nil {
		return apperrors.InvalidConfig(err.Error()).WithCause(err)
	}
	if err := c.Serve.Validate(); err != nil {
		return err
	}
	for name, sc := range c.Storage {
		if err := sc.Validate(); err != nil {
			return apperrors.InvalidConfig(fmt.Sprintf("storage.%s: %v", name, err)).WithCause(err)
		}
	}
	return nil
}
