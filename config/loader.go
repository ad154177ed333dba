package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	apperrors "github.com/kbukum/assetflow/errors"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "ASSETFLOW_"

// FileSystem interface for file operations (useful for testing).
type FileSystem interface {
	Exists(path string) bool
	LoadEnv(path string) error
}

// RealFileSystem implements FileSystem using actual file operations.
type RealFileSystem struct{}

func (rfs *RealFileSystem) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// LoadEnv loads a .env file without overriding variables already set.
func (rfs *RealFileSystem) LoadEnv(path string) error {
	return godotenv.Load(path)
}

// Resolver handles finding and resolving config and env files.
type Resolver struct {
	FileSystem FileSystem
}

// ResolvedFiles contains the resolved config and env file paths.
type ResolvedFiles struct {
	ConfigFile string
	EnvFile    string
}

var (
	configSearchPaths = []string{
		"./assetflow.yml",
		"./assetflow.yaml",
		"./config/assetflow.yml",
		"./cmd/assetflow/config.yml",
	}
	envSearchPaths = []string{
		"./.env.assetflow",
		"./.env",
		"./config/.env",
	}
)

// ResolveFiles returns explicit paths if provided, otherwise the first
// existing file of each search list.
func (cr *Resolver) ResolveFiles(opts LoaderConfig) ResolvedFiles {
	resolved := ResolvedFiles{
		ConfigFile: opts.ConfigFile,
		EnvFile:    opts.EnvFile,
	}
	if resolved.ConfigFile == "" {
		resolved.ConfigFile = cr.first(configSearchPaths)
	}
	if resolved.EnvFile == "" {
		resolved.EnvFile = cr.first(envSearchPaths)
	}
	return resolved
}

func (cr *Resolver) first(paths []string) string {
	for _, path := range paths {
		if cr.FileSystem.Exists(path) {
			return path
		}
	}
	return ""
}

// LoaderConfig holds dependencies and optional file overrides.
type LoaderConfig struct {
	FileSystem FileSystem
	ConfigFile string // Direct config file path (optional)
	EnvFile    string // Direct env file path (optional)
	Flags      *pflag.FlagSet
}

// LoaderOption is a functional option for Load.
type LoaderOption func(*LoaderConfig)

// WithFileSystem sets a custom filesystem for the loader.
func WithFileSystem(fs FileSystem) LoaderOption {
	return func(lc *LoaderConfig) { lc.FileSystem = fs }
}

// WithConfigFile sets an explicit config file path. Load fails if it is missing.
func WithConfigFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.ConfigFile = path }
}

// WithEnvFile sets an explicit .env file path.
func WithEnvFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.EnvFile = path }
}

// WithFlags layers explicitly set command-line flags over every other source.
func WithFlags(fs *pflag.FlagSet) LoaderOption {
	return func(lc *LoaderConfig) { lc.Flags = fs }
}

// FlagKeys maps command-line flag names to configuration keys.
var FlagKeys = map[string]string{
	"concurrency": "build.concurrency",
	"taskfile":    "build.taskfile",
	"bump-type":   "build.bump_type",
	"debounce":    "build.debounce",
	"cache-dir":   "build.cache_dir",
	"cascade":     "watch.cascade",
	"port":        "serve.port",
	"log-level":   "logging.level",
	"log-format":  "logging.format",
}

// Load resolves, layers, defaults and validates the configuration.
func Load(opts ...LoaderOption) (*Config, error) {
	var lc LoaderConfig
	for _, opt := range opts {
		opt(&lc)
	}
	if lc.FileSystem == nil {
		lc.FileSystem = &RealFileSystem{}
	}
	if lc.ConfigFile != "" && !lc.FileSystem.Exists(lc.ConfigFile) {
		return nil, apperrors.InvalidConfig(fmt.Sprintf("config file %s not found", lc.ConfigFile))
	}

	resolver := &Resolver{FileSystem: lc.FileSystem}
	files := resolver.ResolveFiles(lc)

	cfg, err := loadFromResolvedFiles(files, lc)
	if err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFromResolvedFiles loads configuration from specific files.
func loadFromResolvedFiles(files ResolvedFiles, lc LoaderConfig) (*Config, error) {
	v := viper.New()
	v.SetDefault("build.cache_enabled", true)

	// 1. YAML config is the base.
	if files.ConfigFile != "" {
		v.SetConfigFile(files.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, apperrors.InvalidConfig(fmt.Sprintf("read %s: %v", files.ConfigFile, err)).WithCause(err)
		}
	}

	// 2. .env fills the process environment before binding.
	if files.EnvFile != "" && lc.FileSystem.Exists(files.EnvFile) {
		if err := lc.FileSystem.LoadEnv(files.EnvFile); err != nil {
			return nil, apperrors.InvalidConfig(fmt.Sprintf("load %s: %v", files.EnvFile, err)).WithCause(err)
		}
	}

	// 3. ASSETFLOW_* variables.
	if err := bindEnvVars(v, knownKeys(reflect.TypeOf(Config{}), "")); err != nil {
		return nil, apperrors.InvalidConfig(err.Error()).WithCause(err)
	}

	// 4. Flags the user actually set.
	if lc.Flags != nil {
		for name, key := range FlagKeys {
			if f := lc.Flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, apperrors.InvalidConfig(err.Error()).WithCause(err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, apperrors.InvalidConfig(fmt.Sprintf("decode config: %v", err)).WithCause(err)
	}
	return &cfg, nil
}

// bindEnvVars binds each prefixed environment variable to the first key
// variant that names a known configuration key.
func bindEnvVars(v *viper.Viper, known []string) error {
	for _, env := range os.Environ() {
		name, _, ok := strings.Cut(env, "=")
		if !ok || !strings.HasPrefix(name, EnvPrefix) {
			continue
		}
		for _, variant := range generateEnvKeyVariants(strings.TrimPrefix(name, EnvPrefix)) {
			if !matchesKnown(variant, known) {
				continue
			}
			if err := v.BindEnv(variant, name); err != nil {
				return err
			}
			break
		}
	}
	return nil
}

var durationType = reflect.TypeOf(time.Duration(0))

// knownKeys lists the dotted mapstructure keys of t. Map values contribute a
// "*" segment.
func knownKeys(t reflect.Type, prefix string) []string {
	var keys []string
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := strings.SplitN(f.Tag.Get("mapstructure"), ",", 2)[0]
		if tag == "" || tag == "-" {
			continue
		}
		key := prefix + tag
		switch {
		case f.Type.Kind() == reflect.Struct && f.Type != durationType:
			keys = append(keys, knownKeys(f.Type, key+".")...)
		case f.Type.Kind() == reflect.Map && f.Type.Elem().Kind() == reflect.Struct:
			keys = append(keys, knownKeys(f.Type.Elem(), key+".*.")...)
		default:
			keys = append(keys, key)
		}
	}
	return keys
}

func matchesKnown(key string, known []string) bool {
	parts := strings.Split(key, ".")
	for _, k := range known {
		kparts := strings.Split(k, ".")
		if len(kparts) != len(parts) {
			continue
		}
		match := true
		for i := range kparts {
			if kparts[i] != "*" && kparts[i] != parts[i] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// generateEnvKeyVariants creates all possible key variants for environment variable binding.
// Examples:
//
//	BUILD_CACHE_DIR -> [build_cache_dir, build.cache.dir, build.cache_dir]
//	STORAGE_CDN_BASE_PATH -> [..., storage.cdn.base_path, ...]
func generateEnvKeyVariants(envKey string) []string {
	lowerKey := strings.ToLower(envKey)
	parts := strings.Split(lowerKey, "_")

	if len(parts) <= 1 {
		return []string{lowerKey}
	}

	variants := []string{
		lowerKey,
		strings.ReplaceAll(lowerKey, "_", "."),
	}

	// Generate progressive nesting patterns
	for i := 1; i < len(parts); i++ {
		prefix := strings.Join(parts[:i], ".")
		suffix := strings.Join(parts[i:], "_")
		variants = append(variants, prefix+"."+suffix)
	}

	return removeDuplicates(variants)
}

// removeDuplicates removes duplicate strings from a slice.
func removeDuplicates(items []string) []string {
	seen := make(map[string]bool, len(items))
	result := make([]string, 0, len(items))

	for _, item := range items {
		if !seen[item] {
			seen[item] = true
			result = append(result, item)
		}
	}

	return result
}
