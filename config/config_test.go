package config

import (
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"testing"
	"time"

	"github.com/spf13/pflag"

	apperrors "github.com/kbukum/assetflow/errors"
	"github.com/kbukum/assetflow/storage"
)

type mockFS struct {
	files  map[string]bool
	loaded []string
}

func (m *mockFS) Exists(path string) bool { return m.files[path] }

func (m *mockFS) LoadEnv(path string) error {
	m.loaded = append(m.loaded, path)
	return nil
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "assetflow.yml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

const sampleConfig = `
name: site
environment: ci
logging:
  level: debug
  format: json
build:
  concurrency: 4
  debounce: 500ms
  record_concurrency: 2
  targets: [styles, pages]
serve:
  port: 8080
storage:
  cdn:
    provider: s3
    bucket: assets
  local:
    base_path: out
`

func TestConfig_ApplyDefaults(t *testing.T) {
	cfg := Config{Storage: map[string]storage.Config{"cdn": {}}}
	cfg.ApplyDefaults()

	if cfg.Name != DefaultName {
		t.Errorf("expected name %q, got %q", DefaultName, cfg.Name)
	}
	if cfg.Environment != "development" {
		t.Errorf("expected environment development, got %q", cfg.Environment)
	}
	if cfg.Build.CacheDir != DefaultCacheDir {
		t.Errorf("expected cache dir %q, got %q", DefaultCacheDir, cfg.Build.CacheDir)
	}
	if cfg.Build.Debounce != DefaultDebounce {
		t.Errorf("expected debounce %v, got %v", DefaultDebounce, cfg.Build.Debounce)
	}
	if cfg.Serve.Port != 3000 {
		t.Errorf("expected serve port 3000, got %d", cfg.Serve.Port)
	}
	if cfg.Storage["cdn"].Provider != storage.ProviderLocal {
		t.Errorf("expected storage defaults applied, got %+v", cfg.Storage["cdn"])
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"negative concurrency", func(c *Config) { c.Build.Concurrency = -1 }},
		{"bad bump type", func(c *Config) { c.Build.BumpType = "huge" }},
		{"bad environment", func(c *Config) { c.Environment = "staging" }},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }},
		{"bad port", func(c *Config) { c.Serve.Port = 70000 }},
		{"s3 without bucket", func(c *Config) {
			c.Storage = map[string]storage.Config{"cdn": {Provider: storage.ProviderS3, Region: "eu-west-1"}}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{}
			cfg.ApplyDefaults()
			tt.modify(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if code := apperrors.Classify(err); code != apperrors.ErrCodeInvalidConfig {
				t.Errorf("expected INVALID_CONFIG, got %s (%v)", code, err)
			}
		})
	}
}

func TestLoad_NoFiles(t *testing.T) {
	cfg, err := Load(WithFileSystem(&mockFS{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Name != DefaultName {
		t.Errorf("expected default name, got %q", cfg.Name)
	}
	if !cfg.Build.CacheEnabled {
		t.Error("expected cache enabled by default")
	}
}

func TestLoad_YAML(t *testing.T) {
	cfg, err := Load(WithConfigFile(writeConfig(t, sampleConfig)), WithEnvFile(filepath.Join(t.TempDir(), ".env")))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Name != "site" || cfg.Environment != "ci" {
		t.Errorf("unexpected identity %q/%q", cfg.Name, cfg.Environment)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("unexpected logging %+v", cfg.Logging)
	}
	if cfg.Build.Concurrency != 4 {
		t.Errorf("expected concurrency 4, got %d", cfg.Build.Concurrency)
	}
	if cfg.Build.Debounce != 500*time.Millisecond {
		t.Errorf("expected debounce 500ms, got %v", cfg.Build.Debounce)
	}
	if !slices.Equal(cfg.Build.Targets, []string{"styles", "pages"}) {
		t.Errorf("unexpected targets %v", cfg.Build.Targets)
	}
	if cfg.Serve.Port != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.Serve.Port)
	}
	cdn := cfg.Storage["cdn"]
	if cdn.Provider != storage.ProviderS3 || cdn.Bucket != "assets" || cdn.Region != storage.DefaultRegion {
		t.Errorf("unexpected cdn storage %+v", cdn)
	}
	if cfg.Storage["local"].Provider != storage.ProviderLocal || cfg.Storage["local"].BasePath != "out" {
		t.Errorf("unexpected local storage %+v", cfg.Storage["local"])
	}
}

func TestLoad_MissingConfigFile(t *testing.T) {
	_, err := Load(WithConfigFile(filepath.Join(t.TempDir(), "nope.yml")))
	if apperrors.Classify(err) != apperrors.ErrCodeInvalidConfig {
		t.Fatalf("expected INVALID_CONFIG, got %v", err)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(WithConfigFile(writeConfig(t, "build: [unclosed")))
	if apperrors.Classify(err) != apperrors.ErrCodeInvalidConfig {
		t.Fatalf("expected INVALID_CONFIG, got %v", err)
	}
}

func TestLoad_InvalidValue(t *testing.T) {
	_, err := Load(WithConfigFile(writeConfig(t, "build:\n  bump_type: huge\n")))
	if apperrors.Classify(err) != apperrors.ErrCodeInvalidConfig {
		t.Fatalf("expected INVALID_CONFIG, got %v", err)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("ASSETFLOW_BUILD_CONCURRENCY", "8")
	t.Setenv("ASSETFLOW_BUILD_BUMP_TYPE", "minor")
	t.Setenv("ASSETFLOW_STORAGE_CDN_BUCKET", "override")
	t.Setenv("ASSETFLOW_STORAGE_LOCAL_BASE_PATH", "elsewhere")
	t.Setenv("ASSETFLOW_UNRELATED_THING", "ignored")

	cfg, err := Load(WithConfigFile(writeConfig(t, sampleConfig)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Build.Concurrency != 8 {
		t.Errorf("expected env concurrency 8, got %d", cfg.Build.Concurrency)
	}
	if cfg.Build.BumpType != "minor" {
		t.Errorf("expected env bump type, got %q", cfg.Build.BumpType)
	}
	if cfg.Build.RecordConcurrency != 2 {
		t.Errorf("expected file record concurrency kept, got %d", cfg.Build.RecordConcurrency)
	}
	if cfg.Storage["cdn"].Bucket != "override" {
		t.Errorf("expected env bucket, got %q", cfg.Storage["cdn"].Bucket)
	}
	if cfg.Storage["cdn"].Provider != storage.ProviderS3 {
		t.Errorf("expected file provider preserved, got %q", cfg.Storage["cdn"].Provider)
	}
	if cfg.Storage["local"].BasePath != "elsewhere" {
		t.Errorf("expected env base path, got %q", cfg.Storage["local"].BasePath)
	}
}

func TestLoad_EnvFile(t *testing.T) {
	// Registers a restore so the variable godotenv sets is removed afterwards.
	t.Setenv("ASSETFLOW_BUILD_CACHE_DIR", "")
	os.Unsetenv("ASSETFLOW_BUILD_CACHE_DIR")

	envPath := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(envPath, []byte("ASSETFLOW_BUILD_CACHE_DIR=.cache\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(WithConfigFile(writeConfig(t, sampleConfig)), WithEnvFile(envPath))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Build.CacheDir != ".cache" {
		t.Errorf("expected cache dir from .env, got %q", cfg.Build.CacheDir)
	}
}

func TestLoad_FlagsOverrideEnv(t *testing.T) {
	t.Setenv("ASSETFLOW_BUILD_CONCURRENCY", "8")

	fs := pflag.NewFlagSet("assetflow", pflag.ContinueOnError)
	fs.Int("concurrency", 0, "")
	fs.Int("port", 0, "")
	fs.String("log-level", "", "")
	fs.Bool("watch", false, "")
	if err := fs.Parse([]string{"--concurrency=2", "--log-level=warn"}); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(WithConfigFile(writeConfig(t, sampleConfig)), WithFlags(fs))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Build.Concurrency != 2 {
		t.Errorf("expected flag concurrency 2, got %d", cfg.Build.Concurrency)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("expected flag log level, got %q", cfg.Logging.Level)
	}
	if cfg.Serve.Port != 8080 {
		t.Errorf("unset flag must not override the file, got port %d", cfg.Serve.Port)
	}
}

func TestResolver_ResolveFiles(t *testing.T) {
	fs := &mockFS{files: map[string]bool{
		"./config/assetflow.yml":     true,
		"./cmd/assetflow/config.yml": true,
		"./.env":                     true,
		"./config/.env":              true,
	}}
	r := &Resolver{FileSystem: fs}

	files := r.ResolveFiles(LoaderConfig{})
	if files.ConfigFile != "./config/assetflow.yml" {
		t.Errorf("expected ./config/assetflow.yml, got %q", files.ConfigFile)
	}
	if files.EnvFile != "./.env" {
		t.Errorf("expected ./.env, got %q", files.EnvFile)
	}

	files = r.ResolveFiles(LoaderConfig{ConfigFile: "custom.yml", EnvFile: "custom.env"})
	if files.ConfigFile != "custom.yml" || files.EnvFile != "custom.env" {
		t.Errorf("explicit paths should win, got %+v", files)
	}

	empty := (&Resolver{FileSystem: &mockFS{}}).ResolveFiles(LoaderConfig{})
	if empty.ConfigFile != "" || empty.EnvFile != "" {
		t.Errorf("expected nothing resolved, got %+v", empty)
	}
}

func TestLoad_LoadsResolvedEnvFile(t *testing.T) {
	fs := &mockFS{files: map[string]bool{"./.env.assetflow": true}}
	if _, err := Load(WithFileSystem(fs)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !slices.Equal(fs.loaded, []string{"./.env.assetflow"}) {
		t.Errorf("expected .env.assetflow loaded, got %v", fs.loaded)
	}
}

func TestGenerateEnvKeyVariants(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"NAME", "name"},
		{"BUILD_CACHE_DIR", "build.cache_dir"},
		{"STORAGE_CDN_BASE_PATH", "storage.cdn.base_path"},
		{"SERVE_READ_TIMEOUT", "serve.read_timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if got := generateEnvKeyVariants(tt.key); !slices.Contains(got, tt.want) {
				t.Errorf("variants %v missing %q", got, tt.want)
			}
		})
	}
}

func TestKnownKeys(t *testing.T) {
	keys := knownKeys(reflect.TypeOf(Config{}), "")
	for _, want := range []string{
		"name",
		"build.debounce",
		"build.bump_type",
		"logging.no_color",
		"serve.no_reload",
		"logging.components",
		"telemetry.sample_rate",
		"storage.*.bucket",
	} {
		if !slices.Contains(keys, want) {
			t.Errorf("expected known key %q", want)
		}
	}
	if !matchesKnown("storage.cdn.force_path_style", keys) {
		t.Error("expected wildcard storage key to match")
	}
	if matchesKnown("storage.cdn", keys) {
		t.Error("partial keys must not match")
	}
}

func TestLoaderOptions(t *testing.T) {
	fs := &mockFS{}
	flags := pflag.NewFlagSet("x", pflag.ContinueOnError)
	var lc LoaderConfig
	for _, opt := range []LoaderOption{
		WithFileSystem(fs),
		WithConfigFile("a.yml"),
		WithEnvFile("b.env"),
		WithFlags(flags),
	} {
		opt(&lc)
	}
	if lc.FileSystem != fs || lc.ConfigFile != "a.yml" || lc.EnvFile != "b.env" || lc.Flags != flags {
		t.Errorf("options not applied: %+v", lc)
	}
}
