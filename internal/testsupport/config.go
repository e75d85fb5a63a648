// Package testsupport provides shared fixtures for package tests: temp-dir
// configs, stores, and generated comic archives.
package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"longbox/internal/config"
)

// ConfigOption customizes the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// Every directory already exists when this returns.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.LibraryDir = filepath.Join(base, "library")
	cfg.Paths.ImportDir = filepath.Join(base, "import")
	cfg.Paths.CacheDir = filepath.Join(base, "cache")
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"

	for _, opt := range opts {
		opt(&cfg)
	}

	for _, dir := range []string{cfg.Paths.LibraryDir, cfg.Paths.ImportDir, cfg.Paths.CacheDir, cfg.Paths.DataDir, cfg.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}
	return &cfg
}

// WithAPIBind overrides the API bind address on the test config.
func WithAPIBind(bind string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Paths.APIBind = bind
	}
}

// WithRenamingRule overrides the organizer rule on the test config.
func WithRenamingRule(rule string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Pipeline.RenamingRule = rule
	}
}
