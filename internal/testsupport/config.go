package testsupport

import (
	"path/filepath"
	"testing"

	"crucible/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.TaskDir = filepath.Join(base, "tasks")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Completion.APIKey = "test-key"
	cfg.Embedding.APIKey = "test-key"

	for _, opt := range opts {
		opt(&cfg)
	}

	return &cfg
}

// WithRun mutates the run parameters on the test config.
func WithRun(mutate func(*config.Run)) ConfigOption {
	return func(cfg *config.Config) {
		mutate(&cfg.Run)
	}
}
