package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"shelver/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// The input directory exists; output and state directories are left for the
// code under test to create.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.InputDir = filepath.Join(base, "input")
	cfgVal.Paths.OutputDir = filepath.Join(base, "library")
	cfgVal.Paths.StateDir = filepath.Join(base, "input", ".shelver")
	if err := os.MkdirAll(cfgVal.Paths.InputDir, 0o755); err != nil {
		t.Fatalf("mkdir input dir: %v", err)
	}

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithDryRun enables dry-run mode on the test config.
func WithDryRun() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.DryRun = true
	}
}

// WithMinConfidence overrides the enrichment confidence threshold.
func WithMinConfidence(level string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Enrichment.MinConfidence = level
	}
}

// WithMaxResubmissions caps manual resubmissions on the test config.
func WithMaxResubmissions(limit int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Review.MaxResubmissions = limit
	}
}

// WithEnsuredDirectories creates the state, queue, log, and output directories.
func WithEnsuredDirectories() ConfigOption {
	return func(b *configBuilder) {
		if err := b.cfg.EnsureDirectories(); err != nil {
			b.t.Fatalf("ensure directories: %v", err)
		}
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.InputDir)
}
