package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"shelver/internal/config"
)

func TestLoadDefaultsUseEnvPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	input := filepath.Join(t.TempDir(), "input")
	if err := os.MkdirAll(input, 0o755); err != nil {
		t.Fatalf("mkdir input: %v", err)
	}
	output := filepath.Join(t.TempDir(), "output")
	t.Setenv("INPUT_PATH", input)
	t.Setenv("OUTPUT_PATH", output)
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("DEBUG", "true")
	t.Setenv("DRY_RUN", "TRUE")

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}
	if cfg.Paths.InputDir != input {
		t.Fatalf("unexpected input dir: %q", cfg.Paths.InputDir)
	}
	if cfg.Paths.OutputDir != output {
		t.Fatalf("unexpected output dir: %q", cfg.Paths.OutputDir)
	}
	if want := filepath.Join(input, ".shelver"); cfg.Paths.StateDir != want {
		t.Fatalf("unexpected state dir: got %q want %q", cfg.Paths.StateDir, want)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("expected DEBUG=true to select debug level, got %q", cfg.Logging.Level)
	}
	if !cfg.DryRun {
		t.Fatal("expected DRY_RUN to enable dry run")
	}
	if cfg.Enrichment.MinConfidence != "high" {
		t.Fatalf("unexpected min confidence: %q", cfg.Enrichment.MinConfidence)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.StateDir, cfg.QueueDir(), cfg.LogDir(), cfg.Paths.OutputDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	input := filepath.Join(tempDir, "books")
	if err := os.MkdirAll(input, 0o755); err != nil {
		t.Fatalf("mkdir input: %v", err)
	}
	for _, key := range []string{"INPUT_PATH", "OUTPUT_PATH", "CONFIG_PATH", "DEBUG", "DRY_RUN"} {
		t.Setenv(key, "")
	}

	type payload struct {
		Paths struct {
			InputDir  string `toml:"input_dir"`
			OutputDir string `toml:"output_dir"`
			StateDir  string `toml:"state_dir"`
		} `toml:"paths"`
		Scanner struct {
			MediaExtensions []string `toml:"media_extensions"`
		} `toml:"scanner"`
		Enrichment struct {
			RequiredFields []string `toml:"required_fields"`
			MinConfidence  string   `toml:"min_confidence"`
		} `toml:"enrichment"`
		Logging struct {
			Format string `toml:"format"`
		} `toml:"logging"`
	}
	custom := payload{}
	custom.Paths.InputDir = input
	custom.Paths.OutputDir = filepath.Join(tempDir, "library")
	custom.Paths.StateDir = filepath.Join(tempDir, "state")
	custom.Scanner.MediaExtensions = []string{"MP3", ".m4b", "mp3"}
	custom.Enrichment.RequiredFields = []string{" Title "}
	custom.Enrichment.MinConfidence = "Medium"
	custom.Logging.Format = "JSON"

	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	configPath := filepath.Join(tempDir, "shelver.toml")
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected custom config to be used, got %q (exists=%v)", resolved, exists)
	}
	if cfg.Paths.StateDir != filepath.Join(tempDir, "state") {
		t.Fatalf("unexpected state dir: %q", cfg.Paths.StateDir)
	}
	if got := strings.Join(cfg.Scanner.MediaExtensions, ","); got != ".mp3,.m4b" {
		t.Fatalf("unexpected media extensions: %s", got)
	}
	if len(cfg.Enrichment.RequiredFields) != 1 || cfg.Enrichment.RequiredFields[0] != "title" {
		t.Fatalf("unexpected required fields: %v", cfg.Enrichment.RequiredFields)
	}
	if cfg.Enrichment.MinConfidence != "medium" {
		t.Fatalf("unexpected min confidence: %q", cfg.Enrichment.MinConfidence)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("unexpected log format: %q", cfg.Logging.Format)
	}
	if cfg.RequestQueuePath() != filepath.Join(tempDir, "state", "queue", "requests.jsonl") {
		t.Fatalf("unexpected request queue path: %q", cfg.RequestQueuePath())
	}
}

func TestValidateRejectsInvalidSettings(t *testing.T) {
	input := t.TempDir()
	base := config.Default()
	base.Paths.InputDir = input
	base.Paths.OutputDir = filepath.Join(t.TempDir(), "out")
	base.Paths.StateDir = ""

	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"missing input", func(c *config.Config) { c.Paths.InputDir = filepath.Join(input, "missing") }, "not accessible"},
		{"output inside input", func(c *config.Config) { c.Paths.OutputDir = filepath.Join(input, "out") }, "must not be inside"},
		{"same dirs", func(c *config.Config) { c.Paths.OutputDir = input }, "must differ"},
		{"confidence", func(c *config.Config) { c.Enrichment.MinConfidence = "certain" }, "min_confidence"},
		{"parallelism", func(c *config.Config) { c.Organizer.Parallelism = -1 }, "parallelism"},
		{"resubmissions", func(c *config.Config) { c.Review.MaxResubmissions = -2 }, "max_resubmissions"},
		{"pattern", func(c *config.Config) { c.Scanner.DiscFolderPattern = "(" }, "disc_folder_pattern"},
		{"level", func(c *config.Config) { c.Logging.Level = "verbose" }, "logging.level"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base
			tc.mutate(&cfg)
			err := cfg.Finalize()
			if err == nil {
				t.Fatalf("expected validation error containing %q", tc.want)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}

	cfg := base
	if err := cfg.Finalize(); err != nil {
		t.Fatalf("expected base config to validate, got %v", err)
	}
}

func TestCreateSampleRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	input := filepath.Join(dir, "in")
	if err := os.MkdirAll(input, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	t.Setenv("INPUT_PATH", input)
	t.Setenv("OUTPUT_PATH", filepath.Join(dir, "out"))
	t.Setenv("CONFIG_PATH", "")

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if !exists {
		t.Fatal("expected sample file to exist")
	}
	if cfg.Organizer.Parallelism != 4 {
		t.Fatalf("unexpected parallelism from sample: %d", cfg.Organizer.Parallelism)
	}
	encoded, err := cfg.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !strings.Contains(string(encoded), "input_dir") {
		t.Fatalf("expected encoded config to include paths, got %s", encoded)
	}
}

func TestOverridePathsMovesDerivedStateDir(t *testing.T) {
	for _, key := range []string{"INPUT_PATH", "OUTPUT_PATH", "CONFIG_PATH", "DEBUG", "DRY_RUN"} {
		t.Setenv(key, "")
	}
	base := t.TempDir()
	original := filepath.Join(base, "old")
	moved := filepath.Join(base, "new")
	for _, dir := range []string{original, moved} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
	}

	cfg := config.Default()
	cfg.Paths.InputDir = original
	cfg.Paths.OutputDir = filepath.Join(base, "library")
	cfg.Paths.StateDir = filepath.Join(original, ".shelver")
	cfg.OverridePaths(moved, "")
	if err := cfg.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if cfg.Paths.StateDir != filepath.Join(moved, ".shelver") {
		t.Fatalf("state dir should follow input, got %q", cfg.Paths.StateDir)
	}

	explicit := filepath.Join(base, "state")
	cfg.Paths.StateDir = explicit
	cfg.OverridePaths(original, filepath.Join(base, "shelf"))
	if err := cfg.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if cfg.Paths.StateDir != explicit {
		t.Fatalf("explicit state dir should be kept, got %q", cfg.Paths.StateDir)
	}
	if cfg.Paths.OutputDir != filepath.Join(base, "shelf") {
		t.Fatalf("output override not applied: %q", cfg.Paths.OutputDir)
	}
}
