package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains the input, output, and working directories.
type Paths struct {
	InputDir  string `toml:"input_dir"`
	OutputDir string `toml:"output_dir"`
	// StateDir holds the tracking database, queue files, logs, and the run
	// lock. Defaults to <input_dir>/.shelver.
	StateDir string `toml:"state_dir"`
}

// Scanner controls which folders are recognized as trackable items.
type Scanner struct {
	MediaExtensions   []string `toml:"media_extensions"`
	DiscFolderPattern string   `toml:"disc_folder_pattern"`
	SkipHidden        bool     `toml:"skip_hidden"`
}

// Enrichment contains the confidence policy applied to response records.
type Enrichment struct {
	// RequiredFields must be present in every response's metadata.
	RequiredFields []string `toml:"required_fields"`
	// MinConfidence is the lowest acceptable confidence level (low, medium,
	// high) for any required field that reports one.
	MinConfidence string `toml:"min_confidence"`
	// RequireConfidence fails records that omit a confidence value for a
	// required field.
	RequireConfidence bool `toml:"require_confidence"`
	// FailureStatuses are the status values treated as explicit failure markers.
	FailureStatuses []string `toml:"failure_statuses"`
}

// Review contains manual-intervention settings.
type Review struct {
	// MaxResubmissions caps how many times an item may be resubmitted after
	// manual correction. Zero disables the cap.
	MaxResubmissions int `toml:"max_resubmissions"`
}

// Organizer contains placement settings.
type Organizer struct {
	Parallelism       int  `toml:"parallelism"`
	OverwriteExisting bool `toml:"overwrite_existing"`
	VerifyCopies      bool `toml:"verify_copies"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for shelver.
//
// Configuration sections by subsystem:
//   - Paths: input, output, and state directories
//   - Scanner: media recognition and disc folder handling
//   - Enrichment: response validation and confidence policy
//   - Review: manual intervention limits
//   - Organizer: library placement behaviour
//   - Logging: log format and level
type Config struct {
	Paths      Paths      `toml:"paths"`
	Scanner    Scanner    `toml:"scanner"`
	Enrichment Enrichment `toml:"enrichment"`
	Review     Review     `toml:"review"`
	Organizer  Organizer  `toml:"organizer"`
	Logging    Logging    `toml:"logging"`

	// DryRun is populated from DRY_RUN or the --dry-run flag; it is never
	// read from the file.
	DryRun bool `toml:"-"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg, resolvedPath, exists, err := LoadUnvalidated(path)
	if err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return cfg, resolvedPath, exists, nil
}

// LoadUnvalidated parses and normalizes configuration without validating it.
// Callers that apply flag overrides validate afterwards via Finalize.
func LoadUnvalidated(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()
	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolvedPath, exists, nil
}

// Finalize re-normalizes after programmatic overrides (CLI flags) and validates.
func (c *Config) Finalize() error {
	if err := c.normalize(); err != nil {
		return err
	}
	return c.Validate()
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("shelver.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// OverridePaths applies command-line directory overrides. A state directory
// derived from the previous input directory follows the new one. Call
// Finalize afterwards.
func (c *Config) OverridePaths(input, output string) {
	if input = strings.TrimSpace(input); input != "" {
		if c.Paths.StateDir == filepath.Join(c.Paths.InputDir, defaultStateDirName) {
			c.Paths.StateDir = ""
		}
		c.Paths.InputDir = input
	}
	if output = strings.TrimSpace(output); output != "" {
		c.Paths.OutputDir = output
	}
}

// EnsureDirectories creates the state and output directories. The input
// directory is never created; a missing input is a configuration error.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.QueueDir(), c.LogDir(), c.Paths.OutputDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// StorePath returns the tracking database location.
func (c *Config) StorePath() string {
	return filepath.Join(c.Paths.StateDir, "tracker.db")
}

// QueueDir returns the directory holding the hand-off queue files.
func (c *Config) QueueDir() string {
	return filepath.Join(c.Paths.StateDir, "queue")
}

// RequestQueuePath returns the pending-request queue file.
func (c *Config) RequestQueuePath() string {
	return filepath.Join(c.QueueDir(), "requests.jsonl")
}

// InstructionsPath returns the static instruction document paired with the request queue.
func (c *Config) InstructionsPath() string {
	return filepath.Join(c.QueueDir(), "INSTRUCTIONS.md")
}

// ResponseQueuePath returns the external agent's response queue file.
func (c *Config) ResponseQueuePath() string {
	return filepath.Join(c.QueueDir(), "responses.jsonl")
}

// ManualQueuePath returns the human-review queue file.
func (c *Config) ManualQueuePath() string {
	return filepath.Join(c.QueueDir(), "manual_review.jsonl")
}

// LogDir returns the directory for persistent log files.
func (c *Config) LogDir() string {
	return filepath.Join(c.Paths.StateDir, "logs")
}

// LockPath returns the run lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "shelver.lock")
}

// ReservedPaths lists absolute paths the scanner must never treat as items.
func (c *Config) ReservedPaths() []string {
	return []string{c.Paths.StateDir, c.QueueDir(), c.StorePath(), c.Paths.OutputDir}
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode renders the effective configuration as TOML.
func (c *Config) Encode() ([]byte, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return data, nil
}
