package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// ConfidenceLevels lists the accepted confidence labels in ascending order.
var ConfidenceLevels = []string{"low", "medium", "high"}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateScanner(); err != nil {
		return err
	}
	if err := c.validateEnrichment(); err != nil {
		return err
	}
	if err := c.validateReview(); err != nil {
		return err
	}
	if err := c.validateOrganizer(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if c.Paths.InputDir == "" {
		return errors.New("paths.input_dir must be set (or set INPUT_PATH)")
	}
	if c.Paths.OutputDir == "" {
		return errors.New("paths.output_dir must be set (or set OUTPUT_PATH)")
	}
	info, err := os.Stat(c.Paths.InputDir)
	if err != nil {
		return fmt.Errorf("paths.input_dir %q is not accessible: %w", c.Paths.InputDir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("paths.input_dir %q is not a directory", c.Paths.InputDir)
	}
	if c.Paths.InputDir == c.Paths.OutputDir {
		return errors.New("paths.output_dir must differ from paths.input_dir")
	}
	if within(c.Paths.InputDir, c.Paths.OutputDir) {
		return errors.New("paths.output_dir must not be inside paths.input_dir")
	}
	if within(c.Paths.OutputDir, c.Paths.InputDir) {
		return errors.New("paths.input_dir must not be inside paths.output_dir")
	}
	return nil
}

func (c *Config) validateScanner() error {
	if _, err := regexp.Compile(c.Scanner.DiscFolderPattern); err != nil {
		return fmt.Errorf("scanner.disc_folder_pattern: %w", err)
	}
	return nil
}

func (c *Config) validateEnrichment() error {
	for _, level := range ConfidenceLevels {
		if c.Enrichment.MinConfidence == level {
			return nil
		}
	}
	return fmt.Errorf("enrichment.min_confidence must be one of %s", strings.Join(ConfidenceLevels, ", "))
}

func (c *Config) validateReview() error {
	if c.Review.MaxResubmissions < 0 {
		return errors.New("review.max_resubmissions must be >= 0")
	}
	return nil
}

func (c *Config) validateOrganizer() error {
	if c.Organizer.Parallelism <= 0 {
		return errors.New("organizer.parallelism must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
}

// within reports whether candidate is strictly inside root.
func within(root, candidate string) bool {
	rel, err := filepath.Rel(root, candidate)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}
