package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) applyEnv() {
	if value, ok := lookupEnv("INPUT_PATH"); ok {
		c.Paths.InputDir = value
	}
	if value, ok := lookupEnv("OUTPUT_PATH"); ok {
		c.Paths.OutputDir = value
	}
	if value, ok := lookupEnv("CONFIG_PATH"); ok {
		c.Paths.StateDir = value
	}
	if value, ok := lookupEnv("DEBUG"); ok && strings.EqualFold(value, "true") {
		c.Logging.Level = "debug"
	}
	if value, ok := lookupEnv("DRY_RUN"); ok && strings.EqualFold(value, "true") {
		c.DryRun = true
	}
}

func lookupEnv(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	return value, value != ""
}

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeScanner()
	c.normalizeEnrichment()
	c.normalizeOrganizer()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.InputDir, err = expandPath(strings.TrimSpace(c.Paths.InputDir)); err != nil {
		return fmt.Errorf("paths.input_dir: %w", err)
	}
	if c.Paths.OutputDir, err = expandPath(strings.TrimSpace(c.Paths.OutputDir)); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" && c.Paths.InputDir != "" {
		c.Paths.StateDir = filepath.Join(c.Paths.InputDir, defaultStateDirName)
	}
	if c.Paths.StateDir, err = expandPath(strings.TrimSpace(c.Paths.StateDir)); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeScanner() {
	exts := make([]string, 0, len(c.Scanner.MediaExtensions))
	seen := make(map[string]struct{}, len(c.Scanner.MediaExtensions))
	for _, ext := range c.Scanner.MediaExtensions {
		normalized := strings.ToLower(strings.TrimSpace(ext))
		if normalized == "" {
			continue
		}
		if !strings.HasPrefix(normalized, ".") {
			normalized = "." + normalized
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		exts = append(exts, normalized)
	}
	if len(exts) == 0 {
		exts = append(exts, defaultMediaExtensions...)
	}
	c.Scanner.MediaExtensions = exts
	c.Scanner.DiscFolderPattern = strings.TrimSpace(c.Scanner.DiscFolderPattern)
	if c.Scanner.DiscFolderPattern == "" {
		c.Scanner.DiscFolderPattern = defaultDiscFolderPattern
	}
}

func (c *Config) normalizeEnrichment() {
	c.Enrichment.RequiredFields = dedupeLower(c.Enrichment.RequiredFields)
	c.Enrichment.FailureStatuses = dedupeLower(c.Enrichment.FailureStatuses)
	if len(c.Enrichment.FailureStatuses) == 0 {
		c.Enrichment.FailureStatuses = append([]string(nil), defaultFailureStatuses...)
	}
	c.Enrichment.MinConfidence = strings.ToLower(strings.TrimSpace(c.Enrichment.MinConfidence))
	if c.Enrichment.MinConfidence == "" {
		c.Enrichment.MinConfidence = defaultMinConfidence
	}
}

func (c *Config) normalizeOrganizer() {
	if c.Organizer.Parallelism == 0 {
		c.Organizer.Parallelism = defaultParallelism
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func dedupeLower(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		normalized := strings.ToLower(strings.TrimSpace(value))
		if normalized == "" {
			continue
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		out = append(out, normalized)
	}
	return out
}
