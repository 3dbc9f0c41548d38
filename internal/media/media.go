// Package media recognizes audiobook media files and disc-style subfolders.
package media

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"shelver/internal/config"
)

// Matcher classifies directory entries by name.
type Matcher struct {
	extensions map[string]struct{}
	discFolder *regexp.Regexp
	skipHidden bool
}

// NewMatcher builds a Matcher from scanner settings.
func NewMatcher(cfg config.Scanner) (*Matcher, error) {
	pattern, err := regexp.Compile(cfg.DiscFolderPattern)
	if err != nil {
		return nil, fmt.Errorf("compile disc folder pattern: %w", err)
	}
	exts := make(map[string]struct{}, len(cfg.MediaExtensions))
	for _, ext := range cfg.MediaExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		exts[ext] = struct{}{}
	}
	return &Matcher{extensions: exts, discFolder: pattern, skipHidden: cfg.SkipHidden}, nil
}

// IsMedia reports whether a file name carries a recognized media extension.
// Hidden files never count when hidden entries are skipped.
func (m *Matcher) IsMedia(name string) bool {
	if m.IsIgnored(name) {
		return false
	}
	_, ok := m.extensions[strings.ToLower(filepath.Ext(name))]
	return ok
}

// IsDiscFolder reports whether a directory name looks like a disc or part
// subfolder ("Disc 1", "CD02", "Part_3").
func (m *Matcher) IsDiscFolder(name string) bool {
	if m.IsIgnored(name) {
		return false
	}
	return m.discFolder.MatchString(name)
}

// IsIgnored reports whether an entry is hidden and hidden entries are skipped.
func (m *Matcher) IsIgnored(name string) bool {
	return m.skipHidden && strings.HasPrefix(name, ".")
}
