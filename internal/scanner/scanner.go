// Package scanner discovers audiobook folders under the input root and
// reconciles the tracking store with what exists on disk.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"shelver/internal/config"
	"shelver/internal/logging"
	"shelver/internal/media"
	"shelver/internal/services"
	"shelver/internal/tracking"
)

// Candidate is an eligible folder found under the input root.
type Candidate struct {
	RelativePath string
	AbsolutePath string
	// MediaFiles lists media file paths relative to the candidate folder;
	// files inside disc subfolders keep their subfolder prefix.
	MediaFiles []string
	// DiscFolders names disc-style subfolders that contain media.
	DiscFolders []string
}

// Result summarizes a reconciliation pass.
type Result struct {
	Added     []string
	Removed   []string
	Unchanged int
}

// Scanner walks the input root and keeps the tracking store in sync.
type Scanner struct {
	cfg      *config.Config
	store    *tracking.Store
	matcher  *media.Matcher
	reserved []string
	logger   *slog.Logger
}

// New constructs a Scanner.
func New(cfg *config.Config, store *tracking.Store, logger *slog.Logger) (*Scanner, error) {
	matcher, err := media.NewMatcher(cfg.Scanner)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "scan", "build matcher", "invalid scanner settings", err)
	}
	reserved := make([]string, 0, len(cfg.ReservedPaths()))
	for _, p := range cfg.ReservedPaths() {
		if p != "" {
			reserved = append(reserved, filepath.Clean(p))
		}
	}
	return &Scanner{
		cfg:      cfg,
		store:    store,
		matcher:  matcher,
		reserved: reserved,
		logger:   logging.NewComponentLogger(logger, "scanner"),
	}, nil
}

// Discover enumerates eligible folders breadth-first. Disc subfolders are
// folded into their parent and never reported on their own. Unreadable
// subdirectories are logged and skipped; an unreadable root is fatal.
func (s *Scanner) Discover(ctx context.Context) ([]Candidate, error) {
	root := filepath.Clean(s.cfg.Paths.InputDir)
	if _, err := os.ReadDir(root); err != nil {
		return nil, services.Wrap(services.ErrFatal, "scan", "read input root", root, err)
	}

	var candidates []Candidate
	queue := []string{root}
	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		dir := queue[0]
		queue = queue[1:]

		entries, err := os.ReadDir(dir)
		if err != nil {
			logging.WarnWithContext(s.logger, "skipping unreadable directory", "scan_dir_unreadable",
				logging.String("path", dir),
				logging.Error(err),
				logging.String(logging.FieldImpact, "items below this directory are not discovered this run"),
				logging.String(logging.FieldErrorHint, "check directory permissions"),
			)
			continue
		}

		var children []string
		for _, entry := range entries {
			if !entry.IsDir() || s.matcher.IsIgnored(entry.Name()) {
				continue
			}
			child := filepath.Join(dir, entry.Name())
			if s.isReserved(child) {
				continue
			}
			children = append(children, child)
		}

		if dir != root {
			if candidate, ok := s.inspectEntries(root, dir, entries); ok {
				candidates = append(candidates, candidate)
				for _, disc := range candidate.DiscFolders {
					children = removePath(children, filepath.Join(dir, disc))
				}
			}
		}
		queue = append(queue, children...)
	}
	return candidates, nil
}

// Inspect evaluates a single tracked folder, returning false when it is gone
// or no longer eligible.
func (s *Scanner) Inspect(relativePath string) (Candidate, bool, error) {
	normalized, err := tracking.NormalizeRelativePath(relativePath)
	if err != nil {
		return Candidate{}, false, err
	}
	root := filepath.Clean(s.cfg.Paths.InputDir)
	dir := filepath.Join(root, filepath.FromSlash(normalized))
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Candidate{}, false, nil
		}
		return Candidate{}, false, err
	}
	candidate, ok := s.inspectEntries(root, dir, entries)
	return candidate, ok, nil
}

func (s *Scanner) inspectEntries(root, dir string, entries []os.DirEntry) (Candidate, bool) {
	var direct []string
	var discs []string
	var discFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() {
			if s.matcher.IsMedia(name) {
				direct = append(direct, name)
			}
			continue
		}
		if !s.matcher.IsDiscFolder(name) {
			continue
		}
		files := s.directMedia(filepath.Join(dir, name))
		if len(files) == 0 {
			continue
		}
		discs = append(discs, name)
		for _, f := range files {
			discFiles = append(discFiles, path.Join(name, f))
		}
	}
	if len(direct) == 0 && len(discs) == 0 {
		return Candidate{}, false
	}

	rel, err := filepath.Rel(root, dir)
	if err != nil {
		return Candidate{}, false
	}
	files := append(direct, discFiles...)
	sort.Strings(files)
	sort.Strings(discs)
	return Candidate{
		RelativePath: filepath.ToSlash(rel),
		AbsolutePath: dir,
		MediaFiles:   files,
		DiscFolders:  discs,
	}, true
}

func (s *Scanner) directMedia(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && s.matcher.IsMedia(entry.Name()) {
			files = append(files, entry.Name())
		}
	}
	return files
}

// Reconcile adds newly discovered folders as accepted and removes items
// whose backing folder no longer exists. Running it twice over an unchanged
// tree changes nothing. In dry-run mode the result is reported but the store
// is left untouched.
func (s *Scanner) Reconcile(ctx context.Context) (Result, error) {
	ctx = services.WithStage(ctx, "scan")
	logger := logging.WithContext(ctx, s.logger)

	candidates, err := s.Discover(ctx)
	if err != nil {
		return Result{}, err
	}
	existing, err := s.store.List(ctx)
	if err != nil {
		return Result{}, services.Wrap(services.ErrFatal, "scan", "list items", "tracking store unreadable", err)
	}
	known := make(map[string]*tracking.Item, len(existing))
	for _, item := range existing {
		known[item.Identity] = item
	}

	var result Result
	for _, candidate := range candidates {
		identity, err := tracking.IdentityFor(candidate.RelativePath)
		if err != nil {
			logging.WarnWithContext(logger, "skipping folder with unusable path", "scan_invalid_path",
				logging.String(logging.FieldItem, candidate.RelativePath),
				logging.Error(err),
			)
			continue
		}
		if _, ok := known[identity]; ok {
			result.Unchanged++
			continue
		}
		if !s.cfg.DryRun {
			if _, err := s.store.Upsert(ctx, identity, candidate.RelativePath, tracking.StateAccepted); err != nil {
				return result, services.Wrap(services.ErrFatal, "scan", "add item", candidate.RelativePath, err)
			}
		}
		result.Added = append(result.Added, candidate.RelativePath)
		logger.Info("item discovered",
			logging.String(logging.FieldItem, candidate.RelativePath),
			logging.Int("media_files", len(candidate.MediaFiles)),
			logging.Int("disc_folders", len(candidate.DiscFolders)),
			logging.Bool("dry_run", s.cfg.DryRun),
		)
	}

	root := filepath.Clean(s.cfg.Paths.InputDir)
	for _, item := range existing {
		gone, err := backingPathGone(filepath.Join(root, filepath.FromSlash(item.RelativePath)))
		if err != nil {
			logging.WarnWithContext(logger, "cannot confirm item folder", "scan_stat_failed",
				logging.String(logging.FieldItem, item.RelativePath),
				logging.Error(err),
				logging.String(logging.FieldImpact, "item kept in store"),
			)
			continue
		}
		if !gone {
			continue
		}
		if !s.cfg.DryRun {
			if _, err := s.store.Remove(ctx, item.Identity); err != nil {
				return result, services.Wrap(services.ErrFatal, "scan", "remove item", item.RelativePath, err)
			}
		}
		result.Removed = append(result.Removed, item.RelativePath)
		logger.Info("item removed",
			logging.String(logging.FieldItem, item.RelativePath),
			logging.String("state", string(item.State)),
			logging.String("reason", "backing folder no longer exists"),
			logging.Bool("dry_run", s.cfg.DryRun),
		)
	}

	logger.Info("reconcile complete",
		logging.Int("added", len(result.Added)),
		logging.Int("removed", len(result.Removed)),
		logging.Int("unchanged", result.Unchanged),
	)
	return result, nil
}

func (s *Scanner) isReserved(p string) bool {
	cleaned := filepath.Clean(p)
	for _, reserved := range s.reserved {
		if cleaned == reserved || strings.HasPrefix(cleaned, reserved+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func backingPathGone(p string) (bool, error) {
	_, err := os.Stat(p)
	if err == nil {
		return false, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return true, nil
	}
	return false, fmt.Errorf("stat item folder: %w", err)
}

func removePath(paths []string, target string) []string {
	out := paths[:0]
	for _, p := range paths {
		if p != target {
			out = append(out, p)
		}
	}
	return out
}
