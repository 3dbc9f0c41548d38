package organizer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"shelver/internal/config"
	"shelver/internal/fileutil"
	"shelver/internal/logging"
	"shelver/internal/services"
)

// Placement describes a completed placement.
type Placement struct {
	Destination string
	Files       int
	Copied      int
	Bytes       int64
}

// Placer relocates an item's files according to its metadata.
type Placer interface {
	// Destination reports where Place would put the item without touching
	// the filesystem.
	Destination(metadata json.RawMessage) (string, error)
	// Place copies files (slash-separated, relative to sourceDir) to the
	// destination derived from metadata.
	Place(ctx context.Context, sourceDir string, files []string, metadata json.RawMessage) (Placement, error)
}

// LibraryPlacer copies items into an Author/Series/Title tree under the
// output directory.
type LibraryPlacer struct {
	outputDir   string
	parallelism int
	overwrite   bool
	verify      bool
	logger      *slog.Logger
}

// NewLibraryPlacer builds a LibraryPlacer from organizer settings.
func NewLibraryPlacer(cfg *config.Config, logger *slog.Logger) *LibraryPlacer {
	parallelism := cfg.Organizer.Parallelism
	if parallelism <= 0 {
		parallelism = 1
	}
	return &LibraryPlacer{
		outputDir:   cfg.Paths.OutputDir,
		parallelism: parallelism,
		overwrite:   cfg.Organizer.OverwriteExisting,
		verify:      cfg.Organizer.VerifyCopies,
		logger:      logging.NewComponentLogger(logger, "library-placer"),
	}
}

// Destination implements Placer.
func (p *LibraryPlacer) Destination(metadata json.RawMessage) (string, error) {
	meta, err := ParseBookMetadata(metadata)
	if err != nil {
		return "", services.Wrap(services.ErrPlacement, "organize", "parse metadata", "stored metadata unusable", err)
	}
	target := filepath.Join(p.outputDir, meta.RelativeDestination())
	if err := ValidateDestination(p.outputDir, target); err != nil {
		return "", err
	}
	return target, nil
}

// Place implements Placer. Files already present at the destination with the
// same size are kept, so a placement interrupted part-way resumes cleanly.
func (p *LibraryPlacer) Place(ctx context.Context, sourceDir string, files []string, metadata json.RawMessage) (Placement, error) {
	target, err := p.Destination(metadata)
	if err != nil {
		return Placement{}, err
	}
	if len(files) == 0 {
		return Placement{}, services.Wrap(services.ErrPlacement, "organize", "collect files", "source folder has no files", nil)
	}
	if err := os.MkdirAll(target, 0o755); err != nil {
		return Placement{}, placementError("create destination", target, err)
	}

	logger := logging.WithContext(ctx, p.logger)
	var copied atomic.Int64
	var total atomic.Int64
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(p.parallelism)
	for _, rel := range files {
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			src := filepath.Join(sourceDir, filepath.FromSlash(rel))
			dst := filepath.Join(target, filepath.FromSlash(rel))
			size, done, err := p.copyOne(src, dst)
			if err != nil {
				return placementError("copy "+rel, dst, err)
			}
			if done {
				copied.Add(1)
				total.Add(size)
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return Placement{}, err
	}

	placement := Placement{
		Destination: target,
		Files:       len(files),
		Copied:      int(copied.Load()),
		Bytes:       total.Load(),
	}
	logger.Debug("files placed",
		logging.String("destination", target),
		logging.Int("files", placement.Files),
		logging.Int("copied", placement.Copied),
		logging.String("size", humanize.Bytes(uint64(placement.Bytes))),
	)
	return placement, nil
}

// copyOne copies src to dst unless an equal-sized file is already there. It
// reports the bytes copied and whether a copy happened.
func (p *LibraryPlacer) copyOne(src, dst string) (int64, bool, error) {
	info, err := os.Stat(src)
	if err != nil {
		return 0, false, fmt.Errorf("stat source: %w", err)
	}
	existing, err := os.Stat(dst)
	switch {
	case err == nil && !p.overwrite:
		if existing.Size() == info.Size() {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("destination exists with different size (%s vs %s); set organizer.overwrite_existing to replace it",
			humanize.Bytes(uint64(existing.Size())), humanize.Bytes(uint64(info.Size())))
	case err != nil && !errors.Is(err, fs.ErrNotExist):
		return 0, false, fmt.Errorf("stat destination: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return 0, false, err
	}
	written, err := fileutil.CopyFile(src, dst, fileutil.CopyOptions{Verify: p.verify})
	if err != nil {
		return 0, false, err
	}
	return written, true, nil
}

func placementError(op, path string, err error) error {
	if isLibraryUnavailable(err) {
		return services.Wrap(services.ErrTransient, "organize", op, "library unavailable at "+path, err)
	}
	return services.Wrap(services.ErrPlacement, "organize", op, path, err)
}
