package organizer

import (
	"context"
	"log/slog"

	"github.com/dustin/go-humanize"

	"shelver/internal/config"
	"shelver/internal/enrichment"
	"shelver/internal/logging"
	"shelver/internal/media"
	"shelver/internal/scanner"
	"shelver/internal/services"
	"shelver/internal/tracking"
)

// Inspector reports the current media layout of a tracked folder.
type Inspector interface {
	Inspect(relativePath string) (scanner.Candidate, bool, error)
}

// Result summarizes one organize pass.
type Result struct {
	Organized int
	Failed    int
	Bytes     int64
	// Pruned counts response records removed after their item was organized.
	Pruned int
}

// Organizer moves ai_returned items into the library.
type Organizer struct {
	cfg       *config.Config
	store     *tracking.Store
	inspector Inspector
	placer    Placer
	matcher   *media.Matcher
	logger    *slog.Logger
}

// NewOrganizer constructs the organizer with the default LibraryPlacer.
func NewOrganizer(cfg *config.Config, store *tracking.Store, inspector Inspector, logger *slog.Logger) (*Organizer, error) {
	return NewOrganizerWithPlacer(cfg, store, inspector, NewLibraryPlacer(cfg, logger), logger)
}

// NewOrganizerWithPlacer allows injecting the placement collaborator (used in tests).
func NewOrganizerWithPlacer(cfg *config.Config, store *tracking.Store, inspector Inspector, placer Placer, logger *slog.Logger) (*Organizer, error) {
	matcher, err := media.NewMatcher(cfg.Scanner)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "organize", "build matcher", "invalid scanner settings", err)
	}
	return &Organizer{
		cfg:       cfg,
		store:     store,
		inspector: inspector,
		placer:    placer,
		matcher:   matcher,
		logger:    logging.NewComponentLogger(logger, "organizer"),
	}, nil
}

// Organize places every ai_returned item. Items are handled one at a time;
// a placement failure is recorded on the item, which stays ai_returned for
// the next run. Only store or queue failures abort the pass.
func (o *Organizer) Organize(ctx context.Context) (Result, error) {
	ctx = services.WithStage(ctx, "organize")
	logger := logging.WithContext(ctx, o.logger)

	var result Result
	items, err := o.store.List(ctx, tracking.StateAIReturned)
	if err != nil {
		return result, services.Wrap(services.ErrFatal, "organize", "list items", "tracking store unreadable", err)
	}
	if len(items) == 0 {
		logger.Debug("no items awaiting organization")
		return result, nil
	}

	organized := make(map[string]struct{}, len(items))
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		itemCtx := services.WithItem(ctx, item.RelativePath)
		placement, err := o.organizeItem(itemCtx, item)
		if err != nil {
			if !services.IsRecoverable(err) {
				return result, err
			}
			result.Failed++
			o.recordFailure(itemCtx, item, err)
			continue
		}
		result.Organized++
		result.Bytes += placement.Bytes
		organized[item.RelativePath] = struct{}{}
	}

	if !o.cfg.DryRun && len(organized) > 0 {
		pruned, err := o.pruneResponses(organized)
		if err != nil {
			return result, err
		}
		result.Pruned = pruned
	}

	logger.Info("organization pass complete",
		logging.Int("organized", result.Organized),
		logging.Int("failed", result.Failed),
		logging.Int("responses_pruned", result.Pruned),
		logging.String("copied", humanize.Bytes(uint64(result.Bytes))),
		logging.Bool("dry_run", o.cfg.DryRun),
	)
	return result, nil
}

func (o *Organizer) organizeItem(ctx context.Context, item *tracking.Item) (Placement, error) {
	logger := logging.WithContext(ctx, o.logger)
	if !item.HasMetadata() {
		return Placement{}, services.Wrap(services.ErrPlacement, "organize", "load metadata", "item has no stored metadata", nil)
	}

	if o.cfg.DryRun {
		destination, err := o.placer.Destination(item.Metadata)
		if err != nil {
			return Placement{}, err
		}
		logger.Info("would place item", logging.String("destination", destination))
		return Placement{Destination: destination}, nil
	}

	candidate, ok, err := o.inspector.Inspect(item.RelativePath)
	if err != nil {
		return Placement{}, services.Wrap(services.ErrPlacement, "organize", "inspect source", item.RelativePath, err)
	}
	if !ok {
		return Placement{}, services.Wrap(services.ErrPlacement, "organize", "inspect source", "source folder has no media files", nil)
	}
	files, err := collectFiles(candidate, o.matcher)
	if err != nil {
		return Placement{}, services.Wrap(services.ErrPlacement, "organize", "collect files", candidate.AbsolutePath, err)
	}

	placement, err := o.placer.Place(ctx, candidate.AbsolutePath, files, item.Metadata)
	if err != nil {
		return Placement{}, err
	}
	if err := ValidateDestination(o.cfg.Paths.OutputDir, placement.Destination); err != nil {
		return Placement{}, err
	}

	if _, err := o.store.Transition(ctx, item.Identity, tracking.StateOrganized, tracking.TransitionOptions{
		DestinationPath: placement.Destination,
		ClearError:      true,
	}); err != nil {
		return Placement{}, services.Wrap(services.ErrFatal, "organize", "transition", item.RelativePath, err)
	}
	logger.Info("item organized",
		logging.String("destination", placement.Destination),
		logging.Int("files", placement.Files),
		logging.String("size", humanize.Bytes(uint64(placement.Bytes))),
		logging.String("from_state", string(tracking.StateAIReturned)),
		logging.String("to_state", string(tracking.StateOrganized)),
	)
	return placement, nil
}

func (o *Organizer) recordFailure(ctx context.Context, item *tracking.Item, cause error) {
	logger := logging.WithContext(ctx, o.logger)
	logging.WarnWithContext(logger, "placement failed; item will be retried", "organize_placement_failed",
		logging.Error(cause),
		logging.String(logging.FieldErrorKind, services.ErrorKind(cause)),
		logging.String(logging.FieldImpact, "item stays ai_returned"),
		logging.String(logging.FieldErrorHint, "check output_dir permissions and the stored metadata"),
	)
	if o.cfg.DryRun {
		return
	}
	if err := o.store.RecordError(ctx, item.Identity, cause.Error()); err != nil {
		logger.Warn("failed to persist placement error", logging.Error(err))
	}
}

// pruneResponses drops response records for organized items. The records
// were consumed when their items reached ai_returned.
func (o *Organizer) pruneResponses(organized map[string]struct{}) (int, error) {
	entries, err := enrichment.LoadQueue(o.cfg.ResponseQueuePath())
	if err != nil {
		return 0, err
	}
	keep := make([]enrichment.Entry, 0, len(entries))
	for _, entry := range entries {
		if !entry.Malformed() {
			if _, ok := organized[entry.Record.RelativePath]; ok {
				continue
			}
		}
		keep = append(keep, entry)
	}
	pruned := len(entries) - len(keep)
	if pruned == 0 {
		return 0, nil
	}
	if err := enrichment.WriteQueue(o.cfg.ResponseQueuePath(), keep); err != nil {
		return 0, err
	}
	return pruned, nil
}
