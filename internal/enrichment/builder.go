package enrichment

import (
	"context"
	"log/slog"

	"shelver/internal/config"
	"shelver/internal/hints"
	"shelver/internal/logging"
	"shelver/internal/queuefile"
	"shelver/internal/scanner"
	"shelver/internal/services"
	"shelver/internal/tracking"
)

// Inspector reports the current media layout of a tracked folder.
type Inspector interface {
	Inspect(relativePath string) (scanner.Candidate, bool, error)
}

// BuildResult summarizes a request-queue rebuild.
type BuildResult struct {
	Requested int
	Promoted  int
	// AwaitingIngest counts items left out because the response queue
	// already holds a record for them.
	AwaitingIngest int
}

// Builder rebuilds the pending-request queue from store state.
type Builder struct {
	cfg       *config.Config
	store     *tracking.Store
	inspector Inspector
	guesser   hints.Guesser
	logger    *slog.Logger
}

// NewBuilder constructs a Builder. A nil guesser falls back to folder hints.
func NewBuilder(cfg *config.Config, store *tracking.Store, inspector Inspector, guesser hints.Guesser, logger *slog.Logger) *Builder {
	if guesser == nil {
		guesser = hints.FolderGuesser{}
	}
	return &Builder{
		cfg:       cfg,
		store:     store,
		inspector: inspector,
		guesser:   guesser,
		logger:    logging.NewComponentLogger(logger, "request-builder"),
	}
}

// Build truncates and rewrites the request queue with one line per accepted
// or ready_for_ai item, rewrites the instruction document, then promotes
// accepted items to ready_for_ai. The queue is a projection of the store, so
// repeated builds never accumulate duplicate or stale requests.
func (b *Builder) Build(ctx context.Context) (BuildResult, error) {
	ctx = services.WithStage(ctx, "request")
	logger := logging.WithContext(ctx, b.logger)

	items, err := b.store.List(ctx, tracking.StateAccepted, tracking.StateReadyForAI)
	if err != nil {
		return BuildResult{}, services.Wrap(services.ErrFatal, "request", "list items", "tracking store unreadable", err)
	}
	responses, err := LoadQueue(b.cfg.ResponseQueuePath())
	if err != nil {
		return BuildResult{}, err
	}
	answered := PathSet(responses)

	var result BuildResult
	lines := make([][]byte, 0, len(items))
	var promote []*tracking.Item
	for _, item := range items {
		if _, ok := answered[item.RelativePath]; ok {
			result.AwaitingIngest++
			logger.Debug("request withheld; response awaiting ingest",
				logging.String(logging.FieldItem, item.RelativePath),
				logging.String("state", string(item.State)),
			)
			continue
		}
		record := RequestRecord{
			Identity:     item.Identity,
			RelativePath: item.RelativePath,
			Hints:        b.guesser.Guess(b.source(item.RelativePath, logger)),
		}
		line, err := queuefile.EncodeLine(record)
		if err != nil {
			return BuildResult{}, services.Wrap(services.ErrFatal, "request", "encode", item.RelativePath, err)
		}
		lines = append(lines, line)
		if item.State == tracking.StateAccepted {
			promote = append(promote, item)
		}
	}
	result.Requested = len(lines)

	if b.cfg.DryRun {
		result.Promoted = len(promote)
		logger.Info("request queue preview",
			logging.Int("requests", result.Requested),
			logging.Int("would_promote", result.Promoted),
			logging.Bool("dry_run", true),
		)
		return result, nil
	}

	if err := queuefile.Write(b.cfg.RequestQueuePath(), lines); err != nil {
		return BuildResult{}, services.Wrap(services.ErrFatal, "request", "write queue", b.cfg.RequestQueuePath(), err)
	}
	if err := WriteInstructions(b.cfg.InstructionsPath()); err != nil {
		return BuildResult{}, err
	}

	for _, item := range promote {
		if _, err := b.store.Transition(ctx, item.Identity, tracking.StateReadyForAI, tracking.TransitionOptions{}); err != nil {
			return result, services.Wrap(services.ErrFatal, "request", "promote", item.RelativePath, err)
		}
		result.Promoted++
		logger.Debug("item promoted",
			logging.String(logging.FieldItem, item.RelativePath),
			logging.String("from_state", string(tracking.StateAccepted)),
			logging.String("to_state", string(tracking.StateReadyForAI)),
		)
	}

	logger.Info("request queue rebuilt",
		logging.Int("requests", result.Requested),
		logging.Int("promoted", result.Promoted),
		logging.Int("awaiting_ingest", result.AwaitingIngest),
	)
	return result, nil
}

func (b *Builder) source(relativePath string, logger *slog.Logger) hints.Source {
	src := hints.Source{RelativePath: relativePath}
	if b.inspector == nil {
		return src
	}
	candidate, ok, err := b.inspector.Inspect(relativePath)
	if err != nil {
		logger.Debug("cannot inspect item folder for hints",
			logging.String(logging.FieldItem, relativePath),
			logging.Error(err),
		)
		return src
	}
	if ok {
		src.MediaFiles = candidate.MediaFiles
	}
	return src
}
