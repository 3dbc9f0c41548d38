package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"shelver/internal/config"
	"shelver/internal/enrichment"
	"shelver/internal/hints"
	"shelver/internal/logging"
	"shelver/internal/organizer"
	"shelver/internal/preflight"
	"shelver/internal/review"
	"shelver/internal/scanner"
	"shelver/internal/services"
	"shelver/internal/tracking"
)

// Checkpoint is called between two stages of a full run. Returning an error
// stops the run before next starts.
type Checkpoint func(ctx context.Context, completed, next Stage) error

// Option configures optional Runner behavior.
type Option func(*Runner)

// WithCheckpoint installs a pause between stages.
func WithCheckpoint(checkpoint Checkpoint) Option {
	return func(r *Runner) {
		r.checkpoint = checkpoint
	}
}

// WithPlacer replaces the default library placement collaborator.
func WithPlacer(placer organizer.Placer) Option {
	return func(r *Runner) {
		r.placer = placer
	}
}

// WithGuesser replaces the folder-derived metadata guesser.
func WithGuesser(guesser hints.Guesser) Option {
	return func(r *Runner) {
		r.guesser = guesser
	}
}

// Runner executes pipeline passes against one configuration.
type Runner struct {
	cfg        *config.Config
	logger     *slog.Logger
	checkpoint Checkpoint
	placer     organizer.Placer
	guesser    hints.Guesser
}

// NewRunner constructs a Runner.
func NewRunner(cfg *config.Config, logger *slog.Logger, opts ...Option) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	r := &Runner{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "workflow"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes every stage in order.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	return r.run(ctx, Stages())
}

// RunStage executes a single stage under the same lock and checks as a full
// run.
func (r *Runner) RunStage(ctx context.Context, stage Stage) (Summary, error) {
	if _, err := ParseStage(string(stage)); err != nil {
		return Summary{}, services.Wrap(services.ErrConfiguration, "workflow", "select stage", err.Error(), nil)
	}
	return r.run(ctx, []Stage{stage})
}

func (r *Runner) run(ctx context.Context, stages []Stage) (Summary, error) {
	if r.cfg == nil {
		return Summary{}, services.Wrap(services.ErrConfiguration, "workflow", "start", "config is nil", nil)
	}
	runID := uuid.NewString()
	ctx = services.WithRunID(ctx, runID)
	logger := logging.WithContext(ctx, r.logger)

	summary := Summary{RunID: runID, DryRun: r.cfg.DryRun, StartedAt: time.Now()}
	defer func() {
		summary.Duration = time.Since(summary.StartedAt)
	}()

	summary.Preflight = preflight.RunAll(ctx, r.cfg)
	if err := r.reportPreflight(logger, summary.Preflight); err != nil {
		return summary, err
	}

	if !r.cfg.DryRun {
		if err := r.cfg.EnsureDirectories(); err != nil {
			return summary, services.Wrap(services.ErrFatal, "workflow", "ensure directories", "could not create state or output directories", err)
		}
	}

	lock, err := acquireLock(r.cfg)
	if err != nil {
		return summary, err
	}
	defer func() {
		if err := lock.release(); err != nil {
			logger.Warn("failed to release run lock",
				logging.Error(err),
				logging.String("lock", r.cfg.LockPath()),
			)
		}
	}()

	store, err := tracking.Open(r.cfg)
	if err != nil {
		return summary, services.Wrap(services.ErrFatal, "workflow", "open store", "tracking store unavailable", err)
	}
	defer store.Close()

	p, err := r.newPipeline(store)
	if err != nil {
		return summary, err
	}

	logger.Info("run started",
		logging.Bool("dry_run", r.cfg.DryRun),
		logging.Int("stages", len(stages)),
		logging.String(logging.FieldEventType, "run_started"),
	)

	for i, stage := range stages {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if i > 0 && r.checkpoint != nil {
			if err := r.checkpoint(ctx, stages[i-1], stage); err != nil {
				logger.Info("run stopped at checkpoint",
					logging.String("completed", string(stages[i-1])),
					logging.String("next", string(stage)),
					logging.Error(err),
				)
				return summary, err
			}
		}

		start := time.Now()
		if err := p.execute(ctx, stage, &summary); err != nil {
			stageLogger := logging.WithContext(services.WithStage(ctx, string(stage)), r.logger)
			logging.ErrorWithContext(stageLogger, "stage failed", "stage_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorKind, services.ErrorKind(err)),
				logging.String(logging.FieldErrorHint, "fix the reported problem and rerun; completed work is kept"),
			)
			return summary, err
		}
		summary.Completed = append(summary.Completed, StageTiming{Stage: stage, Duration: time.Since(start)})
	}

	logger.Info("run complete",
		logging.Duration("duration", time.Since(summary.StartedAt)),
		logging.Int("quarantined", summary.Quarantined()),
		logging.String(logging.FieldEventType, "run_complete"),
	)
	return summary, nil
}

func (r *Runner) reportPreflight(logger *slog.Logger, results []preflight.Result) error {
	for _, result := range results {
		if result.Passed {
			logger.Debug("preflight check passed",
				logging.String("check", result.Name),
				logging.String("detail", result.Detail),
				logging.String(logging.FieldEventType, "preflight_passed"),
			)
			continue
		}
		logger.Error("preflight check failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldEventType, "preflight_failed"),
			logging.String(logging.FieldErrorHint, "fix the reported path and rerun"),
		)
	}
	return preflight.Failures(results)
}

// pipeline holds the stage components bound to one open store.
type pipeline struct {
	scanner   *scanner.Scanner
	builder   *enrichment.Builder
	ingestor  *enrichment.Ingestor
	router    *review.Router
	organizer *organizer.Organizer
}

func (r *Runner) newPipeline(store *tracking.Store) (*pipeline, error) {
	scan, err := scanner.New(r.cfg, store, r.logger)
	if err != nil {
		return nil, err
	}
	ingestor, err := enrichment.NewIngestor(r.cfg, store, r.logger)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "workflow", "build ingestor", "invalid enrichment settings", err)
	}
	router, err := review.NewRouter(r.cfg, store, r.logger)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "workflow", "build router", "invalid enrichment settings", err)
	}
	placer := r.placer
	if placer == nil {
		placer = organizer.NewLibraryPlacer(r.cfg, r.logger)
	}
	org, err := organizer.NewOrganizerWithPlacer(r.cfg, store, scan, placer, r.logger)
	if err != nil {
		return nil, err
	}
	return &pipeline{
		scanner:   scan,
		builder:   enrichment.NewBuilder(r.cfg, store, scan, r.guesser, r.logger),
		ingestor:  ingestor,
		router:    router,
		organizer: org,
	}, nil
}

func (p *pipeline) execute(ctx context.Context, stage Stage, summary *Summary) error {
	var err error
	switch stage {
	case StageScan:
		summary.Scan, err = p.scanner.Reconcile(ctx)
	case StageRequest:
		summary.Requests, err = p.builder.Build(ctx)
	case StageIngest:
		summary.Ingest, err = p.ingestor.Ingest(ctx)
	case StageRoute:
		summary.Review, err = p.router.Route(ctx)
	case StageOrganize:
		summary.Organize, err = p.organizer.Organize(ctx)
	default:
		err = errors.New("unknown stage")
	}
	if err != nil {
		return fmt.Errorf("%s: %w", stage, err)
	}
	return nil
}
