package enrichment

import (
	"context"
	"log/slog"

	"shelver/internal/config"
	"shelver/internal/logging"
	"shelver/internal/services"
	"shelver/internal/textutil"
	"shelver/internal/tracking"
)

// closestMatchThreshold is the minimum similarity for suggesting a tracked
// path when a response names an unknown item.
const closestMatchThreshold = 0.5

// IngestResult summarizes one ingestion pass.
type IngestResult struct {
	Accepted   int
	Failed     int
	Malformed  int
	Unknown    int
	Duplicates int
	// Unchanged counts well-formed records whose item was not in
	// ready_for_ai, so no transition applied.
	Unchanged int
}

// Ingestor applies the response queue to the tracking store.
type Ingestor struct {
	cfg    *config.Config
	store  *tracking.Store
	policy *Policy
	logger *slog.Logger
}

// NewIngestor constructs an Ingestor.
func NewIngestor(cfg *config.Config, store *tracking.Store, logger *slog.Logger) (*Ingestor, error) {
	policy, err := NewPolicy(cfg.Enrichment)
	if err != nil {
		return nil, err
	}
	return &Ingestor{
		cfg:    cfg,
		store:  store,
		policy: policy,
		logger: logging.NewComponentLogger(logger, "response-ingestor"),
	}, nil
}

// Policy returns the confidence policy in use.
func (i *Ingestor) Policy() *Policy {
	return i.policy
}

// Ingest reads the response queue and moves ready_for_ai items to
// ai_returned or ai_failed. Failed records are moved to the manual-review
// queue, replacing any earlier manual record for the same item, and removed
// from the response queue. Malformed lines and records for unknown items stay
// where they are.
//
// Writes happen in the order store, manual queue, response queue, so an
// interrupted pass is completed by the next run without losing or
// duplicating a record.
func (i *Ingestor) Ingest(ctx context.Context) (IngestResult, error) {
	ctx = services.WithStage(ctx, "ingest")
	logger := logging.WithContext(ctx, i.logger)

	var result IngestResult
	entries, err := LoadQueue(i.cfg.ResponseQueuePath())
	if err != nil {
		return result, err
	}
	if len(entries) == 0 {
		logger.Debug("response queue empty")
		return result, nil
	}
	entries, result.Duplicates = DedupeEntries(entries, "response", logger)

	// Status markers outside the known vocabulary make the record malformed.
	for idx := range entries {
		if entries[idx].Malformed() {
			continue
		}
		if err := i.policy.CheckStatus(entries[idx].Record); err != nil {
			entries[idx].Err = err
			entries[idx].Record = nil
		}
	}
	result.Malformed = WarnMalformed(logger, "response", entries)

	manual, err := LoadQueue(i.cfg.ManualQueuePath())
	if err != nil {
		return result, err
	}
	manualChanged := false

	var knownPaths []string
	keep := make([]Entry, 0, len(entries))
	for _, entry := range entries {
		if entry.Malformed() {
			keep = append(keep, entry)
			continue
		}
		rec := entry.Record
		itemCtx := services.WithItem(ctx, rec.RelativePath)
		itemLogger := logging.WithContext(itemCtx, i.logger)

		item, err := i.store.GetByPath(itemCtx, rec.RelativePath)
		if err != nil {
			return result, services.Wrap(services.ErrFatal, "ingest", "lookup", rec.RelativePath, err)
		}
		if item == nil {
			result.Unknown++
			if knownPaths == nil {
				knownPaths, err = i.trackedPaths(ctx)
				if err != nil {
					return result, err
				}
			}
			i.warnUnknown(itemLogger, rec.RelativePath, entry.Line.Number, knownPaths)
			keep = append(keep, entry)
			continue
		}

		decision := i.policy.Evaluate(rec)
		if decision.Failed {
			result.Failed++
			if err := i.markFailed(itemCtx, item, decision, itemLogger); err != nil {
				return result, err
			}
			var replaced *ResponseRecord
			var changed bool
			manual, replaced, changed, err = ReplaceOrAppend(manual, rec.ToManual(decision.Reason()))
			if err != nil {
				return result, err
			}
			if changed {
				manualChanged = true
				if replaced != nil {
					itemLogger.Info("manual record replaced by newer response",
						logging.String("previous_manual_status", replaced.ManualStatus),
					)
				}
			}
			continue
		}

		keep = append(keep, entry)
		if item.State != tracking.StateReadyForAI {
			result.Unchanged++
			itemLogger.Debug("response already applied or item not awaiting enrichment",
				logging.String("state", string(item.State)),
			)
			continue
		}
		result.Accepted++
		if i.cfg.DryRun {
			continue
		}
		metadata, err := rec.Metadata()
		if err != nil {
			return result, services.Wrap(services.ErrFatal, "ingest", "encode metadata", rec.RelativePath, err)
		}
		if _, err := i.store.Transition(itemCtx, item.Identity, tracking.StateAIReturned, tracking.TransitionOptions{
			Metadata:   metadata,
			ClearError: true,
		}); err != nil {
			return result, services.Wrap(services.ErrFatal, "ingest", "transition", rec.RelativePath, err)
		}
		itemLogger.Info("metadata accepted",
			logging.String("from_state", string(tracking.StateReadyForAI)),
			logging.String("to_state", string(tracking.StateAIReturned)),
		)
	}

	if !i.cfg.DryRun {
		if manualChanged {
			if err := WriteQueue(i.cfg.ManualQueuePath(), manual); err != nil {
				return result, err
			}
		}
		if len(keep) != len(entries) || result.Duplicates > 0 {
			if err := WriteQueue(i.cfg.ResponseQueuePath(), keep); err != nil {
				return result, err
			}
		}
	}

	logger.Info("responses ingested",
		logging.Int("accepted", result.Accepted),
		logging.Int("failed", result.Failed),
		logging.Int("malformed", result.Malformed),
		logging.Int("unknown", result.Unknown),
		logging.Int("unchanged", result.Unchanged),
		logging.Bool("dry_run", i.cfg.DryRun),
	)
	return result, nil
}

// markFailed moves a ready_for_ai item to ai_failed. Items in any other state
// keep their state; their record still goes to manual review.
func (i *Ingestor) markFailed(ctx context.Context, item *tracking.Item, decision Decision, logger *slog.Logger) error {
	logging.WarnWithContext(logger, "response routed to manual review", "ingest_policy_failure",
		logging.String("reason", decision.Reason()),
		logging.String("state", string(item.State)),
		logging.String(logging.FieldImpact, "item waits for manual correction"),
		logging.String(logging.FieldErrorHint, "edit the manual review queue and set manual_status to ready"),
	)
	if item.State != tracking.StateReadyForAI || i.cfg.DryRun {
		return nil
	}
	if _, err := i.store.Transition(ctx, item.Identity, tracking.StateAIFailed, tracking.TransitionOptions{
		LastError:    decision.Reason(),
		CountAttempt: true,
	}); err != nil {
		return services.Wrap(services.ErrFatal, "ingest", "transition", item.RelativePath, err)
	}
	return nil
}

func (i *Ingestor) trackedPaths(ctx context.Context) ([]string, error) {
	items, err := i.store.List(ctx)
	if err != nil {
		return nil, services.Wrap(services.ErrFatal, "ingest", "list items", "tracking store unreadable", err)
	}
	paths := make([]string, 0, len(items))
	for _, item := range items {
		paths = append(paths, item.RelativePath)
	}
	return paths, nil
}

func (i *Ingestor) warnUnknown(logger *slog.Logger, relativePath string, line int, known []string) {
	attrs := []logging.Attr{
		logging.Int("line", line),
		logging.String(logging.FieldErrorKind, services.ErrorKind(services.ErrNotFound)),
		logging.String(logging.FieldImpact, "record skipped and left in the response queue"),
		logging.String(logging.FieldErrorHint, "check relative_path against requests.jsonl"),
	}
	if match, score := textutil.ClosestMatch(relativePath, known, closestMatchThreshold); match != "" {
		attrs = append(attrs, logging.String("closest_match", match), logging.Float64("similarity", score))
	}
	logging.WarnWithContext(logger, "response names an untracked item", "ingest_unknown_item", attrs...)
}
