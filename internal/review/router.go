package review

import (
	"context"
	"log/slog"

	"shelver/internal/config"
	"shelver/internal/enrichment"
	"shelver/internal/logging"
	"shelver/internal/services"
	"shelver/internal/tracking"
)

// Result summarizes one routing pass.
type Result struct {
	// ToManual counts failed records swept from the response queue.
	ToManual int
	// Resubmitted counts ready records moved back to the response queue.
	Resubmitted int
	// Pending counts manual records still waiting for a human.
	Pending int
	// Capped counts ready records held back by max_resubmissions.
	Capped int
	// Superseded counts ready records dropped because their item already
	// moved past review.
	Superseded int
	Unknown    int
	Malformed  int
}

// Router moves records between the response and manual-review queues.
type Router struct {
	cfg    *config.Config
	store  *tracking.Store
	policy *enrichment.Policy
	logger *slog.Logger
}

// NewRouter constructs a Router.
func NewRouter(cfg *config.Config, store *tracking.Store, logger *slog.Logger) (*Router, error) {
	policy, err := enrichment.NewPolicy(cfg.Enrichment)
	if err != nil {
		return nil, err
	}
	return &Router{
		cfg:    cfg,
		store:  store,
		policy: policy,
		logger: logging.NewComponentLogger(logger, "review-router"),
	}, nil
}

// Route sweeps failed records out of the response queue into the manual
// queue, then resubmits manual records a human has marked ready.
//
// Each phase writes the store first, then the queue gaining records, then the
// queue losing them. A crash between writes leaves a record in both queues,
// which the next pass detects and resolves; a record is never in neither.
func (r *Router) Route(ctx context.Context) (Result, error) {
	ctx = services.WithStage(ctx, "route")
	logger := logging.WithContext(ctx, r.logger)

	var result Result
	if err := r.sweepResponses(ctx, &result); err != nil {
		return result, err
	}
	if err := r.resubmitReady(ctx, &result); err != nil {
		return result, err
	}

	logger.Info("manual review routed",
		logging.Int("to_manual", result.ToManual),
		logging.Int("resubmitted", result.Resubmitted),
		logging.Int("pending", result.Pending),
		logging.Int("capped", result.Capped),
		logging.Int("superseded", result.Superseded),
		logging.Int("unknown", result.Unknown),
		logging.Int("malformed", result.Malformed),
		logging.Bool("dry_run", r.cfg.DryRun),
	)
	return result, nil
}

func (r *Router) sweepResponses(ctx context.Context, result *Result) error {
	logger := logging.WithContext(ctx, r.logger)
	responses, err := enrichment.LoadQueue(r.cfg.ResponseQueuePath())
	if err != nil {
		return err
	}
	if len(responses) == 0 {
		return nil
	}
	manual, err := enrichment.LoadQueue(r.cfg.ManualQueuePath())
	if err != nil {
		return err
	}
	manualChanged := false

	keep := make([]enrichment.Entry, 0, len(responses))
	for _, entry := range responses {
		if entry.Malformed() || r.policy.CheckStatus(entry.Record) != nil {
			keep = append(keep, entry)
			continue
		}
		rec := entry.Record
		decision := r.policy.Evaluate(rec)
		if !decision.Failed {
			keep = append(keep, entry)
			continue
		}
		itemCtx := services.WithItem(ctx, rec.RelativePath)
		item, err := r.store.GetByPath(itemCtx, rec.RelativePath)
		if err != nil {
			return services.Wrap(services.ErrFatal, "route", "lookup", rec.RelativePath, err)
		}
		if item == nil {
			keep = append(keep, entry)
			continue
		}

		result.ToManual++
		if item.State == tracking.StateReadyForAI && !r.cfg.DryRun {
			if _, err := r.store.Transition(itemCtx, item.Identity, tracking.StateAIFailed, tracking.TransitionOptions{
				LastError:    decision.Reason(),
				CountAttempt: true,
			}); err != nil {
				return services.Wrap(services.ErrFatal, "route", "transition", rec.RelativePath, err)
			}
		}
		var replaced *enrichment.ResponseRecord
		var changed bool
		manual, replaced, changed, err = enrichment.ReplaceOrAppend(manual, rec.ToManual(decision.Reason()))
		if err != nil {
			return err
		}
		manualChanged = manualChanged || changed
		args := []any{logging.String("reason", decision.Reason())}
		if replaced != nil && changed {
			args = append(args, logging.String("previous_manual_status", replaced.ManualStatus))
		}
		logging.WithContext(itemCtx, r.logger).Info("failed response moved to manual review", args...)
	}

	if r.cfg.DryRun || len(keep) == len(responses) {
		return nil
	}
	if manualChanged {
		if err := enrichment.WriteQueue(r.cfg.ManualQueuePath(), manual); err != nil {
			return err
		}
	}
	if err := enrichment.WriteQueue(r.cfg.ResponseQueuePath(), keep); err != nil {
		return err
	}
	logger.Debug("response queue swept", logging.Int("remaining", len(keep)))
	return nil
}

func (r *Router) resubmitReady(ctx context.Context, result *Result) error {
	logger := logging.WithContext(ctx, r.logger)
	manual, err := enrichment.LoadQueue(r.cfg.ManualQueuePath())
	if err != nil {
		return err
	}
	if len(manual) == 0 {
		return nil
	}
	manual, duplicates := enrichment.DedupeEntries(manual, "manual", logger)
	result.Malformed += enrichment.WarnMalformed(logger, "manual", manual)

	responses, err := enrichment.LoadQueue(r.cfg.ResponseQueuePath())
	if err != nil {
		return err
	}
	responsesChanged := false

	keep := make([]enrichment.Entry, 0, len(manual))
	for _, entry := range manual {
		if entry.Malformed() {
			keep = append(keep, entry)
			continue
		}
		rec := entry.Record
		if !rec.IsReady() {
			result.Pending++
			keep = append(keep, entry)
			continue
		}
		itemCtx := services.WithItem(ctx, rec.RelativePath)
		itemLogger := logging.WithContext(itemCtx, r.logger)

		item, err := r.store.GetByPath(itemCtx, rec.RelativePath)
		if err != nil {
			return services.Wrap(services.ErrFatal, "route", "lookup", rec.RelativePath, err)
		}
		if item == nil {
			result.Unknown++
			logging.WarnWithContext(itemLogger, "manual record names an untracked item", "review_unknown_item",
				logging.Int("line", entry.Line.Number),
				logging.String(logging.FieldErrorKind, services.ErrorKind(services.ErrNotFound)),
				logging.String(logging.FieldImpact, "record left in the manual review queue"),
				logging.String(logging.FieldErrorHint, "the source folder may have been removed or renamed"),
			)
			keep = append(keep, entry)
			continue
		}

		switch item.State {
		case tracking.StateAIReturned, tracking.StateOrganized:
			result.Superseded++
			itemLogger.Info("manual record superseded; item already enriched",
				logging.String("state", string(item.State)),
			)
			continue
		}

		if limit := r.cfg.Review.MaxResubmissions; limit > 0 && item.Attempts > limit {
			result.Capped++
			logging.WarnWithContext(itemLogger, "resubmission limit reached", "review_resubmission_capped",
				logging.Int("attempts", item.Attempts),
				logging.Int("max_resubmissions", limit),
				logging.String(logging.FieldImpact, "item stays in manual review"),
				logging.String(logging.FieldErrorHint, "raise review.max_resubmissions or organize the item by hand"),
			)
			keep = append(keep, entry)
			continue
		}

		result.Resubmitted++
		if !r.cfg.DryRun && item.State != tracking.StateReadyForAI {
			if _, err := r.store.Transition(itemCtx, item.Identity, tracking.StateReadyForAI, tracking.TransitionOptions{
				ClearError: true,
			}); err != nil {
				return services.Wrap(services.ErrFatal, "route", "transition", rec.RelativePath, err)
			}
		}
		var replaced *enrichment.ResponseRecord
		var changed bool
		responses, replaced, changed, err = enrichment.ReplaceOrAppend(responses, rec.ToResubmission())
		if err != nil {
			return err
		}
		responsesChanged = responsesChanged || changed
		if replaced != nil && changed {
			logging.WarnWithContext(itemLogger, "manual correction replaces queued response", "review_response_replaced",
				logging.String(logging.FieldImpact, "the earlier response record for this item is discarded"),
				logging.String(logging.FieldErrorHint, "the agent answered again after the record went to manual review"),
			)
		}
		itemLogger.Info("manual correction resubmitted",
			logging.String("from_state", string(item.State)),
			logging.String("to_state", string(tracking.StateReadyForAI)),
			logging.Int("attempts", item.Attempts),
		)
	}

	if r.cfg.DryRun || (len(keep) == len(manual) && duplicates == 0) {
		return nil
	}
	if responsesChanged {
		if err := enrichment.WriteQueue(r.cfg.ResponseQueuePath(), responses); err != nil {
			return err
		}
	}
	if err := enrichment.WriteQueue(r.cfg.ManualQueuePath(), keep); err != nil {
		return err
	}
	logger.Debug("manual queue rewritten", logging.Int("remaining", len(keep)))
	return nil
}
