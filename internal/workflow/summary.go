package workflow

import (
	"time"

	"shelver/internal/enrichment"
	"shelver/internal/organizer"
	"shelver/internal/preflight"
	"shelver/internal/review"
	"shelver/internal/scanner"
)

// StageTiming records how long a stage took.
type StageTiming struct {
	Stage    Stage
	Duration time.Duration
}

// Summary aggregates the outcome of one run. Only the stages listed in
// Completed carry meaningful results.
type Summary struct {
	RunID     string
	DryRun    bool
	StartedAt time.Time
	Duration  time.Duration
	Preflight []preflight.Result
	Completed []StageTiming

	Scan     scanner.Result
	Requests enrichment.BuildResult
	Ingest   enrichment.IngestResult
	Review   review.Result
	Organize organizer.Result
}

// Ran reports whether the stage completed during this run.
func (s Summary) Ran(stage Stage) bool {
	for _, timing := range s.Completed {
		if timing.Stage == stage {
			return true
		}
	}
	return false
}

// Quarantined counts records and items set aside for operator attention
// during the run.
func (s Summary) Quarantined() int {
	return s.Ingest.Failed + s.Ingest.Malformed + s.Ingest.Unknown +
		s.Review.ToManual + s.Review.Capped + s.Review.Unknown + s.Review.Malformed +
		s.Organize.Failed
}
