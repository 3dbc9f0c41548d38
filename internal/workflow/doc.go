// Package workflow runs one pass of the shelver pipeline.
//
// A Runner validates the environment with preflight checks, takes the
// single-writer lock under the state directory, opens the tracking store and
// then drives the stages in order: scan, request, ingest, route, organize.
// Each stage is idempotent, so an interrupted run is resumed by running again
// rather than rolled back.
//
// Pause mode installs a Checkpoint that is called between stages, giving an
// operator the chance to inject responses or edit the manual-review queue
// before the pipeline continues. Dry-run mode reports what each stage would
// do without touching the store, the queues or the library.
//
// Individual stages can be run on their own with RunStage; they share the
// same lock and preflight checks as a full run.
package workflow
