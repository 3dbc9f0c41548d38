// Package services defines shared utilities consumed by the pipeline stages.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, stage names, and item paths for
//     logging.
//   - Structured error markers plus the Wrap helper that separate locally
//     recoverable failures (malformed records, unknown items, placement
//     problems) from fatal ones that abort a run.
//
// Use these helpers when wiring new stage logic so operational behaviour
// (error handling, observability) stays uniform across the pipeline.
package services
