// Package logging assembles structured slog loggers and formatting helpers used
// across shelver.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so stage code can tag log lines
// with the run identifier, stage name, and item path. NewNop returns a
// discarding logger for tests and wiring code that cannot fail.
package logging
