// Package main hosts the shelver CLI entrypoint and command graph.
//
// The Cobra-based command tree resolves configuration (file, environment and
// flags), builds the structured logger, and hands each invocation to the
// workflow runner: a full pass with "run", or a single stage with "scan",
// "request", "ingest", "route" or "organize". The "status" command reads the
// tracking store without taking the run lock, and "config" scaffolds and
// inspects configuration files.
//
// Keep this package lean: behaviour belongs in the internal packages, and
// commands here only translate flags and render results.
package main
