package preflight

import (
	"context"
	"fmt"
	"strings"

	"shelver/internal/config"
	"shelver/internal/services"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Input directory", cfg.Paths.InputDir, AccessRead),
	}

	write := AccessReadWrite
	if cfg.DryRun {
		write = AccessRead
	}
	results = append(results,
		CheckOptionalDirectory("State directory", cfg.Paths.StateDir, write, cfg.DryRun),
		CheckOptionalDirectory("Output directory", cfg.Paths.OutputDir, write, cfg.DryRun),
	)
	for _, queue := range []struct{ name, path string }{
		{"Request queue", cfg.RequestQueuePath()},
		{"Response queue", cfg.ResponseQueuePath()},
		{"Manual review queue", cfg.ManualQueuePath()},
	} {
		results = append(results, CheckQueueFile(queue.name, queue.path, write))
	}
	return results
}

// Failures joins failed results into a fatal error, or returns nil when
// every check passed.
func Failures(results []Result) error {
	var failures []string
	for _, r := range results {
		if !r.Passed {
			failures = append(failures, fmt.Sprintf("%s: %s", r.Name, r.Detail))
		}
	}
	if len(failures) == 0 {
		return nil
	}
	return services.Wrap(services.ErrFatal, "preflight", "check paths", strings.Join(failures, "; "), nil)
}
