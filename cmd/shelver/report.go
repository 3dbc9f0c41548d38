package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"shelver/internal/services"
	"shelver/internal/workflow"
)

type count struct {
	name  string
	value int64
}

type stageReport struct {
	Stage      string           `json:"stage"`
	DurationMS int64            `json:"duration_ms"`
	Counts     map[string]int64 `json:"counts"`
}

type checkReport struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

type runReport struct {
	RunID       string        `json:"run_id"`
	DryRun      bool          `json:"dry_run"`
	DurationMS  int64         `json:"duration_ms"`
	Preflight   []checkReport `json:"preflight"`
	Stages      []stageReport `json:"stages"`
	Quarantined int           `json:"quarantined"`
	Error       string        `json:"error,omitempty"`
	ErrorKind   string        `json:"error_kind,omitempty"`
}

func stageCounts(summary workflow.Summary, stage workflow.Stage) []count {
	switch stage {
	case workflow.StageScan:
		return []count{
			{"added", int64(len(summary.Scan.Added))},
			{"removed", int64(len(summary.Scan.Removed))},
			{"unchanged", int64(summary.Scan.Unchanged)},
		}
	case workflow.StageRequest:
		return []count{
			{"requested", int64(summary.Requests.Requested)},
			{"promoted", int64(summary.Requests.Promoted)},
			{"awaiting_ingest", int64(summary.Requests.AwaitingIngest)},
		}
	case workflow.StageIngest:
		in := summary.Ingest
		return []count{
			{"accepted", int64(in.Accepted)},
			{"failed", int64(in.Failed)},
			{"malformed", int64(in.Malformed)},
			{"unknown", int64(in.Unknown)},
			{"duplicates", int64(in.Duplicates)},
			{"unchanged", int64(in.Unchanged)},
		}
	case workflow.StageRoute:
		rv := summary.Review
		return []count{
			{"to_manual", int64(rv.ToManual)},
			{"resubmitted", int64(rv.Resubmitted)},
			{"pending", int64(rv.Pending)},
			{"capped", int64(rv.Capped)},
			{"superseded", int64(rv.Superseded)},
			{"unknown", int64(rv.Unknown)},
			{"malformed", int64(rv.Malformed)},
		}
	case workflow.StageOrganize:
		org := summary.Organize
		return []count{
			{"organized", int64(org.Organized)},
			{"failed", int64(org.Failed)},
			{"pruned", int64(org.Pruned)},
			{"bytes", org.Bytes},
		}
	}
	return nil
}

func buildRunReport(summary workflow.Summary, runErr error) runReport {
	report := runReport{
		RunID:       summary.RunID,
		DryRun:      summary.DryRun,
		DurationMS:  summary.Duration.Milliseconds(),
		Quarantined: summary.Quarantined(),
	}
	for _, result := range summary.Preflight {
		report.Preflight = append(report.Preflight, checkReport{Name: result.Name, Passed: result.Passed, Detail: result.Detail})
	}
	for _, timing := range summary.Completed {
		counts := make(map[string]int64)
		for _, c := range stageCounts(summary, timing.Stage) {
			counts[c.name] = c.value
		}
		report.Stages = append(report.Stages, stageReport{
			Stage:      string(timing.Stage),
			DurationMS: timing.Duration.Milliseconds(),
			Counts:     counts,
		})
	}
	if runErr != nil {
		report.Error = runErr.Error()
		report.ErrorKind = services.ErrorKind(runErr)
	}
	return report
}

func formatCounts(counts []count) string {
	parts := make([]string, 0, len(counts))
	for _, c := range counts {
		if c.name == "bytes" {
			parts = append(parts, fmt.Sprintf("%s=%s", c.name, humanize.Bytes(uint64(max(c.value, 0)))))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s=%d", c.name, c.value))
	}
	return strings.Join(parts, " ")
}

func renderSummary(out io.Writer, summary workflow.Summary) {
	if len(summary.Completed) == 0 {
		fmt.Fprintln(out, "No stages completed")
		return
	}
	rows := make([][]string, 0, len(summary.Completed))
	for _, timing := range summary.Completed {
		rows = append(rows, []string{
			string(timing.Stage),
			formatCounts(stageCounts(summary, timing.Stage)),
			timing.Duration.Round(time.Millisecond).String(),
		})
	}
	fmt.Fprintln(out, renderTable([]string{"Stage", "Result", "Duration"}, rows, []columnAlignment{alignLeft, alignLeft, alignRight}))

	mode := ""
	if summary.DryRun {
		mode = " (dry run, nothing changed)"
	}
	fmt.Fprintf(out, "Run %s finished in %s%s\n", summary.RunID, summary.Duration.Round(time.Millisecond), mode)
	if n := summary.Quarantined(); n > 0 {
		fmt.Fprintf(out, "%d record(s) need attention; see the manual-review queue and the log\n", n)
	}
}

// reportRun renders the summary and passes runErr through, so partial results
// are shown even when a stage fails.
func reportRun(cmd *cobra.Command, summary workflow.Summary, runErr error, asJSON bool) error {
	if asJSON {
		if err := writeJSON(cmd, buildRunReport(summary, runErr)); err != nil {
			return err
		}
		return runErr
	}
	if summary.RunID != "" {
		renderSummary(cmd.OutOrStdout(), summary)
	}
	return runErr
}
