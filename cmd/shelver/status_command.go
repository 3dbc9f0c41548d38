package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"shelver/internal/config"
	"shelver/internal/preflight"
	"shelver/internal/tracking"
)

type statusItem struct {
	RelativePath    string    `json:"relative_path"`
	State           string    `json:"state"`
	Attempts        int       `json:"attempts"`
	DestinationPath string    `json:"destination_path,omitempty"`
	LastError       string    `json:"last_error,omitempty"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type statusReport struct {
	ConfigPath string         `json:"config_path"`
	DryRun     bool           `json:"dry_run"`
	Preflight  []checkReport  `json:"preflight"`
	Counts     map[string]int `json:"counts"`
	Items      []statusItem   `json:"items"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var states []string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show path checks, item counts per state and tracked items",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			filter, err := parseStates(states)
			if err != nil {
				return err
			}
			report, err := collectStatus(cmd.Context(), cfg, filter)
			if err != nil {
				return err
			}
			report.ConfigPath = ctx.configPath
			if asJSON {
				return writeJSON(cmd, report)
			}
			renderStatus(cmd.OutOrStdout(), report, shouldColorize(cmd.OutOrStdout()))
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&states, "state", nil, "Only list items in these states (repeatable)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print status as JSON")
	return cmd
}

func parseStates(values []string) ([]tracking.State, error) {
	var out []tracking.State
	for _, value := range values {
		state, ok := tracking.ParseState(value)
		if !ok {
			names := make([]string, len(tracking.AllStates))
			for i, s := range tracking.AllStates {
				names[i] = string(s)
			}
			return nil, fmt.Errorf("unknown state %q (valid: %s)", value, strings.Join(names, ", "))
		}
		out = append(out, state)
	}
	return out, nil
}

// collectStatus reads the store without writing: the database opens read-only
// and a missing database reads as empty.
func collectStatus(ctx context.Context, cfg *config.Config, filter []tracking.State) (statusReport, error) {
	report := statusReport{DryRun: cfg.DryRun, Counts: make(map[string]int)}
	for _, result := range preflight.RunAll(ctx, cfg) {
		report.Preflight = append(report.Preflight, checkReport{Name: result.Name, Passed: result.Passed, Detail: result.Detail})
	}

	readCfg := *cfg
	readCfg.DryRun = true
	store, err := tracking.Open(&readCfg)
	if err != nil {
		return report, fmt.Errorf("open tracking store: %w", err)
	}
	defer store.Close()

	stats, err := store.Stats(ctx)
	if err != nil {
		return report, fmt.Errorf("read item counts: %w", err)
	}
	for _, state := range tracking.AllStates {
		report.Counts[string(state)] = stats[state]
	}

	items, err := store.List(ctx, filter...)
	if err != nil {
		return report, fmt.Errorf("list items: %w", err)
	}
	for _, item := range items {
		report.Items = append(report.Items, statusItem{
			RelativePath:    item.RelativePath,
			State:           string(item.State),
			Attempts:        item.Attempts,
			DestinationPath: item.DestinationPath,
			LastError:       item.LastError,
			UpdatedAt:       item.UpdatedAt,
		})
	}
	return report, nil
}

func renderStatus(out io.Writer, report statusReport, colorize bool) {
	for _, line := range renderSectionHeader("Paths", colorize) {
		fmt.Fprintln(out, line)
	}
	for _, check := range report.Preflight {
		kind := statusOK
		if !check.Passed {
			kind = statusError
		}
		fmt.Fprintln(out, renderStatusLine(check.Name, kind, check.Detail, colorize))
	}
	if report.DryRun {
		fmt.Fprintln(out, renderStatusLine("Dry run", statusInfo, yesNo(true), colorize))
	}
	fmt.Fprintln(out)

	for _, line := range renderSectionHeader("Items", colorize) {
		fmt.Fprintln(out, line)
	}
	rows := make([][]string, 0, len(tracking.AllStates))
	total := 0
	for _, state := range tracking.AllStates {
		n := report.Counts[string(state)]
		total += n
		rows = append(rows, []string{string(state), strconv.Itoa(n)})
	}
	rows = append(rows, []string{"total", strconv.Itoa(total)})
	fmt.Fprintln(out, renderTable([]string{"State", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))

	if len(report.Items) == 0 {
		fmt.Fprintln(out, "No items tracked")
		return
	}
	itemRows := make([][]string, 0, len(report.Items))
	for _, item := range report.Items {
		detail := item.DestinationPath
		if item.LastError != "" {
			detail = item.LastError
		}
		itemRows = append(itemRows, []string{
			item.RelativePath,
			item.State,
			strconv.Itoa(item.Attempts),
			humanize.Time(item.UpdatedAt),
			detail,
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Item", "State", "Attempts", "Updated", "Destination / Last error"},
		itemRows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
	))
}
