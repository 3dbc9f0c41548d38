package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"shelver/internal/workflow"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var pause bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run every pipeline stage once",
		Long: `Run scans the input directory, rebuilds the request queue, ingests
responses, routes manual-review records and organizes returned items.

With --pause the run stops after each stage and waits for Enter, giving time
to drop responses into the response queue or mark manual-review records
ready before the next stage reads them.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if pause && !pauseInputUsable(cmd) {
				return errors.New("--pause needs an interactive terminal on stdin")
			}
			runner, err := ctx.newRunner(cmd, pause)
			if err != nil {
				return err
			}
			summary, err := runner.Run(cmd.Context())
			if errors.Is(err, errStoppedByOperator) {
				fmt.Fprintln(cmd.OutOrStdout(), "Stopped; rerun to continue from the next stage")
				err = nil
			}
			return reportRun(cmd, summary, err, asJSON)
		},
	}

	cmd.Flags().BoolVar(&pause, "pause", false, "Wait for confirmation between stages")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the run summary as JSON")
	return cmd
}

var stageDescriptions = map[workflow.Stage]string{
	workflow.StageScan:     "Reconcile the tracking store with the input directory",
	workflow.StageRequest:  "Rebuild the request queue and promote accepted items",
	workflow.StageIngest:   "Apply response records to tracked items",
	workflow.StageRoute:    "Move records between the response and manual-review queues",
	workflow.StageOrganize: "Copy returned items into the library",
}

func newStageCommands(ctx *commandContext) []*cobra.Command {
	commands := make([]*cobra.Command, 0, len(workflow.Stages()))
	for _, stage := range workflow.Stages() {
		var asJSON bool
		cmd := &cobra.Command{
			Use:   string(stage),
			Short: stageDescriptions[stage],
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				runner, err := ctx.newRunner(cmd, false)
				if err != nil {
					return err
				}
				summary, err := runner.RunStage(cmd.Context(), stage)
				return reportRun(cmd, summary, err, asJSON)
			},
		}
		cmd.Flags().BoolVar(&asJSON, "json", false, "Print the stage summary as JSON")
		commands = append(commands, cmd)
	}
	return commands
}

func (c *commandContext) newRunner(cmd *cobra.Command, pause bool) (*workflow.Runner, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}
	var opts []workflow.Option
	if pause {
		opts = append(opts, workflow.WithCheckpoint(newPauseCheckpoint(cmd.InOrStdin(), cmd.OutOrStdout())))
	}
	return workflow.NewRunner(cfg, logger, opts...), nil
}

// pauseInputUsable rejects a non-interactive stdin; buffers injected by tests
// are accepted.
func pauseInputUsable(cmd *cobra.Command) bool {
	in := cmd.InOrStdin()
	if _, ok := in.(*os.File); !ok {
		return true
	}
	return isTerminal(in)
}
