package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"shelver/internal/workflow"
)

var errStoppedByOperator = errors.New("run stopped by operator")

// newPauseCheckpoint waits for the operator between stages. An empty line
// continues; "q" or end of input stops the run after the completed stage.
func newPauseCheckpoint(in io.Reader, out io.Writer) workflow.Checkpoint {
	reader := bufio.NewReader(in)
	return func(ctx context.Context, completed, next workflow.Stage) error {
		fmt.Fprintf(out, "Stage %q complete. Press Enter to run %q, or q to stop: ", completed, next)

		lines := make(chan string, 1)
		errs := make(chan error, 1)
		go func() {
			line, err := reader.ReadString('\n')
			if err != nil && line == "" {
				errs <- err
				return
			}
			lines <- line
		}()

		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			return ctx.Err()
		case err := <-errs:
			fmt.Fprintln(out)
			if errors.Is(err, io.EOF) {
				return errStoppedByOperator
			}
			return fmt.Errorf("read pause input: %w", err)
		case line := <-lines:
			switch strings.ToLower(strings.TrimSpace(line)) {
			case "q", "quit", "stop":
				return errStoppedByOperator
			}
			return nil
		}
	}
}
