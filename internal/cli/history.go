package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mrz1836/cadence/internal/domain"
)

// AddHistoryCommand adds the history command to the root command.
func AddHistoryCommand(root *cobra.Command, flags *GlobalFlags) {
	cmd := &cobra.Command{
		Use:   "history <scenario-id> [execution-id]",
		Short: "List the recorded executions of a scenario, or show one",
		Long: `Without an execution id, list the executions of a scenario, newest first.
With one, print its full step tree.

Examples:
  cadence history login
  cadence history login 42
  cadence history login 42 --output json`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var executionID int64
			if len(args) == 2 {
				id, err := parseExecutionID(args[1])
				if err != nil {
					return err
				}
				executionID = id
			}
			return runHistory(cmd.Context(), cmd.OutOrStdout(), flags, args[0], executionID)
		},
	}
	root.AddCommand(cmd)
}

func runHistory(ctx context.Context, w io.Writer, flags *GlobalFlags, scenarioID string, executionID int64) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	logger := GetLogger()

	s, err := newServices(ctx, flags, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := s.Close(); closeErr != nil {
			logger.Warn().Err(closeErr).Msg("failed to close stores")
		}
	}()

	if executionID > 0 {
		r, err := s.history.Execution(ctx, scenarioID, executionID)
		if err != nil {
			return err
		}
		if flags.Output == OutputJSON {
			return writeJSON(w, r)
		}
		renderExecutionReport(w, r)
		return nil
	}

	reports, err := s.history.Executions(ctx, scenarioID)
	if err != nil {
		return err
	}
	if flags.Output == OutputJSON {
		if reports == nil {
			reports = []domain.ExecutionReport{}
		}
		return writeJSON(w, reports)
	}
	if len(reports) == 0 {
		_, _ = fmt.Fprintf(w, "No executions recorded for scenario %s.\n", scenarioID)
		return nil
	}
	renderExecutions(w, reports)
	return nil
}
