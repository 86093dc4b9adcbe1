package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/mrz1836/cadence/internal/domain"
)

func addCampaignHistoryCmd(parent *cobra.Command, flags *GlobalFlags) {
	cmd := &cobra.Command{
		Use:   "history <campaign-id> [campaign-execution-id]",
		Short: "List the recorded executions of a campaign, or show one",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var executionID int64
			if len(args) == 2 {
				id, err := parseExecutionID(args[1])
				if err != nil {
					return err
				}
				executionID = id
			}
			return runCampaignHistory(cmd.Context(), cmd.OutOrStdout(), flags, args[0], executionID)
		},
	}
	parent.AddCommand(cmd)
}

func runCampaignHistory(ctx context.Context, w io.Writer, flags *GlobalFlags, campaignID string, executionID int64) error {
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
		exec, err := s.history.CampaignExecution(ctx, campaignID, executionID)
		if err != nil {
			return err
		}
		if flags.Output == OutputJSON {
			return writeJSON(w, exec)
		}
		renderCampaignExecution(w, exec)
		return nil
	}

	executions, err := s.history.CampaignExecutions(ctx, campaignID)
	if err != nil {
		return err
	}
	if flags.Output == OutputJSON {
		if executions == nil {
			executions = []domain.CampaignExecution{}
		}
		return writeJSON(w, executions)
	}
	if len(executions) == 0 {
		_, _ = fmt.Fprintf(w, "No executions recorded for campaign %s.\n", campaignID)
		return nil
	}

	styles := newOutputStyles()
	t := newTable()
	t.AppendHeader(table.Row{"Execution", "Started", "Environment", "Scenarios", "Replay", "Status"})
	for _, exec := range executions {
		t.AppendRow(table.Row{
			exec.ID, exec.StartDate.Local().Format(time.DateTime), exec.Environment,
			len(exec.Scenarios), yesNo(exec.Partial), styles.status(exec.Status()),
		})
	}
	_, _ = fmt.Fprintln(w, t.Render())
	return nil
}
