package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mrz1836/cadence/internal/campaign"
	"github.com/mrz1836/cadence/internal/domain"
	"github.com/mrz1836/cadence/internal/errors"
	"github.com/mrz1836/cadence/internal/signal"
)

func addCampaignReplayCmd(parent *cobra.Command, flags *GlobalFlags) {
	var environment, userID string
	cmd := &cobra.Command{
		Use:   "replay <campaign-id> <campaign-execution-id>",
		Short: "Run again the scenarios that did not succeed",
		Long: `Replay the scenarios of a recorded campaign execution whose status is not
SUCCESS, each with the dataset it used. The new execution is marked as a
replay. The recorded environment is reused unless --env is given.

Examples:
  cadence campaign replay smoke 12
  cadence campaign replay smoke 12 --env staging`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			executionID, err := parseExecutionID(args[1])
			if err != nil {
				return err
			}
			req := campaign.Request{Environment: environment, UserID: userID}
			return runCampaignReplay(cmd.Context(), cmd.OutOrStdout(), flags, args[0], executionID, req)
		},
	}

	cmd.Flags().StringVarP(&environment, "env", "e", "", "environment name (default: the recorded environment)")
	cmd.Flags().StringVar(&userID, "user", "", "user id recorded on the execution")

	parent.AddCommand(cmd)
}

func runCampaignReplay(ctx context.Context, w io.Writer, flags *GlobalFlags, campaignID string, executionID int64, req campaign.Request) error {
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

	h := signal.NewHandler(ctx)
	defer h.Stop()
	done := make(chan struct{})
	defer close(done)
	go stopOnInterrupt(h, s.campaigns, logger, done)

	exec, err := s.campaigns.ReplayFailed(h.Context(), campaignID, executionID, req)
	if err != nil {
		return err
	}

	executions := []domain.CampaignExecution{exec}
	if err := writeCampaignExecutions(w, flags.Output, executions); err != nil {
		return err
	}
	return campaignOutcome(executions)
}

// parseExecutionID parses a positive execution id argument.
func parseExecutionID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.NewExitCode2Error(fmt.Errorf("%w: execution id %q is not a positive integer", errors.ErrInvalidArgument, arg))
	}
	return id, nil
}
