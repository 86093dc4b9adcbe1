package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mrz1836/cadence/internal/campaign"
	"github.com/mrz1836/cadence/internal/domain"
	"github.com/mrz1836/cadence/internal/errors"
	"github.com/mrz1836/cadence/internal/signal"
)

// campaignRunOptions holds the flags of the campaign run command.
type campaignRunOptions struct {
	name        string
	environment string
	datasetID   string
	userID      string
}

func addCampaignRunCmd(parent *cobra.Command, flags *GlobalFlags) {
	opts := &campaignRunOptions{}
	cmd := &cobra.Command{
		Use:   "run [campaign-id]",
		Short: "Run a campaign by id, or every campaign matching --name",
		Long: `Run a campaign and print the outcome of each of its scenarios.

With --name, every campaign whose id or title matches the glob pattern
(case insensitive) runs, one after the other. Ctrl+C stops the running
campaign: scenarios not started yet are recorded NOT_EXECUTED.

Examples:
  cadence campaign run smoke
  cadence campaign run smoke --env staging --dataset eu
  cadence campaign run --name "nightly-*"`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var campaignID string
			if len(args) == 1 {
				campaignID = args[0]
			}
			return runCampaign(cmd.Context(), cmd.OutOrStdout(), flags, campaignID, opts)
		},
	}

	cmd.Flags().StringVar(&opts.name, "name", "", "glob pattern matched against campaign ids and titles")
	cmd.Flags().StringVarP(&opts.environment, "env", "e", "", "environment name (default: the campaign environment)")
	cmd.Flags().StringVarP(&opts.datasetID, "dataset", "d", "", "dataset id overriding the campaign default dataset")
	cmd.Flags().StringVar(&opts.userID, "user", "", "user id recorded on the executions")

	parent.AddCommand(cmd)
}

func runCampaign(ctx context.Context, w io.Writer, flags *GlobalFlags, campaignID string, opts *campaignRunOptions) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if (campaignID == "") == (opts.name == "") {
		return errors.NewExitCode2Error(fmt.Errorf("%w: pass either a campaign id or --name", errors.ErrInvalidArgument))
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

	req := campaign.Request{
		Environment: opts.environment,
		DatasetID:   opts.datasetID,
		UserID:      opts.userID,
	}

	var executions []domain.CampaignExecution
	var runErr error
	if campaignID != "" {
		var exec domain.CampaignExecution
		exec, runErr = s.campaigns.ExecuteByID(h.Context(), campaignID, req)
		if runErr == nil {
			executions = append(executions, exec)
		}
	} else {
		executions, runErr = s.campaigns.ExecuteByName(h.Context(), opts.name, req)
	}

	if err := writeCampaignExecutions(w, flags.Output, executions); err != nil {
		return err
	}
	if runErr != nil {
		return runErr
	}
	return campaignOutcome(executions)
}

// writeCampaignExecutions renders campaign executions in the selected format.
func writeCampaignExecutions(w io.Writer, output string, executions []domain.CampaignExecution) error {
	if output == OutputJSON {
		if executions == nil {
			executions = []domain.CampaignExecution{}
		}
		return writeJSON(w, executions)
	}
	for i, exec := range executions {
		if i > 0 {
			_, _ = fmt.Fprintln(w)
		}
		renderCampaignExecution(w, exec)
	}
	return nil
}

// campaignOutcome returns ErrExecutionFailed when a campaign did not pass.
func campaignOutcome(executions []domain.CampaignExecution) error {
	for _, exec := range executions {
		if !succeeded(exec.Status()) {
			return fmt.Errorf("%w: campaign %s execution %d finished %s",
				errors.ErrExecutionFailed, exec.CampaignID, exec.ID, exec.Status())
		}
	}
	return nil
}
