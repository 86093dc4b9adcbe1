package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mrz1836/cadence/internal/domain"
)

func addCampaignListCmd(parent *cobra.Command, flags *GlobalFlags) {
	cmd := &cobra.Command{
		Use:     "list",
		Short:   "List campaign definitions",
		Aliases: []string{"ls"},
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCampaignList(cmd.Context(), cmd.OutOrStdout(), flags)
		},
	}
	parent.AddCommand(cmd)
}

func runCampaignList(ctx context.Context, w io.Writer, flags *GlobalFlags) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	logger := GetLogger()

	defs, err := openDefinitions(ctx, flags, logger)
	if err != nil {
		return err
	}

	campaigns, err := defs.Campaigns(ctx)
	if err != nil {
		logger.Debug().Err(err).Msg("failed to list campaigns")
		return fmt.Errorf("failed to list campaigns: %w", err)
	}

	if flags.Output == OutputJSON {
		if campaigns == nil {
			campaigns = []domain.Campaign{}
		}
		return writeJSON(w, campaigns)
	}

	if len(campaigns) == 0 {
		_, _ = fmt.Fprintf(w, "No campaigns. Add campaign files under %s.\n", defs.Dir())
		return nil
	}
	renderCampaigns(w, campaigns)
	return nil
}
