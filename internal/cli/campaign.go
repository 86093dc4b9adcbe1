package cli

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mrz1836/cadence/internal/campaign"
	"github.com/mrz1836/cadence/internal/signal"
	"github.com/mrz1836/cadence/internal/store"
)

// stopPollInterval is how often an interrupted campaign command re-sends
// stop requests to campaign executions registered after the interrupt.
const stopPollInterval = 100 * time.Millisecond

// AddCampaignCommand adds the campaign command group to the root command.
func AddCampaignCommand(root *cobra.Command, flags *GlobalFlags) {
	cmd := &cobra.Command{
		Use:   "campaign",
		Short: "Run, replay and inspect campaigns",
		Long: `Campaigns group scenarios, each optionally bound to a dataset, and run them
sequentially or in parallel on one environment.

Examples:
  cadence campaign list
  cadence campaign run smoke
  cadence campaign run --name "nightly-*"
  cadence campaign history smoke
  cadence campaign replay smoke 12`,
	}

	addCampaignRunCmd(cmd, flags)
	addCampaignReplayCmd(cmd, flags)
	addCampaignListCmd(cmd, flags)
	addCampaignHistoryCmd(cmd, flags)

	root.AddCommand(cmd)
}

// openDefinitions loads the configuration and returns the definition store
// without opening the history.
func openDefinitions(ctx context.Context, flags *GlobalFlags, logger zerolog.Logger) (*store.FileDefinitions, error) {
	cfg, err := loadConfig(ctx, flags, logger)
	if err != nil {
		return nil, err
	}
	dir, err := cfg.Storage.ResolvedDir()
	if err != nil {
		return nil, err
	}
	return store.NewFileDefinitions(dir), nil
}

// stopOnInterrupt stops every running campaign execution of engine once h
// is interrupted, until done is closed. Executions registered after the
// interrupt are stopped as they appear.
func stopOnInterrupt(h *signal.Handler, engine *campaign.Engine, logger zerolog.Logger, done <-chan struct{}) {
	select {
	case <-h.Interrupted():
	case <-done:
		return
	}

	logger.Warn().Msg("interrupt received, stopping campaign (Ctrl+C again to abort)")

	stopped := make(map[int64]bool)
	ticker := time.NewTicker(stopPollInterval)
	defer ticker.Stop()
	for {
		for _, exec := range engine.Current("") {
			if stopped[exec.ID] {
				continue
			}
			if err := engine.Stop(context.Background(), exec.ID); err != nil {
				logger.Debug().Err(err).Int64("campaign_execution_id", exec.ID).Msg("campaign execution already finished")
			}
			stopped[exec.ID] = true
		}

		select {
		case <-done:
			return
		case <-ticker.C:
		}
	}
}
