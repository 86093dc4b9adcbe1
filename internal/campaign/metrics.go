package campaign

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/mrz1836/cadence/internal/domain"
)

// Metrics collects metrics about campaign executions.
// Implementations can send these to monitoring systems like Prometheus,
// StatsD, or custom observability platforms.
type Metrics interface {
	// CampaignStarted is called once the campaign execution is registered.
	CampaignStarted(campaignID string, executionID int64)

	// ScenarioCompleted is called after each member scenario finishes,
	// including the automatic retry.
	ScenarioCompleted(campaignID, scenarioID string, status domain.Status, duration time.Duration)

	// CampaignEnded is called with the final campaign execution.
	CampaignEnded(execution domain.CampaignExecution)
}

// NoopMetrics is a no-op implementation of Metrics for default behavior.
type NoopMetrics struct{}

// Ensure NoopMetrics implements Metrics interface.
var _ Metrics = (*NoopMetrics)(nil)

// CampaignStarted implements Metrics.
func (NoopMetrics) CampaignStarted(string, int64) {}

// ScenarioCompleted implements Metrics.
func (NoopMetrics) ScenarioCompleted(string, string, domain.Status, time.Duration) {}

// CampaignEnded implements Metrics.
func (NoopMetrics) CampaignEnded(domain.CampaignExecution) {}

// LogMetrics writes campaign metrics as debug log events.
type LogMetrics struct {
	Logger zerolog.Logger
}

// Ensure LogMetrics implements Metrics interface.
var _ Metrics = (*LogMetrics)(nil)

// CampaignStarted implements Metrics.
func (m LogMetrics) CampaignStarted(campaignID string, executionID int64) {
	m.Logger.Debug().
		Str("campaign_id", campaignID).
		Int64("campaign_execution_id", executionID).
		Msg("metric: campaign started")
}

// ScenarioCompleted implements Metrics.
func (m LogMetrics) ScenarioCompleted(campaignID, scenarioID string, status domain.Status, duration time.Duration) {
	m.Logger.Debug().
		Str("campaign_id", campaignID).
		Str("scenario_id", scenarioID).
		Str("status", status.String()).
		Int64("duration_ms", duration.Milliseconds()).
		Msg("metric: scenario completed")
}

// CampaignEnded implements Metrics.
func (m LogMetrics) CampaignEnded(execution domain.CampaignExecution) {
	m.Logger.Debug().
		Str("campaign_id", execution.CampaignID).
		Int64("campaign_execution_id", execution.ID).
		Str("status", execution.Status().String()).
		Int("scenarios", len(execution.Scenarios)).
		Int64("duration_ms", execution.EndDate.Sub(execution.StartDate).Milliseconds()).
		Msg("metric: campaign ended")
}

// Tracker pushes scenario outcomes to an external test tracker.
// Errors are logged by the caller and never fail the campaign.
type Tracker interface {
	UpdateTestExecution(ctx context.Context, campaignID string, campaignExecutionID int64,
		scenarioID, datasetID string, report domain.ExecutionReport) error
}

// NoopTracker is used when no tracker is configured.
type NoopTracker struct{}

// Ensure NoopTracker implements Tracker interface.
var _ Tracker = (*NoopTracker)(nil)

// UpdateTestExecution implements Tracker.
func (NoopTracker) UpdateTestExecution(context.Context, string, int64, string, string, domain.ExecutionReport) error {
	return nil
}
