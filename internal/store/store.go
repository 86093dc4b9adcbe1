// Package store provides the repositories cadence reads definitions from
// and writes execution history to.
//
// Definitions (scenarios, campaigns, datasets, environments) are YAML files
// validated on load. History is kept either as JSON files under an
// exclusive file lock or in a sqlite database. In-memory implementations
// back tests and embedded use. Campaign leases guarantee at most one
// running execution per campaign and environment, in process or through
// Redis when several cadence processes share the same campaigns.
//
// Import rules:
//   - CAN import: internal/constants, internal/domain, internal/errors,
//     internal/flock, std lib
//   - MUST NOT import: internal/engine, internal/campaign, internal/cli
package store

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"

	"github.com/mrz1836/cadence/internal/constants"
	"github.com/mrz1836/cadence/internal/domain"
	"github.com/mrz1836/cadence/internal/errors"
)

// Directory and file permission constants.
const (
	dirPerm  = 0o750
	filePerm = 0o600
)

// safeNameRegex matches ids usable as a path element.
var safeNameRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// Definitions is the read side of the definition files.
type Definitions interface {
	// Scenario returns a scenario by id.
	// Returns ErrScenarioNotFound if it does not exist.
	Scenario(ctx context.Context, id string) (domain.Scenario, error)

	// Scenarios returns every scenario sorted by id.
	Scenarios(ctx context.Context) ([]domain.Scenario, error)

	// Campaign returns a campaign by id.
	// Returns ErrCampaignNotFound if it does not exist.
	Campaign(ctx context.Context, id string) (domain.Campaign, error)

	// Campaigns returns every campaign sorted by id.
	Campaigns(ctx context.Context) ([]domain.Campaign, error)

	// Dataset returns a dataset by id.
	// Returns ErrDatasetNotFound if it does not exist.
	Dataset(ctx context.Context, id string) (domain.Dataset, error)

	// Datasets returns every dataset sorted by id.
	Datasets(ctx context.Context) ([]domain.Dataset, error)

	// Environment returns an environment by name. An empty name selects the
	// environment named "default", or the only environment if there is one.
	// Returns ErrEnvironmentNotFound otherwise.
	Environment(ctx context.Context, name string) (domain.Environment, error)

	// Environments returns every environment sorted by name.
	Environments(ctx context.Context) ([]domain.Environment, error)
}

// History stores scenario and campaign execution records.
type History interface {
	// NextExecutionID allocates a scenario execution id. Ids are unique and
	// increasing.
	NextExecutionID(ctx context.Context) (int64, error)

	// Store saves a final scenario execution report.
	Store(ctx context.Context, report domain.ExecutionReport) error

	// Execution returns a stored report.
	// Returns ErrExecutionNotFound if it does not exist.
	Execution(ctx context.Context, scenarioID string, id int64) (domain.ExecutionReport, error)

	// Executions returns the reports of a scenario, newest first.
	Executions(ctx context.Context, scenarioID string) ([]domain.ExecutionReport, error)

	// NextCampaignExecutionID allocates a campaign execution id.
	NextCampaignExecutionID(ctx context.Context, campaignID string) (int64, error)

	// SaveCampaignExecution saves a campaign execution record.
	SaveCampaignExecution(ctx context.Context, execution domain.CampaignExecution) error

	// CampaignExecution returns a stored campaign execution.
	// Returns ErrCampaignExecutionNotFound if it does not exist.
	CampaignExecution(ctx context.Context, campaignID string, id int64) (domain.CampaignExecution, error)

	// CampaignExecutions returns the executions of a campaign, newest first.
	CampaignExecutions(ctx context.Context, campaignID string) ([]domain.CampaignExecution, error)

	// Close releases the resources held by the store.
	Close() error
}

// OpenHistory opens the history store selected by driver. An empty
// sqlitePath defaults to history.db under dir.
// Returns ErrUnknownHistoryDriver for an unsupported driver.
func OpenHistory(ctx context.Context, driver, dir, sqlitePath string) (History, error) {
	switch driver {
	case "", constants.HistoryDriverFile:
		return NewFileHistory(dir), nil
	case constants.HistoryDriverSQLite:
		if sqlitePath == "" {
			sqlitePath = filepath.Join(dir, constants.SQLiteFileName)
		}
		return OpenSQLiteHistory(ctx, sqlitePath)
	default:
		return nil, fmt.Errorf("%w: %s", errors.ErrUnknownHistoryDriver, driver)
	}
}

func checkName(kind, name string) error {
	if !safeNameRegex.MatchString(name) {
		return fmt.Errorf("%w: %s id %q", errors.ErrInvalidArgument, kind, name)
	}
	return nil
}
