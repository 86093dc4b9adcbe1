package domain

import "time"

// Campaign is a named, ordered set of scenarios executed together.
type Campaign struct {
	ID          string `json:"id" yaml:"id" validate:"required"`
	Title       string `json:"title" yaml:"title" validate:"required"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Environment is the default environment; empty selects the store default.
	Environment string `json:"environment,omitempty" yaml:"environment,omitempty"`

	// DatasetID is the campaign level default dataset.
	DatasetID string `json:"dataset,omitempty" yaml:"dataset,omitempty"`

	// ParallelRun submits every scenario at once to the worker pool.
	ParallelRun bool `json:"parallel_run,omitempty" yaml:"parallel_run,omitempty"`

	// RetryAuto re-executes a failed scenario exactly once.
	RetryAuto bool `json:"retry_auto,omitempty" yaml:"retry_auto,omitempty"`

	Scenarios []CampaignScenario `json:"scenarios" yaml:"scenarios" validate:"dive"`
	Tags      []string           `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// CampaignScenario binds a scenario to an optional dataset inside a campaign.
type CampaignScenario struct {
	ScenarioID string `json:"scenario" yaml:"scenario" validate:"required"`
	DatasetID  string `json:"dataset,omitempty" yaml:"dataset,omitempty"`
}

// CampaignExecution is one run of a campaign.
type CampaignExecution struct {
	ID            int64     `json:"id"`
	CampaignID    string    `json:"campaign_id"`
	CampaignTitle string    `json:"campaign_title"`
	Environment   string    `json:"environment"`
	DatasetID     string    `json:"dataset_id,omitempty"`
	UserID        string    `json:"user_id,omitempty"`
	Partial       bool      `json:"partial"`
	StartDate     time.Time `json:"start_date"`
	EndDate       time.Time `json:"end_date,omitempty"`

	Scenarios []ScenarioExecutionCampaign `json:"scenarios"`
}

// ScenarioExecutionCampaign summarizes one scenario run inside a campaign.
type ScenarioExecutionCampaign struct {
	ScenarioID    string        `json:"scenario_id"`
	ScenarioTitle string        `json:"scenario_title,omitempty"`
	DatasetID     string        `json:"dataset_id,omitempty"`
	ExecutionID   int64         `json:"execution_id"`
	Status        Status        `json:"status"`
	StartDate     time.Time     `json:"start_date,omitempty"`
	Duration      time.Duration `json:"duration"`
	Error         string        `json:"error,omitempty"`
}

// Status returns the worst status of the member scenario executions.
func (c CampaignExecution) Status() Status {
	statuses := make([]Status, len(c.Scenarios))
	for i, s := range c.Scenarios {
		statuses[i] = s.Status
	}
	return worstOf(statuses)
}

// Ended reports whether the campaign execution finished.
func (c CampaignExecution) Ended() bool {
	return !c.EndDate.IsZero()
}

// Clone returns a copy that does not share the scenarios slice.
func (c CampaignExecution) Clone() CampaignExecution {
	cp := c
	cp.Scenarios = append([]ScenarioExecutionCampaign(nil), c.Scenarios...)
	return cp
}
