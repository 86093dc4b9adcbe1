package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/mrz1836/cadence/internal/domain"
	"github.com/mrz1836/cadence/internal/errors"
)

// MemoryDefinitions keeps definitions in memory. It is safe for concurrent use.
type MemoryDefinitions struct {
	mu           sync.RWMutex
	scenarios    map[string]domain.Scenario
	campaigns    map[string]domain.Campaign
	datasets     map[string]domain.Dataset
	environments map[string]domain.Environment
}

var _ Definitions = (*MemoryDefinitions)(nil)

// NewMemoryDefinitions creates an empty in-memory definitions store.
func NewMemoryDefinitions() *MemoryDefinitions {
	return &MemoryDefinitions{
		scenarios:    make(map[string]domain.Scenario),
		campaigns:    make(map[string]domain.Campaign),
		datasets:     make(map[string]domain.Dataset),
		environments: make(map[string]domain.Environment),
	}
}

// AddScenario stores s, replacing any scenario with the same id.
func (m *MemoryDefinitions) AddScenario(s domain.Scenario) *MemoryDefinitions {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scenarios[s.ID] = s
	return m
}

// AddCampaign stores c, replacing any campaign with the same id.
func (m *MemoryDefinitions) AddCampaign(c domain.Campaign) *MemoryDefinitions {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.campaigns[c.ID] = c
	return m
}

// AddDataset stores ds, replacing any dataset with the same id.
func (m *MemoryDefinitions) AddDataset(ds domain.Dataset) *MemoryDefinitions {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.datasets[ds.ID] = ds
	return m
}

// AddEnvironment stores e, replacing any environment with the same name.
func (m *MemoryDefinitions) AddEnvironment(e domain.Environment) *MemoryDefinitions {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.environments[e.Name] = e
	return m
}

// Scenario returns a scenario by id.
func (m *MemoryDefinitions) Scenario(_ context.Context, id string) (domain.Scenario, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.scenarios[id]
	if !ok {
		return domain.Scenario{}, fmt.Errorf("%w: %s", errors.ErrScenarioNotFound, id)
	}
	return s, nil
}

// Scenarios returns every scenario sorted by id.
func (m *MemoryDefinitions) Scenarios(_ context.Context) ([]domain.Scenario, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Scenario, 0, len(m.scenarios))
	for _, s := range m.scenarios {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Campaign returns a campaign by id.
func (m *MemoryDefinitions) Campaign(_ context.Context, id string) (domain.Campaign, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.campaigns[id]
	if !ok {
		return domain.Campaign{}, fmt.Errorf("%w: %s", errors.ErrCampaignNotFound, id)
	}
	return c, nil
}

// Campaigns returns every campaign sorted by id.
func (m *MemoryDefinitions) Campaigns(_ context.Context) ([]domain.Campaign, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Campaign, 0, len(m.campaigns))
	for _, c := range m.campaigns {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Dataset returns a dataset by id.
func (m *MemoryDefinitions) Dataset(_ context.Context, id string) (domain.Dataset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ds, ok := m.datasets[id]
	if !ok {
		return domain.Dataset{}, fmt.Errorf("%w: %s", errors.ErrDatasetNotFound, id)
	}
	return ds, nil
}

// Datasets returns every dataset sorted by id.
func (m *MemoryDefinitions) Datasets(_ context.Context) ([]domain.Dataset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Dataset, 0, len(m.datasets))
	for _, ds := range m.datasets {
		out = append(out, ds)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Environment returns an environment by name.
func (m *MemoryDefinitions) Environment(ctx context.Context, name string) (domain.Environment, error) {
	all, err := m.Environments(ctx)
	if err != nil {
		return domain.Environment{}, err
	}
	return pickEnvironment(all, name)
}

// Environments returns every environment sorted by name.
func (m *MemoryDefinitions) Environments(_ context.Context) ([]domain.Environment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Environment, 0, len(m.environments))
	for _, e := range m.environments {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// MemoryHistory keeps execution records in memory. It is safe for concurrent use.
type MemoryHistory struct {
	mu            sync.RWMutex
	nextID        int64
	nextCampaign  int64
	reports       map[int64]domain.ExecutionReport
	campaignsByID map[int64]domain.CampaignExecution
}

var _ History = (*MemoryHistory)(nil)

// NewMemoryHistory creates an empty in-memory history.
func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{
		reports:       make(map[int64]domain.ExecutionReport),
		campaignsByID: make(map[int64]domain.CampaignExecution),
	}
}

// NextExecutionID allocates a scenario execution id.
func (m *MemoryHistory) NextExecutionID(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	return m.nextID, nil
}

// Store saves a final scenario execution report.
func (m *MemoryHistory) Store(_ context.Context, report domain.ExecutionReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports[report.ExecutionID] = report
	return nil
}

// Execution returns a stored report.
func (m *MemoryHistory) Execution(_ context.Context, scenarioID string, id int64) (domain.ExecutionReport, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.reports[id]
	if !ok || r.ScenarioID != scenarioID {
		return domain.ExecutionReport{}, fmt.Errorf("%w: %s/%d", errors.ErrExecutionNotFound, scenarioID, id)
	}
	return r, nil
}

// Executions returns the reports of a scenario, newest first.
func (m *MemoryHistory) Executions(_ context.Context, scenarioID string) ([]domain.ExecutionReport, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.ExecutionReport
	for _, r := range m.reports {
		if r.ScenarioID == scenarioID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExecutionID > out[j].ExecutionID })
	return out, nil
}

// NextCampaignExecutionID allocates a campaign execution id.
func (m *MemoryHistory) NextCampaignExecutionID(_ context.Context, _ string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextCampaign++
	return m.nextCampaign, nil
}

// SaveCampaignExecution saves a campaign execution record.
func (m *MemoryHistory) SaveCampaignExecution(_ context.Context, execution domain.CampaignExecution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.campaignsByID[execution.ID] = execution.Clone()
	return nil
}

// CampaignExecution returns a stored campaign execution.
func (m *MemoryHistory) CampaignExecution(_ context.Context, campaignID string, id int64) (domain.CampaignExecution, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.campaignsByID[id]
	if !ok || c.CampaignID != campaignID {
		return domain.CampaignExecution{}, fmt.Errorf("%w: %s/%d", errors.ErrCampaignExecutionNotFound, campaignID, id)
	}
	return c.Clone(), nil
}

// CampaignExecutions returns the executions of a campaign, newest first.
func (m *MemoryHistory) CampaignExecutions(_ context.Context, campaignID string) ([]domain.CampaignExecution, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.CampaignExecution
	for _, c := range m.campaignsByID {
		if c.CampaignID == campaignID {
			out = append(out, c.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

// Close is a no-op.
func (m *MemoryHistory) Close() error {
	return nil
}
