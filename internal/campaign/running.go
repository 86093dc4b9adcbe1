package campaign

import (
	"sort"
	"sync"
	"time"

	"github.com/mrz1836/cadence/internal/domain"
)

// running is the mutable state of a campaign execution in progress. Member
// slots are written by the scenario tasks, read by Current and Stop.
type running struct {
	mu        sync.Mutex
	execution domain.CampaignExecution
	stop      bool
	live      map[int64]struct{}
}

func newRunning(exec domain.CampaignExecution) *running {
	return &running{execution: exec, live: make(map[int64]struct{})}
}

func (r *running) id() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.execution.ID
}

func (r *running) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.execution.Scenarios)
}

func (r *running) member(i int) domain.ScenarioExecutionCampaign {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.execution.Scenarios[i]
}

func (r *running) set(i int, result domain.ScenarioExecutionCampaign) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.execution.Scenarios[i] = result
}

func (r *running) requestStop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stop = true
}

func (r *running) stopRequested() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stop
}

// started records a live scenario execution and reports whether a stop was
// already requested.
func (r *running) started(executionID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.live[executionID] = struct{}{}
	return r.stop
}

func (r *running) finished(executionID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.live, executionID)
}

func (r *running) liveScenarios() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]int64, 0, len(r.live))
	for id := range r.live {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (r *running) snapshot() domain.CampaignExecution {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.execution.Clone()
}

func (r *running) end(at time.Time) domain.CampaignExecution {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.execution.EndDate = at
	return r.execution.Clone()
}
