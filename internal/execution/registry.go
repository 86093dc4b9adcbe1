package execution

import (
	"fmt"
	"sort"
	"sync"

	"github.com/mrz1836/cadence/internal/errors"
)

// Registry tracks live scenario executions so commands can be addressed by
// execution id.
type Registry struct {
	mu         sync.RWMutex
	executions map[int64]*ScenarioExecution
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{executions: make(map[int64]*ScenarioExecution)}
}

// Add registers a live execution.
func (r *Registry) Add(e *ScenarioExecution) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executions[e.ID()] = e
}

// Remove forgets an execution.
func (r *Registry) Remove(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.executions, id)
}

// Get returns a live execution.
func (r *Registry) Get(id int64) (*ScenarioExecution, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.executions[id]
	return e, ok
}

// Send delivers a command to a live execution.
func (r *Registry) Send(id int64, cmd Command) error {
	e, ok := r.Get(id)
	if !ok {
		return fmt.Errorf("%w: %d", errors.ErrScenarioExecutionNotFound, id)
	}
	e.Apply(cmd)
	return nil
}

// IDs returns the ids of live executions in ascending order.
func (r *Registry) IDs() []int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]int64, 0, len(r.executions))
	for id := range r.executions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
