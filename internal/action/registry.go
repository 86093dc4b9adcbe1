package action

import (
	"fmt"
	"sort"
	"sync"

	"github.com/mrz1836/cadence/internal/errors"
)

// Registry maps action types to their factories.
// It is safe for concurrent read access after initialization.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// NewDefaultRegistry creates a registry holding every built-in action.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	for actionType, factory := range builtins() {
		r.Register(actionType, factory)
	}
	return r
}

// Register adds a factory. An existing factory for the same type is replaced.
func (r *Registry) Register(actionType string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[actionType] = factory
}

// Resolve returns the factory for an action type.
// Returns ErrActionNotFound if no factory is registered for the type.
func (r *Registry) Resolve(actionType string) (Factory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.factories[actionType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errors.ErrActionNotFound, actionType)
	}
	return f, nil
}

// Types returns the registered action types, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.factories))
	for t := range r.factories {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
