// Package strategy provides the policies deciding how a step's children are
// executed and how their statuses combine into the step's own status.
//
// Strategies hold no state. They are dispatched by declared type through a
// Registry, and every child is executed through the Registry again so that
// children may declare their own strategy.
//
// Import rules:
//   - CAN import: internal/constants, internal/ctxutil, internal/domain,
//     internal/errors, internal/eval, internal/step, std lib
//   - MUST NOT import: internal/engine, internal/campaign, internal/cli
package strategy

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/mrz1836/cadence/internal/constants"
	"github.com/mrz1836/cadence/internal/errors"
	"github.com/mrz1836/cadence/internal/step"
)

// Control is the scenario execution as seen by strategies. On top of the
// step polling points it exposes the stop signal so retry pauses can be
// cut short.
type Control interface {
	step.Control
	StopRequested() <-chan struct{}
}

// Runner executes a step under the strategy it declares.
type Runner interface {
	Run(ctx context.Context, se Control, s *step.Step, scenarioCtx, localCtx step.Context) constants.Status
}

// Strategy executes one tree node and returns its final status.
type Strategy interface {
	// Type returns the strategy type name declared in step definitions.
	Type() string

	// Execute runs s and its children. Children are executed through r.
	Execute(ctx context.Context, se Control, s *step.Step, scenarioCtx, localCtx step.Context, r Runner) constants.Status
}

// Registry maps strategy types to strategies.
// It is safe for concurrent read access after initialization.
type Registry struct {
	mu         sync.RWMutex
	strategies map[string]Strategy
	logger     zerolog.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithLogger sets the logger used to report recovered panics.
func WithLogger(logger zerolog.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = logger
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		strategies: make(map[string]Strategy),
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewDefaultRegistry creates a registry holding every built-in strategy.
func NewDefaultRegistry(opts ...RegistryOption) *Registry {
	r := NewRegistry(opts...)
	r.Register(Default{})
	r.Register(Retry{})
	r.Register(ForEach{})
	r.Register(If{})
	r.Register(SoftAssert{})
	return r
}

// Ensure Registry implements Runner.
var _ Runner = (*Registry)(nil)

// Register adds a strategy. An existing strategy for the same type is replaced.
func (r *Registry) Register(s Strategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategies[s.Type()] = s
}

// Resolve returns the strategy for a declared type. An empty type resolves
// to the default strategy.
// Returns ErrStrategyNotFound if no strategy is registered for the type.
func (r *Registry) Resolve(strategyType string) (Strategy, error) {
	if strategyType == "" {
		strategyType = constants.StrategyDefault
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.strategies[strategyType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errors.ErrStrategyNotFound, strategyType)
	}
	return s, nil
}

// Types returns the registered strategy types, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.strategies))
	for t := range r.strategies {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Run resolves the strategy declared by s and executes it. An unknown
// strategy and any panic escaping the strategy fail s; nothing propagates
// past this call.
func (r *Registry) Run(ctx context.Context, se Control, s *step.Step, scenarioCtx, localCtx step.Context) constants.Status {
	strategy, err := r.Resolve(s.Definition().StrategyType())
	if err != nil {
		s.BeginExecution(scenarioCtx, localCtx)
		return s.Failure(err.Error())
	}
	return r.run(ctx, strategy, se, s, scenarioCtx, localCtx)
}

// RunWith executes s under the given strategy, ignoring the declared one.
func (r *Registry) RunWith(ctx context.Context, strategy Strategy, se Control, s *step.Step, scenarioCtx, localCtx step.Context) constants.Status {
	return r.run(ctx, strategy, se, s, scenarioCtx, localCtx)
}

func (r *Registry) run(ctx context.Context, strategy Strategy, se Control, s *step.Step, scenarioCtx, localCtx step.Context) (status constants.Status) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error().
				Int64("execution_id", se.ID()).
				Str("step_name", s.Name()).
				Str("strategy", strategy.Type()).
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Msg("strategy panicked")
			status = s.Failure(fmt.Sprintf("Step [%s] failed: %v", s.Name(), rec))
		}
	}()
	return strategy.Execute(ctx, se, s, scenarioCtx, localCtx, r)
}

// configFailure fails s with a configuration error attributed to its strategy.
func configFailure(s *step.Step, strategyType string, err error) constants.Status {
	return s.Failure(fmt.Sprintf("Strategy [%s] failed: %v", strategyType, err))
}
