package step

import (
	"github.com/rs/zerolog"

	"github.com/mrz1836/cadence/internal/action"
	"github.com/mrz1836/cadence/internal/clock"
	"github.com/mrz1836/cadence/internal/constants"
	"github.com/mrz1836/cadence/internal/domain"
	"github.com/mrz1836/cadence/internal/eval"
)

// ActionResolver resolves an action type to its factory.
type ActionResolver interface {
	Resolve(actionType string) (action.Factory, error)
}

// Builder creates runtime steps for one scenario execution. Every step it
// creates shares its evaluator, action resolver and environment.
type Builder struct {
	evaluator eval.Evaluator
	actions   ActionResolver
	env       domain.Environment
	clock     clock.Clock
	logger    zerolog.Logger
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithClock sets the clock used for step timing.
func WithClock(c clock.Clock) BuilderOption {
	return func(b *Builder) {
		b.clock = c
	}
}

// WithLogger sets the logger used by leaf executions and handed to actions.
func WithLogger(logger zerolog.Logger) BuilderOption {
	return func(b *Builder) {
		b.logger = logger
	}
}

// NewBuilder creates a Builder for the given environment.
func NewBuilder(evaluator eval.Evaluator, actions ActionResolver, env domain.Environment, opts ...BuilderOption) *Builder {
	b := &Builder{
		evaluator: evaluator,
		actions:   actions,
		env:       env,
		clock:     clock.RealClock{},
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build creates the runtime tree of a definition.
func (b *Builder) Build(def domain.StepDefinition) *Step {
	s := &Step{
		builder: b,
		def:     def,
		name:    def.Name,
		status:  constants.StatusNotExecuted,
	}
	if len(def.Steps) > 0 {
		s.children = make([]*Step, len(def.Steps))
		for i, child := range def.Steps {
			s.children[i] = b.Build(child)
		}
	}
	return s
}

// Evaluator returns the evaluator shared by the built steps.
func (b *Builder) Evaluator() eval.Evaluator {
	return b.evaluator
}

// Clock returns the clock shared by the built steps.
func (b *Builder) Clock() clock.Clock {
	return b.clock
}
