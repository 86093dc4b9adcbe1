package strategy

import (
	"context"
	"fmt"

	"github.com/mrz1836/cadence/internal/constants"
	"github.com/mrz1836/cadence/internal/errors"
	"github.com/mrz1836/cadence/internal/eval"
	"github.com/mrz1836/cadence/internal/step"
)

// If executes the step like Default when its condition holds. Otherwise the
// step and all its descendants are marked SUCCESS with a skip note and no
// action runs.
type If struct{}

// Type implements Strategy.
func (If) Type() string { return constants.StrategyIf }

// Execute implements Strategy.
func (If) Execute(ctx context.Context, se Control, s *step.Step, scenarioCtx, localCtx step.Context, r Runner) constants.Status {
	s.BeginExecution(scenarioCtx, localCtx)

	condition, err := requireProperty(s, constants.PropertyCondition)
	if err != nil {
		return configFailure(s, constants.StrategyIf, err)
	}

	ok, err := eval.Bool(s.Builder().Evaluator(), condition, step.Merge(scenarioCtx, localCtx))
	if err != nil {
		return configFailure(s, constants.StrategyIf, fmt.Errorf("%w: %w", errors.ErrStrategyPropertyInvalid, err))
	}

	if !ok {
		s.Skip()
		return s.EndExecution(constants.StatusSuccess)
	}
	return Default{}.Execute(ctx, se, s, scenarioCtx, localCtx, r)
}
