package strategy

import (
	"context"

	"github.com/mrz1836/cadence/internal/constants"
	"github.com/mrz1836/cadence/internal/step"
)

// SoftAssert runs every child whatever the outcome of the previous ones.
// A FAILURE of the step itself is reported as WARN; children keep their own
// statuses.
type SoftAssert struct{}

// Type implements Strategy.
func (SoftAssert) Type() string { return constants.StrategySoftAssert }

// Execute implements Strategy.
func (SoftAssert) Execute(ctx context.Context, se Control, s *step.Step, scenarioCtx, localCtx step.Context, r Runner) constants.Status {
	if !s.IsParent() {
		return s.EndExecution(soften(s.Execute(ctx, se, scenarioCtx, localCtx)))
	}

	s.BeginExecution(scenarioCtx, localCtx)
	return s.EndExecution(soften(runChildren(ctx, se, s, scenarioCtx, localCtx, r, false)))
}

func soften(status constants.Status) constants.Status {
	if status == constants.StatusFailure {
		return constants.StatusWarn
	}
	return status
}
