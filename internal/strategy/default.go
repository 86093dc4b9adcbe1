package strategy

import (
	"context"
	"fmt"

	"github.com/mrz1836/cadence/internal/constants"
	"github.com/mrz1836/cadence/internal/step"
)

// Default runs children sequentially in declaration order and stops at the
// first FAILURE. A step without children is executed as a leaf.
type Default struct{}

// Type implements Strategy.
func (Default) Type() string { return constants.StrategyDefault }

// Execute implements Strategy.
func (Default) Execute(ctx context.Context, se Control, s *step.Step, scenarioCtx, localCtx step.Context, r Runner) constants.Status {
	if !s.IsParent() {
		return s.Execute(ctx, se, scenarioCtx, localCtx)
	}

	s.BeginExecution(scenarioCtx, localCtx)
	return s.EndExecution(runChildren(ctx, se, s, scenarioCtx, localCtx, r, true))
}

// runChildren executes the children of s in order and returns the
// aggregated status without ending s. With failFast the loop stops after
// the first FAILURE; remaining children stay NOT_EXECUTED. A stop request
// observed between children preempts the rest and yields STOPPED.
func runChildren(ctx context.Context, se Control, s *step.Step, scenarioCtx, localCtx step.Context, r Runner, failFast bool) constants.Status {
	for _, child := range s.Children() {
		if status, interrupted := checkpoint(ctx, se, s); interrupted {
			return status
		}

		status := r.Run(ctx, se, child, scenarioCtx, localCtx)
		if status == constants.StatusStopped {
			return constants.StatusStopped
		}
		if failFast && status == constants.StatusFailure {
			break
		}
	}

	status, ran := s.ExecutedChildrenStatus()
	if !ran {
		return constants.StatusSuccess
	}
	return status
}

// checkpoint is the polling point strategies pass between two units of
// work: it blocks while the execution is paused and reports a stop.
func checkpoint(ctx context.Context, se Control, s *step.Step) (constants.Status, bool) {
	if se.HasToStop() {
		return constants.StatusStopped, true
	}
	if se.HasToPause() {
		s.SetPaused(true)
		err := se.WaitWhilePaused(ctx)
		s.SetPaused(false)
		if err != nil {
			s.AddErrors(fmt.Sprintf("Execution interrupted while paused: %v", err))
			return constants.StatusFailure, true
		}
		if se.HasToStop() {
			return constants.StatusStopped, true
		}
	}
	return "", false
}
