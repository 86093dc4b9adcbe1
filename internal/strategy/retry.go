package strategy

import (
	"context"
	"fmt"
	"strings"

	"github.com/mrz1836/cadence/internal/constants"
	"github.com/mrz1836/cadence/internal/ctxutil"
	"github.com/mrz1836/cadence/internal/errors"
	"github.com/mrz1836/cadence/internal/step"
)

// Retry re-executes the whole sub-tree under Default until it stops failing
// or timeOut elapses, pausing retryDelay between attempts. The delay is
// fixed.
type Retry struct{}

// Type implements Strategy.
func (Retry) Type() string { return constants.StrategyRetryWithTimeout }

// Execute implements Strategy.
func (Retry) Execute(ctx context.Context, se Control, s *step.Step, scenarioCtx, localCtx step.Context, r Runner) constants.Status {
	s.BeginExecution(scenarioCtx, localCtx)

	evalCtx := step.Merge(scenarioCtx, localCtx)
	timeout, err := durationProperty(s, constants.PropertyTimeout, evalCtx)
	if err != nil {
		return configFailure(s, constants.StrategyRetryWithTimeout, err)
	}
	delay, err := durationProperty(s, constants.PropertyRetryDelay, evalCtx)
	if err != nil {
		return configFailure(s, constants.StrategyRetryWithTimeout, err)
	}

	clk := s.Builder().Clock()
	deadline := clk.Now().Add(timeout)

	for attempt := 1; ; attempt++ {
		if se.HasToStop() {
			return s.Stopped()
		}

		status := Default{}.Execute(ctx, se, s, scenarioCtx, localCtx, r)
		if status != constants.StatusFailure {
			return status
		}

		if !clk.Now().Before(deadline) {
			s.AddErrors(fmt.Sprintf("Timeout of %s reached after %d attempt(s)", timeout, attempt))
			return s.EndExecution(constants.StatusFailure)
		}

		errs := s.CollectErrors()
		s.ResetExecution()
		s.AddInformation(fmt.Sprintf("Attempt %d failed: %s", attempt, strings.Join(errs, "; ")))

		if err := ctxutil.Sleep(ctx, delay, se.StopRequested()); err != nil {
			return s.Failure(fmt.Sprintf("%v: %v", errors.ErrRetryInterrupted, err))
		}
	}
}
