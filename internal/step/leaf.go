package step

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"

	"github.com/mrz1836/cadence/internal/action"
	"github.com/mrz1836/cadence/internal/constants"
	"github.com/mrz1836/cadence/internal/domain"
	"github.com/mrz1836/cadence/internal/errors"
	"github.com/mrz1836/cadence/internal/eval"
)

// Execute runs the step as a leaf: it evaluates inputs, resolves and
// validates the action, invokes it and publishes its outputs into the
// scenario context. Every error ends as a FAILURE on this step; nothing
// escapes the step boundary.
func (s *Step) Execute(ctx context.Context, se Control, scenarioCtx, localCtx Context) constants.Status {
	s.BeginExecution(scenarioCtx, localCtx)

	if status, interrupted := s.pollControl(ctx, se); interrupted {
		return status
	}

	status := s.runAction(ctx, se, scenarioCtx, localCtx)

	s.builder.logger.Debug().
		Int64("execution_id", se.ID()).
		Str("step_name", s.Name()).
		Str("step_type", s.def.Type).
		Str("status", status.String()).
		Msg("step executed")

	return status
}

// pollControl honors pause and stop requests before the action starts.
func (s *Step) pollControl(ctx context.Context, se Control) (constants.Status, bool) {
	if se.HasToPause() {
		s.SetPaused(true)
		err := se.WaitWhilePaused(ctx)
		s.SetPaused(false)
		if err != nil {
			return s.Failure(fmt.Sprintf("Execution interrupted while paused: %v", err)), true
		}
	}
	if se.HasToStop() {
		return s.Stopped(), true
	}
	return "", false
}

func (s *Step) runAction(ctx context.Context, se Control, scenarioCtx, localCtx Context) constants.Status {
	def := s.def
	if def.Type == "" {
		return s.EndExecution(constants.StatusSuccess)
	}

	evalCtx := Merge(scenarioCtx, localCtx)

	target, err := s.resolveTarget(evalCtx)
	if err != nil {
		return s.Failure(fmt.Sprintf("Action [%s] failed: %v", def.Type, err))
	}
	if target != nil {
		evalCtx[constants.ContextKeyTarget] = *target
	}

	inputs, err := eval.Map(s.builder.evaluator, def.Inputs, evalCtx)
	if err != nil {
		return s.Failure(fmt.Sprintf("Action [%s] failed: %v", def.Type, err))
	}
	s.setInputs(inputs)

	factory, err := s.builder.actions.Resolve(def.Type)
	if err != nil {
		return s.Failure(fmt.Sprintf("Action [%s] failed: %v", def.Type, err))
	}

	result := s.invoke(ctx, factory, action.Input{
		StepName: s.Name(),
		Type:     def.Type,
		Target:   target,
		Inputs:   inputs,
		Logger:   s.builder.logger.With().Str("step_name", s.Name()).Str("step_type", def.Type).Logger(),
		Finally:  se,
	})

	s.AddInformation(result.Info...)
	s.AddErrors(result.Errors...)

	switch result.Status {
	case constants.StatusSuccess:
		return s.publish(evalCtx, scenarioCtx, localCtx, result.Outputs)
	case constants.StatusFailure:
		if len(result.Errors) == 0 {
			s.AddErrors(fmt.Sprintf("Action [%s] failed", def.Type))
		}
		return s.EndExecution(constants.StatusFailure)
	case constants.StatusWarn, constants.StatusStopped, constants.StatusNotExecuted:
		return s.EndExecution(result.Status)
	default:
		return s.Failure(fmt.Sprintf("Action [%s] failed: unexpected status %q", def.Type, result.Status))
	}
}

// invoke validates and executes the action, converting panics into failures.
func (s *Step) invoke(ctx context.Context, factory action.Factory, in action.Input) (result action.Result) {
	defer func() {
		if r := recover(); r != nil {
			s.builder.logger.Error().
				Str("step_name", in.StepName).
				Str("step_type", in.Type).
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("action panicked")
			result = action.Failed(fmt.Sprintf("Action [%s] failed: %v", in.Type, r))
		}
	}()

	act := factory(in)
	if errs := act.ValidateInputs(); len(errs) > 0 {
		return action.Failed(errs...)
	}
	return act.Execute(ctx)
}

func (s *Step) resolveTarget(evalCtx Context) (*domain.Target, error) {
	if s.def.Target == "" {
		return nil, nil
	}
	name, err := s.builder.evaluator.EvaluateString(s.def.Target, evalCtx)
	if err != nil {
		return nil, err
	}
	target, ok := s.builder.env.FindTarget(name)
	if !ok {
		return nil, fmt.Errorf("%w: [%s] in environment [%s]", errors.ErrTargetNotFound, name, s.builder.env.Name)
	}
	return &target, nil
}

// publish stores outputs in the scenario context, then checks validations.
// Without declared outputs the raw action outputs are published; otherwise
// only the declared outputs, evaluated against the action outputs.
func (s *Step) publish(evalCtx, scenarioCtx, localCtx Context, outputs map[string]any) constants.Status {
	if len(s.def.Outputs) == 0 {
		for k, v := range outputs {
			scenarioCtx[k] = v
		}
	} else {
		outCtx := Merge(evalCtx, outputs)
		for _, key := range sortedKeys(s.def.Outputs) {
			v, err := s.builder.evaluator.Evaluate(s.def.Outputs[key], outCtx)
			if err != nil {
				return s.Failure(fmt.Sprintf("Output [%s] evaluation failed: %v", key, err))
			}
			scenarioCtx[key] = v
		}
	}

	if len(s.def.Validations) == 0 {
		return s.EndExecution(constants.StatusSuccess)
	}

	valCtx := Merge(scenarioCtx, localCtx, outputs)
	var failed []string
	for _, name := range sortedKeys(s.def.Validations) {
		ok, err := eval.Bool(s.builder.evaluator, s.def.Validations[name], valCtx)
		switch {
		case err != nil:
			failed = append(failed, fmt.Sprintf("Validation [%s] failed: %v", name, err))
		case !ok:
			failed = append(failed, fmt.Sprintf("Validation [%s] failed", name))
		default:
			s.AddInformation(fmt.Sprintf("Validation [%s] passed", name))
		}
	}
	if len(failed) > 0 {
		return s.Failure(failed...)
	}
	return s.EndExecution(constants.StatusSuccess)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
