package strategy

import (
	"context"
	"fmt"

	"github.com/mrz1836/cadence/internal/constants"
	"github.com/mrz1836/cadence/internal/errors"
	"github.com/mrz1836/cadence/internal/eval"
	"github.com/mrz1836/cadence/internal/step"
)

// ForEach materializes one iteration step per dataset row and runs each of
// them under Default with the row injected into the local context.
// Iterations are independent: a failing one does not stop the next.
//
// The dataset is materialized once per step. When the step is re-executed
// by an enclosing retry, the existing iterations run again.
type ForEach struct{}

// Type implements Strategy.
func (ForEach) Type() string { return constants.StrategyForEach }

// Execute implements Strategy.
func (ForEach) Execute(ctx context.Context, se Control, s *step.Step, scenarioCtx, localCtx step.Context, r Runner) constants.Status {
	s.BeginExecution(scenarioCtx, localCtx)

	if !s.ForEachApplied() {
		if err := materialize(s, step.Merge(scenarioCtx, localCtx)); err != nil {
			return configFailure(s, constants.StrategyForEach, err)
		}
	}

	for _, iteration := range s.Children() {
		if status, interrupted := checkpoint(ctx, se, s); interrupted {
			return s.EndExecution(status)
		}

		iterCtx := step.Merge(localCtx, iteration.IterationContext())
		if status := runIteration(ctx, se, iteration, scenarioCtx, iterCtx, r); status == constants.StatusStopped {
			return s.Stopped()
		}
	}

	status, ran := s.ExecutedChildrenStatus()
	if !ran {
		status = constants.StatusSuccess
	}
	return s.EndExecution(status)
}

// runIteration executes an iteration under Default, through the registry
// when possible so panics are contained to the iteration.
func runIteration(ctx context.Context, se Control, iteration *step.Step, scenarioCtx, iterCtx step.Context, r Runner) constants.Status {
	if reg, ok := r.(*Registry); ok {
		return reg.RunWith(ctx, Default{}, se, iteration, scenarioCtx, iterCtx)
	}
	return r.Run(ctx, se, iteration, scenarioCtx, iterCtx)
}

// materialize evaluates the dataset and replaces the children of s by one
// iteration step per row.
func materialize(s *step.Step, evalCtx step.Context) error {
	rows, err := datasetRows(s, evalCtx)
	if err != nil {
		return err
	}

	indexName, err := stringProperty(s, constants.PropertyIndex, constants.DefaultIndexName, evalCtx)
	if err != nil {
		return err
	}

	ev := s.Builder().Evaluator()
	def := s.Definition()
	iterations := make([]*step.Step, len(rows))
	for i, row := range rows {
		values, err := eval.Map(ev, row, evalCtx)
		if err != nil {
			return fmt.Errorf("%w: %s row %d: %w", errors.ErrStrategyPropertyInvalid, constants.PropertyDataset, i, err)
		}
		iteration := s.Spawn(Iteration(def, indexName, i))
		iteration.SetIterationContext(step.Context(values))
		iterations[i] = iteration
	}

	s.SetChildren(iterations)
	s.MarkForEachApplied()
	return nil
}

// datasetRows evaluates the dataset property to a list of rows.
// Returns ErrEmptyDataset when it yields no row.
func datasetRows(s *step.Step, evalCtx step.Context) ([]map[string]any, error) {
	raw, err := requireProperty(s, constants.PropertyDataset)
	if err != nil {
		return nil, err
	}

	v := raw
	if expr, ok := raw.(string); ok {
		v, err = s.Builder().Evaluator().Evaluate(expr, evalCtx)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", errors.ErrStrategyPropertyInvalid, constants.PropertyDataset, err)
		}
	}

	rows, err := toRows(v)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.ErrEmptyDataset
	}
	return rows, nil
}

func toRows(v any) ([]map[string]any, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case []map[string]any:
		return t, nil
	case []map[string]string:
		rows := make([]map[string]any, len(t))
		for i, row := range t {
			rows[i] = stringRow(row)
		}
		return rows, nil
	case []any:
		rows := make([]map[string]any, len(t))
		for i, e := range t {
			switch row := e.(type) {
			case map[string]any:
				rows[i] = row
			case map[string]string:
				rows[i] = stringRow(row)
			default:
				return nil, fmt.Errorf("%w: %s row %d is %T, not a map",
					errors.ErrStrategyPropertyInvalid, constants.PropertyDataset, i, e)
			}
		}
		return rows, nil
	default:
		return nil, fmt.Errorf("%w: %s is %T, not a list",
			errors.ErrStrategyPropertyInvalid, constants.PropertyDataset, v)
	}
}

func stringRow(row map[string]string) map[string]any {
	out := make(map[string]any, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out
}
