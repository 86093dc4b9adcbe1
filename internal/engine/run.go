package engine

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/mrz1836/cadence/internal/constants"
	"github.com/mrz1836/cadence/internal/domain"
	"github.com/mrz1836/cadence/internal/execution"
	"github.com/mrz1836/cadence/internal/step"
	"github.com/mrz1836/cadence/internal/strategy"
)

// run executes the main tree then the teardown, and returns the final report.
func (e *Engine) run(ctx context.Context, se *execution.ScenarioExecution, req Request) domain.ExecutionReport {
	logger := e.logger.With().
		Int64("execution_id", se.ID()).
		Str("scenario_id", req.Scenario.ID).
		Logger()

	builder := step.NewBuilder(e.evaluator, e.actions, req.Environment,
		step.WithClock(e.clock), step.WithLogger(logger))
	root := builder.Build(req.Scenario.Root())
	startDate := e.clock.Now()

	snapshot := func() domain.ExecutionReport {
		r := root.Snapshot()
		return domain.ExecutionReport{
			ExecutionID:   se.ID(),
			ScenarioID:    req.Scenario.ID,
			ScenarioTitle: req.Scenario.Title,
			Environment:   req.Environment.Name,
			DatasetID:     datasetID(req.Dataset),
			UserID:        req.UserID,
			Status:        r.Status,
			StartDate:     startDate,
			Duration:      e.clock.Now().Sub(startDate),
			Report:        r,
		}
	}

	done := make(chan struct{})
	progressStopped := make(chan struct{})
	go func() {
		defer close(progressStopped)
		e.publishProgress(se.ID(), snapshot, done)
	}()
	// the terminal snapshot must be the last one published
	defer func() {
		close(done)
		<-progressStopped
	}()

	scenarioCtx, err := e.rootContext(req)
	if err != nil {
		root.BeginExecution(nil, nil)
		root.Failure(fmt.Sprintf("Execution failed: %v", err))
	} else {
		e.barrier(root, logger, "scenario", func() constants.Status {
			return e.strategies.Run(ctx, se, root, scenarioCtx, nil)
		})
	}
	mainStatus := root.Status()

	if finally := se.FinallyActions(); len(finally) > 0 {
		teardown := builder.Build(teardownDefinition(finally))
		root.AddChild(teardown)
		tc := teardownControl{id: se.ID()}
		teardownStatus := e.barrier(teardown, logger, "teardown", func() constants.Status {
			return e.strategies.Run(ctx, tc, teardown, scenarioCtx, nil)
		})
		root.EndExecution(constants.Worst(mainStatus, teardownStatus))
	}

	final := snapshot()
	final.Error = strings.Join(root.Errors(), "; ")
	return final
}

// barrier runs fn and converts any panic escaping it into a FAILURE of s.
// Go runtime fatal errors such as out of memory or stack exhaustion cannot
// be recovered and terminate the process.
func (e *Engine) barrier(s *step.Step, logger zerolog.Logger, phase string, fn func() constants.Status) (status constants.Status) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error().
				Str("phase", phase).
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("execution panicked")
			if s.Status() == constants.StatusNotExecuted {
				s.BeginExecution(nil, nil)
			}
			status = s.Failure(fmt.Sprintf("Execution failed: %v", r))
		}
	}()
	return fn()
}

// rootContext seeds the scenario context with the environment and dataset.
func (e *Engine) rootContext(req Request) (step.Context, error) {
	vars := make(map[string]any, len(req.Environment.Variables))
	for k, v := range req.Environment.Variables {
		vars[k] = v
	}

	ctx := step.Context{
		constants.ContextKeyEnvironment:          req.Environment.Name,
		constants.ContextKeyEnvironmentVariables: vars,
	}

	ds := req.Dataset
	if ds == nil {
		ctx[constants.ContextKeyDataset] = []any{}
		return ctx, nil
	}

	keys := make([]string, 0, len(ds.Constants))
	for k := range ds.Constants {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	evaluated := make(map[string]any, len(keys))
	for _, k := range keys {
		v, err := e.evaluator.Evaluate(ds.Constants[k], ctx)
		if err != nil {
			return ctx, fmt.Errorf("dataset constant [%s]: %w", k, err)
		}
		evaluated[k] = v
	}
	for k, v := range evaluated {
		ctx[k] = v
	}

	if len(ds.Datatable) == 0 && len(evaluated) > 0 {
		ctx[constants.ContextKeyDataset] = []any{evaluated}
	} else {
		ctx[constants.ContextKeyDataset] = ds.Rows()
	}
	return ctx, nil
}

func (e *Engine) publishProgress(id int64, snapshot func() domain.ExecutionReport, done <-chan struct{}) {
	if e.config.ReportInterval <= 0 {
		return
	}
	ticker := time.NewTicker(e.config.ReportInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			e.publisher.Publish(id, snapshot())
		}
	}
}

func teardownDefinition(finally []domain.FinallyAction) domain.StepDefinition {
	steps := make([]domain.StepDefinition, len(finally))
	for i, f := range finally {
		steps[i] = f.Definition()
	}
	return domain.StepDefinition{
		Name:     constants.TearDownStepName,
		Strategy: &domain.StrategyDefinition{Type: constants.StrategySoftAssert},
		Steps:    steps,
	}
}

// teardownControl drives the teardown tree. Teardown runs whatever the
// outcome of the main tree, so it ignores pause and stop, and actions
// registered during teardown are not executed.
type teardownControl struct {
	id int64
}

// Ensure teardownControl implements strategy.Control.
var _ strategy.Control = teardownControl{}

// ID implements step.Control.
func (c teardownControl) ID() int64 { return c.id }

// HasToStop implements step.Control.
func (teardownControl) HasToStop() bool { return false }

// HasToPause implements step.Control.
func (teardownControl) HasToPause() bool { return false }

// WaitWhilePaused implements step.Control.
func (teardownControl) WaitWhilePaused(context.Context) error { return nil }

// RegisterFinally implements step.Control.
func (teardownControl) RegisterFinally(domain.FinallyAction) {}

// StopRequested implements strategy.Control.
func (teardownControl) StopRequested() <-chan struct{} { return nil }
