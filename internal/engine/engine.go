// Package engine runs scenario executions.
//
// The Engine builds the runtime step tree of a scenario, executes it through
// the strategy registry behind a fault barrier, runs the registered teardown
// actions under soft-assert, publishes progress snapshots and stores the
// final report. Concurrent executions are bounded by the engine pool.
//
// Import rules:
//   - CAN import: internal/action, internal/clock, internal/constants,
//     internal/domain, internal/errors, internal/eval, internal/execution,
//     internal/report, internal/step, internal/strategy, std lib
//   - MUST NOT import: internal/campaign, internal/store, internal/cli
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/mrz1836/cadence/internal/action"
	"github.com/mrz1836/cadence/internal/clock"
	"github.com/mrz1836/cadence/internal/constants"
	"github.com/mrz1836/cadence/internal/domain"
	"github.com/mrz1836/cadence/internal/eval"
	"github.com/mrz1836/cadence/internal/execution"
	"github.com/mrz1836/cadence/internal/report"
	"github.com/mrz1836/cadence/internal/step"
	"github.com/mrz1836/cadence/internal/strategy"
)

// History allocates execution ids and stores final reports.
type History interface {
	NextExecutionID(ctx context.Context) (int64, error)
	Store(ctx context.Context, report domain.ExecutionReport) error
}

// Config holds configuration for the Engine.
type Config struct {
	// PoolSize bounds how many scenario executions run at once.
	PoolSize int

	// ReportInterval is the period between progress snapshots.
	// Zero disables progress snapshots; the terminal one is always published.
	ReportInterval time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		PoolSize:       constants.DefaultEnginePoolSize,
		ReportInterval: constants.DefaultReportInterval,
	}
}

// Request describes one scenario execution.
type Request struct {
	Scenario    domain.Scenario
	Dataset     *domain.Dataset
	Environment domain.Environment
	UserID      string

	// OnStart is called with the execution id once the execution is
	// registered and can receive commands.
	OnStart func(executionID int64)
}

// Engine runs scenario executions.
type Engine struct {
	history    History
	config     Config
	logger     zerolog.Logger
	actions    step.ActionResolver
	strategies *strategy.Registry
	evaluator  eval.Evaluator
	publisher  report.Publisher
	executions *execution.Registry
	clock      clock.Clock
	pool       *semaphore.Weighted
	running    sync.WaitGroup
}

// Option configures an Engine.
type Option func(*Engine)

// WithActions sets the action resolver. Defaults to the built-in actions.
func WithActions(actions step.ActionResolver) Option {
	return func(e *Engine) {
		e.actions = actions
	}
}

// WithStrategies sets the strategy registry.
func WithStrategies(strategies *strategy.Registry) Option {
	return func(e *Engine) {
		e.strategies = strategies
	}
}

// WithEvaluator sets the expression evaluator.
func WithEvaluator(evaluator eval.Evaluator) Option {
	return func(e *Engine) {
		e.evaluator = evaluator
	}
}

// WithPublisher sets the destination of report snapshots.
func WithPublisher(publisher report.Publisher) Option {
	return func(e *Engine) {
		e.publisher = publisher
	}
}

// WithExecutions sets the registry of live executions, so commands can be
// sent from outside the engine.
func WithExecutions(executions *execution.Registry) Option {
	return func(e *Engine) {
		e.executions = executions
	}
}

// WithClock sets the clock used for report and step timing.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// NewEngine creates an engine storing its reports in history.
func NewEngine(history History, cfg Config, logger zerolog.Logger, opts ...Option) *Engine {
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = constants.DefaultEnginePoolSize
	}

	e := &Engine{
		history:    history,
		config:     cfg,
		logger:     logger,
		actions:    action.NewDefaultRegistry(),
		strategies: strategy.NewDefaultRegistry(strategy.WithLogger(logger)),
		evaluator:  eval.NewTemplateEvaluator(),
		publisher:  report.NopPublisher{},
		executions: execution.NewRegistry(),
		clock:      clock.RealClock{},
	}
	for _, opt := range opts {
		opt(e)
	}
	e.pool = semaphore.NewWeighted(int64(cfg.PoolSize))
	return e
}

// Executions returns the registry of live executions.
func (e *Engine) Executions() *execution.Registry {
	return e.executions
}

// Command delivers pause, resume or stop to a live execution.
// Returns ErrScenarioExecutionNotFound if the execution is not live.
func (e *Engine) Command(executionID int64, cmd execution.Command) error {
	return e.executions.Send(executionID, cmd)
}

// Execute starts a scenario execution in the background and returns its id
// as soon as it is registered. Progress is available from the publisher.
func (e *Engine) Execute(ctx context.Context, req Request) (int64, error) {
	se, err := e.start(ctx, req)
	if err != nil {
		return 0, err
	}

	runCtx := context.WithoutCancel(ctx)
	e.running.Add(1)
	go func() {
		defer e.running.Done()
		if err := e.pool.Acquire(runCtx, 1); err != nil {
			return
		}
		defer e.pool.Release(1)
		e.finish(runCtx, se, req)
	}()

	return se.ID(), nil
}

// ExecuteAndWait runs a scenario execution and returns its final report.
// The only errors returned are those preventing the execution from
// starting; execution failures are reported through the report status.
func (e *Engine) ExecuteAndWait(ctx context.Context, req Request) (domain.ExecutionReport, error) {
	if err := e.pool.Acquire(ctx, 1); err != nil {
		return domain.ExecutionReport{}, fmt.Errorf("waiting for engine pool: %w", err)
	}
	defer e.pool.Release(1)

	se, err := e.start(ctx, req)
	if err != nil {
		return domain.ExecutionReport{}, err
	}
	return e.finish(ctx, se, req), nil
}

// Wait blocks until every background execution has completed.
func (e *Engine) Wait() {
	e.running.Wait()
}

// start allocates the execution id and registers the execution.
func (e *Engine) start(ctx context.Context, req Request) (*execution.ScenarioExecution, error) {
	id, err := e.history.NextExecutionID(ctx)
	if err != nil {
		return nil, fmt.Errorf("allocating execution id: %w", err)
	}

	se := execution.New(id)
	e.executions.Add(se)
	e.publisher.Open(id)

	e.logger.Info().
		Int64("execution_id", id).
		Str("scenario_id", req.Scenario.ID).
		Str("environment", req.Environment.Name).
		Str("dataset_id", datasetID(req.Dataset)).
		Msg("scenario execution started")

	if req.OnStart != nil {
		req.OnStart(id)
	}
	return se, nil
}

// finish runs the execution, stores the report and closes the stream.
func (e *Engine) finish(ctx context.Context, se *execution.ScenarioExecution, req Request) domain.ExecutionReport {
	defer e.executions.Remove(se.ID())

	final := e.run(ctx, se, req)

	// a canceled run still has a real outcome to record
	if err := e.history.Store(context.WithoutCancel(ctx), final); err != nil {
		e.logger.Error().Err(err).
			Int64("execution_id", se.ID()).
			Str("scenario_id", req.Scenario.ID).
			Msg("failed to store execution report")
	}
	e.publisher.Close(se.ID(), final)

	e.logger.Info().
		Int64("execution_id", se.ID()).
		Str("scenario_id", req.Scenario.ID).
		Str("status", final.Status.String()).
		Int64("duration_ms", final.Duration.Milliseconds()).
		Msg("scenario execution completed")

	return final
}

func datasetID(ds *domain.Dataset) string {
	if ds == nil {
		return ""
	}
	return ds.ID
}
