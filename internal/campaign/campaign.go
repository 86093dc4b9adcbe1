// Package campaign runs campaigns: ordered sets of scenarios executed together
// against one environment.
//
// The Engine guarantees at most one running execution per campaign and
// environment, resolves each member's dataset, fans scenarios out on a shared
// bounded pool (or runs them one at a time), honors stop requests between
// scenarios, re-executes failed scenarios once when the campaign asks for it
// and records the outcome. Bookkeeping failures (persistence, metrics, tracker)
// are logged and never change the returned execution.
//
// Import rules:
//   - CAN import: internal/clock, internal/constants, internal/domain,
//     internal/engine, internal/errors, internal/execution, internal/store, std lib
//   - MUST NOT import: internal/cli
package campaign

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/mrz1836/cadence/internal/clock"
	"github.com/mrz1836/cadence/internal/constants"
	"github.com/mrz1836/cadence/internal/domain"
	"github.com/mrz1836/cadence/internal/engine"
	"github.com/mrz1836/cadence/internal/errors"
	"github.com/mrz1836/cadence/internal/execution"
	"github.com/mrz1836/cadence/internal/store"
)

// Messages recorded on scenarios that did not run.
const (
	msgStopped  = "Campaign execution stopped"
	msgCanceled = "Campaign execution canceled"
)

// Runner executes single scenarios. *engine.Engine satisfies it.
type Runner interface {
	ExecuteAndWait(ctx context.Context, req engine.Request) (domain.ExecutionReport, error)
	Command(executionID int64, cmd execution.Command) error
}

// History persists campaign executions.
type History interface {
	NextCampaignExecutionID(ctx context.Context, campaignID string) (int64, error)
	SaveCampaignExecution(ctx context.Context, execution domain.CampaignExecution) error
	CampaignExecution(ctx context.Context, campaignID string, id int64) (domain.CampaignExecution, error)
}

// Config holds configuration for the campaign Engine.
type Config struct {
	// PoolSize bounds how many campaign member scenarios are in flight at
	// once, across every campaign run by the engine.
	PoolSize int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{PoolSize: constants.DefaultCampaignPoolSize}
}

// Request carries the per-execution overrides of a campaign run.
type Request struct {
	// Environment overrides the campaign environment.
	Environment string

	// DatasetID overrides the campaign default dataset. Datasets bound to a
	// scenario inside the campaign still win.
	DatasetID string

	// UserID is recorded on the campaign and scenario executions.
	UserID string
}

// Engine runs campaigns.
type Engine struct {
	definitions store.Definitions
	history     History
	runner      Runner
	leases      store.Leases
	tracker     Tracker
	metrics     Metrics
	clock       clock.Clock
	logger      zerolog.Logger
	pool        *semaphore.Weighted

	mu      sync.Mutex
	current map[int64]*running
}

// Option configures an Engine.
type Option func(*Engine)

// WithLeases sets the campaign lease table. Defaults to in-process leases.
func WithLeases(leases store.Leases) Option {
	return func(e *Engine) {
		e.leases = leases
	}
}

// WithTracker sets the external test tracker.
func WithTracker(tracker Tracker) Option {
	return func(e *Engine) {
		e.tracker = tracker
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(metrics Metrics) Option {
	return func(e *Engine) {
		e.metrics = metrics
	}
}

// WithClock sets the clock used for campaign timing.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// NewEngine creates a campaign engine.
func NewEngine(definitions store.Definitions, history History, runner Runner, cfg Config, logger zerolog.Logger, opts ...Option) *Engine {
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = constants.DefaultCampaignPoolSize
	}

	e := &Engine{
		definitions: definitions,
		history:     history,
		runner:      runner,
		leases:      store.NewMemoryLeases(),
		tracker:     NoopTracker{},
		metrics:     NoopMetrics{},
		clock:       clock.RealClock{},
		logger:      logger,
		pool:        semaphore.NewWeighted(int64(cfg.PoolSize)),
		current:     make(map[int64]*running),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExecuteByID runs the campaign with the given id and returns its final
// execution.
// Returns ErrCampaignNotFound, ErrEmptyCampaign or ErrCampaignAlreadyRunning
// before anything runs.
func (e *Engine) ExecuteByID(ctx context.Context, campaignID string, req Request) (domain.CampaignExecution, error) {
	c, err := e.definitions.Campaign(ctx, campaignID)
	if err != nil {
		return domain.CampaignExecution{}, err
	}
	return e.execute(ctx, c, c.Scenarios, req, false)
}

// ExecuteByName runs, one after the other, every campaign whose title or id
// matches the glob pattern (case insensitive).
// Returns ErrCampaignNotFound when nothing matches. On error the executions
// completed so far are returned with it.
func (e *Engine) ExecuteByName(ctx context.Context, pattern string, req Request) ([]domain.CampaignExecution, error) {
	matched, err := e.match(ctx, pattern)
	if err != nil {
		return nil, err
	}

	out := make([]domain.CampaignExecution, 0, len(matched))
	for _, c := range matched {
		exec, err := e.execute(ctx, c, c.Scenarios, req, false)
		if err != nil {
			return out, err
		}
		out = append(out, exec)
	}
	return out, nil
}

// ReplayFailed runs again the scenarios of a recorded campaign execution that
// did not succeed, each with the dataset it used. The new execution is
// marked partial. An empty req.Environment reuses the recorded environment.
// Returns ErrNothingToReplay when every scenario succeeded.
func (e *Engine) ReplayFailed(ctx context.Context, campaignID string, executionID int64, req Request) (domain.CampaignExecution, error) {
	c, err := e.definitions.Campaign(ctx, campaignID)
	if err != nil {
		return domain.CampaignExecution{}, err
	}
	previous, err := e.history.CampaignExecution(ctx, campaignID, executionID)
	if err != nil {
		return domain.CampaignExecution{}, err
	}

	var failed []domain.CampaignScenario
	for _, s := range previous.Scenarios {
		if s.Status == constants.StatusSuccess {
			continue
		}
		failed = append(failed, domain.CampaignScenario{ScenarioID: s.ScenarioID, DatasetID: s.DatasetID})
	}
	if len(failed) == 0 {
		return domain.CampaignExecution{}, fmt.Errorf("%w: campaign %s execution %d", errors.ErrNothingToReplay, campaignID, executionID)
	}

	if req.Environment == "" {
		req.Environment = previous.Environment
	}
	return e.execute(ctx, c, failed, req, true)
}

// Stop asks a running campaign execution to stop: scenarios not started yet
// are recorded NOT_EXECUTED and running ones receive a stop command.
// Returns ErrCampaignExecutionNotFound if the execution is not running.
func (e *Engine) Stop(_ context.Context, campaignExecutionID int64) error {
	r, ok := e.lookup(campaignExecutionID)
	if !ok {
		return fmt.Errorf("%w: %d", errors.ErrCampaignExecutionNotFound, campaignExecutionID)
	}

	r.requestStop()
	for _, id := range r.liveScenarios() {
		if err := e.runner.Command(id, execution.CommandStop); err != nil {
			e.logger.Debug().Err(err).
				Int64("campaign_execution_id", campaignExecutionID).
				Int64("execution_id", id).
				Msg("scenario execution already finished")
		}
	}

	e.logger.Info().
		Int64("campaign_execution_id", campaignExecutionID).
		Msg("campaign execution stop requested")
	return nil
}

// Current returns snapshots of the running executions of a campaign, or of
// every campaign when campaignID is empty, ordered by execution id.
func (e *Engine) Current(campaignID string) []domain.CampaignExecution {
	e.mu.Lock()
	runs := make([]*running, 0, len(e.current))
	for _, r := range e.current {
		runs = append(runs, r)
	}
	e.mu.Unlock()

	out := make([]domain.CampaignExecution, 0, len(runs))
	for _, r := range runs {
		snap := r.snapshot()
		if campaignID == "" || snap.CampaignID == campaignID {
			out = append(out, snap)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (e *Engine) match(ctx context.Context, pattern string) ([]domain.Campaign, error) {
	all, err := e.definitions.Campaigns(ctx)
	if err != nil {
		return nil, err
	}

	pattern = strings.ToLower(pattern)
	var matched []domain.Campaign
	for _, c := range all {
		byTitle, err := path.Match(pattern, strings.ToLower(c.Title))
		if err != nil {
			return nil, fmt.Errorf("%w: campaign name pattern %q: %w", errors.ErrInvalidArgument, pattern, err)
		}
		byID, _ := path.Match(pattern, strings.ToLower(c.ID))
		if byTitle || byID {
			matched = append(matched, c)
		}
	}
	if len(matched) == 0 {
		return nil, fmt.Errorf("%w: no campaign matches %q", errors.ErrCampaignNotFound, pattern)
	}
	return matched, nil
}

// execute runs scenarios as one execution of c. Errors are only returned
// before the execution is registered.
func (e *Engine) execute(ctx context.Context, c domain.Campaign, scenarios []domain.CampaignScenario, req Request, partial bool) (domain.CampaignExecution, error) {
	if len(scenarios) == 0 {
		return domain.CampaignExecution{}, fmt.Errorf("%w: %s", errors.ErrEmptyCampaign, c.ID)
	}

	envName := req.Environment
	if envName == "" {
		envName = c.Environment
	}
	env, err := e.definitions.Environment(ctx, envName)
	if err != nil {
		return domain.CampaignExecution{}, fmt.Errorf("campaign %s: %w", c.ID, err)
	}

	lease, err := e.leases.Acquire(ctx, c.ID, env.Name)
	if err != nil {
		return domain.CampaignExecution{}, err
	}

	id, err := e.history.NextCampaignExecutionID(ctx, c.ID)
	if err != nil {
		e.releaseLease(ctx, lease, c.ID, 0)
		return domain.CampaignExecution{}, fmt.Errorf("allocating campaign execution id: %w", err)
	}

	members := make([]domain.ScenarioExecutionCampaign, len(scenarios))
	for i, cs := range scenarios {
		members[i] = domain.ScenarioExecutionCampaign{
			ScenarioID: cs.ScenarioID,
			DatasetID:  resolveDatasetID(cs, req, c),
			Status:     constants.StatusNotExecuted,
		}
	}

	r := newRunning(domain.CampaignExecution{
		ID:            id,
		CampaignID:    c.ID,
		CampaignTitle: c.Title,
		Environment:   env.Name,
		DatasetID:     req.DatasetID,
		UserID:        req.UserID,
		Partial:       partial,
		StartDate:     e.clock.Now(),
		Scenarios:     members,
	})
	e.register(r)
	e.safeMetrics(func() { e.metrics.CampaignStarted(c.ID, id) })

	logger := e.logger.With().
		Str("campaign_id", c.ID).
		Int64("campaign_execution_id", id).
		Logger()
	logger.Info().
		Str("environment", env.Name).
		Bool("parallel", c.ParallelRun).
		Int("scenarios", len(scenarios)).
		Bool("partial", partial).
		Msg("campaign execution started")

	plan := runPlan{campaign: c, env: env, req: req, run: r, logger: logger}
	if c.ParallelRun {
		e.runParallel(ctx, plan)
	} else {
		e.runSequential(ctx, plan)
	}

	return e.finalize(ctx, plan, lease), nil
}

// runPlan groups what every member scenario of one execution shares.
type runPlan struct {
	campaign domain.Campaign
	env      domain.Environment
	req      Request
	run      *running
	logger   zerolog.Logger
}

func (e *Engine) runSequential(ctx context.Context, plan runPlan) {
	for i := range plan.run.size() {
		e.runSlot(ctx, plan, i)
	}
}

func (e *Engine) runParallel(ctx context.Context, plan runPlan) {
	var g errgroup.Group
	for i := range plan.run.size() {
		g.Go(func() error {
			e.runSlot(ctx, plan, i)
			return nil
		})
	}
	_ = g.Wait()
}

// runSlot runs the i-th member scenario inside the shared pool.
func (e *Engine) runSlot(ctx context.Context, plan runPlan, i int) {
	member := plan.run.member(i)

	if plan.run.stopRequested() {
		plan.run.set(i, skipped(member, msgStopped))
		return
	}
	if err := e.pool.Acquire(ctx, 1); err != nil {
		plan.run.set(i, skipped(member, msgCanceled))
		return
	}
	defer e.pool.Release(1)

	// the stop may have arrived while waiting for the pool
	if plan.run.stopRequested() {
		plan.run.set(i, skipped(member, msgStopped))
		return
	}

	result, report, ran := e.runScenario(ctx, plan, member)
	plan.run.set(i, result)
	if !ran {
		return
	}

	if err := e.safeTrack(ctx, plan, member, report); err != nil {
		plan.logger.Warn().Err(err).
			Str("scenario_id", member.ScenarioID).
			Msg("failed to update test tracker")
	}
}

// runScenario executes one member, retrying once when the campaign asks for
// it. ran is false when the scenario could not be started.
func (e *Engine) runScenario(ctx context.Context, plan runPlan, member domain.ScenarioExecutionCampaign) (domain.ScenarioExecutionCampaign, domain.ExecutionReport, bool) {
	scenario, err := e.definitions.Scenario(ctx, member.ScenarioID)
	if err != nil {
		return failed(member, err), domain.ExecutionReport{}, false
	}
	member.ScenarioTitle = scenario.Title

	var dataset *domain.Dataset
	if member.DatasetID != "" {
		ds, err := e.definitions.Dataset(ctx, member.DatasetID)
		if err != nil {
			return failed(member, err), domain.ExecutionReport{}, false
		}
		dataset = &ds
	}

	req := engine.Request{
		Scenario:    scenario,
		Dataset:     dataset,
		Environment: plan.env,
		UserID:      plan.req.UserID,
		OnStart:     e.onStart(plan.run),
	}

	report, err := e.attempt(ctx, plan, req)
	if err != nil {
		return failed(member, err), domain.ExecutionReport{}, false
	}

	if plan.campaign.RetryAuto && report.Status == constants.StatusFailure && !plan.run.stopRequested() {
		plan.logger.Info().
			Str("scenario_id", member.ScenarioID).
			Int64("execution_id", report.ExecutionID).
			Msg("retrying failed scenario")

		retried, err := e.attempt(ctx, plan, req)
		if err != nil {
			plan.logger.Error().Err(err).
				Str("scenario_id", member.ScenarioID).
				Msg("automatic retry could not start")
		} else {
			report = retried
		}
	}

	return summarize(member, report), report, true
}

func (e *Engine) attempt(ctx context.Context, plan runPlan, req engine.Request) (domain.ExecutionReport, error) {
	report, err := e.runner.ExecuteAndWait(ctx, req)
	if err != nil {
		return report, err
	}
	plan.run.finished(report.ExecutionID)

	campaignID := plan.campaign.ID
	e.safeMetrics(func() {
		e.metrics.ScenarioCompleted(campaignID, req.Scenario.ID, report.Status, report.Duration)
	})
	return report, nil
}

// onStart tracks a started scenario execution so Stop can reach it. A stop
// that raced the start is delivered right away.
func (e *Engine) onStart(r *running) func(int64) {
	return func(executionID int64) {
		if r.started(executionID) {
			_ = e.runner.Command(executionID, execution.CommandStop)
		}
	}
}

// finalize ends the execution, unregisters it and records it. Failures here
// are logged only.
func (e *Engine) finalize(ctx context.Context, plan runPlan, lease store.Lease) domain.CampaignExecution {
	bookkeeping := context.WithoutCancel(ctx)
	final := plan.run.end(e.clock.Now())

	e.unregister(final.ID)
	e.releaseLease(bookkeeping, lease, final.CampaignID, final.ID)

	if err := e.history.SaveCampaignExecution(bookkeeping, final); err != nil {
		plan.logger.Error().Err(err).Msg("failed to save campaign execution")
	}
	e.safeMetrics(func() { e.metrics.CampaignEnded(final) })

	plan.logger.Info().
		Str("status", final.Status().String()).
		Int64("duration_ms", final.EndDate.Sub(final.StartDate).Milliseconds()).
		Msg("campaign execution completed")
	return final
}

func (e *Engine) releaseLease(ctx context.Context, lease store.Lease, campaignID string, executionID int64) {
	if err := lease.Release(ctx); err != nil {
		e.logger.Warn().Err(err).
			Str("campaign_id", campaignID).
			Int64("campaign_execution_id", executionID).
			Msg("failed to release campaign lease")
	}
}

func (e *Engine) safeMetrics(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error().Interface("panic", r).Msg("metrics sink panicked")
		}
	}()
	fn()
}

func (e *Engine) safeTrack(ctx context.Context, plan runPlan, member domain.ScenarioExecutionCampaign, report domain.ExecutionReport) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tracker panicked: %v", r) //nolint:err113 // panic value carries the context
		}
	}()
	return e.tracker.UpdateTestExecution(ctx, plan.campaign.ID, plan.run.id(),
		member.ScenarioID, member.DatasetID, report)
}

func (e *Engine) register(r *running) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.current[r.id()] = r
}

func (e *Engine) unregister(id int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.current, id)
}

func (e *Engine) lookup(id int64) (*running, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.current[id]
	return r, ok
}

// resolveDatasetID applies the dataset precedence: dataset bound to the
// scenario in the campaign, then the execution override, then the campaign
// default, then none.
func resolveDatasetID(cs domain.CampaignScenario, req Request, c domain.Campaign) string {
	switch {
	case cs.DatasetID != "":
		return cs.DatasetID
	case req.DatasetID != "":
		return req.DatasetID
	default:
		return c.DatasetID
	}
}

func skipped(member domain.ScenarioExecutionCampaign, reason string) domain.ScenarioExecutionCampaign {
	member.Status = constants.StatusNotExecuted
	member.Error = reason
	return member
}

func failed(member domain.ScenarioExecutionCampaign, err error) domain.ScenarioExecutionCampaign {
	member.Status = constants.StatusFailure
	member.Error = err.Error()
	return member
}

func summarize(member domain.ScenarioExecutionCampaign, report domain.ExecutionReport) domain.ScenarioExecutionCampaign {
	member.ExecutionID = report.ExecutionID
	member.Status = report.Status
	member.StartDate = report.StartDate
	member.Duration = report.Duration
	member.Error = report.Error
	if report.ScenarioTitle != "" {
		member.ScenarioTitle = report.ScenarioTitle
	}
	return member
}
