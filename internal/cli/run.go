package cli

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mrz1836/cadence/internal/constants"
	"github.com/mrz1836/cadence/internal/domain"
	"github.com/mrz1836/cadence/internal/engine"
	"github.com/mrz1836/cadence/internal/errors"
	"github.com/mrz1836/cadence/internal/execution"
	"github.com/mrz1836/cadence/internal/report"
	"github.com/mrz1836/cadence/internal/signal"
)

// runOptions holds the flags of the run command.
type runOptions struct {
	environment string
	datasetID   string
	userID      string
}

// AddRunCommand adds the run command to the root command.
func AddRunCommand(root *cobra.Command, flags *GlobalFlags) {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run <scenario-id>",
		Short: "Run one scenario",
		Long: `Run a scenario and print its step tree once it completes.

Progress snapshots are logged at debug level (--verbose). The first Ctrl+C
stops the execution gracefully so teardown steps still run; a second one
aborts.

Examples:
  cadence run login
  cadence run login --env staging --dataset users-eu
  cadence run login --output json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenario(cmd.Context(), cmd.OutOrStdout(), flags, args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.environment, "env", "e", "", "environment name (default: the default environment)")
	cmd.Flags().StringVarP(&opts.datasetID, "dataset", "d", "", "dataset id (default: the scenario default dataset)")
	cmd.Flags().StringVar(&opts.userID, "user", "", "user id recorded on the execution")

	root.AddCommand(cmd)
}

func runScenario(ctx context.Context, w io.Writer, flags *GlobalFlags, scenarioID string, opts *runOptions) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	logger := GetLogger()

	s, err := newServices(ctx, flags, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := s.Close(); closeErr != nil {
			logger.Warn().Err(closeErr).Msg("failed to close stores")
		}
	}()

	req, err := buildRequest(ctx, s, scenarioID, opts)
	if err != nil {
		return err
	}

	h := signal.NewHandler(ctx)
	defer h.Stop()

	stopper := &scenarioStopper{engine: s.engine, logger: logger, interrupted: h.Interrupted()}
	req.OnStart = func(id int64) {
		if sub, subErr := s.broker.Subscribe(id); subErr == nil {
			go logProgress(logger, sub)
		}
		stopper.started(id)
	}
	done := make(chan struct{})
	defer close(done)
	go stopper.watch(done)

	final, err := s.engine.ExecuteAndWait(h.Context(), req)
	if err != nil {
		return err
	}

	if flags.Output == OutputJSON {
		if err := writeJSON(w, final); err != nil {
			return err
		}
	} else {
		renderExecutionReport(w, final)
	}

	if !succeeded(final.Status) {
		return fmt.Errorf("%w: execution %d of %s finished %s", errors.ErrExecutionFailed, final.ExecutionID, final.ScenarioID, final.Status)
	}
	return nil
}

// buildRequest resolves the scenario, environment and dataset of a run.
// The dataset flag wins over the scenario default dataset.
func buildRequest(ctx context.Context, s *services, scenarioID string, opts *runOptions) (engine.Request, error) {
	scenario, err := s.definitions.Scenario(ctx, scenarioID)
	if err != nil {
		return engine.Request{}, err
	}

	env, err := s.definitions.Environment(ctx, opts.environment)
	if err != nil {
		return engine.Request{}, err
	}

	req := engine.Request{Scenario: scenario, Environment: env, UserID: opts.userID}

	datasetID := opts.datasetID
	if datasetID == "" {
		datasetID = scenario.DefaultDatasetID
	}
	if datasetID != "" {
		ds, err := s.definitions.Dataset(ctx, datasetID)
		if err != nil {
			return engine.Request{}, err
		}
		req.Dataset = &ds
	}
	return req, nil
}

// scenarioStopper turns the first interrupt into a stop command for the
// running execution, whether the interrupt arrives before or after it
// started.
type scenarioStopper struct {
	engine      *engine.Engine
	logger      zerolog.Logger
	interrupted <-chan struct{}

	mu   sync.Mutex
	id   int64
	sent bool
}

func (st *scenarioStopper) started(id int64) {
	st.mu.Lock()
	st.id = id
	st.mu.Unlock()

	select {
	case <-st.interrupted:
		st.stop()
	default:
	}
}

func (st *scenarioStopper) watch(done <-chan struct{}) {
	select {
	case <-st.interrupted:
		st.stop()
	case <-done:
	}
}

func (st *scenarioStopper) stop() {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.id == 0 || st.sent {
		return
	}
	st.sent = true

	st.logger.Warn().Int64("execution_id", st.id).Msg("interrupt received, stopping execution (Ctrl+C again to abort)")
	if err := st.engine.Command(st.id, execution.CommandStop); err != nil {
		st.logger.Debug().Err(err).Int64("execution_id", st.id).Msg("execution already finished")
	}
}

// logProgress logs the snapshots of one execution until its stream ends.
func logProgress(logger zerolog.Logger, sub *report.Subscription) {
	for snap := range sub.C {
		done, total := countSteps(snap.Report.Report)
		logger.Debug().
			Int64("execution_id", snap.Report.ExecutionID).
			Str("status", snap.Report.Status.String()).
			Int("steps_done", done).
			Int("steps_total", total).
			Bool("terminal", snap.Terminal).
			Msg("execution progress")
	}
}

// countSteps counts the leaf steps of a report and how many reached a
// terminal status.
func countSteps(r domain.StepReport) (done, total int) {
	if len(r.Steps) == 0 {
		if r.Status.IsTerminal() {
			return 1, 1
		}
		return 0, 1
	}
	for _, child := range r.Steps {
		d, t := countSteps(child)
		done += d
		total += t
	}
	return done, total
}

// succeeded reports whether a final status counts as a pass.
func succeeded(status constants.Status) bool {
	return status == constants.StatusSuccess || status == constants.StatusWarn
}
