// Package errors provides centralized error handling for cadence.
//
// This package defines sentinel errors used for programmatic error categorization
// throughout the application. All error types can be checked using errors.Is().
//
// IMPORTANT: This package MUST NOT import any other internal packages.
// Only standard library imports are allowed.
package errors

import "errors"

// Orchestration errors are surfaced to callers before any execution state
// is mutated.
var (
	// ErrCampaignNotFound indicates no campaign matches the requested id or name.
	ErrCampaignNotFound = errors.New("campaign not found")

	// ErrCampaignAlreadyRunning indicates the campaign already has a running
	// execution on the requested environment.
	ErrCampaignAlreadyRunning = errors.New("campaign already running")

	// ErrCampaignExecutionNotFound indicates the campaign execution id is unknown
	// or no longer running.
	ErrCampaignExecutionNotFound = errors.New("campaign execution not found")

	// ErrEmptyCampaign indicates a campaign without any scenario.
	ErrEmptyCampaign = errors.New("campaign has no scenario")

	// ErrNothingToReplay indicates a replay found no failed scenario.
	ErrNothingToReplay = errors.New("no failed scenario to replay")

	// ErrScenarioExecutionNotFound indicates the scenario execution id is not live.
	ErrScenarioExecutionNotFound = errors.New("scenario execution not found")
)

// Configuration errors fail the owning step and are never retried.
var (
	// ErrStrategyNotFound indicates a step declares an unknown strategy type.
	ErrStrategyNotFound = errors.New("strategy not found")

	// ErrStrategyPropertyMissing indicates a mandatory strategy property is absent.
	ErrStrategyPropertyMissing = errors.New("strategy property missing")

	// ErrStrategyPropertyInvalid indicates a strategy property has an unusable value.
	ErrStrategyPropertyInvalid = errors.New("strategy property invalid")

	// ErrEmptyDataset indicates a for-each dataset evaluated to no rows.
	ErrEmptyDataset = errors.New("dataset is empty")

	// ErrConditionNotBoolean indicates an if condition did not evaluate to a boolean.
	ErrConditionNotBoolean = errors.New("condition is not a boolean")
)

// Action and evaluation errors fail only the leaf step.
var (
	// ErrActionNotFound indicates no action is registered for a step type.
	ErrActionNotFound = errors.New("action not found")

	// ErrEvaluation indicates an expression could not be evaluated.
	ErrEvaluation = errors.New("evaluation failed")

	// ErrRetryInterrupted indicates a retry pause was cut short by cancellation.
	ErrRetryInterrupted = errors.New("retry interrupted")

	// ErrTargetNotFound indicates a step references a target missing from the environment.
	ErrTargetNotFound = errors.New("target not found")
)

// Repository and infrastructure errors.
var (
	// ErrScenarioNotFound indicates the requested scenario does not exist.
	ErrScenarioNotFound = errors.New("scenario not found")

	// ErrDatasetNotFound indicates the requested dataset does not exist.
	ErrDatasetNotFound = errors.New("dataset not found")

	// ErrEnvironmentNotFound indicates the requested environment does not exist.
	ErrEnvironmentNotFound = errors.New("environment not found")

	// ErrExecutionNotFound indicates the requested execution report does not exist.
	ErrExecutionNotFound = errors.New("execution not found")

	// ErrReportStreamNotFound indicates no live report stream exists for an execution.
	ErrReportStreamNotFound = errors.New("report stream not found")

	// ErrDefinitionInvalid indicates a definition file failed validation.
	ErrDefinitionInvalid = errors.New("invalid definition")

	// ErrLockTimeout indicates a file lock could not be acquired within the timeout period.
	ErrLockTimeout = errors.New("lock acquisition timeout")

	// ErrLockNotHeld indicates a release was attempted on a lock owned by someone else.
	ErrLockNotHeld = errors.New("lock not held")

	// ErrUnknownHistoryDriver indicates an unsupported storage.history_driver value.
	ErrUnknownHistoryDriver = errors.New("unknown history driver")
)

// Configuration and CLI errors.
var (
	// ErrConfigNil indicates that a nil config was passed to validation.
	ErrConfigNil = errors.New("config is nil")

	// ErrConfigInvalidEngine indicates an invalid engine configuration value.
	ErrConfigInvalidEngine = errors.New("invalid engine configuration")

	// ErrConfigInvalidCampaign indicates an invalid campaign configuration value.
	ErrConfigInvalidCampaign = errors.New("invalid campaign configuration")

	// ErrConfigInvalidStorage indicates an invalid storage configuration value.
	ErrConfigInvalidStorage = errors.New("invalid storage configuration")

	// ErrConfigInvalidRedis indicates an invalid redis configuration value.
	ErrConfigInvalidRedis = errors.New("invalid redis configuration")

	// ErrInvalidOutputFormat indicates an invalid output format was specified.
	ErrInvalidOutputFormat = errors.New("invalid output format")

	// ErrInvalidArgument indicates a malformed positional argument.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrExecutionFailed indicates a scenario or campaign finished with a
	// non-successful status. Used by the CLI to set a non-zero exit code.
	ErrExecutionFailed = errors.New("execution did not succeed")
)

// ExitCode2Error wraps an error to indicate exit code 2 should be used.
type ExitCode2Error struct {
	Err error
}

// NewExitCode2Error wraps an error to indicate exit code 2.
func NewExitCode2Error(err error) *ExitCode2Error {
	return &ExitCode2Error{Err: err}
}

// Error implements the error interface.
func (e *ExitCode2Error) Error() string {
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *ExitCode2Error) Unwrap() error {
	return e.Err
}

// IsExitCode2Error checks if an error should result in exit code 2.
func IsExitCode2Error(err error) bool {
	var e *ExitCode2Error
	return errors.As(err, &e)
}
