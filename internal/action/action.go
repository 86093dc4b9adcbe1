// Package action defines the contract between the engine and the actions a
// leaf step invokes, plus the closed set of built-in actions.
//
// The engine only uses the three-method contract: a Factory creates an
// Action from evaluated inputs, ValidateInputs reports problems before any
// side effect, and Execute performs the work.
//
// Import rules:
//   - CAN import: internal/constants, internal/domain, internal/errors,
//     internal/logging, std lib
//   - MUST NOT import: internal/step, internal/strategy, internal/engine
package action

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/mrz1836/cadence/internal/constants"
	"github.com/mrz1836/cadence/internal/domain"
)

// FinallyRegistrar accepts teardown actions during a run.
type FinallyRegistrar interface {
	RegisterFinally(action domain.FinallyAction)
}

// Input is everything a factory receives to build an action.
type Input struct {
	// StepName is the evaluated name of the invoking step.
	StepName string

	// Type is the action type the step declared.
	Type string

	// Target is the resolved environment target, nil when the step has none.
	Target *domain.Target

	// Inputs are the evaluated step inputs.
	Inputs map[string]any

	// Logger is scoped to the invoking step.
	Logger zerolog.Logger

	// Finally registers teardown actions on the current scenario execution.
	Finally FinallyRegistrar
}

// Result is the outcome of an action execution.
type Result struct {
	Status  constants.Status
	Outputs map[string]any
	Info    []string
	Errors  []string
}

// Action is one executable unit of work.
type Action interface {
	// ValidateInputs returns human readable problems; a non-empty result
	// fails the step without calling Execute.
	ValidateInputs() []string

	// Execute performs the action.
	Execute(ctx context.Context) Result
}

// Factory builds an action from its input.
type Factory func(in Input) Action

// Ok returns a successful result.
func Ok(outputs map[string]any, info ...string) Result {
	return Result{Status: constants.StatusSuccess, Outputs: outputs, Info: info}
}

// Failed returns a failed result carrying the given errors.
func Failed(errs ...string) Result {
	return Result{Status: constants.StatusFailure, Errors: errs}
}
