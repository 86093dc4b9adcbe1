// Package step provides the runtime node of a scenario execution tree and
// the leaf executor invoking actions.
//
// A Step wraps an immutable definition with mutable execution state. The
// state is written by the single task running the tree and read by report
// publishers through Snapshot, so every access goes through the step lock.
//
// Import rules:
//   - CAN import: internal/action, internal/clock, internal/constants,
//     internal/domain, internal/errors, internal/eval, internal/logging, std lib
//   - MUST NOT import: internal/strategy, internal/engine, internal/campaign
package step

import (
	"context"
	"sync"
	"time"

	"github.com/mrz1836/cadence/internal/constants"
	"github.com/mrz1836/cadence/internal/domain"
	"github.com/mrz1836/cadence/internal/logging"
)

// Control is the view of a scenario execution that steps and strategies
// poll at their suspension points.
type Control interface {
	ID() int64
	HasToStop() bool
	HasToPause() bool
	WaitWhilePaused(ctx context.Context) error
	RegisterFinally(action domain.FinallyAction)
}

// Step is one node of an execution tree.
type Step struct {
	builder *Builder
	def     domain.StepDefinition

	mu             sync.RWMutex
	name           string
	status         constants.Status
	startDate      time.Time
	duration       time.Duration
	information    []string
	errors         []string
	inputs         map[string]any
	children       []*Step
	iteration      Context
	forEachApplied bool
}

// Definition returns the immutable definition of the step.
func (s *Step) Definition() domain.StepDefinition {
	return s.def
}

// Builder returns the builder that created the step.
func (s *Step) Builder() *Builder {
	return s.builder
}

// Name returns the evaluated name, or the declared name before execution.
func (s *Step) Name() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name
}

// Status returns the current status.
func (s *Step) Status() constants.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Errors returns a copy of the error messages.
func (s *Step) Errors() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.errors...)
}

// Information returns a copy of the information messages.
func (s *Step) Information() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.information...)
}

// IsParent reports whether the step currently has children.
func (s *Step) IsParent() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.children) > 0
}

// Children returns the current children.
func (s *Step) Children() []*Step {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*Step(nil), s.children...)
}

// SetChildren replaces the children.
func (s *Step) SetChildren(children []*Step) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.children = children
}

// AddChild appends a child.
func (s *Step) AddChild(child *Step) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.children = append(s.children, child)
}

// Spawn builds a new step sharing this step's builder.
func (s *Step) Spawn(def domain.StepDefinition) *Step {
	return s.builder.Build(def)
}

// IterationContext returns the row values injected by a for-each parent.
func (s *Step) IterationContext() Context {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.iteration
}

// SetIterationContext stores the row values of a for-each iteration.
func (s *Step) SetIterationContext(c Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.iteration = c
}

// ForEachApplied reports whether the for-each dataset was already materialized.
func (s *Step) ForEachApplied() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.forEachApplied
}

// MarkForEachApplied records that the dataset was materialized.
func (s *Step) MarkForEachApplied() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forEachApplied = true
}

// BeginExecution moves the step to RUNNING and resolves its name against
// the merged context. A name that fails to evaluate keeps its declared form.
func (s *Step) BeginExecution(scenarioCtx, localCtx Context) {
	name := s.def.Name
	if resolved, err := s.builder.evaluator.EvaluateString(s.def.Name, Merge(scenarioCtx, localCtx)); err == nil {
		name = resolved
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.name = name
	s.status = constants.StatusRunning
	if s.startDate.IsZero() {
		s.startDate = s.builder.clock.Now()
	}
}

// SetPaused toggles the PAUSED status of a running step.
func (s *Step) SetPaused(paused bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case paused && s.status == constants.StatusRunning:
		s.status = constants.StatusPaused
	case !paused && s.status == constants.StatusPaused:
		s.status = constants.StatusRunning
	}
}

// EndExecution sets the final status and freezes the duration.
func (s *Step) EndExecution(status constants.Status) constants.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
	if !s.startDate.IsZero() {
		s.duration = s.builder.clock.Now().Sub(s.startDate)
	}
	return status
}

// Failure records the messages and ends the step as FAILURE.
func (s *Step) Failure(messages ...string) constants.Status {
	s.AddErrors(messages...)
	return s.EndExecution(constants.StatusFailure)
}

// Stopped ends the step as STOPPED.
func (s *Step) Stopped() constants.Status {
	return s.EndExecution(constants.StatusStopped)
}

// AddInformation appends information messages.
func (s *Step) AddInformation(messages ...string) {
	if len(messages) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.information = append(s.information, messages...)
}

// AddErrors appends error messages.
func (s *Step) AddErrors(messages ...string) {
	if len(messages) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors = append(s.errors, messages...)
}

func (s *Step) setInputs(inputs map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inputs = inputs
}

// Skip marks the step and every descendant SUCCESS without running anything.
func (s *Step) Skip() {
	s.mu.Lock()
	s.status = constants.StatusSuccess
	s.information = append(s.information, constants.StepSkippedMessage)
	children := append([]*Step(nil), s.children...)
	s.mu.Unlock()

	for _, child := range children {
		child.Skip()
	}
}

// ResetExecution clears the state of the step and its descendants between
// retry attempts. The step itself stays RUNNING with its original start date.
func (s *Step) ResetExecution() {
	s.mu.Lock()
	s.status = constants.StatusRunning
	s.duration = 0
	s.information = nil
	s.errors = nil
	s.inputs = nil
	children := append([]*Step(nil), s.children...)
	s.mu.Unlock()

	for _, child := range children {
		child.resetSubtree()
	}
}

func (s *Step) resetSubtree() {
	s.mu.Lock()
	s.name = s.def.Name
	s.status = constants.StatusNotExecuted
	s.startDate = time.Time{}
	s.duration = 0
	s.information = nil
	s.errors = nil
	s.inputs = nil
	children := append([]*Step(nil), s.children...)
	s.mu.Unlock()

	for _, child := range children {
		child.resetSubtree()
	}
}

// CollectErrors returns the error messages of the step and its descendants,
// depth-first.
func (s *Step) CollectErrors() []string {
	errs := s.Errors()
	for _, child := range s.Children() {
		errs = append(errs, child.CollectErrors()...)
	}
	return errs
}

// ExecutedChildrenStatus returns the worst status among children that ran,
// and whether any child ran at all.
func (s *Step) ExecutedChildrenStatus() (constants.Status, bool) {
	var statuses []constants.Status
	for _, child := range s.Children() {
		if st := child.Status(); st != constants.StatusNotExecuted {
			statuses = append(statuses, st)
		}
	}
	if len(statuses) == 0 {
		return constants.StatusNotExecuted, false
	}
	return constants.Worst(statuses...), true
}

// Snapshot returns an immutable copy of the step tree state.
func (s *Step) Snapshot() domain.StepReport {
	s.mu.RLock()
	report := domain.StepReport{
		Name:        s.name,
		Type:        s.def.Type,
		Target:      s.def.Target,
		Strategy:    s.def.StrategyType(),
		Status:      s.status,
		StartDate:   s.startDate,
		Duration:    s.duration,
		Information: append([]string(nil), s.information...),
		Errors:      append([]string(nil), s.errors...),
		Inputs:      logging.RedactMap(s.inputs),
	}
	if (s.status == constants.StatusRunning || s.status == constants.StatusPaused) && !s.startDate.IsZero() {
		report.Duration = s.builder.clock.Now().Sub(s.startDate)
	}
	children := append([]*Step(nil), s.children...)
	s.mu.RUnlock()

	if len(children) > 0 {
		report.Steps = make([]domain.StepReport, len(children))
		for i, child := range children {
			report.Steps[i] = child.Snapshot()
		}
	}
	return report
}
