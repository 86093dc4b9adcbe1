// Package execution provides the per-run control plane of a scenario
// execution: its id, the pause and stop flags, and the teardown actions
// registered while the run progresses.
//
// Flags are level-triggered. Strategies and leaf steps poll them at their
// suspension points; nothing here interrupts an action in flight.
//
// Import rules:
//   - CAN import: internal/domain, internal/errors, std lib
//   - MUST NOT import: internal/step, internal/strategy, internal/engine
package execution

import (
	"context"
	"sync"

	"github.com/mrz1836/cadence/internal/domain"
)

// Command is a control request addressed to a scenario execution.
type Command string

// Supported commands.
const (
	CommandPause  Command = "pause"
	CommandResume Command = "resume"
	CommandStop   Command = "stop"
)

// ScenarioExecution is the control token of one scenario run. It is handed
// explicitly to the engine and strategies; every method is safe for
// concurrent use.
type ScenarioExecution struct {
	id int64

	mu      sync.Mutex
	paused  bool
	stopped bool
	resumed chan struct{}
	stopCh  chan struct{}

	finally    []domain.FinallyAction
	finallyIdx map[string]struct{}
}

// New creates a running, unpaused execution token.
func New(id int64) *ScenarioExecution {
	return &ScenarioExecution{
		id:         id,
		resumed:    make(chan struct{}),
		stopCh:     make(chan struct{}),
		finallyIdx: make(map[string]struct{}),
	}
}

// ID returns the execution id.
func (e *ScenarioExecution) ID() int64 {
	return e.id
}

// Apply handles a control command.
func (e *ScenarioExecution) Apply(cmd Command) {
	switch cmd {
	case CommandPause:
		e.Pause()
	case CommandResume:
		e.Resume()
	case CommandStop:
		e.Stop()
	}
}

// Pause raises the pause flag. Ignored once stopped.
func (e *ScenarioExecution) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped || e.paused {
		return
	}
	e.paused = true
	e.resumed = make(chan struct{})
}

// Resume clears the pause flag and wakes waiters.
func (e *ScenarioExecution) Resume() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.paused {
		return
	}
	e.paused = false
	close(e.resumed)
}

// Stop raises the stop flag. A paused execution is resumed so that waiters
// observe the stop.
func (e *ScenarioExecution) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return
	}
	e.stopped = true
	close(e.stopCh)
	if e.paused {
		e.paused = false
		close(e.resumed)
	}
}

// HasToPause reports whether a pause was requested.
func (e *ScenarioExecution) HasToPause() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused
}

// HasToStop reports whether a stop was requested.
func (e *ScenarioExecution) HasToStop() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stopped
}

// StopRequested returns a channel closed when a stop is requested.
func (e *ScenarioExecution) StopRequested() <-chan struct{} {
	return e.stopCh
}

// WaitWhilePaused blocks until the execution is resumed or stopped, or ctx
// is done. It returns immediately when not paused.
func (e *ScenarioExecution) WaitWhilePaused(ctx context.Context) error {
	for {
		e.mu.Lock()
		if !e.paused {
			e.mu.Unlock()
			return nil
		}
		resumed := e.resumed
		e.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-resumed:
		}
	}
}

// RegisterFinally appends a teardown action. Registering the same action
// again (same type, name and target) keeps its first position.
func (e *ScenarioExecution) RegisterFinally(action domain.FinallyAction) {
	e.mu.Lock()
	defer e.mu.Unlock()
	key := action.Key()
	if _, ok := e.finallyIdx[key]; ok {
		return
	}
	e.finallyIdx[key] = struct{}{}
	e.finally = append(e.finally, action)
}

// FinallyActions returns the registered teardown actions in declaration order.
func (e *ScenarioExecution) FinallyActions() []domain.FinallyAction {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]domain.FinallyAction(nil), e.finally...)
}
