package domain

import (
	"time"

	"github.com/mrz1836/cadence/internal/constants"
)

// StepReport is an immutable snapshot of a step and its children.
type StepReport struct {
	Name        string         `json:"name"`
	Type        string         `json:"type,omitempty"`
	Target      string         `json:"target,omitempty"`
	Strategy    string         `json:"strategy,omitempty"`
	Status      Status         `json:"status"`
	StartDate   time.Time      `json:"start_date,omitempty"`
	Duration    time.Duration  `json:"duration"`
	Information []string       `json:"information,omitempty"`
	Errors      []string       `json:"errors,omitempty"`
	Inputs      map[string]any `json:"inputs,omitempty"`
	Steps       []StepReport   `json:"steps,omitempty"`
}

// ExecutionReport is the report of one scenario execution.
type ExecutionReport struct {
	ExecutionID   int64         `json:"execution_id"`
	ScenarioID    string        `json:"scenario_id"`
	ScenarioTitle string        `json:"scenario_title"`
	Environment   string        `json:"environment"`
	DatasetID     string        `json:"dataset_id,omitempty"`
	UserID        string        `json:"user_id,omitempty"`
	Status        Status        `json:"status"`
	StartDate     time.Time     `json:"start_date"`
	Duration      time.Duration `json:"duration"`
	Error         string        `json:"error,omitempty"`
	Report        StepReport    `json:"report"`
}

// AllErrors collects every error message of the tree in depth-first order.
func (r StepReport) AllErrors() []string {
	var out []string
	out = append(out, r.Errors...)
	for _, child := range r.Steps {
		out = append(out, child.AllErrors()...)
	}
	return out
}

// Find returns the first step with the given name, searching depth-first.
func (r StepReport) Find(name string) (StepReport, bool) {
	if r.Name == name {
		return r, true
	}
	for _, child := range r.Steps {
		if found, ok := child.Find(name); ok {
			return found, true
		}
	}
	return StepReport{}, false
}

func worstOf(statuses []Status) Status {
	return constants.Worst(statuses...)
}
