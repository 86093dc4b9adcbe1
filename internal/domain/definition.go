package domain

// StepDefinition is the immutable declaration of one node of a scenario tree.
// A definition with an empty Type and no Steps is a no-op leaf.
//
// Example YAML representation:
//
//	name: check user {{ .user }}
//	type: compare
//	target: api
//	inputs:
//	  actual: "{{ .status }}"
//	  expected: "200"
//	strategy:
//	  type: retry-with-timeout
//	  parameters:
//	    timeOut: 5s
//	    retryDelay: 500ms
type StepDefinition struct {
	// Name is a template evaluated against the context at execution time.
	Name string `json:"name" yaml:"name" validate:"required"`

	// Type identifies the action to invoke. Empty for composite steps.
	Type string `json:"type,omitempty" yaml:"type,omitempty"`

	// Target names an environment target the action runs against.
	Target string `json:"target,omitempty" yaml:"target,omitempty"`

	// Inputs are evaluated recursively before the action is created.
	Inputs map[string]any `json:"inputs,omitempty" yaml:"inputs,omitempty"`

	// Outputs maps context keys to expressions evaluated after a successful action.
	Outputs map[string]string `json:"outputs,omitempty" yaml:"outputs,omitempty"`

	// Validations maps names to boolean expressions checked after outputs are published.
	Validations map[string]string `json:"validations,omitempty" yaml:"validations,omitempty"`

	// Strategy optionally overrides how this step and its children execute.
	Strategy *StrategyDefinition `json:"strategy,omitempty" yaml:"strategy,omitempty"`

	// Steps are the child definitions, executed in declaration order.
	Steps []StepDefinition `json:"steps,omitempty" yaml:"steps,omitempty" validate:"dive"`
}

// StrategyDefinition selects a strategy type and its properties.
type StrategyDefinition struct {
	// Type is one of the registered strategy names.
	Type string `json:"type" yaml:"type" validate:"required,oneof=default retry-with-timeout for-each if soft-assert"`

	// Parameters are strategy specific; values may be expressions.
	Parameters map[string]any `json:"parameters,omitempty" yaml:"parameters,omitempty"`
}

// IsParent reports whether the definition has children.
func (d StepDefinition) IsParent() bool {
	return len(d.Steps) > 0
}

// StrategyType returns the declared strategy type or an empty string.
func (d StepDefinition) StrategyType() string {
	if d.Strategy == nil {
		return ""
	}
	return d.Strategy.Type
}

// Clone returns a deep copy of the definition and all its descendants.
func (d StepDefinition) Clone() StepDefinition {
	c := d
	c.Inputs = CloneMap(d.Inputs)
	c.Outputs = cloneStrings(d.Outputs)
	c.Validations = cloneStrings(d.Validations)
	if d.Strategy != nil {
		s := d.Strategy.Clone()
		c.Strategy = &s
	}
	if d.Steps != nil {
		c.Steps = make([]StepDefinition, len(d.Steps))
		for i, child := range d.Steps {
			c.Steps[i] = child.Clone()
		}
	}
	return c
}

// Clone returns a deep copy of the strategy definition.
func (s StrategyDefinition) Clone() StrategyDefinition {
	return StrategyDefinition{Type: s.Type, Parameters: CloneMap(s.Parameters)}
}

// Scenario is a named, runnable step tree.
type Scenario struct {
	// ID uniquely identifies the scenario.
	ID string `json:"id" yaml:"id" validate:"required"`

	// Title is the human readable name, also used as the root step name.
	Title string `json:"title" yaml:"title" validate:"required"`

	// Description is free text.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Tags are free labels.
	Tags []string `json:"tags,omitempty" yaml:"tags,omitempty"`

	// DefaultDatasetID is used when a run does not select a dataset.
	DefaultDatasetID string `json:"default_dataset,omitempty" yaml:"default_dataset,omitempty"`

	// Steps are the top level steps of the scenario.
	Steps []StepDefinition `json:"steps" yaml:"steps" validate:"required,min=1,dive"`
}

// Root returns the composite root definition executed for this scenario.
func (s Scenario) Root() StepDefinition {
	steps := make([]StepDefinition, len(s.Steps))
	for i, step := range s.Steps {
		steps[i] = step.Clone()
	}
	return StepDefinition{Name: s.Title, Steps: steps}
}

// FinallyAction is a teardown declaration registered during a run and
// executed after the main tree, in registration order.
type FinallyAction struct {
	Type     string              `json:"type"`
	Name     string              `json:"name"`
	Target   string              `json:"target,omitempty"`
	Inputs   map[string]any      `json:"inputs,omitempty"`
	Strategy *StrategyDefinition `json:"strategy,omitempty"`
}

// Key identifies duplicate registrations of the same teardown.
func (f FinallyAction) Key() string {
	return f.Type + "|" + f.Name + "|" + f.Target
}

// Definition converts the teardown into a leaf step definition.
func (f FinallyAction) Definition() StepDefinition {
	d := StepDefinition{
		Name:   f.Name,
		Type:   f.Type,
		Target: f.Target,
		Inputs: CloneMap(f.Inputs),
	}
	if f.Strategy != nil {
		s := f.Strategy.Clone()
		d.Strategy = &s
	}
	return d
}

// CloneMap deep copies a map of loosely typed values.
func CloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	c := make(map[string]any, len(m))
	for k, v := range m {
		c[k] = CloneValue(v)
	}
	return c
}

// CloneValue deep copies maps and slices; other values are returned as is.
func CloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return CloneMap(t)
	case map[string]string:
		return cloneStrings(t)
	case []any:
		c := make([]any, len(t))
		for i, e := range t {
			c[i] = CloneValue(e)
		}
		return c
	case []string:
		return append([]string(nil), t...)
	case []map[string]any:
		c := make([]map[string]any, len(t))
		for i, e := range t {
			c[i] = CloneMap(e)
		}
		return c
	default:
		return v
	}
}

func cloneStrings(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	c := make(map[string]string, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}
