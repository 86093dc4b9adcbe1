package domain

// Environment is a named set of variables and targets a scenario runs against.
type Environment struct {
	Name        string            `json:"name" yaml:"name" validate:"required"`
	Description string            `json:"description,omitempty" yaml:"description,omitempty"`
	Variables   map[string]string `json:"variables,omitempty" yaml:"variables,omitempty"`
	Targets     []Target          `json:"targets,omitempty" yaml:"targets,omitempty" validate:"dive"`
}

// Target is a remote system an action talks to.
type Target struct {
	Name       string            `json:"name" yaml:"name" validate:"required"`
	URL        string            `json:"url" yaml:"url" validate:"required"`
	Properties map[string]string `json:"properties,omitempty" yaml:"properties,omitempty"`
}

// FindTarget returns the target with the given name.
func (e Environment) FindTarget(name string) (Target, bool) {
	for _, t := range e.Targets {
		if t.Name == name {
			return t, true
		}
	}
	return Target{}, false
}

// Dataset supplies constants and an optional datatable to a scenario.
type Dataset struct {
	ID          string              `json:"id" yaml:"id" validate:"required"`
	Name        string              `json:"name,omitempty" yaml:"name,omitempty"`
	Description string              `json:"description,omitempty" yaml:"description,omitempty"`
	Constants   map[string]string   `json:"constants,omitempty" yaml:"constants,omitempty"`
	Datatable   []map[string]string `json:"datatable,omitempty" yaml:"datatable,omitempty"`
}

// Rows returns the datatable as generic rows, or the constants as a single
// row when the datatable is empty.
func (d *Dataset) Rows() []any {
	if d == nil {
		return []any{}
	}
	if len(d.Datatable) == 0 {
		if len(d.Constants) == 0 {
			return []any{}
		}
		return []any{stringsToAny(d.Constants)}
	}
	rows := make([]any, len(d.Datatable))
	for i, row := range d.Datatable {
		rows[i] = stringsToAny(row)
	}
	return rows
}

func stringsToAny(m map[string]string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
