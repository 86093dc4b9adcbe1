// Package eval resolves step names, inputs and strategy properties against
// a scenario context.
//
// Expressions are Go templates enriched with the sprig function library.
// An expression made of a single field reference such as "{{ .user.id }}"
// resolves to the referenced value with its type preserved, so datasets,
// booleans and numbers can flow through inputs unchanged.
//
// Import rules:
//   - CAN import: internal/errors, std lib
//   - MUST NOT import: other internal packages
package eval

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"

	"github.com/mrz1836/cadence/internal/errors"
)

// Evaluator evaluates expressions against a context.
type Evaluator interface {
	// Evaluate returns the value of the expression. Strings without template
	// delimiters are returned unchanged.
	Evaluate(expr string, data map[string]any) (any, error)

	// EvaluateString renders the expression as a string.
	EvaluateString(expr string, data map[string]any) (string, error)
}

// simpleReference matches "{{ .a.b.c }}" with optional surrounding spaces.
//
//nolint:gochecknoglobals // Compiled once
var simpleReference = regexp.MustCompile(`^\{\{\s*\.([A-Za-z_][A-Za-z0-9_]*(?:\.[A-Za-z_][A-Za-z0-9_]*)*)\s*\}\}$`)

// TemplateEvaluator implements Evaluator with text/template and sprig.
type TemplateEvaluator struct {
	funcs template.FuncMap
}

// Ensure TemplateEvaluator implements Evaluator.
var _ Evaluator = (*TemplateEvaluator)(nil)

// NewTemplateEvaluator creates an evaluator with the sprig function map.
func NewTemplateEvaluator() *TemplateEvaluator {
	return &TemplateEvaluator{funcs: sprig.TxtFuncMap()}
}

// IsExpression reports whether s contains template delimiters.
func IsExpression(s string) bool {
	return strings.Contains(s, "{{") && strings.Contains(s, "}}")
}

// Evaluate implements Evaluator.
func (e *TemplateEvaluator) Evaluate(expr string, data map[string]any) (any, error) {
	if !IsExpression(expr) {
		return expr, nil
	}

	if m := simpleReference.FindStringSubmatch(strings.TrimSpace(expr)); m != nil {
		v, ok := lookup(data, strings.Split(m[1], "."))
		if !ok {
			return nil, fmt.Errorf("%w: %q: no value for %q", errors.ErrEvaluation, expr, m[1])
		}
		return v, nil
	}

	return e.render(expr, data)
}

// EvaluateString implements Evaluator.
func (e *TemplateEvaluator) EvaluateString(expr string, data map[string]any) (string, error) {
	v, err := e.Evaluate(expr, data)
	if err != nil {
		return "", err
	}
	return ToString(v), nil
}

func (e *TemplateEvaluator) render(expr string, data map[string]any) (string, error) {
	tmpl, err := template.New("expr").Option("missingkey=error").Funcs(e.funcs).Parse(expr)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %w", errors.ErrEvaluation, expr, err)
	}

	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("%w: %q: %w", errors.ErrEvaluation, expr, err)
	}
	return sb.String(), nil
}

// lookup walks nested maps following path.
func lookup(data map[string]any, path []string) (any, bool) {
	var current any = data
	for _, key := range path {
		switch m := current.(type) {
		case map[string]any:
			v, ok := m[key]
			if !ok {
				return nil, false
			}
			current = v
		case map[string]string:
			v, ok := m[key]
			if !ok {
				return nil, false
			}
			current = v
		default:
			return nil, false
		}
	}
	return current, true
}

// Value evaluates every string found in v, descending into maps and slices.
// Map keys are evaluated too.
func Value(ev Evaluator, v any, data map[string]any) (any, error) {
	switch t := v.(type) {
	case string:
		return ev.Evaluate(t, data)
	case map[string]any:
		return Map(ev, t, data)
	case map[string]string:
		out := make(map[string]any, len(t))
		for k, val := range t {
			key, err := ev.EvaluateString(k, data)
			if err != nil {
				return nil, err
			}
			resolved, err := ev.Evaluate(val, data)
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", k, err)
			}
			out[key] = resolved
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			resolved, err := Value(ev, val, data)
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			out[i] = resolved
		}
		return out, nil
	default:
		return v, nil
	}
}

// Map evaluates every value of m. A nil map stays nil.
func Map(ev Evaluator, m map[string]any, data map[string]any) (map[string]any, error) {
	if m == nil {
		return nil, nil
	}
	out := make(map[string]any, len(m))
	for k, val := range m {
		key, err := ev.EvaluateString(k, data)
		if err != nil {
			return nil, err
		}
		resolved, err := Value(ev, val, data)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		out[key] = resolved
	}
	return out, nil
}

// Bool evaluates v to a boolean. Literal booleans are accepted as is;
// strings are evaluated then parsed with strconv.ParseBool.
func Bool(ev Evaluator, v any, data map[string]any) (bool, error) {
	if s, ok := v.(string); ok {
		resolved, err := ev.Evaluate(s, data)
		if err != nil {
			return false, err
		}
		v = resolved
	}

	switch t := v.(type) {
	case bool:
		return t, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(t))
		if err != nil {
			return false, fmt.Errorf("%w: %q", errors.ErrConditionNotBoolean, t)
		}
		return b, nil
	default:
		return false, fmt.Errorf("%w: %v (%T)", errors.ErrConditionNotBoolean, v, v)
	}
}

// ToString formats an evaluated value for display or string contexts.
func ToString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(v)
	}
}
