package strategy

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mrz1836/cadence/internal/errors"
	"github.com/mrz1836/cadence/internal/eval"
	"github.com/mrz1836/cadence/internal/step"
)

// requireProperty returns a declared strategy property.
// Returns ErrStrategyPropertyMissing when absent or empty.
func requireProperty(s *step.Step, name string) (any, error) {
	def := s.Definition()
	if def.Strategy == nil {
		return nil, fmt.Errorf("%w: %s", errors.ErrStrategyPropertyMissing, name)
	}
	v, ok := def.Strategy.Parameters[name]
	if !ok || v == nil {
		return nil, fmt.Errorf("%w: %s", errors.ErrStrategyPropertyMissing, name)
	}
	if str, isString := v.(string); isString && strings.TrimSpace(str) == "" {
		return nil, fmt.Errorf("%w: %s", errors.ErrStrategyPropertyMissing, name)
	}
	return v, nil
}

// durationProperty evaluates a mandatory duration property. Numbers, and
// strings holding only an integer, are milliseconds; other strings are
// parsed with time.ParseDuration.
func durationProperty(s *step.Step, name string, evalCtx step.Context) (time.Duration, error) {
	raw, err := requireProperty(s, name)
	if err != nil {
		return 0, err
	}

	v, err := eval.Value(s.Builder().Evaluator(), raw, evalCtx)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", errors.ErrStrategyPropertyInvalid, name, err)
	}

	d, err := toDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", errors.ErrStrategyPropertyInvalid, name, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%w: %s: negative duration %s", errors.ErrStrategyPropertyInvalid, name, d)
	}
	return d, nil
}

// stringProperty evaluates an optional string property.
func stringProperty(s *step.Step, name, fallback string, evalCtx step.Context) (string, error) {
	def := s.Definition()
	if def.Strategy == nil {
		return fallback, nil
	}
	raw, ok := def.Strategy.Parameters[name].(string)
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	v, err := s.Builder().Evaluator().EvaluateString(raw, evalCtx)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", errors.ErrStrategyPropertyInvalid, name, err)
	}
	return v, nil
}

func toDuration(v any) (time.Duration, error) {
	switch t := v.(type) {
	case time.Duration:
		return t, nil
	case int:
		return time.Duration(t) * time.Millisecond, nil
	case int64:
		return time.Duration(t) * time.Millisecond, nil
	case float64:
		return time.Duration(t * float64(time.Millisecond)), nil
	case string:
		t = strings.TrimSpace(t)
		if ms, err := strconv.ParseInt(t, 10, 64); err == nil {
			return time.Duration(ms) * time.Millisecond, nil
		}
		return time.ParseDuration(t)
	default:
		return 0, fmt.Errorf("unsupported duration %v (%T)", v, v) //nolint:err113 // wrapped by caller
	}
}
