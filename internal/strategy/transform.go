package strategy

import (
	"strconv"
	"strings"

	"github.com/mrz1836/cadence/internal/constants"
	"github.com/mrz1836/cadence/internal/domain"
)

// IndexToken returns the placeholder replaced by the iteration position.
func IndexToken(indexName string) string {
	return "<" + indexName + ">"
}

// Iteration returns the definition of one for-each iteration: a deep copy
// of def without its strategy, with the index token replaced by index in
// every string of the step and its descendants. A nested for-each that
// declares the same index name shadows the outer one and is left untouched.
func Iteration(def domain.StepDefinition, indexName string, index int) domain.StepDefinition {
	out := def.Clone()
	out.Strategy = nil
	replaceIndex(&out, indexName, strconv.Itoa(index))
	return out
}

func replaceIndex(def *domain.StepDefinition, indexName, value string) {
	token := IndexToken(indexName)
	replace := func(s string) string { return strings.ReplaceAll(s, token, value) }

	def.Name = replace(def.Name)
	def.Target = replace(def.Target)
	def.Inputs = replaceInMap(def.Inputs, replace)
	def.Outputs = replaceInStrings(def.Outputs, replace)
	def.Validations = replaceInStrings(def.Validations, replace)
	if def.Strategy != nil {
		def.Strategy.Parameters = replaceInMap(def.Strategy.Parameters, replace)
	}

	for i := range def.Steps {
		if shadows(def.Steps[i], indexName) {
			continue
		}
		replaceIndex(&def.Steps[i], indexName, value)
	}
}

func shadows(def domain.StepDefinition, indexName string) bool {
	if def.StrategyType() != constants.StrategyForEach {
		return false
	}
	name, _ := def.Strategy.Parameters[constants.PropertyIndex].(string)
	if name == "" {
		name = constants.DefaultIndexName
	}
	return name == indexName
}

func replaceInStrings(m map[string]string, replace func(string) string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[replace(k)] = replace(v)
	}
	return out
}

func replaceInMap(m map[string]any, replace func(string) string) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[replace(k)] = replaceInValue(v, replace)
	}
	return out
}

func replaceInValue(v any, replace func(string) string) any {
	switch t := v.(type) {
	case string:
		return replace(t)
	case map[string]any:
		return replaceInMap(t, replace)
	case map[string]string:
		return replaceInStrings(t, replace)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = replaceInValue(e, replace)
		}
		return out
	case []string:
		out := make([]string, len(t))
		for i, e := range t {
			out[i] = replace(e)
		}
		return out
	default:
		return v
	}
}
