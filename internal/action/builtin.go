package action

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mrz1836/cadence/internal/domain"
	"github.com/mrz1836/cadence/internal/logging"
)

// Built-in action types.
const (
	TypeSuccess    = "success"
	TypeFail       = "fail"
	TypeDebug      = "debug"
	TypeSleep      = "sleep"
	TypeContextPut = "context-put"
	TypeAssert     = "assert"
	TypeCompare    = "compare"
	TypeFinal      = "final"
)

// Compare modes.
const (
	CompareEquals      = "equals"
	CompareNotEquals   = "not-equals"
	CompareContains    = "contains"
	CompareNotContains = "not-contains"
)

// builtins is the static table of built-in factories.
func builtins() map[string]Factory {
	return map[string]Factory{
		TypeSuccess:    func(Input) Action { return successAction{} },
		TypeFail:       func(in Input) Action { return failAction{message: getString(in.Inputs, "message")} },
		TypeDebug:      func(in Input) Action { return debugAction{in: in} },
		TypeSleep:      newSleepAction,
		TypeContextPut: func(in Input) Action { return contextPutAction{entries: in.Inputs["entries"]} },
		TypeAssert:     func(in Input) Action { return assertAction{assertions: in.Inputs["assertions"]} },
		TypeCompare:    newCompareAction,
		TypeFinal:      func(in Input) Action { return finalAction{in: in} },
	}
}

type successAction struct{}

func (successAction) ValidateInputs() []string { return nil }

func (successAction) Execute(context.Context) Result { return Ok(nil) }

type failAction struct {
	message string
}

func (failAction) ValidateInputs() []string { return nil }

func (a failAction) Execute(context.Context) Result {
	if a.message != "" {
		return Failed(a.message)
	}
	return Failed("Failed on purpose")
}

// debugAction logs its evaluated inputs at info level.
type debugAction struct {
	in Input
}

func (debugAction) ValidateInputs() []string { return nil }

func (a debugAction) Execute(context.Context) Result {
	keys := make([]string, 0, len(a.in.Inputs))
	for k := range a.in.Inputs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	info := make([]string, 0, len(keys))
	for _, k := range keys {
		value := logging.SafeValue(k, fmt.Sprint(a.in.Inputs[k]))
		info = append(info, fmt.Sprintf("%s : [%s]", k, value))
		a.in.Logger.Info().Str("key", k).Str("value", value).Msg("debug")
	}
	return Ok(nil, info...)
}

type sleepAction struct {
	raw      any
	duration time.Duration
	err      error
}

func newSleepAction(in Input) Action {
	a := sleepAction{raw: in.Inputs["duration"]}
	a.duration, a.err = toDuration(a.raw)
	return a
}

func (a sleepAction) ValidateInputs() []string {
	if a.raw == nil {
		return []string{"duration is required"}
	}
	if a.err != nil {
		return []string{fmt.Sprintf("duration is invalid: %v", a.err)}
	}
	return nil
}

func (a sleepAction) Execute(ctx context.Context) Result {
	timer := time.NewTimer(a.duration)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return Failed(fmt.Sprintf("Sleep interrupted: %v", ctx.Err()))
	case <-timer.C:
		return Ok(nil, fmt.Sprintf("Slept %s", a.duration))
	}
}

// contextPutAction publishes its entries as outputs.
type contextPutAction struct {
	entries any
}

func (a contextPutAction) ValidateInputs() []string {
	if _, ok := toMap(a.entries); !ok {
		return []string{"entries must be a map"}
	}
	return nil
}

func (a contextPutAction) Execute(context.Context) Result {
	entries, _ := toMap(a.entries)
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	info := make([]string, 0, len(keys))
	for _, k := range keys {
		info = append(info, fmt.Sprintf("Adding to context %s : [%v]", k, entries[k]))
	}
	return Ok(entries, info...)
}

type assertAction struct {
	assertions any
}

func (a assertAction) ValidateInputs() []string {
	list, ok := a.assertions.([]any)
	if !ok || len(list) == 0 {
		return []string{"assertions must be a non-empty list"}
	}
	return nil
}

func (a assertAction) Execute(context.Context) Result {
	list, _ := a.assertions.([]any)
	var errs []string
	for i, assertion := range list {
		ok, err := toBool(assertion)
		if err != nil {
			errs = append(errs, fmt.Sprintf("Assertion [%d] is not a boolean: %v", i, assertion))
			continue
		}
		if !ok {
			errs = append(errs, fmt.Sprintf("Assertion [%d] is false", i))
		}
	}
	if len(errs) > 0 {
		return Failed(errs...)
	}
	return Ok(nil, fmt.Sprintf("%d assertion(s) passed", len(list)))
}

type compareAction struct {
	actual   any
	expected any
	mode     string
}

func newCompareAction(in Input) Action {
	mode := getString(in.Inputs, "mode")
	if mode == "" {
		mode = CompareEquals
	}
	return compareAction{actual: in.Inputs["actual"], expected: in.Inputs["expected"], mode: mode}
}

func (a compareAction) ValidateInputs() []string {
	var errs []string
	if a.actual == nil {
		errs = append(errs, "actual is required")
	}
	if a.expected == nil {
		errs = append(errs, "expected is required")
	}
	switch a.mode {
	case CompareEquals, CompareNotEquals, CompareContains, CompareNotContains:
	default:
		errs = append(errs, fmt.Sprintf("mode [%s] is not supported", a.mode))
	}
	return errs
}

func (a compareAction) Execute(context.Context) Result {
	actual, expected := fmt.Sprint(a.actual), fmt.Sprint(a.expected)

	var ok bool
	switch a.mode {
	case CompareEquals:
		ok = reflect.DeepEqual(a.actual, a.expected) || actual == expected
	case CompareNotEquals:
		ok = !reflect.DeepEqual(a.actual, a.expected) && actual != expected
	case CompareContains:
		ok = strings.Contains(actual, expected)
	case CompareNotContains:
		ok = !strings.Contains(actual, expected)
	}

	if !ok {
		return Failed(fmt.Sprintf("[%s] %s [%s] is false", actual, a.mode, expected))
	}
	return Ok(nil, fmt.Sprintf("[%s] %s [%s]", actual, a.mode, expected))
}

// finalAction registers a teardown on the current scenario execution.
type finalAction struct {
	in Input
}

func (a finalAction) ValidateInputs() []string {
	var errs []string
	if getString(a.in.Inputs, "type") == "" {
		errs = append(errs, "type is required")
	}
	if getString(a.in.Inputs, "name") == "" {
		errs = append(errs, "name is required")
	}
	if v, ok := a.in.Inputs["inputs"]; ok {
		if _, isMap := toMap(v); !isMap {
			errs = append(errs, "inputs must be a map")
		}
	}
	if a.in.Finally == nil {
		errs = append(errs, "no scenario execution to register on")
	}
	return errs
}

func (a finalAction) Execute(context.Context) Result {
	inputs, _ := toMap(a.in.Inputs["inputs"])
	fa := domain.FinallyAction{
		Type:   getString(a.in.Inputs, "type"),
		Name:   getString(a.in.Inputs, "name"),
		Target: getString(a.in.Inputs, "target"),
		Inputs: inputs,
	}
	if strategyType := getString(a.in.Inputs, "strategy-type"); strategyType != "" {
		params, _ := toMap(a.in.Inputs["strategy-properties"])
		fa.Strategy = &domain.StrategyDefinition{Type: strategyType, Parameters: params}
	}
	a.in.Finally.RegisterFinally(fa)
	return Ok(nil, fmt.Sprintf("Finally action [%s] registered", fa.Name))
}

// getString extracts a string value from inputs.
func getString(inputs map[string]any, key string) string {
	switch v := inputs[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func toMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[string]string:
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[k] = val
		}
		return out, true
	default:
		return nil, false
	}
}

func toBool(v any) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		return strconv.ParseBool(strings.TrimSpace(b))
	default:
		return false, fmt.Errorf("not a boolean: %T", v)
	}
}

func toDuration(v any) (time.Duration, error) {
	switch d := v.(type) {
	case time.Duration:
		return d, nil
	case string:
		return time.ParseDuration(strings.TrimSpace(d))
	case int:
		return time.Duration(d) * time.Millisecond, nil
	case nil:
		return 0, nil
	default:
		return 0, fmt.Errorf("unsupported duration %T", v)
	}
}
