package action

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/cadence/internal/constants"
	"github.com/mrz1836/cadence/internal/domain"
	"github.com/mrz1836/cadence/internal/errors"
)

type mockRegistrar struct {
	mu      sync.Mutex
	actions []domain.FinallyAction
}

func (m *mockRegistrar) RegisterFinally(a domain.FinallyAction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actions = append(m.actions, a)
}

func create(t *testing.T, actionType string, inputs map[string]any) Action {
	t.Helper()
	factory, err := NewDefaultRegistry().Resolve(actionType)
	require.NoError(t, err)
	return factory(Input{Type: actionType, Inputs: inputs, Logger: zerolog.Nop()})
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	assert.Empty(t, r.Types())

	_, err := r.Resolve("missing")
	require.ErrorIs(t, err, errors.ErrActionNotFound)
	assert.Contains(t, err.Error(), "missing")

	r.Register("noop", func(Input) Action { return successAction{} })
	f, err := r.Resolve("noop")
	require.NoError(t, err)
	assert.Equal(t, constants.StatusSuccess, f(Input{}).Execute(context.Background()).Status)

	assert.Equal(t, []string{
		TypeAssert, TypeCompare, TypeContextPut, TypeDebug, TypeFail, TypeFinal, TypeSleep, TypeSuccess,
	}, NewDefaultRegistry().Types())
}

func TestSuccessAndFail(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	assert.Equal(t, constants.StatusSuccess, create(t, TypeSuccess, nil).Execute(ctx).Status)

	res := create(t, TypeFail, nil).Execute(ctx)
	assert.Equal(t, constants.StatusFailure, res.Status)
	assert.Equal(t, []string{"Failed on purpose"}, res.Errors)

	res = create(t, TypeFail, map[string]any{"message": "boom"}).Execute(ctx)
	assert.Equal(t, []string{"boom"}, res.Errors)
}

func TestDebug(t *testing.T) {
	t.Parallel()

	res := create(t, TypeDebug, map[string]any{"b": 2, "a": "x"}).Execute(context.Background())
	assert.Equal(t, constants.StatusSuccess, res.Status)
	assert.Equal(t, []string{"a : [x]", "b : [2]"}, res.Info)

	res = create(t, TypeDebug, map[string]any{"password": "hunter2"}).Execute(context.Background())
	assert.Equal(t, []string{"password : [[REDACTED]]"}, res.Info)
}

func TestSleep(t *testing.T) {
	t.Parallel()

	t.Run("validates duration", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, []string{"duration is required"}, create(t, TypeSleep, nil).ValidateInputs())
		assert.Len(t, create(t, TypeSleep, map[string]any{"duration": "soon"}).ValidateInputs(), 1)
		assert.Empty(t, create(t, TypeSleep, map[string]any{"duration": "5ms"}).ValidateInputs())
	})

	t.Run("sleeps", func(t *testing.T) {
		t.Parallel()
		start := time.Now()
		res := create(t, TypeSleep, map[string]any{"duration": "20ms"}).Execute(context.Background())
		assert.Equal(t, constants.StatusSuccess, res.Status)
		assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	})

	t.Run("interrupted by context", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		res := create(t, TypeSleep, map[string]any{"duration": "1h"}).Execute(ctx)
		assert.Equal(t, constants.StatusFailure, res.Status)
	})
}

func TestContextPut(t *testing.T) {
	t.Parallel()

	a := create(t, TypeContextPut, map[string]any{"entries": map[string]any{"user": "ada", "id": 1}})
	require.Empty(t, a.ValidateInputs())
	res := a.Execute(context.Background())
	assert.Equal(t, map[string]any{"user": "ada", "id": 1}, res.Outputs)
	assert.Len(t, res.Info, 2)

	assert.Equal(t, []string{"entries must be a map"}, create(t, TypeContextPut, map[string]any{"entries": "x"}).ValidateInputs())
}

func TestAssert(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	assert.NotEmpty(t, create(t, TypeAssert, nil).ValidateInputs())

	res := create(t, TypeAssert, map[string]any{"assertions": []any{true, "true"}}).Execute(ctx)
	assert.Equal(t, constants.StatusSuccess, res.Status)

	res = create(t, TypeAssert, map[string]any{"assertions": []any{true, "false", "nope"}}).Execute(ctx)
	assert.Equal(t, constants.StatusFailure, res.Status)
	assert.Equal(t, []string{"Assertion [1] is false", "Assertion [2] is not a boolean: nope"}, res.Errors)
}

func TestCompare(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		inputs   map[string]any
		expected constants.Status
	}{
		{"equals", map[string]any{"actual": "200", "expected": "200"}, constants.StatusSuccess},
		{"equals across types", map[string]any{"actual": 200, "expected": "200"}, constants.StatusSuccess},
		{"not equals fails", map[string]any{"actual": "a", "expected": "a", "mode": CompareNotEquals}, constants.StatusFailure},
		{"contains", map[string]any{"actual": "hello world", "expected": "world", "mode": CompareContains}, constants.StatusSuccess},
		{"not contains", map[string]any{"actual": "hello", "expected": "x", "mode": CompareNotContains}, constants.StatusSuccess},
		{"equals fails", map[string]any{"actual": "a", "expected": "b"}, constants.StatusFailure},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			a := create(t, TypeCompare, tc.inputs)
			require.Empty(t, a.ValidateInputs())
			assert.Equal(t, tc.expected, a.Execute(context.Background()).Status)
		})
	}

	errs := create(t, TypeCompare, map[string]any{"mode": "greater"}).ValidateInputs()
	assert.Equal(t, []string{"actual is required", "expected is required", "mode [greater] is not supported"}, errs)
}

func TestFinal(t *testing.T) {
	t.Parallel()

	registrar := &mockRegistrar{}
	factory, err := NewDefaultRegistry().Resolve(TypeFinal)
	require.NoError(t, err)

	a := factory(Input{
		Type: TypeFinal,
		Inputs: map[string]any{
			"type":                "debug",
			"name":                "cleanup",
			"target":              "db",
			"inputs":              map[string]any{"k": "v"},
			"strategy-type":       "retry-with-timeout",
			"strategy-properties": map[string]any{"timeOut": "1s", "retryDelay": "100ms"},
		},
		Finally: registrar,
	})
	require.Empty(t, a.ValidateInputs())
	res := a.Execute(context.Background())
	assert.Equal(t, constants.StatusSuccess, res.Status)

	require.Len(t, registrar.actions, 1)
	fa := registrar.actions[0]
	assert.Equal(t, "cleanup", fa.Name)
	assert.Equal(t, "debug", fa.Type)
	assert.Equal(t, "db", fa.Target)
	assert.Equal(t, map[string]any{"k": "v"}, fa.Inputs)
	require.NotNil(t, fa.Strategy)
	assert.Equal(t, "retry-with-timeout", fa.Strategy.Type)

	missing := factory(Input{Inputs: map[string]any{"inputs": "bad"}})
	assert.Equal(t, []string{
		"type is required", "name is required", "inputs must be a map", "no scenario execution to register on",
	}, missing.ValidateInputs())
}
