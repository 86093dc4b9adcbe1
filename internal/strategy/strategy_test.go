package strategy

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/cadence/internal/action"
	"github.com/mrz1836/cadence/internal/constants"
	"github.com/mrz1836/cadence/internal/domain"
	"github.com/mrz1836/cadence/internal/eval"
	"github.com/mrz1836/cadence/internal/execution"
	"github.com/mrz1836/cadence/internal/step"
)

// counter records how many times each step name invoked the counting action.
type counter struct {
	mu    sync.Mutex
	calls map[string]int
}

func (c *counter) inc(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.calls == nil {
		c.calls = make(map[string]int)
	}
	c.calls[name]++
	return c.calls[name]
}

func (c *counter) get(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[name]
}

func (c *counter) total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, v := range c.calls {
		n += v
	}
	return n
}

type funcAction func(ctx context.Context) action.Result

func (funcAction) ValidateInputs() []string { return nil }

func (f funcAction) Execute(ctx context.Context) action.Result { return f(ctx) }

// newHarness returns a builder whose registry adds:
//   - count: succeeds, or fails when input fail is true
//   - flaky: fails until input succeedAt calls were made
//   - panic: panics
func newHarness(c *counter) *step.Builder {
	registry := action.NewDefaultRegistry()
	registry.Register("count", func(in action.Input) action.Action {
		return funcAction(func(context.Context) action.Result {
			c.inc(in.StepName)
			if fmt.Sprint(in.Inputs["fail"]) == "true" {
				return action.Failed("counted failure")
			}
			return action.Ok(nil)
		})
	})
	registry.Register("flaky", func(in action.Input) action.Action {
		return funcAction(func(context.Context) action.Result {
			n := c.inc(in.StepName)
			if succeedAt, _ := in.Inputs["succeedAt"].(int); n < succeedAt {
				return action.Failed("not yet")
			}
			return action.Ok(nil)
		})
	})
	registry.Register("panic", func(in action.Input) action.Action {
		return funcAction(func(context.Context) action.Result {
			c.inc(in.StepName)
			panic("boom")
		})
	})
	return step.NewBuilder(eval.NewTemplateEvaluator(), registry, domain.Environment{Name: "test"})
}

func runTree(t *testing.T, c *counter, def domain.StepDefinition) (*step.Step, constants.Status) {
	t.Helper()
	root := newHarness(c).Build(def)
	status := NewDefaultRegistry().Run(context.Background(), execution.New(1), root, step.Context{}, nil)
	return root, status
}

func leaf(name string, fail bool) domain.StepDefinition {
	return domain.StepDefinition{Name: name, Type: "count", Inputs: map[string]any{"fail": fail}}
}

func withStrategy(strategyType string, params map[string]any) *domain.StrategyDefinition {
	return &domain.StrategyDefinition{Type: strategyType, Parameters: params}
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	r := NewDefaultRegistry()
	assert.Equal(t, []string{
		constants.StrategyDefault, constants.StrategyForEach, constants.StrategyIf,
		constants.StrategyRetryWithTimeout, constants.StrategySoftAssert,
	}, r.Types())

	s, err := r.Resolve("")
	require.NoError(t, err)
	assert.Equal(t, constants.StrategyDefault, s.Type())

	_, err = r.Resolve("parallel")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "strategy not found: parallel")
}

func TestUnknownStrategyFailsStep(t *testing.T) {
	t.Parallel()

	c := &counter{}
	def := leaf("a", false)
	def.Strategy = withStrategy("parallel", nil)

	root, status := runTree(t, c, def)

	assert.Equal(t, constants.StatusFailure, status)
	assert.Equal(t, []string{"strategy not found: parallel"}, root.Errors())
	assert.Equal(t, 0, c.total())
}

func TestDefault(t *testing.T) {
	t.Parallel()

	t.Run("stops at first failure", func(t *testing.T) {
		t.Parallel()
		c := &counter{}
		root, status := runTree(t, c, domain.StepDefinition{
			Name:  "root",
			Steps: []domain.StepDefinition{leaf("a", false), leaf("b", true), leaf("c", false)},
		})

		assert.Equal(t, constants.StatusFailure, status)
		children := root.Children()
		assert.Equal(t, constants.StatusSuccess, children[0].Status())
		assert.Equal(t, constants.StatusFailure, children[1].Status())
		assert.Equal(t, constants.StatusNotExecuted, children[2].Status())
		assert.Equal(t, 0, c.get("c"))
	})

	t.Run("worst of executed children", func(t *testing.T) {
		t.Parallel()
		c := &counter{}
		_, status := runTree(t, c, domain.StepDefinition{
			Name: "root",
			Steps: []domain.StepDefinition{
				leaf("a", false),
				{
					Name:     "soft",
					Strategy: withStrategy(constants.StrategySoftAssert, nil),
					Steps:    []domain.StepDefinition{leaf("b", true)},
				},
				leaf("c", false),
			},
		})

		assert.Equal(t, constants.StatusWarn, status)
		assert.Equal(t, 1, c.get("c"))
	})

	t.Run("panic fails the child and stops", func(t *testing.T) {
		t.Parallel()
		c := &counter{}
		root, status := runTree(t, c, domain.StepDefinition{
			Name: "root",
			Steps: []domain.StepDefinition{
				{Name: "p", Type: "panic"},
				leaf("after", false),
			},
		})

		assert.Equal(t, constants.StatusFailure, status)
		assert.Equal(t, []string{"Action [panic] failed: boom"}, root.Children()[0].Errors())
		assert.Equal(t, 0, c.get("after"))
	})

	t.Run("stop preempts children", func(t *testing.T) {
		t.Parallel()
		c := &counter{}
		root := newHarness(c).Build(domain.StepDefinition{
			Name:  "root",
			Steps: []domain.StepDefinition{leaf("a", false), leaf("b", false)},
		})
		se := execution.New(1)
		se.Stop()

		status := NewDefaultRegistry().Run(context.Background(), se, root, step.Context{}, nil)

		assert.Equal(t, constants.StatusStopped, status)
		assert.Equal(t, constants.StatusNotExecuted, root.Children()[0].Status())
		assert.Equal(t, 0, c.total())
	})

	t.Run("outputs flow to later siblings", func(t *testing.T) {
		t.Parallel()
		c := &counter{}
		root, status := runTree(t, c, domain.StepDefinition{
			Name: "root",
			Steps: []domain.StepDefinition{
				{Name: "put", Type: action.TypeContextPut, Inputs: map[string]any{"entries": map[string]any{"id": "42"}}},
				{Name: "use {{ .id }}", Type: "count"},
			},
		})

		assert.Equal(t, constants.StatusSuccess, status)
		assert.Equal(t, "use 42", root.Children()[1].Name())
	})
}

func TestSoftAssert(t *testing.T) {
	t.Parallel()

	c := &counter{}
	root, status := runTree(t, c, domain.StepDefinition{
		Name:     "soft",
		Strategy: withStrategy(constants.StrategySoftAssert, nil),
		Steps: []domain.StepDefinition{
			leaf("a", true),
			{Name: "p", Type: "panic"},
			leaf("c", false),
			leaf("d", true),
		},
	})

	assert.Equal(t, constants.StatusWarn, status)
	for _, name := range []string{"a", "p", "c", "d"} {
		assert.Equal(t, 1, c.get(name), name)
	}
	children := root.Children()
	assert.Equal(t, constants.StatusFailure, children[0].Status())
	assert.Equal(t, constants.StatusFailure, children[1].Status())
	assert.Equal(t, constants.StatusSuccess, children[2].Status())
	assert.Equal(t, constants.StatusFailure, children[3].Status())
}

func TestSoftAssertLeaf(t *testing.T) {
	t.Parallel()

	def := leaf("a", true)
	def.Strategy = withStrategy(constants.StrategySoftAssert, nil)

	root, status := runTree(t, &counter{}, def)

	assert.Equal(t, constants.StatusWarn, status)
	assert.Equal(t, []string{"counted failure"}, root.Errors())
}

func TestIf(t *testing.T) {
	t.Parallel()

	tree := func(condition any) domain.StepDefinition {
		return domain.StepDefinition{
			Name:     "cond",
			Strategy: withStrategy(constants.StrategyIf, map[string]any{constants.PropertyCondition: condition}),
			Steps: []domain.StepDefinition{
				{Name: "group", Steps: []domain.StepDefinition{leaf("a", true)}},
				leaf("b", false),
			},
		}
	}

	t.Run("false skips the whole branch", func(t *testing.T) {
		t.Parallel()
		c := &counter{}
		root, status := runTree(t, c, tree("{{ eq \"off\" \"on\" }}"))

		assert.Equal(t, constants.StatusSuccess, status)
		assert.Equal(t, 0, c.total())
		deep := root.Children()[0].Children()[0]
		assert.Equal(t, constants.StatusSuccess, deep.Status())
		assert.Equal(t, []string{constants.StepSkippedMessage}, deep.Information())
	})

	t.Run("true behaves like default", func(t *testing.T) {
		t.Parallel()
		c := &counter{}
		root, status := runTree(t, c, tree(true))

		assert.Equal(t, constants.StatusFailure, status)
		assert.Equal(t, 1, c.get("a"))
		assert.Equal(t, 0, c.get("b"))
		assert.Equal(t, constants.StatusNotExecuted, root.Children()[1].Status())
	})

	t.Run("non boolean condition", func(t *testing.T) {
		t.Parallel()
		c := &counter{}
		root, status := runTree(t, c, tree("maybe"))

		assert.Equal(t, constants.StatusFailure, status)
		require.Len(t, root.Errors(), 1)
		assert.Contains(t, root.Errors()[0], "Strategy [if] failed")
		assert.Contains(t, root.Errors()[0], "condition is not a boolean")
		assert.Equal(t, 0, c.total())
	})

	t.Run("missing condition", func(t *testing.T) {
		t.Parallel()
		def := tree(nil)
		def.Strategy.Parameters = nil
		root, status := runTree(t, &counter{}, def)

		assert.Equal(t, constants.StatusFailure, status)
		assert.Contains(t, root.Errors()[0], "strategy property missing: condition")
	})
}

func TestRetry(t *testing.T) {
	t.Parallel()

	retryDef := func(timeout, delay any, steps ...domain.StepDefinition) domain.StepDefinition {
		return domain.StepDefinition{
			Name: "retry",
			Strategy: withStrategy(constants.StrategyRetryWithTimeout, map[string]any{
				constants.PropertyTimeout:    timeout,
				constants.PropertyRetryDelay: delay,
			}),
			Steps: steps,
		}
	}

	t.Run("always failing sub-tree times out", func(t *testing.T) {
		t.Parallel()
		c := &counter{}
		start := time.Now()
		root, status := runTree(t, c, retryDef("300ms", "100ms", leaf("a", true)))

		assert.Equal(t, constants.StatusFailure, status)
		assert.GreaterOrEqual(t, c.get("a"), 2)
		assert.LessOrEqual(t, c.get("a"), 4)
		assert.GreaterOrEqual(t, time.Since(start), 300*time.Millisecond)
		errs := root.Errors()
		require.NotEmpty(t, errs)
		assert.Contains(t, errs[len(errs)-1], "Timeout of 300ms reached")
	})

	t.Run("bare numbers are milliseconds", func(t *testing.T) {
		t.Parallel()
		c := &counter{}
		root, status := runTree(t, c, retryDef(" 300 ", "100", leaf("a", true)))

		assert.Equal(t, constants.StatusFailure, status)
		assert.GreaterOrEqual(t, c.get("a"), 2)
		assert.LessOrEqual(t, c.get("a"), 4)
		errs := root.Errors()
		require.NotEmpty(t, errs)
		assert.Contains(t, errs[len(errs)-1], "Timeout of 300ms reached")
	})

	t.Run("succeeds after failed attempts", func(t *testing.T) {
		t.Parallel()
		c := &counter{}
		flaky := domain.StepDefinition{Name: "f", Type: "flaky", Inputs: map[string]any{"succeedAt": 3}}
		root, status := runTree(t, c, retryDef("5s", "10ms", flaky))

		assert.Equal(t, constants.StatusSuccess, status)
		assert.Equal(t, 3, c.get("f"))
		assert.Equal(t, []string{"Attempt 2 failed: not yet"}, root.Information())
		assert.Equal(t, constants.StatusSuccess, root.Children()[0].Status())
		assert.Empty(t, root.Children()[0].Errors())
	})

	t.Run("retries a leaf", func(t *testing.T) {
		t.Parallel()
		c := &counter{}
		def := domain.StepDefinition{
			Name:     "f",
			Type:     "flaky",
			Inputs:   map[string]any{"succeedAt": 2},
			Strategy: withStrategy(constants.StrategyRetryWithTimeout, map[string]any{"timeOut": "5s", "retryDelay": 1}),
		}
		_, status := runTree(t, c, def)

		assert.Equal(t, constants.StatusSuccess, status)
		assert.Equal(t, 2, c.get("f"))
	})

	t.Run("missing or invalid properties", func(t *testing.T) {
		t.Parallel()
		for _, tt := range []struct {
			timeout, delay any
			want           string
		}{
			{nil, "1s", "strategy property missing: timeOut"},
			{"1s", "", "strategy property missing: retryDelay"},
			{"soon", "1s", "strategy property invalid: timeOut"},
			{"1s", "-1s", "strategy property invalid: retryDelay"},
			{"300", "-5", "strategy property invalid: retryDelay"},
			{"300 ms", "1s", "strategy property invalid: timeOut"},
		} {
			c := &counter{}
			root, status := runTree(t, c, retryDef(tt.timeout, tt.delay, leaf("a", true)))
			assert.Equal(t, constants.StatusFailure, status)
			require.Len(t, root.Errors(), 1)
			assert.Contains(t, root.Errors()[0], tt.want)
			assert.Equal(t, 0, c.total())
		}
	})

	t.Run("stop during delay", func(t *testing.T) {
		t.Parallel()
		c := &counter{}
		root := newHarness(c).Build(retryDef("1m", "30s", leaf("a", true)))
		se := execution.New(1)

		done := make(chan constants.Status, 1)
		go func() {
			done <- NewDefaultRegistry().Run(context.Background(), se, root, step.Context{}, nil)
		}()

		require.Eventually(t, func() bool { return c.get("a") == 1 && len(root.Information()) == 1 },
			time.Second, 5*time.Millisecond)
		se.Stop()

		select {
		case status := <-done:
			assert.Equal(t, constants.StatusStopped, status)
		case <-time.After(2 * time.Second):
			t.Fatal("retry did not observe stop")
		}
		assert.Equal(t, 1, c.get("a"))
	})

	t.Run("canceled context interrupts the delay", func(t *testing.T) {
		t.Parallel()
		c := &counter{}
		root := newHarness(c).Build(retryDef("1m", "30s", leaf("a", true)))
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		status := NewDefaultRegistry().Run(ctx, execution.New(1), root, step.Context{}, nil)

		assert.Equal(t, constants.StatusFailure, status)
		assert.Contains(t, root.Errors()[0], "retry interrupted: context canceled")
	})
}

func TestForEach(t *testing.T) {
	t.Parallel()

	rows := []any{
		map[string]any{"user": "ann"},
		map[string]any{"user": "bob"},
		map[string]any{"user": "cy"},
	}

	t.Run("one iteration per row", func(t *testing.T) {
		t.Parallel()
		c := &counter{}
		scenarioCtx := step.Context{}
		root := newHarness(c).Build(domain.StepDefinition{
			Name:     "put <i> {{ .user }}",
			Type:     action.TypeContextPut,
			Inputs:   map[string]any{"entries": map[string]any{"user_<i>": "{{ .user }}"}},
			Strategy: withStrategy(constants.StrategyForEach, map[string]any{"dataset": rows}),
		})

		status := NewDefaultRegistry().Run(context.Background(), execution.New(1), root, scenarioCtx, nil)

		assert.Equal(t, constants.StatusSuccess, status)
		iterations := root.Children()
		require.Len(t, iterations, 3)
		assert.Equal(t, "put 0 ann", iterations[0].Name())
		assert.Equal(t, "put 2 cy", iterations[2].Name())
		assert.Equal(t, "bob", scenarioCtx["user_1"])
	})

	t.Run("dataset from context", func(t *testing.T) {
		t.Parallel()
		c := &counter{}
		root := newHarness(c).Build(domain.StepDefinition{
			Name:     "each",
			Strategy: withStrategy(constants.StrategyForEach, map[string]any{"dataset": "{{ .dataset }}"}),
			Steps:    []domain.StepDefinition{{Name: "call {{ .user }}", Type: "count"}},
		})

		status := NewDefaultRegistry().Run(context.Background(), execution.New(1), root,
			step.Context{constants.ContextKeyDataset: rows}, nil)

		assert.Equal(t, constants.StatusSuccess, status)
		assert.Equal(t, 1, c.get("call ann"))
		assert.Equal(t, 1, c.get("call cy"))
	})

	t.Run("iterations are independent", func(t *testing.T) {
		t.Parallel()
		c := &counter{}
		root, status := runTree(t, c, domain.StepDefinition{
			Name:   "check <i>",
			Type:   "count",
			Inputs: map[string]any{"fail": "{{ eq .user \"bob\" }}"},
			Strategy: withStrategy(constants.StrategyForEach, map[string]any{
				"dataset": rows,
			}),
		})

		assert.Equal(t, constants.StatusFailure, status)
		assert.Equal(t, 3, c.total())
		assert.Equal(t, constants.StatusSuccess, root.Children()[2].Status())
	})

	t.Run("empty dataset fails before any action", func(t *testing.T) {
		t.Parallel()
		c := &counter{}
		root, status := runTree(t, c, domain.StepDefinition{
			Name:     "each",
			Type:     "count",
			Strategy: withStrategy(constants.StrategyForEach, map[string]any{"dataset": []any{}}),
		})

		assert.Equal(t, constants.StatusFailure, status)
		assert.Equal(t, 0, c.total())
		assert.Contains(t, root.Errors()[0], "dataset is empty")
	})

	t.Run("nested for-each substitutes every depth", func(t *testing.T) {
		t.Parallel()
		c := &counter{}
		root, status := runTree(t, c, domain.StepDefinition{
			Name:     "outer <i>",
			Strategy: withStrategy(constants.StrategyForEach, map[string]any{"dataset": rows[:2]}),
			Steps: []domain.StepDefinition{{
				Name: "inner <i>",
				Strategy: withStrategy(constants.StrategyForEach, map[string]any{
					"dataset": []any{map[string]any{"n": 1}, map[string]any{"n": 2}},
					"index":   "j",
				}),
				Steps: []domain.StepDefinition{{Name: "leaf <i>-<j>", Type: "count"}},
			}},
		})

		assert.Equal(t, constants.StatusSuccess, status)
		for _, name := range []string{"leaf 0-0", "leaf 0-1", "leaf 1-0", "leaf 1-1"} {
			assert.Equal(t, 1, c.get(name), name)
		}
		assert.Equal(t, "inner 1", root.Children()[1].Children()[0].Name())
	})

	t.Run("materialized once under retry", func(t *testing.T) {
		t.Parallel()
		c := &counter{}
		root, status := runTree(t, c, domain.StepDefinition{
			Name: "retry",
			Strategy: withStrategy(constants.StrategyRetryWithTimeout, map[string]any{
				"timeOut": "150ms", "retryDelay": "50ms",
			}),
			Steps: []domain.StepDefinition{{
				Name:     "each <i>",
				Type:     "count",
				Inputs:   map[string]any{"fail": true},
				Strategy: withStrategy(constants.StrategyForEach, map[string]any{"dataset": rows[:2]}),
			}},
		})

		assert.Equal(t, constants.StatusFailure, status)
		each := root.Children()[0]
		assert.True(t, each.ForEachApplied())
		assert.Len(t, each.Children(), 2)
		assert.GreaterOrEqual(t, c.get("each 0"), 2)
		assert.Equal(t, c.get("each 0"), c.get("each 1"))
	})
}

func TestIteration(t *testing.T) {
	t.Parallel()

	def := domain.StepDefinition{
		Name:        "step <i>",
		Type:        "count",
		Target:      "server-<i>",
		Inputs:      map[string]any{"k<i>": []any{"v<i>", map[string]any{"deep": "<i>"}}},
		Outputs:     map[string]string{"out_<i>": "{{ .x }}<i>"},
		Validations: map[string]string{"ok_<i>": "true"},
		Strategy:    withStrategy(constants.StrategyForEach, map[string]any{"dataset": "x"}),
		Steps: []domain.StepDefinition{
			{Name: "child <i>", Strategy: withStrategy(constants.StrategyRetryWithTimeout, map[string]any{"timeOut": "<i>s"})},
			{Name: "shadow <i>", Strategy: withStrategy(constants.StrategyForEach, map[string]any{"dataset": "y"})},
		},
	}

	got := Iteration(def, "i", 7)

	assert.Nil(t, got.Strategy)
	assert.Equal(t, "step 7", got.Name)
	assert.Equal(t, "server-7", got.Target)
	assert.Equal(t, map[string]any{"k7": []any{"v7", map[string]any{"deep": "7"}}}, got.Inputs)
	assert.Equal(t, map[string]string{"out_7": "{{ .x }}7"}, got.Outputs)
	assert.Equal(t, map[string]string{"ok_7": "true"}, got.Validations)
	assert.Equal(t, "child 7", got.Steps[0].Name)
	assert.Equal(t, "7s", got.Steps[0].Strategy.Parameters["timeOut"])
	assert.Equal(t, "shadow <i>", got.Steps[1].Name)

	assert.Equal(t, "step <i>", def.Name)
	assert.NotNil(t, def.Strategy)
}

func TestPauseBlocksBetweenChildren(t *testing.T) {
	t.Parallel()

	c := &counter{}
	root := newHarness(c).Build(domain.StepDefinition{
		Name:  "root",
		Steps: []domain.StepDefinition{leaf("a", false), leaf("b", false)},
	})
	se := execution.New(1)
	se.Pause()

	var finished atomic.Bool
	done := make(chan constants.Status, 1)
	go func() {
		done <- NewDefaultRegistry().Run(context.Background(), se, root, step.Context{}, nil)
		finished.Store(true)
	}()

	require.Eventually(t, func() bool { return root.Status() == constants.StatusPaused },
		time.Second, 5*time.Millisecond)
	assert.False(t, finished.Load())
	assert.Equal(t, 0, c.total())

	se.Resume()
	select {
	case status := <-done:
		assert.Equal(t, constants.StatusSuccess, status)
	case <-time.After(time.Second):
		t.Fatal("execution did not resume")
	}
	assert.Equal(t, 2, c.total())
}
