package orchestrator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/Genflow/internal/domain"
	"github.com/shaiso/Genflow/internal/engine"
	"github.com/shaiso/Genflow/internal/steps"
)

func newEngine(t *testing.T, fns steps.Functions, opts ...func(*Config)) *Engine {
	t.Helper()
	d, err := steps.DefaultDispatcher(steps.Capabilities{Functions: fns})
	require.NoError(t, err)

	cfg := Config{Dispatcher: d}
	for _, opt := range opts {
		opt(&cfg)
	}

	e, err := New(cfg)
	require.NoError(t, err)
	return e
}

func call(name string, params map[string]any, outputs ...string) domain.Step {
	return domain.Step{Name: name, Type: domain.StepTypeFunctionCall, Params: params, Outputs: outputs}
}

func returning(outputs map[string]any) steps.Function {
	return func(context.Context, map[string]any) (map[string]any, error) {
		return outputs, nil
	}
}

func runFlow(t *testing.T, e *Engine, flow []domain.Step) *domain.RunReport {
	t.Helper()
	dag, err := e.BuildGraph(&domain.Flow{Steps: flow})
	require.NoError(t, err)
	return e.Run(context.Background(), "test", dag)
}

func TestNew_RequiresDispatcher(t *testing.T) {
	_, err := New(Config{})
	assert.ErrorIs(t, err, ErrNoDispatcher)
}

func TestRun_WholeReferenceKeepsType(t *testing.T) {
	var got any
	e := newEngine(t, steps.Functions{
		"A": returning(map[string]any{"result": 5}),
		"B": func(_ context.Context, params map[string]any) (map[string]any, error) {
			got = params["x"]
			return map[string]any{"doubled": params["x"].(int) * 2}, nil
		},
	})

	report := runFlow(t, e, []domain.Step{
		call("A", nil, "result"),
		call("B", map[string]any{"x": "{{ A.result }}"}, "doubled"),
	})

	assert.Equal(t, domain.RunStatusCompleted, report.Status)
	assert.True(t, report.Succeeded())
	assert.Equal(t, 5, got)
	assert.Equal(t, 10, report.Outputs["B"]["doubled"])
	assert.Equal(t, []string{"A", "B"}, report.Order)
}

func TestExecuteFlow_CycleAborts(t *testing.T) {
	var calls atomic.Int32
	fn := func(context.Context, map[string]any) (map[string]any, error) {
		calls.Add(1)
		return map[string]any{"out": 1}, nil
	}
	e := newEngine(t, steps.Functions{"A": fn, "B": fn})

	report, err := e.ExecuteFlow(context.Background(), &domain.Flow{Steps: []domain.Step{
		call("A", map[string]any{"x": "{{ B.out }}"}, "out"),
		call("B", map[string]any{"x": "{{ A.out }}"}, "out"),
	}}, "cycle.yaml")

	var abortErr *AbortError
	require.ErrorAs(t, err, &abortErr)
	assert.Equal(t, PhaseGraph, abortErr.Phase)
	assert.ErrorIs(t, err, engine.ErrCyclicDependency)

	assert.Equal(t, domain.RunStatusAborted, report.Status)
	assert.Equal(t, "cycle", report.Flow)
	assert.Empty(t, report.Outputs)
	assert.Empty(t, report.Steps)
	assert.NotEmpty(t, report.Error)
	assert.Zero(t, calls.Load())
}

func TestRun_VariableEdge(t *testing.T) {
	e := newEngine(t, nil)

	report := runFlow(t, e, []domain.Step{
		{Name: "Y", Type: domain.StepTypeGetVariable, VariableName: "limit"},
		{Name: "X", Type: domain.StepTypeSetVariable, VariableName: "limit", Params: map[string]any{"value": 10}},
	})

	assert.True(t, report.Succeeded())
	assert.Equal(t, []string{"X", "Y"}, report.Order)
	assert.Equal(t, map[string]any{"value": 10}, report.Outputs["Y"])
	assert.Empty(t, report.Outputs["X"])
}

func TestRun_OutputContractViolation(t *testing.T) {
	e := newEngine(t, steps.Functions{
		"S": returning(map[string]any{"a": 1}),
		"C": returning(map[string]any{"ok": true}),
	})

	report := runFlow(t, e, []domain.Step{
		call("S", nil, "a", "b"),
		call("C", map[string]any{"x": "{{ S.b }}"}, "ok"),
	})

	assert.Equal(t, domain.RunStatusCompleted, report.Status)
	assert.False(t, report.Succeeded())

	s, ok := report.Step("S")
	require.True(t, ok)
	assert.Equal(t, domain.StepStatusExecutionFailed, s.Status)
	assert.Contains(t, s.Error, steps.ErrOutputContract.Error())
	assert.NotContains(t, report.Outputs, "S")

	c, ok := report.Step("C")
	require.True(t, ok)
	assert.Equal(t, domain.StepStatusResolutionFailed, c.Status)
	assert.Contains(t, c.Error, engine.ErrReferenceNotFound.Error())
	assert.Contains(t, c.Error, "S.b")
	assert.Equal(t, []string{"S", "C"}, report.FailedSteps())
}

func TestRun_FailureDoesNotStopIndependentSteps(t *testing.T) {
	counts := make(map[string]int)
	var mu sync.Mutex
	counting := func(name string, err error) steps.Function {
		return func(context.Context, map[string]any) (map[string]any, error) {
			mu.Lock()
			counts[name]++
			mu.Unlock()
			if err != nil {
				return nil, err
			}
			return map[string]any{"out": name}, nil
		}
	}

	for _, workers := range []int{1, 3} {
		t.Run("workers", func(t *testing.T) {
			clear(counts)
			e := newEngine(t, steps.Functions{
				"bad":   counting("bad", errors.New("boom")),
				"child": counting("child", nil),
				"other": counting("other", nil),
				"last":  counting("last", nil),
			}, func(c *Config) { c.Workers = workers })

			report := runFlow(t, e, []domain.Step{
				call("bad", nil, "out"),
				call("child", map[string]any{"x": "{{ bad.out }}"}, "out"),
				call("other", nil, "out"),
				call("last", map[string]any{"x": "{{ other.out }}"}, "out"),
			})

			assert.Equal(t, map[string]int{"bad": 1, "other": 1, "last": 1}, counts)
			assert.Equal(t, []string{"bad", "child"}, report.FailedSteps())
			assert.Equal(t, "last", report.Outputs["last"]["out"])
			for _, s := range report.Steps {
				assert.True(t, s.Status.IsTerminal(), s.Name)
				assert.NotNil(t, s.StartedAt, s.Name)
				assert.NotNil(t, s.FinishedAt, s.Name)
			}
		})
	}
}

func TestRun_ConcurrentRespectsDependencies(t *testing.T) {
	var seq atomic.Int64
	var mu sync.Mutex
	started := make(map[string]int64)
	finished := make(map[string]int64)

	// b и c стартуют только вместе: без параллельного выполнения
	// каждый из них упадёт по таймауту.
	var barrier sync.WaitGroup
	barrier.Add(2)
	waitBoth := func() error {
		barrier.Done()
		ch := make(chan struct{})
		go func() { barrier.Wait(); close(ch) }()
		select {
		case <-ch:
			return nil
		case <-time.After(2 * time.Second):
			return errors.New("sibling did not start")
		}
	}

	track := func(name string, wait bool) steps.Function {
		return func(context.Context, map[string]any) (map[string]any, error) {
			mu.Lock()
			started[name] = seq.Add(1)
			mu.Unlock()
			if wait {
				if err := waitBoth(); err != nil {
					return nil, err
				}
			}
			mu.Lock()
			finished[name] = seq.Add(1)
			mu.Unlock()
			return map[string]any{"out": name}, nil
		}
	}

	e := newEngine(t, steps.Functions{
		"a": track("a", false),
		"b": track("b", true),
		"c": track("c", true),
		"d": track("d", false),
	}, func(c *Config) { c.Workers = 4 })

	report := runFlow(t, e, []domain.Step{
		call("a", nil, "out"),
		call("b", map[string]any{"x": "{{ a.out }}"}, "out"),
		call("c", map[string]any{"x": "{{ a.out }}"}, "out"),
		call("d", map[string]any{"x": "{{ b.out }} {{ c.out }}"}, "out"),
	})

	require.True(t, report.Succeeded(), report.FailedSteps())
	edges := [][2]string{{"a", "b"}, {"a", "c"}, {"b", "d"}, {"c", "d"}}
	for _, edge := range edges {
		assert.Less(t, finished[edge[0]], started[edge[1]], "%s must finish before %s starts", edge[0], edge[1])
	}
}

const mainDoc = `
name: pipeline
steps:
  - name: load
    type: function_call
    outputs: [data]
  - name: child
    type: sub_flow
    sub_flow_file: child.yaml
    params:
      input: "{{ load.data }}"
    outputs: [result]
  - name: report
    type: function_call
    params:
      value: "total={{ child.result }}"
    outputs: [line]
`

const childDoc = `
steps:
  - name: read
    type: get_variable
    variable_name: input
    outputs: [value]
  - name: work
    type: function_call
    params:
      x: "{{ read.value }}"
    outputs: [y]
  - name: store
    type: set_variable
    variable_name: result
    params:
      value: "{{ work.y }}"
`

func TestExecute_ComposedFlow(t *testing.T) {
	e := newEngine(t, steps.Functions{
		"load": returning(map[string]any{"data": []any{1, 2, 3}}),
		"work": func(_ context.Context, params map[string]any) (map[string]any, error) {
			sum := 0
			for _, v := range params["x"].([]any) {
				sum += v.(int)
			}
			return map[string]any{"y": sum}, nil
		},
		"report": func(_ context.Context, params map[string]any) (map[string]any, error) {
			return map[string]any{"line": params["value"]}, nil
		},
	}, func(c *Config) {
		c.Resolver = engine.MapResolver{
			"main.yaml":  []byte(mainDoc),
			"child.yaml": []byte(childDoc),
		}
	})

	report, err := e.Execute(context.Background(), "main.yaml")
	require.NoError(t, err)

	assert.Equal(t, "pipeline", report.Flow)
	assert.True(t, report.Succeeded(), report.FailedSteps())
	assert.Len(t, report.Steps, 7)
	assert.Equal(t, map[string]any{"result": 6}, report.Outputs["child"])
	assert.Equal(t, "total=6", report.Outputs["report"]["line"])
}

func TestExecute_CompositionAborts(t *testing.T) {
	sink := &recordingSink{}
	e := newEngine(t, nil, func(c *Config) {
		c.Resolver = engine.MapResolver{"main.yaml": []byte(mainDoc)}
		c.Events = sink
	})

	report, err := e.Execute(context.Background(), "main.yaml")

	var abortErr *AbortError
	require.ErrorAs(t, err, &abortErr)
	assert.Equal(t, PhaseCompose, abortErr.Phase)
	assert.ErrorIs(t, err, engine.ErrSubFlowNotFound)
	assert.Equal(t, domain.RunStatusAborted, report.Status)
	assert.Equal(t, []domain.RunStatus{domain.RunStatusAborted}, sink.finished)
	assert.Empty(t, sink.steps)
}

type recordingSink struct {
	mu       sync.Mutex
	started  int
	steps    []string
	finished []domain.RunStatus
}

func (s *recordingSink) RunStarted(context.Context, *domain.RunReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started++
	return nil
}

func (s *recordingSink) StepFinished(_ context.Context, _ uuid.UUID, r *domain.StepResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps = append(s.steps, r.Name+":"+r.Status.String())
	return nil
}

func (s *recordingSink) RunFinished(_ context.Context, r *domain.RunReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finished = append(s.finished, r.Status)
	return errors.New("sink unavailable")
}

func TestRun_Events(t *testing.T) {
	sink := &recordingSink{}
	e := newEngine(t, steps.Functions{
		"A": returning(map[string]any{"result": 1}),
	}, func(c *Config) { c.Events = sink })

	report := runFlow(t, e, []domain.Step{
		call("A", nil, "result"),
		call("B", nil, "x"),
	})

	assert.Equal(t, domain.RunStatusCompleted, report.Status)
	assert.Equal(t, 1, sink.started)
	assert.Equal(t, []string{"A:EXECUTED", "B:EXECUTION_FAILED"}, sink.steps)
	assert.Equal(t, []domain.RunStatus{domain.RunStatusCompleted}, sink.finished)
}

func TestRunState_Stats(t *testing.T) {
	dag, err := engine.BuildDAG([]domain.Step{
		call("A", nil, "x"),
		call("B", nil, "x"),
		call("C", nil, "x"),
	})
	require.NoError(t, err)

	state := NewRunState(domain.NewRunReport("s"), dag)
	assert.Equal(t, RunStats{TotalSteps: 3, PendingSteps: 3}, state.Stats())

	state.MarkStepRunning("A")
	state.MarkExecuted("A", map[string]any{"x": 1})
	state.MarkStepRunning("B")
	state.MarkFailed("B", domain.StepStatusExecutionFailed, errors.New("boom"))
	state.MarkStepRunning("C")

	assert.Equal(t, RunStats{TotalSteps: 3, ExecutedSteps: 1, FailedSteps: 1, RunningSteps: 1}, state.Stats())
	assert.False(t, state.IsComplete())
	assert.Empty(t, state.ReadySteps())
	assert.Equal(t, []string{"B"}, state.FailedSteps())

	snap := state.Snapshot()
	assert.Equal(t, map[string]any{"x": 1}, snap.Outputs["A"])
	assert.NotContains(t, snap.Outputs, "B")
}

func TestFlowName(t *testing.T) {
	assert.Equal(t, "named", flowName("named", "dir/file.yaml"))
	assert.Equal(t, "file", flowName("", "dir/file.yaml"))
	assert.Equal(t, "", flowName("", ""))
}

func TestBuildGraph_SetVariableWithOutputs(t *testing.T) {
	e := newEngine(t, nil)

	_, err := e.BuildGraph(&domain.Flow{Steps: []domain.Step{{
		Name:         "X",
		Type:         domain.StepTypeSetVariable,
		VariableName: "limit",
		Params:       map[string]any{"value": 10},
		Outputs:      []string{"out"},
	}}})

	assert.ErrorIs(t, err, engine.ErrInvalidOutputs)
}

func TestRun_ConsumerCannotMutateProducerOutputs(t *testing.T) {
	e := newEngine(t, steps.Functions{
		"P": returning(map[string]any{"data": map[string]any{"count": 1}}),
		"C": func(_ context.Context, params map[string]any) (map[string]any, error) {
			params["in"].(map[string]any)["count"] = 100
			return map[string]any{"ok": true}, nil
		},
	})

	report := runFlow(t, e, []domain.Step{
		call("P", nil, "data"),
		call("C", map[string]any{"in": "{{ P.data }}"}, "ok"),
	})

	require.True(t, report.Succeeded(), report.FailedSteps())
	assert.Equal(t, map[string]any{"count": 1}, report.Outputs["P"]["data"])
}
