package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunReport_Lifecycle(t *testing.T) {
	r := NewRunReport("demo")
	assert.Equal(t, RunStatusComposing, r.Status)
	assert.False(t, r.Succeeded())
	assert.Zero(t, r.Duration())

	r.Steps = []StepResult{
		{Name: "a", Type: StepTypeFunctionCall, Status: StepStatusPending},
		{Name: "b", Type: StepTypeSetVariable, Status: StepStatusPending},
	}

	r.MarkRunning()
	a, ok := r.Step("a")
	require.True(t, ok)
	a.MarkStarted()
	a.MarkResolved()
	assert.Equal(t, StepStatusParamsResolved, r.Steps[0].Status)
	a.MarkExecuted(map[string]any{"x": 1})

	b, _ := r.Step("b")
	b.MarkFailed(StepStatusResolutionFailed, "reference not found")

	r.MarkCompleted()
	assert.Equal(t, RunStatusCompleted, r.Status)
	assert.True(t, r.Status.IsTerminal())
	assert.False(t, r.Succeeded())
	assert.Equal(t, []string{"b"}, r.FailedSteps())
	assert.GreaterOrEqual(t, r.Duration().Nanoseconds(), int64(0))

	_, ok = r.Step("missing")
	assert.False(t, ok)
}

func TestRunReport_MarkAborted(t *testing.T) {
	r := NewRunReport("demo")
	r.Steps = []StepResult{{Name: "a"}}
	r.Outputs["a"] = map[string]any{"x": 1}

	r.MarkAborted("cycle")

	assert.Equal(t, RunStatusAborted, r.Status)
	assert.Equal(t, "cycle", r.Error)
	assert.Empty(t, r.Steps)
	assert.Empty(t, r.Outputs)
	assert.False(t, r.Succeeded())
}

func TestStepStatus(t *testing.T) {
	tests := []struct {
		status   StepStatus
		terminal bool
		failed   bool
	}{
		{StepStatusPending, false, false},
		{StepStatusParamsResolved, false, false},
		{StepStatusExecuted, true, false},
		{StepStatusResolutionFailed, true, true},
		{StepStatusExecutionFailed, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			assert.Equal(t, tt.terminal, tt.status.IsTerminal())
			assert.Equal(t, tt.failed, tt.status.IsFailed())
		})
	}
}
