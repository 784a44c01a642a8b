package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/Genflow/internal/domain"
)

func TestParseFlow(t *testing.T) {
	data := []byte(`
name: analysis
description: read and summarize
steps:
  - name: read
    type: function_call
    function: read_csv
    params: {path: data.csv, limit: 10}
    outputs: [data]
  - name: summary
    type: service_call
    service: openai
    model: gpt-4o-mini
    tool:
      name: Analyze
      description: structured answer
      parameters:
        type: object
        properties:
          verdict: {type: string}
    params: {prompt: "Analyze {{ read.data }}"}
    outputs: [analysis]
    dependencies: [read]
  - name: batch
    type: get_variables
    variables: {a: var_a}
    outputs: [a]
`)

	flow, err := ParseFlow(data)
	require.NoError(t, err)

	assert.Equal(t, "analysis", flow.Name)
	assert.Equal(t, "read and summarize", flow.Description)
	require.Len(t, flow.Steps, 3)

	read := flow.Steps[0]
	assert.Equal(t, domain.StepTypeFunctionCall, read.Type)
	assert.Equal(t, "read_csv", read.Function)
	assert.Equal(t, 10, read.Params["limit"])
	assert.Equal(t, []string{"data"}, read.Outputs)

	summary := flow.Steps[1]
	assert.Equal(t, domain.StepTypeServiceCall, summary.Type)
	assert.Equal(t, "openai", summary.Service)
	assert.Equal(t, "gpt-4o-mini", summary.Model)
	require.NotNil(t, summary.Tool)
	assert.Equal(t, "Analyze", summary.Tool.Name)
	assert.Equal(t, "object", summary.Tool.Parameters["type"])
	assert.Equal(t, []string{"read"}, summary.Dependencies)

	assert.Equal(t, map[string]string{"a": "var_a"}, flow.Steps[2].Variables)
}

func TestParseFlow_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"empty", ""},
		{"not yaml", "steps: [\n"},
		{"unknown field", "steps:\n  - {name: a, type: function_call, retries: 3}\n"},
		{"wrong shape", "steps: {a: 1}\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFlow([]byte(tt.data))
			assert.ErrorIs(t, err, ErrInvalidDocument)
		})
	}
}

func TestValidateStep(t *testing.T) {
	tests := []struct {
		name    string
		step    domain.Step
		wantErr error
	}{
		{
			name: "valid function call",
			step: domain.Step{Name: "a", Type: domain.StepTypeFunctionCall, Outputs: []string{"x", "y"}},
		},
		{
			name: "valid set_variable",
			step: domain.Step{Name: "a", Type: domain.StepTypeSetVariable, VariableName: "v",
				Params: map[string]any{"value": nil}},
		},
		{
			name: "valid empty get_variables",
			step: domain.Step{Name: "a", Type: domain.StepTypeGetVariables},
		},
		{
			name:    "empty type",
			step:    domain.Step{Name: "a"},
			wantErr: ErrUnknownStepType,
		},
		{
			name:    "unknown type",
			step:    domain.Step{Name: "a", Type: "http"},
			wantErr: ErrUnknownStepType,
		},
		{
			name:    "set_variable without variable_name",
			step:    domain.Step{Name: "a", Type: domain.StepTypeSetVariable, Params: map[string]any{"value": 1}},
			wantErr: ErrMissingVariableName,
		},
		{
			name: "get_variables with empty mapping",
			step: domain.Step{Name: "a", Type: domain.StepTypeGetVariables,
				Variables: map[string]string{"x": ""}},
			wantErr: ErrMissingVariableName,
		},
		{
			name: "set_variable with outputs",
			step: domain.Step{Name: "a", Type: domain.StepTypeSetVariable, VariableName: "v",
				Params: map[string]any{"value": 1}, Outputs: []string{"out"}},
			wantErr: ErrInvalidOutputs,
		},
		{
			name:    "empty output name",
			step:    domain.Step{Name: "a", Type: domain.StepTypeFunctionCall, Outputs: []string{""}},
			wantErr: ErrInvalidOutputs,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStep(&tt.step, map[string]bool{})
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
