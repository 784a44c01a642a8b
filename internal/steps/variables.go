package steps

import (
	"context"
	"fmt"

	"github.com/shaiso/Genflow/internal/domain"
)

// defaultValueOutput — output get_variable, если outputs не объявлены.
const defaultValueOutput = "value"

// SetVariableHandler — обработчик set_variable.
// Пишет params.value в переменную variable_name. Outputs не объявляются.
type SetVariableHandler struct{}

// NewSetVariableHandler создаёт SetVariableHandler.
func NewSetVariableHandler() *SetVariableHandler {
	return &SetVariableHandler{}
}

// Type возвращает тип шага.
func (h *SetVariableHandler) Type() domain.StepType {
	return domain.StepTypeSetVariable
}

// Execute записывает переменную.
func (h *SetVariableHandler) Execute(_ context.Context, req *Request) (*Response, error) {
	if err := checkOutputs(req.Step.Outputs, nil); err != nil {
		return nil, fmt.Errorf("set_variable: %w", err)
	}

	value, ok := req.Params["value"]
	if !ok {
		return nil, ErrMissingValue
	}

	req.Variables.Set(req.Step.VariableName, value)
	return EmptyResponse(), nil
}

// GetVariableHandler — обработчик get_variable.
// Output — первый объявленный output или "value".
type GetVariableHandler struct{}

// NewGetVariableHandler создаёт GetVariableHandler.
func NewGetVariableHandler() *GetVariableHandler {
	return &GetVariableHandler{}
}

// Type возвращает тип шага.
func (h *GetVariableHandler) Type() domain.StepType {
	return domain.StepTypeGetVariable
}

// Execute читает переменную.
func (h *GetVariableHandler) Execute(_ context.Context, req *Request) (*Response, error) {
	if len(req.Step.Outputs) > 1 {
		return nil, fmt.Errorf("%w: get_variable declares %d outputs, want at most 1",
			ErrOutputContract, len(req.Step.Outputs))
	}

	value, err := req.Variables.Get(req.Step.VariableName)
	if err != nil {
		return nil, err
	}

	output := defaultValueOutput
	if len(req.Step.Outputs) == 1 {
		output = req.Step.Outputs[0]
	}

	return NewResponse(map[string]any{output: value}), nil
}

// GetVariablesHandler — обработчик get_variables.
// Один output на каждую запись маппинга variables.
type GetVariablesHandler struct{}

// NewGetVariablesHandler создаёт GetVariablesHandler.
func NewGetVariablesHandler() *GetVariablesHandler {
	return &GetVariablesHandler{}
}

// Type возвращает тип шага.
func (h *GetVariablesHandler) Type() domain.StepType {
	return domain.StepTypeGetVariables
}

// Execute читает набор переменных.
func (h *GetVariablesHandler) Execute(_ context.Context, req *Request) (*Response, error) {
	outputs := make(map[string]any, len(req.Step.Variables))
	for _, key := range req.Step.VariableKeys() {
		value, err := req.Variables.Get(req.Step.Variables[key])
		if err != nil {
			return nil, fmt.Errorf("output %s: %w", key, err)
		}
		outputs[key] = value
	}

	if len(req.Step.Outputs) > 0 {
		if err := checkOutputs(req.Step.Outputs, outputs); err != nil {
			return nil, err
		}
	}

	return NewResponse(outputs), nil
}
