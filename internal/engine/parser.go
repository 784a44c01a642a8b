package engine

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/shaiso/Genflow/internal/domain"
)

// ParseFlow разбирает YAML-документ flow.
//
// Неизвестные поля считаются ошибкой.
func ParseFlow(data []byte) (*domain.Flow, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var flow domain.Flow
	if err := dec.Decode(&flow); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", ErrInvalidDocument)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return &flow, nil
}

// MarshalFlow сериализует flow обратно в YAML.
// Используется для вывода результата композиции.
func MarshalFlow(flow *domain.Flow) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(flow); err != nil {
		return nil, fmt.Errorf("encode flow: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode flow: %w", err)
	}
	return buf.Bytes(), nil
}

// Validate проверяет плоский список шагов перед построением графа.
//
// Проверяет:
// - Наличие и уникальность имён
// - Что тип известен и исполняем (sub_flow уже раскрыт композицией)
// - Поля, специфичные для типа (variable_name, params.value, variables)
// - Уникальность outputs
func Validate(steps []domain.Step) error {
	names := make(map[string]bool, len(steps))

	for i := range steps {
		step := &steps[i]

		if err := ValidateStep(step, names); err != nil {
			return err
		}
	}

	return nil
}

// ValidateStep валидирует один шаг.
// names — уже встреченные имена шагов (для проверки уникальности).
func ValidateStep(step *domain.Step, names map[string]bool) error {
	if step.Name == "" {
		return NewValidationError("", "name", "step has empty name", ErrMissingName)
	}

	if names[step.Name] {
		return NewValidationError(step.Name, "name",
			fmt.Sprintf("duplicate step name: %s", step.Name), ErrDuplicateName)
	}
	names[step.Name] = true

	if err := validateStepType(step); err != nil {
		return err
	}

	for _, dep := range step.Dependencies {
		if dep == step.Name {
			return NewValidationError(step.Name, "dependencies",
				"step depends on itself", ErrCyclicDependency)
		}
	}

	if err := validateOutputs(step); err != nil {
		return err
	}

	switch step.Type {
	case domain.StepTypeSetVariable:
		if step.VariableName == "" {
			return NewValidationError(step.Name, "variable_name",
				"set_variable step has no variable_name", ErrMissingVariableName)
		}
		if _, ok := step.Params["value"]; !ok {
			return NewValidationError(step.Name, "params",
				"set_variable step has no value param", ErrMissingValue)
		}
		if len(step.Outputs) > 0 {
			return NewValidationError(step.Name, "outputs",
				fmt.Sprintf("set_variable step declares outputs %v, want none", step.Outputs), ErrInvalidOutputs)
		}
	case domain.StepTypeGetVariable:
		if step.VariableName == "" {
			return NewValidationError(step.Name, "variable_name",
				"get_variable step has no variable_name", ErrMissingVariableName)
		}
	case domain.StepTypeGetVariables:
		for _, key := range step.VariableKeys() {
			if step.Variables[key] == "" {
				return NewValidationError(step.Name, "variables",
					fmt.Sprintf("output %s maps to empty variable name", key), ErrMissingVariableName)
			}
		}
	}

	return nil
}

// validateStepType проверяет, что тип шага известен и исполняем.
func validateStepType(step *domain.Step) error {
	if step.Type == "" {
		return NewValidationError(step.Name, "type",
			"step has empty type", ErrUnknownStepType)
	}

	if !step.Type.IsValid() {
		return NewValidationError(step.Name, "type",
			fmt.Sprintf("unknown step type: %s", step.Type), ErrUnknownStepType)
	}

	if !step.Type.IsDispatchable() {
		return NewValidationError(step.Name, "type",
			fmt.Sprintf("step type %s must be composed before graph building", step.Type), ErrUnknownStepType)
	}

	return nil
}

// validateOutputs проверяет, что имена outputs непустые и уникальны.
func validateOutputs(step *domain.Step) error {
	seen := make(map[string]bool, len(step.Outputs))
	for _, out := range step.Outputs {
		if out == "" {
			return NewValidationError(step.Name, "outputs",
				"step declares empty output name", ErrInvalidOutputs)
		}
		if seen[out] {
			return NewValidationError(step.Name, "outputs",
				fmt.Sprintf("duplicate output: %s", out), ErrInvalidOutputs)
		}
		seen[out] = true
	}
	return nil
}
