package domain

import (
	"slices"
	"sort"
)

// StepType — тип шага.
//
// Набор типов закрыт: добавление нового типа требует явного расширения
// StepTypes/DispatchableTypes и обработчика в пакете steps.
type StepType string

// Допустимые типы шагов.
const (
	// StepTypeFunctionCall — вызов функции из таблицы возможностей.
	StepTypeFunctionCall StepType = "function_call"

	// StepTypeServiceCall — вызов внешнего сервиса (например, LLM completion).
	StepTypeServiceCall StepType = "service_call"

	// StepTypeSetVariable — запись значения в хранилище переменных.
	StepTypeSetVariable StepType = "set_variable"

	// StepTypeGetVariable — чтение одной переменной.
	StepTypeGetVariable StepType = "get_variable"

	// StepTypeGetVariables — чтение набора переменных.
	StepTypeGetVariables StepType = "get_variables"

	// StepTypeSubFlow — ссылка на вложенный flow.
	// Никогда не выполняется напрямую: заменяется при композиции.
	StepTypeSubFlow StepType = "sub_flow"
)

var allStepTypes = []StepType{
	StepTypeFunctionCall,
	StepTypeServiceCall,
	StepTypeSetVariable,
	StepTypeGetVariable,
	StepTypeGetVariables,
	StepTypeSubFlow,
}

// StepTypes возвращает все допустимые типы шагов.
func StepTypes() []StepType {
	return slices.Clone(allStepTypes)
}

// DispatchableTypes возвращает типы, которые исполняются диспетчером.
func DispatchableTypes() []StepType {
	types := make([]StepType, 0, len(allStepTypes))
	for _, t := range allStepTypes {
		if t.IsDispatchable() {
			types = append(types, t)
		}
	}
	return types
}

// IsValid проверяет, что тип входит в закрытый набор.
func (t StepType) IsValid() bool {
	return slices.Contains(allStepTypes, t)
}

// IsDispatchable возвращает true для типов, которые доходят до исполнения.
func (t StepType) IsDispatchable() bool {
	return t.IsValid() && t != StepTypeSubFlow
}

// String возвращает строковое представление StepType.
func (t StepType) String() string {
	return string(t)
}

// Flow — документ с описанием flow (Flow Definition).
//
// До композиции может содержать шаги типа sub_flow.
// После композиции — плоский список шагов с уникальными именами.
type Flow struct {
	// Name — имя flow.
	Name string `yaml:"name,omitempty" json:"name,omitempty"`

	// Description — описание назначения flow.
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Steps — упорядоченный список шагов.
	Steps []Step `yaml:"steps" json:"steps"`
}

// Step — описание шага.
type Step struct {
	// Name — уникальное имя шага. После композиции содержит префикс вложенности.
	Name string `yaml:"name" json:"name"`

	// Type — тип шага.
	Type StepType `yaml:"type" json:"type"`

	// Params — параметры шага. Значения могут содержать ссылки {{ ref }}.
	Params map[string]any `yaml:"params,omitempty" json:"params,omitempty"`

	// Outputs — имена выходов, которые шаг обязуется вернуть.
	Outputs []string `yaml:"outputs,omitempty" json:"outputs,omitempty"`

	// Dependencies — явные зависимости (имена шагов).
	Dependencies []string `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`

	// Function — имя функции для function_call. По умолчанию — имя шага.
	Function string `yaml:"function,omitempty" json:"function,omitempty"`

	// Service — имя completion-сервиса для service_call.
	Service string `yaml:"service,omitempty" json:"service,omitempty"`

	// Model — идентификатор модели для service_call.
	Model string `yaml:"model,omitempty" json:"model,omitempty"`

	// Tool — схема инструмента для structured-вызова service_call.
	Tool *ToolSpec `yaml:"tool,omitempty" json:"tool,omitempty"`

	// VariableName — имя переменной для set_variable и get_variable.
	VariableName string `yaml:"variable_name,omitempty" json:"variable_name,omitempty"`

	// Variables — маппинг output → переменная для get_variables.
	Variables map[string]string `yaml:"variables,omitempty" json:"variables,omitempty"`

	// SubFlowFile — путь к вложенному документу для sub_flow.
	SubFlowFile string `yaml:"sub_flow_file,omitempty" json:"sub_flow_file,omitempty"`
}

// ToolSpec — описание инструмента (function calling) для service_call.
type ToolSpec struct {
	Name        string         `yaml:"name" json:"name"`
	Description string         `yaml:"description,omitempty" json:"description,omitempty"`
	Parameters  map[string]any `yaml:"parameters,omitempty" json:"parameters,omitempty"`
}

// Clone возвращает глубокую копию шага.
func (s *Step) Clone() Step {
	c := *s
	if s.Params != nil {
		c.Params = CloneValue(s.Params).(map[string]any)
	}
	c.Outputs = slices.Clone(s.Outputs)
	c.Dependencies = slices.Clone(s.Dependencies)
	if s.Variables != nil {
		c.Variables = make(map[string]string, len(s.Variables))
		for k, v := range s.Variables {
			c.Variables[k] = v
		}
	}
	if s.Tool != nil {
		tool := *s.Tool
		if s.Tool.Parameters != nil {
			tool.Parameters = CloneValue(s.Tool.Parameters).(map[string]any)
		}
		c.Tool = &tool
	}
	return c
}

// ProducedVariable возвращает переменную, которую записывает шаг.
func (s *Step) ProducedVariable() (string, bool) {
	if s.Type == StepTypeSetVariable && s.VariableName != "" {
		return s.VariableName, true
	}
	return "", false
}

// ConsumedVariables возвращает переменные, которые шаг читает через
// типоспецифичные поля (не через params).
func (s *Step) ConsumedVariables() []string {
	switch s.Type {
	case StepTypeGetVariable:
		if s.VariableName == "" {
			return nil
		}
		return []string{s.VariableName}
	case StepTypeGetVariables:
		vars := make([]string, 0, len(s.Variables))
		for _, key := range s.VariableKeys() {
			vars = append(vars, s.Variables[key])
		}
		return vars
	default:
		return nil
	}
}

// VariableKeys возвращает ключи Variables в отсортированном порядке.
func (s *Step) VariableKeys() []string {
	keys := make([]string, 0, len(s.Variables))
	for k := range s.Variables {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// CloneValue копирует вложенные map/slice значения параметров.
func CloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = CloneValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = CloneValue(item)
		}
		return out
	case map[string]string:
		out := make(map[string]string, len(val))
		for k, item := range val {
			out[k] = item
		}
		return out
	case []string:
		return slices.Clone(val)
	default:
		return v
	}
}
