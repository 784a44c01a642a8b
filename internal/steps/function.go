package steps

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"

	"github.com/shaiso/Genflow/internal/domain"
)

// FunctionHandler — обработчик function_call.
//
// Имя функции берётся из поля function, по умолчанию — локальное имя шага
// (без префикса вложенности). Функция ищется в локальной таблице,
// затем во внешнем реестре.
//
// Контракт outputs: множество ключей результата должно совпадать
// с объявленными outputs шага.
type FunctionHandler struct {
	functions Functions
	executors ExecutorResolver
}

// NewFunctionHandler создаёт FunctionHandler. executors может быть nil.
func NewFunctionHandler(functions Functions, executors ExecutorResolver) *FunctionHandler {
	if functions == nil {
		functions = make(Functions)
	}
	return &FunctionHandler{functions: functions, executors: executors}
}

// Type возвращает тип шага.
func (h *FunctionHandler) Type() domain.StepType {
	return domain.StepTypeFunctionCall
}

// Execute вызывает функцию и проверяет контракт outputs.
func (h *FunctionHandler) Execute(ctx context.Context, req *Request) (*Response, error) {
	name := req.Step.Function
	if name == "" {
		name = LocalName(req.Step.Name)
	}

	fn, err := h.lookup(ctx, name)
	if err != nil {
		return nil, err
	}

	outputs, err := fn(ctx, req.Params)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrStepCancelled, ctx.Err())
		}
		return nil, fmt.Errorf("function %s: %w", name, err)
	}

	if err := checkOutputs(req.Step.Outputs, outputs); err != nil {
		return nil, fmt.Errorf("function %s: %w", name, err)
	}

	return NewResponse(outputs), nil
}

// lookup ищет функцию в таблице, затем во внешнем реестре.
func (h *FunctionHandler) lookup(ctx context.Context, name string) (Function, error) {
	if fn, ok := h.functions[name]; ok {
		return fn, nil
	}

	if h.executors != nil {
		fn, err := h.executors.ResolveFunction(ctx, name)
		if err == nil {
			return fn, nil
		}
		if !errors.Is(err, ErrFunctionNotFound) {
			return nil, fmt.Errorf("resolve function %s: %w", name, err)
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrFunctionNotFound, name)
}

// checkOutputs проверяет, что ключи результата совпадают с объявленными outputs.
func checkOutputs(declared []string, outputs map[string]any) error {
	got := make([]string, 0, len(outputs))
	for k := range outputs {
		got = append(got, k)
	}
	sort.Strings(got)

	want := slices.Clone(declared)
	sort.Strings(want)

	if !slices.Equal(got, want) {
		return fmt.Errorf("%w: returned %v, declared %v", ErrOutputContract, got, want)
	}
	return nil
}
