package steps

import (
	"context"
	"fmt"
	"sort"

	"github.com/shaiso/Genflow/internal/domain"
)

// Dispatcher — таблица обработчиков, по одному на исполняемый тип шага.
//
// Таблица заполняется при создании и дальше не меняется, поэтому
// Dispatcher можно использовать из нескольких горутин без блокировок.
type Dispatcher struct {
	handlers map[domain.StepType]Handler
}

// NewDispatcher создаёт диспетчер из обработчиков.
//
// Возвращает ErrMissingHandler, если хотя бы для одного исполняемого
// типа нет обработчика. Обработчик с повторяющимся типом заменяет предыдущий.
func NewDispatcher(handlers ...Handler) (*Dispatcher, error) {
	d := &Dispatcher{
		handlers: make(map[domain.StepType]Handler, len(handlers)),
	}

	for _, h := range handlers {
		if !h.Type().IsDispatchable() {
			return nil, fmt.Errorf("%w: %s", ErrNotDispatchable, h.Type())
		}
		d.handlers[h.Type()] = h
	}

	for _, t := range domain.DispatchableTypes() {
		if _, ok := d.handlers[t]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingHandler, t)
		}
	}

	return d, nil
}

// DefaultDispatcher создаёт диспетчер со всеми стандартными обработчиками.
func DefaultDispatcher(caps Capabilities) (*Dispatcher, error) {
	return NewDispatcher(
		NewFunctionHandler(caps.Functions, caps.Executors),
		NewServiceHandler(caps.Services, caps.ToolSchemas),
		NewSetVariableHandler(),
		NewGetVariableHandler(),
		NewGetVariablesHandler(),
	)
}

// Get возвращает обработчик по типу.
// Возвращает ErrNotDispatchable для sub_flow и ErrStepNotFound для неизвестных типов.
func (d *Dispatcher) Get(stepType domain.StepType) (Handler, error) {
	if stepType == domain.StepTypeSubFlow {
		return nil, fmt.Errorf("%w: %s", ErrNotDispatchable, stepType)
	}

	h, exists := d.handlers[stepType]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrStepNotFound, stepType)
	}

	return h, nil
}

// Dispatch выполняет шаг обработчиком его типа.
func (d *Dispatcher) Dispatch(ctx context.Context, req *Request) (*Response, error) {
	h, err := d.Get(req.Step.Type)
	if err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrStepCancelled, ctx.Err())
	default:
	}

	return h.Execute(ctx, req)
}

// Has проверяет, есть ли обработчик для типа.
func (d *Dispatcher) Has(stepType domain.StepType) bool {
	_, exists := d.handlers[stepType]
	return exists
}

// Types возвращает список всех типов с обработчиками.
func (d *Dispatcher) Types() []domain.StepType {
	types := make([]domain.StepType, 0, len(d.handlers))
	for t := range d.handlers {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}
