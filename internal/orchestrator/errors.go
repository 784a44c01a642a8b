package orchestrator

import (
	"errors"
	"fmt"
)

// Ошибки движка.
var (
	// ErrNoDispatcher — движок создан без диспетчера шагов.
	ErrNoDispatcher = errors.New("dispatcher is required")

	// ErrNoFlow — передан пустой flow.
	ErrNoFlow = errors.New("flow is required")
)

// Phase — фаза run, на которой он был прерван.
type Phase string

const (
	// PhaseCompose — композиция вложенных flow.
	PhaseCompose Phase = "compose"

	// PhaseGraph — построение графа зависимостей.
	PhaseGraph Phase = "graph"
)

// AbortError — run прерван до начала выполнения шагов.
// Err — *engine.CompositionError или *engine.ValidationError.
type AbortError struct {
	Phase Phase
	Err   error
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("run aborted at %s: %v", e.Phase, e.Err)
}

func (e *AbortError) Unwrap() error {
	return e.Err
}
