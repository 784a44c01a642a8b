package domain

// RunStatus — состояние run.
//
// Жизненный цикл:
//
//	COMPOSING → GRAPH_BUILDING → READY → RUNNING → COMPLETED
//	          ↘ ABORTED (ошибка композиции или построения графа)
type RunStatus string

const (
	// RunStatusComposing — идёт композиция вложенных flow.
	RunStatusComposing RunStatus = "COMPOSING"

	// RunStatusGraphBuilding — строится граф зависимостей.
	RunStatusGraphBuilding RunStatus = "GRAPH_BUILDING"

	// RunStatusReady — граф построен, ни один шаг ещё не запущен.
	RunStatusReady RunStatus = "READY"

	// RunStatusRunning — шаги выполняются.
	RunStatusRunning RunStatus = "RUNNING"

	// RunStatusCompleted — каждый шаг был выполнен ровно один раз.
	// Отдельные шаги при этом могли упасть.
	RunStatusCompleted RunStatus = "COMPLETED"

	// RunStatusAborted — run прерван до начала выполнения.
	RunStatusAborted RunStatus = "ABORTED"
)

// IsTerminal возвращает true, если статус финальный.
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusCompleted, RunStatusAborted:
		return true
	default:
		return false
	}
}

// StepStatus — состояние шага внутри run.
//
// Жизненный цикл:
//
//	PENDING → PARAMS_RESOLVED → EXECUTED
//	        ↘ RESOLUTION_FAILED  ↘ EXECUTION_FAILED
type StepStatus string

const (
	// StepStatusPending — шаг ещё не обработан.
	StepStatusPending StepStatus = "PENDING"

	// StepStatusParamsResolved — параметры разрешены, шаг исполняется.
	StepStatusParamsResolved StepStatus = "PARAMS_RESOLVED"

	// StepStatusResolutionFailed — не удалось разрешить ссылки в параметрах.
	StepStatusResolutionFailed StepStatus = "RESOLUTION_FAILED"

	// StepStatusExecuted — шаг выполнен, outputs записаны.
	StepStatusExecuted StepStatus = "EXECUTED"

	// StepStatusExecutionFailed — ошибка исполнения или нарушение контракта outputs.
	StepStatusExecutionFailed StepStatus = "EXECUTION_FAILED"
)

// IsTerminal возвращает true, если шаг уже обработан.
func (s StepStatus) IsTerminal() bool {
	switch s {
	case StepStatusExecuted, StepStatusResolutionFailed, StepStatusExecutionFailed:
		return true
	default:
		return false
	}
}

// IsFailed возвращает true для обоих видов падения шага.
func (s StepStatus) IsFailed() bool {
	return s == StepStatusResolutionFailed || s == StepStatusExecutionFailed
}

// String возвращает строковое представление StepStatus.
func (s StepStatus) String() string {
	return string(s)
}
