package domain

import "time"

// StepResult — результат обработки одного шага внутри run.
type StepResult struct {
	// Name — имя шага (после композиции).
	Name string `json:"name"`

	// Type — тип шага.
	Type StepType `json:"type"`

	// Status — состояние шага.
	Status StepStatus `json:"status"`

	// Error — текст ошибки разрешения параметров или исполнения.
	Error string `json:"error,omitempty"`

	// Outputs — outputs шага (только для EXECUTED).
	Outputs map[string]any `json:"outputs,omitempty"`

	// StartedAt — время начала обработки.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// FinishedAt — время окончания обработки.
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Duration возвращает продолжительность обработки шага.
func (s *StepResult) Duration() time.Duration {
	if s.StartedAt == nil || s.FinishedAt == nil {
		return 0
	}
	return s.FinishedAt.Sub(*s.StartedAt)
}

// MarkStarted фиксирует время начала обработки.
func (s *StepResult) MarkStarted() {
	now := time.Now()
	s.StartedAt = &now
}

// MarkResolved переводит шаг в PARAMS_RESOLVED.
func (s *StepResult) MarkResolved() {
	s.Status = StepStatusParamsResolved
}

// MarkExecuted переводит шаг в EXECUTED с outputs.
func (s *StepResult) MarkExecuted(outputs map[string]any) {
	now := time.Now()
	s.Status = StepStatusExecuted
	s.Outputs = outputs
	s.FinishedAt = &now
}

// MarkFailed переводит шаг в указанный статус падения.
func (s *StepResult) MarkFailed(status StepStatus, err string) {
	now := time.Now()
	s.Status = status
	s.Error = err
	s.Outputs = nil
	s.FinishedAt = &now
}
