package domain

import (
	"time"

	"github.com/google/uuid"
)

// RunReport — итог одного запуска flow.
//
// Содержит статус каждого шага и outputs успешно выполненных шагов.
// Для прерванного run (ABORTED) Outputs и Steps пусты, а Error заполнен.
type RunReport struct {
	// ID — уникальный идентификатор run.
	ID uuid.UUID `json:"id"`

	// Flow — имя flow.
	Flow string `json:"flow,omitempty"`

	// Status — текущее состояние run.
	Status RunStatus `json:"status"`

	// Order — топологический порядок шагов.
	Order []string `json:"order,omitempty"`

	// Steps — результаты шагов в порядке объявления.
	Steps []StepResult `json:"steps,omitempty"`

	// Outputs — outputs успешно выполненных шагов (step → output → value).
	Outputs map[string]map[string]any `json:"outputs,omitempty"`

	// Error — причина прерывания run (только для ABORTED).
	Error string `json:"error,omitempty"`

	// StartedAt — время начала выполнения.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// FinishedAt — время завершения.
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// CreatedAt — время создания run.
	CreatedAt time.Time `json:"created_at"`
}

// NewRunReport создаёт отчёт для нового run.
func NewRunReport(flow string) *RunReport {
	return &RunReport{
		ID:        uuid.New(),
		Flow:      flow,
		Status:    RunStatusComposing,
		Outputs:   make(map[string]map[string]any),
		CreatedAt: time.Now(),
	}
}

// Duration возвращает продолжительность выполнения.
// Возвращает 0, если run ещё не завершён.
func (r *RunReport) Duration() time.Duration {
	if r.StartedAt == nil || r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(*r.StartedAt)
}

// Succeeded возвращает true, если run завершён и ни один шаг не упал.
func (r *RunReport) Succeeded() bool {
	if r.Status != RunStatusCompleted {
		return false
	}
	for i := range r.Steps {
		if r.Steps[i].Status.IsFailed() {
			return false
		}
	}
	return true
}

// FailedSteps возвращает имена упавших шагов.
func (r *RunReport) FailedSteps() []string {
	var failed []string
	for i := range r.Steps {
		if r.Steps[i].Status.IsFailed() {
			failed = append(failed, r.Steps[i].Name)
		}
	}
	return failed
}

// Step возвращает результат шага по имени.
func (r *RunReport) Step(name string) (*StepResult, bool) {
	for i := range r.Steps {
		if r.Steps[i].Name == name {
			return &r.Steps[i], true
		}
	}
	return nil, false
}

// MarkRunning переводит run в статус RUNNING.
func (r *RunReport) MarkRunning() {
	now := time.Now()
	r.Status = RunStatusRunning
	r.StartedAt = &now
}

// MarkCompleted переводит run в статус COMPLETED.
func (r *RunReport) MarkCompleted() {
	now := time.Now()
	r.Status = RunStatusCompleted
	r.FinishedAt = &now
}

// MarkAborted переводит run в статус ABORTED с ошибкой.
func (r *RunReport) MarkAborted(err string) {
	now := time.Now()
	r.Status = RunStatusAborted
	r.FinishedAt = &now
	r.Error = err
	r.Outputs = make(map[string]map[string]any)
	r.Steps = nil
}
