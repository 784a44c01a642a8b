package orchestrator

import (
	"sync"

	"github.com/shaiso/Genflow/internal/domain"
	"github.com/shaiso/Genflow/internal/engine"
)

// RunState — состояние выполнения одного run в памяти.
//
// Создаётся перед выполнением первого шага и живёт ровно один run.
// Outputs и переменные записываются под мьютексом RunState,
// под ним же снимается контекст для разрешения параметров шага.
type RunState struct {
	// Report — отчёт run. Steps и Outputs заполняются по мере выполнения.
	Report *domain.RunReport

	// DAG — граф зависимостей шагов.
	DAG *engine.DAG

	// Vars — хранилище переменных run.
	Vars *engine.Variables

	// results — результаты шагов (имя → элемент Report.Steps).
	results map[string]*domain.StepResult

	// attempted — обработанные шаги, успешно или нет.
	attempted map[string]bool

	// running — шаги в процессе выполнения.
	running map[string]bool

	mu sync.RWMutex
}

// NewRunState создаёт RunState. Каждый шаг графа получает
// результат в статусе PENDING.
func NewRunState(report *domain.RunReport, dag *engine.DAG) *RunState {
	report.Steps = make([]domain.StepResult, len(dag.Steps))
	results := make(map[string]*domain.StepResult, len(dag.Steps))
	for i := range dag.Steps {
		report.Steps[i] = domain.StepResult{
			Name:   dag.Steps[i].Name,
			Type:   dag.Steps[i].Type,
			Status: domain.StepStatusPending,
		}
		results[dag.Steps[i].Name] = &report.Steps[i]
	}
	if report.Outputs == nil {
		report.Outputs = make(map[string]map[string]any)
	}

	return &RunState{
		Report:    report,
		DAG:       dag,
		Vars:      engine.NewVariables(),
		results:   results,
		attempted: make(map[string]bool),
		running:   make(map[string]bool),
	}
}

// ReadySteps возвращает шаги, готовые к выполнению.
// Шаг готов, если все его зависимости обработаны и он ещё не запущен.
func (s *RunState) ReadySteps() []*engine.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.DAG.ReadyNodes(s.attempted, s.running)
}

// MarkStepRunning помечает шаг как выполняющийся.
func (s *RunState) MarkStepRunning(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.running[name] = true
	s.results[name].MarkStarted()
}

// Snapshot возвращает согласованный снимок outputs и переменных.
func (s *RunState) Snapshot() *engine.Context {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := engine.NewContext()
	for name, outputs := range s.Report.Outputs {
		ctx.AddStepResult(name, outputs)
	}
	for name, value := range s.Vars.Snapshot() {
		ctx.SetVariable(name, value)
	}
	return ctx
}

// Set записывает переменную. RunState передаётся обработчикам
// шагов как хранилище переменных.
func (s *RunState) Set(name string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Vars.Set(name, value)
}

// Get читает переменную.
func (s *RunState) Get(name string) (any, error) {
	return s.Vars.Get(name)
}

// MarkResolved помечает, что параметры шага разрешены.
func (s *RunState) MarkResolved(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.results[name].MarkResolved()
}

// MarkExecuted помечает шаг как выполненный и записывает его outputs.
func (s *RunState) MarkExecuted(name string, outputs map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if outputs == nil {
		outputs = make(map[string]any)
	}

	delete(s.running, name)
	s.attempted[name] = true
	s.results[name].MarkExecuted(outputs)
	s.Report.Outputs[name] = outputs
}

// MarkFailed помечает шаг как упавший. Outputs не записываются.
func (s *RunState) MarkFailed(name string, status domain.StepStatus, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.running, name)
	s.attempted[name] = true
	s.results[name].MarkFailed(status, err.Error())
}

// Result возвращает копию результата шага.
func (s *RunState) Result(name string) domain.StepResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return *s.results[name]
}

// IsComplete проверяет, все ли шаги обработаны.
func (s *RunState) IsComplete() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.DAG.IsComplete(s.attempted)
}

// FailedSteps возвращает упавшие шаги в порядке объявления.
func (s *RunState) FailedSteps() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.Report.FailedSteps()
}

// Stats возвращает статистику выполнения.
func (s *RunState) Stats() RunStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := RunStats{TotalSteps: s.DAG.Size(), RunningSteps: len(s.running)}
	for i := range s.Report.Steps {
		switch st := s.Report.Steps[i].Status; {
		case st == domain.StepStatusExecuted:
			stats.ExecutedSteps++
		case st.IsFailed():
			stats.FailedSteps++
		}
	}
	stats.PendingSteps = stats.TotalSteps - stats.ExecutedSteps - stats.FailedSteps - stats.RunningSteps
	return stats
}

// RunStats — статистика выполнения run.
type RunStats struct {
	TotalSteps    int
	ExecutedSteps int
	RunningSteps  int
	FailedSteps   int
	PendingSteps  int
}
