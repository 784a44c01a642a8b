package orchestrator

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/shaiso/Genflow/internal/domain"
	"github.com/shaiso/Genflow/internal/engine"
	"github.com/shaiso/Genflow/internal/steps"
	"github.com/shaiso/Genflow/internal/telemetry"
)

// Engine выполняет flow: композиция, построение графа, выполнение шагов.
//
// Engine не хранит состояние между run: каждый run получает
// собственные граф, хранилище переменных и отчёт.
// Ошибки отдельных шагов никогда не выходят за пределы Run.
type Engine struct {
	composer   *engine.Composer
	dispatcher *steps.Dispatcher
	workers    int
	metrics    *telemetry.Metrics
	events     EventSink
	logger     *slog.Logger
}

// Config — конфигурация Engine.
type Config struct {
	// Resolver загружает документы sub_flow (default: DirResolver).
	Resolver engine.FileResolver

	// Dispatcher исполняет шаги. Обязателен.
	Dispatcher *steps.Dispatcher

	// Workers — количество параллельно выполняемых шагов.
	// 0 или 1 — последовательное выполнение в топологическом порядке.
	Workers int

	// Logger (default: slog.Default()).
	Logger *slog.Logger

	// Metrics — метрики run (необязательны).
	Metrics *telemetry.Metrics

	// Events — получатель событий run (default: NoOpEventSink).
	Events EventSink
}

// New создаёт Engine.
func New(cfg Config) (*Engine, error) {
	if cfg.Dispatcher == nil {
		return nil, ErrNoDispatcher
	}

	resolver := cfg.Resolver
	if resolver == nil {
		resolver = engine.DirResolver{}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	events := cfg.Events
	if events == nil {
		events = NoOpEventSink{}
	}

	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}

	return &Engine{
		composer:   engine.NewComposer(resolver, logger),
		dispatcher: cfg.Dispatcher,
		workers:    workers,
		metrics:    cfg.Metrics,
		events:     events,
		logger:     logger,
	}, nil
}

// Compose раскрывает вложенные flow в плоский список шагов.
func (e *Engine) Compose(ctx context.Context, flow *domain.Flow, path string) (*domain.Flow, error) {
	return e.composer.Compose(ctx, flow, path)
}

// ComposeFile загружает документ и раскрывает вложенные flow.
func (e *Engine) ComposeFile(ctx context.Context, path string) (*domain.Flow, error) {
	return e.composer.ComposeFile(ctx, path)
}

// BuildGraph строит граф зависимостей плоского flow.
func (e *Engine) BuildGraph(flow *domain.Flow) (*engine.DAG, error) {
	if flow == nil {
		return nil, ErrNoFlow
	}
	return engine.BuildDAG(flow.Steps)
}

// Execute выполняет flow из файла.
//
// Ошибка возвращается только если run прерван до выполнения шагов
// (*AbortError); отчёт в этом случае в статусе ABORTED.
func (e *Engine) Execute(ctx context.Context, path string) (*domain.RunReport, error) {
	report := domain.NewRunReport(flowName("", path))

	flow, err := e.composer.ComposeFile(ctx, path)
	if err != nil {
		return e.abort(ctx, report, PhaseCompose, err)
	}
	if flow.Name != "" {
		report.Flow = flow.Name
	}

	return e.buildAndRun(ctx, report, flow)
}

// ExecuteFlow выполняет уже загруженный flow.
// path используется для разрешения относительных sub_flow_file.
func (e *Engine) ExecuteFlow(ctx context.Context, flow *domain.Flow, path string) (*domain.RunReport, error) {
	if flow == nil {
		return nil, ErrNoFlow
	}
	report := domain.NewRunReport(flowName(flow.Name, path))

	composed, err := e.composer.Compose(ctx, flow, path)
	if err != nil {
		return e.abort(ctx, report, PhaseCompose, err)
	}

	return e.buildAndRun(ctx, report, composed)
}

func (e *Engine) buildAndRun(ctx context.Context, report *domain.RunReport, flow *domain.Flow) (*domain.RunReport, error) {
	report.Status = domain.RunStatusGraphBuilding

	dag, err := engine.BuildDAG(flow.Steps)
	if err != nil {
		return e.abort(ctx, report, PhaseGraph, err)
	}

	e.run(ctx, report, dag)
	return report, nil
}

// Run выполняет шаги построенного графа.
// Каждый шаг обрабатывается ровно один раз; упавшие шаги
// отражаются в отчёте, run при этом продолжается.
func (e *Engine) Run(ctx context.Context, name string, dag *engine.DAG) *domain.RunReport {
	report := domain.NewRunReport(name)
	e.run(ctx, report, dag)
	return report
}

func (e *Engine) run(ctx context.Context, report *domain.RunReport, dag *engine.DAG) {
	logger := telemetry.WithFlow(telemetry.WithRunID(e.logger, report.ID.String()), report.Flow)
	ctx = telemetry.WithLogger(ctx, logger)

	report.Status = domain.RunStatusReady
	report.Order = dag.OrderNames()
	state := NewRunState(report, dag)

	if err := e.events.RunStarted(ctx, report); err != nil {
		logger.Warn("publish run started failed", "error", err)
	}

	report.MarkRunning()
	logger.Info("run started", "steps", dag.Size(), "workers", e.workers)

	if e.workers > 1 {
		e.runConcurrent(ctx, state)
	} else {
		e.runSequential(ctx, state)
	}

	report.MarkCompleted()
	e.metrics.ObserveRun(string(report.Status))

	stats := state.Stats()
	logger.Info("run completed",
		"succeeded", report.Succeeded(),
		"executed", stats.ExecutedSteps,
		"failed", stats.FailedSteps,
		"duration", report.Duration(),
	)

	if err := e.events.RunFinished(ctx, report); err != nil {
		logger.Warn("publish run finished failed", "error", err)
	}
}

// runSequential выполняет шаги по одному в топологическом порядке.
func (e *Engine) runSequential(ctx context.Context, state *RunState) {
	for _, node := range state.DAG.Order {
		state.MarkStepRunning(node.ID)
		e.executeStep(ctx, state, node)
	}
}

// runConcurrent выполняет готовые шаги пулом из e.workers горутин.
// Набор готовых шагов пересчитывается после завершения каждого шага;
// шаги запускаются в порядке объявления.
func (e *Engine) runConcurrent(ctx context.Context, state *RunState) {
	var g errgroup.Group
	g.SetLimit(e.workers)

	done := make(chan struct{}, state.DAG.Size())
	inflight := 0

	for !state.IsComplete() {
		for _, node := range state.ReadySteps() {
			state.MarkStepRunning(node.ID)
			inflight++
			g.Go(func() error {
				e.executeStep(ctx, state, node)
				done <- struct{}{}
				return nil
			})
		}

		if inflight == 0 {
			break
		}
		<-done
		inflight--
	}

	_ = g.Wait()
}

// executeStep разрешает параметры шага и передаёт его диспетчеру.
func (e *Engine) executeStep(ctx context.Context, state *RunState, node *engine.Node) {
	step := node.Step
	logger := telemetry.WithStep(telemetry.FromContext(ctx), step.Name, step.Type.String())
	start := time.Now()

	params, err := engine.RenderParams(step.Params, state.Snapshot())
	if err != nil {
		logger.Error("step params resolution failed", "error", err)
		state.MarkFailed(step.Name, domain.StepStatusResolutionFailed, err)
		e.stepFinished(ctx, state, step, start)
		return
	}
	state.MarkResolved(step.Name)
	logger.Debug("step params resolved", "params", params)

	resp, err := e.dispatcher.Dispatch(ctx, steps.NewRequest(step, params, state))
	if err != nil {
		logger.Error("step execution failed", "error", err)
		state.MarkFailed(step.Name, domain.StepStatusExecutionFailed, err)
		e.stepFinished(ctx, state, step, start)
		return
	}

	state.MarkExecuted(step.Name, resp.Outputs)
	logger.Info("step executed", "outputs", len(resp.Outputs), "duration", time.Since(start))
	e.stepFinished(ctx, state, step, start)
}

func (e *Engine) stepFinished(ctx context.Context, state *RunState, step *domain.Step, start time.Time) {
	result := state.Result(step.Name)
	e.metrics.ObserveStep(step.Type.String(), result.Status.String(), time.Since(start))

	if err := e.events.StepFinished(ctx, state.Report.ID, &result); err != nil {
		telemetry.FromContext(ctx).Warn("publish step finished failed", "step", step.Name, "error", err)
	}
}

// abort переводит run в ABORTED.
func (e *Engine) abort(ctx context.Context, report *domain.RunReport, phase Phase, err error) (*domain.RunReport, error) {
	abortErr := &AbortError{Phase: phase, Err: err}
	report.MarkAborted(err.Error())
	e.metrics.ObserveRun(string(report.Status))

	e.logger.Error("run aborted",
		"run_id", report.ID,
		"flow", report.Flow,
		"phase", phase,
		"error", err,
	)

	if sinkErr := e.events.RunFinished(ctx, report); sinkErr != nil {
		e.logger.Warn("publish run finished failed", "run_id", report.ID, "error", sinkErr)
	}
	return report, abortErr
}

// flowName возвращает имя flow или, если оно пусто, имя файла без расширения.
func flowName(name, path string) string {
	if name != "" || path == "" {
		return name
	}
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
