package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Metrics — Prometheus метрики выполнения flow.
//
// Все методы безопасны для nil-получателя: движок без метрик
// просто ничего не записывает.
type Metrics struct {
	// RunsTotal — количество run по итоговому статусу.
	RunsTotal *prometheus.CounterVec

	// StepsTotal — количество обработанных шагов по типу и статусу.
	StepsTotal *prometheus.CounterVec

	// StepDuration — длительность шага по типу.
	StepDuration *prometheus.HistogramVec
}

// NewMetrics создаёт и регистрирует метрики в reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "genflow_runs_total",
			Help: "Total number of flow runs by final state",
		}, []string{"state"}),

		StepsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "genflow_steps_total",
			Help: "Total number of processed steps by type and status",
		}, []string{"type", "status"}),

		StepDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "genflow_step_duration_seconds",
			Help:    "Step processing duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"type"}),
	}
}

// ObserveRun учитывает завершённый run.
func (m *Metrics) ObserveRun(state string) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(state).Inc()
}

// ObserveStep учитывает обработанный шаг.
func (m *Metrics) ObserveStep(stepType, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.StepsTotal.WithLabelValues(stepType, status).Inc()
	m.StepDuration.WithLabelValues(stepType).Observe(d.Seconds())
}

// Push отправляет метрики из gatherer в Pushgateway.
// Используется CLI: процесс живёт один run и не обслуживает /metrics.
func Push(ctx context.Context, url, job string, gatherer prometheus.Gatherer) error {
	err := push.New(url, job).
		Gatherer(gatherer).
		PushContext(ctx)
	if err != nil {
		return fmt.Errorf("push metrics to %s: %w", url, err)
	}
	return nil
}
