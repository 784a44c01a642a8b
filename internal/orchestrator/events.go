package orchestrator

import (
	"context"

	"github.com/google/uuid"

	"github.com/shaiso/Genflow/internal/domain"
)

// EventSink получает события жизненного цикла run.
//
// Ошибки sink не влияют на run: движок только логирует их.
// StepFinished может вызываться из нескольких горутин одновременно.
type EventSink interface {
	// RunStarted вызывается перед выполнением первого шага.
	RunStarted(ctx context.Context, report *domain.RunReport) error

	// StepFinished вызывается после обработки каждого шага.
	StepFinished(ctx context.Context, runID uuid.UUID, result *domain.StepResult) error

	// RunFinished вызывается для завершённого или прерванного run.
	RunFinished(ctx context.Context, report *domain.RunReport) error
}

// NoOpEventSink игнорирует все события.
type NoOpEventSink struct{}

func (NoOpEventSink) RunStarted(context.Context, *domain.RunReport) error { return nil }

func (NoOpEventSink) StepFinished(context.Context, uuid.UUID, *domain.StepResult) error {
	return nil
}

func (NoOpEventSink) RunFinished(context.Context, *domain.RunReport) error { return nil }
