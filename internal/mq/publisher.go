package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Genflow/internal/domain"
)

// MessageType — тип сообщения.
type MessageType string

// Типы сообщений.
const (
	MessageTypeRunStarted   MessageType = "run.started"
	MessageTypeRunFinished  MessageType = "run.finished"
	MessageTypeStepFinished MessageType = "step.finished"
)

// Broker отправляет AMQP сообщение. Реализуется Connection.
type Broker interface {
	Publish(ctx context.Context, exchange, key string, msg amqp.Publishing) error
}

// Message — конверт сообщения.
type Message struct {
	ID        string          `json:"id"`
	Type      MessageType     `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// RunPayload — payload событий run.started и run.finished.
type RunPayload struct {
	RunID     uuid.UUID        `json:"run_id"`
	Flow      string           `json:"flow,omitempty"`
	Status    domain.RunStatus `json:"status"`
	Steps     int              `json:"steps"`
	Failed    []string         `json:"failed,omitempty"`
	Succeeded bool             `json:"succeeded"`
	Error     string           `json:"error,omitempty"`
}

// StepPayload — payload события step.finished.
type StepPayload struct {
	RunID      uuid.UUID         `json:"run_id"`
	Step       string            `json:"step"`
	Type       domain.StepType   `json:"type"`
	Status     domain.StepStatus `json:"status"`
	Error      string            `json:"error,omitempty"`
	DurationMs int64             `json:"duration_ms"`
}

// Publisher публикует события run в exchange genflow.events.
// Реализует orchestrator.EventSink.
type Publisher struct {
	broker Broker
	logger *slog.Logger
}

// NewPublisher создаёт Publisher.
func NewPublisher(broker Broker, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{broker: broker, logger: logger}
}

// RunStarted публикует run.started.
func (p *Publisher) RunStarted(ctx context.Context, report *domain.RunReport) error {
	return p.publish(ctx, MessageTypeRunStarted, runPayload(report))
}

// RunFinished публикует run.finished.
func (p *Publisher) RunFinished(ctx context.Context, report *domain.RunReport) error {
	return p.publish(ctx, MessageTypeRunFinished, runPayload(report))
}

// StepFinished публикует step.finished.
func (p *Publisher) StepFinished(ctx context.Context, runID uuid.UUID, result *domain.StepResult) error {
	return p.publish(ctx, MessageTypeStepFinished, StepPayload{
		RunID:      runID,
		Step:       result.Name,
		Type:       result.Type,
		Status:     result.Status,
		Error:      result.Error,
		DurationMs: result.Duration().Milliseconds(),
	})
}

func runPayload(report *domain.RunReport) RunPayload {
	return RunPayload{
		RunID:     report.ID,
		Flow:      report.Flow,
		Status:    report.Status,
		Steps:     len(report.Steps),
		Failed:    report.FailedSteps(),
		Succeeded: report.Succeeded(),
		Error:     report.Error,
	}
}

func (p *Publisher) publish(ctx context.Context, msgType MessageType, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	msg := Message{
		ID:        uuid.New().String(),
		Type:      msgType,
		Payload:   raw,
		Timestamp: time.Now(),
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	err = p.broker.Publish(ctx, ExchangeEvents, string(msgType), amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.ID,
		Type:         string(msgType),
		Timestamp:    msg.Timestamp,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", msgType, err)
	}

	p.logger.Debug("published message", "message_id", msg.ID, "type", msgType)
	return nil
}
