package mq

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ExchangeEvents — topic exchange событий run.
const ExchangeEvents = "genflow.events"

// Очереди событий.
const (
	QueueRuns  = "genflow.runs"
	QueueSteps = "genflow.steps"
)

// Routing keys совпадают с типами сообщений.
const (
	RoutingKeyRunStarted   = string(MessageTypeRunStarted)
	RoutingKeyRunFinished  = string(MessageTypeRunFinished)
	RoutingKeyStepFinished = string(MessageTypeStepFinished)
)

type binding struct {
	queue   string
	pattern string
}

var bindings = []binding{
	{QueueRuns, "run.*"},
	{QueueSteps, "step.*"},
}

// SetupTopology объявляет exchange, очереди и привязки.
func SetupTopology(conn *Connection) error {
	ch := conn.Channel()
	if ch == nil {
		return ErrNoChannel
	}

	err := ch.ExchangeDeclare(
		ExchangeEvents, // name
		"topic",        // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange %s: %w", ExchangeEvents, err)
	}

	for _, b := range bindings {
		if err := declareBound(ch, b); err != nil {
			return err
		}
	}
	return nil
}

func declareBound(ch *amqp.Channel, b binding) error {
	_, err := ch.QueueDeclare(
		b.queue, // name
		true,    // durable
		false,   // delete when unused
		false,   // exclusive
		false,   // no-wait
		nil,     // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", b.queue, err)
	}

	if err := ch.QueueBind(b.queue, b.pattern, ExchangeEvents, false, nil); err != nil {
		return fmt.Errorf("bind queue %s to %s: %w", b.queue, ExchangeEvents, err)
	}
	return nil
}
