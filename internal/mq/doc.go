// Package mq публикует события run в RabbitMQ.
//
// Структура:
//   - connection.go — соединение с reconnect
//   - topology.go   — exchange genflow.events и очереди
//   - publisher.go  — Publisher, реализация orchestrator.EventSink
//   - consumer.go   — чтение событий (genflow events)
//
// Типы сообщений (routing key = тип):
//   - run.started   — run перешёл в RUNNING
//   - step.finished — шаг обработан (EXECUTED или FAILED)
//   - run.finished  — run завершён (COMPLETED или ABORTED)
package mq
