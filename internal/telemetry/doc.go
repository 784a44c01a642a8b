// Package telemetry обеспечивает наблюдаемость движка.
//
// Включает:
//   - logging.go — structured logging через slog
//   - metrics.go — Prometheus метрики run и шагов, отправка в Pushgateway
//
// CLI пишет логи в stderr, а метрики одного run отправляет
// в Pushgateway, если задан PUSHGATEWAY_URL.
package telemetry
