// Package cli реализует инструмент командной строки GenFlow.
//
// # Обзор
//
// CLI выполняет flow локально: композиция, построение графа
// и выполнение шагов происходят в процессе genflow.
//
// # Ключевые компоненты
//
// ## App
//
// Зависимости команд: конфигурация (internal/config), Output и логгер.
// Внешние системы подключаются только если заданы переменные окружения:
//   - REDIS_URL — реестр исполнителей function_call
//   - OPENAI_API_KEY / OPENAI_BASE_URL — сервис "openai" для service_call
//   - DB_URL или SQLITE_PATH — хранилище отчётов (--save, report)
//   - RABBITMQ_URL — публикация и чтение событий run
//   - PUSHGATEWAY_URL — отправка метрик run
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (go-pretty) — по умолчанию
//   - JSON — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Warn/Error) и логи — в stderr.
//
// ## Commands
//
//   - compose FILE [-o OUT] — плоский YAML
//   - graph FILE — порядок выполнения и зависимости
//   - run FILE [--workers N] [--save] [--tools FILE]
//   - report list|show
//   - executor list|set|rm
//   - events [--queue]
//
// Каждая команда создаётся фабричной функцией, принимающей appFn —
// замыкание для ленивого создания App после разбора PersistentFlags.
package cli
