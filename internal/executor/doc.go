// Package executor находит и вызывает внешние исполнители function_call.
//
// Исполнитель — HTTP endpoint: движок отправляет ему разрешённые params
// (POST, JSON объект) и получает outputs (JSON объект).
//
// Resolver реализует steps.ExecutorResolver:
//   - имя функции, которое само является http(s) URL, вызывается напрямую
//   - иначе URL ищется в Redis по ключу "<prefix><name>"
package executor
