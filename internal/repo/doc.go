// Package repo хранит отчёты run.
//
// Реализации ReportStore:
//   - ReportRepo — PostgreSQL (pgx)
//   - SQLiteReportRepo — SQLite (modernc.org/sqlite), локальная история CLI
//   - MemoryReportRepo — в памяти, для тестов и одноразовых запусков
//
// Отчёт хранится целиком в JSON; flow, status и created_at
// вынесены в колонки для фильтрации.
package repo
