// Package orchestrator управляет выполнением run.
//
// Engine отвечает за:
//   - Композицию вложенных flow (engine.Composer)
//   - Построение графа зависимостей (engine.BuildDAG)
//   - Разрешение параметров каждого шага из outputs и переменных
//   - Передачу шага диспетчеру (steps.Dispatcher)
//   - Сбор отчёта run (domain.RunReport)
//
// Ошибки композиции и графа прерывают run до выполнения шагов (ABORTED).
// Ошибки отдельного шага попадают в отчёт, run продолжается:
// зависимые шаги падают на разрешении ссылок.
//
// При Workers > 1 готовые шаги выполняются пулом горутин;
// шаг не запускается, пока не обработаны все его предки.
package orchestrator
