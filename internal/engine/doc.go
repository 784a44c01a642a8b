// Package engine содержит ядро подготовки flow к выполнению.
//
// Включает:
//   - parser.go   — разбор YAML-документа и валидация шагов
//   - loader.go   — поиск документов вложенных flow (FileResolver)
//   - compose.go  — раскрытие sub_flow в плоское пространство имён
//   - refs.go     — синтаксис ссылок {{ name.path }}
//   - dag.go      — построение и обход DAG (directed acyclic graph)
//   - template.go — разрешение ссылок в параметрах
//   - vars.go     — хранилище переменных run
//
// Engine отвечает за понимание структуры flow и определение
// порядка выполнения шагов на основе их зависимостей.
package engine
