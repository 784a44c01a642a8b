// Package steps содержит обработчики исполняемых типов шагов.
//
// # Обзор
//
// Каждый шаг плоского flow, кроме sub_flow, исполняется обработчиком
// своего типа. Обработчик получает params, уже разрешённые через
// engine.RenderParams, и возвращает outputs.
//
// # Handler
//
//	type Handler interface {
//	    Type() domain.StepType
//	    Execute(ctx context.Context, req *Request) (*Response, error)
//	}
//
// Request содержит шаг, разрешённые params и VariableStore run.
// Response содержит outputs шага.
//
// # Dispatcher
//
// Таблица обработчиков по типу шага. NewDispatcher проверяет, что для
// каждого типа из domain.DispatchableTypes() есть обработчик:
//
//	d, err := steps.DefaultDispatcher(steps.Capabilities{
//	    Functions: steps.Functions{"read_csv": readCSV},
//	    Services:  map[string]steps.CompletionService{"openai": client},
//	})
//
// # Типы шагов
//
// ## function_call (function.go)
//
// Ищет функцию в Capabilities.Functions, затем во внешнем реестре
// (ExecutorResolver). Ключи результата должны совпадать с outputs шага,
// иначе ErrOutputContract.
//
// ## service_call (service.go)
//
// Вызывает CompletionService. Сообщения берутся из params.messages
// или params.prompt (+ params.system). Если у шага есть tool,
// сервис обязан вызвать инструмент, и output содержит его аргументы.
//
// ## set_variable, get_variable, get_variables (variables.go)
//
// Запись и чтение переменных run. get_variable без outputs
// возвращает значение под ключом "value".
//
// # Ошибки
//
// Ошибки обработчиков оборачивают sentinel-ошибки из step.go.
// Движок записывает их в результат шага как EXECUTION_FAILED.
package steps
