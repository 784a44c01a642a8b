package steps

import (
	"context"

	"github.com/shaiso/Genflow/internal/domain"
)

// Function — поведение function_call шага.
// Получает разрешённые params, возвращает outputs.
type Function func(ctx context.Context, params map[string]any) (map[string]any, error)

// Functions — таблица функций по имени.
type Functions map[string]Function

// ExecutorResolver находит функцию во внешнем реестре,
// если её нет в локальной таблице.
type ExecutorResolver interface {
	// ResolveFunction возвращает функцию по имени.
	// Если функция не найдена, ошибка оборачивает ErrFunctionNotFound.
	ResolveFunction(ctx context.Context, name string) (Function, error)
}

// Message — сообщение чата для completion-сервиса.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest — запрос к completion-сервису.
type CompletionRequest struct {
	Model    string
	Messages []Message

	// Tool — схема инструмента; nil для обычного текстового ответа.
	Tool *domain.ToolSpec
}

// Completion — ответ completion-сервиса.
type Completion struct {
	// Text — текст ответа, если инструмент не вызван.
	Text string

	// Arguments — аргументы вызова инструмента.
	Arguments map[string]any

	// ToolCalled — модель вызвала инструмент.
	ToolCalled bool
}

// CompletionService — внешний сервис (например, LLM), выполняющий service_call.
type CompletionService interface {
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)
}

// Capabilities — поведения, которые вызывающий передаёт движку при создании.
type Capabilities struct {
	// Functions — функции для function_call.
	Functions Functions

	// Executors — внешний реестр функций (необязателен).
	Executors ExecutorResolver

	// Services — completion-сервисы для service_call по имени.
	Services map[string]CompletionService

	// ToolSchemas — JSON-схемы параметров инструментов по имени.
	ToolSchemas map[string]map[string]any
}
