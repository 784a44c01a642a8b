package steps

import (
	"context"
	"fmt"
	"sort"

	"github.com/shaiso/Genflow/internal/domain"
)

// Ключи параметров service_call.
const (
	paramPrompt   = "prompt"
	paramSystem   = "system"
	paramMessages = "messages"
	paramModel    = "model"
)

// ServiceHandler — обработчик service_call.
//
// Параметры:
//
//	prompt: "Analyze {{ read.data }}"   # или
//	messages: [{role: system, content: ...}, {role: user, content: ...}]
//	system: "You are ..."               # необязательно, только вместе с prompt
//	model: gpt-4o-mini                  # если не задано поле шага model
//
// Outputs: ровно один объявленный output. Значение — текст ответа или,
// если модель вызвала инструмент, map аргументов вызова.
type ServiceHandler struct {
	services map[string]CompletionService
	schemas  map[string]map[string]any
}

// NewServiceHandler создаёт ServiceHandler.
func NewServiceHandler(services map[string]CompletionService, schemas map[string]map[string]any) *ServiceHandler {
	if services == nil {
		services = make(map[string]CompletionService)
	}
	return &ServiceHandler{services: services, schemas: schemas}
}

// Type возвращает тип шага.
func (h *ServiceHandler) Type() domain.StepType {
	return domain.StepTypeServiceCall
}

// Execute вызывает completion-сервис.
func (h *ServiceHandler) Execute(ctx context.Context, req *Request) (*Response, error) {
	step := req.Step

	if len(step.Outputs) != 1 {
		return nil, fmt.Errorf("%w: service_call must declare exactly one output, got %d",
			ErrOutputContract, len(step.Outputs))
	}

	svc, err := h.service(step.Service)
	if err != nil {
		return nil, err
	}

	messages, err := buildMessages(req.Params)
	if err != nil {
		return nil, err
	}

	model := step.Model
	if model == "" {
		model = GetParamString(req.Params, paramModel)
	}

	creq := CompletionRequest{
		Model:    model,
		Messages: messages,
		Tool:     h.tool(step.Tool),
	}

	completion, err := svc.Complete(ctx, creq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrStepCancelled, ctx.Err())
		}
		return nil, fmt.Errorf("service %s: %w", step.Service, err)
	}

	var value any = completion.Text
	if completion.ToolCalled {
		value = completion.Arguments
	}

	return NewResponse(map[string]any{step.Outputs[0]: value}), nil
}

// service выбирает сервис по имени.
// Без имени используется единственный зарегистрированный сервис.
func (h *ServiceHandler) service(name string) (CompletionService, error) {
	if name == "" {
		if len(h.services) == 1 {
			for _, svc := range h.services {
				return svc, nil
			}
		}
		names := make([]string, 0, len(h.services))
		for n := range h.services {
			names = append(names, n)
		}
		sort.Strings(names)
		return nil, fmt.Errorf("%w: step has no service and %d are configured %v",
			ErrServiceNotFound, len(names), names)
	}

	svc, ok := h.services[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrServiceNotFound, name)
	}
	return svc, nil
}

// tool дополняет схему инструмента параметрами из таблицы схем.
func (h *ServiceHandler) tool(spec *domain.ToolSpec) *domain.ToolSpec {
	if spec == nil {
		return nil
	}
	tool := *spec
	if tool.Parameters == nil {
		if schema, ok := h.schemas[tool.Name]; ok {
			tool.Parameters = schema
		}
	}
	if tool.Parameters == nil {
		tool.Parameters = map[string]any{"type": "object", "properties": map[string]any{}}
	}
	return &tool
}

// buildMessages собирает сообщения из params.messages или params.prompt.
func buildMessages(params map[string]any) ([]Message, error) {
	if raw, ok := params[paramMessages]; ok {
		return parseMessages(raw)
	}

	prompt, ok := params[paramPrompt].(string)
	if !ok || prompt == "" {
		return nil, fmt.Errorf("%w: service_call needs a prompt or messages param", ErrInvalidParams)
	}

	var messages []Message
	if system := GetParamString(params, paramSystem); system != "" {
		messages = append(messages, Message{Role: "system", Content: system})
	}
	return append(messages, Message{Role: "user", Content: prompt}), nil
}

// parseMessages разбирает список сообщений {role, content}.
func parseMessages(raw any) ([]Message, error) {
	var items []map[string]any
	switch v := raw.(type) {
	case []any:
		for i, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%w: messages[%d] is %T, want mapping", ErrInvalidParams, i, item)
			}
			items = append(items, m)
		}
	case []map[string]any:
		items = v
	case []Message:
		return v, nil
	default:
		return nil, fmt.Errorf("%w: messages is %T, want list", ErrInvalidParams, raw)
	}

	if len(items) == 0 {
		return nil, fmt.Errorf("%w: messages is empty", ErrInvalidParams)
	}

	messages := make([]Message, 0, len(items))
	for i, m := range items {
		role, _ := m["role"].(string)
		content, ok := m["content"].(string)
		if role == "" || !ok {
			return nil, fmt.Errorf("%w: messages[%d] needs string role and content", ErrInvalidParams, i)
		}
		messages = append(messages, Message{Role: role, Content: content})
	}
	return messages, nil
}
