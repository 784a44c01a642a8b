// Package llm содержит completion-сервисы для service_call шагов.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/shaiso/Genflow/internal/steps"
)

const (
	// DefaultBaseURL — адрес OpenAI API.
	DefaultBaseURL = "https://api.openai.com/v1"

	// DefaultModel используется, если модель не задана ни шагом, ни клиентом.
	DefaultModel = "gpt-4o-mini"

	defaultTimeout  = 120 * time.Second
	maxResponseBody = 10 * 1024 * 1024 // 10 MB
)

// Ошибки completion-сервиса.
var (
	// ErrNoChoices — ответ без choices.
	ErrNoChoices = errors.New("completion has no choices")

	// ErrInvalidArguments — аргументы вызова инструмента не JSON объект.
	ErrInvalidArguments = errors.New("tool call arguments are not a JSON object")
)

// APIError — API ответил статусом >= 400.
type APIError struct {
	StatusCode int
	Message    string
}

// Error реализует интерфейс error.
func (e *APIError) Error() string {
	return fmt.Sprintf("openai: HTTP %d: %s", e.StatusCode, e.Message)
}

// OpenAI — completion-сервис, совместимый с OpenAI Chat Completions API.
type OpenAI struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
}

// Option настраивает OpenAI.
type Option func(*OpenAI)

// WithBaseURL задаёт адрес API (например, локальный совместимый сервер).
func WithBaseURL(url string) Option {
	return func(o *OpenAI) {
		if url != "" {
			o.baseURL = strings.TrimRight(url, "/")
		}
	}
}

// WithHTTPClient задаёт HTTP клиент.
func WithHTTPClient(client *http.Client) Option {
	return func(o *OpenAI) {
		if client != nil {
			o.client = client
		}
	}
}

// WithModel задаёт модель по умолчанию.
func WithModel(model string) Option {
	return func(o *OpenAI) {
		if model != "" {
			o.model = model
		}
	}
}

// NewOpenAI создаёт OpenAI сервис.
func NewOpenAI(apiKey string, opts ...Option) *OpenAI {
	o := &OpenAI{
		client:  &http.Client{Timeout: defaultTimeout},
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		model:   DefaultModel,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// chatRequest — тело запроса /chat/completions.
type chatRequest struct {
	Model      string          `json:"model"`
	Messages   []steps.Message `json:"messages"`
	Tools      []chatTool      `json:"tools,omitempty"`
	ToolChoice any             `json:"tool_choice,omitempty"`
}

type chatTool struct {
	Type     string       `json:"type"`
	Function chatFunction `json:"function"`
}

type chatFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// Complete реализует steps.CompletionService.
//
// Если задан инструмент, модель принуждается вызвать его,
// а аргументы вызова возвращаются как Completion.Arguments.
func (o *OpenAI) Complete(ctx context.Context, req steps.CompletionRequest) (*steps.Completion, error) {
	body := chatRequest{
		Model:    req.Model,
		Messages: req.Messages,
	}
	if body.Model == "" {
		body.Model = o.model
	}
	if req.Tool != nil {
		body.Tools = []chatTool{{
			Type: "function",
			Function: chatFunction{
				Name:        req.Tool.Name,
				Description: req.Tool.Description,
				Parameters:  req.Tool.Parameters,
			},
		}}
		body.ToolChoice = map[string]any{
			"type":     "function",
			"function": map[string]string{"name": req.Tool.Name},
		}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal completion request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create completion request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if o.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)
	}

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("completion request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("read completion response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		msg := gjson.GetBytes(data, "error.message").String()
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	return parseCompletion(data)
}

// parseCompletion извлекает текст или аргументы вызова инструмента.
func parseCompletion(data []byte) (*steps.Completion, error) {
	message := gjson.GetBytes(data, "choices.0.message")
	if !message.Exists() {
		return nil, ErrNoChoices
	}

	call := message.Get("tool_calls.0.function")
	if !call.Exists() {
		call = message.Get("function_call")
	}
	if call.Exists() {
		args := gjson.Parse(call.Get("arguments").String())
		if !args.IsObject() {
			return nil, fmt.Errorf("%w: tool %s", ErrInvalidArguments, call.Get("name").String())
		}
		arguments, _ := args.Value().(map[string]any)
		return &steps.Completion{Arguments: arguments, ToolCalled: true}, nil
	}

	return &steps.Completion{Text: message.Get("content").String()}, nil
}
