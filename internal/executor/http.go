package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/tidwall/gjson"

	"github.com/shaiso/Genflow/internal/steps"
)

const (
	defaultHTTPTimeout = 30 * time.Second
	maxResponseBody    = 10 * 1024 * 1024 // 10 MB
	maxErrorBody       = 200
)

// Invoker вызывает исполнителей по HTTP.
//
// Запрос: POST <url>, тело — JSON объект params.
// Ответ: JSON объект, ключи которого становятся outputs шага.
type Invoker struct {
	client  *http.Client
	headers map[string]string
}

// NewInvoker создаёт Invoker. client может быть nil.
// headers добавляются к каждому запросу (например, Authorization).
func NewInvoker(client *http.Client, headers map[string]string) *Invoker {
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &Invoker{client: client, headers: headers}
}

// Function возвращает steps.Function, вызывающую исполнителя по target.
func (i *Invoker) Function(target string) steps.Function {
	return func(ctx context.Context, params map[string]any) (map[string]any, error) {
		return i.Invoke(ctx, target, params)
	}
}

// Invoke отправляет params исполнителю и возвращает его outputs.
func (i *Invoker) Invoke(ctx context.Context, target string, params map[string]any) (map[string]any, error) {
	if params == nil {
		params = map[string]any{}
	}
	body, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal params: %v", ErrHTTPRequest, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", ErrHTTPRequest, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for key, value := range i.headers {
		req.Header.Set(key, value)
	}

	resp, err := i.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHTTPRequest, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrHTTPRequest, err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, &HTTPError{
			URL:        target,
			StatusCode: resp.StatusCode,
			Body:       truncate(string(respBody), maxErrorBody),
		}
	}

	return parseOutputs(respBody)
}

// parseOutputs разбирает JSON объект ответа в outputs.
func parseOutputs(body []byte) (map[string]any, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidResponse, truncate(string(body), maxErrorBody))
	}

	result := gjson.ParseBytes(body)
	if !result.IsObject() {
		return nil, fmt.Errorf("%w: got %s", ErrInvalidResponse, result.Type)
	}

	outputs, ok := result.Value().(map[string]any)
	if !ok {
		return nil, ErrInvalidResponse
	}
	return outputs, nil
}

// IsURL проверяет, что name — абсолютный http(s) URL.
func IsURL(name string) bool {
	u, err := url.Parse(name)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// truncate обрезает строку до указанной длины.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
