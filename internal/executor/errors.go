package executor

import (
	"errors"
	"fmt"
)

// Ошибки исполнителей.
var (
	// ErrInvalidExecutor — в реестре записан не http(s) URL.
	ErrInvalidExecutor = errors.New("invalid executor url")

	// ErrInvalidResponse — исполнитель вернул не JSON объект.
	ErrInvalidResponse = errors.New("executor response is not a JSON object")

	// ErrHTTPRequest — ошибка HTTP запроса к исполнителю.
	ErrHTTPRequest = errors.New("executor request failed")
)

// HTTPError — исполнитель ответил статусом >= 400.
type HTTPError struct {
	URL        string
	StatusCode int
	Body       string
}

// Error реализует интерфейс error.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("executor %s: HTTP %d: %s", e.URL, e.StatusCode, e.Body)
}
