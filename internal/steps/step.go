package steps

import (
	"context"
	"errors"
	"strings"

	"github.com/shaiso/Genflow/internal/domain"
)

// Ошибки шагов.
var (
	// ErrStepNotFound — для типа шага нет обработчика.
	ErrStepNotFound = errors.New("step type not found")

	// ErrNotDispatchable — тип шага не исполняется диспетчером (sub_flow).
	ErrNotDispatchable = errors.New("step type is not dispatchable")

	// ErrMissingHandler — диспетчер собран без обработчика для исполняемого типа.
	ErrMissingHandler = errors.New("no handler for step type")

	// ErrInvalidParams — невалидные параметры шага.
	ErrInvalidParams = errors.New("invalid step params")

	// ErrMissingValue — у set_variable нет params.value.
	ErrMissingValue = errors.New("set_variable step has no value param")

	// ErrFunctionNotFound — функция не найдена ни в таблице, ни во внешнем реестре.
	ErrFunctionNotFound = errors.New("function not found")

	// ErrServiceNotFound — completion-сервис не найден.
	ErrServiceNotFound = errors.New("completion service not found")

	// ErrOutputContract — outputs шага не совпадают с объявленными.
	ErrOutputContract = errors.New("output contract violation")

	// ErrStepCancelled — выполнение шага отменено.
	ErrStepCancelled = errors.New("step execution cancelled")
)

// Handler — исполнитель одного типа шага.
//
// Каждый исполняемый тип (function_call, service_call, set_variable,
// get_variable, get_variables) реализует этот интерфейс.
type Handler interface {
	// Type возвращает тип шага.
	Type() domain.StepType

	// Execute выполняет шаг и возвращает outputs.
	// Обработчик отвечает за контракт outputs своего типа.
	Execute(ctx context.Context, req *Request) (*Response, error)
}

// VariableStore — хранилище переменных run, доступное шагам.
type VariableStore interface {
	Set(name string, value any)
	Get(name string) (any, error)
}

// Request — входные данные для выполнения шага.
type Request struct {
	// Step — шаг плоского flow.
	Step *domain.Step

	// Params — параметры шага с уже разрешёнными ссылками.
	Params map[string]any

	// Variables — хранилище переменных run.
	Variables VariableStore
}

// Response — результат выполнения шага.
type Response struct {
	// Outputs — выходные данные шага.
	// Доступны в следующих шагах через {{ step.output }}.
	Outputs map[string]any
}

// NewRequest создаёт новый Request.
func NewRequest(step *domain.Step, params map[string]any, vars VariableStore) *Request {
	if params == nil {
		params = make(map[string]any)
	}
	return &Request{
		Step:      step,
		Params:    params,
		Variables: vars,
	}
}

// NewResponse создаёт новый Response с outputs.
func NewResponse(outputs map[string]any) *Response {
	if outputs == nil {
		outputs = make(map[string]any)
	}
	return &Response{
		Outputs: outputs,
	}
}

// EmptyResponse возвращает пустой Response.
func EmptyResponse() *Response {
	return &Response{
		Outputs: make(map[string]any),
	}
}

// LocalName возвращает имя шага без префикса вложенности.
func LocalName(name string) string {
	if i := strings.LastIndex(name, "__"); i >= 0 {
		return name[i+2:]
	}
	return name
}

// GetParamString извлекает строковое значение из параметров.
func GetParamString(params map[string]any, key string) string {
	if v, ok := params[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
