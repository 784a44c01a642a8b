package engine

import (
	"errors"
	"strings"
)

// Ошибки композиции (фатальные, до построения графа).
var (
	// ErrEmptySteps — корневой flow не содержит шагов.
	ErrEmptySteps = errors.New("flow has no steps")

	// ErrMissingName — шаг не имеет имени.
	ErrMissingName = errors.New("step has no name")

	// ErrDuplicateName — имя шага уже занято в плоском пространстве имён.
	ErrDuplicateName = errors.New("duplicate step name")

	// ErrUnknownStepType — неизвестный тип шага.
	ErrUnknownStepType = errors.New("unknown step type")

	// ErrMissingSubFlowFile — sub_flow шаг без sub_flow_file.
	ErrMissingSubFlowFile = errors.New("sub_flow step has no sub_flow_file")

	// ErrSubFlowNotFound — документ вложенного flow не найден.
	ErrSubFlowNotFound = errors.New("sub-flow document not found")

	// ErrCompositionCycle — flow включает сам себя (напрямую или транзитивно).
	ErrCompositionCycle = errors.New("sub-flow includes itself")

	// ErrCompositionDepth — превышена глубина вложенности.
	ErrCompositionDepth = errors.New("sub-flow nesting too deep")

	// ErrReservedSeparator — имя содержит разделитель пространств имён.
	ErrReservedSeparator = errors.New("name contains reserved namespace separator")

	// ErrInvalidDocument — документ не удалось разобрать.
	ErrInvalidDocument = errors.New("invalid flow document")
)

// Ошибки построения графа (фатальные, до выполнения шагов).
var (
	// ErrUndefinedReference — ссылка на несуществующий шаг или переменную.
	ErrUndefinedReference = errors.New("undefined reference")

	// ErrCyclicDependency — обнаружен цикл в зависимостях.
	ErrCyclicDependency = errors.New("cyclic dependency detected")

	// ErrDuplicateVariableProducer — переменную записывают несколько шагов.
	ErrDuplicateVariableProducer = errors.New("variable is set by multiple steps")

	// ErrMissingVariableName — set_variable/get_variable без variable_name.
	ErrMissingVariableName = errors.New("step has no variable_name")

	// ErrMissingValue — set_variable без params.value.
	ErrMissingValue = errors.New("set_variable step has no value param")

	// ErrInvalidOutputs — некорректный список outputs.
	ErrInvalidOutputs = errors.New("invalid step outputs")
)

// Ошибки разрешения ссылок (ограничены одним шагом).
var (
	// ErrReferenceNotFound — ссылка не найдена в outputs и переменных.
	ErrReferenceNotFound = errors.New("reference not found")

	// ErrNonSubstitutable — значение нельзя подставить в текст.
	ErrNonSubstitutable = errors.New("non-substitutable reference")

	// ErrVariableNotFound — переменная не была записана к моменту чтения.
	ErrVariableNotFound = errors.New("variable not found")
)

// CompositionError — ошибка композиции с контекстом вложенности.
type CompositionError struct {
	Path    []string // цепочка документов от корня до места ошибки
	Step    string   // имя шага, где произошла ошибка
	Message string   // описание ошибки
	Err     error    // базовая ошибка
}

// Error реализует интерфейс error.
func (e *CompositionError) Error() string {
	var b strings.Builder
	b.WriteString("compose")
	if len(e.Path) > 0 {
		b.WriteString(" ")
		b.WriteString(strings.Join(e.Path, " > "))
	}
	if e.Step != "" {
		b.WriteString(": step ")
		b.WriteString(e.Step)
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	return b.String()
}

// Unwrap возвращает базовую ошибку.
func (e *CompositionError) Unwrap() error {
	return e.Err
}

// ValidationError — ошибка валидации шагов или построения графа.
type ValidationError struct {
	Step    string // имя шага, где произошла ошибка
	Field   string // поле, вызвавшее ошибку
	Message string // описание ошибки
	Err     error  // базовая ошибка
}

// Error реализует интерфейс error.
func (e *ValidationError) Error() string {
	if e.Step != "" {
		return "step " + e.Step + ": " + e.Message
	}
	return e.Message
}

// Unwrap возвращает базовую ошибку.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError создаёт новую ошибку валидации.
func NewValidationError(step, field, message string, err error) *ValidationError {
	return &ValidationError{
		Step:    step,
		Field:   field,
		Message: message,
		Err:     err,
	}
}

// ResolveError — ошибка разрешения ссылки.
type ResolveError struct {
	Reference string // выражение ссылки, например "fetch.items"
	Detail    string
	Err       error
}

// Error реализует интерфейс error.
func (e *ResolveError) Error() string {
	msg := e.Err.Error() + ": {{ " + e.Reference + " }}"
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	return msg
}

// Unwrap возвращает базовую ошибку.
func (e *ResolveError) Unwrap() error {
	return e.Err
}
