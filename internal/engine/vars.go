package engine

import (
	"fmt"
	"maps"
	"sync"
)

// Variables — хранилище переменных одного run.
//
// Пишут только set_variable шаги, читают get_variable/get_variables
// и ссылки {{ name }}. Запись перезаписывает значение: единственность
// производителя проверяется при построении графа.
type Variables struct {
	mu     sync.RWMutex
	values map[string]any
}

// NewVariables создаёт пустое хранилище.
func NewVariables() *Variables {
	return &Variables{values: make(map[string]any)}
}

// Set записывает значение переменной.
func (v *Variables) Set(name string, value any) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.values[name] = value
}

// Get возвращает значение переменной.
func (v *Variables) Get(name string) (any, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	value, ok := v.values[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrVariableNotFound, name)
	}
	return value, nil
}

// Has проверяет, записана ли переменная.
func (v *Variables) Has(name string) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	_, ok := v.values[name]
	return ok
}

// Snapshot возвращает копию всех переменных.
func (v *Variables) Snapshot() map[string]any {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return maps.Clone(v.values)
}

// Len возвращает количество записанных переменных.
func (v *Variables) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.values)
}
