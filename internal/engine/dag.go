package engine

import (
	"container/heap"
	"fmt"
	"sort"
	"strings"

	"github.com/shaiso/Genflow/internal/domain"
)

// Node — узел в DAG.
type Node struct {
	// Step — шаг плоского flow.
	Step *domain.Step

	// ID — имя шага.
	ID string

	// Index — позиция шага в порядке объявления.
	Index int

	// InDegree — количество входящих рёбер (зависимостей).
	InDegree int

	// DependsOn — узлы, от которых зависит этот узел.
	DependsOn []*Node

	// Dependents — узлы, которые зависят от этого узла.
	Dependents []*Node
}

// DAG — направленный ациклический граф шагов flow.
type DAG struct {
	// Nodes — все узлы графа (имя шага → Node).
	Nodes map[string]*Node

	// Steps — шаги в порядке объявления.
	Steps []domain.Step

	// Producers — переменная → имя шага, который её записывает.
	Producers map[string]string

	// RootNodes — узлы без зависимостей (точки входа), в порядке объявления.
	RootNodes []*Node

	// Order — топологически отсортированный список узлов.
	// Независимые шаги упорядочены по порядку объявления.
	Order []*Node
}

// BuildDAG строит DAG из плоского списка шагов.
//
// Рёбра выводятся из:
// - явных dependencies
// - ссылок {{ ref }} внутри params
// - variable_name у get_variable и variables у get_variables
//
// Первый сегмент ссылки сначала ищется среди шагов, затем среди переменных.
func BuildDAG(steps []domain.Step) (*DAG, error) {
	if err := Validate(steps); err != nil {
		return nil, err
	}

	dag := &DAG{
		Nodes:     make(map[string]*Node, len(steps)),
		Steps:     steps,
		Producers: make(map[string]string),
	}

	// Первый проход: узлы и таблица производителей переменных
	for i := range steps {
		step := &steps[i]
		dag.Nodes[step.Name] = &Node{
			Step:       step,
			ID:         step.Name,
			Index:      i,
			DependsOn:  make([]*Node, 0),
			Dependents: make([]*Node, 0),
		}

		if v, ok := step.ProducedVariable(); ok {
			if prev, exists := dag.Producers[v]; exists {
				return nil, NewValidationError(step.Name, "variable_name",
					fmt.Sprintf("variable %s is already set by step %s", v, prev), ErrDuplicateVariableProducer)
			}
			dag.Producers[v] = step.Name
		}
	}

	// Второй проход: рёбра
	for i := range steps {
		if err := dag.linkDependencies(&steps[i]); err != nil {
			return nil, err
		}
	}

	dag.findRootNodes()

	order, err := dag.topologicalSort()
	if err != nil {
		return nil, err
	}
	dag.Order = order

	return dag, nil
}

// linkDependencies связывает узел со всеми его производителями.
func (d *DAG) linkDependencies(step *domain.Step) error {
	node := d.Nodes[step.Name]

	for _, dep := range step.Dependencies {
		depNode, exists := d.Nodes[dep]
		if !exists {
			return NewValidationError(step.Name, "dependencies",
				fmt.Sprintf("depends on unknown step: %s", dep), ErrUndefinedReference)
		}
		if err := d.addEdge(depNode, node, "dependencies"); err != nil {
			return err
		}
	}

	for _, head := range ReferenceHeads(step.Params) {
		producer, ok := d.producerOf(head, true)
		if !ok {
			return NewValidationError(step.Name, "params",
				fmt.Sprintf("references undefined step or variable: %s", head), ErrUndefinedReference)
		}
		if err := d.addEdge(producer, node, "params"); err != nil {
			return err
		}
	}

	field := "variable_name"
	if step.Type == domain.StepTypeGetVariables {
		field = "variables"
	}
	for _, v := range step.ConsumedVariables() {
		producer, ok := d.producerOf(v, false)
		if !ok {
			return NewValidationError(step.Name, field,
				fmt.Sprintf("reads variable that no step sets: %s", v), ErrUndefinedReference)
		}
		if err := d.addEdge(producer, node, field); err != nil {
			return err
		}
	}

	return nil
}

// producerOf находит узел, который производит значение по имени.
// steps=false ограничивает поиск переменными.
func (d *DAG) producerOf(name string, steps bool) (*Node, bool) {
	if steps {
		if node, ok := d.Nodes[name]; ok {
			return node, true
		}
	}
	if producer, ok := d.Producers[name]; ok {
		return d.Nodes[producer], true
	}
	return nil, false
}

// addEdge добавляет ребро между узлами.
// Дополнительно проверяет на дубликаты, чтобы избежать двойного учета InDegree.
func (d *DAG) addEdge(from, to *Node, field string) error {
	if from.ID == to.ID {
		return NewValidationError(to.ID, field, "step depends on itself", ErrCyclicDependency)
	}
	for _, dep := range to.DependsOn {
		if dep.ID == from.ID {
			return nil // уже связаны
		}
	}
	from.Dependents = append(from.Dependents, to)
	to.DependsOn = append(to.DependsOn, from)
	to.InDegree++
	return nil
}

// findRootNodes находит узлы без входящих рёбер.
func (d *DAG) findRootNodes() {
	d.RootNodes = make([]*Node, 0)
	for i := range d.Steps {
		node := d.Nodes[d.Steps[i].Name]
		if node.InDegree == 0 {
			d.RootNodes = append(d.RootNodes, node)
		}
	}
}

// nodeHeap — min-heap узлов по порядку объявления.
type nodeHeap []*Node

func (h nodeHeap) Len() int           { return len(h) }
func (h nodeHeap) Less(i, j int) bool { return h[i].Index < h[j].Index }
func (h nodeHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *nodeHeap) Push(x any) { *h = append(*h, x.(*Node)) }

func (h *nodeHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// topologicalSort выполняет топологическую сортировку (алгоритм Кана).
// Из готовых узлов всегда выбирается объявленный раньше.
// Возвращает ошибку, если обнаружен цикл.
func (d *DAG) topologicalSort() ([]*Node, error) {
	// Копируем inDegree, чтобы не модифицировать оригинал
	inDegree := make(map[string]int, len(d.Nodes))
	for id, node := range d.Nodes {
		inDegree[id] = node.InDegree
	}

	ready := make(nodeHeap, len(d.RootNodes))
	copy(ready, d.RootNodes)
	heap.Init(&ready)

	order := make([]*Node, 0, len(d.Nodes))

	for ready.Len() > 0 {
		node := heap.Pop(&ready).(*Node)
		order = append(order, node)

		for _, dependent := range node.Dependents {
			inDegree[dependent.ID]--
			if inDegree[dependent.ID] == 0 {
				heap.Push(&ready, dependent)
			}
		}
	}

	// Если не все узлы обработаны — есть цикл
	if len(order) != len(d.Nodes) {
		remaining := make([]*Node, 0, len(d.Nodes)-len(order))
		for _, node := range d.Nodes {
			if inDegree[node.ID] > 0 {
				remaining = append(remaining, node)
			}
		}
		sort.Slice(remaining, func(i, j int) bool { return remaining[i].Index < remaining[j].Index })

		names := make([]string, len(remaining))
		for i, node := range remaining {
			names[i] = node.ID
		}
		return nil, NewValidationError(names[0], "",
			fmt.Sprintf("cyclic dependency between steps: %s", strings.Join(names, ", ")), ErrCyclicDependency)
	}

	return order, nil
}

// ReadyNodes возвращает узлы, готовые к выполнению, в порядке объявления.
//
// Узел готов, если:
// - Все его зависимости обработаны (в attempted), успешно или нет
// - Сам узел ещё не обработан и не запущен
func (d *DAG) ReadyNodes(attempted, running map[string]bool) []*Node {
	ready := make([]*Node, 0)

	for i := range d.Steps {
		node := d.Nodes[d.Steps[i].Name]

		if attempted[node.ID] || running[node.ID] {
			continue
		}

		allDepsAttempted := true
		for _, dep := range node.DependsOn {
			if !attempted[dep.ID] {
				allDepsAttempted = false
				break
			}
		}

		if allDepsAttempted {
			ready = append(ready, node)
		}
	}

	return ready
}

// GetNode возвращает узел по имени.
func (d *DAG) GetNode(id string) *Node {
	return d.Nodes[id]
}

// Size возвращает количество узлов в DAG.
func (d *DAG) Size() int {
	return len(d.Nodes)
}

// OrderNames возвращает имена шагов в топологическом порядке.
func (d *DAG) OrderNames() []string {
	names := make([]string, len(d.Order))
	for i, node := range d.Order {
		names[i] = node.ID
	}
	return names
}

// IsComplete проверяет, все ли узлы обработаны.
func (d *DAG) IsComplete(attempted map[string]bool) bool {
	for id := range d.Nodes {
		if !attempted[id] {
			return false
		}
	}
	return true
}
