package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shaiso/Genflow/internal/domain"
)

// MaxCompositionDepth — максимальная глубина вложенности sub_flow.
const MaxCompositionDepth = 32

// injectParamPrefix — префикс имени шага, внедряющего параметр sub_flow.
const injectParamPrefix = "inject_param_"

// Composer раскрывает вложенные flow в одно плоское пространство имён.
//
// Для sub_flow шага X на уровне с префиксом P:
//   - для каждого параметра p создаётся set_variable шаг P+X__inject_param_p,
//     который пишет значение в переменную P+X__p;
//   - шаги вложенного документа получают префикс P+X__;
//   - после тела создаётся get_variables шаг с именем P+X, который
//     отдаёт outputs вложенного flow в пространство имён родителя.
type Composer struct {
	resolver FileResolver
	logger   *slog.Logger
}

// NewComposer создаёт Composer. logger может быть nil.
func NewComposer(resolver FileResolver, logger *slog.Logger) *Composer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Composer{resolver: resolver, logger: logger}
}

// composeFrame — контекст одного уровня композиции.
type composeFrame struct {
	path   string
	flow   *domain.Flow
	index  int
	prefix string

	// names — имена шагов, уже встреченные на уровне.
	names map[string]bool

	// caller — sub_flow шаг родителя (nil для корня).
	caller     *domain.Step
	callerName string
	callerDeps []string
}

// qualify добавляет префикс уровня к имени шага или переменной.
// Имена с разделителем уже полные и не меняются.
func (f *composeFrame) qualify(name string) string {
	if f.prefix == "" || name == "" || IsQualified(name) {
		return name
	}
	return f.prefix + name
}

// qualifyValue переписывает первые сегменты ссылок внутри значения.
func (f *composeFrame) qualifyValue(value any) any {
	if f.prefix == "" {
		return domain.CloneValue(value)
	}
	return RewriteReferences(value, func(ref Reference) Reference {
		return ref.WithHead(f.qualify(ref.Head()))
	})
}

func (f *composeFrame) qualifyList(names []string) []string {
	if names == nil {
		return nil
	}
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = f.qualify(n)
	}
	return out
}

// composition — состояние одного вызова Compose.
type composition struct {
	stack []*composeFrame
	steps []domain.Step
	used  map[string]bool
}

// chain возвращает цепочку документов на стеке.
func (c *composition) chain() []string {
	paths := make([]string, 0, len(c.stack))
	for _, f := range c.stack {
		paths = append(paths, f.path)
	}
	return paths
}

func (c *composition) onStack(path string) bool {
	for _, f := range c.stack {
		if f.path == path {
			return true
		}
	}
	return false
}

func (c *composition) fail(step, message string, err error) *CompositionError {
	return &CompositionError{Path: c.chain(), Step: step, Message: message, Err: err}
}

// reserve занимает имя в плоском пространстве имён.
func (c *composition) reserve(name string) error {
	if c.used[name] {
		return c.fail(name, fmt.Sprintf("duplicate step name: %s", name), ErrDuplicateName)
	}
	c.used[name] = true
	return nil
}

func (c *composition) emit(step domain.Step) {
	c.steps = append(c.steps, step)
}

// ComposeFile загружает корневой документ через resolver и раскрывает его.
func (c *Composer) ComposeFile(ctx context.Context, path string) (*domain.Flow, error) {
	resolved, data, err := c.resolver.Resolve("", path)
	if err != nil {
		return nil, &CompositionError{Path: []string{path}, Message: err.Error(), Err: err}
	}

	flow, err := ParseFlow(data)
	if err != nil {
		return nil, &CompositionError{Path: []string{resolved}, Message: err.Error(), Err: err}
	}

	return c.Compose(ctx, flow, resolved)
}

// Compose раскрывает все sub_flow шаги корневого flow.
// path — путь корневого документа, от него разрешаются относительные sub_flow_file.
//
// Результат — новый flow; исходный документ не изменяется.
func (c *Composer) Compose(ctx context.Context, root *domain.Flow, path string) (*domain.Flow, error) {
	if root == nil || len(root.Steps) == 0 {
		return nil, &CompositionError{Path: []string{path}, Message: "flow has no steps", Err: ErrEmptySteps}
	}

	st := &composition{
		used: make(map[string]bool),
	}
	st.stack = append(st.stack, newFrame(path, root, "", nil))

	for len(st.stack) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		frame := st.stack[len(st.stack)-1]

		if frame.index >= len(frame.flow.Steps) {
			st.stack = st.stack[:len(st.stack)-1]
			if frame.caller != nil {
				st.emit(extractionStep(frame))
			}
			continue
		}

		step := &frame.flow.Steps[frame.index]
		frame.index++

		if err := c.composeStep(st, frame, step); err != nil {
			return nil, err
		}
	}

	c.logger.Debug("flow composed",
		"path", path,
		"steps", len(st.steps),
	)

	return &domain.Flow{
		Name:        root.Name,
		Description: root.Description,
		Steps:       st.steps,
	}, nil
}

// newFrame создаёт уровень композиции.
func newFrame(path string, flow *domain.Flow, prefix string, caller *domain.Step) *composeFrame {
	return &composeFrame{
		path:   path,
		flow:   flow,
		prefix: prefix,
		names:  make(map[string]bool),
		caller: caller,
	}
}

// composeStep обрабатывает один шаг документа.
func (c *Composer) composeStep(st *composition, frame *composeFrame, step *domain.Step) error {
	if step.Name == "" {
		return st.fail(fmt.Sprintf("#%d", frame.index), "step has no name", ErrMissingName)
	}
	if strings.Contains(step.Name, NamespaceSeparator) {
		return st.fail(step.Name,
			fmt.Sprintf("step name must not contain %q", NamespaceSeparator), ErrReservedSeparator)
	}
	if !step.Type.IsValid() {
		return st.fail(step.Name, fmt.Sprintf("unknown step type: %q", step.Type), ErrUnknownStepType)
	}

	full := frame.prefix + step.Name
	if frame.names[step.Name] {
		return st.fail(full, fmt.Sprintf("duplicate step name: %s", step.Name), ErrDuplicateName)
	}
	frame.names[step.Name] = true

	if err := st.reserve(full); err != nil {
		return err
	}

	if step.Type == domain.StepTypeSubFlow {
		return c.enterSubFlow(st, frame, step, full)
	}

	out := step.Clone()
	out.Name = full
	if step.Params != nil {
		out.Params = frame.qualifyValue(step.Params).(map[string]any)
	}
	out.Dependencies = frame.qualifyList(step.Dependencies)

	switch step.Type {
	case domain.StepTypeSetVariable, domain.StepTypeGetVariable:
		out.VariableName = frame.qualify(step.VariableName)
	case domain.StepTypeGetVariables:
		for k, v := range step.Variables {
			out.Variables[k] = frame.qualify(v)
		}
	}

	c.logger.Debug("step composed", "step", full, "type", step.Type)
	st.emit(out)
	return nil
}

// enterSubFlow внедряет параметры вызова и кладёт вложенный документ на стек.
func (c *Composer) enterSubFlow(st *composition, frame *composeFrame, step *domain.Step, full string) error {
	if step.SubFlowFile == "" {
		return st.fail(full, "sub_flow step has no sub_flow_file", ErrMissingSubFlowFile)
	}
	if len(st.stack) >= MaxCompositionDepth {
		return st.fail(full,
			fmt.Sprintf("nesting deeper than %d levels", MaxCompositionDepth), ErrCompositionDepth)
	}

	path, data, err := c.resolver.Resolve(frame.path, step.SubFlowFile)
	if err != nil {
		return st.fail(full, err.Error(), err)
	}

	if st.onStack(path) {
		chain := append(st.chain(), path)
		return st.fail(full,
			fmt.Sprintf("sub-flow includes itself: %s", strings.Join(chain, " > ")), ErrCompositionCycle)
	}

	child, err := ParseFlow(data)
	if err != nil {
		return st.fail(full, fmt.Sprintf("%s: %v", path, err), err)
	}

	prefix := full + NamespaceSeparator

	for _, p := range sortedKeys(step.Params) {
		if strings.Contains(p, NamespaceSeparator) {
			return st.fail(full,
				fmt.Sprintf("param name %q must not contain %q", p, NamespaceSeparator), ErrReservedSeparator)
		}

		name := prefix + injectParamPrefix + p
		if err := st.reserve(name); err != nil {
			return err
		}

		st.emit(domain.Step{
			Name:         name,
			Type:         domain.StepTypeSetVariable,
			VariableName: prefix + p,
			Params: map[string]any{
				"value": frame.qualifyValue(step.Params[p]),
			},
			Dependencies: frame.qualifyList(step.Dependencies),
		})
	}

	next := newFrame(path, child, prefix, step)
	next.callerName = full
	next.callerDeps = frame.qualifyList(step.Dependencies)
	st.stack = append(st.stack, next)

	c.logger.Debug("sub-flow entered",
		"step", full,
		"file", path,
		"depth", len(st.stack)-1,
	)

	return nil
}

// extractionStep создаёт get_variables шаг, который отдаёт outputs
// вложенного flow под именем исходного sub_flow шага.
func extractionStep(frame *composeFrame) domain.Step {
	caller := frame.caller

	vars := make(map[string]string, len(caller.Outputs))
	for _, o := range caller.Outputs {
		vars[o] = frame.prefix + o
	}

	return domain.Step{
		Name:         frame.callerName,
		Type:         domain.StepTypeGetVariables,
		Variables:    vars,
		Outputs:      append([]string(nil), caller.Outputs...),
		Dependencies: frame.callerDeps,
	}
}
