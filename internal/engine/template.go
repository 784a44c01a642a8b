package engine

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/shaiso/Genflow/internal/domain"
)

// Context — контекст разрешения ссылок.
//
// Ссылка {{ name.path }} сначала ищется в Outputs по имени шага,
// затем в Variables по имени переменной.
type Context struct {
	// Outputs — outputs выполненных шагов (шаг → output → значение).
	Outputs map[string]map[string]any `json:"outputs"`

	// Variables — снимок хранилища переменных.
	Variables map[string]any `json:"variables"`
}

// NewContext создаёт пустой контекст.
func NewContext() *Context {
	return &Context{
		Outputs:   make(map[string]map[string]any),
		Variables: make(map[string]any),
	}
}

// AddStepResult добавляет outputs выполненного шага в контекст.
func (c *Context) AddStepResult(step string, outputs map[string]any) {
	if outputs == nil {
		outputs = make(map[string]any)
	}
	c.Outputs[step] = outputs
}

// SetVariable записывает переменную в контекст.
func (c *Context) SetVariable(name string, value any) {
	c.Variables[name] = value
}

// lookup возвращает корневое значение ссылки.
func (c *Context) lookup(head string) (any, bool) {
	if out, ok := c.Outputs[head]; ok {
		return out, true
	}
	if v, ok := c.Variables[head]; ok {
		return v, true
	}
	return nil, false
}

// Resolve возвращает значение, на которое указывает ссылка.
// Тип значения сохраняется.
func Resolve(ref Reference, ctx *Context) (any, error) {
	value, ok := ctx.lookup(ref.Head())
	if !ok {
		return nil, &ResolveError{Reference: ref.Expr, Err: ErrReferenceNotFound,
			Detail: fmt.Sprintf("no step output or variable named %s", ref.Head())}
	}

	rest := ref.Path[1:]
	for i, seg := range rest {
		if doc, ok := jsonDocument(value); ok {
			res := gjson.GetBytes(doc, strings.Join(rest[i:], "."))
			if !res.Exists() {
				return nil, &ResolveError{Reference: ref.Expr, Err: ErrReferenceNotFound,
					Detail: fmt.Sprintf("path %s not found", strings.Join(rest[i:], "."))}
			}
			return res.Value(), nil
		}

		next, ok := navigate(value, seg)
		if !ok {
			return nil, &ResolveError{Reference: ref.Expr, Err: ErrReferenceNotFound,
				Detail: fmt.Sprintf("field %s not found in %T", seg, value)}
		}
		value = next
	}

	return value, nil
}

// Render рендерит строку со ссылками.
//
// Если строка целиком является одной ссылкой, возвращается копия значения
// ссылки без преобразования типа. Иначе каждая ссылка заменяется текстом
// значения; значения без текстового представления дают ErrNonSubstitutable.
func Render(tmpl string, ctx *Context) (any, error) {
	// Проверяем, содержит ли строка ссылки
	if !strings.Contains(tmpl, "{{") {
		return tmpl, nil
	}

	if ref, ok := WholeReference(tmpl); ok {
		value, err := Resolve(ref, ctx)
		if err != nil {
			return nil, err
		}
		return domain.CloneValue(value), nil
	}

	return renderText(tmpl, ctx)
}

// renderText подставляет текст значений всех ссылок в строку.
func renderText(tmpl string, ctx *Context) (string, error) {
	idx := referencePattern.FindAllStringSubmatchIndex(tmpl, -1)
	if len(idx) == 0 {
		return tmpl, nil
	}

	var b strings.Builder
	last := 0
	for _, m := range idx {
		ref := ParseReference(tmpl[m[2]:m[3]])

		value, err := Resolve(ref, ctx)
		if err != nil {
			return "", err
		}

		text, ok := toText(value)
		if !ok {
			return "", &ResolveError{Reference: ref.Expr, Err: ErrNonSubstitutable,
				Detail: fmt.Sprintf("value of type %T has no text form", value)}
		}

		b.WriteString(tmpl[last:m[0]])
		b.WriteString(text)
		last = m[1]
	}
	b.WriteString(tmpl[last:])

	return b.String(), nil
}

// RenderValue рендерит произвольное значение.
// Рекурсивно обрабатывает map и slice.
func RenderValue(value any, ctx *Context) (any, error) {
	if value == nil {
		return nil, nil
	}

	switch v := value.(type) {
	case string:
		return Render(v, ctx)

	case map[string]any:
		result := make(map[string]any, len(v))
		for key, val := range v {
			rendered, err := RenderValue(val, ctx)
			if err != nil {
				return nil, err
			}
			result[key] = rendered
		}
		return result, nil

	case []any:
		result := make([]any, len(v))
		for i, val := range v {
			rendered, err := RenderValue(val, ctx)
			if err != nil {
				return nil, err
			}
			result[i] = rendered
		}
		return result, nil

	case map[string]string:
		result := make(map[string]string, len(v))
		for key, val := range v {
			rendered, err := renderString(val, ctx)
			if err != nil {
				return nil, err
			}
			result[key] = rendered
		}
		return result, nil

	case []string:
		result := make([]string, len(v))
		for i, val := range v {
			rendered, err := renderString(val, ctx)
			if err != nil {
				return nil, err
			}
			result[i] = rendered
		}
		return result, nil

	default:
		// Для остальных типов (int, float, bool) возвращаем как есть
		return value, nil
	}
}

// renderString рендерит строку там, где результат обязан быть строкой.
func renderString(tmpl string, ctx *Context) (string, error) {
	if ref, ok := WholeReference(tmpl); ok {
		value, err := Resolve(ref, ctx)
		if err != nil {
			return "", err
		}
		text, ok := toText(value)
		if !ok {
			return "", &ResolveError{Reference: ref.Expr, Err: ErrNonSubstitutable,
				Detail: fmt.Sprintf("value of type %T has no text form", value)}
		}
		return text, nil
	}
	return renderText(tmpl, ctx)
}

// RenderParams рендерит параметры шага.
// Это обёртка над RenderValue для map[string]any.
func RenderParams(params map[string]any, ctx *Context) (map[string]any, error) {
	if params == nil {
		return make(map[string]any), nil
	}

	rendered, err := RenderValue(params, ctx)
	if err != nil {
		return nil, err
	}

	return rendered.(map[string]any), nil
}

// toText возвращает текстовое представление скалярного значения.
func toText(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case bool:
		return strconv.FormatBool(v), true
	case int:
		return strconv.Itoa(v), true
	case int8, int16, int32, int64:
		return strconv.FormatInt(reflect.ValueOf(v).Int(), 10), true
	case uint, uint8, uint16, uint32, uint64:
		return strconv.FormatUint(reflect.ValueOf(v).Uint(), 10), true
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case json.Number:
		return v.String(), true
	case fmt.Stringer:
		return v.String(), true
	default:
		return "", false
	}
}

// jsonDocument возвращает сырой JSON, если значение — JSON-документ.
func jsonDocument(value any) ([]byte, bool) {
	switch v := value.(type) {
	case json.RawMessage:
		return v, true
	case []byte:
		if gjson.ValidBytes(v) {
			return v, true
		}
	case string:
		s := strings.TrimSpace(v)
		if (strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[")) && gjson.Valid(s) {
			return []byte(s), true
		}
	}
	return nil, false
}

// navigate спускается на один сегмент пути внутрь значения.
func navigate(value any, seg string) (any, bool) {
	switch v := value.(type) {
	case map[string]any:
		next, ok := v[seg]
		return next, ok
	case map[string]string:
		next, ok := v[seg]
		return next, ok
	case []any:
		i, err := strconv.Atoi(seg)
		if err != nil || i < 0 || i >= len(v) {
			return nil, false
		}
		return v[i], true
	}

	rv := reflect.ValueOf(value)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, false
		}
		item := rv.MapIndex(reflect.ValueOf(seg).Convert(rv.Type().Key()))
		if !item.IsValid() {
			return nil, false
		}
		return item.Interface(), true

	case reflect.Slice, reflect.Array:
		i, err := strconv.Atoi(seg)
		if err != nil || i < 0 || i >= rv.Len() {
			return nil, false
		}
		return rv.Index(i).Interface(), true

	case reflect.Struct:
		return structField(rv, seg)
	}

	return nil, false
}

// structField ищет экспортируемое поле по json-тегу или имени.
func structField(rv reflect.Value, seg string) (any, bool) {
	t := rv.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		if tag, _, _ := strings.Cut(f.Tag.Get("json"), ","); tag == seg {
			return rv.Field(i).Interface(), true
		}
	}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.IsExported() && strings.EqualFold(f.Name, seg) {
			return rv.Field(i).Interface(), true
		}
	}
	return nil, false
}
