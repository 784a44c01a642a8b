package engine

import (
	"regexp"
	"slices"
	"strings"
)

// NamespaceSeparator разделяет уровни вложенности в именах после композиции.
const NamespaceSeparator = "__"

// referenceExpr — выражение ссылки: имя и необязательный путь через точку.
const referenceExpr = `([A-Za-z_][A-Za-z0-9_]*(?:\.[A-Za-z0-9_]+)*)`

var (
	// referencePattern находит все ссылки {{ ref }} внутри строки.
	referencePattern = regexp.MustCompile(`\{\{\s*` + referenceExpr + `\s*\}\}`)

	// wholeReferencePattern совпадает, когда строка целиком является одной ссылкой.
	wholeReferencePattern = regexp.MustCompile(`^\{\{\s*` + referenceExpr + `\s*\}\}$`)
)

// Reference — разобранная ссылка {{ head.seg1.seg2 }}.
type Reference struct {
	// Expr — выражение без фигурных скобок, например "fetch.items.0".
	Expr string

	// Path — сегменты выражения. Path[0] — имя шага или переменной.
	Path []string
}

// ParseReference разбирает выражение ссылки.
func ParseReference(expr string) Reference {
	expr = strings.TrimSpace(expr)
	return Reference{Expr: expr, Path: strings.Split(expr, ".")}
}

// Head возвращает первый сегмент ссылки.
func (r Reference) Head() string {
	if len(r.Path) == 0 {
		return ""
	}
	return r.Path[0]
}

// WithHead возвращает ссылку с заменённым первым сегментом.
func (r Reference) WithHead(head string) Reference {
	path := slices.Clone(r.Path)
	if len(path) == 0 {
		path = []string{head}
	} else {
		path[0] = head
	}
	return Reference{Expr: strings.Join(path, "."), Path: path}
}

// IsQualified возвращает true, если имя уже содержит префикс вложенности.
func IsQualified(name string) bool {
	return strings.Contains(name, NamespaceSeparator)
}

// WholeReference проверяет, является ли строка ровно одной ссылкой.
func WholeReference(s string) (Reference, bool) {
	m := wholeReferencePattern.FindStringSubmatch(s)
	if m == nil {
		return Reference{}, false
	}
	return ParseReference(m[1]), true
}

// FindReferences возвращает все ссылки в строке в порядке появления.
func FindReferences(s string) []Reference {
	if !strings.Contains(s, "{{") {
		return nil
	}
	matches := referencePattern.FindAllStringSubmatch(s, -1)
	refs := make([]Reference, 0, len(matches))
	for _, m := range matches {
		refs = append(refs, ParseReference(m[1]))
	}
	return refs
}

// ExtractReferences рекурсивно собирает ссылки из значения параметров.
// Ключи map обходятся в отсортированном порядке.
func ExtractReferences(value any) []Reference {
	var refs []Reference
	walkStrings(value, func(s string) {
		refs = append(refs, FindReferences(s)...)
	})
	return refs
}

// ReferenceHeads возвращает уникальные первые сегменты ссылок
// в порядке первого появления.
func ReferenceHeads(value any) []string {
	seen := make(map[string]bool)
	var heads []string
	for _, ref := range ExtractReferences(value) {
		head := ref.Head()
		if head == "" || seen[head] {
			continue
		}
		seen[head] = true
		heads = append(heads, head)
	}
	return heads
}

// RewriteReferences возвращает копию значения, в которой каждая ссылка
// заменена результатом fn. Пробелы внутри скобок сохраняются.
func RewriteReferences(value any, fn func(Reference) Reference) any {
	return mapStrings(value, func(s string) string {
		if !strings.Contains(s, "{{") {
			return s
		}
		idx := referencePattern.FindAllStringSubmatchIndex(s, -1)
		if len(idx) == 0 {
			return s
		}
		var b strings.Builder
		last := 0
		for _, m := range idx {
			// m[2]:m[3] — границы выражения внутри скобок
			b.WriteString(s[last:m[2]])
			b.WriteString(fn(ParseReference(s[m[2]:m[3]])).Expr)
			last = m[3]
		}
		b.WriteString(s[last:])
		return b.String()
	})
}

// walkStrings вызывает fn для каждой строки внутри значения.
func walkStrings(value any, fn func(string)) {
	switch v := value.(type) {
	case string:
		fn(v)
	case map[string]any:
		for _, k := range sortedKeys(v) {
			walkStrings(v[k], fn)
		}
	case map[string]string:
		for _, k := range sortedKeys(v) {
			fn(v[k])
		}
	case []any:
		for _, item := range v {
			walkStrings(item, fn)
		}
	case []string:
		for _, item := range v {
			fn(item)
		}
	}
}

// mapStrings возвращает копию значения с преобразованными строками.
func mapStrings(value any, fn func(string) string) any {
	switch v := value.(type) {
	case string:
		return fn(v)
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = mapStrings(item, fn)
		}
		return out
	case map[string]string:
		out := make(map[string]string, len(v))
		for k, item := range v {
			out[k] = fn(item)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = mapStrings(item, fn)
		}
		return out
	case []string:
		out := make([]string, len(v))
		for i, item := range v {
			out[i] = fn(item)
		}
		return out
	default:
		return v
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
