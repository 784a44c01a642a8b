package engine

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
)

// FileResolver находит документы вложенных flow.
type FileResolver interface {
	// Resolve возвращает канонический путь и содержимое документа ref,
	// на который ссылается документ from. Для корневого документа from пуст.
	Resolve(from, ref string) (string, []byte, error)
}

// DirResolver читает документы с диска.
// Относительные пути разрешаются от каталога ссылающегося документа,
// для корневого документа — от Root.
type DirResolver struct {
	Root string
}

// Resolve реализует FileResolver.
func (r DirResolver) Resolve(from, ref string) (string, []byte, error) {
	p := ref
	if !filepath.IsAbs(p) {
		base := r.Root
		if from != "" {
			base = filepath.Dir(from)
		}
		p = filepath.Join(base, ref)
	}
	p = filepath.Clean(p)

	if abs, err := filepath.Abs(p); err == nil {
		p = abs
	}

	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil, fmt.Errorf("%w: %s", ErrSubFlowNotFound, p)
		}
		return "", nil, fmt.Errorf("read %s: %w", p, err)
	}

	return p, data, nil
}

// MapResolver хранит документы в памяти (путь → содержимое).
// Пути разделяются "/" и разрешаются относительно ссылающегося документа.
type MapResolver map[string][]byte

// Resolve реализует FileResolver.
func (r MapResolver) Resolve(from, ref string) (string, []byte, error) {
	p := ref
	if !path.IsAbs(p) && from != "" {
		p = path.Join(path.Dir(from), ref)
	}
	p = path.Clean(p)

	data, ok := r[p]
	if !ok {
		return "", nil, fmt.Errorf("%w: %s", ErrSubFlowNotFound, p)
	}
	return p, data, nil
}
